package converters

import (
	"fmt"
	"sync"

	proj "github.com/xeonx/proj4"

	"github.com/FLYPoPo7/cdb-to-3dtiles/internal/geometry"
)

// CoordinateConverter normalizes source vector coordinates to geodetic WGS84.
// CDB stores everything geodetic, but externally produced layers occasionally
// carry a projected SRS.
type CoordinateConverter interface {
	// ToWGS84Geodetic converts a coordinate from the given EPSG SRID to a
	// geodetic WGS84 position.
	ToWGS84Geodetic(srid int, x, y, z float64) (geometry.Cartographic, error)
	Cleanup()
}

const wgs84GeodeticSrid = 4326

type proj4CoordinateConverter struct {
	mu    sync.Mutex
	cache map[int]*proj.Proj
	wgs84 *proj.Proj
}

// NewProj4CoordinateConverter returns a converter backed by the proj4
// library. Projections are initialized lazily per SRID and reused.
func NewProj4CoordinateConverter() CoordinateConverter {
	return &proj4CoordinateConverter{cache: make(map[int]*proj.Proj)}
}

func (c *proj4CoordinateConverter) ToWGS84Geodetic(srid int, x, y, z float64) (geometry.Cartographic, error) {
	if srid == wgs84GeodeticSrid {
		return geometry.NewCartographicFromDegrees(x, y, z), nil
	}

	src, err := c.projection(srid)
	if err != nil {
		return geometry.Cartographic{}, err
	}
	dst, err := c.wgs84Projection()
	if err != nil {
		return geometry.Cartographic{}, err
	}

	xs := []float64{x}
	ys := []float64{y}
	zs := []float64{z}
	if err := proj.TransformRaw(src, dst, xs, ys, zs); err != nil {
		return geometry.Cartographic{}, fmt.Errorf("transform srid %d to wgs84: %w", srid, err)
	}

	// proj longlat output is in radians
	return geometry.Cartographic{Longitude: xs[0], Latitude: ys[0], Height: zs[0]}, nil
}

func (c *proj4CoordinateConverter) projection(srid int) (*proj.Proj, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if p, ok := c.cache[srid]; ok {
		return p, nil
	}
	p, err := proj.InitPlus(fmt.Sprintf("+init=epsg:%d", srid))
	if err != nil {
		return nil, fmt.Errorf("init projection for srid %d: %w", srid, err)
	}
	c.cache[srid] = p
	return p, nil
}

func (c *proj4CoordinateConverter) wgs84Projection() (*proj.Proj, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.wgs84 != nil {
		return c.wgs84, nil
	}
	p, err := proj.InitPlus("+proj=longlat +datum=WGS84 +no_defs")
	if err != nil {
		return nil, fmt.Errorf("init wgs84 projection: %w", err)
	}
	c.wgs84 = p
	return p, nil
}

func (c *proj4CoordinateConverter) Cleanup() {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, p := range c.cache {
		p.Close()
	}
	c.cache = make(map[int]*proj.Proj)
	if c.wgs84 != nil {
		c.wgs84.Close()
		c.wgs84 = nil
	}
}
