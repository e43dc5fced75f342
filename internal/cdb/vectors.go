package cdb

import (
	"fmt"
	"math"

	"github.com/jonas-p/go-shp"

	"github.com/FLYPoPo7/cdb-to-3dtiles/internal/converters"
	"github.com/FLYPoPo7/cdb-to-3dtiles/internal/geometry"
)

// GeometryVectors is one vector-feature tile: the polylines of a road,
// railroad, powerline or hydrography network, with per-feature attributes.
type GeometryVectors struct {
	Tile       Tile
	Polylines  [][]geometry.Cartographic
	Attributes *InstancesAttributes
	Region     geometry.BoundingRegion
}

// loadGeometryVectors reads a network shapefile tile. Coordinates are geodetic
// WGS84 degrees in CDB; layers with another SRS are normalized through the
// coordinate converter.
func loadGeometryVectors(path string, tile Tile, conv converters.CoordinateConverter, srid int) (*GeometryVectors, error) {
	r, err := shp.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open vector tile %s: %w", path, err)
	}
	defer r.Close()

	fields := r.Fields()
	attribs := NewInstancesAttributes()
	vectors := &GeometryVectors{Tile: tile, Attributes: attribs}

	minHeight := math.Inf(1)
	maxHeight := math.Inf(-1)
	row := 0
	for r.Next() {
		_, shape := r.Shape()
		if err := attribs.readAttributeRow(r, row, fields); err != nil {
			return nil, err
		}
		row++

		lines, err := shapePolylines(shape, conv, srid)
		if err != nil {
			return nil, fmt.Errorf("vector tile %s: %w", path, err)
		}
		for _, line := range lines {
			for _, c := range line {
				minHeight = math.Min(minHeight, c.Height)
				maxHeight = math.Max(maxHeight, c.Height)
			}
			vectors.Polylines = append(vectors.Polylines, line)
		}
	}
	if err := r.Err(); err != nil {
		return nil, fmt.Errorf("read vector tile %s: %w", path, err)
	}
	if err := attribs.Validate(); err != nil {
		return nil, fmt.Errorf("vector tile %s: %w", path, err)
	}

	if math.IsInf(minHeight, 1) {
		minHeight, maxHeight = 0, 0
	}
	vectors.Region = tile.BoundRegion(minHeight, maxHeight)
	return vectors, nil
}

func shapePolylines(shape shp.Shape, conv converters.CoordinateConverter, srid int) ([][]geometry.Cartographic, error) {
	switch s := shape.(type) {
	case *shp.PolyLine:
		return splitParts(s.Parts, s.Points, nil, conv, srid)
	case *shp.PolyLineZ:
		return splitParts(s.Parts, s.Points, s.ZArray, conv, srid)
	default:
		return nil, nil
	}
}

func splitParts(parts []int32, points []shp.Point, zs []float64, conv converters.CoordinateConverter, srid int) ([][]geometry.Cartographic, error) {
	var lines [][]geometry.Cartographic
	for p := 0; p < len(parts); p++ {
		start := int(parts[p])
		end := len(points)
		if p+1 < len(parts) {
			end = int(parts[p+1])
		}

		line := make([]geometry.Cartographic, 0, end-start)
		for i := start; i < end; i++ {
			height := 0.0
			if zs != nil && i < len(zs) {
				height = zs[i]
			}
			c, err := conv.ToWGS84Geodetic(srid, points[i].X, points[i].Y, height)
			if err != nil {
				return nil, err
			}
			line = append(line, c)
		}
		if len(line) > 1 {
			lines = append(lines, line)
		}
	}
	return lines, nil
}
