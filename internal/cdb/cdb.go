package cdb

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/golang/glog"

	"github.com/FLYPoPo7/cdb-to-3dtiles/internal/converters"
	"github.com/FLYPoPo7/cdb-to-3dtiles/tools"
)

// CDB reads a Common Database directory tree. Geocells and tiles are
// enumerated in sorted order so conversions are deterministic.
type CDB struct {
	root      string
	finder    tools.FileFinder
	converter converters.CoordinateConverter
	srid      int
}

// Open verifies that the given path looks like a CDB root (it must contain a
// Tiles directory). Vector coordinates are normalized from srid to geodetic
// WGS84 through the converter.
func Open(root string, finder tools.FileFinder, converter converters.CoordinateConverter, srid int) (*CDB, error) {
	tilesDir := filepath.Join(root, "Tiles")
	info, err := os.Stat(tilesDir)
	if err != nil || !info.IsDir() {
		return nil, fmt.Errorf("%s is not a CDB root: missing Tiles directory", root)
	}
	return &CDB{root: root, finder: finder, converter: converter, srid: srid}, nil
}

func (c *CDB) tilesDir() string {
	return filepath.Join(c.root, "Tiles")
}

// ForEachGeoCell invokes fn for every geocell present under Tiles, in sorted
// order of the latitude directory names, then of the longitude directory
// names (lexical order, e.g. "N05" before "S09").
func (c *CDB) ForEachGeoCell(fn func(GeoCell) error) error {
	for _, latDir := range c.finder.GetSubdirectories(c.tilesDir()) {
		lonParent := filepath.Join(c.tilesDir(), latDir)
		for _, lonDir := range c.finder.GetSubdirectories(lonParent) {
			cell, err := ParseGeoCellDirs(latDir, lonDir)
			if err != nil {
				glog.Warningf("skipping directory %s/%s: %v", latDir, lonDir, err)
				continue
			}
			if err := fn(cell); err != nil {
				return err
			}
		}
	}
	return nil
}

// forEachDatasetTile enumerates parseable tile files of one dataset in a
// geocell. Unreadable tiles are logged and skipped; the enumeration
// continues.
func (c *CDB) forEachDatasetTile(cell GeoCell, dataset Dataset, ext string, fn func(Tile, string) error) error {
	dir := filepath.Join(c.tilesDir(), cell.RelativePath(), dataset.InputDir())
	if _, err := os.Stat(dir); err != nil {
		return nil
	}

	for _, path := range c.finder.GetFilesWithExtension(dir, ext) {
		name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
		tile, err := ParseTileFilename(name)
		if err != nil {
			glog.V(1).Infof("skipping %s: %v", path, err)
			continue
		}
		if tile.Dataset != dataset {
			continue
		}
		if err := fn(tile, path); err != nil {
			return err
		}
	}
	return nil
}

// ImageryPath locates the imagery tile matching a terrain tile's address,
// trying the extensions .jp2, .jpg, .png and .tif in that order.
func (c *CDB) ImageryPath(tile Tile) (string, bool) {
	imagery := tile
	imagery.Dataset = DatasetImagery
	base := filepath.Join(c.tilesDir(), tile.GeoCell.RelativePath(), DatasetImagery.InputDir())
	for _, ext := range []string{".jp2", ".jpg", ".png", ".tif"} {
		path := filepath.Join(base, imagery.Filename()+ext)
		if _, err := os.Stat(path); err == nil {
			return path, true
		}
	}
	return "", false
}

// ForEachElevationTile yields the elevation tiles of a geocell.
func (c *CDB) ForEachElevationTile(cell GeoCell, fn func(*Elevation) error) error {
	return c.forEachDatasetTile(cell, DatasetElevation, ".tif", func(tile Tile, path string) error {
		elevation, err := loadElevation(path, tile)
		if err != nil {
			glog.Warningf("skipping elevation tile %s: %v", path, err)
			return nil
		}
		return fn(elevation)
	})
}

func (c *CDB) forEachNetworkTile(cell GeoCell, dataset Dataset, fn func(*GeometryVectors) error) error {
	return c.forEachDatasetTile(cell, dataset, ".shp", func(tile Tile, path string) error {
		vectors, err := loadGeometryVectors(path, tile, c.converter, c.srid)
		if err != nil {
			glog.Warningf("skipping vector tile %s: %v", path, err)
			return nil
		}
		if len(vectors.Polylines) == 0 {
			return nil
		}
		return fn(vectors)
	})
}

// ForEachRoadNetworkTile yields the road network tiles of a geocell.
func (c *CDB) ForEachRoadNetworkTile(cell GeoCell, fn func(*GeometryVectors) error) error {
	return c.forEachNetworkTile(cell, DatasetRoadNetwork, fn)
}

// ForEachRailRoadNetworkTile yields the railroad network tiles of a geocell.
func (c *CDB) ForEachRailRoadNetworkTile(cell GeoCell, fn func(*GeometryVectors) error) error {
	return c.forEachNetworkTile(cell, DatasetRailRoadNetwork, fn)
}

// ForEachPowerlineNetworkTile yields the powerline network tiles of a geocell.
func (c *CDB) ForEachPowerlineNetworkTile(cell GeoCell, fn func(*GeometryVectors) error) error {
	return c.forEachNetworkTile(cell, DatasetPowerlineNetwork, fn)
}

// ForEachHydrographyNetworkTile yields the hydrography network tiles of a
// geocell.
func (c *CDB) ForEachHydrographyNetworkTile(cell GeoCell, fn func(*GeometryVectors) error) error {
	return c.forEachNetworkTile(cell, DatasetHydrographyNetwork, fn)
}

// ForEachGTModelTile yields the geotypical model tiles of a geocell.
func (c *CDB) ForEachGTModelTile(cell GeoCell, fn func(*GTModels) error) error {
	return c.forEachDatasetTile(cell, DatasetGTFeature, ".shp", func(tile Tile, path string) error {
		models, err := loadGTModels(path, tile, c.converter, c.srid)
		if err != nil {
			glog.Warningf("skipping GT model tile %s: %v", path, err)
			return nil
		}
		if len(models.Positions) == 0 {
			return nil
		}
		return fn(models)
	})
}

// ForEachGSModelTile yields the geospecific model tiles of a geocell.
func (c *CDB) ForEachGSModelTile(cell GeoCell, fn func(*GSModels) error) error {
	return c.forEachDatasetTile(cell, DatasetGSFeature, ".shp", func(tile Tile, path string) error {
		models, err := loadGSModels(path, tile, c.converter, c.srid)
		if err != nil {
			glog.Warningf("skipping GS model tile %s: %v", path, err)
			return nil
		}
		if len(models.Positions) == 0 {
			return nil
		}
		return fn(models)
	})
}
