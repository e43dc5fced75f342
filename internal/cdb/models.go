package cdb

import (
	"fmt"
	"math"
	"path/filepath"

	"github.com/jonas-p/go-shp"

	"github.com/FLYPoPo7/cdb-to-3dtiles/internal/converters"
	"github.com/FLYPoPo7/cdb-to-3dtiles/internal/geometry"
)

// GTModels is one geotypical-model tile: a batch of point features that all
// instance models from the shared GTModel library. Each instance carries a
// geodetic position, a heading and per-axis scales.
type GTModels struct {
	Tile       Tile
	Positions  []geometry.Cartographic
	Scales     [][3]float32
	Headings   []float64
	Attributes *InstancesAttributes
	// ModelURI references the external glTF asset of the instanced model,
	// relative to the tile payload directory.
	ModelURI string
	Region   geometry.BoundingRegion
}

// GSModels is one geospecific-model tile: unique geometry tied to its
// location, batched into a single payload with per-feature attributes.
type GSModels struct {
	Tile       Tile
	Positions  []geometry.Cartographic
	Attributes *InstancesAttributes
	Region     geometry.BoundingRegion
}

// loadModelFeatures reads a point-feature shapefile shared by the GT and GS
// model paths.
func loadModelFeatures(path string, conv converters.CoordinateConverter, srid int) ([]geometry.Cartographic, *InstancesAttributes, error) {
	r, err := shp.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open model features %s: %w", path, err)
	}
	defer r.Close()

	fields := r.Fields()
	attribs := NewInstancesAttributes()
	var positions []geometry.Cartographic

	row := 0
	for r.Next() {
		_, shape := r.Shape()
		if err := attribs.readAttributeRow(r, row, fields); err != nil {
			return nil, nil, err
		}
		row++

		var x, y, z float64
		switch s := shape.(type) {
		case *shp.Point:
			x, y = s.X, s.Y
		case *shp.PointZ:
			x, y, z = s.X, s.Y, s.Z
		default:
			continue
		}
		c, err := conv.ToWGS84Geodetic(srid, x, y, z)
		if err != nil {
			return nil, nil, fmt.Errorf("model features %s: %w", path, err)
		}
		positions = append(positions, c)
	}
	if err := r.Err(); err != nil {
		return nil, nil, fmt.Errorf("read model features %s: %w", path, err)
	}
	if len(positions) != attribs.InstancesCount() {
		return nil, nil, fmt.Errorf("model features %s: %d positions for %d attribute rows",
			path, len(positions), attribs.InstancesCount())
	}
	if err := attribs.Validate(); err != nil {
		return nil, nil, fmt.Errorf("model features %s: %w", path, err)
	}
	return positions, attribs, nil
}

func loadGTModels(path string, tile Tile, conv converters.CoordinateConverter, srid int) (*GTModels, error) {
	positions, attribs, err := loadModelFeatures(path, conv, srid)
	if err != nil {
		return nil, err
	}

	models := &GTModels{
		Tile:       tile,
		Positions:  positions,
		Attributes: attribs,
		ModelURI:   filepath.Base(path[:len(path)-len(filepath.Ext(path))]) + ".gltf",
	}

	minHeight := math.Inf(1)
	maxHeight := math.Inf(-1)
	for i, pos := range positions {
		// AO1 is the CDB orientation attribute, degrees clockwise from north.
		models.Headings = append(models.Headings, attribs.DoubleAt("AO1", i, 0))
		models.Scales = append(models.Scales, [3]float32{
			float32(attribs.DoubleAt("SCALX", i, 1)),
			float32(attribs.DoubleAt("SCALY", i, 1)),
			float32(attribs.DoubleAt("SCALZ", i, 1)),
		})
		minHeight = math.Min(minHeight, pos.Height)
		maxHeight = math.Max(maxHeight, pos.Height)
	}
	if math.IsInf(minHeight, 1) {
		minHeight, maxHeight = 0, 0
	}
	models.Region = tile.BoundRegion(minHeight, maxHeight+gtModelHeightPadding)
	return models, nil
}

func loadGSModels(path string, tile Tile, conv converters.CoordinateConverter, srid int) (*GSModels, error) {
	positions, attribs, err := loadModelFeatures(path, conv, srid)
	if err != nil {
		return nil, err
	}

	minHeight := math.Inf(1)
	maxHeight := math.Inf(-1)
	for _, pos := range positions {
		minHeight = math.Min(minHeight, pos.Height)
		maxHeight = math.Max(maxHeight, pos.Height)
	}
	if math.IsInf(minHeight, 1) {
		minHeight, maxHeight = 0, 0
	}

	return &GSModels{
		Tile:       tile,
		Positions:  positions,
		Attributes: attribs,
		Region:     tile.BoundRegion(minHeight, maxHeight+gsModelHeightPadding),
	}, nil
}

// Model bounding regions allow headroom above the anchor points since the
// feature attributes do not carry the model extents.
const (
	gtModelHeightPadding = 30.0
	gsModelHeightPadding = 100.0
)
