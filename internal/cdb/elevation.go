package cdb

import (
	"fmt"
	"math"

	"github.com/lukeroth/gdal"
)

// Elevation is one terrain tile: a uniform height grid read from the CDB
// elevation raster.
type Elevation struct {
	Tile      Tile
	Width     int
	Height    int
	Heights   []float32
	MinHeight float64
	MaxHeight float64
}

// loadElevation reads band 1 of an elevation raster into a height grid.
func loadElevation(path string, tile Tile) (*Elevation, error) {
	ds, err := gdal.Open(path, gdal.ReadOnly)
	if err != nil {
		return nil, fmt.Errorf("open elevation tile %s: %w", path, err)
	}
	defer ds.Close()

	width := ds.RasterXSize()
	height := ds.RasterYSize()
	if width <= 1 || height <= 1 {
		return nil, fmt.Errorf("elevation tile %s: raster %dx%d too small", path, width, height)
	}

	band := ds.RasterBand(1)
	heights := make([]float32, width*height)
	if err := band.IO(gdal.Read, 0, 0, width, height, heights, width, height, 0, 0); err != nil {
		return nil, fmt.Errorf("read elevation tile %s: %w", path, err)
	}

	noData, hasNoData := band.NoDataValue()

	minHeight := math.Inf(1)
	maxHeight := math.Inf(-1)
	for i, h := range heights {
		if hasNoData && float64(h) == noData {
			heights[i] = 0
			continue
		}
		minHeight = math.Min(minHeight, float64(h))
		maxHeight = math.Max(maxHeight, float64(h))
	}
	if math.IsInf(minHeight, 1) {
		minHeight, maxHeight = 0, 0
	}

	return &Elevation{
		Tile:      tile,
		Width:     width,
		Height:    height,
		Heights:   heights,
		MinHeight: minHeight,
		MaxHeight: maxHeight,
	}, nil
}

// At returns the height at grid position (row, col).
func (e *Elevation) At(row, col int) float32 {
	return e.Heights[row*e.Width+col]
}
