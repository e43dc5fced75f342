package cdb

import (
	"fmt"

	"github.com/lukeroth/gdal"
)

// Texture is a decoded imagery tile kept for reuse when a child terrain tile
// needs its ancestor's texture.
type Texture struct {
	Path   string
	Width  int
	Height int
}

// LoadTexture opens an imagery raster through the GDAL registry. The pixel
// payload stays with GDAL; the converter only tracks identity and dimensions.
func LoadTexture(path string) (Texture, error) {
	ds, err := gdal.Open(path, gdal.ReadOnly)
	if err != nil {
		return Texture{}, fmt.Errorf("open imagery %s: %w", path, err)
	}
	defer ds.Close()

	return Texture{
		Path:   path,
		Width:  ds.RasterXSize(),
		Height: ds.RasterYSize(),
	}, nil
}
