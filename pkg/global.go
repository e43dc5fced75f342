package pkg

import (
	"github.com/golang/glog"
	"github.com/lukeroth/gdal"
)

// GlobalInitializer owns the process-wide raster library state: the GDAL
// driver registry and its image codec plugins. Create exactly one per run and
// Cleanup when done.
type GlobalInitializer struct{}

func NewGlobalInitializer() *GlobalInitializer {
	gdal.AllRegister()
	return &GlobalInitializer{}
}

func (g *GlobalInitializer) Cleanup() {
	// the GDAL registry has no teardown; flush buffered logs instead
	glog.Flush()
}
