package cdb

import (
	"fmt"
	"path/filepath"
	"strconv"

	"github.com/FLYPoPo7/cdb-to-3dtiles/internal/geometry"
)

// GeoCell identifies a CDB geodetic cell by the integer latitude and longitude
// of its south-west corner. Cells span one degree of latitude; their longitude
// extent widens towards the poles per the CDB zone table.
type GeoCell struct {
	Latitude  int
	Longitude int
}

// LongitudeExtent returns the width of the cell in degrees of longitude.
func (g GeoCell) LongitudeExtent() int {
	lat := g.Latitude
	switch {
	case lat >= 89 || lat < -89:
		return 12
	case lat >= 80 || lat < -80:
		return 6
	case lat >= 75 || lat < -75:
		return 4
	case lat >= 70 || lat < -70:
		return 3
	case lat >= 50 || lat < -50:
		return 2
	default:
		return 1
	}
}

// LatitudeExtent returns the height of the cell in degrees of latitude.
func (g GeoCell) LatitudeExtent() int {
	return 1
}

func (g GeoCell) Rectangle() geometry.Rectangle {
	return geometry.NewRectangleFromDegrees(
		float64(g.Longitude),
		float64(g.Latitude),
		float64(g.Longitude+g.LongitudeExtent()),
		float64(g.Latitude+g.LatitudeExtent()),
	)
}

func (g GeoCell) LatitudeDir() string {
	if g.Latitude < 0 {
		return fmt.Sprintf("S%02d", -g.Latitude)
	}
	return fmt.Sprintf("N%02d", g.Latitude)
}

func (g GeoCell) LongitudeDir() string {
	if g.Longitude < 0 {
		return fmt.Sprintf("W%03d", -g.Longitude)
	}
	return fmt.Sprintf("E%03d", g.Longitude)
}

// RelativePath is the canonical "N32/E118" style directory of the cell.
func (g GeoCell) RelativePath() string {
	return filepath.Join(g.LatitudeDir(), g.LongitudeDir())
}

// Name is the cell prefix used in tile filenames, e.g. "N32E118".
func (g GeoCell) Name() string {
	return g.LatitudeDir() + g.LongitudeDir()
}

// ParseGeoCellDirs parses the latitude and longitude directory names of a CDB
// tree ("N32", "E118") into a GeoCell.
func ParseGeoCellDirs(latDir, lonDir string) (GeoCell, error) {
	cell := GeoCell{}
	if len(latDir) < 2 || len(lonDir) < 2 {
		return cell, fmt.Errorf("malformed geocell directory %q/%q", latDir, lonDir)
	}

	lat, err := strconv.Atoi(latDir[1:])
	if err != nil {
		return cell, fmt.Errorf("malformed latitude directory %q: %w", latDir, err)
	}
	switch latDir[0] {
	case 'N':
	case 'S':
		lat = -lat
	default:
		return cell, fmt.Errorf("malformed latitude directory %q", latDir)
	}

	lon, err := strconv.Atoi(lonDir[1:])
	if err != nil {
		return cell, fmt.Errorf("malformed longitude directory %q: %w", lonDir, err)
	}
	switch lonDir[0] {
	case 'E':
	case 'W':
		lon = -lon
	default:
		return cell, fmt.Errorf("malformed longitude directory %q", lonDir)
	}

	cell.Latitude = lat
	cell.Longitude = lon
	return cell, nil
}
