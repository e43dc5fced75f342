package cdb

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/FLYPoPo7/cdb-to-3dtiles/internal/geometry"
)

func TestGeoCellLongitudeExtent(t *testing.T) {
	tests := []struct {
		lat  int
		want int
	}{
		{lat: 0, want: 1},
		{lat: 49, want: 1},
		{lat: -50, want: 2},
		{lat: 50, want: 2},
		{lat: 69, want: 2},
		{lat: 70, want: 3},
		{lat: 75, want: 4},
		{lat: 80, want: 6},
		{lat: 89, want: 12},
		{lat: -90, want: 12},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("lat%d", tt.lat), func(t *testing.T) {
			cell := GeoCell{Latitude: tt.lat, Longitude: 0}
			require.Equal(t, tt.want, cell.LongitudeExtent())
		})
	}
}

func TestGeoCellRelativePath(t *testing.T) {
	require.Equal(t, "N32/E118", GeoCell{Latitude: 32, Longitude: 118}.RelativePath())
	require.Equal(t, "S09/W072", GeoCell{Latitude: -9, Longitude: -72}.RelativePath())
	require.Equal(t, "N32E118", GeoCell{Latitude: 32, Longitude: 118}.Name())
}

func TestParseGeoCellDirs(t *testing.T) {
	cell, err := ParseGeoCellDirs("N32", "E118")
	require.NoError(t, err)
	require.Equal(t, GeoCell{Latitude: 32, Longitude: 118}, cell)

	cell, err = ParseGeoCellDirs("S09", "W072")
	require.NoError(t, err)
	require.Equal(t, GeoCell{Latitude: -9, Longitude: -72}, cell)

	_, err = ParseGeoCellDirs("X32", "E118")
	require.Error(t, err)
}

func TestTileFilenameRoundTrip(t *testing.T) {
	tests := []Tile{
		{GeoCell: GeoCell{32, 118}, Dataset: DatasetElevation, CS1: 1, CS2: 1, Level: 2, UREF: 1, RREF: 3},
		{GeoCell: GeoCell{-9, -72}, Dataset: DatasetRoadNetwork, CS1: 2, CS2: 3, Level: 0, UREF: 0, RREF: 0},
		{GeoCell: GeoCell{32, 118}, Dataset: DatasetElevation, CS1: 1, CS2: 1, Level: -4, UREF: 0, RREF: 0},
	}
	for _, tile := range tests {
		t.Run(tile.Filename(), func(t *testing.T) {
			parsed, err := ParseTileFilename(tile.Filename())
			require.NoError(t, err)
			require.Equal(t, tile, parsed)
		})
	}
}

func TestParseTileFilenameRejectsMalformed(t *testing.T) {
	malformed := []string{
		"",
		"N32E118",
		"N32E118_D001_S001_T001_L02_U1",
		"N32E118_D001_S001_T001_L02_U4_R0",  // UREF outside the level 2 grid
		"N32E118_D001_S001_T001_LC02_U1_R0", // negative level requires U0 R0
	}
	for _, name := range malformed {
		t.Run(name, func(t *testing.T) {
			_, err := ParseTileFilename(name)
			require.Error(t, err)
		})
	}
}

func TestTileRectangle(t *testing.T) {
	cell := GeoCell{Latitude: 32, Longitude: 118}
	tile := Tile{GeoCell: cell, Dataset: DatasetElevation, Level: 1, UREF: 1, RREF: 0}

	rect := tile.Rectangle()
	require.InDelta(t, geometry.NewRectangleFromDegrees(118, 32.5, 118.5, 33).West, rect.West, 1e-12)
	require.InDelta(t, geometry.NewRectangleFromDegrees(118, 32.5, 118.5, 33).South, rect.South, 1e-12)
	require.InDelta(t, geometry.NewRectangleFromDegrees(118, 32.5, 118.5, 33).East, rect.East, 1e-12)
	require.InDelta(t, geometry.NewRectangleFromDegrees(118, 32.5, 118.5, 33).North, rect.North, 1e-12)
}

func TestTileNegativeLevelRectangle(t *testing.T) {
	cell := GeoCell{Latitude: 32, Longitude: 118}
	tile := Tile{GeoCell: cell, Level: -2}

	rect := tile.Rectangle()
	want := geometry.NewRectangleFromDegrees(118, 32, 122, 36)
	require.True(t, rect.Equals(want), "got %v want %v", rect, want)
}

// children rectangles partition the parent exactly
func TestTileChildrenPartitionParent(t *testing.T) {
	cell := GeoCell{Latitude: 50, Longitude: 6} // a 2 degree wide cell
	for level := 0; level < 4; level++ {
		n := 1 << uint(level)
		for uref := 0; uref < n; uref++ {
			for rref := 0; rref < n; rref++ {
				parent := Tile{GeoCell: cell, Level: level, UREF: uref, RREF: rref}
				parentRect := parent.Rectangle()

				union := parent.Children()[0].Rectangle()
				for _, child := range parent.Children() {
					childRect := child.Rectangle()
					require.True(t, parentRect.Contains(childRect),
						"child %s outside parent %s", child.Filename(), parent.Filename())

					back, ok := child.Parent()
					require.True(t, ok)
					require.Equal(t, parent, back)

					union = union.Union(childRect)
				}
				require.True(t, union.Equals(parentRect),
					"children of %s do not cover it exactly", parent.Filename())
			}
		}
	}
}

func TestTileParentChain(t *testing.T) {
	tile := Tile{GeoCell: GeoCell{32, 118}, Level: 2, UREF: 3, RREF: 1}

	parent, ok := tile.Parent()
	require.True(t, ok)
	require.Equal(t, Tile{GeoCell: GeoCell{32, 118}, Level: 1, UREF: 1, RREF: 0}, parent)

	// follow the chain down to the collection root
	steps := 0
	for {
		next, ok := tile.Parent()
		if !ok {
			break
		}
		tile = next
		steps++
	}
	require.Equal(t, MinLevel, tile.Level)
	require.Equal(t, 2-MinLevel, steps)
}

func TestParseDatasetCombination(t *testing.T) {
	name, cs1, cs2, err := ParseDatasetCombination("Elevation_1_1")
	require.NoError(t, err)
	require.Equal(t, "Elevation", name)
	require.Equal(t, 1, cs1)
	require.Equal(t, 1, cs2)

	tests := []string{
		"Elevation",
		"Elevation_1",
		"Elevation_x_1",
		"Elevation_1_x",
		"Bogus_1_1",
	}
	for _, spec := range tests {
		t.Run(spec, func(t *testing.T) {
			_, _, _, err := ParseDatasetCombination(spec)
			require.ErrorIs(t, err, ErrBadDatasetSpec)
		})
	}

	// the unrecognized-name error enumerates the allowed dataset names
	_, _, _, err = ParseDatasetCombination("Bogus_1_1")
	for _, allowed := range CombinableDatasetNames() {
		require.Contains(t, err.Error(), allowed)
	}
}
