package mesh

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/FLYPoPo7/cdb-to-3dtiles/internal/geometry"
)

func TestFromHeightGrid(t *testing.T) {
	rect := geometry.NewRectangleFromDegrees(118, 32, 119, 33)
	heights := make([]float32, 5*5)
	for i := range heights {
		heights[i] = 100
	}

	m := FromHeightGrid(heights, 5, 5, rect, 1, false)
	require.Len(t, m.Positions, 25)
	// 4x4 quads, two triangles each
	require.Len(t, m.Indices, 4*4*6)
	require.Empty(t, m.Normals)
	require.False(t, m.Lines)

	for _, idx := range m.Indices {
		require.Less(t, int(idx), len(m.Positions))
	}

	// positions are centered on the tile
	var sum [3]float64
	for _, p := range m.Positions {
		sum[0] += float64(p[0])
		sum[1] += float64(p[1])
		sum[2] += float64(p[2])
	}
	for k := 0; k < 3; k++ {
		require.InDelta(t, 0, sum[k]/float64(len(m.Positions)), 2000)
	}
}

func TestFromHeightGridDecimation(t *testing.T) {
	rect := geometry.NewRectangleFromDegrees(118, 32, 119, 33)
	heights := make([]float32, 9*9)

	full := FromHeightGrid(heights, 9, 9, rect, 1, false)
	decimated := FromHeightGrid(heights, 9, 9, rect, 2, false)
	require.Len(t, full.Positions, 81)
	require.Len(t, decimated.Positions, 25)
	require.Less(t, len(decimated.Indices), len(full.Indices))
}

func TestFromHeightGridNormals(t *testing.T) {
	rect := geometry.NewRectangleFromDegrees(0, 0, 1, 1)
	heights := make([]float32, 3*3)

	m := FromHeightGrid(heights, 3, 3, rect, 1, true)
	require.Len(t, m.Normals, len(m.Positions))
	for _, n := range m.Normals {
		length := float64(n[0])*float64(n[0]) + float64(n[1])*float64(n[1]) + float64(n[2])*float64(n[2])
		require.InDelta(t, 1, length, 1e-3)
	}
}

func TestFromPolylines(t *testing.T) {
	lines := [][]geometry.Cartographic{
		{
			geometry.NewCartographicFromDegrees(118.1, 32.1, 5),
			geometry.NewCartographicFromDegrees(118.2, 32.2, 5),
			geometry.NewCartographicFromDegrees(118.3, 32.2, 5),
		},
		{
			geometry.NewCartographicFromDegrees(118.5, 32.5, 0),
			geometry.NewCartographicFromDegrees(118.6, 32.5, 0),
		},
	}

	m := FromPolylines(lines)
	require.True(t, m.Lines)
	require.Len(t, m.Positions, 5)
	// two segments in the first line, one in the second
	require.Len(t, m.Indices, 6)
	// segments never bridge the two polylines
	require.Equal(t, []uint32{0, 1, 1, 2, 3, 4}, m.Indices)
}

func TestMarkers(t *testing.T) {
	positions := []geometry.Cartographic{
		geometry.NewCartographicFromDegrees(118.1, 32.1, 10),
		geometry.NewCartographicFromDegrees(118.2, 32.1, 12),
	}

	m := Markers(positions, 10)
	require.Len(t, m.Positions, 16)
	require.Len(t, m.Indices, 2*6*6)
}

func TestStepForError(t *testing.T) {
	require.Equal(t, 1, StepForError(0, 30))
	require.Equal(t, 1, StepForError(10, 0))
	require.Equal(t, 1, StepForError(10, 30))
	require.Equal(t, 3, StepForError(60, 30))
}
