// Package mesh produces the GLB payloads embedded in B3DM tiles. Mesh and
// texture encoding proper is delegated to the glTF writer; this package only
// assembles geometry.
package mesh

import (
	"math"

	"github.com/FLYPoPo7/cdb-to-3dtiles/internal/geometry"
)

// Mesh is renderable geometry with positions relative to an RTC center in
// earth-centered cartesian coordinates.
type Mesh struct {
	Center    geometry.Vec3
	Positions [][3]float32
	Normals   [][3]float32
	Indices   []uint32
	Lines     bool
}

// FromHeightGrid triangulates a uniform elevation grid over a geodetic
// rectangle. The step controls decimation: a step of 1 keeps every sample.
func FromHeightGrid(heights []float32, width, height int, rect geometry.Rectangle, step int, withNormals bool) *Mesh {
	if step < 1 {
		step = 1
	}

	cols := (width-1)/step + 1
	rows := (height-1)/step + 1

	center := geometry.WGS84.CartographicToCartesian(geometry.Cartographic{
		Longitude: (rect.West + rect.East) / 2,
		Latitude:  (rect.South + rect.North) / 2,
	})
	m := &Mesh{Center: center}

	world := make([]geometry.Vec3, 0, rows*cols)
	for row := 0; row < rows; row++ {
		gridRow := min(row*step, height-1)
		// raster rows run north to south
		lat := rect.North - (rect.North-rect.South)*float64(gridRow)/float64(height-1)
		for col := 0; col < cols; col++ {
			gridCol := min(col*step, width-1)
			lon := rect.West + (rect.East-rect.West)*float64(gridCol)/float64(width-1)

			p := geometry.WGS84.CartographicToCartesian(geometry.Cartographic{
				Longitude: lon,
				Latitude:  lat,
				Height:    float64(heights[gridRow*width+gridCol]),
			})
			world = append(world, p)
			rtc := p.Sub(center)
			m.Positions = append(m.Positions, [3]float32{float32(rtc.X), float32(rtc.Y), float32(rtc.Z)})
		}
	}

	for row := 0; row < rows-1; row++ {
		for col := 0; col < cols-1; col++ {
			i0 := uint32(row*cols + col)
			i1 := i0 + 1
			i2 := i0 + uint32(cols)
			i3 := i2 + 1
			m.Indices = append(m.Indices, i0, i2, i1, i1, i2, i3)
		}
	}

	if withNormals {
		m.Normals = accumulateNormals(world, m.Indices)
	}
	return m
}

// FromPolylines builds line geometry for a vector network tile.
func FromPolylines(lines [][]geometry.Cartographic) *Mesh {
	var sum geometry.Vec3
	count := 0
	for _, line := range lines {
		for _, c := range line {
			sum = sum.Add(geometry.WGS84.CartographicToCartesian(c))
			count++
		}
	}
	if count == 0 {
		return &Mesh{Lines: true}
	}
	center := sum.Scale(1.0 / float64(count))

	m := &Mesh{Center: center, Lines: true}
	for _, line := range lines {
		base := uint32(len(m.Positions))
		for _, c := range line {
			rtc := geometry.WGS84.CartographicToCartesian(c).Sub(center)
			m.Positions = append(m.Positions, [3]float32{float32(rtc.X), float32(rtc.Y), float32(rtc.Z)})
		}
		for i := 0; i < len(line)-1; i++ {
			m.Indices = append(m.Indices, base+uint32(i), base+uint32(i)+1)
		}
	}
	return m
}

// Markers builds small axis-aligned marker boxes at the given anchor points.
// Used for geospecific model payloads whose source geometry is decoded by a
// delegated plugin.
func Markers(positions []geometry.Cartographic, size float64) *Mesh {
	if len(positions) == 0 {
		return &Mesh{}
	}

	var sum geometry.Vec3
	for _, c := range positions {
		sum = sum.Add(geometry.WGS84.CartographicToCartesian(c))
	}
	center := sum.Scale(1.0 / float64(len(positions)))

	m := &Mesh{Center: center}
	h := float32(size / 2)
	corners := [8][3]float32{
		{-h, -h, -h}, {h, -h, -h}, {h, h, -h}, {-h, h, -h},
		{-h, -h, h}, {h, -h, h}, {h, h, h}, {-h, h, h},
	}
	faces := [][4]uint32{
		{0, 1, 2, 3}, {4, 7, 6, 5}, {0, 4, 5, 1},
		{1, 5, 6, 2}, {2, 6, 7, 3}, {3, 7, 4, 0},
	}

	for _, c := range positions {
		rtc := geometry.WGS84.CartographicToCartesian(c).Sub(center)
		base := uint32(len(m.Positions))
		for _, corner := range corners {
			m.Positions = append(m.Positions, [3]float32{
				float32(rtc.X) + corner[0],
				float32(rtc.Y) + corner[1],
				float32(rtc.Z) + corner[2],
			})
		}
		for _, f := range faces {
			m.Indices = append(m.Indices,
				base+f[0], base+f[1], base+f[2],
				base+f[0], base+f[2], base+f[3])
		}
	}
	return m
}

func accumulateNormals(world []geometry.Vec3, indices []uint32) [][3]float32 {
	acc := make([]geometry.Vec3, len(world))
	for i := 0; i+2 < len(indices); i += 3 {
		a, b, c := world[indices[i]], world[indices[i+1]], world[indices[i+2]]
		n := b.Sub(a).Cross(c.Sub(a))
		acc[indices[i]] = acc[indices[i]].Add(n)
		acc[indices[i+1]] = acc[indices[i+1]].Add(n)
		acc[indices[i+2]] = acc[indices[i+2]].Add(n)
	}

	normals := make([][3]float32, len(world))
	for i, n := range acc {
		n = n.Normalize()
		normals[i] = [3]float32{float32(n.X), float32(n.Y), float32(n.Z)}
	}
	return normals
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}

// StepForError picks a decimation step so neighbouring samples stay within
// the requested metric error for a tile of the given ground resolution.
func StepForError(decimateError, groundResolution float64) int {
	if decimateError <= 0 || groundResolution <= 0 {
		return 1
	}
	step := int(math.Floor(decimateError/groundResolution)) + 1
	if step < 1 {
		step = 1
	}
	return step
}
