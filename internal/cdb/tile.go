package cdb

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strconv"

	"github.com/FLYPoPo7/cdb-to-3dtiles/internal/geometry"
)

// MinLevel is the coarsest CDB level of detail. Negative levels aggregate
// whole geocells; tileset collections are rooted here.
const MinLevel = -10

// MaxLevel is the finest CDB level of detail.
const MaxLevel = 23

// Tile addresses one CDB tile: a geocell, a dataset, its two component
// selectors, a signed level of detail and the row (UREF) and column (RREF)
// indices inside the geocell. For level >= 0 the geocell is divided into a
// 2^level x 2^level grid; for negative levels a single tile covers
// 2^-level x 2^-level geocells starting at the geocell's south-west corner.
type Tile struct {
	GeoCell GeoCell
	Dataset Dataset
	CS1     int
	CS2     int
	Level   int
	UREF    int
	RREF    int
}

// Rectangle computes the geodetic bounds of the tile from its address.
func (t Tile) Rectangle() geometry.Rectangle {
	cell := t.GeoCell.Rectangle()
	if t.Level < 0 {
		scale := float64(uint(1) << uint(-t.Level))
		return geometry.Rectangle{
			West:  cell.West,
			South: cell.South,
			East:  cell.West + (cell.East-cell.West)*scale,
			North: cell.South + (cell.North-cell.South)*scale,
		}
	}

	n := float64(uint(1) << uint(t.Level))
	dLon := (cell.East - cell.West) / n
	dLat := (cell.North - cell.South) / n
	west := cell.West + float64(t.RREF)*dLon
	south := cell.South + float64(t.UREF)*dLat
	return geometry.Rectangle{West: west, South: south, East: west + dLon, North: south + dLat}
}

// BoundRegion extrudes the tile rectangle between the given heights.
func (t Tile) BoundRegion(minHeight, maxHeight float64) geometry.BoundingRegion {
	return geometry.BoundingRegion{Rectangle: t.Rectangle(), MinHeight: minHeight, MaxHeight: maxHeight}
}

// Parent returns the address of the tile one level coarser, or false at
// MinLevel.
func (t Tile) Parent() (Tile, bool) {
	if t.Level <= MinLevel {
		return Tile{}, false
	}
	p := t
	p.Level--
	if t.Level > 0 {
		p.UREF = t.UREF / 2
		p.RREF = t.RREF / 2
	} else {
		p.UREF = 0
		p.RREF = 0
	}
	return p, true
}

// Children returns the four addresses one level finer. Only meaningful for
// level >= 0 tiles; their rectangles exactly partition the parent's.
func (t Tile) Children() [4]Tile {
	var children [4]Tile
	for i := 0; i < 4; i++ {
		c := t
		c.Level++
		c.UREF = t.UREF*2 + i/2
		c.RREF = t.RREF*2 + i%2
		children[i] = c
	}
	return children
}

func (t Tile) levelName() string {
	if t.Level < 0 {
		return fmt.Sprintf("LC%02d", -t.Level)
	}
	return fmt.Sprintf("L%02d", t.Level)
}

// Filename is the canonical CDB tile name without extension, e.g.
// "N32E118_D001_S001_T001_L02_U1_R3".
func (t Tile) Filename() string {
	return fmt.Sprintf("%s_D%03d_S%03d_T%03d_%s_U%d_R%d",
		t.GeoCell.Name(), int(t.Dataset), t.CS1, t.CS2, t.levelName(), t.UREF, t.RREF)
}

// ComponentDir is the component-selector directory under the dataset output
// directory.
func (t Tile) ComponentDir() string {
	return fmt.Sprintf("%d_%d", t.CS1, t.CS2)
}

// RelativePath is the tile payload path under the output tree, relative to
// the output root and without extension:
// {geocell}/{DatasetName}/{CS1}_{CS2}/{filename}.
func (t Tile) RelativePath() string {
	return filepath.Join(t.GeoCell.RelativePath(), t.Dataset.Name(), t.ComponentDir(), t.Filename())
}

// ContentURI is the payload reference recorded in the collection tileset
// JSON, relative to the directory the tileset JSON is written to.
func (t Tile) ContentURI(ext string) string {
	return t.Filename() + ext
}

var tileFilenameRe = regexp.MustCompile(
	`^([NS]\d+)([EW]\d+)_D(\d{3})_S(\d{3})_T(\d{3})_(LC?\d{2})_U(\d+)_R(\d+)$`)

// ParseTileFilename parses a canonical CDB tile filename (without extension)
// into a Tile address.
func ParseTileFilename(name string) (Tile, error) {
	m := tileFilenameRe.FindStringSubmatch(name)
	if m == nil {
		return Tile{}, fmt.Errorf("malformed tile filename %q", name)
	}

	cell, err := ParseGeoCellDirs(m[1], m[2])
	if err != nil {
		return Tile{}, err
	}

	dataset, _ := strconv.Atoi(m[3])
	cs1, _ := strconv.Atoi(m[4])
	cs2, _ := strconv.Atoi(m[5])

	var level int
	if m[6][1] == 'C' {
		level, _ = strconv.Atoi(m[6][2:])
		level = -level
	} else {
		level, _ = strconv.Atoi(m[6][1:])
	}

	uref, _ := strconv.Atoi(m[7])
	rref, _ := strconv.Atoi(m[8])

	tile := Tile{
		GeoCell: cell,
		Dataset: Dataset(dataset),
		CS1:     cs1,
		CS2:     cs2,
		Level:   level,
		UREF:    uref,
		RREF:    rref,
	}
	if err := tile.Validate(); err != nil {
		return Tile{}, err
	}
	return tile, nil
}

// Validate checks that the address is internally consistent: level in range
// and UREF/RREF inside the level grid.
func (t Tile) Validate() error {
	if t.Level < MinLevel || t.Level > MaxLevel {
		return fmt.Errorf("tile %s: level %d out of range", t.Filename(), t.Level)
	}
	if t.Level < 0 {
		if t.UREF != 0 || t.RREF != 0 {
			return fmt.Errorf("tile %s: negative level requires U0 R0", t.Filename())
		}
		return nil
	}
	n := 1 << uint(t.Level)
	if t.UREF < 0 || t.UREF >= n || t.RREF < 0 || t.RREF >= n {
		return fmt.Errorf("tile %s: UREF/RREF out of range for level %d", t.Filename(), t.Level)
	}
	return nil
}
