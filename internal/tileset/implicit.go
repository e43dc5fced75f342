package tileset

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/FLYPoPo7/cdb-to-3dtiles/internal/morton"
	"github.com/FLYPoPo7/cdb-to-3dtiles/internal/tileformat"
	"github.com/FLYPoPo7/cdb-to-3dtiles/tools"
)

// SubtreeKey identifies one subtree by the level and grid position of its
// root tile.
type SubtreeKey struct {
	RootLevel int
	RootU     int
	RootR     int
}

func (k SubtreeKey) String() string {
	return fmt.Sprintf("%d_%d_%d", k.RootLevel, k.RootU, k.RootR)
}

// AvailabilityForest tracks the subtree availability bitmaps of one dataset
// within one geocell for the implicit tiling output mode. Subtrees are
// created lazily with zeroed bitmaps as tiles at new positions are marked.
type AvailabilityForest struct {
	levels   int
	subtrees map[SubtreeKey]*tileformat.Subtree
}

func NewAvailabilityForest(levels int) *AvailabilityForest {
	return &AvailabilityForest{
		levels:   levels,
		subtrees: make(map[SubtreeKey]*tileformat.Subtree),
	}
}

func (f *AvailabilityForest) subtree(key SubtreeKey) *tileformat.Subtree {
	s, ok := f.subtrees[key]
	if !ok {
		s = tileformat.NewSubtree(f.levels)
		f.subtrees[key] = s
	}
	return s
}

// levelOffset is the number of quadtree nodes above depth delta inside a
// subtree: (4^delta - 1) / 3.
func levelOffset(delta int) uint64 {
	return (uint64(1)<<uint(2*delta) - 1) / 3
}

// MarkTile records that the tile at (level, uref, rref) exists. The node bit
// of the tile and of every structural ancestor up to the subtree root is set;
// when the tile is itself a subtree root, the parent subtree's child-subtree
// availability is updated as well.
func (f *AvailabilityForest) MarkTile(level, uref, rref int) {
	if level < 0 {
		return
	}

	rootLevel := (level / f.levels) * f.levels
	delta := level - rootLevel
	key := SubtreeKey{
		RootLevel: rootLevel,
		RootU:     uref >> uint(delta),
		RootR:     rref >> uint(delta),
	}
	s := f.subtree(key)

	// the tile and its ancestors inside the subtree
	u, r := uref, rref
	for d := delta; d >= 0; d-- {
		localU := uint32(u & (1<<uint(d) - 1))
		localR := uint32(r & (1<<uint(d) - 1))
		bit := levelOffset(d) + morton.Encode(localU, localR)
		if s.NodeBit(bit) {
			break
		}
		s.SetNodeBit(bit)
		u >>= 1
		r >>= 1
	}

	// a tile at a subtree root is a child subtree of the level above
	if delta == 0 && level > 0 {
		parentKey := SubtreeKey{
			RootLevel: level - f.levels,
			RootU:     uref >> uint(f.levels),
			RootR:     rref >> uint(f.levels),
		}
		parent := f.subtree(parentKey)
		localU := uint32(uref & (1<<uint(f.levels) - 1))
		localR := uint32(rref & (1<<uint(f.levels) - 1))
		parent.SetChildBit(morton.Encode(localU, localR))
	}
}

// Keys returns the populated subtree keys in deterministic order.
func (f *AvailabilityForest) Keys() []SubtreeKey {
	keys := make([]SubtreeKey, 0, len(f.subtrees))
	for k := range f.subtrees {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].RootLevel != keys[j].RootLevel {
			return keys[i].RootLevel < keys[j].RootLevel
		}
		if keys[i].RootU != keys[j].RootU {
			return keys[i].RootU < keys[j].RootU
		}
		return keys[i].RootR < keys[j].RootR
	})
	return keys
}

// Subtree returns the subtree for a key, or nil.
func (f *AvailabilityForest) Subtree(key SubtreeKey) *tileformat.Subtree {
	return f.subtrees[key]
}

// Len reports the number of populated subtrees.
func (f *AvailabilityForest) Len() int {
	return len(f.subtrees)
}

// WriteSubtrees serializes every populated subtree under
// {dir}/{rootLevel}_{rootU}_{rootR}.subtree.
func (f *AvailabilityForest) WriteSubtrees(dir string) error {
	if len(f.subtrees) == 0 {
		return nil
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	for _, key := range f.Keys() {
		path := filepath.Join(dir, key.String()+".subtree")
		subtree := f.subtrees[key]
		err := tools.WriteBinaryFile(path, func(ws io.WriteSeeker) error {
			_, err := tileformat.WriteSubtree(ws, subtree)
			return err
		})
		if err != nil {
			return fmt.Errorf("write subtree %s: %w", path, err)
		}
	}
	return nil
}
