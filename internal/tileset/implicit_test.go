package tileset

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/FLYPoPo7/cdb-to-3dtiles/internal/tileformat"
)

func TestMarkTileSetsAncestorBits(t *testing.T) {
	f := NewAvailabilityForest(4)
	f.MarkTile(2, 3, 1)

	require.Equal(t, 1, f.Len())
	s := f.Subtree(SubtreeKey{RootLevel: 0, RootU: 0, RootR: 0})
	require.NotNil(t, s)

	// the tile at depth 2 plus its two ancestors up to the subtree root
	require.Equal(t, uint64(3), s.AvailableNodeCount())
	require.True(t, s.NodeBit(0))  // root
	require.True(t, s.NodeBit(2))  // depth 1, local (1,0)
	require.True(t, s.NodeBit(12)) // depth 2, local (3,1)
	require.Equal(t, uint64(0), s.AvailableChildCount())
}

func TestMarkTileIsIdempotent(t *testing.T) {
	f := NewAvailabilityForest(4)
	f.MarkTile(3, 5, 2)
	first := f.Subtree(SubtreeKey{0, 0, 0}).AvailableNodeCount()
	f.MarkTile(3, 5, 2)
	require.Equal(t, first, f.Subtree(SubtreeKey{0, 0, 0}).AvailableNodeCount())
}

func TestMarkTileIgnoresNegativeLevels(t *testing.T) {
	f := NewAvailabilityForest(4)
	f.MarkTile(-3, 0, 0)
	require.Zero(t, f.Len())
}

func TestMarkTileAtSubtreeRootUpdatesParentChildAvailability(t *testing.T) {
	f := NewAvailabilityForest(4)
	f.MarkTile(4, 5, 9)

	require.Equal(t, 2, f.Len())

	child := f.Subtree(SubtreeKey{RootLevel: 4, RootU: 5, RootR: 9})
	require.NotNil(t, child)
	require.True(t, child.NodeBit(0))
	require.Equal(t, uint64(1), child.AvailableNodeCount())

	parent := f.Subtree(SubtreeKey{RootLevel: 0, RootU: 0, RootR: 0})
	require.NotNil(t, parent)
	require.Equal(t, uint64(1), parent.AvailableChildCount())
	// morton index of local (5, 9) inside the 16x16 child grid
	require.True(t, parent.ChildBit(0b10010011))
}

func TestWriteSubtrees(t *testing.T) {
	f := NewAvailabilityForest(4)
	f.MarkTile(0, 0, 0)
	f.MarkTile(4, 0, 0)

	dir := filepath.Join(t.TempDir(), "subtrees")
	require.NoError(t, f.WriteSubtrees(dir))

	for _, name := range []string{"0_0_0.subtree", "4_0_0.subtree"} {
		data, err := os.ReadFile(filepath.Join(dir, name))
		require.NoError(t, err, name)

		info, err := tileformat.ValidateSubtree(data)
		require.NoError(t, err, name)
		require.Equal(t, uint32(1), info.Version)
	}
}

func TestSubtreeKeysAreSorted(t *testing.T) {
	f := NewAvailabilityForest(2)
	f.MarkTile(2, 3, 1)
	f.MarkTile(2, 0, 2)
	f.MarkTile(0, 0, 0)

	keys := f.Keys()
	for i := 1; i < len(keys); i++ {
		prev, cur := keys[i-1], keys[i]
		less := prev.RootLevel < cur.RootLevel ||
			(prev.RootLevel == cur.RootLevel && (prev.RootU < cur.RootU ||
				(prev.RootU == cur.RootU && prev.RootR < cur.RootR)))
		require.True(t, less, "keys out of order: %v before %v", prev, cur)
	}
}
