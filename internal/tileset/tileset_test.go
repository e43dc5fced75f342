package tileset

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/FLYPoPo7/cdb-to-3dtiles/internal/cdb"
	"github.com/FLYPoPo7/cdb-to-3dtiles/internal/geometry"
)

func elevationTile(level, uref, rref int) cdb.Tile {
	return cdb.Tile{
		GeoCell: cdb.GeoCell{Latitude: 32, Longitude: 118},
		Dataset: cdb.DatasetElevation,
		CS1:     1,
		CS2:     1,
		Level:   level,
		UREF:    uref,
		RREF:    rref,
	}
}

func TestInsertMaterializesAncestors(t *testing.T) {
	ts := New()
	tile := elevationTile(2, 3, 1)
	region := tile.BoundRegion(0, 50)

	require.NoError(t, ts.Insert(tile, tile.ContentURI(".b3dm"), region))

	root := ts.Root()
	require.NotNil(t, root)
	require.Equal(t, cdb.MinLevel, root.Tile.Level)
	require.Empty(t, root.ContentURI)

	// a single chain of structural nodes leads from the root to the tile
	node := root
	depth := 0
	for len(node.Children()) > 0 {
		children := node.Children()
		require.Len(t, children, 1)
		node = children[0]
		depth++
	}
	require.Equal(t, 2-cdb.MinLevel, depth)
	require.Equal(t, tile, node.Tile)
	require.Equal(t, tile.ContentURI(".b3dm"), node.ContentURI)

	// ancestors picked up the inserted region
	require.True(t, root.HasRegion)
	require.True(t, root.Region.Contains(region))
}

func TestInsertRejectsInvalidTopology(t *testing.T) {
	ts := New()
	bad := elevationTile(1, 2, 0) // UREF outside the level 1 grid
	err := ts.Insert(bad, "x.b3dm", bad.BoundRegion(0, 0))
	require.ErrorIs(t, err, ErrInvalidTopology)
	require.True(t, ts.Empty())
}

func TestWriteTilesetJSONGeometricErrorHalving(t *testing.T) {
	ts := New()
	for _, tile := range []cdb.Tile{
		elevationTile(0, 0, 0),
		elevationTile(1, 0, 0),
		elevationTile(1, 1, 1),
		elevationTile(2, 0, 1),
	} {
		require.NoError(t, ts.Insert(tile, tile.ContentURI(".b3dm"), tile.BoundRegion(0, 100)))
	}

	path := filepath.Join(t.TempDir(), "tileset.json")
	require.NoError(t, ts.WriteTilesetJSON(path, RefineReplace))
	require.Equal(t, path, ts.FlushedPath)

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var doc TilesetJSON
	require.NoError(t, json.Unmarshal(data, &doc))
	require.Equal(t, "1.0", doc.Asset.Version)
	require.Equal(t, MaxGeometricError, doc.GeometricError)
	require.Equal(t, string(RefineReplace), doc.Root.Refine)
	require.Equal(t, MaxGeometricError, doc.Root.GeometricError)

	var walk func(tile TileJSON)
	walk = func(tile TileJSON) {
		for _, child := range tile.Children {
			require.InEpsilon(t, tile.GeometricError, 2*child.GeometricError, 1e-9)
			require.True(t, regionOf(tile).Contains(regionOf(child)),
				"child region outside parent region")
			walk(child)
		}
	}
	walk(doc.Root)
}

func regionOf(tile TileJSON) geometry.BoundingRegion {
	r := tile.BoundingVolume.Region
	return geometry.BoundingRegion{
		Rectangle: geometry.Rectangle{West: r[0], South: r[1], East: r[2], North: r[3]},
		MinHeight: r[4],
		MaxHeight: r[5],
	}
}

func TestWriteTilesetJSONContentRegions(t *testing.T) {
	ts := New()
	tile := elevationTile(0, 0, 0)
	region := tile.BoundRegion(0, 100)
	require.NoError(t, ts.Insert(tile, tile.ContentURI(".b3dm"), region))

	// strictly tighter content region is emitted
	tighter := tile.BoundRegion(10, 90)
	ts.SetContentRegion(tile, tighter)

	path := filepath.Join(t.TempDir(), "tileset.json")
	require.NoError(t, ts.WriteTilesetJSON(path, RefineReplace))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var doc TilesetJSON
	require.NoError(t, json.Unmarshal(data, &doc))

	node := doc.Root
	for len(node.Children) > 0 {
		require.Nil(t, node.Content)
		node = node.Children[0]
	}
	require.NotNil(t, node.Content)
	require.Equal(t, tile.ContentURI(".b3dm"), node.Content.URI)
	require.NotNil(t, node.Content.BoundingVolume)
	require.Equal(t, tighter.ToArray(), node.Content.BoundingVolume.Region)
}

func TestParentImageryCache(t *testing.T) {
	ts := New()
	parent := elevationTile(0, 0, 0)
	child := elevationTile(2, 1, 1)

	_, ok := ts.ParentImagery(child)
	require.False(t, ok)

	texture := cdb.Texture{Path: "N32E118_D004_S001_T001_L00_U0_R0.jp2", Width: 1024, Height: 1024}
	ts.CacheParentImagery(parent, texture)

	got, ok := ts.ParentImagery(child)
	require.True(t, ok)
	require.Equal(t, texture, got)

	// the tile's own entry is not returned for itself, only ancestors
	_, ok = ts.ParentImagery(parent)
	require.False(t, ok)

	ts.DropImageryCache()
	_, ok = ts.ParentImagery(child)
	require.False(t, ok)
}
