// Package tileset accumulates converted CDB tiles into per-dataset,
// per-geocell tileset collections and emits the 3D Tiles tileset JSON.
package tileset

import (
	"errors"
	"fmt"
	"sort"

	"github.com/FLYPoPo7/cdb-to-3dtiles/internal/cdb"
	"github.com/FLYPoPo7/cdb-to-3dtiles/internal/geometry"
)

// ErrInvalidTopology reports a tile whose rectangle is not contained in its
// structural parent's rectangle. The tile is skipped; conversion continues.
var ErrInvalidTopology = errors.New("invalid topology")

type nodeKey struct {
	level int
	uref  int
	rref  int
}

// Node is one tile of a collection quadtree. Structural nodes materialize a
// tile's ancestors and carry no content.
type Node struct {
	Tile          cdb.Tile
	Region        geometry.BoundingRegion
	HasRegion     bool
	ContentURI    string
	ContentRegion *geometry.BoundingRegion

	children map[nodeKey]*Node
}

// Children returns the node's children in deterministic (level, UREF, RREF)
// order.
func (n *Node) Children() []*Node {
	keys := make([]nodeKey, 0, len(n.children))
	for k := range n.children {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].level != keys[j].level {
			return keys[i].level < keys[j].level
		}
		if keys[i].uref != keys[j].uref {
			return keys[i].uref < keys[j].uref
		}
		return keys[i].rref < keys[j].rref
	})

	children := make([]*Node, len(keys))
	for i, k := range keys {
		children[i] = n.children[k]
	}
	return children
}

// Tileset is the sparse quadtree of one dataset within one geocell. Inserting
// a tile materializes all of its ancestors down to the collection root as
// structural nodes.
type Tileset struct {
	root  *Node
	nodes map[nodeKey]*Node

	parentImagery map[cdb.Tile]cdb.Texture

	// FlushedPath records where the collection JSON was written.
	FlushedPath string
}

func New() *Tileset {
	return &Tileset{
		nodes:         make(map[nodeKey]*Node),
		parentImagery: make(map[cdb.Tile]cdb.Texture),
	}
}

func (t *Tileset) Root() *Node {
	return t.root
}

func key(tile cdb.Tile) nodeKey {
	return nodeKey{level: tile.Level, uref: tile.UREF, rref: tile.RREF}
}

// Insert adds a tile with its payload reference and bounding region,
// materializing missing ancestors. It fails with ErrInvalidTopology when the
// tile's rectangle is not contained in its structural parent's rectangle.
func (t *Tileset) Insert(tile cdb.Tile, contentURI string, region geometry.BoundingRegion) error {
	if err := tile.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidTopology, err)
	}
	if parent, ok := tile.Parent(); ok {
		if !parent.Rectangle().Contains(tile.Rectangle()) {
			return fmt.Errorf("%w: tile %s is not contained in parent %s",
				ErrInvalidTopology, tile.Filename(), parent.Filename())
		}
	}

	node := t.materialize(tile)
	node.ContentURI = contentURI
	node.Region = region
	node.HasRegion = true

	// propagate the content region upward so structural ancestors bound
	// their subtrees
	for ancestor, ok := tile.Parent(); ok; ancestor, ok = ancestor.Parent() {
		parentNode := t.nodes[key(ancestor)]
		if parentNode.HasRegion {
			parentNode.Region = parentNode.Region.Union(region)
		} else {
			parentNode.Region = region
			parentNode.HasRegion = true
		}
	}
	return nil
}

// SetContentRegion attaches a content bounding volume tighter than the tile's
// own region.
func (t *Tileset) SetContentRegion(tile cdb.Tile, region geometry.BoundingRegion) {
	if node, ok := t.nodes[key(tile)]; ok {
		r := region
		node.ContentRegion = &r
	}
}

func (t *Tileset) materialize(tile cdb.Tile) *Node {
	if node, ok := t.nodes[key(tile)]; ok {
		return node
	}

	node := &Node{Tile: tile, children: make(map[nodeKey]*Node)}
	t.nodes[key(tile)] = node

	parent, ok := tile.Parent()
	if !ok {
		t.root = node
		return node
	}
	parentNode := t.materialize(parent)
	parentNode.children[key(tile)] = node
	return node
}

// Empty reports whether the collection has no tiles.
func (t *Tileset) Empty() bool {
	return t.root == nil
}

// Region returns the union region of the collection, valid when not empty.
func (t *Tileset) Region() geometry.BoundingRegion {
	if t.root == nil {
		return geometry.BoundingRegion{}
	}
	return t.root.Region
}

// CacheParentImagery remembers a decoded ancestor texture for reuse by
// descendant tiles of the same geocell.
func (t *Tileset) CacheParentImagery(tile cdb.Tile, texture cdb.Texture) {
	t.parentImagery[tile] = texture
}

// ParentImagery returns the nearest ancestor's cached texture.
func (t *Tileset) ParentImagery(tile cdb.Tile) (cdb.Texture, bool) {
	for ancestor, ok := tile.Parent(); ok; ancestor, ok = ancestor.Parent() {
		if texture, cached := t.parentImagery[ancestor]; cached {
			return texture, true
		}
	}
	return cdb.Texture{}, false
}

// DropImageryCache releases the cached ancestor textures. Called when the
// geocell is flushed.
func (t *Tileset) DropImageryCache() {
	t.parentImagery = make(map[cdb.Tile]cdb.Texture)
}
