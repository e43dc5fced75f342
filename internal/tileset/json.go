package tileset

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/FLYPoPo7/cdb-to-3dtiles/internal/geometry"
)

// MaxGeometricError is the geometric error of every tileset root. Each level
// of descent halves it; clients derive screen-space error from these numbers.
const MaxGeometricError = 300000.0

// RefineMode selects how a child tile refines its parent.
type RefineMode string

const (
	RefineAdd     RefineMode = "ADD"
	RefineReplace RefineMode = "REPLACE"
)

type Asset struct {
	Version string `json:"version"`
}

type BoundingVolume struct {
	Region [6]float64 `json:"region"`
}

type Content struct {
	URI            string          `json:"uri"`
	BoundingVolume *BoundingVolume `json:"boundingVolume,omitempty"`
}

type TileJSON struct {
	Refine         string         `json:"refine,omitempty"`
	GeometricError float64        `json:"geometricError"`
	BoundingVolume BoundingVolume `json:"boundingVolume"`
	Content        *Content       `json:"content,omitempty"`
	Children       []TileJSON     `json:"children,omitempty"`
}

type TilesetJSON struct {
	Asset          Asset    `json:"asset"`
	GeometricError float64  `json:"geometricError"`
	Root           TileJSON `json:"root"`
}

// WriteTilesetJSON emits the explicit-tree tileset document of one collection
// to path and records the path on the collection. Terrain and imagery
// collections use REPLACE; vector and instanced-model collections use ADD.
func (t *Tileset) WriteTilesetJSON(path string, refine RefineMode) error {
	if t.Empty() {
		return nil
	}

	doc := TilesetJSON{
		Asset:          Asset{Version: "1.0"},
		GeometricError: MaxGeometricError,
		Root:           convertNode(t.root, MaxGeometricError),
	}
	doc.Root.Refine = string(refine)

	if err := writeJSONFile(path, &doc); err != nil {
		return err
	}
	t.FlushedPath = path
	return nil
}

func convertNode(node *Node, geometricError float64) TileJSON {
	tile := TileJSON{
		GeometricError: geometricError,
		BoundingVolume: BoundingVolume{Region: node.Region.ToArray()},
	}

	if node.ContentURI != "" {
		tile.Content = &Content{URI: node.ContentURI}
		if node.ContentRegion != nil &&
			node.Region.Contains(*node.ContentRegion) &&
			!node.Region.Equals(*node.ContentRegion) {
			tile.Content.BoundingVolume = &BoundingVolume{Region: node.ContentRegion.ToArray()}
		}
	}

	for _, child := range node.Children() {
		tile.Children = append(tile.Children, convertNode(child, geometricError/2.0))
	}
	return tile
}

// CombineTilesetJSON emits a root tileset whose children reference other
// tileset JSON documents. The root region is the union of the child regions;
// child order follows the input order.
func CombineTilesetJSON(path string, childPaths []string, regions []geometry.BoundingRegion) error {
	if len(childPaths) == 0 {
		return nil
	}
	if len(childPaths) != len(regions) {
		return fmt.Errorf("combine tileset: %d paths for %d regions", len(childPaths), len(regions))
	}

	rootRegion := regions[0]
	children := make([]TileJSON, 0, len(childPaths))
	for i, childPath := range childPaths {
		children = append(children, TileJSON{
			GeometricError: MaxGeometricError,
			BoundingVolume: BoundingVolume{Region: regions[i].ToArray()},
			Content:        &Content{URI: filepath.ToSlash(childPath)},
		})
		rootRegion = rootRegion.Union(regions[i])
	}

	doc := TilesetJSON{
		Asset:          Asset{Version: "1.0"},
		GeometricError: MaxGeometricError,
		Root: TileJSON{
			Refine:         string(RefineAdd),
			GeometricError: MaxGeometricError,
			BoundingVolume: BoundingVolume{Region: rootRegion.ToArray()},
			Children:       children,
		},
	}
	return writeJSONFile(path, &doc)
}

func writeJSONFile(path string, doc *TilesetJSON) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(doc, "", "\t")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
