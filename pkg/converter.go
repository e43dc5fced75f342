package pkg

import (
	"errors"
	"io"
	"math"
	"path/filepath"
	"sort"
	"strings"

	"github.com/golang/glog"

	"github.com/FLYPoPo7/cdb-to-3dtiles/internal/cdb"
	"github.com/FLYPoPo7/cdb-to-3dtiles/internal/converters"
	"github.com/FLYPoPo7/cdb-to-3dtiles/internal/geometry"
	tileio "github.com/FLYPoPo7/cdb-to-3dtiles/internal/io"
	"github.com/FLYPoPo7/cdb-to-3dtiles/internal/mesh"
	"github.com/FLYPoPo7/cdb-to-3dtiles/internal/tileformat"
	"github.com/FLYPoPo7/cdb-to-3dtiles/internal/tiler"
	"github.com/FLYPoPo7/cdb-to-3dtiles/internal/tileset"
	"github.com/FLYPoPo7/cdb-to-3dtiles/tools"
)

// geoCellMinHeight is the base minimum height of a geocell region, tolerating
// terrain depressions below the ellipsoid.
const geoCellMinHeight = -10.0

// flushedDataset records one per-geocell dataset tileset for later
// combination.
type flushedDataset struct {
	combinedName string
	jsonPath     string // relative to the output root
	region       geometry.BoundingRegion
}

// Converter walks a CDB tree and produces a 3D Tiles output tree.
type Converter struct {
	opts       *tiler.Options
	fileFinder tools.FileFinder
	converter  converters.CoordinateConverter

	// per-geocell collections keyed by component selectors "CS1_CS2"
	elevationTilesets          map[string]*tileset.Tileset
	roadNetworkTilesets        map[string]*tileset.Tileset
	railRoadNetworkTilesets    map[string]*tileset.Tileset
	powerlineNetworkTilesets   map[string]*tileset.Tileset
	hydrographyNetworkTilesets map[string]*tileset.Tileset
	gtModelTilesets            map[string]*tileset.Tileset
	gsModelTilesets            map[string]*tileset.Tileset

	// per-geocell implicit-mode availability
	availability *tileset.AvailabilityForest

	// per-geocell flushed datasets waiting for combination
	defaultDatasetToCombine []flushedDataset

	// accumulated across geocells
	combinedTilesets        map[string][]flushedDataset
	aggregateTilesetsRegion map[string]geometry.BoundingRegion
	combinedOrder           []string

	pipeline *tileio.Pipeline
}

// NewConverter builds a converter for one run. Requested dataset combinations
// are validated immediately; a malformed string fails before any conversion
// work begins.
func NewConverter(fileFinder tools.FileFinder, opts *tiler.Options) (*Converter, error) {
	for _, combo := range opts.DatasetCombinations {
		for _, dataset := range combo {
			if _, _, _, err := cdb.ParseDatasetCombination(dataset); err != nil {
				return nil, err
			}
		}
	}

	return &Converter{
		opts:                    opts,
		fileFinder:              fileFinder,
		converter:               converters.NewProj4CoordinateConverter(),
		combinedTilesets:        make(map[string][]flushedDataset),
		aggregateTilesetsRegion: make(map[string]geometry.BoundingRegion),
	}, nil
}

// Run executes the conversion: per geocell, stream the datasets into tileset
// collections and payload files, then combine the per-geocell tilesets into
// per-dataset roots and the top-level tileset.json.
func (c *Converter) Run() error {
	defer c.converter.Cleanup()

	source, err := cdb.Open(c.opts.Input, c.fileFinder, c.converter, c.opts.Srid)
	if err != nil {
		return err
	}

	c.pipeline = tileio.NewPipeline(0)

	var geoCellErr error
	if c.opts.ThreeDTilesNext {
		geoCellErr = source.ForEachGeoCell(func(cell cdb.GeoCell) error {
			return c.convertGeoCellImplicit(source, cell)
		})
	} else {
		geoCellErr = source.ForEachGeoCell(func(cell cdb.GeoCell) error {
			return c.convertGeoCellExplicit(source, cell)
		})
	}

	if err := c.pipeline.Close(); err != nil {
		if geoCellErr == nil {
			geoCellErr = err
		} else {
			glog.Errorf("payload write: %v", err)
		}
	}
	if geoCellErr != nil {
		return geoCellErr
	}

	return c.combineAll()
}

// resetGeoCellState clears the per-geocell caches before a new pass.
func (c *Converter) resetGeoCellState() {
	c.elevationTilesets = make(map[string]*tileset.Tileset)
	c.roadNetworkTilesets = make(map[string]*tileset.Tileset)
	c.railRoadNetworkTilesets = make(map[string]*tileset.Tileset)
	c.powerlineNetworkTilesets = make(map[string]*tileset.Tileset)
	c.hydrographyNetworkTilesets = make(map[string]*tileset.Tileset)
	c.gtModelTilesets = make(map[string]*tileset.Tileset)
	c.gsModelTilesets = make(map[string]*tileset.Tileset)
	c.availability = tileset.NewAvailabilityForest(c.opts.SubtreeLevels)
	c.defaultDatasetToCombine = nil
}

func (c *Converter) convertGeoCellExplicit(source *cdb.CDB, cell cdb.GeoCell) error {
	tools.LogOutput("Converting geocell " + cell.Name())
	c.resetGeoCellState()

	if err := source.ForEachElevationTile(cell, func(elevation *cdb.Elevation) error {
		return c.addElevationToTilesetCollection(source, elevation)
	}); err != nil {
		return err
	}
	c.flushTilesetCollections(cell, cdb.DatasetElevation, c.elevationTilesets, tiler.RefineModeReplace)

	if err := source.ForEachRoadNetworkTile(cell, func(v *cdb.GeometryVectors) error {
		return c.addVectorToTilesetCollection(v, c.roadNetworkTilesets)
	}); err != nil {
		return err
	}
	c.flushTilesetCollections(cell, cdb.DatasetRoadNetwork, c.roadNetworkTilesets, tiler.RefineModeAdd)

	if err := source.ForEachRailRoadNetworkTile(cell, func(v *cdb.GeometryVectors) error {
		return c.addVectorToTilesetCollection(v, c.railRoadNetworkTilesets)
	}); err != nil {
		return err
	}
	c.flushTilesetCollections(cell, cdb.DatasetRailRoadNetwork, c.railRoadNetworkTilesets, tiler.RefineModeAdd)

	if err := source.ForEachPowerlineNetworkTile(cell, func(v *cdb.GeometryVectors) error {
		return c.addVectorToTilesetCollection(v, c.powerlineNetworkTilesets)
	}); err != nil {
		return err
	}
	c.flushTilesetCollections(cell, cdb.DatasetPowerlineNetwork, c.powerlineNetworkTilesets, tiler.RefineModeAdd)

	if err := source.ForEachHydrographyNetworkTile(cell, func(v *cdb.GeometryVectors) error {
		return c.addVectorToTilesetCollection(v, c.hydrographyNetworkTilesets)
	}); err != nil {
		return err
	}
	c.flushTilesetCollections(cell, cdb.DatasetHydrographyNetwork, c.hydrographyNetworkTilesets, tiler.RefineModeAdd)

	if err := source.ForEachGTModelTile(cell, func(m *cdb.GTModels) error {
		return c.addGTModelToTilesetCollection(m)
	}); err != nil {
		return err
	}
	c.flushTilesetCollections(cell, cdb.DatasetGTModelGeometry, c.gtModelTilesets, tiler.RefineModeAdd)

	if err := source.ForEachGSModelTile(cell, func(m *cdb.GSModels) error {
		return c.addGSModelToTilesetCollection(m)
	}); err != nil {
		return err
	}
	c.flushTilesetCollections(cell, cdb.DatasetGSModelGeometry, c.gsModelTilesets, tiler.RefineModeAdd)

	c.recordGeoCellDatasets(cell)
	return nil
}

func (c *Converter) convertGeoCellImplicit(source *cdb.CDB, cell cdb.GeoCell) error {
	tools.LogOutput("Converting geocell " + cell.Name() + " (implicit tiling)")
	c.resetGeoCellState()

	if err := source.ForEachElevationTile(cell, func(elevation *cdb.Elevation) error {
		c.availability.MarkTile(elevation.Tile.Level, elevation.Tile.UREF, elevation.Tile.RREF)
		return c.addElevationToTilesetCollection(source, elevation)
	}); err != nil {
		return err
	}
	c.flushTilesetCollections(cell, cdb.DatasetElevation, c.elevationTilesets, tiler.RefineModeReplace)

	subtreesDir := filepath.Join(c.opts.Output, cell.RelativePath(),
		cdb.DatasetElevation.Name(), "subtrees")
	if err := c.availability.WriteSubtrees(subtreesDir); err != nil {
		if errors.Is(err, tileformat.ErrFormatInvariant) {
			return err
		}
		glog.Errorf("serializing subtrees for %s: %v", cell.Name(), err)
	}

	c.recordGeoCellDatasets(cell)
	return nil
}

func collectionFor(collections map[string]*tileset.Tileset, tile cdb.Tile) *tileset.Tileset {
	key := tile.ComponentDir()
	collection, ok := collections[key]
	if !ok {
		collection = tileset.New()
		collections[key] = collection
	}
	return collection
}

func (c *Converter) addElevationToTilesetCollection(source *cdb.CDB, elevation *cdb.Elevation) error {
	tile := elevation.Tile
	if c.opts.ElevationLOD && tile.Level < 0 {
		// LOD-only mode keeps the chain from level 0 down
		return nil
	}
	collection := collectionFor(c.elevationTilesets, tile)

	region := tile.BoundRegion(elevation.MinHeight, elevation.MaxHeight)
	if err := collection.Insert(tile, tile.ContentURI(".b3dm"), region); err != nil {
		if errors.Is(err, tileset.ErrInvalidTopology) {
			glog.Warningf("skipping tile: %v", err)
			return nil
		}
		return err
	}

	if texture, ok := c.getOrCreateParentImagery(source, collection, tile); ok {
		glog.V(2).Infof("tile %s textured by %s (%dx%d)",
			tile.Filename(), texture.Path, texture.Width, texture.Height)
	}

	terrain := mesh.FromHeightGrid(
		elevation.Heights, elevation.Width, elevation.Height,
		tile.Rectangle(), c.decimationStep(elevation), c.opts.ElevationNormal)

	glb, err := terrain.GLB()
	if err != nil {
		glog.Warningf("skipping elevation payload %s: %v", tile.Filename(), err)
		return nil
	}

	c.pipeline.Submit(&tileio.WorkUnit{
		TargetPath: filepath.Join(c.opts.Output, tile.RelativePath()+".b3dm"),
		Write: func(ws io.WriteSeeker) error {
			_, err := tileformat.WriteB3DM(ws, glb, nil)
			return err
		},
	})
	return nil
}

// getOrCreateParentImagery resolves the texture of a terrain tile: its own
// imagery when present (cached for descendants), otherwise the nearest
// ancestor's cached texture. The cache lives on the collection and is dropped
// when the geocell is flushed.
func (c *Converter) getOrCreateParentImagery(source *cdb.CDB, collection *tileset.Tileset, tile cdb.Tile) (cdb.Texture, bool) {
	if path, ok := source.ImageryPath(tile); ok {
		texture, err := cdb.LoadTexture(path)
		if err == nil {
			collection.CacheParentImagery(tile, texture)
			return texture, true
		}
		glog.Warningf("unreadable imagery %s: %v", path, err)
	}
	return collection.ParentImagery(tile)
}

// decimationStep clamps the error-driven decimation so at least the
// configured fraction of the source indices survives.
func (c *Converter) decimationStep(elevation *cdb.Elevation) int {
	step := mesh.StepForError(c.opts.ElevationDecimateError, groundResolution(elevation))
	if threshold := c.opts.ElevationThresholdIndices; threshold > 0 && step > 1 {
		maxStep := int(math.Floor(math.Sqrt(1.0 / threshold)))
		if maxStep < 1 {
			maxStep = 1
		}
		if step > maxStep {
			step = maxStep
		}
	}
	return step
}

func (c *Converter) addVectorToTilesetCollection(vectors *cdb.GeometryVectors, collections map[string]*tileset.Tileset) error {
	tile := vectors.Tile
	collection := collectionFor(collections, tile)

	if err := collection.Insert(tile, tile.ContentURI(".b3dm"), vectors.Region); err != nil {
		if errors.Is(err, tileset.ErrInvalidTopology) {
			glog.Warningf("skipping tile: %v", err)
			return nil
		}
		return err
	}

	glb, err := mesh.FromPolylines(vectors.Polylines).GLB()
	if err != nil {
		glog.Warningf("skipping vector payload %s: %v", tile.Filename(), err)
		return nil
	}

	attribs := vectors.Attributes
	c.pipeline.Submit(&tileio.WorkUnit{
		TargetPath: filepath.Join(c.opts.Output, tile.RelativePath()+".b3dm"),
		Write: func(ws io.WriteSeeker) error {
			_, err := tileformat.WriteB3DM(ws, glb, attribs)
			return err
		},
	})
	return nil
}

// gtModelClass is one per-class batch of a geotypical tile. CNAM names the
// model in the geotypical library.
type gtModelClass struct {
	name      string
	attribs   *cdb.InstancesAttributes
	positions []geometry.Cartographic
	scales    [][3]float32
	headings  []float64
}

func (c *Converter) addGTModelToTilesetCollection(models *cdb.GTModels) error {
	// geotypical features come in under the GTFeature dataset; their payloads
	// live in the GTModels output dataset
	tile := models.Tile
	tile.Dataset = cdb.DatasetGTModelGeometry
	collection := collectionFor(c.gtModelTilesets, tile)

	classes := splitGTModelClasses(models)
	ext := ".i3dm"
	if len(classes) > 1 {
		ext = ".cmpt"
	}

	if err := collection.Insert(tile, tile.ContentURI(ext), models.Region); err != nil {
		if errors.Is(err, tileset.ErrInvalidTopology) {
			glog.Warningf("skipping tile: %v", err)
			return nil
		}
		return err
	}

	c.pipeline.Submit(&tileio.WorkUnit{
		TargetPath: filepath.Join(c.opts.Output, tile.RelativePath()+ext),
		Write: func(ws io.WriteSeeker) error {
			if len(classes) == 1 {
				cls := classes[0]
				_, err := tileformat.WriteI3DM(ws, gtModelURI(cls.name, models.ModelURI),
					cls.attribs, cls.positions, cls.scales, cls.headings)
				return err
			}
			_, err := tileformat.WriteCMPT(ws, len(classes), func(w io.Writer, i int) (int, error) {
				cls := classes[i]
				return tileformat.WriteI3DM(w, gtModelURI(cls.name, models.ModelURI),
					cls.attribs, cls.positions, cls.scales, cls.headings)
			})
			return err
		},
	})
	return nil
}

// splitGTModelClasses partitions a geotypical tile by CNAM, preserving first
// appearance order. Each class instances one library model.
func splitGTModelClasses(models *cdb.GTModels) []*gtModelClass {
	byName := make(map[string]*gtModelClass)
	var classes []*gtModelClass

	cnams := models.Attributes.CNAMs()
	for i, cnam := range cnams {
		cls, ok := byName[cnam]
		if !ok {
			cls = &gtModelClass{name: cnam, attribs: cdb.NewInstancesAttributes()}
			byName[cnam] = cls
			classes = append(classes, cls)
		}

		cls.attribs.AddCNAM(cnam)
		for name, col := range models.Attributes.IntegerAttribs() {
			cls.attribs.AddInteger(name, col[i])
		}
		for name, col := range models.Attributes.DoubleAttribs() {
			cls.attribs.AddDouble(name, col[i])
		}
		for name, col := range models.Attributes.StringAttribs() {
			cls.attribs.AddString(name, col[i])
		}

		cls.positions = append(cls.positions, models.Positions[i])
		cls.scales = append(cls.scales, models.Scales[i])
		cls.headings = append(cls.headings, models.Headings[i])
	}
	return classes
}

func gtModelURI(cnam, fallback string) string {
	if cnam != "" {
		return cnam + ".gltf"
	}
	return fallback
}

func (c *Converter) addGSModelToTilesetCollection(models *cdb.GSModels) error {
	tile := models.Tile
	tile.Dataset = cdb.DatasetGSModelGeometry
	collection := collectionFor(c.gsModelTilesets, tile)

	if err := collection.Insert(tile, tile.ContentURI(".b3dm"), models.Region); err != nil {
		if errors.Is(err, tileset.ErrInvalidTopology) {
			glog.Warningf("skipping tile: %v", err)
			return nil
		}
		return err
	}

	glb, err := mesh.Markers(models.Positions, 10.0).GLB()
	if err != nil {
		glog.Warningf("skipping GS model payload %s: %v", tile.Filename(), err)
		return nil
	}

	attribs := models.Attributes
	c.pipeline.Submit(&tileio.WorkUnit{
		TargetPath: filepath.Join(c.opts.Output, tile.RelativePath()+".b3dm"),
		Write: func(ws io.WriteSeeker) error {
			_, err := tileformat.WriteB3DM(ws, glb, attribs)
			return err
		},
	})
	return nil
}

// flushTilesetCollections writes the tileset JSON of every populated
// collection of one dataset and records its path for combination. Flushing is
// idempotent per collection.
func (c *Converter) flushTilesetCollections(cell cdb.GeoCell, dataset cdb.Dataset, collections map[string]*tileset.Tileset, refine tiler.RefineMode) {
	componentDirs := make([]string, 0, len(collections))
	for componentDir := range collections {
		componentDirs = append(componentDirs, componentDir)
	}
	sort.Strings(componentDirs)

	for _, componentDir := range componentDirs {
		collection := collections[componentDir]
		if collection.Empty() || collection.FlushedPath != "" {
			continue
		}

		relPath := filepath.Join(cell.RelativePath(), dataset.Name(), componentDir, "tileset.json")
		absPath := filepath.Join(c.opts.Output, relPath)
		if err := collection.WriteTilesetJSON(absPath, tileset.RefineMode(refine)); err != nil {
			glog.Errorf("flushing tileset %s: %v", relPath, err)
			continue
		}

		combinedName := dataset.Name() + "_" + componentDir
		c.defaultDatasetToCombine = append(c.defaultDatasetToCombine, flushedDataset{
			combinedName: combinedName,
			jsonPath:     relPath,
			region:       collection.Region(),
		})
		collection.DropImageryCache()
	}
}

// recordGeoCellDatasets folds the geocell's flushed datasets into the global
// combination state. The geocell base region tolerates depressions down to
// -10 m; its maximum comes from the flushed collections.
func (c *Converter) recordGeoCellDatasets(cell cdb.GeoCell) {
	for _, flushed := range c.defaultDatasetToCombine {
		region := geometry.BoundingRegion{
			Rectangle: cell.Rectangle(),
			MinHeight: geoCellMinHeight,
			MaxHeight: 0,
		}.Union(flushed.region)
		flushed.region = region

		if _, ok := c.combinedTilesets[flushed.combinedName]; !ok {
			c.combinedOrder = append(c.combinedOrder, flushed.combinedName)
		}
		c.combinedTilesets[flushed.combinedName] = append(c.combinedTilesets[flushed.combinedName], flushed)

		if aggregate, ok := c.aggregateTilesetsRegion[flushed.combinedName]; ok {
			c.aggregateTilesetsRegion[flushed.combinedName] = aggregate.Union(region)
		} else {
			c.aggregateTilesetsRegion[flushed.combinedName] = region
		}
	}
	c.defaultDatasetToCombine = nil
}

// combineAll writes the per-dataset combined JSONs and the top-level
// tileset.json.
func (c *Converter) combineAll() error {
	if len(c.combinedOrder) == 0 {
		tools.LogOutput("No datasets found; nothing to combine")
		return nil
	}

	if c.opts.ThreeDTilesNext {
		// one global root over every per-geocell tileset
		var paths []string
		var regions []geometry.BoundingRegion
		for _, name := range c.combinedOrder {
			for _, flushed := range c.combinedTilesets[name] {
				paths = append(paths, flushed.jsonPath)
				regions = append(regions, flushed.region)
			}
		}
		return tileset.CombineTilesetJSON(filepath.Join(c.opts.Output, "tileset.json"), paths, regions)
	}

	// per-dataset roots across geocells
	for _, name := range c.combinedOrder {
		var paths []string
		var regions []geometry.BoundingRegion
		for _, flushed := range c.combinedTilesets[name] {
			paths = append(paths, flushed.jsonPath)
			regions = append(regions, flushed.region)
		}
		if err := tileset.CombineTilesetJSON(filepath.Join(c.opts.Output, name+".json"), paths, regions); err != nil {
			return err
		}
	}

	if len(c.opts.DatasetCombinations) == 0 {
		// default: combine every emitted dataset into the top-level tileset
		var paths []string
		var regions []geometry.BoundingRegion
		for _, name := range c.combinedOrder {
			paths = append(paths, name+".json")
			regions = append(regions, c.aggregateTilesetsRegion[name])
		}
		return tileset.CombineTilesetJSON(filepath.Join(c.opts.Output, "tileset.json"), paths, regions)
	}

	// requested combinations
	for _, combo := range c.opts.DatasetCombinations {
		combinedTilesetName := "tileset.json"
		if len(c.opts.DatasetCombinations) > 1 {
			combinedTilesetName = strings.Join(combo, "") + ".json"
		}

		var paths []string
		var regions []geometry.BoundingRegion
		for _, name := range combo {
			region, ok := c.aggregateTilesetsRegion[name]
			if !ok {
				continue
			}
			paths = append(paths, name+".json")
			regions = append(regions, region)
		}
		if err := tileset.CombineTilesetJSON(filepath.Join(c.opts.Output, combinedTilesetName), paths, regions); err != nil {
			return err
		}
	}
	return nil
}

// groundResolution approximates the metric spacing between neighbouring
// elevation samples of a tile.
func groundResolution(elevation *cdb.Elevation) float64 {
	rect := elevation.Tile.Rectangle()
	widthMeters := (rect.East - rect.West) * 6378137.0
	if elevation.Width <= 1 {
		return widthMeters
	}
	return widthMeters / float64(elevation.Width-1)
}
