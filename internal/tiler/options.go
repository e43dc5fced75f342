// Package tiler holds the options shared by the conversion drivers.
package tiler

import "strings"

type RefineMode string

const (
	RefineModeAdd     RefineMode = "ADD"
	RefineModeReplace RefineMode = "REPLACE"
)

func (e RefineMode) String() string {
	if e == RefineModeAdd {
		return "ADD"
	} else if e == RefineModeReplace {
		return "REPLACE"
	}
	return ""
}

func ParseRefineMode(value string) RefineMode {
	normalizedValue := strings.Trim(strings.ToUpper(value), " ")
	if normalizedValue == "ADD" {
		return RefineModeAdd
	} else if normalizedValue == "REPLACE" {
		return RefineModeReplace
	}
	return ""
}

// Options carries everything needed for one conversion run.
type Options struct {
	Input  string // CDB root directory
	Output string // Output tileset directory
	Srid   int    // EPSG code assumed for source vector layers

	ElevationNormal           bool    // Generate per-vertex terrain normals
	ElevationLOD              bool    // Emit only the source LOD chain
	ThreeDTilesNext           bool    // Implicit tiling with subtree availability
	SubtreeLevels             int     // Levels per subtree in implicit mode
	ElevationThresholdIndices float64 // Decimation stop fraction
	ElevationDecimateError    float64 // Max metric decimation error

	// DatasetCombinations are the requested combined tilesets, each a list
	// of "{DatasetName}_{CS1}_{CS2}" strings.
	DatasetCombinations [][]string

	Command string
}

func (opt *Options) Copy() *Options {
	newOpt := *opt
	newOpt.DatasetCombinations = make([][]string, len(opt.DatasetCombinations))
	for i, combo := range opt.DatasetCombinations {
		newOpt.DatasetCombinations[i] = append([]string(nil), combo...)
	}
	return &newOpt
}
