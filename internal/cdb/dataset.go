package cdb

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// ErrBadDatasetSpec reports a malformed or unrecognized dataset combination
// string. It is returned before any conversion work begins.
var ErrBadDatasetSpec = errors.New("bad dataset spec")

// Dataset is a CDB dataset code.
type Dataset int

const (
	DatasetElevation          Dataset = 1
	DatasetImagery            Dataset = 4
	DatasetGSFeature          Dataset = 100
	DatasetGTFeature          Dataset = 101
	DatasetRoadNetwork        Dataset = 201
	DatasetRailRoadNetwork    Dataset = 202
	DatasetPowerlineNetwork   Dataset = 203
	DatasetHydrographyNetwork Dataset = 204
	DatasetGSModelGeometry    Dataset = 300
	DatasetGSModelTexture     Dataset = 301
	DatasetGTModelGeometry    Dataset = 510
)

var datasetNames = map[Dataset]string{
	DatasetElevation:          "Elevation",
	DatasetImagery:            "Imagery",
	DatasetGSFeature:          "GSFeature",
	DatasetGTFeature:          "GTFeature",
	DatasetRoadNetwork:        "RoadNetwork",
	DatasetRailRoadNetwork:    "RailRoadNetwork",
	DatasetPowerlineNetwork:   "PowerlineNetwork",
	DatasetHydrographyNetwork: "HydrographyNetwork",
	DatasetGSModelGeometry:    "GSModels",
	DatasetGSModelTexture:     "GSModelTexture",
	DatasetGTModelGeometry:    "GTModels",
}

// combinableDatasetNames are the dataset names accepted in a requested
// combination string.
var combinableDatasetNames = map[string]Dataset{
	"Elevation":          DatasetElevation,
	"RoadNetwork":        DatasetRoadNetwork,
	"RailRoadNetwork":    DatasetRailRoadNetwork,
	"PowerlineNetwork":   DatasetPowerlineNetwork,
	"HydrographyNetwork": DatasetHydrographyNetwork,
	"GSModels":           DatasetGSModelGeometry,
	"GTModels":           DatasetGTModelGeometry,
}

func (d Dataset) Name() string {
	if name, ok := datasetNames[d]; ok {
		return name
	}
	return fmt.Sprintf("Dataset%03d", int(d))
}

// InputDir is the dataset directory name inside a geocell of the source CDB
// tree, e.g. "001_Elevation".
func (d Dataset) InputDir() string {
	return fmt.Sprintf("%03d_%s", int(d), d.Name())
}

func CombinableDatasetNames() []string {
	names := make([]string, 0, len(combinableDatasetNames))
	for name := range combinableDatasetNames {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ParseDatasetCombination validates a "{DatasetName}_{CS1}_{CS2}" string and
// returns its parts. The two component selectors must be positive integers.
func ParseDatasetCombination(s string) (name string, cs1, cs2 int, err error) {
	parts := strings.Split(s, "_")
	if len(parts) != 3 {
		return "", 0, 0, fmt.Errorf(
			"%w: %q, required format is {DatasetName}_{ComponentSelector1}_{ComponentSelector2}",
			ErrBadDatasetSpec, s)
	}

	name = parts[0]
	if _, ok := combinableDatasetNames[name]; !ok {
		return "", 0, 0, fmt.Errorf("%w: unrecognized dataset %q, correct dataset names are: %s",
			ErrBadDatasetSpec, name, strings.Join(CombinableDatasetNames(), ", "))
	}

	cs1, err = parseComponentSelector(parts[1])
	if err != nil {
		return "", 0, 0, fmt.Errorf("%w: %q: component selector 1 has to be a positive number",
			ErrBadDatasetSpec, s)
	}
	cs2, err = parseComponentSelector(parts[2])
	if err != nil {
		return "", 0, 0, fmt.Errorf("%w: %q: component selector 2 has to be a positive number",
			ErrBadDatasetSpec, s)
	}
	return name, cs1, cs2, nil
}

func parseComponentSelector(s string) (int, error) {
	if s == "" {
		return 0, fmt.Errorf("empty component selector")
	}
	v, err := strconv.Atoi(s)
	if err != nil || v < 1 {
		return 0, fmt.Errorf("component selector %q is not a positive number", s)
	}
	return v, nil
}
