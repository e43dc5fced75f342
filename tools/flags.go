package tools

import (
	"flag"
	"strings"
)

const (
	CommandConvert = "convert"
	CommandVerify  = "verify"
)

type FlagsGlobal struct {
	Help    *bool `json:"help"`
	Version *bool `json:"version"`
}

type ConverterFlags struct {
	Input                     *string  `json:"input"`
	Output                    *string  `json:"output"`
	Srid                      *int     `json:"srid"`
	ElevationNormal           *bool    `json:"elevation_normal"`
	ElevationLOD              *bool    `json:"elevation_lod"`
	ThreeDTilesNext           *bool    `json:"three_d_tiles_next"`
	SubtreeLevels             *int     `json:"subtree_levels"`
	ElevationThresholdIndices *float64 `json:"elevation_threshold_indices"`
	ElevationDecimateError    *float64 `json:"elevation_decimate_error"`
	Combine                   *[]string
}

type FlagsForCommandConvert struct {
	ConverterFlags
	Silent       *bool
	LogTimestamp *bool
	Help         *bool
	Version      *bool
}

type FlagsForCommandVerify struct {
	Input *string
}

func ParseFlagsGlobal() FlagsGlobal {
	help := defineBoolFlag("help", "h", false, "Displays this help.")
	// no "v" shorthand here: glog owns -v on the default flag set
	version := defineBoolFlag("version", "", false, "Displays the version of cdb-to-3dtiles.")

	flag.Parse()

	return FlagsGlobal{
		Help:    help,
		Version: version,
	}
}

func ParseFlagsForCommandConvert(args []string) FlagsForCommandConvert {
	flagCommand := flag.NewFlagSet("command-convert", flag.ExitOnError)

	input := defineStringFlagCommand(flagCommand, "input", "i", "", "Specifies the CDB root directory.")
	output := defineStringFlagCommand(flagCommand, "output", "o", "", "Specifies the output folder where to write the tileset data.")
	srid := defineIntFlagCommand(flagCommand, "srid", "e", 4326, "EPSG srid code of source vector layers.")
	elevationNormal := defineBoolFlagCommand(flagCommand, "elevation-normal", "", false, "Generates per-vertex normals for terrain meshes.")
	elevationLOD := defineBoolFlagCommand(flagCommand, "elevation-lod", "", false, "Skips the negative-level elevation tiles, so the elevation chain starts at level 0.")
	threeDTilesNext := defineBoolFlagCommand(flagCommand, "3d-tiles-next", "", false, "Emits implicit tiling with subtree availability files instead of explicit tileset trees.")
	subtreeLevels := defineIntFlagCommand(flagCommand, "subtree-levels", "", 7, "Number of levels per subtree in 3D Tiles Next mode.")
	elevationThresholdIndices := defineFloat64FlagCommand(flagCommand, "elevation-threshold-indices", "", 0.3, "Fraction of terrain indices below which decimation stops.")
	elevationDecimateError := defineFloat64FlagCommand(flagCommand, "elevation-decimate-error", "", 0, "Maximum metric error allowed when decimating terrain meshes.")
	combine := defineStringListFlagCommand(flagCommand, "combine", "Requests a combined tileset, e.g. \"Elevation_1_1,GSModels_1_1\". May be repeated.")

	silent := defineBoolFlagCommand(flagCommand, "silent", "s", false, "Use to suppress all the non-error messages.")
	logTimestamp := defineBoolFlagCommand(flagCommand, "timestamp", "t", false, "Adds timestamp to log messages.")
	help := defineBoolFlagCommand(flagCommand, "help", "h", false, "Displays this help.")
	version := defineBoolFlagCommand(flagCommand, "version", "v", false, "Displays the version of cdb-to-3dtiles.")

	flagCommand.Parse(args)

	return FlagsForCommandConvert{
		ConverterFlags: ConverterFlags{
			Input:                     input,
			Output:                    output,
			Srid:                      srid,
			ElevationNormal:           elevationNormal,
			ElevationLOD:              elevationLOD,
			ThreeDTilesNext:           threeDTilesNext,
			SubtreeLevels:             subtreeLevels,
			ElevationThresholdIndices: elevationThresholdIndices,
			ElevationDecimateError:    elevationDecimateError,
			Combine:                   combine,
		},
		Silent:       silent,
		LogTimestamp: logTimestamp,
		Help:         help,
		Version:      version,
	}
}

func ParseFlagsForCommandVerify(args []string) FlagsForCommandVerify {
	flagCommand := flag.NewFlagSet("command-verify", flag.ExitOnError)

	input := defineStringFlagCommand(flagCommand, "input", "i", "", "Specifies the output folder of a previous conversion to verify.")

	flagCommand.Parse(args)

	return FlagsForCommandVerify{
		Input: input,
	}
}

func defineBoolFlag(name string, shortHand string, defaultValue bool, usage string) *bool {
	var output bool
	flag.BoolVar(&output, name, defaultValue, usage)
	if shortHand != name && shortHand != "" {
		flag.BoolVar(&output, shortHand, defaultValue, usage+" (shorthand for "+name+")")
	}
	return &output
}

func defineBoolFlagCommand(flagCommand *flag.FlagSet, name string, shortHand string, defaultValue bool, usage string) *bool {
	var output bool
	flagCommand.BoolVar(&output, name, defaultValue, usage)
	if shortHand != name && shortHand != "" {
		flagCommand.BoolVar(&output, shortHand, defaultValue, usage+" (shorthand for "+name+")")
	}
	return &output
}

func defineStringFlagCommand(flagCommand *flag.FlagSet, name string, shortHand string, defaultValue string, usage string) *string {
	var output string
	flagCommand.StringVar(&output, name, defaultValue, usage)
	if shortHand != name && shortHand != "" {
		flagCommand.StringVar(&output, shortHand, defaultValue, usage+" (shorthand for "+name+")")
	}
	return &output
}

func defineIntFlagCommand(flagCommand *flag.FlagSet, name string, shortHand string, defaultValue int, usage string) *int {
	var output int
	flagCommand.IntVar(&output, name, defaultValue, usage)
	if shortHand != name && shortHand != "" {
		flagCommand.IntVar(&output, shortHand, defaultValue, usage+" (shorthand for "+name+")")
	}
	return &output
}

func defineFloat64FlagCommand(flagCommand *flag.FlagSet, name string, shortHand string, defaultValue float64, usage string) *float64 {
	var output float64
	flagCommand.Float64Var(&output, name, defaultValue, usage)
	if shortHand != name && shortHand != "" {
		flagCommand.Float64Var(&output, shortHand, defaultValue, usage+" (shorthand for "+name+")")
	}
	return &output
}

// stringListValue collects the values of a repeatable flag.
type stringListValue []string

func (v *stringListValue) String() string {
	return strings.Join(*v, ";")
}

func (v *stringListValue) Set(s string) error {
	*v = append(*v, s)
	return nil
}

func defineStringListFlagCommand(flagCommand *flag.FlagSet, name string, usage string) *[]string {
	var output stringListValue
	flagCommand.Var(&output, name, usage)
	return (*[]string)(&output)
}
