package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/FLYPoPo7/cdb-to-3dtiles/internal/tiler"
	"github.com/FLYPoPo7/cdb-to-3dtiles/pkg"
	"github.com/FLYPoPo7/cdb-to-3dtiles/tools"
)

const VERSION = "1.0.0"

const logo = `
          _ _       _            _____     _ _   _ _
  ___  __| | |__   | |_ ___     |___ /  __| | |_(_) | ___  ___
 / __|/ _  | '_ \  | __/ _ \      |_ \ / _  | __| | |/ _ \/ __|
| (__| (_| | |_) | | || (_) |    ___) | (_| | |_| | |  __/\__ \
 \___|\__,_|_.__/   \__\___/    |____/ \__,_|\__|_|_|\___||___/
        Converts OGC CDB datasets to Cesium 3D Tiles
`

func main() {
	log.SetPrefix("[cdb-to-3dtiles] ")
	log.SetFlags(log.LUTC | log.Ldate | log.Lmicroseconds)

	flagsGlobal := tools.ParseFlagsGlobal()

	args := flag.Args()
	if len(args) == 0 {
		if *flagsGlobal.Help {
			showHelp()
			return
		}
		if *flagsGlobal.Version {
			printVersion()
			return
		}
		log.Fatal("Please specify a subcommand [convert|verify].")
	}
	cmd, args := args[0], args[1:]

	switch cmd {
	case tools.CommandConvert:
		mainCommandConvert(args)
	case tools.CommandVerify:
		mainCommandVerify(args)
	default:
		log.Fatalf("Unrecognized command [%q]. Command must be one of [convert|verify]", cmd)
	}
}

func mainCommandConvert(args []string) {
	flags := tools.ParseFlagsForCommandConvert(args)

	if *flags.Help {
		showHelp()
		return
	}
	if *flags.Version {
		printVersion()
		return
	}

	if *flags.Silent {
		tools.DisableLogger()
	} else {
		printLogo()
	}
	if !*flags.LogTimestamp {
		tools.DisableLoggerTimestamp()
	}

	opts := tiler.Options{
		Input:                     *flags.Input,
		Output:                    *flags.Output,
		Srid:                      *flags.Srid,
		ElevationNormal:           *flags.ElevationNormal,
		ElevationLOD:              *flags.ElevationLOD,
		ThreeDTilesNext:           *flags.ThreeDTilesNext,
		SubtreeLevels:             *flags.SubtreeLevels,
		ElevationThresholdIndices: *flags.ElevationThresholdIndices,
		ElevationDecimateError:    *flags.ElevationDecimateError,
		DatasetCombinations:       parseCombineFlags(*flags.Combine),
		Command:                   tools.CommandConvert,
	}

	if msg, res := validateOptionsForCommandConvert(&opts); !res {
		log.Fatal("Error parsing input parameters: " + msg)
	}

	global := pkg.NewGlobalInitializer()
	defer global.Cleanup()

	converter, err := pkg.NewConverter(tools.NewStandardFileFinder(), &opts)
	if err != nil {
		log.Fatal("Error preparing conversion: ", err)
	}

	if err := converter.Run(); err != nil {
		log.Fatal("Error while converting: ", err)
	}
	tools.LogOutput("Conversion Completed")
}

// parseCombineFlags splits each repeated -combine value into its dataset
// list: "Elevation_1_1,GSModels_1_1" requests one combined tileset of the two
// datasets.
func parseCombineFlags(values []string) [][]string {
	var combinations [][]string
	for _, value := range values {
		var combo []string
		for _, dataset := range strings.Split(value, ",") {
			dataset = strings.TrimSpace(dataset)
			if dataset != "" {
				combo = append(combo, dataset)
			}
		}
		// a single dataset is already combined across geocells by default
		if len(combo) > 1 {
			combinations = append(combinations, combo)
		}
	}
	return combinations
}

// Validates the input options provided to the command line tool checking
// that the input folder exists, an output folder is given and subtree-levels
// is at least 1
func validateOptionsForCommandConvert(opts *tiler.Options) (string, bool) {
	if _, err := os.Stat(opts.Input); os.IsNotExist(err) {
		return "Input CDB folder not found", false
	}
	if opts.Output == "" {
		return "Output folder not specified", false
	}
	if opts.SubtreeLevels < 1 {
		return "subtree-levels must be at least 1", false
	}
	return "", true
}

func mainCommandVerify(args []string) {
	flags := tools.ParseFlagsForCommandVerify(args)

	if _, err := os.Stat(*flags.Input); os.IsNotExist(err) {
		log.Fatal("Error parsing input parameters: input folder not found")
	}

	verifier := pkg.NewVerifier(tools.NewStandardFileFinder())
	if err := verifier.Run(*flags.Input); err != nil {
		log.Fatal("Verification failed: ", err)
	}
	tools.LogOutput("Verification Completed")
}

func printLogo() {
	fmt.Println(logo)
}

func showHelp() {
	printLogo()
	fmt.Println("***")
	fmt.Println("cdb-to-3dtiles walks an OGC CDB store and produces a 3D Tiles tileset consumable by Cesium.js")
	printVersion()
	fmt.Println("***")
	fmt.Println("")
	fmt.Println("Command line flags: ")
	flag.CommandLine.SetOutput(os.Stdout)
	flag.PrintDefaults()
}

func printVersion() {
	fmt.Println("v." + VERSION)
}
