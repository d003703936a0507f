// Command benchmark runs the directed firmware programs on the reference
// core and reports cycles and bus activity per program.
//
// Usage:
//
//	go run ./cmd/benchmark [flags]
//
// Flags:
//
//	-csv     Output results in CSV format (default: table)
//	-json    Output results as JSON
//	-legacy  Use the legacy bus protocol
//	-core    Only run the start-up programs
//	-config  Path to a timing configuration file
//
// Example:
//
//	# Compare both protocols
//	go run ./cmd/benchmark -csv > revised.csv
//	go run ./cmd/benchmark -csv -legacy > legacy.csv
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/tebeka/atexit"

	"github.com/sarchlab/qvcheck/benchmarks"
	"github.com/sarchlab/qvcheck/bus"
	"github.com/sarchlab/qvcheck/timing/latency"
)

func main() {
	csvOutput := flag.Bool("csv", false, "Output results in CSV format")
	jsonOutput := flag.Bool("json", false, "Output results as JSON")
	legacy := flag.Bool("legacy", false, "Use the legacy bus protocol")
	coreOnly := flag.Bool("core", false, "Only run the start-up programs")
	configPath := flag.String("config", "", "Path to timing configuration file")
	verbose := flag.Bool("v", false, "Verbose output")
	flag.Parse()

	config := benchmarks.DefaultConfig()
	config.Output = os.Stdout
	config.Verbose = *verbose

	if *configPath != "" {
		timingConfig, err := latency.LoadConfig(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading timing config: %v\n", err)
			atexit.Exit(2)
		}
		config.Timing = timingConfig
	}

	if *legacy {
		config.Protocol = bus.LegacyProtocol()
	}

	harness := benchmarks.NewHarness(config)
	if *coreOnly {
		harness.AddBenchmarks(benchmarks.GetCoreBenchmarks())
	} else {
		harness.AddBenchmarks(benchmarks.GetMicrobenchmarks())
	}

	results := harness.RunAll()

	switch {
	case *jsonOutput:
		if err := harness.PrintJSON(results); err != nil {
			fmt.Fprintf(os.Stderr, "Error writing JSON: %v\n", err)
			atexit.Exit(2)
		}
	case *csvOutput:
		harness.PrintCSV(results)
	default:
		fmt.Printf("Protocol: %s\n\n", protocolName(*legacy))
		harness.PrintResults(results)
	}

	for _, r := range results {
		if !r.Passed {
			atexit.Exit(1)
		}
	}

	atexit.Exit(0)
}

func protocolName(legacy bool) string {
	if legacy {
		return "legacy"
	}
	return "revised"
}
