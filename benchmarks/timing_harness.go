// Package benchmarks runs directed firmware programs on a device and reports
// the bus activity each one causes.
package benchmarks

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/sarchlab/qvcheck/bus"
	"github.com/sarchlab/qvcheck/dut"
	"github.com/sarchlab/qvcheck/insts"
	"github.com/sarchlab/qvcheck/loader"
	"github.com/sarchlab/qvcheck/scenario"
	"github.com/sarchlab/qvcheck/timing/core"
	"github.com/sarchlab/qvcheck/timing/latency"
)

// BenchmarkResult holds the results for a single benchmark run.
type BenchmarkResult struct {
	// Name identifies the benchmark
	Name string `json:"name"`

	// Description explains what the benchmark measures
	Description string `json:"description"`

	// Passed is set when the expected UART output arrived
	Passed bool   `json:"passed"`
	Error  string `json:"error,omitempty"`

	// Cycles is the number of core cycles out of reset
	Cycles uint64 `json:"cycles"`

	// InstructionsRetired is the number of completed instructions
	InstructionsRetired uint64 `json:"instructions_retired"`

	// CPI is cycles per instruction
	CPI float64 `json:"cpi"`

	// Bus activity seen by the core
	Transactions       uint64 `json:"transactions"`
	ContinuousReads    uint64 `json:"continuous_reads"`
	Loads              uint64 `json:"loads"`
	Stores             uint64 `json:"stores"`
	PeripheralAccesses uint64 `json:"peripheral_accesses"`
	TakenBranches      uint64 `json:"taken_branches"`
	StallCycles        uint64 `json:"stall_cycles"`

	// Nibbles is the number of data nibbles the harness served
	Nibbles int `json:"nibbles"`

	// ImageBytes is the size of the flash image
	ImageBytes int `json:"image_bytes"`

	// WallTime is the actual time taken to run the simulation
	WallTime time.Duration `json:"wall_time_ns"`
}

// Benchmark defines a single directed program.
type Benchmark struct {
	// Name identifies the benchmark
	Name string

	// Description explains what the benchmark measures
	Description string

	// Program is placed in flash from address 0
	Program []insts.Instruction

	// Expect is the text the program prints on the UART
	Expect string
}

// HarnessConfig configures the benchmark harness.
type HarnessConfig struct {
	Timing   *latency.TimingConfig
	Protocol bus.Protocol

	// Output is where to write results (default: os.Stdout)
	Output io.Writer

	// Verbose enables detailed output
	Verbose bool
}

// DefaultConfig returns a default harness configuration.
func DefaultConfig() HarnessConfig {
	return HarnessConfig{
		Timing:   latency.DefaultTimingConfig(),
		Protocol: bus.RevisedProtocol(),
		Output:   os.Stdout,
	}
}

// Harness runs benchmarks and reports results.
type Harness struct {
	config     HarnessConfig
	benchmarks []Benchmark
}

// NewHarness creates a new benchmark harness.
func NewHarness(config HarnessConfig) *Harness {
	if config.Output == nil {
		config.Output = os.Stdout
	}
	if config.Timing == nil {
		config.Timing = latency.DefaultTimingConfig()
	}
	return &Harness{config: config}
}

// AddBenchmark adds a benchmark to the harness.
func (h *Harness) AddBenchmark(b Benchmark) {
	h.benchmarks = append(h.benchmarks, b)
}

// AddBenchmarks adds multiple benchmarks to the harness.
func (h *Harness) AddBenchmarks(benchmarks []Benchmark) {
	h.benchmarks = append(h.benchmarks, benchmarks...)
}

// RunAll executes all benchmarks and returns results.
func (h *Harness) RunAll() []BenchmarkResult {
	results := make([]BenchmarkResult, 0, len(h.benchmarks))

	for _, bench := range h.benchmarks {
		results = append(results, h.Run(bench))
	}

	return results
}

// Run executes a single benchmark on a fresh reference core.
func (h *Harness) Run(bench Benchmark) BenchmarkResult {
	result := BenchmarkResult{Name: bench.Name, Description: bench.Description}

	image, err := loader.Assemble(insts.NewEncoder(), bench.Program)
	if err != nil {
		result.Error = err.Error()
		return result
	}
	result.ImageBytes = len(image)

	var device *core.Core

	cfg := scenario.NewConfig(
		scenario.WithTimingConfig(h.config.Timing),
		scenario.WithProtocol(h.config.Protocol),
		scenario.WithDevice(func(c *scenario.Config) dut.Device {
			device = core.MakeBuilder().
				WithProtocol(c.Protocol).
				WithTimingConfig(c.Timing).
				WithRegisterCount(c.RegisterCount).
				Build(bench.Name)
			return device
		}),
	)

	start := time.Now()
	res := scenario.NewRunner(cfg).RunSeed(bench.Name, cfg.Seed, scenario.Firmware(image, bench.Expect))
	result.WallTime = time.Since(start)

	result.Passed = res.Passed()
	if res.Err != nil {
		result.Error = res.Err.Error()
	}
	result.Nibbles = res.Bus.Nibbles

	stats := device.Stats()
	result.Cycles = stats.Cycles
	result.InstructionsRetired = stats.Instructions
	result.Transactions = stats.Transactions
	result.ContinuousReads = stats.ContinuousReads
	result.Loads = stats.Loads
	result.Stores = stats.Stores
	result.PeripheralAccesses = stats.PeripheralAccesses
	result.TakenBranches = stats.TakenBranches
	result.StallCycles = stats.StallCycles

	if stats.Instructions > 0 {
		result.CPI = float64(stats.Cycles) / float64(stats.Instructions)
	}

	return result
}

// PrintResults outputs benchmark results as a table.
func (h *Harness) PrintResults(results []BenchmarkResult) {
	tw := table.NewWriter()
	tw.SetOutputMirror(h.config.Output)
	tw.SetTitle("Directed Programs")
	tw.AppendHeader(table.Row{
		"Name", "Result", "Cycles", "Insts", "CPI", "Txns", "Continuous",
		"Loads", "Stores", "Periph", "Taken", "Stalls",
	})

	for _, r := range results {
		verdict := "pass"
		if !r.Passed {
			verdict = "FAIL"
		}

		tw.AppendRow(table.Row{
			r.Name, verdict, r.Cycles, r.InstructionsRetired, fmt.Sprintf("%.3f", r.CPI),
			r.Transactions, r.ContinuousReads, r.Loads, r.Stores,
			r.PeripheralAccesses, r.TakenBranches, r.StallCycles,
		})
	}

	tw.Render()

	for _, r := range results {
		if r.Error != "" {
			_, _ = fmt.Fprintf(h.config.Output, "%s: %s\n", r.Name, r.Error)
		}
		if h.config.Verbose {
			_, _ = fmt.Fprintf(h.config.Output, "%s: %s (%d bytes, %v)\n",
				r.Name, r.Description, r.ImageBytes, r.WallTime)
		}
	}
}

// PrintCSV outputs benchmark results in CSV format for easy comparison.
func (h *Harness) PrintCSV(results []BenchmarkResult) {
	_, _ = fmt.Fprintln(h.config.Output,
		"name,passed,cycles,instructions,cpi,transactions,continuous_reads,loads,stores,peripheral_accesses,taken_branches,stall_cycles,nibbles")

	for _, r := range results {
		_, _ = fmt.Fprintf(h.config.Output, "%s,%t,%d,%d,%.3f,%d,%d,%d,%d,%d,%d,%d,%d\n",
			r.Name,
			r.Passed,
			r.Cycles,
			r.InstructionsRetired,
			r.CPI,
			r.Transactions,
			r.ContinuousReads,
			r.Loads,
			r.Stores,
			r.PeripheralAccesses,
			r.TakenBranches,
			r.StallCycles,
			r.Nibbles,
		)
	}
}

// PrintJSON outputs benchmark results as an indented JSON array.
func (h *Harness) PrintJSON(results []BenchmarkResult) error {
	enc := json.NewEncoder(h.config.Output)
	enc.SetIndent("", "  ")
	return enc.Encode(results)
}
