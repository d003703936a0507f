// Command qvcheck checks a QSPI-attached RISC-V core against the golden
// model.
//
// Usage:
//
//	qvcheck [flags] [random|peripherals|firmware]
//
// The random scenario resets the device, seeds every register, injects a
// random instruction stream and compares all registers with the golden
// model. The peripherals scenario writes the UART, SPI and output port and
// reads the receive registers back. The firmware scenario runs a flash image
// (an ELF file or a raw binary) and waits for the text given by -expect on
// the UART.
//
// Examples:
//
//	# 100 random scenarios on 8 workers
//	qvcheck -iterations 100 -parallel 8
//
//	# Replay one failing seed with bus tracing
//	qvcheck -seed 1234 -log-level trace
//
//	# Run a program until it prints "Hello"
//	qvcheck -image hello.elf -expect Hello firmware
package main

import (
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/tebeka/atexit"
	"golang.org/x/sync/errgroup"

	"github.com/sarchlab/qvcheck/bus"
	"github.com/sarchlab/qvcheck/loader"
	"github.com/sarchlab/qvcheck/scenario"
	"github.com/sarchlab/qvcheck/timing/clock"
	"github.com/sarchlab/qvcheck/timing/latency"
)

var (
	seed          = flag.Int64("seed", 1, "Seed of the first iteration")
	iterations    = flag.Int("iterations", 1, "Number of scenarios, seeds seed..seed+n-1")
	instructions  = flag.Int("instructions", 200, "Length of the random instruction stream")
	configPath    = flag.String("config", "", "Path to a timing configuration file (JSON or YAML)")
	protocolName  = flag.String("protocol", "revised", "Bus protocol: revised or legacy")
	registers     = flag.Int("registers", 16, "Register count: 16 (RV32E) or 32 (RV32I)")
	parallel      = flag.Int("parallel", 1, "Number of scenarios run at once")
	stopOnFailure = flag.Bool("stop-on-failure", false, "Skip remaining seeds after the first failure")
	aluOnly       = flag.Bool("alu-only", false, "Only generate ALU operations")
	imagePath     = flag.String("image", "", "Flash image for the firmware scenario")
	expect        = flag.String("expect", "", "UART text the firmware scenario waits for")
	verbose       = flag.Bool("v", false, "Print register tables of passing scenarios too")
	logLevel      = flag.String("log-level", "warn", "Log level: trace, debug, info, warn or error")
)

func main() {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: qvcheck [options] [random|peripherals|firmware]\n")
		fmt.Fprintf(os.Stderr, "\nOptions:\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	if err := setupLogging(*logLevel); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		atexit.Exit(2)
	}

	name := "random"
	if flag.NArg() > 0 {
		name = flag.Arg(0)
	}

	body, err := scenarioBody(name)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		flag.Usage()
		atexit.Exit(2)
	}

	cfg, err := buildConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		atexit.Exit(2)
	}

	runner := scenario.NewRunner(cfg)

	var report scenario.Report
	if *parallel > 1 {
		report = runParallel(runner, name, body, *parallel)
	} else {
		report = runner.RunBody(name, body)
	}

	if err := report.Render(os.Stdout, *verbose); err != nil {
		fmt.Fprintf(os.Stderr, "Error writing report: %v\n", err)
		atexit.Exit(2)
	}

	if report.Failed() > 0 {
		atexit.Exit(1)
	}

	atexit.Exit(0)
}

func setupLogging(level string) error {
	var l slog.Level

	switch strings.ToLower(level) {
	case "trace":
		l = clock.LevelTrace
	case "debug":
		l = slog.LevelDebug
	case "info":
		l = slog.LevelInfo
	case "warn":
		l = slog.LevelWarn
	case "error":
		l = slog.LevelError
	default:
		return fmt.Errorf("unknown log level %q", level)
	}

	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: l})
	slog.SetDefault(slog.New(handler))

	return nil
}

func scenarioBody(name string) (scenario.Body, error) {
	switch name {
	case "random":
		return scenario.Random, nil
	case "peripherals":
		return scenario.Peripherals, nil
	case "firmware":
		if *imagePath == "" || *expect == "" {
			return nil, errors.New("firmware needs -image and -expect")
		}

		image, err := loader.LoadImage(*imagePath)
		if err != nil {
			return nil, fmt.Errorf("loading image: %w", err)
		}
		slog.Info("image loaded", "path", *imagePath, "bytes", len(image))

		return scenario.Firmware(image, *expect), nil
	}

	return nil, fmt.Errorf("unknown scenario %q", name)
}

func buildConfig() (*scenario.Config, error) {
	timingConfig := latency.DefaultTimingConfig()
	if *configPath != "" {
		var err error
		timingConfig, err = latency.LoadConfig(*configPath)
		if err != nil {
			return nil, fmt.Errorf("loading timing config: %w", err)
		}
	}

	protocol, err := bus.ProtocolByName(*protocolName)
	if err != nil {
		return nil, err
	}

	if *registers != 16 && *registers != 32 {
		return nil, fmt.Errorf("register count must be 16 or 32, got %d", *registers)
	}

	if *iterations < 1 {
		return nil, fmt.Errorf("iterations must be positive, got %d", *iterations)
	}

	opts := []scenario.Option{
		scenario.WithTimingConfig(timingConfig),
		scenario.WithProtocol(protocol),
		scenario.WithRegisterCount(uint8(*registers)),
		scenario.WithSeed(*seed),
		scenario.WithIterations(*iterations),
		scenario.WithInstructions(*instructions),
		scenario.WithStopOnFirstFailure(*stopOnFailure),
	}
	if *aluOnly {
		opts = append(opts, scenario.WithCatalog(scenario.DefaultCatalog().ALUOnly()))
	}

	return scenario.NewConfig(opts...), nil
}

// runParallel runs every seed on up to workers goroutines. Each scenario
// has its own device and clock domain, so they share nothing but the
// configuration. With stop-on-failure set, seeds not yet started are
// skipped once one fails.
func runParallel(runner *scenario.Runner, name string, body scenario.Body, workers int) scenario.Report {
	cfg := runner.Config()

	var (
		mu     sync.Mutex
		report scenario.Report
		failed bool
	)

	var g errgroup.Group
	g.SetLimit(workers)

	for i := 0; i < cfg.Iterations; i++ {
		s := cfg.Seed + int64(i)

		g.Go(func() error {
			mu.Lock()
			skip := failed && cfg.StopOnFirstFailure
			mu.Unlock()
			if skip {
				return nil
			}

			res := runner.RunSeed(name, s, body)
			if !res.Passed() {
				slog.Warn("scenario failed", "name", name, "seed", s, "err", res.Err)
			}

			mu.Lock()
			defer mu.Unlock()
			report.Add(res)
			if !res.Passed() {
				failed = true
			}

			return nil
		})
	}

	_ = g.Wait()

	return report
}
