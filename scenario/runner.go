package scenario

import (
	"fmt"
	"log/slog"

	"github.com/sarchlab/qvcheck/bus"
	"github.com/sarchlab/qvcheck/timing/clock"
)

// Body is the main task of a scenario.
type Body func(t *clock.Task, d *Driver) error

// Random is the randomized scenario: setup, seed the registers, inject the
// random stream and verify.
func Random(t *clock.Task, d *Driver) error {
	return d.Run(t)
}

// Result is the outcome of one scenario.
type Result struct {
	Name  string
	Seed  int64
	Err   error
	State State

	Cycles uint64
	Stats  Stats
	Bus    bus.Stats
	Checks []RegisterCheck

	// BusTransactions counts, per device, the transactions the bus monitor
	// saw.
	BusTransactions map[bus.Device]int
}

// Passed reports whether the scenario finished without error.
func (r Result) Passed() bool {
	return r.Err == nil
}

// Runner runs independent scenarios, each on a freshly built device with
// its own seed.
type Runner struct {
	cfg *Config
}

// NewRunner creates a runner for cfg.
func NewRunner(cfg *Config) *Runner {
	return &Runner{cfg: cfg}
}

// Config returns the runner configuration.
func (r *Runner) Config() *Config {
	return r.cfg
}

// Run runs cfg.Iterations random scenarios with seeds Seed, Seed+1, ...
// A failure does not stop the remaining iterations unless the
// configuration asks for it.
func (r *Runner) Run() Report {
	return r.RunBody("random", Random)
}

// RunBody runs body once per iteration.
func (r *Runner) RunBody(name string, body Body) Report {
	var rep Report

	for i := 0; i < r.cfg.Iterations; i++ {
		res := r.RunSeed(name, r.cfg.Seed+int64(i), body)
		rep.Results = append(rep.Results, res)

		if !res.Passed() {
			slog.Warn("scenario failed", "name", name, "seed", res.Seed, "err", res.Err)
			if r.cfg.StopOnFirstFailure {
				break
			}
		}
	}

	return rep
}

// RunSeed builds a device and a clock domain, runs body with a driver
// seeded with seed and collects the result. It is safe to call from
// several goroutines at once.
func (r *Runner) RunSeed(name string, seed int64, body Body) Result {
	cfg := r.cfg

	domain := clock.MakeBuilder().
		WithDevice(cfg.Device(cfg)).
		WithPeriodNs(cfg.Timing.ClockPeriodNs).
		WithMaxCycles(cfg.Timing.MaxCycles).
		Build(fmt.Sprintf("Clock[%d]", seed))

	monitor := bus.NewMonitor()
	domain.AcceptHook(monitor)

	d := NewDriver(cfg, seed)

	err := domain.Run(name, func(t *clock.Task) error {
		return body(t, d)
	})
	if err == nil {
		err = monitor.Err()
	}

	res := Result{
		Name:   name,
		Seed:   seed,
		Err:    err,
		State:  d.State(),
		Cycles: domain.Cycle(),
		Stats:  d.Stats(),
		Bus:    d.Engine().Stats(),
		Checks: d.Checks(),
		BusTransactions: map[bus.Device]int{
			bus.DeviceFlash: monitor.Transactions(bus.DeviceFlash),
			bus.DeviceRAMA:  monitor.Transactions(bus.DeviceRAMA),
			bus.DeviceRAMB:  monitor.Transactions(bus.DeviceRAMB),
		},
	}

	return res
}
