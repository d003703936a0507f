package scenario

import (
	"github.com/sarchlab/qvcheck/bus"
	"github.com/sarchlab/qvcheck/dut"
	"github.com/sarchlab/qvcheck/emu"
	"github.com/sarchlab/qvcheck/insts"
	"github.com/sarchlab/qvcheck/timing/core"
	"github.com/sarchlab/qvcheck/timing/latency"
)

// Window is the RAM range random loads and stores may touch.
type Window struct {
	Base uint32
	Size uint32
}

// Contains reports whether the size bytes at addr lie inside the window.
func (w Window) Contains(addr uint32, size int) bool {
	return addr >= w.Base && uint64(addr)+uint64(size) <= uint64(w.Base)+uint64(w.Size)
}

// DefaultWindow spans 1 KiB either side of gp, all of it in RAM A.
func DefaultWindow() Window {
	return Window{Base: emu.DefaultGP - 0x400, Size: 0x800}
}

// DeviceFactory builds a fresh device under test for one scenario.
type DeviceFactory func(c *Config) dut.Device

// ReferenceCore builds the behavioural core from the scenario
// configuration.
func ReferenceCore(c *Config) dut.Device {
	return core.MakeBuilder().
		WithProtocol(c.Protocol).
		WithTimingConfig(c.Timing).
		WithRegisterCount(c.RegisterCount).
		Build("Core")
}

// Config holds everything a scenario run needs.
type Config struct {
	Timing        *latency.TimingConfig
	Protocol      bus.Protocol
	RegisterCount uint8

	// Seed is the seed of the first iteration; iteration i uses Seed+i.
	Seed       int64
	Iterations int

	// Instructions is the length of the random stream of each iteration.
	Instructions int
	Catalog      Catalog
	Window       Window

	// ScratchOffset is the gp-relative address of the verification stores.
	ScratchOffset int32

	StopOnFirstFailure bool

	Device DeviceFactory
}

// Option configures a scenario run.
type Option func(*Config)

// WithTimingConfig sets the clock, reset and peripheral timing.
func WithTimingConfig(t *latency.TimingConfig) Option {
	return func(c *Config) {
		c.Timing = t
	}
}

// WithProtocol sets the bus protocol the engine expects.
func WithProtocol(p bus.Protocol) Option {
	return func(c *Config) {
		c.Protocol = p
	}
}

// WithRegisterCount selects RV32E (16) or RV32I (32) registers.
func WithRegisterCount(n uint8) Option {
	return func(c *Config) {
		c.RegisterCount = n
	}
}

// WithSeed sets the seed of the first iteration.
func WithSeed(seed int64) Option {
	return func(c *Config) {
		c.Seed = seed
	}
}

// WithIterations sets how many independent scenarios a Runner runs.
func WithIterations(n int) Option {
	return func(c *Config) {
		c.Iterations = n
	}
}

// WithInstructions sets the length of the random instruction stream.
func WithInstructions(n int) Option {
	return func(c *Config) {
		c.Instructions = n
	}
}

// WithCatalog replaces the operation catalog.
func WithCatalog(cat Catalog) Option {
	return func(c *Config) {
		c.Catalog = cat
	}
}

// WithWindow sets the RAM window of random loads and stores.
func WithWindow(w Window) Option {
	return func(c *Config) {
		c.Window = w
	}
}

// WithStopOnFirstFailure makes a Runner skip the remaining iterations after
// the first failure.
func WithStopOnFirstFailure(stop bool) Option {
	return func(c *Config) {
		c.StopOnFirstFailure = stop
	}
}

// WithDevice sets the factory of the device under test.
func WithDevice(f DeviceFactory) Option {
	return func(c *Config) {
		c.Device = f
	}
}

// NewConfig returns the default configuration with opts applied.
func NewConfig(opts ...Option) *Config {
	c := &Config{
		Timing:        latency.DefaultTimingConfig(),
		Protocol:      bus.RevisedProtocol(),
		RegisterCount: insts.DefaultRegisterCount,
		Seed:          1,
		Iterations:    1,
		Instructions:  200,
		Catalog:       DefaultCatalog(),
		Window:        DefaultWindow(),
		ScratchOffset: 0x100,
		Device:        ReferenceCore,
	}

	for _, opt := range opts {
		opt(c)
	}

	c.Protocol.EdgeWaitLimit = int(c.Timing.EdgeWaitLimit)

	return c
}
