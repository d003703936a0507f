package latency

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// TimingConfig holds the clock, protocol and peripheral timing used by a
// scenario, plus the execution cycles of the reference core.
type TimingConfig struct {
	// ClockPeriodNs is the system clock period. Default: 15 ns.
	ClockPeriodNs float64 `json:"clock_period_ns" yaml:"clock_period_ns"`

	// LatencyCfg is the value driven on latency_cfg during reset.
	// Default: 1.
	LatencyCfg uint8 `json:"latency_cfg" yaml:"latency_cfg"`

	// ResetCycles is the number of cycles rst_n is held low. Default: 10.
	ResetCycles uint64 `json:"reset_cycles" yaml:"reset_cycles"`

	// EdgeWaitLimit is the number of system cycles the harness waits for
	// each rising QSPI clock during a data phase. Default: 20.
	EdgeWaitLimit uint64 `json:"edge_wait_limit" yaml:"edge_wait_limit"`

	// MaxCycles bounds a whole scenario. Default: 5,000,000 cycles.
	MaxCycles uint64 `json:"max_cycles" yaml:"max_cycles"`

	// UARTBitTimeNs is the duration of one UART bit. Default: 8680 ns.
	UARTBitTimeNs float64 `json:"uart_bit_time_ns" yaml:"uart_bit_time_ns"`

	// UARTStartPollCycles is the interval between checks for a start bit.
	// Default: 8 cycles.
	UARTStartPollCycles uint64 `json:"uart_start_poll_cycles" yaml:"uart_start_poll_cycles"`

	// UARTStartPolls is the number of start bit checks before giving up.
	// Default: 5000.
	UARTStartPolls uint64 `json:"uart_start_polls" yaml:"uart_start_polls"`

	// SPIDivider is the number of cycles each SPI clock level lasts.
	// Default: 1.
	SPIDivider uint64 `json:"spi_divider" yaml:"spi_divider"`

	// SPIStartWaitCycles is how long the harness waits for the SPI chip
	// select to fall. Default: 20 cycles.
	SPIStartWaitCycles uint64 `json:"spi_start_wait_cycles" yaml:"spi_start_wait_cycles"`

	// SPILatency is the number of cycles cs is low with sck still low
	// before the first bit of a frame. Default: 0.
	SPILatency uint64 `json:"spi_latency" yaml:"spi_latency"`

	// ALULatency is the execution time of ALU operations in the reference
	// core. Default: 1 cycle.
	ALULatency uint64 `json:"alu_latency" yaml:"alu_latency"`

	// MultiplyLatency is the execution time of c.mul. Default: 4 cycles.
	MultiplyLatency uint64 `json:"multiply_latency" yaml:"multiply_latency"`

	// BranchLatency is the execution time of branches and jumps.
	// Default: 1 cycle.
	BranchLatency uint64 `json:"branch_latency" yaml:"branch_latency"`

	// LoadLatency is the execution time of a load once its data arrived.
	// Default: 1 cycle.
	LoadLatency uint64 `json:"load_latency" yaml:"load_latency"`

	// StoreLatency is the execution time of a store once its data left.
	// Default: 1 cycle.
	StoreLatency uint64 `json:"store_latency" yaml:"store_latency"`
}

// DefaultTimingConfig returns a TimingConfig with the default values.
func DefaultTimingConfig() *TimingConfig {
	return &TimingConfig{
		ClockPeriodNs:       15,
		LatencyCfg:          1,
		ResetCycles:         10,
		EdgeWaitLimit:       20,
		MaxCycles:           5_000_000,
		UARTBitTimeNs:       8680,
		UARTStartPollCycles: 8,
		UARTStartPolls:      5000,
		SPIDivider:          1,
		SPIStartWaitCycles:  20,
		ALULatency:          1,
		MultiplyLatency:     4,
		BranchLatency:       1,
		LoadLatency:         1,
		StoreLatency:        1,
	}
}

// SlowTimingConfig returns the configuration of a core clocked at
// 15.624 ns with three cycles of read latency and a long start poll.
func SlowTimingConfig() *TimingConfig {
	c := DefaultTimingConfig()
	c.ClockPeriodNs = 15.624
	c.LatencyCfg = 3
	c.UARTStartPolls = 20000
	return c
}

func isYAML(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yaml" || ext == ".yml"
}

// LoadConfig loads a TimingConfig from a JSON or YAML file. Fields missing
// from the file keep their default values.
func LoadConfig(path string) (*TimingConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read timing config file: %w", err)
	}

	config := DefaultTimingConfig()
	if isYAML(path) {
		err = yaml.Unmarshal(data, config)
	} else {
		err = json.Unmarshal(data, config)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to parse timing config: %w", err)
	}

	return config, nil
}

// SaveConfig writes a TimingConfig to a JSON or YAML file, chosen by the
// file extension.
func (c *TimingConfig) SaveConfig(path string) error {
	var (
		data []byte
		err  error
	)

	if isYAML(path) {
		data, err = yaml.Marshal(c)
	} else {
		data, err = json.MarshalIndent(c, "", "  ")
	}

	if err != nil {
		return fmt.Errorf("failed to serialize timing config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write timing config file: %w", err)
	}

	return nil
}

// Validate checks that all timing values are usable.
func (c *TimingConfig) Validate() error {
	if c.ClockPeriodNs <= 0 {
		return fmt.Errorf("clock_period_ns must be > 0")
	}
	if c.LatencyCfg > 7 {
		return fmt.Errorf("latency_cfg must be <= 7")
	}
	if c.ResetCycles < 2 {
		return fmt.Errorf("reset_cycles must be >= 2")
	}
	if c.EdgeWaitLimit == 0 {
		return fmt.Errorf("edge_wait_limit must be > 0")
	}
	if c.UARTBitTimeNs < 2*c.ClockPeriodNs {
		return fmt.Errorf("uart_bit_time_ns must be at least two clock periods")
	}
	if c.UARTStartPollCycles == 0 || c.UARTStartPolls == 0 {
		return fmt.Errorf("uart start poll must be > 0")
	}
	if c.SPIDivider == 0 {
		return fmt.Errorf("spi_divider must be > 0")
	}

	for name, v := range map[string]uint64{
		"alu_latency":      c.ALULatency,
		"multiply_latency": c.MultiplyLatency,
		"branch_latency":   c.BranchLatency,
		"load_latency":     c.LoadLatency,
		"store_latency":    c.StoreLatency,
	} {
		if v == 0 {
			return fmt.Errorf("%s must be > 0", name)
		}
		if v+uint64(c.LatencyCfg) >= c.EdgeWaitLimit {
			return fmt.Errorf("%s plus latency_cfg must be < edge_wait_limit", name)
		}
	}

	return nil
}

// Clone returns a deep copy of the TimingConfig.
func (c *TimingConfig) Clone() *TimingConfig {
	clone := *c
	return &clone
}

// UARTDivider returns the number of clock cycles per UART bit.
func (c *TimingConfig) UARTDivider() uint64 {
	return uint64(c.UARTBitTimeNs/c.ClockPeriodNs + 0.5)
}
