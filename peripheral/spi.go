package peripheral

import (
	"fmt"

	"github.com/sarchlab/qvcheck/dut"
	"github.com/sarchlab/qvcheck/timing/clock"
	"github.com/sarchlab/qvcheck/timing/latency"
)

// SPIChecker checks SPI frames: after latency cycles with cs low and sck
// low, eight bits MSB first, each bit divider cycles with sck low and
// divider cycles with sck high, mosi stable across both. It can answer on
// MISO.
type SPIChecker struct {
	divider   int
	latency   int
	startWait int

	miso    byte
	driving bool
}

// NewSPIChecker creates a checker with the SPI divider, latency and start
// wait of c.
func NewSPIChecker(c *latency.TimingConfig) *SPIChecker {
	return &SPIChecker{
		divider:   int(c.SPIDivider),
		latency:   int(c.SPILatency),
		startWait: int(c.SPIStartWaitCycles),
	}
}

// WithLatency sets the number of cycles before the first sck edge.
func (s *SPIChecker) WithLatency(cycles int) *SPIChecker {
	s.latency = cycles
	return s
}

// WithResponse makes the checker drive b on MISO, MSB first, during the
// next frames.
func (s *SPIChecker) WithResponse(b byte) *SPIChecker {
	s.miso = b
	s.driving = true
	return s
}

// AwaitSelect waits, a bounded number of cycles, for cs to fall.
func (s *SPIChecker) AwaitSelect(p Pins) error {
	if p.Outputs().SPICs == 0 {
		return nil
	}

	for i := 0; i < s.startWait; i++ {
		p.RisingEdges(1)
		if p.Outputs().SPICs == 0 {
			return nil
		}
	}

	return fmt.Errorf("spi: %w: cs high for %d cycles", ErrNeverStarted, s.startWait)
}

// Expect waits for cs to fall and checks the eight bits of want.
func (s *SPIChecker) Expect(p Pins, want byte) error {
	if err := s.AwaitSelect(p); err != nil {
		return err
	}

	for k := 0; k < s.latency; k++ {
		out := p.Outputs()
		if out.SPICs != 0 {
			return &FrameError{Peripheral: "spi", Signal: "cs", Bit: 0, Want: 0, Got: uint32(out.SPICs)}
		}
		if out.SPISck != 0 {
			return &FrameError{Peripheral: "spi", Signal: "sck", Bit: 0, Want: 0, Got: uint32(out.SPISck)}
		}
		p.RisingEdges(1)
	}

	for i := 0; i < 8; i++ {
		bit := uint8(want>>(7-i)) & 1

		if s.driving {
			p.Inputs().SPIMiso = uint8(s.miso>>(7-i)) & 1
		}

		for _, sck := range []uint8{0, 1} {
			for k := 0; k < s.divider; k++ {
				if err := s.check(p.Outputs(), i, sck, bit); err != nil {
					return err
				}
				p.RisingEdges(1)
			}
		}
	}

	clock.Trace("spi frame", "byte", want)

	return nil
}

// ExpectEnd checks cs rises within two SPI clock periods of the last bit.
func (s *SPIChecker) ExpectEnd(p Pins) error {
	for k := 0; k < 2*s.divider; k++ {
		if p.Outputs().SPICs == 1 {
			return nil
		}
		p.RisingEdges(1)
	}

	got := p.Outputs().SPICs
	if got == 1 {
		return nil
	}

	return &FrameError{Peripheral: "spi", Signal: "cs", Bit: 8, Want: 1, Got: uint32(got)}
}

func (s *SPIChecker) check(out dut.Outputs, bit int, sck, mosi uint8) error {
	switch {
	case out.SPICs != 0:
		return &FrameError{Peripheral: "spi", Signal: "cs", Bit: bit, Want: 0, Got: uint32(out.SPICs)}
	case out.SPISck != sck:
		return &FrameError{Peripheral: "spi", Signal: "sck", Bit: bit, Want: uint32(sck), Got: uint32(out.SPISck)}
	case out.SPIMosi != mosi:
		return &FrameError{Peripheral: "spi", Signal: "mosi", Bit: bit, Want: uint32(mosi), Got: uint32(out.SPIMosi)}
	}
	return nil
}
