// Package peripheral checks the serial peripherals of the device under test
// at pin level: UART frames on the transmit lines, SPI frames on mosi/sck/cs,
// and drives the UART receive line.
package peripheral

import (
	"errors"
	"fmt"

	"github.com/sarchlab/qvcheck/dut"
)

// Errors returned by the checkers.
var (
	// ErrNeverStarted means no frame began within the allowed time.
	ErrNeverStarted = errors.New("frame never started")
	// ErrWrongBits means a frame began but a bit had the wrong level.
	ErrWrongBits = errors.New("wrong bits")
)

// Pins is the pin access the checkers need. A *clock.Task satisfies it.
type Pins interface {
	Outputs() dut.Outputs
	Inputs() *dut.Inputs
	RisingEdges(n int)
	Timer(ns float64)
}

// FrameError reports the first wrong bit of a frame.
type FrameError struct {
	Peripheral string
	Signal     string
	Bit        int
	Want       uint32
	Got        uint32
}

func (e *FrameError) Error() string {
	return fmt.Sprintf("%s: %s bit %d: want %#x, got %#x",
		e.Peripheral, e.Signal, e.Bit, e.Want, e.Got)
}

// Unwrap makes errors.Is(err, ErrWrongBits) hold.
func (e *FrameError) Unwrap() error {
	return ErrWrongBits
}
