package scenario

import (
	"errors"
	"fmt"

	"github.com/sarchlab/qvcheck/insts"
	"github.com/sarchlab/qvcheck/peripheral"
	"github.com/sarchlab/qvcheck/timing/clock"
	"github.com/sarchlab/qvcheck/timing/core"
)

// Bytes used by the peripheral scenario.
const (
	PeripheralUARTByte  = 0x54
	PeripheralSPIByte   = 0xA5
	PeripheralMISOByte  = 0x3C
	PeripheralRxByte    = 'Q'
	PeripheralGPIOValue = 0x5A
)

// WhileFilling runs fn while the filler keeps the device fetching, then
// stops the filler. fn must not issue instructions.
func (d *Driver) WhileFilling(t *clock.Task, fn func() error) error {
	f, err := d.StartFiller(t)
	if err != nil {
		return err
	}

	ferr := fn()

	if _, err := f.Stop(t); err != nil {
		return errors.Join(ferr, err)
	}

	return ferr
}

// Peripherals is the start-up check of the design: eight immediates, a
// UART byte and an SPI byte written through tp while the filler runs, the
// parallel output port, the SPI and UART receive registers read back, and
// finally the register verification.
func Peripherals(t *clock.Task, d *Driver) error {
	if err := d.Setup(t); err != nil {
		return fmt.Errorf("setup: %w", err)
	}
	d.stage = StageInjectStream

	if err := peripheralSequence(t, d); err != nil {
		return fmt.Errorf("seed %d, peripherals: %w", d.seed, err)
	}

	d.stage = StageVerify
	if err := d.Verify(t); err != nil {
		return fmt.Errorf("seed %d, verify: %w", d.seed, err)
	}
	d.stage = StageDone

	return nil
}

func peripheralSequence(t *clock.Task, d *Driver) error {
	tp := insts.RegTP
	timing := d.cfg.Timing

	for i := 0; i < 8; i++ {
		if err := d.Issue(t, insts.ADDI(uint8(i+8), 0, int32(0x102*i))); err != nil {
			return err
		}
	}

	if err := d.issueAll(t,
		insts.ADDI(1, 0, PeripheralUARTByte),
		insts.SW(tp, 1, int32(core.RegUARTData)),
	); err != nil {
		return err
	}

	uart := peripheral.NewUARTChecker(timing)
	if err := d.WhileFilling(t, func() error {
		return uart.Expect(t, PeripheralUARTByte)
	}); err != nil {
		return fmt.Errorf("uart tx: %w", err)
	}

	if err := d.issueAll(t,
		insts.ADDI(1, 0, int32(PeripheralSPIByte|core.SPIEndTransfer)),
		insts.SW(tp, 1, int32(core.RegSPIData)),
	); err != nil {
		return err
	}

	spi := peripheral.NewSPIChecker(timing).WithResponse(PeripheralMISOByte)
	if err := d.WhileFilling(t, func() error {
		if err := spi.Expect(t, PeripheralSPIByte); err != nil {
			return err
		}
		return spi.ExpectEnd(t)
	}); err != nil {
		return fmt.Errorf("spi: %w", err)
	}

	if err := d.IssuePeripheralLoad(t, insts.LW(5, tp, int32(core.RegSPIData)), PeripheralMISOByte); err != nil {
		return err
	}

	if err := d.issueAll(t,
		insts.ADDI(1, 0, PeripheralGPIOValue),
		insts.SW(tp, 1, int32(core.RegGPIOOut)),
		insts.NOP(),
	); err != nil {
		return err
	}
	if got := t.Outputs().UOOut; got != PeripheralGPIOValue {
		return fmt.Errorf("%w: uo_out = %#02x, want %#02x", ErrMismatch, got, PeripheralGPIOValue)
	}

	rx := peripheral.NewUARTDriver(timing)
	if err := d.WhileFilling(t, func() error {
		rx.Send(t, PeripheralRxByte)
		return nil
	}); err != nil {
		return fmt.Errorf("uart rx: %w", err)
	}

	return d.IssuePeripheralLoad(t, insts.LW(6, tp, int32(core.RegUARTData)), PeripheralRxByte)
}

func (d *Driver) issueAll(t *clock.Task, list ...insts.Instruction) error {
	for _, inst := range list {
		if err := d.Issue(t, inst); err != nil {
			return err
		}
	}
	return nil
}
