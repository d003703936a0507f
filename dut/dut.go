// Package dut defines the pin-level contract between the harness and the
// device under test.
//
// The device is opaque: the harness only sets Inputs before a clock edge and
// reads Outputs after it. Select lines and the chip-select of the SPI
// peripheral are active low, as on the real pins.
package dut

// Inputs holds every signal driven into the device.
type Inputs struct {
	RstN bool
	Ena  bool

	// UIIn is the parallel input port.
	UIIn uint8
	// UIOIn is the input half of the bidirectional port.
	UIOIn uint8

	// QSPIDataIn carries the nibble driven by the memory side.
	QSPIDataIn uint8

	// LatencyCfg is latched while reset is asserted.
	LatencyCfg uint8

	UARTRx  uint8
	SPIMiso uint8
}

// Outputs holds every signal driven by the device.
type Outputs struct {
	FlashSelect uint8
	RAMASelect  uint8
	RAMBSelect  uint8

	QSPIClk     uint8
	QSPIDataOut uint8
	QSPIDataOE  uint8

	UARTTx      uint8
	DebugUARTTx uint8

	SPIMosi uint8
	SPISck  uint8
	SPICs   uint8

	UOOut  uint8
	UIOOut uint8
	UIOOE  uint8
}

// UIOOEIdle is the bidirectional port direction out of reset while no QSPI
// data is driven: the three selects and the QSPI clock are outputs.
const UIOOEIdle uint8 = 0b11001001

// IdleOutputs returns the output levels of a device with every select
// deasserted and both serial lines idle.
func IdleOutputs() Outputs {
	return Outputs{
		FlashSelect: 1,
		RAMASelect:  1,
		RAMBSelect:  1,
		UARTTx:      1,
		DebugUARTTx: 1,
		SPICs:       1,
	}
}

// SelectsAsserted returns how many of the three QSPI selects are low.
func (o Outputs) SelectsAsserted() int {
	n := 0
	for _, s := range []uint8{o.FlashSelect, o.RAMASelect, o.RAMBSelect} {
		if s == 0 {
			n++
		}
	}
	return n
}

// Device is a clocked model of the device under test.
type Device interface {
	// Clock applies one rising edge of the system clock with the given
	// inputs and returns the outputs that hold until the next rising edge.
	Clock(in Inputs) Outputs
}

// DeviceFunc adapts a function to the Device interface.
type DeviceFunc func(in Inputs) Outputs

// Clock calls f(in).
func (f DeviceFunc) Clock(in Inputs) Outputs {
	return f(in)
}
