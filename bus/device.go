// Package bus models the shared quad-SPI bus between the core and its three
// memory devices.
//
// The Engine is the memory side of the bus. It drives instruction and load
// data into the device under test and checks, edge by edge, that every
// transaction has the expected shape: device select, command, address,
// dummy and data phases. Observe and Serve are the inverse: they decode
// whatever transaction the device starts and answer it from a Memory.
package bus

import (
	"fmt"

	"github.com/sarchlab/qvcheck/dut"
)

// Device identifies one of the three chips on the bus.
type Device uint8

// Bus devices.
const (
	DeviceFlash Device = iota
	DeviceRAMA
	DeviceRAMB

	numDevices
)

// Region boundaries.
const (
	RAMABase uint32 = 0x1000000
	RAMBBase uint32 = 0x1800000
	// AddressMask keeps the 24 address bits sent on the bus.
	AddressMask uint32 = 0xFFFFFF
)

// SelectDevice returns the device an address belongs to.
func SelectDevice(addr uint32) Device {
	switch {
	case addr >= RAMBBase:
		return DeviceRAMB
	case addr >= RAMABase:
		return DeviceRAMA
	default:
		return DeviceFlash
	}
}

func (d Device) String() string {
	switch d {
	case DeviceFlash:
		return "flash"
	case DeviceRAMA:
		return "ram-a"
	case DeviceRAMB:
		return "ram-b"
	}
	return fmt.Sprintf("device(%d)", uint8(d))
}

// IsRAM reports whether d is one of the pseudo-RAM devices.
func (d Device) IsRAM() bool {
	return d == DeviceRAMA || d == DeviceRAMB
}

// Selected reports whether d's select line is asserted (low).
func (d Device) Selected(out dut.Outputs) bool {
	switch d {
	case DeviceFlash:
		return out.FlashSelect == 0
	case DeviceRAMA:
		return out.RAMASelect == 0
	case DeviceRAMB:
		return out.RAMBSelect == 0
	}
	return false
}

// SelectedDevice returns the one device whose select is asserted. It fails
// with ErrSelectConflict if more than one is, and returns false if none is.
func SelectedDevice(out dut.Outputs) (Device, bool, error) {
	if n := out.SelectsAsserted(); n > 1 {
		return 0, false, fmt.Errorf("%w: %d selects low", ErrSelectConflict, n)
	}

	for d := DeviceFlash; d < numDevices; d++ {
		if d.Selected(out) {
			return d, true, nil
		}
	}

	return 0, false, nil
}

// Direction is the direction of the data phase.
type Direction uint8

// Transaction directions.
const (
	Read Direction = iota
	Write
)

func (d Direction) String() string {
	if d == Write {
		return "write"
	}
	return "read"
}

// Transaction is one logical exchange on the bus.
type Transaction struct {
	Device     Device
	Direction  Direction
	Addr       uint32
	Continuous bool

	// Bytes counts the data bytes fully transferred.
	Bytes uint32
	// Aborted is set when the device deselected before the caller finished.
	Aborted bool
}

// End returns the address following the last complete byte.
func (t Transaction) End() uint32 {
	return t.Addr + t.Bytes
}

func (t Transaction) String() string {
	kind := "cmd"
	if t.Continuous {
		kind = "continuous"
	}
	return fmt.Sprintf("%s %s %#07x+%d (%s)", t.Device, t.Direction, t.Addr, t.Bytes, kind)
}
