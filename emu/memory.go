package emu

import (
	"fmt"

	"github.com/sarchlab/qvcheck/bus"
)

// PeripheralBase is the first address of the core's internal peripherals.
const PeripheralBase uint32 = 0x8000000

// Region identifies the part of the address space an access falls in.
type Region uint8

// Address space regions.
const (
	RegionFlash Region = iota
	RegionRAMA
	RegionRAMB
	RegionPeripheral
)

var regionNames = [...]string{"flash", "ram-a", "ram-b", "peripheral"}

func (r Region) String() string {
	if int(r) < len(regionNames) {
		return regionNames[r]
	}
	return fmt.Sprintf("region(%d)", uint8(r))
}

// Device returns the bus device that serves the region. Peripherals are
// internal to the core and have no bus device.
func (r Region) Device() (bus.Device, bool) {
	switch r {
	case RegionFlash:
		return bus.DeviceFlash, true
	case RegionRAMA:
		return bus.DeviceRAMA, true
	case RegionRAMB:
		return bus.DeviceRAMB, true
	}
	return 0, false
}

// AddressSpace maps addresses to regions. It holds no contents.
type AddressSpace struct {
	peripheralBase uint32
}

// NewAddressSpace creates the address space of the core.
func NewAddressSpace() *AddressSpace {
	return &AddressSpace{peripheralBase: PeripheralBase}
}

// Region returns the region addr falls in.
func (s *AddressSpace) Region(addr uint32) Region {
	if addr >= s.peripheralBase {
		return RegionPeripheral
	}

	switch bus.SelectDevice(addr) {
	case bus.DeviceRAMA:
		return RegionRAMA
	case bus.DeviceRAMB:
		return RegionRAMB
	}

	return RegionFlash
}

// Access is the predicted memory side effect of a load or store.
type Access struct {
	Addr   uint32
	Size   int
	Region Region
	Store  bool

	// Value is the data a store writes, truncated to Size bytes.
	Value uint32
}

// Device returns the bus device that carries the access.
func (a Access) Device() (bus.Device, bool) {
	return a.Region.Device()
}

// Offset returns the peripheral register offset of a peripheral access.
func (a Access) Offset() uint32 {
	return a.Addr - PeripheralBase
}

func (a Access) String() string {
	kind := "load"
	if a.Store {
		kind = "store"
	}
	return fmt.Sprintf("%s %d bytes at %#x (%s)", kind, a.Size, a.Addr, a.Region)
}
