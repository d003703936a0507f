package scenario

import (
	"fmt"
	"math/rand"

	"github.com/sarchlab/qvcheck/bus"
	"github.com/sarchlab/qvcheck/emu"
)

// RAM holds the contents of both RAM chips, a byte at a time. Bytes never
// written read as random values drawn once and then remembered, or as zero
// if the RAM has no random source.
type RAM struct {
	bytes map[uint32]byte
	fill  *rand.Rand
}

// NewRAM creates an empty RAM. fill may be nil.
func NewRAM(fill *rand.Rand) *RAM {
	return &RAM{bytes: make(map[uint32]byte), fill: fill}
}

// Byte returns the byte at addr.
func (r *RAM) Byte(addr uint32) byte {
	b, ok := r.bytes[addr]
	if !ok && r.fill != nil {
		b = byte(r.fill.Intn(256))
		r.bytes[addr] = b
	}
	return b
}

// SetByte writes the byte at addr.
func (r *RAM) SetByte(addr uint32, b byte) {
	r.bytes[addr] = b
}

// Read returns size bytes at addr, little endian.
func (r *RAM) Read(addr uint32, size int) uint32 {
	var v uint32
	for i := size - 1; i >= 0; i-- {
		v = v<<8 | uint32(r.Byte(addr+uint32(i)))
	}
	return v
}

// Write stores the size low bytes of v at addr, little endian.
func (r *RAM) Write(addr uint32, v uint32, size int) {
	for i := 0; i < size; i++ {
		r.SetByte(addr+uint32(i), byte(v>>(8*i)))
	}
}

// Len returns the number of bytes that have been touched.
func (r *RAM) Len() int {
	return len(r.bytes)
}

// LoadByte implements bus.Memory. addr is the full address with the RAM
// base applied.
func (r *RAM) LoadByte(_ bus.Device, addr uint32) byte {
	return r.Byte(addr)
}

// StoreByte implements bus.Memory.
func (r *RAM) StoreByte(_ bus.Device, addr uint32, v byte) {
	r.SetByte(addr, v)
}

// MemorySide is the part of the bus the harness plays: the protocol engine
// and the contents of the RAM chips.
type MemorySide struct {
	Engine *bus.Engine
	RAM    *RAM
}

func (s MemorySide) load(p bus.Port, a emu.Access) (uint32, error) {
	data := s.RAM.Read(a.Addr, a.Size)

	if err := s.Engine.StartRead(p, a.Addr); err != nil {
		return 0, fmt.Errorf("load from %#x: %w", a.Addr, err)
	}
	if err := s.Engine.DriveLoad(p, data, a.Size); err != nil {
		return 0, fmt.Errorf("load from %#x: %w", a.Addr, err)
	}
	if err := s.Engine.EndTransaction(p); err != nil {
		return 0, fmt.Errorf("load from %#x: %w", a.Addr, err)
	}

	return data, nil
}

func (s MemorySide) store(p bus.Port, a emu.Access) (uint32, error) {
	if err := s.Engine.StartWrite(p, a.Addr); err != nil {
		return 0, fmt.Errorf("store to %#x: %w", a.Addr, err)
	}

	got, err := s.Engine.SampleStore(p, a.Size)
	if err != nil {
		return 0, fmt.Errorf("store to %#x: %w", a.Addr, err)
	}

	if err := s.Engine.EndTransaction(p); err != nil {
		return 0, fmt.Errorf("store to %#x: %w", a.Addr, err)
	}

	s.RAM.Write(a.Addr, got, a.Size)

	return got, nil
}
