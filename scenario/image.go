package scenario

import (
	"fmt"

	"github.com/sarchlab/qvcheck/bus"
	"github.com/sarchlab/qvcheck/peripheral"
	"github.com/sarchlab/qvcheck/timing/clock"
)

// ImageServer plays flash and RAM for a device running a firmware image.
// It answers whatever transaction the device starts: reads of flash come
// from the image, RAM accesses go to a RAM.
type ImageServer struct {
	engine *bus.Engine
	flash  []byte
	ram    *RAM

	flashWrites int
}

// NewImageServer creates a server for flash image over engine.
func NewImageServer(engine *bus.Engine, flash []byte, ram *RAM) *ImageServer {
	return &ImageServer{engine: engine, flash: flash, ram: ram}
}

// LoadByte implements bus.Memory. Flash past the end of the image reads as
// zero.
func (s *ImageServer) LoadByte(dev bus.Device, addr uint32) byte {
	if dev != bus.DeviceFlash {
		return s.ram.LoadByte(dev, addr)
	}

	if int(addr) < len(s.flash) {
		return s.flash[addr]
	}
	return 0
}

// StoreByte implements bus.Memory. Writes to flash are counted and dropped.
func (s *ImageServer) StoreByte(dev bus.Device, addr uint32, v byte) {
	if dev == bus.DeviceFlash {
		s.flashWrites++
		return
	}
	s.ram.StoreByte(dev, addr, v)
}

// FlashWrites returns how many bytes the device tried to write to flash.
func (s *ImageServer) FlashWrites() int {
	return s.flashWrites
}

// Serve answers transactions until the task is killed or the device breaks
// the protocol.
func (s *ImageServer) Serve(t *clock.Task) error {
	for {
		txn, err := s.engine.Serve(t, s, 0)
		if err != nil {
			return fmt.Errorf("image server: %w", err)
		}
		clock.Trace("image server", "txn", txn.String())
	}
}

// Firmware returns a body that resets the device, serves image as the
// flash contents and waits for want to arrive on the UART.
func Firmware(image []byte, want string) Body {
	return func(t *clock.Task, d *Driver) error {
		if err := Reset(t, d.cfg.Timing); err != nil {
			return fmt.Errorf("seed %d, setup: %w", d.seed, err)
		}
		d.model.Reset()
		d.side.Engine.Reset()

		srv := NewImageServer(d.side.Engine, image, d.side.RAM)
		t.Spawn("image-server", srv.Serve)
		d.stage = StageInjectStream

		uart := peripheral.NewUARTChecker(d.cfg.Timing)
		if err := uart.ExpectString(t, want); err != nil {
			return fmt.Errorf("seed %d, firmware: %w", d.seed, err)
		}

		if n := srv.FlashWrites(); n > 0 {
			return fmt.Errorf("seed %d, firmware: %d bytes written to flash", d.seed, n)
		}

		d.stage = StageDone

		return nil
	}
}
