package core

// Peripheral register offsets from the thread pointer.
const (
	RegGPIOOut     uint32 = 0x00
	RegGPIOIn      uint32 = 0x04
	RegUARTData    uint32 = 0x10
	RegUARTStatus  uint32 = 0x14
	RegDebugUART   uint32 = 0x18
	RegSPIData     uint32 = 0x20
	RegSPIStatus   uint32 = 0x24
	SPIEndTransfer uint32 = 0x100
)

// UART status bits.
const (
	UARTTxBusy      uint32 = 1 << 0
	UARTRxValid     uint32 = 1 << 1
	DebugUARTTxBusy uint32 = 1 << 2
)

// uartTx sends 8N1 frames, one bit every divider cycles.
type uartTx struct {
	divider uint64

	active bool
	frame  uint16
	bit    int
	count  uint64
}

func (u *uartTx) send(b byte) bool {
	if u.active {
		return false
	}

	u.active = true
	u.frame = 1<<9 | uint16(b)<<1
	u.bit = 0
	u.count = 0

	return true
}

func (u *uartTx) tick() uint8 {
	if !u.active {
		return 1
	}

	level := uint8(u.frame>>u.bit) & 1

	u.count++
	if u.count == u.divider {
		u.count = 0
		u.bit++
		if u.bit == 10 {
			u.active = false
		}
	}

	return level
}

// uartRx samples 8N1 frames in the middle of each bit.
type uartRx struct {
	divider uint64

	active bool
	bit    int
	count  uint64
	shift  uint8

	data  uint8
	valid bool
}

func (u *uartRx) tick(level uint8) {
	if !u.active {
		if level == 0 {
			u.active = true
			u.bit = 0
			u.count = u.divider / 2
		}
		return
	}

	if u.count > 0 {
		u.count--
		return
	}
	u.count = u.divider - 1

	switch {
	case u.bit == 0:
		if level != 0 {
			u.active = false
			return
		}
	case u.bit <= 8:
		u.shift = u.shift>>1 | level<<7
	default:
		u.active = false
		if level == 1 {
			u.data = u.shift
			u.valid = true
		}
		return
	}

	u.bit++
}

func (u *uartRx) read() uint8 {
	u.valid = false
	return u.data
}

// spiMaster holds cs low with sck low for latency cycles, then shifts one
// byte out MSB first and samples MISO on each rising edge of sck. Each sck
// level lasts divider cycles.
type spiMaster struct {
	divider uint64
	latency uint64
	wait    uint64

	active bool
	end    bool
	data   uint8
	rx     uint8
	bit    int
	high   bool
	count  uint64

	cs   uint8
	sck  uint8
	mosi uint8
}

func (s *spiMaster) send(v uint32) bool {
	if s.active {
		return false
	}

	s.active = true
	s.data = uint8(v)
	s.end = v&SPIEndTransfer != 0
	s.bit = 0
	s.high = false
	s.count = 0
	s.wait = s.latency

	return true
}

func (s *spiMaster) tick(miso uint8) {
	if !s.active {
		s.sck = 0
		if s.end {
			s.cs = 1
		}
		return
	}

	s.cs = 0
	s.mosi = s.data >> (7 - s.bit) & 1
	s.sck = 0
	if s.wait > 0 {
		s.wait--
		return
	}
	if s.high {
		s.sck = 1
		if s.count == 0 {
			s.rx = s.rx<<1 | miso&1
		}
	}

	s.count++
	if s.count < s.divider {
		return
	}

	s.count = 0
	if !s.high {
		s.high = true
		return
	}

	s.high = false
	s.bit++
	if s.bit == 8 {
		s.active = false
	}
}

// peripherals holds the devices reached through the thread pointer.
type peripherals struct {
	uart      uartTx
	debugUART uartTx
	rx        uartRx
	spi       spiMaster

	gpioOut uint8
	gpioIn  uint8

	uartTx      uint8
	debugUARTTx uint8
	dropped     uint64
}

func newPeripherals(uartDivider, spiDivider, spiLatency uint64) *peripherals {
	return &peripherals{
		uart:        uartTx{divider: uartDivider},
		debugUART:   uartTx{divider: uartDivider},
		rx:          uartRx{divider: uartDivider},
		spi:         spiMaster{divider: spiDivider, latency: spiLatency, cs: 1},
		uartTx:      1,
		debugUARTTx: 1,
	}
}

type pinInputs struct {
	gpio uint8
	rx   uint8
	miso uint8
}

func (p *peripherals) tick(in pinInputs) {
	p.gpioIn = in.gpio
	p.uartTx = p.uart.tick()
	p.debugUARTTx = p.debugUART.tick()
	p.rx.tick(in.rx)
	p.spi.tick(in.miso)
}

func (p *peripherals) store(offset, value uint32) {
	ok := true

	switch offset {
	case RegGPIOOut:
		p.gpioOut = uint8(value)
	case RegUARTData:
		ok = p.uart.send(uint8(value))
	case RegDebugUART:
		ok = p.debugUART.send(uint8(value))
	case RegSPIData:
		ok = p.spi.send(value)
	default:
		ok = false
	}

	if !ok {
		p.dropped++
	}
}

func (p *peripherals) load(offset uint32) uint32 {
	switch offset {
	case RegGPIOOut:
		return uint32(p.gpioOut)
	case RegGPIOIn:
		return uint32(p.gpioIn)
	case RegUARTData:
		return uint32(p.rx.read())
	case RegUARTStatus:
		var status uint32
		if p.uart.active {
			status |= UARTTxBusy
		}
		if p.rx.valid {
			status |= UARTRxValid
		}
		if p.debugUART.active {
			status |= DebugUARTTxBusy
		}
		return status
	case RegSPIData:
		return uint32(p.spi.rx)
	case RegSPIStatus:
		if p.spi.active {
			return 1
		}
	}

	return 0
}
