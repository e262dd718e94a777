package latticeprog

import (
	"fmt"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpiotest"
)

// flashModel simulates a SPI NOR chip at the pin level: mode 0 framing,
// erase-sets-0xFF and program-clears-bits semantics, the write enable latch,
// and a configurable number of busy status polls. Commands are committed on
// chip-select deassertion, as on the real part, and program/erase commands
// issued while busy or without the latch are silently ignored.
type flashModel struct {
	mem []byte
	id  [3]byte

	// transaction state
	selected  bool
	inShift   byte
	inBits    int
	outShift  byte
	outLoaded bool
	outQueue  []byte
	miso      gpio.Level
	state     int
	cmd       byte
	addr      int
	addrBytes int
	data      []byte

	awake bool
	wel   bool

	// busy simulation: busyPolls is how many more status reads report busy;
	// busyAfterOp re-arms it after each accepted program/erase.
	busyPolls   int
	busyAfterOp int
	stuckBusy   bool

	// counters for assertions
	statusReads   int
	csAsserts     int
	welViolations int
	ignoredBusy   int
	eraseAddrs    []int
	programAddrs  []int
	opLog         []string
}

const (
	mStateOpcode = iota
	mStateAddr
	mStateData
	mStateEmit
	mStateRead
	mStateIgnore
)

func newFlashModel(size int) *flashModel {
	m := &flashModel{
		mem: make([]byte, size),
		id:  flashIDWinbondW25Q128,
	}
	for i := range m.mem {
		m.mem[i] = 0xFF
	}
	return m
}

func (m *flashModel) fill(b byte) {
	for i := range m.mem {
		m.mem[i] = b
	}
}

func (m *flashModel) statusByte() byte {
	var sr byte
	if m.stuckBusy {
		sr |= 1 << 0
	} else if m.busyPolls > 0 {
		m.busyPolls--
		sr |= 1 << 0
	}
	if m.wel {
		sr |= 1 << 1
	}
	return sr
}

func (m *flashModel) csAssert() {
	m.selected = true
	m.csAsserts++
	m.inShift, m.inBits = 0, 0
	m.outShift, m.outLoaded = 0, false
	m.outQueue = nil
	m.state = mStateOpcode
	m.cmd = 0
	m.addr, m.addrBytes = 0, 0
	m.data = nil
}

func (m *flashModel) csDeassert() {
	m.selected = false
	busy := m.stuckBusy || m.busyPolls > 0

	switch m.cmd {
	case flashCmdPowerUp:
		m.awake = true
	case flashCmdWriteEnable:
		if m.awake && !busy {
			m.wel = true
		}
	case flashCmdWriteDisable:
		if m.awake && !busy {
			m.wel = false
		}
	case flashCmdPageProgram:
		if !m.awake || m.addrBytes != 3 {
			return
		}
		if busy {
			m.ignoredBusy++
			return
		}
		if !m.wel {
			m.welViolations++
			return
		}
		for i, b := range m.data {
			m.mem[(m.addr+i)%len(m.mem)] &= b
		}
		m.wel = false
		m.busyPolls = m.busyAfterOp
		m.programAddrs = append(m.programAddrs, m.addr)
		m.opLog = append(m.opLog, fmt.Sprintf("program@%d", m.addr))
	case flashCmdBlockErase:
		if !m.awake || m.addrBytes != 3 {
			return
		}
		if busy {
			m.ignoredBusy++
			return
		}
		if !m.wel {
			m.welViolations++
			return
		}
		block := m.addr &^ (BlockSize - 1)
		for i := 0; i < BlockSize && block+i < len(m.mem); i++ {
			m.mem[block+i] = 0xFF
		}
		m.wel = false
		m.busyPolls = m.busyAfterOp
		m.eraseAddrs = append(m.eraseAddrs, block)
		m.opLog = append(m.opLog, fmt.Sprintf("erase@%d", block))
	}
}

// clockRise latches the chip's output bit for the host to sample, then
// shifts in the host's data bit.
func (m *flashModel) clockRise(sdi gpio.Level) {
	if !m.selected {
		return
	}
	m.miso = gpio.Level(m.outShift&0x80 != 0)

	m.inShift <<= 1
	if sdi {
		m.inShift |= 1
	}
	m.inBits++
	if m.inBits == 8 {
		b := m.inShift
		m.inShift, m.inBits = 0, 0
		m.byteIn(b)
	}
}

func (m *flashModel) clockFall() {
	if !m.selected {
		return
	}
	if m.outLoaded {
		m.outLoaded = false
		return
	}
	m.outShift <<= 1
}

func (m *flashModel) loadOut(b byte) {
	m.outShift = b
	m.outLoaded = true
}

func (m *flashModel) byteIn(b byte) {
	switch m.state {
	case mStateOpcode:
		m.cmd = b
		if !m.awake && b != flashCmdPowerUp {
			m.state = mStateIgnore
			m.cmd = 0
			return
		}
		switch b {
		case flashCmdReadStatus:
			m.statusReads++
			m.loadOut(m.statusByte())
			m.state = mStateEmit
		case flashCmdReadID:
			m.loadOut(m.id[0])
			m.outQueue = []byte{m.id[1], m.id[2]}
			m.state = mStateEmit
		case flashCmdRead, flashCmdPageProgram, flashCmdBlockErase:
			m.state = mStateAddr
		default:
			// single-byte commands commit on deassert
			m.state = mStateIgnore
		}
	case mStateAddr:
		m.addr = m.addr<<8 | int(b)
		m.addrBytes++
		if m.addrBytes == 3 {
			switch m.cmd {
			case flashCmdRead:
				m.loadOut(m.mem[m.addr%len(m.mem)])
				m.state = mStateRead
			case flashCmdPageProgram:
				m.state = mStateData
			default:
				m.state = mStateIgnore
			}
		}
	case mStateData:
		m.data = append(m.data, b)
	case mStateRead:
		// auto-increment: the byte just clocked out was mem[addr]
		m.addr++
		m.loadOut(m.mem[m.addr%len(m.mem)])
	case mStateEmit:
		if len(m.outQueue) > 0 {
			m.loadOut(m.outQueue[0])
			m.outQueue = m.outQueue[1:]
		}
	}
}

// simPin is a host-driven line; onChange fires on every level transition.
type simPin struct {
	gpiotest.Pin
	onChange func(gpio.Level)
	neutral  bool
}

func (p *simPin) Out(l gpio.Level) error {
	prev := p.L
	if err := p.Pin.Out(l); err != nil {
		return err
	}
	p.neutral = false
	if p.onChange != nil && prev != l {
		p.onChange(l)
	}
	return nil
}

func (p *simPin) In(pull gpio.Pull, edge gpio.Edge) error {
	if err := p.Pin.In(pull, edge); err != nil {
		return err
	}
	p.neutral = true
	return nil
}

// misoPin is the chip-driven data-out line.
type misoPin struct {
	gpiotest.Pin
	m *flashModel
}

func (p *misoPin) Read() gpio.Level { return p.m.miso }

// simBus wires a flashModel to a Flash through simulated pins.
type simBus struct {
	m     *flashModel
	cs    *simPin
	sck   *simPin
	sdi   *simPin
	sdo   *misoPin
	flash *Flash
}

func newSimBus(size int) *simBus {
	b := &simBus{
		m:   newFlashModel(size),
		cs:  &simPin{Pin: gpiotest.Pin{N: "CS", L: gpio.High}},
		sck: &simPin{Pin: gpiotest.Pin{N: "SCK", L: gpio.Low}},
		sdi: &simPin{Pin: gpiotest.Pin{N: "SDI", L: gpio.High}},
	}
	b.sdo = &misoPin{Pin: gpiotest.Pin{N: "SDO"}, m: b.m}

	b.cs.onChange = func(l gpio.Level) {
		if l == gpio.Low {
			b.m.csAssert()
		} else {
			b.m.csDeassert()
		}
	}
	b.sck.onChange = func(l gpio.Level) {
		if l == gpio.High {
			b.m.clockRise(b.sdi.Read())
		} else {
			b.m.clockFall()
		}
	}

	b.flash = NewFlash(&SoftSPI{
		SCK:       b.sck,
		SDI:       b.sdi,
		SDO:       b.sdo,
		HalfCycle: -1, // no delay against a simulated chip
	}, b.cs)
	return b
}

// wake brings the model chip out of power-down without going through a full
// Device session.
func (b *simBus) wake(t interface{ Fatalf(string, ...any) }) {
	if err := b.flash.Wake(); err != nil {
		t.Fatalf("Wake: %v", err)
	}
}
