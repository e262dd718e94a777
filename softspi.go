package latticeprog

import (
	"time"

	"periph.io/x/conn/v3/gpio"
)

// DefaultHalfCycle is the minimum hold time after each clock edge. The flash
// chips involved tolerate tens of MHz; 1µs keeps the bit-banged bus far
// inside every timing figure regardless of how fast the loop itself runs.
const DefaultHalfCycle = time.Microsecond

// SoftSPI bit-bangs SPI mode 0 (clock idle low, data sampled on the rising
// edge, MSB first) over three GPIO lines. Chip-select framing is the
// caller's concern.
//
// Every bit period holds the line state for HalfCycle after each clock edge,
// so timing never depends on execution speed.
type SoftSPI struct {
	SCK gpio.PinIO
	SDI gpio.PinIO // host → chip
	SDO gpio.PinIO // chip → host

	// HalfCycle overrides DefaultHalfCycle. Zero means DefaultHalfCycle;
	// negative disables the delay entirely (simulated pins only).
	HalfCycle time.Duration
}

func (s *SoftSPI) hold() {
	d := s.HalfCycle
	if d == 0 {
		d = DefaultHalfCycle
	}
	if d > 0 {
		time.Sleep(d)
	}
}

// WriteBit drives SDI to l and issues one full clock pulse.
func (s *SoftSPI) WriteBit(l gpio.Level) error {
	if err := s.SDI.Out(l); err != nil {
		return err
	}
	if err := s.SCK.Out(gpio.High); err != nil {
		return err
	}
	s.hold()
	if err := s.SCK.Out(gpio.Low); err != nil {
		return err
	}
	s.hold()
	return nil
}

// ReadBit issues one full clock pulse and samples SDO while the clock is
// high.
func (s *SoftSPI) ReadBit() (gpio.Level, error) {
	if err := s.SCK.Out(gpio.High); err != nil {
		return gpio.Low, err
	}
	s.hold()
	l := s.SDO.Read()
	if err := s.SCK.Out(gpio.Low); err != nil {
		return gpio.Low, err
	}
	s.hold()
	return l, nil
}

// WriteByte shifts b out MSB first.
func (s *SoftSPI) WriteByte(b byte) error {
	for i := 7; i >= 0; i-- {
		if err := s.WriteBit(gpio.Level(b&(1<<i) != 0)); err != nil {
			return err
		}
	}
	return nil
}

// ReadByte shifts a byte in MSB first.
func (s *SoftSPI) ReadByte() (byte, error) {
	var b byte
	for i := 0; i < 8; i++ {
		l, err := s.ReadBit()
		if err != nil {
			return 0, err
		}
		b <<= 1
		if l {
			b |= 1
		}
	}
	return b, nil
}
