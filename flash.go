package latticeprog

import (
	"fmt"

	"periph.io/x/conn/v3/gpio"
)

// Fixed geometry of the target part family. Page programs never span pages
// and erases always cover a whole aligned block.
const (
	PageSize  = 256
	BlockSize = 65536
)

// Flash commands:
//   - [N25Q32|Table 16: Command Set]
//   - [W25Q128|8.1.2 Instruction Set Table 1]
const (
	flashCmdPageProgram  = 0x02
	flashCmdRead         = 0x03
	flashCmdWriteDisable = 0x04
	flashCmdReadStatus   = 0x05
	flashCmdWriteEnable  = 0x06
	flashCmdReadID       = 0x9F
	flashCmdPowerUp      = 0xAB // Release Power Down
	flashCmdBlockErase   = 0xD8
)

// Flash frames the NOR command set into chip-select bounded transactions on
// top of the bit-banged SPI lines. It performs no busy-waiting of its own;
// ordering and readiness are the Programmer's concern.
type Flash struct {
	spi *SoftSPI
	cs  gpio.PinIO
	id  [3]byte // JEDEC ID, once read
	pr  *flashParams
}

func NewFlash(spi *SoftSPI, cs gpio.PinIO) *Flash {
	return &Flash{spi: spi, cs: cs}
}

// tx wraps one transaction with CS assertion. A transaction is never split
// across two assertions.
func (f *Flash) tx(fn func() error) (err error) {
	if err = f.cs.Out(gpio.Low); err != nil {
		return err
	}
	f.spi.hold()
	defer func() {
		csErr := f.cs.Out(gpio.High)
		f.spi.hold()
		if csErr != nil && err == nil {
			err = csErr
		}
	}()
	err = fn()
	return
}

// writeAddress shifts out a 24-bit address, most significant byte first.
func (f *Flash) writeAddress(addr int) error {
	if err := f.spi.WriteByte(byte(addr >> 16)); err != nil {
		return err
	}
	if err := f.spi.WriteByte(byte(addr >> 8)); err != nil {
		return err
	}
	return f.spi.WriteByte(byte(addr))
}

func checkAddress(addr int) error {
	const max24 = 1<<24 - 1 // 0xFFFFFF
	if addr < 0 || addr > max24 {
		return fmt.Errorf("address 0x%X out of 24-bit range", addr)
	}
	return nil
}

// Wake releases the chip from power-down. The chip may ignore every other
// command until this is issued once after power-up or reset.
func (f *Flash) Wake() error {
	return f.tx(func() error {
		return f.spi.WriteByte(flashCmdPowerUp)
	})
}

// ReadStatus reads status register 1.
func (f *Flash) ReadStatus() (StatusRegister, error) {
	var sr byte
	err := f.tx(func() error {
		if err := f.spi.WriteByte(flashCmdReadStatus); err != nil {
			return err
		}
		var err error
		sr, err = f.spi.ReadByte()
		return err
	})
	return StatusRegister(sr), err
}

// writeEnable sets the write enable latch. The chip clears the latch after
// every program or erase, so this must immediately precede each one.
func (f *Flash) writeEnable() error {
	return f.tx(func() error {
		return f.spi.WriteByte(flashCmdWriteEnable)
	})
}

// WriteDisable clears the write enable latch.
func (f *Flash) WriteDisable() error {
	return f.tx(func() error {
		return f.spi.WriteByte(flashCmdWriteDisable)
	})
}

// ProgramPage programs up to one page at addr. Programming only clears bits;
// the containing block must have been erased for the result to match data.
// Payloads over one page are rejected before any bus activity.
func (f *Flash) ProgramPage(addr int, data []byte) error {
	if len(data) > PageSize {
		return fmt.Errorf("%w: %d bytes", ErrPageSize, len(data))
	}
	if err := checkAddress(addr); err != nil {
		return err
	}
	if err := f.writeEnable(); err != nil {
		return err
	}
	return f.tx(func() error {
		if err := f.spi.WriteByte(flashCmdPageProgram); err != nil {
			return err
		}
		if err := f.writeAddress(addr); err != nil {
			return err
		}
		for _, b := range data {
			if err := f.spi.WriteByte(b); err != nil {
				return err
			}
		}
		return nil
	})
}

// EraseBlock erases the 64KB block containing addr, setting every byte in it
// to 0xFF. The chip truncates the address to its block; callers should pass
// a block-aligned address for clarity.
func (f *Flash) EraseBlock(addr int) error {
	if err := checkAddress(addr); err != nil {
		return err
	}
	if err := f.writeEnable(); err != nil {
		return err
	}
	return f.tx(func() error {
		if err := f.spi.WriteByte(flashCmdBlockErase); err != nil {
			return err
		}
		return f.writeAddress(addr)
	})
}

// ReadBytes reads n bytes starting at addr in one transaction. The chip
// auto-increments internally, so reads may span any number of pages and
// blocks.
func (f *Flash) ReadBytes(addr, n int) ([]byte, error) {
	if err := checkAddress(addr); err != nil {
		return nil, err
	}
	out := make([]byte, n)
	err := f.tx(func() error {
		if err := f.spi.WriteByte(flashCmdRead); err != nil {
			return err
		}
		if err := f.writeAddress(addr); err != nil {
			return err
		}
		for i := range out {
			b, err := f.spi.ReadByte()
			if err != nil {
				return err
			}
			out[i] = b
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ReadID returns the JEDEC ID of the flash chip and configures its busy-wait
// deadlines. It returns a non-empty name for known IDs.
func (f *Flash) ReadID() (id [3]byte, name string, err error) {
	err = f.tx(func() error {
		if err := f.spi.WriteByte(flashCmdReadID); err != nil {
			return err
		}
		for i := range id {
			b, err := f.spi.ReadByte()
			if err != nil {
				return err
			}
			id[i] = b
		}
		return nil
	})
	if err != nil {
		return
	}
	f.id = id
	if params, ok := knownFlash[id]; ok {
		f.pr = &params
		name = params.name
	}
	return id, name, nil
}

// StatusRegister is status register 1 of the flash chip. Only the busy flag
// (bit 0) and the write enable latch (bit 1) are interpreted; the remaining
// bits are chip-specific.
type StatusRegister byte

// Busy reports whether an internal program or erase is still in progress.
// The chip ignores most commands while busy.
func (sr StatusRegister) Busy() bool { return sr&(1<<0) != 0 }

// WriteEnabled reports the write enable latch.
func (sr StatusRegister) WriteEnabled() bool { return sr&(1<<1) != 0 }

func (sr StatusRegister) String() string {
	s := fmt.Sprintf("%08b", byte(sr))
	switch {
	case sr.Busy() && sr.WriteEnabled():
		return s + " WEL,BUSY"
	case sr.Busy():
		return s + " BUSY"
	case sr.WriteEnabled():
		return s + " WEL"
	}
	return s
}
