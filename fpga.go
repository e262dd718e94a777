package latticeprog

import (
	"fmt"
	"time"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/conn/v3/spi/spireg"
	"periph.io/x/host/v3"
)

// DefaultTransferSize is the spidev buffer size assumed safe without boot
// configuration changes. Anything above 4096 needs spidev.bufsiz raised in
// /boot/cmdline.txt; 65536 is the hard ceiling.
const (
	DefaultTransferSize = 16384
	maxTransferSize     = 65536
)

// sramTrailer rounds the required 49 dummy bits after the bitstream up to
// whole bytes. [Lattice-TN1248]
const sramTrailer = 18

// SRAM streams a bitstream into the FPGA's volatile configuration memory
// over the hardware SPI peripheral, with the FPGA in slave SPI mode. The
// configuration is lost on power cycle; use a flash session to persist it.
type SRAM struct {
	// Progress, when set, receives bytes written out of total during Program.
	Progress ProgressFunc

	port     spi.PortCloser
	conn     spi.Conn
	pins     *pinSet
	transfer int
}

// OpenSRAM opens the hardware SPI port named by cfg and puts the FPGA into
// slave configuration mode: reset pulsed with the slave chip select held
// low, then 8 dummy clocks once the FPGA has cleared its configuration
// memory. transfer of 0 selects DefaultTransferSize.
func OpenSRAM(cfg PinConfig, speed physic.Frequency, transfer int) (*SRAM, error) {
	if transfer == 0 {
		transfer = DefaultTransferSize
	}
	if transfer > maxTransferSize {
		return nil, fmt.Errorf("SPI transfer buffer (set to %d) must not exceed %d", transfer, maxTransferSize)
	}

	if hostInitialized.CompareAndSwap(false, true) {
		if _, err := host.Init(); err != nil {
			return nil, fmt.Errorf("host initialization failed: %w", err)
		}
	}

	port, err := spireg.Open(cfg.SPIPort)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire SPI port %s: %w", cfg.SPIPort, err)
	}
	// Mode 0 per [Lattice-TN1248]: the FPGA samples on the rising edge.
	conn, err := port.Connect(speed, spi.Mode0, 8)
	if err != nil {
		port.Close()
		return nil, fmt.Errorf("failed to connect SPI: %w", err)
	}

	pins, err := acquireRaw(cfg)
	if err != nil {
		port.Close()
		return nil, err
	}

	s := &SRAM{port: port, conn: conn, pins: pins, transfer: transfer}
	if err := s.enterConfiguration(); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

// enterConfiguration is the slave SPI configuration entry sequence: CRESET_B
// low for at least 200ns with the slave chip select already low, then at
// least 1200µs for the FPGA to clear configuration memory, then 8 dummy
// clocks with the chip select deasserted.
func (s *SRAM) enterConfiguration() error {
	p := s.pins
	if err := p.fpgaReset.Out(gpio.High); err != nil {
		return fmt.Errorf("failed to configure FPGA reset pin: %w", err)
	}
	if err := p.fpgaCS.Out(gpio.High); err != nil {
		return fmt.Errorf("failed to configure FPGA CS pin: %w", err)
	}
	// Keep the flash deselected for the whole transfer.
	if err := p.flashCS.Out(gpio.High); err != nil {
		return fmt.Errorf("failed to configure flash CS pin: %w", err)
	}

	time.Sleep(time.Millisecond)
	if err := p.fpgaReset.Out(gpio.Low); err != nil {
		return err
	}
	if err := p.fpgaCS.Out(gpio.Low); err != nil {
		return err
	}
	time.Sleep(time.Millisecond)
	if err := p.fpgaReset.Out(gpio.High); err != nil {
		return err
	}
	time.Sleep(10 * time.Millisecond)

	if err := p.fpgaCS.Out(gpio.High); err != nil {
		return err
	}
	if err := s.conn.Tx([]byte{0}, nil); err != nil {
		return fmt.Errorf("error writing to SPI bus: %w", err)
	}
	return p.fpgaCS.Out(gpio.Low)
}

// Program streams the bitstream followed by the dummy trailer, then
// deasserts the FPGA's chip select to let the design start.
func (s *SRAM) Program(data []byte) error {
	total := len(data) + sramTrailer
	buf := make([]byte, total)
	copy(buf, data)

	for off := 0; off < total; off += s.transfer {
		chunk := buf[off:min(off+s.transfer, total)]
		if err := s.conn.Tx(chunk, nil); err != nil {
			return fmt.Errorf("error writing to SPI bus: %w", err)
		}
		if s.Progress != nil {
			s.Progress(off+len(chunk), total)
		}
	}

	time.Sleep(time.Millisecond)
	if err := s.pins.fpgaCS.Out(gpio.High); err != nil {
		return err
	}
	time.Sleep(time.Millisecond)
	return nil
}

// Close releases the SPI port and returns the control pins to neutral
// inputs. The hardware SPI lines themselves stay with the kernel driver.
func (s *SRAM) Close() error {
	var first error
	if s.port != nil {
		first = s.port.Close()
	}
	for _, pin := range []gpio.PinIO{s.pins.fpgaReset, s.pins.fpgaCS, s.pins.flashCS} {
		if err := pin.In(gpio.Float, gpio.NoEdge); err != nil && first == nil {
			first = err
		}
	}
	return first
}
