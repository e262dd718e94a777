package latticeprog

import (
	"fmt"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/host/v3"
)

// PinConfig maps each logical pin role to a GPIO line name as known to
// gpioreg (e.g. "GPIO5" on a Raspberry Pi). The mapping is injected at
// session start so the same logic runs against any board wiring, or against
// simulated pins in tests.
type PinConfig struct {
	FPGAReset string // CRESET_B, active low
	FPGACS    string // FPGA slave-SPI chip select
	FlashCS   string // flash chip select, active low
	FlashSDI  string // data into the flash chip
	FlashSDO  string // data out of the flash chip
	FlashSCK  string // flash clock

	// DriveFPGACS selects the bus-arbitration variant: when set, the FPGA's
	// reset is released promptly and its chip select is actively driven low
	// for the whole session, keeping it electrically off the bus. When
	// clear, the FPGA is simply held in reset and its chip select is left
	// floating as an input.
	DriveFPGACS bool

	// SPIPort names the hardware SPI port used for volatile FPGA
	// configuration (spireg name, e.g. "SPI0.0").
	SPIPort string
}

// WiringDirect is the pin assignment of boards wiring the flash data lines
// to arbitrary GPIOs, with the FPGA parked by holding its reset for the
// whole session.
var WiringDirect = PinConfig{
	FPGAReset: "GPIO6",
	FPGACS:    "GPIO13",
	FlashCS:   "GPIO5",
	FlashSDI:  "GPIO9",
	FlashSDO:  "GPIO10",
	FlashSCK:  "GPIO11",
	SPIPort:   "SPI0.0",
}

// WiringSPI0 is the pin assignment of boards reusing the Pi's SPI0 roles
// (MOSI=10, MISO=9, SCLK=11) for the flash data lines. The FPGA's chip
// select is actively driven to keep it off the bus.
var WiringSPI0 = PinConfig{
	FPGAReset:   "GPIO6",
	FPGACS:      "GPIO13",
	FlashCS:     "GPIO5",
	FlashSDI:    "GPIO10",
	FlashSDO:    "GPIO9",
	FlashSCK:    "GPIO11",
	DriveFPGACS: true,
	SPIPort:     "SPI0.0",
}

// pinSet holds exclusive handles to the six lines for a session's lifetime.
type pinSet struct {
	fpgaReset gpio.PinIO
	fpgaCS    gpio.PinIO
	flashCS   gpio.PinIO
	flashSDI  gpio.PinIO
	flashSDO  gpio.PinIO
	flashSCK  gpio.PinIO
}

func lookupPin(role, name string) (gpio.PinIO, error) {
	p := gpioreg.ByName(name)
	if p == nil {
		return nil, fmt.Errorf("failed to acquire %s pin (%s)", role, name)
	}
	return p, nil
}

// acquirePins claims every line and fixes its direction and initial level:
// both chip selects and SDI idle high, the clock idles low (SPI mode 0), and
// SDO is an input. The FPGA reset starts deasserted; claimBus drops it.
func acquirePins(cfg PinConfig) (*pinSet, error) {
	p := &pinSet{}

	for _, l := range []struct {
		role string
		name string
		dst  *gpio.PinIO
	}{
		{"FPGA reset", cfg.FPGAReset, &p.fpgaReset},
		{"FPGA CS", cfg.FPGACS, &p.fpgaCS},
		{"flash CS", cfg.FlashCS, &p.flashCS},
		{"flash SDI", cfg.FlashSDI, &p.flashSDI},
		{"flash SDO", cfg.FlashSDO, &p.flashSDO},
		{"flash SCK", cfg.FlashSCK, &p.flashSCK},
	} {
		pin, err := lookupPin(l.role, l.name)
		if err != nil {
			return nil, err
		}
		*l.dst = pin
	}

	if err := p.configure(cfg.DriveFPGACS); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *pinSet) configure(driveFPGACS bool) error {
	if err := p.fpgaReset.Out(gpio.High); err != nil {
		return fmt.Errorf("failed to configure FPGA reset pin: %w", err)
	}
	if driveFPGACS {
		if err := p.fpgaCS.Out(gpio.High); err != nil {
			return fmt.Errorf("failed to configure FPGA CS pin: %w", err)
		}
	} else {
		if err := p.fpgaCS.In(gpio.Float, gpio.NoEdge); err != nil {
			return fmt.Errorf("failed to configure FPGA CS pin: %w", err)
		}
	}
	if err := p.flashCS.Out(gpio.High); err != nil {
		return fmt.Errorf("failed to configure flash CS pin: %w", err)
	}
	if err := p.flashSDI.Out(gpio.High); err != nil {
		return fmt.Errorf("failed to configure flash SDI pin: %w", err)
	}
	if err := p.flashSCK.Out(gpio.Low); err != nil {
		return fmt.Errorf("failed to configure flash SCK pin: %w", err)
	}
	if err := p.flashSDO.In(gpio.Float, gpio.NoEdge); err != nil {
		return fmt.Errorf("failed to configure flash SDO pin: %w", err)
	}
	return nil
}

// release returns every line to a neutral input configuration without
// forcing a final level, so the next session or the FPGA's own boot is not
// blocked by a stale output. The first failure is reported but every pin is
// still attempted.
func (p *pinSet) release() error {
	var first error
	for _, pin := range []gpio.PinIO{
		p.fpgaReset, p.fpgaCS, p.flashCS, p.flashSDI, p.flashSDO, p.flashSCK,
	} {
		if err := pin.In(gpio.Float, gpio.NoEdge); err != nil && first == nil {
			first = fmt.Errorf("failed to release pin %s: %w", pin.Name(), err)
		}
	}
	return first
}

// ReleasePins returns every line named by cfg to a neutral input state. It
// is the explicit recovery path for a session that did not tear down, and
// does not require (or disturb) an open Device.
func ReleasePins(cfg PinConfig) error {
	if hostInitialized.CompareAndSwap(false, true) {
		if _, err := host.Init(); err != nil {
			return fmt.Errorf("host initialization failed: %w", err)
		}
	}
	p, err := acquireRaw(cfg)
	if err != nil {
		return err
	}
	return p.release()
}

// acquireRaw looks the lines up without driving them.
func acquireRaw(cfg PinConfig) (*pinSet, error) {
	p := &pinSet{}
	var err error
	if p.fpgaReset, err = lookupPin("FPGA reset", cfg.FPGAReset); err != nil {
		return nil, err
	}
	if p.fpgaCS, err = lookupPin("FPGA CS", cfg.FPGACS); err != nil {
		return nil, err
	}
	if p.flashCS, err = lookupPin("flash CS", cfg.FlashCS); err != nil {
		return nil, err
	}
	if p.flashSDI, err = lookupPin("flash SDI", cfg.FlashSDI); err != nil {
		return nil, err
	}
	if p.flashSDO, err = lookupPin("flash SDO", cfg.FlashSDO); err != nil {
		return nil, err
	}
	if p.flashSCK, err = lookupPin("flash SCK", cfg.FlashSCK); err != nil {
		return nil, err
	}
	return p, nil
}
