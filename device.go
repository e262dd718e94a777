package latticeprog

import (
	"fmt"
	"sync/atomic"
	"time"

	"periph.io/x/host/v3"
)

// Device is one flash-programming session: exclusive ownership of the six
// GPIO lines, bus arbitration against the FPGA, and an awake flash chip.
// It is single-session and single-writer; nothing else may drive the lines
// while it is open.
type Device struct {
	Flash *Flash

	pins  *pinSet
	owner BusOwner
}

var hostInitialized atomic.Bool

// Open claims the lines named by cfg, takes the bus from the FPGA and wakes
// the flash chip. The caller must Close the device to return the lines to a
// neutral state.
func Open(cfg PinConfig) (*Device, error) {
	if hostInitialized.CompareAndSwap(false, true) {
		if _, err := host.Init(); err != nil {
			return nil, fmt.Errorf("host initialization failed: %w", err)
		}
	}

	pins, err := acquirePins(cfg)
	if err != nil {
		return nil, err
	}
	return newDevice(pins, cfg, 0)
}

// newDevice runs the session-start sequence on an already acquired pin set.
func newDevice(pins *pinSet, cfg PinConfig, halfCycle time.Duration) (*Device, error) {
	d := &Device{
		pins:  pins,
		owner: BusOwnerFPGA,
	}

	if err := pins.claimBus(cfg.DriveFPGACS); err != nil {
		pins.release()
		return nil, err
	}
	d.owner = BusOwnerHost

	d.Flash = NewFlash(&SoftSPI{
		SCK:       pins.flashSCK,
		SDI:       pins.flashSDI,
		SDO:       pins.flashSDO,
		HalfCycle: halfCycle,
	}, pins.flashCS)

	if err := d.Flash.Wake(); err != nil {
		pins.release()
		return nil, fmt.Errorf("flash wake failed: %w", err)
	}
	time.Sleep(d.Flash.wakeSettle())

	return d, nil
}

// Owner reports who currently drives the shared SPI bus.
func (d *Device) Owner() BusOwner {
	return d.owner
}

// Programmer returns an orchestrator over the session's flash chip. It fails
// once the session has released the bus.
func (d *Device) Programmer(opts ...Option) (*Programmer, error) {
	if d.owner != BusOwnerHost {
		return nil, ErrBusNotOwned
	}
	return NewProgrammer(d.Flash, opts...), nil
}

// Close hands the bus back to the FPGA by releasing every line to a neutral
// input. The outcome is independent of any program/verify result and must be
// reported alongside it, not instead of it.
func (d *Device) Close() error {
	if d.owner == BusOwnerFPGA {
		return nil
	}
	d.owner = BusOwnerFPGA
	return d.pins.releaseBus()
}
