package latticeprog

import (
	"fmt"
	"time"

	"periph.io/x/conn/v3/gpio"
)

// BusOwner identifies who currently drives the shared SPI bus. The FPGA owns
// the bus whenever it is out of reset and configured; a flash session must
// take ownership before any flash traffic.
type BusOwner int

const (
	BusOwnerFPGA BusOwner = iota
	BusOwnerHost
)

func (o BusOwner) String() string {
	switch o {
	case BusOwnerFPGA:
		return "fpga"
	case BusOwnerHost:
		return "host"
	default:
		return fmt.Sprintf("BusOwner(%d)", int(o))
	}
}

// [Lattice-TN1248] CRESET_B must stay low for at least 200ns; 1ms leaves
// generous margin and covers the FPGA abandoning configuration.
const resetHold = time.Millisecond

// claimBus forces the FPGA off the shared bus so the flash chip can be
// addressed without contention.
//
// With driveFPGACS clear, the FPGA is held in reset for the whole session;
// its released bus lines float. With driveFPGACS set, the FPGA's chip select
// is asserted before its reset is released, so the FPGA comes back up but
// stays electrically off the bus.
func (p *pinSet) claimBus(driveFPGACS bool) error {
	time.Sleep(resetHold)
	if err := p.fpgaReset.Out(gpio.Low); err != nil {
		return fmt.Errorf("failed to assert FPGA reset: %w", err)
	}
	if driveFPGACS {
		if err := p.fpgaCS.Out(gpio.Low); err != nil {
			return fmt.Errorf("failed to assert FPGA CS: %w", err)
		}
	}
	time.Sleep(resetHold)
	if driveFPGACS {
		if err := p.fpgaReset.Out(gpio.High); err != nil {
			return fmt.Errorf("failed to release FPGA reset: %w", err)
		}
		time.Sleep(resetHold)
	}
	return nil
}

// releaseBus hands the bus back by releasing every line to a neutral input,
// which also lets the FPGA's reset float high and reboot from flash.
func (p *pinSet) releaseBus() error {
	return p.release()
}
