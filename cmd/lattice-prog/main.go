// Command lattice-prog programs a Lattice FPGA board from a Raspberry Pi:
// the boot flash over bit-banged SPI, or the FPGA's volatile configuration
// memory over the hardware SPI peripheral.
//
// Access to the SPI and GPIO peripherals may need to be enabled in the Pi's
// configuration, through raspi-config or /boot/config.txt.
package main

import (
	"fmt"
	"os"

	latticeprog "github.com/CorvusPrudens/lattice-prog"
	"github.com/alecthomas/kong"
	"github.com/fatih/color"
)

var cli struct {
	Wiring string `help:"Wiring preset for the board (direct or spi0)." enum:"direct,spi0" default:"direct"`

	Flash FlashCmd `cmd:"" help:"Program an image into the NOR flash at an address and verify it."`
	Dump  DumpCmd  `cmd:"" help:"Read raw bytes from the NOR flash and write them to stdout."`
	Sram  SramCmd  `cmd:"" help:"Load a bitstream into the FPGA's volatile configuration memory."`
	Reset ResetCmd `cmd:"" help:"Release every owned GPIO line back to a neutral input state."`
}

// Context carries the resolved wiring to every subcommand.
type Context struct {
	cfg latticeprog.PinConfig
}

func fatalf(format string, a ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", a...)
	os.Exit(1)
}

func main() {
	ctx := kong.Parse(&cli,
		kong.Name("lattice-prog"),
		kong.Description("Program a Lattice FPGA board: its boot flash over bit-banged SPI, or its configuration SRAM over hardware SPI."))

	cfg := latticeprog.WiringDirect
	if cli.Wiring == "spi0" {
		cfg = latticeprog.WiringSPI0
	}

	err := ctx.Run(&Context{cfg: cfg})
	ctx.FatalIfErrorf(err)
}

// report prints the composite outcome of a programming pass and the pin
// release. Neither result masks the other.
func report(what string, progErr, resetErr error) {
	switch {
	case progErr == nil && resetErr == nil:
		color.New(color.FgGreen).Fprintf(os.Stderr, "Successfully programmed %s!\n", what)
	case progErr != nil && resetErr == nil:
		color.New(color.FgRed).Fprintf(os.Stderr, "Failed to program %s: %v\n", what, progErr)
	case progErr == nil && resetErr != nil:
		color.New(color.FgYellow).Fprintf(os.Stderr, "Successfully programmed %s, but failed to reset: %v\n", what, resetErr)
	default:
		color.New(color.FgRed).Fprintf(os.Stderr, "Failed to program %s: %v\nAnd failed to reset: %v\n", what, progErr, resetErr)
	}
	if progErr != nil || resetErr != nil {
		os.Exit(1)
	}
}
