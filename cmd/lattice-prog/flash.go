package main

import (
	"fmt"
	"os"

	latticeprog "github.com/CorvusPrudens/lattice-prog"
	"github.com/schollz/progressbar/v3"
)

type FlashCmd struct {
	Input   string `arg:"" help:"Path to the image to program." type:"existingfile"`
	Address int    `help:"Flash byte address to program at (block-aligned)." default:"0"`
}

func (c *FlashCmd) Run(ctx *Context) error {
	data, err := os.ReadFile(c.Input)
	if err != nil {
		fatalf("error reading input file: %v", err)
	}

	progErr := programAndVerify(ctx.cfg, data, c.Address)
	resetErr := latticeprog.ReleasePins(ctx.cfg)
	report("flash", progErr, resetErr)
	return nil
}

func programAndVerify(cfg latticeprog.PinConfig, data []byte, addr int) error {
	d, err := latticeprog.Open(cfg)
	if err != nil {
		return err
	}

	if id, name, err := d.Flash.ReadID(); err == nil {
		if name == "" {
			fmt.Fprintf(os.Stderr, "unknown flash ID (%X)\n", id)
		} else {
			fmt.Fprintf(os.Stderr, "flash: %s (%X)\n", name, id)
		}
	}

	if err := runPass(d, data, addr, "programming", (*latticeprog.Programmer).FlashData); err != nil {
		return err
	}
	return runPass(d, data, addr, "verifying", (*latticeprog.Programmer).VerifyData)
}

// runPass runs one full pass over the image with its own progress bar.
func runPass(d *latticeprog.Device, data []byte, addr int, desc string,
	pass func(*latticeprog.Programmer, []byte, int) error) error {

	bar := progressbar.DefaultBytes(int64(len(data)), desc)
	prog, err := d.Programmer(latticeprog.WithProgress(func(done, total int) {
		_ = bar.Set(done)
	}))
	if err != nil {
		return err
	}
	if err := pass(prog, data, addr); err != nil {
		return err
	}
	_ = bar.Finish()
	return nil
}
