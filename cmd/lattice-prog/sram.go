package main

import (
	"os"

	latticeprog "github.com/CorvusPrudens/lattice-prog"
	"github.com/schollz/progressbar/v3"
	"periph.io/x/conn/v3/physic"
)

type SramCmd struct {
	Input    string `arg:"" help:"Path to the synthesized bitstream." type:"existingfile"`
	Baud     int    `help:"SPI clock in hertz. Values that are too low or too high seem to corrupt the bitstream." default:"10000000"`
	Transfer int    `help:"SPI transfer buffer size. Values above 4096 need spidev.bufsiz raised in /boot/cmdline.txt." default:"16384"`
}

func (c *SramCmd) Run(ctx *Context) error {
	data, err := os.ReadFile(c.Input)
	if err != nil {
		fatalf("error reading input file: %v", err)
	}

	progErr := configureSRAM(ctx.cfg, data, c.Baud, c.Transfer)
	resetErr := latticeprog.ReleasePins(ctx.cfg)
	report("device", progErr, resetErr)
	return nil
}

func configureSRAM(cfg latticeprog.PinConfig, data []byte, baud, transfer int) error {
	s, err := latticeprog.OpenSRAM(cfg, physic.Frequency(baud)*physic.Hertz, transfer)
	if err != nil {
		return err
	}
	defer s.Close()

	bar := progressbar.DefaultBytes(int64(len(data)), "configuring")
	s.Progress = func(done, total int) {
		_ = bar.Set(done)
	}
	if err := s.Program(data); err != nil {
		return err
	}
	_ = bar.Finish()
	return nil
}
