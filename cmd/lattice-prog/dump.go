package main

import (
	"os"

	latticeprog "github.com/CorvusPrudens/lattice-prog"
)

type DumpCmd struct {
	Address int `help:"Flash byte address to start reading from." default:"0"`
	Length  int `help:"Number of bytes to read." required:""`
}

// Run writes exactly Length raw bytes to stdout. Every diagnostic goes to
// stderr so the output can be piped or redirected as-is.
func (c *DumpCmd) Run(ctx *Context) error {
	d, err := latticeprog.Open(ctx.cfg)
	if err != nil {
		fatalf("%v", err)
	}

	prog, err := d.Programmer()
	if err != nil {
		fatalf("%v", err)
	}
	data, err := prog.ReadArbitrary(c.Address, c.Length)
	if err != nil {
		d.Close()
		fatalf("failed to read flash: %v", err)
	}

	if _, err := os.Stdout.Write(data); err != nil {
		d.Close()
		fatalf("failed to write dump: %v", err)
	}
	if err := d.Close(); err != nil {
		fatalf("failed to reset pins: %v", err)
	}
	return nil
}
