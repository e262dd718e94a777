package main

import (
	"fmt"
	"os"

	latticeprog "github.com/CorvusPrudens/lattice-prog"
)

type ResetCmd struct{}

func (c *ResetCmd) Run(ctx *Context) error {
	if err := latticeprog.ReleasePins(ctx.cfg); err != nil {
		fatalf("failed to reset pins: %v", err)
	}
	fmt.Fprintln(os.Stderr, "released all pins")
	return nil
}
