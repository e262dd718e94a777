package latticeprog

import "time"

// flashParams bounds how long each internal operation may keep the busy flag
// set. The values are the datasheet maxima; a chip still busy past them is
// treated as not responding rather than polled forever.
type flashParams struct {
	name string

	tRES1      time.Duration // wake settle time after /CS deassert
	tPP        time.Duration // page program cycle
	tErase64KB time.Duration // 64KB block erase cycle
}

var (
	flashIDMicronN25Q32   = [3]byte{0x20, 0xBA, 0x16}
	flashIDWinbondW25Q128 = [3]byte{0xEF, 0x70, 0x18}
)

var knownFlash = map[[3]byte]flashParams{
	flashIDMicronN25Q32: {
		name: "Micron N25Q 32Mb",

		// [N25Q32|Table 38: AC Characteristics and Operating Conditions]
		tPP:        5 * time.Millisecond,
		tErase64KB: 3 * time.Second,
	},

	flashIDWinbondW25Q128: {
		name: "Winbond W25Q 128Mb",

		// [W25Q128|9.6 AC Electrical Characteristics]
		tRES1:      3 * time.Microsecond,
		tPP:        3 * time.Millisecond,
		tErase64KB: 2000 * time.Millisecond,
	},
}

// paramOrMax returns the chip's own figure when the ID has been read and
// matched, and otherwise the maximum across all known parts so an unmatched
// chip is never cut off early.
func (f *Flash) paramOrMax(get func(*flashParams) time.Duration) time.Duration {
	if f.pr != nil {
		return get(f.pr)
	}

	var tmax time.Duration
	for _, param := range knownFlash {
		tmax = max(tmax, get(&param))
	}
	return tmax
}

func (f *Flash) wakeSettle() time.Duration {
	return f.paramOrMax(func(p *flashParams) time.Duration { return p.tRES1 })
}

// busyDeadline is the longest any single operation may legitimately hold the
// busy flag: the block erase cycle, the slowest command issued by this tool.
func (f *Flash) busyDeadline() time.Duration {
	return f.paramOrMax(func(p *flashParams) time.Duration { return p.tErase64KB })
}
