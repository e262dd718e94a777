package latticeprog

import (
	"fmt"
	"time"
)

// ProgressFunc receives the number of bytes completed out of total as a pass
// advances. Implementations should return quickly; the bus is idle while
// they run.
type ProgressFunc func(done, total int)

// Option configures a Programmer.
type Option func(*Programmer)

// WithProgress installs a progress callback for FlashData and VerifyData.
func WithProgress(fn ProgressFunc) Option {
	return func(p *Programmer) { p.progress = fn }
}

// WithReadyTimeout overrides the busy-wait deadline derived from the chip's
// parameter table.
func WithReadyTimeout(d time.Duration) Option {
	return func(p *Programmer) { p.readyTimeout = d }
}

// Programmer implements the erase/program/verify algorithm over the flash
// command protocol: erase-before-write ordering in 64KB blocks, a busy-wait
// gate before every dependent operation, and a byte-exact readback pass.
type Programmer struct {
	flash        *Flash
	readyTimeout time.Duration
	progress     ProgressFunc
}

func NewProgrammer(f *Flash, opts ...Option) *Programmer {
	p := &Programmer{flash: f}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *Programmer) reportProgress(done, total int) {
	if p.progress != nil {
		p.progress(done, total)
	}
}

// FlashData programs data at addr. The buffer is split into successive 64KB
// chunks: each chunk's containing block is erased, then programmed one
// 256-byte page at a time. Every erase and program is gated on the busy flag
// clearing first.
//
// Erasing is destructive to whatever else lives in a touched block, so addr
// should be block-aligned unless that is acceptable.
func (p *Programmer) FlashData(data []byte, addr int) error {
	total := len(data)
	off := 0

	for blockStart := 0; blockStart < len(data); blockStart += BlockSize {
		block := data[blockStart:min(blockStart+BlockSize, len(data))]

		if err := p.AwaitReady(); err != nil {
			return err
		}
		if err := p.flash.EraseBlock(addr + off); err != nil {
			return fmt.Errorf("erase block at 0x%06X: %w", addr+off, err)
		}

		for pageStart := 0; pageStart < len(block); pageStart += PageSize {
			page := block[pageStart:min(pageStart+PageSize, len(block))]

			if err := p.AwaitReady(); err != nil {
				return err
			}
			if err := p.flash.ProgramPage(addr+off, page); err != nil {
				return fmt.Errorf("program page at 0x%06X: %w", addr+off, err)
			}
			off += len(page)
			p.reportProgress(off, total)
		}
	}

	return nil
}

// VerifyData reads back len(data) bytes from addr and compares them against
// data, failing on the first divergence with its page and absolute byte
// index.
func (p *Programmer) VerifyData(data []byte, addr int) error {
	if err := p.AwaitReady(); err != nil {
		return err
	}

	total := len(data)
	for off := 0; off < len(data); off += PageSize {
		chunk := data[off:min(off+PageSize, len(data))]

		read, err := p.flash.ReadBytes(addr+off, len(chunk))
		if err != nil {
			return fmt.Errorf("read back at 0x%06X: %w", addr+off, err)
		}
		for i := range chunk {
			if chunk[i] != read[i] {
				return &VerificationError{
					Page:     off / PageSize,
					Index:    off + i,
					Expected: chunk[i],
					Actual:   read[i],
				}
			}
		}
		p.reportProgress(off+len(chunk), total)
	}

	return nil
}

// AwaitReady polls the status register until the busy flag clears. Each poll
// is itself a full 16-bit transaction, so the loop is self-pacing on a real
// bus. A chip still busy past the deadline yields a NotRespondingError
// instead of hanging the session.
func (p *Programmer) AwaitReady() error {
	limit := p.readyTimeout
	if limit == 0 {
		limit = p.flash.busyDeadline()
	}
	deadline := time.Now().Add(limit)

	for {
		sr, err := p.flash.ReadStatus()
		if err != nil {
			return err
		}
		if !sr.Busy() {
			return nil
		}
		if time.Now().After(deadline) {
			return &NotRespondingError{Status: sr, Wait: limit}
		}
	}
}

// ReadArbitrary reads n bytes starting at addr, for diagnostic dumps that do
// not want a full program/verify cycle. Reads may span any page or block
// boundary.
func (p *Programmer) ReadArbitrary(addr, n int) ([]byte, error) {
	if err := p.AwaitReady(); err != nil {
		return nil, err
	}
	return p.flash.ReadBytes(addr, n)
}
