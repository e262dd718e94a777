package latticeprog

import (
	"errors"
	"fmt"
	"time"
)

// ErrPageSize is returned when a page program payload exceeds PageSize. The
// command is rejected before any bus activity.
var ErrPageSize = errors.New("page data must not exceed 256 bytes")

// ErrBusNotOwned is returned when flash traffic is attempted without the
// session owning the shared SPI bus.
var ErrBusNotOwned = errors.New("session does not own the SPI bus")

// VerificationError reports the first divergence between the programmed
// image and the readback. Comparison stops at the first mismatch.
type VerificationError struct {
	Page     int  // 256-byte page index of the divergence
	Index    int  // absolute byte index from the verify base
	Expected byte // byte from the input image
	Actual   byte // byte read back from the chip
}

func (e *VerificationError) Error() string {
	return fmt.Sprintf("verification error at page %d, index %d: expected %#02x but got %#02x",
		e.Page, e.Index, e.Expected, e.Actual)
}

// NotRespondingError reports a chip whose busy flag never cleared within the
// allowed window.
type NotRespondingError struct {
	Status StatusRegister // last status byte observed
	Wait   time.Duration  // how long the busy flag was polled
}

func (e *NotRespondingError) Error() string {
	return fmt.Sprintf("flash not responding: busy flag still set after %v (status %s)",
		e.Wait, e.Status)
}
