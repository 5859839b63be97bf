package link

import (
	"errors"
	"fmt"
)

var (
	// ErrLengthOutOfRange is returned by Send when the payload exceeds MaxPayloadSize.
	ErrLengthOutOfRange = errors.New("link: payload length out of range")
	// ErrAddressOutOfRange is returned when an address is outside [MinAddress, MaxAddress].
	ErrAddressOutOfRange = errors.New("link: address out of range")
	// ErrSelfAddressed is returned by Send when a unicast frame targets the sending node.
	ErrSelfAddressed = errors.New("link: frame addressed to own node")
	// ErrBusy is matched by *BusyError.
	ErrBusy = errors.New("link: link busy")

	ErrMissingStartMarker = errors.New("link: missing start marker")
	ErrPayloadTooLong     = errors.New("link: payload length field too long")
	ErrChecksumMismatch   = errors.New("link: checksum mismatch")
	ErrFrameSize          = errors.New("link: frame size mismatch")
	ErrTimeout            = errors.New("link: receive timeout")
)

// Status codes reported by Status. Busy is reported as the pending payload
// length instead of a fixed code.
const (
	StatusOK             = 0
	StatusLengthError    = -1
	StatusAddressError   = -2
	StatusSelfAddrError  = -3
	StatusTransportError = -4
)

// BusyError is returned by Send while another frame is in flight.
// The caller should retry on a later cycle.
type BusyError struct {
	// Pending is the length of the payload that could not be sent.
	Pending int
}

func (e *BusyError) Error() string {
	return fmt.Sprintf("link: link busy, %d bytes pending", e.Pending)
}

func (e *BusyError) Is(target error) bool {
	return target == ErrBusy
}

// Status maps the result of Send to the integer status codes used by
// firmware callers: 0 on success, -1 for a bad length, -2 for a bad address,
// -3 for a self-addressed frame and the pending length when the link is busy.
//
// A busy link with an empty pending payload also yields 0; callers that send
// empty frames should test errors.Is(err, ErrBusy) instead.
func Status(err error) int {
	var busy *BusyError

	switch {
	case err == nil:
		return StatusOK
	case errors.As(err, &busy):
		return busy.Pending
	case errors.Is(err, ErrLengthOutOfRange):
		return StatusLengthError
	case errors.Is(err, ErrAddressOutOfRange):
		return StatusAddressError
	case errors.Is(err, ErrSelfAddressed):
		return StatusSelfAddrError
	default:
		return StatusTransportError
	}
}
