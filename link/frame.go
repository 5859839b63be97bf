package link

import (
	"fmt"

	"github.com/arloliu/go-serialbus/internal/util"
)

// Frame layout constants.
const (
	StartMarker1 byte = 0xEF
	StartMarker2 byte = 0xFA

	// ChecksumSeed is the initial value of the XOR fold. A non-zero seed keeps
	// an all-zero frame from carrying a valid checksum.
	ChecksumSeed byte = 0xFF

	// MaxPayloadSize is the maximum number of payload bytes in one frame.
	MaxPayloadSize = 20

	// HeaderSize covers both start markers, destination, source and length.
	HeaderSize = 5

	// MinFrameSize is the size of a frame with an empty payload.
	MinFrameSize = HeaderSize + 1

	// MaxFrameSize is the size of a frame carrying MaxPayloadSize bytes.
	MaxFrameSize = HeaderSize + MaxPayloadSize + 1
)

// Header byte offsets.
const (
	offsetStart1 = iota
	offsetStart2
	offsetDest
	offsetSrc
	offsetLength
	offsetPayload
)

// Address is a 7-bit node address.
type Address uint8

const (
	MinAddress Address = 0x01
	MaxAddress Address = 0x7F

	// BroadcastAddress as destination and source marks a frame for every node.
	BroadcastAddress Address = 0x01

	// MasterAddress is the address conventionally held by the bus master. It
	// equals BroadcastAddress, so only the master can close a broadcast cycle.
	MasterAddress Address = 0x01
)

// IsValid reports whether a is within [MinAddress, MaxAddress].
func (a Address) IsValid() bool {
	return a >= MinAddress && a <= MaxAddress
}

func (a Address) String() string {
	return fmt.Sprintf("0x%02X", uint8(a))
}

// Frame is a decoded frame.
type Frame struct {
	Dest    Address
	Src     Address
	Payload []byte
}

// NewFrame creates a frame after validating the payload length and both addresses.
func NewFrame(dst, src Address, payload []byte) (*Frame, error) {
	if len(payload) > MaxPayloadSize {
		return nil, fmt.Errorf("%w: got %d, want 0-%d", ErrLengthOutOfRange, len(payload), MaxPayloadSize)
	}
	if !dst.IsValid() {
		return nil, fmt.Errorf("%w: destination %s", ErrAddressOutOfRange, dst)
	}
	if !src.IsValid() {
		return nil, fmt.Errorf("%w: source %s", ErrAddressOutOfRange, src)
	}

	return &Frame{Dest: dst, Src: src, Payload: util.CloneSlice(payload, 0)}, nil
}

// IsBroadcast reports whether both destination and source are the broadcast address.
func (f *Frame) IsBroadcast() bool {
	return f.Dest == BroadcastAddress && f.Src == BroadcastAddress
}

// Size returns the wire size of the frame.
func (f *Frame) Size() int {
	return MinFrameSize + len(f.Payload)
}

// Pack serializes the frame to its wire format, including the checksum.
// It panics if the payload is longer than MaxPayloadSize.
func (f *Frame) Pack() []byte {
	if len(f.Payload) > MaxPayloadSize {
		panic("link: payload exceeds MaxPayloadSize")
	}

	buf := make([]byte, f.Size())
	encodeFrame(buf, f.Dest, f.Src, f.Payload)

	return buf
}

func (f *Frame) String() string {
	return fmt.Sprintf("dst=%s src=%s len=%d data=[%s]", f.Dest, f.Src, len(f.Payload), util.HexBytes(f.Payload))
}

// Checksum folds data with XOR starting from ChecksumSeed.
func Checksum(data []byte) byte {
	sum := ChecksumSeed
	for _, b := range data {
		sum ^= b
	}

	return sum
}

// encodeFrame writes a complete frame into buf and returns its size.
// buf must hold at least MinFrameSize+len(payload) bytes.
func encodeFrame(buf []byte, dst, src Address, payload []byte) int {
	buf[offsetStart1] = StartMarker1
	buf[offsetStart2] = StartMarker2
	buf[offsetDest] = byte(dst)
	buf[offsetSrc] = byte(src)
	buf[offsetLength] = byte(len(payload))
	n := offsetPayload + copy(buf[offsetPayload:], payload)
	buf[n] = Checksum(buf[:n])

	return n + 1
}

// ParseFrame decodes one complete frame from data, running it through the
// same state machine a Link uses on the wire.
//
// ParseFrame validates the start markers, the length field, the total size
// and the checksum. Addresses are not validated, a receiving node does not
// validate them either.
func ParseFrame(data []byte) (*Frame, error) {
	var p parser

	for i, b := range data {
		res := p.step(b)
		switch res.kind {
		case stepDiscarded, stepAborted:
			return nil, fmt.Errorf("%w at byte %d", res.fault.err(), i)
		case stepComplete:
			if i != len(data)-1 {
				return nil, fmt.Errorf("%w: got %d bytes, frame ends at %d", ErrFrameSize, len(data), i+1)
			}

			raw := p.frameBytes()
			return &Frame{
				Dest:    Address(raw[offsetDest]),
				Src:     Address(raw[offsetSrc]),
				Payload: util.CloneSlice(p.payload(), 0),
			}, nil
		case stepStarted, stepNeedMore:
		}
	}

	return nil, fmt.Errorf("%w: truncated after %d bytes", ErrFrameSize, len(data))
}
