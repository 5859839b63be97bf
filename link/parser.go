package link

// parseState is the position of the receive state machine inside a frame.
type parseState uint8

const (
	stateIdle        parseState = iota // waiting for StartMarker1
	stateAwaitStart2                   // StartMarker1 seen, waiting for StartMarker2
	stateHeader                        // reading destination, source and length
	statePayload                       // reading payload bytes and the checksum
)

func (s parseState) String() string {
	switch s {
	case stateIdle:
		return "Idle"
	case stateAwaitStart2:
		return "AwaitingSecondMarker"
	case stateHeader:
		return "AccumulatingHeader"
	case statePayload:
		return "AccumulatingPayload"
	default:
		return "Unknown"
	}
}

// frameClass is decided as soon as the source address arrives.
type frameClass uint8

const (
	classUnicast   frameClass = iota // addressed to this node
	classBroadcast                   // destination and source are BroadcastAddress
	classBypass                      // addressed to another node
)

// fault explains why the state machine dropped a byte or a partial frame.
type fault uint8

const (
	faultNone fault = iota
	faultNoStart1
	faultNoStart2
	faultTooLong
	faultChecksum
)

// tag returns the log message emitted for the fault.
func (f fault) tag() string {
	switch f {
	case faultNoStart1:
		return "No Start1"
	case faultNoStart2:
		return "No Start2"
	case faultTooLong:
		return "To long"
	case faultChecksum:
		return "CRC Fail"
	default:
		return ""
	}
}

func (f fault) err() error {
	switch f {
	case faultNoStart1, faultNoStart2:
		return ErrMissingStartMarker
	case faultTooLong:
		return ErrPayloadTooLong
	case faultChecksum:
		return ErrChecksumMismatch
	default:
		return nil
	}
}

type stepKind uint8

const (
	stepNeedMore  stepKind = iota // byte stored, frame incomplete
	stepStarted                   // StartMarker1 accepted, a new frame began
	stepDiscarded                 // idle and the byte was not StartMarker1
	stepAborted                   // partial frame dropped, back to idle
	stepComplete                  // valid frame held in the buffer, back to idle
)

// stepResult is the outcome of feeding one byte to the parser.
type stepResult struct {
	kind  stepKind
	fault fault
}

// parser reassembles frames one byte at a time. It performs no I/O; the
// owning Link reads bytes, measures time and acts on each stepResult.
//
// Failed and completed frames have no state of their own: both return the
// machine to stateIdle and are reported through stepResult.
type parser struct {
	own    Address
	state  parseState
	class  frameClass
	cursor int // index of the last byte stored in buf
	buf    [MaxFrameSize]byte
}

// busy reports whether a frame is being received.
func (p *parser) busy() bool {
	return p.state != stateIdle
}

// reset abandons any partial frame.
func (p *parser) reset() {
	p.state = stateIdle
}

// step feeds one byte to the state machine.
func (p *parser) step(b byte) stepResult {
	if p.state == stateIdle {
		if b != StartMarker1 {
			return stepResult{kind: stepDiscarded, fault: faultNoStart1}
		}
		p.cursor = 0
		p.class = classUnicast
		p.buf[0] = b
		p.state = stateAwaitStart2

		return stepResult{kind: stepStarted}
	}

	p.cursor++
	p.buf[p.cursor] = b

	switch p.state {
	case stateAwaitStart2:
		if b != StartMarker2 {
			return p.abort(faultNoStart2)
		}
		p.state = stateHeader

	case stateHeader:
		switch p.cursor {
		case offsetSrc:
			p.class = p.classify(Address(p.buf[offsetDest]), Address(b))
		case offsetLength:
			if b > MaxPayloadSize {
				return p.abort(faultTooLong)
			}
			p.state = statePayload
		}

	case statePayload:
		end := offsetPayload + int(p.buf[offsetLength])
		if p.cursor < end {
			return stepResult{kind: stepNeedMore}
		}
		p.state = stateIdle
		if Checksum(p.buf[:end]) != b {
			return stepResult{kind: stepAborted, fault: faultChecksum}
		}

		return stepResult{kind: stepComplete}

	case stateIdle:
	}

	return stepResult{kind: stepNeedMore}
}

func (p *parser) abort(f fault) stepResult {
	p.state = stateIdle
	return stepResult{kind: stepAborted, fault: f}
}

func (p *parser) classify(dst, src Address) frameClass {
	switch {
	case dst == BroadcastAddress && src == BroadcastAddress:
		return classBroadcast
	case dst != p.own:
		return classBypass
	default:
		return classUnicast
	}
}

// frameBytes returns the bytes stored for the current or last frame.
// The slice aliases the parser buffer.
func (p *parser) frameBytes() []byte {
	return p.buf[:p.cursor+1]
}

// payload returns the payload of the last completed frame.
// The slice aliases the parser buffer.
func (p *parser) payload() []byte {
	n := int(p.buf[offsetLength])
	return p.buf[offsetPayload : offsetPayload+n]
}

// source returns the source address of the last completed frame.
func (p *parser) source() Address {
	return Address(p.buf[offsetSrc])
}
