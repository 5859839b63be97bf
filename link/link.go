package link

import (
	"errors"
	"fmt"
	"strings"

	"github.com/arloliu/go-serialbus/internal/util"
	"github.com/arloliu/go-serialbus/logger"
)

// Direction selects the buffer printed by DumpBuffer.
type Direction uint8

const (
	DirectionSend Direction = iota
	DirectionRecv
)

func (d Direction) String() string {
	if d == DirectionSend {
		return "Send"
	}
	return "Recv"
}

// Link is the protocol endpoint of one node.
//
// It owns a send buffer and a receive buffer of MaxFrameSize bytes each and
// holds at most one frame in flight, either outbound or inbound.
type Link struct {
	cfg    *Config
	tr     Transport
	clock  Clock
	logger logger.Logger

	parser         parser
	sending        bool
	frameStartedAt uint32

	sendBuf [MaxFrameSize]byte
	sendLen int

	metrics Metrics
}

// New creates a Link and opens the transport at the configured baud rate.
// The link starts idle.
func New(cfg *Config, tr Transport) (*Link, error) {
	if cfg == nil {
		return nil, errors.New("link: config must not be nil")
	}
	if tr == nil {
		return nil, errors.New("link: transport must not be nil")
	}

	if err := tr.Begin(cfg.BaudRate()); err != nil {
		return nil, fmt.Errorf("link: begin transport at %d baud: %w", cfg.BaudRate(), err)
	}

	return &Link{
		cfg:    cfg,
		tr:     tr,
		clock:  cfg.Clock(),
		logger: cfg.GetLogger(),
		parser: parser{own: cfg.Address()},
	}, nil
}

// Open creates a Link for the own address, with protocol trace logging
// switched by debug. It is a shorthand for NewConfig followed by New.
func Open(tr Transport, own Address, debug bool, opts ...Option) (*Link, error) {
	cfg, err := NewConfig(own, append([]Option{WithDebug(debug)}, opts...)...)
	if err != nil {
		return nil, err
	}

	return New(cfg, tr)
}

// Address returns the own node address.
func (l *Link) Address() Address { return l.cfg.Address() }

// Config returns the link configuration.
func (l *Link) Config() *Config { return l.cfg }

// Metrics returns the link counters.
func (l *Link) Metrics() *Metrics { return &l.metrics }

// IsBusy reports whether a frame is being sent or received. Check it before
// Send to avoid a BusyError.
func (l *Link) IsBusy() bool {
	return l.sending || l.parser.busy()
}

// Send frames payload for dst and writes the frame to the transport.
//
// Send rejects the frame without writing anything when the link is busy
// (*BusyError, matching ErrBusy), when the payload is longer than
// MaxPayloadSize (ErrLengthOutOfRange), when dst is outside
// [MinAddress, MaxAddress] (ErrAddressOutOfRange) or when dst is the own
// address and not BroadcastAddress (ErrSelfAddressed).
//
// Otherwise the complete frame is written before Send returns.
func (l *Link) Send(payload []byte, dst Address) error {
	if l.IsBusy() {
		l.metrics.incBusyRejectCount()
		return &BusyError{Pending: len(payload)}
	}

	l.log("Start Sending", "dst", dst, "len", len(payload))

	if len(payload) > MaxPayloadSize {
		l.warn("Length-ERR", "len", len(payload))
		return fmt.Errorf("%w: got %d, want 0-%d", ErrLengthOutOfRange, len(payload), MaxPayloadSize)
	}
	if !dst.IsValid() {
		l.warn("Addr-ERR", "dst", dst)
		return fmt.Errorf("%w: destination %s, want %s-%s", ErrAddressOutOfRange, dst, MinAddress, MaxAddress)
	}
	if dst == l.Address() && dst != BroadcastAddress {
		l.warn("Same Addr-ERR", "dst", dst)
		return fmt.Errorf("%w: destination %s", ErrSelfAddressed, dst)
	}

	l.sending = true
	defer func() { l.sending = false }()

	l.sendLen = encodeFrame(l.sendBuf[:], dst, l.Address(), payload)
	if err := l.writeFrame(l.sendBuf[:l.sendLen]); err != nil {
		return fmt.Errorf("link: send frame to %s: %w", dst, err)
	}
	l.metrics.incFrameSendCount()

	return nil
}

// Receive runs one receive cycle. It first abandons a frame that exceeded
// the timeout, then consumes the bytes available on the transport until
// they run out or a frame completes.
//
// When the completed frame is meant for this node (unicast or broadcast),
// its payload is copied into buf and the number of bytes copied is
// returned. buf should have room for MaxPayloadSize bytes. In every other
// case, including bypass relaying and wire errors, Receive returns 0.
//
// Only transport failures are returned as errors.
func (l *Link) Receive(buf []byte) (int, error) {
	f, err := l.receive(false)
	if f == nil {
		return 0, err
	}

	return copy(buf, f.Payload), err
}

// Poll is like Receive but consumes at most one byte per call, the cadence
// of firmware that services the port once per main-loop cycle.
func (l *Link) Poll(buf []byte) (int, error) {
	f, err := l.receive(true)
	if f == nil {
		return 0, err
	}

	return copy(buf, f.Payload), err
}

// ReceiveFrame is like Receive but returns the whole frame delivered to this
// node, or nil. Unlike Receive it distinguishes an empty payload from no frame.
func (l *Link) ReceiveFrame() (*Frame, error) {
	return l.receive(false)
}

func (l *Link) receive(single bool) (*Frame, error) {
	l.checkTimeout()

	for l.tr.Available() > 0 {
		b, err := l.tr.ReadByte()
		if err != nil {
			l.parser.reset()
			l.logger.Error("read failed", "addr", l.Address(), "error", err)

			return nil, fmt.Errorf("link: read byte: %w", err)
		}

		f, done, err := l.consume(b)
		if done || single {
			return f, err
		}
	}

	return nil, nil
}

// checkTimeout abandons a receive that started longer than the timeout ago.
func (l *Link) checkTimeout() {
	if !l.parser.busy() {
		return
	}

	if elapsedMillis(l.clock.NowMillis(), l.frameStartedAt) > l.cfg.TimeoutMillis() {
		l.warn("TimeOut", "received", l.parser.cursor+1, "error", ErrTimeout)
		l.parser.reset()
		l.metrics.incTimeoutCount()
	}
}

// consume feeds one byte to the parser and acts on the result. done is true
// once a frame completed, whether or not it was delivered.
func (l *Link) consume(b byte) (*Frame, bool, error) {
	res := l.parser.step(b)

	switch res.kind {
	case stepStarted:
		l.frameStartedAt = l.clock.NowMillis()

	case stepDiscarded:
		l.log(res.fault.tag(), "byte", b)
		l.metrics.incFault(res.fault)

	case stepAborted:
		l.warn(res.fault.tag(), "received", l.parser.cursor+1, "error", res.fault.err())
		l.metrics.incFault(res.fault)

	case stepComplete:
		f, err := l.route()
		return f, true, err

	case stepNeedMore:
	}

	return nil, false, nil
}

// route applies the routing decision to the valid frame held by the parser.
// The parser is already idle when route runs.
func (l *Link) route() (*Frame, error) {
	raw := l.parser.frameBytes()
	src := l.parser.source()
	l.log("Valid Package recv.", "src", src, "len", len(l.parser.payload()))
	l.metrics.incFrameRecvCount()

	r := decideRoute(l.parser.class, src, l.Address())

	if !r.forwards() && !r.delivers() {
		if r == routeBadCycle {
			l.warn(r.tag(), "src", src)
		} else {
			l.log(r.tag(), "src", src)
		}
		l.metrics.incFrameDropCount()

		return nil, nil
	}

	if r.forwards() {
		l.log(r.tag(), "dst", Address(raw[offsetDest]), "src", src)
		if err := l.writeFrame(raw); err != nil {
			return nil, fmt.Errorf("link: forward frame from %s: %w", src, err)
		}
		l.metrics.incFrameForwardCount()
	}

	if !r.delivers() {
		return nil, nil
	}

	l.log(routeDeliver.tag(), "src", src, "len", len(l.parser.payload()))
	l.metrics.incFrameDeliverCount()

	return &Frame{
		Dest:    Address(raw[offsetDest]),
		Src:     src,
		Payload: util.CloneSlice(l.parser.payload(), 0),
	}, nil
}

func (l *Link) writeFrame(frame []byte) error {
	for _, b := range frame {
		if err := l.tr.WriteByte(b); err != nil {
			l.logger.Error("write failed", "addr", l.Address(), "error", err)
			return err
		}
	}

	return nil
}

// DumpBuffer formats the last frame sent or the receive buffer for
// diagnostics. When debug is enabled the dump is logged as well.
func (l *Link) DumpBuffer(dir Direction) string {
	var raw []byte
	if dir == DirectionSend {
		raw = l.sendBuf[:l.sendLen]
	} else {
		raw = l.parser.frameBytes()
	}

	out := formatFrame(dir, raw)
	l.log("buffer dump", "direction", dir, "dump", out)

	return out
}

func formatFrame(dir Direction, raw []byte) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s...\n", dir)

	if len(raw) < MinFrameSize-1 {
		fmt.Fprintf(&sb, "Raw:    %s\n", util.HexBytes(raw))
		return sb.String()
	}

	fmt.Fprintf(&sb, "Start:  %02X:%02X\n", raw[offsetStart1], raw[offsetStart2])
	if raw[offsetDest] == byte(BroadcastAddress) && raw[offsetSrc] == byte(BroadcastAddress) {
		fmt.Fprintf(&sb, "Dest.:  %02X BrCast!\n", raw[offsetDest])
	} else {
		fmt.Fprintf(&sb, "Dest.:  %02X\n", raw[offsetDest])
	}
	fmt.Fprintf(&sb, "Sender: %02X\n", raw[offsetSrc])
	fmt.Fprintf(&sb, "Length: %02X\n", raw[offsetLength])

	n := min(int(raw[offsetLength]), len(raw)-offsetPayload)
	fmt.Fprintf(&sb, "Data:   %s\n", util.HexBytes(raw[offsetPayload:offsetPayload+n]))

	if crc := offsetPayload + int(raw[offsetLength]); crc < len(raw) {
		fmt.Fprintf(&sb, "CRC:    %02X\n", raw[crc])
	} else {
		sb.WriteString("CRC:    --\n")
	}

	return sb.String()
}

func (l *Link) log(tag string, keysAndValues ...any) {
	l.logger.Debug(tag, append([]any{"addr", l.Address()}, keysAndValues...)...)
}

func (l *Link) warn(tag string, keysAndValues ...any) {
	l.logger.Warn(tag, append([]any{"addr", l.Address()}, keysAndValues...)...)
}
