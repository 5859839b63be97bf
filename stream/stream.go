// Package stream adapts a byte stream, such as an opened serial device, a
// pty or a net.Conn, to the link.Transport interface.
//
// A background goroutine reads the stream into a lock-free queue so that
// Available and ReadByte never block the polling loop of a link.Link.
package stream

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"

	"github.com/arloliu/go-serialbus/internal/queue"
	"github.com/arloliu/go-serialbus/link"
	"github.com/arloliu/go-serialbus/logger"
)

const defaultReadBufferSize = 64

var (
	// ErrNoData is returned by ReadByte when no byte is queued.
	ErrNoData = errors.New("stream: no data available")
	// ErrNotStarted is returned when the transport is used before Begin.
	ErrNotStarted = errors.New("stream: transport not started")
	// ErrClosed is returned after Close.
	ErrClosed = errors.New("stream: transport closed")
)

// BaudRateSetter is implemented by streams whose line speed can be changed,
// typically serial port drivers. Begin calls it when present.
type BaudRateSetter interface {
	SetBaudRate(baud int) error
}

// Transport is a link.Transport over an io.ReadWriter.
//
// ReadByte and Available may be called from one polling goroutine while
// the internal reader goroutine fills the queue. WriteByte is serialized.
type Transport struct {
	rw     io.ReadWriter
	reader *bufio.Reader
	rx     queue.Queue[byte]
	logger logger.Logger

	readBufSize int

	wmu     sync.Mutex
	started atomic.Bool
	closed  atomic.Bool
	done    chan struct{}

	errMu   sync.Mutex
	readErr error
}

var _ link.Transport = (*Transport)(nil)

// Option is a functional option for configuring a Transport.
type Option func(*Transport)

// WithLogger sets the logger used to report read loop failures.
func WithLogger(l logger.Logger) Option {
	return func(t *Transport) {
		if l != nil {
			t.logger = l
		}
	}
}

// WithReadBufferSize sets the size of a single read from the stream.
func WithReadBufferSize(size int) Option {
	return func(t *Transport) {
		if size > 0 {
			t.readBufSize = size
		}
	}
}

// New creates a Transport over rw. Nothing is read until Begin is called.
func New(rw io.ReadWriter, opts ...Option) *Transport {
	t := &Transport{
		rw:          rw,
		rx:          queue.NewLockFreeQueue[byte](),
		logger:      logger.GetLogger(),
		readBufSize: defaultReadBufferSize,
		done:        make(chan struct{}),
	}
	for _, opt := range opts {
		opt(t)
	}
	t.reader = bufio.NewReaderSize(rw, t.readBufSize)

	return t
}

// Begin sets the baud rate, when the stream supports it, and starts the
// reader goroutine. Calling Begin again only changes the baud rate.
func (t *Transport) Begin(baud int) error {
	if t.closed.Load() {
		return ErrClosed
	}

	if s, ok := t.rw.(BaudRateSetter); ok {
		if err := s.SetBaudRate(baud); err != nil {
			return fmt.Errorf("stream: set baud rate %d: %w", baud, err)
		}
	}

	if t.started.CompareAndSwap(false, true) {
		go t.readLoop()
	}

	return nil
}

// Available returns the number of queued bytes.
func (t *Transport) Available() int {
	return t.rx.Length()
}

// ReadByte returns the next queued byte, or ErrNoData when the queue is empty.
func (t *Transport) ReadByte() (byte, error) {
	if !t.started.Load() {
		return 0, ErrNotStarted
	}

	b, ok := t.rx.Dequeue()
	if !ok {
		return 0, ErrNoData
	}

	return b, nil
}

// WriteByte writes one byte to the stream.
func (t *Transport) WriteByte(b byte) error {
	if !t.started.Load() {
		return ErrNotStarted
	}
	if t.closed.Load() {
		return ErrClosed
	}

	t.wmu.Lock()
	defer t.wmu.Unlock()

	_, err := t.rw.Write([]byte{b})

	return err
}

// Err returns the error that stopped the reader goroutine, if any.
// io.EOF is reported when the remote end closed the stream.
func (t *Transport) Err() error {
	t.errMu.Lock()
	defer t.errMu.Unlock()

	return t.readErr
}

// Close closes the underlying stream when it is an io.Closer and waits
// for the reader goroutine to exit. A stream that cannot be closed keeps
// its reader goroutine until the stream reports an error.
func (t *Transport) Close() error {
	if !t.closed.CompareAndSwap(false, true) {
		return nil
	}

	c, ok := t.rw.(io.Closer)
	if !ok {
		return nil
	}

	err := c.Close()
	if t.started.Load() {
		<-t.done
	}

	return err
}

func (t *Transport) readLoop() {
	defer close(t.done)

	buf := make([]byte, t.readBufSize)
	for {
		n, err := t.reader.Read(buf)
		for _, b := range buf[:n] {
			t.rx.Enqueue(b)
		}

		if err != nil {
			t.errMu.Lock()
			t.readErr = err
			t.errMu.Unlock()

			if !t.closed.Load() && !errors.Is(err, io.EOF) {
				t.logger.Error("stream: read loop stopped", "error", err)
			}

			return
		}
	}
}
