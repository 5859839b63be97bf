package link

import (
	"bytes"
	"errors"
	"testing"

	"github.com/arloliu/go-serialbus/logger"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var errFakeIO = errors.New("fake i/o failure")

// fakeTransport is an in-memory Transport. Bytes queued with feed are
// returned by ReadByte; written bytes are collected in tx.
type fakeTransport struct {
	rx       []byte
	tx       bytes.Buffer
	baud     int
	beginErr error
	readErr  error
	writeErr error
}

var _ Transport = (*fakeTransport)(nil)

func (f *fakeTransport) Begin(baud int) error {
	f.baud = baud
	return f.beginErr
}

func (f *fakeTransport) Available() int { return len(f.rx) }

func (f *fakeTransport) ReadByte() (byte, error) {
	if f.readErr != nil {
		return 0, f.readErr
	}
	b := f.rx[0]
	f.rx = f.rx[1:]

	return b, nil
}

func (f *fakeTransport) WriteByte(b byte) error {
	if f.writeErr != nil {
		return f.writeErr
	}
	return f.tx.WriteByte(b)
}

func (f *fakeTransport) feed(data ...byte) {
	f.rx = append(f.rx, data...)
}

// takeWritten returns and clears the bytes written so far.
func (f *fakeTransport) takeWritten() []byte {
	out := bytes.Clone(f.tx.Bytes())
	f.tx.Reset()

	return out
}

// fakeClock is a manually advanced Clock.
type fakeClock struct {
	now uint32
}

func (c *fakeClock) NowMillis() uint32 { return c.now }

func (c *fakeClock) advance(ms uint32) { c.now += ms }

// newTestLink creates a Link on a fakeTransport and fakeClock.
func newTestLink(t *testing.T, own Address, opts ...Option) (*Link, *fakeTransport, *fakeClock) {
	t.Helper()

	clk := &fakeClock{}
	tr := &fakeTransport{}

	cfg, err := NewConfig(own, append([]Option{WithClock(clk)}, opts...)...)
	require.NoError(t, err)

	l, err := New(cfg, tr)
	require.NoError(t, err)

	return l, tr, clk
}

// newMockLogger returns a MockLogger accepting every call.
func newMockLogger() *logger.MockLogger {
	m := logger.NewMockLogger()
	m.On("Debug", mock.Anything, mock.Anything).Maybe()
	m.On("Warn", mock.Anything, mock.Anything).Maybe()
	m.On("Error", mock.Anything, mock.Anything).Maybe()

	return m
}

// loggedTags returns the messages logged at the given level, in order.
func loggedTags(m *logger.MockLogger, level string) []string {
	var tags []string
	for _, c := range m.Calls {
		if c.Method == level {
			tags = append(tags, c.Arguments.String(0))
		}
	}

	return tags
}

// mustPack builds the wire bytes of a frame, failing the test on invalid input.
func mustPack(t *testing.T, dst, src Address, payload ...byte) []byte {
	t.Helper()

	f, err := NewFrame(dst, src, payload)
	require.NoError(t, err)

	return f.Pack()
}
