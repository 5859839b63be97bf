package link

import "time"

// Clock supplies a free-running millisecond counter. The counter may wrap;
// elapsed time is computed with wrapping unsigned subtraction.
type Clock interface {
	NowMillis() uint32
}

// ClockFunc adapts a function to the Clock interface.
type ClockFunc func() uint32

func (f ClockFunc) NowMillis() uint32 { return f() }

// SystemClock counts milliseconds since it was created.
type SystemClock struct {
	start time.Time
}

var _ Clock = (*SystemClock)(nil)

// NewSystemClock creates a SystemClock starting at zero.
func NewSystemClock() *SystemClock {
	return &SystemClock{start: time.Now()}
}

// NowMillis returns the milliseconds elapsed since the clock was created,
// truncated to 32 bits.
func (c *SystemClock) NowMillis() uint32 {
	return uint32(time.Since(c.start).Milliseconds()) //nolint:gosec // wraparound is expected
}

// elapsedMillis returns now-since as a signed value so that a counter
// wraparound between the two readings still yields a small positive delta.
func elapsedMillis(now, since uint32) int32 {
	return int32(now - since) //nolint:gosec // intentional two's complement difference
}
