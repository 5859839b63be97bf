package link

import (
	"sync/atomic"
)

// Metrics contains atomic counters for a Link.
// They can be read from any goroutine, e.g. as the value of a prometheus CounterFunc.
type Metrics struct {
	// FrameSendCount indicates the number of frames originated by Send.
	FrameSendCount atomic.Uint64
	// FrameRecvCount indicates the number of valid frames received, whatever their route.
	FrameRecvCount atomic.Uint64
	// FrameDeliverCount indicates the number of payloads surfaced to the caller.
	FrameDeliverCount atomic.Uint64
	// FrameForwardCount indicates the number of frames relayed verbatim.
	FrameForwardCount atomic.Uint64
	// FrameDropCount indicates the number of valid frames dropped because they returned to their source.
	FrameDropCount atomic.Uint64

	// ChecksumErrCount indicates the number of frames with a checksum mismatch.
	ChecksumErrCount atomic.Uint64
	// FramingErrCount indicates the number of frames aborted on a bad start marker or length.
	FramingErrCount atomic.Uint64
	// DiscardedByteCount indicates the number of bytes dropped while waiting for a start marker.
	DiscardedByteCount atomic.Uint64
	// TimeoutCount indicates the number of receives abandoned on timeout.
	TimeoutCount atomic.Uint64
	// BusyRejectCount indicates the number of Send calls rejected because the link was busy.
	BusyRejectCount atomic.Uint64
}

func (m *Metrics) incFrameSendCount() {
	m.FrameSendCount.Add(1)
}

func (m *Metrics) incFrameRecvCount() {
	m.FrameRecvCount.Add(1)
}

func (m *Metrics) incFrameDeliverCount() {
	m.FrameDeliverCount.Add(1)
}

func (m *Metrics) incFrameForwardCount() {
	m.FrameForwardCount.Add(1)
}

func (m *Metrics) incFrameDropCount() {
	m.FrameDropCount.Add(1)
}

func (m *Metrics) incFault(f fault) {
	switch f {
	case faultChecksum:
		m.ChecksumErrCount.Add(1)
	case faultNoStart1:
		m.DiscardedByteCount.Add(1)
	case faultNoStart2, faultTooLong:
		m.FramingErrCount.Add(1)
	case faultNone:
	}
}

func (m *Metrics) incTimeoutCount() {
	m.TimeoutCount.Add(1)
}

func (m *Metrics) incBusyRejectCount() {
	m.BusyRejectCount.Add(1)
}
