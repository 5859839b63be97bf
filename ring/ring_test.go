package ring

import (
	"sync"
	"testing"

	"github.com/arloliu/go-serialbus/link"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestNetwork creates a network with a master and the given slaves, in ring order.
func newTestNetwork(t *testing.T, slaves ...link.Address) *Network {
	t.Helper()

	n := NewNetwork()
	for _, addr := range append([]link.Address{link.MasterAddress}, slaves...) {
		_, err := n.AddNode(addr)
		require.NoError(t, err)
	}

	return n
}

func mustNode(t *testing.T, n *Network, addr link.Address) *Node {
	t.Helper()

	node, ok := n.Node(addr)
	require.True(t, ok, "node %s", addr)

	return node
}

func TestRing_Join(t *testing.T) {
	r := New()

	p1, err := r.Join(0x01)
	require.NoError(t, err)
	p2, err := r.Join(0x02)
	require.NoError(t, err)

	_, err = r.Join(0x02)
	require.ErrorIs(t, err, ErrDuplicateAddress)
	_, err = r.Join(0x00)
	require.ErrorIs(t, err, link.ErrAddressOutOfRange)

	assert.Equal(t, 2, r.Len())
	got, ok := r.Port(0x02)
	require.True(t, ok)
	assert.Same(t, p2, got)

	require.ErrorIs(t, p1.WriteByte(0xAA), ErrNotStarted)
	require.NoError(t, p1.Begin(9600))
	require.NoError(t, p2.Begin(9600))

	require.NoError(t, p1.WriteByte(0xAA))
	require.NoError(t, p2.WriteByte(0xBB))

	b, err := p2.ReadByte()
	require.NoError(t, err)
	assert.Equal(t, byte(0xAA), b, "port 1 feeds port 2")

	b, err = p1.ReadByte()
	require.NoError(t, err)
	assert.Equal(t, byte(0xBB), b, "the last port feeds the first")

	_, err = p1.ReadByte()
	require.ErrorIs(t, err, ErrNoData)
	assert.Equal(t, uint64(1), p1.Written())
}

func TestRing_SinglePortHearsItself(t *testing.T) {
	r := New()
	p, err := r.Join(0x05)
	require.NoError(t, err)
	require.NoError(t, p.Begin(9600))

	require.NoError(t, p.WriteByte(0x42))
	assert.Equal(t, 1, p.Available())
}

func TestNetwork_Broadcast(t *testing.T) {
	n := newTestNetwork(t, 0x02, 0x03, 0x04)
	master := mustNode(t, n, link.MasterAddress)

	require.NoError(t, master.Link.Send([]byte{0x10, 0x20}, link.BroadcastAddress))

	_, err := n.Settle(50)
	require.NoError(t, err)

	for _, addr := range []link.Address{0x02, 0x03, 0x04} {
		frames := n.Inbox(addr)
		require.Len(t, frames, 1, "node %s", addr)
		assert.Equal(t, []byte{0x10, 0x20}, frames[0].Payload)
		assert.True(t, frames[0].IsBroadcast())
		assert.Equal(t, uint64(1), mustNode(t, n, addr).Link.Metrics().FrameForwardCount.Load())
	}

	assert.Empty(t, n.Inbox(link.MasterAddress))
	assert.Equal(t, uint64(1), master.Link.Metrics().FrameDropCount.Load(), "broadcast cycle ends at the master")
	assert.Zero(t, n.Ring().Pending())
}

func TestNetwork_UnicastBypass(t *testing.T) {
	n := newTestNetwork(t, 0x02, 0x03, 0x04)
	sender := mustNode(t, n, 0x02)

	require.NoError(t, sender.Link.Send([]byte{0x99}, 0x04))

	_, err := n.Settle(50)
	require.NoError(t, err)

	frames := n.Inbox(0x04)
	require.Len(t, frames, 1)
	assert.Equal(t, link.Address(0x02), frames[0].Src)
	assert.Equal(t, []byte{0x99}, frames[0].Payload)

	relay := mustNode(t, n, 0x03)
	assert.Equal(t, uint64(1), relay.Link.Metrics().FrameForwardCount.Load())
	assert.Empty(t, n.Inbox(0x03))
	assert.Empty(t, n.Inbox(link.MasterAddress))
	assert.Zero(t, mustNode(t, n, link.MasterAddress).Link.Metrics().FrameRecvCount.Load(), "frame stops at its destination")
}

func TestNetwork_UnknownDestinationReturnsToSender(t *testing.T) {
	n := newTestNetwork(t, 0x02, 0x03)
	sender := mustNode(t, n, 0x03)

	require.NoError(t, sender.Link.Send([]byte{0x01}, 0x7F))

	_, err := n.Settle(50)
	require.NoError(t, err)

	for _, addr := range []link.Address{link.MasterAddress, 0x02, 0x03} {
		assert.Empty(t, n.Inbox(addr), "node %s", addr)
	}
	assert.Equal(t, uint64(1), sender.Link.Metrics().FrameDropCount.Load(), "bad cycle at the sender")
}

func TestNetwork_SlaveToMaster(t *testing.T) {
	n := newTestNetwork(t, 0x02, 0x03)
	slave := mustNode(t, n, 0x02)

	require.NoError(t, slave.Link.Send([]byte{0x0A}, link.MasterAddress))

	_, err := n.Settle(50)
	require.NoError(t, err)

	frames := n.Inbox(link.MasterAddress)
	require.Len(t, frames, 1)
	assert.Equal(t, link.Address(0x02), frames[0].Src)
	assert.Empty(t, n.Inbox(0x03))
}

func TestNetwork_RecoversFromLineNoise(t *testing.T) {
	n := newTestNetwork(t, 0x02)
	slave := mustNode(t, n, 0x02)

	slave.Port.Inject(0x00, 0x13, 0xEF, 0x00)

	master := mustNode(t, n, link.MasterAddress)
	require.NoError(t, master.Link.Send([]byte{0x05}, 0x02))

	_, err := n.Settle(50)
	require.NoError(t, err)

	frames := n.Inbox(0x02)
	require.Len(t, frames, 1)
	assert.Equal(t, []byte{0x05}, frames[0].Payload)
	assert.Equal(t, uint64(1), slave.Link.Metrics().FramingErrCount.Load())
}

func TestNetwork_AddNodeErrors(t *testing.T) {
	n := newTestNetwork(t)

	_, err := n.AddNode(link.MasterAddress)
	require.ErrorIs(t, err, ErrDuplicateAddress)

	_, err = n.AddNode(0x05, link.WithBaudRate(0))
	require.Error(t, err)
}

func TestPort_ConcurrentNodes(t *testing.T) {
	r := New()
	a, err := r.Join(0x01)
	require.NoError(t, err)
	b, err := r.Join(0x02)
	require.NoError(t, err)
	require.NoError(t, a.Begin(9600))
	require.NoError(t, b.Begin(9600))

	const count = 1000

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < count; i++ {
			_ = a.WriteByte(byte(i))
		}
	}()

	received := 0
	for received < count {
		if v, err := b.ReadByte(); err == nil {
			assert.Equal(t, byte(received), v)
			received++
		}
	}
	wg.Wait()
}
