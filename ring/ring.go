// Package ring simulates a serial bus whose nodes are cabled in a ring: the
// transmit line of every node feeds the receive line of the next one, and
// the last node feeds the first.
//
// This is the topology the link routing rules assume. Frames not addressed
// to a node are relayed to its neighbour, broadcasts travel round the ring
// until they reach the master again, and a unicast frame for an absent node
// returns to its sender.
package ring

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/arloliu/go-serialbus/internal/queue"
	"github.com/arloliu/go-serialbus/link"
	"github.com/puzpuzpuz/xsync/v3"
)

var (
	// ErrDuplicateAddress is returned when a node joins with an address already on the ring.
	ErrDuplicateAddress = errors.New("ring: duplicate node address")
	// ErrNoData is returned by ReadByte when nothing is queued.
	ErrNoData = errors.New("ring: no data available")
	// ErrNotStarted is returned when a port is written before Begin.
	ErrNotStarted = errors.New("ring: port not started")
)

// Ring is an ordered set of ports. It is safe for concurrent use; each
// port may be driven by its own goroutine.
type Ring struct {
	mu     sync.RWMutex
	ports  []*Port
	byAddr *xsync.MapOf[link.Address, *Port]
}

// New creates an empty ring.
func New() *Ring {
	return &Ring{
		byAddr: xsync.NewMapOf[link.Address, *Port](),
	}
}

// Join appends a port for addr after the last port of the ring.
func (r *Ring) Join(addr link.Address) (*Port, error) {
	if !addr.IsValid() {
		return nil, fmt.Errorf("%w: %s", link.ErrAddressOutOfRange, addr)
	}

	p := &Port{ring: r, addr: addr, rx: queue.NewLockFreeQueue[byte]()}
	if _, loaded := r.byAddr.LoadOrStore(addr, p); loaded {
		return nil, fmt.Errorf("%w: %s", ErrDuplicateAddress, addr)
	}

	r.mu.Lock()
	r.ports = append(r.ports, p)
	r.mu.Unlock()

	return p, nil
}

// Port returns the port of addr.
func (r *Ring) Port(addr link.Address) (*Port, bool) {
	return r.byAddr.Load(addr)
}

// Len returns the number of ports on the ring.
func (r *Ring) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.ports)
}

// Pending returns the number of bytes queued on all ports.
func (r *Ring) Pending() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	total := 0
	for _, p := range r.ports {
		total += p.Available()
	}

	return total
}

// next returns the port downstream of p.
func (r *Ring) next(p *Port) *Port {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for i, q := range r.ports {
		if q == p {
			return r.ports[(i+1)%len(r.ports)]
		}
	}

	return nil
}

// Port is one node's connection to the ring. It implements link.Transport.
type Port struct {
	ring    *Ring
	addr    link.Address
	rx      queue.Queue[byte]
	baud    atomic.Int64
	written atomic.Uint64
}

var _ link.Transport = (*Port)(nil)

// Address returns the address the port joined with.
func (p *Port) Address() link.Address { return p.addr }

// BaudRate returns the rate passed to Begin, or 0 before Begin.
func (p *Port) BaudRate() int { return int(p.baud.Load()) }

// Written returns the number of bytes the node transmitted.
func (p *Port) Written() uint64 { return p.written.Load() }

// Begin marks the port as opened at baud.
func (p *Port) Begin(baud int) error {
	if baud <= 0 {
		return fmt.Errorf("ring: invalid baud rate %d", baud)
	}
	p.baud.Store(int64(baud))

	return nil
}

// Available returns the number of bytes waiting on the receive line.
func (p *Port) Available() int {
	return p.rx.Length()
}

// ReadByte returns the next byte on the receive line.
func (p *Port) ReadByte() (byte, error) {
	b, ok := p.rx.Dequeue()
	if !ok {
		return 0, ErrNoData
	}

	return b, nil
}

// WriteByte transmits b to the next port of the ring. A single port hears
// its own transmissions.
func (p *Port) WriteByte(b byte) error {
	if p.baud.Load() == 0 {
		return ErrNotStarted
	}

	next := p.ring.next(p)
	if next == nil {
		return fmt.Errorf("ring: port %s left the ring", p.addr)
	}

	next.rx.Enqueue(b)
	p.written.Add(1)

	return nil
}

// Inject places data on the receive line of the port, as if line noise or
// a foreign device had transmitted it.
func (p *Port) Inject(data ...byte) {
	for _, b := range data {
		p.rx.Enqueue(b)
	}
}
