package ring

import (
	"fmt"

	"github.com/arloliu/go-serialbus/link"
	"github.com/puzpuzpuz/xsync/v3"
)

// Network runs a link.Link on every port of a Ring from a single goroutine,
// the way the firmware main loops would run side by side.
type Network struct {
	ring  *Ring
	nodes []*Node
	inbox *xsync.MapOf[link.Address, []*link.Frame]
}

// Node pairs a link with its port.
type Node struct {
	Link *link.Link
	Port *Port
}

// NewNetwork creates a network over an empty ring.
func NewNetwork() *Network {
	return &Network{
		ring:  New(),
		inbox: xsync.NewMapOf[link.Address, []*link.Frame](),
	}
}

// Ring returns the underlying ring.
func (n *Network) Ring() *Ring { return n.ring }

// AddNode joins addr to the ring and starts a link on it.
func (n *Network) AddNode(addr link.Address, opts ...link.Option) (*Node, error) {
	cfg, err := link.NewConfig(addr, opts...)
	if err != nil {
		return nil, err
	}

	port, err := n.ring.Join(addr)
	if err != nil {
		return nil, err
	}

	l, err := link.New(cfg, port)
	if err != nil {
		return nil, err
	}

	node := &Node{Link: l, Port: port}
	n.nodes = append(n.nodes, node)

	return node, nil
}

// Node returns the node of addr.
func (n *Network) Node(addr link.Address) (*Node, bool) {
	for _, node := range n.nodes {
		if node.Link.Address() == addr {
			return node, true
		}
	}

	return nil, false
}

// Step polls every node once, in ring order, and returns the number of
// frames delivered.
func (n *Network) Step() (int, error) {
	delivered := 0
	for _, node := range n.nodes {
		f, err := node.Link.ReceiveFrame()
		if err != nil {
			return delivered, fmt.Errorf("ring: node %s: %w", node.Link.Address(), err)
		}
		if f == nil {
			continue
		}

		delivered++
		n.inbox.Compute(node.Link.Address(), func(old []*link.Frame, _ bool) ([]*link.Frame, bool) {
			return append(old, f), false
		})
	}

	return delivered, nil
}

// Settle steps the network until no bytes remain on the ring or maxSteps
// is reached. It returns the number of steps taken.
func (n *Network) Settle(maxSteps int) (int, error) {
	for step := 1; step <= maxSteps; step++ {
		if _, err := n.Step(); err != nil {
			return step, err
		}
		if n.ring.Pending() == 0 && !n.busy() {
			return step, nil
		}
	}

	return maxSteps, fmt.Errorf("ring: not settled after %d steps, %d bytes pending", maxSteps, n.ring.Pending())
}

// Inbox returns and clears the frames delivered to addr.
func (n *Network) Inbox(addr link.Address) []*link.Frame {
	frames, _ := n.inbox.LoadAndDelete(addr)
	return frames
}

func (n *Network) busy() bool {
	for _, node := range n.nodes {
		if node.Link.IsBusy() {
			return true
		}
	}

	return false
}
