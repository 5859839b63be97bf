package link

// route is the action taken for a valid frame.
type route uint8

const (
	routeDeliver      route = iota // unicast to this node, surface the payload
	routeBroadcast                 // forward verbatim and surface the payload
	routeBypass                    // forward verbatim, payload stays hidden
	routeBroadcastEnd              // own broadcast came back round, drop
	routeBadCycle                  // own unicast came back round, drop
)

func (r route) String() string {
	switch r {
	case routeDeliver:
		return "deliver"
	case routeBroadcast:
		return "broadcast"
	case routeBypass:
		return "bypass"
	case routeBroadcastEnd:
		return "broadcast-end"
	case routeBadCycle:
		return "bad-cycle"
	default:
		return "unknown"
	}
}

// tag returns the log message emitted when the route is taken.
func (r route) tag() string {
	switch r {
	case routeBroadcast:
		return "BrCast Forward"
	case routeBypass:
		return "Data Bypass"
	case routeBroadcastEnd:
		return "BrCast End"
	case routeBadCycle:
		return "Bad Cycle"
	default:
		return "Data Recv"
	}
}

// forwards reports whether the frame is written back to the transport.
func (r route) forwards() bool {
	return r == routeBroadcast || r == routeBypass
}

// delivers reports whether the payload is surfaced to the caller.
func (r route) delivers() bool {
	return r == routeDeliver || r == routeBroadcast
}

// decideRoute picks the action for a valid frame of the given class.
// A frame whose source is the own address is always dropped, whatever
// its class.
func decideRoute(class frameClass, src, own Address) route {
	if src == own {
		if class == classBroadcast {
			return routeBroadcastEnd
		}
		return routeBadCycle
	}

	switch class {
	case classBypass:
		return routeBypass
	case classBroadcast:
		return routeBroadcast
	default:
		return routeDeliver
	}
}
