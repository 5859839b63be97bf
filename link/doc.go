// Package link implements a half-duplex, address-routed packet protocol for
// microcontroller nodes that share a serial line, such as a chain of traffic
// light controllers cabled into a ring.
//
// # Wire Format
//
// Every frame is 6 to 26 bytes long:
//
//	byte 0        0xEF  start marker 1
//	byte 1        0xFA  start marker 2
//	byte 2        destination address
//	byte 3        source address
//	byte 4        payload length L (0-20)
//	byte 5..5+L-1 payload
//	byte 5+L      checksum
//
// The checksum is the XOR of every preceding frame byte, folded from the seed
// 0xFF. It only detects an odd number of flipped bits per bit position.
//
// # Addressing and Routing
//
// Node addresses are 7 bits wide, in [0x01, 0x7F]. Address 0x01 doubles as the
// broadcast address and, by convention, as the master's address.
//
// A node that receives a valid frame decides what to do with it:
//
//   - Source is the node itself: the frame went all the way round the ring.
//     For a broadcast this ends the broadcast cycle, otherwise it is a bad
//     cycle. Either way the frame is dropped.
//   - Destination and source are both the broadcast address: the frame is
//     forwarded verbatim to the next node and also delivered locally.
//   - Destination is another node: the frame is relayed verbatim (bypass).
//   - Destination is this node: the payload is delivered locally.
//
// # Polling Model
//
// A Link never blocks and never starts goroutines. The application calls
// Link.Receive (or Link.Poll) once per main-loop cycle. Each call first
// checks the receive timeout, then consumes the bytes the Transport already
// holds. Link.Send writes a whole frame synchronously and fails with
// ErrBusy while a receive is in progress.
//
// A Link is NOT goroutine-safe.
package link
