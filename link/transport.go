package link

// Transport is the byte-oriented serial port a Link runs on.
//
// Available and ReadByte must not block. ReadByte is only called after
// Available reported at least one byte. WriteByte may block until the
// byte is handed to the hardware.
type Transport interface {
	// Begin opens the port at the given baud rate.
	Begin(baud int) error
	// Available returns the number of received bytes ready to be read.
	Available() int
	// ReadByte returns the next received byte.
	ReadByte() (byte, error)
	// WriteByte transmits one byte.
	WriteByte(b byte) error
}
