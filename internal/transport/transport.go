package transport

import "net"

// Conn is the write side of a client connection, as seen by the protocol layer.
// Reading is driven by the server: whatever it reads is pushed into the
// connection, so the protocol layer never blocks on a socket.
type Conn interface {
	// Write sends the data. It may be called from any goroutine.
	Write([]byte) error
	// Close disconnects the client. The server reports it back as a disconnect.
	Close() error
	Remote() net.Addr
}
