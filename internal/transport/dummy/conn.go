package dummy

import (
	"net"
	"sync"
)

// Conn records everything written into it. Used in tests only.
type Conn struct {
	mu     sync.Mutex
	data   []byte
	closed bool
	remote net.Addr
}

func NewConn() *Conn {
	return &Conn{
		remote: &net.TCPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 54321},
	}
}

func (c *Conn) Write(b []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return net.ErrClosed
	}

	c.data = append(c.data, b...)
	return nil
}

func (c *Conn) Close() error {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()

	return nil
}

func (c *Conn) Remote() net.Addr {
	return c.remote
}

// Written returns a copy of everything written so far.
func (c *Conn) Written() []byte {
	c.mu.Lock()
	defer c.mu.Unlock()

	return append([]byte(nil), c.data...)
}

// Flush returns everything written so far and forgets it.
func (c *Conn) Flush() []byte {
	c.mu.Lock()
	defer c.mu.Unlock()

	data := c.data
	c.data = nil

	return data
}

func (c *Conn) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.closed
}
