package tcp

import (
	"net"
	"time"

	"github.com/qt-users-jp/qthttpserver/internal/timer"
)

// Client wraps a net.Conn with a read buffer and an idle timeout.
type Client struct {
	conn    net.Conn
	buff    []byte
	timeout time.Duration
}

func NewClient(conn net.Conn, timeout time.Duration, buff []byte) *Client {
	return &Client{
		conn:    conn,
		buff:    buff,
		timeout: timeout,
	}
}

// Read returns a piece of the internal buffer, which is valid until the next call.
// Timeouts are handled automatically.
func (c *Client) Read() ([]byte, error) {
	if err := c.conn.SetReadDeadline(timer.Deadline(c.timeout)); err != nil {
		return nil, err
	}

	n, err := c.conn.Read(c.buff)

	return c.buff[:n], err
}

func (c *Client) Write(b []byte) error {
	_, err := c.conn.Write(b)

	return err
}

func (c *Client) Remote() net.Addr {
	return c.conn.RemoteAddr()
}

func (c *Client) Close() error {
	return c.conn.Close()
}
