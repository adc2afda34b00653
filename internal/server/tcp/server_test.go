package tcp

import (
	"io"
	"net"
	"sync/atomic"
	"testing"
	"time"

	"github.com/qt-users-jp/qthttpserver/http/status"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

type echoHandler struct {
	client       *Client
	disconnected *atomic.Bool
}

func (e echoHandler) OnReadable(data []byte) bool {
	if string(data) == "bye" {
		return false
	}

	_ = e.client.Write(data)
	return true
}

func (e echoHandler) OnDisconnected() {
	e.disconnected.Store(true)
}

func startServer(t *testing.T, disconnected *atomic.Bool) (*Server, chan error) {
	listener, err := net.Listen("tcp", "localhost:0")
	require.NoError(t, err)

	server := NewServer(listener, func(conn net.Conn) {
		client := NewClient(conn, time.Second, make([]byte, 1024))
		Serve(client, echoHandler{client: client, disconnected: disconnected})
	}, zerolog.Nop())

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	return server, errCh
}

func TestTCP(t *testing.T) {
	t.Run("stop", func(t *testing.T) {
		server, errCh := startServer(t, new(atomic.Bool))
		require.NoError(t, server.Stop())
		require.ErrorIs(t, <-errCh, status.ErrShutdown)
	})

	t.Run("echo", func(t *testing.T) {
		disconnected := new(atomic.Bool)
		server, errCh := startServer(t, disconnected)

		conn, err := net.Dial("tcp", server.Addr().String())
		require.NoError(t, err)

		_, err = conn.Write([]byte("Hello, world!"))
		require.NoError(t, err)
		buff := make([]byte, len("Hello, world!"))
		_, err = io.ReadFull(conn, buff)
		require.NoError(t, err)
		require.Equal(t, "Hello, world!", string(buff))
		require.Equal(t, 1, server.Conns())

		_, err = conn.Write([]byte("bye"))
		require.NoError(t, err)
		_, err = conn.Read(buff)
		require.ErrorIs(t, err, io.EOF)
		require.Eventually(t, disconnected.Load, time.Second, 10*time.Millisecond)
		require.Eventually(t, func() bool {
			return server.Conns() == 0
		}, time.Second, 10*time.Millisecond)

		require.NoError(t, server.GracefulShutdown())
		require.ErrorIs(t, <-errCh, status.ErrGracefulShutdown)
	})

	t.Run("stop closes connections", func(t *testing.T) {
		disconnected := new(atomic.Bool)
		server, errCh := startServer(t, disconnected)

		conn, err := net.Dial("tcp", server.Addr().String())
		require.NoError(t, err)
		_, err = conn.Write([]byte("ping"))
		require.NoError(t, err)
		_, err = io.ReadFull(conn, make([]byte, 4))
		require.NoError(t, err)

		require.NoError(t, server.Stop())
		require.ErrorIs(t, <-errCh, status.ErrShutdown)
		require.True(t, disconnected.Load())
	})
}
