package evloop

import (
	"context"
	"io"
	"net"
	"sync/atomic"
	"testing"
	"time"

	"github.com/qt-users-jp/qthttpserver/http/status"
	"github.com/qt-users-jp/qthttpserver/internal/transport"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

type echoHandler struct {
	conn         transport.Conn
	disconnected *atomic.Int32
}

func (e echoHandler) OnReadable(data []byte) bool {
	if string(data) == "bye" {
		_ = e.conn.Close()
		return false
	}

	_ = e.conn.Write(append([]byte(nil), data...))
	return true
}

func (e echoHandler) OnDisconnected() {
	e.disconnected.Add(1)
}

func freeAddr(t *testing.T) string {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := l.Addr().String()
	require.NoError(t, l.Close())

	return addr
}

func TestEventLoop(t *testing.T) {
	disconnected := new(atomic.Int32)
	addr := freeAddr(t)
	server := NewServer(addr, false, func(conn transport.Conn) Handler {
		return echoHandler{conn: conn, disconnected: disconnected}
	}, zerolog.Nop())

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	select {
	case <-server.Booted():
	case err := <-errCh:
		require.FailNow(t, "server failed to start", err)
	}

	conn, err := net.Dial("tcp", addr)
	require.NoError(t, err)

	_, err = conn.Write([]byte("Hello, world!"))
	require.NoError(t, err)
	buff := make([]byte, len("Hello, world!"))
	_, err = io.ReadFull(conn, buff)
	require.NoError(t, err)
	require.Equal(t, "Hello, world!", string(buff))

	_, err = conn.Write([]byte("bye"))
	require.NoError(t, err)
	_, err = conn.Read(buff)
	require.ErrorIs(t, err, io.EOF)
	require.Eventually(t, func() bool {
		return disconnected.Load() == 1
	}, time.Second, 10*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, server.Stop(ctx))
	require.ErrorIs(t, <-errCh, status.ErrShutdown)
}
