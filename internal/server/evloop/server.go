package evloop

import (
	"context"
	"net"
	"sync"

	"github.com/panjf2000/gnet/v2"
	"github.com/qt-users-jp/qthttpserver/http/status"
	"github.com/qt-users-jp/qthttpserver/internal/transport"
	"github.com/rs/zerolog"
)

// Handler is the protocol side of a connection.
type Handler interface {
	OnReadable(data []byte) (alive bool)
	OnDisconnected()
}

type OnOpen func(transport.Conn) Handler

// Server multiplexes connections over gnet event loops. Handlers are invoked on the
// event loop goroutine, so they must not block.
type Server struct {
	gnet.BuiltinEventEngine

	addr      string
	multicore bool
	onOpen    OnOpen
	logger    zerolog.Logger

	mu     sync.Mutex
	engine gnet.Engine
	booted chan struct{}
}

func NewServer(addr string, multicore bool, onOpen OnOpen, logger zerolog.Logger) *Server {
	return &Server{
		addr:      addr,
		multicore: multicore,
		onOpen:    onOpen,
		logger:    logger,
		booted:    make(chan struct{}),
	}
}

// Start runs the event loops and blocks until Stop is called. Returns status.ErrShutdown
// after a successful stop.
func (s *Server) Start() error {
	err := gnet.Run(s, "tcp://"+s.addr,
		gnet.WithMulticore(s.multicore),
		gnet.WithReusePort(false),
		gnet.WithTCPNoDelay(gnet.TCPNoDelay),
	)
	if err != nil {
		return err
	}

	return status.ErrShutdown
}

// Booted is closed once the server is ready to accept connections.
func (s *Server) Booted() <-chan struct{} {
	return s.booted
}

// Stop closes the listener and all the connections. It waits for the server to boot,
// if it didn't yet.
func (s *Server) Stop(ctx context.Context) error {
	select {
	case <-s.booted:
	case <-ctx.Done():
		return ctx.Err()
	}

	s.mu.Lock()
	engine := s.engine
	s.mu.Unlock()

	return engine.Stop(ctx)
}

func (s *Server) OnBoot(eng gnet.Engine) gnet.Action {
	s.mu.Lock()
	s.engine = eng
	s.mu.Unlock()
	close(s.booted)

	s.logger.Info().Str("addr", s.addr).Bool("multicore", s.multicore).Msg("event loops are running")

	return gnet.None
}

func (s *Server) OnOpen(c gnet.Conn) ([]byte, gnet.Action) {
	c.SetContext(s.onOpen(conn{c}))

	return nil, gnet.None
}

func (s *Server) OnClose(c gnet.Conn, err error) gnet.Action {
	if handler, ok := c.Context().(Handler); ok {
		handler.OnDisconnected()
	}

	if err != nil {
		s.logger.Debug().Err(err).Msg("connection closed with error")
	}

	return gnet.None
}

func (s *Server) OnTraffic(c gnet.Conn) gnet.Action {
	handler, ok := c.Context().(Handler)
	if !ok {
		return gnet.Close
	}

	data, err := c.Next(-1)
	if err != nil {
		return gnet.Close
	}

	// a handler that is done with the connection closes it by itself
	_ = handler.OnReadable(data)

	return gnet.None
}

// conn adapts gnet.Conn to transport.Conn. Writes are asynchronous, as they may
// come from any goroutine.
type conn struct {
	c gnet.Conn
}

func (c conn) Write(b []byte) error {
	return c.c.AsyncWrite(b, nil)
}

func (c conn) Close() error {
	return c.c.Close()
}

func (c conn) Remote() net.Addr {
	return c.c.RemoteAddr()
}
