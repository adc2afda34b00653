package tcp

import (
	"net"
	"sync"
	"sync/atomic"

	"github.com/puzpuzpuz/xsync/v3"
	"github.com/qt-users-jp/qthttpserver/http/status"
	"github.com/rs/zerolog"
)

type OnConnection func(net.Conn)

// Server runs every accepted connection in its own goroutine.
type Server struct {
	sock     net.Listener
	onConn   OnConnection
	conns    *xsync.MapOf[net.Conn, struct{}]
	wg       sync.WaitGroup
	shutdown atomic.Bool
	graceful atomic.Bool
	logger   zerolog.Logger
}

func NewServer(sock net.Listener, onConn OnConnection, logger zerolog.Logger) *Server {
	return &Server{
		sock:   sock,
		onConn: onConn,
		conns:  xsync.NewMapOf[net.Conn, struct{}](),
		logger: logger,
	}
}

func (s *Server) Addr() net.Addr {
	return s.sock.Addr()
}

// Start accepts connections until the listener is closed. When stopped, it waits
// for all the connections to finish and returns either status.ErrShutdown or
// status.ErrGracefulShutdown.
func (s *Server) Start() error {
	s.logger.Info().Stringer("addr", s.sock.Addr()).Msg("accepting connections")

	for {
		conn, err := s.sock.Accept()
		if err != nil {
			s.wg.Wait()

			switch {
			case s.graceful.Load():
				return status.ErrGracefulShutdown
			case s.shutdown.Load():
				return status.ErrShutdown
			}

			s.logger.Error().Err(err).Msg("accept failed")

			return err
		}

		s.conns.Store(conn, struct{}{})
		s.wg.Add(1)
		go s.connHandler(conn)
	}
}

func (s *Server) stopListener() error {
	s.shutdown.Store(true)

	return s.sock.Close()
}

// Stop shuts listener and ALL the connections down
func (s *Server) Stop() error {
	if err := s.stopListener(); err != nil {
		return err
	}

	s.conns.Range(func(conn net.Conn, _ struct{}) bool {
		_ = conn.Close()
		return true
	})

	return nil
}

// GracefulShutdown stops a listener, but leaving all the connections free to end their
// lives peacefully
func (s *Server) GracefulShutdown() error {
	s.graceful.Store(true)

	return s.stopListener()
}

// Conns returns the number of connections being served at the moment.
func (s *Server) Conns() int {
	return s.conns.Size()
}

func (s *Server) connHandler(conn net.Conn) {
	defer s.wg.Done()

	s.onConn(conn)
	_ = conn.Close()
	s.conns.Delete(conn)
}
