package qthttpserver

import (
	"context"
	"fmt"
	"net"

	"github.com/qt-users-jp/qthttpserver/config"
	"github.com/qt-users-jp/qthttpserver/http"
	"github.com/qt-users-jp/qthttpserver/http/status"
	"github.com/qt-users-jp/qthttpserver/internal/address"
	"github.com/qt-users-jp/qthttpserver/internal/server/evloop"
	httpserver "github.com/qt-users-jp/qthttpserver/internal/server/http"
	"github.com/qt-users-jp/qthttpserver/internal/server/tcp"
	"github.com/qt-users-jp/qthttpserver/internal/transport"
	"github.com/qt-users-jp/qthttpserver/websocket"
	"github.com/rs/zerolog"
)

// App is the server application. It's configured via chained calls before Serve
// and must not be modified after.
type App struct {
	addr     string
	cfg      *config.Config
	logger   zerolog.Logger
	handlers httpserver.Handlers
	hooks    hooks
	errCh    chan error
}

// New returns a new App instance. The address is in the host:port form, as accepted
// by net.Listen.
func New(addr string) *App {
	return &App{
		addr:   addr,
		cfg:    config.Default(),
		logger: zerolog.Nop(),
		errCh:  make(chan error, 1),
	}
}

// Tune replaces the default config.
func (a *App) Tune(cfg *config.Config) *App {
	if cfg == nil {
		cfg = config.Default()
	}

	a.cfg = cfg
	return a
}

// Logger sets the logger. By default, nothing is logged.
func (a *App) Logger(logger zerolog.Logger) *App {
	a.logger = logger
	return a
}

// OnRequest sets the request handler. The reply must be closed exactly once, either
// inside the handler or later from any goroutine. Without a handler, every request
// is answered with an empty 200 OK.
//
// With config.EngineEventLoop the handler is called on the event loop, so it must
// not block.
func (a *App) OnRequest(fn func(*http.Request, *http.Reply)) *App {
	a.handlers.OnRequest = fn
	return a
}

// OnWebSocket sets the handler for upgrade requests. The handshake must be either
// accepted or closed. Without a handler, upgrade requests are dropped.
func (a *App) OnWebSocket(fn func(*websocket.Handshake)) *App {
	a.handlers.OnWebSocket = fn
	return a
}

// NotifyOnStart calls the callback at the moment the server is able to accept
// connections.
func (a *App) NotifyOnStart(cb func()) *App {
	a.hooks.OnStart = cb
	return a
}

// NotifyOnStop calls the callback once the server is down. It's guaranteed that at
// the moment the callback is called, no new connections are accepted.
func (a *App) NotifyOnStop(cb func()) *App {
	a.hooks.OnStop = cb
	return a
}

// Serve starts the server and blocks until it's stopped. Returns status.ErrShutdown
// or status.ErrGracefulShutdown if stopped via Stop or GracefulStop respectively.
func (a *App) Serve() error {
	addr, err := address.Normalize(a.addr)
	if err != nil {
		return fmt.Errorf("qthttpserver: bad address %q: %w", a.addr, err)
	}

	a.addr = addr
	var srv server

	switch a.cfg.NET.Engine {
	case config.EngineEventLoop:
		srv = a.newEventLoop()
	case config.EngineStd:
		srv, err = a.newTCP()
	default:
		return fmt.Errorf("qthttpserver: unknown engine %d", a.cfg.NET.Engine)
	}

	if err != nil {
		return err
	}

	return a.run(srv)
}

func (a *App) newTCP() (server, error) {
	sock, err := net.Listen("tcp", a.addr)
	if err != nil {
		return nil, fmt.Errorf("qthttpserver: listen: %w", err)
	}

	handlers, logger := a.handlers, a.logger

	return stdServer{tcp.NewServer(sock, func(conn net.Conn) {
		client := tcp.NewClient(conn, a.cfg.NET.ReadTimeout, make([]byte, a.cfg.NET.ReadBufferSize))
		tcp.Serve(client, httpserver.New(a.cfg, client, handlers, logger))
	}, logger)}, nil
}

func (a *App) newEventLoop() server {
	handlers, logger := a.handlers, a.logger

	return evloopServer{evloop.NewServer(a.addr, a.cfg.NET.Multicore, func(conn transport.Conn) evloop.Handler {
		return httpserver.New(a.cfg, conn, handlers, logger)
	}, logger)}
}

func (a *App) run(srv server) error {
	if address.IsLocalhost(a.addr) {
		a.logger.Debug().Msg("listening on a loopback address, the server is unreachable from outside")
	}

	a.logger.Info().
		Str("addr", a.addr).
		Stringer("engine", a.cfg.NET.Engine).
		Msg("starting")

	startErr := make(chan error, 1)
	go func() {
		startErr <- srv.Start()
	}()

	select {
	case <-srv.Ready():
	case err := <-startErr:
		callIfNotNil(a.hooks.OnStop)
		return err
	}

	callIfNotNil(a.hooks.OnStart)

	var err error
	select {
	case err = <-startErr:
	case err = <-a.errCh:
		if err == status.ErrGracefulShutdown {
			// stop listening to new clients and process till the end all the old ones
			_ = srv.Pause()
		} else {
			_ = srv.Stop()
		}

		<-startErr
	}

	a.logger.Info().Err(err).Msg("stopped")
	callIfNotNil(a.hooks.OnStop)

	return err
}

// GracefulStop stops accepting new connections, but keeps serving old ones. The
// event-loop engine can't detach its connections, so for it this is the same as Stop.
//
// NOTE: the call isn't blocking. So by that, after the method returned, the server
// will be still working
func (a *App) GracefulStop() {
	a.notify(status.ErrGracefulShutdown)
}

// Stop stops the whole application immediately.
//
// NOTE: the call isn't blocking. So by that, after the method returned, the server
// will still be working
func (a *App) Stop() {
	a.notify(status.ErrShutdown)
}

func (a *App) notify(err error) {
	select {
	case a.errCh <- err:
	default:
		// stop is already requested
	}
}

type hooks struct {
	OnStart, OnStop func()
}

func callIfNotNil(f func()) {
	if f != nil {
		f()
	}
}

// server unifies both engines.
type server interface {
	Start() error
	Ready() <-chan struct{}
	Pause() error
	Stop() error
}

type stdServer struct {
	*tcp.Server
}

var ready = func() chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}()

// Ready is closed at once, as the listener is already bound.
func (s stdServer) Ready() <-chan struct{} {
	return ready
}

func (s stdServer) Pause() error {
	return s.GracefulShutdown()
}

type evloopServer struct {
	*evloop.Server
}

func (e evloopServer) Ready() <-chan struct{} {
	return e.Booted()
}

func (e evloopServer) Pause() error {
	return e.Stop()
}

func (e evloopServer) Stop() error {
	return e.Server.Stop(context.Background())
}
