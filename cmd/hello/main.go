package main

import (
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/qt-users-jp/qthttpserver"
	"github.com/qt-users-jp/qthttpserver/config"
	"github.com/qt-users-jp/qthttpserver/http"
	"github.com/qt-users-jp/qthttpserver/http/method"
	"github.com/qt-users-jp/qthttpserver/http/mime"
	"github.com/qt-users-jp/qthttpserver/http/status"
	"github.com/qt-users-jp/qthttpserver/websocket"
	"github.com/rs/zerolog"
)

const page = "<html>\r\n" +
	"    <head>\r\n" +
	"        <title>Hello QtHttpServer</title>\r\n" +
	"    </head>\r\n" +
	"    <body>\r\n" +
	"        <h1>Hello QtHttpServer</h1>\r\n" +
	"    </body>\r\n" +
	"</html>\r\n"

type stats struct {
	Requests int64  `json:"requests"`
	Sockets  int64  `json:"sockets"`
	Uptime   string `json:"uptime"`
}

var (
	started  = time.Now()
	requests atomic.Int64
	sockets  atomic.Int64
)

func hello(request *http.Request, reply *http.Reply) {
	requests.Add(1)

	switch {
	case request.Method != method.GET:
		reply.Code(status.MethodNotAllowed)
	case request.URL.Path == "/status":
		reply.JSON(stats{
			Requests: requests.Load(),
			Sockets:  sockets.Load(),
			Uptime:   time.Since(started).Round(time.Second).String(),
		})
	default:
		reply.
			Header("Content-Type", mime.WithCharset(mime.HTML, mime.UTF8)).
			String(page)
	}

	_ = reply.Close()
}

func echo(logger zerolog.Logger) func(*websocket.Handshake) {
	return func(handshake *websocket.Handshake) {
		if handshake.URL().Path != "/echo" {
			_ = handshake.Close()
			return
		}

		socket, err := handshake.Accept("")
		if err != nil {
			logger.Warn().Err(err).Msg("failed to accept websocket")
			return
		}

		sockets.Add(1)
		logger.Info().
			Str("id", socket.ID()).
			Stringer("kind", socket.Kind()).
			Stringer("remote", socket.Remote()).
			Msg("websocket connected")

		socket.OnClose(func() {
			sockets.Add(-1)
			logger.Info().Str("id", socket.ID()).Msg("websocket disconnected")
		})
		socket.OnMessage(func(msg websocket.Message) {
			var err error

			switch msg.Type {
			case websocket.TextMessage:
				err = socket.Send(string(msg.Data))
			default:
				err = socket.SendBinary(msg.Data)
			}

			if err != nil {
				logger.Debug().Err(err).Str("id", socket.ID()).Msg("echo failed")
			}
		})
	}
}

func main() {
	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
		With().Timestamp().Logger().
		Level(zerolog.InfoLevel)

	cfg := config.Default()
	if os.Getenv("HELLO_EVENT_LOOP") != "" {
		cfg.NET.Engine = config.EngineEventLoop
	}

	app := qthttpserver.New(":8080").
		Tune(cfg).
		Logger(logger).
		OnRequest(hello).
		OnWebSocket(echo(logger)).
		NotifyOnStart(func() {
			logger.Info().Msg("listening on :8080")
		})

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-signals
		app.GracefulStop()
	}()

	if err := app.Serve(); err != status.ErrGracefulShutdown && err != status.ErrShutdown {
		logger.Fatal().Err(err).Msg("failed to serve")
	}
}
