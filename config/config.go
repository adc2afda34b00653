package config

import (
	"time"
)

// Engine selects how connections are driven.
type Engine uint8

const (
	// EngineStd runs a goroutine per connection on top of the net package.
	EngineStd Engine = iota + 1
	// EngineEventLoop multiplexes connections over a fixed number of event loops (gnet).
	EngineEventLoop
)

func (e Engine) String() string {
	switch e {
	case EngineStd:
		return "std"
	case EngineEventLoop:
		return "event-loop"
	default:
		return "unknown"
	}
}

type (
	URI struct {
		// RequestLineSize limits the length of the request line, including the method
		// and the protocol. Longer lines are rejected and the connection is closed.
		RequestLineSize int
	}

	Headers struct {
		// MaxLineLength limits the length of a single header line.
		MaxLineLength int
		// Number is the maximal number of headers per request.
		Number int
	}

	Body struct {
		// MaxSize describes the maximal Content-Length value the server agrees to
		// buffer. Requests declaring more are rejected.
		MaxSize uint64
	}

	NET struct {
		// ReadBufferSize is a size of buffer in bytes which will be used to read from
		// socket
		ReadBufferSize int
		// ReadTimeout controls the maximal lifetime of IDLE connections. If no data was
		// received in this period of time, it'll be closed.
		ReadTimeout time.Duration
		// Engine selects the connection driver. Defaults to EngineStd.
		Engine Engine
		// Multicore spreads event loops over all the available cores. Used by EngineEventLoop only.
		Multicore bool `test:"nullable"`
	}

	KeepAlive struct {
		// Budget is the number of keep-alive requests served by a single connection before
		// it's answered with Connection: close.
		Budget int
		// Timeout is advertised to clients in the Keep-Alive header. The server
		// itself enforces NET.ReadTimeout instead.
		Timeout time.Duration
	}

	WebSocket struct {
		// MaxMessageSize limits a single (possibly fragmented) message. Bigger messages
		// close the connection.
		MaxMessageSize uint64
	}
)

// Config holds settings used across various parts of the server, mainly restrictions
// and limitations.
//
// You must ALWAYS modify defaults (returned via Default()) and NEVER try to initialize the
// config manually, because most likely this will result in ambiguous errors.
type Config struct {
	URI       URI
	Headers   Headers
	Body      Body
	NET       NET
	KeepAlive KeepAlive
	WebSocket WebSocket
}

// Default returns default config.
func Default() *Config {
	return &Config{
		URI: URI{
			// most web-entities limit it to 4-8kb, so 16kb is pretty tolerant.
			RequestLineSize: 16 * 1024,
		},
		Headers: Headers{
			MaxLineLength: 8 * 1024, // there might be extremely long cookies.
			Number:        100,
		},
		Body: Body{
			MaxSize: 64 * 1024 * 1024,
		},
		NET: NET{
			ReadBufferSize: 4 * 1024,
			ReadTimeout:    90 * time.Second,
			Engine:         EngineStd,
		},
		KeepAlive: KeepAlive{
			Budget:  100,
			Timeout: time.Second,
		},
		WebSocket: WebSocket{
			MaxMessageSize: 16 * 1024 * 1024,
		},
	}
}
