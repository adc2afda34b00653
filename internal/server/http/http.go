package http

import (
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/indigo-web/utils/strcomp"
	"github.com/qt-users-jp/qthttpserver/config"
	"github.com/qt-users-jp/qthttpserver/http"
	"github.com/qt-users-jp/qthttpserver/http/status"
	"github.com/qt-users-jp/qthttpserver/internal/cursor"
	"github.com/qt-users-jp/qthttpserver/internal/protocol/http1"
	codec "github.com/qt-users-jp/qthttpserver/internal/protocol/websocket"
	"github.com/qt-users-jp/qthttpserver/internal/transport"
	"github.com/qt-users-jp/qthttpserver/websocket"
	"github.com/rs/zerolog"
)

type (
	OnRequest   func(*http.Request, *http.Reply)
	OnWebSocket func(*websocket.Handshake)
)

// Handlers are application callbacks. Both are invoked without any internal lock
// held, so they're free to close replies or accept handshakes synchronously as
// well as from other goroutines.
type Handlers struct {
	OnRequest   OnRequest
	OnWebSocket OnWebSocket
}

type pair struct {
	request *http.Request
	data    []byte
	done    bool
}

// Connection is the protocol state of a single client. The server pushes the
// received bytes via OnReadable and reports the disconnect via OnDisconnected.
type Connection struct {
	cfg      *config.Config
	conn     transport.Conn
	handlers Handlers
	logger   zerolog.Logger

	mu         sync.Mutex
	state      connState
	processing bool
	src        *cursor.Cursor
	parser     *http1.Parser
	budget     int
	closing    bool
	nextID     uint64
	pairs      map[uint64]*pair
	order      []uint64
	handshake  *websocket.Handshake
	decoder    *codec.Decoder
	dispatch   func(websocket.Message)
	onClosed   func()
}

func New(cfg *config.Config, conn transport.Conn, handlers Handlers, logger zerolog.Logger) *Connection {
	maxLine := cfg.Headers.MaxLineLength
	if cfg.URI.RequestLineSize > maxLine {
		maxLine = cfg.URI.RequestLineSize
	}

	return &Connection{
		cfg:      cfg,
		conn:     conn,
		handlers: handlers,
		logger:   logger.With().Stringer("remote", conn.Remote()).Logger(),
		state:    eHTTP,
		src:      cursor.New(maxLine),
		parser:   http1.NewParser(cfg, http.NewRequest(conn.Remote())),
		budget:   cfg.KeepAlive.Budget,
		pairs:    make(map[uint64]*pair),
	}
}

// OnReadable consumes the data. The data is copied, so the caller may reuse its buffer.
// Returns false once the connection must not be read from anymore.
func (c *Connection) OnReadable(data []byte) (alive bool) {
	c.mu.Lock()
	if c.state == eClosed {
		c.mu.Unlock()
		return false
	}

	c.src.Feed(data)
	if c.state == eAwaitAccept && uint64(c.src.Len()) > c.cfg.WebSocket.MaxMessageSize {
		// nothing is decoded until the handshake is accepted
		after := c.violation(codec.ErrMessageTooLarge)
		c.mu.Unlock()
		after()

		return false
	}

	if c.processing {
		// whoever is processing, will pick the bytes up
		c.mu.Unlock()
		return true
	}

	c.processing = true
	c.mu.Unlock()
	c.process()

	return c.Alive()
}

// OnDisconnected drops every outstanding request and notifies the websocket, if any.
func (c *Connection) OnDisconnected() {
	c.mu.Lock()
	after := c.shutdown(false)
	c.mu.Unlock()
	after()
}

func (c *Connection) Alive() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.state != eClosed
}

func (c *Connection) process() {
	for {
		c.mu.Lock()
		action := c.step()
		if action == nil {
			c.processing = false
			c.mu.Unlock()
			return
		}

		c.mu.Unlock()
		action()
	}
}

func noop() {}

// step advances the state machine by one event. Must be called with the lock held.
// The returned action must be run without the lock. nil means there's nothing
// to do until more bytes arrive.
func (c *Connection) step() func() {
	switch c.state {
	case eHTTP:
		if c.closing {
			return nil
		}

		return c.stepHTTP()
	case eHandshake:
		ready, err := c.handshake.Parse(c.src)
		if err != nil {
			return c.violation(err)
		}
		if !ready {
			return nil
		}

		c.state = eAwaitAccept
		handshake, onWebSocket := c.handshake, c.handlers.OnWebSocket
		if onWebSocket == nil {
			c.logger.Debug().Str("id", handshake.ID()).Msg("no websocket handler, rejecting the upgrade")
			return c.shutdown(true)
		}

		return func() {
			onWebSocket(handshake)
		}
	case eFrames:
		return c.stepFrames()
	default:
		return nil
	}
}

func (c *Connection) stepHTTP() func() {
	event, err := c.parser.Parse(c.src)
	if err != nil {
		return c.violation(err)
	}

	request := c.parser.Request()

	switch event {
	case http1.Pending:
		return nil
	case http1.Upgrade:
		c.logger.Debug().Str("id", request.ID).Str("path", request.URL.Path).Msg("upgrading to websocket")
		c.handshake = websocket.NewHandshake(request.URL, request.Headers, c, c.cfg.Headers.Number)
		c.parser = nil
		c.state = eHandshake

		return noop
	}

	c.nextID++
	id := c.nextID
	reply := http.NewReply(id, c)
	c.pairs[id] = &pair{request: request}
	c.order = append(c.order, id)

	if strcomp.EqualFold(request.Headers.Value("connection"), "keep-alive") && c.budget > 0 {
		reply.Header("Keep-Alive", c.keepAliveValue())
		c.budget--
		reply.Header("Connection", "keep-alive")
		c.parser.Reset(http.NewRequest(c.conn.Remote()))
	} else {
		reply.Header("Connection", "close")
		c.budget = 0
		c.closing = true
	}

	onRequest := c.handlers.OnRequest
	if onRequest == nil {
		return func() {
			_ = reply.Close()
		}
	}

	return func() {
		onRequest(request, reply)
	}
}

func (c *Connection) keepAliveValue() string {
	timeout := int(c.cfg.KeepAlive.Timeout / time.Second)
	return "timeout=" + strconv.Itoa(timeout) + ", max=" + strconv.Itoa(c.budget)
}

func (c *Connection) stepFrames() func() {
	msg, ok, err := c.decoder.Next(c.src)
	if err != nil {
		return c.violation(err)
	}
	if !ok {
		return nil
	}

	switch msg.Opcode {
	case codec.OpClose:
		c.logger.Debug().Msg("websocket closed by the peer")
		return c.shutdown(true)
	case codec.OpPing, codec.OpPong:
		c.logger.Debug().Stringer("opcode", msg.Opcode).Msg("ignoring control frame")
		return noop
	}

	dispatch := c.dispatch
	message := websocket.Message{
		Type: websocket.MessageType(msg.Opcode),
		Data: msg.Payload,
	}

	return func() {
		dispatch(message)
	}
}

func (c *Connection) violation(err error) func() {
	c.logger.Debug().Err(err).Stringer("state", c.state).Msg("protocol violation, disconnecting")
	return c.shutdown(true)
}

// shutdown marks the connection closed and drops everything pending. The returned
// function closes the transport if asked and notifies the websocket. Must be called
// with the lock held.
func (c *Connection) shutdown(closeConn bool) func() {
	if c.state == eClosed {
		return noop
	}

	c.state = eClosed
	c.closing = true
	clear(c.pairs)
	c.order = nil
	c.parser = nil
	c.handshake = nil
	c.decoder = nil
	c.dispatch = nil
	c.src.Reset()
	onClosed := c.onClosed
	c.onClosed = nil

	return func() {
		if closeConn {
			_ = c.conn.Close()
		}

		if onClosed != nil {
			onClosed()
		}
	}
}

// RequestFor implements http.Exchange.
func (c *Connection) RequestFor(replyID uint64) (*http.Request, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	p, found := c.pairs[replyID]
	if !found {
		return nil, false
	}

	return p.request, true
}

// Finish implements http.Exchange. The reply is written as soon as all the replies
// preceding it are written, so pipelined requests are answered in their order.
func (c *Connection) Finish(reply *http.Reply) error {
	c.mu.Lock()
	p, found := c.pairs[reply.ID()]
	if !found || c.state == eClosed {
		c.mu.Unlock()
		return status.ErrConnectionClosed
	}

	p.data = http1.AppendReply(nil, reply.Status(), reply.Headers(), reply.Body())
	p.done = true

	var (
		out     []byte
		flushed int
	)

	for _, id := range c.order {
		head := c.pairs[id]
		if !head.done {
			break
		}

		out = append(out, head.data...)
		delete(c.pairs, id)
		flushed++
	}

	c.order = c.order[flushed:]

	if len(out) > 0 {
		if err := c.conn.Write(out); err != nil {
			c.logger.Debug().Err(err).Msg("failed to write the reply")
			after := c.shutdown(true)
			c.mu.Unlock()
			after()

			return status.ErrConnectionClosed
		}
	}

	if c.closing && len(c.order) == 0 && c.state == eHTTP {
		after := c.shutdown(true)
		c.mu.Unlock()
		after()

		return nil
	}

	c.mu.Unlock()

	return nil
}

// Write implements websocket.Link.
func (c *Connection) Write(b []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == eClosed {
		return status.ErrConnectionClosed
	}

	return c.conn.Write(b)
}

// Close implements websocket.Link.
func (c *Connection) Close() error {
	c.mu.Lock()
	after := c.shutdown(true)
	c.mu.Unlock()
	after()

	return nil
}

// Remote implements websocket.Link.
func (c *Connection) Remote() net.Addr {
	return c.conn.Remote()
}

// Switch implements websocket.Link. Bytes buffered since the upgrade request are
// decoded immediately.
func (c *Connection) Switch(kind websocket.Kind, dispatch func(websocket.Message), closed func()) error {
	c.mu.Lock()
	if c.state != eAwaitAccept {
		c.mu.Unlock()
		closed()

		return status.ErrConnectionClosed
	}

	c.state = eFrames
	c.handshake = nil
	c.decoder = codec.NewDecoder(kind == websocket.LegacyDraft, c.cfg.WebSocket.MaxMessageSize)
	c.dispatch = dispatch
	c.onClosed = closed

	run := !c.processing
	c.processing = true
	c.mu.Unlock()

	if run {
		c.process()
	}

	return nil
}
