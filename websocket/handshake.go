package websocket

import (
	"bytes"
	"crypto/md5"
	"crypto/sha1"
	"encoding/base64"
	"encoding/binary"
	"errors"
	"math"
	"net"
	"strings"
	"sync/atomic"

	"github.com/dchest/uniuri"
	"github.com/qt-users-jp/qthttpserver/http"
	"github.com/qt-users-jp/qthttpserver/http/cookie"
	"github.com/qt-users-jp/qthttpserver/http/status"
	"github.com/qt-users-jp/qthttpserver/internal/protocol/http1"
)

// Kind tells which handshake the client initiated.
type Kind uint8

const (
	// RFC6455 is the standard handshake, Sec-WebSocket-Key based.
	RFC6455 Kind = iota + 1
	// LegacyDraft is the hixie-76 draft handshake, Sec-WebSocket-Key1/Key2 and
	// an 8-byte challenge based.
	LegacyDraft
)

func (k Kind) String() string {
	switch k {
	case RFC6455:
		return "RFC6455"
	case LegacyDraft:
		return "hixie-76"
	default:
		return "unknown"
	}
}

// Version returns the protocol version number associated with the handshake kind.
func (k Kind) Version() int {
	switch k {
	case RFC6455:
		return 17
	default:
		return 0
	}
}

const (
	acceptGUID      = "258EAFA5-E914-47DA-95CA-C5AB0DC85B11"
	challengeLength = 8
)

var (
	ErrNoKey         = errors.New("neither Sec-WebSocket-Key nor Sec-WebSocket-Key1/Key2 are present")
	ErrBadLegacyKey  = errors.New("malformed Sec-WebSocket-Key1/Key2 value")
	ErrHandshakeDone = errors.New("handshake is already accepted or rejected")
	ErrNotReady      = errors.New("handshake headers are not completely received yet")
	ErrLegacyBinary  = errors.New("hixie-76 framing supports text messages only")
	ErrLegacyText    = errors.New("hixie-76 text must be valid UTF-8")
	ErrSocketClosed  = errors.New("websocket is closed")
)

// LineReader is the stream the handshake reads the remaining headers from.
type LineReader interface {
	ReadLine() (line []byte, ok bool, err error)
	Read(n int) ([]byte, bool)
}

// Link is the connection the handshake was initiated on.
type Link interface {
	Write([]byte) error
	Close() error
	Remote() net.Addr
	// Switch moves the connection into frame mode. Every decoded data message is
	// passed to dispatch, closed is called once after the connection is gone.
	Switch(kind Kind, dispatch func(Message), closed func()) error
}

// Handshake is an upgrade request, not yet accepted. Pass it to Accept in order to
// complete the upgrade, or Close it in order to reject it.
type Handshake struct {
	id         string
	url        http.URL
	headers    http.Headers
	cookies    []cookie.Cookie
	kind       Kind
	key        string
	challenge  [4 + 4 + challengeLength]byte
	link       Link
	maxHeaders int
	headersEnd bool
	ready      bool
	finished   atomic.Bool
}

// NewHandshake starts the handshake from the request target and the headers read
// so far. The headers are cloned, so the request they came from may be dropped.
// maxHeaders limits the total number of headers, including the already received ones.
func NewHandshake(url http.URL, headers http.Headers, link Link, maxHeaders int) *Handshake {
	h := &Handshake{
		id:         uniuri.New(),
		url:        url,
		headers:    headers.Clone(),
		link:       link,
		maxHeaders: maxHeaders,
	}
	h.url.Scheme = "ws"

	if value, found := h.headers["cookie"]; found {
		delete(h.headers, "cookie")
		h.cookies, _ = cookie.Parse(h.cookies, value)
	}

	return h
}

// Parse consumes the rest of the header block and, for the legacy draft, the
// challenge following it. It returns true once the handshake is ready to be
// accepted. Errors are fatal for the connection.
func (h *Handshake) Parse(src LineReader) (ready bool, err error) {
	for !h.headersEnd {
		line, ok, err := src.ReadLine()
		if err != nil {
			return false, status.ErrHeaderFieldsTooLarge
		}
		if !ok {
			return false, nil
		}

		if len(line) == 0 {
			h.headersEnd = true
			if err = h.detect(); err != nil {
				return false, err
			}

			break
		}

		if err = h.parseHeader(line); err != nil {
			return false, err
		}
	}

	if h.kind == LegacyDraft && !h.ready {
		challenge, ok := src.Read(challengeLength)
		if !ok {
			return false, nil
		}

		copy(h.challenge[8:], challenge)
	}

	h.ready = true

	return true, nil
}

func (h *Handshake) parseHeader(line []byte) error {
	colon := bytes.IndexByte(line, ':')
	if colon == -1 {
		return nil
	}

	key := strings.ToLower(string(bytes.TrimSpace(line[:colon])))
	value := string(bytes.TrimSpace(line[colon+1:]))

	switch key {
	case "":
	case "host":
		h.url.SetHost(value)
	case "cookie":
		h.cookies, _ = cookie.Parse(h.cookies, value)
	default:
		if len(h.headers) >= h.maxHeaders {
			return status.ErrTooManyHeaders
		}

		h.headers[key] = value
	}

	return nil
}

func (h *Handshake) detect() error {
	key1, hasKey1 := h.headers["sec-websocket-key1"]
	key2, hasKey2 := h.headers["sec-websocket-key2"]

	switch {
	case hasKey1 && hasKey2:
		h.kind = LegacyDraft

		n1, err := decodeLegacyKey(key1)
		if err != nil {
			return err
		}

		n2, err := decodeLegacyKey(key2)
		if err != nil {
			return err
		}

		binary.BigEndian.PutUint32(h.challenge[:4], n1)
		binary.BigEndian.PutUint32(h.challenge[4:8], n2)
	case h.headers.Has("sec-websocket-key"):
		h.kind = RFC6455
		h.key = h.headers["sec-websocket-key"]
	default:
		return ErrNoKey
	}

	return nil
}

// decodeLegacyKey concatenates all the digits of the key and divides the number by
// the count of spaces.
func decodeLegacyKey(key string) (uint32, error) {
	var (
		number uint64
		spaces uint64
	)

	for i := 0; i < len(key); i++ {
		switch char := key[i]; {
		case char == ' ':
			spaces++
		case char >= '0' && char <= '9':
			digit := uint64(char - '0')
			if number > (math.MaxUint64-digit)/10 {
				return 0, ErrBadLegacyKey
			}

			number = number*10 + digit
		}
	}

	if spaces == 0 {
		return 0, ErrBadLegacyKey
	}

	number /= spaces
	if number > math.MaxUint32 {
		return 0, ErrBadLegacyKey
	}

	return uint32(number), nil
}

// AcceptKey computes the Sec-WebSocket-Accept value for the Sec-WebSocket-Key.
func AcceptKey(key string) string {
	sum := sha1.Sum([]byte(key + acceptGUID))
	return base64.StdEncoding.EncodeToString(sum[:])
}

// Response returns the Switching Protocols response completing the handshake. An
// empty protocol omits the Sec-WebSocket-Protocol header.
func (h *Handshake) Response(protocol string) ([]byte, error) {
	if !h.ready {
		return nil, ErrNotReady
	}

	var buff []byte

	switch h.kind {
	case RFC6455:
		buff = http1.AppendStatusLine(buff, status.SwitchingProtocols, status.Text(status.SwitchingProtocols))
		buff = http1.AppendHeader(buff, "Upgrade", "websocket")
		buff = http1.AppendHeader(buff, "Connection", "Upgrade")
		buff = http1.AppendHeader(buff, "Sec-WebSocket-Accept", AcceptKey(h.key))
		if len(protocol) > 0 {
			buff = http1.AppendHeader(buff, "Sec-WebSocket-Protocol", protocol)
		}
		buff = append(buff, '\r', '\n')
	case LegacyDraft:
		buff = http1.AppendStatusLine(buff, status.SwitchingProtocols, "Web Socket Protocol Handshake")
		buff = http1.AppendHeader(buff, "Upgrade", "WebSocket")
		buff = http1.AppendHeader(buff, "Connection", "Upgrade")
		buff = http1.AppendHeader(buff, "Sec-WebSocket-Origin", h.headers["origin"])
		buff = http1.AppendHeader(buff, "Sec-WebSocket-Location", h.url.String())
		if len(protocol) > 0 {
			buff = http1.AppendHeader(buff, "Sec-WebSocket-Protocol", protocol)
		}
		buff = append(buff, '\r', '\n')
		sum := md5.Sum(h.challenge[:])
		buff = append(buff, sum[:]...)
	}

	return buff, nil
}

// Accept completes the handshake and switches the connection to frame mode.
// Messages received before a callback is set via Socket.OnMessage are queued.
func (h *Handshake) Accept(protocol string) (*Socket, error) {
	response, err := h.Response(protocol)
	if err != nil {
		return nil, err
	}

	if !h.finished.CompareAndSwap(false, true) {
		return nil, ErrHandshakeDone
	}

	socket := newSocket(h)
	if err = h.link.Write(response); err != nil {
		_ = h.link.Close()
		return nil, err
	}

	if err = h.link.Switch(h.kind, socket.dispatch, socket.closed); err != nil {
		return nil, err
	}

	return socket, nil
}

// Close rejects the handshake by closing the connection.
func (h *Handshake) Close() error {
	if !h.finished.CompareAndSwap(false, true) {
		return ErrHandshakeDone
	}

	return h.link.Close()
}

// ID returns a random token identifying the handshake and the socket created from it.
func (h *Handshake) ID() string {
	return h.id
}

// URL returns the target of the upgrade request. The scheme is always ws.
func (h *Handshake) URL() http.URL {
	return h.url
}

// Header returns the header value by a case-insensitive key.
func (h *Handshake) Header(key string) (string, bool) {
	return h.headers.Get(key)
}

func (h *Handshake) Headers() http.Headers {
	return h.headers
}

func (h *Handshake) Cookies() []cookie.Cookie {
	return h.cookies
}

func (h *Handshake) Remote() net.Addr {
	return h.link.Remote()
}

func (h *Handshake) Kind() Kind {
	return h.kind
}

func (h *Handshake) Version() int {
	return h.kind.Version()
}

// Protocols returns the subprotocols offered by the client.
func (h *Handshake) Protocols() []string {
	value, found := h.headers["sec-websocket-protocol"]
	if !found {
		return nil
	}

	protocols := strings.Split(value, ",")
	for i := range protocols {
		protocols[i] = strings.TrimSpace(protocols[i])
	}

	return protocols
}
