package http

import (
	"net"

	"github.com/dchest/uniuri"
	"github.com/qt-users-jp/qthttpserver/http/cookie"
	"github.com/qt-users-jp/qthttpserver/http/method"
	"github.com/qt-users-jp/qthttpserver/http/proto"
)

// ReadState reflects how far the parser got with the request.
type ReadState uint8

const (
	ReadRequestLine ReadState = iota
	ReadHeaders
	ReadBody
	Done
)

func (r ReadState) String() string {
	switch r {
	case ReadRequestLine:
		return "ReadRequestLine"
	case ReadHeaders:
		return "ReadHeaders"
	case ReadBody:
		return "ReadBody"
	case Done:
		return "Done"
	default:
		return "Unknown"
	}
}

// Request represents a single HTTP message received from a client.
type Request struct {
	// ID is a random token unique for every request. It's handy mostly for logging.
	ID     string
	Method method.Method
	Proto  proto.Proto
	// URL is built from the request-target and the Host header. The scheme is always http.
	URL URL
	// Headers hold lower-cased names and verbatim values.
	Headers Headers
	// Body is present only if the Content-Length header was set.
	Body   []byte
	Remote net.Addr
	state  ReadState
}

func NewRequest(remote net.Addr) *Request {
	return &Request{
		ID:      uniuri.New(),
		Proto:   proto.HTTP11,
		URL:     URL{Scheme: "http", Port: DefaultPort},
		Headers: NewHeaders(),
		Remote:  remote,
	}
}

func (r *Request) State() ReadState {
	return r.state
}

// SetState is used by the parser to advance the request.
func (r *Request) SetState(state ReadState) {
	r.state = state
}

// Cookies splits the Cookie header into name=value pairs.
func (r *Request) Cookies() ([]cookie.Cookie, error) {
	value, found := r.Headers.Get("cookie")
	if !found {
		return nil, nil
	}

	return cookie.Parse(nil, value)
}
