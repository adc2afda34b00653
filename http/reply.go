package http

import (
	"sync/atomic"

	"github.com/indigo-web/utils/strcomp"
	"github.com/indigo-web/utils/uf"
	json "github.com/json-iterator/go"
	"github.com/qt-users-jp/qthttpserver/http/mime"
	"github.com/qt-users-jp/qthttpserver/http/status"
)

// Exchange is implemented by the connection the reply belongs to. The reply
// knows the connection only by this interface and refers to its request only
// by the reply ID, so nothing dangles once the peer is gone.
type Exchange interface {
	// RequestFor returns the request paired with the reply, if it is still alive.
	RequestFor(replyID uint64) (*Request, bool)
	// Finish serializes the reply and flushes it as soon as all the preceding
	// replies are flushed.
	Finish(reply *Reply) error
}

type Header struct {
	Key   string
	Value string
}

// Reply accumulates the status code, headers and body of a response. It is
// written to the connection on Close. A single reply must not be filled from
// multiple goroutines at once, however it may be closed from any goroutine.
type Reply struct {
	id      uint64
	ex      Exchange
	code    status.Code
	headers []Header
	body    []byte
	closed  atomic.Bool
}

func NewReply(id uint64, ex Exchange) *Reply {
	return &Reply{
		id:      id,
		ex:      ex,
		code:    status.OK,
		headers: make([]Header, 0, 4),
	}
}

func (r *Reply) ID() uint64 {
	return r.id
}

// Code sets the status code. Unknown codes are sent with an empty reason phrase.
func (r *Reply) Code(code status.Code) *Reply {
	r.code = code
	return r
}

// Header sets the header value, overriding any previous value set by the same
// (case-insensitive) key. Content-Length is always computed, so setting it has
// no effect on the wire.
func (r *Reply) Header(key, value string) *Reply {
	for i, header := range r.headers {
		if strcomp.EqualFold(header.Key, key) {
			r.headers[i].Value = value
			return r
		}
	}

	r.headers = append(r.headers, Header{
		Key:   key,
		Value: value,
	})

	return r
}

// Write implements io.Writer. It always returns n=len(b) and err=nil
func (r *Reply) Write(b []byte) (n int, err error) {
	r.body = append(r.body, b...)
	return len(b), nil
}

// String sets the body to the passed string
func (r *Reply) String(body string) *Reply {
	return r.Bytes(uf.S2B(body))
}

// Bytes sets the body to a copy of the passed slice
func (r *Reply) Bytes(body []byte) *Reply {
	r.body = append(r.body[:0], body...)
	return r
}

// TryJSON serializes the model into the body and sets the Content-Type.
func (r *Reply) TryJSON(model any) (*Reply, error) {
	r.body = r.body[:0]
	stream := json.ConfigDefault.BorrowStream(r)
	stream.WriteVal(model)
	err := stream.Flush()
	json.ConfigDefault.ReturnStream(stream)

	return r.Header("Content-Type", mime.JSON), err
}

// JSON does the same as TryJSON does, except the error results in the
// 500 Internal Server Error code
func (r *Reply) JSON(model any) *Reply {
	reply, err := r.TryJSON(model)
	if err != nil {
		return r.Error(err)
	}

	return reply
}

// Error sets the code from the error. Errors other than status.HTTPError result
// in 500 Internal Server Error. Passing nil does nothing.
func (r *Reply) Error(err error) *Reply {
	if err == nil {
		return r
	}

	if httpErr, ok := err.(status.HTTPError); ok {
		return r.Code(httpErr.Code)
	}

	return r.Code(status.InternalServerError)
}

// Request returns the paired request. It returns false once the connection is gone.
func (r *Reply) Request() (*Request, bool) {
	return r.ex.RequestFor(r.id)
}

// Close hands the reply over to the connection.
func (r *Reply) Close() error {
	if !r.closed.CompareAndSwap(false, true) {
		return status.ErrReplyClosed
	}

	return r.ex.Finish(r)
}

func (r *Reply) Closed() bool {
	return r.closed.Load()
}

func (r *Reply) Status() status.Code {
	return r.code
}

func (r *Reply) Headers() []Header {
	return r.headers
}

// Value returns the header value by a case-insensitive key.
func (r *Reply) Value(key string) (string, bool) {
	for _, header := range r.headers {
		if strcomp.EqualFold(header.Key, key) {
			return header.Value, true
		}
	}

	return "", false
}

func (r *Reply) Body() []byte {
	return r.body
}
