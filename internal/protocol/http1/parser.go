package http1

import (
	"bytes"
	"strconv"
	"strings"

	"github.com/indigo-web/utils/strcomp"
	"github.com/indigo-web/utils/uf"
	"github.com/qt-users-jp/qthttpserver/config"
	"github.com/qt-users-jp/qthttpserver/http"
	"github.com/qt-users-jp/qthttpserver/http/method"
	"github.com/qt-users-jp/qthttpserver/http/proto"
	"github.com/qt-users-jp/qthttpserver/http/status"
	"github.com/qt-users-jp/qthttpserver/internal/cursor"
)

// Event is what the parser reports after consuming the available bytes.
type Event uint8

const (
	// Pending means more bytes are needed.
	Pending Event = iota
	// Ready means the request is complete.
	Ready
	// Upgrade means the client asked to switch to the WebSocket protocol. The header
	// lines following the Upgrade header are left unconsumed.
	Upgrade
)

func (e Event) String() string {
	switch e {
	case Pending:
		return "Pending"
	case Ready:
		return "Ready"
	case Upgrade:
		return "Upgrade"
	default:
		return "Unknown"
	}
}

// Parser is a line-oriented incremental HTTP/1.x request parser. Its state is kept
// in the request itself (http.Request.State), so feeding the same bytes in any
// number of chunks results in the same request.
type Parser struct {
	cfg           *config.Config
	request       *http.Request
	headersNumber int
	contentLength int
	hasBody       bool
}

func NewParser(cfg *config.Config, request *http.Request) *Parser {
	p := &Parser{cfg: cfg}
	p.Reset(request)

	return p
}

// Reset re-arms the parser to read the next request into the passed one.
func (p *Parser) Reset(request *http.Request) {
	p.request = request
	p.headersNumber = 0
	p.contentLength = 0
	p.hasBody = false
	request.SetState(http.ReadRequestLine)
}

func (p *Parser) Request() *http.Request {
	return p.request
}

// Parse consumes as many bytes from the cursor as the current request needs. Returned
// errors are status.HTTPError values and are fatal for the connection.
func (p *Parser) Parse(src *cursor.Cursor) (Event, error) {
	request := p.request

	switch request.State() {
	case http.ReadRequestLine:
		goto requestLine
	case http.ReadHeaders:
		goto headers
	case http.ReadBody:
		goto body
	case http.Done:
		return Ready, nil
	default:
		panic("unreachable code")
	}

requestLine:
	for {
		line, ok, err := src.ReadLine()
		if err != nil {
			return Pending, status.ErrTooLongRequestLine
		}
		if !ok {
			return Pending, nil
		}
		if len(line) > p.cfg.URI.RequestLineSize {
			return Pending, status.ErrTooLongRequestLine
		}
		if len(line) == 0 {
			// tolerate empty lines preceding the request line
			continue
		}

		if err = p.parseRequestLine(line); err != nil {
			return Pending, err
		}

		request.SetState(http.ReadHeaders)
		break
	}

headers:
	for {
		line, ok, err := src.ReadLine()
		if err != nil {
			return Pending, status.ErrHeaderFieldsTooLarge
		}
		if !ok {
			return Pending, nil
		}
		if len(line) > p.cfg.Headers.MaxLineLength {
			return Pending, status.ErrHeaderFieldsTooLarge
		}
		if len(line) == 0 {
			break
		}

		upgrade, err := p.parseHeader(line)
		if err != nil {
			return Pending, err
		}
		if upgrade {
			return Upgrade, nil
		}
	}

	if !p.hasBody {
		request.SetState(http.Done)
		return Ready, nil
	}

	request.SetState(http.ReadBody)

body:
	request.Body = append(request.Body, src.Next(p.contentLength-len(request.Body))...)
	if len(request.Body) < p.contentLength {
		return Pending, nil
	}

	request.SetState(http.Done)

	return Ready, nil
}

func (p *Parser) parseRequestLine(line []byte) error {
	sp := bytes.IndexByte(line, ' ')
	if sp <= 0 {
		return status.ErrBadRequest
	}

	methodToken, rest := line[:sp], line[sp+1:]
	sp = bytes.IndexByte(rest, ' ')
	if sp <= 0 {
		return status.ErrBadRequest
	}

	target, protoToken := rest[:sp], rest[sp+1:]
	if len(protoToken) == 0 || bytes.IndexByte(protoToken, ' ') != -1 {
		return status.ErrBadRequest
	}

	p.request.Method = method.Parse(uf.B2S(methodToken))
	if p.request.Method == method.Unknown {
		return status.ErrMethodNotImplemented
	}

	p.request.Proto = proto.FromBytes(protoToken)
	if p.request.Proto == proto.Unknown {
		return status.ErrHTTPVersionNotSupported
	}

	// the cursor reuses its memory, so the target must be copied
	p.request.URL = http.ParseTarget(string(target))

	return nil
}

func (p *Parser) parseHeader(line []byte) (upgrade bool, err error) {
	colon := bytes.IndexByte(line, ':')
	if colon == -1 {
		return false, nil
	}

	key := strings.ToLower(string(bytes.TrimSpace(line[:colon])))
	if len(key) == 0 {
		return false, nil
	}

	if p.headersNumber++; p.headersNumber > p.cfg.Headers.Number {
		return false, status.ErrTooManyHeaders
	}

	value := string(bytes.TrimSpace(line[colon+1:]))
	p.request.Headers[key] = value

	switch key {
	case "host":
		p.request.URL.SetHost(value)
	case "content-length":
		length, err := strconv.ParseUint(value, 10, 64)
		if err != nil {
			return false, status.ErrBadContentLength
		}
		if length > p.cfg.Body.MaxSize {
			return false, status.ErrBodyTooLarge
		}

		p.contentLength = int(length)
		p.hasBody = true
	case "upgrade":
		return strcomp.EqualFold(value, "websocket"), nil
	}

	return false, nil
}
