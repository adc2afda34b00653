package websocket

import (
	"net"
	"sync"
	"unicode/utf8"

	"github.com/indigo-web/utils/uf"
	"github.com/qt-users-jp/qthttpserver/http"
	codec "github.com/qt-users-jp/qthttpserver/internal/protocol/websocket"
)

type MessageType uint8

const (
	TextMessage   = MessageType(codec.OpText)
	BinaryMessage = MessageType(codec.OpBinary)
)

func (m MessageType) String() string {
	return codec.Opcode(m).String()
}

// Message is a complete data message received from the client.
type Message struct {
	Type MessageType
	Data []byte
}

const closeNormal = 1000

// Socket is an accepted WebSocket connection.
type Socket struct {
	id     string
	url    http.URL
	remote net.Addr
	kind   Kind
	link   Link

	mu        sync.Mutex
	onMessage func(Message)
	onClose   func()
	queue     []Message
	isClosed  bool

	// delivery keeps messages in order while the queue is being flushed
	delivery sync.Mutex
}

func newSocket(h *Handshake) *Socket {
	return &Socket{
		id:     h.id,
		url:    h.url,
		remote: h.link.Remote(),
		kind:   h.kind,
		link:   h.link,
	}
}

// OnMessage sets the callback invoked for every received message. Messages received
// before are delivered immediately. The callback must not call OnMessage itself.
func (s *Socket) OnMessage(fn func(Message)) {
	s.delivery.Lock()
	defer s.delivery.Unlock()

	s.mu.Lock()
	s.onMessage = fn
	queue := s.queue
	s.queue = nil
	s.mu.Unlock()

	for _, msg := range queue {
		fn(msg)
	}
}

// OnClose sets the callback invoked once the connection is gone. If it's already
// gone, the callback is invoked immediately.
func (s *Socket) OnClose(fn func()) {
	s.mu.Lock()
	s.onClose = fn
	isClosed := s.isClosed
	s.mu.Unlock()

	if isClosed {
		fn()
	}
}

// Send sends a text message.
func (s *Socket) Send(text string) error {
	if s.Closed() {
		return ErrSocketClosed
	}

	if s.kind == LegacyDraft {
		// 0xff terminates the frame and never occurs in valid UTF-8
		if !utf8.ValidString(text) {
			return ErrLegacyText
		}

		return s.link.Write(codec.AppendLegacy(nil, uf.S2B(text)))
	}

	return s.link.Write(codec.AppendFrame(nil, codec.OpText, uf.S2B(text)))
}

// SendBinary sends a binary message. The legacy draft has no binary frames.
func (s *Socket) SendBinary(data []byte) error {
	if s.Closed() {
		return ErrSocketClosed
	}

	if s.kind == LegacyDraft {
		return ErrLegacyBinary
	}

	return s.link.Write(codec.AppendFrame(nil, codec.OpBinary, data))
}

// Close sends the closing frame and disconnects.
func (s *Socket) Close() error {
	if s.Closed() {
		return ErrSocketClosed
	}

	var frame []byte
	if s.kind == LegacyDraft {
		frame = codec.AppendLegacyClose(nil)
	} else {
		frame = codec.AppendClose(nil, closeNormal)
	}

	// the peer might be already gone, so the write error doesn't matter
	_ = s.link.Write(frame)

	return s.link.Close()
}

func (s *Socket) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.isClosed
}

func (s *Socket) ID() string {
	return s.id
}

// URL returns the target the socket was opened on. The scheme is always ws.
func (s *Socket) URL() http.URL {
	return s.url
}

func (s *Socket) Remote() net.Addr {
	return s.remote
}

func (s *Socket) Kind() Kind {
	return s.kind
}

func (s *Socket) dispatch(msg Message) {
	s.delivery.Lock()
	defer s.delivery.Unlock()

	s.mu.Lock()
	fn := s.onMessage
	if fn == nil {
		s.queue = append(s.queue, msg)
	}
	s.mu.Unlock()

	if fn != nil {
		fn(msg)
	}
}

func (s *Socket) closed() {
	s.mu.Lock()
	if s.isClosed {
		s.mu.Unlock()
		return
	}

	s.isClosed = true
	fn := s.onClose
	s.queue = nil
	s.mu.Unlock()

	if fn != nil {
		fn()
	}
}
