package http

import (
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/qt-users-jp/qthttpserver/config"
	"github.com/qt-users-jp/qthttpserver/http"
	"github.com/qt-users-jp/qthttpserver/http/method"
	"github.com/qt-users-jp/qthttpserver/http/status"
	codec "github.com/qt-users-jp/qthttpserver/internal/protocol/websocket"
	"github.com/qt-users-jp/qthttpserver/internal/transport/dummy"
	"github.com/qt-users-jp/qthttpserver/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newConnection(handlers Handlers) (*Connection, *dummy.Conn) {
	conn := dummy.NewConn()
	return New(config.Default(), conn, handlers, zerolog.Nop()), conn
}

func respond(body string) Handlers {
	return Handlers{
		OnRequest: func(request *http.Request, reply *http.Reply) {
			_ = reply.String(body).Close()
		},
	}
}

func clientFrame(opcode codec.Opcode, payload string) []byte {
	key := []byte{0x37, 0xfa, 0x21, 0x3d}
	masked := []byte(payload)
	codec.Mask(masked, key)

	frame := []byte{0x80 | byte(opcode), 0x80 | byte(len(payload))}
	frame = append(frame, key...)

	return append(frame, masked...)
}

const keepAliveRequest = "GET / HTTP/1.1\r\nHost: localhost\r\nConnection: Keep-Alive\r\n\r\n"

func TestConnection(t *testing.T) {
	t.Run("simple get", func(t *testing.T) {
		c, conn := newConnection(respond("Hello, world!"))
		alive := c.OnReadable([]byte("GET / HTTP/1.1\r\nHost: x\r\n\r\n"))
		require.False(t, alive)
		require.Equal(t,
			"HTTP/1.1 200 OK\r\nConnection: close\r\nContent-Length: 13\r\n\r\nHello, world!",
			string(conn.Written()),
		)
		require.True(t, conn.Closed())
	})

	t.Run("default reply", func(t *testing.T) {
		c, conn := newConnection(Handlers{})
		c.OnReadable([]byte("GET / HTTP/1.0\r\n\r\n"))
		require.Equal(t, "HTTP/1.1 200 OK\r\nConnection: close\r\nContent-Length: 0\r\n\r\n", string(conn.Written()))
		require.True(t, conn.Closed())
	})

	t.Run("keep-alive budget", func(t *testing.T) {
		c, conn := newConnection(respond(""))

		for i := 0; i < 100; i++ {
			require.True(t, c.OnReadable([]byte(keepAliveRequest)), i)
			wanted := fmt.Sprintf(
				"HTTP/1.1 200 OK\r\nKeep-Alive: timeout=1, max=%d\r\nConnection: keep-alive\r\n"+
					"Content-Length: 0\r\n\r\n", 100-i,
			)
			require.Equal(t, wanted, string(conn.Flush()), i)
			require.False(t, conn.Closed(), i)
		}

		require.False(t, c.OnReadable([]byte(keepAliveRequest)))
		require.Equal(t, "HTTP/1.1 200 OK\r\nConnection: close\r\nContent-Length: 0\r\n\r\n", string(conn.Flush()))
		require.True(t, conn.Closed())
	})

	t.Run("requests after connection close are ignored", func(t *testing.T) {
		var calls int
		c, conn := newConnection(Handlers{
			OnRequest: func(request *http.Request, reply *http.Reply) {
				calls++
				_ = reply.Close()
			},
		})
		c.OnReadable([]byte("GET / HTTP/1.1\r\n\r\n" + keepAliveRequest))
		require.Equal(t, 1, calls)
		require.True(t, conn.Closed())
	})

	t.Run("pipelined replies keep their order", func(t *testing.T) {
		var replies []*http.Reply
		c, conn := newConnection(Handlers{
			OnRequest: func(request *http.Request, reply *http.Reply) {
				replies = append(replies, reply.String(request.URL.Path))
			},
		})

		c.OnReadable([]byte(
			strings.Replace(keepAliveRequest, "/", "/first", 1) +
				strings.Replace(keepAliveRequest, "/", "/second", 1),
		))
		require.Len(t, replies, 2)

		require.NoError(t, replies[1].Close())
		require.Empty(t, conn.Written())

		require.NoError(t, replies[0].Close())
		written := string(conn.Written())
		first, second := strings.Index(written, "/first"), strings.Index(written, "/second")
		require.True(t, first != -1 && second != -1)
		require.Less(t, first, second)
		require.False(t, conn.Closed())
	})

	t.Run("replies from other goroutines", func(t *testing.T) {
		const n = 20
		var (
			wg      sync.WaitGroup
			mu      sync.Mutex
			replies []*http.Reply
		)

		c, conn := newConnection(Handlers{
			OnRequest: func(request *http.Request, reply *http.Reply) {
				mu.Lock()
				replies = append(replies, reply.String(request.URL.Path))
				mu.Unlock()
			},
		})

		var raw strings.Builder
		for i := 0; i < n; i++ {
			raw.WriteString(strings.Replace(keepAliveRequest, "/", fmt.Sprintf("/%02d", i), 1))
		}
		c.OnReadable([]byte(raw.String()))
		require.Len(t, replies, n)

		for i := n - 1; i >= 0; i-- {
			wg.Add(1)
			go func(reply *http.Reply) {
				defer wg.Done()
				assert.NoError(t, reply.Close())
			}(replies[i])
		}
		wg.Wait()

		written := string(conn.Written())
		last := -1
		for i := 0; i < n; i++ {
			pos := strings.Index(written, fmt.Sprintf("/%02d", i))
			require.Greater(t, pos, last, i)
			last = pos
		}
	})

	t.Run("request split into bytes", func(t *testing.T) {
		var requests []*http.Request
		c, _ := newConnection(Handlers{
			OnRequest: func(request *http.Request, reply *http.Reply) {
				requests = append(requests, request)
				_ = reply.Close()
			},
		})

		raw := "POST /upload?name=x HTTP/1.1\r\nHost: localhost:8080\r\nContent-Length: 13\r\n\r\nHello, world!"
		for i := 0; i < len(raw); i++ {
			c.OnReadable([]byte{raw[i]})
		}

		require.Len(t, requests, 1)
		request := requests[0]
		require.Equal(t, method.POST, request.Method)
		require.Equal(t, "/upload", request.URL.Path)
		require.Equal(t, "x", request.URL.Query().Get("name"))
		require.Equal(t, uint16(8080), request.URL.Port)
		require.Equal(t, "Hello, world!", string(request.Body))
		require.Equal(t, http.Done, request.State())
	})

	t.Run("partial body", func(t *testing.T) {
		var body string
		c, _ := newConnection(Handlers{
			OnRequest: func(request *http.Request, reply *http.Reply) {
				body = string(request.Body)
				_ = reply.Close()
			},
		})

		c.OnReadable([]byte("POST / HTTP/1.1\r\nContent-Length: 5\r\n\r\nabc"))
		require.Empty(t, body)
		c.OnReadable([]byte("de"))
		require.Equal(t, "abcde", body)
	})

	t.Run("paired request", func(t *testing.T) {
		var reply *http.Reply
		c, _ := newConnection(Handlers{
			OnRequest: func(request *http.Request, r *http.Reply) {
				paired, ok := r.Request()
				assert.True(t, ok)
				assert.Equal(t, request, paired)
				reply = r
			},
		})

		c.OnReadable([]byte(keepAliveRequest))
		require.NotNil(t, reply)
		c.OnDisconnected()

		_, ok := reply.Request()
		require.False(t, ok)
		require.ErrorIs(t, reply.Close(), status.ErrConnectionClosed)
		require.ErrorIs(t, reply.Close(), status.ErrReplyClosed)
		require.False(t, c.OnReadable([]byte(keepAliveRequest)))
	})

	t.Run("protocol violations", func(t *testing.T) {
		for _, raw := range []string{
			"BREW / HTTP/1.1\r\n\r\n",
			"GET / HTTP/2.0\r\n\r\n",
			"GET /\r\n\r\n",
			"POST / HTTP/1.1\r\nContent-Length: many\r\n\r\n",
		} {
			c, conn := newConnection(respond("unreachable"))
			require.False(t, c.OnReadable([]byte(raw)), raw)
			require.Empty(t, conn.Written(), raw)
			require.True(t, conn.Closed(), raw)
		}
	})
}

const upgradeRequest = "GET /chat HTTP/1.1\r\n" +
	"Host: server.example.com\r\n" +
	"Upgrade: websocket\r\n" +
	"Connection: Upgrade\r\n" +
	"Sec-WebSocket-Key: dGhlIHNhbXBsZSBub25jZQ==\r\n" +
	"Sec-WebSocket-Version: 13\r\n\r\n"

const switchingProtocols = "HTTP/1.1 101 Switching Protocols\r\n" +
	"Upgrade: websocket\r\n" +
	"Connection: Upgrade\r\n" +
	"Sec-WebSocket-Accept: s3pPLMBiTxaQ9kYGzzhZRbK+xOo=\r\n\r\n"

func echo(t *testing.T, closed *bool) OnWebSocket {
	return func(handshake *websocket.Handshake) {
		socket, err := handshake.Accept("")
		require.NoError(t, err)
		socket.OnMessage(func(msg websocket.Message) {
			assert.NoError(t, socket.Send(strings.ToUpper(string(msg.Data))))
		})
		socket.OnClose(func() {
			*closed = true
		})
	}
}

func TestUpgrade(t *testing.T) {
	t.Run("echo", func(t *testing.T) {
		var closed bool
		c, conn := newConnection(Handlers{OnWebSocket: echo(t, &closed)})

		require.True(t, c.OnReadable([]byte(upgradeRequest)))
		require.Equal(t, switchingProtocols, string(conn.Flush()))

		require.True(t, c.OnReadable(clientFrame(codec.OpText, "hello")))
		require.Equal(t, codec.AppendFrame(nil, codec.OpText, []byte("HELLO")), conn.Flush())

		require.True(t, c.OnReadable(clientFrame(codec.OpPing, "")))
		require.Empty(t, conn.Written())

		require.False(t, c.OnReadable(clientFrame(codec.OpClose, "")))
		require.True(t, conn.Closed())
		require.True(t, closed)
	})

	t.Run("handshake split into bytes", func(t *testing.T) {
		var closed bool
		c, conn := newConnection(Handlers{OnWebSocket: echo(t, &closed)})
		raw := upgradeRequest + string(clientFrame(codec.OpText, "hi"))

		for i := 0; i < len(raw); i++ {
			require.True(t, c.OnReadable([]byte{raw[i]}), i)
		}

		require.Equal(t, switchingProtocols+string(codec.AppendFrame(nil, codec.OpText, []byte("HI"))), string(conn.Written()))
		c.OnDisconnected()
		require.True(t, closed)
	})

	t.Run("frames before accept are buffered", func(t *testing.T) {
		var handshake *websocket.Handshake
		c, conn := newConnection(Handlers{
			OnWebSocket: func(h *websocket.Handshake) {
				handshake = h
			},
		})

		c.OnReadable([]byte(upgradeRequest))
		require.NotNil(t, handshake)
		require.Empty(t, conn.Written())
		require.Equal(t, "ws://server.example.com/chat", handshake.URL().String())
		require.Equal(t, websocket.RFC6455, handshake.Kind())

		c.OnReadable(clientFrame(codec.OpText, "first"))
		c.OnReadable(clientFrame(codec.OpBinary, "second"))

		socket, err := handshake.Accept("")
		require.NoError(t, err)

		var received []websocket.Message
		socket.OnMessage(func(msg websocket.Message) {
			received = append(received, msg)
		})

		require.Equal(t, []websocket.Message{
			{Type: websocket.TextMessage, Data: []byte("first")},
			{Type: websocket.BinaryMessage, Data: []byte("second")},
		}, received)
	})

	t.Run("bytes before accept are limited", func(t *testing.T) {
		var handshake *websocket.Handshake
		cfg := config.Default()
		cfg.WebSocket.MaxMessageSize = 16
		conn := dummy.NewConn()
		c := New(cfg, conn, Handlers{
			OnWebSocket: func(h *websocket.Handshake) {
				handshake = h
			},
		}, zerolog.Nop())

		require.True(t, c.OnReadable([]byte(upgradeRequest)))
		require.NotNil(t, handshake)
		require.True(t, c.OnReadable([]byte(strings.Repeat("a", 16))))
		require.False(t, c.OnReadable([]byte("b")))
		require.True(t, conn.Closed())

		_, err := handshake.Accept("")
		require.Error(t, err)
	})

	t.Run("no websocket handler", func(t *testing.T) {
		c, conn := newConnection(Handlers{})
		require.False(t, c.OnReadable([]byte(upgradeRequest)))
		require.Empty(t, conn.Written())
		require.True(t, conn.Closed())
	})

	t.Run("rejected", func(t *testing.T) {
		c, conn := newConnection(Handlers{
			OnWebSocket: func(h *websocket.Handshake) {
				_ = h.Close()
			},
		})
		require.False(t, c.OnReadable([]byte(upgradeRequest)))
		require.True(t, conn.Closed())
	})

	t.Run("malformed frame", func(t *testing.T) {
		var closed bool
		c, conn := newConnection(Handlers{OnWebSocket: echo(t, &closed)})
		c.OnReadable([]byte(upgradeRequest))
		require.False(t, c.OnReadable([]byte{0xf1, 0x00}))
		require.True(t, conn.Closed())
		require.True(t, closed)
	})

	t.Run("server closes", func(t *testing.T) {
		c, conn := newConnection(Handlers{
			OnWebSocket: func(h *websocket.Handshake) {
				socket, err := h.Accept("")
				require.NoError(t, err)
				require.NoError(t, socket.Close())
			},
		})
		require.False(t, c.OnReadable([]byte(upgradeRequest)))
		require.Equal(t, switchingProtocols+"\x88\x02\x03\xe8", string(conn.Written()))
		require.True(t, conn.Closed())
	})

	t.Run("legacy draft", func(t *testing.T) {
		var closed bool
		c, conn := newConnection(Handlers{OnWebSocket: echo(t, &closed)})
		raw := "GET /demo HTTP/1.1\r\n" +
			"Host: example.com\r\n" +
			"Connection: Upgrade\r\n" +
			"Sec-WebSocket-Key2: 12998 5 Y3 1  .P00\r\n" +
			"Sec-WebSocket-Protocol: sample\r\n" +
			"Upgrade: WebSocket\r\n" +
			"Sec-WebSocket-Key1: 4 @1  46546xW%0l 1 5\r\n" +
			"Origin: http://example.com\r\n\r\n" +
			"^n:ds[4U" +
			"\x00hello\xff"

		require.True(t, c.OnReadable([]byte(raw)))
		require.Equal(t,
			"HTTP/1.1 101 Web Socket Protocol Handshake\r\n"+
				"Upgrade: WebSocket\r\n"+
				"Connection: Upgrade\r\n"+
				"Sec-WebSocket-Origin: http://example.com\r\n"+
				"Sec-WebSocket-Location: ws://example.com/demo\r\n\r\n"+
				"8jKS'y:G*Co,Wxa-"+
				"\x00HELLO\xff",
			string(conn.Flush()),
		)

		require.False(t, c.OnReadable([]byte{0xff, 0x00}))
		require.True(t, conn.Closed())
		require.True(t, closed)
	})
}
