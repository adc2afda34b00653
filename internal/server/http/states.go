package http

type connState uint8

const (
	// eHTTP parses requests.
	eHTTP connState = iota + 1
	// eHandshake reads the rest of an upgrade request.
	eHandshake
	// eAwaitAccept waits for the application to accept or reject the upgrade. Incoming
	// bytes are buffered meanwhile.
	eAwaitAccept
	// eFrames decodes websocket frames.
	eFrames
	eClosed
)

func (s connState) String() string {
	switch s {
	case eHTTP:
		return "http"
	case eHandshake:
		return "handshake"
	case eAwaitAccept:
		return "await-accept"
	case eFrames:
		return "frames"
	case eClosed:
		return "closed"
	default:
		return "unknown"
	}
}
