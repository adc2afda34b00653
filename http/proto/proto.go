package proto

import "github.com/indigo-web/utils/uf"

type Proto uint8

const (
	Unknown Proto = iota
	HTTP10
	HTTP11
)

var tokens = [...]string{
	Unknown: "",
	HTTP10:  "HTTP/1.0",
	HTTP11:  "HTTP/1.1",
}

func (p Proto) String() string {
	if int(p) >= len(tokens) {
		return ""
	}

	return tokens[p]
}

// Parse recognizes only HTTP/1.0 and HTTP/1.1. Everything else is Unknown. The token
// is case-sensitive.
func Parse(token string) Proto {
	switch token {
	case tokens[HTTP11]:
		return HTTP11
	case tokens[HTTP10]:
		return HTTP10
	default:
		return Unknown
	}
}

// FromBytes does the same as Parse, without copying the token.
func FromBytes(raw []byte) Proto {
	return Parse(uf.B2S(raw))
}
