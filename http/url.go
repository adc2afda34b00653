package http

import (
	"net/url"
	"strconv"
	"strings"
)

const DefaultPort = 80

// URL is a request target, completed by the Host header.
type URL struct {
	Scheme   string
	Host     string
	Port     uint16
	Path     string
	RawQuery string
}

// ParseTarget parses the request-target of the request line. Targets which cannot
// be parsed are kept as opaque paths.
func ParseTarget(target string) URL {
	u := URL{
		Scheme: "http",
		Port:   DefaultPort,
	}

	parsed, err := url.ParseRequestURI(target)
	if err != nil {
		u.Path = target
		return u
	}

	u.Path = parsed.Path
	u.RawQuery = parsed.RawQuery
	if len(parsed.Host) > 0 {
		u.SetHost(parsed.Host)
	}

	return u
}

// SetHost updates the host and the port from a Host header value. The port
// falls back to DefaultPort if omitted or malformed.
func (u *URL) SetHost(hostport string) {
	u.Host, u.Port = splitHostPort(hostport)
}

// Query returns parsed query parameters. Malformed pairs are skipped.
func (u URL) Query() url.Values {
	values, _ := url.ParseQuery(u.RawQuery)
	return values
}

// RequestURI returns the path together with the query, as it is sent in the request line.
func (u URL) RequestURI() string {
	path := u.Path
	if len(path) == 0 {
		path = "/"
	}

	if len(u.RawQuery) == 0 {
		return path
	}

	return path + "?" + u.RawQuery
}

// String returns the absolute form of the URL. The port is omitted when it's the default one.
func (u URL) String() string {
	if len(u.Host) == 0 {
		return u.RequestURI()
	}

	var b strings.Builder
	b.WriteString(u.Scheme)
	b.WriteString("://")
	b.WriteString(u.Host)
	if u.Port != DefaultPort && u.Port != 0 {
		b.WriteByte(':')
		b.WriteString(strconv.Itoa(int(u.Port)))
	}
	b.WriteString(u.RequestURI())

	return b.String()
}

func splitHostPort(hostport string) (host string, port uint16) {
	hostport = strings.TrimSpace(hostport)
	colon := strings.LastIndexByte(hostport, ':')
	if colon == -1 || strings.LastIndexByte(hostport, ']') > colon {
		// either no port at all or a bare IPv6 literal
		return hostport, DefaultPort
	}

	value, err := strconv.ParseUint(hostport[colon+1:], 10, 16)
	if err != nil {
		return hostport[:colon], DefaultPort
	}

	return hostport[:colon], uint16(value)
}
