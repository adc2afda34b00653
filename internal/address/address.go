package address

import (
	"errors"
	"net"
	"strconv"
	"strings"
)

const DefaultHost = "0.0.0.0"

var (
	ErrNoPort  = errors.New("no port given")
	ErrBadPort = errors.New("invalid port")
)

// Normalize fills the missing host with DefaultHost, so ":8080" becomes "0.0.0.0:8080".
// Malformed addresses are rejected.
func Normalize(addr string) (string, error) {
	host, port, err := Split(addr)
	if err != nil {
		return "", err
	}

	if len(host) == 0 {
		host = DefaultHost
	}

	return net.JoinHostPort(host, strconv.Itoa(int(port))), nil
}

// Split returns the host and the port. The host may be empty.
func Split(addr string) (host string, port uint16, err error) {
	colon := strings.LastIndexByte(addr, ':')
	if colon == -1 {
		return "", 0, ErrNoPort
	}

	host, rawPort := addr[:colon], addr[colon+1:]
	if len(host) > 1 && host[0] == '[' && host[len(host)-1] == ']' {
		host = host[1 : len(host)-1]
	}

	value, err := strconv.ParseUint(rawPort, 10, 16)
	if err != nil {
		return "", 0, ErrBadPort
	}

	return host, uint16(value), nil
}

func IsLocalhost(addr string) bool {
	host, _, err := Split(addr)
	if err != nil {
		host = addr
	}

	return strings.EqualFold(host, "localhost") || net.ParseIP(host).IsLoopback()
}
