package cookie

import (
	"errors"
	"strings"
)

var ErrBadCookie = errors.New("cookie has a malformed syntax")

// Parse splits the Cookie header value on semicolons and appends every name=value
// segment to dst. Segments without a name are rejected, however all the well-formed
// pairs preceding them are kept in the returned slice.
func Parse(dst []Cookie, data string) ([]Cookie, error) {
	for len(data) > 0 {
		var segment string

		if semicolon := strings.IndexByte(data, ';'); semicolon != -1 {
			segment, data = data[:semicolon], data[semicolon+1:]
		} else {
			segment, data = data, ""
		}

		segment = strings.TrimSpace(segment)
		if len(segment) == 0 {
			continue
		}

		eq := strings.IndexByte(segment, '=')
		if eq == -1 {
			// a lone token is a cookie with an empty value
			dst = append(dst, New(segment, ""))
			continue
		}

		name := strings.TrimSpace(segment[:eq])
		if len(name) == 0 {
			return dst, ErrBadCookie
		}

		dst = append(dst, New(name, strings.TrimSpace(segment[eq+1:])))
	}

	return dst, nil
}
