package http1

import (
	"strconv"

	"github.com/indigo-web/utils/strcomp"
	"github.com/qt-users-jp/qthttpserver/http"
	"github.com/qt-users-jp/qthttpserver/http/status"
)

// AppendReply serializes the response. The Content-Length header is always computed
// from the body, a user-supplied one is omitted.
func AppendReply(dst []byte, code status.Code, headers []http.Header, body []byte) []byte {
	dst = AppendStatusLine(dst, code, status.Text(code))

	for _, header := range headers {
		if strcomp.EqualFold(header.Key, "content-length") {
			continue
		}

		dst = AppendHeader(dst, header.Key, header.Value)
	}

	dst = append(dst, "Content-Length: "...)
	dst = strconv.AppendUint(dst, uint64(len(body)), 10)
	dst = crlf(dst)
	dst = crlf(dst)

	return append(dst, body...)
}

// AppendStatusLine appends an HTTP/1.1 status line with a custom reason phrase.
func AppendStatusLine(dst []byte, code status.Code, reason status.Status) []byte {
	dst = append(dst, "HTTP/1.1 "...)
	dst = strconv.AppendUint(dst, uint64(code), 10)
	dst = append(dst, ' ')
	dst = append(dst, reason...)

	return crlf(dst)
}

func AppendHeader(dst []byte, key, value string) []byte {
	dst = append(dst, key...)
	dst = append(dst, ':', ' ')
	dst = append(dst, value...)

	return crlf(dst)
}

func crlf(b []byte) []byte {
	return append(b, '\r', '\n')
}
