package mime

import "strings"

type MIME = string

const (
	OctetStream MIME = "application/octet-stream"
	Plain       MIME = "text/plain"
	HTML        MIME = "text/html"
	JSON        MIME = "application/json"
)

// Complies returns whether two MIMEs are compatible. Empty MIME is
// considered compatible with any other MIME
func Complies(mime MIME, with string) bool {
	// get rid of parameters if any
	if semicolon := strings.IndexByte(with, ';'); semicolon != -1 {
		with = with[:semicolon]
	}

	with = strings.TrimSpace(with)

	return len(with) == 0 || strings.EqualFold(with, mime)
}
