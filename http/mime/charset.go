package mime

type Charset = string

const (
	UTF8  Charset = "utf-8"
	ASCII Charset = "us-ascii"
)

// WithCharset returns the Content-Type value carrying the charset parameter.
func WithCharset(mime MIME, charset Charset) string {
	return mime + "; charset=" + charset
}
