package status

type HTTPError struct {
	Message string
	Code    Code
}

func NewError(code Code, message string) error {
	return HTTPError{
		Code:    code,
		Message: message,
	}
}

func (h HTTPError) Error() string {
	return h.Message
}

var (
	ErrBadRequest              = NewError(BadRequest, "bad request")
	ErrTooLongRequestLine      = NewError(BadRequest, "request line is too long")
	ErrBadContentLength        = NewError(BadRequest, "malformed Content-Length value")
	ErrMethodNotImplemented    = NewError(NotImplemented, "request method is not supported")
	ErrBodyTooLarge            = NewError(RequestEntityTooLarge, "request body is too large")
	ErrHeaderFieldsTooLarge    = NewError(BadRequest, "too large header line")
	ErrTooManyHeaders          = NewError(BadRequest, "too many headers")
	ErrHTTPVersionNotSupported = NewError(HTTPVersionNotSupported, "HTTP version not supported")
	ErrRequestTimeout          = NewError(RequestTimeout, "request timeout")
	ErrInternalServerError     = NewError(InternalServerError, "internal server error")

	// ErrReplyClosed is returned by Reply.Close if the reply was already closed.
	ErrReplyClosed = NewError(InternalServerError, "reply is already closed")
	// ErrConnectionClosed is returned when the peer is gone before the reply was flushed.
	ErrConnectionClosed = NewError(InternalServerError, "connection is closed")

	ErrShutdown         = NewError(ServiceUnavailable, "shutdown")
	ErrGracefulShutdown = NewError(ServiceUnavailable, "graceful shutdown")
)
