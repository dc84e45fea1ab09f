package protocol

import "fmt"

// Error is the error type engine-level failures are returned as, carrying
// enough information to build a JSON-RPC error response directly.
type Error struct {
	Code    ErrorCode
	Message string
	Data    interface{}
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s (%d)", e.Message, e.Code)
}

func NewError(code ErrorCode, message string) *Error {
	return &Error{Code: code, Message: message}
}

func Errorf(code ErrorCode, format string, args ...interface{}) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

func (e *Error) WithData(data interface{}) *Error {
	e.Data = data
	return e
}

var (
	ErrConnectionClosed = NewError(ConnectionClosed, "connection closed")
)
