package domain

import "fmt"

// Transport error codes. They are stable and live in the reserved negative range.
const (
	CodeParseError     = -32700
	CodeInvalidRequest = -32600
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeInternalError  = -32603
	CodeUnauthorized   = -32001
)

// RPCError is the JSON-RPC error object.
// Handlers return it to report a structured failure; the dispatcher propagates it as-is.
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

// NewError creates an error object. Agents use positive codes for domain errors.
func NewError(code int, message string, data any) *RPCError {
	return &RPCError{Code: code, Message: message, Data: data}
}

// Errorf creates an error object with a formatted message and no data.
func Errorf(code int, format string, args ...any) *RPCError {
	return &RPCError{Code: code, Message: fmt.Sprintf(format, args...)}
}

func ErrParse(data any) *RPCError {
	return NewError(CodeParseError, "Parse error", data)
}

func ErrInvalidRequest(data any) *RPCError {
	return NewError(CodeInvalidRequest, "Invalid Request", data)
}

func ErrMethodNotFound(method string) *RPCError {
	return NewError(CodeMethodNotFound, "Method not found", map[string]any{"method": method})
}

func ErrInvalidParams(data any) *RPCError {
	return NewError(CodeInvalidParams, "Invalid params", data)
}

func ErrInternal(data any) *RPCError {
	return NewError(CodeInternalError, "Internal error", data)
}

func ErrUnauthorized() *RPCError {
	return NewError(CodeUnauthorized, "Unauthorized", nil)
}
