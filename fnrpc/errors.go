package fnrpc

import (
	"errors"
	"fmt"
)

// Standard JSON-RPC 2.0 error codes.
const (
	// CodeParseError means the request body is not valid JSON.
	CodeParseError = -32700

	// CodeInvalidRequest means the JSON is not a valid request object.
	CodeInvalidRequest = -32600

	// CodeMethodNotFound means no handler is registered for the method.
	CodeMethodNotFound = -32601

	// CodeInvalidParams means the params could not be decoded or failed
	// validation.
	CodeInvalidParams = -32602

	// CodeInternalError is used for every error a handler returns without
	// choosing a code itself.
	CodeInternalError = -32603
)

// Error is the error object of a JSON-RPC response. Handlers return it to
// control the code and data sent to the caller.
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// NewError returns an Error with the given code, message and data.
func NewError(code int, message string, data any) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Data:    data,
	}
}

// Error returns the code and message.
func (e *Error) Error() string {
	return fmt.Sprintf("jsonrpc error %d: %s", e.Code, e.Message)
}

// toError converts an error returned by a handler into an error object.
func toError(err error) *Error {
	var rpcErr *Error
	if errors.As(err, &rpcErr) {
		return rpcErr
	}

	return NewError(CodeInternalError, err.Error(), nil)
}
