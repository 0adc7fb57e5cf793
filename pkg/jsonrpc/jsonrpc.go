// Package jsonrpc defines the JSON-RPC 2.0 envelope and the error codes
// used by the A2A transport.
package jsonrpc

import "encoding/json"

// Version is the only protocol version accepted.
const Version = "2.0"

// Request is an incoming JSON-RPC call. ID is kept raw because the
// protocol permits strings, numbers, and null; it is echoed back as-is,
// and an absent id is distinguishable from an explicit null.
type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// HasID reports whether the request carried an id member at all.
func (r *Request) HasID() bool {
	return len(r.ID) > 0
}

// Response is an outgoing JSON-RPC reply. Exactly one of Result and Error
// is set.
type Response struct {
	JSONRPC string `json:"jsonrpc"`
	ID      any    `json:"id"`
	Result  any    `json:"result,omitempty"`
	Error   *Error `json:"error,omitempty"`
}

// Error is a JSON-RPC error object.
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

func (e *Error) Error() string {
	return e.Message
}

// Standard JSON-RPC 2.0 error codes plus the A2A extensions used by the
// task surface. Authorization failures carry their own code so clients can
// distinguish a denied request from a missing task.
const (
	CodeParseError         = -32700
	CodeInvalidRequest     = -32600
	CodeMethodNotFound     = -32601
	CodeInvalidParams      = -32602
	CodeInternalError      = -32603
	CodeTaskNotFound       = -32001
	CodeTaskNotContinuable = -32002
	CodeUnauthorized       = -32003
)

// NewError builds an error object with optional data.
func NewError(code int, message string, data any) *Error {
	return &Error{Code: code, Message: message, Data: data}
}

// NewResponse builds a success reply echoing the request id.
func NewResponse(id, result any) Response {
	return Response{JSONRPC: Version, ID: id, Result: result}
}

// NewErrorResponse builds an error reply echoing the request id.
func NewErrorResponse(id any, err *Error) Response {
	return Response{JSONRPC: Version, ID: id, Error: err}
}
