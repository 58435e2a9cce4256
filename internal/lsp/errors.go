package lsp

import (
	"errors"
	"fmt"
)

// Standard errors returned by the client.
var (
	// ErrNotStarted indicates the client has not been started.
	ErrNotStarted = errors.New("rustowl client not started")

	// ErrAlreadyStarted indicates the client is already running.
	ErrAlreadyStarted = errors.New("rustowl client already started")

	// ErrShutdown indicates the client has been shut down.
	ErrShutdown = errors.New("rustowl client shut down")

	// ErrMalformedResponse indicates the server replied with a shape that
	// does not decode as the expected result. Callers discard the query
	// locally; this is not evidence of server failure.
	ErrMalformedResponse = errors.New("malformed response from server")
)

// RPCError is a JSON-RPC error object from the server.
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// Error implements the error interface.
func (e *RPCError) Error() string {
	if e.Data != nil {
		return fmt.Sprintf("rpc error %d: %s (data: %v)", e.Code, e.Message, e.Data)
	}
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

// Standard JSON-RPC error codes.
const (
	CodeParseError     = -32700
	CodeInvalidRequest = -32600
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeInternalError  = -32603
)

// IsProtocolError reports whether err represents a protocol-level failure
// that should count toward the session error tally. Context cancellation
// and local shutdown are excluded; a malformed response shape is excluded
// because it is handled by discarding the query.
func IsProtocolError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrShutdown) || errors.Is(err, ErrMalformedResponse) {
		return false
	}
	var rpcErr *RPCError
	if errors.As(err, &rpcErr) {
		return true
	}
	return false
}
