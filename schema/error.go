package schema

import (
	"fmt"
	"time"

	"github.com/viant/jsonrpc"
)

const (
	RequestTimeout     = -32001
	SessionInvalidated = -32003
	SendFailed         = -32004
	BridgeClosed       = -32005
)

// NewRequestTimeout creates a timeout error for a request that got no reply in time
func NewRequestTimeout(timeout time.Duration) *jsonrpc.Error {
	return jsonrpc.NewError(RequestTimeout, fmt.Sprintf("Request timed out after %s", timeout), nil)
}

// NewSessionInvalidated creates an error for requests bound to a lost session
func NewSessionInvalidated(sessionID string) *jsonrpc.Error {
	return jsonrpc.NewError(SessionInvalidated, "Session invalidated", map[string]interface{}{"session_id": sessionID})
}

// NewSendFailed creates an error for a request that could not be delivered
func NewSendFailed(err error) *jsonrpc.Error {
	return jsonrpc.NewError(SendFailed, "Failed to send request: "+err.Error(), nil)
}

// NewBridgeClosed creates an error for requests outstanding at shutdown
func NewBridgeClosed() *jsonrpc.Error {
	return jsonrpc.NewError(BridgeClosed, "Bridge closed", nil)
}

// NewDuplicateRequest creates an error for a request reusing an id that is still pending
func NewDuplicateRequest(id string) *jsonrpc.Error {
	return jsonrpc.NewInvalidRequest("Duplicate request id: "+id, nil)
}
