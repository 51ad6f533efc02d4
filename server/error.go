package server

import (
	"errors"

	"github.com/localrivet/editormcp/mcp"
)

var (
	// ErrBindFailed is wrapped by Start when the listen socket cannot be bound.
	ErrBindFailed = errors.New("failed to bind server socket")

	// ErrNilHandler is returned when registering a nil handler.
	ErrNilHandler = errors.New("command handler is nil")

	// ErrEmptyCommandName is returned when a handler reports an empty name.
	ErrEmptyCommandName = errors.New("command handler name is empty")
)

// Messages used in error responses.
const (
	msgMethodNotFound = "Method not found"
	msgToolNotFound   = "Tool not found"
	msgMissingParams  = "Missing 'params' object"
	msgMissingName    = "Missing 'name' parameter"
	msgNullResult     = "Internal error: Tool returned null result"
	msgNoResponse     = "Command returned no response"
)

// createErrorResponse builds a serialized JSON-RPC error response.
func createErrorResponse(id any, code int, message string) []byte {
	responseBytes, _ := mcp.NewErrorResponse(id, code, message).Marshal() // struct marshaling of plain values cannot fail
	return responseBytes
}

// legacyError builds the legacy error envelope.
func legacyError(message string) map[string]any {
	return map[string]any{
		"status":  "error",
		"message": message,
	}
}

// createLegacyError builds a serialized legacy error envelope.
func createLegacyError(message string) []byte {
	body, _ := encodeJSON(legacyError(message)) // two string fields always encode
	return body
}
