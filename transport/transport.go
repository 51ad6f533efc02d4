// Package transport holds the stream framing rules shared by the TCP server
// and client: how inbound bytes split into JSON payloads and how outbound
// JSON is wrapped as an HTTP response.
package transport

import (
	"log/slog"
	"os"
)

// Transport is a network endpoint the server can start and stop.
type Transport interface {
	// Start begins listening.
	Start() error

	// Stop releases the endpoint. Calling Stop twice is safe.
	Stop() error

	// SetLogger sets the structured logger
	SetLogger(logger *slog.Logger)

	// GetLogger returns the current logger
	GetLogger() *slog.Logger
}

// BaseTransport provides common transport functionality
type BaseTransport struct {
	logger *slog.Logger
}

// SetLogger sets the structured logger
func (t *BaseTransport) SetLogger(logger *slog.Logger) {
	t.logger = logger
}

// GetLogger returns the current logger, creating a default one if none is set
func (t *BaseTransport) GetLogger() *slog.Logger {
	if t.logger == nil {
		t.logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		}))
	}
	return t.logger
}
