package events

import "time"

// Topics published by the server.
const (
	// Server lifecycle events
	TopicServerStarted = "server.started"
	TopicServerStopped = "server.stopped"

	// Connection events
	TopicClientConnected    = "client.connected"
	TopicClientDisconnected = "client.disconnected"
	TopicConnectionRejected = "connection.rejected"

	// Registration events
	TopicToolRegistered = "tool.registered"

	// Operation events
	TopicToolExecuted  = "tool.executed"
	TopicRequestFailed = "request.failed"
)

// AllTopics lists every topic the server publishes.
var AllTopics = []string{
	TopicServerStarted,
	TopicServerStopped,
	TopicClientConnected,
	TopicClientDisconnected,
	TopicConnectionRejected,
	TopicToolRegistered,
	TopicToolExecuted,
	TopicRequestFailed,
}

// ServerStartedEvent is emitted once the listener is bound and ticking.
type ServerStartedEvent struct {
	ServerName      string    `json:"serverName"`
	ProtocolVersion string    `json:"protocolVersion"`
	Address         string    `json:"address"`
	StartedAt       time.Time `json:"startedAt"`
	ToolCount       int       `json:"toolCount"`
}

// ServerStoppedEvent is emitted when a running server stops.
type ServerStoppedEvent struct {
	ServerName string    `json:"serverName"`
	StoppedAt  time.Time `json:"stoppedAt"`
	Evicted    int       `json:"evicted"`
}

// ClientConnectedEvent is emitted when a socket joins the connection table.
type ClientConnectedEvent struct {
	ConnectionID string    `json:"connectionId"`
	RemoteAddr   string    `json:"remoteAddr"`
	ConnectedAt  time.Time `json:"connectedAt"`
	Clients      int       `json:"clients"`
}

// ClientDisconnectedEvent is emitted when a connection is evicted.
type ClientDisconnectedEvent struct {
	ConnectionID   string    `json:"connectionId"`
	RemoteAddr     string    `json:"remoteAddr"`
	Reason         string    `json:"reason"`
	DisconnectedAt time.Time `json:"disconnectedAt"`
	Clients        int       `json:"clients"`
}

// ConnectionRejectedEvent is emitted when an accepted socket is refused.
type ConnectionRejectedEvent struct {
	RemoteAddr string    `json:"remoteAddr"`
	Reason     string    `json:"reason"`
	RejectedAt time.Time `json:"rejectedAt"`
}

// ToolRegisteredEvent is emitted when a command handler is registered.
type ToolRegisteredEvent struct {
	ToolName     string    `json:"toolName"`
	Replaced     bool      `json:"replaced"`
	RegisteredAt time.Time `json:"registeredAt"`
}

// ToolExecutedEvent is emitted after a handler returns.
type ToolExecutedEvent struct {
	Method       string        `json:"method"` // "tools/call" or "legacy"
	ToolName     string        `json:"toolName"`
	ConnectionID string        `json:"connectionId"`
	Duration     time.Duration `json:"duration"`
}

// RequestFailedEvent is emitted when a request is answered with an error.
type RequestFailedEvent struct {
	Method      string `json:"method"`
	RequestJSON string `json:"requestJSON"`
	Code        int    `json:"code,omitempty"`
	Error       string `json:"error"`
}
