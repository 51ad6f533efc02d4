// Package config holds the server configuration value and the rules that
// decide whether a configuration may be used to start a server.
//
// A ServerConfig is built once at startup (from defaults, a YAML file and
// EDITORMCP_* environment variables) and then threaded through the server by
// value. Validate is the only authority on acceptance: values are never
// clamped, an out-of-range field is reported as an error.
package config

import (
	"errors"
	"fmt"
	"time"
)

// Network defaults and limits.
const (
	// DefaultPort is the default TCP listen port.
	DefaultPort = 13377
	// MinPort is the lowest port a server may bind.
	MinPort = 1024
	// MaxPort is the highest port a server may bind.
	MaxPort = 65535

	// DefaultReceiveBufferSize is the per-connection receive buffer (64KB).
	DefaultReceiveBufferSize = 65536
	// DefaultSendBufferSize is the per-connection send buffer (64KB).
	DefaultSendBufferSize = DefaultReceiveBufferSize
	// MinBufferSize is the smallest accepted receive or send buffer.
	MinBufferSize = 1024
	// MaxMessageSize bounds buffer sizes (1MB).
	MaxMessageSize = 1048576

	// DefaultClientTimeout disconnects clients after this much inactivity.
	DefaultClientTimeout = 30 * time.Second
	// MinClientTimeout is the shortest accepted idle timeout.
	MinClientTimeout = 5 * time.Second
	// MaxClientTimeout is the longest accepted idle timeout.
	MaxClientTimeout = 300 * time.Second

	// DefaultTickInterval is how often connections are serviced.
	DefaultTickInterval = 100 * time.Millisecond
	// MinTickInterval is the fastest accepted tick.
	MinTickInterval = 10 * time.Millisecond
	// MaxTickInterval is the slowest accepted tick.
	MaxTickInterval = time.Second

	// DefaultMaxConcurrentClients caps simultaneous connections.
	DefaultMaxConcurrentClients = 10
	// MaxConcurrentClientsLimit is the largest accepted client cap.
	MaxConcurrentClientsLimit = 50
)

// Performance defaults and limits.
const (
	// DefaultMaxActorsInSceneInfo caps the actors listed by get_scene_info.
	DefaultMaxActorsInSceneInfo = 1000
	// MinActorsInSceneInfo is the smallest accepted actor cap.
	MinActorsInSceneInfo = 100
	// MaxActorsInSceneInfo is the largest accepted actor cap.
	MaxActorsInSceneInfo = 10000

	// DefaultCommandExecutionTimeout is the watchdog budget for one command.
	DefaultCommandExecutionTimeout = 10 * time.Second
	// MinCommandExecutionTimeout is the shortest accepted command budget.
	MinCommandExecutionTimeout = time.Second
	// MaxCommandExecutionTimeout is the longest accepted command budget.
	MaxCommandExecutionTimeout = 60 * time.Second

	// MaxBatchOperations caps the items of a single batch command.
	MaxBatchOperations = 50

	// MaxLogMessageLength is the payload length shown in logs.
	MaxLogMessageLength = 500
)

// Protocol constants.
const (
	ProtocolVersion = "2025-11-13"
	ServerName      = "editormcp"
	ServerVersion   = "1.0.0"
)

// ErrInvalidConfig is wrapped by every Validate failure.
var ErrInvalidConfig = errors.New("invalid server configuration")

// ServerConfig contains every parameter needed to start and run a server.
type ServerConfig struct {
	// Port is the TCP listen port.
	Port int `yaml:"port"`

	// ClientTimeout disconnects a client after this long without data.
	ClientTimeout time.Duration `yaml:"client_timeout"`

	// ReceiveBufferSize is the size of each connection's receive buffer in bytes.
	ReceiveBufferSize int `yaml:"receive_buffer_size"`

	// SendBufferSize is the socket send buffer hint in bytes.
	SendBufferSize int `yaml:"send_buffer_size"`

	// TickInterval is how often the server services its connections.
	TickInterval time.Duration `yaml:"tick_interval"`

	// MaxConcurrentClients rejects connections beyond this count.
	MaxConcurrentClients int `yaml:"max_concurrent_clients"`

	// VerboseLogging enables debug level logs.
	VerboseLogging bool `yaml:"verbose_logging"`

	// LogFullJSONMessages disables payload truncation in logs.
	LogFullJSONMessages bool `yaml:"log_full_json_messages"`

	// LocalhostOnly binds the loopback interface and rejects remote peers.
	LocalhostOnly bool `yaml:"localhost_only"`

	// CommandExecutionTimeout is a policy value for host watchdogs.
	// The server does not preempt handlers.
	CommandExecutionTimeout time.Duration `yaml:"command_execution_timeout"`

	// MaxActorsInSceneInfo caps the actor list returned by scene queries.
	MaxActorsInSceneInfo int `yaml:"max_actors_in_scene_info"`

	// EventsBrokerURL, when set, forwards lifecycle events to an MQTT broker.
	EventsBrokerURL string `yaml:"events_broker_url"`

	// EventsTopicPrefix is the MQTT topic prefix for forwarded events.
	EventsTopicPrefix string `yaml:"events_topic_prefix"`
}

// Default returns a configuration populated with the default values.
func Default() ServerConfig {
	return ServerConfig{
		Port:                    DefaultPort,
		ClientTimeout:           DefaultClientTimeout,
		ReceiveBufferSize:       DefaultReceiveBufferSize,
		SendBufferSize:          DefaultSendBufferSize,
		TickInterval:            DefaultTickInterval,
		MaxConcurrentClients:    DefaultMaxConcurrentClients,
		CommandExecutionTimeout: DefaultCommandExecutionTimeout,
		MaxActorsInSceneInfo:    DefaultMaxActorsInSceneInfo,
		EventsTopicPrefix:       "editormcp",
	}
}

// IsValidPort reports whether port may be bound by the server.
func IsValidPort(port int) bool {
	return port >= MinPort && port <= MaxPort
}

// IsValidTimeout reports whether d is an accepted client idle timeout.
func IsValidTimeout(d time.Duration) bool {
	return d >= MinClientTimeout && d <= MaxClientTimeout
}

// Validate checks every field against its allowed range and returns the
// first violation. The returned error wraps ErrInvalidConfig.
func (c ServerConfig) Validate() error {
	if !IsValidPort(c.Port) {
		return invalid("port %d must be between %d and %d", c.Port, MinPort, MaxPort)
	}
	if !IsValidTimeout(c.ClientTimeout) {
		return invalid("client timeout %s must be between %s and %s",
			c.ClientTimeout, MinClientTimeout, MaxClientTimeout)
	}
	if c.ReceiveBufferSize < MinBufferSize || c.ReceiveBufferSize > MaxMessageSize {
		return invalid("receive buffer size %d must be between %d and %d",
			c.ReceiveBufferSize, MinBufferSize, MaxMessageSize)
	}
	if c.SendBufferSize < MinBufferSize || c.SendBufferSize > MaxMessageSize {
		return invalid("send buffer size %d must be between %d and %d",
			c.SendBufferSize, MinBufferSize, MaxMessageSize)
	}
	if c.TickInterval < MinTickInterval || c.TickInterval > MaxTickInterval {
		return invalid("tick interval %s must be between %s and %s",
			c.TickInterval, MinTickInterval, MaxTickInterval)
	}
	if c.MaxConcurrentClients < 1 || c.MaxConcurrentClients > MaxConcurrentClientsLimit {
		return invalid("max concurrent clients %d must be between 1 and %d",
			c.MaxConcurrentClients, MaxConcurrentClientsLimit)
	}
	if c.MaxActorsInSceneInfo < MinActorsInSceneInfo || c.MaxActorsInSceneInfo > MaxActorsInSceneInfo {
		return invalid("max actors in scene info %d must be between %d and %d",
			c.MaxActorsInSceneInfo, MinActorsInSceneInfo, MaxActorsInSceneInfo)
	}
	if c.CommandExecutionTimeout < MinCommandExecutionTimeout || c.CommandExecutionTimeout > MaxCommandExecutionTimeout {
		return invalid("command execution timeout %s must be between %s and %s",
			c.CommandExecutionTimeout, MinCommandExecutionTimeout, MaxCommandExecutionTimeout)
	}
	return nil
}

// ListenAddress returns the host:port the listener binds.
func (c ServerConfig) ListenAddress() string {
	host := "0.0.0.0"
	if c.LocalhostOnly {
		host = "127.0.0.1"
	}
	return fmt.Sprintf("%s:%d", host, c.Port)
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidConfig, fmt.Sprintf(format, args...))
}
