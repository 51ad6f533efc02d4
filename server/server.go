// Package server implements the tick-driven command server: the lifecycle
// (Start, Stop, Tick), the command registry and the dispatcher that turns
// inbound JSON payloads into legacy or JSON-RPC responses.
//
// All connection I/O happens inside Tick. The host (or the default
// TickerScheduler) decides when Tick runs; ticks never overlap.
package server

import (
	"fmt"
	"log/slog"
	"net"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/localrivet/editormcp/config"
	"github.com/localrivet/editormcp/events"
	"github.com/localrivet/editormcp/transport/tcp"
)

// Server is a TCP command server for a single host process.
type Server struct {
	cfg       config.ServerConfig
	logger    *slog.Logger
	registry  *Registry
	describer ToolDescriber
	scheduler Scheduler
	bus       *events.Bus

	mu         sync.Mutex
	listener   *tcp.Listener
	table      *tcp.Table
	cancelTick func()
	generation uint64

	running atomic.Bool
	clients atomic.Int32
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the server's logger.
//
// Example:
//
//	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
//	srv, err := server.NewServer(cfg, server.WithLogger(logger))
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithScheduler replaces the default TickerScheduler.
func WithScheduler(scheduler Scheduler) Option {
	return func(s *Server) {
		s.scheduler = scheduler
	}
}

// WithEvents publishes lifecycle events on bus.
func WithEvents(bus *events.Bus) Option {
	return func(s *Server) {
		s.bus = bus
	}
}

// WithToolDescriber sets the source of tools/list descriptions and schemas.
func WithToolDescriber(describer ToolDescriber) Option {
	return func(s *Server) {
		s.describer = describer
	}
}

// NewServer creates a stopped server. cfg is validated and then fixed for
// the server's lifetime.
func NewServer(cfg config.ServerConfig, options ...Option) (*Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	s := &Server{
		cfg:       cfg,
		scheduler: TickerScheduler{},
	}
	for _, option := range options {
		option(s)
	}

	if s.logger == nil {
		level := slog.LevelInfo
		if cfg.VerboseLogging {
			level = slog.LevelDebug
		}
		s.logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	}
	s.registry = NewRegistry(s.logger)
	return s, nil
}

// Config returns the configuration the server was created with. Hosts read
// CommandExecutionTimeout from here for their own watchdogs.
func (s *Server) Config() config.ServerConfig { return s.cfg }

// Logger returns the server's logger.
func (s *Server) Logger() *slog.Logger { return s.logger }

// Events returns the event bus, or nil when events are disabled.
func (s *Server) Events() *events.Bus { return s.bus }

// IsRunning reports whether the server is started.
func (s *Server) IsRunning() bool { return s.running.Load() }

// ConnectionCount returns the number of live client connections.
func (s *Server) ConnectionCount() int { return int(s.clients.Load()) }

// Addr returns the bound listen address, or nil when stopped.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Start binds the listen socket and schedules Tick every TickInterval.
// Starting a running server is a no-op. A bind failure leaves the server
// stopped and returns an error wrapping ErrBindFailed.
func (s *Server) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running.Load() {
		s.logger.Warn("server already running", "address", s.cfg.ListenAddress())
		return nil
	}

	listener := tcp.NewListener(s.cfg.ListenAddress(), 2*s.cfg.MaxConcurrentClients)
	listener.SetLogger(s.logger)
	if err := listener.Start(); err != nil {
		listener.Stop()
		s.logger.Error("failed to start server", "address", s.cfg.ListenAddress(), "error", err)
		return fmt.Errorf("%w: %w", ErrBindFailed, err)
	}

	s.listener = listener
	s.table = tcp.NewTable(tcp.TableConfig{
		MaxClients:        s.cfg.MaxConcurrentClients,
		ReceiveBufferSize: s.cfg.ReceiveBufferSize,
		SendBufferSize:    s.cfg.SendBufferSize,
		LocalhostOnly:     s.cfg.LocalhostOnly,
	}, s.logger, s.tableHooks())
	s.clients.Store(0)
	s.running.Store(true)
	s.generation++
	s.cancelTick = s.scheduler.Schedule(s.cfg.TickInterval, s.scheduledTick(s.generation))

	s.logger.Info("server started",
		"address", listener.Addr().String(),
		"tick_interval", s.cfg.TickInterval,
		"max_clients", s.cfg.MaxConcurrentClients,
		"commands", s.registry.Len())

	publish(s, events.TopicServerStarted, events.ServerStartedEvent{
		ServerName:      config.ServerName,
		ProtocolVersion: config.ProtocolVersion,
		Address:         listener.Addr().String(),
		StartedAt:       time.Now(),
		ToolCount:       s.registry.Len(),
	})
	return nil
}

// Stop evicts every connection, closes the listener and cancels the tick.
// It is safe to call at any time and more than once. Handlers must not call
// Stop.
func (s *Server) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancelTick != nil {
		s.cancelTick()
		s.cancelTick = nil
	}

	evicted := 0
	if s.table != nil {
		evicted = s.table.Len()
		s.table.EvictAll(tcp.ReasonShutdown)
		s.table = nil
	}
	if s.listener != nil {
		if err := s.listener.Stop(); err != nil {
			s.logger.Debug("listener close failed", "error", err)
		}
		s.listener = nil
	}

	if !s.running.Swap(false) {
		return
	}
	s.logger.Info("server stopped", "evicted", evicted)
	publish(s, events.TopicServerStopped, events.ServerStoppedEvent{
		ServerName: config.ServerName,
		StoppedAt:  time.Now(),
		Evicted:    evicted,
	})
}

// Tick services the server once: it admits newly accepted sockets, reads
// and dispatches pending data on every connection, then ages connections
// by delta and evicts the idle ones. It returns false when the server is
// not running.
func (s *Server) Tick(delta time.Duration) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tick(delta)
}

// scheduledTick binds a scheduled tick to the run that scheduled it. A
// cancelled scheduler goroutine may still deliver one late call; after a
// Stop and Start that call belongs to an older run and is refused.
func (s *Server) scheduledTick(generation uint64) TickFunc {
	return func(delta time.Duration) bool {
		s.mu.Lock()
		defer s.mu.Unlock()

		if generation != s.generation {
			return false
		}
		return s.tick(delta)
	}
}

func (s *Server) tick(delta time.Duration) bool {
	if !s.running.Load() {
		return false
	}

	s.listener.StartAccepting()
	for _, conn := range s.listener.Drain() {
		s.table.Admit(conn)
	}

	for _, c := range s.table.Connections() {
		if c.Closed() {
			continue
		}
		data := s.table.Read(c)
		if len(data) == 0 {
			continue
		}
		s.handleData(c, data)
	}

	s.table.Sweep(delta, s.cfg.ClientTimeout)
	return true
}

// RegisterExternalCommandHandler registers h, replacing any handler with the
// same name. It returns false when h is nil or unnamed.
func (s *Server) RegisterExternalCommandHandler(h CommandHandler) bool {
	replaced, err := s.registry.Register(h)
	if err != nil {
		s.logger.Warn("command handler not registered", "error", err)
		return false
	}

	name := h.CommandName()
	s.logger.Info("registered command handler", "command", name, "replaced", replaced)
	publish(s, events.TopicToolRegistered, events.ToolRegisteredEvent{
		ToolName:     name,
		Replaced:     replaced,
		RegisteredAt: time.Now(),
	})
	return true
}

// UnregisterExternalCommandHandler removes the handler for name and reports
// whether one was registered.
func (s *Server) UnregisterExternalCommandHandler(name string) bool {
	if !s.registry.Unregister(name) {
		return false
	}
	s.logger.Info("unregistered command handler", "command", name)
	return true
}

// Handlers returns the registered command names, sorted.
func (s *Server) Handlers() []string { return s.registry.Names() }

func (s *Server) tableHooks() tcp.Hooks {
	return tcp.Hooks{
		OnAccepted: func(c *tcp.ClientConnection, clients int) {
			s.clients.Store(int32(clients))
			publish(s, events.TopicClientConnected, events.ClientConnectedEvent{
				ConnectionID: c.ID(),
				RemoteAddr:   c.RemoteAddr(),
				ConnectedAt:  time.Now(),
				Clients:      clients,
			})
		},
		OnRejected: func(remote string, reason tcp.RejectReason) {
			publish(s, events.TopicConnectionRejected, events.ConnectionRejectedEvent{
				RemoteAddr: remote,
				Reason:     string(reason),
				RejectedAt: time.Now(),
			})
		},
		OnEvicted: func(c *tcp.ClientConnection, reason tcp.EvictReason, clients int) {
			s.clients.Store(int32(clients))
			publish(s, events.TopicClientDisconnected, events.ClientDisconnectedEvent{
				ConnectionID:   c.ID(),
				RemoteAddr:     c.RemoteAddr(),
				Reason:         string(reason),
				DisconnectedAt: time.Now(),
				Clients:        clients,
			})
		},
	}
}

func publish[T any](s *Server, topic string, evt T) {
	if err := events.Publish(s.bus, topic, evt); err != nil {
		s.logger.Debug("event not published", "topic", topic, "error", err)
	}
}
