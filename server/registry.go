package server

import (
	"log/slog"
	"sort"
	"sync"
)

// Registry maps command names to handlers. It is safe for concurrent use so
// hosts may register from any goroutine while the server ticks.
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]CommandHandler
	logger   *slog.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		handlers: make(map[string]CommandHandler),
		logger:   logger,
	}
}

// Register stores h under h.CommandName(). An existing handler with the same
// name is replaced with a warning; the return value reports a replacement.
func (r *Registry) Register(h CommandHandler) (replaced bool, err error) {
	if h == nil {
		return false, ErrNilHandler
	}
	name := h.CommandName()
	if name == "" {
		return false, ErrEmptyCommandName
	}

	r.mu.Lock()
	_, replaced = r.handlers[name]
	r.handlers[name] = h
	r.mu.Unlock()

	if replaced {
		r.logger.Warn("command handler replaced", "command", name)
	} else {
		r.logger.Debug("command handler registered", "command", name)
	}
	return replaced, nil
}

// Unregister removes the handler for name and reports whether one existed.
func (r *Registry) Unregister(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.handlers[name]; !ok {
		return false
	}
	delete(r.handlers, name)
	return true
}

// Get returns the handler for name, or nil.
func (r *Registry) Get(name string) CommandHandler {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.handlers[name]
}

// Names returns the registered command names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	names := make([]string, 0, len(r.handlers))
	for name := range r.handlers {
		names = append(names, name)
	}
	r.mu.RUnlock()

	sort.Strings(names)
	return names
}

// Len returns the number of registered handlers.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.handlers)
}
