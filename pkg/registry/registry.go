package registry

import (
	"context"
	"io"
	"log/slog"
	"sort"
	"sync"
)

// Call carries everything a handler receives for one dispatch.
type Call struct {
	Method     string
	Params     any // decoded JSON; an empty object when the request omitted params
	InstanceID string
	Credential string
	RequestID  any
}

// Handler implements one method.
// Returning a *domain.RPCError reports a structured failure to the caller.
type Handler func(ctx context.Context, call *Call) (any, error)

// Option configures a Registry.
type Option func(*Registry)

// WithLogger sets the logger used to report re-registrations.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Registry) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// Registry maps method names to handlers.
// Safe for concurrent use.
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]Handler
	logger   *slog.Logger
}

// NewRegistry creates a new empty registry.
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		handlers: make(map[string]Handler),
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register adds a handler under name.
// If the name is taken the previous handler is overwritten and a warning is logged.
// It panics on an empty name or a nil handler.
func (r *Registry) Register(name string, h Handler) {
	if name == "" {
		panic("registry: empty method name")
	}
	if h == nil {
		panic("registry: nil handler for " + name)
	}

	r.mu.Lock()
	_, exists := r.handlers[name]
	r.handlers[name] = h
	r.mu.Unlock()

	if exists {
		r.logger.Warn("method re-registered", "method", name)
	}
}

// Lookup returns the handler registered under name.
func (r *Registry) Lookup(name string) (Handler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handlers[name]
	return h, ok
}

// Clear removes every handler.
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers = make(map[string]Handler)
}

// Methods returns the registered names in sorted order.
func (r *Registry) Methods() []string {
	r.mu.RLock()
	names := make([]string, 0, len(r.handlers))
	for name := range r.handlers {
		names = append(names, name)
	}
	r.mu.RUnlock()

	sort.Strings(names)
	return names
}

// Len returns the number of registered methods.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.handlers)
}
