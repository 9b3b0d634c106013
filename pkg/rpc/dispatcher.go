package rpc

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/aretw0/mesa/pkg/auth"
	"github.com/aretw0/mesa/pkg/domain"
	"github.com/aretw0/mesa/pkg/registry"
)

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithLogger sets the logger for request/response tracing.
func WithLogger(logger *slog.Logger) Option {
	return func(d *Dispatcher) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// WithHooks registers lifecycle callbacks.
func WithHooks(hooks domain.LifecycleHooks) Option {
	return func(d *Dispatcher) {
		d.hooks = hooks
	}
}

// WithAgent labels logs and events with the agent type served by the dispatcher.
func WithAgent(name string) Option {
	return func(d *Dispatcher) {
		d.agent = name
	}
}

// Dispatcher routes validated requests to registered handlers.
type Dispatcher struct {
	registry *registry.Registry
	authn    auth.Authenticator
	logger   *slog.Logger
	hooks    domain.LifecycleHooks
	agent    string
}

// New creates a dispatcher. A nil authenticator rejects every credential.
func New(reg *registry.Registry, authn auth.Authenticator, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		registry: reg,
		authn:    authn,
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Registry returns the registry the dispatcher routes to.
func (d *Dispatcher) Registry() *registry.Registry {
	return d.registry
}

// Dispatch processes one raw request. It never returns a nil or partial envelope.
func (d *Dispatcher) Dispatch(ctx context.Context, raw any, instanceID, credential string) domain.Response {
	start := time.Now()
	event := &domain.RequestEvent{
		EventBase:  domain.EventBase{Timestamp: start, Type: domain.EventRequest},
		Agent:      d.agent,
		InstanceID: instanceID,
	}

	resp := d.dispatch(ctx, raw, instanceID, credential, event)

	event.Type = domain.EventResponse
	event.Timestamp = time.Now()
	event.Duration = time.Since(start)
	if resp.Error != nil {
		event.Code = resp.Error.Code
		d.logger.Warn("rpc error",
			"agent", d.agent,
			"instance", instanceID,
			"method", event.Method,
			"code", resp.Error.Code,
			"message", resp.Error.Message,
		)
	} else {
		d.logger.Debug("rpc response", "agent", d.agent, "instance", instanceID, "method", event.Method, "duration", event.Duration)
	}
	if d.hooks.OnResponse != nil {
		d.hooks.OnResponse(ctx, event)
	}
	return resp
}

func (d *Dispatcher) dispatch(ctx context.Context, raw any, instanceID, credential string, event *domain.RequestEvent) domain.Response {
	// 1. Authenticate
	if d.authn == nil || !d.authn.Valid(credential) {
		return domain.NewErrorResponse(nil, domain.ErrUnauthorized())
	}

	// 2. Parse & validate
	req, perr := ParseEnvelope(raw)
	if perr != nil {
		return domain.NewErrorResponse(nil, perr)
	}
	event.Method = req.Method

	d.logger.Debug("rpc request", "agent", d.agent, "instance", instanceID, "method", req.Method, "id", req.ID)
	if d.hooks.OnRequest != nil {
		d.hooks.OnRequest(ctx, event)
	}

	// 3. Route
	h, ok := d.registry.Lookup(req.Method)
	if !ok {
		return domain.NewErrorResponse(req.ID, domain.ErrMethodNotFound(req.Method))
	}

	// 4. Invoke
	params := req.Params
	if params == nil {
		params = map[string]any{}
	}
	call := &registry.Call{
		Method:     req.Method,
		Params:     params,
		InstanceID: instanceID,
		Credential: credential,
		RequestID:  req.ID,
	}

	result, err := invoke(context.WithoutCancel(ctx), h, call)
	if err != nil {
		return domain.NewErrorResponse(req.ID, toRPCError(err))
	}

	// 5. Wrap
	return domain.NewResult(req.ID, result)
}

func invoke(ctx context.Context, h registry.Handler, call *registry.Call) (result any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	return h(ctx, call)
}

func toRPCError(err error) *domain.RPCError {
	var rpcErr *domain.RPCError
	if errors.As(err, &rpcErr) && rpcErr != nil {
		return rpcErr
	}
	return domain.ErrInternal(map[string]any{"error": err.Error()})
}
