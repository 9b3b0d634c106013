// Package agents holds what every hosted agent shares: the method table shape,
// the discovery handler and the collaborators handed over by the host.
package agents

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/aretw0/mesa/pkg/domain"
	"github.com/aretw0/mesa/pkg/ports"
	"github.com/aretw0/mesa/pkg/registry"
	"github.com/aretw0/mesa/pkg/schema"
	"github.com/aretw0/mesa/pkg/update"
	"github.com/google/uuid"
)

// Method is one entry of an agent's static method table.
type Method struct {
	Name        string
	Description string
	Params      schema.Schema
	Handler     registry.Handler
}

// Agent is a logical namespace of methods with private state.
type Agent interface {
	Name() string
	Description() string
	Methods() []Method
}

// Deps are the collaborators the host hands to every agent.
type Deps struct {
	Logger    *slog.Logger
	Caller    update.Caller     // synchronous requests to other agents
	Publisher *update.Publisher // update events produced by this agent
	Notifier  ports.Notifier
	Now       func() time.Time
	NewID     func() string
}

// WithDefaults fills unset collaborators.
func (d Deps) WithDefaults() Deps {
	if d.Logger == nil {
		d.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if d.Now == nil {
		d.Now = func() time.Time { return time.Now().UTC() }
	}
	if d.NewID == nil {
		d.NewID = uuid.NewString
	}
	return d
}

// Publish hands an event to the agent's publisher, if any.
func (d Deps) Publish(ctx context.Context, target string, event update.Event) {
	if d.Publisher == nil {
		return
	}
	d.Publisher.Publish(ctx, update.StreamTarget(target), event)
}

// Call issues a synchronous request to another hosted agent.
func (d Deps) Call(ctx context.Context, agent, method string, params any) domain.Response {
	req := domain.NewRequest(d.NewID(), method, params)
	if d.Caller == nil {
		return domain.NewErrorResponse(req.ID, domain.ErrMethodNotFound(method))
	}
	return d.Caller.Call(ctx, agent, req)
}

// Profile builds the capability card of an agent instance. It is rebuilt on every call.
func Profile(a Agent, instanceID string) domain.Profile {
	methods := a.Methods()
	caps := make([]domain.Capability, 0, len(methods)+1)
	for _, m := range methods {
		caps = append(caps, domain.Capability{Method: m.Name, Description: m.Description, Params: m.Params})
	}
	caps = append(caps, domain.Capability{
		Method:      domain.DiscoveryMethod,
		Description: "Return this agent's profile and capabilities.",
	})
	if instanceID == "" {
		instanceID = a.Name()
	}
	return domain.Profile{
		AgentID:      instanceID,
		Name:         a.Name(),
		Description:  a.Description(),
		Capabilities: caps,
	}
}

// Register installs the method table and the discovery handler into reg.
func Register(reg *registry.Registry, a Agent) {
	for _, m := range a.Methods() {
		reg.Register(m.Name, m.Handler)
	}
	reg.Register(domain.DiscoveryMethod, func(ctx context.Context, call *registry.Call) (any, error) {
		return Profile(a, call.InstanceID), nil
	})
}
