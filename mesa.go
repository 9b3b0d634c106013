package mesa

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"time"

	"github.com/aretw0/mesa/internal/agents"
	"github.com/aretw0/mesa/internal/agents/analytics"
	"github.com/aretw0/mesa/internal/agents/cardapio"
	"github.com/aretw0/mesa/internal/agents/crm"
	"github.com/aretw0/mesa/internal/agents/estoque"
	"github.com/aretw0/mesa/internal/agents/pedidos"
	"github.com/aretw0/mesa/internal/agents/promocao"
	"github.com/aretw0/mesa/internal/agents/whatsapp"
	"github.com/aretw0/mesa/pkg/auth"
	"github.com/aretw0/mesa/pkg/domain"
	"github.com/aretw0/mesa/pkg/ports"
	"github.com/aretw0/mesa/pkg/registry"
	"github.com/aretw0/mesa/pkg/rpc"
	"github.com/aretw0/mesa/pkg/update"
	"github.com/google/uuid"
)

// InternalInstance is the instance id seen by handlers for agent-to-agent calls.
const InternalInstance = "internal"

type hosted struct {
	agent      agents.Agent
	dispatcher *rpc.Dispatcher
	publisher  *update.Publisher
}

// Host wires every agent to its own registry and dispatcher and routes requests by agent type.
type Host struct {
	logger      *slog.Logger
	hooks       domain.LifecycleHooks
	public      auth.Authenticator
	internalKey string
	authn       auth.Authenticator
	store       ports.SnapshotStore
	locker      ports.DistributedLocker
	notifier    ports.Notifier
	now         func() time.Time
	timeout     time.Duration
	retries     int
	backoff     time.Duration

	agents map[string]*hosted
	pubs   map[string]*update.Publisher
	names  []string

	menu       *cardapio.Agent
	stock      *estoque.Agent
	promotions *promocao.Agent
	orders     *pedidos.Agent
	customers  *crm.Agent
	stats      *analytics.Agent
	messages   *whatsapp.Agent
}

var _ update.Caller = (*Host)(nil)

// New builds a host with all agents registered.
// Without WithAPIKeys or WithAuthenticator every external request is unauthorized.
func New(opts ...Option) *Host {
	h := &Host{
		agents: make(map[string]*hosted),
		pubs:   make(map[string]*update.Publisher),
	}
	for _, opt := range opts {
		opt(h)
	}
	if h.logger == nil {
		h.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if h.internalKey == "" {
		h.internalKey = uuid.NewString()
	}
	h.authn = auth.Any(h.public, auth.NewStaticKeys(h.internalKey))

	deps := func(name string) agents.Deps {
		logger := h.logger.With("agent", name)
		h.pubs[name] = h.newPublisher(name, logger)
		return agents.Deps{
			Logger:    logger,
			Caller:    h,
			Publisher: h.pubs[name],
			Notifier:  h.notifier,
			Now:       h.now,
		}
	}

	h.menu = cardapio.New(deps(cardapio.Name))
	h.stock = estoque.New(deps(estoque.Name))
	h.promotions = promocao.New(deps(promocao.Name))
	h.orders = pedidos.New(deps(pedidos.Name))
	h.customers = crm.New(deps(crm.Name))
	h.stats = analytics.New(deps(analytics.Name))
	h.messages = whatsapp.New(deps(whatsapp.Name))

	for _, a := range []agents.Agent{h.menu, h.stock, h.promotions, h.orders, h.customers, h.stats, h.messages} {
		h.mount(a)
	}
	sort.Strings(h.names)
	return h
}

func (h *Host) newPublisher(name string, logger *slog.Logger) *update.Publisher {
	return update.NewPublisher(h, name,
		update.WithLogger(logger),
		update.WithHooks(h.hooks),
		update.WithTimeout(h.timeout),
		update.WithRetries(h.retries, h.backoff),
	)
}

// mount registers a in a fresh registry.
func (h *Host) mount(a agents.Agent) {
	logger := h.logger.With("agent", a.Name())
	reg := registry.NewRegistry(registry.WithLogger(logger))
	agents.Register(reg, a)

	h.agents[a.Name()] = &hosted{
		agent: a,
		dispatcher: rpc.New(reg, h.authn,
			rpc.WithLogger(logger),
			rpc.WithHooks(h.hooks),
			rpc.WithAgent(a.Name()),
		),
		publisher: h.pubs[a.Name()],
	}
	h.names = append(h.names, a.Name())
}

// Dispatch routes a raw request to the dispatcher of agentType.
// An unknown agent type is reported as method not found, after authentication and parsing.
func (h *Host) Dispatch(ctx context.Context, agentType, instanceID string, raw any, credential string) domain.Response {
	if a, ok := h.agents[agentType]; ok {
		return a.dispatcher.Dispatch(ctx, raw, instanceID, credential)
	}

	if !h.authn.Valid(credential) {
		return domain.NewErrorResponse(nil, domain.ErrUnauthorized())
	}
	req, perr := rpc.ParseEnvelope(raw)
	if perr != nil {
		return domain.NewErrorResponse(nil, perr)
	}
	h.logger.Warn("unknown agent", "agent", agentType, "method", req.Method)
	return domain.NewErrorResponse(req.ID, domain.ErrMethodNotFound(req.Method))
}

// Call implements update.Caller: it dispatches req to agent with the internal key.
func (h *Host) Call(ctx context.Context, agent string, req domain.Request) domain.Response {
	return h.Dispatch(ctx, agent, InternalInstance, req, h.internalKey)
}

// Agents returns the hosted agent types in sorted order.
func (h *Host) Agents() []string {
	return append([]string(nil), h.names...)
}

// Methods returns the methods registered for an agent type.
func (h *Host) Methods(agentType string) ([]string, error) {
	a, ok := h.agents[agentType]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrUnknownAgent, agentType)
	}
	return a.dispatcher.Registry().Methods(), nil
}

// Profile returns the capability card of an agent type.
func (h *Host) Profile(agentType, instanceID string) (domain.Profile, error) {
	a, ok := h.agents[agentType]
	if !ok {
		return domain.Profile{}, fmt.Errorf("%w: %s", domain.ErrUnknownAgent, agentType)
	}
	return agents.Profile(a.agent, instanceID), nil
}

// Profiles returns the capability card of every agent, in agent order.
func (h *Host) Profiles(instanceID string) []domain.Profile {
	out := make([]domain.Profile, 0, len(h.names))
	for _, name := range h.names {
		out = append(out, agents.Profile(h.agents[name].agent, instanceID))
	}
	return out
}

// Wait blocks until every in-flight update delivery has finished.
func (h *Host) Wait() {
	for _, name := range h.names {
		if p := h.agents[name].publisher; p != nil {
			p.Wait()
		}
	}
}

// Close drains pending deliveries and persists agent state when a store is configured.
func (h *Host) Close(ctx context.Context) error {
	h.Wait()
	return h.Persist(ctx)
}
