// Package promocao is the promotions agent. Activation changes are pushed to the
// menu as promotion_update events.
package promocao

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/aretw0/mesa/internal/agents"
	"github.com/aretw0/mesa/internal/agents/cardapio"
	"github.com/aretw0/mesa/pkg/domain"
	"github.com/aretw0/mesa/pkg/registry"
	"github.com/aretw0/mesa/pkg/rpc"
	"github.com/aretw0/mesa/pkg/schema"
	"github.com/aretw0/mesa/pkg/update"
)

const Name = "promocao"

const (
	CodePromotionNotFound = 4001
	CodeAlreadyActive     = 4002
	CodeNotActive         = 4003
	CodePromotionExists   = 4004
)

// Promotion is a discount campaign. Without ItemID it applies to the whole catalog.
type Promotion struct {
	PromoID         string    `json:"promoId"`
	Title           string    `json:"title"`
	Description     string    `json:"description,omitempty"`
	ItemID          string    `json:"itemId,omitempty"`
	DiscountPercent float64   `json:"discountPercent"`
	Active          bool      `json:"active"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

// Event builds the promotion_update announcing the current state of p.
func (p Promotion) Event() *update.PromotionUpdate {
	e := update.NewPromotionUpdate(p.PromoID, p.ItemID, p.Active)
	e.Title = p.Title
	e.DiscountPercent = p.DiscountPercent
	return e
}

// Agent is the promotions agent.
type Agent struct {
	mu         sync.RWMutex
	promotions map[string]Promotion
	deps       agents.Deps
	methods    []agents.Method
}

// New creates the agent with no promotions.
func New(deps agents.Deps) *Agent {
	a := &Agent{
		promotions: make(map[string]Promotion),
		deps:       deps.WithDefaults(),
	}
	a.methods = []agents.Method{
		{Name: "promocao/promotions/create", Description: "Create an inactive promotion.", Params: createSchema, Handler: rpc.Typed(createSchema, a.create)},
		{Name: "promocao/promotions/get", Description: "Get a promotion by id.", Params: idSchema, Handler: rpc.Typed(idSchema, a.get)},
		{Name: "promocao/promotions/list", Description: "List promotions, optionally only active ones.", Params: listSchema, Handler: rpc.Typed(listSchema, a.list)},
		{Name: "promocao/promotions/activate", Description: "Activate a promotion and publish it to the menu.", Params: idSchema, Handler: rpc.Typed(idSchema, a.activate)},
		{Name: "promocao/promotions/deactivate", Description: "Deactivate a promotion and withdraw it from the menu.", Params: idSchema, Handler: rpc.Typed(idSchema, a.deactivate)},
	}
	return a
}

func (a *Agent) Name() string { return Name }

func (a *Agent) Description() string {
	return "Promotion campaigns, general or per item; publishes activation changes to the menu."
}

func (a *Agent) Methods() []agents.Method { return a.methods }

// Seed adds promotions without emitting events.
func (a *Agent) Seed(promos []Promotion) {
	a.mu.Lock()
	defer a.mu.Unlock()
	now := a.deps.Now()
	for _, p := range promos {
		if p.CreatedAt.IsZero() {
			p.CreatedAt = now
		}
		if p.UpdatedAt.IsZero() {
			p.UpdatedAt = p.CreatedAt
		}
		a.promotions[p.PromoID] = p
	}
}

// Promotion returns a copy of a promotion.
func (a *Agent) Promotion(id string) (Promotion, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	p, ok := a.promotions[id]
	return p, ok
}

func notFound(id string) *domain.RPCError {
	return domain.NewError(CodePromotionNotFound, "promotion not found", map[string]any{"promoId": id})
}

var createSchema = schema.Schema{
	"title":           schema.ID(),
	"discountPercent": schema.Float(),
	"promoId":         schema.Optional(schema.String()),
	"itemId":          schema.Optional(schema.String()),
	"description":     schema.Optional(schema.String()),
}

type createParams struct {
	PromoID         string  `json:"promoId"`
	Title           string  `json:"title"`
	Description     string  `json:"description"`
	ItemID          string  `json:"itemId"`
	DiscountPercent float64 `json:"discountPercent"`
}

func (a *Agent) create(ctx context.Context, call *registry.Call, p createParams) (any, error) {
	if p.DiscountPercent <= 0 || p.DiscountPercent > 100 {
		return nil, domain.ErrInvalidParams(map[string]any{
			"violations": []schema.Violation{{Field: "discountPercent", Reason: "must be in (0, 100]"}},
		})
	}
	if p.PromoID == "" {
		p.PromoID = "promo-" + a.deps.NewID()
	}
	now := a.deps.Now()
	promo := Promotion{
		PromoID:         p.PromoID,
		Title:           p.Title,
		Description:     p.Description,
		ItemID:          p.ItemID,
		DiscountPercent: p.DiscountPercent,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if _, exists := a.promotions[p.PromoID]; exists {
		return nil, domain.NewError(CodePromotionExists, "promotion already exists", map[string]any{"promoId": p.PromoID})
	}
	a.promotions[p.PromoID] = promo
	return promo, nil
}

var idSchema = schema.Schema{"promoId": schema.ID()}

type idParams struct {
	PromoID string `json:"promoId"`
}

func (a *Agent) get(ctx context.Context, call *registry.Call, p idParams) (any, error) {
	promo, ok := a.Promotion(p.PromoID)
	if !ok {
		return nil, notFound(p.PromoID)
	}
	return promo, nil
}

var listSchema = schema.Schema{"activeOnly": schema.Optional(schema.Bool())}

type listParams struct {
	ActiveOnly bool `json:"activeOnly"`
}

func (a *Agent) list(ctx context.Context, call *registry.Call, p listParams) (any, error) {
	a.mu.RLock()
	out := make([]Promotion, 0, len(a.promotions))
	for _, promo := range a.promotions {
		if p.ActiveOnly && !promo.Active {
			continue
		}
		out = append(out, promo)
	}
	a.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].PromoID < out[j].PromoID })
	return map[string]any{"promotions": out}, nil
}

func (a *Agent) activate(ctx context.Context, call *registry.Call, p idParams) (any, error) {
	return a.toggle(ctx, p.PromoID, true)
}

func (a *Agent) deactivate(ctx context.Context, call *registry.Call, p idParams) (any, error) {
	return a.toggle(ctx, p.PromoID, false)
}

func (a *Agent) toggle(ctx context.Context, id string, active bool) (any, error) {
	a.mu.Lock()
	promo, ok := a.promotions[id]
	switch {
	case !ok:
		a.mu.Unlock()
		return nil, notFound(id)
	case active && promo.Active:
		a.mu.Unlock()
		return nil, domain.NewError(CodeAlreadyActive, "promotion already active", map[string]any{"promoId": id})
	case !active && !promo.Active:
		a.mu.Unlock()
		return nil, domain.NewError(CodeNotActive, "promotion not active", map[string]any{"promoId": id})
	}
	promo.Active = active
	promo.UpdatedAt = a.deps.Now()
	a.promotions[id] = promo
	a.deps.Publish(ctx, cardapio.Name, promo.Event())
	a.mu.Unlock()

	a.deps.Logger.Info("promotion toggled", "agent", Name, "promo", id, "active", active)
	return promo, nil
}

// Snapshot implements ports.Snapshotter.
func (a *Agent) Snapshot() (any, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make(map[string]Promotion, len(a.promotions))
	for k, v := range a.promotions {
		out[k] = v
	}
	return map[string]any{"promotions": out}, nil
}

// Restore implements ports.Snapshotter.
func (a *Agent) Restore(data json.RawMessage) error {
	var state struct {
		Promotions map[string]Promotion `json:"promotions"`
	}
	if err := json.Unmarshal(data, &state); err != nil {
		return fmt.Errorf("promocao: failed to restore promotions: %w", err)
	}
	if state.Promotions == nil {
		state.Promotions = make(map[string]Promotion)
	}
	a.mu.Lock()
	a.promotions = state.Promotions
	a.mu.Unlock()
	return nil
}
