// Package cardapio is the menu agent. It owns the catalog and applies the stock and
// promotion updates pushed by the inventory and promotions agents.
package cardapio

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/aretw0/mesa/internal/agents"
	"github.com/aretw0/mesa/pkg/domain"
	"github.com/aretw0/mesa/pkg/registry"
	"github.com/aretw0/mesa/pkg/rpc"
	"github.com/aretw0/mesa/pkg/schema"
	"github.com/aretw0/mesa/pkg/update"
)

// Name is the agent type.
const Name = "cardapio"

// CodeItemNotFound is returned when an itemId is not in the catalog.
const CodeItemNotFound = 1001

// Promotion is a promotion as seen by the menu.
type Promotion struct {
	PromoID         string  `json:"promoId"`
	Title           string  `json:"title,omitempty"`
	DiscountPercent float64 `json:"discountPercent,omitempty"`
	Active          bool    `json:"active"`
}

// Item is a catalog entry.
type Item struct {
	ItemID      string     `json:"itemId"`
	Name        string     `json:"name"`
	Description string     `json:"description,omitempty"`
	Category    string     `json:"category,omitempty"`
	Price       float64    `json:"price"`
	Available   bool       `json:"available"`
	Quantity    *int       `json:"quantity,omitempty"`
	Promotion   *Promotion `json:"promotion,omitempty"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

// FinalPrice applies the item-scoped promotion, if active.
func (i Item) FinalPrice() float64 {
	if i.Promotion == nil || !i.Promotion.Active || i.Promotion.DiscountPercent <= 0 {
		return i.Price
	}
	return i.Price * (1 - i.Promotion.DiscountPercent/100)
}

func (i Item) clone() Item {
	c := i
	if i.Quantity != nil {
		q := *i.Quantity
		c.Quantity = &q
	}
	if i.Promotion != nil {
		p := *i.Promotion
		c.Promotion = &p
	}
	return c
}

// Catalog is the aggregate owned by the agent.
type Catalog struct {
	Items             map[string]Item      `json:"items"`
	GeneralPromotions map[string]Promotion `json:"generalPromotions"`
}

func newCatalog() Catalog {
	return Catalog{
		Items:             make(map[string]Item),
		GeneralPromotions: make(map[string]Promotion),
	}
}

// Agent is the menu agent.
type Agent struct {
	mu       sync.RWMutex
	catalog  Catalog
	deps     agents.Deps
	consumer *update.Consumer
	methods  []agents.Method
}

// New creates the agent with an empty catalog.
func New(deps agents.Deps) *Agent {
	a := &Agent{
		catalog: newCatalog(),
		deps:    deps.WithDefaults(),
	}
	a.consumer = update.NewConsumer(a.deps.Logger.With("agent", Name))
	update.On(a.consumer, update.TypeStockUpdate, schema.Schema{
		"itemId":   schema.ID(),
		"quantity": schema.Int(),
	}, a.applyStock)
	update.On(a.consumer, update.TypePromotionUpdate, schema.Schema{
		"promoId": schema.ID(),
		"active":  schema.Bool(),
	}, a.applyPromotion)

	a.methods = []agents.Method{
		{Name: "cardapio/tasks/get", Description: "Get a catalog item by id.", Params: getSchema, Handler: rpc.Typed(getSchema, a.get)},
		{Name: "cardapio/tasks/list", Description: "List catalog items, optionally by category or availability.", Params: listSchema, Handler: rpc.Typed(listSchema, a.list)},
		{Name: "cardapio/tasks/upsert", Description: "Create or replace a catalog item.", Params: upsertSchema, Handler: rpc.Typed(upsertSchema, a.upsert)},
		{Name: "cardapio/tasks/setAvailability", Description: "Mark an item as available or unavailable.", Params: availabilitySchema, Handler: rpc.Typed(availabilitySchema, a.setAvailability)},
		{Name: "cardapio/promotions/list", Description: "List the general (catalog-wide) promotions.", Handler: a.listPromotions},
		{Name: "cardapio/message/stream", Description: "Receive stock_update and promotion_update events.", Handler: a.consumer.Handle},
	}
	return a
}

func (a *Agent) Name() string { return Name }

func (a *Agent) Description() string {
	return "Menu catalog: items, prices, availability and active promotions."
}

func (a *Agent) Methods() []agents.Method { return a.methods }

// Seed replaces the catalog items.
func (a *Agent) Seed(items []Item) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, it := range items {
		if it.UpdatedAt.IsZero() {
			it.UpdatedAt = a.deps.Now()
		}
		a.catalog.Items[it.ItemID] = it.clone()
	}
}

// Item returns a copy of an item.
func (a *Agent) Item(id string) (Item, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	it, ok := a.catalog.Items[id]
	return it.clone(), ok
}

// GeneralPromotions returns a copy of the catalog-wide promotions.
func (a *Agent) GeneralPromotions() map[string]Promotion {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make(map[string]Promotion, len(a.catalog.GeneralPromotions))
	for k, v := range a.catalog.GeneralPromotions {
		out[k] = v
	}
	return out
}

func itemNotFound(id string) *domain.RPCError {
	return domain.NewError(CodeItemNotFound, "item not found", map[string]any{"itemId": id})
}

var getSchema = schema.Schema{"itemId": schema.ID()}

type getParams struct {
	ItemID string `json:"itemId"`
}

func (a *Agent) get(ctx context.Context, call *registry.Call, p getParams) (any, error) {
	it, ok := a.Item(p.ItemID)
	if !ok {
		return nil, itemNotFound(p.ItemID)
	}
	return it, nil
}

var listSchema = schema.Schema{
	"category":      schema.Optional(schema.String()),
	"availableOnly": schema.Optional(schema.Bool()),
}

type listParams struct {
	Category      string `json:"category"`
	AvailableOnly bool   `json:"availableOnly"`
}

func (a *Agent) list(ctx context.Context, call *registry.Call, p listParams) (any, error) {
	a.mu.RLock()
	items := make([]Item, 0, len(a.catalog.Items))
	for _, it := range a.catalog.Items {
		if p.Category != "" && it.Category != p.Category {
			continue
		}
		if p.AvailableOnly && !it.Available {
			continue
		}
		items = append(items, it.clone())
	}
	a.mu.RUnlock()

	sort.Slice(items, func(i, j int) bool { return items[i].ItemID < items[j].ItemID })
	return map[string]any{"items": items}, nil
}

var upsertSchema = schema.Schema{
	"itemId":      schema.ID(),
	"name":        schema.ID(),
	"price":       schema.Float(),
	"category":    schema.Optional(schema.String()),
	"description": schema.Optional(schema.String()),
	"available":   schema.Optional(schema.Bool()),
}

type upsertParams struct {
	ItemID      string  `json:"itemId"`
	Name        string  `json:"name"`
	Price       float64 `json:"price"`
	Category    string  `json:"category"`
	Description string  `json:"description"`
	Available   *bool   `json:"available"`
}

func (a *Agent) upsert(ctx context.Context, call *registry.Call, p upsertParams) (any, error) {
	if p.Price < 0 {
		return nil, domain.ErrInvalidParams(map[string]any{
			"violations": []schema.Violation{{Field: "price", Reason: "must be >= 0"}},
		})
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	next := Item{
		ItemID:      p.ItemID,
		Name:        p.Name,
		Description: p.Description,
		Category:    p.Category,
		Price:       p.Price,
		Available:   true,
		UpdatedAt:   a.deps.Now(),
	}
	if prev, ok := a.catalog.Items[p.ItemID]; ok {
		// stock and promotion state belong to other agents
		next.Available = prev.Available
		next.Quantity = prev.Quantity
		next.Promotion = prev.Promotion
	}
	if p.Available != nil {
		next.Available = *p.Available
	}
	a.catalog.Items[p.ItemID] = next
	return next.clone(), nil
}

var availabilitySchema = schema.Schema{
	"itemId":    schema.ID(),
	"available": schema.Bool(),
}

type availabilityParams struct {
	ItemID    string `json:"itemId"`
	Available bool   `json:"available"`
}

func (a *Agent) setAvailability(ctx context.Context, call *registry.Call, p availabilityParams) (any, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	it, ok := a.catalog.Items[p.ItemID]
	if !ok {
		return nil, itemNotFound(p.ItemID)
	}
	it.Available = p.Available
	it.UpdatedAt = a.deps.Now()
	a.catalog.Items[p.ItemID] = it
	return it.clone(), nil
}

func (a *Agent) listPromotions(ctx context.Context, call *registry.Call) (any, error) {
	promos := a.GeneralPromotions()
	out := make([]Promotion, 0, len(promos))
	for _, p := range promos {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PromoID < out[j].PromoID })
	return map[string]any{"general": out}, nil
}

// applyStock records the new level reported by inventory. Last write wins.
func (a *Agent) applyStock(ctx context.Context, e update.StockUpdate) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	it, ok := a.catalog.Items[e.ItemID]
	if !ok {
		return fmt.Errorf("item not found: %s", e.ItemID)
	}
	q := e.Quantity
	it.Quantity = &q
	it.Available = q > 0
	it.UpdatedAt = a.deps.Now()
	a.catalog.Items[e.ItemID] = it
	return nil
}

// applyPromotion sets the promotion on one item when itemId is present,
// otherwise inserts or removes it from the general promotions.
func (a *Agent) applyPromotion(ctx context.Context, e update.PromotionUpdate) error {
	promo := Promotion{
		PromoID:         e.PromoID,
		Title:           e.Title,
		DiscountPercent: e.DiscountPercent,
		Active:          e.Active,
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if e.ItemID == "" {
		if e.Active {
			a.catalog.GeneralPromotions[e.PromoID] = promo
		} else {
			delete(a.catalog.GeneralPromotions, e.PromoID)
		}
		return nil
	}

	it, ok := a.catalog.Items[e.ItemID]
	if !ok {
		return fmt.Errorf("item not found: %s", e.ItemID)
	}
	switch {
	case e.Active:
		it.Promotion = &promo
	case it.Promotion != nil && it.Promotion.PromoID == e.PromoID:
		it.Promotion = nil
	}
	it.UpdatedAt = a.deps.Now()
	a.catalog.Items[e.ItemID] = it
	return nil
}

// Snapshot implements ports.Snapshotter.
func (a *Agent) Snapshot() (any, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	c := newCatalog()
	for k, v := range a.catalog.Items {
		c.Items[k] = v.clone()
	}
	for k, v := range a.catalog.GeneralPromotions {
		c.GeneralPromotions[k] = v
	}
	return c, nil
}

// Restore implements ports.Snapshotter.
func (a *Agent) Restore(data json.RawMessage) error {
	c := newCatalog()
	if err := json.Unmarshal(data, &c); err != nil {
		return fmt.Errorf("cardapio: failed to restore catalog: %w", err)
	}
	if c.Items == nil {
		c.Items = make(map[string]Item)
	}
	if c.GeneralPromotions == nil {
		c.GeneralPromotions = make(map[string]Promotion)
	}

	a.mu.Lock()
	a.catalog = c
	a.mu.Unlock()
	return nil
}
