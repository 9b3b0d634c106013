// Package estoque is the inventory agent. Every quantity change is pushed to the
// menu as a stock_update event.
package estoque

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

const Name = "estoque"

const (
	CodeItemNotFound      = 2001
	CodeInsufficientStock = 2002
	CodeItemExists        = 2003
)

// StockItem is an inventory record. ItemID matches the catalog item id.
type StockItem struct {
	ItemID    string    `json:"itemId"`
	Name      string    `json:"name,omitempty"`
	Quantity  int       `json:"quantity"`
	Unit      string    `json:"unit,omitempty"`
	Threshold int       `json:"threshold"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Low reports whether the quantity is at or below the alert threshold.
func (s StockItem) Low() bool {
	return s.Quantity <= s.Threshold
}

type stockView struct {
	StockItem
	Low bool `json:"low"`
}

func view(s StockItem) stockView { return stockView{StockItem: s, Low: s.Low()} }

// Agent is the inventory agent.
type Agent struct {
	mu      sync.RWMutex
	items   map[string]StockItem
	deps    agents.Deps
	methods []agents.Method
}

// New creates the agent with no stock.
func New(deps agents.Deps) *Agent {
	a := &Agent{
		items: make(map[string]StockItem),
		deps:  deps.WithDefaults(),
	}
	a.methods = []agents.Method{
		{Name: "estoque/items/get", Description: "Get the stock record of an item.", Params: getSchema, Handler: rpc.Typed(getSchema, a.get)},
		{Name: "estoque/items/list", Description: "List stock records, optionally only those at or below threshold.", Params: listSchema, Handler: rpc.Typed(listSchema, a.list)},
		{Name: "estoque/items/register", Description: "Start tracking stock for an item.", Params: registerSchema, Handler: rpc.Typed(registerSchema, a.register)},
		{Name: "estoque/items/adjust", Description: "Add or remove units. Stock never goes below zero.", Params: adjustSchema, Handler: rpc.Typed(adjustSchema, a.adjust)},
		{Name: "estoque/items/set", Description: "Set the absolute quantity of an item.", Params: setSchema, Handler: rpc.Typed(setSchema, a.set)},
	}
	return a
}

func (a *Agent) Name() string { return Name }

func (a *Agent) Description() string {
	return "Inventory levels per item; pushes stock changes to the menu."
}

func (a *Agent) Methods() []agents.Method { return a.methods }

// Seed adds stock records without emitting events.
func (a *Agent) Seed(items []StockItem) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, it := range items {
		if it.UpdatedAt.IsZero() {
			it.UpdatedAt = a.deps.Now()
		}
		a.items[it.ItemID] = it
	}
}

// Item returns a copy of a stock record.
func (a *Agent) Item(id string) (StockItem, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	it, ok := a.items[id]
	return it, ok
}

func notFound(id string) *domain.RPCError {
	return domain.NewError(CodeItemNotFound, "item not found", map[string]any{"itemId": id})
}

var getSchema = schema.Schema{"itemId": schema.ID()}

type getParams struct {
	ItemID string `json:"itemId"`
}

func (a *Agent) get(ctx context.Context, call *registry.Call, p getParams) (any, error) {
	it, ok := a.Item(p.ItemID)
	if !ok {
		return nil, notFound(p.ItemID)
	}
	return view(it), nil
}

var listSchema = schema.Schema{"lowOnly": schema.Optional(schema.Bool())}

type listParams struct {
	LowOnly bool `json:"lowOnly"`
}

func (a *Agent) list(ctx context.Context, call *registry.Call, p listParams) (any, error) {
	a.mu.RLock()
	out := make([]stockView, 0, len(a.items))
	for _, it := range a.items {
		if p.LowOnly && !it.Low() {
			continue
		}
		out = append(out, view(it))
	}
	a.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ItemID < out[j].ItemID })
	return map[string]any{"items": out}, nil
}

var registerSchema = schema.Schema{
	"itemId":    schema.ID(),
	"quantity":  schema.Min(0),
	"name":      schema.Optional(schema.String()),
	"unit":      schema.Optional(schema.String()),
	"threshold": schema.Optional(schema.Min(0)),
}

type registerParams struct {
	ItemID    string `json:"itemId"`
	Quantity  int    `json:"quantity"`
	Name      string `json:"name"`
	Unit      string `json:"unit"`
	Threshold int    `json:"threshold"`
}

func (a *Agent) register(ctx context.Context, call *registry.Call, p registerParams) (any, error) {
	a.mu.Lock()
	if _, exists := a.items[p.ItemID]; exists {
		a.mu.Unlock()
		return nil, domain.NewError(CodeItemExists, "item already registered", map[string]any{"itemId": p.ItemID})
	}
	it := StockItem{
		ItemID:    p.ItemID,
		Name:      p.Name,
		Quantity:  p.Quantity,
		Unit:      p.Unit,
		Threshold: p.Threshold,
		UpdatedAt: a.deps.Now(),
	}
	a.items[p.ItemID] = it
	a.notify(ctx, it)
	a.mu.Unlock()

	return view(it), nil
}

var adjustSchema = schema.Schema{
	"itemId": schema.ID(),
	"delta":  schema.Int(),
	"reason": schema.Optional(schema.String()),
}

type adjustParams struct {
	ItemID string `json:"itemId"`
	Delta  int    `json:"delta"`
	Reason string `json:"reason"`
}

func (a *Agent) adjust(ctx context.Context, call *registry.Call, p adjustParams) (any, error) {
	a.mu.Lock()
	it, ok := a.items[p.ItemID]
	if !ok {
		a.mu.Unlock()
		return nil, notFound(p.ItemID)
	}
	if it.Quantity+p.Delta < 0 {
		a.mu.Unlock()
		return nil, domain.NewError(CodeInsufficientStock, "insufficient stock", map[string]any{
			"itemId":    p.ItemID,
			"available": it.Quantity,
			"requested": -p.Delta,
		})
	}
	it.Quantity += p.Delta
	it.UpdatedAt = a.deps.Now()
	a.items[p.ItemID] = it
	if p.Delta != 0 {
		a.notify(ctx, it)
	}
	a.mu.Unlock()

	a.deps.Logger.Debug("stock adjusted", "agent", Name, "item", p.ItemID, "delta", p.Delta, "reason", p.Reason)
	return view(it), nil
}

var setSchema = schema.Schema{
	"itemId":   schema.ID(),
	"quantity": schema.Min(0),
}

type setParams struct {
	ItemID   string `json:"itemId"`
	Quantity int    `json:"quantity"`
}

func (a *Agent) set(ctx context.Context, call *registry.Call, p setParams) (any, error) {
	a.mu.Lock()
	it, ok := a.items[p.ItemID]
	if !ok {
		a.mu.Unlock()
		return nil, notFound(p.ItemID)
	}
	changed := it.Quantity != p.Quantity
	it.Quantity = p.Quantity
	it.UpdatedAt = a.deps.Now()
	a.items[p.ItemID] = it
	if changed {
		a.notify(ctx, it)
	}
	a.mu.Unlock()

	return view(it), nil
}

// notify is called with the lock held so events are queued in mutation order.
// Publish only enqueues; delivery never blocks the mutation.
func (a *Agent) notify(ctx context.Context, it StockItem) {
	if it.Low() {
		a.deps.Logger.Info("stock low", "agent", Name, "item", it.ItemID, "quantity", it.Quantity, "threshold", it.Threshold)
	}
	a.deps.Publish(ctx, cardapio.Name, update.NewStockUpdate(it.ItemID, it.Quantity))
}

// Snapshot implements ports.Snapshotter.
func (a *Agent) Snapshot() (any, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make(map[string]StockItem, len(a.items))
	for k, v := range a.items {
		out[k] = v
	}
	return map[string]any{"items": out}, nil
}

// Restore implements ports.Snapshotter.
func (a *Agent) Restore(data json.RawMessage) error {
	var state struct {
		Items map[string]StockItem `json:"items"`
	}
	if err := json.Unmarshal(data, &state); err != nil {
		return fmt.Errorf("estoque: failed to restore items: %w", err)
	}
	if state.Items == nil {
		state.Items = make(map[string]StockItem)
	}
	a.mu.Lock()
	a.items = state.Items
	a.mu.Unlock()
	return nil
}
