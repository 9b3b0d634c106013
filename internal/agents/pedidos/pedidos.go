// Package pedidos is the orders agent. It prices orders against the menu and
// announces creation and status changes to analytics, messaging and CRM.
package pedidos

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/aretw0/mesa/internal/agents"
	"github.com/aretw0/mesa/internal/agents/analytics"
	"github.com/aretw0/mesa/internal/agents/cardapio"
	"github.com/aretw0/mesa/internal/agents/crm"
	"github.com/aretw0/mesa/internal/agents/whatsapp"
	"github.com/aretw0/mesa/pkg/domain"
	"github.com/aretw0/mesa/pkg/registry"
	"github.com/aretw0/mesa/pkg/rpc"
	"github.com/aretw0/mesa/pkg/schema"
	"github.com/aretw0/mesa/pkg/update"
)

const Name = "pedidos"

const (
	CodeOrderNotFound     = 3001
	CodeInvalidTransition = 3002
	CodeItemUnavailable   = 3003
)

// Line is one priced entry of an order.
type Line struct {
	ItemID    string  `json:"itemId"`
	Name      string  `json:"name"`
	Quantity  int     `json:"quantity"`
	UnitPrice float64 `json:"unitPrice"`
	Notes     string  `json:"notes,omitempty"`
}

// StatusChange records one Kanban move.
type StatusChange struct {
	Status string    `json:"status"`
	At     time.Time `json:"at"`
}

// Order is a customer order.
type Order struct {
	OrderID       string         `json:"orderId"`
	CustomerID    string         `json:"customerId,omitempty"`
	CustomerPhone string         `json:"customerPhone,omitempty"`
	Items         []Line         `json:"items"`
	Total         float64        `json:"total"`
	Status        string         `json:"status"`
	History       []StatusChange `json:"history"`
	CreatedAt     time.Time      `json:"createdAt"`
	UpdatedAt     time.Time      `json:"updatedAt"`
}

// ItemCount is the number of units across all lines.
func (o Order) ItemCount() int {
	n := 0
	for _, l := range o.Items {
		n += l.Quantity
	}
	return n
}

func (o Order) clone() Order {
	c := o
	c.Items = append([]Line(nil), o.Items...)
	c.History = append([]StatusChange(nil), o.History...)
	return c
}

// Agent is the orders agent.
type Agent struct {
	mu      sync.RWMutex
	orders  map[string]Order
	deps    agents.Deps
	methods []agents.Method
}

// New creates the agent with no orders.
func New(deps agents.Deps) *Agent {
	a := &Agent{
		orders: make(map[string]Order),
		deps:   deps.WithDefaults(),
	}
	a.methods = []agents.Method{
		{Name: "pedidos/orders/create", Description: "Create an order priced against the current menu.", Params: createSchema, Handler: rpc.Typed(createSchema, a.create)},
		{Name: "pedidos/orders/get", Description: "Get an order by id.", Params: getSchema, Handler: rpc.Typed(getSchema, a.get)},
		{Name: "pedidos/orders/list", Description: "List orders, optionally by status or customer.", Params: listSchema, Handler: rpc.Typed(listSchema, a.list)},
		{Name: "pedidos/orders/updateStatus", Description: "Move an order along the Kanban board.", Params: statusSchema, Handler: rpc.Typed(statusSchema, a.updateStatus)},
	}
	return a
}

func (a *Agent) Name() string { return Name }

func (a *Agent) Description() string {
	return "Customer orders and their Kanban status; announces order events."
}

func (a *Agent) Methods() []agents.Method { return a.methods }

// Order returns a copy of an order.
func (a *Agent) Order(id string) (Order, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	o, ok := a.orders[id]
	if !ok {
		return Order{}, false
	}
	return o.clone(), true
}

var createSchema = schema.Schema{
	"items": schema.NonEmpty(schema.Object(schema.Schema{
		"itemId":   schema.ID(),
		"quantity": schema.Min(1),
		"notes":    schema.Optional(schema.String()),
	})),
	"customerId":    schema.Optional(schema.String()),
	"customerPhone": schema.Optional(schema.String()),
}

type lineParams struct {
	ItemID   string `json:"itemId"`
	Quantity int    `json:"quantity"`
	Notes    string `json:"notes"`
}

type createParams struct {
	Items         []lineParams `json:"items"`
	CustomerID    string       `json:"customerId"`
	CustomerPhone string       `json:"customerPhone"`
}

func (a *Agent) create(ctx context.Context, call *registry.Call, p createParams) (any, error) {
	lines := make([]Line, 0, len(p.Items))
	total := 0.0
	for _, lp := range p.Items {
		item, err := a.price(ctx, lp.ItemID)
		if err != nil {
			return nil, err
		}
		unit := round2(item.FinalPrice())
		lines = append(lines, Line{
			ItemID:    lp.ItemID,
			Name:      item.Name,
			Quantity:  lp.Quantity,
			UnitPrice: unit,
			Notes:     lp.Notes,
		})
		total += unit * float64(lp.Quantity)
	}

	now := a.deps.Now()
	o := Order{
		OrderID:       "order-" + a.deps.NewID(),
		CustomerID:    p.CustomerID,
		CustomerPhone: p.CustomerPhone,
		Items:         lines,
		Total:         round2(total),
		Status:        StatusReceived,
		History:       []StatusChange{{Status: StatusReceived, At: now}},
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	a.mu.Lock()
	a.orders[o.OrderID] = o
	a.deps.Publish(ctx, analytics.Name, update.NewOrderCreated(o.OrderID, o.CustomerID, o.Total, o.ItemCount()))
	a.announceStatus(ctx, o)
	a.mu.Unlock()

	a.deps.Logger.Info("order created", "agent", Name, "order", o.OrderID, "total", o.Total)
	return o.clone(), nil
}

// price asks the menu for the current entry of itemId.
func (a *Agent) price(ctx context.Context, itemID string) (cardapio.Item, error) {
	resp := a.deps.Call(ctx, cardapio.Name, "cardapio/tasks/get", map[string]any{"itemId": itemID})
	if resp.Error != nil {
		if resp.Error.Code == cardapio.CodeItemNotFound {
			return cardapio.Item{}, unavailable(itemID, "not on the menu")
		}
		return cardapio.Item{}, resp.Error
	}
	var item cardapio.Item
	if err := resp.Decode(&item); err != nil {
		return cardapio.Item{}, fmt.Errorf("failed to decode menu item %s: %w", itemID, err)
	}
	if !item.Available {
		return cardapio.Item{}, unavailable(itemID, "not available")
	}
	return item, nil
}

func unavailable(itemID, reason string) *domain.RPCError {
	return domain.NewError(CodeItemUnavailable, "item unavailable", map[string]any{"itemId": itemID, "reason": reason})
}

func round2(f float64) float64 {
	return math.Round(f*100) / 100
}

var getSchema = schema.Schema{"orderId": schema.ID()}

type getParams struct {
	OrderID string `json:"orderId"`
}

func (a *Agent) get(ctx context.Context, call *registry.Call, p getParams) (any, error) {
	o, ok := a.Order(p.OrderID)
	if !ok {
		return nil, notFound(p.OrderID)
	}
	return o, nil
}

func notFound(id string) *domain.RPCError {
	return domain.NewError(CodeOrderNotFound, "order not found", map[string]any{"orderId": id})
}

var listSchema = schema.Schema{
	"status":     schema.Optional(schema.Enum(statuses...)),
	"customerId": schema.Optional(schema.String()),
}

type listParams struct {
	Status     string `json:"status"`
	CustomerID string `json:"customerId"`
}

func (a *Agent) list(ctx context.Context, call *registry.Call, p listParams) (any, error) {
	a.mu.RLock()
	out := make([]Order, 0, len(a.orders))
	for _, o := range a.orders {
		if p.Status != "" && o.Status != p.Status {
			continue
		}
		if p.CustomerID != "" && o.CustomerID != p.CustomerID {
			continue
		}
		out = append(out, o.clone())
	}
	a.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].OrderID < out[j].OrderID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return map[string]any{"orders": out}, nil
}

var statusSchema = schema.Schema{
	"orderId": schema.ID(),
	"status":  schema.Enum(statuses...),
}

type statusParams struct {
	OrderID string `json:"orderId"`
	Status  string `json:"status"`
}

func (a *Agent) updateStatus(ctx context.Context, call *registry.Call, p statusParams) (any, error) {
	a.mu.Lock()
	o, ok := a.orders[p.OrderID]
	if !ok {
		a.mu.Unlock()
		return nil, notFound(p.OrderID)
	}
	if !CanTransition(o.Status, p.Status) {
		a.mu.Unlock()
		return nil, domain.NewError(CodeInvalidTransition, "invalid status transition", map[string]any{
			"orderId": p.OrderID,
			"from":    o.Status,
			"to":      p.Status,
		})
	}
	now := a.deps.Now()
	o = o.clone()
	o.Status = p.Status
	o.UpdatedAt = now
	o.History = append(o.History, StatusChange{Status: p.Status, At: now})
	a.orders[p.OrderID] = o
	a.announceStatus(ctx, o)
	if o.Status == StatusDelivered && o.CustomerID != "" {
		a.deps.Publish(ctx, crm.Name, update.NewOrderCompleted(o.OrderID, o.CustomerID, o.Total))
	}
	a.mu.Unlock()

	a.deps.Logger.Info("order status changed", "agent", Name, "order", o.OrderID, "status", o.Status)
	return o.clone(), nil
}

// announceStatus notifies messaging when there is someone to notify.
// Callers hold the lock so status events are queued in transition order.
func (a *Agent) announceStatus(ctx context.Context, o Order) {
	if o.CustomerPhone == "" {
		return
	}
	a.deps.Publish(ctx, whatsapp.Name, update.NewOrderStatusUpdate(o.OrderID, o.Status, o.CustomerPhone))
}

// Snapshot implements ports.Snapshotter.
func (a *Agent) Snapshot() (any, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make(map[string]Order, len(a.orders))
	for k, v := range a.orders {
		out[k] = v.clone()
	}
	return map[string]any{"orders": out}, nil
}

// Restore implements ports.Snapshotter.
func (a *Agent) Restore(data json.RawMessage) error {
	var state struct {
		Orders map[string]Order `json:"orders"`
	}
	if err := json.Unmarshal(data, &state); err != nil {
		return fmt.Errorf("pedidos: failed to restore orders: %w", err)
	}
	if state.Orders == nil {
		state.Orders = make(map[string]Order)
	}
	a.mu.Lock()
	a.orders = state.Orders
	a.mu.Unlock()
	return nil
}
