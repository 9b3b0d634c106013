// Package analytics aggregates sales figures from order_created events.
package analytics

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/aretw0/mesa/internal/agents"
	"github.com/aretw0/mesa/pkg/registry"
	"github.com/aretw0/mesa/pkg/schema"
	"github.com/aretw0/mesa/pkg/update"
)

const Name = "analytics"

// OrderStat is what analytics keeps of one order.
type OrderStat struct {
	OrderID    string    `json:"orderId"`
	CustomerID string    `json:"customerId,omitempty"`
	Total      float64   `json:"total"`
	ItemCount  int       `json:"itemCount"`
	ReceivedAt time.Time `json:"receivedAt"`
}

// Summary is the result of analytics/metrics/summary.
type Summary struct {
	Orders        int        `json:"orders"`
	Revenue       float64    `json:"revenue"`
	ItemsSold     int        `json:"itemsSold"`
	AverageTicket float64    `json:"averageTicket"`
	Customers     int        `json:"customers"`
	Since         *time.Time `json:"since,omitempty"`
}

// Agent is the analytics agent.
type Agent struct {
	mu       sync.RWMutex
	orders   map[string]OrderStat // keyed by orderId; a redelivered event overwrites
	deps     agents.Deps
	consumer *update.Consumer
	methods  []agents.Method
}

// New creates the agent with no data.
func New(deps agents.Deps) *Agent {
	a := &Agent{
		orders: make(map[string]OrderStat),
		deps:   deps.WithDefaults(),
	}
	a.consumer = update.NewConsumer(a.deps.Logger.With("agent", Name))
	update.On(a.consumer, update.TypeOrderCreated, schema.Schema{
		"orderId":   schema.ID(),
		"total":     schema.Float(),
		"itemCount": schema.Min(0),
	}, a.applyOrderCreated)

	a.methods = []agents.Method{
		{Name: "analytics/metrics/summary", Description: "Order count, revenue, items sold and average ticket.", Handler: a.summary},
		{Name: "analytics/metrics/reset", Description: "Discard all collected data.", Handler: a.reset},
		{Name: "analytics/message/stream", Description: "Receive order_created events.", Handler: a.consumer.Handle},
	}
	return a
}

func (a *Agent) Name() string { return Name }

func (a *Agent) Description() string {
	return "Sales figures built from order events."
}

func (a *Agent) Methods() []agents.Method { return a.methods }

// Summary computes the current figures.
func (a *Agent) Summary() Summary {
	a.mu.RLock()
	defer a.mu.RUnlock()

	var s Summary
	customers := make(map[string]struct{})
	for _, o := range a.orders {
		s.Orders++
		s.Revenue += o.Total
		s.ItemsSold += o.ItemCount
		if o.CustomerID != "" {
			customers[o.CustomerID] = struct{}{}
		}
		if s.Since == nil || o.ReceivedAt.Before(*s.Since) {
			at := o.ReceivedAt
			s.Since = &at
		}
	}
	s.Customers = len(customers)
	s.Revenue = round2(s.Revenue)
	if s.Orders > 0 {
		s.AverageTicket = round2(s.Revenue / float64(s.Orders))
	}
	return s
}

func round2(f float64) float64 {
	return math.Round(f*100) / 100
}

func (a *Agent) summary(ctx context.Context, call *registry.Call) (any, error) {
	return a.Summary(), nil
}

func (a *Agent) reset(ctx context.Context, call *registry.Call) (any, error) {
	a.mu.Lock()
	n := len(a.orders)
	a.orders = make(map[string]OrderStat)
	a.mu.Unlock()

	a.deps.Logger.Info("analytics reset", "agent", Name, "discarded", n)
	return map[string]any{"discarded": n}, nil
}

func (a *Agent) applyOrderCreated(ctx context.Context, e update.OrderCreated) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.orders[e.OrderID] = OrderStat{
		OrderID:    e.OrderID,
		CustomerID: e.CustomerID,
		Total:      e.Total,
		ItemCount:  e.ItemCount,
		ReceivedAt: a.deps.Now(),
	}
	return nil
}

// Snapshot implements ports.Snapshotter.
func (a *Agent) Snapshot() (any, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make(map[string]OrderStat, len(a.orders))
	for k, v := range a.orders {
		out[k] = v
	}
	return map[string]any{"orders": out}, nil
}

// Restore implements ports.Snapshotter.
func (a *Agent) Restore(data json.RawMessage) error {
	var state struct {
		Orders map[string]OrderStat `json:"orders"`
	}
	if err := json.Unmarshal(data, &state); err != nil {
		return fmt.Errorf("analytics: failed to restore orders: %w", err)
	}
	if state.Orders == nil {
		state.Orders = make(map[string]OrderStat)
	}
	a.mu.Lock()
	a.orders = state.Orders
	a.mu.Unlock()
	return nil
}
