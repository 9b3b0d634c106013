// Package crm is the customer agent. It keeps customer records and folds
// delivered orders into each customer's history.
package crm

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

const Name = "crm"

const (
	CodeCustomerNotFound = 5001
	CodeLookupRequired   = 5002
	CodeCustomerExists   = 5003
)

// Customer is a customer record.
type Customer struct {
	CustomerID  string     `json:"customerId"`
	Name        string     `json:"name"`
	Phone       string     `json:"phone"`
	Email       string     `json:"email,omitempty"`
	OrderCount  int        `json:"orderCount"`
	TotalSpent  float64    `json:"totalSpent"`
	LastOrderAt *time.Time `json:"lastOrderAt,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
}

// Agent is the CRM agent.
type Agent struct {
	mu        sync.RWMutex
	customers map[string]Customer
	// completed guards against counting the same order twice on redelivery.
	completed map[string]struct{}
	deps      agents.Deps
	consumer  *update.Consumer
	methods   []agents.Method
}

// New creates the agent with no customers.
func New(deps agents.Deps) *Agent {
	a := &Agent{
		customers: make(map[string]Customer),
		completed: make(map[string]struct{}),
		deps:      deps.WithDefaults(),
	}
	a.consumer = update.NewConsumer(a.deps.Logger.With("agent", Name))
	update.On(a.consumer, update.TypeOrderCompleted, schema.Schema{
		"orderId":    schema.ID(),
		"customerId": schema.ID(),
		"total":      schema.Float(),
	}, a.applyOrderCompleted)

	a.methods = []agents.Method{
		{Name: "crm/customers/create", Description: "Register a customer.", Params: createSchema, Handler: rpc.Typed(createSchema, a.create)},
		{Name: "crm/customers/get", Description: "Find a customer by id or phone.", Params: getSchema, Handler: rpc.Typed(getSchema, a.get)},
		{Name: "crm/customers/list", Description: "List all customers.", Handler: a.list},
		{Name: "crm/message/stream", Description: "Receive order_completed events.", Handler: a.consumer.Handle},
	}
	return a
}

func (a *Agent) Name() string { return Name }

func (a *Agent) Description() string {
	return "Customer records and order history."
}

func (a *Agent) Methods() []agents.Method { return a.methods }

// Seed adds customers.
func (a *Agent) Seed(customers []Customer) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, c := range customers {
		if c.CreatedAt.IsZero() {
			c.CreatedAt = a.deps.Now()
		}
		a.customers[c.CustomerID] = c
	}
}

// Customer returns a copy of a customer record.
func (a *Agent) Customer(id string) (Customer, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	c, ok := a.customers[id]
	return c, ok
}

var createSchema = schema.Schema{
	"name":       schema.ID(),
	"phone":      schema.ID(),
	"customerId": schema.Optional(schema.String()),
	"email":      schema.Optional(schema.String()),
}

type createParams struct {
	CustomerID string `json:"customerId"`
	Name       string `json:"name"`
	Phone      string `json:"phone"`
	Email      string `json:"email"`
}

func (a *Agent) create(ctx context.Context, call *registry.Call, p createParams) (any, error) {
	if p.CustomerID == "" {
		p.CustomerID = "cust-" + a.deps.NewID()
	}
	c := Customer{
		CustomerID: p.CustomerID,
		Name:       p.Name,
		Phone:      p.Phone,
		Email:      p.Email,
		CreatedAt:  a.deps.Now(),
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if _, exists := a.customers[c.CustomerID]; exists {
		return nil, domain.NewError(CodeCustomerExists, "customer already exists", map[string]any{"customerId": c.CustomerID})
	}
	a.customers[c.CustomerID] = c
	return c, nil
}

var getSchema = schema.Schema{
	"customerId": schema.Optional(schema.String()),
	"phone":      schema.Optional(schema.String()),
}

type getParams struct {
	CustomerID string `json:"customerId"`
	Phone      string `json:"phone"`
}

func (a *Agent) get(ctx context.Context, call *registry.Call, p getParams) (any, error) {
	if p.CustomerID == "" && p.Phone == "" {
		return nil, domain.NewError(CodeLookupRequired, "customerId or phone required", nil)
	}

	a.mu.RLock()
	defer a.mu.RUnlock()
	if p.CustomerID != "" {
		if c, ok := a.customers[p.CustomerID]; ok {
			return c, nil
		}
		return nil, notFound(map[string]any{"customerId": p.CustomerID})
	}
	for _, c := range a.customers {
		if c.Phone == p.Phone {
			return c, nil
		}
	}
	return nil, notFound(map[string]any{"phone": p.Phone})
}

func notFound(data map[string]any) *domain.RPCError {
	return domain.NewError(CodeCustomerNotFound, "customer not found", data)
}

func (a *Agent) list(ctx context.Context, call *registry.Call) (any, error) {
	a.mu.RLock()
	out := make([]Customer, 0, len(a.customers))
	for _, c := range a.customers {
		out = append(out, c)
	}
	a.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].CustomerID < out[j].CustomerID })
	return map[string]any{"customers": out}, nil
}

func (a *Agent) applyOrderCompleted(ctx context.Context, e update.OrderCompleted) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	c, ok := a.customers[e.CustomerID]
	if !ok {
		return fmt.Errorf("customer not found: %s", e.CustomerID)
	}
	if _, seen := a.completed[e.OrderID]; seen {
		return nil
	}
	now := a.deps.Now()
	c.OrderCount++
	c.TotalSpent += e.Total
	c.LastOrderAt = &now
	a.customers[e.CustomerID] = c
	a.completed[e.OrderID] = struct{}{}
	return nil
}

type state struct {
	Customers map[string]Customer `json:"customers"`
	Completed []string            `json:"completedOrders"`
}

// Snapshot implements ports.Snapshotter.
func (a *Agent) Snapshot() (any, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	s := state{Customers: make(map[string]Customer, len(a.customers))}
	for k, v := range a.customers {
		s.Customers[k] = v
	}
	for id := range a.completed {
		s.Completed = append(s.Completed, id)
	}
	sort.Strings(s.Completed)
	return s, nil
}

// Restore implements ports.Snapshotter.
func (a *Agent) Restore(data json.RawMessage) error {
	var s state
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("crm: failed to restore customers: %w", err)
	}
	customers := s.Customers
	if customers == nil {
		customers = make(map[string]Customer)
	}
	completed := make(map[string]struct{}, len(s.Completed))
	for _, id := range s.Completed {
		completed[id] = struct{}{}
	}

	a.mu.Lock()
	a.customers = customers
	a.completed = completed
	a.mu.Unlock()
	return nil
}
