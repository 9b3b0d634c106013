// Package whatsapp is the messaging agent. Outbound delivery is delegated to a
// ports.Notifier; the agent keeps the message log.
package whatsapp

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/aretw0/mesa/internal/agents"
	"github.com/aretw0/mesa/pkg/adapters/notify"
	"github.com/aretw0/mesa/pkg/domain"
	"github.com/aretw0/mesa/pkg/ports"
	"github.com/aretw0/mesa/pkg/registry"
	"github.com/aretw0/mesa/pkg/rpc"
	"github.com/aretw0/mesa/pkg/schema"
	"github.com/aretw0/mesa/pkg/update"
)

const Name = "whatsapp"

// Channel is the ports.Notification channel used by this agent.
const Channel = "whatsapp"

const CodeRecipientRequired = 6001

// Message delivery states.
const (
	MessageSent   = "sent"
	MessageFailed = "failed"
)

// Message is one entry of the outbound log.
type Message struct {
	MessageID string    `json:"messageId"`
	To        string    `json:"to"`
	Body      string    `json:"body"`
	Status    string    `json:"status"`
	Error     string    `json:"error,omitempty"`
	OrderID   string    `json:"orderId,omitempty"`
	SentAt    time.Time `json:"sentAt"`
}

var statusText = map[string]string{
	"received":  "Recebemos seu pedido %s.",
	"preparing": "Seu pedido %s está sendo preparado.",
	"ready":     "Seu pedido %s está pronto!",
	"delivered": "Pedido %s entregue. Bom apetite!",
	"canceled":  "Seu pedido %s foi cancelado.",
}

// StatusMessage renders the customer-facing text for an order status.
func StatusMessage(orderID, status string) string {
	if tmpl, ok := statusText[status]; ok {
		return fmt.Sprintf(tmpl, orderID)
	}
	return fmt.Sprintf("Pedido %s: %s.", orderID, status)
}

// Agent is the messaging agent.
type Agent struct {
	mu       sync.RWMutex
	messages []Message
	notifier ports.Notifier
	deps     agents.Deps
	consumer *update.Consumer
	methods  []agents.Method
}

// New creates the agent. Without a Notifier in deps, messages are only logged.
func New(deps agents.Deps) *Agent {
	a := &Agent{deps: deps.WithDefaults()}
	a.notifier = a.deps.Notifier
	if a.notifier == nil {
		a.notifier = notify.NewLog(a.deps.Logger.With("agent", Name))
	}
	a.consumer = update.NewConsumer(a.deps.Logger.With("agent", Name))
	update.On(a.consumer, update.TypeOrderStatusUpdate, schema.Schema{
		"orderId": schema.ID(),
		"status":  schema.ID(),
	}, a.applyStatus)

	a.methods = []agents.Method{
		{Name: "whatsapp/messages/send", Description: "Send a message to a phone number.", Params: sendSchema, Handler: rpc.Typed(sendSchema, a.send)},
		{Name: "whatsapp/messages/list", Description: "List sent messages, optionally for one recipient.", Params: listSchema, Handler: rpc.Typed(listSchema, a.list)},
		{Name: "whatsapp/message/stream", Description: "Receive order_status_update events.", Handler: a.consumer.Handle},
	}
	return a
}

func (a *Agent) Name() string { return Name }

func (a *Agent) Description() string {
	return "Customer messaging; notifies order status changes."
}

func (a *Agent) Methods() []agents.Method { return a.methods }

// Messages returns a copy of the log.
func (a *Agent) Messages() []Message {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return append([]Message(nil), a.messages...)
}

// deliver hands the message to the notifier and logs the outcome.
func (a *Agent) deliver(ctx context.Context, to, body, orderID string) (Message, error) {
	m := Message{
		MessageID: "msg-" + a.deps.NewID(),
		To:        to,
		Body:      body,
		Status:    MessageSent,
		OrderID:   orderID,
		SentAt:    a.deps.Now(),
	}
	err := a.notifier.Notify(ctx, ports.Notification{Channel: Channel, To: to, Body: body})
	if err != nil {
		m.Status = MessageFailed
		m.Error = err.Error()
	}

	a.mu.Lock()
	a.messages = append(a.messages, m)
	a.mu.Unlock()
	return m, err
}

var sendSchema = schema.Schema{
	"to":      schema.Optional(schema.String()),
	"body":    schema.ID(),
	"orderId": schema.Optional(schema.String()),
}

type sendParams struct {
	To      string `json:"to"`
	Body    string `json:"body"`
	OrderID string `json:"orderId"`
}

func (a *Agent) send(ctx context.Context, call *registry.Call, p sendParams) (any, error) {
	to := strings.TrimSpace(p.To)
	if to == "" {
		return nil, domain.NewError(CodeRecipientRequired, "recipient required", nil)
	}
	m, err := a.deliver(ctx, to, p.Body, p.OrderID)
	if err != nil {
		a.deps.Logger.Warn("message not delivered", "agent", Name, "to", to, "error", err)
	}
	return m, nil
}

var listSchema = schema.Schema{"to": schema.Optional(schema.String())}

type listParams struct {
	To string `json:"to"`
}

func (a *Agent) list(ctx context.Context, call *registry.Call, p listParams) (any, error) {
	all := a.Messages()
	out := make([]Message, 0, len(all))
	for _, m := range all {
		if p.To != "" && m.To != p.To {
			continue
		}
		out = append(out, m)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].SentAt.Before(out[j].SentAt) })
	return map[string]any{"messages": out}, nil
}

func (a *Agent) applyStatus(ctx context.Context, e update.OrderStatusUpdate) error {
	if e.CustomerPhone == "" {
		return fmt.Errorf("no phone for order %s", e.OrderID)
	}
	if _, err := a.deliver(ctx, e.CustomerPhone, StatusMessage(e.OrderID, e.Status), e.OrderID); err != nil {
		return fmt.Errorf("notification failed: %w", err)
	}
	return nil
}

// Snapshot implements ports.Snapshotter.
func (a *Agent) Snapshot() (any, error) {
	return map[string]any{"messages": a.Messages()}, nil
}

// Restore implements ports.Snapshotter.
func (a *Agent) Restore(data json.RawMessage) error {
	var state struct {
		Messages []Message `json:"messages"`
	}
	if err := json.Unmarshal(data, &state); err != nil {
		return fmt.Errorf("whatsapp: failed to restore messages: %w", err)
	}
	a.mu.Lock()
	a.messages = state.Messages
	a.mu.Unlock()
	return nil
}
