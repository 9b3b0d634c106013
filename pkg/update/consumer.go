package update

import (
	"context"
	"io"
	"log/slog"
	"sort"

	"github.com/aretw0/mesa/pkg/registry"
	"github.com/aretw0/mesa/pkg/rpc"
	"github.com/aretw0/mesa/pkg/schema"
)

type applyFunc func(ctx context.Context, params map[string]any) error

type binding struct {
	required schema.Schema
	apply    applyFunc
}

// Consumer turns update events into Acks for one agent.
type Consumer struct {
	bindings map[string]binding
	logger   *slog.Logger
}

// NewConsumer creates a consumer with no event types.
func NewConsumer(logger *slog.Logger) *Consumer {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Consumer{
		bindings: make(map[string]binding),
		logger:   logger,
	}
}

// On binds an event type to an apply function.
// Fields listed in required must be present for the event to be recognized.
// eventId may be absent; the event is still applied and the ack echoes null.
// A non-nil error from apply is reported as a NACK with the error text as reason.
func On[E any](c *Consumer, eventType string, required schema.Schema, apply func(ctx context.Context, event E) error) {
	req := schema.Schema{"eventId": schema.Optional(schema.String())}
	for k, v := range required {
		req[k] = v
	}
	c.bindings[eventType] = binding{
		required: req,
		apply: func(ctx context.Context, params map[string]any) error {
			var e E
			if err := rpc.Decode(params, &e); err != nil {
				return errNotRecognized
			}
			return apply(ctx, e)
		},
	}
}

// Types returns the recognized event types in sorted order.
func (c *Consumer) Types() []string {
	types := make([]string, 0, len(c.bindings))
	for t := range c.bindings {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

// Handle is the registry handler for the "<agent>/message/stream" method.
// It always succeeds at the transport level.
func (c *Consumer) Handle(ctx context.Context, call *registry.Call) (any, error) {
	return c.Apply(ctx, call.Params), nil
}

// Apply classifies and applies one event payload.
func (c *Consumer) Apply(ctx context.Context, payload any) Ack {
	params, ok := payload.(map[string]any)
	if !ok {
		c.logger.Warn("update rejected", "reason", ReasonNotRecognized)
		return Rejected("", ReasonNotRecognized)
	}

	eventID, _ := params["eventId"].(string)
	eventType, _ := params["type"].(string)

	b, ok := c.bindings[eventType]
	if !ok {
		c.logger.Warn("update rejected", "type", eventType, "event_id", eventID, "reason", ReasonNotRecognized)
		return Rejected(eventID, ReasonNotRecognized)
	}
	if err := schema.Validate(b.required, params); err != nil {
		c.logger.Warn("update rejected", "type", eventType, "event_id", eventID, "reason", ReasonNotRecognized, "error", err)
		return Rejected(eventID, ReasonNotRecognized)
	}

	if err := b.apply(ctx, params); err != nil {
		c.logger.Info("update not processed", "type", eventType, "event_id", eventID, "reason", err.Error())
		return Rejected(eventID, err.Error())
	}

	c.logger.Debug("update processed", "type", eventType, "event_id", eventID)
	return Accepted(eventID)
}
