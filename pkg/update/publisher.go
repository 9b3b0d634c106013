package update

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/aretw0/mesa/pkg/domain"
	"github.com/google/uuid"
)

// Caller delivers a request envelope to a hosted agent.
type Caller interface {
	Call(ctx context.Context, agent string, req domain.Request) domain.Response
}

// Target names the consumer of an event.
type Target struct {
	Agent  string
	Method string // defaults to "<Agent>/message/stream"
}

// StreamTarget returns the default target for an agent.
func StreamTarget(agent string) Target {
	return Target{Agent: agent, Method: agent + "/message/stream"}
}

func (t Target) method() string {
	if t.Method != "" {
		return t.Method
	}
	return t.Agent + "/message/stream"
}

const (
	DefaultTimeout = 5 * time.Second
	DefaultBackoff = 100 * time.Millisecond
	maxBackoff     = 5 * time.Second
)

// Option configures a Publisher.
type Option func(*Publisher)

// WithTimeout bounds every delivery attempt.
func WithTimeout(d time.Duration) Option {
	return func(p *Publisher) {
		if d > 0 {
			p.timeout = d
		}
	}
}

// WithRetries enables up to n extra attempts after a transport failure,
// sleeping backoff, 2*backoff, 4*backoff... between them.
func WithRetries(n int, backoff time.Duration) Option {
	return func(p *Publisher) {
		if n > 0 {
			p.maxRetries = n
		}
		if backoff > 0 {
			p.backoff = backoff
		}
	}
}

// WithLogger sets the logger for delivery outcomes.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Publisher) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithHooks registers the OnDelivery callback.
func WithHooks(hooks domain.LifecycleHooks) Option {
	return func(p *Publisher) {
		p.onDelivery = hooks.OnDelivery
	}
}

// WithIDGenerator replaces uuid.NewString for event ids.
func WithIDGenerator(fn func() string) Option {
	return func(p *Publisher) {
		if fn != nil {
			p.newID = fn
		}
	}
}

// Publisher sends update events on behalf of one producer agent.
type Publisher struct {
	caller     Caller
	source     string
	timeout    time.Duration
	maxRetries int
	backoff    time.Duration
	logger     *slog.Logger
	onDelivery func(context.Context, *domain.DeliveryEvent)
	newID      func() string
	wg         sync.WaitGroup

	mu    sync.Mutex
	lanes map[Target]*lane
}

// lane is the FIFO of pending deliveries to one target.
// At most one worker drains it, so a target sees events in publish order.
type lane struct {
	pending []delivery
	running bool
}

type delivery struct {
	ctx    context.Context
	target Target
	event  Event
}

// NewPublisher creates a publisher for the producer named source.
func NewPublisher(caller Caller, source string, opts ...Option) *Publisher {
	p := &Publisher{
		caller:  caller,
		source:  source,
		timeout: DefaultTimeout,
		backoff: DefaultBackoff,
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
		newID:   uuid.NewString,
		lanes:   make(map[Target]*lane),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Publish assigns a fresh eventId and queues the event for background delivery.
// It returns the eventId immediately and never reports delivery failures to the caller.
// Events for the same target are delivered one at a time, in the order they were published.
func (p *Publisher) Publish(ctx context.Context, target Target, event Event) string {
	event.setID(p.newID())
	target.Method = target.method()

	p.wg.Add(1)
	p.mu.Lock()
	l, ok := p.lanes[target]
	if !ok {
		l = &lane{}
		p.lanes[target] = l
	}
	l.pending = append(l.pending, delivery{ctx: context.WithoutCancel(ctx), target: target, event: event})
	start := !l.running
	l.running = true
	p.mu.Unlock()

	if start {
		go p.drain(l)
	}
	return event.ID()
}

// drain delivers the lane's events until it is empty, then lets the worker exit.
func (p *Publisher) drain(l *lane) {
	for {
		p.mu.Lock()
		if len(l.pending) == 0 {
			l.running = false
			p.mu.Unlock()
			return
		}
		d := l.pending[0]
		l.pending[0] = delivery{}
		l.pending = l.pending[1:]
		p.mu.Unlock()

		_, _ = p.deliver(d.ctx, d.target, d.event)
		p.wg.Done()
	}
}

// Send delivers the event synchronously and returns the consumer's Ack.
// An eventId is assigned when the event has none.
func (p *Publisher) Send(ctx context.Context, target Target, event Event) (Ack, error) {
	if event.ID() == "" {
		event.setID(p.newID())
	}
	return p.deliver(ctx, target, event)
}

// Wait blocks until every queued delivery has finished.
func (p *Publisher) Wait() {
	p.wg.Wait()
}

func (p *Publisher) deliver(ctx context.Context, target Target, event Event) (Ack, error) {
	req := domain.NewRequest(event.ID(), target.method(), event)

	var (
		ack      Ack
		err      error
		attempts int
	)
	for attempts = 1; ; attempts++ {
		ack, err = p.attempt(ctx, target, req)
		if err == nil || errors.Is(err, ErrMalformedAck) || attempts > p.maxRetries {
			break
		}
		wait := p.backoffFor(attempts)
		p.logger.Debug("update delivery retry", "source", p.source, "target", target.Agent, "event_id", event.ID(), "attempt", attempts, "wait", wait)
		time.Sleep(wait)
	}

	switch {
	case err != nil:
		p.logger.Warn("update delivery failed",
			"source", p.source,
			"target", target.Agent,
			"type", event.EventType(),
			"event_id", event.ID(),
			"attempts", attempts,
			"error", err,
		)
	case !ack.Processed:
		p.logger.Info("update not processed", "source", p.source, "target", target.Agent, "event_id", event.ID(), "reason", ack.Error)
	default:
		p.logger.Debug("update delivered", "source", p.source, "target", target.Agent, "event_id", event.ID())
	}

	if p.onDelivery != nil {
		p.onDelivery(ctx, &domain.DeliveryEvent{
			EventBase: domain.EventBase{Timestamp: time.Now(), Type: domain.EventDelivery},
			EventID:   event.ID(),
			EventType: event.EventType(),
			Target:    target.Agent,
			Attempts:  attempts,
			Processed: err == nil && ack.Processed,
			Err:       err,
		})
	}
	return ack, err
}

func (p *Publisher) attempt(ctx context.Context, target Target, req domain.Request) (Ack, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	done := make(chan domain.Response, 1)
	go func() {
		done <- p.caller.Call(ctx, target.Agent, req)
	}()

	var resp domain.Response
	select {
	case resp = <-done:
	case <-ctx.Done():
		return Ack{}, fmt.Errorf("%w after %s", ErrTimeout, p.timeout)
	}

	if resp.Error != nil {
		return Ack{}, resp.Error
	}
	var ack Ack
	if err := resp.Decode(&ack); err != nil || ack.Status != StatusReceived {
		return Ack{}, fmt.Errorf("%w from %s", ErrMalformedAck, target.method())
	}
	return ack, nil
}

func (p *Publisher) backoffFor(attempt int) time.Duration {
	d := p.backoff << (attempt - 1)
	if d <= 0 || d > maxBackoff {
		return maxBackoff
	}
	return d
}
