package update_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aretw0/mesa/pkg/auth"
	"github.com/aretw0/mesa/pkg/domain"
	"github.com/aretw0/mesa/pkg/registry"
	"github.com/aretw0/mesa/pkg/rpc"
	"github.com/aretw0/mesa/pkg/schema"
	"github.com/aretw0/mesa/pkg/update"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const key = "internal"

// shelf is a tiny consumer used to exercise the handshake.
type shelf struct {
	mu    sync.Mutex
	stock map[string]int
}

func newShelf() (*shelf, *rpc.Dispatcher) {
	s := &shelf{stock: map[string]int{"item-1": 5}}
	c := update.NewConsumer(nil)
	update.On(c, update.TypeStockUpdate, schema.Schema{"itemId": schema.ID(), "quantity": schema.Int()},
		func(ctx context.Context, e update.StockUpdate) error {
			s.mu.Lock()
			defer s.mu.Unlock()
			if _, ok := s.stock[e.ItemID]; !ok {
				return errors.New("item not found: " + e.ItemID)
			}
			s.stock[e.ItemID] = e.Quantity
			return nil
		})

	reg := registry.NewRegistry()
	reg.Register("shelf/message/stream", c.Handle)
	return s, rpc.New(reg, auth.NewStaticKeys(key), rpc.WithAgent("shelf"))
}

type callerFunc func(ctx context.Context, agent string, req domain.Request) domain.Response

func (f callerFunc) Call(ctx context.Context, agent string, req domain.Request) domain.Response {
	return f(ctx, agent, req)
}

func via(d *rpc.Dispatcher) update.Caller {
	return callerFunc(func(ctx context.Context, agent string, req domain.Request) domain.Response {
		return d.Dispatch(ctx, req, agent, key)
	})
}

func TestSend_Processed(t *testing.T) {
	s, d := newShelf()
	p := update.NewPublisher(via(d), "stock", update.WithIDGenerator(func() string { return "evt-1" }))

	ack, err := p.Send(context.Background(), update.StreamTarget("shelf"), update.NewStockUpdate("item-1", 9))

	require.NoError(t, err)
	assert.Equal(t, update.StatusReceived, ack.Status)
	assert.True(t, ack.Processed)
	assert.Equal(t, "evt-1", ack.EventID())
	assert.Equal(t, 9, s.stock["item-1"])
}

func TestSend_RedeliveryReapplies(t *testing.T) {
	s, d := newShelf()
	p := update.NewPublisher(via(d), "stock")

	event := update.NewStockUpdate("item-1", 3)
	first, err := p.Send(context.Background(), update.StreamTarget("shelf"), event)
	require.NoError(t, err)

	s.mu.Lock()
	s.stock["item-1"] = 100
	s.mu.Unlock()

	second, err := p.Send(context.Background(), update.StreamTarget("shelf"), event)
	require.NoError(t, err)

	assert.True(t, first.Processed)
	assert.True(t, second.Processed)
	assert.NotEmpty(t, first.EventID())
	assert.Equal(t, first.EventID(), second.EventID())
	assert.Equal(t, 3, s.stock["item-1"], "no dedup: the second delivery overwrote again")
}

func TestSend_UnknownSubjectIsNack(t *testing.T) {
	_, d := newShelf()
	p := update.NewPublisher(via(d), "stock")

	ack, err := p.Send(context.Background(), update.StreamTarget("shelf"), update.NewStockUpdate("ghost", 1))

	require.NoError(t, err)
	assert.Equal(t, "received", ack.Status)
	assert.False(t, ack.Processed)
	assert.Contains(t, ack.Error, "ghost")
	assert.NotEmpty(t, ack.EventID())
}

func TestConsumer_NotRecognized(t *testing.T) {
	_, d := newShelf()

	cases := map[string]any{
		"unknown type":   map[string]any{"type": "menu_reload", "eventId": "e1"},
		"missing field":  map[string]any{"type": "stock_update", "eventId": "e2", "itemId": "item-1"},
		"params not obj": []any{"x"},
	}
	for name, params := range cases {
		t.Run(name, func(t *testing.T) {
			resp := d.Dispatch(context.Background(), domain.NewRequest("r", "shelf/message/stream", params), "shelf", key)
			require.Nil(t, resp.Error, "consumers never answer with an error envelope")

			var ack update.Ack
			require.NoError(t, resp.Decode(&ack))
			assert.Equal(t, "received", ack.Status)
			assert.False(t, ack.Processed)
			assert.Equal(t, update.ReasonNotRecognized, ack.Error)
		})
	}
}

func TestConsumer_MissingEventIDIsApplied(t *testing.T) {
	s, d := newShelf()

	params := map[string]any{"type": "stock_update", "itemId": "item-1", "quantity": 7}
	resp := d.Dispatch(context.Background(), domain.NewRequest("r", "shelf/message/stream", params), "shelf", key)
	require.Nil(t, resp.Error)

	var ack update.Ack
	require.NoError(t, resp.Decode(&ack))
	assert.True(t, ack.Processed)
	assert.Nil(t, ack.EventAck)
	assert.Equal(t, 7, s.stock["item-1"])
}

func TestConsumer_NotRecognizedEchoesEventID(t *testing.T) {
	c := update.NewConsumer(nil)
	ack := c.Apply(context.Background(), map[string]any{"type": "nope", "eventId": "e9"})
	assert.Equal(t, "e9", ack.EventID())

	ack = c.Apply(context.Background(), "garbage")
	assert.Nil(t, ack.EventAck)
}

func TestPublish_FireAndForget(t *testing.T) {
	var deliveries []*domain.DeliveryEvent
	var mu sync.Mutex
	s, d := newShelf()
	p := update.NewPublisher(via(d), "stock", update.WithHooks(domain.LifecycleHooks{
		OnDelivery: func(ctx context.Context, e *domain.DeliveryEvent) {
			mu.Lock()
			deliveries = append(deliveries, e)
			mu.Unlock()
		},
	}))

	ctx, cancel := context.WithCancel(context.Background())
	id := p.Publish(ctx, update.StreamTarget("shelf"), update.NewStockUpdate("item-1", 0))
	cancel() // delivery is detached from the caller's context
	p.Wait()

	assert.NotEmpty(t, id)
	assert.Equal(t, 0, s.stock["item-1"])
	require.Len(t, deliveries, 1)
	assert.Equal(t, id, deliveries[0].EventID)
	assert.True(t, deliveries[0].Processed)
	assert.Equal(t, 1, deliveries[0].Attempts)
}

func TestPublish_PreservesOrderPerTarget(t *testing.T) {
	var (
		mu   sync.Mutex
		seen []int
	)
	jittery := callerFunc(func(ctx context.Context, agent string, req domain.Request) domain.Response {
		q := req.Params.(*update.StockUpdate).Quantity
		// Earlier events take longer, so any concurrent delivery would reorder them.
		time.Sleep(time.Duration(50-q) * 100 * time.Microsecond)
		mu.Lock()
		seen = append(seen, q)
		mu.Unlock()
		return domain.NewResult(req.ID, update.Accepted(req.ID.(string)))
	})
	p := update.NewPublisher(jittery, "stock")

	want := make([]int, 0, 50)
	for q := 0; q < 50; q++ {
		p.Publish(context.Background(), update.StreamTarget("shelf"), update.NewStockUpdate("item-1", q))
		want = append(want, q)
	}
	p.Wait()

	assert.Equal(t, want, seen)
}

func TestPublish_LastWriteMatchesLastMutation(t *testing.T) {
	s, d := newShelf()
	p := update.NewPublisher(via(d), "stock")

	for q := 1; q <= 20; q++ {
		p.Publish(context.Background(), update.StreamTarget("shelf"), update.NewStockUpdate("item-1", q))
	}
	p.Wait()

	s.mu.Lock()
	defer s.mu.Unlock()
	assert.Equal(t, 20, s.stock["item-1"])
}

func TestPublish_TargetsDoNotBlockEachOther(t *testing.T) {
	release := make(chan struct{})
	delivered := make(chan string, 1)
	caller := callerFunc(func(ctx context.Context, agent string, req domain.Request) domain.Response {
		if agent == "slow" {
			<-release
		} else {
			delivered <- agent
		}
		return domain.NewResult(req.ID, update.Accepted(req.ID.(string)))
	})
	p := update.NewPublisher(caller, "stock", update.WithTimeout(time.Second))

	p.Publish(context.Background(), update.StreamTarget("slow"), update.NewStockUpdate("item-1", 1))
	p.Publish(context.Background(), update.StreamTarget("fast"), update.NewStockUpdate("item-1", 2))

	select {
	case agent := <-delivered:
		assert.Equal(t, "fast", agent)
	case <-time.After(500 * time.Millisecond):
		t.Fatal("delivery to fast waited on slow")
	}
	close(release)
	p.Wait()
}

func TestSend_TransportFailureDefaultsToSingleAttempt(t *testing.T) {
	var calls atomic.Int32
	failing := callerFunc(func(ctx context.Context, agent string, req domain.Request) domain.Response {
		calls.Add(1)
		return domain.NewErrorResponse(req.ID, domain.ErrMethodNotFound(req.Method))
	})
	p := update.NewPublisher(failing, "stock")

	_, err := p.Send(context.Background(), update.StreamTarget("shelf"), update.NewStockUpdate("item-1", 1))

	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())
}

func TestSend_RetriesTransportFailures(t *testing.T) {
	_, d := newShelf()
	var calls atomic.Int32
	flaky := callerFunc(func(ctx context.Context, agent string, req domain.Request) domain.Response {
		if calls.Add(1) < 3 {
			return domain.NewErrorResponse(req.ID, domain.ErrInternal(nil))
		}
		return d.Dispatch(ctx, req, agent, key)
	})
	p := update.NewPublisher(flaky, "stock", update.WithRetries(3, time.Millisecond))

	ack, err := p.Send(context.Background(), update.StreamTarget("shelf"), update.NewStockUpdate("item-1", 2))

	require.NoError(t, err)
	assert.True(t, ack.Processed)
	assert.Equal(t, int32(3), calls.Load())
}

func TestSend_NackIsNotRetried(t *testing.T) {
	_, d := newShelf()
	var calls atomic.Int32
	counting := callerFunc(func(ctx context.Context, agent string, req domain.Request) domain.Response {
		calls.Add(1)
		return d.Dispatch(ctx, req, agent, key)
	})
	p := update.NewPublisher(counting, "stock", update.WithRetries(5, time.Millisecond))

	ack, err := p.Send(context.Background(), update.StreamTarget("shelf"), update.NewStockUpdate("ghost", 2))

	require.NoError(t, err)
	assert.False(t, ack.Processed)
	assert.Equal(t, int32(1), calls.Load())
}

func TestSend_Timeout(t *testing.T) {
	release := make(chan struct{})
	defer close(release)
	slow := callerFunc(func(ctx context.Context, agent string, req domain.Request) domain.Response {
		<-release
		return domain.NewResult(req.ID, update.Accepted("x"))
	})
	p := update.NewPublisher(slow, "stock", update.WithTimeout(20*time.Millisecond))

	_, err := p.Send(context.Background(), update.StreamTarget("shelf"), update.NewStockUpdate("item-1", 1))

	assert.ErrorIs(t, err, update.ErrTimeout)
}

func TestSend_MalformedAck(t *testing.T) {
	odd := callerFunc(func(ctx context.Context, agent string, req domain.Request) domain.Response {
		return domain.NewResult(req.ID, "ok")
	})
	p := update.NewPublisher(odd, "stock", update.WithRetries(3, time.Millisecond))

	_, err := p.Send(context.Background(), update.StreamTarget("shelf"), update.NewStockUpdate("item-1", 1))

	assert.ErrorIs(t, err, update.ErrMalformedAck)
}

func TestConsumer_Types(t *testing.T) {
	c := update.NewConsumer(nil)
	update.On(c, update.TypePromotionUpdate, nil, func(ctx context.Context, e update.PromotionUpdate) error { return nil })
	update.On(c, update.TypeStockUpdate, nil, func(ctx context.Context, e update.StockUpdate) error { return nil })

	assert.Equal(t, []string{"promotion_update", "stock_update"}, c.Types())
}
