package analytics_test

import (
	"encoding/json"
	"testing"

	"github.com/aretw0/mesa/internal/agents"
	"github.com/aretw0/mesa/internal/agents/analytics"
	"github.com/aretw0/mesa/internal/testutils"
	"github.com/aretw0/mesa/pkg/update"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func created(eventID, orderID, customerID string, total float64, items int) map[string]any {
	return map[string]any{
		"type":       update.TypeOrderCreated,
		"eventId":    eventID,
		"orderId":    orderID,
		"customerId": customerID,
		"total":      total,
		"itemCount":  items,
	}
}

func TestSummary(t *testing.T) {
	a := analytics.New(agents.Deps{})
	d := testutils.NewDispatcher(t, a)

	var s analytics.Summary
	testutils.Result(t, testutils.Call(d, "analytics/metrics/summary", nil), &s)
	assert.Zero(t, s.Orders)
	assert.Zero(t, s.AverageTicket)

	var ack update.Ack
	testutils.Result(t, testutils.Call(d, "analytics/message/stream", created("e1", "o1", "c1", 30, 2)), &ack)
	require.True(t, ack.Processed)
	testutils.Result(t, testutils.Call(d, "analytics/message/stream", created("e2", "o2", "c1", 20, 1)), &ack)
	require.True(t, ack.Processed)
	// Redelivery overwrites rather than double counts.
	testutils.Result(t, testutils.Call(d, "analytics/message/stream", created("e3", "o2", "c1", 20, 1)), &ack)
	require.True(t, ack.Processed)

	testutils.Result(t, testutils.Call(d, "analytics/metrics/summary", nil), &s)
	assert.Equal(t, 2, s.Orders)
	assert.Equal(t, 50.0, s.Revenue)
	assert.Equal(t, 3, s.ItemsSold)
	assert.Equal(t, 25.0, s.AverageTicket)
	assert.Equal(t, 1, s.Customers)
	assert.NotNil(t, s.Since)
}

func TestStream_Rejects(t *testing.T) {
	a := analytics.New(agents.Deps{})
	d := testutils.NewDispatcher(t, a)

	var ack update.Ack
	testutils.Result(t, testutils.Call(d, "analytics/message/stream", map[string]any{"type": "stock_update", "eventId": "e1"}), &ack)
	assert.False(t, ack.Processed)
	assert.Equal(t, update.ReasonNotRecognized, ack.Error)
	assert.Equal(t, "e1", ack.EventID())
}

func TestReset(t *testing.T) {
	a := analytics.New(agents.Deps{})
	d := testutils.NewDispatcher(t, a)
	require.Nil(t, testutils.Call(d, "analytics/message/stream", created("e1", "o1", "", 10, 1)).Error)

	var out map[string]int
	testutils.Result(t, testutils.Call(d, "analytics/metrics/reset", nil), &out)
	assert.Equal(t, 1, out["discarded"])
	assert.Zero(t, a.Summary().Orders)
}

func TestSnapshotRestore(t *testing.T) {
	a := analytics.New(agents.Deps{})
	d := testutils.NewDispatcher(t, a)
	require.Nil(t, testutils.Call(d, "analytics/message/stream", created("e1", "o1", "c1", 10, 1)).Error)

	state, err := a.Snapshot()
	require.NoError(t, err)
	raw, err := json.Marshal(state)
	require.NoError(t, err)

	b := analytics.New(agents.Deps{})
	require.NoError(t, b.Restore(raw))
	assert.Equal(t, 1, b.Summary().Orders)
}
