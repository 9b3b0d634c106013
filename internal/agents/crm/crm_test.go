package crm_test

import (
	"encoding/json"
	"testing"

	"github.com/aretw0/mesa/internal/agents"
	"github.com/aretw0/mesa/internal/agents/crm"
	"github.com/aretw0/mesa/internal/testutils"
	"github.com/aretw0/mesa/pkg/domain"
	"github.com/aretw0/mesa/pkg/rpc"
	"github.com/aretw0/mesa/pkg/update"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setup(t *testing.T) (*crm.Agent, *rpc.Dispatcher) {
	t.Helper()
	a := crm.New(agents.Deps{NewID: func() string { return "7" }})
	a.Seed([]crm.Customer{{CustomerID: "cust-1", Name: "Ana", Phone: "+5511999990000"}})
	return a, testutils.NewDispatcher(t, a)
}

func TestCreate(t *testing.T) {
	_, d := setup(t)

	var c crm.Customer
	testutils.Result(t, testutils.Call(d, "crm/customers/create", map[string]any{"name": "Bia", "phone": "+5521988887777"}), &c)
	assert.Equal(t, "cust-7", c.CustomerID)

	resp := testutils.Call(d, "crm/customers/create", map[string]any{"customerId": "cust-1", "name": "Ana", "phone": "x"})
	assert.Equal(t, crm.CodeCustomerExists, testutils.Code(t, resp))

	resp = testutils.Call(d, "crm/customers/create", map[string]any{"name": "No phone"})
	assert.Equal(t, domain.CodeInvalidParams, testutils.Code(t, resp))
}

func TestGet_ByIDOrPhone(t *testing.T) {
	_, d := setup(t)

	var c crm.Customer
	testutils.Result(t, testutils.Call(d, "crm/customers/get", map[string]any{"customerId": "cust-1"}), &c)
	assert.Equal(t, "Ana", c.Name)

	testutils.Result(t, testutils.Call(d, "crm/customers/get", map[string]any{"phone": "+5511999990000"}), &c)
	assert.Equal(t, "cust-1", c.CustomerID)

	resp := testutils.Call(d, "crm/customers/get", map[string]any{})
	assert.Equal(t, crm.CodeLookupRequired, testutils.Code(t, resp))

	resp = testutils.Call(d, "crm/customers/get", map[string]any{"phone": "+000"})
	assert.Equal(t, crm.CodeCustomerNotFound, testutils.Code(t, resp))
}

func TestList(t *testing.T) {
	_, d := setup(t)

	var out struct {
		Customers []crm.Customer `json:"customers"`
	}
	testutils.Result(t, testutils.Call(d, "crm/customers/list", nil), &out)
	require.Len(t, out.Customers, 1)
}

func TestOrderCompleted(t *testing.T) {
	a, d := setup(t)
	event := map[string]any{"type": update.TypeOrderCompleted, "eventId": "e1", "orderId": "order-1", "customerId": "cust-1", "total": 50.5}

	var ack update.Ack
	testutils.Result(t, testutils.Call(d, "crm/message/stream", event), &ack)
	assert.True(t, ack.Processed)
	assert.Equal(t, "e1", ack.EventID())

	// Redelivery of the same order is acknowledged without counting twice.
	event["eventId"] = "e2"
	testutils.Result(t, testutils.Call(d, "crm/message/stream", event), &ack)
	assert.True(t, ack.Processed)

	c, _ := a.Customer("cust-1")
	assert.Equal(t, 1, c.OrderCount)
	assert.Equal(t, 50.5, c.TotalSpent)
	assert.NotNil(t, c.LastOrderAt)

	event["customerId"] = "ghost"
	event["orderId"] = "order-2"
	testutils.Result(t, testutils.Call(d, "crm/message/stream", event), &ack)
	assert.False(t, ack.Processed)
	assert.Equal(t, "customer not found: ghost", ack.Error)

	delete(event, "total")
	testutils.Result(t, testutils.Call(d, "crm/message/stream", event), &ack)
	assert.Equal(t, update.ReasonNotRecognized, ack.Error)
}

func TestSnapshotRestore(t *testing.T) {
	a, d := setup(t)
	event := map[string]any{"type": update.TypeOrderCompleted, "eventId": "e1", "orderId": "order-1", "customerId": "cust-1", "total": 10}
	require.Nil(t, testutils.Call(d, "crm/message/stream", event).Error)

	state, err := a.Snapshot()
	require.NoError(t, err)
	raw, err := json.Marshal(state)
	require.NoError(t, err)

	b := crm.New(agents.Deps{})
	require.NoError(t, b.Restore(raw))
	bd := testutils.NewDispatcher(t, b)
	require.Nil(t, testutils.Call(bd, "crm/message/stream", event).Error)

	c, _ := b.Customer("cust-1")
	assert.Equal(t, 1, c.OrderCount, "completed orders survive a restore")
}
