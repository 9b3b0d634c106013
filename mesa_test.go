package mesa_test

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/aretw0/mesa"
	"github.com/aretw0/mesa/internal/agents/whatsapp"
	"github.com/aretw0/mesa/internal/seed"
	"github.com/aretw0/mesa/pkg/adapters/memory"
	"github.com/aretw0/mesa/pkg/adapters/notify"
	"github.com/aretw0/mesa/pkg/domain"
	"github.com/aretw0/mesa/pkg/observability"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const key = "secret"

const fixture = `
menu:
  - id: item-1
    name: Feijoada
    price: 40
  - id: item-2
    name: Pudim
    price: 10
inventory:
  - id: item-1
    quantity: 5
    threshold: 1
  - id: item-2
    quantity: 0
promotions:
  - id: promo-1
    title: Feijoada day
    item_id: item-1
    discount_percent: 25
    active: true
  - id: promo-2
    title: Black Friday
    discount_percent: 15
customers:
  - id: cust-1
    name: Ana
    phone: "+5511999990000"
`

func newHost(t *testing.T, opts ...mesa.Option) *mesa.Host {
	t.Helper()
	h := mesa.New(append([]mesa.Option{mesa.WithAPIKeys(key)}, opts...)...)
	d, err := seed.FromYAML([]byte(fixture))
	require.NoError(t, err)
	require.NoError(t, h.Seed(context.Background(), d))
	return h
}

func call(t *testing.T, h *mesa.Host, agent, method string, params any) map[string]any {
	t.Helper()
	resp := h.Dispatch(context.Background(), agent, "loja-1", domain.NewRequest("1", method, params), key)
	require.Nil(t, resp.Error, "%s: %+v", method, resp.Error)
	var out map[string]any
	require.NoError(t, resp.Decode(&out))
	return out
}

func TestDispatch_AuthBeforeParse(t *testing.T) {
	h := newHost(t)

	for _, agent := range []string{"cardapio", "nope"} {
		resp := h.Dispatch(context.Background(), agent, "loja-1", []byte(`{not json`), "wrong")
		require.NotNil(t, resp.Error)
		assert.Equal(t, domain.CodeUnauthorized, resp.Error.Code, agent)
		assert.Nil(t, resp.ID)
	}
}

func TestDispatch_UnknownAgent(t *testing.T) {
	h := newHost(t)

	resp := h.Dispatch(context.Background(), "nope", "loja-1", []byte(`{"jsonrpc":"2.0","id":"7","method":"nope/x"}`), key)
	require.NotNil(t, resp.Error)
	assert.Equal(t, domain.CodeMethodNotFound, resp.Error.Code)
	assert.Equal(t, "7", resp.ID)

	resp = h.Dispatch(context.Background(), "nope", "loja-1", []byte(`{`), key)
	require.NotNil(t, resp.Error)
	assert.Equal(t, domain.CodeParseError, resp.Error.Code)
	assert.Nil(t, resp.ID)
}

func TestDispatch_MethodsAreNamespacedPerAgent(t *testing.T) {
	h := newHost(t)

	resp := h.Dispatch(context.Background(), "estoque", "loja-1", domain.NewRequest("9", "cardapio/tasks/list", nil), key)
	require.NotNil(t, resp.Error)
	assert.Equal(t, domain.CodeMethodNotFound, resp.Error.Code)
	assert.Equal(t, "9", resp.ID)
}

func TestSeed_PushesStockAndPromotionsToMenu(t *testing.T) {
	h := newHost(t)

	item := call(t, h, "cardapio", "cardapio/tasks/get", map[string]any{"itemId": "item-2"})
	assert.Equal(t, false, item["available"], "zero stock makes the item unavailable")

	item = call(t, h, "cardapio", "cardapio/tasks/get", map[string]any{"itemId": "item-1"})
	promo := item["promotion"].(map[string]any)
	assert.Equal(t, "promo-1", promo["promoId"])

	general := call(t, h, "cardapio", "cardapio/promotions/list", nil)
	assert.Empty(t, general["general"], "inactive promotions are not announced")
}

func TestFlow_StockAndPromotion(t *testing.T) {
	h := newHost(t)

	call(t, h, "estoque", "estoque/items/adjust", map[string]any{"itemId": "item-2", "delta": 3})
	call(t, h, "promocao", "promocao/promotions/activate", map[string]any{"promoId": "promo-2"})
	h.Wait()

	item := call(t, h, "cardapio", "cardapio/tasks/get", map[string]any{"itemId": "item-2"})
	assert.Equal(t, true, item["available"])
	assert.Equal(t, float64(3), item["quantity"])

	general := call(t, h, "cardapio", "cardapio/promotions/list", nil)
	require.Len(t, general["general"], 1)

	call(t, h, "promocao", "promocao/promotions/deactivate", map[string]any{"promoId": "promo-2"})
	h.Wait()
	general = call(t, h, "cardapio", "cardapio/promotions/list", nil)
	assert.Empty(t, general["general"])
}

func TestFlow_OrderLifecycle(t *testing.T) {
	notifier := &notify.Recorder{}
	h := newHost(t, mesa.WithNotifier(notifier))

	order := call(t, h, "pedidos", "pedidos/orders/create", map[string]any{
		"customerId":    "cust-1",
		"customerPhone": "+5511999990000",
		"items":         []any{map[string]any{"itemId": "item-1", "quantity": 2}},
	})
	assert.Equal(t, 60.0, order["total"], "25% item promotion applied")
	id := order["orderId"].(string)

	for _, s := range []string{"preparing", "ready", "delivered"} {
		call(t, h, "pedidos", "pedidos/orders/updateStatus", map[string]any{"orderId": id, "status": s})
	}
	h.Wait()

	customer := call(t, h, "crm", "crm/customers/get", map[string]any{"customerId": "cust-1"})
	assert.Equal(t, float64(1), customer["orderCount"])
	assert.Equal(t, 60.0, customer["totalSpent"])

	summary := call(t, h, "analytics", "analytics/metrics/summary", nil)
	assert.Equal(t, float64(1), summary["orders"])
	assert.Equal(t, 60.0, summary["revenue"])

	assert.Len(t, notifier.Sent(), 4, "one message per status")
	messages := call(t, h, "whatsapp", "whatsapp/messages/list", map[string]any{"to": "+5511999990000"})
	assert.Len(t, messages["messages"], 4)

	resp := h.Dispatch(context.Background(), "pedidos", "loja-1", domain.NewRequest("1", "pedidos/orders/create", map[string]any{
		"items": []any{map[string]any{"itemId": "item-2", "quantity": 1}},
	}), key)
	require.NotNil(t, resp.Error)
	assert.Equal(t, 3003, resp.Error.Code, "out of stock items cannot be ordered")
}

func TestConcurrentAdjustments(t *testing.T) {
	h := newHost(t)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			resp := h.Dispatch(context.Background(), "estoque", "loja-1",
				domain.NewRequest(fmt.Sprint(i+1), "estoque/items/adjust", map[string]any{"itemId": "item-1", "delta": 1}), key)
			assert.Nil(t, resp.Error)
		}()
	}
	wg.Wait()
	h.Wait()

	item := call(t, h, "estoque", "estoque/items/get", map[string]any{"itemId": "item-1"})
	assert.Equal(t, float64(55), item["quantity"])
}

func TestFlow_MenuTracksInventoryAcrossMutations(t *testing.T) {
	h := newHost(t)

	for q := 1; q <= 20; q++ {
		call(t, h, "estoque", "estoque/items/set", map[string]any{"itemId": "item-1", "quantity": q})
	}
	call(t, h, "estoque", "estoque/items/adjust", map[string]any{"itemId": "item-1", "delta": -7})
	call(t, h, "estoque", "estoque/items/set", map[string]any{"itemId": "item-2", "quantity": 0})
	call(t, h, "estoque", "estoque/items/set", map[string]any{"itemId": "item-2", "quantity": 5})
	call(t, h, "estoque", "estoque/items/adjust", map[string]any{"itemId": "item-2", "delta": -5})
	call(t, h, "estoque", "estoque/items/set", map[string]any{"itemId": "item-2", "quantity": 2})
	h.Wait()

	for _, id := range []string{"item-1", "item-2"} {
		stock := call(t, h, "estoque", "estoque/items/get", map[string]any{"itemId": id})
		item := call(t, h, "cardapio", "cardapio/tasks/get", map[string]any{"itemId": id})
		assert.Equal(t, stock["quantity"], item["quantity"], id)
		assert.Equal(t, true, item["available"], id)
	}
	item := call(t, h, "cardapio", "cardapio/tasks/get", map[string]any{"itemId": "item-1"})
	assert.Equal(t, float64(13), item["quantity"])
}

func TestFlow_StatusMessagesFollowTransitions(t *testing.T) {
	h := newHost(t)

	order := call(t, h, "pedidos", "pedidos/orders/create", map[string]any{
		"customerPhone": "+5511988887777",
		"items":         []any{map[string]any{"itemId": "item-1", "quantity": 1}},
	})
	id := order["orderId"].(string)

	steps := []string{"preparing", "ready", "delivered"}
	for _, s := range steps {
		call(t, h, "pedidos", "pedidos/orders/updateStatus", map[string]any{"orderId": id, "status": s})
	}
	h.Wait()

	out := call(t, h, "whatsapp", "whatsapp/messages/list", map[string]any{"to": "+5511988887777"})
	messages := out["messages"].([]any)
	require.Len(t, messages, 4)
	for i, s := range append([]string{"received"}, steps...) {
		m := messages[i].(map[string]any)
		assert.Equal(t, whatsapp.StatusMessage(id, s), m["body"], "message %d", i)
	}
}

func TestDiscovery(t *testing.T) {
	h := newHost(t)

	assert.Equal(t, []string{"analytics", "cardapio", "crm", "estoque", "pedidos", "promocao", "whatsapp"}, h.Agents())

	for _, agent := range h.Agents() {
		card := call(t, h, agent, domain.DiscoveryMethod, nil)
		assert.Equal(t, "loja-1", card["agentId"])
		assert.Equal(t, agent, card["name"])

		methods, err := h.Methods(agent)
		require.NoError(t, err)
		assert.Contains(t, methods, domain.DiscoveryMethod)
		for _, m := range methods {
			if m != domain.DiscoveryMethod {
				assert.True(t, strings.HasPrefix(m, agent+"/"), m)
			}
		}
	}

	_, err := h.Methods("nope")
	assert.ErrorIs(t, err, domain.ErrUnknownAgent)
	assert.Len(t, h.Profiles("x"), 7)
}

func TestInternalKey(t *testing.T) {
	h := mesa.New(mesa.WithInternalKey("internal"))

	resp := h.Dispatch(context.Background(), "crm", "x", domain.NewRequest("1", "crm/customers/list", nil), "internal")
	assert.Nil(t, resp.Error)

	resp = h.Dispatch(context.Background(), "crm", "x", domain.NewRequest("1", "crm/customers/list", nil), "")
	require.NotNil(t, resp.Error)
	assert.Equal(t, domain.CodeUnauthorized, resp.Error.Code)
}

func TestPersistRestore(t *testing.T) {
	store := memory.NewStore()
	ctx := context.Background()

	h := newHost(t, mesa.WithSnapshotStore(store))
	call(t, h, "crm", "crm/customers/create", map[string]any{"customerId": "cust-2", "name": "Bia", "phone": "+55"})
	require.NoError(t, h.Close(ctx))

	agents, err := store.List(ctx)
	require.NoError(t, err)
	assert.Len(t, agents, 7)

	fresh := mesa.New(mesa.WithAPIKeys(key), mesa.WithSnapshotStore(store))
	require.NoError(t, fresh.Restore(ctx))
	customer := call(t, fresh, "crm", "crm/customers/get", map[string]any{"customerId": "cust-2"})
	assert.Equal(t, "Bia", customer["name"])
	item := call(t, fresh, "cardapio", "cardapio/tasks/get", map[string]any{"itemId": "item-1"})
	assert.Equal(t, float64(5), item["quantity"])
}

func TestPersist_WithoutStore(t *testing.T) {
	h := mesa.New()
	assert.NoError(t, h.Persist(context.Background()))
	assert.NoError(t, h.Restore(context.Background()))
}

func TestMetricsHooks(t *testing.T) {
	m := observability.NewMetrics()
	h := newHost(t, mesa.WithLifecycleHooks(m.Hooks()))

	call(t, h, "estoque", "estoque/items/adjust", map[string]any{"itemId": "item-1", "delta": -1})
	h.Wait()

	n, err := testutil.GatherAndCount(m.Registry(), "mesa_update_deliveries_total")
	require.NoError(t, err)
	assert.GreaterOrEqual(t, n, 1)
	n, err = testutil.GatherAndCount(m.Registry(), "mesa_rpc_requests_total")
	require.NoError(t, err)
	assert.GreaterOrEqual(t, n, 2)
}
