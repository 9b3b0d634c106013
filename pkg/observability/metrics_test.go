package observability_test

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/aretw0/mesa/pkg/domain"
	"github.com/aretw0/mesa/pkg/observability"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Requests(t *testing.T) {
	m := observability.NewMetrics()
	hooks := m.Hooks()
	ctx := context.Background()

	hooks.OnResponse(ctx, &domain.RequestEvent{Agent: "cardapio", Method: "cardapio/tasks/get", Duration: time.Millisecond})
	hooks.OnResponse(ctx, &domain.RequestEvent{Agent: "cardapio", Method: "cardapio/tasks/get", Code: 1001})
	hooks.OnResponse(ctx, &domain.RequestEvent{Agent: "cardapio", Code: domain.CodeUnauthorized})

	n, err := testutil.GatherAndCount(m.Registry(), "mesa_rpc_requests_total")
	require.NoError(t, err)
	assert.Equal(t, 3, n, "one series per agent/method/code")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `mesa_rpc_requests_total{agent="cardapio",code="1001",method="cardapio/tasks/get"} 1`)
	assert.Contains(t, rec.Body.String(), `method="unknown"`)
}

func TestMetrics_Deliveries(t *testing.T) {
	m := observability.NewMetrics()
	hooks := m.Hooks()
	ctx := context.Background()

	hooks.OnDelivery(ctx, &domain.DeliveryEvent{Target: "cardapio", EventType: "stock_update", Attempts: 1, Processed: true})
	hooks.OnDelivery(ctx, &domain.DeliveryEvent{Target: "cardapio", EventType: "stock_update", Attempts: 1})
	hooks.OnDelivery(ctx, &domain.DeliveryEvent{Target: "cardapio", EventType: "stock_update", Attempts: 3, Err: errors.New("timeout")})

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body := rec.Body.String()
	for _, outcome := range []string{"processed", "rejected", "failed"} {
		assert.Contains(t, body, `outcome="`+outcome+`"`)
	}
}

func TestCombine(t *testing.T) {
	var calls []string
	a := domain.LifecycleHooks{OnResponse: func(context.Context, *domain.RequestEvent) { calls = append(calls, "a") }}
	b := domain.LifecycleHooks{OnResponse: func(context.Context, *domain.RequestEvent) { calls = append(calls, "b") }}

	hooks := observability.Combine(a, domain.LifecycleHooks{}, b)
	hooks.OnResponse(context.Background(), &domain.RequestEvent{})

	assert.Equal(t, []string{"a", "b"}, calls)
	assert.Nil(t, hooks.OnRequest)
}

func TestLogHooks(t *testing.T) {
	var buf bytes.Buffer
	hooks := observability.LogHooks(slog.New(slog.NewTextHandler(&buf, nil)))

	hooks.OnDelivery(context.Background(), &domain.DeliveryEvent{EventID: "e1", Target: "crm", Attempts: 1})

	assert.Contains(t, buf.String(), "outcome=rejected")
	assert.Contains(t, buf.String(), "event_id=e1")
}
