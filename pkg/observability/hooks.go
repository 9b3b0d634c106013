package observability

import (
	"context"
	"log/slog"

	"github.com/aretw0/mesa/pkg/domain"
)

// LogHooks logs every finished request and every delivery.
func LogHooks(logger *slog.Logger) domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnResponse: func(ctx context.Context, e *domain.RequestEvent) {
			logger.InfoContext(ctx, "rpc",
				"agent", e.Agent,
				"instance", e.InstanceID,
				"method", e.Method,
				"code", e.Code,
				"duration", e.Duration,
			)
		},
		OnDelivery: func(ctx context.Context, e *domain.DeliveryEvent) {
			logger.InfoContext(ctx, "delivery",
				"event_id", e.EventID,
				"type", e.EventType,
				"target", e.Target,
				"attempts", e.Attempts,
				"outcome", Outcome(e),
			)
		},
	}
}

// Combine merges hooks so that every non-nil callback runs, in order.
func Combine(all ...domain.LifecycleHooks) domain.LifecycleHooks {
	var out domain.LifecycleHooks
	for _, h := range all {
		out.OnRequest = chain(out.OnRequest, h.OnRequest)
		out.OnResponse = chain(out.OnResponse, h.OnResponse)
		out.OnDelivery = chain(out.OnDelivery, h.OnDelivery)
	}
	return out
}

func chain[E any](a, b func(context.Context, E)) func(context.Context, E) {
	switch {
	case a == nil:
		return b
	case b == nil:
		return a
	}
	return func(ctx context.Context, e E) {
		a(ctx, e)
		b(ctx, e)
	}
}
