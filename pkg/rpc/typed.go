package rpc

import (
	"context"
	"fmt"

	"github.com/aretw0/mesa/pkg/domain"
	"github.com/aretw0/mesa/pkg/registry"
	"github.com/aretw0/mesa/pkg/schema"
	"github.com/mitchellh/mapstructure"
)

// TypedHandler receives params already validated and decoded into P.
type TypedHandler[P any] func(ctx context.Context, call *registry.Call, params P) (any, error)

// Typed validates call params against s and decodes them into P before calling fn.
// Any failure is reported as -32602 with the violations as data.
func Typed[P any](s schema.Schema, fn TypedHandler[P]) registry.Handler {
	return func(ctx context.Context, call *registry.Call) (any, error) {
		params, ok := call.Params.(map[string]any)
		if !ok {
			return nil, domain.ErrInvalidParams(map[string]any{
				"violations": []schema.Violation{{Reason: "params must be an object"}},
			})
		}
		if err := schema.Validate(s, params); err != nil {
			return nil, domain.ErrInvalidParams(map[string]any{"violations": schema.Violations(err)})
		}

		var p P
		if err := Decode(params, &p); err != nil {
			return nil, domain.ErrInvalidParams(map[string]any{
				"violations": []schema.Violation{{Reason: err.Error()}},
			})
		}
		return fn(ctx, call, p)
	}
}

// Decode copies a decoded JSON object into out using its json tags.
func Decode(in any, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "json",
		Result:           out,
		Squash:           true,
		WeaklyTypedInput: false,
	})
	if err != nil {
		return fmt.Errorf("failed to build decoder: %w", err)
	}
	if err := dec.Decode(in); err != nil {
		return fmt.Errorf("failed to decode params: %w", err)
	}
	return nil
}
