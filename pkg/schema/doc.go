// Package schema validates the untyped params of an RPC call before they reach a handler.
//
// A Schema maps field names to types. Every field is required unless wrapped with
// Optional; failures are collected, ordered by field name and returned as a single
// *AggregateError so that callers can report all of them at once:
//
//	s := schema.Schema{
//	    "itemId":   schema.ID(),
//	    "quantity": schema.Min(0),
//	    "note":     schema.Optional(schema.String()),
//	}
//
//	if err := schema.Validate(s, params); err != nil {
//	    data := schema.Violations(err) // [{field, reason}, ...]
//	}
//
// Schemas serialize to a map of type names ({"itemId":"id","note":"string?"}),
// which is how capability profiles describe method params.
package schema
