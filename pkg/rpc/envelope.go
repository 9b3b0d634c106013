package rpc

import (
	"encoding/json"
	"strings"

	"github.com/aretw0/mesa/pkg/domain"
)

// ParseEnvelope turns a raw payload into a validated request.
//
// Raw bytes and strings are deserialized; any other value (a map, a domain.Request,
// a struct) is normalized through its JSON form so that in-process callers see
// exactly what a remote caller would. Params are left as decoded JSON.
func ParseEnvelope(raw any) (domain.Request, *domain.RPCError) {
	var data []byte
	switch v := raw.(type) {
	case nil:
		return domain.Request{}, domain.ErrInvalidRequest(map[string]any{"reason": "empty payload"})
	case []byte:
		data = v
	case json.RawMessage:
		data = v
	case string:
		data = []byte(v)
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return domain.Request{}, domain.ErrParse(map[string]any{"error": err.Error()})
		}
		data = b
	}

	if len(strings.TrimSpace(string(data))) == 0 {
		return domain.Request{}, domain.ErrParse(map[string]any{"error": "empty body"})
	}

	var decoded any
	if err := json.Unmarshal(data, &decoded); err != nil {
		return domain.Request{}, domain.ErrParse(map[string]any{"error": err.Error()})
	}

	return validate(decoded)
}

func validate(decoded any) (domain.Request, *domain.RPCError) {
	obj, ok := decoded.(map[string]any)
	if !ok {
		return domain.Request{}, invalid("request must be a JSON object")
	}

	if version, _ := obj["jsonrpc"].(string); version != domain.Version {
		return domain.Request{}, invalid(`jsonrpc must be "2.0"`)
	}

	method, _ := obj["method"].(string)
	if strings.TrimSpace(method) == "" {
		return domain.Request{}, invalid("method must be a non-empty string")
	}

	id := obj["id"]
	if !validID(id) {
		return domain.Request{}, invalid("id must be a non-empty string or a non-zero number")
	}

	return domain.Request{
		JSONRPC: domain.Version,
		ID:      id,
		Method:  method,
		Params:  obj["params"],
	}, nil
}

func validID(id any) bool {
	switch v := id.(type) {
	case string:
		return v != ""
	case float64:
		return v != 0
	default:
		return false
	}
}

func invalid(reason string) *domain.RPCError {
	return domain.ErrInvalidRequest(map[string]any{"reason": reason})
}
