package domain

import (
	"encoding/json"
	"fmt"
)

// Version is the only protocol version accepted in envelopes.
const Version = "2.0"

// DiscoveryMethod is the shared, un-namespaced method every agent answers.
const DiscoveryMethod = "agent/authenticatedExtendedCard"

// Request is a JSON-RPC 2.0 request envelope.
type Request struct {
	JSONRPC string `json:"jsonrpc"`
	ID      any    `json:"id"`
	Method  string `json:"method"`
	Params  any    `json:"params,omitempty"`
}

// NewRequest builds a request envelope with the supported version.
func NewRequest(id any, method string, params any) Request {
	return Request{JSONRPC: Version, ID: id, Method: method, Params: params}
}

// Response is a JSON-RPC 2.0 response envelope.
// Exactly one of Result or Error is written on the wire.
type Response struct {
	JSONRPC string    `json:"jsonrpc"`
	ID      any       `json:"id"`
	Result  any       `json:"result,omitempty"`
	Error   *RPCError `json:"error,omitempty"`
}

// NewResult wraps a handler result.
func NewResult(id any, result any) Response {
	return Response{JSONRPC: Version, ID: id, Result: result}
}

// NewErrorResponse wraps an error object.
func NewErrorResponse(id any, err *RPCError) Response {
	return Response{JSONRPC: Version, ID: id, Error: err}
}

// IsError reports whether the response carries an error object.
func (r Response) IsError() bool {
	return r.Error != nil
}

// MarshalJSON writes either "result" or "error", never both and never neither.
// A nil result is written as "result": null.
func (r Response) MarshalJSON() ([]byte, error) {
	version := r.JSONRPC
	if version == "" {
		version = Version
	}
	if r.Error != nil {
		return json.Marshal(struct {
			JSONRPC string    `json:"jsonrpc"`
			ID      any       `json:"id"`
			Error   *RPCError `json:"error"`
		}{version, r.ID, r.Error})
	}
	return json.Marshal(struct {
		JSONRPC string `json:"jsonrpc"`
		ID      any    `json:"id"`
		Result  any    `json:"result"`
	}{version, r.ID, r.Result})
}

// Decode converts the result into v through its JSON representation.
func (r Response) Decode(v any) error {
	if r.Error != nil {
		return r.Error
	}
	data, err := json.Marshal(r.Result)
	if err != nil {
		return fmt.Errorf("failed to marshal result: %w", err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to decode result: %w", err)
	}
	return nil
}
