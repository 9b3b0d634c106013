package domain

import "github.com/aretw0/mesa/pkg/schema"

// Capability describes one method an agent answers.
type Capability struct {
	Method      string        `json:"method"`
	Description string        `json:"description"`
	Params      schema.Schema `json:"params,omitempty"`
}

// Profile is the capability card returned by the discovery method.
type Profile struct {
	AgentID      string       `json:"agentId"`
	Name         string       `json:"name"`
	Description  string       `json:"description"`
	Capabilities []Capability `json:"capabilities"`
}
