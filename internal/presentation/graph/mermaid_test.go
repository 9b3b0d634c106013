package graph_test

import (
	"testing"

	"github.com/aretw0/mesa/internal/presentation/graph"
	"github.com/stretchr/testify/assert"
)

func TestTopology(t *testing.T) {
	tests := []struct {
		name     string
		agents   []string
		edges    []graph.Edge
		contains []string
	}{
		{
			name:     "Agent Nodes",
			agents:   []string{"cardapio", "estoque"},
			contains: []string{"graph LR", "cardapio[\"cardapio\"]", "estoque[\"estoque\"]"},
		},
		{
			name:     "Update Event",
			edges:    []graph.Edge{{From: "estoque", To: "cardapio", Label: "stock_update"}},
			contains: []string{"estoque -. \"stock_update\" .-> cardapio"},
		},
		{
			name:     "Synchronous Call",
			edges:    []graph.Edge{{From: "pedidos", To: "cardapio", Label: "cardapio/tasks/get", Sync: true}},
			contains: []string{"pedidos -- \"cardapio/tasks/get\" --> cardapio"},
		},
		{
			name:     "Sanitized IDs",
			edges:    []graph.Edge{{From: "a-b", To: "c.d"}},
			contains: []string{"a_b -..-> c_d"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := graph.Topology(tt.agents, tt.edges)
			for _, want := range tt.contains {
				assert.Contains(t, out, want)
			}
		})
	}
}

func TestStateDiagram(t *testing.T) {
	next := map[string][]string{
		"received":  {"preparing", "canceled"},
		"preparing": {"ready"},
	}
	states := []string{"received", "preparing", "ready", "canceled"}

	out := graph.StateDiagram(states, func(s string) []string { return next[s] }, "preparing")

	assert.Contains(t, out, "[*] --> received")
	assert.Contains(t, out, "received --> preparing")
	assert.Contains(t, out, "received --> canceled")
	assert.Contains(t, out, "ready --> [*]")
	assert.Contains(t, out, "canceled --> [*]")
	assert.Contains(t, out, "class preparing current")

	plain := graph.StateDiagram(states, func(s string) []string { return next[s] }, "")
	assert.NotContains(t, plain, "classDef")
}
