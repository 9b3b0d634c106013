package mesa

import (
	"github.com/aretw0/mesa/internal/agents/analytics"
	"github.com/aretw0/mesa/internal/agents/cardapio"
	"github.com/aretw0/mesa/internal/agents/crm"
	"github.com/aretw0/mesa/internal/agents/estoque"
	"github.com/aretw0/mesa/internal/agents/pedidos"
	"github.com/aretw0/mesa/internal/agents/promocao"
	"github.com/aretw0/mesa/internal/agents/whatsapp"
	"github.com/aretw0/mesa/internal/presentation/graph"
	"github.com/aretw0/mesa/pkg/update"
)

// topology lists every interaction agents start on their own.
var topology = []graph.Edge{
	{From: estoque.Name, To: cardapio.Name, Label: update.TypeStockUpdate},
	{From: promocao.Name, To: cardapio.Name, Label: update.TypePromotionUpdate},
	{From: pedidos.Name, To: cardapio.Name, Label: "cardapio/tasks/get", Sync: true},
	{From: pedidos.Name, To: analytics.Name, Label: update.TypeOrderCreated},
	{From: pedidos.Name, To: whatsapp.Name, Label: update.TypeOrderStatusUpdate},
	{From: pedidos.Name, To: crm.Name, Label: update.TypeOrderCompleted},
}

// Topology renders the agent interaction graph as a Mermaid flowchart.
func (h *Host) Topology() string {
	return graph.Topology(h.Agents(), topology)
}

// OrderFlow renders the order status board as a Mermaid state diagram,
// highlighting current when it is set.
func OrderFlow(current string) string {
	return graph.StateDiagram(pedidos.Statuses(), pedidos.Next, current)
}
