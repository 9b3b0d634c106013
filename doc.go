/*
Package mesa hosts the agents of a restaurant back office behind one JSON-RPC 2.0 core.

Each agent (cardapio, estoque, pedidos, promocao, crm, analytics, whatsapp) owns its
state and registers a namespaced set of methods. External callers reach an agent
through Host.Dispatch with an API key; agents reach each other through the same
dispatch path with an internal key, either with ordinary requests or with the
update sub-protocol: a producer pushes an event to "<agent>/message/stream" and the
consumer answers with an Ack.

# Usage

	host := mesa.New(mesa.WithAPIKeys("secret"))
	defer host.Close(context.Background())

	resp := host.Dispatch(ctx, "cardapio", "loja-1",
		[]byte(`{"jsonrpc":"2.0","id":"1","method":"cardapio/tasks/list"}`), "secret")
	if resp.Error != nil {
		log.Printf("rpc error %d: %s", resp.Error.Code, resp.Error.Message)
	}

Transports live in pkg/adapters/http and pkg/adapters/mcp. Agent state can be
persisted between runs with any ports.SnapshotStore (see WithSnapshotStore).
*/
package mesa
