/*
Package rpc implements the JSON-RPC 2.0 dispatcher shared by every agent.

A Dispatcher owns one registry.Registry and one auth.Authenticator. Dispatch runs a
strictly ordered pipeline and always returns a fully formed domain.Response:

 1. authenticate the credential (-32001 on failure, id null);
 2. parse and validate the envelope (-32700 for malformed JSON, -32600 for a
    well-formed payload that is not a valid request, both with id null);
 3. look up the method (-32601, echoing the request id);
 4. invoke the handler with params, or an empty object when params are absent;
 5. wrap the result, or the error: a *domain.RPCError is returned unchanged and any
    other error, including a recovered panic, becomes -32603 with the message in data.

Typed wraps a handler with schema validation and decodes the params into a struct,
so domain handlers never touch untyped maps.
*/
package rpc
