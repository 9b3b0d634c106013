/*
Package domain contains the wire and domain models shared by every agent hosted by mesa.

It defines the JSON-RPC 2.0 envelopes exchanged with the dispatcher, the error object
used for both transport and domain failures, the capability profile returned by the
discovery method, and the snapshot record used to persist agent state. The package is
kept free of I/O so that transports, stores and agents can all depend on it.

# Key Entities

  - Request / Response: the JSON-RPC 2.0 envelopes. A Response carries exactly one of
    result or error on the wire.
  - RPCError: the error object. It implements error so handlers can return it directly.
  - Profile: the capability card of an agent instance.
  - Snapshot: the serialized state of one agent, as written to a SnapshotStore.
*/
package domain
