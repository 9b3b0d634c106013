/*
Package ports defines the driven ports (interfaces) mesa depends on.

These interfaces decouple the agents from external implementations, allowing the host
to persist agent state in different backends and to hand human-facing messages to
whatever sender is available.

# Key Interfaces

  - SnapshotStore: persists and loads one Snapshot per agent (memory, file, redis, sqlite).
  - Snapshotter: implemented by agents whose state can be saved and restored.
  - Notifier: sends outbound messages (the messaging agent's delivery channel).
  - DistributedLocker: serializes snapshot writes across replicas sharing a store.
*/
package ports
