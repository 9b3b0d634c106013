package ports

import (
	"context"
	"encoding/json"

	"github.com/aretw0/mesa/pkg/domain"
)

// SnapshotStore persists agent state between runs.
type SnapshotStore interface {
	// Save persists the snapshot under snapshot.Agent, replacing any previous one.
	Save(ctx context.Context, snapshot *domain.Snapshot) error

	// Load retrieves the snapshot of an agent.
	// Returns domain.ErrSnapshotNotFound if none was saved.
	Load(ctx context.Context, agent string) (*domain.Snapshot, error)

	// Delete removes the snapshot of an agent. Deleting a missing snapshot is not an error.
	Delete(ctx context.Context, agent string) error

	// List returns the agents that have a snapshot.
	List(ctx context.Context) ([]string, error)
}

// Snapshotter is implemented by agents whose state survives restarts.
type Snapshotter interface {
	// Snapshot returns a JSON-serializable copy of the agent state.
	Snapshot() (any, error)
	// Restore replaces the agent state with a previously saved one.
	Restore(data json.RawMessage) error
}
