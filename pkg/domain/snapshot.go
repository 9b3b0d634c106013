package domain

import (
	"encoding/json"
	"time"
)

// Snapshot is the persisted state of one agent.
type Snapshot struct {
	Agent   string          `json:"agent"`
	SavedAt time.Time       `json:"saved_at"`
	Data    json.RawMessage `json:"data"`
}

// NewSnapshot marshals state into a snapshot for the given agent.
func NewSnapshot(agent string, state any) (*Snapshot, error) {
	data, err := json.Marshal(state)
	if err != nil {
		return nil, err
	}
	return &Snapshot{Agent: agent, SavedAt: time.Now().UTC(), Data: data}, nil
}

// Clone returns a deep copy of the snapshot.
func (s *Snapshot) Clone() *Snapshot {
	if s == nil {
		return nil
	}
	c := *s
	c.Data = append(json.RawMessage(nil), s.Data...)
	return &c
}
