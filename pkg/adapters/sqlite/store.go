package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/aretw0/mesa/pkg/domain"
	_ "modernc.org/sqlite"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS snapshots (
	agent    TEXT PRIMARY KEY,
	saved_at TEXT NOT NULL,
	data     BLOB NOT NULL
);`

// Store implements ports.SnapshotStore on a SQLite database.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the database at path and ensures the schema exists.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to ensure database directory: %w", err)
		}
	}
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite: %w", err)
	}
	// One writer keeps SQLite from returning SQLITE_BUSY under concurrent saves.
	db.SetMaxOpenConns(1)
	return NewFromDB(db)
}

// NewFromDB wraps an existing connection and ensures the schema exists.
func NewFromDB(db *sql.DB) (*Store, error) {
	if _, err := db.Exec(schemaSQL); err != nil {
		return nil, fmt.Errorf("failed to migrate snapshots table: %w", err)
	}
	return &Store{db: db}, nil
}

// Save upserts the snapshot row of an agent.
func (s *Store) Save(ctx context.Context, snapshot *domain.Snapshot) error {
	savedAt := snapshot.SavedAt
	if savedAt.IsZero() {
		savedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
INSERT INTO snapshots (agent, saved_at, data) VALUES (?, ?, ?)
ON CONFLICT(agent) DO UPDATE SET saved_at = excluded.saved_at, data = excluded.data`,
		snapshot.Agent, savedAt.Format(time.RFC3339Nano), []byte(snapshot.Data))
	if err != nil {
		return fmt.Errorf("failed to save snapshot: %w", err)
	}
	return nil
}

// Load reads the snapshot of an agent.
func (s *Store) Load(ctx context.Context, agent string) (*domain.Snapshot, error) {
	var (
		savedAt string
		data    []byte
	)
	err := s.db.QueryRowContext(ctx, `SELECT saved_at, data FROM snapshots WHERE agent = ?`, agent).Scan(&savedAt, &data)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrSnapshotNotFound
		}
		return nil, fmt.Errorf("failed to load snapshot: %w", err)
	}

	ts, err := time.Parse(time.RFC3339Nano, savedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to parse saved_at: %w", err)
	}
	return &domain.Snapshot{Agent: agent, SavedAt: ts, Data: data}, nil
}

// Delete removes the snapshot row.
func (s *Store) Delete(ctx context.Context, agent string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM snapshots WHERE agent = ?`, agent); err != nil {
		return fmt.Errorf("failed to delete snapshot: %w", err)
	}
	return nil
}

// List returns the agents with a snapshot, sorted.
func (s *Store) List(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT agent FROM snapshots ORDER BY agent`)
	if err != nil {
		return nil, fmt.Errorf("failed to list snapshots: %w", err)
	}
	defer rows.Close()

	agents := []string{}
	for rows.Next() {
		var agent string
		if err := rows.Scan(&agent); err != nil {
			return nil, err
		}
		agents = append(agents, agent)
	}
	return agents, rows.Err()
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}
