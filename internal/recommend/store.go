package recommend

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/motomercado/search-platform/pkg/postgres"
	"github.com/motomercado/search-platform/pkg/resilience"
)

// SnapshotStore persists model snapshots to Postgres so a restarted service
// can resume with warm recommendations instead of a cold model.
type SnapshotStore struct {
	db     *postgres.Client
	logger *slog.Logger
}

func NewSnapshotStore(db *postgres.Client) *SnapshotStore {
	return &SnapshotStore{
		db:     db,
		logger: slog.Default().With("component", "snapshot-store"),
	}
}

const createSnapshotTable = `
CREATE TABLE IF NOT EXISTS model_snapshots (
	id         BIGSERIAL PRIMARY KEY,
	taken_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
	payload    JSONB NOT NULL
)`

// Migrate creates the snapshot table if missing.
func (s *SnapshotStore) Migrate(ctx context.Context) error {
	_, err := s.db.DB.ExecContext(ctx, createSnapshotTable)
	if err != nil {
		return fmt.Errorf("creating model_snapshots table: %w", err)
	}
	return nil
}

// Save writes a snapshot, retrying transient failures with backoff.
func (s *SnapshotStore) Save(ctx context.Context, snap *ModelSnapshot) error {
	payload, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshaling model snapshot: %w", err)
	}
	start := time.Now()
	err = resilience.Retry(ctx, "snapshot-save", resilience.RetryConfig{}, func() error {
		_, execErr := s.db.DB.ExecContext(ctx,
			`INSERT INTO model_snapshots (payload) VALUES ($1)`, payload)
		return execErr
	})
	if err != nil {
		return fmt.Errorf("saving model snapshot: %w", err)
	}
	s.logger.Info("model snapshot saved",
		"bytes", len(payload),
		"duration", time.Since(start),
	)
	return nil
}

// LoadLatest returns the most recent snapshot, or nil when none exists.
func (s *SnapshotStore) LoadLatest(ctx context.Context) (*ModelSnapshot, error) {
	var payload []byte
	err := resilience.Retry(ctx, "snapshot-load", resilience.RetryConfig{}, func() error {
		row := s.db.DB.QueryRowContext(ctx,
			`SELECT payload FROM model_snapshots ORDER BY id DESC LIMIT 1`)
		return row.Scan(&payload)
	})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("loading model snapshot: %w", err)
	}
	var snap ModelSnapshot
	if err := json.Unmarshal(payload, &snap); err != nil {
		return nil, fmt.Errorf("unmarshaling model snapshot: %w", err)
	}
	return &snap, nil
}

// Prune deletes all but the newest keep snapshots.
func (s *SnapshotStore) Prune(ctx context.Context, keep int) error {
	if keep <= 0 {
		keep = 1
	}
	_, err := s.db.DB.ExecContext(ctx, `
		DELETE FROM model_snapshots
		WHERE id NOT IN (SELECT id FROM model_snapshots ORDER BY id DESC LIMIT $1)`, keep)
	if err != nil {
		return fmt.Errorf("pruning model snapshots: %w", err)
	}
	return nil
}
