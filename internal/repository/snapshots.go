package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

// ErrSnapshotNotFound is returned when no snapshot exists for a player.
var ErrSnapshotNotFound = errors.New("snapshot not found")

// SnapshotStore persists serialized player snapshots and unlock records.
type SnapshotStore struct {
	db     *DB
	logger *zap.Logger
}

// NewSnapshotStore creates a store over the database.
func NewSnapshotStore(db *DB, logger *zap.Logger) *SnapshotStore {
	return &SnapshotStore{db: db, logger: logger}
}

// EnsureSchema creates the store's tables if they do not exist.
func (s *SnapshotStore) EnsureSchema(ctx context.Context) error {
	_, err := s.db.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS player_snapshots (
			player_id  TEXT PRIMARY KEY,
			data       BYTEA NOT NULL,
			checksum   TEXT NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);
		CREATE TABLE IF NOT EXISTS unlock_records (
			player_id   TEXT NOT NULL,
			class_id    TEXT NOT NULL,
			template_id TEXT NOT NULL,
			cost        INT NOT NULL,
			unlocked_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			PRIMARY KEY (player_id, class_id, template_id)
		);
	`)
	if err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

// SaveSnapshot upserts a player's serialized snapshot and its checksum.
func (s *SnapshotStore) SaveSnapshot(ctx context.Context, playerID string, data []byte, checksum string) error {
	_, err := s.db.pool.Exec(ctx, `
		INSERT INTO player_snapshots (player_id, data, checksum, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (player_id) DO UPDATE
		SET data = EXCLUDED.data, checksum = EXCLUDED.checksum, updated_at = EXCLUDED.updated_at
	`, playerID, data, checksum, time.Now())
	if err != nil {
		return fmt.Errorf("save snapshot for %s: %w", playerID, err)
	}
	s.logger.Debug("snapshot saved",
		zap.String("player_id", playerID),
		zap.Int("bytes", len(data)),
	)
	return nil
}

// LoadSnapshot returns a player's serialized snapshot and its checksum.
func (s *SnapshotStore) LoadSnapshot(ctx context.Context, playerID string) ([]byte, string, error) {
	var data []byte
	var checksum string
	err := s.db.pool.QueryRow(ctx,
		`SELECT data, checksum FROM player_snapshots WHERE player_id = $1`,
		playerID,
	).Scan(&data, &checksum)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, "", ErrSnapshotNotFound
	}
	if err != nil {
		return nil, "", fmt.Errorf("load snapshot for %s: %w", playerID, err)
	}
	return data, checksum, nil
}

// RecordUnlock appends a permanent unlock record for audit and rebuild.
func (s *SnapshotStore) RecordUnlock(ctx context.Context, playerID, classID, templateID string, cost int) error {
	_, err := s.db.pool.Exec(ctx, `
		INSERT INTO unlock_records (player_id, class_id, template_id, cost)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (player_id, class_id, template_id) DO NOTHING
	`, playerID, classID, templateID, cost)
	if err != nil {
		return fmt.Errorf("record unlock %s for %s: %w", templateID, playerID, err)
	}
	return nil
}

// ListUnlocks returns the template IDs a player has unlocked, per class.
func (s *SnapshotStore) ListUnlocks(ctx context.Context, playerID string) (map[string][]string, error) {
	rows, err := s.db.pool.Query(ctx,
		`SELECT class_id, template_id FROM unlock_records WHERE player_id = $1 ORDER BY class_id, template_id`,
		playerID,
	)
	if err != nil {
		return nil, fmt.Errorf("list unlocks for %s: %w", playerID, err)
	}
	defer rows.Close()

	out := make(map[string][]string)
	for rows.Next() {
		var classID, templateID string
		if err := rows.Scan(&classID, &templateID); err != nil {
			return nil, fmt.Errorf("scan unlock row: %w", err)
		}
		out[classID] = append(out[classID], templateID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate unlock rows: %w", err)
	}
	return out, nil
}
