package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/lysyi3m/bruinbrief/app/news"
)

var _ MetadataRepository = (*MetadataStore)(nil)

// MetadataStore keeps pipeline bookkeeping as JSON values in a key/value table
type MetadataStore struct {
	db *DB
}

func NewMetadataStore(db *DB) *MetadataStore {
	return &MetadataStore{db: db}
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// GetCheckpoint returns nil when no fetch has been recorded yet
func (s *MetadataStore) GetCheckpoint(ctx context.Context) (*float64, error) {
	var checkpoint float64
	found, err := s.get(ctx, checkpointKey, &checkpoint)
	if err != nil || !found {
		return nil, err
	}
	return &checkpoint, nil
}

func (s *MetadataStore) SetCheckpoint(ctx context.Context, checkpoint float64) error {
	return put(ctx, s.db, checkpointKey, checkpoint, "Unix time of the last successful source fetch")
}

func (s *MetadataStore) GetStats(ctx context.Context) (news.Stats, error) {
	var stats news.Stats
	if _, err := s.get(ctx, statsKey, &stats); err != nil {
		return news.Stats{}, err
	}
	return stats, nil
}

func (s *MetadataStore) SetStats(ctx context.Context, stats news.Stats) error {
	return put(ctx, s.db, statsKey, stats, "Cumulative pipeline counters")
}

// SaveProgress writes stats and then the checkpoint in one transaction.
// A nil checkpoint leaves the stored one untouched.
func (s *MetadataStore) SaveProgress(ctx context.Context, stats news.Stats, checkpoint *float64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := put(ctx, tx, statsKey, stats, "Cumulative pipeline counters"); err != nil {
		return err
	}
	if checkpoint != nil {
		if err := put(ctx, tx, checkpointKey, *checkpoint, "Unix time of the last successful source fetch"); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit progress: %w", err)
	}
	return nil
}

func (s *MetadataStore) get(ctx context.Context, key string, dest any) (bool, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM metadata WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to get metadata %s: %w", key, err)
	}

	if err := json.Unmarshal([]byte(value), dest); err != nil {
		return false, fmt.Errorf("failed to decode metadata %s: %w", key, err)
	}
	return true, nil
}

func put(ctx context.Context, db execer, key string, value any, description string) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to encode metadata %s: %w", key, err)
	}

	_, err = db.ExecContext(ctx, `
		INSERT INTO metadata (key, value, description, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (key) DO UPDATE SET
			value = excluded.value,
			description = excluded.description,
			updated_at = excluded.updated_at
	`, key, string(data), description, toMillis(time.Now()))
	if err != nil {
		return fmt.Errorf("failed to set metadata %s: %w", key, err)
	}
	return nil
}
