// internal/store/sqlite.go
//
// SQLite-backed Store. Each record is one row in game_states, created by the
// migrations in internal/db. Upserts keep a single row per key.

package store

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

type sqliteStore struct {
	db *sql.DB
}

// NewSQLiteStore wraps an opened, migrated database handle.
func NewSQLiteStore(db *sql.DB) Store {
	return &sqliteStore{db: db}
}

func (s *sqliteStore) Save(ctx context.Context, key string, rec *Record) error {
	b, err := encode(rec)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
        INSERT INTO game_states (key, payload, updated_at) VALUES (?, ?, ?)
        ON CONFLICT(key) DO UPDATE SET payload=excluded.payload, updated_at=excluded.updated_at`,
		key, string(b), time.Now().UTC().Format(time.RFC3339),
	)
	return err
}

func (s *sqliteStore) Load(ctx context.Context, key string) (*Record, error) {
	var payload string
	err := s.db.QueryRowContext(ctx, `SELECT payload FROM game_states WHERE key=?`, key).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return decode([]byte(payload))
}

func (s *sqliteStore) Delete(ctx context.Context, key string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM game_states WHERE key=?`, key)
	return err
}
