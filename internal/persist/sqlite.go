package persist

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"github.com/AngelCh415/dmlab/internal/models"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS state_snapshots (
	id             INTEGER PRIMARY KEY AUTOINCREMENT,
	schema_version INTEGER NOT NULL,
	saved_at       TEXT    NOT NULL,
	data           TEXT    NOT NULL
)`

// SQLiteStore appends one snapshot per save and loads the newest.
type SQLiteStore struct {
	db   *sql.DB
	keep int
}

func OpenSQLite(ctx context.Context, path string, keep int) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)
	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}
	return &SQLiteStore{db: db, keep: keep}, nil
}

func (s *SQLiteStore) Name() string { return "sqlite" }

func (s *SQLiteStore) Load(ctx context.Context) ([]byte, error) {
	var data string
	err := s.db.QueryRowContext(ctx, "SELECT data FROM state_snapshots ORDER BY id DESC LIMIT 1").Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNoState
	}
	if err != nil {
		return nil, err
	}
	return []byte(data), nil
}

func (s *SQLiteStore) Save(ctx context.Context, env models.PersistedState) error {
	b, err := json.Marshal(env)
	if err != nil {
		return err
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if _, err := tx.ExecContext(ctx,
		"INSERT INTO state_snapshots (schema_version, saved_at, data) VALUES (?, ?, ?)",
		env.SchemaVersion, env.SavedAt, string(b),
	); err != nil {
		return fmt.Errorf("insert snapshot: %w", err)
	}
	if s.keep > 0 {
		if _, err := tx.ExecContext(ctx,
			"DELETE FROM state_snapshots WHERE id NOT IN (SELECT id FROM state_snapshots ORDER BY id DESC LIMIT ?)",
			s.keep,
		); err != nil {
			return fmt.Errorf("prune snapshots: %w", err)
		}
	}
	return tx.Commit()
}

// Count returns the number of stored snapshots.
func (s *SQLiteStore) Count(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, "SELECT count(*) FROM state_snapshots").Scan(&n)
	return n, err
}

func (s *SQLiteStore) Close() error { return s.db.Close() }
