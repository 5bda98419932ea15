package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"quorum/internal/domain"
)

// SQLiteStore implements domain.SnapshotStore on a single upsert table.
// One row per actor identity; the data column always holds the latest full
// snapshot, written atomically by the upsert.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) a SQLite database at dbPath and runs
// the schema migration. ":memory:" is accepted for tests.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open snapshot db: %w", err)
	}
	// WAL mode for better concurrent reads.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}
	if err := migrate(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate snapshot db: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func migrate(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS snapshots (
			kind       TEXT NOT NULL,
			id         TEXT NOT NULL,
			data       TEXT NOT NULL,
			updated_at TEXT NOT NULL,
			PRIMARY KEY (kind, id)
		)
	`)
	return err
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Load returns the snapshot for (kind, id), with found=false when absent.
func (s *SQLiteStore) Load(ctx context.Context, kind domain.SnapshotKind, id string) (json.RawMessage, bool, error) {
	var data string
	err := s.db.QueryRowContext(ctx,
		"SELECT data FROM snapshots WHERE kind = ? AND id = ?", string(kind), id,
	).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, domain.NewDomainError("SQLiteStore.Load", domain.ErrSnapshotStore, err.Error())
	}
	return json.RawMessage(data), true, nil
}

// Store writes the full snapshot for (kind, id), replacing any previous one.
func (s *SQLiteStore) Store(ctx context.Context, kind domain.SnapshotKind, id string, data json.RawMessage) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO snapshots (kind, id, data, updated_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(kind, id) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at`,
		string(kind), id, string(data), now,
	)
	if err != nil {
		return domain.NewDomainError("SQLiteStore.Store", domain.ErrSnapshotStore, err.Error())
	}
	return nil
}
