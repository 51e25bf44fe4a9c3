//go:build sqlite

package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	_ "modernc.org/sqlite"
)

// SQLiteHistoryStore persists per-run generation history to a SQLite
// database via the pure-Go modernc.org/sqlite driver, so a build can
// ship without cgo. It is only compiled in with the sqlite build tag;
// MemoryHistoryStore is the default.
type SQLiteHistoryStore struct {
	path string

	mu sync.RWMutex
	db *sql.DB
}

// NewSQLiteHistoryStore returns a store backed by the database file at
// path. The file and its schema are created on the first Init call.
func NewSQLiteHistoryStore(path string) *SQLiteHistoryStore {
	return &SQLiteHistoryStore{path: path}
}

// newSQLiteHistoryStore is NewHistoryStore's sqlite-tagged backend: it
// constructs and initializes the store in one call so the factory's
// signature stays backend-agnostic.
func newSQLiteHistoryStore(path string) (HistoryStore, error) {
	s := NewSQLiteHistoryStore(path)
	if err := s.Init(context.Background()); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *SQLiteHistoryStore) Init(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.path == "" {
		return errors.New("storage: sqlite path is required")
	}
	if s.db != nil {
		return nil
	}

	db, err := sql.Open("sqlite", s.path)
	if err != nil {
		return fmt.Errorf("storage: open sqlite database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return fmt.Errorf("storage: ping sqlite database: %w", err)
	}
	if err := createHistoryTable(ctx, db); err != nil {
		_ = db.Close()
		return err
	}

	s.db = db
	return nil
}

func (s *SQLiteHistoryStore) AppendHistory(ctx context.Context, runID string, record HistoryRecord) error {
	db, err := s.getDB()
	if err != nil {
		return err
	}

	payload, err := json.Marshal(record.Stats)
	if err != nil {
		return fmt.Errorf("storage: encode history record: %w", err)
	}

	_, err = db.ExecContext(ctx, `
		INSERT INTO history (run_id, generation, payload)
		VALUES (?, ?, ?)
	`, runID, record.Generation, payload)
	if err != nil {
		return fmt.Errorf("storage: append history: %w", err)
	}
	return nil
}

func (s *SQLiteHistoryStore) GetHistory(ctx context.Context, runID string) ([]HistoryRecord, error) {
	db, err := s.getDB()
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx, `
		SELECT generation, payload FROM history WHERE run_id = ? ORDER BY generation ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("storage: query history: %w", err)
	}
	defer rows.Close()

	var records []HistoryRecord
	for rows.Next() {
		var rec HistoryRecord
		var payload []byte
		if err := rows.Scan(&rec.Generation, &payload); err != nil {
			return nil, fmt.Errorf("storage: scan history row: %w", err)
		}
		if err := json.Unmarshal(payload, &rec.Stats); err != nil {
			return nil, fmt.Errorf("storage: decode history row: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("storage: iterate history rows: %w", err)
	}
	return records, nil
}

func (s *SQLiteHistoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

func (s *SQLiteHistoryStore) getDB() (*sql.DB, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.db == nil {
		return nil, errors.New("storage: sqlite history store is not initialized")
	}
	return s.db, nil
}

func createHistoryTable(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS history (
			run_id TEXT NOT NULL,
			generation INTEGER NOT NULL,
			payload BLOB NOT NULL,
			PRIMARY KEY (run_id, generation)
		);
	`)
	return err
}
