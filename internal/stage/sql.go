package stage

import (
	"context"
	"coveriq/internal/logging"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	_ "modernc.org/sqlite"
)

// SQLite driver names accepted by NewSQLStore.
const (
	DriverSQLite  = "sqlite"  // modernc.org/sqlite, no cgo
	DriverSQLite3 = "sqlite3" // github.com/mattn/go-sqlite3, requires cgo
)

const schema = `
CREATE TABLE IF NOT EXISTS stage_entries (
	session_id TEXT NOT NULL,
	stage      TEXT NOT NULL,
	version    INTEGER NOT NULL,
	data       TEXT NOT NULL,
	updated_at INTEGER NOT NULL,
	PRIMARY KEY (session_id, stage, version)
);`

// SQLStore keeps stage versions in a SQLite database.
type SQLStore struct {
	db     *sql.DB
	mu     sync.Mutex
	driver string
	dsn    string
}

// NewSQLStore opens (creating if needed) the database at dsn.
// Use ":memory:" for a private in-memory database.
func NewSQLStore(driver, dsn string) (*SQLStore, error) {
	timer := logging.StartTimer(logging.CategoryStore, "NewSQLStore")
	defer timer.Stop()

	if dsn == "" {
		return nil, fmt.Errorf("stage: database path required")
	}
	if dsn != ":memory:" && !strings.HasPrefix(dsn, "file:") {
		if err := os.MkdirAll(filepath.Dir(dsn), 0755); err != nil {
			return nil, fmt.Errorf("stage: create database directory: %w", err)
		}
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("stage: open %s database: %w", driver, err)
	}
	// A single connection keeps ":memory:" databases alive and serializes writers.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		logging.StoreDebug("Failed to set sqlite busy_timeout: %v", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("stage: initialize schema: %w", err)
	}

	logging.Store("Stage store ready (driver=%s, dsn=%s)", driver, dsn)
	return &SQLStore{db: db, driver: driver, dsn: dsn}, nil
}

func (s *SQLStore) Put(ctx context.Context, session string, st Stage, value interface{}) (int64, error) {
	if err := checkKey(session, st); err != nil {
		return 0, err
	}
	data, err := encode(value)
	if err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("stage: begin: %w", err)
	}
	defer tx.Rollback()

	var version int64
	err = tx.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(version), 0) + 1 FROM stage_entries WHERE session_id = ? AND stage = ?`,
		session, string(st),
	).Scan(&version)
	if err != nil {
		return 0, fmt.Errorf("stage: next version: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO stage_entries (session_id, stage, version, data, updated_at) VALUES (?, ?, ?, ?, ?)`,
		session, string(st), version, string(data), time.Now().UTC().UnixNano(),
	)
	if err != nil {
		logging.Get(logging.CategoryStore).Error("Failed to store %s for session %s: %v", st, session, err)
		return 0, fmt.Errorf("stage: insert: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("stage: commit: %w", err)
	}

	logging.StoreDebug("Stored %s v%d for session %s (%d bytes)", st, version, session, len(data))
	return version, nil
}

func (s *SQLStore) Get(ctx context.Context, session string, st Stage) (*Entry, error) {
	return s.GetVersion(ctx, session, st, 0)
}

// GetVersion returns the given version; version 0 means latest.
func (s *SQLStore) GetVersion(ctx context.Context, session string, st Stage, version int64) (*Entry, error) {
	if err := checkKey(session, st); err != nil {
		return nil, err
	}

	query := `SELECT version, data, updated_at FROM stage_entries
		WHERE session_id = ? AND stage = ? ORDER BY version DESC LIMIT 1`
	args := []interface{}{session, string(st)}
	if version != 0 {
		query = `SELECT version, data, updated_at FROM stage_entries
			WHERE session_id = ? AND stage = ? AND version = ?`
		args = append(args, version)
	}

	var (
		data    string
		updated int64
		e       = Entry{Session: session, Stage: st}
	)
	err := s.db.QueryRowContext(ctx, query, args...).Scan(&e.Version, &data, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		if version != 0 {
			return nil, fmt.Errorf("%w: %s v%d", ErrNotFound, st, version)
		}
		return nil, fmt.Errorf("%w: %s", ErrNotFound, st)
	}
	if err != nil {
		return nil, fmt.Errorf("stage: query %s: %w", st, err)
	}
	e.Data = []byte(data)
	e.UpdatedAt = time.Unix(0, updated).UTC()
	return &e, nil
}

// Sessions lists the sessions that have stored data, oldest first.
func (s *SQLStore) Sessions(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT session_id FROM stage_entries GROUP BY session_id ORDER BY MIN(updated_at), session_id`)
	if err != nil {
		return nil, fmt.Errorf("stage: list sessions: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("stage: scan session: %w", err)
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

func (s *SQLStore) Close() error {
	return s.db.Close()
}

var _ Store = (*SQLStore)(nil)
