// Package store persists families, members and custom events in SQLite.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/tartampluch/onefam/internal/config"
	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when the addressed family, member or event does
// not exist (or belongs to another family).
var ErrNotFound = errors.New("record not found")

const schema = `
CREATE TABLE IF NOT EXISTS families (
	id         TEXT PRIMARY KEY,
	name       TEXT NOT NULL,
	created_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS people (
	id           TEXT PRIMARY KEY,
	family_id    TEXT NOT NULL REFERENCES families(id) ON DELETE CASCADE,
	first_name   TEXT NOT NULL,
	last_name    TEXT NOT NULL,
	address      TEXT,
	photo_base64 TEXT,
	birthday     TEXT,
	anniversary  TEXT,
	comments     TEXT,
	parent_id    TEXT,
	created_at   TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_people_family ON people(family_id);

CREATE TABLE IF NOT EXISTS events (
	id         TEXT PRIMARY KEY,
	family_id  TEXT NOT NULL REFERENCES families(id) ON DELETE CASCADE,
	member_id  TEXT,
	event_name TEXT NOT NULL,
	event_date TEXT NOT NULL,
	recurring  INTEGER NOT NULL DEFAULT 0,
	created_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_events_family ON events(family_id);
`

// Store is the SQLite-backed record store. It is safe for concurrent use.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens (or creates) the database at path and applies the schema.
// WAL mode and foreign keys are enabled on every pooled connection.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, config.DirPermUserRWX); err != nil {
			return nil, fmt.Errorf("%s: %w", config.ErrStoreOpen, err)
		}
	}

	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=foreign_keys(ON)&_pragma=busy_timeout(5000)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", config.ErrStoreOpen, err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), config.StoreTimeout)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%s: %w", config.ErrStoreOpen, err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%s: %w", config.ErrStoreMigrate, err)
	}

	slog.Info(config.MsgStoreOpened,
		config.LogKeyComponent, config.CompStore,
		config.LogKeyPath, path,
	)
	return &Store{db: db, now: func() time.Time { return time.Now().UTC() }}, nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	err := s.db.Close()
	slog.Info(config.MsgStoreClosed, config.LogKeyComponent, config.CompStore)
	return err
}

// Ping reports whether the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	ctx, cancel := bounded(ctx)
	defer cancel()
	return s.db.PingContext(ctx)
}

// bounded applies the store call timeout on top of the caller's context.
func bounded(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, config.StoreTimeout)
}

func queryErr(err error) error {
	return fmt.Errorf("%s: %w", config.ErrStoreQuery, err)
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func nullable(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	v := ns.String
	return &v
}

func nullString(p *string) sql.NullString {
	if p == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *p, Valid: true}
}

// rowScanner covers *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// familyExists checks the family inside q, which may be a transaction.
func familyExists(ctx context.Context, q interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}, familyID string) error {
	var one int
	err := q.QueryRowContext(ctx, `SELECT 1 FROM families WHERE id = ?`, familyID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return queryErr(err)
	}
	return nil
}
