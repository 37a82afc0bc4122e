// Package store provides SQLite-backed persistence for the ban list.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/dukeofxor/gotalker/pkg/model"
)

const dbTimeLayout = "2006-01-02 15:04:05"

// Store provides SQLite database access for the ban list.
type Store struct {
	db *sql.DB
}

// New opens (or creates) a SQLite database and runs migrations.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("store: open db: %w", err)
	}

	ctx := context.Background()

	// Enable WAL mode for better concurrent read performance
	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("store: set WAL: %w", err)
	}
	// Set busy timeout to avoid "database is locked" under concurrency
	if _, err := db.ExecContext(ctx, "PRAGMA busy_timeout=5000"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("store: set busy_timeout: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("store: migrate: %w", err)
	}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	const schema = `
	CREATE TABLE IF NOT EXISTS bans (
		address    TEXT NOT NULL PRIMARY KEY CHECK(length(address) > 0),
		reason     TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL
	);`
	_, err := s.db.Exec(schema)
	return err
}

// AddBan records a ban. Re-banning an address keeps the original row.
func (s *Store) AddBan(ban model.Ban) error {
	createdAt := ban.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	_, err := s.db.Exec(
		"INSERT OR IGNORE INTO bans (address, reason, created_at) VALUES (?, ?, ?)",
		ban.Address, ban.Reason, createdAt.UTC().Format(dbTimeLayout),
	)
	if err != nil {
		return fmt.Errorf("store: add ban: %w", err)
	}
	return nil
}

// ListBans returns all recorded bans.
func (s *Store) ListBans() ([]model.Ban, error) {
	rows, err := s.db.Query("SELECT address, reason, created_at FROM bans ORDER BY created_at, address")
	if err != nil {
		return nil, fmt.Errorf("store: list bans: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var bans []model.Ban
	for rows.Next() {
		var b model.Ban
		var createdAt string
		if err := rows.Scan(&b.Address, &b.Reason, &createdAt); err != nil {
			return nil, fmt.Errorf("store: scan ban: %w", err)
		}
		b.CreatedAt, _ = time.Parse(dbTimeLayout, createdAt)
		bans = append(bans, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: list bans: %w", err)
	}
	return bans, nil
}

// Compile-time check: *Store implements BanStore.
var _ BanStore = (*Store)(nil)
