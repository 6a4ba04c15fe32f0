package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

/*
Responsibilities
- Open the shared database and run migrations
- Own the schema for frontier, snapshots, payloads, rate windows, events

The store knows nothing about crawl or replay semantics; repositories
in other packages issue their own statements against DB.SQL.

All timestamps are stored as INTEGER microseconds since the Unix epoch,
UTC. Durations are milliseconds.
*/

type DB struct {
	SQL *sql.DB
}

func Open(path string) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", path)
	s, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	// Allow concurrent readers while keeping WAL + busy_timeout.
	// Writes serialize inside sqlite; that serialization is what makes
	// the frontier's one-statement claim atomic.
	s.SetMaxOpenConns(4)
	s.SetMaxIdleConns(4)

	d := &DB{SQL: s}
	if err := d.migrate(); err != nil {
		_ = s.Close()
		return nil, err
	}
	return d, nil
}

func (d *DB) Close() error { return d.SQL.Close() }

func (d *DB) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS snapshots (
			id TEXT PRIMARY KEY,
			url TEXT NOT NULL,
			timestamp INTEGER NOT NULL,
			container_id TEXT NOT NULL,
			"offset" INTEGER NOT NULL,
			length INTEGER NOT NULL,
			content_digest TEXT NOT NULL,
			status INTEGER NOT NULL,
			media_type TEXT NOT NULL,
			payload_digest TEXT
		);`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_snapshots_url_time ON snapshots(url, timestamp);`,

		`CREATE TABLE IF NOT EXISTS payloads (
			digest TEXT PRIMARY KEY,
			container_id TEXT NOT NULL,
			"offset" INTEGER NOT NULL,
			size INTEGER NOT NULL
		);`,

		`CREATE TABLE IF NOT EXISTS url_frontier (
			url TEXT PRIMARY KEY,
			domain TEXT NOT NULL,
			priority INTEGER NOT NULL DEFAULT 0,
			depth INTEGER NOT NULL DEFAULT 0,
			created_at INTEGER NOT NULL,
			next_fetch_at INTEGER NOT NULL,
			leased_until INTEGER,
			fetch_attempts INTEGER NOT NULL DEFAULT 0
		);`,
		`CREATE INDEX IF NOT EXISTS idx_frontier_claim ON url_frontier(next_fetch_at, priority, created_at);`,

		`CREATE TABLE IF NOT EXISTS rate_limits (
			domain TEXT NOT NULL,
			region TEXT NOT NULL,
			window_start INTEGER NOT NULL,
			request_count INTEGER NOT NULL,
			PRIMARY KEY(domain, region, window_start)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_rate_limits_window ON rate_limits(window_start);`,

		`CREATE TABLE IF NOT EXISTS crawl_events (
			domain TEXT NOT NULL,
			url TEXT NOT NULL,
			status TEXT NOT NULL,
			http_status INTEGER,
			duration_ms INTEGER NOT NULL,
			at INTEGER NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_crawl_events_domain_at ON crawl_events(domain, at);`,
	}
	for _, q := range stmts {
		if _, err := d.SQL.Exec(q); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}
