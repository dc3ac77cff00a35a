package database

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// SQLiteDB is a single-writer local database used when no PostgreSQL is configured.
type SQLiteDB struct {
	DB *sql.DB
}

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS channels (
	tenant_id         TEXT NOT NULL,
	channel_id        TEXT NOT NULL,
	title             TEXT NOT NULL,
	description       TEXT NOT NULL DEFAULT '',
	thumbnail_url     TEXT NOT NULL DEFAULT '',
	channel_url       TEXT NOT NULL DEFAULT '',
	subscriber_count  INTEGER NOT NULL DEFAULT 0,
	video_count       INTEGER NOT NULL DEFAULT 0,
	total_views       INTEGER NOT NULL DEFAULT 0,
	published_at      TEXT NOT NULL,
	first_video_date  TEXT NOT NULL,
	latest_video      TEXT,
	growth_rate       INTEGER NOT NULL DEFAULT 0,
	relevance_score   INTEGER NOT NULL DEFAULT 0,
	keywords          TEXT NOT NULL DEFAULT '[]',
	status            TEXT NOT NULL DEFAULT '',
	rejection_reason  TEXT NOT NULL DEFAULT '',
	status_updated_at TEXT,
	created_at        TEXT NOT NULL,
	PRIMARY KEY (tenant_id, channel_id)
);
CREATE INDEX IF NOT EXISTS idx_channels_status ON channels (tenant_id, status);
CREATE TABLE IF NOT EXISTS tracking_snapshots (
	tenant_id        TEXT NOT NULL,
	channel_id       TEXT NOT NULL,
	snapshot_date    TEXT NOT NULL,
	subscriber_count INTEGER NOT NULL,
	video_count      INTEGER NOT NULL,
	total_views      INTEGER NOT NULL,
	recorded_at      TEXT NOT NULL,
	PRIMARY KEY (tenant_id, channel_id, snapshot_date)
);`

// NewSQLiteDB opens (or creates) the database file and applies the schema.
func NewSQLiteDB(ctx context.Context, path string) (*SQLiteDB, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return nil, fmt.Errorf("failed to create sqlite dir %s: %w", dir, err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite db: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to init sqlite schema: %w", err)
	}

	return &SQLiteDB{DB: db}, nil
}

// Close closes the database
func (s *SQLiteDB) Close() error {
	return s.DB.Close()
}

// Health checks the database connection
func (s *SQLiteDB) Health(ctx context.Context) error {
	return s.DB.PingContext(ctx)
}
