package db

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"

	"lettrly/internal/config"
)

type Database struct {
	Conn   *sql.DB
	Driver string
}

// driverNames maps config driver names to registered database/sql drivers.
var driverNames = map[string]string{
	"postgres": "pgx",
	"sqlite":   "sqlite",
}

func NewDatabase(cfg config.Database) (*Database, error) {
	name, ok := driverNames[cfg.Driver]
	if !ok {
		return nil, fmt.Errorf("unknown database driver %q", cfg.Driver)
	}

	dsn := cfg.DSN
	if cfg.Driver == "sqlite" {
		dsn = sqliteDSN(dsn)
	}

	conn, err := sql.Open(name, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", cfg.Driver, err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := conn.PingContext(ctx); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("ping %s: %w", cfg.Driver, err)
	}

	if cfg.Driver == "sqlite" {
		// A single writer keeps SQLite from returning SQLITE_BUSY under the poll loops.
		conn.SetMaxOpenConns(1)
	} else {
		conn.SetMaxOpenConns(cfg.MaxOpenConns)
		conn.SetMaxIdleConns(cfg.MaxIdleConns)
		conn.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}
	return &Database{Conn: conn, Driver: cfg.Driver}, nil
}

// sqliteDSN turns on foreign keys, which SQLite leaves off per connection.
// Account deletion relies on ON DELETE CASCADE.
func sqliteDSN(dsn string) string {
	if strings.Contains(dsn, "foreign_keys") {
		return dsn
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + "_pragma=foreign_keys(1)"
}

func (d *Database) Close() error {
	return d.Conn.Close()
}

// AutoMigrate creates the tables if they do not exist yet.
func (d *Database) AutoMigrate(ctx context.Context) error {
	queries := postgresSchema
	if d.Driver == "sqlite" {
		queries = sqliteSchema
	}

	for _, query := range queries {
		if _, err := d.Conn.ExecContext(ctx, query); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}
	return nil
}

var postgresSchema = []string{
	`CREATE TABLE IF NOT EXISTS users (
        id            UUID PRIMARY KEY,
        email         VARCHAR(255) UNIQUE NOT NULL,
        username      VARCHAR(30) UNIQUE NOT NULL,
        display_name  VARCHAR(100) NOT NULL DEFAULT '',
        avatar_url    VARCHAR(500) NOT NULL DEFAULT '',
        password_hash VARCHAR(255) NOT NULL,
        created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
    )`,

	`ALTER TABLE users ADD COLUMN IF NOT EXISTS avatar_url VARCHAR(500) NOT NULL DEFAULT ''`,

	`CREATE TABLE IF NOT EXISTS letters (
        id                  UUID PRIMARY KEY,
        content             TEXT NOT NULL,
        sender_id           UUID REFERENCES users(id) ON DELETE SET NULL,
        sender_display_name VARCHAR(100),
        recipient_id        UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
        is_anonymous        BOOLEAN NOT NULL DEFAULT TRUE,
        is_read             BOOLEAN NOT NULL DEFAULT FALSE,
        is_favorited        BOOLEAN NOT NULL DEFAULT FALSE,
        created_at          TIMESTAMPTZ NOT NULL DEFAULT NOW(),
        read_at             TIMESTAMPTZ
    )`,

	`CREATE INDEX IF NOT EXISTS idx_letters_recipient_created
        ON letters (recipient_id, created_at DESC)`,
}

var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS users (
        id            TEXT PRIMARY KEY,
        email         TEXT UNIQUE NOT NULL,
        username      TEXT UNIQUE NOT NULL,
        display_name  TEXT NOT NULL DEFAULT '',
        avatar_url    TEXT NOT NULL DEFAULT '',
        password_hash TEXT NOT NULL,
        created_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
    )`,

	`CREATE TABLE IF NOT EXISTS letters (
        id                  TEXT PRIMARY KEY,
        content             TEXT NOT NULL,
        sender_id           TEXT REFERENCES users(id) ON DELETE SET NULL,
        sender_display_name TEXT,
        recipient_id        TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
        is_anonymous        INTEGER NOT NULL DEFAULT 1,
        is_read             INTEGER NOT NULL DEFAULT 0,
        is_favorited        INTEGER NOT NULL DEFAULT 0,
        created_at          DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
        read_at             DATETIME
    )`,

	`CREATE INDEX IF NOT EXISTS idx_letters_recipient_created
        ON letters (recipient_id, created_at DESC)`,
}
