// Package sqlite stores progress and definitions in an embedded SQLite file.
// It serves single-instance deployments and local development.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // pure-Go driver, registers "sqlite"

	"github.com/alem-hub/learning-tracker/internal/domain/shared"
)

// DB wraps a SQLite connection.
type DB struct {
	db *sql.DB
}

// Open creates or opens the database file at path and applies migrations.
// WAL mode and a busy timeout are enabled.
func Open(ctx context.Context, path string) (*DB, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
	}

	dsn := "file:" + path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(on)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// SQLite has a single writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	d := &DB{db: db}
	if _, err := d.Migrate(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return d, nil
}

// Close cleanly shuts down the database.
func (d *DB) Close() error {
	return d.db.Close()
}

// Ping checks database connectivity.
func (d *DB) Ping(ctx context.Context) error {
	return d.db.PingContext(ctx)
}

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATIONS
// ══════════════════════════════════════════════════════════════════════════════

var migrations = []struct {
	version int
	name    string
	stmts   []string
}{
	{1, "create_user_progress", []string{
		`CREATE TABLE IF NOT EXISTS user_progress (
			user_id           TEXT PRIMARY KEY,
			display_name      TEXT NOT NULL DEFAULT '',
			total_xp          INTEGER NOT NULL DEFAULT 0 CHECK (total_xp >= 0),
			current_streak    INTEGER NOT NULL DEFAULT 0,
			longest_streak    INTEGER NOT NULL DEFAULT 0,
			last_activity_at  INTEGER,
			unlocked_badges   TEXT NOT NULL DEFAULT '[]',
			completed_lessons TEXT NOT NULL DEFAULT '[]',
			completed_quests  TEXT NOT NULL DEFAULT '[]',
			version           INTEGER NOT NULL DEFAULT 1,
			created_at        INTEGER NOT NULL,
			updated_at        INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_user_progress_xp ON user_progress(total_xp DESC, user_id)`,
	}},
	{2, "create_definitions", []string{
		`CREATE TABLE IF NOT EXISTS lessons (
			id                     TEXT PRIMARY KEY,
			title                  TEXT NOT NULL,
			category               TEXT NOT NULL DEFAULT '',
			difficulty             INTEGER NOT NULL,
			xp_reward              INTEGER NOT NULL,
			estimated_time_minutes INTEGER,
			active                 INTEGER NOT NULL DEFAULT 1,
			sort_order             INTEGER NOT NULL DEFAULT 0
		)`,
		`CREATE INDEX IF NOT EXISTS idx_lessons_order ON lessons(sort_order, id)`,
		`CREATE TABLE IF NOT EXISTS quests (
			id           TEXT PRIMARY KEY,
			title        TEXT NOT NULL,
			difficulty   INTEGER NOT NULL,
			xp_reward    INTEGER NOT NULL,
			badge_reward TEXT NOT NULL DEFAULT '',
			active       INTEGER NOT NULL DEFAULT 1
		)`,
		`CREATE TABLE IF NOT EXISTS badges (
			id             TEXT PRIMARY KEY,
			name           TEXT NOT NULL DEFAULT '',
			description    TEXT NOT NULL DEFAULT '',
			badge_type     TEXT NOT NULL,
			required_value INTEGER,
			rarity         TEXT NOT NULL DEFAULT '',
			category       TEXT NOT NULL DEFAULT '',
			active         INTEGER NOT NULL DEFAULT 1,
			position       INTEGER NOT NULL
		)`,
	}},
}

// Migrate applies pending migrations and returns how many ran.
func (d *DB) Migrate(ctx context.Context) (int, error) {
	if _, err := d.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
		version    INTEGER PRIMARY KEY,
		name       TEXT NOT NULL,
		applied_at INTEGER NOT NULL
	)`); err != nil {
		return 0, err
	}

	applied := 0
	for _, m := range migrations {
		var exists bool
		err := d.db.QueryRowContext(ctx,
			`SELECT EXISTS (SELECT 1 FROM schema_migrations WHERE version = ?)`, m.version).Scan(&exists)
		if err != nil {
			return applied, err
		}
		if exists {
			continue
		}

		err = d.withTx(ctx, func(tx *sql.Tx) error {
			for _, stmt := range m.stmts {
				if _, err := tx.ExecContext(ctx, stmt); err != nil {
					return err
				}
			}
			_, err := tx.ExecContext(ctx,
				`INSERT INTO schema_migrations (version, name, applied_at) VALUES (?, ?, ?)`,
				m.version, m.name, time.Now().Unix())
			return err
		})
		if err != nil {
			return applied, fmt.Errorf("migration %03d_%s: %w", m.version, m.name, err)
		}
		applied++
	}
	return applied, nil
}

func (d *DB) withTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

// ══════════════════════════════════════════════════════════════════════════════
// HELPERS
// ══════════════════════════════════════════════════════════════════════════════

func unavailable(op string, err error) error {
	return shared.WrapError("sqlite", op, shared.ErrServiceUnavailable, "database unavailable", err)
}

func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}

func toNanos(t time.Time) int64 {
	return t.UnixNano()
}

func fromNanos(n int64) time.Time {
	return time.Unix(0, n).UTC()
}
