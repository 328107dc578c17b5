package sqlite

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// Open opens (or creates) a SQLite database at the given path with WAL
// journaling, foreign keys and a busy timeout, then ensures the schema.
func Open(path string) (*sql.DB, error) {
	// ensure parent directory exists to avoid SQLITE_CANTOPEN errors
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}

	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=foreign_keys(ON)&_pragma=busy_timeout(5000)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	// one writer at a time; transactions never reach back to the pool
	db.SetMaxOpenConns(1)
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := EnsureSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite schema: %w", err)
	}
	return db, nil
}

// EnsureSchema creates the tables if they do not exist.
func EnsureSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS users (
            user_id TEXT PRIMARY KEY,
            display_name TEXT,
            time_zone TEXT NOT NULL DEFAULT '',
            creation_time INTEGER NOT NULL
        );`,
		`CREATE TABLE IF NOT EXISTS categories (
            category_id TEXT PRIMARY KEY,
            user_id TEXT NOT NULL,
            name TEXT NOT NULL,
            slug TEXT NOT NULL,
            sort_order INTEGER NOT NULL DEFAULT 0,
            creation_time INTEGER NOT NULL,
            UNIQUE(user_id, slug)
        );`,
		`CREATE TABLE IF NOT EXISTS people (
            person_id TEXT PRIMARY KEY,
            user_id TEXT NOT NULL,
            display_name TEXT NOT NULL,
            aliases TEXT,
            merged_into TEXT,
            creation_time INTEGER NOT NULL
        );`,
		`CREATE TABLE IF NOT EXISTS moments (
            moment_id TEXT PRIMARY KEY,
            user_id TEXT NOT NULL,
            happened_at INTEGER NOT NULL,
            action TEXT NOT NULL CHECK (action IN ('given','received')),
            category_id TEXT,
            person_id TEXT,
            significance INTEGER NOT NULL DEFAULT 0,
            tags TEXT,
            description TEXT NOT NULL DEFAULT '',
            creation_time INTEGER NOT NULL
        );`,
		`CREATE INDEX IF NOT EXISTS moments_user_happened ON moments(user_id, happened_at);`,
		`CREATE TABLE IF NOT EXISTS reflections (
            reflection_id TEXT PRIMARY KEY,
            user_id TEXT NOT NULL,
            period TEXT NOT NULL,
            range_start TEXT NOT NULL,
            range_end TEXT NOT NULL,
            summary TEXT NOT NULL,
            suggestions TEXT,
            computed TEXT NOT NULL,
            model TEXT NOT NULL,
            created_at INTEGER NOT NULL,
            regenerated_at INTEGER,
            UNIQUE(user_id, period, range_start, range_end)
        );`,
		`CREATE TABLE IF NOT EXISTS streaks (
            user_id TEXT PRIMARY KEY,
            current_run INTEGER NOT NULL,
            best_run INTEGER NOT NULL,
            last_entry_date TEXT,
            computed_at INTEGER NOT NULL
        );`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}
