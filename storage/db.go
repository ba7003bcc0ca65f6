package storage

import (
	"database/sql"
	"fmt"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// timeLayout is the UTC text form timestamps are stored in. SQLite's date
// functions understand it directly.
const timeLayout = "2006-01-02 15:04:05"

type DB struct {
	conn *sql.DB
}

// Open opens pastemd.db in dir and initializes the schema
func Open(dir string) (*DB, error) {
	dbPath := filepath.Join(dir, "pastemd.db")

	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// WAL lets the dashboard read while an invocation writes
	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}
	if _, err := conn.Exec("PRAGMA busy_timeout=2000"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	db := &DB{conn: conn}

	if err := db.initSchema(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return db, nil
}

// Close closes the database connection
func (db *DB) Close() error {
	return db.conn.Close()
}

func (db *DB) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS pastes (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		invocation_id TEXT NOT NULL,
		timestamp TEXT NOT NULL,

		-- Routing
		content_kind TEXT NOT NULL,
		target TEXT NOT NULL,
		policy TEXT NOT NULL,

		-- Outcome
		succeeded BOOLEAN NOT NULL,
		message_key TEXT NOT NULL,
		warning_key TEXT NOT NULL DEFAULT '',
		params TEXT NOT NULL DEFAULT '{}',

		duration_ms INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_pastes_timestamp ON pastes(timestamp);
	CREATE INDEX IF NOT EXISTS idx_pastes_invocation ON pastes(invocation_id);
	CREATE INDEX IF NOT EXISTS idx_pastes_target ON pastes(target);
	`

	_, err := db.conn.Exec(schema)
	return err
}
