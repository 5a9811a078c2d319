package db

import (
	"database/sql"
	"fmt"
)

// migrations is an ordered list of SQL statements to run.
var migrations = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id               TEXT    PRIMARY KEY,
		name             TEXT    NOT NULL DEFAULT '',
		email            TEXT    NOT NULL UNIQUE,
		password_hash    TEXT    NOT NULL DEFAULT '',
		provider         TEXT    NOT NULL DEFAULT 'password',
		provider_subject TEXT    NOT NULL DEFAULT '',
		created_at       DATETIME DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS listings (
		id               TEXT    PRIMARY KEY,
		type             TEXT    NOT NULL CHECK (type IN ('sale', 'rent')),
		name             TEXT    NOT NULL,
		bedrooms         INTEGER NOT NULL CHECK (bedrooms >= 1),
		bathrooms        INTEGER NOT NULL CHECK (bathrooms >= 1),
		parking          INTEGER NOT NULL DEFAULT 0,
		furnished        INTEGER NOT NULL DEFAULT 0,
		offer            INTEGER NOT NULL DEFAULT 0,
		regular_price    INTEGER NOT NULL,
		discounted_price INTEGER,
		location         TEXT    NOT NULL,
		lat              REAL    NOT NULL,
		lng              REAL    NOT NULL,
		image_urls       TEXT    NOT NULL DEFAULT '[]',
		user_ref         TEXT    NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		timestamp        INTEGER NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_listings_type_ts ON listings (type, timestamp DESC, id DESC)`,
	`CREATE INDEX IF NOT EXISTS idx_listings_user ON listings (user_ref)`,
	`CREATE TABLE IF NOT EXISTS sessions (
		id         TEXT     PRIMARY KEY,
		user_id    TEXT     NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		expires_at DATETIME NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS reset_tokens (
		id         INTEGER PRIMARY KEY AUTOINCREMENT,
		token      TEXT     NOT NULL UNIQUE,
		user_id    TEXT     NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		expires_at DATETIME NOT NULL,
		used       INTEGER  DEFAULT 0,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS passkey_credentials (
		id              TEXT    PRIMARY KEY,
		user_id         TEXT    NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		name            TEXT    NOT NULL DEFAULT '',
		credential_json TEXT    NOT NULL,
		created_at      DATETIME DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS api_keys (
		id           INTEGER  PRIMARY KEY AUTOINCREMENT,
		user_id      TEXT     NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		name         TEXT     NOT NULL,
		key_prefix   TEXT     NOT NULL,
		key_hash     TEXT     NOT NULL UNIQUE,
		created_at   DATETIME DEFAULT CURRENT_TIMESTAMP,
		last_used_at DATETIME
	)`,
}

// migrate runs all migrations in order.
func migrate(db *sql.DB) error {
	for i, m := range migrations {
		if _, err := db.Exec(m); err != nil {
			return fmt.Errorf("migration %d: %w", i, err)
		}
	}

	// Column additions (idempotent, checks if the column exists first)
	columnMigrations := []struct {
		table, column, definition string
	}{
		{"users", "avatar_url", "TEXT NOT NULL DEFAULT ''"},
	}

	for _, cm := range columnMigrations {
		if err := addColumnIfNotExists(db, cm.table, cm.column, cm.definition); err != nil {
			return fmt.Errorf("adding %s.%s: %w", cm.table, cm.column, err)
		}
	}

	return nil
}

// addColumnIfNotExists adds a column to a table if it doesn't already exist.
func addColumnIfNotExists(db *sql.DB, table, column, definition string) error {
	rows, err := db.Query(fmt.Sprintf("PRAGMA table_info(%s)", table))
	if err != nil {
		return fmt.Errorf("checking table info: %w", err)
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil {
			fmt.Printf("warning: closing rows: %v\n", cerr)
		}
	}()

	for rows.Next() {
		var cid int
		var name, colType string
		var notNull, pk int
		var dfltValue interface{}
		if err := rows.Scan(&cid, &name, &colType, &notNull, &dfltValue, &pk); err != nil {
			return fmt.Errorf("scanning column info: %w", err)
		}
		if name == column {
			return nil // column already exists
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterating columns: %w", err)
	}

	_, err = db.Exec(fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s", table, column, definition))
	return err
}
