// Package sqlite implements the repository interfaces on SQLite through the
// pure Go modernc.org/sqlite driver. sqlx scans rows into structs via db tags
// and runs transactions with BeginTxx.
//
// SQLite allows one writer at a time. The pool is capped at a single
// connection so every transaction runs to completion before the next begins,
// and state transitions are additionally guarded by conditional UPDATEs
// (WHERE status = 'pending') so a lost race is detected rather than assumed.
package sqlite

import (
	"fmt"

	"github.com/jmoiron/sqlx"

	// Registers the "sqlite" driver with database/sql.
	_ "modernc.org/sqlite"
)

// DB wraps a sqlx connection pool and implements every repository interface.
type DB struct {
	conn *sqlx.DB
}

// New opens the database at dbPath and runs migrations.
//
// dbPath examples:
//   - "data/gitpilot.db" → file-based database (persistent)
//   - ":memory:"         → in-memory database (tests)
func New(dbPath string) (*DB, error) {
	conn, err := sqlx.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("sqlite: opening database: %w", err)
	}

	// One connection: PRAGMAs below stick, ":memory:" stays a single database,
	// and writers are serialized.
	conn.SetMaxOpenConns(1)

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: pinging database: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	}
	for _, p := range pragmas {
		if _, err := conn.Exec(p); err != nil {
			conn.Close()
			return nil, fmt.Errorf("sqlite: %s: %w", p, err)
		}
	}

	db := &DB{conn: conn}

	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: running migrations: %w", err)
	}

	return db, nil
}

// Close closes the database connection pool.
func (db *DB) Close() error {
	return db.conn.Close()
}

// migrate creates the schema. Every statement is idempotent.
//
// join_requests.created_at is stored as Unix nanoseconds so ordering and the
// strictly-increasing check compare integers, not formatted strings.
func (db *DB) migrate() error {
	steps := []struct {
		name string
		sql  string
	}{
		{"users", `
			CREATE TABLE IF NOT EXISTS users (
				id                   TEXT PRIMARY KEY,
				token_identifier     TEXT NOT NULL UNIQUE,
				github_id            INTEGER NOT NULL UNIQUE,
				github_username      TEXT NOT NULL DEFAULT '',
				name                 TEXT NOT NULL DEFAULT '',
				email                TEXT NOT NULL DEFAULT '',
				avatar_url           TEXT NOT NULL DEFAULT '',
				plan                 TEXT NOT NULL DEFAULT 'free',
				onboarding_completed INTEGER NOT NULL DEFAULT 0,
				created_at           DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
				updated_at           DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
			);`},
		{"projects", `
			CREATE TABLE IF NOT EXISTS projects (
				id               TEXT PRIMARY KEY,
				name             TEXT NOT NULL,
				description      TEXT NOT NULL DEFAULT '',
				tags             TEXT NOT NULL DEFAULT '[]',
				is_public        INTEGER NOT NULL DEFAULT 0,
				owner_id         TEXT NOT NULL REFERENCES users(id),
				repo_name        TEXT NOT NULL DEFAULT '',
				repo_owner       TEXT NOT NULL DEFAULT '',
				repo_url         TEXT NOT NULL DEFAULT '',
				stars            INTEGER NOT NULL DEFAULT 0,
				forks            INTEGER NOT NULL DEFAULT 0,
				upvotes          INTEGER NOT NULL DEFAULT 0,
				invite_code_hash TEXT NOT NULL DEFAULT '',
				created_at       DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
				updated_at       DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
			);
			CREATE INDEX IF NOT EXISTS idx_projects_owner_id ON projects(owner_id);
			CREATE INDEX IF NOT EXISTS idx_projects_created_at ON projects(created_at);`},
		{"project_members", `
			CREATE TABLE IF NOT EXISTS project_members (
				project_id TEXT NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
				user_id    TEXT NOT NULL REFERENCES users(id),
				role       TEXT NOT NULL CHECK (role IN ('admin', 'member')),
				joined_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
				PRIMARY KEY (project_id, user_id)
			);
			CREATE INDEX IF NOT EXISTS idx_project_members_user_id ON project_members(user_id);`},
		{"join_requests", `
			CREATE TABLE IF NOT EXISTS join_requests (
				id               TEXT PRIMARY KEY,
				project_id       TEXT NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
				requester_id     TEXT NOT NULL REFERENCES users(id),
				requester_name   TEXT NOT NULL DEFAULT '',
				requester_image  TEXT NOT NULL DEFAULT '',
				requester_source TEXT NOT NULL DEFAULT '',
				message          TEXT NOT NULL DEFAULT '',
				status           TEXT NOT NULL CHECK (status IN ('pending', 'accepted', 'rejected')),
				resolved_by      TEXT NOT NULL DEFAULT '',
				created_at       INTEGER NOT NULL,
				resolved_at      INTEGER
			);
			CREATE INDEX IF NOT EXISTS idx_join_requests_project ON join_requests(project_id, created_at);
			CREATE INDEX IF NOT EXISTS idx_join_requests_requester ON join_requests(project_id, requester_id, status);`},
		{"repositories", `
			CREATE TABLE IF NOT EXISTS repositories (
				id          TEXT PRIMARY KEY,
				user_id     TEXT NOT NULL UNIQUE REFERENCES users(id),
				project_id  TEXT NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
				external_id INTEGER NOT NULL,
				name        TEXT NOT NULL,
				owner       TEXT NOT NULL,
				full_name   TEXT NOT NULL,
				url         TEXT NOT NULL DEFAULT '',
				stars       INTEGER NOT NULL DEFAULT 0,
				forks       INTEGER NOT NULL DEFAULT 0,
				created_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
				updated_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
			);`},
	}

	for _, step := range steps {
		if _, err := db.conn.Exec(step.sql); err != nil {
			return fmt.Errorf("creating %s table: %w", step.name, err)
		}
	}
	return nil
}
