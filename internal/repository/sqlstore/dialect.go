package sqlstore

import (
	"strconv"
	"strings"
)

// dialect captures the few places SQLite and Postgres disagree: column types
// in the DDL, connection PRAGMAs and the placeholder syntax. The queries in
// this package are written with "?" placeholders and passed through rebind.
type dialect struct {
	name        string
	pragmas     []string
	schema      []string
	dollarBinds bool
}

var dialectSQLite = dialect{
	name: "sqlite",
	pragmas: []string{
		// WAL lets readers run while a write is in progress.
		"PRAGMA journal_mode=WAL",
		// Foreign keys are OFF by default in SQLite.
		"PRAGMA foreign_keys=ON",
	},
	schema: []string{
		`CREATE TABLE IF NOT EXISTS users (
			id             INTEGER PRIMARY KEY AUTOINCREMENT,
			open_id        TEXT NOT NULL UNIQUE,
			name           TEXT,
			email          TEXT,
			login_method   TEXT,
			role           TEXT NOT NULL DEFAULT 'user' CHECK (role IN ('user', 'admin')),
			created_at     DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at     DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			last_signed_in DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS tasks (
			id          INTEGER PRIMARY KEY AUTOINCREMENT,
			user_id     INTEGER NOT NULL REFERENCES users(id),
			title       TEXT NOT NULL,
			description TEXT,
			completed   BOOLEAN NOT NULL DEFAULT 0,
			priority    TEXT NOT NULL DEFAULT 'medium' CHECK (priority IN ('low', 'medium', 'high')),
			due_date    DATETIME,
			created_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_tasks_user_id ON tasks(user_id)`,
	},
}

var dialectPostgres = dialect{
	name: "postgres",
	schema: []string{
		`CREATE TABLE IF NOT EXISTS users (
			id             BIGSERIAL PRIMARY KEY,
			open_id        TEXT NOT NULL UNIQUE,
			name           TEXT,
			email          TEXT,
			login_method   TEXT,
			role           TEXT NOT NULL DEFAULT 'user' CHECK (role IN ('user', 'admin')),
			created_at     TIMESTAMPTZ NOT NULL DEFAULT now(),
			updated_at     TIMESTAMPTZ NOT NULL DEFAULT now(),
			last_signed_in TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE TABLE IF NOT EXISTS tasks (
			id          BIGSERIAL PRIMARY KEY,
			user_id     BIGINT NOT NULL REFERENCES users(id),
			title       TEXT NOT NULL,
			description TEXT,
			completed   BOOLEAN NOT NULL DEFAULT FALSE,
			priority    TEXT NOT NULL DEFAULT 'medium' CHECK (priority IN ('low', 'medium', 'high')),
			due_date    TIMESTAMPTZ,
			created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
			updated_at  TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_tasks_user_id ON tasks(user_id)`,
	},
	dollarBinds: true,
}

// rebind rewrites "?" placeholders as $1, $2, ... for Postgres.
func (d dialect) rebind(query string) string {
	if !d.dollarBinds {
		return query
	}

	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteByte(query[i])
	}
	return b.String()
}

// placeholders returns "?, ?, ?" with n marks.
func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}
