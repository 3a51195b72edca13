// Package sqlitestore provides SQLite-backed store implementations.
// It is the alternative to boltstore for deployments that want SQL access
// to moderation data. Connections are instrumented with otelsql so store
// queries show up in traces.
package sqlitestore

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/XSAM/otelsql"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS blocks (
	blocker_id TEXT NOT NULL,
	blocked_id TEXT NOT NULL,
	reason     TEXT NOT NULL DEFAULT '',
	created_at TEXT NOT NULL,
	PRIMARY KEY (blocker_id, blocked_id)
);
CREATE INDEX IF NOT EXISTS idx_blocks_blocked ON blocks(blocked_id);

CREATE TABLE IF NOT EXISTS reports (
	id              TEXT PRIMARY KEY,
	reporter_id     TEXT NOT NULL,
	content_id      TEXT NOT NULL,
	author_id       TEXT NOT NULL,
	reason          TEXT NOT NULL,
	description     TEXT NOT NULL DEFAULT '',
	created_at      TEXT NOT NULL,
	status          TEXT NOT NULL,
	moderator_id    TEXT NOT NULL DEFAULT '',
	moderator_notes TEXT NOT NULL DEFAULT '',
	action          TEXT NOT NULL DEFAULT '',
	resolved_at     TEXT,
	revision        INTEGER NOT NULL DEFAULT 1,
	UNIQUE (reporter_id, content_id)
);
CREATE INDEX IF NOT EXISTS idx_reports_pending  ON reports(status, created_at, id);
CREATE INDEX IF NOT EXISTS idx_reports_content  ON reports(content_id);
CREATE INDEX IF NOT EXISTS idx_reports_author   ON reports(author_id);
CREATE INDEX IF NOT EXISTS idx_reports_reporter ON reports(reporter_id, created_at);

CREATE TABLE IF NOT EXISTS audit_log (
	id           TEXT PRIMARY KEY,
	report_id    TEXT NOT NULL,
	moderator_id TEXT NOT NULL,
	action       TEXT NOT NULL,
	notes        TEXT NOT NULL DEFAULT '',
	timestamp    TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_audit_report ON audit_log(report_id, timestamp);
CREATE INDEX IF NOT EXISTS idx_audit_time   ON audit_log(timestamp);

CREATE TABLE IF NOT EXISTS sifs (
	id           TEXT PRIMARY KEY,
	author_id    TEXT NOT NULL,
	recipient_id TEXT NOT NULL DEFAULT '',
	subject      TEXT NOT NULL DEFAULT '',
	body         TEXT NOT NULL DEFAULT '',
	scheduled_at TEXT,
	created_at   TEXT NOT NULL,
	is_removed   INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_sifs_author ON sifs(author_id);
`

// Open opens (and creates if necessary) a SQLite database at the given path
// and applies the schema. The connection is wrapped with otelsql tracing.
func Open(ctx context.Context, path string) (*sql.DB, error) {
	db, err := otelsql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// modernc sqlite serializes writes; a single connection avoids
	// SQLITE_BUSY under concurrent writers.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, `PRAGMA journal_mode = WAL`); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set journal mode: %w", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	return db, nil
}
