package store

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// migration holds a single schema migration with its target version.
// sql runs first, then apply.
type migration struct {
	version int
	sql     string
	apply   func(ctx context.Context, tx *sqlx.Tx) error
}

// migrations is the ordered list of schema migrations.
// Each migration's version must be sequential starting from 1.
var migrations = []migration{
	{
		version: 1,
		sql: `
CREATE TABLE IF NOT EXISTS schema_version (
	version INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS todos (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	day           TEXT NOT NULL,
	content       TEXT NOT NULL,
	position      INTEGER NOT NULL DEFAULT 0,
	last_modified INTEGER NOT NULL DEFAULT 0,
	done          INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS peer_connections (
	peer_id     TEXT PRIMARY KEY,
	last_sync   DATETIME,
	device_name TEXT NOT NULL DEFAULT '',
	device_type TEXT NOT NULL DEFAULT '',
	sync_status TEXT NOT NULL DEFAULT 'disconnected'
		CHECK(sync_status IN ('disconnected', 'connecting', 'connected'))
);

CREATE TABLE IF NOT EXISTS archived_todos (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	todo_id      INTEGER NOT NULL DEFAULT 0,
	day          TEXT NOT NULL,
	content      TEXT NOT NULL,
	completed_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS tombstones (
	id         INTEGER PRIMARY KEY,
	deleted_at INTEGER NOT NULL
);
`,
	},
	{
		// Databases written by the earlier desktop and terminal builds have
		// a todos table with only id, day, content (and sometimes done).
		version: 2,
		apply: func(ctx context.Context, tx *sqlx.Tx) error {
			if err := addMissingColumns(ctx, tx, "todos", []column{
				{"position", "INTEGER NOT NULL DEFAULT 0"},
				{"last_modified", "INTEGER NOT NULL DEFAULT 0"},
				{"done", "INTEGER NOT NULL DEFAULT 0"},
			}); err != nil {
				return err
			}
			if err := addMissingColumns(ctx, tx, "archived_todos", []column{
				{"todo_id", "INTEGER NOT NULL DEFAULT 0"},
			}); err != nil {
				return err
			}
			return addMissingColumns(ctx, tx, "peer_connections", []column{
				{"last_sync", "DATETIME"},
				{"device_name", "TEXT NOT NULL DEFAULT ''"},
				{"device_type", "TEXT NOT NULL DEFAULT ''"},
				{"sync_status", "TEXT NOT NULL DEFAULT 'disconnected'"},
			})
		},
	},
	{
		version: 3,
		sql: `
CREATE INDEX IF NOT EXISTS idx_todos_day_position ON todos(day, position);
CREATE INDEX IF NOT EXISTS idx_todos_last_modified ON todos(last_modified);
CREATE INDEX IF NOT EXISTS idx_peer_connections_status ON peer_connections(sync_status);
`,
	},
	{
		version: 4,
		sql: `
CREATE TABLE IF NOT EXISTS local_node (
	id          INTEGER PRIMARY KEY CHECK(id = 1),
	peer_id     TEXT NOT NULL,
	sync_status TEXT NOT NULL DEFAULT 'disconnected'
		CHECK(sync_status IN ('disconnected', 'connecting', 'connected'))
);
`,
	},
}

// column is a column definition for additive migrations.
type column struct {
	name string
	def  string
}

// addMissingColumns adds every column in cols that table does not have yet.
func addMissingColumns(ctx context.Context, tx *sqlx.Tx, table string, cols []column) error {
	var existing []string
	if err := tx.SelectContext(ctx, &existing,
		"SELECT name FROM pragma_table_info(?)", table,
	); err != nil {
		return fmt.Errorf("reading columns of %s: %w", table, err)
	}

	have := make(map[string]bool, len(existing))
	for _, name := range existing {
		have[name] = true
	}

	for _, c := range cols {
		if have[c.name] {
			continue
		}
		stmt := fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s", table, c.name, c.def)
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("adding column %s.%s: %w", table, c.name, err)
		}
	}

	return nil
}
