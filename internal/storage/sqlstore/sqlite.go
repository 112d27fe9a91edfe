package sqlstore

import (
	_ "modernc.org/sqlite"
)

// SQLite — диалект modernc.org/sqlite (драйвер "sqlite", без cgo).
var SQLite = Dialect{
	Name: "sqlite",
	Schema: `CREATE TABLE IF NOT EXISTS manta_entries (
    entry_key  TEXT PRIMARY KEY,
    kind       TEXT NOT NULL CHECK (kind IN ('object', 'directory')),
    record     TEXT NOT NULL,
    updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
)`,
	Upsert: `INSERT INTO manta_entries (entry_key, kind, record, updated_at)
VALUES (?, ?, ?, CURRENT_TIMESTAMP)
ON CONFLICT (entry_key) DO UPDATE
SET kind = excluded.kind, record = excluded.record, updated_at = CURRENT_TIMESTAMP`,
}
