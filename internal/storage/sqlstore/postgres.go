package sqlstore

import (
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/lib/pq"
)

const postgresSchema = `CREATE TABLE IF NOT EXISTS manta_entries (
    entry_key  TEXT PRIMARY KEY,
    kind       TEXT NOT NULL CHECK (kind IN ('object', 'directory')),
    record     TEXT NOT NULL,
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`

const postgresUpsert = `INSERT INTO manta_entries (entry_key, kind, record, updated_at)
VALUES (?, ?, ?, NOW())
ON CONFLICT (entry_key) DO UPDATE
SET kind = EXCLUDED.kind, record = EXCLUDED.record, updated_at = NOW()`

// Postgres — диалект github.com/lib/pq (драйвер "postgres").
var Postgres = Dialect{
	Name:     "postgres",
	Schema:   postgresSchema,
	Upsert:   postgresUpsert,
	Numbered: true,
}

// PGX — диалект pgx в режиме database/sql (драйвер "pgx").
var PGX = Dialect{
	Name:     "pgx",
	Schema:   postgresSchema,
	Upsert:   postgresUpsert,
	Numbered: true,
}
