package sqlstore

import (
	_ "github.com/go-sql-driver/mysql"
)

// MySQL — диалект github.com/go-sql-driver/mysql.
// Ключ ограничен 768 символами: предел длины индекса InnoDB для utf8mb4.
// Сравнение ключей бинарное, как в остальных движках.
var MySQL = Dialect{
	Name: "mysql",
	Schema: `CREATE TABLE IF NOT EXISTS manta_entries (
    entry_key  VARCHAR(768) NOT NULL PRIMARY KEY,
    kind       VARCHAR(16) NOT NULL,
    record     LONGTEXT NOT NULL,
    updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_bin`,
	Upsert: `INSERT INTO manta_entries (entry_key, kind, record, updated_at)
VALUES (?, ?, ?, CURRENT_TIMESTAMP)
ON DUPLICATE KEY UPDATE
kind = VALUES(kind), record = VALUES(record), updated_at = CURRENT_TIMESTAMP`,
}
