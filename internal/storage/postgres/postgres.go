// Пакет postgres — бэкенд записей индекса на PostgreSQL через pgx.
// Запись хранится в текстовом столбце record в форме codec.ToStorageText;
// привязка и сканирование выполняются через codec.Column.
// Схема создаётся миграциями пакета database.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/bigkaa/goartstore/metadata-index/internal/codec"
	"github.com/bigkaa/goartstore/metadata-index/internal/domain/model"
	"github.com/bigkaa/goartstore/metadata-index/internal/storage"
)

// DBTX — интерфейс для выполнения SQL-запросов.
// Реализуется как *pgxpool.Pool, так и pgx.Tx, что позволяет
// использовать хранилище как внутри, так и вне транзакций.
type DBTX interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store — хранилище записей в таблице manta_entries.
type Store struct {
	db DBTX
}

// New создаёт хранилище поверх пула или транзакции.
func New(db DBTX) *Store {
	return &Store{db: db}
}

// Put сохраняет запись (upsert по ключу). r не может быть nil.
func (s *Store) Put(ctx context.Context, r model.Record) error {
	_, err := s.db.Exec(ctx,
		`INSERT INTO manta_entries (entry_key, kind, record, updated_at)
		 VALUES ($1, $2, $3, NOW())
		 ON CONFLICT (entry_key) DO UPDATE
		 SET kind = EXCLUDED.kind, record = EXCLUDED.record, updated_at = NOW()`,
		r.EntryKey(), string(r.Kind()), codec.Column{Record: r},
	)
	if err != nil {
		return fmt.Errorf("ошибка сохранения записи: %w", err)
	}
	return nil
}

// Get возвращает запись по ключу или storage.ErrNotFound.
// Повреждённый текст в столбце возвращается как *codec.Error.
func (s *Store) Get(ctx context.Context, key string) (model.Record, error) {
	var col codec.Column
	err := s.db.QueryRow(ctx,
		`SELECT record FROM manta_entries WHERE entry_key = $1`, key,
	).Scan(&col)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, storage.ErrNotFound
		}
		var ce *codec.Error
		if errors.As(err, &ce) {
			return nil, ce
		}
		return nil, fmt.Errorf("ошибка получения записи: %w", err)
	}
	return col.Record, nil
}

// Delete удаляет запись по ключу.
func (s *Store) Delete(ctx context.Context, key string) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM manta_entries WHERE entry_key = $1`, key)
	if err != nil {
		return fmt.Errorf("ошибка удаления записи: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// ListRows возвращает сырые строки в порядке ключей, без декодирования:
// повреждённая запись не должна ломать постраничный просмотр.
func (s *Store) ListRows(ctx context.Context, limit, offset int) ([]codec.Row, error) {
	if offset < 0 {
		offset = 0
	}
	rows, err := s.db.Query(ctx,
		`SELECT entry_key, record FROM manta_entries ORDER BY entry_key LIMIT $1 OFFSET $2`,
		storage.ClampLimit(limit), offset,
	)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения списка записей: %w", err)
	}
	defer rows.Close()

	var result []codec.Row
	for rows.Next() {
		var row codec.Row
		if err := rows.Scan(&row.ID, &row.Text); err != nil {
			return nil, fmt.Errorf("ошибка сканирования записи: %w", err)
		}
		result = append(result, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ошибка итерации результатов: %w", err)
	}
	return result, nil
}

// Count возвращает количество записей по видам.
func (s *Store) Count(ctx context.Context) (map[model.Kind]int64, error) {
	rows, err := s.db.Query(ctx, `SELECT kind, COUNT(*) FROM manta_entries GROUP BY kind`)
	if err != nil {
		return nil, fmt.Errorf("ошибка подсчёта записей: %w", err)
	}
	defer rows.Close()

	counts := map[model.Kind]int64{}
	for rows.Next() {
		var (
			kind string
			n    int64
		)
		if err := rows.Scan(&kind, &n); err != nil {
			return nil, fmt.Errorf("ошибка сканирования счётчика: %w", err)
		}
		counts[model.Kind(kind)] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ошибка итерации результатов: %w", err)
	}
	return counts, nil
}
