// Пакет sqlstore — бэкенд записей индекса поверх database/sql.
// Один и тот же код обслуживает SQLite, MySQL и PostgreSQL: различия
// движков (плейсхолдеры, upsert, DDL) собраны в Dialect, а запись
// привязывается и сканируется через codec.Column.
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/bigkaa/goartstore/metadata-index/internal/codec"
	"github.com/bigkaa/goartstore/metadata-index/internal/domain/model"
	"github.com/bigkaa/goartstore/metadata-index/internal/storage"
)

// Dialect — особенности SQL-движка.
type Dialect struct {
	// Name — имя драйвера database/sql
	Name string
	// Schema — DDL таблицы записей
	Schema string
	// Upsert — INSERT или UPDATE по entry_key; параметры: key, kind, record
	Upsert string
	// Numbered — плейсхолдеры вида $1 вместо ?
	Numbered bool
}

// rebind заменяет плейсхолдеры ? на $n для движков с нумерованными параметрами.
func (d Dialect) rebind(query string) string {
	if !d.Numbered {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			fmt.Fprintf(&b, "$%d", n)
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// DialectFor возвращает диалект по имени драйвера.
func DialectFor(driver string) (Dialect, error) {
	switch driver {
	case "sqlite":
		return SQLite, nil
	case "mysql":
		return MySQL, nil
	case "postgres":
		return Postgres, nil
	case "pgx":
		return PGX, nil
	default:
		return Dialect{}, fmt.Errorf("неизвестный драйвер %q", driver)
	}
}

// Store — хранилище записей в таблице manta_entries.
type Store struct {
	db      *sql.DB
	dialect Dialect
}

// Open открывает базу данных драйвером driver и создаёт схему.
func Open(ctx context.Context, driver, dsn string) (*Store, error) {
	dialect, err := DialectFor(driver)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open(dialect.Name, dsn)
	if err != nil {
		return nil, fmt.Errorf("ошибка открытия базы данных: %w", err)
	}
	if dialect.Name == SQLite.Name {
		// SQLite допускает одного писателя; одно соединение исключает SQLITE_BUSY
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ошибка подключения к базе данных: %w", err)
	}

	s := New(db, dialect)
	if err := s.EnsureSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// New создаёт хранилище поверх открытого подключения.
func New(db *sql.DB, dialect Dialect) *Store {
	return &Store{db: db, dialect: dialect}
}

// DB возвращает подключение (для проверки готовности).
func (s *Store) DB() *sql.DB {
	return s.db
}

// Close закрывает подключение.
func (s *Store) Close() error {
	return s.db.Close()
}

// EnsureSchema создаёт таблицу записей, если её нет.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, s.dialect.Schema); err != nil {
		return fmt.Errorf("ошибка создания схемы: %w", err)
	}
	return nil
}

// Put сохраняет запись (upsert по ключу). r не может быть nil.
func (s *Store) Put(ctx context.Context, r model.Record) error {
	_, err := s.db.ExecContext(ctx, s.dialect.rebind(s.dialect.Upsert),
		r.EntryKey(), string(r.Kind()), codec.Column{Record: r},
	)
	if err != nil {
		return fmt.Errorf("ошибка сохранения записи: %w", err)
	}
	return nil
}

// Get возвращает запись по ключу или storage.ErrNotFound.
func (s *Store) Get(ctx context.Context, key string) (model.Record, error) {
	var col codec.Column
	err := s.db.QueryRowContext(ctx,
		s.dialect.rebind(`SELECT record FROM manta_entries WHERE entry_key = ?`), key,
	).Scan(&col)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
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
	res, err := s.db.ExecContext(ctx,
		s.dialect.rebind(`DELETE FROM manta_entries WHERE entry_key = ?`), key,
	)
	if err != nil {
		return fmt.Errorf("ошибка удаления записи: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("ошибка получения числа удалённых строк: %w", err)
	}
	if n == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// ListRows возвращает сырые строки в порядке ключей, без декодирования.
func (s *Store) ListRows(ctx context.Context, limit, offset int) ([]codec.Row, error) {
	if offset < 0 {
		offset = 0
	}
	rows, err := s.db.QueryContext(ctx,
		s.dialect.rebind(`SELECT entry_key, record FROM manta_entries ORDER BY entry_key LIMIT ? OFFSET ?`),
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
	rows, err := s.db.QueryContext(ctx, `SELECT kind, COUNT(*) FROM manta_entries GROUP BY kind`)
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
