// Пакет attr — файловый бэкенд записей индекса.
// Каждая запись хранится в отдельном файле <sha256(key)>.entry.json
// в форме codec.ToStorageText. Имя файла не зависит от символов ключа,
// поэтому ключи с "/" и другими спецсимволами безопасны.
// Все операции записи выполняются атомарно: temp → fsync → rename.
package attr

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bigkaa/goartstore/metadata-index/internal/codec"
	"github.com/bigkaa/goartstore/metadata-index/internal/domain/model"
	"github.com/bigkaa/goartstore/metadata-index/internal/storage"
)

// EntrySuffix — суффикс файла записи.
const EntrySuffix = ".entry.json"

// maxEntryFileSize — максимальный допустимый размер файла записи (1 МБ).
const maxEntryFileSize = 1 << 20

// Store — каталог файлов записей.
type Store struct {
	dir string
}

// New создаёт хранилище в каталоге dir, создавая его при необходимости.
func New(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("не удалось создать директорию %s: %w", dir, err)
	}
	return &Store{dir: dir}, nil
}

// EntryFilePath возвращает путь к файлу записи с ключом key.
func (s *Store) EntryFilePath(key string) string {
	sum := sha256.Sum256([]byte(key))
	return filepath.Join(s.dir, hex.EncodeToString(sum[:])+EntrySuffix)
}

// IsEntryFile проверяет, является ли путь файлом записи.
func IsEntryFile(path string) bool {
	return strings.HasSuffix(path, EntrySuffix)
}

// Ping проверяет, что каталог доступен.
func (s *Store) Ping(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	info, err := os.Stat(s.dir)
	if err != nil {
		return fmt.Errorf("каталог записей недоступен: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%s не является директорией", s.dir)
	}
	return nil
}

// PutText атомарно записывает текст записи (реализует codec.TextSink).
// Паттерн: temp файл → fsync → atomic rename.
func (s *Store) PutText(ctx context.Context, key, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(text) > maxEntryFileSize {
		return fmt.Errorf("размер записи (%d байт) превышает максимум (%d байт)", len(text), maxEntryFileSize)
	}

	path := s.EntryFilePath(key)
	f, err := os.CreateTemp(s.dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("ошибка создания временного файла: %w", err)
	}
	tmpPath := f.Name()

	if _, err := f.WriteString(text); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("ошибка записи: %w", err)
	}

	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("ошибка fsync: %w", err)
	}

	if err := f.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("ошибка закрытия файла: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("ошибка атомарного переименования: %w", err)
	}

	return nil
}

// GetText читает текст записи (реализует codec.TextSource).
// Отсутствующий файл — storage.ErrNotFound.
func (s *Store) GetText(ctx context.Context, key string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	data, err := os.ReadFile(s.EntryFilePath(key))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", storage.ErrNotFound
		}
		return "", fmt.Errorf("ошибка чтения файла записи: %w", err)
	}
	return string(data), nil
}

// Put сохраняет запись. r не может быть nil.
func (s *Store) Put(ctx context.Context, r model.Record) error {
	return codec.Save(ctx, s, r)
}

// Get возвращает запись по ключу или storage.ErrNotFound.
func (s *Store) Get(ctx context.Context, key string) (model.Record, error) {
	r, err := codec.Load(ctx, s, key)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, storage.ErrNotFound
	}
	return r, err
}

// Delete удаляет файл записи.
func (s *Store) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	err := os.Remove(s.EntryFilePath(key))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return storage.ErrNotFound
		}
		return fmt.Errorf("ошибка удаления файла записи: %w", err)
	}
	return nil
}

// ListRows возвращает сырые строки в порядке имён файлов.
// ID строки — имя файла: ключ без декодирования неизвестен.
func (s *Store) ListRows(ctx context.Context, limit, offset int) ([]codec.Row, error) {
	names, err := s.scanDir()
	if err != nil {
		return nil, err
	}

	if offset < 0 {
		offset = 0
	}
	if offset >= len(names) {
		return nil, nil
	}
	end := min(offset+storage.ClampLimit(limit), len(names))

	rows := make([]codec.Row, 0, end-offset)
	for _, name := range names[offset:end] {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		data, err := os.ReadFile(filepath.Join(s.dir, name))
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				// удалён между сканированием и чтением
				continue
			}
			return nil, fmt.Errorf("ошибка чтения файла записи %s: %w", name, err)
		}
		rows = append(rows, codec.Row{ID: name, Text: string(data)})
	}
	return rows, nil
}

// Count возвращает количество записей по видам.
// Повреждённые файлы не учитываются.
func (s *Store) Count(ctx context.Context) (map[model.Kind]int64, error) {
	names, err := s.scanDir()
	if err != nil {
		return nil, err
	}
	counts := map[model.Kind]int64{}
	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		data, err := os.ReadFile(filepath.Join(s.dir, name))
		if err != nil {
			continue
		}
		if r, err := codec.FromStorageText(string(data)); err == nil {
			counts[r.Kind()]++
		}
	}
	return counts, nil
}

// scanDir возвращает отсортированные имена файлов записей.
// Не рекурсивный; временные файлы незавершённых записей пропускаются.
func (s *Store) scanDir() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("ошибка сканирования директории %s: %w", s.dir, err)
	}
	var names []string
	for _, e := range entries {
		if e.Type().IsRegular() && IsEntryFile(e.Name()) {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}
