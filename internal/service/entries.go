// entries.go — сервис записей индекса.
// Координирует бэкенд хранения, LRU-кэш и Prometheus-метрики.
// Запись проверяется (model.Validate) до сохранения: в хранилище
// не попадает ничего, что нарушает инварианты схемы.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/bigkaa/goartstore/metadata-index/internal/codec"
	"github.com/bigkaa/goartstore/metadata-index/internal/domain/model"
	"github.com/bigkaa/goartstore/metadata-index/internal/storage"
)

// Prometheus-метрики записей.
var (
	entryWritesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mx_entry_writes_total",
		Help: "Общее количество сохранённых записей по видам.",
	}, []string{"kind"})
	codecFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mx_codec_failures_total",
		Help: "Общее количество записей хранилища, которые не удалось декодировать.",
	})
)

// EntryStore — бэкенд хранения записей.
// Реализуется postgres.Store, sqlstore.Store и attr.Store.
type EntryStore interface {
	// Put сохраняет запись (upsert по ключу).
	Put(ctx context.Context, r model.Record) error
	// Get возвращает запись или storage.ErrNotFound.
	Get(ctx context.Context, key string) (model.Record, error)
	// Delete удаляет запись или возвращает storage.ErrNotFound.
	Delete(ctx context.Context, key string) error
	// ListRows возвращает страницу сырых строк без декодирования.
	ListRows(ctx context.Context, limit, offset int) ([]codec.Row, error)
	// Count возвращает количество записей по видам.
	Count(ctx context.Context) (map[model.Kind]int64, error)
}

// ListResult — страница записей.
type ListResult struct {
	// Items — декодированные записи
	Items []model.Record
	// Corrupt — строки, которые не удалось декодировать
	Corrupt []codec.Corrupt
	// Limit — применённый лимит
	Limit int
	// Offset — текущее смещение
	Offset int
	// HasMore — страница заполнена целиком, возможно есть ещё записи
	HasMore bool
}

// InspectResult — результат разбора записи без сохранения.
type InspectResult struct {
	// Record — разобранная запись
	Record model.Record
	// Canonical — текст записи в канонической форме
	Canonical string
	// Violations — нарушения инвариантов (пусто для корректной записи)
	Violations []string
}

// EntryService — сервис записей индекса.
type EntryService struct {
	store  EntryStore
	cache  *CacheService
	logger *slog.Logger
}

// NewEntryService создаёт сервис записей.
func NewEntryService(store EntryStore, cache *CacheService, logger *slog.Logger) *EntryService {
	return &EntryService{
		store:  store,
		cache:  cache,
		logger: logger.With(slog.String("component", "entry_service")),
	}
}

// Put проверяет и сохраняет запись.
func (s *EntryService) Put(ctx context.Context, r model.Record) error {
	if err := model.Validate(r); err != nil {
		return fmt.Errorf("%w: %w", ErrValidation, err)
	}

	if err := s.store.Put(ctx, r); err != nil {
		return fmt.Errorf("сохранение записи: %w", err)
	}

	s.cache.Set(r.EntryKey(), r)
	entryWritesTotal.WithLabelValues(string(r.Kind())).Inc()

	s.logger.Debug("Запись сохранена",
		slog.String("key", r.EntryKey()),
		slog.String("kind", string(r.Kind())),
	)
	return nil
}

// PutText разбирает текст записи и сохраняет её под ключом key.
// Ключ внутри записи должен совпадать с key.
func (s *EntryService) PutText(ctx context.Context, key, text string) (model.Record, error) {
	r, err := codec.FromStorageText(text)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrValidation, err)
	}
	if r.EntryKey() != key {
		return nil, fmt.Errorf("%w: ключ записи %q не совпадает с ключом запроса %q", ErrValidation, r.EntryKey(), key)
	}
	if err := s.Put(ctx, r); err != nil {
		return nil, err
	}
	return r, nil
}

// Get возвращает запись по ключу.
// Сначала проверяет LRU-кэш, при промахе — запрос к хранилищу, результат кэшируется.
func (s *EntryService) Get(ctx context.Context, key string) (model.Record, error) {
	if r, ok := s.cache.Get(key); ok {
		return r, nil
	}

	r, err := s.store.Get(ctx, key)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrNotFound
		}
		var ce *codec.Error
		if errors.As(err, &ce) {
			codecFailuresTotal.Inc()
			s.logger.Warn("Повреждённая запись в хранилище",
				slog.String("key", key),
				slog.String("error", err.Error()),
			)
			return nil, fmt.Errorf("%w: %w", ErrCorrupted, err)
		}
		return nil, fmt.Errorf("получение записи: %w", err)
	}

	s.cache.Set(key, r)
	return r, nil
}

// Delete удаляет запись и инвалидирует кэш.
func (s *EntryService) Delete(ctx context.Context, key string) error {
	s.cache.Delete(key)
	err := s.store.Delete(ctx, key)
	// повторная инвалидация: параллельный Get мог вернуть запись в кэш
	// между первой инвалидацией и удалением из хранилища
	s.cache.Delete(key)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("удаление записи: %w", err)
	}

	s.logger.Debug("Запись удалена", slog.String("key", key))
	return nil
}

// List возвращает страницу записей. Повреждённые строки не прерывают
// выдачу: они логируются, учитываются в метрике и возвращаются в Corrupt.
func (s *EntryService) List(ctx context.Context, limit, offset int) (*ListResult, error) {
	limit = storage.ClampLimit(limit)
	offset = max(offset, 0)

	rows, err := s.store.ListRows(ctx, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("получение списка записей: %w", err)
	}

	items, corrupt := codec.DecodeRows(rows)
	for _, c := range corrupt {
		codecFailuresTotal.Inc()
		s.logger.Warn("Пропущена повреждённая запись",
			slog.String("id", c.ID),
			slog.String("error", c.Err.Error()),
		)
	}

	return &ListResult{
		Items:   items,
		Corrupt: corrupt,
		Limit:   limit,
		Offset:  offset,
		HasMore: len(rows) == limit,
	}, nil
}

// Inspect разбирает текст записи, проверяет инварианты и возвращает
// каноническую форму. Нарушения инвариантов не считаются ошибкой.
func (s *EntryService) Inspect(text string) (*InspectResult, error) {
	r, err := codec.FromStorageText(text)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrValidation, err)
	}

	canonical, err := codec.ToStorageText(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrValidation, err)
	}

	result := &InspectResult{Record: r, Canonical: canonical, Violations: []string{}}
	if err := model.Validate(r); err != nil {
		result.Violations = violations(err)
	}
	return result, nil
}

// Stats возвращает количество записей по видам.
func (s *EntryService) Stats(ctx context.Context) (map[model.Kind]int64, error) {
	counts, err := s.store.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("подсчёт записей: %w", err)
	}
	return counts, nil
}

// violations раскладывает объединённую ошибку валидации на сообщения,
// включая вложенные объединения.
func violations(err error) []string {
	var out []string
	var walk func(error)
	walk = func(e error) {
		if joined, ok := e.(interface{ Unwrap() []error }); ok {
			for _, inner := range joined.Unwrap() {
				walk(inner)
			}
			return
		}
		out = append(out, e.Error())
	}
	walk(err)
	return out
}
