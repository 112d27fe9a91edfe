// Пакет service — бизнес-логика Metadata Index.
// CacheService — LRU-кэш записей индекса с TTL.
// Обёртка над hashicorp/golang-lru/v2/expirable.
package service

import (
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/bigkaa/goartstore/metadata-index/internal/domain/model"
)

// Prometheus-метрики кэша.
var (
	cacheHitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mx_cache_hits_total",
		Help: "Общее количество попаданий в LRU-кэш записей.",
	})
	cacheMissesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mx_cache_misses_total",
		Help: "Общее количество промахов LRU-кэша записей.",
	})
)

// CacheService — LRU-кэш записей по ключу с автоматическим TTL.
// Записи — значения, но Headers разделяется с кэшем: вызывающий код
// не должен изменять полученные записи.
type CacheService struct {
	cache *expirable.LRU[string, model.Record]
}

// NewCacheService создаёт LRU-кэш с указанным максимальным размером и TTL.
func NewCacheService(maxSize int, ttl time.Duration) *CacheService {
	cache := expirable.NewLRU[string, model.Record](maxSize, nil, ttl)
	return &CacheService{cache: cache}
}

// Get возвращает запись из кэша по ключу.
// Обновляет Prometheus-метрики hit/miss.
func (c *CacheService) Get(key string) (model.Record, bool) {
	val, ok := c.cache.Get(key)
	if ok {
		cacheHitsTotal.Inc()
		return val, true
	}
	cacheMissesTotal.Inc()
	return nil, false
}

// Set добавляет или обновляет запись в кэше.
func (c *CacheService) Set(key string, r model.Record) {
	c.cache.Add(key, r)
}

// Delete удаляет запись из кэша.
func (c *CacheService) Delete(key string) {
	c.cache.Remove(key)
}

// Len возвращает количество записей в кэше.
func (c *CacheService) Len() int {
	return c.cache.Len()
}
