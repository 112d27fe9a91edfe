// metrics.go — Prometheus HTTP метрики Metadata Index.
// Метрики: mx_http_requests_total, mx_http_request_duration_seconds.
package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mx_http_requests_total",
			Help: "Общее количество HTTP-запросов к Metadata Index",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mx_http_request_duration_seconds",
			Help:    "Длительность HTTP-запросов к Metadata Index в секундах",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)
)

// MetricsMiddleware возвращает HTTP middleware для сбора Prometheus метрик.
func MetricsMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			path := normalizePath(r.URL.Path)

			rec := newStatusRecorder(w)
			next.ServeHTTP(rec, r)

			httpRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(rec.status)).Inc()
			httpRequestDuration.WithLabelValues(r.Method, path).Observe(time.Since(start).Seconds())
		})
	}
}

// entriesPrefix — префикс путей отдельных записей.
const entriesPrefix = "/api/v1/entries/"

// normalizePath сворачивает ключи записей в {key}, чтобы лейбл path
// имел ограниченное число значений.
// /api/v1/entries/acct/stor/a.txt → /api/v1/entries/{key}
func normalizePath(path string) string {
	switch path {
	case "/health/live", "/health/ready", "/metrics",
		"/api/v1/entries", "/api/v1/inspect", "/api/v1/stats":
		return path
	}

	if strings.HasPrefix(path, entriesPrefix) {
		return entriesPrefix + "{key}"
	}
	return "other"
}
