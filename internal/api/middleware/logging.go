// logging.go — middleware логирования HTTP-запросов Metadata Index через slog.
package middleware

import (
	"log/slog"
	"net/http"
	"time"
)

// statusRecorder — обёртка ResponseWriter, запоминающая статус и размер ответа.
// Используется и логированием, и метриками.
type statusRecorder struct {
	http.ResponseWriter
	status  int
	written int64
}

func newStatusRecorder(w http.ResponseWriter) *statusRecorder {
	return &statusRecorder{ResponseWriter: w, status: http.StatusOK}
}

func (rec *statusRecorder) WriteHeader(code int) {
	rec.status = code
	rec.ResponseWriter.WriteHeader(code)
}

func (rec *statusRecorder) Write(b []byte) (int, error) {
	n, err := rec.ResponseWriter.Write(b)
	rec.written += int64(n)
	return n, err
}

// Unwrap нужен http.ResponseController.
func (rec *statusRecorder) Unwrap() http.ResponseWriter {
	return rec.ResponseWriter
}

// levelForStatus: 5xx — ERROR, 4xx — WARN, остальное — INFO.
// Probe-запросы health и scrape /metrics логируются на DEBUG.
func levelForStatus(path string, status int) slog.Level {
	switch {
	case status >= 500:
		return slog.LevelError
	case status >= 400:
		return slog.LevelWarn
	case path == "/health/live" || path == "/health/ready" || path == "/metrics":
		return slog.LevelDebug
	}
	return slog.LevelInfo
}

// RequestLogger возвращает middleware, логирующий каждый HTTP-запрос.
func RequestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	logger = logger.With(slog.String("component", "http"))
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := newStatusRecorder(w)

			next.ServeHTTP(rec, r)

			logger.LogAttrs(r.Context(), levelForStatus(r.URL.Path, rec.status), "HTTP запрос",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", rec.status),
				slog.Duration("duration", time.Since(start)),
				slog.Int64("bytes", rec.written),
				slog.String("remote_addr", r.RemoteAddr),
			)
		})
	}
}
