// health.go — обработчики health endpoints Metadata Index.
// /health/live — liveness probe (процесс жив)
// /health/ready — readiness probe (хранилище записей доступно)
// /metrics — Prometheus метрики
package handlers

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/bigkaa/goartstore/metadata-index/internal/config"
)

// serviceName — имя сервиса в ответах health endpoints.
const serviceName = "metadata-index"

// ReadinessChecker — интерфейс проверки готовности зависимости.
type ReadinessChecker interface {
	// CheckReady возвращает статус ("ok", "degraded", "fail") и сообщение.
	CheckReady() (status, message string)
}

// HealthHandler — обработчик health endpoints.
type HealthHandler struct {
	storeChecker ReadinessChecker
	promHandler  http.Handler
}

// NewHealthHandler создаёт обработчик health endpoints.
// storeChecker — проверка хранилища (может быть nil — readiness вернёт "fail").
func NewHealthHandler(storeChecker ReadinessChecker) *HealthHandler {
	return &HealthHandler{
		storeChecker: storeChecker,
		promHandler:  promhttp.Handler(),
	}
}

// healthCheckResult — результат проверки одной зависимости.
type healthCheckResult struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// healthLiveResponse — ответ liveness probe.
type healthLiveResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Version   string `json:"version"`
	Service   string `json:"service"`
}

// healthReadyResponse — ответ readiness probe.
type healthReadyResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Version   string `json:"version"`
	Service   string `json:"service"`
	Checks    struct {
		Store healthCheckResult `json:"store"`
	} `json:"checks"`
}

// HealthLive — liveness probe. Возвращает 200 если процесс жив.
func (h *HealthHandler) HealthLive(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, healthLiveResponse{
		Status:    "ok",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Version:   config.Version,
		Service:   serviceName,
	})
}

// HealthReady — readiness probe. Проверяет хранилище записей.
// Возвращает 200 (ok/degraded) или 503 (fail).
func (h *HealthHandler) HealthReady(w http.ResponseWriter, _ *http.Request) {
	resp := healthReadyResponse{
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Version:   config.Version,
		Service:   serviceName,
	}

	if h.storeChecker != nil {
		status, msg := h.storeChecker.CheckReady()
		resp.Checks.Store = healthCheckResult{Status: status, Message: msg}
	} else {
		resp.Checks.Store = healthCheckResult{Status: statusFail, Message: "не инициализировано"}
	}

	resp.Status = overallStatus(resp.Checks.Store.Status)

	status := http.StatusOK
	if resp.Status == statusFail {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, resp)
}

// GetMetrics — Prometheus метрики.
func (h *HealthHandler) GetMetrics(w http.ResponseWriter, r *http.Request) {
	h.promHandler.ServeHTTP(w, r)
}

// Константы статусов health check.
const (
	statusFail     = "fail"
	statusDegraded = "degraded"
)

// overallStatus определяет итоговый статус из статусов зависимостей.
// Если хотя бы одна зависимость fail — итог fail.
// Если хотя бы одна degraded — итог degraded.
// Иначе — ok.
func overallStatus(statuses ...string) string {
	hasDegraded := false
	for _, s := range statuses {
		if s == statusFail {
			return statusFail
		}
		if s == statusDegraded {
			hasDegraded = true
		}
	}
	if hasDegraded {
		return statusDegraded
	}
	return "ok"
}
