// handler.go — основной обработчик API Metadata Index.
// Объединяет health и обработчики записей, регистрирует маршруты chi.
package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/bigkaa/goartstore/metadata-index/internal/service"
)

// APIHandler — основной обработчик API Metadata Index.
type APIHandler struct {
	health  *HealthHandler
	entries *service.EntryService
	logger  *slog.Logger
}

// NewAPIHandler создаёт основной обработчик API.
func NewAPIHandler(
	health *HealthHandler,
	entries *service.EntryService,
	logger *slog.Logger,
) *APIHandler {
	return &APIHandler{
		health:  health,
		entries: entries,
		logger:  logger.With(slog.String("component", "api_handler")),
	}
}

// RegisterRoutes регистрирует маршруты API в роутере.
// Ключи записей содержат "/", поэтому передаются через wildcard.
func (h *APIHandler) RegisterRoutes(r chi.Router) {
	r.Get("/health/live", h.health.HealthLive)
	r.Get("/health/ready", h.health.HealthReady)
	r.Get("/metrics", h.health.GetMetrics)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/entries", h.ListEntries)
		r.Get("/entries/*", h.GetEntry)
		r.Put("/entries/*", h.PutEntry)
		r.Delete("/entries/*", h.DeleteEntry)
		r.Post("/inspect", h.InspectEntry)
		r.Get("/stats", h.GetStats)
	})
}

// --- Вспомогательные функции ---

// writeJSON записывает JSON-ответ с указанным статусом.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}
