// entries.go — обработчики записей индекса.
package handlers

import (
	stderrors "errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"

	"github.com/go-chi/chi/v5"

	apierrors "github.com/bigkaa/goartstore/metadata-index/internal/api/errors"
	"github.com/bigkaa/goartstore/metadata-index/internal/domain/model"
	"github.com/bigkaa/goartstore/metadata-index/internal/service"
)

// maxBodySize — максимальный размер тела запроса с записью (1 МБ).
const maxBodySize = 1 << 20

// corruptRow — повреждённая строка в ответе списка.
type corruptRow struct {
	ID    string `json:"id"`
	Error string `json:"error"`
}

// listResponse — ответ GET /api/v1/entries.
type listResponse struct {
	Items   []model.Record `json:"items"`
	Corrupt []corruptRow   `json:"corrupt"`
	Limit   int            `json:"limit"`
	Offset  int            `json:"offset"`
	HasMore bool           `json:"has_more"`
}

// inspectResponse — ответ POST /api/v1/inspect.
type inspectResponse struct {
	Kind       model.Kind   `json:"kind"`
	Valid      bool         `json:"valid"`
	Violations []string     `json:"violations"`
	Canonical  string       `json:"canonical"`
	Record     model.Record `json:"record"`
}

// ListEntries — страница записей. Параметры: limit, offset.
func (h *APIHandler) ListEntries(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", 100)
	if err != nil {
		apierrors.ValidationError(w, err.Error())
		return
	}
	offset, err := queryInt(r, "offset", 0)
	if err != nil {
		apierrors.ValidationError(w, err.Error())
		return
	}

	res, err := h.entries.List(r.Context(), limit, offset)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	resp := listResponse{
		Items:   append(make([]model.Record, 0, len(res.Items)), res.Items...),
		Corrupt: make([]corruptRow, 0, len(res.Corrupt)),
		Limit:   res.Limit,
		Offset:  res.Offset,
		HasMore: res.HasMore,
	}
	for _, c := range res.Corrupt {
		resp.Corrupt = append(resp.Corrupt, corruptRow{ID: c.ID, Error: c.Err.Error()})
	}
	writeJSON(w, http.StatusOK, resp)
}

// GetEntry — запись по ключу.
func (h *APIHandler) GetEntry(w http.ResponseWriter, r *http.Request) {
	key, ok := entryKey(w, r)
	if !ok {
		return
	}

	rec, err := h.entries.Get(r.Context(), key)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}
	h.writeRecord(w, http.StatusOK, rec)
}

// PutEntry — сохранение записи. Тело — JSON записи; ключ внутри записи
// должен совпадать с ключом в пути.
func (h *APIHandler) PutEntry(w http.ResponseWriter, r *http.Request) {
	key, ok := entryKey(w, r)
	if !ok {
		return
	}
	body, ok := readBody(w, r)
	if !ok {
		return
	}

	rec, err := h.entries.PutText(r.Context(), key, string(body))
	if err != nil {
		h.handleServiceError(w, err)
		return
	}
	h.writeRecord(w, http.StatusOK, rec)
}

// DeleteEntry — удаление записи.
func (h *APIHandler) DeleteEntry(w http.ResponseWriter, r *http.Request) {
	key, ok := entryKey(w, r)
	if !ok {
		return
	}

	if err := h.entries.Delete(r.Context(), key); err != nil {
		h.handleServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// InspectEntry — разбор записи без сохранения: каноническая форма
// и список нарушений инвариантов.
func (h *APIHandler) InspectEntry(w http.ResponseWriter, r *http.Request) {
	body, ok := readBody(w, r)
	if !ok {
		return
	}

	res, err := h.entries.Inspect(string(body))
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, inspectResponse{
		Kind:       res.Record.Kind(),
		Valid:      len(res.Violations) == 0,
		Violations: res.Violations,
		Canonical:  res.Canonical,
		Record:     res.Record,
	})
}

// GetStats — количество записей по видам.
func (h *APIHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	counts, err := h.entries.Stats(r.Context())
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	resp := map[string]int64{
		string(model.KindObject):    counts[model.KindObject],
		string(model.KindDirectory): counts[model.KindDirectory],
	}
	resp["total"] = resp[string(model.KindObject)] + resp[string(model.KindDirectory)]
	writeJSON(w, http.StatusOK, resp)
}

// writeRecord пишет запись в канонической форме.
func (h *APIHandler) writeRecord(w http.ResponseWriter, status int, rec model.Record) {
	data, err := model.Encode(rec)
	if err != nil {
		h.logger.Error("Ошибка кодирования записи", slog.String("error", err.Error()))
		apierrors.InternalError(w, "Ошибка кодирования записи")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

// handleServiceError преобразует ошибку сервисного слоя в HTTP-ответ.
func (h *APIHandler) handleServiceError(w http.ResponseWriter, err error) {
	switch {
	case stderrors.Is(err, service.ErrValidation):
		apierrors.ValidationError(w, err.Error())
	case stderrors.Is(err, service.ErrNotFound):
		apierrors.NotFound(w, "Запись не найдена")
	case stderrors.Is(err, service.ErrCorrupted):
		apierrors.CorruptedRecord(w, err.Error())
	default:
		h.logger.Error("Ошибка обработки запроса", slog.String("error", err.Error()))
		apierrors.InternalError(w, "Внутренняя ошибка сервера")
	}
}

// entryKey извлекает ключ записи из wildcard пути.
// chi сопоставляет RawPath, если он задан, поэтому значение может быть экранировано.
func entryKey(w http.ResponseWriter, r *http.Request) (string, bool) {
	key := chi.URLParam(r, "*")
	if r.URL.RawPath != "" {
		unescaped, err := url.PathUnescape(key)
		if err != nil {
			apierrors.ValidationError(w, fmt.Sprintf("Некорректный ключ записи: %v", err))
			return "", false
		}
		key = unescaped
	}
	if key == "" {
		apierrors.ValidationError(w, "Ключ записи не указан")
		return "", false
	}
	return key, true
}

// readBody читает тело запроса с ограничением размера.
func readBody(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodySize))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if stderrors.As(err, &tooLarge) {
			apierrors.PayloadTooLarge(w, fmt.Sprintf("Тело запроса превышает %d байт", maxBodySize))
			return nil, false
		}
		apierrors.ValidationError(w, fmt.Sprintf("Ошибка чтения тела запроса: %v", err))
		return nil, false
	}
	return body, true
}

// queryInt читает целочисленный query-параметр.
func queryInt(r *http.Request, name string, defaultVal int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return defaultVal, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("параметр %s: ожидается неотрицательное целое, получено %q", name, raw)
	}
	return n, nil
}
