package handlers

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/bigkaa/goartstore/metadata-index/internal/service"
	"github.com/bigkaa/goartstore/metadata-index/internal/storage/sqlstore"
)

const testOwner = "3f1c2a9e-6b7d-4e8f-9a0b-1c2d3e4f5a6b"

// objectJSON — корректный объект с ключом key.
func objectJSON(key string) string {
	return `{"type":"object","key":"` + key + `","mtime":100,"name":"a.txt","creator":"c",` +
		`"dirname":"/acct/stor","owner":"` + testOwner + `","roles":[],"vnode":1,` +
		`"contentLength":5,"contentType":"text/plain",` +
		`"sharks":[{"datacenter":"dc1","manta_storage_id":"1.stor.dc1"}]}`
}

// directoryJSON — директория с ключом key, владельцем owner и vnode.
func directoryJSON(key, owner string, vnode int) string {
	return `{"type":"DIRECTORY","key":"` + key + `","mtime":1,"name":"d","creator":"c",` +
		`"dirname":"/","owner":"` + owner + `","roles":[],"vnode":` + strconv.Itoa(vnode) + `}`
}

// mockChecker — фиксированный результат проверки готовности.
type mockChecker struct {
	status, message string
}

func (m mockChecker) CheckReady() (string, string) { return m.status, m.message }

// testEnv — роутер API поверх SQLite в памяти.
type testEnv struct {
	router http.Handler
	store  *sqlstore.Store
}

func newTestEnv(t *testing.T, checker ReadinessChecker) *testEnv {
	t.Helper()

	store, err := sqlstore.Open(context.Background(), "sqlite", ":memory:")
	if err != nil {
		t.Fatalf("sqlstore.Open() = %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	logger := slog.New(slog.DiscardHandler)
	entries := service.NewEntryService(store, service.NewCacheService(100, time.Minute), logger)
	api := NewAPIHandler(NewHealthHandler(checker), entries, logger)

	r := chi.NewRouter()
	api.RegisterRoutes(r)
	return &testEnv{router: r, store: store}
}

func (e *testEnv) do(t *testing.T, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()

	var rdr io.Reader
	if body != "" {
		rdr = strings.NewReader(body)
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, httptest.NewRequest(method, target, rdr))
	return rec
}

// errorCode извлекает код ошибки из стандартного тела ответа.
func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()

	var body struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("тело ошибки %q не является JSON: %v", rec.Body.String(), err)
	}
	return body.Error.Code
}

// TestEntries_PutGetDelete проверяет полный цикл работы с записью.
func TestEntries_PutGetDelete(t *testing.T) {
	env := newTestEnv(t, nil)
	const path = "/api/v1/entries/acct/stor/a.txt"

	rec := env.do(t, http.MethodPut, path, objectJSON("acct/stor/a.txt"))
	if rec.Code != http.StatusOK {
		t.Fatalf("PUT = %d %s, ожидался 200", rec.Code, rec.Body.String())
	}
	// Ответ в канонической форме: псевдонимы заменены каноническими именами
	if strings.Contains(rec.Body.String(), "contentLength") ||
		!strings.Contains(rec.Body.String(), `"content_length":5`) {
		t.Errorf("PUT вернул неканоническую запись: %s", rec.Body.String())
	}

	rec = env.do(t, http.MethodGet, path, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("GET = %d %s, ожидался 200", rec.Code, rec.Body.String())
	}
	if !strings.HasPrefix(rec.Body.String(), `{"type":"object",`) {
		t.Errorf("GET = %s, ожидался объект", rec.Body.String())
	}

	rec = env.do(t, http.MethodDelete, path, "")
	if rec.Code != http.StatusNoContent {
		t.Fatalf("DELETE = %d, ожидался 204", rec.Code)
	}

	rec = env.do(t, http.MethodGet, path, "")
	if rec.Code != http.StatusNotFound || errorCode(t, rec) != "NOT_FOUND" {
		t.Errorf("GET после DELETE = %d %s, ожидался 404 NOT_FOUND", rec.Code, rec.Body.String())
	}

	rec = env.do(t, http.MethodDelete, path, "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("повторный DELETE = %d, ожидался 404", rec.Code)
	}
}

// TestEntries_EscapedKey проверяет ключи с экранированными символами.
func TestEntries_EscapedKey(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.do(t, http.MethodPut, "/api/v1/entries/dir%20one%2Fa", objectJSON("dir one/a"))
	if rec.Code != http.StatusOK {
		t.Fatalf("PUT = %d %s, ожидался 200", rec.Code, rec.Body.String())
	}
	if _, err := env.store.Get(context.Background(), "dir one/a"); err != nil {
		t.Errorf("запись не сохранена под ключом %q: %v", "dir one/a", err)
	}
}

// TestEntries_PutErrors проверяет отказы при сохранении.
func TestEntries_PutErrors(t *testing.T) {
	tests := []struct {
		name string
		path string
		body string
		code int
		err  string
	}{
		{"некорректный JSON", "/api/v1/entries/k", "{not json", http.StatusBadRequest, "VALIDATION_ERROR"},
		{"неизвестный тип", "/api/v1/entries/k", `{"type":"file","key":"k"}`, http.StatusBadRequest, "VALIDATION_ERROR"},
		{"ключ не совпадает", "/api/v1/entries/other", objectJSON("k"), http.StatusBadRequest, "VALIDATION_ERROR"},
		{
			"нарушение инварианта",
			"/api/v1/entries/k",
			strings.Replace(objectJSON("k"), testOwner, "not-a-uuid", 1),
			http.StatusBadRequest,
			"VALIDATION_ERROR",
		},
		{
			"слишком большое тело",
			"/api/v1/entries/k",
			`{"type":"directory","name":"` + strings.Repeat("x", maxBodySize) + `"}`,
			http.StatusRequestEntityTooLarge,
			"PAYLOAD_TOO_LARGE",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, nil)

			rec := env.do(t, http.MethodPut, tt.path, tt.body)
			if rec.Code != tt.code {
				t.Fatalf("PUT = %d %s, ожидался %d", rec.Code, rec.Body.String(), tt.code)
			}
			if got := errorCode(t, rec); got != tt.err {
				t.Errorf("code = %q, ожидался %q", got, tt.err)
			}
		})
	}
}

// TestEntries_CorruptedRecord проверяет ответ на повреждённую строку.
func TestEntries_CorruptedRecord(t *testing.T) {
	env := newTestEnv(t, nil)

	_, err := env.store.DB().Exec(
		`INSERT INTO manta_entries (entry_key, kind, record) VALUES ('bad', 'object', '{not json')`)
	if err != nil {
		t.Fatalf("вставка строки: %v", err)
	}

	rec := env.do(t, http.MethodGet, "/api/v1/entries/bad", "")
	if rec.Code != http.StatusInternalServerError || errorCode(t, rec) != "CORRUPTED_RECORD" {
		t.Errorf("GET = %d %s, ожидался 500 CORRUPTED_RECORD", rec.Code, rec.Body.String())
	}
}

// TestEntries_List проверяет страницу записей и повреждённые строки.
func TestEntries_List(t *testing.T) {
	env := newTestEnv(t, nil)

	for _, key := range []string{"a", "b", "c"} {
		if rec := env.do(t, http.MethodPut, "/api/v1/entries/"+key, objectJSON(key)); rec.Code != http.StatusOK {
			t.Fatalf("PUT %s = %d %s", key, rec.Code, rec.Body.String())
		}
	}
	_, err := env.store.DB().Exec(
		`INSERT INTO manta_entries (entry_key, kind, record) VALUES ('bb', 'directory', '[]')`)
	if err != nil {
		t.Fatalf("вставка строки: %v", err)
	}

	rec := env.do(t, http.MethodGet, "/api/v1/entries?limit=3", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("GET = %d %s, ожидался 200", rec.Code, rec.Body.String())
	}

	var resp struct {
		Items   []json.RawMessage `json:"items"`
		Corrupt []corruptRow      `json:"corrupt"`
		Limit   int               `json:"limit"`
		Offset  int               `json:"offset"`
		HasMore bool              `json:"has_more"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("ответ не является JSON: %v", err)
	}
	if len(resp.Items) != 2 || len(resp.Corrupt) != 1 || resp.Corrupt[0].ID != "bb" {
		t.Errorf("items = %d, corrupt = %+v, ожидалось 2 записи и строка bb", len(resp.Items), resp.Corrupt)
	}
	if resp.Limit != 3 || resp.Offset != 0 || !resp.HasMore {
		t.Errorf("limit=%d offset=%d has_more=%v, ожидалось 3 0 true", resp.Limit, resp.Offset, resp.HasMore)
	}

	rec = env.do(t, http.MethodGet, "/api/v1/entries?offset=3", "")
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("ответ не является JSON: %v", err)
	}
	if len(resp.Items) != 1 || resp.HasMore {
		t.Errorf("вторая страница: items = %d, has_more = %v", len(resp.Items), resp.HasMore)
	}

	for _, q := range []string{"limit=abc", "offset=-1"} {
		if rec := env.do(t, http.MethodGet, "/api/v1/entries?"+q, ""); rec.Code != http.StatusBadRequest {
			t.Errorf("GET ?%s = %d, ожидался 400", q, rec.Code)
		}
	}
}

// TestInspect проверяет разбор без сохранения.
func TestInspect(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.do(t, http.MethodPost, "/api/v1/inspect",
		directoryJSON("d", "not-a-uuid", -1))
	if rec.Code != http.StatusOK {
		t.Fatalf("POST = %d %s, ожидался 200", rec.Code, rec.Body.String())
	}

	var resp struct {
		Kind       string          `json:"kind"`
		Valid      bool            `json:"valid"`
		Violations []string        `json:"violations"`
		Canonical  string          `json:"canonical"`
		Record     json.RawMessage `json:"record"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("ответ не является JSON: %v", err)
	}
	if resp.Kind != "directory" || resp.Valid || len(resp.Violations) != 2 {
		t.Errorf("kind=%q valid=%v violations=%v", resp.Kind, resp.Valid, resp.Violations)
	}
	if !strings.HasPrefix(resp.Canonical, `{"type":"directory",`) {
		t.Errorf("canonical = %s", resp.Canonical)
	}

	if rec := env.do(t, http.MethodGet, "/api/v1/entries/d", ""); rec.Code != http.StatusNotFound {
		t.Errorf("inspect сохранил запись: GET = %d", rec.Code)
	}

	rec = env.do(t, http.MethodPost, "/api/v1/inspect", `{"type":"object"}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("POST без key = %d, ожидался 400", rec.Code)
	}
}

// TestStats проверяет подсчёт записей по видам.
func TestStats(t *testing.T) {
	env := newTestEnv(t, nil)

	env.do(t, http.MethodPut, "/api/v1/entries/a", objectJSON("a"))
	env.do(t, http.MethodPut, "/api/v1/entries/d", directoryJSON("d", testOwner, 0))

	rec := env.do(t, http.MethodGet, "/api/v1/stats", "")
	var resp map[string]int64
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("ответ не является JSON: %v", err)
	}
	if resp["object"] != 1 || resp["directory"] != 1 || resp["total"] != 2 {
		t.Errorf("stats = %v, ожидалось object=1 directory=1 total=2", resp)
	}
}

// TestHealth проверяет liveness и readiness.
func TestHealth(t *testing.T) {
	tests := []struct {
		name    string
		checker ReadinessChecker
		code    int
		status  string
	}{
		{"ok", mockChecker{"ok", "подключение активно"}, http.StatusOK, "ok"},
		{"degraded", mockChecker{"degraded", "медленно"}, http.StatusOK, "degraded"},
		{"fail", mockChecker{"fail", "недоступен"}, http.StatusServiceUnavailable, "fail"},
		{"нет проверки", nil, http.StatusServiceUnavailable, "fail"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, tt.checker)

			rec := env.do(t, http.MethodGet, "/health/ready", "")
			if rec.Code != tt.code {
				t.Errorf("ready = %d, ожидался %d", rec.Code, tt.code)
			}
			var resp healthReadyResponse
			if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
				t.Fatalf("ответ не является JSON: %v", err)
			}
			if resp.Status != tt.status || resp.Service != serviceName {
				t.Errorf("status=%q service=%q", resp.Status, resp.Service)
			}
		})
	}

	env := newTestEnv(t, nil)
	if rec := env.do(t, http.MethodGet, "/health/live", ""); rec.Code != http.StatusOK {
		t.Errorf("live = %d, ожидался 200", rec.Code)
	}
	if rec := env.do(t, http.MethodGet, "/metrics", ""); rec.Code != http.StatusOK {
		t.Errorf("metrics = %d, ожидался 200", rec.Code)
	}
}

// TestOverallStatus проверяет свёртку статусов зависимостей.
func TestOverallStatus(t *testing.T) {
	tests := []struct {
		in   []string
		want string
	}{
		{[]string{"ok"}, "ok"},
		{[]string{"ok", "degraded"}, "degraded"},
		{[]string{"degraded", "fail"}, "fail"},
		{nil, "ok"},
	}
	for _, tt := range tests {
		if got := overallStatus(tt.in...); got != tt.want {
			t.Errorf("overallStatus(%v) = %q, ожидается %q", tt.in, got, tt.want)
		}
	}
}
