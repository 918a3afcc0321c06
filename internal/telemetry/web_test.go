package telemetry

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func newTestWebServer(t *testing.T, path string) *WebServer {
	t.Helper()
	ws, err := NewWebServer(path, "127.0.0.1:0", nil)
	if err != nil {
		t.Fatalf("NewWebServer: %v", err)
	}
	t.Cleanup(func() { ws.db.Close() })
	return ws
}

func TestWebServerStatsEndpoint(t *testing.T) {
	store, path := newTestStore(t)
	if err := store.SaveSession(sampleSession()); err != nil {
		t.Fatalf("SaveSession: %v", err)
	}

	ws := newTestWebServer(t, path)

	req := httptest.NewRequest(http.MethodGet, "/api/stats", nil)
	rec := httptest.NewRecorder()
	ws.engine.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var stats Stats
	if err := json.Unmarshal(rec.Body.Bytes(), &stats); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if stats.SessionCount != 1 {
		t.Fatalf("expected 1 session, got %d", stats.SessionCount)
	}
}

func TestWebServerSessionsEndpointClampsLimit(t *testing.T) {
	store, path := newTestStore(t)
	if err := store.SaveSession(sampleSession()); err != nil {
		t.Fatalf("SaveSession: %v", err)
	}
	ws := newTestWebServer(t, path)

	req := httptest.NewRequest(http.MethodGet, "/api/sessions?limit=10000&offset=0", nil)
	rec := httptest.NewRecorder()
	ws.engine.ServeHTTP(rec, req)

	var body struct {
		Limit int `json:"limit"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if body.Limit != maxSessionsLimit {
		t.Fatalf("expected limit clamped to %d, got %d", maxSessionsLimit, body.Limit)
	}
}

func TestWebServerSessionDetailNotFound(t *testing.T) {
	_, path := newTestStore(t)
	ws := newTestWebServer(t, path)

	req := httptest.NewRequest(http.MethodGet, "/api/sessions/nonexistent", nil)
	rec := httptest.NewRecorder()
	ws.engine.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestWebServerUnknownPathReturnsJSON404(t *testing.T) {
	_, path := newTestStore(t)
	ws := newTestWebServer(t, path)

	req := httptest.NewRequest(http.MethodGet, "/nope", nil)
	rec := httptest.NewRecorder()
	ws.engine.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
	if rec.Header().Get("Content-Type") == "" {
		t.Fatal("expected a content type header on the 404 response")
	}
}

func TestWebServerDashboardServesHTML(t *testing.T) {
	_, path := newTestStore(t)
	ws := newTestWebServer(t, path)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	ws.engine.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct == "" {
		t.Fatal("expected a content type header")
	}
}
