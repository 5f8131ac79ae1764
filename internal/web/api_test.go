package web

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/mtzanidakis/gridswarm/internal/config"
	"github.com/mtzanidakis/gridswarm/internal/store"
)

func newTestServer(t *testing.T) (*Server, *store.Store) {
	t.Helper()
	s, err := store.New(config.StoreConfig{Path: filepath.Join(t.TempDir(), "test.db")})
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	srv := NewServer(s, nil, config.WebConfig{Port: 0}, "test")
	return srv, s
}

func testMux(srv *Server) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/status", srv.handleStatus)
	mux.HandleFunc("GET /api/runs", srv.handleListRuns)
	mux.HandleFunc("GET /api/runs/{id}", srv.handleGetRun)
	mux.HandleFunc("GET /api/runs/{id}/sessions", srv.handleListSessions)
	return mux
}

func TestStatusEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := httptest.NewRecorder()
	testMux(srv).ServeHTTP(rec, httptest.NewRequest("GET", "/api/status", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["version"] != "test" {
		t.Errorf("expected version 'test', got %v", body["version"])
	}
}

func TestListRuns(t *testing.T) {
	srv, s := newTestServer(t)

	run := &store.Run{ID: "run-1", Agent: "random", CardID: "card-1", Games: []string{"ls20"}, Status: "completed"}
	if err := s.SaveRun(run); err != nil {
		t.Fatalf("save run: %v", err)
	}

	rec := httptest.NewRecorder()
	testMux(srv).ServeHTTP(rec, httptest.NewRequest("GET", "/api/runs", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var runs []store.Run
	if err := json.Unmarshal(rec.Body.Bytes(), &runs); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(runs) != 1 || runs[0].ID != "run-1" {
		t.Fatalf("unexpected runs: %+v", runs)
	}
}

func TestListRunsBadLimit(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := httptest.NewRecorder()
	testMux(srv).ServeHTTP(rec, httptest.NewRequest("GET", "/api/runs?limit=zero", nil))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestGetRunNotFound(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := httptest.NewRecorder()
	testMux(srv).ServeHTTP(rec, httptest.NewRequest("GET", "/api/runs/missing", nil))

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestListSessions(t *testing.T) {
	srv, s := newTestServer(t)

	run := &store.Run{ID: "run-1", Agent: "random", Games: []string{"ls20", "ft09"}, Status: "completed"}
	if err := s.SaveRun(run); err != nil {
		t.Fatalf("save run: %v", err)
	}
	for _, g := range run.Games {
		sess := &store.Session{RunID: "run-1", GameID: g, Actions: 10, Score: 1, State: "WIN"}
		if err := s.SaveSession(sess); err != nil {
			t.Fatalf("save session: %v", err)
		}
	}

	rec := httptest.NewRecorder()
	testMux(srv).ServeHTTP(rec, httptest.NewRequest("GET", "/api/runs/run-1/sessions", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var sessions []store.Session
	if err := json.Unmarshal(rec.Body.Bytes(), &sessions); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(sessions) != 2 {
		t.Fatalf("expected 2 sessions, got %d", len(sessions))
	}
}
