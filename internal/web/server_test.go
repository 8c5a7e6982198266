package web

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/kozaktomas/facegate/internal/database"
	"github.com/kozaktomas/facegate/internal/database/mock"
	"github.com/kozaktomas/facegate/internal/gate"
	"github.com/kozaktomas/facegate/internal/web/handlers"
)

type okActuator struct{}

func (okActuator) Unlock(ctx context.Context) error { return nil }

func newTestServer(t *testing.T) *Server {
	t.Helper()
	store := mock.NewMockStore(
		database.Record{Label: "Ali", Embedding: database.Vector{1, 0, 0}},
		database.Record{Label: "Ali", Embedding: database.Vector{0.9, 0.1, 0}},
		database.Record{Label: "Sara", Embedding: database.Vector{0, 1, 0}},
	)
	db, err := database.Open(context.Background(), store, 3)
	if err != nil {
		t.Fatalf("database.Open failed: %v", err)
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	g := gate.New(okActuator{}, time.Minute, []string{"Ali"}, gate.WithLogger(logger))
	if _, err := g.Attempt(context.Background(), "Ali", time.Now()); err != nil {
		t.Fatalf("Attempt failed: %v", err)
	}

	return NewServer("127.0.0.1:0", handlers.NewStatusHandler(db, g, nil, 0.25), logger)
}

func TestRoutes(t *testing.T) {
	srv := httptest.NewServer(newTestServer(t).Router())
	defer srv.Close()

	tests := []struct {
		name       string
		method     string
		path       string
		wantStatus int
	}{
		{"healthz", http.MethodGet, "/healthz", http.StatusOK},
		{"api health", http.MethodGet, "/api/v1/health", http.StatusOK},
		{"status", http.MethodGet, "/api/v1/status", http.StatusOK},
		{"templates", http.MethodGet, "/api/v1/templates", http.StatusOK},
		{"unknown", http.MethodGet, "/api/v1/unlock", http.StatusNotFound},
		{"no writes", http.MethodPost, "/api/v1/templates", http.StatusMethodNotAllowed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, err := http.NewRequest(tt.method, srv.URL+tt.path, nil)
			if err != nil {
				t.Fatal(err)
			}
			resp, err := http.DefaultClient.Do(req)
			if err != nil {
				t.Fatalf("request failed: %v", err)
			}
			defer resp.Body.Close()

			if resp.StatusCode != tt.wantStatus {
				t.Errorf("%s %s: expected %d, got %d", tt.method, tt.path, tt.wantStatus, resp.StatusCode)
			}
		})
	}
}

func TestStatusEndpoint(t *testing.T) {
	srv := httptest.NewServer(newTestServer(t).Router())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/v1/status")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	var body handlers.StatusResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if body.Database.Templates != 3 || body.Database.Labels != 2 || body.Database.Store != "mock" {
		t.Errorf("unexpected database status %+v", body.Database)
	}
	if body.Gate == nil || body.Gate.Outcomes.Fired != 1 || body.Gate.LastTrigger == nil {
		t.Errorf("unexpected gate status %+v", body.Gate)
	}
	if resp.Header.Get("X-Content-Type-Options") != "nosniff" {
		t.Error("expected nosniff header")
	}
}

func TestTemplatesEndpoint(t *testing.T) {
	srv := httptest.NewServer(newTestServer(t).Router())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/v1/templates")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	var body handlers.TemplatesResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(body.Labels) != 2 || body.Labels[0].Label != "Ali" || body.Labels[0].Templates != 2 {
		t.Errorf("unexpected labels %+v", body.Labels)
	}
}
