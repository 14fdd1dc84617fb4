// Copyright 2025 Kadir Pekel
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package adminserver

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/kadirpekel/agent-memory/internal/config"
	"github.com/kadirpekel/agent-memory/internal/service"
)

func newTestServer(t *testing.T) (*Server, chi.Router) {
	t.Helper()
	cfg := &config.Config{}
	cfg.SetDefaults()
	cfg.Core.DBPath = ":memory:"

	svc, err := service.New(context.Background(), cfg)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = svc.Close(context.Background()) })

	s := New(svc, "127.0.0.1:0")

	r := chi.NewRouter()
	r.Get("/health", s.handleHealth)
	r.Route("/v1", func(r chi.Router) {
		r.Post("/events", s.handleIngestEvent)
		r.Get("/toc", s.handleGetTocRoot)
		r.Get("/status/scheduler", s.handleSchedulerStatus)
	})
	return s, r
}

func TestHealthEndpoint(t *testing.T) {
	_, r := newTestServer(t)

	req := httptest.NewRequest("GET", "/health", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != 200 {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	var resp map[string]string
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if resp["status"] != "ok" {
		t.Fatalf("expected status ok, got %q", resp["status"])
	}
}

func TestIngestEventEndpoint(t *testing.T) {
	_, r := newTestServer(t)

	body := `{"session_id":"sess-1","timestamp_ms":1700000000000,"role":"user","event_type":"user_message","text":"hi","agent":"claude-code"}`
	req := httptest.NewRequest("POST", "/v1/events", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != 200 {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
}

func TestGetTocRootEndpointEmpty(t *testing.T) {
	_, r := newTestServer(t)

	req := httptest.NewRequest("GET", "/v1/toc", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != 200 {
		t.Fatalf("expected 200, got %d", w.Code)
	}
}

func TestSchedulerStatusEndpointListsRegisteredJobs(t *testing.T) {
	_, r := newTestServer(t)

	req := httptest.NewRequest("GET", "/v1/status/scheduler", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != 200 {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	var statuses []map[string]any
	if err := json.NewDecoder(w.Body).Decode(&statuses); err != nil {
		t.Fatal(err)
	}
	if len(statuses) == 0 {
		t.Fatal("expected at least one registered job")
	}
}
