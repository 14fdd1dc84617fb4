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

// Package adminserver is a thin, read-mostly HTTP surface over
// internal/service: health, Prometheus metrics, and JSON views of the
// Service operations for operators and dashboards. It is not the wire
// protocol an agent client speaks - that stays out of scope - this is an
// operational side channel, routed with go-chi the way the teacher's
// transport middleware expects (chi.RouteContext route patterns).
package adminserver

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/kadirpekel/agent-memory/internal/router"
	"github.com/kadirpekel/agent-memory/internal/service"
	"github.com/kadirpekel/agent-memory/internal/types"
)

// Server is the admin/status HTTP server.
type Server struct {
	svc  *service.Service
	addr string
	http *http.Server
}

// New builds a Server. addr is host:port, e.g. "127.0.0.1:8765".
func New(svc *service.Service, addr string) *Server {
	return &Server{svc: svc, addr: addr}
}

// Start builds the route table and serves until ctx is cancelled, then
// shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)

	r.Get("/health", s.handleHealth)
	r.Handle("/metrics", s.svc.Observability.MetricsHandler())

	r.Route("/v1", func(r chi.Router) {
		r.Post("/events", s.handleIngestEvent)
		r.Get("/events", s.handleGetEvents)

		r.Get("/toc", s.handleGetTocRoot)
		r.Get("/toc/{nodeID}", s.handleGetNode)
		r.Get("/toc/{nodeID}/children", s.handleBrowseToc)

		r.Get("/grips/{gripID}", s.handleExpandGrip)

		r.Get("/search/teleport", s.handleTeleportSearch)
		r.Get("/search/vector", s.handleVectorTeleport)
		r.Get("/search/hybrid", s.handleHybridSearch)
		r.Get("/route", s.handleRouteQuery)

		r.Get("/status/vector", s.handleVectorStatus)
		r.Get("/status/teleport", s.handleTeleportStatus)
		r.Get("/status/ranking", s.handleRankingStatus)
		r.Get("/status/scheduler", s.handleSchedulerStatus)

		r.Get("/agents", s.handleGetAgents)
		r.Get("/agents/activity", s.handleGetAgentActivity)

		r.Post("/admin/rebuild", s.handleRebuildIndex)
		r.Post("/admin/prune/vector", s.handlePruneVector)
		r.Post("/admin/prune/keyword", s.handlePruneKeyword)
		r.Post("/admin/compact", s.handleCompact)
		r.Post("/admin/jobs/{name}/pause", s.handlePauseJob)
		r.Post("/admin/jobs/{name}/resume", s.handleResumeJob)
	})

	s.http = &http.Server{
		Addr:         s.addr,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("admin server starting", "addr", s.addr)
		if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.http.Shutdown(shutdownCtx)
	}
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		slog.Debug("admin request", "method", r.Method, "path", r.URL.Path, "duration", time.Since(start))
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch types.CodeOf(err) {
	case types.CodeInvalidArgument:
		status = http.StatusBadRequest
	case types.CodeNotFound:
		status = http.StatusNotFound
	case types.CodeAlreadyExists, types.CodeConflict:
		status = http.StatusConflict
	case types.CodeUnavailable, types.CodeFailedPrecondition:
		status = http.StatusServiceUnavailable
	case types.CodeTimeout:
		status = http.StatusGatewayTimeout
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func queryInt(r *http.Request, name string, def int) int {
	v := r.URL.Query().Get(name)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func queryInt64(r *http.Request, name string, def int64) int64 {
	v := r.URL.Query().Get(name)
	if v == "" {
		return def
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return def
	}
	return n
}

func queryFloat(r *http.Request, name string, def float64) float64 {
	v := r.URL.Query().Get(name)
	if v == "" {
		return def
	}
	n, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def
	}
	return n
}

func timeRangeFromQuery(r *http.Request) *service.TimeRange {
	fromMs := queryInt64(r, "from_ms", 0)
	toMs := queryInt64(r, "to_ms", 0)
	if fromMs == 0 && toMs == 0 {
		return nil
	}
	return &service.TimeRange{FromMs: fromMs, ToMs: toMs}
}

func (s *Server) handleIngestEvent(w http.ResponseWriter, r *http.Request) {
	var e types.Event
	if err := json.NewDecoder(r.Body).Decode(&e); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid body: " + err.Error()})
		return
	}
	res, err := s.svc.IngestEvent(r.Context(), &e)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleGetEvents(w http.ResponseWriter, r *http.Request) {
	fromMs := queryInt64(r, "from_ms", 0)
	toMs := queryInt64(r, "to_ms", 0)
	limit := queryInt(r, "limit", 100)
	events, err := s.svc.GetEvents(r.Context(), fromMs, toMs, limit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, events)
}

func (s *Server) handleGetTocRoot(w http.ResponseWriter, r *http.Request) {
	nodes, err := s.svc.GetTocRoot(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, nodes)
}

func (s *Server) handleGetNode(w http.ResponseWriter, r *http.Request) {
	node, err := s.svc.GetNode(r.Context(), chi.URLParam(r, "nodeID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, node)
}

func (s *Server) handleBrowseToc(w http.ResponseWriter, r *http.Request) {
	nodeID := chi.URLParam(r, "nodeID")
	if nodeID == "root" {
		nodeID = ""
	}
	page := r.URL.Query().Get("page_token")
	limit := queryInt(r, "limit", 100)
	res, err := s.svc.BrowseToc(r.Context(), nodeID, page, limit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleExpandGrip(w http.ResponseWriter, r *http.Request) {
	before := queryInt(r, "before", 3)
	after := queryInt(r, "after", 3)
	res, err := s.svc.ExpandGrip(r.Context(), chi.URLParam(r, "gripID"), before, after)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleTeleportSearch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	matches, err := s.svc.TeleportSearch(r.Context(), q.Get("q"), queryInt(r, "top_k", 10), q.Get("target"), timeRangeFromQuery(r), q.Get("agent"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, matches)
}

func (s *Server) handleVectorTeleport(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	minScore := float32(queryFloat(r, "min_score", 0))
	matches, err := s.svc.VectorTeleport(r.Context(), q.Get("q"), queryInt(r, "top_k", 10), minScore, timeRangeFromQuery(r), q.Get("target"), q.Get("agent"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, matches)
}

func (s *Server) handleHybridSearch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	matches, err := s.svc.HybridSearch(r.Context(), q.Get("q"), queryInt(r, "top_k", 10), q.Get("mode"),
		queryFloat(r, "bm25_weight", 0.5), queryFloat(r, "vector_weight", 0.5), q.Get("agent"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, matches)
}

func (s *Server) handleRouteQuery(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	sc := router.StopConditions{
		MaxDepth:      queryInt(r, "max_depth", 0),
		MaxNodes:      queryInt(r, "max_nodes", 0),
		TimeoutMs:     queryInt(r, "timeout_ms", 0),
		MinConfidence: queryFloat(r, "min_confidence", 0),
		MinResults:    queryInt(r, "min_results", 0),
	}
	result := s.svc.RouteQuery(r.Context(), q.Get("q"), sc, q.Get("agent"))
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleVectorStatus(w http.ResponseWriter, r *http.Request) {
	status, err := s.svc.GetVectorIndexStatus(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

func (s *Server) handleTeleportStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.svc.GetTeleportStatus())
}

func (s *Server) handleRankingStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.svc.GetRankingStatus())
}

func (s *Server) handleSchedulerStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.svc.GetSchedulerStatus())
}

func (s *Server) handleGetAgents(w http.ResponseWriter, r *http.Request) {
	agents, err := s.svc.GetAgents(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, agents)
}

func (s *Server) handleGetAgentActivity(w http.ResponseWriter, r *http.Request) {
	fromMs := queryInt64(r, "from_ms", 0)
	toMs := queryInt64(r, "to_ms", time.Now().UnixMilli())
	bucketMs := queryInt64(r, "bucket_ms", 3_600_000)
	buckets, err := s.svc.GetAgentActivity(r.Context(), fromMs, toMs, bucketMs)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, buckets)
}

func (s *Server) handleRebuildIndex(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	kind := q.Get("kind")
	if kind == "" {
		kind = "all"
	}
	minLevel := types.TocLevel(q.Get("min_level"))
	if minLevel == "" {
		minLevel = types.LevelSegment
	}
	if err := s.svc.RebuildIndex(r.Context(), kind, minLevel); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "rebuilt"})
}

func (s *Server) handlePruneVector(w http.ResponseWriter, r *http.Request) {
	n, err := s.svc.PruneVectorIndex(r.Context(), service.PruneOptions{})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"pruned": n})
}

func (s *Server) handlePruneKeyword(w http.ResponseWriter, r *http.Request) {
	n, err := s.svc.PruneBm25Index(r.Context(), service.PruneOptions{})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"pruned": n})
}

func (s *Server) handleCompact(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.Compact(r.Context(), nil); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "compacted"})
}

func (s *Server) handlePauseJob(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.PauseJob(chi.URLParam(r, "name")); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "paused"})
}

func (s *Server) handleResumeJob(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.ResumeJob(chi.URLParam(r, "name")); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "resumed"})
}
