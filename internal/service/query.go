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

package service

import (
	"context"
	"time"

	"github.com/kadirpekel/agent-memory/internal/grip"
	"github.com/kadirpekel/agent-memory/internal/keyword"
	"github.com/kadirpekel/agent-memory/internal/router"
	"github.com/kadirpekel/agent-memory/internal/scheduler"
	"github.com/kadirpekel/agent-memory/internal/store"
	"github.com/kadirpekel/agent-memory/internal/types"
	"github.com/kadirpekel/agent-memory/internal/vector"
)

// IngestResult is IngestEvent's response.
type IngestResult struct {
	EventID string
	Created bool
}

// IngestEvent validates, novelty-filters, and durably persists e (spec.md
// §4.2, §6). AlreadyExists collapses to Created=false rather than an error.
func (s *Service) IngestEvent(ctx context.Context, e *types.Event) (IngestResult, error) {
	res, err := s.Ingest.Ingest(ctx, e)
	if err != nil {
		return IngestResult{}, err
	}
	s.Observability.Metrics().IngestEvent(string(e.EventType))
	if res.Rejected {
		s.Observability.Metrics().IngestRejected("novelty")
		return IngestResult{EventID: res.EventID, Created: false}, nil
	}
	return IngestResult{EventID: res.EventID, Created: res.Created}, nil
}

// GetTocRoot returns every Year-level node (spec.md §6): the roots of the
// time hierarchy, which have no parent.
func (s *Service) GetTocRoot(ctx context.Context) ([]*types.TocNode, error) {
	nodes, _, err := s.Store.BrowseChildren(ctx, "", "", 1000)
	return nodes, err
}

// GetNode fetches one TOC node by id.
func (s *Service) GetNode(ctx context.Context, nodeID string) (*types.TocNode, error) {
	return s.Store.GetTocNode(ctx, nodeID)
}

// BrowseChildrenResult is BrowseToc's response.
type BrowseChildrenResult struct {
	Children      []*types.TocNode
	NextPageToken string
}

// BrowseToc pages through parentID's children in time order.
func (s *Service) BrowseToc(ctx context.Context, parentID, pageToken string, limit int) (BrowseChildrenResult, error) {
	children, next, err := s.Store.BrowseChildren(ctx, parentID, pageToken, limit)
	if err != nil {
		return BrowseChildrenResult{}, err
	}
	return BrowseChildrenResult{Children: children, NextPageToken: next}, nil
}

// GetEvents returns raw events in [fromMs, toMs) in ascending timestamp
// order, capped at limit.
func (s *Service) GetEvents(ctx context.Context, fromMs, toMs int64, limit int) ([]*types.Event, error) {
	return s.Store.ScanEvents(ctx, store.ScanEventsOpts{FromMs: fromMs, ToMs: toMs, Limit: limit})
}

// ExpandGrip returns a grip's excerpt and its surrounding events.
func (s *Service) ExpandGrip(ctx context.Context, gripID string, before, after int) (*grip.ExpansionResult, error) {
	return s.Grip.ExpandGrip(ctx, gripID, before, after)
}

// Match is one search hit from TeleportSearch, VectorTeleport, or
// HybridSearch, the common shape spec.md §4.5/§4.6 gives both retrieval
// layers.
type Match struct {
	DocID       string
	Score       float64
	DocType     string
	Excerpt     string
	TimestampMs int64
	Agent       string
}

// TimeRange bounds a search by timestamp; a zero value means unbounded.
type TimeRange struct {
	FromMs int64
	ToMs   int64
}

// TeleportSearch runs a keyword (BM25) search over the indexed TOC
// nodes/grips (spec.md §4.5). target, if non-empty, must be "toc_node" or
// "grip".
func (s *Service) TeleportSearch(ctx context.Context, query string, topK int, target string, tr *TimeRange, agentFilter string) ([]Match, error) {
	if !s.keywordAvailable() {
		return nil, types.NewError("service", "teleport_search", "keyword layer disabled", types.CodeFailedPrecondition, nil)
	}
	f := keyword.Filters{Agent: types.NormalizeAgent(agentFilter), DocType: keyword.DocType(target)}
	if tr != nil {
		f.FromMs, f.ToMs = tr.FromMs, tr.ToMs
	}
	hits, err := s.Keyword.Search(ctx, query, topK, f)
	if err != nil {
		return nil, err
	}
	out := make([]Match, len(hits))
	for i, h := range hits {
		out[i] = Match{DocID: h.DocID, Score: h.Score, DocType: string(h.DocType), Excerpt: h.Excerpt, TimestampMs: h.TimestampMs, Agent: h.Agent}
	}
	return out, nil
}

// VectorTeleport runs a semantic (ANN) search over the indexed TOC
// nodes/grips (spec.md §4.6), dropping hits below minScore.
func (s *Service) VectorTeleport(ctx context.Context, query string, topK int, minScore float32, tr *TimeRange, target string, agentFilter string) ([]Match, error) {
	if !s.vectorAvailable() {
		return nil, types.NewError("service", "vector_teleport", "vector layer disabled or unhealthy", types.CodeFailedPrecondition, nil)
	}
	emb, err := s.Embedder.Embed(ctx, query)
	if err != nil {
		return nil, types.NewError("service", "vector_teleport", "embedding failed", types.CodeUnavailable, err)
	}
	f := vector.Filters{Agent: types.NormalizeAgent(agentFilter), DocType: vector.DocType(target)}
	if tr != nil {
		f.FromMs, f.ToMs = tr.FromMs, tr.ToMs
	}
	hits, err := s.Vector.Search(ctx, emb, topK, f)
	if err != nil {
		return nil, err
	}
	out := make([]Match, 0, len(hits))
	for _, h := range hits {
		if h.Score < minScore {
			continue
		}
		out = append(out, Match{DocID: h.DocID, Score: float64(h.Score), DocType: string(h.DocType), Excerpt: h.TextPreview, TimestampMs: h.TimestampMs, Agent: h.Agent})
	}
	return out, nil
}

// HybridSearch fuses keyword and vector candidate lists with Reciprocal
// Rank Fusion, weighted by bm25Weight/vectorWeight (spec.md §4.8's fusion
// step, run directly rather than through the full RouteQuery pipeline).
// mode is accepted for interface symmetry with RouteQuery's execution modes
// but does not change fusion here: both layers always run, weighted.
func (s *Service) HybridSearch(ctx context.Context, query string, topK int, mode string, bm25Weight, vectorWeight float64, agentFilter string) ([]Match, error) {
	_ = mode
	layers := make(map[string][]router.RetrievalResult)
	weights := map[string]float64{"keyword": bm25Weight, "vector": vectorWeight}

	if s.keywordAvailable() {
		if hits, err := s.Keyword.Search(ctx, query, topK, keyword.Filters{Agent: types.NormalizeAgent(agentFilter)}); err == nil {
			out := make([]router.RetrievalResult, len(hits))
			for i, h := range hits {
				out[i] = router.RetrievalResult{DocID: h.DocID, DocType: string(h.DocType), Excerpt: h.Excerpt, TimestampMs: h.TimestampMs, Agent: h.Agent, Method: "keyword", Score: h.Score}
			}
			layers["keyword"] = out
		}
	}
	if s.vectorAvailable() {
		if emb, err := s.Embedder.Embed(ctx, query); err == nil {
			if hits, err := s.Vector.Search(ctx, emb, topK, vector.Filters{Agent: types.NormalizeAgent(agentFilter)}); err == nil {
				out := make([]router.RetrievalResult, len(hits))
				for i, h := range hits {
					out[i] = router.RetrievalResult{DocID: h.DocID, DocType: string(h.DocType), Excerpt: h.TextPreview, TimestampMs: h.TimestampMs, Agent: h.Agent, Method: "vector", Score: float64(h.Score)}
				}
				layers["vector"] = out
			}
		}
	}

	fused := router.RRFFuse(layers, weights)
	if topK > 0 && len(fused) > topK {
		fused = fused[:topK]
	}
	out := make([]Match, len(fused))
	for i, r := range fused {
		out[i] = Match{DocID: r.DocID, Score: r.Score, DocType: r.DocType, Excerpt: r.Excerpt, TimestampMs: r.TimestampMs, Agent: r.Agent}
	}
	return out, nil
}

// RouteQuery classifies the query's intent, fans out across retrieval
// layers, fuses, and ranks (spec.md §4.8). A per-query deadline is derived
// from sc.TimeoutMs.
func (s *Service) RouteQuery(ctx context.Context, query string, sc router.StopConditions, agentFilter string) router.RouteResult {
	start := time.Now()
	result := s.Router.RouteQuery(ctx, query, sc, agentFilter)
	s.Observability.Metrics().RouterQuery(result.Explanation.Method, int(result.Explanation.TierUsed), time.Since(start).Seconds())
	return result
}

// GetVectorIndexStatus reports the vector index's status.
func (s *Service) GetVectorIndexStatus(ctx context.Context) (vector.Status, error) {
	return s.Vector.Status(ctx)
}

// GetTeleportStatus reports the keyword index's health (spec.md §4.5 names
// this operation "GetTeleportStatus" after the keyword layer's historical
// alias, "teleport search").
func (s *Service) GetTeleportStatus() keyword.Status {
	return s.Keyword.Status()
}

// RankingStatus is GetRankingStatus's response.
type RankingStatus struct {
	SalienceEnabled   bool
	SalienceWeight    float64
	UsageDecayEnabled bool
	UsageDecay        float64
	Tier              router.Tier
}

// GetRankingStatus reports the router's active ranking configuration and
// current capability tier.
func (s *Service) GetRankingStatus() RankingStatus {
	return RankingStatus{
		SalienceEnabled:   s.Router.SalienceEnabled,
		SalienceWeight:    s.Config.Ranking.Salience.Weight,
		UsageDecayEnabled: s.Router.UsageDecayEnabled,
		UsageDecay:        s.Config.Ranking.UsageDecay.Decay,
		Tier:              s.Router.Tier(),
	}
}

// GetSchedulerStatus reports every registered job's run history.
func (s *Service) GetSchedulerStatus() []scheduler.JobStatus {
	return s.Scheduler.Status()
}

// GetAgents returns every agent that has ingested at least one event.
func (s *Service) GetAgents(ctx context.Context) ([]store.AgentInfo, error) {
	return s.Store.ListAgents(ctx)
}

// GetAgentActivity buckets event counts per agent in [fromMs, toMs) into
// bucketMs-wide windows.
func (s *Service) GetAgentActivity(ctx context.Context, fromMs, toMs, bucketMs int64) ([]store.AgentActivityBucket, error) {
	return s.Store.AgentActivity(ctx, fromMs, toMs, bucketMs)
}

func (s *Service) keywordAvailable() bool {
	return s.Router.KeywordEnabled && s.Keyword != nil
}

func (s *Service) vectorAvailable() bool {
	return s.Router.VectorEnabled && s.Vector != nil && s.Vector.Healthy()
}
