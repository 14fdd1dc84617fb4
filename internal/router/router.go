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

// Package router is the Retrieval Router: it classifies a query's intent,
// picks a capability tier from layer health, fans a query out across the
// keyword/vector/agentic layers per the intent's execution mode, fuses
// per-layer candidates with Reciprocal Rank Fusion, and returns a ranked,
// explainable result set (spec.md §4.8).
package router

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/kadirpekel/agent-memory/internal/embedder"
	"github.com/kadirpekel/agent-memory/internal/keyword"
	"github.com/kadirpekel/agent-memory/internal/store"
	"github.com/kadirpekel/agent-memory/internal/types"
	"github.com/kadirpekel/agent-memory/internal/vector"
)

// Intent is the heuristic classification of a query.
type Intent string

const (
	IntentExplore   Intent = "explore"
	IntentAnswer    Intent = "answer"
	IntentLocate    Intent = "locate"
	IntentTimeBoxed Intent = "time_boxed"
)

// Tier is a capability level, derived from which optional layers are
// healthy. Lower is more capable; Tier5 (agentic-only) is always available.
type Tier int

const (
	Tier1 Tier = 1 // Topics + Hybrid (BM25+Vector) + Agentic
	Tier2 Tier = 2 // BM25 + Vector + Agentic
	Tier3 Tier = 3 // Vector + Agentic
	Tier4 Tier = 4 // BM25 + Agentic
	Tier5 Tier = 5 // Agentic only
)

func (t Tier) Name() string {
	switch t {
	case Tier1:
		return "topics_hybrid_agentic"
	case Tier2:
		return "bm25_vector_agentic"
	case Tier3:
		return "vector_agentic"
	case Tier4:
		return "bm25_agentic"
	default:
		return "agentic_only"
	}
}

// StopConditions bounds a RouteQuery call (spec.md §4.8).
type StopConditions struct {
	MaxDepth      int
	MaxNodes      int
	TimeoutMs     int
	MinConfidence float64
	MinResults    int
	AgentFilter   string
}

func (sc StopConditions) withDefaults() StopConditions {
	if sc.MaxDepth <= 0 {
		sc.MaxDepth = 3
	}
	if sc.MaxNodes <= 0 {
		sc.MaxNodes = 50
	}
	if sc.TimeoutMs <= 0 {
		sc.TimeoutMs = 5000
	}
	if sc.MinConfidence <= 0 {
		sc.MinConfidence = 0.5
	}
	if sc.MinResults <= 0 {
		sc.MinResults = 1
	}
	sc.AgentFilter = types.NormalizeAgent(sc.AgentFilter)
	return sc
}

// TimeConstraint is an extracted absolute time window, present when the
// classifier found date tokens or relative time words in the query.
type TimeConstraint struct {
	FromMs int64
	ToMs   int64
}

// RetrievalResult is one ranked hit returned by RouteQuery.
type RetrievalResult struct {
	DocID       string
	DocType     string
	Excerpt     string
	TimestampMs int64
	Agent       string
	Method      string // which layer produced it: "keyword", "vector", "agentic"
	Score       float64
}

// Explanation is the explainability payload accompanying every RouteQuery
// result set.
type Explanation struct {
	TierUsed       Tier
	TierName       string
	Method         string
	LayersTried    []string
	FallbacksUsed  []string
	TimeConstraint *TimeConstraint
	AgentFilter    string
	StopReason     string
	Confidence     float64
}

// RouteResult bundles results with their explanation.
type RouteResult struct {
	Results     []RetrievalResult
	Explanation Explanation
}

const rrfK = 60

// Router is the Retrieval Router.
type Router struct {
	Store    *store.Store
	Keyword  *keyword.Index
	Vector   vector.Provider
	Embedder embedder.Embedder

	KeywordEnabled bool
	VectorEnabled  bool
	TopicsEnabled  bool

	SalienceEnabled   bool
	UsageDecayEnabled bool

	Beam     int // agentic traversal beam width, default 3
	ByNodeID func(ctx context.Context, nodeID string) (*types.TocNode, error)
}

// New builds a Router with defaults filled in.
func New(s *store.Store, kw *keyword.Index, vp vector.Provider, emb embedder.Embedder) *Router {
	return &Router{Store: s, Keyword: kw, Vector: vp, Embedder: emb, Beam: 3}
}

// Tier reports the capability tier derivable right now from layer health.
func (r *Router) Tier() Tier {
	kwUp := r.KeywordEnabled && r.Keyword != nil
	vecUp := r.VectorEnabled && r.Vector != nil && r.Vector.Healthy()
	switch {
	case r.TopicsEnabled && kwUp && vecUp:
		return Tier1
	case kwUp && vecUp:
		return Tier2
	case vecUp:
		return Tier3
	case kwUp:
		return Tier4
	default:
		return Tier5
	}
}

// ClassifyIntent applies spec.md §4.8's deterministic heuristic rules.
func ClassifyIntent(query string) (Intent, []string, *TimeConstraint) {
	q := strings.TrimSpace(query)
	keywords := extractKeywords(q)

	if tc := extractTimeConstraint(q); tc != nil {
		return IntentTimeBoxed, keywords, tc
	}
	if strings.Contains(q, "\"") {
		return IntentLocate, keywords, nil
	}
	if looksLikeIdentifier(q) {
		return IntentLocate, keywords, nil
	}
	if startsWithQuestionWord(q) && len(keywords) <= 6 {
		return IntentAnswer, keywords, nil
	}
	return IntentExplore, keywords, nil
}

var questionWords = []string{"what", "who", "when", "where", "why", "how", "which", "is", "are", "does", "did", "can"}

func startsWithQuestionWord(q string) bool {
	fields := strings.Fields(strings.ToLower(q))
	if len(fields) == 0 {
		return false
	}
	for _, w := range questionWords {
		if fields[0] == w {
			return true
		}
	}
	return false
}

func looksLikeIdentifier(q string) bool {
	fields := strings.Fields(q)
	if len(fields) != 1 {
		return false
	}
	tok := fields[0]
	hasUnderscoreOrDot := strings.ContainsAny(tok, "_.:/")
	hasMixedCase := tok != strings.ToLower(tok) && tok != strings.ToUpper(tok)
	return hasUnderscoreOrDot || hasMixedCase
}

var relativeTimeWords = []string{"yesterday", "today", "last week", "last month", "this week", "this month"}

func extractTimeConstraint(q string) *TimeConstraint {
	lower := strings.ToLower(q)
	now := time.Now()
	for _, w := range relativeTimeWords {
		if strings.Contains(lower, w) {
			from, to := relativeWindow(w, now)
			return &TimeConstraint{FromMs: from.UnixMilli(), ToMs: to.UnixMilli()}
		}
	}
	if loc := findISODate(q); loc != "" {
		if t, err := time.Parse("2006-01-02", loc); err == nil {
			return &TimeConstraint{FromMs: t.UnixMilli(), ToMs: t.Add(24 * time.Hour).UnixMilli()}
		}
	}
	return nil
}

func relativeWindow(word string, now time.Time) (time.Time, time.Time) {
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	switch word {
	case "yesterday":
		return dayStart.Add(-24 * time.Hour), dayStart
	case "today":
		return dayStart, dayStart.Add(24 * time.Hour)
	case "last week":
		return dayStart.Add(-7 * 24 * time.Hour), dayStart
	case "this week":
		return dayStart.Add(-time.Duration(int(now.Weekday())) * 24 * time.Hour), dayStart.Add(24 * time.Hour)
	case "last month":
		y, m, _ := now.AddDate(0, -1, 0).Date()
		start := time.Date(y, m, 1, 0, 0, 0, 0, now.Location())
		return start, start.AddDate(0, 1, 0)
	case "this month":
		start := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
		return start, start.AddDate(0, 1, 0)
	}
	return dayStart, dayStart
}

func findISODate(q string) string {
	fields := strings.Fields(q)
	for _, f := range fields {
		if len(f) == 10 && f[4] == '-' && f[7] == '-' {
			return f
		}
	}
	return ""
}

func extractKeywords(q string) []string {
	q = strings.Trim(q, "\"")
	fields := strings.FieldsFunc(strings.ToLower(q), func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9')
	})
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if len(f) >= 2 {
			out = append(out, f)
		}
	}
	return out
}

// executionMode derives the execution mode name for an intent, per
// spec.md §4.8.
func executionMode(i Intent) string {
	switch i {
	case IntentExplore:
		return "parallel"
	case IntentAnswer:
		return "hybrid"
	case IntentLocate:
		return "sequential"
	case IntentTimeBoxed:
		return "sequential_timeboxed"
	default:
		return "sequential"
	}
}

// rrfFuse combines ranked candidate lists from multiple layers using
// Reciprocal Rank Fusion with constant k=60 (spec.md §4.8).
// RRFFuse exposes the Reciprocal Rank Fusion step RouteQuery uses
// internally, for callers that want to fuse layer results directly
// (HybridSearch).
func RRFFuse(layers map[string][]RetrievalResult, weights map[string]float64) []RetrievalResult {
	return rrfFuse(layers, weights)
}

func rrfFuse(layers map[string][]RetrievalResult, weights map[string]float64) []RetrievalResult {
	type acc struct {
		best  RetrievalResult
		score float64
	}
	fused := make(map[string]*acc)
	for layer, results := range layers {
		w := weights[layer]
		if w == 0 {
			w = 1
		}
		for rank, res := range results {
			a, ok := fused[res.DocID]
			if !ok {
				a = &acc{best: res}
				fused[res.DocID] = a
			}
			a.score += w / (rrfK + float64(rank+1))
		}
	}
	out := make([]RetrievalResult, 0, len(fused))
	for _, a := range fused {
		a.best.Score = a.score
		out = append(out, a.best)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].DocID < out[j].DocID
	})
	return out
}

// applyRankingModifiers multiplies the fused score by salience and usage
// penalty factors per spec.md §4.8.
func (r *Router) applyRankingModifiers(ctx context.Context, results []RetrievalResult, salienceByDocID map[string]float32) []RetrievalResult {
	for i := range results {
		factor := 1.0
		if r.SalienceEnabled {
			s := float64(salienceByDocID[results[i].DocID])
			factor *= 0.55 + 0.45*s
		}
		if r.UsageDecayEnabled && r.Store != nil {
			if uc, err := r.Store.GetUsageCounter(ctx, results[i].DocID); err == nil {
				factor *= 1 / (1 + 0.15*float64(uc.AccessCount))
			}
		}
		results[i].Score *= factor
	}
	sort.SliceStable(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	return results
}
