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

package router

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/kadirpekel/agent-memory/internal/keyword"
	"github.com/kadirpekel/agent-memory/internal/types"
	"github.com/kadirpekel/agent-memory/internal/vector"
)

// RouteQuery classifies query, picks a tier, fans out across layers per the
// intent's execution mode, fuses results, applies ranking modifiers, and
// returns a ranked, explainable result set (spec.md §4.8).
func (r *Router) RouteQuery(ctx context.Context, query string, sc StopConditions, agentFilter string) RouteResult {
	sc = sc.withDefaults()
	if agentFilter != "" {
		sc.AgentFilter = types.NormalizeAgent(agentFilter)
	}

	intent, keywords, tc := ClassifyIntent(query)
	tier := r.Tier()

	ctx, cancel := context.WithTimeout(ctx, time.Duration(sc.TimeoutMs)*time.Millisecond)
	defer cancel()

	exp := Explanation{
		TierUsed:       tier,
		TierName:       tier.Name(),
		Method:         executionMode(intent),
		TimeConstraint: tc,
		AgentFilter:    sc.AgentFilter,
	}

	layers := make(map[string][]RetrievalResult)
	weights := map[string]float64{"keyword": 1, "vector": 1}
	salienceByDocID := make(map[string]float32)

	timeoutPerLayer := time.Duration(sc.TimeoutMs) * time.Millisecond / 3

	runKeyword := func() {
		exp.LayersTried = append(exp.LayersTried, "keyword")
		if !r.KeywordEnabled || r.Keyword == nil {
			exp.FallbacksUsed = append(exp.FallbacksUsed, "keyword_unavailable")
			return
		}
		f := keyword.Filters{Agent: sc.AgentFilter}
		if tc != nil {
			f.FromMs, f.ToMs = tc.FromMs, tc.ToMs
		}
		matches, err := r.Keyword.Search(ctx, strings.Join(keywords, " "), sc.MaxNodes, f)
		if err != nil || len(matches) < sc.MinResults {
			exp.FallbacksUsed = append(exp.FallbacksUsed, "keyword_insufficient")
			return
		}
		out := make([]RetrievalResult, len(matches))
		for i, m := range matches {
			out[i] = RetrievalResult{DocID: m.DocID, DocType: string(m.DocType), Excerpt: m.Excerpt, TimestampMs: m.TimestampMs, Agent: m.Agent, Method: "keyword", Score: m.Score}
		}
		layers["keyword"] = out
	}

	runVector := func() {
		exp.LayersTried = append(exp.LayersTried, "vector")
		if !r.VectorEnabled || r.Vector == nil || r.Embedder == nil || !r.Vector.Healthy() {
			exp.FallbacksUsed = append(exp.FallbacksUsed, "vector_unavailable")
			return
		}
		layerCtx, layerCancel := context.WithTimeout(ctx, timeoutPerLayer)
		defer layerCancel()
		emb, err := r.Embedder.Embed(layerCtx, query)
		if err != nil {
			exp.FallbacksUsed = append(exp.FallbacksUsed, "vector_embed_failed")
			return
		}
		f := vector.Filters{Agent: sc.AgentFilter}
		if tc != nil {
			f.FromMs, f.ToMs = tc.FromMs, tc.ToMs
		}
		matches, err := r.Vector.Search(layerCtx, emb, sc.MaxNodes, f)
		if err != nil || len(matches) < sc.MinResults {
			exp.FallbacksUsed = append(exp.FallbacksUsed, "vector_insufficient")
			return
		}
		out := make([]RetrievalResult, len(matches))
		for i, m := range matches {
			out[i] = RetrievalResult{DocID: m.DocID, DocType: string(m.DocType), Excerpt: m.TextPreview, TimestampMs: m.TimestampMs, Agent: m.Agent, Method: "vector", Score: float64(m.Score)}
		}
		layers["vector"] = out
	}

	runAgentic := func() {
		exp.LayersTried = append(exp.LayersTried, "agentic")
		out, err := r.agenticTraverse(ctx, keywords, sc)
		if err != nil {
			return
		}
		layers["agentic"] = out
	}

	switch intent {
	case IntentExplore:
		var wg sync.WaitGroup
		wg.Add(2)
		go func() { defer wg.Done(); runKeyword() }()
		go func() { defer wg.Done(); runVector() }()
		wg.Wait()
	case IntentAnswer:
		var wg sync.WaitGroup
		wg.Add(2)
		go func() { defer wg.Done(); runKeyword() }()
		go func() { defer wg.Done(); runVector() }()
		wg.Wait()
	case IntentLocate:
		runKeyword()
		if len(layers["keyword"]) == 0 || layers["keyword"][0].Score < sc.MinConfidence {
			runVector()
		}
	case IntentTimeBoxed:
		sc.MaxDepth = minInt(sc.MaxDepth, 2)
		runKeyword()
	}

	total := 0
	for _, v := range layers {
		total += len(v)
	}
	if total == 0 {
		runAgentic()
		exp.FallbacksUsed = append(exp.FallbacksUsed, "agentic_terminal_fallback")
	}

	fused := rrfFuse(layers, weights)
	r.fillSalience(ctx, fused, salienceByDocID)
	fused = r.applyRankingModifiers(ctx, fused, salienceByDocID)

	exp.StopReason = "ok"
	if len(fused) == 0 {
		exp.StopReason = "no_results"
	}
	if ctx.Err() != nil {
		exp.StopReason = "timeout"
	}
	if len(fused) > 0 {
		exp.Confidence = fused[0].Score
	}

	return RouteResult{Results: fused, Explanation: exp}
}

// fillSalience looks up the TOC-node salience backing each fused result and
// fills salienceByDocID so applyRankingModifiers sees real scores instead of
// the zero value (spec.md §4.8). Grips carry no salience of their own, so a
// grip result takes the neutral default TocNode.Normalize applies to unscored
// nodes.
func (r *Router) fillSalience(ctx context.Context, results []RetrievalResult, salienceByDocID map[string]float32) {
	for _, res := range results {
		if _, ok := salienceByDocID[res.DocID]; ok {
			continue
		}
		switch {
		case res.DocType == "toc_node" && r.Store != nil:
			node, err := r.Store.GetTocNode(ctx, res.DocID)
			if err != nil || node == nil {
				salienceByDocID[res.DocID] = 0.5
				continue
			}
			salienceByDocID[res.DocID] = node.SalienceScore
		default:
			salienceByDocID[res.DocID] = 0.5
		}
	}
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

// agenticTraverse walks the TOC from Year downward, scoring children by
// keyword term overlap with title/summary/bullets, descending into the top
// Beam children per level until depth or node-visit limits are reached
// (spec.md §4.8's tier-5 terminal fallback).
func (r *Router) agenticTraverse(ctx context.Context, keywords []string, sc StopConditions) ([]RetrievalResult, error) {
	beam := r.Beam
	if beam <= 0 {
		beam = 3
	}

	roots, err := r.topLevelNodes(ctx)
	if err != nil {
		return nil, err
	}

	type visit struct {
		node  *types.TocNode
		depth int
	}
	queue := make([]visit, 0, len(roots))
	for _, n := range roots {
		queue = append(queue, visit{node: n, depth: 0})
	}

	var out []RetrievalResult
	visited := 0
	for len(queue) > 0 && visited < sc.MaxNodes {
		v := queue[0]
		queue = queue[1:]
		visited++

		score := termOverlapScore(keywords, v.node)
		out = append(out, RetrievalResult{
			DocID: v.node.NodeID, DocType: "toc_node", Excerpt: v.node.Summary,
			TimestampMs: v.node.TimeRange.StartMs, Method: "agentic", Score: score,
		})

		if v.depth >= sc.MaxDepth {
			continue
		}
		children, _, err := r.Store.BrowseChildren(ctx, v.node.NodeID, "", 200)
		if err != nil || len(children) == 0 {
			continue
		}
		sort.SliceStable(children, func(i, j int) bool {
			return termOverlapScore(keywords, children[i]) > termOverlapScore(keywords, children[j])
		})
		if len(children) > beam {
			children = children[:beam]
		}
		for _, c := range children {
			queue = append(queue, visit{node: c, depth: v.depth + 1})
		}
	}
	return out, nil
}

func (r *Router) topLevelNodes(ctx context.Context) ([]*types.TocNode, error) {
	children, _, err := r.Store.BrowseChildren(ctx, "", "", 200)
	if err != nil {
		return nil, err
	}
	return children, nil
}

func termOverlapScore(keywords []string, n *types.TocNode) float64 {
	if len(keywords) == 0 {
		return 0
	}
	haystack := strings.ToLower(n.Title + " " + n.Summary + " " + bulletLines(n.Bullets))
	hits := 0
	for _, kw := range keywords {
		if strings.Contains(haystack, kw) {
			hits++
		}
	}
	return float64(hits) / float64(len(keywords))
}

func bulletLines(bullets []types.TocBullet) string {
	parts := make([]string, len(bullets))
	for i, b := range bullets {
		parts[i] = b.Text
	}
	return strings.Join(parts, " ")
}
