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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kadirpekel/agent-memory/internal/keyword"
	"github.com/kadirpekel/agent-memory/internal/store"
	"github.com/kadirpekel/agent-memory/internal/types"
)

func TestClassifyIntentRules(t *testing.T) {
	intent, _, tc := ClassifyIntent("what happened yesterday")
	assert.Equal(t, IntentTimeBoxed, intent)
	require.NotNil(t, tc)

	intent, _, _ = ClassifyIntent("how does the outbox consumer retry")
	assert.Equal(t, IntentAnswer, intent)

	intent, _, _ = ClassifyIntent(`"exact phrase lookup"`)
	assert.Equal(t, IntentLocate, intent)

	intent, _, _ = ClassifyIntent("toc_node.go")
	assert.Equal(t, IntentLocate, intent)

	intent, _, _ = ClassifyIntent("conversations about database migrations and tradeoffs")
	assert.Equal(t, IntentExplore, intent)
}

func TestTierDerivesFromLayerHealth(t *testing.T) {
	r := &Router{}
	assert.Equal(t, Tier5, r.Tier())

	r.KeywordEnabled = true
	r.Keyword = keyword.New()
	assert.Equal(t, Tier4, r.Tier())
}

func TestRRFFuseOrdersByFusedScore(t *testing.T) {
	layers := map[string][]RetrievalResult{
		"keyword": {{DocID: "a"}, {DocID: "b"}},
		"vector":  {{DocID: "b"}, {DocID: "a"}},
	}
	fused := rrfFuse(layers, map[string]float64{"keyword": 1, "vector": 1})
	require.Len(t, fused, 2)
	assert.InDelta(t, fused[0].Score, fused[1].Score, 1e-9)
}

func TestRouteQueryFallsBackToAgenticWhenLayersEmpty(t *testing.T) {
	ctx := context.Background()
	s, err := store.Open(ctx, store.Config{Dialect: store.DialectSQLite, DSN: ":memory:"})
	require.NoError(t, err)
	defer s.Close()

	node := &types.TocNode{
		NodeID: "toc:year:2026", Level: types.LevelYear,
		TimeRange: types.TimeRange{StartMs: 1000, EndMs: 2000},
		Title:     "2026", Summary: "deployment notes and database migrations",
		Version: 1,
	}
	require.NoError(t, s.PutTocNode(ctx, node))

	r := New(s, nil, nil, nil)
	result := r.RouteQuery(ctx, "database migrations", StopConditions{}, "")
	assert.NotEmpty(t, result.Results)
	assert.Contains(t, result.Explanation.FallbacksUsed, "agentic_terminal_fallback")
	assert.Equal(t, Tier5, result.Explanation.TierUsed)
}

func TestFillSalienceReadsTocNodeScoreAndReordersResults(t *testing.T) {
	ctx := context.Background()
	s, err := store.Open(ctx, store.Config{Dialect: store.DialectSQLite, DSN: ":memory:"})
	require.NoError(t, err)
	defer s.Close()

	low := &types.TocNode{
		NodeID: "toc:day:2026-01-01", Level: types.LevelDay,
		TimeRange: types.TimeRange{StartMs: 1000, EndMs: 2000},
		Title:     "low salience", SalienceScore: 0.1, Version: 1,
	}
	high := &types.TocNode{
		NodeID: "toc:day:2026-01-02", Level: types.LevelDay,
		TimeRange: types.TimeRange{StartMs: 2000, EndMs: 3000},
		Title:     "high salience", SalienceScore: 0.9, Version: 1,
	}
	require.NoError(t, s.PutTocNode(ctx, low))
	require.NoError(t, s.PutTocNode(ctx, high))

	r := &Router{Store: s, SalienceEnabled: true}
	results := []RetrievalResult{
		{DocID: low.NodeID, DocType: "toc_node", Score: 1},
		{DocID: high.NodeID, DocType: "toc_node", Score: 1},
	}

	salienceByDocID := make(map[string]float32)
	r.fillSalience(ctx, results, salienceByDocID)
	assert.InDelta(t, float32(0.1), salienceByDocID[low.NodeID], 1e-6)
	assert.InDelta(t, float32(0.9), salienceByDocID[high.NodeID], 1e-6)

	ranked := r.applyRankingModifiers(ctx, results, salienceByDocID)
	require.Len(t, ranked, 2)
	assert.Equal(t, high.NodeID, ranked[0].DocID)
	assert.Equal(t, low.NodeID, ranked[1].DocID)
}

func TestFillSalienceDefaultsGripResultsToNeutralScore(t *testing.T) {
	ctx := context.Background()
	r := &Router{}
	results := []RetrievalResult{{DocID: "grip:1", DocType: "grip", Score: 1}}
	salienceByDocID := make(map[string]float32)
	r.fillSalience(ctx, results, salienceByDocID)
	assert.InDelta(t, float32(0.5), salienceByDocID["grip:1"], 1e-6)
}

func TestStopConditionsDefaultsAndAgentNormalization(t *testing.T) {
	sc := StopConditions{AgentFilter: "Claude"}.withDefaults()
	assert.Equal(t, 3, sc.MaxDepth)
	assert.Equal(t, 50, sc.MaxNodes)
	assert.Equal(t, "claude", sc.AgentFilter)
}
