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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kadirpekel/agent-memory/internal/config"
	"github.com/kadirpekel/agent-memory/internal/router"
	"github.com/kadirpekel/agent-memory/internal/types"
	"github.com/kadirpekel/agent-memory/internal/vector/chromemprovider"
	"github.com/kadirpekel/agent-memory/internal/vector/hnsw"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	cfg := &config.Config{}
	cfg.SetDefaults()
	cfg.Core.DBPath = ":memory:"

	s, err := New(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close(context.Background()) })
	return s
}

func TestIngestEventIsIdempotent(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	e := &types.Event{
		SessionID: "sess-1", TimestampMs: 1_700_000_000_000,
		Role: types.RoleUser, EventType: types.EventUserMessage,
		Text: "hello there", Agent: "claude-code",
	}
	res, err := s.IngestEvent(ctx, e)
	require.NoError(t, err)
	assert.True(t, res.Created)
	assert.NotEmpty(t, res.EventID)

	dup := &types.Event{
		EventID: res.EventID, SessionID: "sess-1", TimestampMs: 1_700_000_000_000,
		Role: types.RoleUser, EventType: types.EventUserMessage,
		Text: "hello there", Agent: "claude-code",
	}
	res2, err := s.IngestEvent(ctx, dup)
	require.NoError(t, err)
	assert.False(t, res2.Created)
	assert.Equal(t, res.EventID, res2.EventID)
}

func TestGetAgentsReflectsIngestedEvents(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	_, err := s.IngestEvent(ctx, &types.Event{
		SessionID: "sess-1", TimestampMs: 1_700_000_000_000,
		Role: types.RoleUser, EventType: types.EventUserMessage,
		Text: "hi", Agent: "claude-code",
	})
	require.NoError(t, err)

	agents, err := s.GetAgents(ctx)
	require.NoError(t, err)
	require.Len(t, agents, 1)
	assert.Equal(t, "claude-code", agents[0].Agent)
	assert.Equal(t, int64(1), agents[0].EventCount)
}

func TestGetTocRootEmptyBeforeAnySegmentCloses(t *testing.T) {
	s := newTestService(t)
	nodes, err := s.GetTocRoot(context.Background())
	require.NoError(t, err)
	assert.Empty(t, nodes)
}

func TestPauseAndResumeJob(t *testing.T) {
	s := newTestService(t)
	require.NoError(t, s.PauseJob("compact"))
	require.NoError(t, s.ResumeJob("compact"))
	assert.Error(t, s.PauseJob("does-not-exist"))
}

func TestRebuildIndexOnEmptyStore(t *testing.T) {
	s := newTestService(t)
	err := s.RebuildIndex(context.Background(), "all", types.LevelSegment)
	require.NoError(t, err)
}

func TestRouteQueryWithNoDataReturnsEmptyResults(t *testing.T) {
	s := newTestService(t)
	result := s.RouteQuery(context.Background(), "anything", router.StopConditions{}, "")
	assert.Empty(t, result.Results)
}

func TestBuildVectorDefaultsToHNSW(t *testing.T) {
	v, err := buildVector(context.Background(), config.VectorConfig{})
	require.NoError(t, err)
	_, ok := v.(*hnsw.Provider)
	assert.True(t, ok)
}

func TestBuildVectorSelectsChromemByBackendName(t *testing.T) {
	v, err := buildVector(context.Background(), config.VectorConfig{Backend: "chromem"})
	require.NoError(t, err)
	_, ok := v.(*chromemprovider.Provider)
	assert.True(t, ok)
}

func TestBuildVectorRejectsUnknownBackend(t *testing.T) {
	_, err := buildVector(context.Background(), config.VectorConfig{Backend: "made-up"})
	assert.Error(t, err)
}
