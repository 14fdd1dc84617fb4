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

package ingest

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kadirpekel/agent-memory/internal/store"
	"github.com/kadirpekel/agent-memory/internal/types"
)

type stubEmbedder struct {
	vec []float32
	err error
}

func (s stubEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return s.vec, s.err
}

type stubVector struct {
	hits    []NearestNeighbor
	err     error
	healthy bool
}

func (s stubVector) Search(ctx context.Context, embedding []float32, topK int, filter any) ([]NearestNeighbor, error) {
	return s.hits, s.err
}
func (s stubVector) Healthy() bool { return s.healthy }

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(context.Background(), store.Config{Dialect: store.DialectSQLite, DSN: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestIngestValidatesAndWrites(t *testing.T) {
	p := &Pipeline{Store: newTestStore(t)}
	e := &types.Event{SessionID: "s1", TimestampMs: 1000, Role: types.RoleUser, EventType: types.EventUserMessage, Text: "hi"}
	res, err := p.Ingest(context.Background(), e)
	require.NoError(t, err)
	assert.True(t, res.Created)
	assert.NotEmpty(t, res.EventID)
}

func TestIngestRejectsInvalidEvent(t *testing.T) {
	p := &Pipeline{Store: newTestStore(t)}
	e := &types.Event{SessionID: "s1", TimestampMs: 1000, Role: "bogus", EventType: types.EventUserMessage}
	_, err := p.Ingest(context.Background(), e)
	require.Error(t, err)
	assert.Equal(t, types.CodeInvalidArgument, types.CodeOf(err))
}

func TestIngestIdempotentHit(t *testing.T) {
	p := &Pipeline{Store: newTestStore(t)}
	e := &types.Event{EventID: "evt-1", SessionID: "s1", TimestampMs: 1000, Role: types.RoleUser, EventType: types.EventUserMessage, Text: "hi"}
	_, err := p.Ingest(context.Background(), e)
	require.NoError(t, err)

	res, err := p.Ingest(context.Background(), e)
	require.NoError(t, err)
	assert.False(t, res.Created)
}

func TestIngestRejectsNearDuplicateWhenNoveltyEnabled(t *testing.T) {
	p := &Pipeline{
		Store:    newTestStore(t),
		Embedder: stubEmbedder{vec: []float32{0.1, 0.2}},
		Vector:   stubVector{healthy: true, hits: []NearestNeighbor{{DocID: "evt-0", Similarity: 0.99}}},
		Novelty:  NoveltyConfig{Enabled: true, MinTextLength: 1, Threshold: 0.95},
	}
	e := &types.Event{SessionID: "s1", TimestampMs: 1000, Role: types.RoleUser, EventType: types.EventUserMessage, Text: "duplicate text"}
	res, err := p.Ingest(context.Background(), e)
	require.NoError(t, err)
	assert.True(t, res.Rejected)
}

func TestIngestFallsOpenOnNoveltyFailure(t *testing.T) {
	p := &Pipeline{
		Store:    newTestStore(t),
		Embedder: stubEmbedder{err: errors.New("embedder down")},
		Vector:   stubVector{healthy: true},
		Novelty:  NoveltyConfig{Enabled: true, MinTextLength: 1, Threshold: 0.95},
	}
	e := &types.Event{SessionID: "s1", TimestampMs: 1000, Role: types.RoleUser, EventType: types.EventUserMessage, Text: "some text"}
	res, err := p.Ingest(context.Background(), e)
	require.NoError(t, err)
	assert.True(t, res.Created, "embedder failure must fall open and still store the event")
}

func TestIngestSkipsNoveltyWhenVectorUnhealthy(t *testing.T) {
	p := &Pipeline{
		Store:    newTestStore(t),
		Embedder: stubEmbedder{vec: []float32{0.1}},
		Vector:   stubVector{healthy: false},
		Novelty:  NoveltyConfig{Enabled: true, MinTextLength: 1, Threshold: 0.95},
	}
	e := &types.Event{SessionID: "s1", TimestampMs: 1000, Role: types.RoleUser, EventType: types.EventUserMessage, Text: "some text"}
	res, err := p.Ingest(context.Background(), e)
	require.NoError(t, err)
	assert.True(t, res.Created)
}
