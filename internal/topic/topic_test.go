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

package topic

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kadirpekel/agent-memory/internal/store"
	"github.com/kadirpekel/agent-memory/internal/types"
	"github.com/kadirpekel/agent-memory/internal/vector"
	"github.com/kadirpekel/agent-memory/internal/vector/hnsw"
)

func openTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(context.Background(), store.Config{Dialect: store.DialectSQLite, DSN: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func seedSegment(ctx context.Context, t *testing.T, vectors *hnsw.Provider, id string, embedding []float32, tsMs int64, preview string) {
	t.Helper()
	require.NoError(t, vectors.Upsert(ctx, vector.Doc{
		DocID: id, DocType: vector.DocTocNode, Embedding: embedding,
		TextPreview: preview, TimestampMs: tsMs, Level: types.LevelSegment,
	}))
}

func TestDBSCANGroupsDensePointsAndMarksOutliersAsNoise(t *testing.T) {
	points := [][]float32{
		{1, 0, 0}, {0.99, 0.01, 0}, {0.98, 0, 0.02}, // dense cluster
		{0, 1, 0}, {0.01, 0.99, 0}, {0, 0.98, 0.02}, // second dense cluster
		{0, 0, -1}, // outlier, far from both
	}
	labels := dbscan(points, 0.05, 3)

	assert.Equal(t, labels[0], labels[1])
	assert.Equal(t, labels[1], labels[2])
	assert.Equal(t, labels[3], labels[4])
	assert.Equal(t, labels[4], labels[5])
	assert.NotEqual(t, labels[0], labels[3])
	assert.Equal(t, -1, labels[6])
}

func TestComputeImportanceDecaysWithAgeAndBoostsRecent(t *testing.T) {
	now := time.Date(2026, 7, 30, 0, 0, 0, 0, time.UTC).UnixMilli()

	recent := computeImportance(map[string]int{"2026-07-29": 1}, now, 30, 2.0)
	old := computeImportance(map[string]int{"2025-01-01": 1}, now, 30, 2.0)
	assert.Greater(t, recent, old)

	withoutBoost := computeImportance(map[string]int{"2026-07-29": 1}, now, 30, 1.0)
	assert.Greater(t, recent, withoutBoost)
}

func TestTopKeywordsFallsBackWhenNoSummarizer(t *testing.T) {
	label := topKeywords([]string{
		"deployment pipeline uses blue-green rollout",
		"deployment pipeline rollback strategy",
	}, 2)
	assert.Contains(t, label, "Deployment")
}

func TestClusterPersistsTopicsAndComputesCentroid(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	vectors := hnsw.New(hnsw.Config{})

	base := time.Now().Add(-24 * time.Hour).UnixMilli()
	seedSegment(ctx, t, vectors, "n1", []float32{1, 0, 0}, base, "deployment pipeline notes")
	seedSegment(ctx, t, vectors, "n2", []float32{0.99, 0.01, 0}, base+1000, "deployment rollback plan")
	seedSegment(ctx, t, vectors, "n3", []float32{0.98, 0, 0.02}, base+2000, "deployment pipeline retry")

	b := New(s, vectors, nil, Config{MinClusterSize: 3, SimilarityThreshold: 0.9})
	written, err := b.Cluster(ctx, time.Now().UnixMilli())
	require.NoError(t, err)
	assert.Equal(t, 1, written)

	topics, err := s.ListActiveTopics(ctx, 10)
	require.NoError(t, err)
	require.Len(t, topics, 1)
	assert.Len(t, topics[0].MemberNodeIDs, 3)
	assert.NotEmpty(t, topics[0].Label)
	assert.NotZero(t, topics[0].Centroid)
}

func TestClusterReusesExistingTopicIDOnRecluster(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	vectors := hnsw.New(hnsw.Config{})

	base := time.Now().Add(-24 * time.Hour).UnixMilli()
	seedSegment(ctx, t, vectors, "n1", []float32{1, 0, 0}, base, "deployment pipeline notes")
	seedSegment(ctx, t, vectors, "n2", []float32{0.99, 0.01, 0}, base+1000, "deployment rollback plan")
	seedSegment(ctx, t, vectors, "n3", []float32{0.98, 0, 0.02}, base+2000, "deployment pipeline retry")

	b := New(s, vectors, nil, Config{MinClusterSize: 3, SimilarityThreshold: 0.9})
	_, err := b.Cluster(ctx, time.Now().UnixMilli())
	require.NoError(t, err)

	firstPass, err := s.ListActiveTopics(ctx, 10)
	require.NoError(t, err)
	require.Len(t, firstPass, 1)
	firstID := firstPass[0].TopicID

	seedSegment(ctx, t, vectors, "n4", []float32{0.97, 0.01, 0.01}, base+3000, "deployment pipeline follow-up")
	_, err = b.Cluster(ctx, time.Now().UnixMilli())
	require.NoError(t, err)

	secondPass, err := s.ListActiveTopics(ctx, 10)
	require.NoError(t, err)
	require.Len(t, secondPass, 1)
	assert.Equal(t, firstID, secondPass[0].TopicID)
	assert.Len(t, secondPass[0].MemberNodeIDs, 4)
}

func TestPruneInactiveMarksStaleTopicsInactiveAndClusterResurrects(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	vectors := hnsw.New(hnsw.Config{})

	base := time.Now().Add(-240 * time.Hour).UnixMilli()
	seedSegment(ctx, t, vectors, "n1", []float32{1, 0, 0}, base, "deployment pipeline notes")
	seedSegment(ctx, t, vectors, "n2", []float32{0.99, 0.01, 0}, base+1000, "deployment rollback plan")
	seedSegment(ctx, t, vectors, "n3", []float32{0.98, 0, 0.02}, base+2000, "deployment pipeline retry")

	b := New(s, vectors, nil, Config{MinClusterSize: 3, SimilarityThreshold: 0.9, InactiveAfter: time.Hour})
	_, err := b.Cluster(ctx, time.Now().UnixMilli())
	require.NoError(t, err)

	pruned, err := b.PruneInactive(ctx, time.Now().UnixMilli())
	require.NoError(t, err)
	assert.Equal(t, 1, pruned)

	topics, err := s.ListActiveTopics(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, topics)

	seedSegment(ctx, t, vectors, "n4", []float32{0.97, 0.01, 0.01}, time.Now().UnixMilli(), "deployment pipeline resurfaced")
	_, err = b.Cluster(ctx, time.Now().UnixMilli())
	require.NoError(t, err)

	resurrected, err := s.ListActiveTopics(ctx, 10)
	require.NoError(t, err)
	require.Len(t, resurrected, 1)
	assert.True(t, resurrected[0].IsActive)
}

func TestRelatedTopicsOrdersBySimilarity(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	require.NoError(t, s.PutTopic(ctx, &types.Topic{
		TopicID: "topic:target", Centroid: []float32{1, 0, 0}, IsActive: true, CreatedMs: 1, LastMentionedMs: 1,
	}))
	require.NoError(t, s.PutTopic(ctx, &types.Topic{
		TopicID: "topic:close", Centroid: []float32{0.9, 0.1, 0}, IsActive: true, CreatedMs: 1, LastMentionedMs: 1,
	}))
	require.NoError(t, s.PutTopic(ctx, &types.Topic{
		TopicID: "topic:far", Centroid: []float32{0, 0, 1}, IsActive: true, CreatedMs: 1, LastMentionedMs: 1,
	}))

	b := New(s, hnsw.New(hnsw.Config{}), nil, Config{})
	related, err := b.RelatedTopics(ctx, "topic:target", 2)
	require.NoError(t, err)
	require.Len(t, related, 2)
	assert.Equal(t, "topic:close", related[0].TopicID)
}

func TestDispatchIgnoresNonSegmentEntries(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	b := New(s, hnsw.New(hnsw.Config{}), nil, Config{})

	err := b.Dispatch(ctx, types.OutboxEntry{Kind: types.OutboxGripCreated, Payload: types.OutboxPayload{GripID: "g1"}})
	assert.NoError(t, err)

	err = b.Dispatch(ctx, types.OutboxEntry{
		Kind: types.OutboxTocNodeCreated, Payload: types.OutboxPayload{NodeID: "toc:segment:none", Level: types.LevelSegment},
	})
	assert.NoError(t, err)
}
