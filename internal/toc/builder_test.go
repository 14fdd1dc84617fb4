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

package toc

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kadirpekel/agent-memory/internal/store"
	"github.com/kadirpekel/agent-memory/internal/summarizer"
	"github.com/kadirpekel/agent-memory/internal/tokenestimate"
	"github.com/kadirpekel/agent-memory/internal/types"
)

func newTestBuilder(t *testing.T) (*Builder, *store.Store) {
	t.Helper()
	s, err := store.Open(context.Background(), store.Config{Dialect: store.DialectSQLite, DSN: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	b := New(s, summarizer.Mock{}, tokenestimate.New(), Config{MinEventsPerSegment: 1})
	return b, s
}

func putEvents(t *testing.T, s *store.Store, events []*types.Event) {
	t.Helper()
	for _, e := range events {
		_, err := s.PutEventAndOutbox(context.Background(), e, types.OutboxEventCreated)
		require.NoError(t, err)
	}
}

func TestCloseSegmentsWritesNodeAndGrips(t *testing.T) {
	b, s := newTestBuilder(t)
	events := []*types.Event{
		evt("e1", 1000, types.EventUserMessage),
		evt("e2", 2000, types.EventAssistantMsg),
		evt("e3", 3000, types.EventUserMessage),
	}
	putEvents(t, s, events)

	nodes, err := b.CloseSegments(context.Background(), events)
	require.NoError(t, err)
	require.Len(t, nodes, 1)

	node := nodes[0]
	assert.Equal(t, types.LevelSegment, node.Level)
	assert.NotEmpty(t, node.Bullets)
	for _, bullet := range node.Bullets {
		require.Len(t, bullet.GripIDs, 1)
		_, err := s.GetGrip(context.Background(), bullet.GripIDs[0])
		assert.NoError(t, err)
	}

	got, err := s.GetTocNode(context.Background(), node.NodeID)
	require.NoError(t, err)
	assert.Equal(t, node.Title, got.Title)
}

func TestCloseSegmentsSetsDayParent(t *testing.T) {
	b, s := newTestBuilder(t)
	events := []*types.Event{evt("e1", 1000, types.EventUserMessage)}
	putEvents(t, s, events)

	nodes, err := b.CloseSegments(context.Background(), events)
	require.NoError(t, err)
	require.Len(t, nodes, 1)
	assert.Contains(t, nodes[0].ParentID, "toc:day:")
}

func TestRollupPeriodAggregatesChildren(t *testing.T) {
	b, s := newTestBuilder(t)
	ctx := context.Background()

	events := []*types.Event{
		evt("e1", 1000, types.EventUserMessage),
		evt("e2", 60*60*1000, types.EventUserMessage),
	}
	putEvents(t, s, events)
	nodes, err := b.CloseSegments(ctx, events)
	require.NoError(t, err)
	require.Len(t, nodes, 2)

	dayPeriod := PeriodFor(types.LevelDay, nodes[0].TimeRange.StartMs, b.Config.Location)
	rolled, err := b.RollupPeriod(ctx, types.LevelDay, dayPeriod)
	require.NoError(t, err)
	assert.Equal(t, types.LevelDay, rolled.Level)
	assert.Equal(t, 1, rolled.Version)
	assert.NotEmpty(t, rolled.Bullets)
}

func TestRollupPeriodIsIdempotentAcrossVersions(t *testing.T) {
	b, s := newTestBuilder(t)
	ctx := context.Background()

	events := []*types.Event{evt("e1", 1000, types.EventUserMessage)}
	putEvents(t, s, events)
	nodes, err := b.CloseSegments(ctx, events)
	require.NoError(t, err)
	require.Len(t, nodes, 1)

	dayPeriod := PeriodFor(types.LevelDay, nodes[0].TimeRange.StartMs, b.Config.Location)
	first, err := b.RollupPeriod(ctx, types.LevelDay, dayPeriod)
	require.NoError(t, err)
	second, err := b.RollupPeriod(ctx, types.LevelDay, dayPeriod)
	require.NoError(t, err)

	assert.Equal(t, 1, first.Version)
	assert.Equal(t, 2, second.Version)
	assert.NotEqual(t, first.NodeID, second.NodeID)

	// first version is still independently addressable
	_, err = s.GetTocNode(ctx, first.NodeID)
	assert.NoError(t, err)

	latest, err := s.GetLatestTocNodeForPeriod(ctx, types.LevelDay, dayPeriod)
	require.NoError(t, err)
	assert.Equal(t, second.NodeID, latest.NodeID)
}

func TestRollupPeriodNotFoundWhenNoChildren(t *testing.T) {
	b, _ := newTestBuilder(t)
	_, err := b.RollupPeriod(context.Background(), types.LevelDay, "2026-01-30")
	assert.Equal(t, types.CodeNotFound, types.CodeOf(err))
}

func TestRollupPeriodRejectsSegmentLevel(t *testing.T) {
	b, _ := newTestBuilder(t)
	_, err := b.RollupPeriod(context.Background(), types.LevelSegment, "whatever")
	assert.Equal(t, types.CodeInvalidArgument, types.CodeOf(err))
}
