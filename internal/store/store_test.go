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

package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kadirpekel/agent-memory/internal/types"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), Config{Dialect: DialectSQLite, DSN: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestPutEventAndOutboxIsIdempotent(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	e := &types.Event{EventID: "evt-1", SessionID: "s1", TimestampMs: 1000, Role: types.RoleUser, EventType: types.EventUserMessage, Text: "hi"}

	created, err := s.PutEventAndOutbox(ctx, e, types.OutboxEventCreated)
	require.NoError(t, err)
	assert.True(t, created)

	created, err = s.PutEventAndOutbox(ctx, e, types.OutboxEventCreated)
	require.NoError(t, err)
	assert.False(t, created, "duplicate event_id must be a no-op")

	entries, err := s.ReadOutbox(ctx, 0, 10)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "the duplicate write must not append a second outbox entry")
}

func TestGetEventRoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	e := &types.Event{EventID: "evt-2", SessionID: "s1", TimestampMs: 2000, Role: types.RoleAssistant,
		EventType: types.EventAssistantMsg, Text: "hello there", Agent: "claude", Metadata: map[string]string{"k": "v"}}
	_, err := s.PutEventAndOutbox(ctx, e, types.OutboxEventCreated)
	require.NoError(t, err)

	got, err := s.GetEvent(ctx, "evt-2")
	require.NoError(t, err)
	assert.Equal(t, e.Text, got.Text)
	assert.Equal(t, e.Agent, got.Agent)
	assert.Equal(t, "v", got.Metadata["k"])
}

func TestGetEventNotFound(t *testing.T) {
	s := openTestStore(t)
	_, err := s.GetEvent(context.Background(), "missing")
	require.Error(t, err)
	assert.Equal(t, types.CodeNotFound, types.CodeOf(err))
}

func TestPutTocNodeRequiresNoParentExistenceCheck(t *testing.T) {
	// Segments can be written before their Day parent is rolled up; the
	// store does not enforce a parent-exists foreign key (spec.md §4.3).
	s := openTestStore(t)
	ctx := context.Background()
	n := &types.TocNode{
		NodeID:    types.PeriodNodeID(types.LevelSegment, "seg-1"),
		Level:     types.LevelSegment,
		ParentID:  types.PeriodNodeID(types.LevelDay, "2026-01-30"),
		TimeRange: types.TimeRange{StartMs: 1000, EndMs: 2000},
		Title:     "segment",
	}
	require.NoError(t, s.PutTocNode(ctx, n))

	got, err := s.GetTocNode(ctx, n.NodeID)
	require.NoError(t, err)
	assert.Equal(t, n.ParentID, got.ParentID)
}

func TestVersionedRollupsAreNeverDeleted(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	period := "2026-01-30"
	v1 := &types.TocNode{NodeID: types.VersionedNodeID(types.LevelDay, period, 1), Level: types.LevelDay, Title: "v1", Version: 1}
	v2 := &types.TocNode{NodeID: types.VersionedNodeID(types.LevelDay, period, 2), Level: types.LevelDay, Title: "v2", Version: 2}
	require.NoError(t, s.PutTocNode(ctx, v1))
	require.NoError(t, s.PutTocNode(ctx, v2))

	// both versions remain individually addressable
	got1, err := s.GetTocNode(ctx, v1.NodeID)
	require.NoError(t, err)
	assert.Equal(t, "v1", got1.Title)
	got2, err := s.GetTocNode(ctx, v2.NodeID)
	require.NoError(t, err)
	assert.Equal(t, "v2", got2.Title)
}

func TestGetLatestTocNodeForPeriodNotFound(t *testing.T) {
	s := openTestStore(t)
	_, err := s.GetLatestTocNodeForPeriod(context.Background(), types.LevelDay, "2026-01-30")
	require.Error(t, err)
	assert.Equal(t, types.CodeNotFound, types.CodeOf(err))
}

func TestBrowseChildrenPaginates(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	parent := types.PeriodNodeID(types.LevelDay, "2026-01-30")
	for i := 0; i < 3; i++ {
		n := &types.TocNode{
			NodeID:    types.PeriodNodeID(types.LevelSegment, "seg-"+string(rune('a'+i))),
			Level:     types.LevelSegment,
			ParentID:  parent,
			TimeRange: types.TimeRange{StartMs: int64(1000 * (i + 1)), EndMs: int64(1000 * (i + 2))},
		}
		require.NoError(t, s.PutTocNode(ctx, n))
	}

	page1, token, err := s.BrowseChildren(ctx, parent, "", 2)
	require.NoError(t, err)
	assert.Len(t, page1, 2)
	assert.NotEmpty(t, token)

	page2, token2, err := s.BrowseChildren(ctx, parent, token, 2)
	require.NoError(t, err)
	assert.Len(t, page2, 1)
	assert.Empty(t, token2)
}

func TestGripEventRangeResolution(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	for i, id := range []string{"e1", "e2", "e3"} {
		e := &types.Event{EventID: id, SessionID: "s1", TimestampMs: int64(1000 + i), Role: types.RoleUser, EventType: types.EventUserMessage, Text: "t"}
		_, err := s.PutEventAndOutbox(ctx, e, types.OutboxEventCreated)
		require.NoError(t, err)
	}
	g := &types.Grip{GripID: "grip-1", Excerpt: "t", EventRange: types.EventRange{FirstEventID: "e1", LastEventID: "e2"}, TimestampMs: 1000}
	require.NoError(t, s.PutGrip(ctx, g))

	events, err := s.EventRangeBetween(ctx, g.EventRange.FirstEventID, g.EventRange.LastEventID)
	require.NoError(t, err)
	assert.Len(t, events, 2)
}

func TestPutTocNodeWithGripsIsAtomic(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	for i, id := range []string{"e1", "e2"} {
		e := &types.Event{EventID: id, SessionID: "s1", TimestampMs: int64(1000 + i), Role: types.RoleUser, EventType: types.EventUserMessage, Text: "t"}
		_, err := s.PutEventAndOutbox(ctx, e, types.OutboxEventCreated)
		require.NoError(t, err)
	}

	n := &types.TocNode{
		NodeID: "toc:segment:seg-1", Level: types.LevelSegment,
		TimeRange:  types.TimeRange{StartMs: 1000, EndMs: 1001},
		EventRange: &types.EventRange{FirstEventID: "e1", LastEventID: "e2"},
		Title:      "t", Summary: "s",
		Bullets: []types.TocBullet{{Text: "b1", GripIDs: []string{"grip-1"}}},
	}
	g := &types.Grip{GripID: "grip-1", Excerpt: "t", EventRange: types.EventRange{FirstEventID: "e1", LastEventID: "e2"}, TimestampMs: 1000}

	require.NoError(t, s.PutTocNodeWithGrips(ctx, n, []*types.Grip{g}))

	gotNode, err := s.GetTocNode(ctx, n.NodeID)
	require.NoError(t, err)
	assert.Equal(t, "t", gotNode.Title)

	gotGrip, err := s.GetGrip(ctx, "grip-1")
	require.NoError(t, err)
	assert.Equal(t, "t", gotGrip.Excerpt)
}

func TestOutboxCheckpointAndGC(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	for i, id := range []string{"e1", "e2", "e3"} {
		e := &types.Event{EventID: id, SessionID: "s1", TimestampMs: int64(1000 + i), Role: types.RoleUser, EventType: types.EventUserMessage, Text: "t"}
		_, err := s.PutEventAndOutbox(ctx, e, types.OutboxEventCreated)
		require.NoError(t, err)
	}

	entries, err := s.ReadOutbox(ctx, 0, 10)
	require.NoError(t, err)
	require.Len(t, entries, 3)

	require.NoError(t, s.SetCheckpoint(ctx, types.CheckpointKeyword, entries[1].Sequence))
	require.NoError(t, s.SetCheckpoint(ctx, types.CheckpointVector, entries[2].Sequence))

	min, err := s.MinCheckpointSequence(ctx)
	require.NoError(t, err)
	assert.Equal(t, entries[1].Sequence, min)

	deleted, err := s.DeleteOutboxUpTo(ctx, min)
	require.NoError(t, err)
	assert.Equal(t, int64(2), deleted)

	remaining, err := s.ReadOutbox(ctx, 0, 10)
	require.NoError(t, err)
	assert.Len(t, remaining, 1)
}

func TestUsageCounterIncrementsAndLastWriterWins(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.IncrementUsageCounter(ctx, "doc-1", 1000))
	require.NoError(t, s.IncrementUsageCounter(ctx, "doc-1", 2000))

	uc, err := s.GetUsageCounter(ctx, "doc-1")
	require.NoError(t, err)
	assert.Equal(t, uint32(2), uc.AccessCount)
	assert.Equal(t, int64(2000), uc.LastAccessedMs)
}

func TestStatsCountsRows(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	e := &types.Event{EventID: "e1", SessionID: "s1", TimestampMs: 1000, Role: types.RoleUser, EventType: types.EventUserMessage, Text: "t"}
	_, err := s.PutEventAndOutbox(ctx, e, types.OutboxEventCreated)
	require.NoError(t, err)

	stats, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.EventCount)
}
