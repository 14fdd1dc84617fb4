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

package outbox

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kadirpekel/agent-memory/internal/store"
	"github.com/kadirpekel/agent-memory/internal/types"
)

func openTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(context.Background(), store.Config{Dialect: store.DialectSQLite, DSN: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func seedEvent(t *testing.T, s *store.Store, id string, ts int64) {
	t.Helper()
	e := &types.Event{EventID: id, SessionID: "s1", TimestampMs: ts, Role: types.RoleUser, EventType: types.EventUserMessage, Text: "hi"}
	_, err := s.PutEventAndOutbox(context.Background(), e, types.OutboxEventCreated)
	require.NoError(t, err)
}

func TestConsumerDrainsInSequenceOrder(t *testing.T) {
	s := openTestStore(t)
	seedEvent(t, s, "e1", 1000)
	seedEvent(t, s, "e2", 2000)
	seedEvent(t, s, "e3", 3000)

	var seen []string
	c := New("test-consumer", s, func(ctx context.Context, entry types.OutboxEntry) error {
		seen = append(seen, entry.Payload.EventID)
		return nil
	})

	require.NoError(t, c.RunOnce(context.Background()))
	assert.Equal(t, []string{"e1", "e2", "e3"}, seen)

	state, _ := c.State()
	assert.Equal(t, StateIdle, state)

	// Running again with nothing new queued dispatches nothing further.
	seen = nil
	require.NoError(t, c.RunOnce(context.Background()))
	assert.Empty(t, seen)
}

func TestConsumerParksAsStalledAfterRepeatedFailure(t *testing.T) {
	s := openTestStore(t)
	seedEvent(t, s, "e1", 1000)

	c := New("flaky-consumer", s, func(ctx context.Context, entry types.OutboxEntry) error {
		return errors.New("dispatch failed")
	})
	c.MaxRetries = 1
	c.BaseBackoff = 0
	c.StallAfter = 2

	_ = c.RunOnce(context.Background())
	state, _ := c.State()
	assert.Equal(t, StateIdle, state)

	_ = c.RunOnce(context.Background())
	state, msg := c.State()
	assert.Equal(t, StateStalled, state)
	assert.NotEmpty(t, msg)
}

func TestConsumerStalledRunOnceIsNoop(t *testing.T) {
	s := openTestStore(t)
	seedEvent(t, s, "e1", 1000)

	calls := 0
	c := New("stuck", s, func(ctx context.Context, entry types.OutboxEntry) error {
		calls++
		return errors.New("nope")
	})
	c.MaxRetries = 1
	c.BaseBackoff = 0
	c.StallAfter = 1

	_ = c.RunOnce(context.Background())
	state, _ := c.State()
	require.Equal(t, StateStalled, state)

	callsAfterStall := calls
	require.NoError(t, c.RunOnce(context.Background()))
	assert.Equal(t, callsAfterStall, calls)
}

func TestGCDeletesEntriesBelowMinCheckpoint(t *testing.T) {
	s := openTestStore(t)
	seedEvent(t, s, "e1", 1000)
	seedEvent(t, s, "e2", 2000)

	require.NoError(t, s.SetCheckpoint(context.Background(), "outbox.keyword", 2))
	require.NoError(t, s.SetCheckpoint(context.Background(), "outbox.vector", 2))

	removed, err := GC(context.Background(), s)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, removed, int64(1))
}
