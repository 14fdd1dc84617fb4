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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kadirpekel/agent-memory/internal/tokenestimate"
	"github.com/kadirpekel/agent-memory/internal/types"
)

func evt(id string, ts int64, eventType types.EventType) *types.Event {
	return &types.Event{EventID: id, SessionID: "s1", TimestampMs: ts, Role: types.RoleUser, EventType: eventType, Text: "hello there friend"}
}

func TestSplitClosesOnTimeGap(t *testing.T) {
	est := tokenestimate.New()
	events := []*types.Event{
		evt("e1", 0, types.EventUserMessage),
		evt("e2", 1000, types.EventUserMessage),
		evt("e3", 2000, types.EventUserMessage),
		evt("e4", 60*60*1000, types.EventUserMessage), // 1h later: exceeds default 30m threshold
		evt("e5", 60*60*1000+1000, types.EventUserMessage),
		evt("e6", 60*60*1000+2000, types.EventUserMessage),
	}
	segments := Split(events, est, Config{MinEventsPerSegment: 1})
	require.Len(t, segments, 2)
	assert.Len(t, segments[0].Events, 3)
	assert.Len(t, segments[1].Events, 3)
}

func TestSplitClosesOnSessionBoundary(t *testing.T) {
	est := tokenestimate.New()
	events := []*types.Event{
		evt("e1", 0, types.EventSessionStart),
		evt("e2", 1000, types.EventUserMessage),
		evt("e3", 2000, types.EventUserMessage),
		evt("e4", 3000, types.EventSessionEnd),
		evt("e5", 4000, types.EventUserMessage),
		evt("e6", 5000, types.EventUserMessage),
	}
	segments := Split(events, est, Config{MinEventsPerSegment: 1})
	require.Len(t, segments, 2)
	assert.Equal(t, "e4", segments[0].Events[len(segments[0].Events)-1].EventID)
}

func TestSplitMergesUnderFloorSegments(t *testing.T) {
	est := tokenestimate.New()
	events := []*types.Event{
		evt("e1", 0, types.EventSessionStart),
		evt("e2", 1000, types.EventUserMessage),
		evt("e3", 2000, types.EventSessionEnd), // would close a 1-event segment next
		evt("e4", 3000, types.EventUserMessage),
	}
	segments := Split(events, est, Config{MinEventsPerSegment: 3})
	require.Len(t, segments, 1)
	assert.Len(t, segments[0].Events, 4)
}

func TestSplitAttachesOverlapTail(t *testing.T) {
	est := tokenestimate.New()
	events := []*types.Event{
		evt("e1", 0, types.EventUserMessage),
		evt("e2", 1000, types.EventUserMessage),
		evt("e3", 2000, types.EventUserMessage),
		evt("e4", 60*60*1000, types.EventUserMessage),
		evt("e5", 60*60*1000+1000, types.EventUserMessage),
		evt("e6", 60*60*1000+2000, types.EventUserMessage),
	}
	segments := Split(events, est, Config{MinEventsPerSegment: 1})
	require.Len(t, segments, 2)
	assert.Empty(t, segments[0].OverlapEvents)
	assert.NotEmpty(t, segments[1].OverlapEvents)
}

func TestSplitEmptyInput(t *testing.T) {
	est := tokenestimate.New()
	assert.Nil(t, Split(nil, est, Config{}))
}
