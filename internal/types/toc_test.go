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

package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSortedUniqueAgents(t *testing.T) {
	got := SortedUniqueAgents([]string{"Claude", "opencode", "claude", "", " "})
	assert.Equal(t, []string{"claude", "opencode"}, got)
}

func TestTocNodeNormalizeDefaults(t *testing.T) {
	n := &TocNode{}
	n.Normalize()
	assert.Equal(t, float32(0.5), n.SalienceScore)
	assert.Equal(t, []string{}, n.ContributingAgents)
	assert.Equal(t, MemoryObservation, n.MemoryKind)
}

func TestValidateEventGeneratesIDAndLowercasesAgent(t *testing.T) {
	e := &Event{
		SessionID:   "s1",
		TimestampMs: 1000,
		Role:        RoleUser,
		EventType:   EventUserMessage,
		Text:        "hi",
		Agent:       "Claude",
	}
	require.NoError(t, ValidateEvent(e))
	assert.NotEmpty(t, e.EventID)
	assert.Equal(t, "claude", e.Agent)
}

func TestValidateEventRejectsBadRole(t *testing.T) {
	e := &Event{TimestampMs: 1, Role: "bogus", EventType: EventUserMessage}
	err := ValidateEvent(e)
	require.Error(t, err)
	assert.Equal(t, CodeInvalidArgument, CodeOf(err))
}

func TestVersionedNodeIDNeverCollidesAcrossVersions(t *testing.T) {
	a := VersionedNodeID(LevelDay, "2026-01-30", 1)
	b := VersionedNodeID(LevelDay, "2026-01-30", 2)
	assert.NotEqual(t, a, b)
	assert.Equal(t, "toc:day:2026-01-30", PeriodNodeID(LevelDay, "2026-01-30"))
}

func TestClampSalience(t *testing.T) {
	assert.Equal(t, float32(0), ClampSalience(-1))
	assert.Equal(t, float32(1), ClampSalience(2))
	assert.Equal(t, float32(0.4), ClampSalience(0.4))
}
