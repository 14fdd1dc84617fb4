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

// Package types holds the Agent Memory domain model: the immutable Event
// record, the TOC hierarchy, Grips, the outbox, checkpoints, usage counters,
// and the shared error taxonomy. Nothing in this package touches storage or
// I/O; it is pure data plus small validation helpers.
package types

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Role is who produced an Event.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
	RoleTool      Role = "tool"
)

func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleAssistant, RoleSystem, RoleTool:
		return true
	}
	return false
}

// EventType is the kind of conversational step an Event records.
type EventType string

const (
	EventSessionStart  EventType = "session_start"
	EventUserMessage   EventType = "user_message"
	EventAssistantMsg  EventType = "assistant_message"
	EventToolUse       EventType = "tool_use"
	EventToolResult    EventType = "tool_result"
	EventSessionEnd    EventType = "session_end"
	EventSubagentStart EventType = "subagent_start"
	EventSubagentEnd   EventType = "subagent_end"
)

func (t EventType) Valid() bool {
	switch t {
	case EventSessionStart, EventUserMessage, EventAssistantMsg, EventToolUse,
		EventToolResult, EventSessionEnd, EventSubagentStart, EventSubagentEnd:
		return true
	}
	return false
}

// IsSessionBoundary reports whether this event type closes a segment per
// spec.md §4.3 segmentation rule (c). Session/subagent starts open a span,
// not close one, so only the "end" types qualify.
func (t EventType) IsSessionBoundary() bool {
	return t == EventSessionEnd || t == EventSubagentEnd
}

// Event is an immutable record of one conversational step. Two writes with
// the same EventID are an idempotent no-op (see Store.PutEventAndOutbox).
type Event struct {
	EventID     string            `json:"event_id"`
	SessionID   string            `json:"session_id"`
	TimestampMs int64             `json:"timestamp_ms"`
	Role        Role              `json:"role"`
	EventType   EventType         `json:"event_type"`
	Text        string            `json:"text"`
	Agent       string            `json:"agent,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

// NormalizeAgent lowercases an agent identifier; an empty string means
// "absent" (legacy/unknown), per spec.md §3 and §6.
func NormalizeAgent(agent string) string {
	return strings.ToLower(strings.TrimSpace(agent))
}

// NewEventID produces a time-sortable unique identifier embedding the
// supplied creation timestamp, mirroring spec.md §3's ULID-like requirement.
func NewEventID(timestampMs int64) string {
	return ulidLike(timestampMs)
}

// ulidLike renders a fixed-width zero-padded timestamp followed by a random
// UUID suffix so lexicographic order equals time order, per spec.md §3's key
// encoding rule.
func ulidLike(timestampMs int64) string {
	return timePrefix(timestampMs) + "-" + uuid.NewString()
}

// newShortID returns a compact random identifier suffix (no dashes) for use
// inside composite ids like grip_id, where NewEventID's longer form would be
// redundant with the timestamp prefix already present.
func newShortID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
}

// timePrefix renders a 13-digit zero-padded millisecond timestamp, used by
// every time-sortable identifier and by the Store's key encoding.
func timePrefix(timestampMs int64) string {
	if timestampMs < 0 {
		timestampMs = 0
	}
	return fmt.Sprintf("%013d", timestampMs)
}
