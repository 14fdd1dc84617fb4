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

// OutboxKind identifies the kind of async index-maintenance work item.
type OutboxKind string

const (
	OutboxEventCreated   OutboxKind = "event_created"
	OutboxTocNodeCreated OutboxKind = "toc_node_created"
	OutboxGripCreated    OutboxKind = "grip_created"
	OutboxTocNodePruned  OutboxKind = "toc_node_pruned"
	OutboxGripPruned     OutboxKind = "grip_pruned"
)

// OutboxPayload is the minimal reference needed to index or remove the
// referenced entity; which fields are populated depends on Kind.
type OutboxPayload struct {
	EventID string   `json:"event_id,omitempty"`
	NodeID  string   `json:"node_id,omitempty"`
	GripID  string   `json:"grip_id,omitempty"`
	Level   TocLevel `json:"level,omitempty"`
}

// OutboxEntry is one work item in the append-only outbox queue.
type OutboxEntry struct {
	Sequence uint64        `json:"sequence"`
	Kind     OutboxKind    `json:"kind"`
	Payload  OutboxPayload `json:"payload"`
}

// Checkpoint is a named consumer's progress marker into the outbox.
type Checkpoint struct {
	Name         string `json:"name"`
	LastSequence uint64 `json:"last_sequence"`
}

// Well-known checkpoint names used by the outbox consumers and topic builder.
const (
	CheckpointKeyword = "outbox.keyword"
	CheckpointVector  = "outbox.vector"
	CheckpointTopic   = "topic_builder"
)

// UsageCounter is an optional per-doc access statistic, mutable with
// last-writer-wins semantics (spec.md §3).
type UsageCounter struct {
	DocID          string `json:"doc_id"`
	AccessCount    uint32 `json:"access_count"`
	LastAccessedMs int64  `json:"last_accessed_ms"`
}
