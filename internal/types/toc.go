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
	"fmt"
	"sort"
)

// TocLevel is a rung of the Segment -> Day -> Week -> Month -> Year hierarchy.
type TocLevel string

const (
	LevelSegment TocLevel = "segment"
	LevelDay     TocLevel = "day"
	LevelWeek    TocLevel = "week"
	LevelMonth   TocLevel = "month"
	LevelYear    TocLevel = "year"
)

// Parent returns the level that directly contains this one, or "" for Year.
func (l TocLevel) Parent() TocLevel {
	switch l {
	case LevelSegment:
		return LevelDay
	case LevelDay:
		return LevelWeek
	case LevelWeek:
		return LevelMonth
	case LevelMonth:
		return LevelYear
	default:
		return ""
	}
}

// Child returns the level directly contained by this one, or "" for Segment,
// the inverse of Parent.
func (l TocLevel) Child() TocLevel {
	switch l {
	case LevelDay:
		return LevelSegment
	case LevelWeek:
		return LevelDay
	case LevelMonth:
		return LevelWeek
	case LevelYear:
		return LevelMonth
	default:
		return ""
	}
}

func (l TocLevel) Valid() bool {
	switch l {
	case LevelSegment, LevelDay, LevelWeek, LevelMonth, LevelYear:
		return true
	}
	return false
}

// MemoryKind classifies what a TocNode/bullet records, per spec.md §4.10.
type MemoryKind string

const (
	MemoryObservation MemoryKind = "observation"
	MemoryPreference  MemoryKind = "preference"
	MemoryProcedure   MemoryKind = "procedure"
	MemoryConstraint  MemoryKind = "constraint"
	MemoryDefinition  MemoryKind = "definition"
)

// TimeRange is a half-open [Start, End) millisecond interval.
type TimeRange struct {
	StartMs int64 `json:"start_ms"`
	EndMs   int64 `json:"end_ms"`
}

// Contains reports whether ms falls in [Start, End).
func (r TimeRange) Contains(ms int64) bool {
	return ms >= r.StartMs && ms < r.EndMs
}

// EventRange is an inclusive [First, Last] event-id interval.
type EventRange struct {
	FirstEventID string `json:"first_event_id"`
	LastEventID  string `json:"last_event_id"`
}

// TocBullet is one line of a TocNode's summary, anchored by one or more Grips.
type TocBullet struct {
	Text    string   `json:"text"`
	GripIDs []string `json:"grip_ids"`
}

// TocNode is a node in the time hierarchy.
type TocNode struct {
	NodeID              string      `json:"node_id"`
	Level               TocLevel    `json:"level"`
	ParentID            string      `json:"parent_id,omitempty"`
	TimeRange           TimeRange   `json:"time_range"`
	EventRange          *EventRange `json:"event_range,omitempty"`
	Title               string      `json:"title"`
	Summary             string      `json:"summary"`
	Bullets             []TocBullet `json:"bullets"`
	ContributingAgents  []string    `json:"contributing_agents"`
	SalienceScore       float32     `json:"salience_score"`
	MemoryKind          MemoryKind  `json:"memory_kind"`
	IsPinned            bool        `json:"is_pinned"`
	// Version distinguishes successive rollups of the same period; the
	// current one is addressable both by its versioned NodeID and via
	// toc_latest_by_period, per spec.md §4.3's idempotent-rollup rule.
	Version int `json:"version"`
}

// Normalize fills in backward-compatible defaults for zero-value fields read
// from storage, per SPEC_FULL.md §3.
func (n *TocNode) Normalize() {
	if n.SalienceScore == 0 {
		n.SalienceScore = 0.5
	}
	if n.ContributingAgents == nil {
		n.ContributingAgents = []string{}
	}
	if n.MemoryKind == "" {
		n.MemoryKind = MemoryObservation
	}
}

// PeriodNodeID builds the canonical (unversioned) node id for a level+period,
// e.g. "toc:day:2026-01-30". Segment ids additionally embed the first event id.
func PeriodNodeID(level TocLevel, periodID string) string {
	return fmt.Sprintf("toc:%s:%s", level, periodID)
}

// VersionedNodeID builds the historical, never-reused id for one rollup
// attempt of a period, so old rollups are never deleted (spec.md §4.3).
func VersionedNodeID(level TocLevel, periodID string, version int) string {
	return fmt.Sprintf("%s#v%d", PeriodNodeID(level, periodID), version)
}

// SortedUniqueAgents returns the sorted, deduplicated, lowercased agent set,
// matching the ContributingAgents invariant in spec.md §8 (property 6).
func SortedUniqueAgents(agents []string) []string {
	set := make(map[string]struct{}, len(agents))
	for _, a := range agents {
		a = NormalizeAgent(a)
		if a == "" {
			continue
		}
		set[a] = struct{}{}
	}
	out := make([]string, 0, len(set))
	for a := range set {
		out = append(out, a)
	}
	sort.Strings(out)
	return out
}

// Grip is an evidence anchor: a verbatim excerpt plus the event range it was
// drawn from.
type Grip struct {
	GripID      string     `json:"grip_id"`
	Excerpt     string     `json:"excerpt"`
	EventRange  EventRange `json:"event_range"`
	TimestampMs int64      `json:"timestamp_ms"`
	Agent       string     `json:"agent,omitempty"`
}

// NewGripID builds a grip_id in the "grip:{ts13}:{id}" shape from spec.md §3.
func NewGripID(timestampMs int64) string {
	return fmt.Sprintf("grip:%s:%s", timePrefix(timestampMs), uuidSuffix())
}

func uuidSuffix() string {
	return newShortID()
}
