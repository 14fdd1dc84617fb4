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

import "fmt"

// Topic is a density cluster of TOC-node vectors, surfaced by the Topic
// Graph (spec.md §4.7) so a caller can browse conversation history by theme
// rather than by time.
type Topic struct {
	TopicID string `json:"topic_id"`
	Label   string `json:"label"`

	// MemberNodeIDs are the toc_nodes (segment-level) assigned to this
	// cluster by the most recent clustering pass.
	MemberNodeIDs []string `json:"member_node_ids"`

	// Centroid is the mean embedding of MemberNodeIDs, used both to rank
	// related topics (via cosine similarity) and, during a clustering pass,
	// to match each newly found cluster to an existing topic.
	Centroid []float32 `json:"centroid"`

	// MentionsPerDay maps a "YYYY-MM-DD" date to how many member nodes were
	// created that day, the input series for trend display.
	MentionsPerDay map[string]int `json:"mentions_per_day"`

	// Importance is an exponentially time-decayed score recomputed whenever
	// a clustering pass writes the topic; see computeImportance in
	// internal/topic for the formula.
	Importance float64 `json:"importance"`

	CreatedMs       int64 `json:"created_ms"`
	LastMentionedMs int64 `json:"last_mentioned_ms"`

	// IsActive is false once the topic has been pruned for inactivity; a
	// pruned topic is resurrected (flipped back to active, not recreated)
	// if a later clustering pass reassigns it a member.
	IsActive bool `json:"is_active"`
}

// NewTopicID builds a topic_id in the "topic:{id}" shape, paralleling
// NewGripID's "grip:..." convention.
func NewTopicID() string {
	return fmt.Sprintf("topic:%s", newShortID())
}

// Normalize fills in backward-compatible defaults for zero-value fields read
// from storage, mirroring TocNode.Normalize.
func (t *Topic) Normalize() {
	if t.MemberNodeIDs == nil {
		t.MemberNodeIDs = []string{}
	}
	if t.Centroid == nil {
		t.Centroid = []float32{}
	}
	if t.MentionsPerDay == nil {
		t.MentionsPerDay = map[string]int{}
	}
}

// TotalMentions sums the per-day series, the cluster's all-time member count.
func (t *Topic) TotalMentions() int {
	total := 0
	for _, n := range t.MentionsPerDay {
		total += n
	}
	return total
}
