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

// Package topic is the optional Topic Graph (spec.md §4.7): a scheduled job
// clusters the vectors of segment-level TOC nodes by density, gives each
// cluster an LLM or keyword-derived label, and scores it by a time-decayed
// importance. Disabled by default.
package topic

import (
	"context"
	"log/slog"
	"time"

	"github.com/kadirpekel/agent-memory/internal/store"
	"github.com/kadirpekel/agent-memory/internal/summarizer"
	"github.com/kadirpekel/agent-memory/internal/types"
	"github.com/kadirpekel/agent-memory/internal/vector"
)

// Config controls clustering and scoring, mirroring config.TopicsConfig.
type Config struct {
	MinClusterSize     int
	SimilarityThreshold float64
	HalfLifeDays        float64
	RecencyBoost        float64
	// InactiveAfter is how long a topic can go unmentioned before
	// PruneInactive marks it inactive.
	InactiveAfter time.Duration
}

func (c Config) withDefaults() Config {
	if c.MinClusterSize <= 0 {
		c.MinClusterSize = 3
	}
	if c.SimilarityThreshold <= 0 {
		c.SimilarityThreshold = 0.75
	}
	if c.HalfLifeDays <= 0 {
		c.HalfLifeDays = 30
	}
	if c.RecencyBoost <= 0 {
		c.RecencyBoost = 2.0
	}
	if c.InactiveAfter <= 0 {
		c.InactiveAfter = 60 * 24 * time.Hour
	}
	return c
}

// Builder runs clustering passes and maintains topic lifecycle. Summarizer
// may be nil, in which case labels always fall back to keyword extraction.
type Builder struct {
	Store      *store.Store
	Vectors    vector.Provider
	Summarizer summarizer.Summarizer
	Config     Config
}

// New builds a Builder with defaults filled in.
func New(s *store.Store, vectors vector.Provider, summ summarizer.Summarizer, cfg Config) *Builder {
	return &Builder{Store: s, Vectors: vectors, Summarizer: summ, Config: cfg.withDefaults()}
}

// Cluster runs one full clustering pass over segment-level TOC node vectors,
// assigning each discovered dense group to an existing topic (by centroid
// similarity) or creating a new one, and persists the result. It returns how
// many topics were written (created, updated, or resurrected).
func (b *Builder) Cluster(ctx context.Context, nowMs int64) (int, error) {
	docs, err := b.Vectors.All(ctx, vector.Filters{DocType: vector.DocTocNode})
	if err != nil {
		return 0, err
	}
	segments := make([]vector.Doc, 0, len(docs))
	for _, d := range docs {
		if d.Level == types.LevelSegment && len(d.Embedding) > 0 {
			segments = append(segments, d)
		}
	}
	if len(segments) < b.Config.MinClusterSize {
		slog.Debug("topic: not enough segment vectors to cluster", "count", len(segments))
		return 0, nil
	}

	embeddings := make([][]float32, len(segments))
	for i, d := range segments {
		embeddings[i] = d.Embedding
	}
	eps := 1 - b.Config.SimilarityThreshold
	assignments := dbscan(embeddings, eps, b.Config.MinClusterSize)

	clusters := make(map[int][]vector.Doc)
	for i, cid := range assignments {
		if cid < 0 {
			continue // noise point, not part of any dense cluster
		}
		clusters[cid] = append(clusters[cid], segments[i])
	}

	written := 0
	for _, members := range clusters {
		if err := b.upsertCluster(ctx, members, nowMs); err != nil {
			slog.Error("topic: failed to persist cluster", "error", err)
			continue
		}
		written++
	}
	return written, nil
}

func (b *Builder) upsertCluster(ctx context.Context, members []vector.Doc, nowMs int64) error {
	centroid := centroidOf(members)
	mentions := mentionsPerDay(members)
	label := b.labelCluster(ctx, members)

	existing, err := b.closestExistingTopic(ctx, centroid)
	if err != nil {
		return err
	}

	t := &types.Topic{
		Label:           label,
		Centroid:        centroid,
		MentionsPerDay:  mentions,
		LastMentionedMs: latestTimestamp(members),
		IsActive:        true,
	}
	for _, m := range members {
		t.MemberNodeIDs = append(t.MemberNodeIDs, m.DocID)
	}

	if existing != nil {
		t.TopicID = existing.TopicID
		t.CreatedMs = existing.CreatedMs
		// merge historical mentions so a topic's series survives reclustering;
		// members the topic already listed were counted by an earlier pass
		merged := existing.MentionsPerDay
		if merged == nil {
			merged = map[string]int{}
		}
		known := make(map[string]bool, len(existing.MemberNodeIDs))
		for _, id := range existing.MemberNodeIDs {
			known[id] = true
		}
		var fresh []vector.Doc
		for _, m := range members {
			if !known[m.DocID] {
				fresh = append(fresh, m)
			}
		}
		for day, n := range mentionsPerDay(fresh) {
			merged[day] += n
		}
		t.MentionsPerDay = merged
		if existing.Label != "" && label == "" {
			t.Label = existing.Label
		}
	} else {
		t.TopicID = types.NewTopicID()
		t.CreatedMs = nowMs
	}

	t.Importance = computeImportance(t.MentionsPerDay, nowMs, b.Config.HalfLifeDays, b.Config.RecencyBoost)
	return b.Store.PutTopic(ctx, t)
}

// closestExistingTopic finds the active-or-inactive topic whose centroid is
// most similar to centroid, if that similarity clears SimilarityThreshold.
// Matching against inactive topics is what lets a pruned topic resurrect
// instead of being recreated under a new id (spec.md §4.7).
func (b *Builder) closestExistingTopic(ctx context.Context, centroid []float32) (*types.Topic, error) {
	active, err := b.Store.ListActiveTopics(ctx, 1000)
	if err != nil {
		return nil, err
	}
	inactive, err := b.Store.ListInactiveTopics(ctx)
	if err != nil {
		return nil, err
	}
	candidates := append(active, inactive...)

	var best *types.Topic
	var bestScore float32
	for _, cand := range candidates {
		score := cosineSimilarity(centroid, cand.Centroid)
		if score >= float32(b.Config.SimilarityThreshold) && score > bestScore {
			best, bestScore = cand, score
		}
	}
	return best, nil
}

// PruneInactive marks every topic unmentioned since nowMs-InactiveAfter as
// inactive. A later Cluster call resurrects a pruned topic the moment a new
// segment's vector falls within its centroid neighbourhood again.
func (b *Builder) PruneInactive(ctx context.Context, nowMs int64) (int, error) {
	cutoff := nowMs - b.Config.InactiveAfter.Milliseconds()
	stale, err := b.Store.ListStaleTopics(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	for _, t := range stale {
		if err := b.Store.SetTopicActive(ctx, t.TopicID, false); err != nil {
			return 0, err
		}
	}
	return len(stale), nil
}

// RelatedTopics returns up to topK active topics other than topicID, ordered
// by centroid cosine similarity, descending.
func (b *Builder) RelatedTopics(ctx context.Context, topicID string, topK int) ([]*types.Topic, error) {
	target, err := b.Store.GetTopic(ctx, topicID)
	if err != nil {
		return nil, err
	}
	active, err := b.Store.ListActiveTopics(ctx, 1000)
	if err != nil {
		return nil, err
	}

	type scored struct {
		t     *types.Topic
		score float32
	}
	var ranked []scored
	for _, cand := range active {
		if cand.TopicID == target.TopicID {
			continue
		}
		ranked = append(ranked, scored{cand, cosineSimilarity(target.Centroid, cand.Centroid)})
	}
	for i := 1; i < len(ranked); i++ {
		for j := i; j > 0 && ranked[j].score > ranked[j-1].score; j-- {
			ranked[j], ranked[j-1] = ranked[j-1], ranked[j]
		}
	}
	if topK <= 0 || topK > len(ranked) {
		topK = len(ranked)
	}
	out := make([]*types.Topic, 0, topK)
	for _, r := range ranked[:topK] {
		out = append(out, r.t)
	}
	return out, nil
}

// Dispatch conforms to outbox.Dispatch: it doesn't run the (comparatively
// expensive) full clustering pass per entry. For a segment node that an
// active topic already lists as a member, it sets that topic's
// last-mentioned timestamp to now; a node that no Cluster pass has assigned
// to a topic yet touches no topic.
func (b *Builder) Dispatch(ctx context.Context, entry types.OutboxEntry) error {
	if entry.Kind != types.OutboxTocNodeCreated || entry.Payload.Level != types.LevelSegment {
		return nil
	}
	return b.touchTopicForNode(ctx, entry.Payload.NodeID)
}

func (b *Builder) touchTopicForNode(ctx context.Context, nodeID string) error {
	active, err := b.Store.ListActiveTopics(ctx, 1000)
	if err != nil {
		return err
	}
	for _, t := range active {
		for _, member := range t.MemberNodeIDs {
			if member == nodeID {
				t.LastMentionedMs = time.Now().UnixMilli()
				return b.Store.PutTopic(ctx, t)
			}
		}
	}
	return nil
}

func latestTimestamp(members []vector.Doc) int64 {
	var max int64
	for _, m := range members {
		if m.TimestampMs > max {
			max = m.TimestampMs
		}
	}
	return max
}
