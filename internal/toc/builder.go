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

// Package toc builds the Segment -> Day -> Week -> Month -> Year hierarchy:
// online segmentation of the event stream and scheduled level rollups
// (spec.md §4.3), annotating every node with salience and memory_kind
// (spec.md §4.10).
package toc

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"github.com/kadirpekel/agent-memory/internal/grip"
	"github.com/kadirpekel/agent-memory/internal/store"
	"github.com/kadirpekel/agent-memory/internal/summarizer"
	"github.com/kadirpekel/agent-memory/internal/tokenestimate"
	"github.com/kadirpekel/agent-memory/internal/types"
)

// Builder is the TOC Builder: it closes Segments from raw events and rolls
// up existing nodes into the next level up.
type Builder struct {
	Store      *store.Store
	Summarizer summarizer.Summarizer
	Estimator  *tokenestimate.Estimator
	Config     Config
}

// New builds a Builder with defaults filled in.
func New(s *store.Store, summ summarizer.Summarizer, est *tokenestimate.Estimator, cfg Config) *Builder {
	return &Builder{Store: s, Summarizer: summ, Estimator: est, Config: cfg.withDefaults()}
}

// CloseSegments splits an ordered run of events (typically one session's
// events since the last closed segment) and writes a TocNode+Grips for
// each resulting Segment.
func (b *Builder) CloseSegments(ctx context.Context, events []*types.Event) ([]*types.TocNode, error) {
	segments := Split(events, b.Estimator, b.Config)
	nodes := make([]*types.TocNode, 0, len(segments))
	for _, seg := range segments {
		node, err := b.closeSegment(ctx, seg)
		if err != nil {
			return nodes, err
		}
		nodes = append(nodes, node)
	}
	return nodes, nil
}

func (b *Builder) closeSegment(ctx context.Context, seg Segment) (*types.TocNode, error) {
	if len(seg.Events) == 0 {
		return nil, types.NewError("toc", "close_segment", "segment has no events", types.CodeInvalidArgument, nil)
	}

	passages := make([]string, 0, len(seg.OverlapEvents)+len(seg.Events))
	for _, e := range seg.OverlapEvents {
		passages = append(passages, e.Text)
	}
	for _, e := range seg.Events {
		passages = append(passages, e.Text)
	}

	result, err := b.summarizeWithRetry(ctx, summarizer.Input{Passages: passages, LevelName: string(types.LevelSegment)})
	if err != nil {
		return nil, err
	}

	first, last := seg.Events[0], seg.Events[len(seg.Events)-1]
	agents := make([]string, 0, len(seg.Events))
	totalLen := 0
	for _, e := range seg.Events {
		if e.Agent != "" {
			agents = append(agents, e.Agent)
		}
		totalLen += len(e.Text)
	}

	memoryKind := InferMemoryKind(result.Summary)
	salience := Salience(totalLen, memoryKind, false)

	excerptSources := selectExcerptEvents(seg.Events, len(result.Bullets))
	bullets := make([]types.TocBullet, len(result.Bullets))
	grips := make([]*types.Grip, 0, len(result.Bullets))
	for i, text := range result.Bullets {
		src := excerptSources[i]
		g := grip.New(src.Text, types.EventRange{FirstEventID: src.EventID, LastEventID: src.EventID}, src.TimestampMs, src.Agent)
		grips = append(grips, g)
		bullets[i] = types.TocBullet{Text: text, GripIDs: []string{g.GripID}}
	}

	node := &types.TocNode{
		NodeID:             "toc:segment:" + first.EventID,
		Level:              types.LevelSegment,
		ParentID:           types.PeriodNodeID(types.LevelDay, PeriodFor(types.LevelDay, first.TimestampMs, b.Config.Location)),
		TimeRange:          types.TimeRange{StartMs: first.TimestampMs, EndMs: last.TimestampMs},
		EventRange:         &types.EventRange{FirstEventID: first.EventID, LastEventID: last.EventID},
		Title:              result.Title,
		Summary:            result.Summary,
		Bullets:            bullets,
		ContributingAgents: agents,
		SalienceScore:      salience,
		MemoryKind:         memoryKind,
		Version:            1,
	}

	if err := b.Store.PutTocNodeWithGrips(ctx, node, grips); err != nil {
		return nil, err
	}
	return node, nil
}

// selectExcerptEvents picks n representative events to anchor n bullets,
// approximating spec.md §4.3's "most salient sentence/line" by longest
// text, the cheapest proxy for information density available without
// another LLM round-trip. Events repeat (modulo) if there are fewer of them
// than bullets.
func selectExcerptEvents(events []*types.Event, n int) []*types.Event {
	if n == 0 {
		return nil
	}
	ranked := append([]*types.Event(nil), events...)
	sort.SliceStable(ranked, func(i, j int) bool { return len(ranked[i].Text) > len(ranked[j].Text) })
	out := make([]*types.Event, n)
	for i := range out {
		out[i] = ranked[i%len(ranked)]
	}
	return out
}

// summarizeWithRetry calls the Summariser Port with exponential backoff,
// per spec.md §4.3's failure model for both segmentation and rollup.
func (b *Builder) summarizeWithRetry(ctx context.Context, in summarizer.Input) (summarizer.Result, error) {
	const maxAttempts = 3
	backoff := 500 * time.Millisecond
	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return summarizer.Result{}, ctx.Err()
			case <-time.After(backoff):
			}
			backoff *= 2
		}
		result, err := b.Summarizer.Summarize(ctx, in)
		if err == nil {
			return result, nil
		}
		lastErr = err
		slog.Warn("summarizer call failed, retrying", "attempt", attempt+1, "level", in.LevelName, "error", err)
	}
	return summarizer.Result{}, types.NewError("toc", "summarize", "summarizer failed after retries", types.CodeUnavailable, lastErr)
}
