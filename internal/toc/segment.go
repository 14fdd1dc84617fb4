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
	"time"

	"github.com/kadirpekel/agent-memory/internal/tokenestimate"
	"github.com/kadirpekel/agent-memory/internal/types"
)

// Config tunes segmentation and rollup scheduling. Zero values fall back to
// spec.md §4.3's implied defaults.
type Config struct {
	// TimeThresholdMs closes a segment when the gap since the previous
	// event exceeds it. Default 30 minutes.
	TimeThresholdMs int64
	// TokenThreshold closes a segment once its accumulated token estimate
	// exceeds it. Default 800.
	TokenThreshold int
	// MinEventsPerSegment merges under-floor segments into their
	// predecessor. Default 3.
	MinEventsPerSegment int
	// OverlapTimeMs bounds how far back into the previous segment the
	// carried-over context tail may reach. Default 5 minutes.
	OverlapTimeMs int64
	// OverlapTokens bounds the token budget of that carried-over tail.
	// Default 200.
	OverlapTokens int
	// Location is the timezone rollup periods are keyed by. Default local.
	Location *time.Location
}

func (c Config) withDefaults() Config {
	if c.TimeThresholdMs <= 0 {
		c.TimeThresholdMs = 30 * 60 * 1000
	}
	if c.TokenThreshold <= 0 {
		c.TokenThreshold = 800
	}
	if c.MinEventsPerSegment <= 0 {
		c.MinEventsPerSegment = 3
	}
	if c.OverlapTimeMs <= 0 {
		c.OverlapTimeMs = 5 * 60 * 1000
	}
	if c.OverlapTokens <= 0 {
		c.OverlapTokens = 200
	}
	if c.Location == nil {
		c.Location = time.Local
	}
	return c
}

// Segment is one candidate Segment-level node's input: its own events, plus
// a trailing slice of the previous segment's events carried along purely as
// summarizer context (spec.md §4.3's overlap_time_ms/overlap_tokens).
type Segment struct {
	Events        []*types.Event
	OverlapEvents []*types.Event
}

// Split closes Segments out of an ordered event stream using spec.md §4.3's
// three thresholds, in priority order (a) time gap, (b) token estimate,
// (c) session-boundary event type, then merges any segment under the
// MinEventsPerSegment floor into its predecessor and attaches each
// segment's overlap tail.
func Split(events []*types.Event, est *tokenestimate.Estimator, cfg Config) []Segment {
	cfg = cfg.withDefaults()
	if len(events) == 0 {
		return nil
	}

	var segments []Segment
	var current []*types.Event
	var tokenSum int

	flush := func() {
		if len(current) == 0 {
			return
		}
		segments = append(segments, Segment{Events: current})
		current = nil
		tokenSum = 0
	}

	for _, e := range events {
		if len(current) > 0 {
			prev := current[len(current)-1]
			switch {
			case e.TimestampMs-prev.TimestampMs > cfg.TimeThresholdMs:
				flush()
			case tokenSum > cfg.TokenThreshold:
				flush()
			case prev.EventType.IsSessionBoundary():
				flush()
			}
		}
		current = append(current, e)
		tokenSum += est.Count(e.Text)
	}
	flush()

	segments = mergeShortSegments(segments, cfg.MinEventsPerSegment)
	for i := 1; i < len(segments); i++ {
		segments[i].OverlapEvents = tailWithinBudget(segments[i-1].Events, cfg.OverlapTimeMs, cfg.OverlapTokens, est)
	}
	return segments
}

func mergeShortSegments(segments []Segment, minEvents int) []Segment {
	if len(segments) <= 1 {
		return segments
	}
	out := make([]Segment, 0, len(segments))
	for _, s := range segments {
		if len(out) > 0 && len(s.Events) < minEvents {
			out[len(out)-1].Events = append(out[len(out)-1].Events, s.Events...)
			continue
		}
		out = append(out, s)
	}
	if len(out) > 1 && len(out[0].Events) < minEvents {
		out[1].Events = append(out[0].Events, out[1].Events...)
		out = out[1:]
	}
	return out
}

// tailWithinBudget returns events's trailing events whose combined age and
// token estimate stay within the overlap budget, for carrying into the next
// segment's summarizer input as context.
func tailWithinBudget(events []*types.Event, timeBudgetMs int64, tokenBudget int, est *tokenestimate.Estimator) []*types.Event {
	if len(events) == 0 {
		return nil
	}
	lastTs := events[len(events)-1].TimestampMs
	var tail []*types.Event
	tokenSum := 0
	for i := len(events) - 1; i >= 0; i-- {
		e := events[i]
		if lastTs-e.TimestampMs > timeBudgetMs {
			break
		}
		tokenSum += est.Count(e.Text)
		if tokenSum > tokenBudget && len(tail) > 0 {
			break
		}
		tail = append([]*types.Event{e}, tail...)
	}
	return tail
}
