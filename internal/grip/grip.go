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

// Package grip creates evidence anchors for TOC bullets and expands them
// back into their surrounding raw events (spec.md §4.4).
package grip

import (
	"context"

	"github.com/kadirpekel/agent-memory/internal/store"
	"github.com/kadirpekel/agent-memory/internal/types"
)

// Service creates and expands Grips.
type Service struct {
	Store *store.Store
}

// New builds a Grip anchored to excerpt, drawn from the inclusive event
// range [firstEventID, lastEventID].
func New(excerpt string, eventRange types.EventRange, timestampMs int64, agent string) *types.Grip {
	return &types.Grip{
		GripID:      types.NewGripID(timestampMs),
		Excerpt:     excerpt,
		EventRange:  eventRange,
		TimestampMs: timestampMs,
		Agent:       agent,
	}
}

// ExpansionResult is the outcome of ExpandGrip.
type ExpansionResult struct {
	Excerpt    string
	Events     []*types.Event
	StopReason string // "" normally; "boundary_clipped" when a window edge hit the session boundary
}

// ExpandGrip returns the events a grip anchors plus up to `before` preceding
// and `after` following events from the same session, in chronological
// order. Windows that would extend past the session's event stream are
// clipped, not errored.
func (s *Service) ExpandGrip(ctx context.Context, gripID string, before, after int) (*ExpansionResult, error) {
	if before < 0 || after < 0 {
		return nil, types.NewError("grip", "expand", "before/after must be non-negative", types.CodeInvalidArgument, nil)
	}

	g, err := s.Store.GetGrip(ctx, gripID)
	if err != nil {
		return nil, err
	}

	firstCovered, err := s.Store.GetEvent(ctx, g.EventRange.FirstEventID)
	if err != nil {
		return nil, err
	}

	sessionEvents, err := s.Store.ScanEvents(ctx, store.ScanEventsOpts{SessionID: firstCovered.SessionID})
	if err != nil {
		return nil, err
	}

	firstIdx, lastIdx := indexOf(sessionEvents, g.EventRange.FirstEventID), indexOf(sessionEvents, g.EventRange.LastEventID)
	if firstIdx < 0 || lastIdx < 0 {
		return nil, types.NewError("grip", "expand", "grip's covered events not found in session stream", types.CodeNotFound, nil)
	}

	startIdx := firstIdx - before
	clipped := startIdx < 0
	if startIdx < 0 {
		startIdx = 0
	}
	endIdx := lastIdx + after
	if endIdx >= len(sessionEvents) {
		endIdx = len(sessionEvents) - 1
		clipped = true
	}

	res := &ExpansionResult{Excerpt: g.Excerpt, Events: sessionEvents[startIdx : endIdx+1]}
	if clipped {
		res.StopReason = "boundary_clipped"
	}
	return res, nil
}

func indexOf(events []*types.Event, eventID string) int {
	for i, e := range events {
		if e.EventID == eventID {
			return i
		}
	}
	return -1
}
