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

// Package ingest validates, tags, novelty-filters, and durably persists
// incoming events (spec.md §4.2).
package ingest

import (
	"context"
	"log/slog"
	"time"

	"github.com/kadirpekel/agent-memory/internal/store"
	"github.com/kadirpekel/agent-memory/internal/types"
)

// Embedder is the narrow slice of the embedder port that novelty checking
// needs; satisfied by internal/embedder.Embedder.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// NearestNeighbor is one vector-index search hit.
type NearestNeighbor struct {
	DocID      string
	Similarity float32
}

// VectorSearcher is the narrow slice of the vector index port that novelty
// checking needs. internal/vector.Provider does not satisfy it directly (its
// Search takes vector.Filters); internal/service adapts a Provider to it.
type VectorSearcher interface {
	Search(ctx context.Context, embedding []float32, topK int, filter any) ([]NearestNeighbor, error)
	Healthy() bool
}

// NoveltyConfig configures the optional duplicate-rejection step.
type NoveltyConfig struct {
	Enabled       bool
	MinTextLength int
	Threshold     float32
	Timeout       time.Duration
}

// Result is Ingest's outcome for one event.
type Result struct {
	EventID  string
	Created  bool // false means an idempotent hit on an existing event_id
	Rejected bool // true means novelty filtering rejected this as a duplicate
}

// Pipeline is the Ingest component.
type Pipeline struct {
	Store    *store.Store
	Embedder Embedder
	Vector   VectorSearcher
	Novelty  NoveltyConfig
}

// Ingest runs the four-step algorithm from spec.md §4.2: validate, novelty
// check, atomic write, idempotent-hit reporting.
func (p *Pipeline) Ingest(ctx context.Context, e *types.Event) (Result, error) {
	if err := types.ValidateEvent(e); err != nil {
		return Result{}, err
	}

	if p.shouldCheckNovelty(e) {
		rejected, err := p.checkNovelty(ctx, e)
		if err != nil {
			// Falls open: any failure or timeout in novelty checking stores
			// the event rather than blocking ingestion (spec.md §4.2 step 2).
			slog.Warn("novelty check failed, falling open", "event_id", e.EventID, "error", err)
		} else if rejected {
			return Result{EventID: e.EventID, Rejected: true}, nil
		}
	}

	created, err := p.Store.PutEventAndOutbox(ctx, e, types.OutboxEventCreated)
	if err != nil {
		return Result{}, err
	}
	return Result{EventID: e.EventID, Created: created}, nil
}

func (p *Pipeline) shouldCheckNovelty(e *types.Event) bool {
	// Only conversational turns are novelty-checked; tool output and
	// session markers are always stored.
	if e.EventType != types.EventUserMessage && e.EventType != types.EventAssistantMsg {
		return false
	}
	return p.Novelty.Enabled && p.Embedder != nil && p.Vector != nil &&
		p.Vector.Healthy() && len(e.Text) >= p.Novelty.MinTextLength
}

func (p *Pipeline) checkNovelty(ctx context.Context, e *types.Event) (rejected bool, err error) {
	timeout := p.Novelty.Timeout
	if timeout <= 0 {
		timeout = 50 * time.Millisecond
	}
	checkCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	embedding, err := p.Embedder.Embed(checkCtx, e.Text)
	if err != nil {
		return false, err
	}
	hits, err := p.Vector.Search(checkCtx, embedding, 1, nil)
	if err != nil {
		return false, err
	}
	if len(hits) == 0 {
		return false, nil
	}
	return hits[0].Similarity >= p.Novelty.Threshold, nil
}
