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

// Package outbox drains the Store's append-only outbox into the keyword,
// vector, and topic layers: one cooperatively-scheduled consumer per
// layer, each reading strictly in sequence order from its own checkpoint
// and parking itself (Stalled) on repeated failure (spec.md §4.9).
package outbox

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/kadirpekel/agent-memory/internal/store"
	"github.com/kadirpekel/agent-memory/internal/types"
)

// State is a Consumer's run state.
type State string

const (
	StateIdle    State = "idle"
	StateRunning State = "running"
	StateStalled State = "stalled"
)

// Dispatch applies one outbox entry to a downstream layer (index
// upsert/delete, topic recluster request). Implementations must be
// idempotent: the same entry may be redelivered after a crash.
type Dispatch func(ctx context.Context, entry types.OutboxEntry) error

// Consumer drains one named checkpoint's backlog, strictly in sequence
// order, applying Dispatch and persisting its checkpoint after each batch.
type Consumer struct {
	Name          string
	Store         *store.Store
	Dispatch      Dispatch
	BatchSize     int
	MaxRetries    int
	BaseBackoff   time.Duration
	StallAfter    int // consecutive failed batches before parking as Stalled

	mu            sync.Mutex
	state         State
	consecFailure int
	lastError     string
}

// New builds a Consumer with defaults filled in.
func New(name string, s *store.Store, dispatch Dispatch) *Consumer {
	return &Consumer{
		Name: name, Store: s, Dispatch: dispatch,
		BatchSize: 100, MaxRetries: 3, BaseBackoff: 500 * time.Millisecond, StallAfter: 5,
		state: StateIdle,
	}
}

// State reports the consumer's current run state.
func (c *Consumer) State() (State, string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state, c.lastError
}

// RunOnce drains up to one batch of outbox entries after the
// consumer's checkpoint, applying Dispatch to each in strict sequence
// order, then advances the checkpoint past the batch. If the consumer is
// currently Stalled, RunOnce is a no-op that returns nil.
func (c *Consumer) RunOnce(ctx context.Context) error {
	c.mu.Lock()
	if c.state == StateStalled {
		c.mu.Unlock()
		return nil
	}
	c.state = StateRunning
	c.mu.Unlock()

	err := c.drainBatch(ctx)

	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil {
		c.consecFailure++
		c.lastError = err.Error()
		slog.Error("outbox consumer batch failed", "consumer", c.Name, "error", err, "consecutive_failures", c.consecFailure)
		if c.consecFailure >= c.StallAfter {
			c.state = StateStalled
			slog.Error("outbox consumer parked as stalled", "consumer", c.Name)
			return err
		}
		c.state = StateIdle
		return err
	}
	c.consecFailure = 0
	c.lastError = ""
	c.state = StateIdle
	return nil
}

func (c *Consumer) drainBatch(ctx context.Context) error {
	cp, err := c.Store.GetCheckpoint(ctx, c.Name)
	if err != nil {
		return err
	}

	entries, err := c.Store.ReadOutbox(ctx, cp.LastSequence, c.BatchSize)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		return nil
	}

	for _, entry := range entries {
		if err := c.dispatchWithRetry(ctx, entry); err != nil {
			return err
		}
	}

	last := entries[len(entries)-1].Sequence
	return c.Store.SetCheckpoint(ctx, c.Name, last)
}

func (c *Consumer) dispatchWithRetry(ctx context.Context, entry types.OutboxEntry) error {
	backoff := c.BaseBackoff
	var lastErr error
	for attempt := 0; attempt < c.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
			backoff *= 2
		}
		if err := c.Dispatch(ctx, entry); err == nil {
			return nil
		} else {
			lastErr = err
		}
	}
	return lastErr
}

// GC deletes outbox entries that every registered consumer has already
// checkpointed past (spec.md §4.9's garbage-collection pass, run by the
// scheduler).
func GC(ctx context.Context, s *store.Store) (int64, error) {
	minSeq, err := s.MinCheckpointSequence(ctx)
	if err != nil {
		return 0, err
	}
	return s.DeleteOutboxUpTo(ctx, minSeq)
}
