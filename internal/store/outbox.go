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

package store

import (
	"context"
	"database/sql"
	"errors"

	"github.com/kadirpekel/agent-memory/internal/types"
)

// appendOutbox inserts one outbox row inside the caller's transaction and
// returns the assigned sequence number. Sequence is the table's
// auto-increment primary key, which gives a strictly increasing, gap-free-on
// single-writer ordering that per-consumer checkpoints can track.
func (s *Store) appendOutbox(ctx context.Context, tx *sql.Tx, kind types.OutboxKind, p types.OutboxPayload) (uint64, error) {
	res, err := s.exec(ctx, tx, `INSERT INTO outbox (kind, event_id, node_id, grip_id, level) VALUES (?, ?, ?, ?, ?)`,
		string(kind), p.EventID, p.NodeID, p.GripID, string(p.Level))
	if err != nil {
		return 0, internalErr("append_outbox", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, internalErr("append_outbox", err)
	}
	return uint64(id), nil
}

// AppendOutboxEntry appends a standalone outbox entry outside of an event or
// TOC-node write, used for grip-created/pruned notifications.
func (s *Store) AppendOutboxEntry(ctx context.Context, kind types.OutboxKind, p types.OutboxPayload) (uint64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, internalErr("append_outbox", err)
	}
	defer tx.Rollback()
	seq, err := s.appendOutbox(ctx, tx, kind, p)
	if err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, internalErr("append_outbox", err)
	}
	return seq, nil
}

// ReadOutbox returns up to limit entries with sequence > afterSeq, in
// ascending order, for one consumer to process.
func (s *Store) ReadOutbox(ctx context.Context, afterSeq uint64, limit int) ([]types.OutboxEntry, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.query(ctx, `SELECT sequence, kind, event_id, node_id, grip_id, level FROM outbox
		WHERE sequence > ? ORDER BY sequence ASC LIMIT ?`, afterSeq, limit)
	if err != nil {
		return nil, internalErr("read_outbox", err)
	}
	defer rows.Close()

	var out []types.OutboxEntry
	for rows.Next() {
		var e types.OutboxEntry
		var kind, level string
		if err := rows.Scan(&e.Sequence, &kind, &e.Payload.EventID, &e.Payload.NodeID, &e.Payload.GripID, &level); err != nil {
			return nil, internalErr("read_outbox", err)
		}
		e.Kind = types.OutboxKind(kind)
		e.Payload.Level = types.TocLevel(level)
		out = append(out, e)
	}
	return out, rows.Err()
}

// DeleteOutboxUpTo removes outbox rows with sequence <= seq for garbage
// collection once every checkpoint has advanced past it (spec.md §4.1).
func (s *Store) DeleteOutboxUpTo(ctx context.Context, seq uint64) (int64, error) {
	res, err := s.exec(ctx, nil, `DELETE FROM outbox WHERE sequence <= ?`, seq)
	if err != nil {
		return 0, internalErr("gc_outbox", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, internalErr("gc_outbox", err)
	}
	return n, nil
}

// MinCheckpointSequence returns the lowest last_sequence across all known
// checkpoints, the GC boundary below which every consumer has already
// caught up. Returns 0 (meaning "nothing is safe to delete") if no
// checkpoint has been recorded yet.
func (s *Store) MinCheckpointSequence(ctx context.Context) (uint64, error) {
	var min sql.NullInt64
	if err := s.queryRow(ctx, nil, `SELECT MIN(last_sequence) FROM checkpoints`).Scan(&min); err != nil {
		return 0, internalErr("min_checkpoint", err)
	}
	if !min.Valid {
		return 0, nil
	}
	return uint64(min.Int64), nil
}

// SetCheckpoint upserts a named consumer's progress marker.
func (s *Store) SetCheckpoint(ctx context.Context, name string, lastSequence uint64) error {
	query := `INSERT INTO checkpoints (name, last_sequence) VALUES (?, ?) ` +
		s.dialect.upsertClause("name", []string{"last_sequence"})
	_, err := s.exec(ctx, nil, query, name, lastSequence)
	if err != nil {
		return internalErr("set_checkpoint", err)
	}
	return nil
}

// GetCheckpoint returns a named consumer's progress marker, or
// last_sequence=0 if the consumer has never checkpointed.
func (s *Store) GetCheckpoint(ctx context.Context, name string) (types.Checkpoint, error) {
	cp := types.Checkpoint{Name: name}
	row := s.queryRow(ctx, nil, `SELECT last_sequence FROM checkpoints WHERE name = ?`, name)
	switch err := row.Scan(&cp.LastSequence); {
	case err == nil, errors.Is(err, sql.ErrNoRows):
		return cp, nil
	default:
		return cp, internalErr("get_checkpoint", err)
	}
}

// IncrementUsageCounter bumps a document's access count and last-accessed
// timestamp with last-writer-wins semantics (spec.md §3); failures are
// non-fatal to the caller (best effort, per DESIGN.md's Open Question
// decision).
func (s *Store) IncrementUsageCounter(ctx context.Context, docID string, accessedAtMs int64) error {
	query := `INSERT INTO usage_counters (doc_id, access_count, last_accessed_ms) VALUES (?, 1, ?) `
	if s.dialect == DialectMySQL {
		query += `ON DUPLICATE KEY UPDATE access_count = access_count + 1, last_accessed_ms = VALUES(last_accessed_ms)`
	} else {
		query += `ON CONFLICT(doc_id) DO UPDATE SET access_count = access_count + 1, last_accessed_ms = excluded.last_accessed_ms`
	}
	_, err := s.exec(ctx, nil, query, docID, accessedAtMs)
	if err != nil {
		return internalErr("increment_usage", err)
	}
	return nil
}

// GetUsageCounter reads a document's current usage stats, returning a
// zero-value counter (never an error) if none has been recorded.
func (s *Store) GetUsageCounter(ctx context.Context, docID string) (types.UsageCounter, error) {
	uc := types.UsageCounter{DocID: docID}
	row := s.queryRow(ctx, nil, `SELECT access_count, last_accessed_ms FROM usage_counters WHERE doc_id = ?`, docID)
	switch err := row.Scan(&uc.AccessCount, &uc.LastAccessedMs); {
	case err == nil, errors.Is(err, sql.ErrNoRows):
		return uc, nil
	default:
		return uc, internalErr("get_usage", err)
	}
}
