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
	"encoding/json"
	"errors"

	"github.com/kadirpekel/agent-memory/internal/types"
)

// PutEventAndOutbox atomically appends an Event and one outbox entry
// referencing it in a single transaction, per spec.md §4.1 and §4.2. If the
// event_id already exists, the write is a no-op and created is false — the
// caller (Ingest) treats this as the idempotent-duplicate path, not an error.
func (s *Store) PutEventAndOutbox(ctx context.Context, e *types.Event, kind types.OutboxKind) (created bool, err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, internalErr("put_event", err)
	}
	defer tx.Rollback()

	var exists int
	row := s.queryRow(ctx, tx, `SELECT 1 FROM events WHERE event_id = ?`, e.EventID)
	switch scanErr := row.Scan(&exists); {
	case scanErr == nil:
		return false, nil // idempotent duplicate
	case !errors.Is(scanErr, sql.ErrNoRows):
		return false, internalErr("put_event", scanErr)
	}

	metaJSON, err := json.Marshal(nonNilMap(e.Metadata))
	if err != nil {
		return false, internalErr("put_event", err)
	}

	if _, err := s.exec(ctx, tx, `INSERT INTO events
		(event_id, session_id, timestamp_ms, role, event_type, text, agent, metadata_json)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		e.EventID, e.SessionID, e.TimestampMs, string(e.Role), string(e.EventType), e.Text, e.Agent, string(metaJSON),
	); err != nil {
		return false, internalErr("put_event", err)
	}

	if _, err := s.appendOutbox(ctx, tx, kind, types.OutboxPayload{EventID: e.EventID}); err != nil {
		return false, err
	}

	if err := tx.Commit(); err != nil {
		return false, internalErr("put_event", err)
	}
	return true, nil
}

// GetEvent fetches one event by id, returning a NotFound *types.Error if
// absent.
func (s *Store) GetEvent(ctx context.Context, eventID string) (*types.Event, error) {
	row := s.queryRow(ctx, nil, `SELECT event_id, session_id, timestamp_ms, role, event_type, text, agent, metadata_json
		FROM events WHERE event_id = ?`, eventID)
	e, err := scanEvent(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, types.NewError("store", "get_event", "event not found: "+eventID, types.CodeNotFound, nil)
	}
	if err != nil {
		return nil, internalErr("get_event", err)
	}
	return e, nil
}

// ScanEventsOpts bounds a ScanEvents call.
type ScanEventsOpts struct {
	SessionID string
	FromMs    int64
	ToMs      int64 // 0 means unbounded
	Limit     int
}

// ScanEvents returns events in ascending timestamp order matching the given
// filters, used by segmentation and grip expansion.
func (s *Store) ScanEvents(ctx context.Context, opts ScanEventsOpts) ([]*types.Event, error) {
	query := `SELECT event_id, session_id, timestamp_ms, role, event_type, text, agent, metadata_json
		FROM events WHERE timestamp_ms >= ?`
	args := []any{opts.FromMs}
	if opts.ToMs > 0 {
		query += ` AND timestamp_ms < ?`
		args = append(args, opts.ToMs)
	}
	if opts.SessionID != "" {
		query += ` AND session_id = ?`
		args = append(args, opts.SessionID)
	}
	query += ` ORDER BY timestamp_ms ASC, event_id ASC`
	if opts.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, opts.Limit)
	}

	rows, err := s.query(ctx, query, args...)
	if err != nil {
		return nil, internalErr("scan_events", err)
	}
	defer rows.Close()

	var out []*types.Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, internalErr("scan_events", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, internalErr("scan_events", err)
	}
	return out, nil
}

// EventRangeBetween fetches the inclusive ordered slice of events whose IDs
// fall in [firstEventID, lastEventID], used by grip expansion.
func (s *Store) EventRangeBetween(ctx context.Context, firstEventID, lastEventID string) ([]*types.Event, error) {
	rows, err := s.query(ctx, `SELECT event_id, session_id, timestamp_ms, role, event_type, text, agent, metadata_json
		FROM events WHERE event_id >= ? AND event_id <= ? ORDER BY event_id ASC`, firstEventID, lastEventID)
	if err != nil {
		return nil, internalErr("event_range", err)
	}
	defer rows.Close()

	var out []*types.Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, internalErr("event_range", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

type scannable interface {
	Scan(dest ...any) error
}

func scanEvent(row scannable) (*types.Event, error) {
	var e types.Event
	var role, eventType, metaJSON string
	if err := row.Scan(&e.EventID, &e.SessionID, &e.TimestampMs, &role, &eventType, &e.Text, &e.Agent, &metaJSON); err != nil {
		return nil, err
	}
	e.Role = types.Role(role)
	e.EventType = types.EventType(eventType)
	if metaJSON != "" && metaJSON != "{}" {
		if err := json.Unmarshal([]byte(metaJSON), &e.Metadata); err != nil {
			return nil, err
		}
	}
	return &e, nil
}

func nonNilMap(m map[string]string) map[string]string {
	if m == nil {
		return map[string]string{}
	}
	return m
}
