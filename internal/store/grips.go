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

// PutGrip inserts a Grip and appends an outbox entry for it, atomically.
func (s *Store) PutGrip(ctx context.Context, g *types.Grip) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return internalErr("put_grip", err)
	}
	defer tx.Rollback()

	if err := s.putGripTx(ctx, tx, g); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return internalErr("put_grip", err)
	}
	return nil
}

// PutTocNodeWithGrips writes a TocNode and the Grips its bullets reference
// in a single transaction, so a segment closing never leaves a node without
// its evidence anchors (spec.md §4.3: "writes node + grips atomically with
// outbox entries"). Callers that only ever write one or the other should
// keep using PutTocNode/PutGrip directly.
func (s *Store) PutTocNodeWithGrips(ctx context.Context, n *types.TocNode, grips []*types.Grip) error {
	n.Normalize()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return internalErr("put_toc_node_with_grips", err)
	}
	defer tx.Rollback()

	if err := s.putTocNodeTx(ctx, tx, n); err != nil {
		return err
	}
	for _, g := range grips {
		if err := s.putGripTx(ctx, tx, g); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return internalErr("put_toc_node_with_grips", err)
	}
	return nil
}

func (s *Store) putGripTx(ctx context.Context, tx *sql.Tx, g *types.Grip) error {
	if _, err := s.exec(ctx, tx, `INSERT INTO grips
		(grip_id, excerpt, first_event_id, last_event_id, timestamp_ms, agent)
		VALUES (?, ?, ?, ?, ?, ?)`,
		g.GripID, g.Excerpt, g.EventRange.FirstEventID, g.EventRange.LastEventID, g.TimestampMs, g.Agent,
	); err != nil {
		return internalErr("put_grip", err)
	}
	if _, err := s.appendOutbox(ctx, tx, types.OutboxGripCreated, types.OutboxPayload{GripID: g.GripID}); err != nil {
		return err
	}
	return nil
}

// GetGrip fetches one grip by id, NotFound if absent.
func (s *Store) GetGrip(ctx context.Context, gripID string) (*types.Grip, error) {
	row := s.queryRow(ctx, nil, `SELECT grip_id, excerpt, first_event_id, last_event_id, timestamp_ms, agent
		FROM grips WHERE grip_id = ?`, gripID)
	g, err := scanGrip(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, types.NewError("store", "get_grip", "grip not found: "+gripID, types.CodeNotFound, nil)
	}
	if err != nil {
		return nil, internalErr("get_grip", err)
	}
	return g, nil
}

// GetGrips batch-fetches grips by id, skipping any that are missing (callers
// resolving a TocBullet's GripIDs tolerate partial results, since grips can
// be pruned independently of the bullets that reference them).
func (s *Store) GetGrips(ctx context.Context, gripIDs []string) ([]*types.Grip, error) {
	out := make([]*types.Grip, 0, len(gripIDs))
	for _, id := range gripIDs {
		g, err := s.GetGrip(ctx, id)
		if err != nil {
			if types.CodeOf(err) == types.CodeNotFound {
				continue
			}
			return nil, err
		}
		out = append(out, g)
	}
	return out, nil
}

func scanGrip(row scannable) (*types.Grip, error) {
	var g types.Grip
	if err := row.Scan(&g.GripID, &g.Excerpt, &g.EventRange.FirstEventID, &g.EventRange.LastEventID, &g.TimestampMs, &g.Agent); err != nil {
		return nil, err
	}
	return &g, nil
}
