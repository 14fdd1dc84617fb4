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

// PutTocNode inserts a new TocNode (versioned rollups are never overwritten,
// only superseded — spec.md §4.3) and advances toc_latest_by_period to point
// at it, then appends an outbox entry so downstream indices pick it up.
func (s *Store) PutTocNode(ctx context.Context, n *types.TocNode) error {
	n.Normalize()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return internalErr("put_toc_node", err)
	}
	defer tx.Rollback()

	if err := s.putTocNodeTx(ctx, tx, n); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return internalErr("put_toc_node", err)
	}
	return nil
}

func (s *Store) putTocNodeTx(ctx context.Context, tx *sql.Tx, n *types.TocNode) error {
	n.Normalize()
	bulletsJSON, err := json.Marshal(n.Bullets)
	if err != nil {
		return internalErr("put_toc_node", err)
	}
	agentsJSON, err := json.Marshal(types.SortedUniqueAgents(n.ContributingAgents))
	if err != nil {
		return internalErr("put_toc_node", err)
	}
	var firstEventID, lastEventID string
	if n.EventRange != nil {
		firstEventID, lastEventID = n.EventRange.FirstEventID, n.EventRange.LastEventID
	}

	if _, err := s.exec(ctx, tx, `INSERT INTO toc_nodes
		(node_id, level, parent_id, start_ms, end_ms, first_event_id, last_event_id,
		 title, summary, bullets_json, contributing_agents_json, salience_score,
		 memory_kind, is_pinned, version)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		n.NodeID, string(n.Level), n.ParentID, n.TimeRange.StartMs, n.TimeRange.EndMs,
		firstEventID, lastEventID, n.Title, n.Summary, string(bulletsJSON), string(agentsJSON),
		n.SalienceScore, string(n.MemoryKind), n.IsPinned, n.Version,
	); err != nil {
		return internalErr("put_toc_node", err)
	}

	periodID := types.PeriodNodeID(n.Level, periodKeyOf(n))
	query := `INSERT INTO toc_latest_by_period (period_id, node_id) VALUES (?, ?) ` +
		s.dialect.upsertClause("period_id", []string{"node_id"})
	if _, err := s.exec(ctx, tx, query, periodID, n.NodeID); err != nil {
		return internalErr("put_toc_node", err)
	}

	if _, err := s.appendOutbox(ctx, tx, types.OutboxTocNodeCreated, types.OutboxPayload{NodeID: n.NodeID, Level: n.Level}); err != nil {
		return err
	}
	return nil
}

// periodKeyOf recovers the period id a node was filed under from its
// canonical (version-stripped) node id — callers that already know the
// period (the TOC builder) should prefer passing it explicitly; this is a
// fallback derivation for callers reconstructing from a bare TocNode.
func periodKeyOf(n *types.TocNode) string {
	full := n.NodeID
	// strip any "#vN" suffix and the "toc:<level>:" prefix
	if i := indexByte(full, '#'); i >= 0 {
		full = full[:i]
	}
	prefix := "toc:" + string(n.Level) + ":"
	if len(full) > len(prefix) && full[:len(prefix)] == prefix {
		return full[len(prefix):]
	}
	return full
}

func indexByte(s string, b byte) int {
	for i := 0; i < len(s); i++ {
		if s[i] == b {
			return i
		}
	}
	return -1
}

// GetTocNode fetches one node by its exact (possibly versioned) node id.
func (s *Store) GetTocNode(ctx context.Context, nodeID string) (*types.TocNode, error) {
	row := s.queryRow(ctx, nil, tocNodeSelect+` WHERE node_id = ?`, nodeID)
	n, err := scanTocNode(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, types.NewError("store", "get_toc_node", "node not found: "+nodeID, types.CodeNotFound, nil)
	}
	if err != nil {
		return nil, internalErr("get_toc_node", err)
	}
	return n, nil
}

// GetLatestTocNodeForPeriod resolves the current (highest-version) rollup
// for a level+period, or NotFound if that period has never been rolled up.
func (s *Store) GetLatestTocNodeForPeriod(ctx context.Context, level types.TocLevel, periodID string) (*types.TocNode, error) {
	var nodeID string
	row := s.queryRow(ctx, nil, `SELECT node_id FROM toc_latest_by_period WHERE period_id = ?`, types.PeriodNodeID(level, periodID))
	if err := row.Scan(&nodeID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, types.NewError("store", "get_latest_toc_node", "no rollup for period: "+periodID, types.CodeNotFound, nil)
		}
		return nil, internalErr("get_latest_toc_node", err)
	}
	return s.GetTocNode(ctx, nodeID)
}

// BrowseChildren lists the child nodes of parentID in time order, paginated
// by a start_ms-based page token (the empty string requests the first page).
func (s *Store) BrowseChildren(ctx context.Context, parentID string, pageToken string, pageSize int) ([]*types.TocNode, string, error) {
	if pageSize <= 0 {
		pageSize = 50
	}
	afterMs := int64(0)
	if pageToken != "" {
		decoded, err := decodePageToken(pageToken)
		if err != nil {
			return nil, "", types.NewError("store", "browse_children", "invalid page token", types.CodeInvalidArgument, err)
		}
		afterMs = decoded
	}

	rows, err := s.query(ctx, tocNodeSelect+` WHERE parent_id = ? AND start_ms >= ? ORDER BY start_ms ASC, node_id ASC LIMIT ?`,
		parentID, afterMs, pageSize+1)
	if err != nil {
		return nil, "", internalErr("browse_children", err)
	}
	defer rows.Close()

	var out []*types.TocNode
	for rows.Next() {
		n, err := scanTocNode(rows)
		if err != nil {
			return nil, "", internalErr("browse_children", err)
		}
		out = append(out, n)
	}
	if err := rows.Err(); err != nil {
		return nil, "", internalErr("browse_children", err)
	}

	var next string
	if len(out) > pageSize {
		next = encodePageToken(out[pageSize].TimeRange.StartMs)
		out = out[:pageSize]
	}
	return out, next, nil
}

const tocNodeSelect = `SELECT node_id, level, parent_id, start_ms, end_ms, first_event_id, last_event_id,
	title, summary, bullets_json, contributing_agents_json, salience_score, memory_kind, is_pinned, version
	FROM toc_nodes`

func scanTocNode(row scannable) (*types.TocNode, error) {
	var n types.TocNode
	var level, memoryKind, firstEventID, lastEventID, bulletsJSON, agentsJSON string
	if err := row.Scan(&n.NodeID, &level, &n.ParentID, &n.TimeRange.StartMs, &n.TimeRange.EndMs,
		&firstEventID, &lastEventID, &n.Title, &n.Summary, &bulletsJSON, &agentsJSON,
		&n.SalienceScore, &memoryKind, &n.IsPinned, &n.Version); err != nil {
		return nil, err
	}
	n.Level = types.TocLevel(level)
	n.MemoryKind = types.MemoryKind(memoryKind)
	if firstEventID != "" || lastEventID != "" {
		n.EventRange = &types.EventRange{FirstEventID: firstEventID, LastEventID: lastEventID}
	}
	if err := json.Unmarshal([]byte(bulletsJSON), &n.Bullets); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(agentsJSON), &n.ContributingAgents); err != nil {
		return nil, err
	}
	return &n, nil
}
