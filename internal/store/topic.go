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

// PutTopic upserts a Topic by topic_id, overwriting its cluster membership,
// centroid, mentions series and importance in one row (unlike toc_nodes,
// topics are mutable — the Topic Graph's clustering pass recomputes them
// wholesale on every run rather than versioning each rollup).
func (s *Store) PutTopic(ctx context.Context, t *types.Topic) error {
	t.Normalize()
	membersJSON, err := json.Marshal(t.MemberNodeIDs)
	if err != nil {
		return internalErr("put_topic", err)
	}
	centroidJSON, err := json.Marshal(t.Centroid)
	if err != nil {
		return internalErr("put_topic", err)
	}
	mentionsJSON, err := json.Marshal(t.MentionsPerDay)
	if err != nil {
		return internalErr("put_topic", err)
	}

	cols := []string{"label", "member_node_ids_json", "centroid_json", "mentions_per_day_json",
		"importance", "created_ms", "last_mentioned_ms", "is_active"}
	query := `INSERT INTO topics
		(topic_id, label, member_node_ids_json, centroid_json, mentions_per_day_json,
		 importance, created_ms, last_mentioned_ms, is_active)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?) ` + s.dialect.upsertClause("topic_id", cols)
	if _, err := s.exec(ctx, nil, query,
		t.TopicID, t.Label, string(membersJSON), string(centroidJSON), string(mentionsJSON),
		t.Importance, t.CreatedMs, t.LastMentionedMs, t.IsActive,
	); err != nil {
		return internalErr("put_topic", err)
	}
	return nil
}

// GetTopic fetches one topic by id, including inactive (pruned) ones.
func (s *Store) GetTopic(ctx context.Context, topicID string) (*types.Topic, error) {
	row := s.queryRow(ctx, nil, topicSelect+` WHERE topic_id = ?`, topicID)
	t, err := scanTopic(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, types.NewError("store", "get_topic", "topic not found: "+topicID, types.CodeNotFound, nil)
	}
	if err != nil {
		return nil, internalErr("get_topic", err)
	}
	return t, nil
}

// ListActiveTopics returns active topics ordered by importance, descending.
func (s *Store) ListActiveTopics(ctx context.Context, limit int) ([]*types.Topic, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.query(ctx, topicSelect+` WHERE is_active = ? ORDER BY importance DESC, topic_id ASC LIMIT ?`, true, limit)
	if err != nil {
		return nil, internalErr("list_active_topics", err)
	}
	defer rows.Close()
	return scanTopics(rows)
}

// ListStaleTopics returns active topics whose last mention predates cutoffMs,
// the candidate set for the Topic Graph's prune-inactive sweep.
func (s *Store) ListStaleTopics(ctx context.Context, cutoffMs int64) ([]*types.Topic, error) {
	rows, err := s.query(ctx, topicSelect+` WHERE is_active = ? AND last_mentioned_ms < ? ORDER BY last_mentioned_ms ASC`, true, cutoffMs)
	if err != nil {
		return nil, internalErr("list_stale_topics", err)
	}
	defer rows.Close()
	return scanTopics(rows)
}

// ListInactiveTopics returns every pruned (inactive) topic, the candidate
// set for resurrection matching during a clustering pass.
func (s *Store) ListInactiveTopics(ctx context.Context) ([]*types.Topic, error) {
	rows, err := s.query(ctx, topicSelect+` WHERE is_active = ? ORDER BY last_mentioned_ms DESC`, false)
	if err != nil {
		return nil, internalErr("list_inactive_topics", err)
	}
	defer rows.Close()
	return scanTopics(rows)
}

// SetTopicActive flips a topic's active flag, used both to prune an
// inactive topic and to resurrect one a later clustering pass reassigns a
// member to.
func (s *Store) SetTopicActive(ctx context.Context, topicID string, active bool) error {
	res, err := s.exec(ctx, nil, `UPDATE topics SET is_active = ? WHERE topic_id = ?`, active, topicID)
	if err != nil {
		return internalErr("set_topic_active", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return internalErr("set_topic_active", err)
	}
	if n == 0 {
		return types.NewError("store", "set_topic_active", "topic not found: "+topicID, types.CodeNotFound, nil)
	}
	return nil
}

const topicSelect = `SELECT topic_id, label, member_node_ids_json, centroid_json, mentions_per_day_json,
	importance, created_ms, last_mentioned_ms, is_active FROM topics`

func scanTopic(row scannable) (*types.Topic, error) {
	var t types.Topic
	var membersJSON, centroidJSON, mentionsJSON string
	if err := row.Scan(&t.TopicID, &t.Label, &membersJSON, &centroidJSON, &mentionsJSON,
		&t.Importance, &t.CreatedMs, &t.LastMentionedMs, &t.IsActive); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(membersJSON), &t.MemberNodeIDs); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(centroidJSON), &t.Centroid); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(mentionsJSON), &t.MentionsPerDay); err != nil {
		return nil, err
	}
	return &t, nil
}

func scanTopics(rows *sql.Rows) ([]*types.Topic, error) {
	var out []*types.Topic
	for rows.Next() {
		t, err := scanTopic(rows)
		if err != nil {
			return nil, internalErr("scan_topic", err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, internalErr("scan_topic", err)
	}
	return out, nil
}
