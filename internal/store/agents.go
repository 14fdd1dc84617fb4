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

import "context"

// AgentInfo summarizes one agent's footprint in the event stream, per
// spec.md §6's GetAgents operation.
type AgentInfo struct {
	Agent          string
	EventCount     int64
	FirstSeenMs    int64
	LastSeenMs     int64
}

// ListAgents returns every distinct non-empty agent that has ingested at
// least one event, along with its event count and first/last activity.
func (s *Store) ListAgents(ctx context.Context) ([]AgentInfo, error) {
	rows, err := s.query(ctx, `SELECT agent, COUNT(*), MIN(timestamp_ms), MAX(timestamp_ms)
		FROM events WHERE agent != '' GROUP BY agent ORDER BY agent ASC`)
	if err != nil {
		return nil, internalErr("list_agents", err)
	}
	defer rows.Close()

	var out []AgentInfo
	for rows.Next() {
		var a AgentInfo
		if err := rows.Scan(&a.Agent, &a.EventCount, &a.FirstSeenMs, &a.LastSeenMs); err != nil {
			return nil, internalErr("list_agents", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// AgentActivityBucket is one time bucket's per-agent event count.
type AgentActivityBucket struct {
	BucketStartMs int64
	Agent         string
	EventCount    int64
}

// AgentActivity buckets event counts per agent between fromMs and toMs into
// fixed-width windows of bucketMs, for activity-over-time displays (spec.md
// §6's GetAgentActivity operation). Buckets with no events are omitted.
func (s *Store) AgentActivity(ctx context.Context, fromMs, toMs, bucketMs int64) ([]AgentActivityBucket, error) {
	if bucketMs <= 0 {
		bucketMs = 86_400_000 // 1 day
	}
	rows, err := s.query(ctx, `SELECT (timestamp_ms / ?) * ?, agent, COUNT(*)
		FROM events WHERE timestamp_ms >= ? AND timestamp_ms < ? AND agent != ''
		GROUP BY (timestamp_ms / ?), agent
		ORDER BY 1 ASC, agent ASC`, bucketMs, bucketMs, fromMs, toMs, bucketMs)
	if err != nil {
		return nil, internalErr("agent_activity", err)
	}
	defer rows.Close()

	var out []AgentActivityBucket
	for rows.Next() {
		var b AgentActivityBucket
		if err := rows.Scan(&b.BucketStartMs, &b.Agent, &b.EventCount); err != nil {
			return nil, internalErr("agent_activity", err)
		}
		out = append(out, b)
	}
	return out, rows.Err()
}
