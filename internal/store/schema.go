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

import "fmt"

// schemaStatements returns the CREATE TABLE/INDEX statements for every
// column family, one table per family: events, toc_nodes,
// toc_latest_by_period, grips, outbox, checkpoints, usage_counters, plus
// the topics table the Topic Graph uses.
func schemaStatements(d Dialect) []string {
	pk := d.autoIncrementPK()

	return []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS events (
	event_id VARCHAR(128) PRIMARY KEY,
	session_id VARCHAR(255) NOT NULL,
	timestamp_ms BIGINT NOT NULL,
	role VARCHAR(32) NOT NULL,
	event_type VARCHAR(32) NOT NULL,
	text TEXT NOT NULL,
	agent VARCHAR(128) NOT NULL DEFAULT '',
	metadata_json TEXT NOT NULL DEFAULT '{}'
)`),
		`CREATE INDEX IF NOT EXISTS idx_events_ts ON events(timestamp_ms)`,
		`CREATE INDEX IF NOT EXISTS idx_events_session ON events(session_id, timestamp_ms)`,

		`CREATE TABLE IF NOT EXISTS toc_nodes (
	node_id VARCHAR(255) PRIMARY KEY,
	level VARCHAR(16) NOT NULL,
	parent_id VARCHAR(255) NOT NULL DEFAULT '',
	start_ms BIGINT NOT NULL,
	end_ms BIGINT NOT NULL,
	first_event_id VARCHAR(128) NOT NULL DEFAULT '',
	last_event_id VARCHAR(128) NOT NULL DEFAULT '',
	title TEXT NOT NULL DEFAULT '',
	summary TEXT NOT NULL DEFAULT '',
	bullets_json TEXT NOT NULL DEFAULT '[]',
	contributing_agents_json TEXT NOT NULL DEFAULT '[]',
	salience_score REAL NOT NULL DEFAULT 0.5,
	memory_kind VARCHAR(32) NOT NULL DEFAULT 'observation',
	is_pinned BOOLEAN NOT NULL DEFAULT 0,
	version INT NOT NULL DEFAULT 1
)`,
		`CREATE INDEX IF NOT EXISTS idx_toc_parent ON toc_nodes(parent_id)`,
		`CREATE INDEX IF NOT EXISTS idx_toc_level_start ON toc_nodes(level, start_ms)`,

		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS toc_latest_by_period (
	period_id VARCHAR(255) PRIMARY KEY,
	node_id VARCHAR(255) NOT NULL
)`),

		`CREATE TABLE IF NOT EXISTS grips (
	grip_id VARCHAR(255) PRIMARY KEY,
	excerpt TEXT NOT NULL,
	first_event_id VARCHAR(128) NOT NULL,
	last_event_id VARCHAR(128) NOT NULL,
	timestamp_ms BIGINT NOT NULL,
	agent VARCHAR(128) NOT NULL DEFAULT ''
)`,
		`CREATE INDEX IF NOT EXISTS idx_grips_ts ON grips(timestamp_ms)`,

		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS outbox (
	sequence %s,
	kind VARCHAR(32) NOT NULL,
	event_id VARCHAR(128) NOT NULL DEFAULT '',
	node_id VARCHAR(255) NOT NULL DEFAULT '',
	grip_id VARCHAR(255) NOT NULL DEFAULT '',
	level VARCHAR(16) NOT NULL DEFAULT ''
)`, pk),

		`CREATE TABLE IF NOT EXISTS checkpoints (
	name VARCHAR(128) PRIMARY KEY,
	last_sequence BIGINT NOT NULL DEFAULT 0
)`,

		`CREATE TABLE IF NOT EXISTS usage_counters (
	doc_id VARCHAR(255) PRIMARY KEY,
	access_count INT NOT NULL DEFAULT 0,
	last_accessed_ms BIGINT NOT NULL DEFAULT 0
)`,

		`CREATE TABLE IF NOT EXISTS topics (
	topic_id VARCHAR(255) PRIMARY KEY,
	label TEXT NOT NULL DEFAULT '',
	member_node_ids_json TEXT NOT NULL DEFAULT '[]',
	centroid_json TEXT NOT NULL DEFAULT '[]',
	mentions_per_day_json TEXT NOT NULL DEFAULT '{}',
	importance REAL NOT NULL DEFAULT 0,
	created_ms BIGINT NOT NULL DEFAULT 0,
	last_mentioned_ms BIGINT NOT NULL DEFAULT 0,
	is_active BOOLEAN NOT NULL DEFAULT 1
)`,
		`CREATE INDEX IF NOT EXISTS idx_topics_active ON topics(is_active, last_mentioned_ms)`,
	}
}
