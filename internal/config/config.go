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

// Package config loads the daemon's layered configuration: built-in
// defaults, one configuration file, environment variables prefixed MEMORY_,
// and runtime flags, in increasing precedence order. Only the single file
// passed to LoadConfig is read; separate user-level and project-level files
// are not looked up or merged. It mirrors the teacher's file/env/mapstructure pipeline,
// generalized to this daemon's option set.
package config

import (
	"fmt"
	"time"
)

// CoreConfig is the daemon's top-level identity and storage settings.
type CoreConfig struct {
	DBPath   string `yaml:"db_path"`
	Port     int    `yaml:"port"`
	Host     string `yaml:"host"`
	LogLevel string `yaml:"log_level"`
}

// SummarizerConfig selects and configures the Summariser port implementation.
type SummarizerConfig struct {
	Provider   string `yaml:"provider"` // "mock", "http", or "plugin"
	Model      string `yaml:"model"`
	APIKey     string `yaml:"api_key"`
	APIBaseURL string `yaml:"api_base_url"`
	PluginPath string `yaml:"plugin_path"`
}

// SegmentationConfig is the TOC Builder's segment-closing thresholds
// (spec.md §4.3), decoded directly into toc.Config by the caller that wires
// the Builder.
type SegmentationConfig struct {
	TimeThresholdMs     int64 `yaml:"time_threshold_ms"`
	TokenThreshold      int   `yaml:"token_threshold"`
	OverlapTimeMs       int64 `yaml:"overlap_time_ms"`
	OverlapTokens       int   `yaml:"overlap_tokens"`
	MinEventsPerSegment int   `yaml:"min_events_per_segment"`
}

// NoveltyConfig configures Ingest's optional duplicate-rejection step.
type NoveltyConfig struct {
	Enabled       bool          `yaml:"enabled"`
	Threshold     float32       `yaml:"threshold"`
	TimeoutMs     int           `yaml:"timeout_ms"`
	MinTextLength int           `yaml:"min_text_length"`
	Timeout       time.Duration `yaml:"-"`
}

// RetentionConfig is the per-level retention window a lifecycle (vector or
// keyword) prunes against. Month and Year are deliberately absent: spec.md
// §6 hard-codes them to infinite retention, never pruned.
type RetentionConfig struct {
	SegmentDays int `yaml:"segment_days"`
	GripDays    int `yaml:"grip_days"`
	DayDays     int `yaml:"day_days"`
	WeekDays    int `yaml:"week_days"`
}

// IndexLifecycleConfig toggles and tunes a retrieval layer's prune lifecycle.
// Enabled is a pointer because the vector layer's spec.md default is true
// and the keyword layer's is false: a nil value means "use that layer's
// own default", distinguishing it from an explicit false in the file.
type IndexLifecycleConfig struct {
	Enabled   *bool           `yaml:"enabled"`
	Retention RetentionConfig `yaml:"retention"`
}

func (c IndexLifecycleConfig) enabledOr(def bool) bool {
	if c.Enabled == nil {
		return def
	}
	return *c.Enabled
}

// ChromemBackendConfig configures the chromem-go embedded vector backend.
type ChromemBackendConfig struct {
	PersistPath string `yaml:"persist_path"`
	Compress    bool   `yaml:"compress"`
}

// QdrantBackendConfig configures the Qdrant vector backend.
type QdrantBackendConfig struct {
	Host           string `yaml:"host"`
	Port           int    `yaml:"port"`
	APIKey         string `yaml:"api_key"`
	UseTLS         bool   `yaml:"use_tls"`
	CollectionName string `yaml:"collection_name"`
	VectorSize     uint64 `yaml:"vector_size"`
}

// PineconeBackendConfig configures the Pinecone vector backend.
type PineconeBackendConfig struct {
	APIKey    string `yaml:"api_key"`
	Host      string `yaml:"host"`
	IndexName string `yaml:"index_name"`
}

// VectorConfig is the vector layer's full configuration: its prune
// lifecycle (shared shape with the keyword layer) plus the backend
// selector spec.md §4.6 describes, picked by name the same way the
// Embedder and Summarizer ports select a provider.
type VectorConfig struct {
	// mapstructure recognizes "squash" (not yaml.v3's own "inline") as the
	// tag option that flattens an embedded struct's fields, even though
	// decodeConfig's mapstructure.DecoderConfig.TagName is "yaml".
	IndexLifecycleConfig `yaml:",squash"`

	// Backend selects the concrete vector index: "hnsw" (default,
	// in-process), "chromem", "qdrant", or "pinecone".
	Backend  string                `yaml:"backend"`
	Chromem  ChromemBackendConfig  `yaml:"chromem"`
	Qdrant   QdrantBackendConfig   `yaml:"qdrant"`
	Pinecone PineconeBackendConfig `yaml:"pinecone"`
}

// SchedulerConfig is the in-process cron scheduler's ambient settings
// (spec.md §4.11). Per-job cron expressions are looked up by job name.
type SchedulerConfig struct {
	DefaultTimezone     string            `yaml:"default_timezone"`
	ShutdownTimeoutSecs int               `yaml:"shutdown_timeout_secs"`
	Jobs                map[string]string `yaml:"jobs"`
}

// TopicsConfig configures the optional Topic Graph (spec.md §4.7).
type TopicsConfig struct {
	Enabled          bool    `yaml:"enabled"`
	ExtractionCron   string  `yaml:"extraction_cron"`
	MinClusterSize   int     `yaml:"min_cluster_size"`
	SimilarityThresh float64 `yaml:"similarity_threshold"`
	HalfLifeDays     float64 `yaml:"importance_half_life_days"`
	RecencyBoost     float64 `yaml:"recency_boost"`
}

// SalienceRankingConfig tunes the router's salience-weighted rank modifier.
// Enabled defaults to true (spec.md §6); see IndexLifecycleConfig.Enabled
// for why this is a pointer.
type SalienceRankingConfig struct {
	Enabled *bool   `yaml:"enabled"`
	Weight  float64 `yaml:"weight"`
}

func (c SalienceRankingConfig) enabledOr(def bool) bool {
	if c.Enabled == nil {
		return def
	}
	return *c.Enabled
}

// UsageDecayRankingConfig tunes the router's usage-penalty rank modifier.
type UsageDecayRankingConfig struct {
	Enabled bool    `yaml:"enabled"`
	Decay   float64 `yaml:"decay"`
}

// RankingConfig configures the Retrieval Router's ranking modifiers
// (spec.md §4.8, §4.10).
type RankingConfig struct {
	Salience   SalienceRankingConfig   `yaml:"salience"`
	UsageDecay UsageDecayRankingConfig `yaml:"usage_decay"`
}

// Config is the daemon's complete option set.
type Config struct {
	Core         CoreConfig           `yaml:"core"`
	Summarizer   SummarizerConfig     `yaml:"summarizer"`
	Embedder     SummarizerConfig     `yaml:"embedder"` // same provider/model/api_key/api_base_url shape
	Segmentation SegmentationConfig   `yaml:"segmentation"`
	Novelty      NoveltyConfig        `yaml:"novelty"`
	Vector       VectorConfig         `yaml:"vector"`
	Keyword      IndexLifecycleConfig `yaml:"keyword"`
	Scheduler    SchedulerConfig      `yaml:"scheduler"`
	Topics       TopicsConfig         `yaml:"topics"`
	Ranking      RankingConfig        `yaml:"ranking"`

	// Provider names the config source backend: "file" (the value
	// SetDefaults sets), "consul", or "etcd". The file never sets it
	// (yaml:"-"), and no flag or environment variable sets it either.
	Provider string `yaml:"-"`
}

// SetDefaults fills every option spec.md §6 lists a default for. Called
// after parsing and env-expansion, before Validate, so a partial file or
// empty environment still yields a fully-specified Config.
func (c *Config) SetDefaults() {
	if c.Core.DBPath == "" {
		c.Core.DBPath = "./agent-memory.db"
	}
	if c.Core.Port == 0 {
		c.Core.Port = 8765
	}
	if c.Core.Host == "" {
		c.Core.Host = "127.0.0.1"
	}
	if c.Core.LogLevel == "" {
		c.Core.LogLevel = "info"
	}
	if c.Summarizer.Provider == "" {
		c.Summarizer.Provider = "mock"
	}
	if c.Embedder.Provider == "" {
		c.Embedder.Provider = "mock"
	}

	if c.Segmentation.TimeThresholdMs == 0 {
		c.Segmentation.TimeThresholdMs = 1_800_000
	}
	if c.Segmentation.TokenThreshold == 0 {
		c.Segmentation.TokenThreshold = 4000
	}
	if c.Segmentation.OverlapTimeMs == 0 {
		c.Segmentation.OverlapTimeMs = 300_000
	}
	if c.Segmentation.OverlapTokens == 0 {
		c.Segmentation.OverlapTokens = 500
	}
	if c.Segmentation.MinEventsPerSegment == 0 {
		c.Segmentation.MinEventsPerSegment = 2
	}

	if c.Novelty.Threshold == 0 {
		c.Novelty.Threshold = 0.82
	}
	if c.Novelty.TimeoutMs == 0 {
		c.Novelty.TimeoutMs = 50
	}
	if c.Novelty.MinTextLength == 0 {
		c.Novelty.MinTextLength = 50
	}
	c.Novelty.Timeout = time.Duration(c.Novelty.TimeoutMs) * time.Millisecond

	// Vector lifecycle defaults to enabled; keyword defaults to disabled
	// (spec.md §6).
	vectorEnabled := c.Vector.enabledOr(true)
	c.Vector.Enabled = &vectorEnabled
	keywordEnabled := c.Keyword.enabledOr(false)
	c.Keyword.Enabled = &keywordEnabled
	c.Vector.Retention = withRetentionDefaults(c.Vector.Retention)
	c.Keyword.Retention = withRetentionDefaults(c.Keyword.Retention)
	if c.Vector.Backend == "" {
		c.Vector.Backend = "hnsw"
	}

	if c.Scheduler.DefaultTimezone == "" {
		c.Scheduler.DefaultTimezone = "UTC"
	}
	if c.Scheduler.ShutdownTimeoutSecs == 0 {
		c.Scheduler.ShutdownTimeoutSecs = 30
	}
	if c.Scheduler.Jobs == nil {
		c.Scheduler.Jobs = map[string]string{}
	}

	if c.Topics.MinClusterSize == 0 {
		c.Topics.MinClusterSize = 3
	}
	if c.Topics.SimilarityThresh == 0 {
		c.Topics.SimilarityThresh = 0.75
	}
	if c.Topics.HalfLifeDays == 0 {
		c.Topics.HalfLifeDays = 30
	}
	if c.Topics.RecencyBoost == 0 {
		c.Topics.RecencyBoost = 2.0
	}

	salienceEnabled := c.Ranking.Salience.enabledOr(true)
	c.Ranking.Salience.Enabled = &salienceEnabled
	if c.Ranking.Salience.Weight == 0 {
		c.Ranking.Salience.Weight = 0.45
	}
	if c.Ranking.UsageDecay.Decay == 0 {
		c.Ranking.UsageDecay.Decay = 0.15
	}

	if c.Provider == "" {
		c.Provider = "file"
	}
}

func withRetentionDefaults(r RetentionConfig) RetentionConfig {
	if r.SegmentDays == 0 {
		r.SegmentDays = 30
	}
	if r.GripDays == 0 {
		r.GripDays = 30
	}
	if r.DayDays == 0 {
		r.DayDays = 365
	}
	if r.WeekDays == 0 {
		r.WeekDays = 1825
	}
	return r
}

// Validate rejects a Config that cannot be wired into a running daemon.
func (c *Config) Validate() error {
	if c.Core.DBPath == "" {
		return fmt.Errorf("config: core.db_path is required")
	}
	if c.Core.Port <= 0 || c.Core.Port > 65535 {
		return fmt.Errorf("config: core.port %d out of range", c.Core.Port)
	}
	switch c.Summarizer.Provider {
	case "mock", "http", "plugin":
	default:
		return fmt.Errorf("config: unknown summarizer.provider %q", c.Summarizer.Provider)
	}
	switch c.Embedder.Provider {
	case "mock", "http", "plugin":
	default:
		return fmt.Errorf("config: unknown embedder.provider %q", c.Embedder.Provider)
	}
	if _, err := time.LoadLocation(c.Scheduler.DefaultTimezone); err != nil {
		return fmt.Errorf("config: scheduler.default_timezone %q: %w", c.Scheduler.DefaultTimezone, err)
	}
	if c.Topics.Enabled && c.Topics.MinClusterSize < 1 {
		return fmt.Errorf("config: topics.min_cluster_size must be >= 1")
	}
	return nil
}
