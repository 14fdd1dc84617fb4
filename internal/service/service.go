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

// Package service wires every component - Store, Ingest, TOC Builder, Grip
// Service, Retrieval Router, Scheduler, outbox Consumers, and the optional
// Topic Graph - into the single object the daemon's transport surface
// calls into. It is the daemon's composition root and the home of every
// external operation spec.md §6 names.
package service

import (
	"context"
	"fmt"

	"github.com/kadirpekel/agent-memory/internal/config"
	"github.com/kadirpekel/agent-memory/internal/embedder"
	"github.com/kadirpekel/agent-memory/internal/grip"
	"github.com/kadirpekel/agent-memory/internal/ingest"
	"github.com/kadirpekel/agent-memory/internal/keyword"
	"github.com/kadirpekel/agent-memory/internal/observability"
	"github.com/kadirpekel/agent-memory/internal/outbox"
	"github.com/kadirpekel/agent-memory/internal/router"
	"github.com/kadirpekel/agent-memory/internal/scheduler"
	"github.com/kadirpekel/agent-memory/internal/store"
	"github.com/kadirpekel/agent-memory/internal/summarizer"
	"github.com/kadirpekel/agent-memory/internal/tokenestimate"
	"github.com/kadirpekel/agent-memory/internal/toc"
	"github.com/kadirpekel/agent-memory/internal/topic"
	"github.com/kadirpekel/agent-memory/internal/types"
	"github.com/kadirpekel/agent-memory/internal/vector"
	"github.com/kadirpekel/agent-memory/internal/vector/chromemprovider"
	"github.com/kadirpekel/agent-memory/internal/vector/hnsw"
	"github.com/kadirpekel/agent-memory/internal/vector/pineconeprovider"
	"github.com/kadirpekel/agent-memory/internal/vector/qdrantprovider"
)

// Service is the composition root: every external operation in spec.md §6
// is a method on it.
type Service struct {
	Config *config.Config
	Store  *store.Store

	Embedder   embedder.Embedder
	Summarizer summarizer.Summarizer

	Ingest *ingest.Pipeline
	TOC    *toc.Builder
	Grip   *grip.Service
	Router *router.Router

	Keyword *keyword.Index
	Vector  vector.Provider
	Topics  *topic.Builder

	KeywordConsumer *outbox.Consumer
	VectorConsumer  *outbox.Consumer
	TopicConsumer   *outbox.Consumer

	Scheduler     *scheduler.Scheduler
	Observability *observability.Manager

	closers []func() error
}

// New builds and wires a Service from a fully-defaulted Config. It
// constructs every component, registers every scheduled job spec.md §4.11
// names, and starts the Scheduler's tick loop (via scheduler.New).
func New(ctx context.Context, cfg *config.Config) (*Service, error) {
	s := &Service{Config: cfg}

	st, err := store.Open(ctx, store.Config{Dialect: store.DialectSQLite, DSN: cfg.Core.DBPath})
	if err != nil {
		return nil, fmt.Errorf("service: open store: %w", err)
	}
	s.Store = st
	s.closers = append(s.closers, st.Close)

	emb, err := buildEmbedder(ctx, cfg.Embedder)
	if err != nil {
		return nil, fmt.Errorf("service: build embedder: %w", err)
	}
	s.Embedder = emb

	summ, err := buildSummarizer(ctx, cfg.Summarizer)
	if err != nil {
		return nil, fmt.Errorf("service: build summarizer: %w", err)
	}
	s.Summarizer = summ

	obs, err := observability.NewManager(ctx, observability.Config{
		Metrics: observability.MetricsConfig{Enabled: true},
		Tracing: observability.TracingConfig{Enabled: false, ServiceName: "agent-memory"},
	})
	if err != nil {
		return nil, fmt.Errorf("service: build observability: %w", err)
	}
	s.Observability = obs

	vec, err := buildVector(ctx, cfg.Vector)
	if err != nil {
		return nil, fmt.Errorf("service: build vector backend: %w", err)
	}
	s.Vector = vec
	s.Keyword = keyword.New()

	s.Ingest = &ingest.Pipeline{
		Store:    s.Store,
		Embedder: s.Embedder,
		Vector:   &vectorSearcherAdapter{provider: s.Vector},
		Novelty: ingest.NoveltyConfig{
			Enabled:       cfg.Novelty.Enabled,
			MinTextLength: cfg.Novelty.MinTextLength,
			Threshold:     cfg.Novelty.Threshold,
			Timeout:       cfg.Novelty.Timeout,
		},
	}

	tz, err := schedulerTimezone(cfg.Scheduler.DefaultTimezone)
	if err != nil {
		return nil, err
	}

	s.TOC = toc.New(s.Store, s.Summarizer, tokenestimate.New(), toc.Config{
		TimeThresholdMs:     cfg.Segmentation.TimeThresholdMs,
		TokenThreshold:      cfg.Segmentation.TokenThreshold,
		MinEventsPerSegment: cfg.Segmentation.MinEventsPerSegment,
		OverlapTimeMs:       cfg.Segmentation.OverlapTimeMs,
		OverlapTokens:       cfg.Segmentation.OverlapTokens,
		Location:            tz,
	})

	s.Grip = &grip.Service{Store: s.Store}

	if cfg.Topics.Enabled {
		s.Topics = topic.New(s.Store, s.Vector, s.Summarizer, topic.Config{
			MinClusterSize:      cfg.Topics.MinClusterSize,
			SimilarityThreshold: cfg.Topics.SimilarityThresh,
			HalfLifeDays:        cfg.Topics.HalfLifeDays,
			RecencyBoost:        cfg.Topics.RecencyBoost,
		})
	}

	s.Router = router.New(s.Store, s.Keyword, s.Vector, s.Embedder)
	s.Router.KeywordEnabled = cfg.Keyword.Enabled != nil && *cfg.Keyword.Enabled
	s.Router.VectorEnabled = cfg.Vector.Enabled != nil && *cfg.Vector.Enabled
	s.Router.TopicsEnabled = cfg.Topics.Enabled
	s.Router.SalienceEnabled = cfg.Ranking.Salience.Enabled != nil && *cfg.Ranking.Salience.Enabled
	s.Router.UsageDecayEnabled = cfg.Ranking.UsageDecay.Enabled
	s.Router.ByNodeID = s.Store.GetTocNode

	s.KeywordConsumer = outbox.New(types.CheckpointKeyword, s.Store, s.dispatchKeyword)
	s.VectorConsumer = outbox.New(types.CheckpointVector, s.Store, s.dispatchVector)
	if s.Topics != nil {
		s.TopicConsumer = outbox.New(types.CheckpointTopic, s.Store, s.Topics.Dispatch)
	}

	s.Scheduler = scheduler.New(scheduler.Config{DefaultTimezone: tz})
	if err := s.registerJobs(cfg); err != nil {
		return nil, fmt.Errorf("service: register jobs: %w", err)
	}

	return s, nil
}

// Close releases every resource the Service opened, in reverse build order.
func (s *Service) Close(ctx context.Context) error {
	if s.Scheduler != nil {
		s.Scheduler.Shutdown()
	}
	var firstErr error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if s.Observability != nil {
		if err := s.Observability.Shutdown(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func buildEmbedder(ctx context.Context, cfg config.SummarizerConfig) (embedder.Embedder, error) {
	switch cfg.Provider {
	case "", "mock":
		return embedder.Mock{}, nil
	case "http":
		return embedder.NewGenAIEmbedder(ctx, embedder.HTTPConfig{APIKey: cfg.APIKey, Model: cfg.Model})
	case "plugin":
		impl, _, err := embedder.LaunchPluginProcess(cfg.PluginPath)
		return impl, err
	default:
		return nil, fmt.Errorf("service: unknown embedder provider %q", cfg.Provider)
	}
}

// buildVector selects the vector index's concrete backend by name, the same
// way the teacher's DatabaseRegistry selects a storage backend by name
// (spec.md §4.6).
func buildVector(ctx context.Context, cfg config.VectorConfig) (vector.Provider, error) {
	switch cfg.Backend {
	case "", "hnsw":
		return hnsw.New(hnsw.Config{}), nil
	case "chromem":
		return chromemprovider.New(chromemprovider.Config{
			PersistPath: cfg.Chromem.PersistPath,
			Compress:    cfg.Chromem.Compress,
		})
	case "qdrant":
		return qdrantprovider.New(ctx, qdrantprovider.Config{
			Host:           cfg.Qdrant.Host,
			Port:           cfg.Qdrant.Port,
			APIKey:         cfg.Qdrant.APIKey,
			UseTLS:         cfg.Qdrant.UseTLS,
			CollectionName: cfg.Qdrant.CollectionName,
			VectorSize:     cfg.Qdrant.VectorSize,
		})
	case "pinecone":
		return pineconeprovider.New(pineconeprovider.Config{
			APIKey:    cfg.Pinecone.APIKey,
			Host:      cfg.Pinecone.Host,
			IndexName: cfg.Pinecone.IndexName,
		})
	default:
		return nil, fmt.Errorf("service: unknown vector backend %q", cfg.Backend)
	}
}

func buildSummarizer(ctx context.Context, cfg config.SummarizerConfig) (summarizer.Summarizer, error) {
	switch cfg.Provider {
	case "", "mock":
		return summarizer.Mock{}, nil
	case "http":
		return summarizer.NewGenAISummarizer(ctx, summarizer.HTTPConfig{APIKey: cfg.APIKey, Model: cfg.Model})
	case "plugin":
		impl, _, err := summarizer.LaunchPluginProcess(cfg.PluginPath)
		return impl, err
	default:
		return nil, fmt.Errorf("service: unknown summarizer provider %q", cfg.Provider)
	}
}
