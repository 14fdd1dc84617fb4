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

// Package pineconeprovider adapts a Pinecone index to vector.Provider, for
// deployments that want a managed ANN service instead of the embedded
// default (spec.md §4.6).
package pineconeprovider

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/pinecone-io/go-pinecone/pinecone"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/kadirpekel/agent-memory/internal/types"
	"github.com/kadirpekel/agent-memory/internal/vector"
)

// Config configures Provider. The index must already exist; Pinecone
// indexes are provisioned out of band, via the console or management API.
type Config struct {
	APIKey    string
	Host      string // optional, defaults to https://api.pinecone.io
	IndexName string
}

// Provider adapts a Pinecone index to vector.Provider.
type Provider struct {
	client    *pinecone.Client
	indexName string

	lastIndexedMs  int64
	lastPruneMs    int64
	lastPruneCount int
}

// New connects to Pinecone. The target index is resolved lazily on first
// use via DescribeIndex, since Pinecone assigns each index its own host.
func New(cfg Config) (*Provider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("pineconeprovider: API key is required")
	}
	client, err := pinecone.NewClient(pinecone.NewClientParams{ApiKey: cfg.APIKey, Host: cfg.Host})
	if err != nil {
		return nil, fmt.Errorf("create pinecone client: %w", err)
	}
	indexName := cfg.IndexName
	if indexName == "" {
		indexName = "agent-memory"
	}
	return &Provider{client: client, indexName: indexName}, nil
}

var _ vector.Provider = (*Provider)(nil)

func (p *Provider) connection(ctx context.Context) (*pinecone.IndexConnection, error) {
	index, err := p.client.DescribeIndex(ctx, p.indexName)
	if err != nil {
		return nil, fmt.Errorf("describe pinecone index %q: %w", p.indexName, err)
	}
	conn, err := p.client.Index(pinecone.NewIndexConnParams{Host: index.Host})
	if err != nil {
		return nil, fmt.Errorf("connect to pinecone index %q: %w", p.indexName, err)
	}
	return conn, nil
}

func (p *Provider) Upsert(ctx context.Context, d vector.Doc) error {
	conn, err := p.connection(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	metadata, err := structpb.NewStruct(map[string]any{
		"doc_type":     string(d.DocType),
		"agent":        d.Agent,
		"timestamp_ms": strconv.FormatInt(d.TimestampMs, 10),
		"level":        string(d.Level),
		"content":      d.TextPreview,
	})
	if err != nil {
		return fmt.Errorf("pinecone metadata: %w", err)
	}

	vec := &pinecone.Vector{Id: d.DocID, Values: d.Embedding, Metadata: metadata}
	if _, err := conn.UpsertVectors(ctx, []*pinecone.Vector{vec}); err != nil {
		return fmt.Errorf("pinecone upsert: %w", err)
	}
	p.lastIndexedMs = nowOrTimestamp(d.TimestampMs)
	return nil
}

func (p *Provider) Delete(ctx context.Context, docID string) error {
	conn, err := p.connection(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()
	if err := conn.DeleteVectorsById(ctx, []string{docID}); err != nil {
		return fmt.Errorf("pinecone delete: %w", err)
	}
	return nil
}

func (p *Provider) Search(ctx context.Context, embedding []float32, topK int, f vector.Filters) ([]vector.SearchResult, error) {
	conn, err := p.connection(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	filterMap := map[string]any{}
	if f.Agent != "" {
		filterMap["agent"] = f.Agent
	}
	if f.DocType != "" {
		filterMap["doc_type"] = string(f.DocType)
	}
	var metadataFilter *pinecone.MetadataFilter
	if len(filterMap) > 0 {
		metadataFilter, err = structpb.NewStruct(filterMap)
		if err != nil {
			return nil, fmt.Errorf("pinecone filter: %w", err)
		}
	}

	resp, err := conn.QueryByVectorValues(ctx, &pinecone.QueryByVectorValuesRequest{
		Vector:          embedding,
		TopK:            uint32(topK),
		MetadataFilter:  metadataFilter,
		IncludeMetadata: true,
	})
	if err != nil {
		return nil, fmt.Errorf("pinecone search: %w", err)
	}

	out := make([]vector.SearchResult, 0, len(resp.Matches))
	for _, m := range resp.Matches {
		if m.Vector == nil {
			continue
		}
		metadata := map[string]any{}
		if m.Vector.Metadata != nil {
			metadata = m.Vector.Metadata.AsMap()
		}
		res := vector.SearchResult{
			DocID:       m.Vector.Id,
			Score:       m.Score,
			DocType:     vector.DocType(stringField(metadata, "doc_type")),
			TextPreview: stringField(metadata, "content"),
			Agent:       stringField(metadata, "agent"),
			TimestampMs: int64Field(metadata, "timestamp_ms"),
		}
		if !postFilterOK(res, f) {
			continue
		}
		out = append(out, res)
	}
	return out, nil
}

func postFilterOK(r vector.SearchResult, f vector.Filters) bool {
	if f.FromMs > 0 && r.TimestampMs < f.FromMs {
		return false
	}
	if f.ToMs > 0 && r.TimestampMs >= f.ToMs {
		return false
	}
	return true
}

func stringField(m map[string]any, key string) string {
	v, ok := m[key].(string)
	if !ok {
		return ""
	}
	return v
}

func int64Field(m map[string]any, key string) int64 {
	s, ok := m[key].(string)
	if !ok {
		return 0
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0
	}
	return v
}

func (p *Provider) Status(ctx context.Context) (vector.Status, error) {
	_, err := p.client.DescribeIndex(ctx, p.indexName)
	if err != nil {
		return vector.Status{Available: true, Healthy: false}, nil
	}
	return vector.Status{
		Available: true, Healthy: true,
		LastIndexedMs: p.lastIndexedMs, LastPruneMs: p.lastPruneMs, LastPruneCount: p.lastPruneCount,
	}, nil
}

// All is a best-effort no-op: Pinecone's query-by-vector API has no
// full-scan equivalent that returns embeddings without a seed vector, so
// listing every doc (as the Topic Graph's clustering pass needs) is not
// available through this adapter. Deployments that enable topic clustering
// should pair it with the default hnsw.Provider, whose All returns the
// full indexed set.
func (p *Provider) All(ctx context.Context, f vector.Filters) ([]vector.Doc, error) {
	return nil, nil
}

func (p *Provider) Rebuild(ctx context.Context, docs []vector.Doc) error {
	for _, d := range docs {
		if err := p.Upsert(ctx, d); err != nil {
			return err
		}
	}
	return nil
}

// Prune deletes vectors older than retention for their level via a filtered
// delete; Month/Year are never included in the filter. Pinecone's
// DeleteVectorsByFilter does not report an affected count, so lastPruneCount
// stays a coarse zero rather than a number this adapter cannot verify.
func (p *Provider) Prune(ctx context.Context, nowMs int64, retentionByLevel map[types.TocLevel]time.Duration) (int, error) {
	conn, err := p.connection(ctx)
	if err != nil {
		return 0, err
	}
	defer conn.Close()

	for level, retention := range retentionByLevel {
		if level == types.LevelMonth || level == types.LevelYear {
			continue
		}
		cutoff := nowMs - retention.Milliseconds()
		filter, err := structpb.NewStruct(map[string]any{
			"level":        string(level),
			"timestamp_ms": map[string]any{"$lt": strconv.FormatInt(cutoff, 10)},
		})
		if err != nil {
			return 0, fmt.Errorf("pinecone prune filter: %w", err)
		}
		if err := conn.DeleteVectorsByFilter(ctx, filter); err != nil {
			return 0, fmt.Errorf("pinecone prune level %s: %w", level, err)
		}
	}
	p.lastPruneMs = nowMs
	return 0, nil
}

func (p *Provider) Healthy() bool { return p.client != nil }

func (p *Provider) Close() error { return nil }

func nowOrTimestamp(ts int64) int64 {
	if ts > 0 {
		return ts
	}
	return time.Now().UnixMilli()
}
