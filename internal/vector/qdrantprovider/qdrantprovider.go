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

// Package qdrantprovider adapts a Qdrant collection to vector.Provider, for
// deployments that outgrow a single embedded daemon (spec.md §4.6).
package qdrantprovider

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/qdrant/go-client/qdrant"

	"github.com/kadirpekel/agent-memory/internal/types"
	"github.com/kadirpekel/agent-memory/internal/vector"
)

// Config configures Provider.
type Config struct {
	Host           string
	Port           int // default 6334, the gRPC port
	APIKey         string
	UseTLS         bool
	CollectionName string // default "agent_memory"
	VectorSize     uint64
}

// Provider adapts a Qdrant collection to vector.Provider.
type Provider struct {
	client     *qdrant.Client
	collection string

	lastIndexedMs  int64
	lastPruneMs    int64
	lastPruneCount int
}

// New connects to Qdrant and ensures the collection exists.
func New(ctx context.Context, cfg Config) (*Provider, error) {
	if cfg.Port == 0 {
		cfg.Port = 6334
	}
	collection := cfg.CollectionName
	if collection == "" {
		collection = "agent_memory"
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host: cfg.Host, Port: cfg.Port, APIKey: cfg.APIKey, UseTLS: cfg.UseTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("connect to qdrant at %s:%d: %w", cfg.Host, cfg.Port, err)
	}

	exists, err := client.CollectionExists(ctx, collection)
	if err != nil {
		return nil, fmt.Errorf("check qdrant collection %q: %w", collection, err)
	}
	if !exists {
		err = client.CreateCollection(ctx, &qdrant.CreateCollection{
			CollectionName: collection,
			VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
				Size: cfg.VectorSize, Distance: qdrant.Distance_Cosine,
			}),
		})
		if err != nil {
			return nil, fmt.Errorf("create qdrant collection %q: %w", collection, err)
		}
	}

	return &Provider{client: client, collection: collection}, nil
}

var _ vector.Provider = (*Provider)(nil)

func (p *Provider) Upsert(ctx context.Context, d vector.Doc) error {
	payload := map[string]*qdrant.Value{
		"doc_type":     mustValue(string(d.DocType)),
		"agent":        mustValue(d.Agent),
		"timestamp_ms": mustValue(d.TimestampMs),
		"level":        mustValue(string(d.Level)),
		"text_preview": mustValue(d.TextPreview),
	}
	point := &qdrant.PointStruct{
		Id:      qdrant.NewIDUUID(d.DocID),
		Vectors: qdrant.NewVectors(d.Embedding...),
		Payload: payload,
	}
	_, err := p.client.Upsert(ctx, &qdrant.UpsertPoints{CollectionName: p.collection, Points: []*qdrant.PointStruct{point}})
	if err != nil {
		return fmt.Errorf("qdrant upsert: %w", err)
	}
	p.lastIndexedMs = nowOrTimestamp(d.TimestampMs)
	return nil
}

func mustValue(v any) *qdrant.Value {
	val, err := qdrant.NewValue(v)
	if err != nil {
		return &qdrant.Value{}
	}
	return val
}

func (p *Provider) Delete(ctx context.Context, docID string) error {
	_, err := p.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: p.collection,
		Points:         qdrant.NewPointsSelectorIDs([]*qdrant.PointId{qdrant.NewIDUUID(docID)}),
	})
	if err != nil {
		return fmt.Errorf("qdrant delete: %w", err)
	}
	return nil
}

func (p *Provider) Search(ctx context.Context, embedding []float32, topK int, f vector.Filters) ([]vector.SearchResult, error) {
	req := &qdrant.QueryPoints{
		CollectionName: p.collection,
		Query:          qdrant.NewQuery(embedding...),
		Limit:          uint64ptr(uint64(topK)),
		WithPayload:    qdrant.NewWithPayload(true),
		Filter:         buildFilter(f),
	}
	result, err := p.client.Query(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("qdrant search: %w", err)
	}

	out := make([]vector.SearchResult, 0, len(result))
	for _, point := range result {
		out = append(out, vector.SearchResult{
			DocID:       pointIDString(point.Id),
			Score:       point.Score,
			DocType:     vector.DocType(payloadString(point.Payload, "doc_type")),
			TextPreview: payloadString(point.Payload, "text_preview"),
			TimestampMs: payloadInt(point.Payload, "timestamp_ms"),
			Agent:       payloadString(point.Payload, "agent"),
		})
	}
	return out, nil
}

func buildFilter(f vector.Filters) *qdrant.Filter {
	var must []*qdrant.Condition
	if f.Agent != "" {
		must = append(must, qdrant.NewMatch("agent", f.Agent))
	}
	if f.DocType != "" {
		must = append(must, qdrant.NewMatch("doc_type", string(f.DocType)))
	}
	if len(must) == 0 {
		return nil
	}
	return &qdrant.Filter{Must: must}
}

func uint64ptr(v uint64) *uint64 { return &v }

func pointIDString(id *qdrant.PointId) string {
	if id == nil || id.PointIdOptions == nil {
		return ""
	}
	switch v := id.PointIdOptions.(type) {
	case *qdrant.PointId_Uuid:
		return v.Uuid
	case *qdrant.PointId_Num:
		return strconv.FormatUint(v.Num, 10)
	}
	return ""
}

func payloadString(payload map[string]*qdrant.Value, key string) string {
	v, ok := payload[key]
	if !ok {
		return ""
	}
	return v.GetStringValue()
}

func payloadInt(payload map[string]*qdrant.Value, key string) int64 {
	v, ok := payload[key]
	if !ok {
		return 0
	}
	return v.GetIntegerValue()
}

func (p *Provider) Status(ctx context.Context) (vector.Status, error) {
	info, err := p.client.GetCollectionInfo(ctx, p.collection)
	if err != nil {
		return vector.Status{Available: true, Healthy: false}, nil
	}
	return vector.Status{
		Available: true, Healthy: true, DocCount: int(info.GetPointsCount()),
		LastIndexedMs: p.lastIndexedMs, LastPruneMs: p.lastPruneMs, LastPruneCount: p.lastPruneCount,
	}, nil
}

// All scrolls the full collection (filtered server-side), returning every
// point's vector and payload. Used by the Topic Graph's clustering pass.
func (p *Provider) All(ctx context.Context, f vector.Filters) ([]vector.Doc, error) {
	points, err := p.client.Scroll(ctx, &qdrant.ScrollPoints{
		CollectionName: p.collection,
		Filter:         buildFilter(f),
		WithPayload:    qdrant.NewWithPayload(true),
		WithVectors:    qdrant.NewWithVectors(true),
	})
	if err != nil {
		return nil, fmt.Errorf("qdrant scroll: %w", err)
	}
	out := make([]vector.Doc, 0, len(points))
	for _, pt := range points {
		out = append(out, vector.Doc{
			DocID:       pointIDString(pt.Id),
			DocType:     vector.DocType(payloadString(pt.Payload, "doc_type")),
			Embedding:   pt.GetVectors().GetVector().GetData(),
			TextPreview: payloadString(pt.Payload, "text_preview"),
			Agent:       payloadString(pt.Payload, "agent"),
			TimestampMs: payloadInt(pt.Payload, "timestamp_ms"),
			Level:       types.TocLevel(payloadString(pt.Payload, "level")),
		})
	}
	return out, nil
}

func (p *Provider) Rebuild(ctx context.Context, docs []vector.Doc) error {
	for _, d := range docs {
		if err := p.Upsert(ctx, d); err != nil {
			return err
		}
	}
	return nil
}

// Prune deletes points older than retention for their level via a
// server-side filtered delete; Month/Year are never included in the filter.
// Qdrant's filtered delete does not report an affected count, so the
// returned count stays a coarse zero rather than a number this adapter
// cannot verify.
func (p *Provider) Prune(ctx context.Context, nowMs int64, retentionByLevel map[types.TocLevel]time.Duration) (int, error) {
	var removed int
	for level, retention := range retentionByLevel {
		if level == types.LevelMonth || level == types.LevelYear {
			continue
		}
		cutoff := nowMs - retention.Milliseconds()
		_, err := p.client.Delete(ctx, &qdrant.DeletePoints{
			CollectionName: p.collection,
			Points: qdrant.NewPointsSelectorFilter(&qdrant.Filter{
				Must: []*qdrant.Condition{
					qdrant.NewMatch("level", string(level)),
					qdrant.NewRange("timestamp_ms", &qdrant.Range{Lt: floatptr(float64(cutoff))}),
				},
			}),
		})
		if err != nil {
			return removed, fmt.Errorf("qdrant prune level %s: %w", level, err)
		}
	}
	p.lastPruneMs = nowMs
	return removed, nil
}

func floatptr(v float64) *float64 { return &v }

func (p *Provider) Healthy() bool { return p.client != nil }

func (p *Provider) Close() error { return p.client.Close() }

func nowOrTimestamp(ts int64) int64 {
	if ts > 0 {
		return ts
	}
	return time.Now().UnixMilli()
}
