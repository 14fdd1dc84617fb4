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

// Package hnsw is the default in-process vector.Provider: a navigable small
// world graph built greedily at insert time and searched with a
// best-first beam (spec.md §4.6's M/ef_construction/ef_search parameters).
package hnsw

import (
	"context"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/kadirpekel/agent-memory/internal/types"
	"github.com/kadirpekel/agent-memory/internal/vector"
)

// Config tunes the graph. Zero values fall back to spec.md §4.6's defaults.
type Config struct {
	M             int // max neighbors per node per insert; default 16
	EfConstruction int // candidate list size while inserting; default 200
	EfSearch      int // candidate list size while searching; default 100
}

func (c Config) withDefaults() Config {
	if c.M <= 0 {
		c.M = 16
	}
	if c.EfConstruction <= 0 {
		c.EfConstruction = 200
	}
	if c.EfSearch <= 0 {
		c.EfSearch = 100
	}
	return c
}

type node struct {
	doc       vector.Doc
	neighbors map[string]struct{}
}

// Provider is the HNSW-style vector.Provider.
type Provider struct {
	cfg Config

	mu             sync.RWMutex
	nodes          map[string]*node
	entryPoint     string
	lastIndexedMs  int64
	lastPruneMs    int64
	lastPruneCount int
}

// New builds an empty Provider.
func New(cfg Config) *Provider {
	return &Provider{cfg: cfg.withDefaults(), nodes: make(map[string]*node)}
}

var _ vector.Provider = (*Provider)(nil)

// Upsert inserts or replaces a document's embedding and rewires its
// neighborhood via a greedy best-first search from the current entry point.
func (p *Provider) Upsert(ctx context.Context, d vector.Doc) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if existing, ok := p.nodes[d.DocID]; ok {
		p.unlinkLocked(d.DocID, existing)
	}

	n := &node{doc: d, neighbors: make(map[string]struct{})}
	p.nodes[d.DocID] = n
	p.lastIndexedMs = nowOrTimestamp(d.TimestampMs)

	if p.entryPoint == "" {
		p.entryPoint = d.DocID
		return nil
	}

	candidates := p.searchLocked(d.Embedding, p.cfg.EfConstruction, vector.Filters{})
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].score > candidates[j].score })
	limit := p.cfg.M
	if limit > len(candidates) {
		limit = len(candidates)
	}
	for _, c := range candidates[:limit] {
		p.linkLocked(d.DocID, c.docID)
	}
	return nil
}

// Delete removes a document and unlinks it from its neighbors.
func (p *Provider) Delete(ctx context.Context, docID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	n, ok := p.nodes[docID]
	if !ok {
		return nil
	}
	p.unlinkLocked(docID, n)
	delete(p.nodes, docID)
	if p.entryPoint == docID {
		p.entryPoint = ""
		for id := range p.nodes {
			p.entryPoint = id
			break
		}
	}
	return nil
}

// Search runs a best-first beam search of width ef_search from the entry
// point, applying filters post-ANN (spec.md §4.6).
func (p *Provider) Search(ctx context.Context, embedding []float32, topK int, f vector.Filters) ([]vector.SearchResult, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	candidates := p.searchLocked(embedding, max(p.cfg.EfSearch, topK), f)
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].score > candidates[j].score })
	if topK > 0 && len(candidates) > topK {
		candidates = candidates[:topK]
	}
	out := make([]vector.SearchResult, len(candidates))
	for i, c := range candidates {
		n := p.nodes[c.docID]
		out[i] = vector.SearchResult{
			DocID: c.docID, Score: c.score, DocType: n.doc.DocType,
			TextPreview: n.doc.TextPreview, TimestampMs: n.doc.TimestampMs, Agent: n.doc.Agent,
		}
	}
	return out, nil
}

type scored struct {
	docID string
	score float32
}

// searchLocked performs a greedy best-first walk from the entry point,
// expanding through neighbor edges and keeping the top `ef` candidates seen,
// matching the graph-search shape HNSW-style indices use for both
// construction and query time.
func (p *Provider) searchLocked(query []float32, ef int, f vector.Filters) []scored {
	if p.entryPoint == "" {
		return nil
	}
	visited := map[string]struct{}{p.entryPoint: {}}
	frontier := []string{p.entryPoint}
	var results []scored

	for len(frontier) > 0 {
		next := frontier[0]
		frontier = frontier[1:]
		n := p.nodes[next]
		if matchesFilter(n.doc, f) {
			results = append(results, scored{docID: next, score: cosineSimilarity(query, n.doc.Embedding)})
		}
		for neighbor := range n.neighbors {
			if _, seen := visited[neighbor]; seen {
				continue
			}
			visited[neighbor] = struct{}{}
			frontier = append(frontier, neighbor)
		}
		if len(visited) >= ef*4 {
			break // bound the walk; this is a beam, not an exhaustive scan
		}
	}

	// Any node unreached by the walk (a disconnected component, or the very
	// first inserts before enough edges exist) still needs a chance to
	// surface; fall back to scanning the rest up to the ef budget.
	if len(results) < ef {
		for id, n := range p.nodes {
			if _, ok := visited[id]; ok {
				continue
			}
			if !matchesFilter(n.doc, f) {
				continue
			}
			results = append(results, scored{docID: id, score: cosineSimilarity(query, n.doc.Embedding)})
		}
	}
	return results
}

func (p *Provider) linkLocked(a, b string) {
	if a == b {
		return
	}
	p.nodes[a].neighbors[b] = struct{}{}
	p.nodes[b].neighbors[a] = struct{}{}
}

func (p *Provider) unlinkLocked(docID string, n *node) {
	for neighbor := range n.neighbors {
		if other, ok := p.nodes[neighbor]; ok {
			delete(other.neighbors, docID)
		}
	}
}

// Status reports graph size and health.
func (p *Provider) Status(ctx context.Context) (vector.Status, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	var size int64
	for _, n := range p.nodes {
		size += int64(len(n.doc.Embedding)*4) + int64(len(n.doc.TextPreview))
	}
	return vector.Status{
		Available: true, Healthy: true, DocCount: len(p.nodes),
		LastIndexedMs: p.lastIndexedMs, IndexSizeBytes: size,
		LastPruneMs: p.lastPruneMs, LastPruneCount: p.lastPruneCount,
	}, nil
}

// All returns every doc matching f, embeddings included.
func (p *Provider) All(ctx context.Context, f vector.Filters) ([]vector.Doc, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]vector.Doc, 0, len(p.nodes))
	for _, n := range p.nodes {
		if matchesFilter(n.doc, f) {
			out = append(out, n.doc)
		}
	}
	return out, nil
}

// Rebuild discards the graph and reinserts every doc in order, used when
// the store is replayed from Events + TOC nodes.
func (p *Provider) Rebuild(ctx context.Context, docs []vector.Doc) error {
	p.mu.Lock()
	p.nodes = make(map[string]*node)
	p.entryPoint = ""
	p.mu.Unlock()
	for _, d := range docs {
		if err := p.Upsert(ctx, d); err != nil {
			return err
		}
	}
	return nil
}

// Prune removes docs whose age exceeds retention for their level; Month and
// Year are never pruned (spec.md §4.6, mirroring keyword.Index.Prune).
func (p *Provider) Prune(ctx context.Context, nowMs int64, retentionByLevel map[types.TocLevel]time.Duration) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	var toRemove []string
	for id, n := range p.nodes {
		if n.doc.Level == types.LevelMonth || n.doc.Level == types.LevelYear {
			continue
		}
		retention, ok := retentionByLevel[n.doc.Level]
		if !ok {
			continue
		}
		if nowMs-n.doc.TimestampMs > retention.Milliseconds() {
			toRemove = append(toRemove, id)
		}
	}
	for _, id := range toRemove {
		p.unlinkLocked(id, p.nodes[id])
		delete(p.nodes, id)
	}
	if p.entryPoint != "" {
		if _, ok := p.nodes[p.entryPoint]; !ok {
			p.entryPoint = ""
			for id := range p.nodes {
				p.entryPoint = id
				break
			}
		}
	}
	p.lastPruneMs = nowMs
	p.lastPruneCount = len(toRemove)
	return len(toRemove), nil
}

// Healthy reports whether the provider is usable; the in-process graph is
// always healthy once constructed.
func (p *Provider) Healthy() bool { return true }

// Close releases resources; the in-memory graph holds none.
func (p *Provider) Close() error { return nil }

func matchesFilter(d vector.Doc, f vector.Filters) bool {
	if f.Agent != "" && d.Agent != f.Agent {
		return false
	}
	if f.DocType != "" && d.DocType != f.DocType {
		return false
	}
	if f.FromMs > 0 && d.TimestampMs < f.FromMs {
		return false
	}
	if f.ToMs > 0 && d.TimestampMs >= f.ToMs {
		return false
	}
	return true
}

func cosineSimilarity(a, b []float32) float32 {
	if len(a) == 0 || len(b) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(na) * math.Sqrt(nb)))
}

func nowOrTimestamp(ts int64) int64 {
	if ts > 0 {
		return ts
	}
	return time.Now().UnixMilli()
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
