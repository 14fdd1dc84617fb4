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

// Package keyword is the full-text (BM25) index over TOC node
// titles/summaries/bullets and grip excerpts (spec.md §4.5). It is a
// derived index, fully rebuildable from the Store, and disabled by default.
package keyword

import (
	"context"
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/kadirpekel/agent-memory/internal/types"
)

// DocType distinguishes the indexed document kinds.
type DocType string

const (
	DocTocNode DocType = "toc_node"
	DocGrip    DocType = "grip"
)

// Doc is one indexable unit: a TocNode's title+summary+bullets, or a Grip's
// excerpt.
type Doc struct {
	DocID       string
	DocType     DocType
	Text        string
	Agent       string
	TimestampMs int64
	Level       types.TocLevel
}

// Match is one search hit.
type Match struct {
	DocID       string
	Score       float64
	DocType     DocType
	Excerpt     string
	TimestampMs int64
	Agent       string
}

// Filters narrows a Search call; zero values mean "no filter".
type Filters struct {
	Agent      string
	FromMs     int64
	ToMs       int64
	DocType    DocType
}

// Status reports the index's health and size, per spec.md §4.5.
type Status struct {
	Available      bool
	Healthy        bool
	DocCount       int
	LastIndexedMs  int64
	IndexSizeBytes int64
	LastPruneMs    int64
	LastPruneCount int
}

const (
	bm25K1 = 1.2
	bm25B  = 0.75
)

type postingEntry struct {
	docID string
	freq  int
}

// Index is an in-process BM25 full-text index.
type Index struct {
	mu sync.RWMutex

	docs     map[string]*indexedDoc
	postings map[string][]postingEntry
	totalLen float64

	lastIndexedMs  int64
	lastPruneMs    int64
	lastPruneCount int
}

type indexedDoc struct {
	doc    Doc
	terms  map[string]int
	length int
}

// New builds an empty Index.
func New() *Index {
	return &Index{
		docs:     make(map[string]*indexedDoc),
		postings: make(map[string][]postingEntry),
	}
}

// Upsert indexes (or reindexes) one document.
func (idx *Index) Upsert(ctx context.Context, d Doc) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	if existing, ok := idx.docs[d.DocID]; ok {
		idx.removeLocked(d.DocID, existing)
	}

	terms := tokenize(d.Text)
	freqs := make(map[string]int, len(terms))
	for _, t := range terms {
		freqs[t]++
	}

	rec := &indexedDoc{doc: d, terms: freqs, length: len(terms)}
	idx.docs[d.DocID] = rec
	idx.totalLen += float64(rec.length)
	for term, freq := range freqs {
		idx.postings[term] = append(idx.postings[term], postingEntry{docID: d.DocID, freq: freq})
	}
	idx.lastIndexedMs = nowOrTimestamp(d.TimestampMs)
	return nil
}

// Delete removes a document from the index.
func (idx *Index) Delete(ctx context.Context, docID string) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	existing, ok := idx.docs[docID]
	if !ok {
		return nil
	}
	idx.removeLocked(docID, existing)
	delete(idx.docs, docID)
	return nil
}

func (idx *Index) removeLocked(docID string, existing *indexedDoc) {
	idx.totalLen -= float64(existing.length)
	for term := range existing.terms {
		postings := idx.postings[term]
		out := postings[:0]
		for _, p := range postings {
			if p.docID != docID {
				out = append(out, p)
			}
		}
		if len(out) == 0 {
			delete(idx.postings, term)
		} else {
			idx.postings[term] = out
		}
	}
}

// Search runs a BM25-ranked query, applying filters at retrieval time
// (never by rebuilding), and returns up to topK matches ordered by score.
func (idx *Index) Search(ctx context.Context, query string, topK int, f Filters) ([]Match, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	n := len(idx.docs)
	if n == 0 {
		return nil, nil
	}
	avgLen := idx.totalLen / float64(n)
	terms := tokenize(query)

	scores := make(map[string]float64)
	for _, term := range dedupe(terms) {
		postings := idx.postings[term]
		if len(postings) == 0 {
			continue
		}
		idf := bm25IDF(n, len(postings))
		for _, p := range postings {
			rec := idx.docs[p.docID]
			if !matchesFilter(rec.doc, f) {
				continue
			}
			tf := float64(p.freq)
			denom := tf + bm25K1*(1-bm25B+bm25B*float64(rec.length)/avgLen)
			scores[p.docID] += idf * (tf * (bm25K1 + 1) / denom)
		}
	}

	out := make([]Match, 0, len(scores))
	for docID, score := range scores {
		rec := idx.docs[docID]
		out = append(out, Match{
			DocID: docID, Score: score, DocType: rec.doc.DocType,
			Excerpt: rec.doc.Text, TimestampMs: rec.doc.TimestampMs, Agent: rec.doc.Agent,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].DocID < out[j].DocID
	})
	if topK > 0 && len(out) > topK {
		out = out[:topK]
	}
	return out, nil
}

func matchesFilter(d Doc, f Filters) bool {
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

func bm25IDF(n, df int) float64 {
	// classic BM25 idf with the +1 smoothing term to keep it non-negative
	// for common terms.
	return math.Log((float64(n)-float64(df)+0.5)/(float64(df)+0.5) + 1)
}

// Status returns the index's current health and size.
func (idx *Index) Status() Status {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return Status{
		Available:      true,
		Healthy:        true,
		DocCount:       len(idx.docs),
		LastIndexedMs:  idx.lastIndexedMs,
		IndexSizeBytes: idx.approxSizeLocked(),
		LastPruneMs:    idx.lastPruneMs,
		LastPruneCount: idx.lastPruneCount,
	}
}

func (idx *Index) approxSizeLocked() int64 {
	var total int64
	for _, d := range idx.docs {
		total += int64(len(d.doc.Text)) + int64(len(d.doc.DocID))
	}
	return total
}

// Prune removes documents whose age (relative to nowMs) exceeds the
// configured retention for their TocLevel. Month and Year are never pruned,
// enforced here regardless of what retentionByLevel contains (spec.md §4.5).
func (idx *Index) Prune(ctx context.Context, nowMs int64, retentionByLevel map[types.TocLevel]time.Duration) (int, error) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	var removed int
	for docID, rec := range idx.docs {
		if rec.doc.Level == types.LevelMonth || rec.doc.Level == types.LevelYear {
			continue
		}
		retention, ok := retentionByLevel[rec.doc.Level]
		if !ok {
			continue
		}
		ageMs := nowMs - rec.doc.TimestampMs
		if ageMs > retention.Milliseconds() {
			idx.removeLocked(docID, rec)
			delete(idx.docs, docID)
			removed++
		}
	}
	idx.lastPruneMs = nowMs
	idx.lastPruneCount = removed
	return removed, nil
}

// Optimize is a no-op for the in-memory structure; kept for contract parity
// with the persistent-index implementations a deployment might swap in.
func (idx *Index) Optimize(ctx context.Context) error { return nil }

func nowOrTimestamp(ts int64) int64 {
	if ts > 0 {
		return ts
	}
	return time.Now().UnixMilli()
}

func tokenize(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9')
	})
	return fields
}

func dedupe(terms []string) []string {
	seen := make(map[string]struct{}, len(terms))
	out := make([]string, 0, len(terms))
	for _, t := range terms {
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}
