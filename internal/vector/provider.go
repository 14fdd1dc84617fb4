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

// Package vector defines the ANN Provider port for semantic search
// (spec.md §4.6) and its default in-process HNSW-style implementation; see
// subpackages hnsw, chromemprovider, qdrantprovider, and pineconeprovider for
// the pluggable backends.
package vector

import (
	"context"
	"time"

	"github.com/kadirpekel/agent-memory/internal/types"
)

// DocType distinguishes the indexed document kinds, mirroring keyword.DocType.
type DocType string

const (
	DocTocNode DocType = "toc_node"
	DocGrip    DocType = "grip"
)

// Doc is one vector-indexable unit plus its external metadata, stored
// alongside the embedding so filters apply post-ANN without a second
// round-trip to the Store.
type Doc struct {
	DocID       string
	DocType     DocType
	Embedding   []float32
	TextPreview string
	Agent       string
	TimestampMs int64
	Level       types.TocLevel
}

// SearchResult is one ANN search hit.
type SearchResult struct {
	DocID       string
	Score       float32
	DocType     DocType
	TextPreview string
	TimestampMs int64
	Agent       string
}

// Filters narrows a Search call; zero values mean "no filter".
type Filters struct {
	Agent   string
	FromMs  int64
	ToMs    int64
	DocType DocType
}

// Status reports the index's health and size, mirroring keyword.Status.
type Status struct {
	Available      bool
	Healthy        bool
	DocCount       int
	LastIndexedMs  int64
	IndexSizeBytes int64
	LastPruneMs    int64
	LastPruneCount int
}

// Provider is the port every vector backend implements: the in-process HNSW
// default, or an embedded/external alternative (chromem, qdrant, pinecone).
type Provider interface {
	Upsert(ctx context.Context, d Doc) error
	Delete(ctx context.Context, docID string) error
	Search(ctx context.Context, embedding []float32, topK int, f Filters) ([]SearchResult, error)
	Status(ctx context.Context) (Status, error)
	Rebuild(ctx context.Context, docs []Doc) error
	Prune(ctx context.Context, nowMs int64, retentionByLevel map[types.TocLevel]time.Duration) (int, error)
	// All returns every indexed doc matching f, embeddings included. Used
	// by the Topic Graph's clustering pass, which needs raw vectors rather
	// than ranked search hits.
	All(ctx context.Context, f Filters) ([]Doc, error)
	Healthy() bool
	Close() error
}
