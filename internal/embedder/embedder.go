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

// Package embedder abstracts the vectoriser used by Ingest's novelty check
// and the Vector Index (spec.md §4.6). Implementations produce
// fixed-dimensional embeddings; callers must not mix embeddings from
// different Dimension()/Model() values in one index.
package embedder

import "context"

// Embedder produces vector embeddings from text.
type Embedder interface {
	// Embed converts one piece of text to a vector embedding.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch converts multiple texts to vector embeddings, more
	// efficiently than calling Embed in a loop where the backend supports it.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimension returns the embedding vector length.
	Dimension() int

	// Model names the embedding model in use.
	Model() string

	// Close releases resources held by the embedder.
	Close() error
}
