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

package embedder

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

// HTTPConfig configures GenAIEmbedder.
type HTTPConfig struct {
	APIKey string
	Model  string // default: "text-embedding-004"
	Dim    int    // default: 768
}

// GenAIEmbedder calls a hosted embedding model over HTTP via the genai SDK.
type GenAIEmbedder struct {
	client *genai.Client
	model  string
	dim    int
}

// NewGenAIEmbedder builds a GenAIEmbedder from cfg.
func NewGenAIEmbedder(ctx context.Context, cfg HTTPConfig) (*GenAIEmbedder, error) {
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = "text-embedding-004"
	}
	dim := cfg.Dim
	if dim <= 0 {
		dim = 768
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: strings.TrimSpace(cfg.APIKey)})
	if err != nil {
		return nil, fmt.Errorf("init genai client: %w", err)
	}
	return &GenAIEmbedder{client: client, model: model, dim: dim}, nil
}

func (g *GenAIEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := g.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

func (g *GenAIEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	contents := make([]*genai.Content, len(texts))
	for i, t := range texts {
		contents[i] = &genai.Content{Parts: []*genai.Part{genai.NewPartFromText(t)}}
	}
	resp, err := g.client.Models.EmbedContent(ctx, g.model, contents, nil)
	if err != nil {
		return nil, fmt.Errorf("embed batch: %w", err)
	}
	out := make([][]float32, len(resp.Embeddings))
	for i, e := range resp.Embeddings {
		out[i] = e.Values
	}
	return out, nil
}

func (g *GenAIEmbedder) Dimension() int { return g.dim }
func (g *GenAIEmbedder) Model() string  { return g.model }
func (g *GenAIEmbedder) Close() error   { return nil }
