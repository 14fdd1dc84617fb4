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

package summarizer

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

// HTTPConfig configures GenAISummarizer.
type HTTPConfig struct {
	APIKey string
	Model  string // default: "gemini-1.5-flash"
}

// GenAISummarizer calls a hosted LLM over HTTP via the genai SDK.
type GenAISummarizer struct {
	client *genai.Client
	model  string
}

// NewGenAISummarizer builds a GenAISummarizer from cfg.
func NewGenAISummarizer(ctx context.Context, cfg HTTPConfig) (*GenAISummarizer, error) {
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = "gemini-1.5-flash"
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: strings.TrimSpace(cfg.APIKey)})
	if err != nil {
		return nil, fmt.Errorf("init genai client: %w", err)
	}
	return &GenAISummarizer{client: client, model: model}, nil
}

func (g *GenAISummarizer) Summarize(ctx context.Context, in Input) (Result, error) {
	prompt := buildPrompt(in)
	contents := []*genai.Content{
		{Role: "user", Parts: []*genai.Part{genai.NewPartFromText(prompt)}},
	}
	resp, err := g.client.Models.GenerateContent(ctx, g.model, contents, nil)
	if err != nil {
		return Result{}, fmt.Errorf("summarize: %w", err)
	}

	var text strings.Builder
	for _, cand := range resp.Candidates {
		if cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			text.WriteString(part.Text)
		}
	}
	return parseResponse(text.String()), nil
}
