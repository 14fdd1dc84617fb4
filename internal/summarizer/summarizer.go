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

// Package summarizer abstracts the LLM call the TOC Builder uses to turn a
// segment's (or a level's child nodes') text into {title, summary, bullets}.
package summarizer

import (
	"context"
	"fmt"
	"strings"
)

// Input is the text the Summarizer condenses: either the raw events of a
// closing Segment, or the concatenated summaries/bullets of child nodes
// being rolled up a level.
type Input struct {
	// Passages is ordered text to summarize: event text for segmentation,
	// or "title: summary\nbullet\nbullet" blocks for rollups.
	Passages []string
	// LevelName names the hierarchy level being produced, e.g. "segment",
	// "day" — used only to adapt the prompt.
	LevelName string
}

// Result is the Summarizer's output, mapped directly onto TocNode's
// Title/Summary/Bullets fields by the TOC Builder.
type Result struct {
	Title   string
	Summary string
	Bullets []string
}

// Summarizer turns passages into a title, summary, and bullet list.
type Summarizer interface {
	Summarize(ctx context.Context, in Input) (Result, error)
}

const defaultPromptTemplate = `You are summarizing a span of an AI coding agent's conversation history for later recall.

Guidelines:
- Produce a short title (under 10 words).
- Produce a concise paragraph summary.
- Produce 3-6 bullet points capturing concrete facts, decisions, or preferences.
- Do not invent information not present below.

%s level content:
%s

Respond as:
TITLE: <title>
SUMMARY: <summary>
BULLET: <bullet 1>
BULLET: <bullet 2>
...`

func buildPrompt(in Input) string {
	return fmt.Sprintf(defaultPromptTemplate, in.LevelName, strings.Join(in.Passages, "\n\n"))
}

// parseResponse extracts TITLE/SUMMARY/BULLET lines from an LLM's raw text
// response. The HTTP (genai) backend uses it; the local-process backend
// receives title, summary and bullets as separate fields and does not.
func parseResponse(raw string) Result {
	var res Result
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(line, "TITLE:"):
			res.Title = strings.TrimSpace(strings.TrimPrefix(line, "TITLE:"))
		case strings.HasPrefix(line, "SUMMARY:"):
			res.Summary = strings.TrimSpace(strings.TrimPrefix(line, "SUMMARY:"))
		case strings.HasPrefix(line, "BULLET:"):
			b := strings.TrimSpace(strings.TrimPrefix(line, "BULLET:"))
			if b != "" {
				res.Bullets = append(res.Bullets, b)
			}
		}
	}
	return res
}
