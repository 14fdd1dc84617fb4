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

package topic

import (
	"context"
	"log/slog"
	"sort"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/kadirpekel/agent-memory/internal/summarizer"
	"github.com/kadirpekel/agent-memory/internal/vector"
)

var titleCaser = cases.Title(language.English)

const topKeywordsInLabel = 4

// labelCluster asks the Summarizer for a short label from the cluster's
// text previews, falling back to the top-k most frequent keywords when no
// Summarizer is configured or the call fails (spec.md §4.7).
func (b *Builder) labelCluster(ctx context.Context, members []vector.Doc) string {
	previews := make([]string, 0, len(members))
	for _, m := range members {
		if m.TextPreview != "" {
			previews = append(previews, m.TextPreview)
		}
	}

	if b.Summarizer != nil {
		res, err := b.Summarizer.Summarize(ctx, summarizer.Input{Passages: previews, LevelName: "topic"})
		if err == nil && res.Title != "" {
			return res.Title
		}
		if err != nil {
			slog.Warn("topic: label summarization failed, falling back to keywords", "error", err)
		}
	}
	return topKeywords(previews, topKeywordsInLabel)
}

var stopwords = map[string]struct{}{
	"the": {}, "a": {}, "an": {}, "and": {}, "or": {}, "but": {}, "is": {}, "are": {},
	"was": {}, "were": {}, "to": {}, "of": {}, "in": {}, "on": {}, "for": {}, "with": {},
	"that": {}, "this": {}, "it": {}, "as": {}, "at": {}, "by": {}, "be": {}, "we": {},
	"i": {}, "you": {}, "will": {}, "can": {}, "so": {}, "not": {}, "if": {}, "then": {},
}

// topKeywords returns the top-k most frequent non-stopword terms across
// texts, title-cased and space-joined.
func topKeywords(texts []string, k int) string {
	freq := make(map[string]int)
	for _, text := range texts {
		for _, term := range tokenizeForLabel(text) {
			if _, stop := stopwords[term]; stop || len(term) < 3 {
				continue
			}
			freq[term]++
		}
	}
	if len(freq) == 0 {
		return ""
	}

	type termCount struct {
		term  string
		count int
	}
	ranked := make([]termCount, 0, len(freq))
	for term, count := range freq {
		ranked = append(ranked, termCount{term, count})
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].count != ranked[j].count {
			return ranked[i].count > ranked[j].count
		}
		return ranked[i].term < ranked[j].term
	})
	if k > len(ranked) {
		k = len(ranked)
	}

	words := make([]string, 0, k)
	for _, tc := range ranked[:k] {
		words = append(words, titleCaser.String(tc.term))
	}
	return strings.Join(words, " ")
}

// tokenizeForLabel lowercases and splits on non-alphanumeric runs, the same
// shape as keyword.tokenize, kept separate since that helper is unexported.
func tokenizeForLabel(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9')
	})
}
