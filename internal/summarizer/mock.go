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
	"strings"
)

// Mock is a deterministic Summarizer for tests and offline operation: it
// titles from the first passage's leading words, summarizes by
// concatenation, and bullets one line per passage.
type Mock struct{}

func (Mock) Summarize(_ context.Context, in Input) (Result, error) {
	if len(in.Passages) == 0 {
		return Result{}, nil
	}
	title := firstWords(in.Passages[0], 8)
	bullets := make([]string, 0, len(in.Passages))
	for _, p := range in.Passages {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		bullets = append(bullets, firstWords(p, 20))
	}
	return Result{
		Title:   title,
		Summary: strings.Join(in.Passages, " "),
		Bullets: bullets,
	}, nil
}

func firstWords(s string, n int) string {
	words := strings.Fields(s)
	if len(words) > n {
		words = words[:n]
	}
	return strings.Join(words, " ")
}
