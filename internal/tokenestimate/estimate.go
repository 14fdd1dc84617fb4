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

// Package tokenestimate counts tokens for segmentation thresholds (spec.md
// §4.3). cl100k_base via tiktoken-go is the primary estimator; when the
// tokenizer's offline vocabulary file cannot be loaded, Estimator falls back
// to the documented whitespace-plus-punctuation heuristic of 4 characters
// per token.
package tokenestimate

import (
	"sync"
	"unicode"

	"github.com/pkoukk/tiktoken-go"
)

// Estimator counts tokens in a piece of text.
type Estimator struct {
	mu  sync.Mutex
	enc *tiktoken.Tiktoken
}

// New builds an Estimator, attempting to load the cl100k_base encoding. If
// loading fails (for example, no network access and no cached vocabulary
// file), Count silently uses the heuristic fallback for every call.
func New() *Estimator {
	enc, err := tiktoken.GetEncoding("cl100k_base")
	if err != nil {
		return &Estimator{}
	}
	return &Estimator{enc: enc}
}

// Count returns the estimated token count of text.
func (e *Estimator) Count(text string) int {
	if text == "" {
		return 0
	}
	e.mu.Lock()
	enc := e.enc
	e.mu.Unlock()
	if enc != nil {
		return len(enc.Encode(text, nil, nil))
	}
	return heuristicCount(text)
}

// heuristicCount implements the documented fallback: count whitespace- and
// punctuation-delimited runs, estimating 4 characters per token within each.
func heuristicCount(text string) int {
	total := 0
	runLen := 0
	flush := func() {
		if runLen == 0 {
			return
		}
		tokens := runLen / 4
		if runLen%4 != 0 {
			tokens++
		}
		total += tokens
		runLen = 0
	}
	for _, r := range text {
		if unicode.IsSpace(r) || unicode.IsPunct(r) {
			flush()
			if unicode.IsPunct(r) {
				total++ // punctuation is its own token
			}
			continue
		}
		runLen++
	}
	flush()
	return total
}
