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

package tokenestimate

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHeuristicCountEmpty(t *testing.T) {
	assert.Equal(t, 0, heuristicCount(""))
}

func TestHeuristicCountWordsAndPunctuation(t *testing.T) {
	// "hello" -> 2 tokens (5 chars / 4, rounded up), "," -> 1 token,
	// "world" -> 2 tokens.
	got := heuristicCount("hello, world")
	assert.Equal(t, 5, got)
}

func TestCountFallsBackWithoutEncoder(t *testing.T) {
	e := &Estimator{} // no encoder loaded
	assert.Equal(t, heuristicCount("hello world"), e.Count("hello world"))
}

func TestCountEmptyIsZero(t *testing.T) {
	e := New()
	assert.Equal(t, 0, e.Count(""))
}
