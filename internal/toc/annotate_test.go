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

package toc

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/kadirpekel/agent-memory/internal/types"
)

func TestInferMemoryKindRules(t *testing.T) {
	assert.Equal(t, types.MemoryPreference, InferMemoryKind("I prefer dark mode"))
	assert.Equal(t, types.MemoryConstraint, InferMemoryKind("You must run tests before merging"))
	assert.Equal(t, types.MemoryProcedure, InferMemoryKind("step 1: clone the repo"))
	assert.Equal(t, types.MemoryDefinition, InferMemoryKind("a grip is defined as an evidence anchor"))
	assert.Equal(t, types.MemoryObservation, InferMemoryKind("the build finished in 3 minutes"))
}

func TestSalienceClampsAndWeights(t *testing.T) {
	s := Salience(1000, types.MemoryObservation, false)
	assert.InDelta(t, 0.45, s, 0.001)

	s = Salience(1000, types.MemoryPreference, true)
	assert.InDelta(t, 0.85, s, 0.001)

	s = Salience(0, types.MemoryObservation, false)
	assert.Equal(t, float32(0), s)
}
