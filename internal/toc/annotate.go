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
	"strings"

	"github.com/kadirpekel/agent-memory/internal/types"
)

// InferMemoryKind applies spec.md §4.10's keyword rules to classify text.
// Rules are checked in order; the first match wins.
func InferMemoryKind(text string) types.MemoryKind {
	lower := strings.ToLower(text)
	switch {
	case containsAny(lower, "prefer", "like to", "i like", "avoid"):
		return types.MemoryPreference
	case containsAny(lower, "must", "should", "require"):
		return types.MemoryConstraint
	case containsAny(lower, "step 1", "first,", "first step", "then "):
		return types.MemoryProcedure
	case containsAny(lower, "is defined as", " means "):
		return types.MemoryDefinition
	default:
		return types.MemoryObservation
	}
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

// Salience computes salience_score per spec.md §4.10:
// clamp(0, 1, 0.45*length_density + 0.20*kind_boost + 0.20*pinned_boost).
func Salience(textLen int, kind types.MemoryKind, pinned bool) float32 {
	lengthDensity := float32(textLen) / 500
	if lengthDensity > 1 {
		lengthDensity = 1
	}
	var kindBoost float32
	switch kind {
	case types.MemoryPreference, types.MemoryProcedure, types.MemoryConstraint, types.MemoryDefinition:
		kindBoost = 1
	}
	var pinnedBoost float32
	if pinned {
		pinnedBoost = 1
	}
	return types.ClampSalience(0.45*lengthDensity + 0.20*kindBoost + 0.20*pinnedBoost)
}
