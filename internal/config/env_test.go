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

package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExpandEnvStringBraced(t *testing.T) {
	t.Setenv("AGENT_MEMORY_TEST_VAR", "hello")
	assert.Equal(t, "hello world", expandEnvString("${AGENT_MEMORY_TEST_VAR} world"))
}

func TestExpandEnvStringWithDefault(t *testing.T) {
	assert.Equal(t, "fallback", expandEnvString("${AGENT_MEMORY_TEST_UNSET:-fallback}"))
}

func TestExpandEnvStringDefaultNotUsedWhenSet(t *testing.T) {
	t.Setenv("AGENT_MEMORY_TEST_VAR2", "set-value")
	assert.Equal(t, "set-value", expandEnvString("${AGENT_MEMORY_TEST_VAR2:-fallback}"))
}

func TestExpandEnvStringBareDollar(t *testing.T) {
	t.Setenv("AGENT_MEMORY_TEST_VAR3", "bare")
	assert.Equal(t, "bare-suffix", expandEnvString("$AGENT_MEMORY_TEST_VAR3-suffix"))
}

func TestExpandEnvVarsRecursesMapsAndSlices(t *testing.T) {
	t.Setenv("AGENT_MEMORY_TEST_VAR4", "deep")
	doc := map[string]any{
		"a": []any{"${AGENT_MEMORY_TEST_VAR4}", "literal"},
		"b": map[string]any{"c": "${AGENT_MEMORY_TEST_VAR4}"},
	}
	out := expandEnvVars(doc).(map[string]any)
	assert.Equal(t, "deep", out["a"].([]any)[0])
	assert.Equal(t, "literal", out["a"].([]any)[1])
	assert.Equal(t, "deep", out["b"].(map[string]any)["c"])
}

func TestEnvOverridesCollectsPrefixedVars(t *testing.T) {
	t.Setenv("MEMORY_CORE__PORT", "9100")
	overrides := envOverrides(envPrefix)
	assert.Equal(t, "9100", overrides["core.port"])
}

func TestApplyEnvOverridesSetsDottedPath(t *testing.T) {
	doc := map[string]any{}
	applyEnvOverrides(doc, map[string]string{"core.port": "9100"})
	core, ok := doc["core"].(map[string]any)
	assert.True(t, ok)
	assert.Equal(t, "9100", core["port"])
}
