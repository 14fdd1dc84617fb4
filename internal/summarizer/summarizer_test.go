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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMockSummarizeEmpty(t *testing.T) {
	res, err := Mock{}.Summarize(context.Background(), Input{})
	require.NoError(t, err)
	assert.Equal(t, Result{}, res)
}

func TestMockSummarizeProducesTitleAndBullets(t *testing.T) {
	res, err := Mock{}.Summarize(context.Background(), Input{Passages: []string{"user asked about deployment", "assistant explained the steps"}, LevelName: "segment"})
	require.NoError(t, err)
	assert.NotEmpty(t, res.Title)
	assert.Len(t, res.Bullets, 2)
}

func TestParseResponseExtractsFields(t *testing.T) {
	raw := "TITLE: Deployment discussion\nSUMMARY: Covered rollout steps.\nBULLET: uses blue-green deploys\nBULLET: staging first"
	res := parseResponse(raw)
	assert.Equal(t, "Deployment discussion", res.Title)
	assert.Equal(t, "Covered rollout steps.", res.Summary)
	assert.Equal(t, []string{"uses blue-green deploys", "staging first"}, res.Bullets)
}
