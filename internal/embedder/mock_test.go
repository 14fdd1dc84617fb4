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

package embedder

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMockEmbedIsDeterministic(t *testing.T) {
	m := Mock{}
	v1, err := m.Embed(context.Background(), "hello world")
	require.NoError(t, err)
	v2, err := m.Embed(context.Background(), "hello world")
	require.NoError(t, err)
	assert.Equal(t, v1, v2)
	assert.Len(t, v1, 32)
}

func TestMockEmbedDiffersByText(t *testing.T) {
	m := Mock{}
	v1, _ := m.Embed(context.Background(), "hello")
	v2, _ := m.Embed(context.Background(), "goodbye")
	assert.NotEqual(t, v1, v2)
}

func TestMockEmbedBatch(t *testing.T) {
	m := Mock{Dim: 8}
	vecs, err := m.EmbedBatch(context.Background(), []string{"a", "b"})
	require.NoError(t, err)
	assert.Len(t, vecs, 2)
	assert.Len(t, vecs[0], 8)
}
