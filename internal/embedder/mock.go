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
	"hash/fnv"
	"math"
)

// Mock is a deterministic Embedder for tests and offline operation: it
// hashes text into a fixed-dimension vector, so identical text always
// produces an identical embedding without calling out to any model. Every
// dimension hashes the whole text, so texts that differ at all get
// unrelated embeddings.
type Mock struct {
	Dim int // default 32
}

func (m Mock) dim() int {
	if m.Dim <= 0 {
		return 32
	}
	return m.Dim
}

func (m Mock) Embed(_ context.Context, text string) ([]float32, error) {
	dim := m.dim()
	vec := make([]float32, dim)
	h := fnv.New64a()
	for i := 0; i < dim; i++ {
		h.Reset()
		_, _ = h.Write([]byte{byte(i)})
		_, _ = h.Write([]byte(text))
		v := float32(h.Sum64()%10000) / 10000
		vec[i] = v
	}
	normalize(vec)
	return vec, nil
}

func (m Mock) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, err := m.Embed(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (m Mock) Dimension() int { return m.dim() }
func (m Mock) Model() string  { return "mock-hash-embedder" }
func (m Mock) Close() error   { return nil }

func normalize(v []float32) {
	var sumSq float64
	for _, x := range v {
		sumSq += float64(x) * float64(x)
	}
	if sumSq == 0 {
		return
	}
	norm := float32(math.Sqrt(sumSq))
	for i := range v {
		v[i] /= norm
	}
}
