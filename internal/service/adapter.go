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

package service

import (
	"context"
	"time"

	"github.com/kadirpekel/agent-memory/internal/ingest"
	"github.com/kadirpekel/agent-memory/internal/vector"
)

// vectorSearcherAdapter narrows a vector.Provider down to the
// ingest.VectorSearcher shape Ingest's novelty check needs, translating the
// untyped filter argument (always nil, from Pipeline.checkNovelty) into a
// zero-value vector.Filters.
type vectorSearcherAdapter struct {
	provider vector.Provider
}

func (a *vectorSearcherAdapter) Search(ctx context.Context, embedding []float32, topK int, _ any) ([]ingest.NearestNeighbor, error) {
	hits, err := a.provider.Search(ctx, embedding, topK, vector.Filters{})
	if err != nil {
		return nil, err
	}
	out := make([]ingest.NearestNeighbor, len(hits))
	for i, h := range hits {
		out[i] = ingest.NearestNeighbor{DocID: h.DocID, Similarity: h.Score}
	}
	return out, nil
}

func (a *vectorSearcherAdapter) Healthy() bool {
	return a.provider.Healthy()
}

func schedulerTimezone(name string) (*time.Location, error) {
	if name == "" {
		return time.UTC, nil
	}
	return time.LoadLocation(name)
}
