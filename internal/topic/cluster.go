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

package topic

import (
	"math"
	"time"

	"github.com/kadirpekel/agent-memory/internal/vector"
)

// dbscan assigns each point a cluster id (0-based) or -1 for noise, using
// cosine distance and a fixed neighbourhood radius eps. This is the
// textbook DBSCAN: expand a cluster from any unvisited core point (one with
// at least minPts neighbours within eps) by breadth-first absorption of its
// density-reachable neighbours.
func dbscan(points [][]float32, eps float64, minPts int) []int {
	n := len(points)
	labels := make([]int, n)
	for i := range labels {
		labels[i] = -2 // unvisited
	}

	neighborsOf := func(i int) []int {
		var out []int
		for j := 0; j < n; j++ {
			if j == i {
				continue
			}
			if cosineDistance(points[i], points[j]) <= eps {
				out = append(out, j)
			}
		}
		return out
	}

	cluster := 0
	for i := 0; i < n; i++ {
		if labels[i] != -2 {
			continue
		}
		neighbors := neighborsOf(i)
		if len(neighbors)+1 < minPts {
			labels[i] = -1 // noise, may be absorbed later by another cluster
			continue
		}

		labels[i] = cluster
		queue := append([]int{}, neighbors...)
		for len(queue) > 0 {
			j := queue[0]
			queue = queue[1:]
			if labels[j] == -1 {
				labels[j] = cluster
			}
			if labels[j] != -2 {
				continue
			}
			labels[j] = cluster
			jNeighbors := neighborsOf(j)
			if len(jNeighbors)+1 >= minPts {
				queue = append(queue, jNeighbors...)
			}
		}
		cluster++
	}
	return labels
}

func cosineDistance(a, b []float32) float64 {
	return 1 - float64(cosineSimilarity(a, b))
}

func cosineSimilarity(a, b []float32) float32 {
	if len(a) == 0 || len(b) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(na) * math.Sqrt(nb)))
}

// centroidOf returns the mean embedding of members, the topic's representative
// vector for resurrection matching and related-topic similarity.
func centroidOf(members []vector.Doc) []float32 {
	if len(members) == 0 {
		return nil
	}
	dim := len(members[0].Embedding)
	sum := make([]float64, dim)
	for _, m := range members {
		for i, v := range m.Embedding {
			if i < dim {
				sum[i] += float64(v)
			}
		}
	}
	out := make([]float32, dim)
	for i, v := range sum {
		out[i] = float32(v / float64(len(members)))
	}
	return out
}

// mentionsPerDay buckets members by the UTC calendar day of their timestamp.
func mentionsPerDay(members []vector.Doc) map[string]int {
	out := make(map[string]int, len(members))
	for _, m := range members {
		day := time.UnixMilli(m.TimestampMs).UTC().Format("2006-01-02")
		out[day]++
	}
	return out
}
