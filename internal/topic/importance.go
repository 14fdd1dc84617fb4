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
)

const recencyWindowDays = 7

// computeImportance scores a topic by its mentions-per-day series, each
// day's contribution decayed exponentially by age with half-life
// halfLifeDays, and multiplied by recencyBoost for days within the last
// recencyWindowDays (spec.md §4.7).
func computeImportance(mentionsPerDay map[string]int, nowMs int64, halfLifeDays, recencyBoost float64) float64 {
	if halfLifeDays <= 0 {
		halfLifeDays = 30
	}
	if recencyBoost <= 0 {
		recencyBoost = 1
	}
	now := time.UnixMilli(nowMs).UTC()
	lambda := math.Ln2 / halfLifeDays

	var score float64
	for day, count := range mentionsPerDay {
		t, err := time.Parse("2006-01-02", day)
		if err != nil {
			continue
		}
		ageDays := now.Sub(t).Hours() / 24
		if ageDays < 0 {
			ageDays = 0
		}
		weight := math.Exp(-lambda * ageDays)
		if ageDays <= recencyWindowDays {
			weight *= recencyBoost
		}
		score += float64(count) * weight
	}
	return score
}
