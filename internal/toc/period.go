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
	"fmt"
	"time"

	"github.com/kadirpekel/agent-memory/internal/types"
)

// DayPeriod renders t's calendar day as a period id, e.g. "2026-01-30".
func DayPeriod(t time.Time) string { return t.Format("2006-01-02") }

// WeekPeriod renders t's ISO-8601 week as a period id, e.g. "2026-W05".
func WeekPeriod(t time.Time) string {
	year, week := t.ISOWeek()
	return fmt.Sprintf("%04d-W%02d", year, week)
}

// MonthPeriod renders t's calendar month as a period id, e.g. "2026-01".
func MonthPeriod(t time.Time) string { return t.Format("2006-01") }

// YearPeriod renders t's calendar year as a period id, e.g. "2026".
func YearPeriod(t time.Time) string { return t.Format("2006") }

// PeriodFor computes the period id a timestamp falls into at the given
// level and timezone. Segment has no period id of its own; callers needing
// a segment's identity use its NodeID directly.
func PeriodFor(level types.TocLevel, ms int64, loc *time.Location) string {
	if loc == nil {
		loc = time.Local
	}
	t := time.UnixMilli(ms).In(loc)
	switch level {
	case types.LevelDay:
		return DayPeriod(t)
	case types.LevelWeek:
		return WeekPeriod(t)
	case types.LevelMonth:
		return MonthPeriod(t)
	case types.LevelYear:
		return YearPeriod(t)
	default:
		return ""
	}
}
