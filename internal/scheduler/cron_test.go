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

package scheduler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseScheduleRejectsWrongFieldCount(t *testing.T) {
	_, err := ParseSchedule("0 0 1 * *")
	assert.Error(t, err)
}

func TestScheduleNextDailyAtOneAM(t *testing.T) {
	sched, err := ParseSchedule("0 0 1 * * *")
	require.NoError(t, err)

	after := time.Date(2026, 7, 30, 12, 0, 0, 0, time.UTC)
	next, err := sched.Next(after)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 7, 31, 1, 0, 0, 0, time.UTC), next)
}

func TestScheduleNextWeeklySunday(t *testing.T) {
	sched, err := ParseSchedule("0 0 2 * * 0")
	require.NoError(t, err)

	after := time.Date(2026, 7, 30, 12, 0, 0, 0, time.UTC) // Thursday
	next, err := sched.Next(after)
	require.NoError(t, err)
	assert.Equal(t, time.Sunday, next.Weekday())
	assert.Equal(t, 2, next.Hour())
}

func TestScheduleNextMonthlyFirstOfMonth(t *testing.T) {
	sched, err := ParseSchedule("0 0 3 1 * *")
	require.NoError(t, err)

	after := time.Date(2026, 7, 30, 12, 0, 0, 0, time.UTC)
	next, err := sched.Next(after)
	require.NoError(t, err)
	assert.Equal(t, 1, next.Day())
	assert.Equal(t, time.August, next.Month())
}

func TestScheduleStepExpression(t *testing.T) {
	sched, err := ParseSchedule("0 */15 * * * *")
	require.NoError(t, err)

	after := time.Date(2026, 7, 30, 12, 1, 0, 0, time.UTC)
	next, err := sched.Next(after)
	require.NoError(t, err)
	assert.Equal(t, 15, next.Minute())
}
