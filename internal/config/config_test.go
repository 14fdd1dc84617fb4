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
	"github.com/stretchr/testify/require"
)

func TestSetDefaultsFillsEverySpecDefault(t *testing.T) {
	c := &Config{}
	c.SetDefaults()

	assert.Equal(t, 8765, c.Core.Port)
	assert.Equal(t, "127.0.0.1", c.Core.Host)
	assert.Equal(t, "info", c.Core.LogLevel)
	assert.Equal(t, "mock", c.Summarizer.Provider)
	assert.Equal(t, "mock", c.Embedder.Provider)

	assert.EqualValues(t, 1_800_000, c.Segmentation.TimeThresholdMs)
	assert.Equal(t, 4000, c.Segmentation.TokenThreshold)
	assert.Equal(t, 2, c.Segmentation.MinEventsPerSegment)

	assert.False(t, c.Novelty.Enabled)
	assert.InDelta(t, 0.82, c.Novelty.Threshold, 1e-9)

	require.NotNil(t, c.Vector.Enabled)
	assert.True(t, *c.Vector.Enabled)
	require.NotNil(t, c.Keyword.Enabled)
	assert.False(t, *c.Keyword.Enabled)
	assert.Equal(t, 30, c.Vector.Retention.SegmentDays)
	assert.Equal(t, 365, c.Vector.Retention.DayDays)
	assert.Equal(t, 1825, c.Vector.Retention.WeekDays)

	assert.Equal(t, "UTC", c.Scheduler.DefaultTimezone)
	assert.Equal(t, 30, c.Scheduler.ShutdownTimeoutSecs)

	assert.Equal(t, 3, c.Topics.MinClusterSize)
	assert.InDelta(t, 0.75, c.Topics.SimilarityThresh, 1e-9)
	assert.InDelta(t, 30, c.Topics.HalfLifeDays, 1e-9)
	assert.InDelta(t, 2.0, c.Topics.RecencyBoost, 1e-9)

	require.NotNil(t, c.Ranking.Salience.Enabled)
	assert.True(t, *c.Ranking.Salience.Enabled)
	assert.False(t, c.Ranking.UsageDecay.Enabled)
	assert.Equal(t, "file", c.Provider)
}

func TestSetDefaultsPreservesExplicitFalse(t *testing.T) {
	f := false
	c := &Config{Vector: VectorConfig{IndexLifecycleConfig: IndexLifecycleConfig{Enabled: &f}}}
	c.SetDefaults()
	require.NotNil(t, c.Vector.Enabled)
	assert.False(t, *c.Vector.Enabled)
}

func TestValidateRejectsBadPort(t *testing.T) {
	c := &Config{}
	c.SetDefaults()
	c.Core.Port = 70000
	assert.Error(t, c.Validate())
}

func TestValidateRejectsUnknownSummarizerProvider(t *testing.T) {
	c := &Config{}
	c.SetDefaults()
	c.Summarizer.Provider = "bogus"
	assert.Error(t, c.Validate())
}

func TestValidateRejectsUnknownTimezone(t *testing.T) {
	c := &Config{}
	c.SetDefaults()
	c.Scheduler.DefaultTimezone = "Nowhere/Place"
	assert.Error(t, c.Validate())
}

func TestValidateAcceptsDefaults(t *testing.T) {
	c := &Config{}
	c.SetDefaults()
	assert.NoError(t, c.Validate())
}
