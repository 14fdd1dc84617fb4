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
	"fmt"
	"time"

	"github.com/kadirpekel/agent-memory/internal/config"
	"github.com/kadirpekel/agent-memory/internal/outbox"
	"github.com/kadirpekel/agent-memory/internal/scheduler"
	"github.com/kadirpekel/agent-memory/internal/store"
	"github.com/kadirpekel/agent-memory/internal/toc"
	"github.com/kadirpekel/agent-memory/internal/types"
)

const checkpointSegmentBuilder = "segment_builder.watermark"

// defaultCron holds spec.md §4.11's scheduled-job defaults, keyed by job
// name. cfg.Scheduler.Jobs overrides any entry present there.
var defaultCron = map[string]string{
	"rollup_day":       "0 0 1 * * *",
	"rollup_week":      "0 0 2 * * 0",
	"rollup_month":     "0 0 3 1 * *",
	"rollup_year":      "0 0 4 1 1 *",
	"segment_builder":  "0 */5 * * * *",
	"vector_prune":     "0 30 1 * * *",
	"keyword_prune":    "0 30 1 * * *",
	"compact":          "0 0 3 * * 0",
	"topic_extraction": "0 0 2 * * *",
	"topic_prune":      "0 0 2 * * 0",
	"outbox_gc":        "0 0 5 * * *",
	"outbox_drain":     "0 */1 * * * *",
}

func (s *Service) cronFor(name string) (scheduler.Schedule, error) {
	expr := defaultCron[name]
	if v, ok := s.Config.Scheduler.Jobs[name]; ok && v != "" {
		expr = v
	}
	return scheduler.ParseSchedule(expr)
}

func (s *Service) registerJobs(cfg *config.Config) error {
	specs := []struct {
		name    string
		handler scheduler.Handler
	}{
		{"rollup_day", s.rollupJob(types.LevelDay)},
		{"rollup_week", s.rollupJob(types.LevelWeek)},
		{"rollup_month", s.rollupJob(types.LevelMonth)},
		{"rollup_year", s.rollupJob(types.LevelYear)},
		{"segment_builder", s.segmentBuilderJob},
		{"outbox_drain", s.outboxDrainJob},
		{"outbox_gc", s.outboxGCJob},
		{"compact", s.compactJob},
	}
	if cfg.Vector.Enabled == nil || *cfg.Vector.Enabled {
		specs = append(specs, struct {
			name    string
			handler scheduler.Handler
		}{"vector_prune", s.vectorPruneJob})
	}
	if cfg.Keyword.Enabled != nil && *cfg.Keyword.Enabled {
		specs = append(specs, struct {
			name    string
			handler scheduler.Handler
		}{"keyword_prune", s.keywordPruneJob})
	}
	if cfg.Topics.Enabled && s.Topics != nil {
		specs = append(specs,
			struct {
				name    string
				handler scheduler.Handler
			}{"topic_extraction", s.topicExtractionJob},
			struct {
				name    string
				handler scheduler.Handler
			}{"topic_prune", s.topicPruneJob},
		)
	}

	for _, sp := range specs {
		sched, err := s.cronFor(sp.name)
		if err != nil {
			return fmt.Errorf("service: parse schedule for %s: %w", sp.name, err)
		}
		if err := s.Scheduler.RegisterJob(scheduler.Job{
			Name:     sp.name,
			Schedule: sched,
			Handler:  s.wrapJob(sp.name, sp.handler),
		}); err != nil {
			return fmt.Errorf("service: register job %s: %w", sp.name, err)
		}
	}
	return nil
}

// wrapJob records a run's outcome to metrics, matching spec.md §7's
// scheduler error-handling policy: a failing or panicking handler is
// recorded as Failed and the job stays registered for its next tick.
func (s *Service) wrapJob(name string, h scheduler.Handler) scheduler.Handler {
	return func(ctx context.Context) error {
		err := h(ctx)
		result := "success"
		if err != nil {
			result = "failed"
		}
		s.Observability.Metrics().SchedulerRun(name, result)
		return err
	}
}

// rollupJob builds the handler for one TOC level's rollup job: it computes
// the single period just completed relative to now, in the scheduler's
// configured timezone, and rolls it up.
func (s *Service) rollupJob(level types.TocLevel) scheduler.Handler {
	return func(ctx context.Context) error {
		loc := s.TOC.Config.Location
		if loc == nil {
			loc = time.UTC
		}
		now := time.Now().In(loc)
		periodID := previousPeriod(level, now, loc)
		if periodID == "" {
			return nil
		}
		results := s.TOC.RollupDuePeriods(ctx, level, []string{periodID})
		for _, r := range results {
			if r.Err != nil {
				return fmt.Errorf("rollup %s/%s: %w", level, r.PeriodID, r.Err)
			}
		}
		return nil
	}
}

func previousPeriod(level types.TocLevel, now time.Time, loc *time.Location) string {
	switch level {
	case types.LevelDay:
		return toc.DayPeriod(now.AddDate(0, 0, -1))
	case types.LevelWeek:
		return toc.WeekPeriod(now.AddDate(0, 0, -7))
	case types.LevelMonth:
		return toc.MonthPeriod(now.AddDate(0, -1, 0))
	case types.LevelYear:
		return toc.YearPeriod(now.AddDate(-1, 0, 0))
	default:
		return ""
	}
}

// segmentBuilderJob is the online trigger for segmentation: events arrive
// continuously via IngestEvent, but closing them into TOC segments happens
// here, periodically, session by session. The watermark checkpoint stores a
// millisecond timestamp rather than an outbox sequence, reusing the
// checkpoints table for a different kind of progress marker.
func (s *Service) segmentBuilderJob(ctx context.Context) error {
	cp, err := s.Store.GetCheckpoint(ctx, checkpointSegmentBuilder)
	if err != nil {
		return err
	}
	fromMs := int64(cp.LastSequence)

	events, err := s.Store.ScanEvents(ctx, store.ScanEventsOpts{FromMs: fromMs, Limit: 50_000})
	if err != nil {
		return err
	}
	if len(events) == 0 {
		return nil
	}

	bySession := make(map[string][]*types.Event)
	var maxMs int64
	for _, e := range events {
		bySession[e.SessionID] = append(bySession[e.SessionID], e)
		if e.TimestampMs > maxMs {
			maxMs = e.TimestampMs
		}
	}

	for _, sessionEvents := range bySession {
		if _, err := s.TOC.CloseSegments(ctx, sessionEvents); err != nil {
			return err
		}
	}
	return s.Store.SetCheckpoint(ctx, checkpointSegmentBuilder, uint64(maxMs+1))
}

func (s *Service) outboxDrainJob(ctx context.Context) error {
	if err := s.KeywordConsumer.RunOnce(ctx); err != nil {
		return err
	}
	if err := s.VectorConsumer.RunOnce(ctx); err != nil {
		return err
	}
	if s.TopicConsumer != nil {
		if err := s.TopicConsumer.RunOnce(ctx); err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) outboxGCJob(ctx context.Context) error {
	_, err := outbox.GC(ctx, s.Store)
	return err
}

func (s *Service) compactJob(ctx context.Context) error {
	return s.Store.Compact(ctx, nil)
}

func (s *Service) vectorPruneJob(ctx context.Context) error {
	n, err := s.Vector.Prune(ctx, time.Now().UnixMilli(), s.retentionByLevel())
	if err != nil {
		return err
	}
	s.Observability.Metrics().LastPruneCount("vector", n)
	return nil
}

func (s *Service) keywordPruneJob(ctx context.Context) error {
	n, err := s.Keyword.Prune(ctx, time.Now().UnixMilli(), s.retentionByLevel())
	if err != nil {
		return err
	}
	s.Observability.Metrics().LastPruneCount("keyword", n)
	return nil
}

func (s *Service) retentionByLevel() map[types.TocLevel]time.Duration {
	r := s.Config.Vector.Retention
	return map[types.TocLevel]time.Duration{
		types.LevelSegment: time.Duration(r.SegmentDays) * 24 * time.Hour,
		types.LevelDay:     time.Duration(r.DayDays) * 24 * time.Hour,
		types.LevelWeek:    time.Duration(r.WeekDays) * 24 * time.Hour,
	}
}

func (s *Service) topicExtractionJob(ctx context.Context) error {
	_, err := s.Topics.Cluster(ctx, time.Now().UnixMilli())
	return err
}

func (s *Service) topicPruneJob(ctx context.Context) error {
	_, err := s.Topics.PruneInactive(ctx, time.Now().UnixMilli())
	return err
}
