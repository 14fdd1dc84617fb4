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
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterJobRejectsDuplicateName(t *testing.T) {
	s := New(Config{TickInterval: time.Hour})
	defer s.Shutdown()

	sched := MustParseSchedule("0 0 1 * * *")
	require.NoError(t, s.RegisterJob(Job{Name: "j1", Schedule: sched, Handler: func(context.Context) error { return nil }}))
	err := s.RegisterJob(Job{Name: "j1", Schedule: sched, Handler: func(context.Context) error { return nil }})
	assert.Error(t, err)
}

func TestJobRunsAndRecordsSuccess(t *testing.T) {
	s := New(Config{TickInterval: 10 * time.Millisecond})
	defer s.Shutdown()

	ran := make(chan struct{}, 1)
	sched := MustParseSchedule("* * * * * *")
	require.NoError(t, s.RegisterJob(Job{
		Name: "ping", Schedule: sched,
		Handler: func(context.Context) error { ran <- struct{}{}; return nil },
	}))

	select {
	case <-ran:
	case <-time.After(2 * time.Second):
		t.Fatal("job did not run in time")
	}
	time.Sleep(20 * time.Millisecond)

	statuses := s.Status()
	require.Len(t, statuses, 1)
	assert.Equal(t, RunSuccess, statuses[0].LastResult)
	assert.GreaterOrEqual(t, statuses[0].RunCount, int64(1))
}

func TestJobFailureRecordedAndJobStaysRegistered(t *testing.T) {
	s := New(Config{TickInterval: 10 * time.Millisecond})
	defer s.Shutdown()

	sched := MustParseSchedule("* * * * * *")
	require.NoError(t, s.RegisterJob(Job{
		Name: "flaky", Schedule: sched,
		Handler: func(context.Context) error { return errors.New("boom") },
	}))

	time.Sleep(50 * time.Millisecond)
	statuses := s.Status()
	require.Len(t, statuses, 1)
	assert.Equal(t, RunFailed, statuses[0].LastResult)
	assert.GreaterOrEqual(t, statuses[0].ErrorCount, int64(1))
}

func TestJobPanicRecoveredAsFailed(t *testing.T) {
	s := New(Config{TickInterval: 10 * time.Millisecond})
	defer s.Shutdown()

	sched := MustParseSchedule("* * * * * *")
	require.NoError(t, s.RegisterJob(Job{
		Name: "panicky", Schedule: sched,
		Handler: func(context.Context) error { panic("oh no") },
	}))

	time.Sleep(50 * time.Millisecond)
	statuses := s.Status()
	require.Len(t, statuses, 1)
	assert.Equal(t, RunFailed, statuses[0].LastResult)
}

func TestPauseJobSkipsExecution(t *testing.T) {
	s := New(Config{TickInterval: 10 * time.Millisecond})
	defer s.Shutdown()

	var runs int
	sched := MustParseSchedule("* * * * * *")
	require.NoError(t, s.RegisterJob(Job{
		Name: "pausable", Schedule: sched,
		Handler: func(context.Context) error { runs++; return nil },
	}))
	require.NoError(t, s.PauseJob("pausable"))
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 0, runs)

	require.NoError(t, s.ResumeJob("pausable"))
	time.Sleep(50 * time.Millisecond)
	assert.Greater(t, runs, 0)
}

func TestShutdownCancelsRunningHandler(t *testing.T) {
	s := New(Config{TickInterval: 10 * time.Millisecond, ShutdownGrace: 200 * time.Millisecond})

	started := make(chan struct{})
	sched := MustParseSchedule("* * * * * *")
	require.NoError(t, s.RegisterJob(Job{
		Name: "long", Schedule: sched,
		Handler: func(ctx context.Context) error {
			close(started)
			<-ctx.Done()
			return ctx.Err()
		},
	}))

	<-started
	done := make(chan struct{})
	go func() { s.Shutdown(); close(done) }()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("shutdown did not return within grace period")
	}
}
