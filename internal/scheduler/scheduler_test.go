package scheduler

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/aegis-pulse/pkg/logger"
)

type fakeJob struct {
	name     string
	schedule string
	calls    atomic.Int32
	run      func(ctx context.Context, call int32) error
}

func (j *fakeJob) Name() string     { return j.name }
func (j *fakeJob) Schedule() string { return j.schedule }
func (j *fakeJob) Run(ctx context.Context) error {
	n := j.calls.Add(1)
	if j.run == nil {
		return nil
	}
	return j.run(ctx, n)
}

func fastOptions() Options {
	return Options{MaxRetries: 2, RetryDelay: time.Millisecond, JobTimeout: time.Second}
}

func waitForRuns(t *testing.T, s *Scheduler, name string, n int) *JobHistory {
	t.Helper()
	var h *JobHistory
	require.Eventually(t, func() bool {
		var err error
		h, err = s.GetJobHistory(name)
		return err == nil && len(h.Results) >= n
	}, 2*time.Second, 5*time.Millisecond)
	return h
}

func TestAddJob_RejectsDuplicateAndBadSchedule(t *testing.T) {
	s := New(fastOptions(), logger.Nop())

	require.NoError(t, s.AddJob(&fakeJob{name: "a", schedule: "@every 1h"}))
	assert.Error(t, s.AddJob(&fakeJob{name: "a", schedule: "@every 1h"}))
	assert.Error(t, s.AddJob(&fakeJob{name: "b", schedule: "not a schedule"}))
	assert.Equal(t, []string{"a"}, s.GetAllJobs())

	require.NoError(t, s.RemoveJob("a"))
	assert.Error(t, s.RemoveJob("a"))
	assert.Empty(t, s.GetAllJobs())
}

func TestRunJob_RetriesThenSucceeds(t *testing.T) {
	s := New(fastOptions(), logger.Nop())
	job := &fakeJob{name: "flaky", schedule: "@every 1h", run: func(_ context.Context, call int32) error {
		if call < 3 {
			return errors.New("boom")
		}
		return nil
	}}
	require.NoError(t, s.AddJob(job))

	require.NoError(t, s.RunJob("flaky"))
	h := waitForRuns(t, s, "flaky", 1)

	assert.True(t, h.Results[0].Success)
	assert.Equal(t, 3, h.Results[0].Attempts)
	assert.EqualValues(t, 3, job.calls.Load())
	assert.Equal(t, 1.0, h.GetSuccessRate())
}

func TestRunJob_FailsAfterAllRetries(t *testing.T) {
	s := New(fastOptions(), logger.Nop())
	job := &fakeJob{name: "broken", schedule: "@every 1h", run: func(context.Context, int32) error {
		return errors.New("always")
	}}
	require.NoError(t, s.AddJob(job))

	require.NoError(t, s.RunJob("broken"))
	h := waitForRuns(t, s, "broken", 1)

	assert.False(t, h.Results[0].Success)
	assert.Equal(t, "always", h.Results[0].Error)
	assert.EqualValues(t, 3, job.calls.Load())

	stats := s.GetJobStats()["broken"]
	assert.Equal(t, 1, stats.FailureCount)
	require.NotNil(t, stats.LastFailure)
	assert.Nil(t, stats.LastSuccess)
}

func TestRunJob_SkippedIsNotRetried(t *testing.T) {
	s := New(fastOptions(), logger.Nop())
	job := &fakeJob{name: "busy", schedule: "@every 1h", run: func(context.Context, int32) error {
		return ErrSkipped
	}}
	require.NoError(t, s.AddJob(job))

	require.NoError(t, s.RunJob("busy"))
	h := waitForRuns(t, s, "busy", 1)

	assert.True(t, h.Results[0].Success)
	assert.True(t, h.Results[0].Skipped)
	assert.EqualValues(t, 1, job.calls.Load())
}

func TestRunJob_OverlappingRunIsDropped(t *testing.T) {
	s := New(fastOptions(), logger.Nop())
	release := make(chan struct{})
	started := make(chan struct{})
	var once sync.Once
	job := &fakeJob{name: "slow", schedule: "@every 1h", run: func(ctx context.Context, _ int32) error {
		once.Do(func() { close(started) })
		<-release
		return nil
	}}
	require.NoError(t, s.AddJob(job))

	require.NoError(t, s.RunJob("slow"))
	<-started
	s.runJob(job) // returns at once while the first run holds the slot
	close(release)

	waitForRuns(t, s, "slow", 1)
	s.Stop()

	h, err := s.GetJobHistory("slow")
	require.NoError(t, err)
	assert.Len(t, h.Results, 1)
	assert.EqualValues(t, 1, job.calls.Load())
}

func TestStop_CancelsRunningJob(t *testing.T) {
	s := New(Options{MaxRetries: 5, RetryDelay: time.Hour}, logger.Nop())
	started := make(chan struct{})
	job := &fakeJob{name: "long", schedule: "@every 1h", run: func(ctx context.Context, call int32) error {
		if call == 1 {
			close(started)
		}
		<-ctx.Done()
		return ctx.Err()
	}}
	require.NoError(t, s.AddJob(job))
	s.Start()

	require.NoError(t, s.RunJob("long"))
	<-started
	s.Stop()

	h, err := s.GetJobHistory("long")
	require.NoError(t, err)
	require.Len(t, h.Results, 1)
	assert.False(t, h.Results[0].Success)
	assert.EqualValues(t, 1, job.calls.Load())
}

func TestRunJob_PanicIsRecovered(t *testing.T) {
	s := New(fastOptions(), logger.Nop())
	job := &fakeJob{name: "panicky", schedule: "@every 1h", run: func(_ context.Context, call int32) error {
		if call == 1 {
			panic("nil map")
		}
		return nil
	}}
	require.NoError(t, s.AddJob(job))

	require.NoError(t, s.RunJob("panicky"))
	h := waitForRuns(t, s, "panicky", 1)

	assert.True(t, h.Results[0].Success)
	assert.Equal(t, 2, h.Results[0].Attempts)
}

func TestRunJob_UnknownJob(t *testing.T) {
	s := New(fastOptions(), logger.Nop())
	assert.Error(t, s.RunJob("missing"))
	_, err := s.GetJobHistory("missing")
	assert.Error(t, err)
}

func TestJobHistory_KeepsLastHundred(t *testing.T) {
	h := &JobHistory{}
	for i := 0; i < maxHistory+10; i++ {
		h.AddResult(JobResult{Attempts: i, Success: i%2 == 0})
	}

	assert.Len(t, h.Results, maxHistory)
	assert.Equal(t, 10, h.Results[0].Attempts)
	assert.Len(t, h.GetLatestResults(3), 3)
	assert.Len(t, h.GetLatestResults(500), maxHistory)
	assert.InDelta(t, 0.5, h.GetSuccessRate(), 1e-9)
	assert.Empty(t, (&JobHistory{}).GetLatestResults(1))
}
