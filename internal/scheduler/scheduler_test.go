package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/nsefeed/pkg/logger"
)

type stubJob struct {
	name     string
	schedule string

	mu    sync.Mutex
	calls int
	errs  []error // returned in order, nil afterwards
}

func (j *stubJob) Name() string     { return j.name }
func (j *stubJob) Schedule() string { return j.schedule }

func (j *stubJob) Run(ctx context.Context) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.calls++
	if len(j.errs) > 0 {
		err := j.errs[0]
		j.errs = j.errs[1:]
		return err
	}
	return nil
}

func newTestScheduler(maxRetries int) (*Scheduler, *[]time.Duration) {
	s := New(logger.NewNop(), maxRetries, time.Minute)
	var slept []time.Duration
	s.sleep = func(ctx context.Context, d time.Duration) error {
		slept = append(slept, d)
		return ctx.Err()
	}
	return s, &slept
}

func TestAddJob(t *testing.T) {
	s, _ := newTestScheduler(0)

	require.NoError(t, s.AddJob(&stubJob{name: "b", schedule: "0 0 19 * * MON-FRI"}))
	require.NoError(t, s.AddJob(&stubJob{name: "a", schedule: "@every 1h"}))
	assert.Error(t, s.AddJob(&stubJob{name: "a", schedule: "@every 1h"}), "duplicate name")
	assert.Error(t, s.AddJob(&stubJob{name: "c", schedule: "not a cron"}))

	assert.Equal(t, []string{"a", "b"}, s.GetAllJobs())

	stats := s.GetJobStats()
	require.Contains(t, stats, "b")
	assert.Equal(t, "0 0 19 * * MON-FRI", stats["b"].Schedule)
	assert.Zero(t, stats["b"].TotalRuns)
}

func TestRunJobRetries(t *testing.T) {
	s, slept := newTestScheduler(2)
	job := &stubJob{name: "flaky", schedule: "@daily", errs: []error{errors.New("boom"), errors.New("boom")}}
	require.NoError(t, s.AddJob(job))

	result, err := s.RunJob(context.Background(), "flaky")
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, 3, result.Attempts)
	assert.NotEmpty(t, result.RunID)
	assert.Equal(t, []time.Duration{time.Minute, time.Minute}, *slept)

	history, err := s.GetJobHistory("flaky")
	require.NoError(t, err)
	require.Len(t, history.Results, 1)
	assert.Equal(t, result.RunID, history.Results[0].RunID)
}

func TestRunJobFailure(t *testing.T) {
	s, _ := newTestScheduler(1)
	job := &stubJob{name: "broken", schedule: "@daily", errs: []error{errors.New("one"), errors.New("two"), errors.New("three")}}
	require.NoError(t, s.AddJob(job))

	result, err := s.RunJob(context.Background(), "broken")
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Equal(t, 2, result.Attempts)
	assert.Equal(t, "two", result.Error)

	stats := s.GetJobStats()["broken"]
	assert.Equal(t, 1, stats.FailureCount)
	assert.Equal(t, 0.0, stats.SuccessRate)
	assert.NotNil(t, stats.LastFailure)
	assert.Nil(t, stats.LastSuccess)
}

func TestRunJobCancelledContextStopsRetrying(t *testing.T) {
	s, _ := newTestScheduler(5)
	job := &stubJob{name: "slow", schedule: "@daily", errs: []error{errors.New("boom")}}
	require.NoError(t, s.AddJob(job))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := s.RunJob(ctx, "slow")
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Equal(t, 1, job.calls)
	assert.Equal(t, context.Canceled.Error(), result.Error)
}

func TestRunUnknownJob(t *testing.T) {
	s, _ := newTestScheduler(0)
	_, err := s.RunJob(context.Background(), "missing")
	assert.Error(t, err)
}

func TestRemoveJob(t *testing.T) {
	s, _ := newTestScheduler(0)
	require.NoError(t, s.AddJob(&stubJob{name: "a", schedule: "@daily"}))

	require.NoError(t, s.RemoveJob("a"))
	assert.Empty(t, s.GetAllJobs())
	assert.Error(t, s.RemoveJob("a"))
}

func TestStartStop(t *testing.T) {
	s, _ := newTestScheduler(0)
	require.NoError(t, s.AddJob(&stubJob{name: "a", schedule: "@daily"}))

	s.Start()
	stats := s.GetJobStats()["a"]
	require.NotNil(t, stats.NextRun)
	assert.True(t, stats.NextRun.After(time.Now()))
	s.Stop()
}

func TestJobHistoryLimit(t *testing.T) {
	h := &JobHistory{}
	for i := 0; i < historyLimit+10; i++ {
		h.AddResult(JobResult{Success: i%2 == 0})
	}

	assert.Len(t, h.Results, historyLimit)
	assert.Len(t, h.GetLatestResults(5), 5)
	assert.Empty(t, h.GetLatestResults(0))
	assert.Len(t, h.GetFailedResults(), historyLimit/2)
	assert.InDelta(t, 0.5, h.GetSuccessRate(), 1e-9)
}
