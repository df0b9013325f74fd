package scheduler

import (
	"context"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingJob struct {
	name string
	runs atomic.Int32
	err  error
}

func (j *countingJob) Name() string        { return j.name }
func (j *countingJob) Description() string { return "counts runs" }
func (j *countingJob) Run(ctx context.Context) error {
	j.runs.Add(1)
	return j.err
}

func newTestScheduler() *Scheduler {
	return New(Config{Logger: slog.New(slog.NewTextHandler(io.Discard, nil))})
}

func TestScheduler_RejectsDuplicateJobNames(t *testing.T) {
	s := newTestScheduler()
	job := &countingJob{name: "reconcile-ledger"}

	require.NoError(t, s.Register(job, NewIntervalSchedule(time.Hour)))
	err := s.Register(&countingJob{name: "reconcile-ledger"}, NewIntervalSchedule(time.Hour))

	assert.ErrorIs(t, err, ErrJobAlreadyExists)
}

func TestScheduler_RunNowExecutesImmediately(t *testing.T) {
	s := newTestScheduler()
	job := &countingJob{name: "reconcile-ledger"}
	require.NoError(t, s.Register(job, NewIntervalSchedule(time.Hour)))

	result, err := s.RunNow(context.Background(), "reconcile-ledger")

	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.EqualValues(t, 1, job.runs.Load())
}

func TestScheduler_RunNowUnknownJob(t *testing.T) {
	s := newTestScheduler()

	_, err := s.RunNow(context.Background(), "no-such-job")

	assert.ErrorIs(t, err, ErrJobNotFound)
}

func TestScheduler_StartStop(t *testing.T) {
	s := newTestScheduler()
	require.NoError(t, s.Register(&countingJob{name: "noop"}, NewIntervalSchedule(time.Hour)))

	require.NoError(t, s.Start(context.Background()))
	assert.True(t, s.IsRunning())
	assert.ErrorIs(t, s.Start(context.Background()), ErrSchedulerAlreadyRunning)

	require.NoError(t, s.Stop())
	assert.False(t, s.IsRunning())
	assert.ErrorIs(t, s.Stop(), ErrSchedulerNotRunning)
}

func TestScheduler_ListJobsReportsSchedule(t *testing.T) {
	s := newTestScheduler()
	require.NoError(t, s.Register(&countingJob{name: "reconcile-ledger"}, NewDailySchedule(3, 30)))

	jobs := s.ListJobs()

	require.Len(t, jobs, 1)
	assert.Equal(t, "reconcile-ledger", jobs[0].Name)
	assert.Equal(t, "@daily 03:30 UTC", jobs[0].Schedule)
	assert.False(t, jobs[0].NextRun.IsZero())
}

func TestIntervalSchedule_Next(t *testing.T) {
	s := NewIntervalSchedule(15 * time.Minute)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	assert.Equal(t, now.Add(15*time.Minute), s.Next(now))
}

func TestDailySchedule_Next(t *testing.T) {
	s := NewDailySchedule(3, 30)

	before := time.Date(2026, 3, 1, 2, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2026, 3, 1, 3, 30, 0, 0, time.UTC), s.Next(before))

	after := time.Date(2026, 3, 1, 4, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2026, 3, 2, 3, 30, 0, 0, time.UTC), s.Next(after))

	exactly := time.Date(2026, 3, 1, 3, 30, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2026, 3, 2, 3, 30, 0, 0, time.UTC), s.Next(exactly))
}
