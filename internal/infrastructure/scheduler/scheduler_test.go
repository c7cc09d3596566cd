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
)

type countingJob struct {
	name  string
	runs  atomic.Int32
	err   error
	block chan struct{}
}

func (j *countingJob) Name() string { return j.name }

func (j *countingJob) Run(ctx context.Context) error {
	j.runs.Add(1)
	if j.block != nil {
		select {
		case <-j.block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return j.err
}

func TestEvery(t *testing.T) {
	at := time.Date(2024, 3, 10, 9, 0, 0, 0, time.UTC)
	assert.Equal(t, at.Add(time.Minute), Every(time.Minute).Next(at))
	assert.Equal(t, "@every 5m0s", Every(5*time.Minute).String())
}

func TestRegister_Validation(t *testing.T) {
	s := NewScheduler(SchedulerConfig{})
	job := &countingJob{name: "a"}

	assert.ErrorIs(t, s.Register(nil, Every(time.Second)), ErrNilJob)
	assert.ErrorIs(t, s.Register(job, nil), ErrInvalidSchedule)
	assert.ErrorIs(t, s.Register(job, Every(0)), ErrInvalidSchedule)
	require.NoError(t, s.Register(job, Every(time.Second)))
	assert.ErrorIs(t, s.Register(job, Every(time.Second)), ErrJobAlreadyExists)
}

func TestScheduler_RunsDueJobsAndObserves(t *testing.T) {
	var (
		mu       sync.Mutex
		observed []string
	)
	s := NewScheduler(SchedulerConfig{
		TickInterval: 5 * time.Millisecond,
		RunOnStart:   true,
		Observer: func(job string, _ time.Duration, err error) {
			mu.Lock()
			defer mu.Unlock()
			observed = append(observed, job)
		},
	})
	ok := &countingJob{name: "ok"}
	failing := &countingJob{name: "failing", err: errors.New("boom")}
	require.NoError(t, s.Register(ok, Every(10*time.Millisecond)))
	require.NoError(t, s.Register(failing, Every(time.Hour)))

	require.NoError(t, s.Start(context.Background()))
	assert.ErrorIs(t, s.Start(context.Background()), ErrSchedulerAlreadyRunning)

	require.Eventually(t, func() bool { return ok.runs.Load() >= 3 }, 2*time.Second, 5*time.Millisecond)
	require.NoError(t, s.Stop())
	assert.ErrorIs(t, s.Stop(), ErrSchedulerNotRunning)

	// RunOnStart fired the hourly job exactly once.
	assert.Equal(t, int32(1), failing.runs.Load())

	infos := s.Jobs()
	require.Len(t, infos, 2)
	assert.Equal(t, "failing", infos[0].Name)
	assert.Equal(t, int64(1), infos[0].FailCount)
	assert.EqualError(t, infos[0].LastError, "boom")
	assert.Equal(t, "ok", infos[1].Name)
	assert.Zero(t, infos[1].FailCount)

	mu.Lock()
	defer mu.Unlock()
	assert.Contains(t, observed, "failing")
	assert.Contains(t, observed, "ok")
}

func TestScheduler_NoOverlapAndStopCancels(t *testing.T) {
	s := NewScheduler(SchedulerConfig{TickInterval: 2 * time.Millisecond, RunOnStart: true})
	slow := &countingJob{name: "slow", block: make(chan struct{})}
	require.NoError(t, s.Register(slow, Every(time.Millisecond)))

	require.NoError(t, s.Start(context.Background()))
	require.Eventually(t, func() bool { return slow.runs.Load() == 1 }, time.Second, time.Millisecond)

	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, int32(1), slow.runs.Load())
	assert.Error(t, s.RunNow(context.Background(), "slow"))

	// Stop cancels the blocked run instead of waiting forever.
	require.NoError(t, s.Stop())
	assert.Equal(t, int64(1), s.Jobs()[0].FailCount)
}

func TestRunNow(t *testing.T) {
	s := NewScheduler(SchedulerConfig{})
	job := &countingJob{name: "manual"}
	require.NoError(t, s.Register(job, Every(time.Hour)))

	require.NoError(t, s.RunNow(context.Background(), "manual"))
	assert.Equal(t, int32(1), job.runs.Load())
	assert.ErrorIs(t, s.RunNow(context.Background(), "missing"), ErrJobNotFound)
}
