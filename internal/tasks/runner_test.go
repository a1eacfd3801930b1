package tasks_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/elonfeng/gapradar/internal/tasks"
)

func startRunner(t *testing.T, workers, queueSize int) *tasks.Runner {
	t.Helper()
	r := tasks.NewRunner(workers, queueSize, nil)
	ctx, cancel := context.WithCancel(context.Background())
	r.Start(ctx)
	t.Cleanup(func() {
		cancel()
		r.Wait()
	})
	return r
}

func waitForTerminal(t *testing.T, r *tasks.Runner, id string) tasks.Task {
	t.Helper()
	var got tasks.Task
	require.Eventually(t, func() bool {
		task, ok := r.Get(id)
		if !ok {
			return false
		}
		got = task
		return task.Status == tasks.StatusSucceeded || task.Status == tasks.StatusFailed
	}, 5*time.Second, 10*time.Millisecond)
	return got
}

func TestSubmit_Succeeds(t *testing.T) {
	r := startRunner(t, 1, 4)

	submitted, err := r.Submit(tasks.KindComputePipeline, func(ctx context.Context, setPhase func(string)) (any, error) {
		return map[string]int{"count": 7}, nil
	})
	require.NoError(t, err)
	assert.NotEmpty(t, submitted.ID)
	assert.Equal(t, tasks.StatusQueued, submitted.Status)
	assert.False(t, submitted.CreatedAt.IsZero())

	done := waitForTerminal(t, r, submitted.ID)
	assert.Equal(t, tasks.StatusSucceeded, done.Status)
	assert.Equal(t, map[string]int{"count": 7}, done.Result)
	assert.Empty(t, done.Error)
	assert.False(t, done.StartedAt.IsZero())
	assert.False(t, done.FinishedAt.IsZero())
}

func TestSubmit_FailureCapturesError(t *testing.T) {
	r := startRunner(t, 1, 4)

	submitted, err := r.Submit(tasks.KindScrapePlatform, func(ctx context.Context, setPhase func(string)) (any, error) {
		return nil, errors.New("upstream timeout")
	})
	require.NoError(t, err)

	done := waitForTerminal(t, r, submitted.ID)
	assert.Equal(t, tasks.StatusFailed, done.Status)
	assert.Equal(t, "upstream timeout", done.Error)
	assert.Nil(t, done.Result)
}

func TestSubmit_ReportsPhase(t *testing.T) {
	r := startRunner(t, 1, 4)

	release := make(chan struct{})
	submitted, err := r.Submit(tasks.KindScrapePlatform, func(ctx context.Context, setPhase func(string)) (any, error) {
		setPhase(tasks.PhaseScraping)
		<-release
		return nil, nil
	})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		task, ok := r.Get(submitted.ID)
		return ok && task.Status == tasks.StatusRunning && task.Phase == tasks.PhaseScraping
	}, 5*time.Second, 10*time.Millisecond)

	close(release)
	done := waitForTerminal(t, r, submitted.ID)
	assert.Equal(t, tasks.StatusSucceeded, done.Status)
	assert.Empty(t, done.Phase)
}

func TestSubmit_QueueFull(t *testing.T) {
	// No workers started: the first submit saturates the backlog.
	r := tasks.NewRunner(1, 1, nil)

	noop := func(ctx context.Context, setPhase func(string)) (any, error) { return nil, nil }

	_, err := r.Submit(tasks.KindComputePipeline, noop)
	require.NoError(t, err)

	rejected, err := r.Submit(tasks.KindComputePipeline, noop)
	assert.ErrorIs(t, err, tasks.ErrQueueFull)

	// A rejected task leaves no registry entry behind.
	_, ok := r.Get(rejected.ID)
	assert.False(t, ok)
}

func TestWait_FailsTasksQueuedAtShutdown(t *testing.T) {
	r := tasks.NewRunner(1, 4, nil)
	ctx, cancel := context.WithCancel(context.Background())
	r.Start(ctx)

	release := make(chan struct{})
	running, err := r.Submit(tasks.KindComputePipeline, func(ctx context.Context, setPhase func(string)) (any, error) {
		<-release
		return nil, nil
	})
	require.NoError(t, err)

	// Second task stays queued behind the single busy worker.
	queued, err := r.Submit(tasks.KindComputePipeline, func(ctx context.Context, setPhase func(string)) (any, error) {
		return nil, nil
	})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		task, ok := r.Get(running.ID)
		return ok && task.Status == tasks.StatusRunning
	}, 5*time.Second, 10*time.Millisecond)

	cancel()
	close(release)
	r.Wait()

	first, ok := r.Get(running.ID)
	require.True(t, ok)
	assert.Equal(t, tasks.StatusSucceeded, first.Status)

	leftover, ok := r.Get(queued.ID)
	require.True(t, ok)
	assert.Equal(t, tasks.StatusFailed, leftover.Status)
	assert.Contains(t, leftover.Error, "shut down")
	assert.False(t, leftover.FinishedAt.IsZero())
}

func TestGet_UnknownID(t *testing.T) {
	r := tasks.NewRunner(1, 1, nil)
	_, ok := r.Get("no-such-task")
	assert.False(t, ok)
}
