// Package tasks runs pipeline and scrape invocations off the request path
// and tracks their lifecycle for status polling.
package tasks

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Status is the closed task state machine:
// queued -> running{phase} -> succeeded | failed.
type Status string

const (
	StatusQueued    Status = "queued"
	StatusRunning   Status = "running"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

// Task kinds.
const (
	KindComputePipeline = "compute_pipeline"
	KindScrapePlatform  = "scrape_platform"
)

// PhaseScraping is the single milestone reported by scrape tasks. Compute
// tasks report the pipeline's own phases.
const PhaseScraping = "scraping"

// ErrQueueFull is returned by Submit when the backlog is at capacity.
var ErrQueueFull = errors.New("task queue full")

// Task is a point-in-time snapshot of one background unit of work.
type Task struct {
	ID         string    `json:"task_id"`
	Kind       string    `json:"kind"`
	Status     Status    `json:"status"`
	Phase      string    `json:"phase,omitempty"`
	Result     any       `json:"result,omitempty"`
	Error      string    `json:"error,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	StartedAt  time.Time `json:"started_at,omitzero"`
	FinishedAt time.Time `json:"finished_at,omitzero"`
}

// Fn is the unit of work. setPhase reports coarse progress milestones; the
// returned value becomes the task result on success.
type Fn func(ctx context.Context, setPhase func(phase string)) (any, error)

type job struct {
	id string
	fn Fn
}

// Runner executes submitted tasks on a bounded worker pool and keeps an
// in-memory registry of their states.
type Runner struct {
	mu    sync.RWMutex
	tasks map[string]*Task

	queue   chan job
	workers int
	wg      sync.WaitGroup
	log     *logrus.Entry
}

// NewRunner creates a runner with the given pool size and backlog capacity.
func NewRunner(workers, queueSize int, log *logrus.Entry) *Runner {
	if workers <= 0 {
		workers = 4
	}
	if queueSize <= 0 {
		queueSize = 64
	}
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Runner{
		tasks:   make(map[string]*Task),
		queue:   make(chan job, queueSize),
		workers: workers,
		log:     log.WithField("component", "tasks"),
	}
}

// Start launches the worker pool. Workers exit when ctx is cancelled.
func (r *Runner) Start(ctx context.Context) {
	for i := 0; i < r.workers; i++ {
		r.wg.Add(1)
		go r.runWorker(ctx)
	}
}

// Wait blocks until all workers have exited, then fails any tasks still
// sitting in the queue so nothing stays queued forever after shutdown.
func (r *Runner) Wait() {
	r.wg.Wait()
	for {
		select {
		case j := <-r.queue:
			r.abandon(j)
		default:
			return
		}
	}
}

// Submit registers a new task and queues it for execution. The returned
// snapshot reflects the queued state.
func (r *Runner) Submit(kind string, fn Fn) (Task, error) {
	t := &Task{
		ID:        uuid.NewString(),
		Kind:      kind,
		Status:    StatusQueued,
		CreatedAt: time.Now().UTC(),
	}

	r.mu.Lock()
	r.tasks[t.ID] = t
	r.mu.Unlock()

	select {
	case r.queue <- job{id: t.ID, fn: fn}:
	default:
		r.mu.Lock()
		delete(r.tasks, t.ID)
		r.mu.Unlock()
		return Task{}, ErrQueueFull
	}

	r.log.WithFields(logrus.Fields{"task": t.ID, "kind": kind}).Info("task queued")
	return *t, nil
}

// Get returns a snapshot of the task with the given ID.
func (r *Runner) Get(id string) (Task, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tasks[id]
	if !ok {
		return Task{}, false
	}
	return *t, true
}

func (r *Runner) runWorker(ctx context.Context) {
	defer r.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case j := <-r.queue:
			if ctx.Err() != nil {
				r.abandon(j)
				return
			}
			r.execute(ctx, j)
		}
	}
}

// abandon fails a task that was dequeued or drained after shutdown began.
func (r *Runner) abandon(j job) {
	r.update(j.id, func(t *Task) {
		t.Status = StatusFailed
		t.Error = "runner shut down before execution"
		t.FinishedAt = time.Now().UTC()
	})
	r.log.WithFields(logrus.Fields{"task": j.id}).Warn("task abandoned at shutdown")
}

func (r *Runner) execute(ctx context.Context, j job) {
	r.update(j.id, func(t *Task) {
		t.Status = StatusRunning
		t.StartedAt = time.Now().UTC()
	})

	setPhase := func(phase string) {
		r.update(j.id, func(t *Task) { t.Phase = phase })
	}

	result, err := j.fn(ctx, setPhase)

	r.update(j.id, func(t *Task) {
		t.FinishedAt = time.Now().UTC()
		t.Phase = ""
		if err != nil {
			t.Status = StatusFailed
			t.Error = err.Error()
			return
		}
		t.Status = StatusSucceeded
		t.Result = result
	})

	if err != nil {
		r.log.WithFields(logrus.Fields{"task": j.id}).WithError(err).Error("task failed")
		return
	}
	r.log.WithFields(logrus.Fields{"task": j.id}).Info("task succeeded")
}

func (r *Runner) update(id string, fn func(*Task)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if t, ok := r.tasks[id]; ok {
		fn(t)
	}
}
