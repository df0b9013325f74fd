// Package tasks runs deferred work outside the request path. The submission
// flow hands off the lesson-completion check here so the HTTP response never
// waits on it.
package tasks

import (
	"context"
	"sync"
	"time"

	"github.com/lernhub/progress-engine/pkg/logger"
	"github.com/lernhub/progress-engine/pkg/retry"
)

// ══════════════════════════════════════════════════════════════════════════════
// DEFERRED TASK RUNNER
// ══════════════════════════════════════════════════════════════════════════════

// Task is one unit of deferred work.
type Task struct {
	Name string
	Fn   func(ctx context.Context) error
}

// RunnerConfig configures the Runner.
type RunnerConfig struct {
	// Workers is the number of concurrent workers.
	Workers int

	// QueueSize bounds the task queue. A full queue drops the task with an
	// error log rather than blocking the submitter.
	QueueSize int

	// TaskTimeout bounds one attempt of one task.
	TaskTimeout time.Duration

	// Retrier retries failed attempts. Defaults to the deferred-task policy.
	Retrier *retry.Retrier

	// Logger for structured logging.
	Logger *logger.Logger
}

// DefaultRunnerConfig returns sensible defaults.
func DefaultRunnerConfig() RunnerConfig {
	return RunnerConfig{
		Workers:     4,
		QueueSize:   256,
		TaskTimeout: 10 * time.Second,
	}
}

// Runner executes deferred tasks on a bounded worker pool with retries.
// It implements the Deferrer contract the submission handler expects: Defer
// never blocks and never fails the caller.
type Runner struct {
	cfg     RunnerConfig
	queue   chan Task
	retrier *retry.Retrier
	log     *logger.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.Mutex
	started bool
	stopped bool
}

// NewRunner creates a Runner. Call Start before deferring tasks.
func NewRunner(cfg RunnerConfig) *Runner {
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 256
	}
	if cfg.TaskTimeout <= 0 {
		cfg.TaskTimeout = 10 * time.Second
	}
	if cfg.Retrier == nil {
		cfg.Retrier = retry.DeferredTaskRetrier()
	}
	if cfg.Logger == nil {
		cfg.Logger = logger.New(logger.Options{})
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Runner{
		cfg:     cfg,
		queue:   make(chan Task, cfg.QueueSize),
		retrier: cfg.Retrier,
		log:     cfg.Logger.With(logger.Component("tasks")),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Start launches the worker pool.
func (r *Runner) Start() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.started {
		return
	}
	r.started = true

	for i := 0; i < r.cfg.Workers; i++ {
		r.wg.Add(1)
		go r.worker()
	}
	r.log.Info("task runner started", logger.Int("workers", r.cfg.Workers))
}

// Defer enqueues a task. The task runs on the runner's own context, so a
// request that finishes (or is canceled) does not cancel the work it
// deferred. A stopped runner or a full queue drops the task with a log.
func (r *Runner) Defer(name string, fn func(ctx context.Context) error) {
	if fn == nil {
		return
	}

	// The lock spans the enqueue: Shutdown closes the queue under the same
	// lock, so the send can never hit a closed channel. The send itself is
	// non-blocking, so the lock is held only briefly.
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.stopped {
		r.log.Warn("task dropped, runner stopped", logger.Operation(name))
		return
	}

	select {
	case r.queue <- Task{Name: name, Fn: fn}:
	default:
		r.log.Error("task dropped, queue full", logger.Operation(name))
	}
}

// Shutdown stops accepting tasks, drains the queue, and waits for workers
// up to the given context deadline.
func (r *Runner) Shutdown(ctx context.Context) error {
	r.mu.Lock()
	if r.stopped {
		r.mu.Unlock()
		return nil
	}
	r.stopped = true
	close(r.queue)
	r.mu.Unlock()

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		r.cancel()
		r.log.Info("task runner stopped")
		return nil
	case <-ctx.Done():
		r.cancel()
		return ctx.Err()
	}
}

func (r *Runner) worker() {
	defer r.wg.Done()
	for task := range r.queue {
		r.run(task)
	}
}

func (r *Runner) run(task Task) {
	start := time.Now()
	err := r.retrier.Do(r.ctx, func(ctx context.Context) error {
		attemptCtx, cancel := context.WithTimeout(ctx, r.cfg.TaskTimeout)
		defer cancel()
		if err := task.Fn(attemptCtx); err != nil {
			// Every failure is worth another attempt; the retrier bounds them.
			return retry.Retryable(err)
		}
		return nil
	})
	if err != nil {
		r.log.Error("deferred task abandoned",
			logger.Operation(task.Name),
			logger.Latency(time.Since(start)),
			logger.Err(err),
		)
		return
	}
	r.log.Debug("deferred task completed",
		logger.Operation(task.Name),
		logger.Latency(time.Since(start)),
	)
}
