package tasks

import (
	"context"
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lernhub/progress-engine/pkg/logger"
	"github.com/lernhub/progress-engine/pkg/retry"
)

func testRunner(t *testing.T, cfg RunnerConfig) *Runner {
	t.Helper()
	cfg.Logger = logger.New(logger.Options{Output: io.Discard})
	r := NewRunner(cfg)
	r.Start()
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = r.Shutdown(ctx)
	})
	return r
}

func TestRunner_ExecutesDeferredTask(t *testing.T) {
	r := testRunner(t, DefaultRunnerConfig())

	done := make(chan struct{})
	r.Defer("lesson-completion-check", func(ctx context.Context) error {
		close(done)
		return nil
	})

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("deferred task never ran")
	}
}

func TestRunner_RetriesFailedTask(t *testing.T) {
	cfg := DefaultRunnerConfig()
	cfg.Retrier = retry.New(
		retry.WithMaxAttempts(3),
		retry.WithInitialDelay(time.Millisecond),
		retry.WithRetryIf(func(error) bool { return true }),
	)
	r := testRunner(t, cfg)

	var attempts atomic.Int32
	done := make(chan struct{})
	r.Defer("flaky", func(ctx context.Context) error {
		if attempts.Add(1) < 3 {
			return errors.New("transient")
		}
		close(done)
		return nil
	})

	select {
	case <-done:
		assert.EqualValues(t, 3, attempts.Load())
	case <-time.After(2 * time.Second):
		t.Fatalf("task gave up after %d attempts", attempts.Load())
	}
}

func TestRunner_AbandonsTaskAfterMaxAttempts(t *testing.T) {
	cfg := DefaultRunnerConfig()
	cfg.Retrier = retry.New(
		retry.WithMaxAttempts(2),
		retry.WithInitialDelay(time.Millisecond),
		retry.WithRetryIf(func(error) bool { return true }),
	)
	r := testRunner(t, cfg)

	var attempts atomic.Int32
	r.Defer("doomed", func(ctx context.Context) error {
		attempts.Add(1)
		return errors.New("permanent failure")
	})

	require.Eventually(t, func() bool {
		return attempts.Load() == 2
	}, 2*time.Second, 5*time.Millisecond, "bounded attempts, then abandon")

	// No further attempts after the retrier gives up.
	time.Sleep(50 * time.Millisecond)
	assert.EqualValues(t, 2, attempts.Load())
}

func TestRunner_DeferNeverBlocksWhenQueueFull(t *testing.T) {
	cfg := DefaultRunnerConfig()
	cfg.Workers = 1
	cfg.QueueSize = 1
	r := testRunner(t, cfg)

	block := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	r.Defer("blocker", func(ctx context.Context) error {
		defer wg.Done()
		<-block
		return nil
	})

	// Fill the queue, then overflow it. Defer must return immediately.
	deferred := make(chan struct{})
	go func() {
		for i := 0; i < 10; i++ {
			r.Defer("overflow", func(ctx context.Context) error { return nil })
		}
		close(deferred)
	}()

	select {
	case <-deferred:
	case <-time.After(time.Second):
		t.Fatal("Defer blocked on a full queue")
	}

	close(block)
	wg.Wait()
}

func TestRunner_ShutdownDrainsQueue(t *testing.T) {
	cfg := DefaultRunnerConfig()
	cfg.Workers = 2
	r := NewRunner(RunnerConfig{
		Workers:     cfg.Workers,
		QueueSize:   cfg.QueueSize,
		TaskTimeout: cfg.TaskTimeout,
		Logger:      logger.New(logger.Options{Output: io.Discard}),
	})
	r.Start()

	var completed atomic.Int32
	for i := 0; i < 20; i++ {
		r.Defer("drain-me", func(ctx context.Context) error {
			completed.Add(1)
			return nil
		})
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, r.Shutdown(ctx))
	assert.EqualValues(t, 20, completed.Load(), "queued tasks finish before shutdown returns")

	// Tasks deferred after shutdown are dropped, not run.
	r.Defer("late", func(ctx context.Context) error {
		completed.Add(1)
		return nil
	})
	time.Sleep(20 * time.Millisecond)
	assert.EqualValues(t, 20, completed.Load())
}

func TestRunner_ConcurrentDeferDuringShutdown(t *testing.T) {
	r := NewRunner(RunnerConfig{
		Workers:   2,
		QueueSize: 4,
		Logger:    logger.New(logger.Options{Output: io.Discard}),
	})
	r.Start()

	// Hammer Defer from many goroutines while Shutdown closes the queue.
	// A send that slipped past the stopped check onto the closed channel
	// would panic and fail the test.
	stop := make(chan struct{})
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
					r.Defer("racing", func(ctx context.Context) error { return nil })
				}
			}
		}()
	}

	time.Sleep(5 * time.Millisecond)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, r.Shutdown(ctx))

	close(stop)
	wg.Wait()
}
