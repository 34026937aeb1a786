package scan

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"
)

// Runner tracks background scan goroutines so the stop endpoint can cancel
// them and shutdown can wait for them to drain.
type Runner struct {
	logger *slog.Logger

	mu    sync.Mutex
	tasks map[string]context.CancelFunc
	wg    sync.WaitGroup
}

func NewRunner(logger *slog.Logger) *Runner {
	return &Runner{
		logger: logger,
		tasks:  make(map[string]context.CancelFunc),
	}
}

// Go runs fn in a goroutine under a cancellable context derived from parent.
// The task unregisters itself when fn returns.
func (r *Runner) Go(parent context.Context, name string, fn func(ctx context.Context)) {
	ctx, cancel := context.WithCancel(parent)
	id := uuid.NewString()

	r.mu.Lock()
	r.tasks[id] = cancel
	r.mu.Unlock()

	r.wg.Add(1)
	go func() {
		defer func() {
			r.mu.Lock()
			delete(r.tasks, id)
			r.mu.Unlock()
			cancel()
			r.wg.Done()
		}()
		r.logger.Debug("task started", "task", name)
		fn(ctx)
		r.logger.Debug("task finished", "task", name)
	}()
}

// CancelAll cancels every registered task and returns how many were
// cancelled. The tasks unregister asynchronously as they observe the
// cancellation.
func (r *Runner) CancelAll() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, cancel := range r.tasks {
		cancel()
	}
	return len(r.tasks)
}

// Active returns the number of registered tasks.
func (r *Runner) Active() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.tasks)
}

// Wait blocks until all tasks have returned.
func (r *Runner) Wait() {
	r.wg.Wait()
}
