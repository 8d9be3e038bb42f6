// Package runner launches and tracks the goroutines that drive training
// and tuning loops.
package runner

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// ErrShuttingDown is returned by Launch once shutdown has begun
var ErrShuttingDown = errors.New("runner is shutting down")

// Handle identifies one launched loop and lets callers join it
type Handle struct {
	jobID string
	done  chan struct{}
}

// JobID returns the job the loop belongs to
func (h *Handle) JobID() string { return h.jobID }

// Done is closed when the loop goroutine has returned
func (h *Handle) Done() <-chan struct{} { return h.done }

// Runner starts one goroutine per job loop and retains an explicit
// handle to each, so loops can be joined individually and drained
// together at shutdown. Cancelling a job is not the runner's business:
// that goes through the registry, and the loop observes it at its next
// iteration boundary.
type Runner struct {
	mu      sync.Mutex
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	handles map[string]*Handle
}

// NewRunner creates a runner whose loops live until Shutdown
func NewRunner() *Runner {
	ctx, cancel := context.WithCancel(context.Background())
	return &Runner{
		ctx:     ctx,
		cancel:  cancel,
		handles: make(map[string]*Handle),
	}
}

// Launch starts fn on its own goroutine under the runner's context.
// Exactly one loop may ever be launched per job id; that is what keeps
// every job single-writer.
func (r *Runner) Launch(jobID string, fn func(ctx context.Context)) (*Handle, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	select {
	case <-r.ctx.Done():
		return nil, ErrShuttingDown
	default:
	}
	if _, ok := r.handles[jobID]; ok {
		return nil, fmt.Errorf("loop already launched for job %s", jobID)
	}

	h := &Handle{jobID: jobID, done: make(chan struct{})}
	r.handles[jobID] = h
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer close(h.done)
		fn(r.ctx)
	}()
	return h, nil
}

// Get returns the handle for a job's loop, if one was launched
func (r *Runner) Get(jobID string) (*Handle, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	h, ok := r.handles[jobID]
	return h, ok
}

// Running counts loops that have not yet returned
func (r *Runner) Running() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := 0
	for _, h := range r.handles {
		select {
		case <-h.done:
		default:
			n++
		}
	}
	return n
}

// Shutdown cancels the runner context and waits for every loop to
// return, or for ctx to expire.
func (r *Runner) Shutdown(ctx context.Context) error {
	r.cancel()

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
