package pool

import (
	"context"
	"sync"
	"time"
)

// WorkerPool runs handlers with at most maxWorkers in flight. Submissions
// beyond that wait for a free slot.
type WorkerPool struct {
	sem chan struct{}
	wg  sync.WaitGroup
}

func NewWorkerPool(maxWorkers int) *WorkerPool {
	if maxWorkers < 1 {
		maxWorkers = 1
	}
	return &WorkerPool{
		sem: make(chan struct{}, maxWorkers),
	}
}

// Submit never blocks. If ctx ends before a slot frees, handler is not run and
// onDrop (if set) is called instead.
func (p *WorkerPool) Submit(ctx context.Context, taskID string, handler func(context.Context, string), onDrop func(string)) {
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()

		if ctx.Err() != nil {
			if onDrop != nil {
				onDrop(taskID)
			}
			return
		}

		select {
		case p.sem <- struct{}{}:
			defer func() { <-p.sem }()
			handler(ctx, taskID)
		case <-ctx.Done():
			if onDrop != nil {
				onDrop(taskID)
			}
		}
	}()
}

func (p *WorkerPool) Wait() {
	p.wg.Wait()
}

// WaitTimeout waits for in-flight handlers and reports whether they all
// finished before d elapsed.
func (p *WorkerPool) WaitTimeout(d time.Duration) bool {
	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return true
	case <-time.After(d):
		return false
	}
}
