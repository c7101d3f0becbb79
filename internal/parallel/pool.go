// Package parallel provides a bounded worker pool used to fan independent
// self-loop acceleration attempts out across goroutines (spec.md 5,
// property 8: each self-loop's acceleration is independent of every
// other).
//
// Grounded on gokando/internal/parallel/pool.go's fixed-size worker loop
// (task channel, shutdown channel, sync.Once-guarded Shutdown); trimmed
// of the teacher's dynamic-scaling, work-stealing, stream-merging,
// rate-limiting, load-balancing and deadlock-detection machinery, none of
// which pkg/driver has a component for (see DESIGN.md).
package parallel

import (
	"context"
	"fmt"
	"sync"
)

// ErrPoolShutdown is returned when trying to submit a task to a pool that
// has already been shut down.
var ErrPoolShutdown = fmt.Errorf("worker pool has been shutdown")

// WorkerPool runs submitted tasks across a fixed number of goroutines.
type WorkerPool struct {
	taskChan     chan func()
	workerWg     sync.WaitGroup
	shutdownChan chan struct{}
	once         sync.Once
}

// NewWorkerPool starts a pool of maxWorkers goroutines draining a shared
// task queue. If maxWorkers is 0 or negative, it defaults to 1.
func NewWorkerPool(maxWorkers int) *WorkerPool {
	if maxWorkers <= 0 {
		maxWorkers = 1
	}

	pool := &WorkerPool{
		taskChan:     make(chan func(), maxWorkers*4),
		shutdownChan: make(chan struct{}),
	}

	for i := 0; i < maxWorkers; i++ {
		pool.workerWg.Add(1)
		go pool.worker()
	}

	return pool
}

// worker is the main worker loop that processes tasks from the channel.
func (wp *WorkerPool) worker() {
	defer wp.workerWg.Done()

	for {
		select {
		case task, ok := <-wp.taskChan:
			if !ok {
				return
			}
			if task != nil {
				func() {
					defer func() { recover() }()
					task()
				}()
			}
		case <-wp.shutdownChan:
			return
		}
	}
}

// Submit queues task for execution. It blocks until the task is queued,
// ctx is cancelled, or the pool has been shut down; once Shutdown has been
// called it returns ErrPoolShutdown.
func (wp *WorkerPool) Submit(ctx context.Context, task func()) error {
	select {
	case <-wp.shutdownChan:
		return ErrPoolShutdown
	default:
	}
	select {
	case wp.taskChan <- task:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-wp.shutdownChan:
		return ErrPoolShutdown
	}
}

// Shutdown stops accepting new tasks and waits for every in-flight task to
// finish. Safe to call more than once.
func (wp *WorkerPool) Shutdown() {
	wp.once.Do(func() {
		close(wp.shutdownChan)
		close(wp.taskChan)
		wp.workerWg.Wait()
	})
}
