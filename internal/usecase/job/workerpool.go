package job

import (
	"context"
	"errors"
	"sync"
)

// Task is a unit of work submitted to the WorkerPool.
type Task func(ctx context.Context)

// ErrPoolClosed is returned if a Submit is attempted after Close.
var ErrPoolClosed = errors.New("worker pool closed")

// WorkerPool runs tasks on a fixed number of goroutines. Tasks already
// queued when Close is called still run.
type WorkerPool struct {
	tasks   chan Task
	wg      sync.WaitGroup
	workers int
	closeMu sync.Mutex
	closed  bool
}

// NewWorkerPool creates a pool with the given number of workers and queue capacity.
func NewWorkerPool(workers, queue int) *WorkerPool {
	if workers <= 0 {
		workers = 1
	}
	if queue <= 0 {
		queue = workers * 2
	}
	return &WorkerPool{
		tasks:   make(chan Task, queue),
		workers: workers,
	}
}

// Workers returns the number of worker goroutines.
func (p *WorkerPool) Workers() int { return p.workers }

// Start launches the workers. Tasks receive ctx; they keep draining the
// queue until Close.
func (p *WorkerPool) Start(ctx context.Context) {
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			for task := range p.tasks {
				task(ctx)
			}
		}()
	}
}

// Submit enqueues a task. It blocks while the queue is full.
func (p *WorkerPool) Submit(task Task) error {
	p.closeMu.Lock()
	defer p.closeMu.Unlock()
	if p.closed {
		return ErrPoolClosed
	}
	p.tasks <- task
	return nil
}

// Close stops accepting new tasks and waits for queued and running ones.
func (p *WorkerPool) Close() {
	p.closeMu.Lock()
	if p.closed {
		p.closeMu.Unlock()
		return
	}
	p.closed = true
	close(p.tasks)
	p.closeMu.Unlock()
	p.wg.Wait()
}
