package worker

import (
	"context"
	"log"
	"sync"
)

// Task is one unit of work, normally a single capture cycle.
type Task func(ctx context.Context) (string, error)

// ResultCallback is invoked on task completion (from a worker goroutine).
// The analysis loop passes a closure that posts back into the loop safely.
type ResultCallback func(text string, err error)

// Pool runs tasks on a fixed number of goroutines behind a 1-slot input queue (strict back-pressure).
type Pool struct {
	jobs chan job
	wg   sync.WaitGroup
	once sync.Once
}

type job struct {
	ctx  context.Context
	task Task
	cb   ResultCallback
}

// New creates a worker pool. Size defaults to 1 when size<=0, which keeps
// capture cycles strictly sequential.
func New(size int) *Pool {
	if size <= 0 {
		size = 1
	}
	p := &Pool{jobs: make(chan job, 1)}
	p.start(size)
	return p
}

func (p *Pool) start(n int) {
	for i := 0; i < n; i++ {
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			for j := range p.jobs {
				text, err := runWithContext(j.ctx, j.task)
				log.Printf("Worker: task completed, text length=%d, err=%v", len(text), err)
				j.cb(text, err)
			}
		}()
	}
}

// Submit enqueues a task if the single-slot queue is free. Returns false if dropped.
func (p *Pool) Submit(ctx context.Context, task Task, cb ResultCallback) bool {
	select {
	case p.jobs <- job{ctx: ctx, task: task, cb: cb}:
		return true
	default:
		return false
	}
}

// Close stops the pool after draining current work. Safe to call twice.
func (p *Pool) Close() {
	p.once.Do(func() { close(p.jobs) })
	p.wg.Wait()
}

// runWithContext returns as soon as ctx is done even if the task ignores it.
func runWithContext(ctx context.Context, task Task) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if ctx.Done() == nil {
		return task(ctx)
	}
	type result struct {
		text string
		err  error
	}
	resCh := make(chan result, 1)
	go func() {
		text, err := task(ctx)
		resCh <- result{text, err}
	}()
	select {
	case r := <-resCh:
		return r.text, r.err
	case <-ctx.Done():
		// The task may keep running; its result is dropped.
		return "", ctx.Err()
	}
}
