// Package pool runs jobs on a fixed number of worker goroutines.
package pool

import (
	"log/slog"
	"runtime"
	"sync"

	"golang.org/x/sync/errgroup"
)

// Pool is a fixed width worker pool. It may be shared by several
// writers.
type Pool struct {
	tasks   chan func()
	threads int

	group     errgroup.Group
	closeOnce sync.Once
}

// New starts threads workers, zero means one per CPU.
func New(threads int) *Pool {
	if threads <= 0 {
		threads = runtime.NumCPU()
	}

	p := &Pool{
		tasks:   make(chan func(), threads*4),
		threads: threads,
	}

	slog.Info("starting workers", "max_executors", threads)

	for threadId := 0; threadId < threads; threadId++ {
		p.group.Go(func() error {
			slog.Debug("worker started", "thread_id", threadId)
			defer slog.Debug("worker stopped", "thread_id", threadId)

			for task := range p.tasks {
				task()
			}
			return nil
		})
	}

	return p
}

// Submit queues job. It blocks only while the queue is full.
func (p *Pool) Submit(job func()) {
	p.tasks <- job
}

func (p *Pool) NumThreads() int {
	return p.threads
}

// Close waits for queued jobs to finish and stops the workers.
// Submit must not be called afterwards.
func (p *Pool) Close() error {
	p.closeOnce.Do(func() {
		close(p.tasks)
	})
	return p.group.Wait()
}
