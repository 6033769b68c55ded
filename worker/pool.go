package worker

import (
	"context"
	"fmt"
	"sync"

	"github.com/jupark12/go-content-queue/logger"
	"github.com/jupark12/go-content-queue/queue"
)

// Pool runs a fixed number of workers against one dispatcher.
type Pool struct {
	workers    []*Worker
	dispatcher *queue.Dispatcher
	log        logger.Logger
	wg         sync.WaitGroup
}

// NewPool creates size workers sharing opts.
func NewPool(size int, dispatcher *queue.Dispatcher, opts Options, log logger.Logger) *Pool {
	if size < 1 {
		size = 1
	}
	workers := make([]*Worker, size)
	for i := range workers {
		workers[i] = NewWorker(fmt.Sprintf("worker-%d", i+1), opts, log)
	}
	return &Pool{
		workers:    workers,
		dispatcher: dispatcher,
		log:        log,
	}
}

// SetNotifier registers a callback run after every job mutation. It must be
// called before Start.
func (p *Pool) SetNotifier(fn func(jobID string)) {
	if fn == nil {
		fn = func(string) {}
	}
	for _, w := range p.workers {
		w.notify = fn
	}
}

// Start launches the workers. They stop when ctx is done or the dispatcher
// is closed and drained.
func (p *Pool) Start(ctx context.Context) {
	p.log.Info("Starting worker pool", logger.Int("workers", len(p.workers)))
	for _, w := range p.workers {
		p.wg.Add(1)
		go func(w *Worker) {
			defer p.wg.Done()
			p.loop(ctx, w)
		}(w)
	}
}

func (p *Pool) loop(ctx context.Context, w *Worker) {
	for {
		select {
		case <-ctx.Done():
			return
		case task, ok := <-p.dispatcher.Tasks():
			if !ok {
				return
			}
			// Job failures are already logged and recorded on the job.
			_ = w.Process(ctx, task)
		}
	}
}

// Wait blocks until every worker has returned.
func (p *Pool) Wait() {
	p.wg.Wait()
	p.log.Info("Worker pool stopped")
}

// Size returns the number of workers.
func (p *Pool) Size() int {
	return len(p.workers)
}

// Queued returns how many tasks are waiting for a worker.
func (p *Pool) Queued() int {
	return p.dispatcher.Pending()
}

// Busy returns how many workers are running a job.
func (p *Pool) Busy() int {
	n := 0
	for _, w := range p.workers {
		if w.Processing() {
			n++
		}
	}
	return n
}
