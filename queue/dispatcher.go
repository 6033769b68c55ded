package queue

import (
	"fmt"
	"sync"

	"github.com/jupark12/go-content-queue/models"
)

// Task identifies a stored job waiting for a worker.
type Task struct {
	JobID string
	Kind  models.JobKind
}

// Dispatcher is a bounded hand-off between submission and the worker pool.
type Dispatcher struct {
	tasks  chan Task
	mu     sync.RWMutex
	closed bool
}

// NewDispatcher creates a dispatcher that buffers up to capacity tasks.
func NewDispatcher(capacity int) *Dispatcher {
	if capacity < 1 {
		capacity = 1
	}
	return &Dispatcher{tasks: make(chan Task, capacity)}
}

// Dispatch enqueues a task without blocking. It returns models.ErrQueueFull
// when the buffer is full or the dispatcher is closed.
func (d *Dispatcher) Dispatch(task Task) error {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		return fmt.Errorf("dispatch job %s: dispatcher closed: %w", task.JobID, models.ErrQueueFull)
	}

	select {
	case d.tasks <- task:
		return nil
	default:
		return fmt.Errorf("dispatch job %s: %w", task.JobID, models.ErrQueueFull)
	}
}

// Tasks is the channel workers consume. It is closed by Close.
func (d *Dispatcher) Tasks() <-chan Task {
	return d.tasks
}

// Pending returns the number of buffered tasks.
func (d *Dispatcher) Pending() int {
	return len(d.tasks)
}

// Close stops accepting tasks. Buffered tasks remain readable.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.closed {
		d.closed = true
		close(d.tasks)
	}
}
