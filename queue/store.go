// Package queue holds the job store implementations and the task dispatcher
// that hands submitted jobs to the worker pool.
package queue

import (
	"context"
	"errors"

	"github.com/jupark12/go-content-queue/models"
)

// ErrDuplicateJob is returned by Create when the id is already stored.
var ErrDuplicateJob = errors.New("job already exists")

// UpdateFunc mutates a job inside the store's atomic update. Returning an
// error discards the mutation.
type UpdateFunc func(job *models.Job) error

// JobStore is the process-wide record of jobs, keyed by id.
type JobStore interface {
	// Create stores a new job.
	Create(ctx context.Context, job *models.Job) error
	// Get returns a copy of the job, or models.ErrNotFound.
	Get(ctx context.Context, id string) (*models.Job, error)
	// List returns copies of all jobs in creation order. An empty status
	// matches every job.
	List(ctx context.Context, status models.JobStatus) ([]*models.Job, error)
	// Update applies fn atomically and returns the stored result.
	Update(ctx context.Context, id string, fn UpdateFunc) (*models.Job, error)
}
