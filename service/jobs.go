// Package service is the submission and status API over the job store and
// dispatcher. Transports such as the HTTP server and the CLI call into it.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jupark12/go-content-queue/logger"
	"github.com/jupark12/go-content-queue/metrics"
	"github.com/jupark12/go-content-queue/models"
	"github.com/jupark12/go-content-queue/queue"
)

// Dispatcher hands a stored job to the worker pool without blocking.
type Dispatcher interface {
	Dispatch(task queue.Task) error
}

// JobService creates jobs and reports their status.
type JobService struct {
	store      queue.JobStore
	dispatcher Dispatcher
	metrics    *metrics.Metrics
	log        logger.Logger
	now        func() time.Time
	newID      func() string
}

// NewJobService creates a service. m may be nil.
func NewJobService(store queue.JobStore, dispatcher Dispatcher, m *metrics.Metrics, log logger.Logger) *JobService {
	return &JobService{
		store:      store,
		dispatcher: dispatcher,
		metrics:    m,
		log:        log,
		now:        func() time.Time { return time.Now().UTC() },
		newID:      uuid.NewString,
	}
}

// SubmitArticles creates an article job for urls and queues it.
func (s *JobService) SubmitArticles(ctx context.Context, urls []string) (string, error) {
	if len(urls) == 0 {
		s.metrics.JobRejected(string(models.KindArticle), "invalid_input")
		return "", fmt.Errorf("at least one URL is required: %w", models.ErrInvalidInput)
	}
	cleaned := make([]string, len(urls))
	for i, u := range urls {
		cleaned[i] = strings.TrimSpace(u)
		if cleaned[i] == "" {
			s.metrics.JobRejected(string(models.KindArticle), "invalid_input")
			return "", fmt.Errorf("url %d is blank: %w", i, models.ErrInvalidInput)
		}
	}
	return s.submit(ctx, models.KindArticle, cleaned)
}

// SubmitProduct creates a product job for a single listing URL and queues it.
func (s *JobService) SubmitProduct(ctx context.Context, url string) (string, error) {
	url = strings.TrimSpace(url)
	if url == "" {
		s.metrics.JobRejected(string(models.KindProduct), "invalid_input")
		return "", fmt.Errorf("product URL is required: %w", models.ErrInvalidInput)
	}
	return s.submit(ctx, models.KindProduct, []string{url})
}

func (s *JobService) submit(ctx context.Context, kind models.JobKind, urls []string) (string, error) {
	job := models.NewJob(s.newID(), kind, urls, s.now())
	if err := s.store.Create(ctx, job); err != nil {
		return "", fmt.Errorf("store job: %w", err)
	}

	if err := s.dispatcher.Dispatch(queue.Task{JobID: job.ID, Kind: kind}); err != nil {
		s.metrics.JobRejected(string(kind), "queue_full")
		// The job was never handed to a worker, so close it out here.
		if _, abortErr := s.store.Update(context.WithoutCancel(ctx), job.ID, func(j *models.Job) error {
			return j.Abort(models.ErrQueueFull.Error(), s.now())
		}); abortErr != nil {
			s.log.Error("Failed to mark rejected job failed",
				logger.String("job_id", job.ID),
				logger.Error(abortErr),
			)
		}
		if !errors.Is(err, models.ErrQueueFull) {
			err = fmt.Errorf("%w: %w", models.ErrQueueFull, err)
		}
		return "", err
	}

	s.metrics.JobSubmitted(string(kind))
	s.log.Info("Job submitted",
		logger.String("job_id", job.ID),
		logger.String("kind", string(kind)),
		logger.Int("inputs", len(urls)),
	)
	return job.ID, nil
}

// Status returns the current job record, or models.ErrNotFound.
func (s *JobService) Status(ctx context.Context, id string) (*models.Job, error) {
	if strings.TrimSpace(id) == "" {
		return nil, fmt.Errorf("empty job id: %w", models.ErrNotFound)
	}
	return s.store.Get(ctx, id)
}

// StatusOf is Status restricted to one kind. A job of another kind is
// reported as not found.
func (s *JobService) StatusOf(ctx context.Context, kind models.JobKind, id string) (*models.Job, error) {
	job, err := s.Status(ctx, id)
	if err != nil {
		return nil, err
	}
	if job.Kind != kind {
		return nil, fmt.Errorf("job %s is not a %s job: %w", id, kind, models.ErrNotFound)
	}
	return job, nil
}

// List returns jobs in creation order. An empty status returns every job.
func (s *JobService) List(ctx context.Context, status models.JobStatus) ([]*models.Job, error) {
	if status != "" && !status.Valid() {
		return nil, fmt.Errorf("unknown status %q: %w", status, models.ErrInvalidInput)
	}
	return s.store.List(ctx, status)
}

// errInterrupted is recorded on jobs a previous process left unfinished.
var errInterrupted = errors.New("interrupted by service restart")

// RecoverInterrupted fails every job a previous process left pending or in
// progress, so pollers of a durable store still see a terminal status. It
// must run before the worker pool starts.
func (s *JobService) RecoverInterrupted(ctx context.Context) (int, error) {
	recovered := 0
	for _, status := range []models.JobStatus{models.StatusPending, models.StatusInProgress} {
		jobs, err := s.store.List(ctx, status)
		if err != nil {
			return recovered, fmt.Errorf("list %s jobs: %w", status, err)
		}
		for _, job := range jobs {
			_, err := s.store.Update(ctx, job.ID, func(j *models.Job) error {
				return j.Abort(errInterrupted.Error(), s.now())
			})
			if errors.Is(err, models.ErrJobTerminal) {
				continue
			}
			if err != nil {
				return recovered, fmt.Errorf("recover job %s: %w", job.ID, err)
			}
			recovered++
		}
	}
	if recovered > 0 {
		s.log.Warn("Failed jobs left unfinished by a previous run", logger.Int("jobs", recovered))
	}
	return recovered, nil
}
