// Package worker runs submitted jobs: it consumes tasks from the dispatcher
// and drives each job through extraction and generation to a terminal status.
package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jupark12/go-content-queue/logger"
	"github.com/jupark12/go-content-queue/metrics"
	"github.com/jupark12/go-content-queue/models"
	"github.com/jupark12/go-content-queue/queue"
)

const statusSkipped = "skipped"

var (
	errBrowserDisabled = errors.New("browser automation is disabled")
	errUnknownKind     = errors.New("unknown job kind")
)

// PageExtractor turns a URL into page data. Failures are reported on the
// returned record, never as an error.
type PageExtractor interface {
	Extract(ctx context.Context, url string) *models.PageData
}

// ProductExtractor turns a marketplace listing URL into product data.
type ProductExtractor interface {
	Extract(ctx context.Context, url string) (*models.ProductData, error)
}

// ContentGenerator produces content from extracted data.
type ContentGenerator interface {
	GenerateArticle(ctx context.Context, page *models.PageData) (string, error)
	GenerateProduct(ctx context.Context, product *models.ProductData) (string, error)
}

// Options are the collaborators shared by every worker.
type Options struct {
	Store     queue.JobStore
	Pages     PageExtractor
	Products  ProductExtractor // nil when browser automation is disabled
	Generator ContentGenerator
	Metrics   *metrics.Metrics
	// JobTimeout bounds a whole job. Zero means no limit.
	JobTimeout time.Duration
	Clock      func() time.Time
}

// Worker represents a processing node that runs jobs one at a time
type Worker struct {
	ID string

	store      queue.JobStore
	pages      PageExtractor
	products   ProductExtractor
	generator  ContentGenerator
	metrics    *metrics.Metrics
	jobTimeout time.Duration
	now        func() time.Time
	notify     func(jobID string)
	log        logger.Logger

	mu         sync.Mutex
	processing bool
}

// NewWorker creates a new worker instance
func NewWorker(id string, opts Options, log logger.Logger) *Worker {
	now := opts.Clock
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &Worker{
		ID:         id,
		store:      opts.Store,
		pages:      opts.Pages,
		products:   opts.Products,
		generator:  opts.Generator,
		metrics:    opts.Metrics,
		jobTimeout: opts.JobTimeout,
		now:        now,
		notify:     func(string) {},
		log:        log.With(logger.String("worker_id", id)),
	}
}

// Processing reports whether the worker is currently running a job.
func (w *Worker) Processing() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.processing
}

func (w *Worker) setProcessing(v bool) {
	w.mu.Lock()
	w.processing = v
	w.mu.Unlock()
}

// Process runs one job to a terminal status. The returned error is the
// reason the job failed, or nil when it completed.
func (w *Worker) Process(ctx context.Context, task queue.Task) error {
	w.setProcessing(true)
	defer w.setProcessing(false)

	if w.jobTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, w.jobTimeout)
		defer cancel()
	}

	kind := string(task.Kind)
	log := w.log.With(logger.String("job_id", task.JobID), logger.String("kind", kind))
	w.metrics.JobStarted()

	job, err := w.update(ctx, task.JobID, func(j *models.Job) error {
		return j.Start(w.now())
	})
	if err != nil {
		w.metrics.JobFinished(kind, statusSkipped)
		log.Warn("Skipping job", logger.Error(err))
		return fmt.Errorf("start job %s: %w", task.JobID, err)
	}

	log.Info("Processing job", logger.Int("inputs", len(job.Inputs)))
	started := time.Now()

	runErr := w.run(ctx, job)
	status, err := w.finalize(ctx, task.JobID, runErr)
	w.metrics.JobFinished(kind, string(status))

	if err != nil {
		log.Warn("Job failed", logger.Error(err), logger.Duration("elapsed", time.Since(started)))
		return err
	}
	log.Info("Job completed", logger.Duration("elapsed", time.Since(started)))
	return nil
}

// run dispatches on the job kind and converts a panic into a job failure.
func (w *Worker) run(ctx context.Context, job *models.Job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("internal error: %v", r)
		}
	}()

	switch job.Kind {
	case models.KindArticle:
		return w.runArticle(ctx, job)
	case models.KindProduct:
		return w.runProduct(ctx, job)
	default:
		return fmt.Errorf("%w %q", errUnknownKind, job.Kind)
	}
}

// finalize makes sure the job is terminal. A job that returned an error and
// is not yet terminal is aborted with that error's message.
func (w *Worker) finalize(ctx context.Context, id string, runErr error) (models.JobStatus, error) {
	if runErr == nil {
		return models.StatusCompleted, nil
	}

	message := runErr.Error()
	if errors.Is(runErr, context.DeadlineExceeded) && w.jobTimeout > 0 {
		message = fmt.Sprintf("job timed out after %s", w.jobTimeout)
	}

	// The job context may already be done; the abort must still land.
	_, err := w.update(context.WithoutCancel(ctx), id, func(j *models.Job) error {
		return j.Abort(message, w.now())
	})
	if err != nil && !errors.Is(err, models.ErrJobTerminal) {
		w.log.Error("Failed to mark job failed",
			logger.String("job_id", id),
			logger.Error(err),
		)
	}
	return models.StatusFailed, runErr
}

// runArticle processes every input in order. Item failures are recorded as
// results and never fail the job.
func (w *Worker) runArticle(ctx context.Context, job *models.Job) error {
	total := len(job.Inputs)
	for i, url := range job.Inputs {
		if err := ctx.Err(); err != nil {
			return err
		}

		if _, err := w.update(ctx, job.ID, func(j *models.Job) error {
			return j.Advance(models.ProgressOf(i, total), w.now())
		}); err != nil {
			return err
		}

		result := w.articleItem(ctx, url)

		if _, err := w.update(ctx, job.ID, func(j *models.Job) error {
			return j.Append(result, w.now())
		}); err != nil {
			return err
		}
	}

	_, err := w.update(ctx, job.ID, func(j *models.Job) error {
		return j.Finish(w.now())
	})
	return err
}

func (w *Worker) articleItem(ctx context.Context, url string) (result models.ItemResult) {
	started := time.Now()
	defer func() {
		if r := recover(); r != nil {
			w.log.Error("Recovered from panic while processing item",
				logger.String("url", url),
				logger.Any("panic", r),
			)
			result = models.FailedResult(url, fmt.Sprintf("internal error: %v", r))
		}
		w.metrics.ItemProcessed(string(models.KindArticle), result.Succeeded(), time.Since(started))
	}()

	page := w.pages.Extract(ctx, url)
	if page.Failed() {
		w.log.Warn("Extraction failed", logger.String("url", url), logger.String("error", page.Error))
		return models.FailedResult(url, page.Error)
	}

	content, err := w.generator.GenerateArticle(ctx, page)
	if err != nil {
		w.log.Warn("Generation failed", logger.String("url", url), logger.Error(err))
		return models.FailedResult(url, err.Error())
	}
	return models.SuccessResult(url, content, page.Summary())
}

// runProduct handles the single-URL variant. Any failure fails the job.
func (w *Worker) runProduct(ctx context.Context, job *models.Job) error {
	if len(job.Inputs) != 1 {
		return fmt.Errorf("product job needs exactly one URL, got %d", len(job.Inputs))
	}
	if w.products == nil {
		return errBrowserDisabled
	}

	url := job.Inputs[0]
	started := time.Now()
	ok := false
	defer func() {
		w.metrics.ItemProcessed(string(models.KindProduct), ok, time.Since(started))
	}()

	if _, err := w.update(ctx, job.ID, func(j *models.Job) error {
		return j.Advance(25, w.now())
	}); err != nil {
		return err
	}

	product, err := w.products.Extract(ctx, url)
	if err != nil {
		return err
	}

	if _, err := w.update(ctx, job.ID, func(j *models.Job) error {
		return j.Advance(50, w.now())
	}); err != nil {
		return err
	}

	content, err := w.generator.GenerateProduct(ctx, product)
	if err != nil {
		return err
	}

	result := models.SuccessResult(url, content, product.Summary())
	result.Product = product

	if _, err := w.update(ctx, job.ID, func(j *models.Job) error {
		if err := j.Append(result, w.now()); err != nil {
			return err
		}
		return j.Finish(w.now())
	}); err != nil {
		return err
	}
	ok = true
	return nil
}

// update applies fn through the store and announces the change.
func (w *Worker) update(ctx context.Context, id string, fn queue.UpdateFunc) (*models.Job, error) {
	job, err := w.store.Update(ctx, id, fn)
	if err != nil {
		return nil, err
	}
	w.notify(id)
	return job, nil
}
