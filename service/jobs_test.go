package service

import (
	"context"
	"fmt"
	"testing"

	"github.com/jupark12/go-content-queue/logger"
	"github.com/jupark12/go-content-queue/metrics"
	"github.com/jupark12/go-content-queue/models"
	"github.com/jupark12/go-content-queue/queue"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newService(capacity int) (*JobService, *queue.MemoryStore, *queue.Dispatcher, *metrics.Metrics) {
	store := queue.NewMemoryStore()
	dispatcher := queue.NewDispatcher(capacity)
	m := metrics.New()
	return NewJobService(store, dispatcher, m, logger.NewNop()), store, dispatcher, m
}

func TestSubmitArticlesCreatesPendingJob(t *testing.T) {
	svc, _, dispatcher, m := newService(4)
	ctx := context.Background()

	id, err := svc.SubmitArticles(ctx, []string{" http://ok.test/a ", "http://unreachable.test/b"})
	require.NoError(t, err)
	require.NotEmpty(t, id)

	job, err := svc.Status(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, job.Status)
	assert.Equal(t, models.KindArticle, job.Kind)
	assert.Equal(t, []string{"http://ok.test/a", "http://unreachable.test/b"}, job.Inputs)
	assert.Empty(t, job.Results)

	task := <-dispatcher.Tasks()
	assert.Equal(t, queue.Task{JobID: id, Kind: models.KindArticle}, task)
	assert.InDelta(t, 1, testutil.ToFloat64(m.JobsSubmitted.WithLabelValues("article")), 0)
}

func TestSubmitIssuesUniqueIDs(t *testing.T) {
	svc, _, _, _ := newService(100)
	seen := map[string]bool{}
	for i := range 50 {
		id, err := svc.SubmitArticles(context.Background(), []string{fmt.Sprintf("http://ok.test/%d", i)})
		require.NoError(t, err)
		assert.False(t, seen[id], "duplicate id %s", id)
		seen[id] = true
	}
}

func TestSubmitRejectsInvalidInput(t *testing.T) {
	svc, store, _, m := newService(4)
	ctx := context.Background()

	_, err := svc.SubmitArticles(ctx, nil)
	assert.ErrorIs(t, err, models.ErrInvalidInput)
	_, err = svc.SubmitArticles(ctx, []string{})
	assert.ErrorIs(t, err, models.ErrInvalidInput)
	_, err = svc.SubmitArticles(ctx, []string{"http://ok.test/a", "  "})
	assert.ErrorIs(t, err, models.ErrInvalidInput)
	_, err = svc.SubmitProduct(ctx, "")
	assert.ErrorIs(t, err, models.ErrInvalidInput)

	jobs, err := store.List(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, jobs)
	assert.InDelta(t, 3, testutil.ToFloat64(m.JobsRejected.WithLabelValues("article", "invalid_input")), 0)

	_, err = svc.Status(ctx, "fabricated-id")
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestSubmitWhenQueueFull(t *testing.T) {
	svc, store, _, _ := newService(1)
	ctx := context.Background()

	_, err := svc.SubmitProduct(ctx, "https://www.ebay.com/itm/1")
	require.NoError(t, err)

	_, err = svc.SubmitProduct(ctx, "https://www.ebay.com/itm/2")
	require.ErrorIs(t, err, models.ErrQueueFull)

	failed, err := store.List(ctx, models.StatusFailed)
	require.NoError(t, err)
	require.Len(t, failed, 1)
	assert.Equal(t, "https://www.ebay.com/itm/2", failed[0].Inputs[0])
	assert.Equal(t, models.ErrQueueFull.Error(), failed[0].Error)
}

func TestStatusOfIsKindScoped(t *testing.T) {
	svc, _, _, _ := newService(4)
	ctx := context.Background()

	id, err := svc.SubmitProduct(ctx, "https://www.etsy.com/listing/1")
	require.NoError(t, err)

	job, err := svc.StatusOf(ctx, models.KindProduct, id)
	require.NoError(t, err)
	assert.Equal(t, []string{"https://www.etsy.com/listing/1"}, job.Inputs)

	_, err = svc.StatusOf(ctx, models.KindArticle, id)
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestStatusOfTerminalJobIsStable(t *testing.T) {
	svc, store, _, _ := newService(4)
	ctx := context.Background()

	id, err := svc.SubmitArticles(ctx, []string{"http://ok.test/a"})
	require.NoError(t, err)
	_, err = store.Update(ctx, id, func(j *models.Job) error {
		if err := j.Start(j.CreatedAt); err != nil {
			return err
		}
		if err := j.Append(models.FailedResult("http://ok.test/a", "timeout"), j.CreatedAt); err != nil {
			return err
		}
		return j.Finish(j.CreatedAt)
	})
	require.NoError(t, err)

	first, err := svc.Status(ctx, id)
	require.NoError(t, err)
	second, err := svc.Status(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestList(t *testing.T) {
	svc, _, _, _ := newService(4)
	ctx := context.Background()

	a, err := svc.SubmitArticles(ctx, []string{"http://ok.test/a"})
	require.NoError(t, err)
	b, err := svc.SubmitProduct(ctx, "https://www.ebay.com/itm/1")
	require.NoError(t, err)

	jobs, err := svc.List(ctx, "")
	require.NoError(t, err)
	require.Len(t, jobs, 2)
	assert.Equal(t, a, jobs[0].ID)
	assert.Equal(t, b, jobs[1].ID)

	jobs, err = svc.List(ctx, models.StatusCompleted)
	require.NoError(t, err)
	assert.Empty(t, jobs)

	_, err = svc.List(ctx, "done")
	assert.ErrorIs(t, err, models.ErrInvalidInput)
}

func TestRecoverInterrupted(t *testing.T) {
	svc, store, _, _ := newService(4)
	ctx := context.Background()

	pending, err := svc.SubmitArticles(ctx, []string{"http://ok.test/a"})
	require.NoError(t, err)
	running, err := svc.SubmitArticles(ctx, []string{"http://ok.test/b"})
	require.NoError(t, err)
	done, err := svc.SubmitArticles(ctx, []string{"http://ok.test/c"})
	require.NoError(t, err)

	_, err = store.Update(ctx, running, func(j *models.Job) error { return j.Start(j.CreatedAt) })
	require.NoError(t, err)
	_, err = store.Update(ctx, done, func(j *models.Job) error { return j.Finish(j.CreatedAt) })
	require.NoError(t, err)

	n, err := svc.RecoverInterrupted(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	for _, id := range []string{pending, running} {
		job, err := svc.Status(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, models.StatusFailed, job.Status)
		assert.Equal(t, "interrupted by service restart", job.Error)
	}
	job, err := svc.Status(ctx, done)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, job.Status)
}
