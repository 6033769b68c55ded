package worker

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jupark12/go-content-queue/logger"
	"github.com/jupark12/go-content-queue/metrics"
	"github.com/jupark12/go-content-queue/models"
	"github.com/jupark12/go-content-queue/queue"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePages struct {
	block bool
}

func (f *fakePages) Extract(ctx context.Context, url string) *models.PageData {
	switch {
	case f.block:
		<-ctx.Done()
		return &models.PageData{URL: url, Error: ctx.Err().Error()}
	case strings.Contains(url, "unreachable"):
		return &models.PageData{URL: url, Error: "dial tcp: lookup unreachable.test: no such host"}
	case strings.Contains(url, "panic"):
		panic("selector exploded")
	}
	return &models.PageData{URL: url, Title: "Title of " + url, Description: "About " + url}
}

type fakeProducts struct {
	product *models.ProductData
	err     error
}

func (f *fakeProducts) Extract(_ context.Context, url string) (*models.ProductData, error) {
	if f.err != nil {
		return nil, &models.ExtractionError{URL: url, Err: f.err}
	}
	return f.product, nil
}

type fakeGenerator struct {
	failOn string
}

func (f *fakeGenerator) GenerateArticle(_ context.Context, page *models.PageData) (string, error) {
	if f.failOn != "" && strings.Contains(page.URL, f.failOn) {
		return "", &models.GenerationError{Err: errors.New("429 quota exceeded")}
	}
	return "<html>" + page.Title + "</html>", nil
}

func (f *fakeGenerator) GenerateProduct(_ context.Context, product *models.ProductData) (string, error) {
	if f.failOn != "" {
		return "", &models.GenerationError{Err: errors.New("malformed response")}
	}
	return fmt.Sprintf(`{"name":%q}`, product.Name), nil
}

var now = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestWorker(t *testing.T, opts Options) (*Worker, *queue.MemoryStore) {
	t.Helper()
	store := queue.NewMemoryStore()
	opts.Store = store
	if opts.Pages == nil {
		opts.Pages = &fakePages{}
	}
	if opts.Generator == nil {
		opts.Generator = &fakeGenerator{}
	}
	opts.Clock = func() time.Time { return now }
	return NewWorker("worker-test", opts, logger.NewNop()), store
}

func submit(t *testing.T, store queue.JobStore, kind models.JobKind, urls ...string) queue.Task {
	t.Helper()
	id := uuid.NewString()
	require.NoError(t, store.Create(context.Background(), models.NewJob(id, kind, urls, now)))
	return queue.Task{JobID: id, Kind: kind}
}

func TestArticleJobIsolatesItemFailures(t *testing.T) {
	w, store := newTestWorker(t, Options{})
	task := submit(t, store, models.KindArticle, "http://ok.test/a", "http://unreachable.test/b")

	require.NoError(t, w.Process(context.Background(), task))

	job, err := store.Get(context.Background(), task.JobID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, job.Status)
	assert.Equal(t, models.Progress(100), job.Progress)
	require.Len(t, job.Results, 2)

	ok, failed := job.Results[0], job.Results[1]
	assert.True(t, ok.Succeeded())
	require.NotNil(t, ok.Content)
	assert.Equal(t, "<html>Title of http://ok.test/a</html>", *ok.Content)
	assert.Equal(t, "Title of http://ok.test/a", ok.Summary.Title)

	assert.Nil(t, failed.Content)
	assert.Equal(t, "http://unreachable.test/b", failed.URL)
	assert.Contains(t, failed.Error, "no such host")
	assert.NotNil(t, job.StartedAt)
	assert.NotNil(t, job.CompletedAt)
}

func TestArticleJobRecordsGenerationFailure(t *testing.T) {
	w, store := newTestWorker(t, Options{Generator: &fakeGenerator{failOn: "/b"}})
	task := submit(t, store, models.KindArticle, "http://ok.test/a", "http://ok.test/b", "http://ok.test/c")

	require.NoError(t, w.Process(context.Background(), task))

	job, err := store.Get(context.Background(), task.JobID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, job.Status)
	require.Len(t, job.Results, 3)
	assert.True(t, job.Results[0].Succeeded())
	assert.Equal(t, "generate content: 429 quota exceeded", job.Results[1].Error)
	assert.True(t, job.Results[2].Succeeded())
}

func TestArticleJobProgressNeverDecreases(t *testing.T) {
	w, store := newTestWorker(t, Options{})
	task := submit(t, store, models.KindArticle, "http://ok.test/1", "http://ok.test/2", "http://ok.test/3")

	var seen []models.Progress
	var statuses []models.JobStatus
	w.notify = func(id string) {
		job, err := store.Get(context.Background(), id)
		require.NoError(t, err)
		seen = append(seen, job.Progress)
		statuses = append(statuses, job.Status)
	}

	require.NoError(t, w.Process(context.Background(), task))

	require.NotEmpty(t, seen)
	for i := 1; i < len(seen); i++ {
		assert.GreaterOrEqual(t, seen[i], seen[i-1])
	}
	assert.Contains(t, seen, models.Progress(33))
	assert.Contains(t, seen, models.Progress(67))
	assert.Equal(t, models.StatusInProgress, statuses[0])
	assert.Equal(t, models.StatusCompleted, statuses[len(statuses)-1])
}

func TestArticleItemPanicIsIsolated(t *testing.T) {
	w, store := newTestWorker(t, Options{})
	task := submit(t, store, models.KindArticle, "http://panic.test/x", "http://ok.test/a")

	require.NoError(t, w.Process(context.Background(), task))

	job, err := store.Get(context.Background(), task.JobID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, job.Status)
	require.Len(t, job.Results, 2)
	assert.Equal(t, "internal error: selector exploded", job.Results[0].Error)
	assert.True(t, job.Results[1].Succeeded())
}

func TestProductJobSucceeds(t *testing.T) {
	product := &models.ProductData{
		URL:         "https://www.ebay.com/itm/1",
		Site:        "ebay",
		Name:        "Vintage Camera",
		Description: "Works great",
	}
	m := metrics.New()
	w, store := newTestWorker(t, Options{Products: &fakeProducts{product: product}, Metrics: m})
	task := submit(t, store, models.KindProduct, product.URL)
	m.JobSubmitted(string(models.KindProduct))

	var progress []models.Progress
	w.notify = func(id string) {
		job, _ := store.Get(context.Background(), id)
		progress = append(progress, job.Progress)
	}

	require.NoError(t, w.Process(context.Background(), task))

	job, err := store.Get(context.Background(), task.JobID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, job.Status)
	assert.Equal(t, []models.Progress{0, 25, 50, 100}, progress)
	require.Len(t, job.Results, 1)
	assert.JSONEq(t, `{"name":"Vintage Camera"}`, *job.Results[0].Content)
	assert.Equal(t, "Vintage Camera", job.Results[0].Summary.Title)
	assert.Equal(t, product, job.Results[0].Product)

	assert.InDelta(t, 1, testutil.ToFloat64(m.JobsFinished.WithLabelValues("product", "completed")), 0)
	assert.InDelta(t, 0, testutil.ToFloat64(m.JobsInFlight), 0)
	assert.InDelta(t, 0, testutil.ToFloat64(m.QueueDepth), 0)
}

func TestProductJobFailsOnExtractionError(t *testing.T) {
	w, store := newTestWorker(t, Options{Products: &fakeProducts{err: models.ErrUnsupportedSite}})
	task := submit(t, store, models.KindProduct, "https://shop.example.com/p/1")

	err := w.Process(context.Background(), task)
	require.ErrorIs(t, err, models.ErrUnsupportedSite)

	job, err := store.Get(context.Background(), task.JobID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusFailed, job.Status)
	assert.Equal(t, "extract https://shop.example.com/p/1: unsupported website", job.Error)
	assert.Equal(t, models.Progress(25), job.Progress)
	assert.Empty(t, job.Results)
}

func TestProductJobFailsOnGenerationError(t *testing.T) {
	w, store := newTestWorker(t, Options{
		Products:  &fakeProducts{product: &models.ProductData{Name: "Lamp"}},
		Generator: &fakeGenerator{failOn: "any"},
	})
	task := submit(t, store, models.KindProduct, "https://www.etsy.com/listing/1")

	var ge *models.GenerationError
	require.ErrorAs(t, w.Process(context.Background(), task), &ge)

	job, err := store.Get(context.Background(), task.JobID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusFailed, job.Status)
	assert.Equal(t, models.Progress(50), job.Progress)
	assert.Empty(t, job.Results)
}

func TestProductJobWithoutBrowser(t *testing.T) {
	w, store := newTestWorker(t, Options{})
	task := submit(t, store, models.KindProduct, "https://www.ebay.com/itm/1")

	require.ErrorIs(t, w.Process(context.Background(), task), errBrowserDisabled)

	job, err := store.Get(context.Background(), task.JobID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusFailed, job.Status)
	assert.Equal(t, errBrowserDisabled.Error(), job.Error)
}

func TestJobTimeoutFailsJob(t *testing.T) {
	w, store := newTestWorker(t, Options{Pages: &fakePages{block: true}, JobTimeout: 20 * time.Millisecond})
	task := submit(t, store, models.KindArticle, "http://slow.test/a", "http://slow.test/b")

	err := w.Process(context.Background(), task)
	require.ErrorIs(t, err, context.DeadlineExceeded)

	job, err := store.Get(context.Background(), task.JobID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusFailed, job.Status)
	assert.Equal(t, "job timed out after 20ms", job.Error)
	assert.Len(t, job.Results, 1)
}

func TestProcessUnknownJob(t *testing.T) {
	w, _ := newTestWorker(t, Options{})

	err := w.Process(context.Background(), queue.Task{JobID: "missing", Kind: models.KindArticle})
	require.ErrorIs(t, err, models.ErrNotFound)
	assert.False(t, w.Processing())
}

func TestProcessTerminalJobIsSkipped(t *testing.T) {
	w, store := newTestWorker(t, Options{})
	task := submit(t, store, models.KindArticle, "http://ok.test/a")
	_, err := store.Update(context.Background(), task.JobID, func(j *models.Job) error {
		return j.Abort("job queue is full", now)
	})
	require.NoError(t, err)

	require.ErrorIs(t, w.Process(context.Background(), task), models.ErrJobTerminal)

	job, err := store.Get(context.Background(), task.JobID)
	require.NoError(t, err)
	assert.Equal(t, "job queue is full", job.Error)
}

func TestPoolDrainsDispatcher(t *testing.T) {
	store := queue.NewMemoryStore()
	dispatcher := queue.NewDispatcher(10)
	pool := NewPool(3, dispatcher, Options{
		Store:     store,
		Pages:     &fakePages{},
		Generator: &fakeGenerator{},
	}, logger.NewNop())

	var mu sync.Mutex
	notified := map[string]int{}
	pool.SetNotifier(func(id string) {
		mu.Lock()
		notified[id]++
		mu.Unlock()
	})

	ids := make([]string, 0, 5)
	for i := range 5 {
		task := submit(t, store, models.KindArticle, fmt.Sprintf("http://ok.test/%d", i))
		require.NoError(t, dispatcher.Dispatch(task))
		ids = append(ids, task.JobID)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	pool.Start(ctx)
	assert.Equal(t, 3, pool.Size())

	require.Eventually(t, func() bool {
		done, err := store.List(context.Background(), models.StatusCompleted)
		return err == nil && len(done) == len(ids)
	}, 2*time.Second, 10*time.Millisecond)

	dispatcher.Close()
	pool.Wait()

	assert.Equal(t, 0, pool.Busy())
	mu.Lock()
	defer mu.Unlock()
	for _, id := range ids {
		assert.Positive(t, notified[id], id)
	}
}
