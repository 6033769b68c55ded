package cmd

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jupark12/go-content-queue/config"
	"github.com/jupark12/go-content-queue/generate"
	"github.com/jupark12/go-content-queue/logger"
	"github.com/jupark12/go-content-queue/models"
	"github.com/jupark12/go-content-queue/queue"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func finishedJob(t *testing.T, kind models.JobKind) *models.Job {
	t.Helper()
	job := models.NewJob("job-1", kind, []string{"http://ok.test/a", "http://unreachable.test/b"}, now)
	require.NoError(t, job.Start(now))
	require.NoError(t, job.Append(models.SuccessResult("http://ok.test/a", "<html>A</html>", models.Summary{Title: "Page A"}), now))
	require.NoError(t, job.Append(models.FailedResult("http://unreachable.test/b", "no such host"), now))
	require.NoError(t, job.Finish(now))
	return job
}

func TestRenderJob(t *testing.T) {
	var buf bytes.Buffer
	renderJob(&buf, finishedJob(t, models.KindArticle))

	out := buf.String()
	assert.Contains(t, out, "job-1")
	assert.Contains(t, out, "100%")
	assert.Contains(t, out, "Page A")
	assert.Contains(t, out, "no such host")
}

func TestWriteResults(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")
	require.NoError(t, writeResults(dir, finishedJob(t, models.KindArticle)))

	data, err := os.ReadFile(filepath.Join(dir, "01.html"))
	require.NoError(t, err)
	assert.Equal(t, "<html>A</html>", string(data))

	_, err = os.Stat(filepath.Join(dir, "02.html"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestNewCompleter(t *testing.T) {
	cfg := config.Default().LLM

	_, err := newCompleter(cfg)
	require.ErrorIs(t, err, generate.ErrAPIKeyNotSet)

	cfg.OpenAIKey = "sk-test"
	c, err := newCompleter(cfg)
	require.NoError(t, err)
	assert.Equal(t, "openai", c.Name())

	cfg.Provider = config.ProviderAnthropic
	_, err = newCompleter(cfg)
	require.ErrorIs(t, err, generate.ErrAPIKeyNotSet)

	cfg.AnthropicKey = "ak-test"
	c, err = newCompleter(cfg)
	require.NoError(t, err)
	assert.Equal(t, "anthropic", c.Name())

	cfg.RateLimit = 2
	c, err = newCompleter(cfg)
	require.NoError(t, err)
	assert.IsType(t, &generate.RateLimitedCompleter{}, c)
	assert.Equal(t, "anthropic", c.Name())
}

func TestNewAppWiresMemoryStore(t *testing.T) {
	cfg := config.Default()
	cfg.LLM.OpenAIKey = "sk-test"
	cfg.Browser.Enabled = false

	a, err := newApp(context.Background(), cfg, logger.NewNop())
	require.NoError(t, err)
	defer func() { require.NoError(t, a.Close()) }()

	assert.IsType(t, &queue.MemoryStore{}, a.store)
	assert.NotNil(t, a.workers.Pages)
	assert.NotNil(t, a.workers.Generator)
	assert.Nil(t, a.workers.Products)
	assert.Same(t, a.metrics, a.workers.Metrics)
}

func TestVersionCommand(t *testing.T) {
	var buf bytes.Buffer
	cmd := newVersionCommand()
	cmd.SetOut(&buf)
	require.NoError(t, cmd.Execute())
	assert.Equal(t, "content-queue version dev\n", buf.String())
}
