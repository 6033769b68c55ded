package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jupark12/go-content-queue/config"
	"github.com/jupark12/go-content-queue/logger"
	"github.com/jupark12/go-content-queue/models"
	"github.com/jupark12/go-content-queue/queue"
	"github.com/jupark12/go-content-queue/service"
	"github.com/jupark12/go-content-queue/worker"
	"github.com/spf13/cobra"
)

type generateOptions struct {
	json      bool
	outputDir string
}

func newGenerateCommand() *cobra.Command {
	var opts generateOptions

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Run one job in-process and print the result",
	}
	cmd.PersistentFlags().BoolVar(&opts.json, "json", false, "print the finished job as JSON")
	cmd.PersistentFlags().StringVarP(&opts.outputDir, "output-dir", "o", "", "write each generated item to this directory")

	cmd.AddCommand(&cobra.Command{
		Use:   "article URL...",
		Short: "Generate an HTML article for each page",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			return runGenerate(c.Context(), c.OutOrStdout(), models.KindArticle, args, opts)
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "product URL",
		Short: "Generate product data for a marketplace listing",
		Args:  cobra.ExactArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			return runGenerate(c.Context(), c.OutOrStdout(), models.KindProduct, args, opts)
		},
	})
	return cmd
}

func runGenerate(ctx context.Context, out io.Writer, kind models.JobKind, urls []string, opts generateOptions) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	// Keep stdout for the result.
	cfg.Store.Driver = config.DriverMemory
	cfg.Logging.OutputPaths = []string{"stderr"}

	log, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	a, err := newApp(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	dispatcher := queue.NewDispatcher(1)
	jobs := service.NewJobService(a.store, dispatcher, a.metrics, log)

	var id string
	if kind == models.KindProduct {
		id, err = jobs.SubmitProduct(ctx, urls[0])
	} else {
		id, err = jobs.SubmitArticles(ctx, urls)
	}
	if err != nil {
		return err
	}

	// Failures are recorded on the job and reported below.
	_ = worker.NewWorker("cli", a.workers, log).Process(ctx, <-dispatcher.Tasks())

	job, err := jobs.Status(ctx, id)
	if err != nil {
		return err
	}

	if opts.outputDir != "" {
		if err := writeResults(opts.outputDir, job); err != nil {
			return err
		}
		log.Info("Results written", logger.String("dir", opts.outputDir))
	}

	if opts.json {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(job); err != nil {
			return err
		}
	} else {
		renderJob(out, job)
	}

	if job.Status == models.StatusFailed {
		return fmt.Errorf("job %s failed: %s", job.ID, job.Error)
	}
	return nil
}

func renderJob(out io.Writer, job *models.Job) {
	t := table.NewWriter()
	t.SetOutputMirror(out)
	t.SetStyle(table.StyleLight)
	t.SetTitle(fmt.Sprintf("Job %s  %s  %s", job.ID, job.Status, job.Progress))
	t.AppendHeader(table.Row{"#", "URL", "Outcome", "Title / Error", "Size"})

	for i, r := range job.Results {
		if r.Succeeded() {
			title := ""
			if r.Summary != nil {
				title = r.Summary.Title
			}
			t.AppendRow(table.Row{i + 1, r.URL, "ok", title, len(*r.Content)})
			continue
		}
		t.AppendRow(table.Row{i + 1, r.URL, "failed", r.Error, 0})
	}
	if job.Error != "" {
		t.AppendFooter(table.Row{"", "", "error", job.Error, ""})
	}
	t.Render()
}

// writeResults saves each successful item as NN.html (articles) or NN.json
// (products).
func writeResults(dir string, job *models.Job) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}
	ext := ".html"
	if job.Kind == models.KindProduct {
		ext = ".json"
	}
	for i, r := range job.Results {
		if !r.Succeeded() {
			continue
		}
		path := filepath.Join(dir, fmt.Sprintf("%02d%s", i+1, ext))
		if err := os.WriteFile(path, []byte(*r.Content), 0o644); err != nil {
			return fmt.Errorf("write %s: %w", path, err)
		}
	}
	return nil
}
