package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/jupark12/go-content-queue/config"
	"github.com/jupark12/go-content-queue/logger"
	"github.com/jupark12/go-content-queue/models"
	"github.com/jupark12/go-content-queue/queue"
	"github.com/jupark12/go-content-queue/server"
	"github.com/jupark12/go-content-queue/service"
	"github.com/jupark12/go-content-queue/worker"
	"github.com/spf13/cobra"
)

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the worker pool",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context())
		},
	}
}

func runServe(parent context.Context) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			log.Warn("Error releasing resources", logger.Error(err))
		}
	}()

	dispatcher := queue.NewDispatcher(cfg.Workers.QueueSize)
	jobs := service.NewJobService(a.store, dispatcher, a.metrics, log)

	if cfg.Store.Driver != config.DriverMemory {
		if _, err := jobs.RecoverInterrupted(ctx); err != nil {
			return err
		}
	}

	wsManager := models.NewWebSocketManager(log)
	wsManager.Start(ctx)

	pool := worker.NewPool(cfg.Workers.Count, dispatcher, a.workers, log)
	srv := server.New(cfg.Server, server.Deps{
		Jobs:      jobs,
		WebSocket: wsManager,
		Metrics:   a.metrics,
		Pool:      pool,
	}, log)
	pool.SetNotifier(srv.NotifyJobUpdate)

	// Workers outlive the signal long enough for the server to drain.
	workerCtx, cancelWorkers := context.WithCancel(context.WithoutCancel(ctx))
	pool.Start(workerCtx)

	log.Info("Content queue started",
		logger.Int("workers", cfg.Workers.Count),
		logger.Int("queue_size", cfg.Workers.QueueSize),
		logger.String("store", cfg.Store.Driver),
		logger.String("llm_provider", cfg.LLM.Provider),
	)

	runErr := srv.Run(ctx)

	log.Info("Shutting down gracefully...")
	dispatcher.Close()
	cancelWorkers()
	pool.Wait()
	return runErr
}
