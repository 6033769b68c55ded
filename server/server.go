// Package server exposes the job service over HTTP and pushes job updates to
// websocket clients.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/jupark12/go-content-queue/config"
	"github.com/jupark12/go-content-queue/logger"
	"github.com/jupark12/go-content-queue/metrics"
	"github.com/jupark12/go-content-queue/models"
)

// Jobs is the submission and status API the handlers call.
type Jobs interface {
	SubmitArticles(ctx context.Context, urls []string) (string, error)
	SubmitProduct(ctx context.Context, url string) (string, error)
	Status(ctx context.Context, id string) (*models.Job, error)
	StatusOf(ctx context.Context, kind models.JobKind, id string) (*models.Job, error)
	List(ctx context.Context, status models.JobStatus) ([]*models.Job, error)
}

// PoolStats reports worker occupancy for the health endpoint.
type PoolStats interface {
	Size() int
	Busy() int
	Queued() int
}

// Deps are the collaborators the server routes to. Metrics and Pool may be nil.
type Deps struct {
	Jobs      Jobs
	WebSocket *models.WebSocketManager
	Metrics   *metrics.Metrics
	Pool      PoolStats
}

// Server handles HTTP requests for job management
type Server struct {
	jobs      Jobs
	wsManager *models.WebSocketManager
	metrics   *metrics.Metrics
	pool      PoolStats
	upgrader  websocket.Upgrader
	router    *gin.Engine
	http      *http.Server
	cfg       config.ServerConfig
	log       logger.Logger
}

// New creates a server and registers every route.
func New(cfg config.ServerConfig, deps Deps, log logger.Logger) *Server {
	switch {
	case gin.Mode() == gin.TestMode:
	case cfg.Debug:
		gin.SetMode(gin.DebugMode)
	default:
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(recoveryMiddleware(log))
	router.Use(loggerMiddleware(log))
	router.Use(corsMiddleware(cfg.CORSOrigins))

	s := &Server{
		jobs:      deps.Jobs,
		wsManager: deps.WebSocket,
		metrics:   deps.Metrics,
		pool:      deps.Pool,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		router: router,
		cfg:    cfg,
		log:    log,
	}
	s.routes()

	s.http = &http.Server{
		Addr:         cfg.Address(),
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}
	return s
}

func (s *Server) routes() {
	api := s.router.Group("/api")
	api.POST("/generate-article", s.handleGenerateArticle)
	api.GET("/article-status/:taskId", s.handleStatus(models.KindArticle))
	api.POST("/generate-product", s.handleGenerateProduct)
	api.GET("/product-status/:taskId", s.handleStatus(models.KindProduct))
	api.GET("/jobs", s.handleListJobs)
	api.GET("/jobs/:taskId", s.handleJobDetails)

	s.router.GET("/ws", s.handleWebSocket)
	s.router.GET("/health", s.handleHealth)
	if s.metrics != nil {
		s.router.GET("/metrics", gin.WrapH(s.metrics.Handler()))
	}
}

// Handler returns the routed engine.
func (s *Server) Handler() http.Handler {
	return s.router
}

// NotifyJobUpdate broadcasts the current state of a job to websocket clients.
// Workers call it after every mutation.
func (s *Server) NotifyJobUpdate(jobID string) {
	if s.wsManager == nil {
		return
	}
	job, err := s.jobs.Status(context.Background(), jobID)
	if err != nil {
		s.log.Warn("Failed to get job for notification", logger.String("job_id", jobID), logger.Error(err))
		return
	}
	s.wsManager.BroadcastJobUpdate(job)
}

// Run serves until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.log.Info("HTTP server listening",
			logger.String("address", s.http.Addr),
			logger.Duration("read_timeout", s.http.ReadTimeout),
			logger.Duration("write_timeout", s.http.WriteTimeout),
		)
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("server error: %w", err)
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.log.Info("Shutting down HTTP server", logger.Duration("timeout", s.cfg.ShutdownTimeout))
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.ShutdownTimeout)
	defer cancel()

	if err := s.http.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown error: %w", err)
	}
	s.log.Info("HTTP server stopped gracefully")
	return nil
}
