package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/jupark12/go-content-queue/logger"
	"github.com/jupark12/go-content-queue/models"
)

type generateArticleRequest struct {
	BaseURLs []string `json:"base_urls"`
}

type generateProductRequest struct {
	ProductURL string `json:"product_url"`
}

type submitResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	TaskID  string `json:"task_id"`
}

func errorBody(message string) gin.H {
	return gin.H{"status": "error", "message": message}
}

// handleGenerateArticle starts an article job for a batch of URLs.
func (s *Server) handleGenerateArticle(c *gin.Context) {
	var req generateArticleRequest
	if err := c.ShouldBindJSON(&req); err != nil || len(req.BaseURLs) == 0 {
		c.JSON(http.StatusBadRequest, errorBody("base_urls array is required and must not be empty"))
		return
	}

	id, err := s.jobs.SubmitArticles(c.Request.Context(), req.BaseURLs)
	if err != nil {
		s.submitError(c, err, "Failed to initiate article generation")
		return
	}
	c.JSON(http.StatusOK, submitResponse{
		Status:  "success",
		Message: "Article generation initiated",
		TaskID:  id,
	})
}

// handleGenerateProduct starts a product job for one listing URL.
func (s *Server) handleGenerateProduct(c *gin.Context) {
	var req generateProductRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.ProductURL == "" {
		c.JSON(http.StatusBadRequest, errorBody("product_url is required"))
		return
	}

	id, err := s.jobs.SubmitProduct(c.Request.Context(), req.ProductURL)
	if err != nil {
		s.submitError(c, err, "Failed to initiate product generation")
		return
	}
	c.JSON(http.StatusOK, submitResponse{
		Status:  "success",
		Message: "Product generation initiated",
		TaskID:  id,
	})
}

func (s *Server) submitError(c *gin.Context, err error, fallback string) {
	_ = c.Error(err)
	switch {
	case errors.Is(err, models.ErrInvalidInput):
		c.JSON(http.StatusBadRequest, errorBody(err.Error()))
	case errors.Is(err, models.ErrQueueFull):
		c.JSON(http.StatusServiceUnavailable, errorBody("Job queue is full, try again later"))
	default:
		c.JSON(http.StatusInternalServerError, errorBody(fallback))
	}
}

// handleStatus returns the job record for one kind of job.
func (s *Server) handleStatus(kind models.JobKind) gin.HandlerFunc {
	return func(c *gin.Context) {
		job, err := s.jobs.StatusOf(c.Request.Context(), kind, c.Param("taskId"))
		if err != nil {
			s.lookupError(c, err)
			return
		}
		c.JSON(http.StatusOK, job)
	}
}

// handleJobDetails returns any job by id.
func (s *Server) handleJobDetails(c *gin.Context) {
	job, err := s.jobs.Status(c.Request.Context(), c.Param("taskId"))
	if err != nil {
		s.lookupError(c, err)
		return
	}
	c.JSON(http.StatusOK, job)
}

func (s *Server) lookupError(c *gin.Context, err error) {
	if errors.Is(err, models.ErrNotFound) {
		c.JSON(http.StatusNotFound, errorBody("Task not found"))
		return
	}
	_ = c.Error(err)
	c.JSON(http.StatusInternalServerError, errorBody("Failed to load task"))
}

// handleListJobs lists jobs, optionally filtered by ?status=.
func (s *Server) handleListJobs(c *gin.Context) {
	jobs, err := s.jobs.List(c.Request.Context(), models.JobStatus(c.Query("status")))
	if err != nil {
		if errors.Is(err, models.ErrInvalidInput) {
			c.JSON(http.StatusBadRequest, errorBody("Invalid status parameter"))
			return
		}
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, errorBody("Failed to list jobs"))
		return
	}
	c.JSON(http.StatusOK, jobs)
}

func (s *Server) handleHealth(c *gin.Context) {
	body := gin.H{"status": "ok"}
	if s.pool != nil {
		body["workers"] = s.pool.Size()
		body["busy_workers"] = s.pool.Busy()
		body["queued_jobs"] = s.pool.Queued()
	}
	if s.wsManager != nil {
		body["websocket_clients"] = s.wsManager.ClientCount()
	}
	c.JSON(http.StatusOK, body)
}

// handleWebSocket sends the current job list, then streams job updates.
func (s *Server) handleWebSocket(c *gin.Context) {
	if s.wsManager == nil {
		c.JSON(http.StatusNotFound, errorBody("websocket updates are disabled"))
		return
	}

	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.log.Warn("Failed to upgrade to WebSocket", logger.Error(err))
		return
	}

	jobs, err := s.jobs.List(c.Request.Context(), "")
	if err != nil {
		s.log.Warn("Failed to list jobs for websocket client", logger.Error(err))
		jobs = []*models.Job{}
	}
	// Written before registration so it cannot interleave with broadcasts.
	if err := conn.WriteJSON(gin.H{"type": "initial_jobs", "jobs": jobs}); err != nil {
		_ = conn.Close()
		return
	}
	s.wsManager.RegisterClient(conn)

	go func() {
		for {
			// Client messages are ignored; a read error means the client left.
			if _, _, err := conn.ReadMessage(); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					s.log.Debug("WebSocket read error", logger.Error(err))
				}
				s.wsManager.UnregisterClient(conn)
				return
			}
		}
	}()
}
