package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/yourusername/vidfetch-go/internal/app"
	"github.com/yourusername/vidfetch-go/internal/domain"
)

// TaskHandler handles task-related HTTP requests
type TaskHandler struct {
	engine *app.Engine
	logger *zap.Logger
}

// NewTaskHandler creates a new task handler
func NewTaskHandler(engine *app.Engine, logger *zap.Logger) *TaskHandler {
	return &TaskHandler{
		engine: engine,
		logger: logger,
	}
}

// AddTaskRequest represents a request to add a download task
type AddTaskRequest struct {
	URL       string `json:"url" binding:"required"`
	Format    string `json:"format,omitempty"`
	AudioOnly bool   `json:"audio_only,omitempty"`
}

// AddTask handles POST /api/v1/tasks
func (h *TaskHandler) AddTask(c *gin.Context) {
	var req AddTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	id, err := h.engine.Submit(req.URL, req.Format, req.AudioOnly)
	if err != nil {
		if errors.Is(err, domain.ErrEngineClosed) {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
			return
		}
		h.logger.Error("Failed to submit task", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	task, err := h.engine.GetTask(id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, task)
}

// GetTask handles GET /api/v1/tasks/:id
func (h *TaskHandler) GetTask(c *gin.Context) {
	task, err := h.engine.GetTask(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "task not found"})
		return
	}
	c.JSON(http.StatusOK, task)
}

// ListTasks handles GET /api/v1/tasks
func (h *TaskHandler) ListTasks(c *gin.Context) {
	tasks := h.engine.ListTasks()
	if status := c.Query("status"); status != "" {
		filtered := tasks[:0]
		for _, t := range tasks {
			if string(t.Status.Kind) == status {
				filtered = append(filtered, t)
			}
		}
		tasks = filtered
	}
	c.JSON(http.StatusOK, tasks)
}

// GetStats handles GET /api/v1/tasks/stats
func (h *TaskHandler) GetStats(c *gin.Context) {
	stats, err := h.engine.Stats()
	if err != nil {
		h.logger.Error("Failed to get stats", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, stats)
}

// CancelTask handles POST /api/v1/tasks/:id/cancel
func (h *TaskHandler) CancelTask(c *gin.Context) {
	h.engine.Cancel(c.Param("id"))
	c.JSON(http.StatusOK, gin.H{"message": "task cancelled"})
}

// PauseTask handles POST /api/v1/tasks/:id/pause
func (h *TaskHandler) PauseTask(c *gin.Context) {
	if err := h.engine.Pause(c.Param("id")); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "task paused"})
}

// ResumeTask handles POST /api/v1/tasks/:id/resume
func (h *TaskHandler) ResumeTask(c *gin.Context) {
	if err := h.engine.Resume(c.Param("id")); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "task resumed"})
}

// RetryTask handles POST /api/v1/tasks/:id/retry
func (h *TaskHandler) RetryTask(c *gin.Context) {
	if err := h.engine.Retry(c.Param("id")); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "task queued for retry"})
}

// DeleteTask handles DELETE /api/v1/tasks/:id
func (h *TaskHandler) DeleteTask(c *gin.Context) {
	if err := h.engine.Remove(c.Param("id")); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "task removed"})
}

// GetMetadata handles GET /api/v1/metadata?url=
func (h *TaskHandler) GetMetadata(c *gin.Context) {
	url := c.Query("url")
	if url == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "url query parameter is required"})
		return
	}

	meta, err := h.engine.FetchMetadata(c.Request.Context(), url)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidMetadata) {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
			return
		}
		h.logger.Error("Failed to fetch metadata",
			zap.String("url", url), zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, meta)
}

func (h *TaskHandler) respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, domain.ErrTaskNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "task not found"})
	case errors.Is(err, domain.ErrEngineClosed):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	}
}
