package handlers

import (
	"net/http"
	"os"
	"path/filepath"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/yourusername/ytgrab/internal/app"
	"github.com/yourusername/ytgrab/internal/domain"
	"github.com/yourusername/ytgrab/internal/infrastructure"
)

// JobHistory reads the archive of terminal jobs. Nil when history is
// disabled by configuration.
type JobHistory interface {
	FindRecent(limit int, state string) ([]infrastructure.JobRecord, error)
	Stats() (*infrastructure.HistoryStats, error)
}

// JobHandler handles job lifecycle HTTP requests
type JobHandler struct {
	jobMgr  *app.JobManager
	history JobHistory
	logger  *zap.Logger
}

// NewJobHandler creates a new job handler
func NewJobHandler(jobMgr *app.JobManager, history JobHistory, logger *zap.Logger) *JobHandler {
	return &JobHandler{
		jobMgr:  jobMgr,
		history: history,
		logger:  logger,
	}
}

// SubmitJobRequest represents a request to submit a download job
type SubmitJobRequest struct {
	URL     string `json:"url" binding:"required"`
	Quality string `json:"quality,omitempty"`
	Kind    string `json:"kind,omitempty"`
}

// SubmitJob handles POST /api/v1/jobs
func (h *JobHandler) SubmitJob(c *gin.Context) {
	var req SubmitJobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	id, err := h.jobMgr.Submit(app.SubmitRequest{
		URL:     req.URL,
		Quality: req.Quality,
		Kind:    domain.JobKind(req.Kind),
	})
	if err != nil {
		writeError(c, err)
		return
	}

	job, err := h.jobMgr.Status(id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, job)
}

// GetJob handles GET /api/v1/jobs/:id
func (h *JobHandler) GetJob(c *gin.Context) {
	job, err := h.jobMgr.Status(c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, job)
}

// CancelJob handles POST /api/v1/jobs/:id/cancel
func (h *JobHandler) CancelJob(c *gin.Context) {
	id := c.Param("id")
	if err := h.jobMgr.Cancel(id); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "cancellation requested"})
}

// ListJobs handles GET /api/v1/jobs, serving the archive newest first
func (h *JobHandler) ListJobs(c *gin.Context) {
	if h.history == nil {
		c.JSON(http.StatusOK, []infrastructure.JobRecord{})
		return
	}

	limit, _ := strconv.Atoi(c.Query("limit"))
	records, err := h.history.FindRecent(limit, c.Query("state"))
	if err != nil {
		h.logger.Error("failed to list archived jobs", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, records)
}

// GetStats handles GET /api/v1/jobs/stats
func (h *JobHandler) GetStats(c *gin.Context) {
	if h.history == nil {
		c.JSON(http.StatusOK, infrastructure.HistoryStats{})
		return
	}

	stats, err := h.history.Stats()
	if err != nil {
		h.logger.Error("failed to compute stats", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, stats)
}

// GetFile handles GET /api/v1/jobs/:id/file, serving the completed
// artifact of a single-video or audio job
func (h *JobHandler) GetFile(c *gin.Context) {
	job, err := h.jobMgr.Status(c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}

	if job.State != domain.StateCompleted {
		c.JSON(http.StatusConflict, gin.H{"error": "job is not completed", "state": job.State})
		return
	}

	info, err := os.Stat(job.ResultPath)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "result artifact no longer exists"})
		return
	}
	if info.IsDir() {
		c.JSON(http.StatusConflict, gin.H{"error": "playlist results are a directory; fetch items individually", "path": job.ResultPath})
		return
	}

	c.FileAttachment(job.ResultPath, filepath.Base(job.ResultPath))
}
