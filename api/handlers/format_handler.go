package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/yourusername/ytgrab/internal/app"
	"github.com/yourusername/ytgrab/internal/domain"
)

// FormatHandler handles format resolution requests
type FormatHandler struct {
	jobMgr *app.JobManager
	logger *zap.Logger
}

// NewFormatHandler creates a new format handler
func NewFormatHandler(jobMgr *app.JobManager, logger *zap.Logger) *FormatHandler {
	return &FormatHandler{
		jobMgr: jobMgr,
		logger: logger,
	}
}

// ListFormatsRequest represents a request to resolve formats for a URL
type ListFormatsRequest struct {
	URL string `json:"url" binding:"required"`
}

// DownloadOption is one quality a client can request, with how it would
// be fulfilled and the approximate transfer size
type DownloadOption struct {
	Quality string `json:"quality"`
	Source  string `json:"source"` // "muxed" or "merged"
	Size    int64  `json:"size,omitempty"`
	Ext     string `json:"ext"`
}

// ListFormatsResponse represents a resolved format catalog
type ListFormatsResponse struct {
	VideoID         string                    `json:"video_id"`
	Title           string                    `json:"title"`
	DurationSeconds int                       `json:"duration_seconds"`
	Streams         []domain.StreamDescriptor `json:"streams"`
	Excluded        []domain.StreamDescriptor `json:"excluded,omitempty"`
	Options         []DownloadOption          `json:"options"`
}

// ListFormats handles POST /api/v1/formats
func (h *FormatHandler) ListFormats(c *gin.Context) {
	var req ListFormatsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	catalog, err := h.jobMgr.ListFormats(c.Request.Context(), req.URL)
	if err != nil {
		h.logger.Warn("format resolution failed", zap.String("url", req.URL), zap.Error(err))
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, ListFormatsResponse{
		VideoID:         catalog.VideoID,
		Title:           catalog.Title,
		DurationSeconds: int(catalog.Duration.Seconds()),
		Streams:         catalog.Streams,
		Excluded:        catalog.Excluded,
		Options:         buildOptions(catalog),
	})
}

// buildOptions summarizes how each available quality would be delivered.
// A muxed stream downloads directly; otherwise the video-only stream is
// merged with the best audio and the size is the sum of both parts.
func buildOptions(catalog *domain.FormatCatalog) []DownloadOption {
	options := make([]DownloadOption, 0)
	for _, quality := range catalog.Qualities() {
		if muxed := catalog.FindMuxed(quality); muxed != nil {
			options = append(options, DownloadOption{
				Quality: quality,
				Source:  "muxed",
				Size:    muxed.Size,
				Ext:     muxed.Ext,
			})
			continue
		}
		video, audio := catalog.FindAdaptivePair(quality)
		if video == nil || audio == nil {
			continue
		}
		size := int64(0)
		if video.Size > 0 && audio.Size > 0 {
			size = video.Size + audio.Size
		}
		options = append(options, DownloadOption{
			Quality: quality,
			Source:  "merged",
			Size:    size,
			Ext:     video.Ext,
		})
	}
	return options
}
