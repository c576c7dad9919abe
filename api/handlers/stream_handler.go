package handlers

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/yourusername/ytgrab/internal/app"
	"github.com/yourusername/ytgrab/internal/domain"
)

// StreamHandler serves muxed streams synchronously with byte-range
// pass-through, so clients can seek without the engine buffering the
// whole file
type StreamHandler struct {
	jobMgr *app.JobManager
	logger *zap.Logger
}

// NewStreamHandler creates a new stream handler
func NewStreamHandler(jobMgr *app.JobManager, logger *zap.Logger) *StreamHandler {
	return &StreamHandler{
		jobMgr: jobMgr,
		logger: logger,
	}
}

// Stream handles GET /api/v1/stream
func (h *StreamHandler) Stream(c *gin.Context) {
	rawURL := c.Query("url")
	if rawURL == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "url query parameter is required"})
		return
	}
	quality := c.Query("quality")

	rng, err := parseRangeHeader(c.GetHeader("Range"))
	if err != nil {
		c.JSON(http.StatusRequestedRangeNotSatisfiable, gin.H{"error": err.Error()})
		return
	}

	stream, desc, err := h.jobMgr.OpenDirect(c.Request.Context(), rawURL, quality, rng)
	if err != nil {
		h.logger.Warn("direct stream failed", zap.String("url", rawURL), zap.Error(err))
		writeError(c, err)
		return
	}
	defer stream.Body.Close()

	contentType := stream.ContentType
	if contentType == "" {
		contentType = "video/" + desc.Ext
	}

	extraHeaders := map[string]string{
		"Accept-Ranges": "bytes",
	}
	if stream.ContentRange != "" {
		extraHeaders["Content-Range"] = stream.ContentRange
	}

	c.DataFromReader(stream.StatusCode, stream.ContentLength, contentType, stream.Body, extraHeaders)
}

// parseRangeHeader parses a single-range Range header into a ByteRange.
// Returns nil for an absent header. Multi-range and suffix-range
// requests are not supported.
func parseRangeHeader(header string) (*domain.ByteRange, error) {
	if header == "" {
		return nil, nil
	}
	spec, ok := strings.CutPrefix(header, "bytes=")
	if !ok || strings.Contains(spec, ",") {
		return nil, fmt.Errorf("unsupported range header %q", header)
	}

	start, end, ok := strings.Cut(spec, "-")
	if !ok || start == "" {
		return nil, fmt.Errorf("unsupported range header %q", header)
	}
	startN, err := strconv.ParseInt(start, 10, 64)
	if err != nil || startN < 0 {
		return nil, fmt.Errorf("invalid range start %q", start)
	}

	rng := &domain.ByteRange{Start: startN, End: -1}
	if end != "" {
		endN, err := strconv.ParseInt(end, 10, 64)
		if err != nil || endN < startN {
			return nil, fmt.Errorf("invalid range end %q", end)
		}
		rng.End = endN
	}
	return rng, nil
}
