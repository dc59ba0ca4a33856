package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/yourusername/mediagrab/internal/app"
	"github.com/yourusername/mediagrab/internal/domain"
)

// AnalyzeHandler handles URL analysis requests
type AnalyzeHandler struct {
	analyzer *app.Analyzer
	logger   *zap.Logger
}

// NewAnalyzeHandler creates a new analyze handler
func NewAnalyzeHandler(analyzer *app.Analyzer, logger *zap.Logger) *AnalyzeHandler {
	return &AnalyzeHandler{analyzer: analyzer, logger: logger}
}

// AnalyzeRequest represents a request to analyze a URL
type AnalyzeRequest struct {
	URL string `json:"url" binding:"required"`
}

// Analyze handles POST /api/v1/analyze
func (h *AnalyzeHandler) Analyze(c *gin.Context) {
	var req AnalyzeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := h.analyzer.Analyze(c.Request.Context(), req.URL)
	if err != nil {
		status, payload := failurePayload(err)
		c.JSON(status, payload)
		return
	}

	c.JSON(http.StatusOK, result)
}

// failurePayload renders a typed extraction error as a structured body. Raw
// internal errors surface as a generic failure, never a stack trace.
func failurePayload(err error) (int, gin.H) {
	var extractErr *domain.ExtractError
	if !errors.As(err, &extractErr) {
		return http.StatusInternalServerError, gin.H{
			"success": false,
			"error":   "Analysis failed",
		}
	}

	status := http.StatusUnprocessableEntity
	switch extractErr.Kind {
	case domain.ErrInvalidURL, domain.ErrUnsupportedURL, domain.ErrUnsupportedLinkType:
		status = http.StatusBadRequest
	case domain.ErrAccessDenied:
		status = http.StatusForbidden
	case domain.ErrContentGone, domain.ErrNoMediaFound:
		status = http.StatusNotFound
	case domain.ErrTooManyStreams:
		status = http.StatusTooManyRequests
	case domain.ErrToolMissing, domain.ErrTimeout:
		status = http.StatusServiceUnavailable
	}

	return status, gin.H{
		"success": false,
		"kind":    extractErr.Kind,
		"error":   extractErr.Message,
	}
}
