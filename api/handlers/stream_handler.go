package handlers

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/yourusername/mediagrab/internal/app"
)

// StreamHandler pipes the extraction tool's stdout straight to the client.
type StreamHandler struct {
	streamMgr *app.StreamManager
	logger    *zap.Logger
}

// NewStreamHandler creates a new stream handler
func NewStreamHandler(streamMgr *app.StreamManager, logger *zap.Logger) *StreamHandler {
	return &StreamHandler{streamMgr: streamMgr, logger: logger}
}

// Stream handles GET /api/v1/stream. The request context is the session
// context, so a client disconnect kills the child process; the session's
// idempotent Close releases the ceiling slot exactly once regardless of which
// termination path runs first.
func (h *StreamHandler) Stream(c *gin.Context) {
	url := c.Query("url")
	if url == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "url query parameter is required"})
		return
	}
	formatID := c.Query("format_id")
	audioOnly, _ := strconv.ParseBool(c.Query("audio_only"))

	session, err := h.streamMgr.Open(c.Request.Context(), url, formatID, audioOnly)
	if err != nil {
		status, payload := failurePayload(err)
		c.JSON(status, payload)
		return
	}
	defer session.Close()

	contentType := "video/mp4"
	filename := "download.mp4"
	if audioOnly {
		contentType = "audio/mpeg"
		filename = "download.mp3"
	}
	c.Header("Content-Type", contentType)
	c.Header("Content-Disposition", `attachment; filename="`+filename+`"`)

	written, copyErr := io.Copy(c.Writer, session.Stdout)
	waitErr := session.Wait()

	disconnected := c.Request.Context().Err() != nil || isBrokenPipe(copyErr)
	switch {
	case disconnected:
		// Expected behavior, not an application error.
		h.logger.Info("Stream client disconnected",
			zap.String("stream_id", session.ID),
			zap.Int64("bytes", written))
	case waitErr != nil && (session.StderrIndicatesError() || written == 0):
		h.logger.Error("Stream failed",
			zap.String("stream_id", session.ID),
			zap.String("url", url),
			zap.Int64("bytes", written),
			zap.String("stderr", session.StderrExcerpt()),
			zap.Error(waitErr))
		if written == 0 {
			// Nothing was flushed yet, so the media headers set above can
			// still be replaced before the JSON body goes out.
			c.Header("Content-Disposition", "")
			c.Header("Content-Type", "application/json; charset=utf-8")
			c.JSON(http.StatusBadGateway, gin.H{"error": "stream failed to start"})
		}
		// With bytes already delivered the response just ends; the client
		// got partial content and an error status is no longer possible.
	default:
		h.logger.Info("Stream completed",
			zap.String("stream_id", session.ID),
			zap.Int64("bytes", written))
	}
}

func isBrokenPipe(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, io.ErrClosedPipe) || errors.Is(err, http.ErrAbortHandler)
}
