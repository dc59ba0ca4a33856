package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/yourusername/mediagrab/internal/app"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for now
	},
}

// ProgressWebSocketHandler pushes live download state over a WebSocket.
type ProgressWebSocketHandler struct {
	downloadMgr *app.DownloadManager
	logger      *zap.Logger
}

// NewProgressWebSocketHandler creates a new WebSocket progress handler
func NewProgressWebSocketHandler(downloadMgr *app.DownloadManager, logger *zap.Logger) *ProgressWebSocketHandler {
	return &ProgressWebSocketHandler{downloadMgr: downloadMgr, logger: logger}
}

// HandleProgress handles GET /api/v1/downloads/:id/progress. The socket
// receives one JSON snapshot per state change and closes after the terminal
// one.
func (h *ProgressWebSocketHandler) HandleProgress(c *gin.Context) {
	id := c.Param("id")

	updates, unsubscribe, err := h.downloadMgr.Subscribe(id)
	if err != nil {
		// Already-finished downloads still answer with their final state.
		if download, getErr := h.downloadMgr.Get(id); getErr == nil {
			conn, upErr := upgrader.Upgrade(c.Writer, c.Request, nil)
			if upErr != nil {
				return
			}
			defer conn.Close()
			conn.WriteJSON(download)
			return
		}
		c.JSON(http.StatusNotFound, gin.H{"error": "download not found"})
		return
	}
	defer unsubscribe()

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error("Failed to upgrade WebSocket", zap.Error(err))
		return
	}
	defer conn.Close()

	// Drain client frames so pings and close messages are processed.
	clientGone := make(chan struct{})
	go func() {
		defer close(clientGone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case snapshot, ok := <-updates:
			if !ok {
				conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
					time.Now().Add(time.Second))
				return
			}
			if err := conn.WriteJSON(snapshot); err != nil {
				return
			}
		case <-clientGone:
			return
		}
	}
}
