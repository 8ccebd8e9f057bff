package api

import (
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// StreamEvents 把当前用户的 profile、usage、subscription、image 变更推成 SSE。
func (h *HTTPHandler) StreamEvents(c *gin.Context) {
	requestUser := CurrentUser(c)
	if requestUser == nil {
		Unauthorized(c, "authentication required")
		return
	}

	ctx := c.Request.Context()
	events, cancel := h.hub.Subscribe(requestUser.ID)
	defer cancel()

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.Writer.Header().Set("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)

	if flusher, ok := c.Writer.(http.Flusher); ok {
		flusher.Flush()
	}

	heartbeatTicker := time.NewTicker(h.pingInterval)
	defer heartbeatTicker.Stop()

	logger := logrus.WithField("user_id", requestUser.ID)
	logger.Info("realtime_sse_connected")

	c.Stream(func(w io.Writer) bool {
		select {
		case <-ctx.Done():
			logger.Info("realtime_sse_disconnected")
			return false
		case <-heartbeatTicker.C:
			c.SSEvent("ping", gin.H{"ts": time.Now().UnixMilli()})
			return true
		case event, ok := <-events:
			if !ok {
				return false
			}
			c.SSEvent(event.Topic, event)
			return true
		}
	})
}
