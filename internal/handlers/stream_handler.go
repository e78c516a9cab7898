package handlers

import (
	"encoding/json"
	"io"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gin-gonic/gin"

	"github.com/rberts/delibera/internal/logger"
	"github.com/rberts/delibera/internal/middleware"
	"github.com/rberts/delibera/internal/realtime"
	"github.com/rberts/delibera/internal/services"
)

const heartbeatInterval = 30 * time.Second

// StreamHandler serves the server-sent-events dashboard feed
type StreamHandler struct {
	broadcaster *realtime.Broadcaster
	assemblies  *services.AssemblyService
	log         *log.Logger
}

// NewStreamHandler creates a new stream handler
func NewStreamHandler(broadcaster *realtime.Broadcaster, assemblies *services.AssemblyService) *StreamHandler {
	return &StreamHandler{
		broadcaster: broadcaster,
		assemblies:  assemblies,
		log:         logger.Handler("stream_handler"),
	}
}

// Stream handles GET /api/assemblies/:id/stream. The connection stays
// open until the client disconnects, sending heartbeat comments so
// proxies do not reap idle streams.
func (h *StreamHandler) Stream(c *gin.Context) {
	assemblyID, ok := pathID(c, "id")
	if !ok {
		return
	}

	if _, err := h.assemblies.Get(c.Request.Context(), middleware.TenantID(c), assemblyID); err != nil {
		respondError(c, err)
		return
	}

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.Writer.Header().Set("X-Accel-Buffering", "no")

	sub := h.broadcaster.Subscribe(assemblyID)
	defer h.broadcaster.Unsubscribe(assemblyID, sub)

	h.log.Info("Stream opened", "assembly_id", assemblyID, "remote_addr", c.ClientIP())

	heartbeat := time.NewTicker(heartbeatInterval)
	defer heartbeat.Stop()

	c.Stream(func(w io.Writer) bool {
		select {
		case event, open := <-sub.Events:
			if !open {
				return false
			}
			payload, err := json.Marshal(event)
			if err != nil {
				h.log.Error("Failed to encode stream event", "assembly_id", assemblyID, "error", err)
				return true
			}
			c.SSEvent(event.Kind, string(payload))
			return true
		case <-heartbeat.C:
			_, err := w.Write([]byte(": heartbeat\n\n"))
			return err == nil
		case <-c.Request.Context().Done():
			return false
		}
	})

	h.log.Info("Stream closed", "assembly_id", assemblyID)
}
