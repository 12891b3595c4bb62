package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"webinfinitygen/internal/events"
	"webinfinitygen/internal/transport/http/response"
)

const heartbeatInterval = 25 * time.Second

type EventsHandler struct {
	hub       *events.Hub
	heartbeat time.Duration
}

func NewEventsHandler(hub *events.Hub) *EventsHandler {
	return &EventsHandler{hub: hub, heartbeat: heartbeatInterval}
}

// Stream sends the user's chat events as server-sent events until the client
// goes away.
func (h *EventsHandler) Stream(c *gin.Context) {
	ownerID := c.Param("userId")
	if ownerID == "" {
		response.Error(c, http.StatusBadRequest, "userId is required")
		return
	}
	if !ownerAllowed(c, ownerID) {
		return
	}

	flusher, ok := c.Writer.(http.Flusher)
	if !ok {
		response.Error(c, http.StatusInternalServerError, "stream not supported")
		return
	}

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)

	ctx := c.Request.Context()
	sub, cancel := h.hub.Subscribe(ctx, ownerID)
	defer cancel()

	if _, err := c.Writer.Write([]byte(": connected\n\n")); err != nil {
		return
	}
	flusher.Flush()

	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := c.Writer.Write([]byte(": ping\n\n")); err != nil {
				return
			}
			flusher.Flush()
		case ev, ok := <-sub:
			if !ok {
				return
			}
			payload, err := json.Marshal(ev)
			if err != nil {
				continue
			}
			if _, err := fmt.Fprintf(c.Writer, "event: %s\ndata: %s\n\n", ev.Type, payload); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}
