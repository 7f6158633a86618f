package handlers

import (
	"io"

	"facemark-go/internal/server/sse"

	"github.com/gin-gonic/gin"
)

// Events streams attendance outcomes to the client as server-sent events.
// Operator dashboards keep this open while a capture run is active.
func (h *APIHandler) Events(c *gin.Context) {
	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")

	client := make(sse.Client, 10) // Buffer for 10 messages

	h.hub.Register(client)
	defer h.hub.Unregister(client)

	c.Stream(func(w io.Writer) bool {
		msg, ok := <-client
		if !ok {
			return false // Channel closed, end the stream
		}

		c.SSEvent("message", string(msg))
		return true
	})
}
