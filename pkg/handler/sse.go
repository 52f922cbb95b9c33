package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
)

// SSEWriter writes named server-sent events. Safe for concurrent use.
type SSEWriter struct {
	mu      sync.Mutex
	writer  gin.ResponseWriter
	flusher http.Flusher
}

func NewSSEWriter(c *gin.Context) *SSEWriter {
	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no") // Disable nginx buffering
	c.Status(http.StatusOK)

	flusher, _ := c.Writer.(http.Flusher)
	return &SSEWriter{writer: c.Writer, flusher: flusher}
}

// WriteEvent writes an SSE event
func (w *SSEWriter) WriteEvent(event string, data any) error {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return err
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if event != "" {
		fmt.Fprintf(w.writer, "event: %s\n", event)
	}
	fmt.Fprintf(w.writer, "data: %s\n\n", jsonData)
	if w.flusher != nil {
		w.flusher.Flush()
	}
	return nil
}
