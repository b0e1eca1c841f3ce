package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

const keepAlive = 25 * time.Second

type sseWriter struct {
	w http.Flusher
	f gin.ResponseWriter
}

func newSSE(c *gin.Context) *sseWriter {
	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Status(http.StatusOK)
	c.Writer.Flush()
	return &sseWriter{w: c.Writer, f: c.Writer}
}

func (s *sseWriter) event(name string, data interface{}) {
	j, _ := json.Marshal(data)
	fmt.Fprintf(s.f, "event: %s\ndata: %s\n\n", name, j)
	s.w.Flush()
}

func (s *sseWriter) ping() {
	fmt.Fprint(s.f, ": ping\n\n")
	s.w.Flush()
}

// pump writes every value received from ch as a name event until ch is
// closed or the client goes away.
func pump[T any](c *gin.Context, sse *sseWriter, name string, ch <-chan T, data func(T) any) {
	ticker := time.NewTicker(keepAlive)
	defer ticker.Stop()
	ctx := c.Request.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			sse.ping()
		case v, ok := <-ch:
			if !ok {
				return
			}
			sse.event(name, data(v))
		}
	}
}
