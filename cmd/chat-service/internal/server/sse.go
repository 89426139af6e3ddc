package server

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"contextrelay/cmd/chat-service/internal/service"
)

// streamFrames 以 text/event-stream 写出帧，直到帧流结束或客户端断开
func streamFrames(c *gin.Context, frames <-chan service.Frame) {
	h := c.Writer.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no") // 禁用Nginx缓冲
	c.Status(http.StatusOK)
	c.Writer.Flush()

	ctx := c.Request.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case f, ok := <-frames:
			if !ok {
				return
			}
			if err := writeFrame(c.Writer, f); err != nil {
				_ = c.Error(err)
				return
			}
			c.Writer.Flush()
			if f.Err != nil {
				_ = c.Error(f.Err)
			}
		}
	}
}

// writeFrame 写出一个 data: 帧
func writeFrame(w io.Writer, f service.Frame) error {
	data, err := json.Marshal(f)
	if err != nil {
		return fmt.Errorf("marshal frame: %w", err)
	}
	_, err = fmt.Fprintf(w, "data: %s\n\n", data)
	return err
}
