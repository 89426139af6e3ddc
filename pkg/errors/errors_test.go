package errors

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewUpstream(t *testing.T) {
	err := NewUpstream(http.StatusTooManyRequests, "DeepSeek API error")
	assert.Equal(t, int32(http.StatusTooManyRequests), err.Code)
	assert.Equal(t, ReasonUpstream, err.Reason)

	// 非错误状态码按 502 处理
	assert.Equal(t, int32(http.StatusBadGateway), NewUpstream(0, "x").Code)
}

func TestStatusOf(t *testing.T) {
	wrapped := fmt.Errorf("stream: %w", NewUpstream(http.StatusUnauthorized, "bad key"))

	assert.Equal(t, http.StatusUnauthorized, StatusOf(wrapped, http.StatusInternalServerError))
	assert.Equal(t, ReasonUpstream, ReasonOf(wrapped))

	assert.Equal(t, http.StatusTeapot, StatusOf(fmt.Errorf("plain"), http.StatusTeapot))
	assert.Empty(t, ReasonOf(fmt.Errorf("plain")))
	assert.Equal(t, http.StatusNotFound, StatusOf(NewNotFound("gone"), 0))
}

func TestNewNotConfigured(t *testing.T) {
	err := NewNotConfigured("API key not configured")
	assert.Equal(t, int32(http.StatusInternalServerError), err.Code)
	assert.Equal(t, ReasonNotConfigured, ReasonOf(err))
}

func TestNewTooManyRequests(t *testing.T) {
	err := NewTooManyRequests("slow down")
	assert.Equal(t, int32(http.StatusTooManyRequests), err.Code)
	assert.Equal(t, ReasonRateLimited, ReasonOf(err))
}
