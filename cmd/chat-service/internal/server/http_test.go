package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-kratos/kratos/v2/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"contextrelay/cmd/chat-service/internal/biz"
	"contextrelay/cmd/chat-service/internal/compression"
	"contextrelay/cmd/chat-service/internal/conf"
	"contextrelay/cmd/chat-service/internal/data"
	"contextrelay/cmd/chat-service/internal/domain"
	"contextrelay/cmd/chat-service/internal/service"
	pkgerrors "contextrelay/pkg/errors"
	"contextrelay/pkg/health"
)

// fakeModel 返回固定片段的上游模型
type fakeModel struct {
	deltas []domain.StreamDelta
	err    error
}

func (m *fakeModel) StreamChat(context.Context, []domain.Message) (domain.ChatStream, error) {
	if m.err != nil {
		return nil, m.err
	}
	return &fakeStream{deltas: append([]domain.StreamDelta(nil), m.deltas...)}, nil
}

type fakeStream struct {
	deltas []domain.StreamDelta
}

func (s *fakeStream) Recv() (domain.StreamDelta, error) {
	if len(s.deltas) == 0 {
		return domain.StreamDelta{}, io.EOF
	}
	d := s.deltas[0]
	s.deltas = s.deltas[1:]
	return d, nil
}

func (s *fakeStream) Close() error { return nil }

func helloModel() *fakeModel {
	return &fakeModel{deltas: []domain.StreamDelta{
		{Content: "Hel"},
		{Content: "lo"},
		{Usage: &domain.Usage{PromptTokens: 5, CompletionTokens: 2}},
	}}
}

func newTestServer(t *testing.T, model domain.ChatModel) *HTTPServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	compressor, err := compression.NewCompressor(nil, log.DefaultLogger)
	require.NoError(t, err)

	uc := biz.NewChatUsecase(data.NewMemoryStore(time.Hour), model, compressor, nil, biz.DefaultPricing(), log.DefaultLogger)
	return NewHTTPServer(&conf.Server{Addr: ":0"}, service.NewChatService(uc), health.NewHealthChecker(), log.DefaultLogger)
}

func do(s *HTTPServer, method, path, body string) *httptest.ResponseRecorder {
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	return w
}

func TestRelay_Stream(t *testing.T) {
	s := newTestServer(t, helloModel())

	w := do(s, http.MethodPost, "/api/v1/chat/stream", `{"messages":[{"role":"user","content":"hi"}]}`)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/event-stream", w.Header().Get("Content-Type"))
	assert.Equal(t, "no-cache", w.Header().Get("Cache-Control"))
	assert.Equal(t,
		"data: {\"content\":\"Hel\"}\n\n"+
			"data: {\"content\":\"lo\"}\n\n"+
			"data: {\"done\":true,\"usage\":{\"prompt_tokens\":5,\"completion_tokens\":2}}\n\n",
		w.Body.String())
}

func TestRelay_Errors(t *testing.T) {
	tests := []struct {
		name   string
		model  *fakeModel
		body   string
		status int
		want   string
	}{
		{"empty messages", helloModel(), `{"messages":[]}`, http.StatusBadRequest, "Messages array is required"},
		{"missing messages", helloModel(), `{}`, http.StatusBadRequest, "Messages array is required"},
		{"invalid body", helloModel(), `{`, http.StatusBadRequest, "Invalid request body"},
		{"missing key", &fakeModel{err: domain.ErrAPIKeyMissing}, `{"messages":[{"role":"user","content":"hi"}]}`,
			http.StatusInternalServerError, "API key not configured"},
		{"upstream status", &fakeModel{err: fmt.Errorf("%w: %w", domain.ErrUpstream, pkgerrors.NewUpstream(http.StatusUnauthorized, "invalid key"))},
			`{"messages":[{"role":"user","content":"hi"}]}`, http.StatusUnauthorized, "DeepSeek API error"},
		{"unexpected", &fakeModel{err: fmt.Errorf("boom")}, `{"messages":[{"role":"user","content":"hi"}]}`,
			http.StatusInternalServerError, "Internal server error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t, tt.model)
			w := do(s, http.MethodPost, "/api/v1/chat/stream", tt.body)

			assert.Equal(t, tt.status, w.Code)
			assert.JSONEq(t, fmt.Sprintf(`{"error":%q}`, tt.want), w.Body.String())
		})
	}
}

type sessionEnvelope struct {
	Code int            `json:"code"`
	Data domain.Session `json:"data"`
}

func TestSessionLifecycle(t *testing.T) {
	s := newTestServer(t, helloModel())

	w := do(s, http.MethodPost, "/api/v1/sessions", "")
	require.Equal(t, http.StatusCreated, w.Code)
	var created sessionEnvelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	id := created.Data.ID
	require.NotEmpty(t, id)

	w = do(s, http.MethodPost, "/api/v1/sessions/"+id+"/messages", `{"content":"привет"}`)
	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.True(t, strings.HasPrefix(body, "data: {\"content\":\"Hel\"}\n\n"))
	assert.Contains(t, body, `"done":true`)
	assert.Contains(t, body, `"formattedCost":"$0.000980"`)

	w = do(s, http.MethodGet, "/api/v1/sessions/"+id, "")
	require.Equal(t, http.StatusOK, w.Code)
	var got sessionEnvelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	require.Len(t, got.Data.Turns, 2)
	assert.Equal(t, "Hello", got.Data.Turns[1].Content)

	w = do(s, http.MethodGet, "/api/v1/sessions/"+id+"/stats", "")
	require.Equal(t, http.StatusOK, w.Code)
	var stats struct {
		Data biz.StatsReport `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &stats))
	assert.Equal(t, 2, stats.Data.TotalMessages)
	assert.Equal(t, 7, stats.Data.AverageTokens)
	assert.Contains(t, stats.Data.Report, "📊 Компрессия v4.0")

	w = do(s, http.MethodDelete, "/api/v1/sessions/"+id, "")
	require.Equal(t, http.StatusOK, w.Code)
	var reset sessionEnvelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &reset))
	assert.Empty(t, reset.Data.Turns)
	assert.Equal(t, id, reset.Data.ID)
}

func TestSessionErrors(t *testing.T) {
	s := newTestServer(t, helloModel())

	w := do(s, http.MethodGet, "/api/v1/sessions/missing", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	var resp Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, http.StatusNotFound, resp.Code)
	assert.Equal(t, pkgerrors.ReasonNotFound, resp.Reason)
	assert.Equal(t, "Session not found", resp.Message)

	w = do(s, http.MethodPost, "/api/v1/sessions/missing/messages", `{"content":"hi"}`)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = do(s, http.MethodPost, "/api/v1/sessions", "")
	var created sessionEnvelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))

	w = do(s, http.MethodPost, "/api/v1/sessions/"+created.Data.ID+"/messages", `{"content":"  "}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(s, http.MethodPost, "/api/v1/sessions/"+created.Data.ID+"/messages", `not json`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestParseError(t *testing.T) {
	assert.Equal(t, int32(http.StatusConflict), parseError(domain.ErrGenerationInProgress).Code)
	assert.Equal(t, int32(http.StatusBadGateway), parseError(domain.ErrUpstream).Code)
	assert.Equal(t, int32(http.StatusServiceUnavailable),
		parseError(fmt.Errorf("%w: %w", domain.ErrUpstream, pkgerrors.NewUnavailable("circuit open"))).Code)
	assert.Equal(t, pkgerrors.ReasonNotConfigured, parseError(domain.ErrAPIKeyMissing).Reason)
}

func TestHealthAndMetrics(t *testing.T) {
	s := newTestServer(t, helloModel())

	w := do(s, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"healthy"`)

	w = do(s, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, w.Code)

	w = do(s, http.MethodGet, "/ready", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"healthy"`)
}

func TestReady_Unhealthy(t *testing.T) {
	s := newTestServer(t, helloModel())
	s.health.Register(health.NewPingChecker("postgres", func(context.Context) error {
		return errors.New("connection refused")
	}, 0))

	w := do(s, http.MethodGet, "/ready", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "connection refused")
}

func TestMiddleware_CORSAndRecovery(t *testing.T) {
	s := newTestServer(t, helloModel())
	s.engine.GET("/panic", func(*gin.Context) { panic("boom") })

	w := do(s, http.MethodOptions, "/api/v1/sessions", "")
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))

	w = do(s, http.MethodGet, "/panic", "")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "Internal server error")
}

func TestRateLimit(t *testing.T) {
	gin.SetMode(gin.TestMode)
	compressor, err := compression.NewCompressor(nil, log.DefaultLogger)
	require.NoError(t, err)

	uc := biz.NewChatUsecase(data.NewMemoryStore(time.Hour), helloModel(), compressor, nil, biz.DefaultPricing(), log.DefaultLogger)
	s := NewHTTPServer(&conf.Server{
		Addr:      ":0",
		RateLimit: conf.RateLimit{PerSecond: 0.001, Burst: 1},
	}, service.NewChatService(uc), health.NewHealthChecker(), log.DefaultLogger)

	w := do(s, http.MethodPost, "/api/v1/sessions", "")
	assert.Equal(t, http.StatusCreated, w.Code)

	w = do(s, http.MethodPost, "/api/v1/sessions", "")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Contains(t, w.Body.String(), pkgerrors.ReasonRateLimited)

	// 健康检查不受限流影响
	w = do(s, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, w.Code)
}
