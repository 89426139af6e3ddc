package infra

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"contextrelay/cmd/chat-service/internal/domain"
	pkgerrors "contextrelay/pkg/errors"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *DeepSeekClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c, err := NewDeepSeekClient(&DeepSeekConfig{
		APIKey:    "sk-test",
		BaseURL:   srv.URL + "/v1",
		Model:     "deepseek-chat",
		MaxTokens: 2048,
	}, log.DefaultLogger)
	require.NoError(t, err)
	return c
}

func TestNewDeepSeekClient_MissingKey(t *testing.T) {
	_, err := NewDeepSeekClient(&DeepSeekConfig{}, log.DefaultLogger)
	assert.ErrorIs(t, err, domain.ErrAPIKeyMissing)
}

func TestDeepSeekClient_StreamChat(t *testing.T) {
	var body map[string]any
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))

		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "data: {\"choices\":[{\"index\":0,\"delta\":{\"content\":\"При\"}}]}\n\n")
		fmt.Fprint(w, "data: {broken\n\n")
		fmt.Fprint(w, "data: {\"choices\":[{\"index\":0,\"delta\":{\"content\":\"вет\"}}]}\n\n")
		fmt.Fprint(w, "data: {\"choices\":[],\"usage\":{\"prompt_tokens\":12,\"completion_tokens\":3,\"total_tokens\":15}}\n\n")
		fmt.Fprint(w, "data: [DONE]\n\n")
	})

	stream, err := c.StreamChat(context.Background(), []domain.Message{{Role: "user", Content: "привет"}})
	require.NoError(t, err)
	defer stream.Close()

	var content string
	var usage *domain.Usage
	for {
		delta, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		require.NoError(t, err)
		content += delta.Content
		if delta.Usage != nil {
			usage = delta.Usage
		}
	}

	assert.Equal(t, "Привет", content)
	require.NotNil(t, usage)
	assert.Equal(t, domain.Usage{PromptTokens: 12, CompletionTokens: 3}, *usage)

	assert.Equal(t, "deepseek-chat", body["model"])
	assert.Equal(t, true, body["stream"])
	assert.EqualValues(t, 2048, body["max_tokens"])
	messages := body["messages"].([]any)
	require.Len(t, messages, 2)
	assert.Equal(t, "system", messages[0].(map[string]any)["role"])
	assert.Equal(t, SystemPrompt, messages[0].(map[string]any)["content"])
	assert.Equal(t, "привет", messages[1].(map[string]any)["content"])
}

func TestDeepSeekClient_UpstreamStatus(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{"error":{"message":"invalid api key","type":"authentication_error"}}`)
	})

	_, err := c.StreamChat(context.Background(), []domain.Message{{Role: "user", Content: "hi"}})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrUpstream)
	assert.Equal(t, http.StatusUnauthorized, pkgerrors.StatusOf(err, 0))
}
