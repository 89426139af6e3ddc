package main

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"contextrelay/pkg/clients"
)

// fakeService 模拟 chat-service 的 HTTP 接口
func fakeService(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/sessions", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
		fmt.Fprint(w, `{"code":201,"data":{"id":"s-new"}}`)
	})
	mux.HandleFunc("GET /api/v1/sessions/{id}", func(w http.ResponseWriter, r *http.Request) {
		if r.PathValue("id") != "s-1" {
			w.WriteHeader(http.StatusNotFound)
			fmt.Fprint(w, `{"code":404,"message":"Session not found"}`)
			return
		}
		fmt.Fprint(w, `{"code":200,"data":{"id":"s-1"}}`)
	})
	mux.HandleFunc("DELETE /api/v1/sessions/{id}", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `{"code":200,"data":{"id":%q}}`, r.PathValue("id"))
	})
	mux.HandleFunc("POST /api/v1/sessions/{id}/messages", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "data: {\"content\":\"При\"}\n\n")
		fmt.Fprint(w, "data: {\"content\":\"вет\"}\n\n")
		fmt.Fprint(w, "data: {\"done\":true,\"usage\":{\"prompt_tokens\":3,\"completion_tokens\":2},"+
			"\"compressions\":[{\"blockNumber\":1,\"originalTokens\":400,\"compressedTokens\":100,\"overallGrade\":\"A+\",\"attemptNumber\":1}],"+
			"\"stats\":{\"formattedCost\":\"$0.000924\"}}\n\n")
	})
	mux.HandleFunc("GET /api/v1/sessions/{id}/stats", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"code":200,"data":{"sessionId":"s-1","chat":{"inputTokens":3,"outputTokens":2},`+
			`"formattedCost":"$0.000924","averageTokens":5,"detailedReport":"📊 Компрессия v4.0: 1 блоков, 2 сообщений"}}`)
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newTestApp(t *testing.T, server, input string) (*app, *bytes.Buffer) {
	t.Helper()
	out := &bytes.Buffer{}
	return &app{
		opts: &options{
			server:      server,
			sessionFile: filepath.Join(t.TempDir(), "session"),
		},
		client:    clients.NewChatClient(clients.ChatClientConfig{BaseURL: server}),
		logger:    zap.NewNop(),
		in:        strings.NewReader(input),
		out:       out,
		interrupt: context.WithCancel,
	}, out
}

func TestRunChat_NewSessionAndReply(t *testing.T) {
	srv := fakeService(t)
	a, out := newTestApp(t, srv.URL, "привет\n\n/stats\n/exit\n")

	require.NoError(t, a.runChat(context.Background()))

	text := out.String()
	assert.Contains(t, text, "Сессия s-new")
	assert.Contains(t, text, "Привет\n")
	assert.Contains(t, text, "Блок #1: 400→100 токенов, Grade A+ (попытка 1)")
	assert.Contains(t, text, "[3→2 токенов, всего $0.000924]")
	assert.Contains(t, text, "📊 Компрессия v4.0: 1 блоков, 2 сообщений")

	saved, err := loadSessionID(a.opts.sessionFile)
	require.NoError(t, err)
	assert.Equal(t, "s-new", saved)
}

func TestRunChat_ReusesSavedSession(t *testing.T) {
	srv := fakeService(t)
	a, out := newTestApp(t, srv.URL, "")
	require.NoError(t, saveSessionID(a.opts.sessionFile, "s-1"))

	require.NoError(t, a.runChat(context.Background()))
	assert.Contains(t, out.String(), "Сессия s-1")
}

func TestReply_Interrupted(t *testing.T) {
	srv := fakeService(t)
	a, out := newTestApp(t, srv.URL, "")
	a.interrupt = func(ctx context.Context) (context.Context, context.CancelFunc) {
		ctx, cancel := context.WithCancel(ctx)
		cancel()
		return ctx, cancel
	}

	require.NoError(t, a.reply(context.Background(), "s-1", "привет"))
	assert.Contains(t, out.String(), "[генерация остановлена]")
}

func TestRunStats_NoSession(t *testing.T) {
	srv := fakeService(t)
	a, _ := newTestApp(t, srv.URL, "")

	err := a.runStats(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no session yet")
}

func TestResetCommand(t *testing.T) {
	srv := fakeService(t)
	out := &bytes.Buffer{}

	cmd := newRootCmd(strings.NewReader(""), out)
	cmd.SetArgs([]string{
		"reset",
		"--server", srv.URL,
		"--session", "s-1",
		"--session-file", filepath.Join(t.TempDir(), "session"),
	})

	require.NoError(t, cmd.Execute())
	assert.Contains(t, out.String(), "История очищена")
}

func TestSessionFile_Missing(t *testing.T) {
	id, err := loadSessionID(filepath.Join(t.TempDir(), "absent"))
	require.NoError(t, err)
	assert.Empty(t, id)
}
