package biz

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"testing"
	"time"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"contextrelay/cmd/chat-service/internal/compression"
	"contextrelay/cmd/chat-service/internal/domain"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fixture struct {
	uc        *ChatUsecase
	store     *mapStore
	model     *MockChatModel
	publisher *recordingPublisher
	session   *domain.Session
}

func newFixture(t *testing.T, stream func(ctx context.Context) domain.ChatStream) *fixture {
	t.Helper()

	compressor, err := compression.NewCompressor(nil, log.DefaultLogger)
	require.NoError(t, err)

	f := &fixture{
		store:     newMapStore(),
		publisher: &recordingPublisher{},
	}
	f.model = &MockChatModel{
		StreamChatFunc: func(ctx context.Context, _ []domain.Message) (domain.ChatStream, error) {
			return stream(ctx), nil
		},
	}
	f.uc = NewChatUsecase(f.store, f.model, compressor, f.publisher, DefaultPricing(), log.DefaultLogger)

	f.session, err = f.uc.CreateSession(context.Background())
	require.NoError(t, err)
	return f
}

func replyStream(parts ...string) func(ctx context.Context) domain.ChatStream {
	return func(ctx context.Context) domain.ChatStream {
		s := &scriptStream{ctx: ctx}
		for _, p := range parts {
			s.deltas = append(s.deltas, domain.StreamDelta{Content: p})
		}
		s.deltas = append(s.deltas, domain.StreamDelta{Usage: &domain.Usage{PromptTokens: 12, CompletionTokens: 3}})
		return s
	}
}

func collect(t *testing.T, ch <-chan StreamChunk) []StreamChunk {
	t.Helper()
	var chunks []StreamChunk
	timeout := time.After(5 * time.Second)
	for {
		select {
		case c, ok := <-ch:
			if !ok {
				return chunks
			}
			chunks = append(chunks, c)
		case <-timeout:
			t.Fatal("stream did not finish")
			return nil
		}
	}
}

func TestSendMessage_StreamsAndPersists(t *testing.T) {
	f := newFixture(t, replyStream("Прив", "ет"))

	ch, err := f.uc.SendMessage(context.Background(), f.session.ID, "  привет  ")
	require.NoError(t, err)
	chunks := collect(t, ch)

	require.Len(t, chunks, 3)
	assert.Equal(t, "Прив", chunks[0].Content)
	assert.Equal(t, "ет", chunks[1].Content)

	done := chunks[2]
	assert.True(t, done.Done)
	assert.Equal(t, &domain.Usage{PromptTokens: 12, CompletionTokens: 3}, done.Usage)
	assert.Empty(t, done.Compressions)

	stored, err := f.store.Load(context.Background(), f.session.ID)
	require.NoError(t, err)
	require.Len(t, stored.Turns, 2)
	assert.Equal(t, domain.RoleUser, stored.Turns[0].Role)
	assert.Equal(t, "привет", stored.Turns[0].Content)
	assert.Equal(t, "Привет", stored.Turns[1].Content)

	assert.Equal(t, 12, stored.ChatStats.InputTokens)
	assert.Equal(t, 3, stored.ChatStats.OutputTokens)
	assert.Equal(t, 2, stored.ChatStats.TotalMessages)
	assert.InDelta(t, 0.001596, stored.ChatStats.Cost, 1e-12)

	// 上游收到包含用户消息的完整历史
	assert.Equal(t, []domain.Message{{Role: "user", Content: "привет"}}, f.model.lastMessages())
}

func TestSendMessage_EmptyReplyFallback(t *testing.T) {
	f := newFixture(t, replyStream())

	ch, err := f.uc.SendMessage(context.Background(), f.session.ID, "привет")
	require.NoError(t, err)
	chunks := collect(t, ch)

	require.Len(t, chunks, 1)
	assert.True(t, chunks[0].Done)

	stored, _ := f.store.Load(context.Background(), f.session.ID)
	require.Len(t, stored.Turns, 2)
	assert.Equal(t, emptyReplyText, stored.Turns[1].Content)
}

func TestSendMessage_TransportError(t *testing.T) {
	boom := errors.New("connection reset")
	f := newFixture(t, func(ctx context.Context) domain.ChatStream {
		return &scriptStream{ctx: ctx, deltas: []domain.StreamDelta{{Content: "част"}}, tail: boom}
	})

	ch, err := f.uc.SendMessage(context.Background(), f.session.ID, "привет")
	require.NoError(t, err)
	chunks := collect(t, ch)

	require.Len(t, chunks, 2)
	assert.ErrorIs(t, chunks[1].Error, boom)

	stored, _ := f.store.Load(context.Background(), f.session.ID)
	require.Len(t, stored.Turns, 2)
	assert.Equal(t, transportErrorText, stored.Turns[1].Content)
	assert.Zero(t, stored.ChatStats.TotalMessages)
}

func TestSendMessage_ConnectError(t *testing.T) {
	f := newFixture(t, replyStream())
	f.model.StreamChatFunc = func(context.Context, []domain.Message) (domain.ChatStream, error) {
		return nil, domain.ErrUpstream
	}

	ch, err := f.uc.SendMessage(context.Background(), f.session.ID, "привет")
	require.NoError(t, err)
	chunks := collect(t, ch)

	require.Len(t, chunks, 1)
	assert.ErrorIs(t, chunks[0].Error, domain.ErrUpstream)

	stored, _ := f.store.Load(context.Background(), f.session.ID)
	assert.Equal(t, transportErrorText, stored.Turns[len(stored.Turns)-1].Content)
}

func TestSendMessage_CancelDiscardsPartialReply(t *testing.T) {
	var stream *scriptStream
	f := newFixture(t, func(ctx context.Context) domain.ChatStream {
		stream = &scriptStream{ctx: ctx, deltas: []domain.StreamDelta{{Content: "частичный"}}, block: make(chan struct{})}
		return stream
	})

	ctx, cancel := context.WithCancel(context.Background())
	ch, err := f.uc.SendMessage(ctx, f.session.ID, "привет")
	require.NoError(t, err)

	first := <-ch
	assert.Equal(t, "частичный", first.Content)
	cancel()

	rest := collect(t, ch)
	assert.Empty(t, rest)
	assert.True(t, stream.isClosed())

	stored, _ := f.store.Load(context.Background(), f.session.ID)
	require.Len(t, stored.Turns, 1)
	assert.Equal(t, domain.RoleUser, stored.Turns[0].Role)

	// 取消后可以继续发送
	f.model.StreamChatFunc = func(ctx context.Context, _ []domain.Message) (domain.ChatStream, error) {
		return replyStream("ок")(ctx), nil
	}
	ch, err = f.uc.SendMessage(context.Background(), f.session.ID, "ещё раз")
	require.NoError(t, err)
	collect(t, ch)
}

func TestSendMessage_OneGenerationPerSession(t *testing.T) {
	release := make(chan struct{})
	f := newFixture(t, func(ctx context.Context) domain.ChatStream {
		return &scriptStream{ctx: ctx, block: release}
	})

	ch, err := f.uc.SendMessage(context.Background(), f.session.ID, "первый")
	require.NoError(t, err)

	_, err = f.uc.SendMessage(context.Background(), f.session.ID, "второй")
	assert.ErrorIs(t, err, domain.ErrGenerationInProgress)

	_, err = f.uc.ResetSession(context.Background(), f.session.ID)
	assert.ErrorIs(t, err, domain.ErrGenerationInProgress)

	close(release)
	collect(t, ch)

	ch, err = f.uc.SendMessage(context.Background(), f.session.ID, "второй")
	require.NoError(t, err)
	collect(t, ch)
}

func TestSendMessage_Validation(t *testing.T) {
	f := newFixture(t, replyStream())

	_, err := f.uc.SendMessage(context.Background(), f.session.ID, "   ")
	assert.ErrorIs(t, err, domain.ErrEmptyMessage)

	_, err = f.uc.SendMessage(context.Background(), "missing", "привет")
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)

	// 失败的调用不会占住会话
	ch, err := f.uc.SendMessage(context.Background(), f.session.ID, "привет")
	require.NoError(t, err)
	collect(t, ch)
}

func TestSendMessage_CompressesHistory(t *testing.T) {
	f := newFixture(t, replyStream("каналы передают значения"))

	session, _ := f.store.Load(context.Background(), f.session.ID)
	for i := 0; i < 8; i++ {
		role := domain.RoleUser
		if i%2 == 1 {
			role = domain.RoleAssistant
		}
		session.Append(domain.NewChatTurn(role, "сообщение про каналы "+strconv.Itoa(i)))
	}
	require.NoError(t, f.store.Save(context.Background(), session))

	ch, err := f.uc.SendMessage(context.Background(), f.session.ID, "расскажи про горутины")
	require.NoError(t, err)
	chunks := collect(t, ch)

	done := chunks[len(chunks)-1]
	require.True(t, done.Done)
	require.Len(t, done.Compressions, 1)
	assert.Equal(t, 1, done.Compressions[0].BlockNumber)

	stored, _ := f.store.Load(context.Background(), f.session.ID)
	require.Len(t, stored.Turns, 1)
	assert.True(t, stored.Turns[0].IsCompressed)
	assert.Equal(t, 1, stored.CompressionStats.TotalCompressions)
	assert.Len(t, f.publisher.events, 1)
}

func TestSendMessage_PublishFailureIsNotFatal(t *testing.T) {
	f := newFixture(t, replyStream("ответ"))
	f.publisher.err = errors.New("kafka down")

	session, _ := f.store.Load(context.Background(), f.session.ID)
	for i := 0; i < 8; i++ {
		session.Append(domain.NewChatTurn(domain.RoleUser, fmt.Sprintf("вопрос %d", i)))
	}
	require.NoError(t, f.store.Save(context.Background(), session))

	ch, err := f.uc.SendMessage(context.Background(), f.session.ID, "ещё вопрос")
	require.NoError(t, err)
	chunks := collect(t, ch)
	assert.True(t, chunks[len(chunks)-1].Done)
}

func TestResetSession(t *testing.T) {
	f := newFixture(t, replyStream("ответ"))

	ch, err := f.uc.SendMessage(context.Background(), f.session.ID, "привет")
	require.NoError(t, err)
	collect(t, ch)

	s, err := f.uc.ResetSession(context.Background(), f.session.ID)
	require.NoError(t, err)
	assert.Empty(t, s.Turns)

	stored, _ := f.store.Load(context.Background(), f.session.ID)
	assert.Empty(t, stored.Turns)
	assert.Equal(t, domain.ChatStats{}, stored.ChatStats)
	assert.Equal(t, domain.NewCompressionStats(), stored.CompressionStats)
	assert.Equal(t, f.session.ID, stored.ID)

	_, err = f.uc.ResetSession(context.Background(), "missing")
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
}

func TestGetStatsReport(t *testing.T) {
	f := newFixture(t, replyStream("ответ"))

	for i := 0; i < 2; i++ {
		ch, err := f.uc.SendMessage(context.Background(), f.session.ID, "привет")
		require.NoError(t, err)
		collect(t, ch)
	}

	r, err := f.uc.GetStatsReport(context.Background(), f.session.ID)
	require.NoError(t, err)
	assert.Equal(t, 4, r.TotalMessages)
	assert.Equal(t, 4, r.Chat.TotalMessages)
	assert.Equal(t, 15, r.AverageTokens)
	assert.Equal(t, "$0.003192", r.FormattedCost)
	assert.Contains(t, r.Report, "📊 Компрессия v4.0: 0 блоков, 4 сообщений")
	assert.Contains(t, r.DetailedReport, r.Report)

	_, err = f.uc.GetStatsReport(context.Background(), "missing")
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
}

func TestRelay(t *testing.T) {
	f := newFixture(t, replyStream("a", "b"))

	ch, err := f.uc.Relay(context.Background(), []domain.Message{{Role: "user", Content: "hi"}})
	require.NoError(t, err)
	chunks := collect(t, ch)

	require.Len(t, chunks, 3)
	assert.Equal(t, "a", chunks[0].Content)
	assert.True(t, chunks[2].Done)
	assert.Equal(t, 12, chunks[2].Usage.PromptTokens)
}

func TestRelay_Validation(t *testing.T) {
	f := newFixture(t, replyStream())

	_, err := f.uc.Relay(context.Background(), nil)
	assert.ErrorIs(t, err, domain.ErrEmptyMessages)

	_, err = f.uc.Relay(context.Background(), []domain.Message{{Role: "tool", Content: "x"}})
	assert.ErrorIs(t, err, domain.ErrInvalidTurnRole)

	f.model.StreamChatFunc = func(context.Context, []domain.Message) (domain.ChatStream, error) {
		return nil, domain.ErrAPIKeyMissing
	}
	_, err = f.uc.Relay(context.Background(), []domain.Message{{Role: "user", Content: "x"}})
	assert.ErrorIs(t, err, domain.ErrAPIKeyMissing)
}

func TestMergeUsage(t *testing.T) {
	u := domain.Usage{PromptTokens: 5, CompletionTokens: 7}
	mergeUsage(&u, domain.Usage{CompletionTokens: 9})
	assert.Equal(t, domain.Usage{PromptTokens: 5, CompletionTokens: 9}, u)
}

func TestCost(t *testing.T) {
	p := DefaultPricing()
	assert.InDelta(t, 0.448, p.Cost(1000, 1000), 1e-12)
	assert.Zero(t, p.Cost(0, 0))
	assert.Equal(t, "$0.001596", FormatCost(p.Cost(12, 3)))
	assert.Equal(t, "$0.000000", FormatCost(0))
}
