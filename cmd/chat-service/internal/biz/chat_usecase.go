package biz

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/go-kratos/kratos/v2/log"
	"go.opentelemetry.io/otel/attribute"

	"contextrelay/cmd/chat-service/internal/compression"
	"contextrelay/cmd/chat-service/internal/domain"
	"contextrelay/cmd/chat-service/internal/metrics"
	"contextrelay/pkg/observability"
)

const (
	// emptyReplyText 上游没有返回任何内容时的助手消息
	emptyReplyText = "Не удалось получить ответ"

	// transportErrorText 与上游的连接中断时的助手消息
	transportErrorText = "Произошла ошибка при соединении с DeepSeek. Попробуйте ещё раз."

	chunkBufferSize = 100
	tracerName      = "chat-service/biz"
)

// StreamChunk 流式响应片段
type StreamChunk struct {
	Content string
	Done    bool
	Usage   *domain.Usage
	// Compressions 本次交换后新产生的压缩结果，只在完成片段中出现
	Compressions []compression.Result
	Session      *domain.Session
	Error        error
}

// ChatUsecase 会话对话用例
type ChatUsecase struct {
	store      domain.SessionStore
	model      domain.ChatModel
	compressor *compression.Compressor
	publisher  EventPublisher
	pricing    Pricing

	// inFlight 正在生成回复的会话
	inFlight sync.Map
	log      *log.Helper
}

// NewChatUsecase 创建对话用例
func NewChatUsecase(
	store domain.SessionStore,
	model domain.ChatModel,
	compressor *compression.Compressor,
	publisher EventPublisher,
	pricing Pricing,
	logger log.Logger,
) *ChatUsecase {
	if publisher == nil {
		publisher = NoopPublisher{}
	}
	return &ChatUsecase{
		store:      store,
		model:      model,
		compressor: compressor,
		publisher:  publisher,
		pricing:    pricing,
		log:        log.NewHelper(log.With(logger, "module", "biz/chat")),
	}
}

// CreateSession 创建并保存空会话
func (uc *ChatUsecase) CreateSession(ctx context.Context) (*domain.Session, error) {
	session := domain.NewSession()
	if err := uc.store.Save(ctx, session); err != nil {
		return nil, fmt.Errorf("save session: %w", err)
	}
	return session, nil
}

// GetSession 获取会话
func (uc *ChatUsecase) GetSession(ctx context.Context, id string) (*domain.Session, error) {
	return uc.store.Load(ctx, id)
}

// ResetSession 清空历史、聊天统计和压缩统计
func (uc *ChatUsecase) ResetSession(ctx context.Context, id string) (*domain.Session, error) {
	if !uc.acquire(id) {
		return nil, domain.ErrGenerationInProgress
	}
	defer uc.release(id)

	session, err := uc.store.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	session.Reset()
	if err := uc.store.Save(ctx, session); err != nil {
		return nil, fmt.Errorf("save session: %w", err)
	}

	uc.log.WithContext(ctx).Infof("session reset: id=%s", id)
	return session, nil
}

// StatsReport 会话统计
type StatsReport struct {
	SessionID        string                  `json:"sessionId"`
	Compression      domain.CompressionStats `json:"compression"`
	Chat             domain.ChatStats        `json:"chat"`
	FormattedCost    string                  `json:"formattedCost"`
	AverageTokens    int                     `json:"averageTokens"`
	TotalMessages    int                     `json:"totalMessages"`
	CompressedBlocks int                     `json:"compressedBlocks"`
	Report           string                  `json:"report"`
	DetailedReport   string                  `json:"detailedReport"`
}

// GetStatsReport 生成会话统计报告
func (uc *ChatUsecase) GetStatsReport(ctx context.Context, id string) (*StatsReport, error) {
	session, err := uc.store.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	return BuildStatsReport(session), nil
}

// BuildStatsReport 从会话生成统计报告
func BuildStatsReport(s *domain.Session) *StatsReport {
	total := len(s.Turns)

	avg := 0
	if exchanges := s.ChatStats.TotalMessages / 2; exchanges > 0 {
		avg = (s.ChatStats.InputTokens + s.ChatStats.OutputTokens) / exchanges
	}

	return &StatsReport{
		SessionID:        s.ID,
		Compression:      s.CompressionStats,
		Chat:             s.ChatStats,
		FormattedCost:    FormatCost(s.ChatStats.Cost),
		AverageTokens:    avg,
		TotalMessages:    total,
		CompressedBlocks: domain.CountCompressed(s.Turns),
		Report:           compression.Report(s.CompressionStats, total),
		DetailedReport:   compression.DetailedReport(s.CompressionStats, total),
	}
}

// SendMessage 追加用户消息并流式返回助手回复。
// 用户消息在开始生成之前就已保存；ctx 取消时丢弃已收到的部分回复。
func (uc *ChatUsecase) SendMessage(ctx context.Context, sessionID, content string) (<-chan StreamChunk, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, domain.ErrEmptyMessage
	}
	if !uc.acquire(sessionID) {
		return nil, domain.ErrGenerationInProgress
	}

	session, err := uc.store.Load(ctx, sessionID)
	if err != nil {
		uc.release(sessionID)
		return nil, err
	}

	session.Append(domain.NewChatTurn(domain.RoleUser, content))
	if err := uc.store.Save(ctx, session); err != nil {
		uc.release(sessionID)
		return nil, fmt.Errorf("save user turn: %w", err)
	}

	out := make(chan StreamChunk, chunkBufferSize)
	go func() {
		defer close(out)
		defer uc.release(sessionID)
		uc.generate(ctx, session, out)
	}()

	return out, nil
}

// generate 读取上游流，结束后落库、压缩并发送完成片段
func (uc *ChatUsecase) generate(ctx context.Context, session *domain.Session, out chan<- StreamChunk) {
	ctx, span := observability.StartSpan(ctx, tracerName, "ChatUsecase.generate",
		attribute.String("session.id", session.ID),
		attribute.Int("session.turns", len(session.Turns)),
	)
	defer span.End()

	started := time.Now()
	reply, usage, err := uc.consume(ctx, domain.ToMessages(session.Turns), out)

	// 流结束后的落库不受客户端断开影响
	persistCtx := context.WithoutCancel(ctx)

	switch {
	case err != nil && ctx.Err() != nil:
		metrics.RecordUpstream("canceled", time.Since(started))
		uc.log.WithContext(ctx).Infof("generation canceled: session=%s partial=%d", session.ID, len(reply))
		return

	case err != nil:
		metrics.RecordUpstream("error", time.Since(started))
		observability.RecordError(span, err)
		uc.log.WithContext(ctx).Errorf("upstream stream failed: session=%s err=%v", session.ID, err)

		session.Append(domain.NewChatTurn(domain.RoleAssistant, transportErrorText))
		if saveErr := uc.store.Save(persistCtx, session); saveErr != nil {
			uc.log.WithContext(ctx).Errorf("save error turn: session=%s err=%v", session.ID, saveErr)
		}
		uc.emit(ctx, out, StreamChunk{Error: err, Session: session})
		return
	}

	metrics.RecordUpstream("ok", time.Since(started))

	if strings.TrimSpace(reply) == "" {
		reply = emptyReplyText
	}
	session.Append(domain.NewChatTurn(domain.RoleAssistant, reply))
	uc.addUsage(session, usage)

	results := uc.compress(persistCtx, session)

	if err := uc.store.Save(persistCtx, session); err != nil {
		observability.RecordError(span, err)
		uc.emit(ctx, out, StreamChunk{Error: fmt.Errorf("save session: %w", err)})
		return
	}

	uc.emit(ctx, out, StreamChunk{
		Done:         true,
		Usage:        &usage,
		Compressions: results,
		Session:      session,
	})
}

// consume 转发内容片段，返回完整回复与用量
func (uc *ChatUsecase) consume(ctx context.Context, messages []domain.Message, out chan<- StreamChunk) (string, domain.Usage, error) {
	var usage domain.Usage

	stream, err := uc.model.StreamChat(ctx, messages)
	if err != nil {
		return "", usage, err
	}
	defer stream.Close()

	var reply strings.Builder
	for {
		delta, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return reply.String(), usage, err
		}
		if ctx.Err() != nil {
			return reply.String(), usage, ctx.Err()
		}

		if delta.Usage != nil {
			mergeUsage(&usage, *delta.Usage)
		}
		if delta.Content == "" {
			continue
		}
		reply.WriteString(delta.Content)
		if !uc.emit(ctx, out, StreamChunk{Content: delta.Content}) {
			return reply.String(), usage, ctx.Err()
		}
	}

	return reply.String(), usage, nil
}

// compress 触发条件成立时压缩历史并发布事件
func (uc *ChatUsecase) compress(ctx context.Context, session *domain.Session) []compression.Result {
	if !compression.ShouldCompress(session.Turns) {
		return nil
	}

	turns, results, stats := uc.compressor.CompressAll(session.Turns, session.CompressionStats)
	session.Turns = turns
	session.CompressionStats = stats

	for _, r := range results {
		metrics.RecordCompression(string(r.OverallGrade), r.Attempt, r.OriginalTokens-r.CompressedTokens, map[string]int{
			"data":    r.DataQuality,
			"logic":   r.LogicQuality,
			"emotion": r.EmotionalTone,
			"context": r.ContextPreservation,
			"intent":  r.IntentPreservation,
		})
		uc.log.WithContext(ctx).Infof("compressed: session=%s block=%d range=%d-%d tokens=%d->%d grade=%s attempt=%d",
			session.ID, r.BlockNumber, r.Range.Start, r.Range.End, r.OriginalTokens, r.CompressedTokens, r.OverallGrade, r.Attempt)

		if err := uc.publisher.PublishCompression(ctx, session.ID, r); err != nil {
			uc.log.WithContext(ctx).Warnf("publish compression event: session=%s block=%d err=%v", session.ID, r.BlockNumber, err)
		}
	}
	return results
}

// addUsage 累加用量与费用
func (uc *ChatUsecase) addUsage(session *domain.Session, usage domain.Usage) {
	cost := uc.pricing.Cost(usage.PromptTokens, usage.CompletionTokens)

	session.ChatStats.InputTokens += usage.PromptTokens
	session.ChatStats.OutputTokens += usage.CompletionTokens
	session.ChatStats.Cost += cost
	session.ChatStats.TotalMessages += 2

	metrics.RecordUsage(usage.PromptTokens, usage.CompletionTokens, cost)
}

// Relay 无状态转发：校验消息后直接流式返回上游回复。
// 上游在建立流之前返回的错误同步返回，便于调用方回显状态码。
func (uc *ChatUsecase) Relay(ctx context.Context, messages []domain.Message) (<-chan StreamChunk, error) {
	if len(messages) == 0 {
		return nil, domain.ErrEmptyMessages
	}
	for _, m := range messages {
		if !domain.TurnRole(m.Role).Valid() {
			return nil, fmt.Errorf("%w: %q", domain.ErrInvalidTurnRole, m.Role)
		}
	}

	started := time.Now()
	stream, err := uc.model.StreamChat(ctx, messages)
	if err != nil {
		metrics.RecordUpstream("error", time.Since(started))
		return nil, err
	}

	out := make(chan StreamChunk, chunkBufferSize)
	go func() {
		defer close(out)
		defer stream.Close()

		var usage domain.Usage
		for {
			delta, err := stream.Recv()
			if errors.Is(err, io.EOF) {
				break
			}
			if err != nil {
				if ctx.Err() != nil {
					metrics.RecordUpstream("canceled", time.Since(started))
					return
				}
				metrics.RecordUpstream("error", time.Since(started))
				uc.emit(ctx, out, StreamChunk{Error: err})
				return
			}
			if delta.Usage != nil {
				mergeUsage(&usage, *delta.Usage)
			}
			if delta.Content != "" && !uc.emit(ctx, out, StreamChunk{Content: delta.Content}) {
				return
			}
		}

		metrics.RecordUpstream("ok", time.Since(started))
		uc.emit(ctx, out, StreamChunk{Done: true, Usage: &usage})
	}()

	return out, nil
}

// emit 发送片段，ctx 取消时放弃
func (uc *ChatUsecase) emit(ctx context.Context, out chan<- StreamChunk, chunk StreamChunk) bool {
	select {
	case out <- chunk:
		return true
	case <-ctx.Done():
		return false
	}
}

func (uc *ChatUsecase) acquire(sessionID string) bool {
	_, busy := uc.inFlight.LoadOrStore(sessionID, struct{}{})
	return !busy
}

func (uc *ChatUsecase) release(sessionID string) {
	uc.inFlight.Delete(sessionID)
}

// mergeUsage 只采用非零的用量字段
func mergeUsage(dst *domain.Usage, src domain.Usage) {
	if src.PromptTokens != 0 {
		dst.PromptTokens = src.PromptTokens
	}
	if src.CompletionTokens != 0 {
		dst.CompletionTokens = src.CompletionTokens
	}
}
