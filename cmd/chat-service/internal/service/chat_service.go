package service

import (
	"context"
	"errors"

	"github.com/google/wire"

	"contextrelay/cmd/chat-service/internal/biz"
	"contextrelay/cmd/chat-service/internal/compression"
	"contextrelay/cmd/chat-service/internal/domain"
)

// ProviderSet 服务层提供者集合
var ProviderSet = wire.NewSet(NewChatService)

// Frame 一个 SSE 数据帧
type Frame struct {
	Content      string               `json:"content,omitempty"`
	Done         bool                 `json:"done,omitempty"`
	Usage        *domain.Usage        `json:"usage,omitempty"`
	Compressions []compression.Result `json:"compressions,omitempty"`
	Stats        *SessionStats        `json:"stats,omitempty"`
	Error        string               `json:"error,omitempty"`

	// Err 原始错误，不序列化
	Err error `json:"-"`
}

// SessionStats 完成帧里附带的会话统计
type SessionStats struct {
	Chat          domain.ChatStats        `json:"chat"`
	Compression   domain.CompressionStats `json:"compression"`
	FormattedCost string                  `json:"formattedCost"`
	TotalMessages int                     `json:"totalMessages"`
}

// ChatService 对话服务实现
type ChatService struct {
	chatUc *biz.ChatUsecase
}

// NewChatService 创建对话服务
func NewChatService(chatUc *biz.ChatUsecase) *ChatService {
	return &ChatService{chatUc: chatUc}
}

// CreateSession 创建会话
func (s *ChatService) CreateSession(ctx context.Context) (*domain.Session, error) {
	return s.chatUc.CreateSession(ctx)
}

// GetSession 获取会话
func (s *ChatService) GetSession(ctx context.Context, id string) (*domain.Session, error) {
	return s.chatUc.GetSession(ctx, id)
}

// ResetSession 重置会话
func (s *ChatService) ResetSession(ctx context.Context, id string) (*domain.Session, error) {
	return s.chatUc.ResetSession(ctx, id)
}

// GetStats 获取会话统计报告
func (s *ChatService) GetStats(ctx context.Context, id string) (*biz.StatsReport, error) {
	return s.chatUc.GetStatsReport(ctx, id)
}

// SendMessage 发送消息并返回 SSE 帧
func (s *ChatService) SendMessage(ctx context.Context, sessionID, content string) (<-chan Frame, error) {
	chunks, err := s.chatUc.SendMessage(ctx, sessionID, content)
	if err != nil {
		return nil, err
	}
	return toFrames(ctx, chunks), nil
}

// Relay 无状态转发
func (s *ChatService) Relay(ctx context.Context, messages []domain.Message) (<-chan Frame, error) {
	chunks, err := s.chatUc.Relay(ctx, messages)
	if err != nil {
		return nil, err
	}
	return toFrames(ctx, chunks), nil
}

// toFrames 转换片段流，ctx 取消后停止转发
func toFrames(ctx context.Context, chunks <-chan biz.StreamChunk) <-chan Frame {
	out := make(chan Frame)
	go func() {
		defer close(out)
		for c := range chunks {
			select {
			case out <- toFrame(c):
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}

// toFrame 转换流式片段
func toFrame(c biz.StreamChunk) Frame {
	if c.Error != nil {
		return Frame{Error: ErrorMessage(c.Error), Err: c.Error}
	}
	if !c.Done {
		return Frame{Content: c.Content}
	}

	f := Frame{Done: true, Usage: c.Usage, Compressions: c.Compressions}
	if f.Usage == nil {
		f.Usage = &domain.Usage{}
	}
	if c.Session != nil {
		f.Stats = &SessionStats{
			Chat:          c.Session.ChatStats,
			Compression:   c.Session.CompressionStats,
			FormattedCost: biz.FormatCost(c.Session.ChatStats.Cost),
			TotalMessages: len(c.Session.Turns),
		}
	}
	return f
}

// ErrorMessage 面向客户端的错误文案
func ErrorMessage(err error) string {
	switch {
	case errors.Is(err, domain.ErrSessionNotFound):
		return "Session not found"
	case errors.Is(err, domain.ErrEmptyMessages):
		return "Messages array is required"
	case errors.Is(err, domain.ErrEmptyMessage):
		return "Message content is required"
	case errors.Is(err, domain.ErrInvalidTurnRole):
		return "Invalid message role"
	case errors.Is(err, domain.ErrGenerationInProgress):
		return "Generation already in progress"
	case errors.Is(err, domain.ErrAPIKeyMissing):
		return "API key not configured"
	case errors.Is(err, domain.ErrUpstream):
		return "DeepSeek API error"
	default:
		return "Internal server error"
	}
}
