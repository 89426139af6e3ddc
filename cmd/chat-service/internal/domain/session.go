package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Session 一个完整的对话会话：历史、费用统计、压缩统计
type Session struct {
	ID               string           `json:"id"`
	Turns            []ChatTurn       `json:"turns"`
	ChatStats        ChatStats        `json:"chatStats"`
	CompressionStats CompressionStats `json:"compressionStats"`
	CreatedAt        time.Time        `json:"createdAt"`
	UpdatedAt        time.Time        `json:"updatedAt"`
}

// NewSession 创建空会话
func NewSession() *Session {
	now := time.Now()
	return &Session{
		ID:               uuid.NewString(),
		Turns:            []ChatTurn{},
		CompressionStats: NewCompressionStats(),
		CreatedAt:        now,
		UpdatedAt:        now,
	}
}

// Reset 清空历史与统计，保留会话 ID
func (s *Session) Reset() {
	s.Turns = []ChatTurn{}
	s.ChatStats = ChatStats{}
	s.CompressionStats = NewCompressionStats()
	s.UpdatedAt = time.Now()
}

// Append 追加消息
func (s *Session) Append(turns ...ChatTurn) {
	s.Turns = append(s.Turns, turns...)
	s.UpdatedAt = time.Now()
}

// SessionStore 会话持久化接口
type SessionStore interface {
	Load(ctx context.Context, id string) (*Session, error)
	Save(ctx context.Context, session *Session) error
	Delete(ctx context.Context, id string) error
}
