package data

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"contextrelay/cmd/chat-service/internal/domain"
	"contextrelay/pkg/database"
)

// ChatSessionDO 会话数据对象
type ChatSessionDO struct {
	ID                   string `gorm:"primaryKey;size:64"`
	TurnsJSON            string `gorm:"column:turns;type:jsonb"`
	ChatStatsJSON        string `gorm:"column:chat_stats;type:jsonb"`
	CompressionStatsJSON string `gorm:"column:compression_stats;type:jsonb"`
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

// TableName 指定表名
func (ChatSessionDO) TableName() string {
	return "chat_sessions"
}

// SessionRepository Postgres 会话仓储
type SessionRepository struct {
	db *gorm.DB
}

var _ domain.SessionStore = (*SessionRepository)(nil)

// NewSessionRepository 创建会话仓储
func NewSessionRepository(db *gorm.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

// Ping 检查数据库连接
func (r *SessionRepository) Ping(ctx context.Context) error {
	return database.Ping(ctx, r.db)
}

// Load 读取会话
func (r *SessionRepository) Load(ctx context.Context, id string) (*domain.Session, error) {
	var do ChatSessionDO
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&do).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrSessionNotFound
		}
		return nil, err
	}
	return toDomain(&do)
}

// Save 插入或整体覆盖会话
func (r *SessionRepository) Save(ctx context.Context, session *domain.Session) error {
	do, err := toDataObject(session)
	if err != nil {
		return err
	}
	return r.db.WithContext(ctx).Save(do).Error
}

// Delete 删除会话
func (r *SessionRepository) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Where("id = ?", id).Delete(&ChatSessionDO{}).Error
}

// toDataObject 转换为数据对象
func toDataObject(s *domain.Session) (*ChatSessionDO, error) {
	turns := s.Turns
	if turns == nil {
		turns = []domain.ChatTurn{}
	}
	turnsJSON, err := json.Marshal(turns)
	if err != nil {
		return nil, fmt.Errorf("marshal turns: %w", err)
	}
	chatJSON, err := json.Marshal(s.ChatStats)
	if err != nil {
		return nil, fmt.Errorf("marshal chat stats: %w", err)
	}
	compJSON, err := json.Marshal(s.CompressionStats)
	if err != nil {
		return nil, fmt.Errorf("marshal compression stats: %w", err)
	}

	return &ChatSessionDO{
		ID:                   s.ID,
		TurnsJSON:            string(turnsJSON),
		ChatStatsJSON:        string(chatJSON),
		CompressionStatsJSON: string(compJSON),
		CreatedAt:            s.CreatedAt,
		UpdatedAt:            s.UpdatedAt,
	}, nil
}

// toDomain 转换为领域对象
func toDomain(do *ChatSessionDO) (*domain.Session, error) {
	s := &domain.Session{
		ID:               do.ID,
		Turns:            []domain.ChatTurn{},
		CompressionStats: domain.NewCompressionStats(),
		CreatedAt:        do.CreatedAt,
		UpdatedAt:        do.UpdatedAt,
	}

	if do.TurnsJSON != "" {
		if err := json.Unmarshal([]byte(do.TurnsJSON), &s.Turns); err != nil {
			return nil, fmt.Errorf("unmarshal turns: %w", err)
		}
	}
	if do.ChatStatsJSON != "" {
		if err := json.Unmarshal([]byte(do.ChatStatsJSON), &s.ChatStats); err != nil {
			return nil, fmt.Errorf("unmarshal chat stats: %w", err)
		}
	}
	if do.CompressionStatsJSON != "" {
		if err := json.Unmarshal([]byte(do.CompressionStatsJSON), &s.CompressionStats); err != nil {
			return nil, fmt.Errorf("unmarshal compression stats: %w", err)
		}
	}

	return s, nil
}
