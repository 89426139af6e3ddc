package data

import (
	"context"
	"errors"
	"time"

	"github.com/go-kratos/kratos/v2/log"

	"contextrelay/cmd/chat-service/internal/domain"
	"contextrelay/cmd/chat-service/internal/metrics"
	"contextrelay/pkg/cache"
)

const (
	messagesKeyPrefix         = "deepseek_chat_messages:"
	chatStatsKeyPrefix        = "deepseek_chat_stats:"
	compressionStatsKeyPrefix = "deepseek_compression_stats:"

	// 默认 TTL (24小时)
	defaultSessionTTL = 24 * time.Hour
)

// sessionKeys 一个会话的三个快照键
func sessionKeys(id string) (messages, chatStats, compressionStats string) {
	return messagesKeyPrefix + id, chatStatsKeyPrefix + id, compressionStatsKeyPrefix + id
}

// chatStatsSnapshot 聊天统计快照，附带会话时间戳
type chatStatsSnapshot struct {
	domain.ChatStats
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// SessionCache 会话快照缓存
type SessionCache struct {
	cache cache.Cache
	ttl   time.Duration
}

// NewSessionCache 创建会话快照缓存
func NewSessionCache(c cache.Cache, ttl time.Duration) *SessionCache {
	if ttl <= 0 {
		ttl = defaultSessionTTL
	}
	return &SessionCache{cache: c, ttl: ttl}
}

// Get 读取快照，任一键缺失视为未命中
func (c *SessionCache) Get(ctx context.Context, id string) (*domain.Session, error) {
	msgKey, chatKey, compKey := sessionKeys(id)

	s := &domain.Session{ID: id}
	if err := c.cache.GetObject(ctx, msgKey, &s.Turns); err != nil {
		return nil, err
	}
	var snap chatStatsSnapshot
	if err := c.cache.GetObject(ctx, chatKey, &snap); err != nil {
		return nil, err
	}
	if err := c.cache.GetObject(ctx, compKey, &s.CompressionStats); err != nil {
		return nil, err
	}

	if s.Turns == nil {
		s.Turns = []domain.ChatTurn{}
	}
	s.ChatStats = snap.ChatStats
	s.CreatedAt = snap.CreatedAt
	s.UpdatedAt = snap.UpdatedAt
	return s, nil
}

// Set 写入快照
func (c *SessionCache) Set(ctx context.Context, s *domain.Session) error {
	msgKey, chatKey, compKey := sessionKeys(s.ID)

	turns := s.Turns
	if turns == nil {
		turns = []domain.ChatTurn{}
	}
	if err := c.cache.SetObject(ctx, msgKey, turns, c.ttl); err != nil {
		return err
	}
	snap := chatStatsSnapshot{ChatStats: s.ChatStats, CreatedAt: s.CreatedAt, UpdatedAt: s.UpdatedAt}
	if err := c.cache.SetObject(ctx, chatKey, snap, c.ttl); err != nil {
		return err
	}
	return c.cache.SetObject(ctx, compKey, s.CompressionStats, c.ttl)
}

// Delete 删除快照
func (c *SessionCache) Delete(ctx context.Context, id string) error {
	msgKey, chatKey, compKey := sessionKeys(id)
	return c.cache.Delete(ctx, msgKey, chatKey, compKey)
}

// CachedSessionStore 在主存储前加一层快照缓存（读穿透、写穿透）
type CachedSessionStore struct {
	store domain.SessionStore
	cache *SessionCache
	log   *log.Helper
}

var _ domain.SessionStore = (*CachedSessionStore)(nil)

// NewCachedSessionStore 创建带缓存的会话存储
func NewCachedSessionStore(store domain.SessionStore, c *SessionCache, logger log.Logger) *CachedSessionStore {
	return &CachedSessionStore{
		store: store,
		cache: c,
		log:   log.NewHelper(log.With(logger, "module", "data/session_cache")),
	}
}

// Load 先查缓存，未命中时回源并回填
func (s *CachedSessionStore) Load(ctx context.Context, id string) (*domain.Session, error) {
	session, err := s.cache.Get(ctx, id)
	if err == nil {
		metrics.RecordCacheResult("hit")
		return session, nil
	}
	if errors.Is(err, cache.ErrMiss) {
		metrics.RecordCacheResult("miss")
	} else {
		metrics.RecordCacheResult("error")
		s.log.WithContext(ctx).Warnf("session cache get failed: id=%s err=%v", id, err)
	}

	session, err = s.store.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.cache.Set(ctx, session); err != nil {
		s.log.WithContext(ctx).Warnf("session cache fill failed: id=%s err=%v", id, err)
	}
	return session, nil
}

// Save 写主存储后刷新缓存
func (s *CachedSessionStore) Save(ctx context.Context, session *domain.Session) error {
	if err := s.store.Save(ctx, session); err != nil {
		return err
	}
	if err := s.cache.Set(ctx, session); err != nil {
		s.log.WithContext(ctx).Warnf("session cache set failed: id=%s err=%v", session.ID, err)
		// 缓存里的旧快照不能继续留着
		_ = s.cache.Delete(ctx, session.ID)
	}
	return nil
}

// Delete 删除主存储与缓存
func (s *CachedSessionStore) Delete(ctx context.Context, id string) error {
	if err := s.store.Delete(ctx, id); err != nil {
		return err
	}
	if err := s.cache.Delete(ctx, id); err != nil {
		s.log.WithContext(ctx).Warnf("session cache delete failed: id=%s err=%v", id, err)
	}
	return nil
}
