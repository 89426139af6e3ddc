package data

import (
	"context"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"contextrelay/cmd/chat-service/internal/domain"
)

// MemoryStore 进程内会话存储，未配置数据库时使用
type MemoryStore struct {
	items *gocache.Cache
	ttl   time.Duration
}

var _ domain.SessionStore = (*MemoryStore)(nil)

// NewMemoryStore 创建进程内存储
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	if ttl <= 0 {
		ttl = defaultSessionTTL
	}
	return &MemoryStore{
		items: gocache.New(ttl, 10*time.Minute),
		ttl:   ttl,
	}
}

// Load 读取会话副本
func (m *MemoryStore) Load(_ context.Context, id string) (*domain.Session, error) {
	v, ok := m.items.Get(id)
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	return cloneSession(v.(*domain.Session)), nil
}

// Save 保存会话副本并续期
func (m *MemoryStore) Save(_ context.Context, session *domain.Session) error {
	m.items.Set(session.ID, cloneSession(session), m.ttl)
	return nil
}

// Delete 删除会话
func (m *MemoryStore) Delete(_ context.Context, id string) error {
	m.items.Delete(id)
	return nil
}

// Len 当前会话数
func (m *MemoryStore) Len() int {
	return m.items.ItemCount()
}

func cloneSession(s *domain.Session) *domain.Session {
	out := *s
	out.Turns = make([]domain.ChatTurn, len(s.Turns))
	copy(out.Turns, s.Turns)
	for i, t := range out.Turns {
		if t.CompressedRange != nil {
			r := *t.CompressedRange
			out.Turns[i].CompressedRange = &r
		}
	}
	return &out
}
