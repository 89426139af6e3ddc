package data

import (
	"context"
	"time"

	"contextrelay/cmd/chat-service/internal/domain"
	"contextrelay/pkg/health"
)

// checkThreshold 超过该响应时间视为降级
const checkThreshold = 500 * time.Millisecond

type pinger interface {
	Ping(ctx context.Context) error
}

// NewHealthChecker 按会话存储实际使用的后端注册就绪检查，内存存储不注册
func NewHealthChecker(store domain.SessionStore) *health.HealthChecker {
	h := health.NewHealthChecker()
	registerChecks(h, store)
	return h
}

func registerChecks(h *health.HealthChecker, store domain.SessionStore) {
	switch s := store.(type) {
	case *CachedSessionStore:
		registerChecks(h, s.store)
		if p, ok := s.cache.cache.(pinger); ok {
			h.Register(health.NewPingChecker("redis", p.Ping, checkThreshold))
		}
	case *SessionRepository:
		h.Register(health.NewPingChecker("postgres", s.Ping, checkThreshold))
	}
}
