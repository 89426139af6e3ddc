package resilience

import (
	"errors"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// ErrRateLimitExceeded 限流错误
var ErrRateLimitExceeded = errors.New("rate limit exceeded")

// TokenBucket 令牌桶限流器
type TokenBucket struct {
	mu         sync.Mutex
	capacity   float64 // 桶容量
	tokens     float64 // 当前令牌数
	refillRate float64 // 每秒补充令牌数
	lastRefill time.Time
	now        func() time.Time
}

// NewTokenBucket 创建令牌桶，初始为满
func NewTokenBucket(capacity int, refillRate float64) *TokenBucket {
	return newTokenBucket(capacity, refillRate, time.Now)
}

func newTokenBucket(capacity int, refillRate float64, now func() time.Time) *TokenBucket {
	return &TokenBucket{
		capacity:   float64(capacity),
		tokens:     float64(capacity),
		refillRate: refillRate,
		lastRefill: now(),
		now:        now,
	}
}

// Allow 请求一个令牌
func (tb *TokenBucket) Allow() bool {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	tb.refill()
	if tb.tokens >= 1 {
		tb.tokens--
		return true
	}
	return false
}

// refill 按流逝时间补充令牌
func (tb *TokenBucket) refill() {
	now := tb.now()
	elapsed := now.Sub(tb.lastRefill).Seconds()
	if elapsed <= 0 {
		return
	}
	tb.tokens += elapsed * tb.refillRate
	if tb.tokens > tb.capacity {
		tb.tokens = tb.capacity
	}
	tb.lastRefill = now
}

// AvailableTokens 当前可用令牌数
func (tb *TokenBucket) AvailableTokens() int {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	tb.refill()
	return int(tb.tokens)
}

// KeyedLimiter 按 key（如客户端 IP）各自限流，闲置的桶自动过期
type KeyedLimiter struct {
	mu         sync.Mutex
	buckets    *gocache.Cache
	capacity   int
	refillRate float64
	idle       time.Duration
}

// NewKeyedLimiter 创建按 key 限流器
func NewKeyedLimiter(capacity int, refillRate float64, idle time.Duration) *KeyedLimiter {
	if idle <= 0 {
		idle = 10 * time.Minute
	}
	return &KeyedLimiter{
		buckets:    gocache.New(idle, idle),
		capacity:   capacity,
		refillRate: refillRate,
		idle:       idle,
	}
}

// Allow key 对应的桶是否还有令牌
func (l *KeyedLimiter) Allow(key string) bool {
	l.mu.Lock()
	v, ok := l.buckets.Get(key)
	if !ok {
		v = NewTokenBucket(l.capacity, l.refillRate)
	}
	// 每次访问都续期
	l.buckets.Set(key, v, l.idle)
	l.mu.Unlock()

	return v.(*TokenBucket).Allow()
}
