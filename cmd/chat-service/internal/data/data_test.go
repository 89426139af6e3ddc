package data

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"contextrelay/cmd/chat-service/internal/domain"
	"contextrelay/pkg/cache"
)

func sampleSession() *domain.Session {
	s := domain.NewSession()
	s.Append(
		domain.NewChatTurn(domain.RoleUser, "привет"),
		domain.NewChatTurn(domain.RoleAssistant, "здравствуйте"),
	)
	s.Turns = append(s.Turns, domain.ChatTurn{
		ID:              "block",
		Role:            domain.RoleSystem,
		Content:         "[COMPRESSED #1] Msg 1-10",
		IsCompressed:    true,
		CompressedRange: &domain.CompressedRange{Start: 1, End: 10},
	})
	s.ChatStats = domain.ChatStats{InputTokens: 10, OutputTokens: 5, Cost: 0.0025, TotalMessages: 2}
	s.CompressionStats.TotalCompressions = 1
	return s
}

func TestDataObjectRoundTrip(t *testing.T) {
	s := sampleSession()

	do, err := toDataObject(s)
	require.NoError(t, err)
	assert.Equal(t, s.ID, do.ID)
	assert.Contains(t, do.TurnsJSON, `"isCompressed":true`)
	assert.Contains(t, do.ChatStatsJSON, `"inputTokens":10`)

	got, err := toDomain(do)
	require.NoError(t, err)
	assert.Equal(t, s.ChatStats, got.ChatStats)
	assert.Equal(t, s.CompressionStats, got.CompressionStats)
	require.Len(t, got.Turns, 3)
	assert.Equal(t, &domain.CompressedRange{Start: 1, End: 10}, got.Turns[2].CompressedRange)
}

func TestToDomain_EmptyColumns(t *testing.T) {
	got, err := toDomain(&ChatSessionDO{ID: "s1"})
	require.NoError(t, err)
	assert.NotNil(t, got.Turns)
	assert.Equal(t, domain.NewCompressionStats(), got.CompressionStats)
}

func TestToDomain_CorruptTurns(t *testing.T) {
	_, err := toDomain(&ChatSessionDO{ID: "s1", TurnsJSON: "{"})
	assert.Error(t, err)
}

func TestChatSessionDO_TableName(t *testing.T) {
	assert.Equal(t, "chat_sessions", ChatSessionDO{}.TableName())
}

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore(time.Hour)

	_, err := m.Load(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)

	s := sampleSession()
	require.NoError(t, m.Save(ctx, s))
	assert.Equal(t, 1, m.Len())

	// 修改调用方持有的对象不影响已保存的副本
	s.Turns[2].CompressedRange.End = 99
	s.Append(domain.NewChatTurn(domain.RoleUser, "ещё"))

	got, err := m.Load(ctx, s.ID)
	require.NoError(t, err)
	assert.Len(t, got.Turns, 3)
	assert.Equal(t, 10, got.Turns[2].CompressedRange.End)

	require.NoError(t, m.Delete(ctx, s.ID))
	_, err = m.Load(ctx, s.ID)
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
}

func TestMemoryStore_Expiry(t *testing.T) {
	m := NewMemoryStore(20 * time.Millisecond)
	s := sampleSession()
	require.NoError(t, m.Save(context.Background(), s))

	time.Sleep(50 * time.Millisecond)
	_, err := m.Load(context.Background(), s.ID)
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
}

// fakeCache 基于 map 的缓存，可注入错误
type fakeCache struct {
	mu     sync.Mutex
	items  map[string][]byte
	getErr error
	setErr error
	ttls   map[string]time.Duration
}

func newFakeCache() *fakeCache {
	return &fakeCache{items: map[string][]byte{}, ttls: map[string]time.Duration{}}
}

func (f *fakeCache) GetObject(_ context.Context, key string, dest interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return f.getErr
	}
	raw, ok := f.items[key]
	if !ok {
		return cache.ErrMiss
	}
	return cache.JSONSerializer{}.Deserialize(raw, dest)
}

func (f *fakeCache) SetObject(_ context.Context, key string, value interface{}, ttl time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.setErr != nil {
		return f.setErr
	}
	raw, err := cache.JSONSerializer{}.Serialize(value)
	if err != nil {
		return err
	}
	f.items[key] = raw
	f.ttls[key] = ttl
	return nil
}

func (f *fakeCache) Delete(_ context.Context, keys ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, k := range keys {
		delete(f.items, k)
	}
	return nil
}

func (f *fakeCache) Close() error { return nil }

// countingStore 统计主存储读取次数
type countingStore struct {
	*MemoryStore
	loads int
}

func (c *countingStore) Load(ctx context.Context, id string) (*domain.Session, error) {
	c.loads++
	return c.MemoryStore.Load(ctx, id)
}

func TestSessionCache_Keys(t *testing.T) {
	fc := newFakeCache()
	sc := NewSessionCache(fc, 0)

	s := sampleSession()
	require.NoError(t, sc.Set(context.Background(), s))

	for _, key := range []string{
		"deepseek_chat_messages:" + s.ID,
		"deepseek_chat_stats:" + s.ID,
		"deepseek_compression_stats:" + s.ID,
	} {
		assert.Contains(t, fc.items, key)
		assert.Equal(t, 24*time.Hour, fc.ttls[key])
	}

	got, err := sc.Get(context.Background(), s.ID)
	require.NoError(t, err)
	assert.Equal(t, s.ChatStats, got.ChatStats)
	assert.Len(t, got.Turns, 3)
	assert.True(t, s.CreatedAt.Equal(got.CreatedAt))

	require.NoError(t, sc.Delete(context.Background(), s.ID))
	assert.Empty(t, fc.items)
}

func TestCachedSessionStore_ReadThrough(t *testing.T) {
	ctx := context.Background()
	primary := &countingStore{MemoryStore: NewMemoryStore(time.Hour)}
	fc := newFakeCache()
	store := NewCachedSessionStore(primary, NewSessionCache(fc, time.Hour), log.DefaultLogger)

	s := sampleSession()
	require.NoError(t, primary.Save(ctx, s))

	_, err := store.Load(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, primary.loads)
	assert.Len(t, fc.items, 3)

	_, err = store.Load(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, primary.loads)
}

func TestCachedSessionStore_WriteThroughAndDelete(t *testing.T) {
	ctx := context.Background()
	primary := NewMemoryStore(time.Hour)
	fc := newFakeCache()
	store := NewCachedSessionStore(primary, NewSessionCache(fc, time.Hour), log.DefaultLogger)

	s := sampleSession()
	require.NoError(t, store.Save(ctx, s))
	assert.Len(t, fc.items, 3)

	require.NoError(t, store.Delete(ctx, s.ID))
	assert.Empty(t, fc.items)
	_, err := store.Load(ctx, s.ID)
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
}

func TestCachedSessionStore_CacheFailuresAreNotFatal(t *testing.T) {
	ctx := context.Background()
	primary := NewMemoryStore(time.Hour)
	fc := newFakeCache()
	store := NewCachedSessionStore(primary, NewSessionCache(fc, time.Hour), log.DefaultLogger)

	fc.setErr = errors.New("redis down")
	s := sampleSession()
	require.NoError(t, store.Save(ctx, s))

	fc.getErr = errors.New("redis down")
	got, err := store.Load(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, s.ID, got.ID)
}
