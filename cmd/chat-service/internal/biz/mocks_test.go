package biz

import (
	"context"
	"io"
	"sync"

	"contextrelay/cmd/chat-service/internal/compression"
	"contextrelay/cmd/chat-service/internal/domain"
)

// MockChatModel 上游模型 mock
type MockChatModel struct {
	StreamChatFunc func(ctx context.Context, messages []domain.Message) (domain.ChatStream, error)

	mu       sync.Mutex
	received [][]domain.Message
}

func (m *MockChatModel) StreamChat(ctx context.Context, messages []domain.Message) (domain.ChatStream, error) {
	m.mu.Lock()
	m.received = append(m.received, messages)
	m.mu.Unlock()
	return m.StreamChatFunc(ctx, messages)
}

func (m *MockChatModel) lastMessages() []domain.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.received) == 0 {
		return nil
	}
	return m.received[len(m.received)-1]
}

// scriptStream 依次返回预设的片段，之后返回 tail 错误（默认 io.EOF）
type scriptStream struct {
	deltas []domain.StreamDelta
	tail   error
	// block 非空时在片段发完后阻塞，直到 ctx 取消或 block 关闭
	block <-chan struct{}
	ctx   context.Context

	mu     sync.Mutex
	closed bool
}

func (s *scriptStream) Recv() (domain.StreamDelta, error) {
	if len(s.deltas) > 0 {
		d := s.deltas[0]
		s.deltas = s.deltas[1:]
		return d, nil
	}
	if s.block != nil {
		select {
		case <-s.block:
		case <-s.ctx.Done():
			return domain.StreamDelta{}, s.ctx.Err()
		}
	}
	if s.tail != nil {
		return domain.StreamDelta{}, s.tail
	}
	return domain.StreamDelta{}, io.EOF
}

func (s *scriptStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *scriptStream) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// mapStore 基于 map 的会话存储，保存副本
type mapStore struct {
	mu       sync.Mutex
	sessions map[string]domain.Session
	saves    int
}

func newMapStore() *mapStore {
	return &mapStore{sessions: map[string]domain.Session{}}
}

func (s *mapStore) Load(_ context.Context, id string) (*domain.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.sessions[id]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	v.Turns = append([]domain.ChatTurn(nil), v.Turns...)
	return &v, nil
}

func (s *mapStore) Save(_ context.Context, session *domain.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	v := *session
	v.Turns = append([]domain.ChatTurn(nil), session.Turns...)
	s.sessions[session.ID] = v
	s.saves++
	return nil
}

func (s *mapStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
	return nil
}

// recordingPublisher 记录发布的压缩事件
type recordingPublisher struct {
	mu     sync.Mutex
	events []compression.Result
	err    error
}

func (p *recordingPublisher) PublishCompression(_ context.Context, _ string, r compression.Result) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, r)
	return p.err
}
