package biz

import (
	"context"

	"contextrelay/cmd/chat-service/internal/compression"
)

// EventPublisher 压缩事件发布接口
type EventPublisher interface {
	PublishCompression(ctx context.Context, sessionID string, r compression.Result) error
}

// NoopPublisher 未配置 Kafka 时使用
type NoopPublisher struct{}

// PublishCompression 丢弃事件
func (NoopPublisher) PublishCompression(context.Context, string, compression.Result) error {
	return nil
}
