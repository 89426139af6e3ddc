package infra

import (
	"context"
	"errors"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/google/wire"

	"contextrelay/cmd/chat-service/internal/conf"
	"contextrelay/cmd/chat-service/internal/domain"
)

// ProviderSet 基础设施层提供者集合
var ProviderSet = wire.NewSet(NewChatModel)

// NewChatModel 按配置创建带熔断的 DeepSeek 模型。
// 未配置 API Key 时服务照常启动，每次调用都返回 ErrAPIKeyMissing。
func NewChatModel(c *conf.DeepSeek, logger log.Logger) (domain.ChatModel, error) {
	client, err := NewDeepSeekClient(&DeepSeekConfig{
		APIKey:    c.APIKey,
		BaseURL:   c.BaseURL,
		Model:     c.Model,
		MaxTokens: c.MaxTokens,
	}, logger)
	if errors.Is(err, domain.ErrAPIKeyMissing) {
		log.NewHelper(logger).Warn("DEEPSEEK_API_KEY is not set, chat requests will fail")
		return unconfiguredModel{}, nil
	}
	if err != nil {
		return nil, err
	}

	return NewResilientChatModel(client, &CircuitBreakerConfig{
		Name:             "deepseek",
		MaxRequests:      c.Breaker.MaxRequests,
		Interval:         c.Breaker.Interval,
		Timeout:          c.Breaker.Timeout,
		FailureThreshold: c.Breaker.FailureThreshold,
		MinRequests:      c.Breaker.MinRequests,
	}, logger), nil
}

// unconfiguredModel 缺少 API Key 时的占位模型
type unconfiguredModel struct{}

func (unconfiguredModel) StreamChat(context.Context, []domain.Message) (domain.ChatStream, error) {
	return nil, domain.ErrAPIKeyMissing
}
