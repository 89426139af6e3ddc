package infra

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/go-kratos/kratos/v2/log"
	openai "github.com/meguminnnnnnnnn/go-openai"

	"contextrelay/cmd/chat-service/internal/domain"
	pkgerrors "contextrelay/pkg/errors"
)

// DeepSeekConfig DeepSeek 客户端配置
type DeepSeekConfig struct {
	APIKey    string
	BaseURL   string
	Model     string
	MaxTokens int
	// HTTPClient 为空时使用不带超时的默认客户端，流式请求依赖 ctx 取消
	HTTPClient *http.Client
}

// DeepSeekClient OpenAI 兼容接口的 DeepSeek 流式客户端
type DeepSeekClient struct {
	client *openai.Client
	config *DeepSeekConfig
	logger *log.Helper
}

// NewDeepSeekClient 创建 DeepSeek 客户端，未配置 API Key 时返回 ErrAPIKeyMissing
func NewDeepSeekClient(c *DeepSeekConfig, logger log.Logger) (*DeepSeekClient, error) {
	if c.APIKey == "" {
		return nil, domain.ErrAPIKeyMissing
	}

	cfg := openai.DefaultConfig(c.APIKey)
	if c.BaseURL != "" {
		cfg.BaseURL = c.BaseURL
	}
	if c.HTTPClient != nil {
		cfg.HTTPClient = c.HTTPClient
	}

	return &DeepSeekClient{
		client: openai.NewClientWithConfig(cfg),
		config: c,
		logger: log.NewHelper(log.With(logger, "module", "deepseek-client")),
	}, nil
}

// StreamChat 前置系统提示并发起流式请求
func (c *DeepSeekClient) StreamChat(ctx context.Context, messages []domain.Message) (domain.ChatStream, error) {
	req := openai.ChatCompletionRequest{
		Model:     c.config.Model,
		MaxTokens: c.config.MaxTokens,
		Stream:    true,
		StreamOptions: &openai.StreamOptions{
			IncludeUsage: true,
		},
		Messages: make([]openai.ChatCompletionMessage, 0, len(messages)+1),
	}

	req.Messages = append(req.Messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleSystem,
		Content: SystemPrompt,
	})
	for _, m := range messages {
		req.Messages = append(req.Messages, openai.ChatCompletionMessage{
			Role:    m.Role,
			Content: m.Content,
		})
	}

	stream, err := c.client.CreateChatCompletionStream(ctx, req)
	if err != nil {
		c.logger.WithContext(ctx).Errorf("DeepSeek API error: %v", err)
		return nil, upstreamError(err)
	}

	return &deepSeekStream{stream: stream, logger: c.logger}, nil
}

// deepSeekStream 跳过无法解析的数据块，合并用量
type deepSeekStream struct {
	stream *openai.ChatCompletionStream
	logger *log.Helper
	usage  domain.Usage
}

// Recv 返回下一个内容增量；用量块返回 Usage，结束时返回 io.EOF
func (s *deepSeekStream) Recv() (domain.StreamDelta, error) {
	for {
		resp, err := s.stream.Recv()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return domain.StreamDelta{}, io.EOF
			}
			if isDecodeError(err) {
				s.logger.Debugf("skip malformed stream payload: %v", err)
				continue
			}
			return domain.StreamDelta{}, upstreamError(err)
		}

		var delta domain.StreamDelta
		if resp.Usage != nil {
			// 只覆盖非零值
			if resp.Usage.PromptTokens > 0 {
				s.usage.PromptTokens = resp.Usage.PromptTokens
			}
			if resp.Usage.CompletionTokens > 0 {
				s.usage.CompletionTokens = resp.Usage.CompletionTokens
			}
			usage := s.usage
			delta.Usage = &usage
		}
		if len(resp.Choices) > 0 {
			delta.Content = resp.Choices[0].Delta.Content
		}
		if delta.Content == "" && delta.Usage == nil {
			continue
		}
		return delta, nil
	}
}

// Close 关闭底层连接
func (s *deepSeekStream) Close() error {
	return s.stream.Close()
}

// isDecodeError 单个数据块 JSON 解析失败
func isDecodeError(err error) bool {
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	return errors.As(err, &syntaxErr) || errors.As(err, &typeErr)
}

// upstreamError 保留上游状态码，同时可以用 errors.Is(err, domain.ErrUpstream) 判断
func upstreamError(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	status := http.StatusBadGateway
	var apiErr *openai.APIError
	var reqErr *openai.RequestError
	switch {
	case errors.As(err, &apiErr):
		status = apiErr.HTTPStatusCode
	case errors.As(err, &reqErr):
		status = reqErr.HTTPStatusCode
	}

	return fmt.Errorf("%w: %w", domain.ErrUpstream, pkgerrors.NewUpstream(status, err.Error()))
}
