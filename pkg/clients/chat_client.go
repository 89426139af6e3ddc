package clients

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sony/gobreaker"

	"contextrelay/pkg/resilience"
)

// ChatClientConfig chat-service 客户端配置
type ChatClientConfig struct {
	BaseURL string
	// Timeout 普通请求超时，流式请求只受 ctx 控制
	Timeout    time.Duration
	MaxRetries int
}

// ChatClient chat-service HTTP 客户端
type ChatClient struct {
	baseURL        string
	httpClient     *http.Client
	streamClient   *http.Client
	circuitBreaker *gobreaker.CircuitBreaker
	retry          resilience.RetryPolicy
}

// NewChatClient 创建客户端
func NewChatClient(config ChatClientConfig) *ChatClient {
	if config.Timeout == 0 {
		config.Timeout = 30 * time.Second
	}
	if config.MaxRetries == 0 {
		config.MaxRetries = 2
	}

	policy := resilience.DefaultRetryPolicy()
	policy.MaxRetries = config.MaxRetries

	return &ChatClient{
		baseURL:      strings.TrimRight(config.BaseURL, "/"),
		httpClient:   &http.Client{Timeout: config.Timeout},
		streamClient: &http.Client{},
		circuitBreaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        "chat-service",
			MaxRequests: 3,                // 半开状态下最大请求数
			Interval:    10 * time.Second, // 统计周期
			Timeout:     30 * time.Second, // 熔断器开启后等待时间
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
				return counts.Requests >= 5 && failureRatio >= 0.6
			},
			// 4xx 是调用方的问题，不计入失败
			IsSuccessful: func(err error) bool {
				var apiErr *APIError
				return err == nil || (errors.As(err, &apiErr) && apiErr.Status < 500)
			},
		}),
		retry: policy,
	}
}

// APIError 服务端返回的错误
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("chat-service: status %d: %s", e.Status, e.Message)
}

// Turn 会话中的一条消息
type Turn struct {
	ID           string    `json:"id"`
	Role         string    `json:"role"`
	Content      string    `json:"content"`
	Timestamp    time.Time `json:"timestamp"`
	IsCompressed bool      `json:"isCompressed,omitempty"`
}

// ChatStats token 与费用统计
type ChatStats struct {
	InputTokens   int     `json:"inputTokens"`
	OutputTokens  int     `json:"outputTokens"`
	Cost          float64 `json:"cost"`
	TotalMessages int     `json:"totalMessages"`
}

// Session 会话
type Session struct {
	ID        string    `json:"id"`
	Turns     []Turn    `json:"turns"`
	ChatStats ChatStats `json:"chatStats"`
}

// StatsReport 会话统计报告
type StatsReport struct {
	SessionID        string    `json:"sessionId"`
	Chat             ChatStats `json:"chat"`
	FormattedCost    string    `json:"formattedCost"`
	AverageTokens    int       `json:"averageTokens"`
	TotalMessages    int       `json:"totalMessages"`
	CompressedBlocks int       `json:"compressedBlocks"`
	Report           string    `json:"report"`
	DetailedReport   string    `json:"detailedReport"`
}

// Usage 上游 token 用量
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
}

// FrameStats 完成帧附带的统计
type FrameStats struct {
	Chat          ChatStats `json:"chat"`
	FormattedCost string    `json:"formattedCost"`
	TotalMessages int       `json:"totalMessages"`
}

// CompressionInfo 完成帧里的压缩结果摘要
type CompressionInfo struct {
	BlockNumber      int    `json:"blockNumber"`
	OriginalTokens   int    `json:"originalTokens"`
	CompressedTokens int    `json:"compressedTokens"`
	OverallGrade     string `json:"overallGrade"`
	Attempt          int    `json:"attemptNumber"`
}

// Frame 一个 SSE 数据帧
type Frame struct {
	Content      string            `json:"content,omitempty"`
	Done         bool              `json:"done,omitempty"`
	Usage        *Usage            `json:"usage,omitempty"`
	Compressions []CompressionInfo `json:"compressions,omitempty"`
	Stats        *FrameStats       `json:"stats,omitempty"`
	Error        string            `json:"error,omitempty"`
}

// Message 无状态转发的消息
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// envelope 服务端统一响应
type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	// Error 转发接口的错误格式
	Error string `json:"error"`
}

// CreateSession 创建会话
func (c *ChatClient) CreateSession(ctx context.Context) (*Session, error) {
	var s Session
	if err := c.call(ctx, http.MethodPost, "/api/v1/sessions", &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// GetSession 获取会话
func (c *ChatClient) GetSession(ctx context.Context, id string) (*Session, error) {
	var s Session
	if err := c.callWithRetry(ctx, "/api/v1/sessions/"+id, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// ResetSession 清空会话
func (c *ChatClient) ResetSession(ctx context.Context, id string) (*Session, error) {
	var s Session
	if err := c.call(ctx, http.MethodDelete, "/api/v1/sessions/"+id, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// GetStats 获取统计报告
func (c *ChatClient) GetStats(ctx context.Context, id string) (*StatsReport, error) {
	var r StatsReport
	if err := c.callWithRetry(ctx, "/api/v1/sessions/"+id+"/stats", &r); err != nil {
		return nil, err
	}
	return &r, nil
}

// SendMessage 发送消息并逐帧回调，ctx 取消即停止生成
func (c *ChatClient) SendMessage(ctx context.Context, sessionID, content string, onFrame func(Frame) error) error {
	return c.stream(ctx, "/api/v1/sessions/"+sessionID+"/messages", map[string]string{"content": content}, onFrame)
}

// Relay 无状态转发
func (c *ChatClient) Relay(ctx context.Context, messages []Message, onFrame func(Frame) error) error {
	return c.stream(ctx, "/api/v1/chat/stream", map[string]interface{}{"messages": messages}, onFrame)
}

// callWithRetry 只读请求，失败时重试
func (c *ChatClient) callWithRetry(ctx context.Context, path string, result interface{}) error {
	return resilience.Retry(ctx, c.retry, func() error {
		err := c.call(ctx, http.MethodGet, path, result)
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.Status < 500 {
			return resilience.Permanent(err)
		}
		return err
	})
}

// call 经熔断器发送 JSON 请求
func (c *ChatClient) call(ctx context.Context, method, path string, result interface{}) error {
	_, err := c.circuitBreaker.Execute(func() (interface{}, error) {
		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, nil)
		if err != nil {
			return nil, fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("Accept", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, fmt.Errorf("do request: %w", err)
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("read response: %w", err)
		}

		var env envelope
		if err := json.Unmarshal(body, &env); err != nil {
			return nil, fmt.Errorf("unmarshal response: %w", err)
		}
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return nil, apiError(resp.StatusCode, env)
		}
		if result != nil && len(env.Data) > 0 {
			if err := json.Unmarshal(env.Data, result); err != nil {
				return nil, fmt.Errorf("unmarshal data: %w", err)
			}
		}
		return nil, nil
	})
	return err
}

// stream 发送请求并读取 SSE 帧
func (c *ChatClient) stream(ctx context.Context, path string, payload interface{}, onFrame func(Frame) error) error {
	reqBody, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(reqBody))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")

	resp, err := c.streamClient.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var env envelope
		body, _ := io.ReadAll(resp.Body)
		_ = json.Unmarshal(body, &env)
		return apiError(resp.StatusCode, env)
	}

	return ReadFrames(resp.Body, onFrame)
}

func apiError(status int, env envelope) *APIError {
	msg := env.Error
	if msg == "" {
		msg = env.Message
	}
	if msg == "" {
		msg = http.StatusText(status)
	}
	return &APIError{Status: status, Message: msg}
}

// ReadFrames 逐行解析 SSE，跳过无法解析的帧和 [DONE] 标记
func ReadFrames(r io.Reader, onFrame func(Frame) error) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		payload := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if payload == "" || payload == "[DONE]" {
			continue
		}

		var f Frame
		if err := json.Unmarshal([]byte(payload), &f); err != nil {
			continue
		}
		if err := onFrame(f); err != nil {
			return err
		}
	}
	return scanner.Err()
}
