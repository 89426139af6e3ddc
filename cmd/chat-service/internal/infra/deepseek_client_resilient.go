package infra

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/sony/gobreaker"

	"contextrelay/cmd/chat-service/internal/domain"
	pkgerrors "contextrelay/pkg/errors"
)

// CircuitBreakerConfig 熔断器配置
type CircuitBreakerConfig struct {
	Name             string        // 熔断器名称
	MaxRequests      uint32        // 半开状态允许的最大请求数
	Interval         time.Duration // 统计窗口
	Timeout          time.Duration // 熔断后恢复时间
	FailureThreshold float64       // 失败率阈值（0.0-1.0）
	MinRequests      uint32        // 最小请求数（达到后才计算失败率）
}

// ResilientChatModel 带熔断的上游模型
// 流式响应无法整体放进 Execute，使用两段式熔断器：建立连接前 Allow，流结束时上报结果
type ResilientChatModel struct {
	base    domain.ChatModel
	breaker *gobreaker.TwoStepCircuitBreaker
	logger  *log.Helper
}

// NewResilientChatModel 创建带熔断的上游模型
func NewResilientChatModel(base domain.ChatModel, cbConfig *CircuitBreakerConfig, logger log.Logger) *ResilientChatModel {
	if cbConfig == nil {
		cbConfig = &CircuitBreakerConfig{
			Name:             "deepseek",
			MaxRequests:      3,
			Interval:         10 * time.Second,
			Timeout:          30 * time.Second,
			FailureThreshold: 0.6,
			MinRequests:      5,
		}
	}

	logHelper := log.NewHelper(log.With(logger, "module", "resilient-deepseek"))

	breaker := gobreaker.NewTwoStepCircuitBreaker(gobreaker.Settings{
		Name:        cbConfig.Name,
		MaxRequests: cbConfig.MaxRequests,
		Interval:    cbConfig.Interval,
		Timeout:     cbConfig.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < cbConfig.MinRequests {
				return false
			}

			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			shouldTrip := failureRatio >= cbConfig.FailureThreshold
			if shouldTrip {
				logHelper.Warnf("Circuit breaker tripping: requests=%d, failures=%d, ratio=%.2f",
					counts.Requests, counts.TotalFailures, failureRatio)
			}
			return shouldTrip
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logHelper.Infof("Circuit breaker state change: %s -> %s", from, to)
		},
	})

	return &ResilientChatModel{
		base:    base,
		breaker: breaker,
		logger:  logHelper,
	}
}

// StreamChat 经过熔断器发起流式请求，熔断打开时返回 ErrUpstream（503）
func (m *ResilientChatModel) StreamChat(ctx context.Context, messages []domain.Message) (domain.ChatStream, error) {
	done, err := m.breaker.Allow()
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			m.logger.WithContext(ctx).Warn("Circuit breaker is open for stream request")
			return nil, fmt.Errorf("%w: %w", domain.ErrUpstream, pkgerrors.NewUnavailable(err.Error()))
		}
		return nil, err
	}

	stream, err := m.base.StreamChat(ctx, messages)
	if err != nil {
		done(!countsAsFailure(err))
		return nil, err
	}

	return &guardedStream{ChatStream: stream, done: done}, nil
}

// State 熔断器当前状态
func (m *ResilientChatModel) State() gobreaker.State {
	return m.breaker.State()
}

// guardedStream 流结束（EOF、错误或关闭）时恰好上报一次结果
type guardedStream struct {
	domain.ChatStream
	done func(success bool)
	once sync.Once
}

func (s *guardedStream) Recv() (domain.StreamDelta, error) {
	delta, err := s.ChatStream.Recv()
	if err != nil {
		success := errors.Is(err, io.EOF) || !countsAsFailure(err)
		s.once.Do(func() { s.done(success) })
	}
	return delta, err
}

func (s *guardedStream) Close() error {
	// 调用方中途关闭（取消生成）不算上游失败
	s.once.Do(func() { s.done(true) })
	return s.ChatStream.Close()
}

// countsAsFailure 只有上游 5xx、429 和网络错误计入失败率
func countsAsFailure(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	status := pkgerrors.StatusOf(err, http.StatusBadGateway)
	return status >= http.StatusInternalServerError || status == http.StatusTooManyRequests
}
