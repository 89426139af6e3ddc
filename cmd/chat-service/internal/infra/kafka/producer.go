package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/IBM/sarama"
	"github.com/go-kratos/kratos/v2/log"

	"contextrelay/cmd/chat-service/internal/compression"
	"contextrelay/cmd/chat-service/internal/domain"
	"contextrelay/cmd/chat-service/internal/metrics"
	"contextrelay/pkg/resilience"
)

// EventTypeCompressionCompleted 压缩完成事件类型
const EventTypeCompressionCompleted = "compression.completed"

// EventProducer Kafka事件生产者
type EventProducer struct {
	producer sarama.SyncProducer
	config   *ProducerConfig
	retry    resilience.RetryPolicy
	logger   *log.Helper
}

// ProducerConfig 生产者配置
type ProducerConfig struct {
	Brokers     []string
	Topic       string
	Compression string // none, gzip, snappy, lz4, zstd
	MaxRetries  int
	Timeout     time.Duration
}

// NewEventProducer 创建事件生产者
func NewEventProducer(config *ProducerConfig, logger log.Logger) (*EventProducer, error) {
	saramaConfig := sarama.NewConfig()
	saramaConfig.Producer.Return.Successes = true
	saramaConfig.Producer.RequiredAcks = sarama.WaitForAll // 等待所有副本确认
	saramaConfig.Producer.Retry.Max = config.MaxRetries
	saramaConfig.Producer.Timeout = config.Timeout
	saramaConfig.Producer.Compression = compressionCodec(config.Compression)

	producer, err := sarama.NewSyncProducer(config.Brokers, saramaConfig)
	if err != nil {
		return nil, fmt.Errorf("create producer: %w", err)
	}

	return NewEventProducerWithClient(producer, config, logger), nil
}

// NewEventProducerWithClient 使用已有的 SyncProducer
func NewEventProducerWithClient(producer sarama.SyncProducer, config *ProducerConfig, logger log.Logger) *EventProducer {
	policy := resilience.DefaultRetryPolicy()
	policy.MaxRetries = 2
	return &EventProducer{
		producer: producer,
		config:   config,
		retry:    policy,
		logger:   log.NewHelper(log.With(logger, "module", "kafka-producer")),
	}
}

// compressionCodec 压缩算法
func compressionCodec(name string) sarama.CompressionCodec {
	switch name {
	case "gzip":
		return sarama.CompressionGZIP
	case "snappy":
		return sarama.CompressionSnappy
	case "lz4":
		return sarama.CompressionLZ4
	case "zstd":
		return sarama.CompressionZSTD
	default:
		return sarama.CompressionNone
	}
}

// PublishEventWithKey 发布带key的事件（按会话分区，保证同一会话的块有序）
func (p *EventProducer) PublishEventWithKey(ctx context.Context, key string, event interface{}) error {
	eventBytes, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	msg := &sarama.ProducerMessage{
		Topic:     p.config.Topic,
		Key:       sarama.StringEncoder(key),
		Value:     sarama.ByteEncoder(eventBytes),
		Timestamp: time.Now(),
	}

	return resilience.Retry(ctx, p.retry, func() error {
		_, _, err := p.producer.SendMessage(msg)
		return err
	})
}

// PublishCompression 发布压缩完成事件，失败只记录日志
func (p *EventProducer) PublishCompression(ctx context.Context, sessionID string, r compression.Result) error {
	event := NewCompressionCompletedEvent(sessionID, r, time.Now())

	if err := p.PublishEventWithKey(ctx, sessionID, event); err != nil {
		metrics.RecordEvent("failed")
		p.logger.WithContext(ctx).Errorf("publish compression event: session=%s block=%d err=%v", sessionID, r.BlockNumber, err)
		return fmt.Errorf("send message: %w", err)
	}

	metrics.RecordEvent("success")
	return nil
}

// Close 关闭生产者
func (p *EventProducer) Close() error {
	if p.producer != nil {
		return p.producer.Close()
	}
	return nil
}

// CompressionCompletedEvent 压缩完成事件
type CompressionCompletedEvent struct {
	EventType        string                `json:"event_type"`
	SessionID        string                `json:"session_id"`
	BlockNumber      int                   `json:"block_number"`
	RangeStart       int                   `json:"range_start"`
	RangeEnd         int                   `json:"range_end"`
	OriginalTokens   int                   `json:"original_tokens"`
	CompressedTokens int                   `json:"compressed_tokens"`
	Grade            domain.Grade          `json:"grade"`
	Metrics          domain.QualityMetrics `json:"metrics"`
	Attempt          int                   `json:"attempt"`
	Autocorrected    bool                  `json:"autocorrected"`
	CreatedAt        time.Time             `json:"created_at"`
}

// NewCompressionCompletedEvent 由压缩结果构造事件
func NewCompressionCompletedEvent(sessionID string, r compression.Result, at time.Time) CompressionCompletedEvent {
	return CompressionCompletedEvent{
		EventType:        EventTypeCompressionCompleted,
		SessionID:        sessionID,
		BlockNumber:      r.BlockNumber,
		RangeStart:       r.Range.Start,
		RangeEnd:         r.Range.End,
		OriginalTokens:   r.OriginalTokens,
		CompressedTokens: r.CompressedTokens,
		Grade:            r.OverallGrade,
		Metrics:          r.QualityMetrics,
		Attempt:          r.Attempt,
		Autocorrected:    r.Autocorrected,
		CreatedAt:        at,
	}
}
