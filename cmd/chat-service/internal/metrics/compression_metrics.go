package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CompressionsTotal 按等级统计的压缩次数
	CompressionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chat_compressions_total",
		Help: "Total number of compressed blocks by grade",
	}, []string{"grade"})

	// CompressionRetries 首次评分为 F 后的重新生成次数
	CompressionRetries = promauto.NewCounter(prometheus.CounterOpts{
		Name: "chat_compression_retries_total",
		Help: "Total number of focused regenerations after an F grade",
	})

	// TokensSaved 压缩节省的 token 数
	TokensSaved = promauto.NewCounter(prometheus.CounterOpts{
		Name: "chat_compression_tokens_saved_total",
		Help: "Estimated tokens removed from history by compression",
	})

	// CompressionQuality 各维度质量分布
	CompressionQuality = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "chat_compression_quality_score",
		Help:    "Compression quality score per dimension",
		Buckets: []float64{50, 60, 70, 80, 85, 90, 95, 100},
	}, []string{"dimension"})

	// UpstreamDuration 上游流式响应耗时
	UpstreamDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "chat_upstream_stream_duration_seconds",
		Help:    "Duration of upstream streaming completions",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
	}, []string{"status"})

	// TokenUsage 上游 token 用量
	TokenUsage = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chat_token_usage_total",
		Help: "Total upstream token usage",
	}, []string{"type"}) // type: prompt/completion

	// ChatCost 累计费用（美元）
	ChatCost = promauto.NewCounter(prometheus.CounterOpts{
		Name: "chat_cost_dollars_total",
		Help: "Total upstream cost in dollars",
	})

	// SessionCacheResults 会话快照缓存命中情况
	SessionCacheResults = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chat_session_cache_total",
		Help: "Session snapshot cache lookups",
	}, []string{"result"}) // result: hit/miss/error

	// EventsPublished 压缩事件发布结果
	EventsPublished = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chat_events_published_total",
		Help: "Compression events published to Kafka",
	}, []string{"status"})
)

// RecordCompression 记录一次压缩
func RecordCompression(grade string, attempt, saved int, scores map[string]int) {
	CompressionsTotal.WithLabelValues(grade).Inc()
	if attempt > 1 {
		CompressionRetries.Inc()
	}
	if saved > 0 {
		TokensSaved.Add(float64(saved))
	}
	for dim, score := range scores {
		CompressionQuality.WithLabelValues(dim).Observe(float64(score))
	}
}

// RecordUpstream 记录一次上游调用
func RecordUpstream(status string, d time.Duration) {
	UpstreamDuration.WithLabelValues(status).Observe(d.Seconds())
}

// RecordUsage 记录 token 用量与费用
func RecordUsage(prompt, completion int, cost float64) {
	TokenUsage.WithLabelValues("prompt").Add(float64(prompt))
	TokenUsage.WithLabelValues("completion").Add(float64(completion))
	if cost > 0 {
		ChatCost.Add(cost)
	}
}

// RecordCacheResult 记录缓存查询结果
func RecordCacheResult(result string) {
	SessionCacheResults.WithLabelValues(result).Inc()
}

// RecordEvent 记录事件发布结果
func RecordEvent(status string) {
	EventsPublished.WithLabelValues(status).Inc()
}
