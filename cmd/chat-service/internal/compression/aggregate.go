package compression

import "contextrelay/cmd/chat-service/internal/domain"

// Aggregate 把一次压缩结果并入会话统计，各项指标取运行平均
func Aggregate(prev domain.CompressionStats, r Result) domain.CompressionStats {
	n := prev.TotalCompressions
	avg := func(old, cur int) int {
		return round(float64(old*n+cur) / float64(n+1))
	}

	next := domain.CompressionStats{
		TotalCompressions: n + 1,
		OriginalTokens:    prev.OriginalTokens + r.OriginalTokens,
		CompressedTokens:  prev.CompressedTokens + r.CompressedTokens,
		QualityMetrics: domain.QualityMetrics{
			DataQuality:         avg(prev.DataQuality, r.DataQuality),
			LogicQuality:        avg(prev.LogicQuality, r.LogicQuality),
			EmotionalTone:       avg(prev.EmotionalTone, r.EmotionalTone),
			ContextPreservation: avg(prev.ContextPreservation, r.ContextPreservation),
			IntentPreservation:  avg(prev.IntentPreservation, r.IntentPreservation),
			InformationLoss:     avg(prev.InformationLoss, r.InformationLoss),
			OverallGrade:        r.OverallGrade,
		},
	}

	next.SavedTokens = next.OriginalTokens - next.CompressedTokens
	if next.OriginalTokens > 0 {
		next.CompressionRatio = float64(next.CompressedTokens) / float64(next.OriginalTokens)
	}
	next.ContextQuality = EvaluateContextQuality(next.QualityMetrics)

	return next
}

// EvaluateContextQuality 按加权平均分给出上下文质量档位
func EvaluateContextQuality(m domain.QualityMetrics) domain.ContextQuality {
	switch avg := m.WeightedAverage(); {
	case avg >= 80:
		return domain.ContextQualityHigh
	case avg >= 60:
		return domain.ContextQualityMedium
	default:
		return domain.ContextQualityLow
	}
}
