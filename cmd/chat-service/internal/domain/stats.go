package domain

// Grade 压缩质量等级
type Grade string

const (
	GradeAPlus  Grade = "A+"
	GradeA      Grade = "A"
	GradeAMinus Grade = "A-"
	GradeBPlus  Grade = "B+"
	GradeB      Grade = "B"
	GradeC      Grade = "C"
	GradeD      Grade = "D"
	GradeF      Grade = "F"
)

// ContextQuality 上下文质量档位
type ContextQuality string

const (
	ContextQualityHigh   ContextQuality = "HIGH"
	ContextQualityMedium ContextQuality = "MEDIUM"
	ContextQualityLow    ContextQuality = "LOW"
)

// QualityMetrics 单次压缩的五维质量评分
type QualityMetrics struct {
	DataQuality         int   `json:"dataQuality"`
	LogicQuality        int   `json:"logicQuality"`
	EmotionalTone       int   `json:"emotionalTone"`
	ContextPreservation int   `json:"contextPreservation"`
	IntentPreservation  int   `json:"intentPreservation"`
	OverallGrade        Grade `json:"overallGrade"`
	InformationLoss     int   `json:"informationLoss"`
}

// WeightedAverage 加权平均分
func (m QualityMetrics) WeightedAverage() float64 {
	return float64(m.DataQuality)*0.25 +
		float64(m.LogicQuality)*0.20 +
		float64(m.EmotionalTone)*0.15 +
		float64(m.ContextPreservation)*0.20 +
		float64(m.IntentPreservation)*0.20
}

// CompressionStats 会话级压缩统计（运行平均）
type CompressionStats struct {
	TotalCompressions int            `json:"totalCompressions"`
	OriginalTokens    int            `json:"originalTokens"`
	CompressedTokens  int            `json:"compressedTokens"`
	SavedTokens       int            `json:"savedTokens"`
	CompressionRatio  float64        `json:"compressionRatio"`
	ContextQuality    ContextQuality `json:"contextQuality"`
	QualityMetrics
}

// NewCompressionStats 会话开始时的中性统计
func NewCompressionStats() CompressionStats {
	return CompressionStats{
		ContextQuality: ContextQualityHigh,
		QualityMetrics: QualityMetrics{
			DataQuality:         100,
			LogicQuality:        100,
			EmotionalTone:       100,
			ContextPreservation: 100,
			IntentPreservation:  100,
			OverallGrade:        GradeAPlus,
		},
	}
}

// ChatStats Token 与费用统计
type ChatStats struct {
	InputTokens   int     `json:"inputTokens"`
	OutputTokens  int     `json:"outputTokens"`
	Cost          float64 `json:"cost"`
	TotalMessages int     `json:"totalMessages"`
}

// Usage 上游返回的 Token 用量
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
}
