package biz

import "fmt"

// Pricing 每 token 单价（美元）
type Pricing struct {
	InputPerToken  float64
	OutputPerToken float64
}

// DefaultPricing deepseek-chat 缓存未命中价格
func DefaultPricing() Pricing {
	return Pricing{
		InputPerToken:  0.000028,
		OutputPerToken: 0.00042,
	}
}

// Cost 计算一次交换的费用
func (p Pricing) Cost(inputTokens, outputTokens int) float64 {
	return float64(inputTokens)*p.InputPerToken + float64(outputTokens)*p.OutputPerToken
}

// FormatCost 格式化费用
func FormatCost(cost float64) string {
	return fmt.Sprintf("$%.6f", cost)
}
