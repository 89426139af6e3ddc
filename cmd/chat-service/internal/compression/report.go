package compression

import (
	"fmt"
	"strings"

	"contextrelay/cmd/chat-service/internal/domain"
)

// qualityTier 平均分档位对应的状态文案
type qualityTier struct {
	min     int
	emoji   string
	status  string
	comment string
}

var qualityTiers = []qualityTier{
	{95, "🏆", "Идеальное сжатие!", "Контекст полностью сохранён. Можно продолжать диалог без потерь."},
	{90, "🏆", "Отличная работа!", "Минимальные потери информации. Качество сжатия выше целевого."},
	{85, "✅", "Хорошее качество", "Отличная работа, минимальные потери. Система работает корректно."},
	{80, "✅", "Приемлемое качество", "Качество в норме, но есть пространство для улучшения."},
	{70, "⚠️", "Среднее качество", "Приемлемо, но есть пробелы. Рекомендуется доработка алгоритма."},
	{60, "⚠️", "Ниже среднего", "Заметные потери информации. Требуется улучшение."},
	{0, "❌", "КРИТИЧЕСКИЕ ПОТЕРИ!", "Качество неприемлемо низкое. Автокоррекция не помогла."},
}

func tierFor(score int) qualityTier {
	for _, t := range qualityTiers {
		if score >= t.min {
			return t
		}
	}
	return qualityTiers[len(qualityTiers)-1]
}

// ReportData 报告中用到的派生数值
type ReportData struct {
	AverageScore       int    `json:"averageScore"`
	CompressionPercent int    `json:"compressionPercent"`
	Efficiency         int    `json:"efficiency"`
	AverageBlockSize   int    `json:"averageBlockSize"`
	StatusEmoji        string `json:"statusEmoji"`
	StatusText         string `json:"statusText"`
	Comment            string `json:"comment"`
}

// Derive 计算报告数值
func Derive(stats domain.CompressionStats) ReportData {
	d := ReportData{AverageScore: round(stats.WeightedAverage())}
	if stats.OriginalTokens > 0 {
		d.CompressionPercent = round((1 - stats.CompressionRatio) * 100)
	}
	if stats.TotalCompressions > 0 {
		d.AverageBlockSize = round(float64(stats.CompressedTokens) / float64(stats.TotalCompressions))
	}
	d.Efficiency = round(float64(d.CompressionPercent*d.AverageScore) / 100)

	tier := tierFor(d.AverageScore)
	d.StatusEmoji, d.StatusText, d.Comment = tier.emoji, tier.status, tier.comment
	return d
}

// Report 四行统计摘要
func Report(stats domain.CompressionStats, totalMessages int) string {
	d := Derive(stats)
	lines := []string{
		fmt.Sprintf("📊 Компрессия v4.0: %d блоков, %d сообщений", stats.TotalCompressions, totalMessages),
		fmt.Sprintf("💾 Токены: %d→%d (-%d%%, %dt saved)",
			stats.OriginalTokens, stats.CompressedTokens, d.CompressionPercent, stats.SavedTokens),
		fmt.Sprintf("🎯 Качество: Grade %s | %s %s (%d%% | -%d%% потерь)",
			stats.OverallGrade, d.StatusEmoji, d.StatusText, d.AverageScore, stats.InformationLoss),
		metricsLine(stats.QualityMetrics),
	}
	return strings.Join(lines, "\n")
}

// DetailedReport 带进度条和点评的完整报告
func DetailedReport(stats domain.CompressionStats, totalMessages int) string {
	d := Derive(stats)

	var b strings.Builder
	b.WriteString(Report(stats, totalMessages))
	b.WriteString("\n\n")

	fmt.Fprintf(&b, "Было  %s %d\n", progressBar(100, 20), stats.OriginalTokens)
	fmt.Fprintf(&b, "Стало %s %d\n\n", progressBar(stats.CompressionRatio*100, 20), stats.CompressedTokens)

	bars := []struct {
		name  string
		value int
	}{
		{"Data   ", stats.DataQuality},
		{"Logic  ", stats.LogicQuality},
		{"Emotion", stats.EmotionalTone},
		{"Context", stats.ContextPreservation},
		{"Intent ", stats.IntentPreservation},
	}
	for _, bar := range bars {
		fmt.Fprintf(&b, "%s %s %d%%\n", bar.name, progressBar(float64(bar.value), 12), bar.value)
	}

	fmt.Fprintf(&b, "\n📦 Средний блок: %dt | ⚡ Эффективность: %d%%\n", d.AverageBlockSize, d.Efficiency)
	fmt.Fprintf(&b, "%s %s", d.StatusEmoji, d.Comment)

	return b.String()
}

func metricsLine(m domain.QualityMetrics) string {
	return fmt.Sprintf("📈 Метрики: Data %d%% | Logic %d%% | Emotion %d%% | Context %d%% | Intent %d%%",
		m.DataQuality, m.LogicQuality, m.EmotionalTone, m.ContextPreservation, m.IntentPreservation)
}

// progressBar filled = round(pct/100*width)，超出范围时截断
func progressBar(pct float64, width int) string {
	filled := round(pct / 100 * float64(width))
	filled = max(0, min(filled, width))
	return strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
}
