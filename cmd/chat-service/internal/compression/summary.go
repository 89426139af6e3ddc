package compression

import (
	"fmt"
	"strings"

	"contextrelay/cmd/chat-service/internal/domain"
)

// 摘要模板中的固定标记，评分时按这些标记判断结构是否完整
const (
	markerBlock    = "[COMPRESSED #"
	markerLink     = "COMPRESSED #"
	markerEssence  = "🎯"
	markerContext  = "🧩"
	markerGoal     = "Цель:"
	markerStatus   = "Статус:"
	markerData     = "📌 Данные: "
	markerProfile  = "🎭"
	markerDone     = "✅ "
	markerOpen     = "❌"
	markerEmotions = "Эмоции:"
)

const (
	maxDataValues  = 8
	maxLineLength  = 80
	maxFocusedLink = 120
)

// Signals 一批消息中提取出的全部信号
type Signals struct {
	Essence       string       `json:"essence"`
	Topic         string       `json:"topic"`
	Intent        Intent       `json:"intent"`
	Profile       Profile      `json:"profile"`
	Data          ConcreteData `json:"data"`
	Achievements  []string     `json:"achievements,omitempty"`
	OpenQuestions []string     `json:"openQuestions,omitempty"`
}

// Extract 提取一批消息的全部信号
func (a *Analyzer) Extract(batch []domain.ChatTurn) Signals {
	topic := a.ExtractMainTopic(batch)
	return Signals{
		Essence:       a.essence(batch, topic),
		Topic:         topic,
		Intent:        a.ExtractIntent(batch),
		Profile:       a.AnalyzeProfile(batch),
		Data:          CollectConcreteData(batch),
		Achievements:  a.ExtractAchievements(batch),
		OpenQuestions: ExtractOpenQuestions(batch),
	}
}

func (a *Analyzer) essence(batch []domain.ChatTurn, topic string) string {
	ph := a.lex.Phrases
	users := domain.FilterByRole(batch, domain.RoleUser)

	switch len(users) {
	case 0:
		return fmt.Sprintf(ph.EssenceNoUser, topic)
	case 1:
		return fmt.Sprintf(ph.EssenceSingle, truncate(users[0].Content, 100))
	}

	first := truncate(users[0].Content, 100)
	last := truncate(users[len(users)-1].Content, 100)

	var b strings.Builder
	fmt.Fprintf(&b, ph.EssenceStart, truncate(first, 60))
	fmt.Fprintf(&b, ph.EssenceTopic, topic)
	if last != first {
		fmt.Fprintf(&b, ph.EssenceFocus, truncate(last, 60))
	}
	return b.String()
}

// RenderSummary 按固定模板生成压缩块正文，空的可选行省略
func RenderSummary(s Signals, startIndex, blockNumber int) string {
	var b strings.Builder

	fmt.Fprintf(&b, "%s%d] Msg %d-%d\n\n", markerBlock, blockNumber, startIndex+1, startIndex+BatchSize)
	fmt.Fprintf(&b, "%s %s\n\n", markerEssence, s.Essence)

	fmt.Fprintf(&b, "%s %s %s | %s %s", markerContext, markerGoal, s.Intent.PrimaryGoal, markerStatus, s.Intent.CurrentStatus)
	if values := s.Data.Values(maxDataValues); len(values) > 0 {
		b.WriteString("\n" + markerData + strings.Join(values, ", "))
	}

	fmt.Fprintf(&b, "\n\n%s %s | %s", markerProfile, s.Profile.Expertise, s.Profile.EmotionalState)
	if len(s.Achievements) > 0 {
		b.WriteString("\n" + markerDone + truncate(s.Achievements[0], maxLineLength))
	}
	if len(s.OpenQuestions) > 0 {
		b.WriteString("\n" + markerOpen + " " + truncate(s.OpenQuestions[0], maxLineLength))
	}

	return b.String()
}

// renderFocused 标准模板 + 针对薄弱维度的补充行
func (a *Analyzer) renderFocused(s Signals, batch []domain.ChatTurn, startIndex, blockNumber int, eval Evaluation) string {
	ph := a.lex.Phrases
	var b strings.Builder
	b.WriteString(RenderSummary(s, startIndex, blockNumber))

	if eval.weakData() {
		if items := a.criticalData(batch).items(); len(items) > 0 {
			b.WriteString("\n" + ph.FocusedData + strings.Join(items, ", "))
		}
	}
	if eval.weakLogic() {
		if links := a.causalSentences(batch); len(links) > 0 {
			b.WriteString("\n" + ph.FocusedLinks + strings.Join(links, " | "))
		}
	}
	if eval.weakEmotion() {
		if words := a.emotionWords(batch); len(words) > 0 {
			b.WriteString("\n" + ph.FocusedEmotions + strings.Join(words, ", "))
		}
	}

	return b.String()
}

// causalSentences 原文中带因果连接词的句子
func (a *Analyzer) causalSentences(batch []domain.ChatTurn) []string {
	var out []string
	for _, t := range batch {
		for _, sentence := range sentenceSplit.Split(t.Content, -1) {
			lower := strings.ToLower(sentence)
			for _, c := range a.lex.Scoring.CausalConnectives {
				if strings.Contains(lower, c) {
					out = append(out, truncate(strings.TrimSpace(sentence), maxFocusedLink))
					break
				}
			}
			if len(out) == 3 {
				return out
			}
		}
	}
	return out
}

// emotionWords 原文中出现过的情绪词（按词库顺序）
func (a *Analyzer) emotionWords(batch []domain.ChatTurn) []string {
	var lowered []string
	for _, t := range batch {
		lowered = append(lowered, strings.ToLower(t.Content))
	}
	text := strings.Join(lowered, "\n")

	var out []string
	for _, w := range a.lex.Scoring.EmotionWords {
		if strings.Contains(text, w) {
			out = append(out, w)
		}
	}
	return out
}
