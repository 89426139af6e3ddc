package compression

import (
	"strings"
	"unicode/utf8"

	"contextrelay/cmd/chat-service/internal/domain"
)

// Profile 用户画像：专业程度、思维方式、沟通风格、情绪、禁忌
type Profile struct {
	Expertise      string   `json:"expertise"`
	ThinkingStyle  string   `json:"thinkingStyle"`
	Communication  string   `json:"communication"`
	EmotionalState string   `json:"emotionalState"`
	Triggers       []string `json:"triggers,omitempty"`
}

// AnalyzeProfile 根据用户消息中的信号计数推断画像
func (a *Analyzer) AnalyzeProfile(turns []domain.ChatTurn) Profile {
	labels := a.lex.Profile.Labels
	users := domain.FilterByRole(turns, domain.RoleUser)
	text := userText(users)

	p := Profile{
		Expertise:      labels.ExpertiseDefault,
		ThinkingStyle:  labels.ThinkingDefault,
		Communication:  a.communication(users, text),
		EmotionalState: labels.EmotionDefault,
	}

	beginner := countMatches(a.beginner, text)
	expert := countMatches(a.expert, text)
	switch {
	case beginner > expert+2:
		p.Expertise = labels.ExpertiseBeginner
	case expert > beginner+2:
		p.Expertise = labels.ExpertiseSenior
	case beginner == 0 && expert > 0:
		p.Expertise = labels.ExpertiseMiddle
	}

	practical := countMatches(a.practical, text)
	theoretical := countMatches(a.theoretical, text)
	switch {
	case practical > theoretical*2:
		p.ThinkingStyle = labels.ThinkingPractical
	case theoretical > practical*2:
		p.ThinkingStyle = labels.ThinkingTheoretical
	}

	positive := countMatches(a.positive, text)
	negative := countMatches(a.negative, text)
	curious := countMatches(a.curious, text)
	switch {
	case positive > negative+1:
		p.EmotionalState = labels.EmotionPositive
	case negative > positive+1:
		p.EmotionalState = labels.EmotionNegative
	case curious > 2:
		p.EmotionalState = labels.EmotionCurious
	}

	p.Triggers = a.triggers.all(text, len(users))
	if negative > a.lex.Profile.NegativeThreshold {
		p.Triggers = append(p.Triggers, labels.NegativeTrigger)
	}

	return p
}

func (a *Analyzer) communication(users []domain.ChatTurn, text string) string {
	labels := a.lex.Profile.Labels
	if len(users) == 0 {
		return labels.CommunicationDefault
	}

	total := 0
	direct := false
	for _, u := range users {
		n := utf8.RuneCountInString(u.Content)
		total += n
		if n < 20 && !strings.Contains(u.Content, "?") {
			direct = true
		}
	}
	avg := float64(total) / float64(len(users))

	style := labels.CommunicationDefault
	switch {
	case avg > 100:
		style = labels.CommunicationVerbose
	case avg < 30:
		style = labels.CommunicationBrief
	}
	if matches(a.polite, text) {
		style += labels.PoliteSuffix
	}
	if direct {
		style += labels.DirectSuffix
	}
	return style
}
