package compression

import (
	"strings"

	"contextrelay/cmd/chat-service/internal/domain"
)

// Intent 用户意图：目标、动机、当前状态、阻碍
type Intent struct {
	PrimaryGoal   string `json:"primaryGoal"`
	Motivation    string `json:"motivation"`
	CurrentStatus string `json:"currentStatus"`
	Blockers      string `json:"blockers"`
}

// ExtractIntent 在用户消息（小写、空格拼接）上依次匹配各规则表
func (a *Analyzer) ExtractIntent(turns []domain.ChatTurn) Intent {
	users := domain.FilterByRole(turns, domain.RoleUser)
	text := userText(users)

	return Intent{
		PrimaryGoal:   a.goal.first(text, len(users)),
		Motivation:    a.motivation.first(text, len(users)),
		CurrentStatus: a.status.first(text, len(users)),
		Blockers:      a.extractBlockers(text),
	}
}

func (a *Analyzer) extractBlockers(text string) string {
	for _, g := range a.blockers {
		if !matches(g.pattern, text) {
			continue
		}
		if len(g.labels.rules) == 0 {
			return g.result
		}
		if labels := g.labels.all(text, 0); len(labels) > 0 {
			return strings.Join(labels, ", ")
		}
		return g.result
	}
	return a.lex.Intent.BlockersDefault
}

func userText(users []domain.ChatTurn) string {
	parts := make([]string, 0, len(users))
	for _, u := range users {
		parts = append(parts, strings.ToLower(u.Content))
	}
	return strings.Join(parts, " ")
}
