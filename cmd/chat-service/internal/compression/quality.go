package compression

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"contextrelay/cmd/chat-service/internal/domain"
)

var (
	criticalNumber = regexp.MustCompile(`\b(\d+)\b`)
	criticalDate   = regexp.MustCompile(`(\d{1,2}[./-]\d{1,2}[./-]\d{2,4})`)
)

// 自检问题，通过 6 个及以上视为自检通过
const (
	checkContinue   = "1. Смогу ли я продолжить диалог БЕЗ переспросов?"
	checkData       = "2. Сохранены ли ВСЕ имена/числа/даты С КОНТЕКСТОМ?"
	checkWhy        = "3. Понятно ли ЗАЧЕМ пользователь спрашивал?"
	checkEmotion    = "4. Видна ли эмоциональная окраска?"
	checkConcrete   = "5. Могу ли я ответить \"О чём мы говорили?\" конкретно?"
	checkLinks      = "6. Есть ли связи с предыдущими блоками?"
	checkOpenTopics = "7. Зафиксированы ли все НЕЗАВЕРШЁННЫЕ темы?"
	checkProfile    = "8. Понятен ли уровень экспертизы и стиль?"

	selfCheckPassMark = 6
	weakLogicMark     = 70
)

// SelfCheck 单个自检问题的结果
type SelfCheck struct {
	Question string `json:"question"`
	Passed   bool   `json:"passed"`
}

// Evaluation 摘要相对原文的评分结果
type Evaluation struct {
	domain.QualityMetrics
	SelfChecks      []SelfCheck `json:"selfChecks"`
	SelfCheckPassed bool        `json:"selfCheckPassed"`
	WeakPoints      []string    `json:"weakPoints,omitempty"`
}

func (e Evaluation) failed(question string) bool {
	for _, c := range e.SelfChecks {
		if c.Question == question {
			return !c.Passed
		}
	}
	return false
}

func (e Evaluation) weakData() bool    { return e.failed(checkData) }
func (e Evaluation) weakEmotion() bool { return e.failed(checkEmotion) }
func (e Evaluation) weakLogic() bool   { return e.LogicQuality < weakLogicMark }

// GradeFor 加权平均分对应的等级
func GradeFor(avg float64) domain.Grade {
	switch {
	case avg >= 95:
		return domain.GradeAPlus
	case avg >= 90:
		return domain.GradeA
	case avg >= 85:
		return domain.GradeAMinus
	case avg >= 80:
		return domain.GradeBPlus
	case avg >= 70:
		return domain.GradeB
	case avg >= 60:
		return domain.GradeC
	case avg >= 50:
		return domain.GradeD
	default:
		return domain.GradeF
	}
}

// Evaluate 对比原文与摘要，计算五维评分、等级与自检结果
func (a *Analyzer) Evaluate(source []domain.ChatTurn, summary string) Evaluation {
	lower := strings.ToLower(summary)

	hasGoal := strings.Contains(summary, markerGoal) || strings.Contains(summary, markerContext)
	hasStatus := strings.Contains(summary, markerStatus)
	hasEssence := strings.Contains(summary, markerEssence)
	hasLinks := strings.Contains(summary, markerLink) || strings.Contains(summary, markerBlock)
	hasProfile := strings.Contains(summary, markerProfile)
	hasOpen := strings.Contains(summary, markerOpen)

	m := domain.QualityMetrics{
		DataQuality:         a.dataQuality(source, summary, lower),
		LogicQuality:        a.logicQuality(source, lower, hasGoal, hasStatus),
		EmotionalTone:       a.emotionalTone(source, summary, lower),
		ContextPreservation: pick(hasOpen, 20, 15) + pick(hasLinks, 30, 25) + pick(hasProfile, 25, 20) + pick(hasGoal, 25, 20),
		IntentPreservation:  pick(hasGoal, 30, 20) + pick(hasEssence, 20, 15) + pick(hasStatus, 30, 20) + pick(hasEssence, 20, 15),
	}
	avg := m.WeightedAverage()
	m.OverallGrade = GradeFor(avg)
	m.InformationLoss = max(0, round(100-avg))

	checks := []SelfCheck{
		{checkContinue, m.IntentPreservation >= 70 && m.ContextPreservation >= 60},
		{checkData, m.DataQuality >= 80},
		{checkWhy, hasGoal || hasStatus},
		{checkEmotion, m.EmotionalTone >= 70},
		{checkConcrete, hasEssence && !strings.Contains(summary, a.lex.Phrases.GenericEssence)},
		{checkLinks, hasLinks},
		{checkOpenTopics, true},
		{checkProfile, hasProfile},
	}

	e := Evaluation{QualityMetrics: m, SelfChecks: checks}
	passed := 0
	for _, c := range checks {
		if c.Passed {
			passed++
			continue
		}
		e.WeakPoints = append(e.WeakPoints, c.Question)
	}
	e.SelfCheckPassed = passed >= selfCheckPassMark

	return e
}

func (a *Analyzer) dataQuality(source []domain.ChatTurn, summary, lower string) int {
	cd := a.criticalData(source)
	total := len(cd.names) + len(cd.numbers) + len(cd.dates) + len(cd.locations)
	if total == 0 {
		return 95
	}

	kept := 0
	for _, v := range cd.names {
		if strings.Contains(lower, strings.ToLower(v)) {
			kept++
		}
	}
	for _, v := range cd.numbers {
		if strings.Contains(summary, v) {
			kept++
		}
	}
	for _, v := range cd.dates {
		if strings.Contains(summary, v) {
			kept++
		}
	}
	for _, v := range cd.locations {
		if strings.Contains(lower, strings.ToLower(v)) {
			kept++
		}
	}
	return round(float64(kept) / float64(total) * 100)
}

func (a *Analyzer) logicQuality(source []domain.ChatTurn, lower string, hasGoal, hasStatus bool) int {
	connectives := a.lex.Scoring.CausalConnectives

	score := 85
	if orig := countKeywordsPerTurn(source, connectives); orig > 0 {
		score = min(round(float64(countKeywords(lower, connectives))/float64(orig)*100), 100)
	}
	if hasGoal {
		score = min(score+10, 100)
	}
	if hasStatus {
		score = min(score+5, 100)
	}
	return score
}

func (a *Analyzer) emotionalTone(source []domain.ChatTurn, summary, lower string) int {
	words := a.lex.Scoring.EmotionWords

	if orig := countKeywordsPerTurn(source, words); orig > 0 {
		return min(round(float64(countKeywords(lower, words))/float64(orig)*100), 100)
	}

	if strings.Contains(summary, markerEmotions) {
		return 90
	}
	for _, label := range a.lex.Scoring.EmotionLabels {
		if strings.Contains(summary, label) {
			return 90
		}
	}
	return 85
}

// countKeywordsPerTurn 每条消息中出现的关键词个数之和
func countKeywordsPerTurn(turns []domain.ChatTurn, keywords []string) int {
	n := 0
	for _, t := range turns {
		n += countKeywords(strings.ToLower(t.Content), keywords)
	}
	return n
}

func countKeywords(text string, keywords []string) int {
	n := 0
	for _, kw := range keywords {
		if strings.Contains(text, kw) {
			n++
		}
	}
	return n
}

// orderedSet 保持插入顺序的字符串集合
type orderedSet struct {
	seen   map[string]struct{}
	values []string
}

func (s *orderedSet) add(v string) {
	if s.seen == nil {
		s.seen = make(map[string]struct{})
	}
	if _, ok := s.seen[v]; ok {
		return
	}
	s.seen[v] = struct{}{}
	s.values = append(s.values, v)
}

// criticalSet 评分用的关键数据：人名、数字、日期、地点
type criticalSet struct {
	names, numbers, dates, locations []string
}

func (c criticalSet) items() []string {
	out := make([]string, 0, len(c.names)+len(c.numbers)+len(c.dates)+len(c.locations))
	out = append(out, c.names...)
	out = append(out, c.numbers...)
	out = append(out, c.dates...)
	return append(out, c.locations...)
}

func (a *Analyzer) criticalData(source []domain.ChatTurn) criticalSet {
	var names, numbers, dates, locations orderedSet

	for _, t := range source {
		content := t.Content
		lower := strings.ToLower(content)

		for _, re := range a.nameMarkers {
			for _, m := range re.FindAllStringSubmatch(content, -1) {
				if v := m[len(m)-1]; v != "" {
					names.add(v)
				}
			}
		}

		for _, m := range criticalNumber.FindAllStringSubmatch(content, -1) {
			num := m[1]
			n, err := strconv.Atoi(num)
			if err != nil || n >= 100 {
				continue
			}
			// 跳过年份、端口等技术数字
			if strings.Contains(lower, num+"0") || strings.Contains(lower, "port "+num) {
				continue
			}
			numbers.add(num)
		}

		for _, m := range criticalDate.FindAllStringSubmatch(content, -1) {
			dates.add(m[1])
		}

		for _, re := range a.locationMarkers {
			for _, m := range re.FindAllStringSubmatch(content, -1) {
				loc := m[len(m)-1]
				if utf8.RuneCountInString(loc) <= 2 {
					continue
				}
				if _, technical := a.technicalTerms[loc]; technical {
					continue
				}
				locations.add(loc)
			}
		}
	}

	return criticalSet{
		names:     names.values,
		numbers:   numbers.values,
		dates:     dates.values,
		locations: locations.values,
	}
}

func pick(ok bool, yes, no int) int {
	if ok {
		return yes
	}
	return no
}

func round(x float64) int {
	return int(math.Round(x))
}
