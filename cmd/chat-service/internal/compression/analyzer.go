package compression

import (
	"fmt"
	"regexp"
	"strings"
)

// compiledRule 编译后的规则
type compiledRule struct {
	pattern      *regexp.Regexp
	capture      *regexp.Regexp
	template     string
	result       string
	minUserTurns int
}

// match 返回规则输出；pattern 与人数谓词任一命中即视为命中
func (r compiledRule) match(text string, userTurns int) (string, bool) {
	hit := false
	if r.pattern != nil && r.pattern.MatchString(text) {
		hit = true
	}
	if r.minUserTurns > 0 && userTurns >= r.minUserTurns {
		hit = true
	}
	if !hit {
		return "", false
	}

	if r.capture != nil && r.template != "" {
		if m := r.capture.FindStringSubmatch(text); len(m) > 1 {
			if v := strings.TrimSpace(m[len(m)-1]); v != "" {
				return fmt.Sprintf(r.template, v), true
			}
		}
	}
	return r.result, true
}

// ruleTable 有序规则表
type ruleTable struct {
	rules    []compiledRule
	fallback string
}

// first 首个命中规则的结果，都未命中时返回兜底值
func (t ruleTable) first(text string, userTurns int) string {
	for _, r := range t.rules {
		if out, ok := r.match(text, userTurns); ok {
			return out
		}
	}
	return t.fallback
}

// all 收集所有命中规则的结果
func (t ruleTable) all(text string, userTurns int) []string {
	var out []string
	for _, r := range t.rules {
		if v, ok := r.match(text, userTurns); ok {
			out = append(out, v)
		}
	}
	return out
}

type blockerGroup struct {
	pattern *regexp.Regexp
	result  string
	labels  ruleTable
}

// Analyzer 基于词库的文本分析器，编译后可并发复用
type Analyzer struct {
	lex *Lexicon

	stopwords    map[string]struct{}
	achievements *regexp.Regexp

	goal       ruleTable
	motivation ruleTable
	status     ruleTable
	blockers   []blockerGroup

	beginner, expert       *regexp.Regexp
	practical, theoretical *regexp.Regexp
	polite                 *regexp.Regexp
	positive, negative     *regexp.Regexp
	curious                *regexp.Regexp
	triggers               ruleTable

	nameMarkers     []*regexp.Regexp
	locationMarkers []*regexp.Regexp
	technicalTerms  map[string]struct{}
}

// NewAnalyzer 编译词库
func NewAnalyzer(lex *Lexicon) (*Analyzer, error) {
	if lex == nil {
		lex = DefaultLexicon()
	}

	a := &Analyzer{
		lex:            lex,
		stopwords:      make(map[string]struct{}, len(lex.Stopwords)),
		technicalTerms: make(map[string]struct{}, len(lex.Scoring.TechnicalTerms)),
	}
	for _, w := range lex.Stopwords {
		a.stopwords[strings.ToLower(w)] = struct{}{}
	}
	for _, t := range lex.Scoring.TechnicalTerms {
		a.technicalTerms[t] = struct{}{}
	}

	c := &compiler{}

	a.achievements = c.regexp("achievement_markers", lex.AchievementMarkers)
	a.goal = c.table("intent.goal", lex.Intent.Goal)
	a.motivation = c.table("intent.motivation", lex.Intent.Motivation)
	a.status = c.table("intent.status", lex.Intent.Status)
	for i, g := range lex.Intent.Blockers {
		name := fmt.Sprintf("intent.blockers[%d]", i)
		a.blockers = append(a.blockers, blockerGroup{
			pattern: c.regexp(name, g.Pattern),
			result:  g.Result,
			labels:  c.table(name+".labels", RuleTable{Rules: g.Labels}),
		})
	}

	p := lex.Profile
	a.beginner = c.regexp("profile.beginner_signals", p.BeginnerSignals)
	a.expert = c.regexp("profile.expert_signals", p.ExpertSignals)
	a.practical = c.regexp("profile.practical_signals", p.PracticalSignals)
	a.theoretical = c.regexp("profile.theoretical_signals", p.TheoreticalSignals)
	a.polite = c.regexp("profile.polite_words", p.PoliteWords)
	a.positive = c.regexp("profile.positive_signals", p.PositiveSignals)
	a.negative = c.regexp("profile.negative_signals", p.NegativeSignals)
	a.curious = c.regexp("profile.curious_signals", p.CuriousSignals)
	a.triggers = c.table("profile.triggers", RuleTable{Rules: p.Triggers})

	for i, m := range lex.Scoring.NameMarkers {
		a.nameMarkers = append(a.nameMarkers, c.regexp(fmt.Sprintf("scoring.name_markers[%d]", i), m))
	}
	for i, m := range lex.Scoring.LocationMarkers {
		a.locationMarkers = append(a.locationMarkers, c.regexp(fmt.Sprintf("scoring.location_markers[%d]", i), m))
	}

	if c.err != nil {
		return nil, c.err
	}
	return a, nil
}

// compiler 收集首个编译错误，避免每一步都判断
type compiler struct {
	err error
}

func (c *compiler) regexp(name, expr string) *regexp.Regexp {
	if expr == "" || c.err != nil {
		return nil
	}
	re, err := regexp.Compile(expr)
	if err != nil {
		c.err = fmt.Errorf("compile lexicon %s: %w", name, err)
		return nil
	}
	return re
}

func (c *compiler) table(name string, t RuleTable) ruleTable {
	out := ruleTable{fallback: t.Default}
	for i, r := range t.Rules {
		field := fmt.Sprintf("%s[%d]", name, i)
		out.rules = append(out.rules, compiledRule{
			pattern:      c.regexp(field, r.Pattern),
			capture:      c.regexp(field+".capture", r.Capture),
			template:     r.Template,
			result:       r.Result,
			minUserTurns: r.MinUserTurns,
		})
	}
	return out
}

// countMatches 统计不重叠的命中次数，nil 表示未配置
func countMatches(re *regexp.Regexp, text string) int {
	if re == nil {
		return 0
	}
	return len(re.FindAllStringIndex(text, -1))
}

func matches(re *regexp.Regexp, text string) bool {
	return re != nil && re.MatchString(text)
}
