package compression

import (
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"

	"contextrelay/cmd/chat-service/internal/domain"
)

const (
	contextWindow = 30

	maxNames   = 5
	maxNumbers = 5
	maxTerms   = 7
	maxDates   = 3
)

var (
	numberPattern = regexp.MustCompile(`\b(\d+[.,]?\d*)\b`)
	datePattern   = regexp.MustCompile(`\b(\d{1,2}[./-]\d{1,2}[./-]\d{2,4}|\d{4}[./-]\d{1,2}[./-]\d{1,2})\b`)
	wordPattern   = regexp.MustCompile(`[\p{L}\p{N}_]+`)
	namePattern   = regexp.MustCompile(`^[A-ZА-ЯЁ][a-zа-яёA-ZА-ЯЁ]+$`)
	termPattern   = regexp.MustCompile(`^(?:[A-ZА-ЯЁ]{2,}|[A-Z][a-z]+[A-Z][a-zA-Z]*)$`)
	sentenceEnd   = regexp.MustCompile(`[.!?]\s*$`)
	sentenceSplit = regexp.MustCompile(`[.!]\s+`)
)

// DataItem 提取出的具体数据及其上下文
type DataItem struct {
	Value   string `json:"value"`
	Context string `json:"context"`
}

// ConcreteData 一批消息中的具体数据
type ConcreteData struct {
	Names   []DataItem `json:"names"`
	Numbers []DataItem `json:"numbers"`
	Dates   []DataItem `json:"dates"`
	Terms   []DataItem `json:"terms"`
}

// Empty 是否没有任何数据
func (d ConcreteData) Empty() bool {
	return len(d.Names) == 0 && len(d.Numbers) == 0 && len(d.Dates) == 0 && len(d.Terms) == 0
}

// Values 按 人名、数字、日期、术语 的顺序返回前 limit 个值
func (d ConcreteData) Values(limit int) []string {
	var out []string
	for _, group := range [][]DataItem{d.Names, d.Numbers, d.Dates, d.Terms} {
		for _, item := range group {
			if len(out) == limit {
				return out
			}
			out = append(out, item.Value)
		}
	}
	return out
}

// ExtractConcreteData 从单段文本中提取数字、日期、人名与术语（未去重）
func ExtractConcreteData(text string) ConcreteData {
	var d ConcreteData

	for _, m := range numberPattern.FindAllStringSubmatchIndex(text, -1) {
		d.Numbers = append(d.Numbers, itemAt(text, m[2], m[3]))
	}
	for _, m := range datePattern.FindAllStringSubmatchIndex(text, -1) {
		d.Dates = append(d.Dates, itemAt(text, m[2], m[3]))
	}

	for _, w := range wordPattern.FindAllStringIndex(text, -1) {
		word := text[w[0]:w[1]]
		if namePattern.MatchString(word) && !sentenceInitial(text, w[0]) {
			d.Names = append(d.Names, itemAt(text, w[0], w[1]))
		}
		if termPattern.MatchString(word) {
			d.Terms = append(d.Terms, itemAt(text, w[0], w[1]))
		}
	}

	return d
}

// CollectConcreteData 合并一批消息的数据，按值去重（保留首次出现）并截断
func CollectConcreteData(turns []domain.ChatTurn) ConcreteData {
	var all ConcreteData
	for _, t := range turns {
		d := ExtractConcreteData(t.Content)
		all.Names = append(all.Names, d.Names...)
		all.Numbers = append(all.Numbers, d.Numbers...)
		all.Dates = append(all.Dates, d.Dates...)
		all.Terms = append(all.Terms, d.Terms...)
	}

	return ConcreteData{
		Names:   dedupe(all.Names, maxNames),
		Numbers: dedupe(all.Numbers, maxNumbers),
		Dates:   dedupe(all.Dates, maxDates),
		Terms:   dedupe(all.Terms, maxTerms),
	}
}

func dedupe(items []DataItem, limit int) []DataItem {
	seen := make(map[string]struct{}, len(items))
	var out []DataItem
	for _, item := range items {
		if _, ok := seen[item.Value]; ok {
			continue
		}
		seen[item.Value] = struct{}{}
		out = append(out, item)
		if len(out) == limit {
			break
		}
	}
	return out
}

// sentenceInitial 位于文本开头或紧跟句末标点
func sentenceInitial(text string, start int) bool {
	if start == 0 {
		return true
	}
	return sentenceEnd.MatchString(lastRunes(text[:start], 3))
}

func itemAt(text string, start, end int) DataItem {
	before := lastRunes(text[:start], contextWindow)
	after := firstRunes(text[end:], contextWindow)
	return DataItem{
		Value:   text[start:end],
		Context: strings.TrimSpace(before + text[start:end] + after),
	}
}

// ExtractMainTopic 词频最高的 3 个词（长度大于 3，排除停用词）
func (a *Analyzer) ExtractMainTopic(turns []domain.ChatTurn) string {
	contents := make([]string, 0, len(turns))
	for _, t := range turns {
		contents = append(contents, t.Content)
	}

	type wordCount struct {
		word  string
		count int
	}
	var counts []*wordCount
	index := make(map[string]*wordCount)

	for _, word := range strings.Fields(strings.ToLower(strings.Join(contents, " "))) {
		if utf8.RuneCountInString(word) <= 3 {
			continue
		}
		if _, stop := a.stopwords[word]; stop {
			continue
		}
		if wc, ok := index[word]; ok {
			wc.count++
			continue
		}
		wc := &wordCount{word: word, count: 1}
		index[word] = wc
		counts = append(counts, wc)
	}

	// 稳定排序：同频词保持首次出现的顺序
	sort.SliceStable(counts, func(i, j int) bool {
		return counts[i].count > counts[j].count
	})

	var top []string
	for i := 0; i < len(counts) && i < 3; i++ {
		top = append(top, counts[i].word)
	}
	if len(top) == 0 {
		return a.lex.Phrases.TopicFallback
	}
	return strings.Join(top, ", ")
}

// ExtractAchievements 助手回复中带结论标记的句子，最多 3 条
func (a *Analyzer) ExtractAchievements(turns []domain.ChatTurn) []string {
	var out []string
	for _, t := range domain.FilterByRole(turns, domain.RoleAssistant) {
		for _, sentence := range sentenceSplit.Split(t.Content, -1) {
			if !matches(a.achievements, sentence) {
				continue
			}
			n := utf8.RuneCountInString(sentence)
			if n > 20 && n < 150 {
				out = append(out, strings.TrimSpace(sentence))
			}
		}
	}
	if len(out) > 3 {
		out = out[:3]
	}
	return out
}

// ExtractOpenQuestions 没有得到充分回答的用户提问
func ExtractOpenQuestions(turns []domain.ChatTurn) []string {
	var out []string
	for i, t := range turns {
		if t.Role != domain.RoleUser || !strings.Contains(t.Content, "?") {
			continue
		}
		if i+1 >= len(turns) || utf8.RuneCountInString(turns[i+1].Content) < 20 {
			out = append(out, truncate(t.Content, 80))
		}
	}
	return out
}

// truncate 按字符截断
func truncate(s string, n int) string {
	return firstRunes(s, n)
}

func firstRunes(s string, n int) string {
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}

func lastRunes(s string, n int) string {
	end := len(s)
	for i := 0; i < n && end > 0; i++ {
		_, size := utf8.DecodeLastRuneInString(s[:end])
		end -= size
	}
	return s[end:]
}
