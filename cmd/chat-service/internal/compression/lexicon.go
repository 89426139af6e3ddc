package compression

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Rule 规则表中的一条规则
//
// Pattern 为空且 MinUserTurns 为 0 的规则永远不会命中。
// Capture 命中时用其最后一个分组填充 Template，否则返回 Result。
type Rule struct {
	Pattern      string `yaml:"pattern"`
	Capture      string `yaml:"capture,omitempty"`
	Template     string `yaml:"template,omitempty"`
	Result       string `yaml:"result"`
	MinUserTurns int    `yaml:"min_user_turns,omitempty"`
}

// RuleTable 按顺序匹配，首个命中的规则生效
type RuleTable struct {
	Rules   []Rule `yaml:"rules"`
	Default string `yaml:"default"`
}

// BlockerGroup 阻碍规则组：Pattern 命中后收集 Labels 中所有命中的结果
type BlockerGroup struct {
	Pattern string `yaml:"pattern"`
	Result  string `yaml:"result,omitempty"`
	Labels  []Rule `yaml:"labels,omitempty"`
}

// IntentLexicon 意图识别词库
type IntentLexicon struct {
	Goal            RuleTable      `yaml:"goal"`
	Motivation      RuleTable      `yaml:"motivation"`
	Status          RuleTable      `yaml:"status"`
	Blockers        []BlockerGroup `yaml:"blockers"`
	BlockersDefault string         `yaml:"blockers_default"`
}

// ProfileLabels 用户画像输出标签
type ProfileLabels struct {
	ExpertiseBeginner string `yaml:"expertise_beginner"`
	ExpertiseSenior   string `yaml:"expertise_senior"`
	ExpertiseMiddle   string `yaml:"expertise_middle_plus"`
	ExpertiseDefault  string `yaml:"expertise_default"`

	ThinkingPractical   string `yaml:"thinking_practical"`
	ThinkingTheoretical string `yaml:"thinking_theoretical"`
	ThinkingDefault     string `yaml:"thinking_default"`

	CommunicationVerbose string `yaml:"communication_verbose"`
	CommunicationBrief   string `yaml:"communication_brief"`
	CommunicationDefault string `yaml:"communication_default"`
	PoliteSuffix         string `yaml:"polite_suffix"`
	DirectSuffix         string `yaml:"direct_suffix"`

	EmotionPositive string `yaml:"emotion_positive"`
	EmotionNegative string `yaml:"emotion_negative"`
	EmotionCurious  string `yaml:"emotion_curious"`
	EmotionDefault  string `yaml:"emotion_default"`

	NegativeTrigger string `yaml:"negative_trigger"`
}

// ProfileLexicon 用户画像词库（正则候选式，按出现次数计数）
type ProfileLexicon struct {
	BeginnerSignals    string        `yaml:"beginner_signals"`
	ExpertSignals      string        `yaml:"expert_signals"`
	PracticalSignals   string        `yaml:"practical_signals"`
	TheoreticalSignals string        `yaml:"theoretical_signals"`
	PoliteWords        string        `yaml:"polite_words"`
	PositiveSignals    string        `yaml:"positive_signals"`
	NegativeSignals    string        `yaml:"negative_signals"`
	CuriousSignals     string        `yaml:"curious_signals"`
	Triggers           []Rule        `yaml:"triggers"`
	NegativeThreshold  int           `yaml:"negative_threshold"`
	Labels             ProfileLabels `yaml:"labels"`
}

// ScoringLexicon 质量评估词库
type ScoringLexicon struct {
	NameMarkers       []string `yaml:"name_markers"`
	LocationMarkers   []string `yaml:"location_markers"`
	TechnicalTerms    []string `yaml:"technical_terms"`
	CausalConnectives []string `yaml:"causal_connectives"`
	EmotionWords      []string `yaml:"emotion_words"`
	EmotionLabels     []string `yaml:"emotion_labels"`
}

// Phrases 摘要模板中随语言变化的文案
type Phrases struct {
	EssenceSingle   string `yaml:"essence_single"`
	EssenceStart    string `yaml:"essence_start"`
	EssenceTopic    string `yaml:"essence_topic"`
	EssenceFocus    string `yaml:"essence_focus"`
	EssenceNoUser   string `yaml:"essence_no_user"`
	TopicFallback   string `yaml:"topic_fallback"`
	GenericEssence  string `yaml:"generic_essence"`
	FocusedData     string `yaml:"focused_data"`
	FocusedLinks    string `yaml:"focused_links"`
	FocusedEmotions string `yaml:"focused_emotions"`
}

// Lexicon 压缩流水线使用的全部词库，可按语言或领域替换
type Lexicon struct {
	Stopwords          []string       `yaml:"stopwords"`
	AchievementMarkers string         `yaml:"achievement_markers"`
	Intent             IntentLexicon  `yaml:"intent"`
	Profile            ProfileLexicon `yaml:"profile"`
	Scoring            ScoringLexicon `yaml:"scoring"`
	Phrases            Phrases        `yaml:"phrases"`
}

// LoadLexicon 从 YAML 文件加载词库，未出现的字段沿用默认值
func LoadLexicon(path string) (*Lexicon, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read lexicon file: %w", err)
	}

	lex := DefaultLexicon()
	if err := yaml.Unmarshal(raw, lex); err != nil {
		return nil, fmt.Errorf("parse lexicon file: %w", err)
	}

	// 提前编译，尽早暴露错误的正则
	if _, err := NewAnalyzer(lex); err != nil {
		return nil, err
	}
	return lex, nil
}
