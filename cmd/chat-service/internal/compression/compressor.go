package compression

import (
	"time"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/google/uuid"

	"contextrelay/cmd/chat-service/internal/domain"
)

// BatchSize 触发压缩所需的未压缩消息数，也是每块替换的消息数
const BatchSize = 10

// maxAttempts 首次评分为 F 时最多再生成一次
const maxAttempts = 2

// Result 单次压缩的结果
type Result struct {
	domain.QualityMetrics
	BlockNumber      int                    `json:"blockNumber"`
	Range            domain.CompressedRange `json:"range"`
	OriginalTokens   int                    `json:"originalTokens"`
	CompressedTokens int                    `json:"compressedTokens"`
	Attempt          int                    `json:"attemptNumber"`
	Autocorrected    bool                   `json:"autocorrected"`
	SelfCheckPassed  bool                   `json:"selfCheckPassed"`
	WeakPoints       []string               `json:"weakPoints,omitempty"`
}

// Option 压缩器选项
type Option func(*Compressor)

// WithClock 替换时间源
func WithClock(now func() time.Time) Option {
	return func(c *Compressor) {
		c.now = now
	}
}

// WithIDGenerator 替换压缩块 ID 生成器
func WithIDGenerator(newID func() string) Option {
	return func(c *Compressor) {
		c.newID = newID
	}
}

// Compressor 对话历史压缩器，无状态，可并发使用
type Compressor struct {
	analyzer *Analyzer
	log      *log.Helper
	now      func() time.Time
	newID    func() string
}

// NewCompressor 创建压缩器，lex 为 nil 时使用内置词库
func NewCompressor(lex *Lexicon, logger log.Logger, opts ...Option) (*Compressor, error) {
	analyzer, err := NewAnalyzer(lex)
	if err != nil {
		return nil, err
	}

	c := &Compressor{
		analyzer: analyzer,
		log:      log.NewHelper(log.With(logger, "module", "compression")),
		now:      time.Now,
		newID:    uuid.NewString,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Analyzer 压缩器使用的分析器
func (c *Compressor) Analyzer() *Analyzer {
	return c.analyzer
}

// ShouldCompress 未压缩消息是否达到一批
func ShouldCompress(turns []domain.ChatTurn) bool {
	return domain.CountUncompressed(turns) >= BatchSize
}

// Compress 将最早的一批未压缩消息替换为一个压缩块
//
// 未达到触发条件时原样返回输入，Result 为 nil。
func (c *Compressor) Compress(turns []domain.ChatTurn) ([]domain.ChatTurn, *Result) {
	indices := make([]int, 0, BatchSize)
	for i, t := range turns {
		if t.IsCompressed {
			continue
		}
		indices = append(indices, i)
		if len(indices) == BatchSize {
			break
		}
	}
	if len(indices) < BatchSize {
		return turns, nil
	}

	startIdx, endIdx := indices[0], indices[BatchSize-1]
	batch := make([]domain.ChatTurn, 0, BatchSize)
	for _, i := range indices {
		batch = append(batch, turns[i])
	}
	blockNumber := domain.CountCompressed(turns) + 1

	signals := c.analyzer.Extract(batch)
	content := RenderSummary(signals, startIdx, blockNumber)
	eval := c.analyzer.Evaluate(batch, content)
	attempt := 1

	if eval.OverallGrade == domain.GradeF && attempt < maxAttempts {
		c.log.Infof("compression block #%d graded %s, regenerating with focused summary, weak points: %v",
			blockNumber, eval.OverallGrade, eval.WeakPoints)

		content = c.analyzer.renderFocused(signals, batch, startIdx, blockNumber, eval)
		eval = c.analyzer.Evaluate(batch, content)
		attempt++

		c.log.Infof("compression block #%d accepted with grade %s after retry", blockNumber, eval.OverallGrade)
	}

	rng := domain.CompressedRange{Start: startIdx + 1, End: startIdx + BatchSize}
	block := domain.ChatTurn{
		ID:              c.newID(),
		Role:            domain.RoleSystem,
		Content:         content,
		Timestamp:       c.now(),
		IsCompressed:    true,
		CompressedRange: &rng,
	}

	out := make([]domain.ChatTurn, 0, len(turns)-BatchSize+1)
	out = append(out, turns[:startIdx]...)
	out = append(out, block)
	for i := startIdx + 1; i < endIdx; i++ {
		if turns[i].IsCompressed {
			out = append(out, turns[i])
		}
	}
	out = append(out, turns[endIdx+1:]...)

	originalTokens := 0
	for _, t := range batch {
		originalTokens += EstimateTokens(t.Content)
	}

	return out, &Result{
		QualityMetrics:   eval.QualityMetrics,
		BlockNumber:      blockNumber,
		Range:            rng,
		OriginalTokens:   originalTokens,
		CompressedTokens: EstimateTokens(content),
		Attempt:          attempt,
		Autocorrected:    attempt > 1,
		SelfCheckPassed:  eval.SelfCheckPassed,
		WeakPoints:       eval.WeakPoints,
	}
}

// CompressAll 只要触发条件仍成立就继续压缩，并把每次结果并入统计
func (c *Compressor) CompressAll(turns []domain.ChatTurn, stats domain.CompressionStats) ([]domain.ChatTurn, []Result, domain.CompressionStats) {
	var results []Result
	for ShouldCompress(turns) {
		next, res := c.Compress(turns)
		if res == nil {
			break
		}
		turns = next
		stats = Aggregate(stats, *res)
		results = append(results, *res)
	}
	return turns, results, stats
}
