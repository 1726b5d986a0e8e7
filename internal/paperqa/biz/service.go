package biz

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/kart-io/logger"

	"github.com/kart-io/paperqa/internal/paperqa/metrics"
	apierrors "github.com/kart-io/paperqa/pkg/utils/errors"
)

// Config 是流水线的只读配置，启动时构造一次，显式传入各组件。
type Config struct {
	// ChunkSize 分块窗口大小（按 rune 计）。
	ChunkSize int
	// ChunkOverlap 相邻分块重叠长度，必须小于 ChunkSize。
	ChunkOverlap int
	// TopK 检索返回的分块数量。
	TopK int
	// MaxEvidencePassages 证据筛选保留的段落上限。
	MaxEvidencePassages int
	// EvidenceFallbackMaxChars 全文证据回退的截断长度。
	EvidenceFallbackMaxChars int

	// HeartbeatInterval 检索、筛选与答案生成阶段的保活间隔。
	HeartbeatInterval time.Duration
	// ParseHeartbeatInterval 文档解析阶段的保活间隔。
	ParseHeartbeatInterval time.Duration
	// AnalysisHeartbeatInterval 问题分析阶段的保活间隔。
	AnalysisHeartbeatInterval time.Duration

	// 各阶段超时与整体截止时间。
	ParseTimeout     time.Duration
	AnalysisTimeout  time.Duration
	RetrievalTimeout time.Duration
	FilterTimeout    time.Duration
	AnswerTimeout    time.Duration
	OverallTimeout   time.Duration
}

// Validate 校验配置。非法取值在流水线启动之前拒绝。
func (c *Config) Validate() error {
	if c.ChunkSize <= 0 {
		return fmt.Errorf("chunk size must be positive, got %d", c.ChunkSize)
	}
	if c.ChunkOverlap < 0 || c.ChunkOverlap >= c.ChunkSize {
		return fmt.Errorf("chunk overlap must be in [0, chunk size), got %d", c.ChunkOverlap)
	}
	if c.TopK <= 0 {
		return fmt.Errorf("top-k must be positive, got %d", c.TopK)
	}
	if c.MaxEvidencePassages <= 0 {
		return fmt.Errorf("max evidence passages must be positive, got %d", c.MaxEvidencePassages)
	}
	if c.EvidenceFallbackMaxChars <= 0 {
		return fmt.Errorf("evidence fallback max chars must be positive, got %d", c.EvidenceFallbackMaxChars)
	}
	for name, d := range map[string]time.Duration{
		"heartbeat interval":          c.HeartbeatInterval,
		"parse heartbeat interval":    c.ParseHeartbeatInterval,
		"analysis heartbeat interval": c.AnalysisHeartbeatInterval,
		"parse timeout":               c.ParseTimeout,
		"analysis timeout":            c.AnalysisTimeout,
		"retrieval timeout":           c.RetrievalTimeout,
		"filter timeout":              c.FilterTimeout,
		"answer timeout":              c.AnswerTimeout,
		"overall timeout":             c.OverallTimeout,
	} {
		if d <= 0 {
			return fmt.Errorf("%s must be positive, got %s", name, d)
		}
	}
	return nil
}

// Service 组合五个阶段组件，对传输层暴露单一的 RunPipeline 操作。
// Service 本身无状态，可被并发请求安全共享。
type Service struct {
	source    DocumentSource
	analyzer  *Analyzer
	retriever *Retriever
	filter    *EvidenceFilter
	streamer  *AnswerStreamer
	config    *Config
	metrics   *metrics.PipelineMetrics
}

// NewService 创建流水线服务。配置非法时返回错误。
func NewService(
	source DocumentSource,
	analyzer *Analyzer,
	retriever *Retriever,
	filter *EvidenceFilter,
	streamer *AnswerStreamer,
	config *Config,
) (*Service, error) {
	if err := config.Validate(); err != nil {
		return nil, apierrors.ErrConfiguration.WithCause(err)
	}
	return &Service{
		source:    source,
		analyzer:  analyzer,
		retriever: retriever,
		filter:    filter,
		streamer:  streamer,
		config:    config,
		metrics:   metrics.GetPipelineMetrics(),
	}, nil
}

// RunPipeline 执行五阶段流水线，返回按序承载 SSE 帧的通道。
// 通道在流水线结束后关闭，最后一帧始终是结束哨兵。
// ctx 是客户端连接的生命周期；整体处理预算由配置的
// OverallTimeout 单独约束。
func (s *Service) RunPipeline(ctx context.Context, query, content string) <-chan string {
	out := make(chan string, 8)
	go s.run(ctx, query, content, out)
	return out
}

func (s *Service) run(reqCtx context.Context, query, content string, out chan<- string) {
	defer close(out)

	start := time.Now()
	failed := false
	defer func() {
		s.metrics.RecordRequest(time.Since(start), failed)
	}()

	lang := DetectLanguage(query)
	msgs := messagesFor(lang)

	pipeCtx, cancel := context.WithTimeout(reqCtx, s.config.OverallTimeout)
	defer cancel()

	// 所有输出走同一条有序通道；客户端断开时停止发送。
	emit := func(frame string) bool {
		select {
		case out <- frame:
			return true
		case <-reqCtx.Done():
			return false
		}
	}
	emitContent := func(text string) bool {
		return emit(encodeFrame(text))
	}
	emitKeepalive := func(text string) {
		if emit(encodeFrame(text)) {
			s.metrics.RecordHeartbeat()
		}
	}

	rawText, err := s.source.RawText(content)
	if err != nil {
		failed = true
		emitContent(msgs.ErrParse(err))
		emit(doneFrame)
		return
	}

	// 阶段 1: 文档解析与结构化提取
	hb := startHeartbeat(s.config.ParseHeartbeatInterval, emitKeepalive)
	doc, failure := runStage(pipeCtx, "parse", s.config.ParseTimeout,
		func(c context.Context) (*Document, error) { return s.source.Load(c, content, lang) },
		func() *Document { return DegradedDocument(rawText) },
	)
	hb.Stop()
	if failure != nil {
		s.metrics.RecordFallback("parse")
		emitContent(msgs.ParseTimeout)
		emitContent(msgs.ParseFallback)
	}
	emitContent(msgs.Step1)

	// 阶段 2: 问题理解与关键词提取
	hb = startHeartbeat(s.config.AnalysisHeartbeatInterval, emitKeepalive)
	qc, failure := runStage(pipeCtx, "analysis", s.config.AnalysisTimeout,
		func(c context.Context) (*QueryContext, error) { return s.analyzer.Analyze(c, query, lang) },
		func() *QueryContext { return DegradedQueryContext(query, lang) },
	)
	hb.Stop()
	if failure != nil {
		s.metrics.RecordFallback("analysis")
		// 分析失败对用户可见，之后以原始问题降级继续
		emitContent(msgs.ErrAnalysis(failure))
	}
	emitContent(msgs.Step2)

	// 阶段 3: 相关段落检索
	emitContent(msgs.Step3)
	chunks, err := ChunkText(doc.RawText, s.config.ChunkSize, s.config.ChunkOverlap)
	if err != nil {
		// 配置在构造时已校验，这里只可能是编程错误
		failed = true
		emitContent(msgs.ErrGeneral(err))
		emit(doneFrame)
		return
	}

	hb = startHeartbeat(s.config.HeartbeatInterval, emitKeepalive)
	passages, failure := runStage(pipeCtx, "retrieval", s.config.RetrievalTimeout,
		func(c context.Context) ([]RankedPassage, error) { return s.retriever.Retrieve(c, query, chunks) },
		func() []RankedPassage { return FirstKPassages(chunks, s.config.TopK) },
	)
	hb.Stop()
	if failure != nil {
		s.metrics.RecordFallback("retrieval")
	}

	// 阶段 4: 上下文构建与证据筛选
	emitContent(msgs.Step4)
	hb = startHeartbeat(s.config.HeartbeatInterval, emitKeepalive)
	evidence, failure := runStage(pipeCtx, "filter", s.config.FilterTimeout,
		func(c context.Context) (Evidence, error) { return s.filter.Filter(c, qc, passages) },
		func() Evidence { return FullTextEvidence(doc.RawText, s.config.EvidenceFallbackMaxChars) },
	)
	hb.Stop()
	if failure != nil {
		s.metrics.RecordFallback("filter")
	}

	// 阶段 5: 答案生成
	emitContent(msgs.Step5)
	emitContent(msgs.FinalTitle)

	// 整体预算耗尽时没有可用的本地生成手段，以超时文案收尾
	if pipeCtx.Err() != nil {
		s.metrics.RecordDeadlineExceeded()
		failed = true
		emitContent(msgs.ErrTimeout(int(time.Since(start).Seconds())))
		emit(doneFrame)
		return
	}

	answerCtx, cancelAnswer := context.WithTimeout(pipeCtx, s.config.AnswerTimeout)
	defer cancelAnswer()

	hb = startHeartbeat(s.config.HeartbeatInterval, emitKeepalive)
	deltas, err := s.streamer.Stream(answerCtx, qc, doc, evidence)
	if err != nil {
		hb.Stop()
		failed = true
		logger.Errorw("Answer generation failed to start", "error", apierrors.ErrGeneration.WithCause(err).Error())
		emitContent(msgs.ErrAnswer(err))
		emit(doneFrame)
		return
	}

	streamed := false
	for delta := range deltas {
		if delta.Err != nil {
			hb.Stop()
			failed = true
			logger.Errorw("Answer generation failed mid-stream", "error", apierrors.ErrGeneration.WithCause(delta.Err).Error())
			emitContent(msgs.ErrAnswer(delta.Err))
			emit(doneFrame)
			return
		}
		if !streamed {
			// 第一个真实增量到达，先确保保活彻底停止
			hb.Stop()
			streamed = true
		}
		s.metrics.RecordDelta()
		if !emitContent(delta.Content) {
			return
		}
	}
	hb.Stop()

	if !streamed {
		failed = true
		emitContent(msgs.ErrAnswer(errors.New(msgs.EmptyAnswer)))
	}
	emit(doneFrame)
}
