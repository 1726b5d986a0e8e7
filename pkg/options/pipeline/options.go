// Package pipeline provides configuration options for the question
// answering pipeline: chunking, retrieval, evidence filtering, stage
// timeouts and keepalive intervals.
package pipeline

import (
	"fmt"
	"time"

	"github.com/spf13/pflag"

	"github.com/kart-io/paperqa/pkg/options"
)

var _ options.IOptions = (*Options)(nil)

// Options contains pipeline configuration.
type Options struct {
	// ChunkSize 分块窗口大小（按 rune 计）。
	ChunkSize int `json:"chunk-size" mapstructure:"chunk-size"`

	// ChunkOverlap 相邻分块的重叠长度（按 rune 计），必须小于 ChunkSize。
	ChunkOverlap int `json:"chunk-overlap" mapstructure:"chunk-overlap"`

	// TopK 相似度检索返回的分块数量。
	TopK int `json:"top-k" mapstructure:"top-k"`

	// MaxEvidencePassages 证据筛选阶段最多保留的段落数。
	MaxEvidencePassages int `json:"max-evidence-passages" mapstructure:"max-evidence-passages"`

	// EvidenceFallbackMaxChars 证据筛选降级时使用的全文截断长度（按 rune 计）。
	EvidenceFallbackMaxChars int `json:"evidence-fallback-max-chars" mapstructure:"evidence-fallback-max-chars"`

	// HeartbeatInterval 默认心跳间隔。
	HeartbeatInterval time.Duration `json:"heartbeat-interval" mapstructure:"heartbeat-interval"`

	// ParseHeartbeatInterval 文档解析阶段心跳间隔。
	ParseHeartbeatInterval time.Duration `json:"parse-heartbeat-interval" mapstructure:"parse-heartbeat-interval"`

	// AnalysisHeartbeatInterval 问题分析阶段心跳间隔。
	AnalysisHeartbeatInterval time.Duration `json:"analysis-heartbeat-interval" mapstructure:"analysis-heartbeat-interval"`

	// ParseTimeout 文档解析阶段超时。
	ParseTimeout time.Duration `json:"parse-timeout" mapstructure:"parse-timeout"`

	// AnalysisTimeout 问题分析阶段超时。
	AnalysisTimeout time.Duration `json:"analysis-timeout" mapstructure:"analysis-timeout"`

	// RetrievalTimeout 分块嵌入与检索阶段超时。
	RetrievalTimeout time.Duration `json:"retrieval-timeout" mapstructure:"retrieval-timeout"`

	// FilterTimeout 证据筛选阶段超时。
	FilterTimeout time.Duration `json:"filter-timeout" mapstructure:"filter-timeout"`

	// AnswerTimeout 答案生成阶段超时。
	AnswerTimeout time.Duration `json:"answer-timeout" mapstructure:"answer-timeout"`

	// OverallTimeout 单个请求从接收到完成的总超时。
	OverallTimeout time.Duration `json:"overall-timeout" mapstructure:"overall-timeout"`
}

// NewOptions creates new Options with defaults.
func NewOptions() *Options {
	return &Options{
		ChunkSize:                 1000,
		ChunkOverlap:              200,
		TopK:                      8,
		MaxEvidencePassages:       8,
		EvidenceFallbackMaxChars:  20000,
		HeartbeatInterval:         25 * time.Second,
		ParseHeartbeatInterval:    20 * time.Second,
		AnalysisHeartbeatInterval: 15 * time.Second,
		ParseTimeout:              120 * time.Second,
		AnalysisTimeout:           30 * time.Second,
		RetrievalTimeout:          60 * time.Second,
		FilterTimeout:             60 * time.Second,
		AnswerTimeout:             180 * time.Second,
		OverallTimeout:            15 * time.Minute,
	}
}

// AddFlags adds flags for pipeline options to the specified FlagSet.
func (o *Options) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	p := options.Join(prefixes...)
	fs.IntVar(&o.ChunkSize, p+"pipeline.chunk-size", o.ChunkSize, "Chunk window size in runes.")
	fs.IntVar(&o.ChunkOverlap, p+"pipeline.chunk-overlap", o.ChunkOverlap, "Overlap between adjacent chunks in runes.")
	fs.IntVar(&o.TopK, p+"pipeline.top-k", o.TopK, "Number of chunks returned by similarity retrieval.")
	fs.IntVar(&o.MaxEvidencePassages, p+"pipeline.max-evidence-passages", o.MaxEvidencePassages, "Maximum passages kept by the evidence filter.")
	fs.IntVar(&o.EvidenceFallbackMaxChars, p+"pipeline.evidence-fallback-max-chars", o.EvidenceFallbackMaxChars, "Rune cap for full-text evidence fallback.")
	fs.DurationVar(&o.HeartbeatInterval, p+"pipeline.heartbeat-interval", o.HeartbeatInterval, "Default keepalive interval for long-running stages.")
	fs.DurationVar(&o.ParseHeartbeatInterval, p+"pipeline.parse-heartbeat-interval", o.ParseHeartbeatInterval, "Keepalive interval during document parsing.")
	fs.DurationVar(&o.AnalysisHeartbeatInterval, p+"pipeline.analysis-heartbeat-interval", o.AnalysisHeartbeatInterval, "Keepalive interval during question analysis.")
	fs.DurationVar(&o.ParseTimeout, p+"pipeline.parse-timeout", o.ParseTimeout, "Timeout for the document parsing stage.")
	fs.DurationVar(&o.AnalysisTimeout, p+"pipeline.analysis-timeout", o.AnalysisTimeout, "Timeout for the question analysis stage.")
	fs.DurationVar(&o.RetrievalTimeout, p+"pipeline.retrieval-timeout", o.RetrievalTimeout, "Timeout for the embedding retrieval stage.")
	fs.DurationVar(&o.FilterTimeout, p+"pipeline.filter-timeout", o.FilterTimeout, "Timeout for the evidence filter stage.")
	fs.DurationVar(&o.AnswerTimeout, p+"pipeline.answer-timeout", o.AnswerTimeout, "Timeout for the answer generation stage.")
	fs.DurationVar(&o.OverallTimeout, p+"pipeline.overall-timeout", o.OverallTimeout, "Overall timeout per request.")
}

// Validate validates the pipeline options.
func (o *Options) Validate() []error {
	if o == nil {
		return nil
	}

	var errs []error
	if o.ChunkSize <= 0 {
		errs = append(errs, fmt.Errorf("pipeline.chunk-size must be positive"))
	}
	if o.ChunkOverlap < 0 {
		errs = append(errs, fmt.Errorf("pipeline.chunk-overlap cannot be negative"))
	}
	if o.ChunkOverlap >= o.ChunkSize {
		errs = append(errs, fmt.Errorf("pipeline.chunk-overlap (%d) must be smaller than pipeline.chunk-size (%d)", o.ChunkOverlap, o.ChunkSize))
	}
	if o.TopK <= 0 {
		errs = append(errs, fmt.Errorf("pipeline.top-k must be positive"))
	}
	if o.MaxEvidencePassages <= 0 {
		errs = append(errs, fmt.Errorf("pipeline.max-evidence-passages must be positive"))
	}
	if o.EvidenceFallbackMaxChars <= 0 {
		errs = append(errs, fmt.Errorf("pipeline.evidence-fallback-max-chars must be positive"))
	}
	for name, d := range map[string]time.Duration{
		"heartbeat-interval":          o.HeartbeatInterval,
		"parse-heartbeat-interval":    o.ParseHeartbeatInterval,
		"analysis-heartbeat-interval": o.AnalysisHeartbeatInterval,
		"parse-timeout":               o.ParseTimeout,
		"analysis-timeout":            o.AnalysisTimeout,
		"retrieval-timeout":           o.RetrievalTimeout,
		"filter-timeout":              o.FilterTimeout,
		"answer-timeout":              o.AnswerTimeout,
		"overall-timeout":             o.OverallTimeout,
	} {
		if d <= 0 {
			errs = append(errs, fmt.Errorf("pipeline.%s must be positive", name))
		}
	}
	for name, d := range map[string]time.Duration{
		"parse-timeout":     o.ParseTimeout,
		"analysis-timeout":  o.AnalysisTimeout,
		"retrieval-timeout": o.RetrievalTimeout,
		"filter-timeout":    o.FilterTimeout,
		"answer-timeout":    o.AnswerTimeout,
	} {
		if d > o.OverallTimeout {
			errs = append(errs, fmt.Errorf("pipeline.%s (%s) cannot exceed pipeline.overall-timeout (%s)", name, d, o.OverallTimeout))
		}
	}
	return errs
}

// Complete completes the pipeline options with defaults.
func (o *Options) Complete() error {
	if o.ParseHeartbeatInterval == 0 {
		o.ParseHeartbeatInterval = o.HeartbeatInterval
	}
	if o.AnalysisHeartbeatInterval == 0 {
		o.AnalysisHeartbeatInterval = o.HeartbeatInterval
	}
	return nil
}
