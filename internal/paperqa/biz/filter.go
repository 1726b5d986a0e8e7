package biz

import (
	"context"
	"fmt"
	"regexp"
	"strconv"

	"github.com/kart-io/paperqa/internal/pkg/qa/textutil"
	"github.com/kart-io/paperqa/pkg/llm"
)

// passagePattern 匹配筛选回复中的段落编号（"段落 3" / "Passage 3"）。
var passagePattern = regexp.MustCompile(`段落\s*(\d+)|Passage\s*(\d+)`)

// Evidence 表示交给答案生成的最终证据。
type Evidence struct {
	// Passages 按相关性排列的证据段落。
	Passages []string

	// FullText 回退到全文（截断后）作为证据时为 true。
	FullText bool
}

// FilterConfig 证据筛选器配置。
type FilterConfig struct {
	// MaxPassages 保留的段落数上限。
	MaxPassages int
	// FallbackMaxChars 全文回退时的截断长度（按 rune 计）。
	FallbackMaxChars int
}

// EvidenceFilter 让 LLM 在检索结果中重新评分并挑选证据段落。
type EvidenceFilter struct {
	chat   llm.ChatProvider
	config *FilterConfig
}

// NewEvidenceFilter 创建证据筛选器。
func NewEvidenceFilter(chat llm.ChatProvider, config *FilterConfig) *EvidenceFilter {
	return &EvidenceFilter{chat: chat, config: config}
}

// Filter 将检索到的段落交给 LLM 重新评分并筛选。
//
// 返回的段落保持模型给出的顺序；模型回复中无法解析出任何
// 段落编号、或者没有可筛选的段落时返回错误，由调用方回退到
// 全文证据（FullTextEvidence）。
func (f *EvidenceFilter) Filter(ctx context.Context, qc *QueryContext, ranked []RankedPassage) (Evidence, error) {
	if len(ranked) == 0 {
		return Evidence{}, fmt.Errorf("no passages to filter")
	}

	passages := make([]string, len(ranked))
	for i, rp := range ranked {
		passages[i] = rp.Chunk.Text
	}

	resp, err := f.chat.Generate(ctx, filterPrompt(qc.RawQuery, passages, qc.Language), "")
	if err != nil {
		return Evidence{}, fmt.Errorf("evidence filtering failed: %w", err)
	}

	selected := parseSelectedPassages(resp.Content, passages)
	if len(selected) == 0 {
		return Evidence{}, fmt.Errorf("evidence filtering returned no usable selection")
	}
	if len(selected) > f.config.MaxPassages {
		selected = selected[:f.config.MaxPassages]
	}

	return Evidence{Passages: selected}, nil
}

// parseSelectedPassages 从模型回复中提取段落编号并映射回原始段落。
// 编号按出现顺序去重；越界编号忽略。
func parseSelectedPassages(response string, passages []string) []string {
	matches := passagePattern.FindAllStringSubmatch(response, -1)

	seen := make(map[int]struct{}, len(matches))
	var selected []string
	for _, m := range matches {
		raw := m[1]
		if raw == "" {
			raw = m[2]
		}
		n, err := strconv.Atoi(raw)
		if err != nil {
			continue
		}
		idx := n - 1
		if idx < 0 || idx >= len(passages) {
			continue
		}
		if _, ok := seen[idx]; ok {
			continue
		}
		seen[idx] = struct{}{}
		selected = append(selected, passages[idx])
	}
	return selected
}

// FullTextEvidence 用截断后的全文构造证据。
// 纯本地操作，永不失败，是证据筛选阶段的最终回退。
func FullTextEvidence(text string, maxChars int) Evidence {
	return Evidence{
		Passages: []string{textutil.TruncateRunes(text, maxChars)},
		FullText: true,
	}
}
