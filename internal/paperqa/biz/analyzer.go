package biz

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/kart-io/paperqa/pkg/llm"
)

// maxKeywords 分析结果保留的关键词上限。
const maxKeywords = 5

// QueryContext 表示一次问题分析的结果。
// 由阶段 2 产出一次，后续阶段只读。
type QueryContext struct {
	// RawQuery 用户原始问题。
	RawQuery string

	// Language 检测到的问题语言。
	Language Language

	// QuestionType 问题类型（事实性、分析性等）。
	QuestionType string

	// Keywords 提取的核心关键词，最多 5 个。
	Keywords []string

	// Intent 问题意图说明。
	Intent string

	// AnswerFocus 回答重点。
	AnswerFocus string

	// RawAnalysis LLM 分析的原始输出。
	RawAnalysis string
}

// Analyzer 负责问题理解与关键词提取。
type Analyzer struct {
	chat llm.ChatProvider
}

// NewAnalyzer 创建问题分析器。
func NewAnalyzer(chat llm.ChatProvider) *Analyzer {
	return &Analyzer{chat: chat}
}

// Analyze 分析问题，提取类型、关键词、意图和回答重点。
func (a *Analyzer) Analyze(ctx context.Context, query string, lang Language) (*QueryContext, error) {
	resp, err := a.chat.Generate(ctx, analysisPrompt(query, lang), "")
	if err != nil {
		return nil, fmt.Errorf("question analysis failed: %w", err)
	}
	if strings.TrimSpace(resp.Content) == "" {
		return nil, fmt.Errorf("question analysis returned empty result")
	}

	qc := parseAnalysisResponse(resp.Content)
	qc.RawQuery = query
	qc.Language = lang
	return qc, nil
}

// analysisField 标识带标签的分析字段。
type analysisField int

const (
	fieldNone analysisField = iota
	fieldQuestionType
	fieldKeywords
	fieldIntent
	fieldAnswerFocus
)

// parseAnalysisResponse 从带标签的行中提取结构化字段。
// 中英文标签都接受；无法识别的行归入当前字段的续行。
func parseAnalysisResponse(response string) *QueryContext {
	qc := &QueryContext{RawAnalysis: response}

	current := fieldNone
	var content []string

	flush := func() {
		if current == fieldNone {
			return
		}
		text := strings.TrimSpace(strings.Join(content, "\n"))
		switch current {
		case fieldQuestionType:
			qc.QuestionType = text
		case fieldKeywords:
			qc.Keywords = splitKeywords(text)
		case fieldIntent:
			qc.Intent = text
		case fieldAnswerFocus:
			qc.AnswerFocus = text
		}
	}

	for _, line := range strings.Split(response, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		field := matchField(line)
		if field == fieldNone {
			if current != fieldNone {
				content = append(content, line)
			}
			continue
		}

		flush()
		current = field
		content = content[:0]
		// 标签同行的内容直接作为首行
		if idx := strings.IndexAny(line, ":："); idx >= 0 {
			_, size := utf8.DecodeRuneInString(line[idx:])
			if rest := strings.TrimSpace(line[idx+size:]); rest != "" {
				content = append(content, rest)
			}
		}
	}
	flush()

	return qc
}

func matchField(line string) analysisField {
	switch {
	case strings.Contains(line, "问题类型") || strings.Contains(line, "Question Type"):
		return fieldQuestionType
	case strings.Contains(line, "关键词") || strings.Contains(line, "Keyword"):
		return fieldKeywords
	case strings.Contains(line, "意图") || strings.Contains(line, "Intent"):
		return fieldIntent
	case strings.Contains(line, "重点") || strings.Contains(line, "Focus"):
		return fieldAnswerFocus
	}
	return fieldNone
}

// splitKeywords 按逗号（中英文）切分关键词，最多保留 maxKeywords 个。
func splitKeywords(text string) []string {
	parts := strings.FieldsFunc(text, func(r rune) bool {
		return r == ',' || r == '，' || r == '、'
	})
	keywords := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		keywords = append(keywords, p)
		if len(keywords) == maxKeywords {
			break
		}
	}
	return keywords
}

// DegradedQueryContext 构造仅含原始问题与语言的降级分析结果。
// 永不失败，供分析阶段超时或出错时回退使用。
func DegradedQueryContext(query string, lang Language) *QueryContext {
	return &QueryContext{RawQuery: query, Language: lang}
}
