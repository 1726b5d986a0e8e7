package biz

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/kart-io/paperqa/internal/pkg/qa/textutil"
	"github.com/kart-io/paperqa/pkg/llm"
)

// 降级解析时的文本预算。
const (
	degradedTextMaxRunes     = 10000
	degradedAbstractMaxRunes = 500
	degradedTitleMinRunes    = 10
	degradedTitleMaxRunes    = 200
	degradedTitleScanLines   = 10
	parsePromptMaxRunes      = 20000
)

// Document 表示一次请求所处理的文档。
// 由一个请求独占，产出后不可变。
type Document struct {
	// RawText 提取出的原始文本。
	RawText string

	// Title 论文标题（尽力提取）。
	Title string

	// Abstract 摘要（尽力提取）。
	Abstract string

	// Structured LLM 结构化解析的完整结果（Markdown），降级时为空。
	Structured string

	// Degraded 结构化解析失败、仅携带原始文本时为 true。
	Degraded bool
}

// DocumentSource 提供文档获取能力。
// RawText 必须是纯本地操作；Load 可以调用外部服务，
// 失败或超时由调用方通过 DegradedDocument 降级处理。
type DocumentSource interface {
	// RawText 从请求内容中快速提取原始文本，不依赖外部服务。
	RawText(content string) (string, error)

	// Load 完整解析文档，包括 LLM 结构化提取。
	Load(ctx context.Context, content string, lang Language) (*Document, error)
}

// TextSource 接受已抽取的文档文本（可选 base64 编码），
// 并通过 ChatProvider 做结构化提取。
// PDF 字节解码与排版还原属于上游职责，不在此实现。
type TextSource struct {
	chat llm.ChatProvider
}

// NewTextSource 创建文本文档源。
func NewTextSource(chat llm.ChatProvider) *TextSource {
	return &TextSource{chat: chat}
}

// RawText 提取原始文本。内容若是合法 base64 且解码结果为有效
// UTF-8 文本，则使用解码结果，否则按纯文本处理。
func (s *TextSource) RawText(content string) (string, error) {
	text := strings.TrimSpace(content)
	if text == "" {
		return "", fmt.Errorf("document content is empty")
	}

	if decoded, err := base64.StdEncoding.DecodeString(text); err == nil && utf8.Valid(decoded) {
		if dt := strings.TrimSpace(string(decoded)); dt != "" {
			return dt, nil
		}
	}

	return text, nil
}

// Load 解析文档并做 LLM 结构化提取。
func (s *TextSource) Load(ctx context.Context, content string, lang Language) (*Document, error) {
	text, err := s.RawText(content)
	if err != nil {
		return nil, err
	}

	prompt := parsePrompt(textutil.TruncateRunes(text, parsePromptMaxRunes), lang)
	resp, err := s.chat.Generate(ctx, prompt, "")
	if err != nil {
		return nil, fmt.Errorf("structured extraction failed: %w", err)
	}
	if strings.TrimSpace(resp.Content) == "" {
		return nil, fmt.Errorf("structured extraction returned empty result")
	}

	doc := &Document{
		RawText:    text,
		Title:      guessTitle(text),
		Abstract:   textutil.TruncateRunes(text, degradedAbstractMaxRunes),
		Structured: resp.Content,
	}
	return doc, nil
}

// DegradedDocument 用纯本地手段从原始文本构造降级文档。
// 永不失败，供解析阶段超时或出错时回退使用。
func DegradedDocument(text string) *Document {
	return &Document{
		RawText:  textutil.TruncateRunes(text, degradedTextMaxRunes),
		Title:    guessTitle(text),
		Abstract: textutil.TruncateRunes(text, degradedAbstractMaxRunes),
		Degraded: true,
	}
}

// guessTitle 在前若干行中找第一个长度合适的行作为标题；
// 找不到时退化为文本开头的压缩片段。
func guessTitle(text string) string {
	for _, line := range textutil.FirstLines(text, degradedTitleScanLines) {
		n := utf8.RuneCountInString(line)
		if n > degradedTitleMinRunes && n < degradedTitleMaxRunes {
			return line
		}
	}
	head := textutil.TruncateRunes(text, 100)
	return strings.TrimSpace(strings.ReplaceAll(head, "\n", " "))
}
