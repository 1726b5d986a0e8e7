package biz

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kart-io/paperqa/pkg/llm"
)

func rankedFromTexts(texts ...string) []RankedPassage {
	ranked := make([]RankedPassage, len(texts))
	for i, text := range texts {
		ranked[i] = RankedPassage{Chunk: Chunk{Index: i, Text: text}}
	}
	return ranked
}

func filterWithReply(reply string) *EvidenceFilter {
	chat := &fakeChat{
		generateFunc: func(ctx context.Context, prompt, systemPrompt string) (*llm.GenerateResponse, error) {
			return &llm.GenerateResponse{Content: reply}, nil
		},
	}
	return NewEvidenceFilter(chat, &FilterConfig{MaxPassages: 3, FallbackMaxChars: 100})
}

func TestEvidenceFilter_Filter(t *testing.T) {
	ranked := rankedFromTexts("first", "second", "third", "fourth")

	t.Run("中文编号按模型顺序返回", func(t *testing.T) {
		f := filterWithReply("最相关的是段落 3，其次是段落 1。")
		ev, err := f.Filter(context.Background(), &QueryContext{Language: LanguageZH}, ranked)
		require.NoError(t, err)
		assert.Equal(t, []string{"third", "first"}, ev.Passages)
		assert.False(t, ev.FullText)
	})

	t.Run("英文编号", func(t *testing.T) {
		f := filterWithReply("Passage 2 and Passage 4 are most relevant.")
		ev, err := f.Filter(context.Background(), &QueryContext{Language: LanguageEN}, ranked)
		require.NoError(t, err)
		assert.Equal(t, []string{"second", "fourth"}, ev.Passages)
	})

	t.Run("超出上限截断", func(t *testing.T) {
		f := filterWithReply("段落 1 段落 2 段落 3 段落 4")
		ev, err := f.Filter(context.Background(), &QueryContext{Language: LanguageZH}, ranked)
		require.NoError(t, err)
		assert.Len(t, ev.Passages, 3)
	})
}

func TestEvidenceFilter_Filter_Errors(t *testing.T) {
	ranked := rankedFromTexts("only")

	t.Run("无候选段落", func(t *testing.T) {
		f := filterWithReply("段落 1")
		_, err := f.Filter(context.Background(), &QueryContext{}, nil)
		assert.Error(t, err)
	})

	t.Run("LLM 调用失败", func(t *testing.T) {
		chat := &fakeChat{
			generateFunc: func(ctx context.Context, prompt, systemPrompt string) (*llm.GenerateResponse, error) {
				return nil, errors.New("model unavailable")
			},
		}
		f := NewEvidenceFilter(chat, &FilterConfig{MaxPassages: 3, FallbackMaxChars: 100})
		_, err := f.Filter(context.Background(), &QueryContext{}, ranked)
		assert.Error(t, err)
	})

	t.Run("回复中无可解析编号", func(t *testing.T) {
		f := filterWithReply("这些段落都与问题无关。")
		_, err := f.Filter(context.Background(), &QueryContext{Language: LanguageZH}, ranked)
		assert.ErrorContains(t, err, "no usable selection")
	})
}

func TestParseSelectedPassages(t *testing.T) {
	passages := []string{"p1", "p2", "p3"}

	tests := []struct {
		name     string
		response string
		expected []string
	}{
		{"重复编号去重保序", "段落 2，段落 2，段落 1", []string{"p2", "p1"}},
		{"越界编号忽略", "段落 3，段落 9，段落 0", []string{"p3"}},
		{"中英文混合", "段落 1 is good, also Passage 3", []string{"p1", "p3"}},
		{"大小写敏感", "passage 2", nil},
		{"无编号", "没有相关内容", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, parseSelectedPassages(tt.response, passages))
		})
	}
}

func TestFullTextEvidence(t *testing.T) {
	text := strings.Repeat("证", 300)
	ev := FullTextEvidence(text, 100)

	require.Len(t, ev.Passages, 1)
	assert.Equal(t, 100, len([]rune(ev.Passages[0])))
	assert.True(t, ev.FullText)
}
