package biz

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// vectorEmbedder 按文本查表返回固定向量，用于构造可控的相似度排序。
func vectorEmbedder(vectors map[string][]float32) *fakeEmbedder {
	return &fakeEmbedder{
		embedFunc: func(ctx context.Context, texts []string) ([][]float32, error) {
			out := make([][]float32, len(texts))
			for i, text := range texts {
				out[i] = vectors[text]
			}
			return out, nil
		},
	}
}

func TestRetriever_Retrieve_RanksBySimilarity(t *testing.T) {
	embedder := vectorEmbedder(map[string][]float32{
		"query": {1, 0},
		"a":     {0, 1},     // 相似度 0
		"b":     {1, 0},     // 相似度 1
		"c":     {0.6, 0.8}, // 相似度 0.6
	})
	chunks := []Chunk{
		{Index: 0, Text: "a"},
		{Index: 1, Text: "b"},
		{Index: 2, Text: "c"},
	}

	r := NewRetriever(embedder, nil, &RetrieverConfig{TopK: 3})
	passages, err := r.Retrieve(context.Background(), "query", chunks)
	require.NoError(t, err)
	require.Len(t, passages, 3)

	assert.Equal(t, 1, passages[0].Chunk.Index)
	assert.Equal(t, 2, passages[1].Chunk.Index)
	assert.Equal(t, 0, passages[2].Chunk.Index)
	assert.InDelta(t, 1.0, passages[0].Similarity, 1e-9)
	assert.InDelta(t, 0.6, passages[1].Similarity, 1e-6)
}

func TestRetriever_Retrieve_TieBreaksByChunkIndex(t *testing.T) {
	embedder := vectorEmbedder(map[string][]float32{
		"query": {1, 0},
		"x":     {1, 0},
		"y":     {1, 0},
		"z":     {1, 0},
	})
	chunks := []Chunk{
		{Index: 0, Text: "z"},
		{Index: 1, Text: "x"},
		{Index: 2, Text: "y"},
	}

	r := NewRetriever(embedder, nil, &RetrieverConfig{TopK: 3})
	passages, err := r.Retrieve(context.Background(), "query", chunks)
	require.NoError(t, err)

	for i, p := range passages {
		assert.Equal(t, i, p.Chunk.Index)
	}
}

func TestRetriever_Retrieve_CapsAtTopK(t *testing.T) {
	chunks := make([]Chunk, 10)
	for i := range chunks {
		chunks[i] = Chunk{Index: i, Text: "t"}
	}

	r := NewRetriever(&fakeEmbedder{}, nil, &RetrieverConfig{TopK: 3})
	passages, err := r.Retrieve(context.Background(), "q", chunks)
	require.NoError(t, err)
	assert.Len(t, passages, 3)
}

func TestRetriever_Retrieve_Deterministic(t *testing.T) {
	chunks := []Chunk{
		{Index: 0, Text: "alpha"},
		{Index: 1, Text: "beta"},
		{Index: 2, Text: "gamma"},
		{Index: 3, Text: "delta"},
	}
	// 批大小 1 强制多批次，验证并发批次不影响排序确定性
	r := NewRetriever(&fakeEmbedder{}, nil, &RetrieverConfig{TopK: 4, BatchSize: 1})

	first, err := r.Retrieve(context.Background(), "alpha", chunks)
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		again, err := r.Retrieve(context.Background(), "alpha", chunks)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestRetriever_Retrieve_EmptyChunks(t *testing.T) {
	r := NewRetriever(&fakeEmbedder{}, nil, &RetrieverConfig{TopK: 3})
	passages, err := r.Retrieve(context.Background(), "q", nil)
	require.NoError(t, err)
	assert.Nil(t, passages)
}

func TestRetriever_Retrieve_EmbedFailure(t *testing.T) {
	r := NewRetriever(&fakeEmbedder{failAll: true}, nil, &RetrieverConfig{TopK: 3})
	_, err := r.Retrieve(context.Background(), "q", []Chunk{{Index: 0, Text: "a"}})
	assert.Error(t, err)
}

func TestRetriever_Retrieve_CountMismatch(t *testing.T) {
	embedder := &fakeEmbedder{
		embedFunc: func(ctx context.Context, texts []string) ([][]float32, error) {
			return [][]float32{{1, 0}}, nil
		},
	}
	r := NewRetriever(embedder, nil, &RetrieverConfig{TopK: 3})
	_, err := r.Retrieve(context.Background(), "q", []Chunk{
		{Index: 0, Text: "a"},
		{Index: 1, Text: "b"},
	})
	assert.ErrorContains(t, err, "mismatch")
}

func TestFirstKPassages(t *testing.T) {
	chunks := []Chunk{
		{Index: 0, Text: "a"},
		{Index: 1, Text: "b"},
		{Index: 2, Text: "c"},
	}

	t.Run("取前 k 个且得分为零", func(t *testing.T) {
		passages := FirstKPassages(chunks, 2)
		require.Len(t, passages, 2)
		assert.Equal(t, 0, passages[0].Chunk.Index)
		assert.Equal(t, 1, passages[1].Chunk.Index)
		for _, p := range passages {
			assert.Zero(t, p.Similarity)
		}
	})

	t.Run("k 超过分块数时全部返回", func(t *testing.T) {
		assert.Len(t, FirstKPassages(chunks, 10), 3)
	})
}
