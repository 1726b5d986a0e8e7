package llm

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// countingProvider 统计底层调用次数。
type countingProvider struct {
	embedCalls atomic.Int64
	textsSeen  atomic.Int64
}

func (c *countingProvider) Embed(_ context.Context, texts []string) ([][]float32, error) {
	c.embedCalls.Add(1)
	c.textsSeen.Add(int64(len(texts)))
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = []float32{float32(len(t))}
	}
	return out, nil
}

func (c *countingProvider) EmbedSingle(ctx context.Context, text string) ([]float32, error) {
	embeddings, err := c.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return embeddings[0], nil
}

func (c *countingProvider) Name() string { return "counting" }

func TestCachedEmbeddingProvider_BatchHitSkipsProvider(t *testing.T) {
	inner := &countingProvider{}
	cached := NewCachedEmbeddingProvider(inner, nil)
	ctx := context.Background()

	texts := []string{"alpha", "beta", "gamma"}

	first, err := cached.Embed(ctx, texts)
	require.NoError(t, err)
	assert.Equal(t, int64(1), inner.embedCalls.Load())
	assert.Equal(t, int64(3), inner.textsSeen.Load())

	// 第二次全部命中缓存，底层不再被调用
	second, err := cached.Embed(ctx, texts)
	require.NoError(t, err)
	assert.Equal(t, int64(1), inner.embedCalls.Load())
	assert.Equal(t, first, second)
}

func TestCachedEmbeddingProvider_PartialMiss(t *testing.T) {
	inner := &countingProvider{}
	cached := NewCachedEmbeddingProvider(inner, nil)
	ctx := context.Background()

	_, err := cached.Embed(ctx, []string{"alpha", "beta"})
	require.NoError(t, err)

	// alpha/beta 命中，delta 未命中，底层只看到 1 个文本
	_, err = cached.Embed(ctx, []string{"alpha", "delta", "beta"})
	require.NoError(t, err)

	assert.Equal(t, int64(2), inner.embedCalls.Load())
	assert.Equal(t, int64(3), inner.textsSeen.Load())
}

func TestCachedEmbeddingProvider_LRUEviction(t *testing.T) {
	inner := &countingProvider{}
	cached := NewCachedEmbeddingProvider(inner, &EmbeddingCacheConfig{
		Enabled:    true,
		MaxEntries: 2,
		KeyPrefix:  "emb:",
	})
	ctx := context.Background()

	_, err := cached.Embed(ctx, []string{"a", "b", "c"})
	require.NoError(t, err)
	assert.Equal(t, 2, cached.Len())
}

func TestCachedEmbeddingProvider_Disabled(t *testing.T) {
	inner := &countingProvider{}
	cached := NewCachedEmbeddingProvider(inner, &EmbeddingCacheConfig{Enabled: false})
	ctx := context.Background()

	_, err := cached.EmbedSingle(ctx, "x")
	require.NoError(t, err)
	_, err = cached.EmbedSingle(ctx, "x")
	require.NoError(t, err)

	assert.Equal(t, int64(2), inner.embedCalls.Load())
	assert.Equal(t, 0, cached.Len())
}

func TestCachedEmbeddingProvider_Name(t *testing.T) {
	cached := NewCachedEmbeddingProvider(&countingProvider{}, nil)
	assert.Equal(t, "counting-cached", cached.Name())
}
