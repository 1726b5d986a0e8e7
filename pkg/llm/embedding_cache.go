package llm

import (
	"container/list"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"sync"

	"github.com/kart-io/logger"
)

// EmbeddingCacheConfig Embedding 缓存配置。
type EmbeddingCacheConfig struct {
	// Enabled 是否启用缓存。
	Enabled bool
	// MaxEntries 缓存最大条目数，超出后按 LRU 淘汰。
	MaxEntries int
	// KeyPrefix 缓存键前缀，用于区分不同模型。
	KeyPrefix string
}

// DefaultEmbeddingCacheConfig 返回默认的 Embedding 缓存配置。
// 同一篇文档被多次提问时，分块文本完全相同，缓存可省掉整批嵌入调用。
func DefaultEmbeddingCacheConfig() *EmbeddingCacheConfig {
	return &EmbeddingCacheConfig{
		Enabled:    true,
		MaxEntries: 8192,
		KeyPrefix:  "emb:",
	}
}

// CachedEmbeddingProvider 提供进程内 LRU 缓存的 Embedding 包装器。
type CachedEmbeddingProvider struct {
	provider EmbeddingProvider
	config   *EmbeddingCacheConfig

	mu      sync.Mutex
	entries map[string]*list.Element
	order   *list.List // 队首最新，队尾最旧
}

type cacheEntry struct {
	key       string
	embedding []float32
}

// NewCachedEmbeddingProvider 创建带缓存的 Embedding Provider。
func NewCachedEmbeddingProvider(provider EmbeddingProvider, config *EmbeddingCacheConfig) *CachedEmbeddingProvider {
	if config == nil {
		config = DefaultEmbeddingCacheConfig()
	}
	return &CachedEmbeddingProvider{
		provider: provider,
		config:   config,
		entries:  make(map[string]*list.Element),
		order:    list.New(),
	}
}

// cacheKey 基于文本生成缓存键（SHA256 哈希）。
func (c *CachedEmbeddingProvider) cacheKey(text string) string {
	hash := sha256.Sum256([]byte(text))
	return c.config.KeyPrefix + hex.EncodeToString(hash[:])
}

func (c *CachedEmbeddingProvider) get(key string) ([]float32, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	c.order.MoveToFront(elem)
	return elem.Value.(*cacheEntry).embedding, true
}

func (c *CachedEmbeddingProvider) put(key string, embedding []float32) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.entries[key]; ok {
		c.order.MoveToFront(elem)
		elem.Value.(*cacheEntry).embedding = embedding
		return
	}

	c.entries[key] = c.order.PushFront(&cacheEntry{key: key, embedding: embedding})

	for c.config.MaxEntries > 0 && c.order.Len() > c.config.MaxEntries {
		oldest := c.order.Back()
		if oldest == nil {
			break
		}
		c.order.Remove(oldest)
		delete(c.entries, oldest.Value.(*cacheEntry).key)
	}
}

// EmbedSingle 生成单个文本的 Embedding（带缓存）。
func (c *CachedEmbeddingProvider) EmbedSingle(ctx context.Context, text string) ([]float32, error) {
	if !c.config.Enabled {
		return c.provider.EmbedSingle(ctx, text)
	}

	key := c.cacheKey(text)
	if embedding, ok := c.get(key); ok {
		logger.Debugw("embedding cache hit", "text_length", len(text))
		return embedding, nil
	}

	embedding, err := c.provider.EmbedSingle(ctx, text)
	if err != nil {
		return nil, err
	}
	c.put(key, embedding)
	return embedding, nil
}

// Embed 批量生成 Embedding（带缓存）。
// 仅对未命中的文本发起一次批量请求，并保持原有顺序。
func (c *CachedEmbeddingProvider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if !c.config.Enabled {
		return c.provider.Embed(ctx, texts)
	}

	embeddings := make([][]float32, len(texts))
	var uncachedIndices []int
	var uncachedTexts []string

	for i, text := range texts {
		if embedding, ok := c.get(c.cacheKey(text)); ok {
			embeddings[i] = embedding
			continue
		}
		uncachedIndices = append(uncachedIndices, i)
		uncachedTexts = append(uncachedTexts, text)
	}

	if len(uncachedTexts) == 0 {
		logger.Debugw("all embeddings from cache", "total", len(texts))
		return embeddings, nil
	}

	logger.Debugw("embedding cache miss (batch)",
		"total", len(texts),
		"uncached", len(uncachedTexts),
	)

	uncachedEmbeddings, err := c.provider.Embed(ctx, uncachedTexts)
	if err != nil {
		return nil, err
	}

	for i, idx := range uncachedIndices {
		embeddings[idx] = uncachedEmbeddings[i]
		c.put(c.cacheKey(uncachedTexts[i]), uncachedEmbeddings[i])
	}

	return embeddings, nil
}

// Name 返回底层 provider 的名称。
func (c *CachedEmbeddingProvider) Name() string {
	return c.provider.Name() + "-cached"
}

// Len 返回当前缓存条目数。
func (c *CachedEmbeddingProvider) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

var _ EmbeddingProvider = (*CachedEmbeddingProvider)(nil)
