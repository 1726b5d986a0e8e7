package biz

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/kart-io/paperqa/internal/pkg/qa/textutil"
	"github.com/kart-io/paperqa/pkg/infra/pool"
	"github.com/kart-io/paperqa/pkg/llm"
)

// defaultEmbedBatchSize 单次嵌入请求携带的分块数量。
const defaultEmbedBatchSize = 32

// RankedPassage 表示一个带相似度得分的检索结果。
type RankedPassage struct {
	Chunk Chunk
	// Similarity 余弦相似度，范围 [-1, 1]。
	Similarity float64
}

// RetrieverConfig 检索器配置。
type RetrieverConfig struct {
	// TopK 返回的结果数量。
	TopK int
	// BatchSize 单次嵌入请求的分块数量，0 使用默认值。
	BatchSize int
}

// Retriever 负责分块嵌入与相似度检索。
// 分块之间相互独立，嵌入批次并发提交到工作池。
type Retriever struct {
	embedder llm.EmbeddingProvider
	workers  *pool.Pool
	config   *RetrieverConfig
}

// NewRetriever 创建检索器实例。workers 为 nil 时批次串行执行。
func NewRetriever(embedder llm.EmbeddingProvider, workers *pool.Pool, config *RetrieverConfig) *Retriever {
	if config.BatchSize <= 0 {
		config.BatchSize = defaultEmbedBatchSize
	}
	return &Retriever{
		embedder: embedder,
		workers:  workers,
		config:   config,
	}
}

// Retrieve 对分块做嵌入并按与问题的余弦相似度排序，返回前 TopK 个。
//
// 排序确定性：相似度降序，得分相同时按分块索引升序。
// 嵌入服务失败时显式报错，由调用方决定回退策略。
func (r *Retriever) Retrieve(ctx context.Context, query string, chunks []Chunk) ([]RankedPassage, error) {
	if len(chunks) == 0 {
		return nil, nil
	}

	queryEmbedding, err := r.embedder.EmbedSingle(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	chunkEmbeddings, err := r.embedChunks(ctx, chunks)
	if err != nil {
		return nil, err
	}

	passages := make([]RankedPassage, len(chunks))
	for i, chunk := range chunks {
		passages[i] = RankedPassage{
			Chunk:      chunk,
			Similarity: textutil.CosineSimilarity(queryEmbedding, chunkEmbeddings[i]),
		}
	}

	sort.Slice(passages, func(i, j int) bool {
		if passages[i].Similarity != passages[j].Similarity {
			return passages[i].Similarity > passages[j].Similarity
		}
		return passages[i].Chunk.Index < passages[j].Chunk.Index
	})

	if len(passages) > r.config.TopK {
		passages = passages[:r.config.TopK]
	}
	return passages, nil
}

// embedChunks 分批嵌入全部分块，批次并发提交到工作池。
// 任一批次失败则整体失败。
func (r *Retriever) embedChunks(ctx context.Context, chunks []Chunk) ([][]float32, error) {
	embeddings := make([][]float32, len(chunks))

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		firstErr error
	)

	setErr := func(err error) {
		mu.Lock()
		if firstErr == nil {
			firstErr = err
		}
		mu.Unlock()
	}

	for start := 0; start < len(chunks); start += r.config.BatchSize {
		end := start + r.config.BatchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		start, end := start, end

		run := func() {
			defer wg.Done()
			if ctx.Err() != nil {
				setErr(ctx.Err())
				return
			}

			texts := make([]string, 0, end-start)
			for _, chunk := range chunks[start:end] {
				texts = append(texts, chunk.Text)
			}

			batch, err := r.embedder.Embed(ctx, texts)
			if err != nil {
				setErr(fmt.Errorf("failed to embed chunks [%d:%d]: %w", start, end, err))
				return
			}
			if len(batch) != end-start {
				setErr(fmt.Errorf("embedding count mismatch for chunks [%d:%d]: got %d", start, end, len(batch)))
				return
			}
			copy(embeddings[start:end], batch)
		}

		wg.Add(1)
		if r.workers == nil {
			run()
			continue
		}
		if err := r.workers.Submit(run); err != nil {
			// 池不可用时退回到串行执行
			run()
		}
	}

	wg.Wait()

	if firstErr != nil {
		return nil, firstErr
	}
	return embeddings, nil
}

// FirstKPassages 返回前 k 个分块、得分为 0 的降级检索结果。
// 纯本地操作，供检索阶段失败或超时时回退使用。
func FirstKPassages(chunks []Chunk, k int) []RankedPassage {
	if k > len(chunks) {
		k = len(chunks)
	}
	passages := make([]RankedPassage, 0, k)
	for _, chunk := range chunks[:k] {
		passages = append(passages, RankedPassage{Chunk: chunk, Similarity: 0.0})
	}
	return passages
}
