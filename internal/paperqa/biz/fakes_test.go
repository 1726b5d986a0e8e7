package biz

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/kart-io/paperqa/pkg/llm"
)

// fakeChat 可编程的 ChatProvider 测试替身。
type fakeChat struct {
	generateFunc  func(ctx context.Context, prompt, systemPrompt string) (*llm.GenerateResponse, error)
	streamFunc    func(ctx context.Context, prompt, systemPrompt string) (<-chan llm.StreamDelta, error)
	generateCalls atomic.Int64
}

func (f *fakeChat) Generate(ctx context.Context, prompt, systemPrompt string) (*llm.GenerateResponse, error) {
	f.generateCalls.Add(1)
	if f.generateFunc != nil {
		return f.generateFunc(ctx, prompt, systemPrompt)
	}
	return &llm.GenerateResponse{Content: "ok"}, nil
}

func (f *fakeChat) Stream(ctx context.Context, prompt, systemPrompt string) (<-chan llm.StreamDelta, error) {
	if f.streamFunc != nil {
		return f.streamFunc(ctx, prompt, systemPrompt)
	}
	out := make(chan llm.StreamDelta, 1)
	out <- llm.StreamDelta{Content: "answer"}
	close(out)
	return out, nil
}

func (f *fakeChat) Name() string { return "fake-chat" }

// staticStream 构造一个按序吐出 deltas 的 streamFunc。
func staticStream(deltas ...llm.StreamDelta) func(context.Context, string, string) (<-chan llm.StreamDelta, error) {
	return func(ctx context.Context, prompt, systemPrompt string) (<-chan llm.StreamDelta, error) {
		out := make(chan llm.StreamDelta, len(deltas))
		for _, d := range deltas {
			out <- d
		}
		close(out)
		return out, nil
	}
}

// fakeEmbedder 可编程的 EmbeddingProvider 测试替身。
// embedFunc 为空时返回以文本首字符编码为分量的确定性向量。
type fakeEmbedder struct {
	embedFunc func(ctx context.Context, texts []string) ([][]float32, error)
	failAll   bool
	delay     time.Duration
}

func (f *fakeEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.failAll {
		return nil, errors.New("embedding service unavailable")
	}
	if f.embedFunc != nil {
		return f.embedFunc(ctx, texts)
	}
	out := make([][]float32, len(texts))
	for i, text := range texts {
		var lead float32
		for _, r := range text {
			lead = float32(r)
			break
		}
		out[i] = []float32{lead, 1}
	}
	return out, nil
}

func (f *fakeEmbedder) EmbedSingle(ctx context.Context, text string) ([]float32, error) {
	out, err := f.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return out[0], nil
}

func (f *fakeEmbedder) Name() string { return "fake-embedder" }
