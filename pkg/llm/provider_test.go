package llm

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeProvider 测试用完整供应商。
type fakeProvider struct {
	name string
}

func (f *fakeProvider) Embed(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{float32(i), 1.0}
	}
	return out, nil
}

func (f *fakeProvider) EmbedSingle(ctx context.Context, text string) ([]float32, error) {
	embeddings, err := f.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return embeddings[0], nil
}

func (f *fakeProvider) Generate(_ context.Context, prompt, _ string) (*GenerateResponse, error) {
	return &GenerateResponse{Content: "echo: " + prompt}, nil
}

func (f *fakeProvider) Stream(_ context.Context, prompt, _ string) (<-chan StreamDelta, error) {
	ch := make(chan StreamDelta, 1)
	ch <- StreamDelta{Content: prompt}
	close(ch)
	return ch, nil
}

func (f *fakeProvider) Name() string { return f.name }

func TestRegistry_FullProviderFallback(t *testing.T) {
	RegisterProvider("fake-full", func(config map[string]any) (Provider, error) {
		return &fakeProvider{name: "fake-full"}, nil
	})

	t.Run("完整供应商可作为 Embedding 供应商", func(t *testing.T) {
		p, err := NewEmbeddingProvider("fake-full", nil)
		require.NoError(t, err)
		assert.Equal(t, "fake-full", p.Name())
	})

	t.Run("完整供应商可作为 Chat 供应商", func(t *testing.T) {
		p, err := NewChatProvider("fake-full", nil)
		require.NoError(t, err)
		assert.Equal(t, "fake-full", p.Name())
	})
}

func TestRegistry_DedicatedFactoryTakesPriority(t *testing.T) {
	RegisterProvider("fake-dual", func(config map[string]any) (Provider, error) {
		return &fakeProvider{name: "full"}, nil
	})
	RegisterChatProvider("fake-dual", func(config map[string]any) (ChatProvider, error) {
		return &fakeProvider{name: "dedicated-chat"}, nil
	})

	p, err := NewChatProvider("fake-dual", nil)
	require.NoError(t, err)
	assert.Equal(t, "dedicated-chat", p.Name())
}

func TestRegistry_UnknownProvider(t *testing.T) {
	_, err := NewProvider("no-such-provider", nil)
	assert.Error(t, err)

	_, err = NewEmbeddingProvider("no-such-provider", nil)
	assert.Error(t, err)

	_, err = NewChatProvider("no-such-provider", nil)
	assert.Error(t, err)
}

func TestRegistry_FactoryError(t *testing.T) {
	RegisterProvider("fake-broken", func(config map[string]any) (Provider, error) {
		return nil, fmt.Errorf("bad config")
	})

	_, err := NewProvider("fake-broken", nil)
	assert.ErrorContains(t, err, "bad config")
}

func TestListProviders(t *testing.T) {
	RegisterProvider("fake-listed", func(config map[string]any) (Provider, error) {
		return &fakeProvider{name: "fake-listed"}, nil
	})

	assert.Contains(t, ListProviders(), "fake-listed")
}
