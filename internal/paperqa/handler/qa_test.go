package handler_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kart-io/paperqa/internal/paperqa/biz"
	"github.com/kart-io/paperqa/internal/paperqa/handler"
	"github.com/kart-io/paperqa/internal/paperqa/router"
	"github.com/kart-io/paperqa/pkg/llm"
	apierrors "github.com/kart-io/paperqa/pkg/utils/errors"
)

// stubChat 对所有阶段返回固定内容的 ChatProvider。
type stubChat struct{}

func (stubChat) Generate(ctx context.Context, prompt, systemPrompt string) (*llm.GenerateResponse, error) {
	return &llm.GenerateResponse{Content: "Passage 1"}, nil
}

func (stubChat) Stream(ctx context.Context, prompt, systemPrompt string) (<-chan llm.StreamDelta, error) {
	out := make(chan llm.StreamDelta, 2)
	out <- llm.StreamDelta{Content: "The answer"}
	out <- llm.StreamDelta{Content: "."}
	close(out)
	return out, nil
}

func (stubChat) Name() string { return "stub-chat" }

type stubEmbedder struct{}

func (stubEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{1, 0}
	}
	return out, nil
}

func (stubEmbedder) EmbedSingle(ctx context.Context, text string) ([]float32, error) {
	return []float32{1, 0}, nil
}

func (stubEmbedder) Name() string { return "stub-embedder" }

func newTestEngine(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	svc, err := biz.NewService(
		biz.NewTextSource(stubChat{}),
		biz.NewAnalyzer(stubChat{}),
		biz.NewRetriever(stubEmbedder{}, nil, &biz.RetrieverConfig{TopK: 3}),
		biz.NewEvidenceFilter(stubChat{}, &biz.FilterConfig{MaxPassages: 3, FallbackMaxChars: 200}),
		biz.NewAnswerStreamer(stubChat{}),
		&biz.Config{
			ChunkSize:                 200,
			ChunkOverlap:              40,
			TopK:                      3,
			MaxEvidencePassages:       3,
			EvidenceFallbackMaxChars:  200,
			HeartbeatInterval:         time.Hour,
			ParseHeartbeatInterval:    time.Hour,
			AnalysisHeartbeatInterval: time.Hour,
			ParseTimeout:              5 * time.Second,
			AnalysisTimeout:           5 * time.Second,
			RetrievalTimeout:          5 * time.Second,
			FilterTimeout:             5 * time.Second,
			AnswerTimeout:             5 * time.Second,
			OverallTimeout:            30 * time.Second,
		},
	)
	require.NoError(t, err)

	engine := gin.New()
	router.Register(engine, handler.NewQAHandler(svc))
	return engine
}

func TestQAHandler_Ask_StreamsSSE(t *testing.T) {
	engine := newTestEngine(t)

	body := `{"query": "What is the main contribution?", "pdf_content": "A Study of Streaming Pipelines\n\nThis paper proposes a staged approach to question answering over documents."}`
	req := httptest.NewRequest(http.MethodPost, "/v1/paper_qa", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()

	engine.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/event-stream")
	assert.Equal(t, "no", w.Header().Get("X-Accel-Buffering"))

	out := w.Body.String()
	assert.Contains(t, out, `data: {"object":"chat.completion.chunk"`)
	assert.Contains(t, out, "Step 1/5")
	assert.Contains(t, out, "The answer")
	assert.True(t, strings.HasSuffix(out, "data: [DONE]\n\n"))
}

func TestQAHandler_Ask_ValidationFailures(t *testing.T) {
	engine := newTestEngine(t)

	tests := []struct {
		name string
		body string
	}{
		{"缺少 query", `{"pdf_content": "some document"}`},
		{"空白 query", `{"query": "   ", "pdf_content": "some document"}`},
		{"非法 JSON", `{"query": `},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/v1/paper_qa", strings.NewReader(tt.body))
			req.Header.Set("Content-Type", "application/json")
			w := httptest.NewRecorder()

			engine.ServeHTTP(w, req)

			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Contains(t, w.Body.String(), "code")
		})
	}
}

func TestQAHandler_Ask_EmptyDocument(t *testing.T) {
	engine := newTestEngine(t)

	tests := []struct {
		name string
		body string
	}{
		{"缺少 pdf_content", `{"query": "what?"}`},
		{"空白 pdf_content", `{"query": "what?", "pdf_content": "  \n\t "}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/v1/paper_qa", strings.NewReader(tt.body))
			req.Header.Set("Content-Type", "application/json")
			w := httptest.NewRecorder()

			engine.ServeHTTP(w, req)

			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Contains(t, w.Body.String(), strconv.Itoa(apierrors.ErrEmptyDocument.Code))
		})
	}
}

func TestQAHandler_Health(t *testing.T) {
	engine := newTestEngine(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"ok"`)
}

func TestQAHandler_Metrics(t *testing.T) {
	engine := newTestEngine(t)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/plain")
	assert.Contains(t, w.Body.String(), "paperqa_pipeline_requests_total")
}

func TestQAHandler_Stats(t *testing.T) {
	engine := newTestEngine(t)

	req := httptest.NewRequest(http.MethodGet, "/v1/paper_qa/stats", nil)
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "fallbacks")
}
