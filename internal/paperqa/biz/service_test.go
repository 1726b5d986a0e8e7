package biz

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kart-io/paperqa/internal/pkg/qa/textutil"
	"github.com/kart-io/paperqa/pkg/llm"
	apierrors "github.com/kart-io/paperqa/pkg/utils/errors"
)

const testPaperText = "Streaming pipelines decompose question answering into staged phases. " +
	"Each phase has an explicit time budget and a local fallback. " +
	"Keepalive chunks hold the connection open during slow phases. " +
	"The final answer is streamed incrementally as the model produces it."

// testConfig 返回各阶段余量充足、保活间隔足够长（测试中不触发）的配置。
func testConfig() *Config {
	return &Config{
		ChunkSize:                 120,
		ChunkOverlap:              20,
		TopK:                      3,
		MaxEvidencePassages:       3,
		EvidenceFallbackMaxChars:  80,
		HeartbeatInterval:         time.Hour,
		ParseHeartbeatInterval:    time.Hour,
		AnalysisHeartbeatInterval: time.Hour,
		ParseTimeout:              time.Second,
		AnalysisTimeout:           time.Second,
		RetrievalTimeout:          time.Second,
		FilterTimeout:             time.Second,
		AnswerTimeout:             time.Second,
		OverallTimeout:            5 * time.Second,
	}
}

// pipelineChat 按提示词内容分发各阶段回复的 ChatProvider 测试替身。
func pipelineChat(filterReply string, deltas ...llm.StreamDelta) *fakeChat {
	return &fakeChat{
		generateFunc: func(ctx context.Context, prompt, systemPrompt string) (*llm.GenerateResponse, error) {
			switch {
			case strings.Contains(prompt, "Document Text:") || strings.Contains(prompt, "文档文本"):
				return &llm.GenerateResponse{Content: "Title: Streaming Pipelines\nAbstract: staged QA."}, nil
			case strings.Contains(prompt, "Retrieved Passages") || strings.Contains(prompt, "检索到的段落"):
				return &llm.GenerateResponse{Content: filterReply}, nil
			default:
				return &llm.GenerateResponse{Content: "**Question Type**: factual"}, nil
			}
		},
		streamFunc: staticStream(deltas...),
	}
}

func newTestService(t *testing.T, chat llm.ChatProvider, embedder llm.EmbeddingProvider, cfg *Config) *Service {
	t.Helper()
	svc, err := NewService(
		NewTextSource(chat),
		NewAnalyzer(chat),
		NewRetriever(embedder, nil, &RetrieverConfig{TopK: cfg.TopK}),
		NewEvidenceFilter(chat, &FilterConfig{
			MaxPassages:      cfg.MaxEvidencePassages,
			FallbackMaxChars: cfg.EvidenceFallbackMaxChars,
		}),
		NewAnswerStreamer(chat),
		cfg,
	)
	require.NoError(t, err)
	return svc
}

func collectFrames(t *testing.T, out <-chan string) []string {
	t.Helper()
	var frames []string
	timeout := time.After(10 * time.Second)
	for {
		select {
		case frame, ok := <-out:
			if !ok {
				return frames
			}
			frames = append(frames, frame)
		case <-timeout:
			t.Fatal("pipeline channel did not close in time")
		}
	}
}

// decodeContents 提取全部内容帧的文本，结束哨兵除外。
func decodeContents(t *testing.T, frames []string) []string {
	t.Helper()
	var contents []string
	for _, frame := range frames {
		if frame == doneFrame {
			continue
		}
		payload := strings.TrimSuffix(strings.TrimPrefix(frame, "data: "), "\n\n")
		var chunk wireChunk
		require.NoError(t, json.Unmarshal([]byte(payload), &chunk))
		require.Len(t, chunk.Choices, 1)
		contents = append(contents, chunk.Choices[0].Delta.Content)
	}
	return contents
}

func TestService_RunPipeline_HappyPath(t *testing.T) {
	chat := pipelineChat("Passage 1 and Passage 2 are relevant.",
		llm.StreamDelta{Content: "Hello"},
		llm.StreamDelta{Content: " world"},
	)
	svc := newTestService(t, chat, &fakeEmbedder{}, testConfig())

	frames := collectFrames(t, svc.RunPipeline(context.Background(), "What is streamed?", testPaperText))

	require.NotEmpty(t, frames)
	assert.Equal(t, doneFrame, frames[len(frames)-1])

	contents := decodeContents(t, frames)
	expected := []string{
		enMessages.Step1,
		enMessages.Step2,
		enMessages.Step3,
		enMessages.Step4,
		enMessages.Step5,
		enMessages.FinalTitle,
		"Hello",
		" world",
	}
	assert.Equal(t, expected, contents)
}

func TestService_RunPipeline_ChineseBanners(t *testing.T) {
	chat := pipelineChat("段落 1 最相关。", llm.StreamDelta{Content: "答案"})
	svc := newTestService(t, chat, &fakeEmbedder{}, testConfig())

	frames := collectFrames(t, svc.RunPipeline(context.Background(), "论文的主要贡献是什么？", testPaperText))
	contents := decodeContents(t, frames)

	require.NotEmpty(t, contents)
	assert.Equal(t, zhMessages.Step1, contents[0])
	assert.Contains(t, contents, zhMessages.FinalTitle)
	assert.Equal(t, doneFrame, frames[len(frames)-1])
}

func TestService_RunPipeline_ParseErrorTerminatesEarly(t *testing.T) {
	chat := pipelineChat("Passage 1")
	svc := newTestService(t, chat, &fakeEmbedder{}, testConfig())

	frames := collectFrames(t, svc.RunPipeline(context.Background(), "What?", "   "))

	require.Len(t, frames, 2)
	contents := decodeContents(t, frames)
	assert.Contains(t, contents[0], "PDF parsing failed")
	assert.Equal(t, doneFrame, frames[1])
}

func TestService_RunPipeline_FilterFailureFallsBackToFullText(t *testing.T) {
	var answerPromptSeen string
	chat := pipelineChat("none of these are relevant", llm.StreamDelta{Content: "answer"})
	chat.streamFunc = func(ctx context.Context, prompt, systemPrompt string) (<-chan llm.StreamDelta, error) {
		answerPromptSeen = prompt
		return staticStream(llm.StreamDelta{Content: "answer"})(ctx, prompt, systemPrompt)
	}

	cfg := testConfig()
	svc := newTestService(t, chat, &fakeEmbedder{}, cfg)

	frames := collectFrames(t, svc.RunPipeline(context.Background(), "What is streamed?", testPaperText))

	// 筛选回复不含任何段落编号，证据回退为截断后的全文
	truncated := textutil.TruncateRunes(testPaperText, cfg.EvidenceFallbackMaxChars)
	assert.Contains(t, answerPromptSeen, truncated)
	assert.Equal(t, doneFrame, frames[len(frames)-1])
	assert.Contains(t, decodeContents(t, frames), "answer")
}

func TestService_RunPipeline_EmbedderFailureStillCompletes(t *testing.T) {
	var filterPromptSeen string
	chat := &fakeChat{
		generateFunc: func(ctx context.Context, prompt, systemPrompt string) (*llm.GenerateResponse, error) {
			if strings.Contains(prompt, "Retrieved Passages") {
				filterPromptSeen = prompt
				return &llm.GenerateResponse{Content: "Passage 1"}, nil
			}
			return &llm.GenerateResponse{Content: "parsed"}, nil
		},
		streamFunc: staticStream(llm.StreamDelta{Content: "answer"}),
	}
	svc := newTestService(t, chat, &fakeEmbedder{failAll: true}, testConfig())

	frames := collectFrames(t, svc.RunPipeline(context.Background(), "What is streamed?", testPaperText))

	// 嵌入服务不可用时检索回退为前 TopK 个分块，流水线仍完整走完
	assert.Contains(t, filterPromptSeen, "段落 1")
	assert.Contains(t, filterPromptSeen, testPaperText[:40])
	contents := decodeContents(t, frames)
	assert.Contains(t, contents, enMessages.Step5)
	assert.Contains(t, contents, "answer")
	assert.Equal(t, doneFrame, frames[len(frames)-1])
}

func TestService_RunPipeline_OverallTimeout(t *testing.T) {
	slowChat := &fakeChat{
		generateFunc: func(ctx context.Context, prompt, systemPrompt string) (*llm.GenerateResponse, error) {
			select {
			case <-time.After(time.Second):
				return &llm.GenerateResponse{Content: "too late"}, nil
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		},
	}
	cfg := testConfig()
	cfg.OverallTimeout = 50 * time.Millisecond

	svc := newTestService(t, slowChat, &fakeEmbedder{delay: time.Second}, cfg)

	started := time.Now()
	frames := collectFrames(t, svc.RunPipeline(context.Background(), "What?", testPaperText))
	elapsed := time.Since(started)

	// 整体预算耗尽后以超时文案收尾，远早于各阶段自身的超时
	assert.Less(t, elapsed, 2*time.Second)
	contents := decodeContents(t, frames)
	require.NotEmpty(t, contents)
	last := contents[len(contents)-1]
	assert.Contains(t, last, "Timeout Error")
	assert.Equal(t, doneFrame, frames[len(frames)-1])
	// 降级文档路径的提示也应出现
	assert.Contains(t, contents, enMessages.ParseTimeout)
	assert.Contains(t, contents, enMessages.ParseFallback)
}

func TestService_RunPipeline_EmptyAnswer(t *testing.T) {
	chat := pipelineChat("Passage 1")
	chat.streamFunc = staticStream() // 无任何增量

	svc := newTestService(t, chat, &fakeEmbedder{}, testConfig())
	frames := collectFrames(t, svc.RunPipeline(context.Background(), "What?", testPaperText))

	contents := decodeContents(t, frames)
	require.NotEmpty(t, contents)
	assert.Contains(t, contents[len(contents)-1], "generated answer is empty")
	assert.Equal(t, doneFrame, frames[len(frames)-1])
}

func TestService_RunPipeline_MidStreamError(t *testing.T) {
	chat := pipelineChat("Passage 1",
		llm.StreamDelta{Content: "partial"},
		llm.StreamDelta{Err: errors.New("stream broken")},
	)
	svc := newTestService(t, chat, &fakeEmbedder{}, testConfig())

	frames := collectFrames(t, svc.RunPipeline(context.Background(), "What?", testPaperText))
	contents := decodeContents(t, frames)

	require.GreaterOrEqual(t, len(contents), 2)
	assert.Contains(t, contents, "partial")
	assert.Contains(t, contents[len(contents)-1], "Answer generation failed")
	assert.Equal(t, doneFrame, frames[len(frames)-1])
}

func TestService_RunPipeline_AnalysisFailureDegradesAndContinues(t *testing.T) {
	chat := &fakeChat{
		generateFunc: func(ctx context.Context, prompt, systemPrompt string) (*llm.GenerateResponse, error) {
			switch {
			case strings.Contains(prompt, "Document Text:"):
				return &llm.GenerateResponse{Content: "parsed"}, nil
			case strings.Contains(prompt, "Retrieved Passages"):
				return &llm.GenerateResponse{Content: "Passage 1"}, nil
			default:
				return nil, errors.New("analysis backend down")
			}
		},
		streamFunc: staticStream(llm.StreamDelta{Content: "answer"}),
	}
	svc := newTestService(t, chat, &fakeEmbedder{}, testConfig())

	frames := collectFrames(t, svc.RunPipeline(context.Background(), "What is streamed?", testPaperText))
	contents := decodeContents(t, frames)

	// 分析失败对用户可见，之后以原始问题降级继续直至答案
	joined := strings.Join(contents, "")
	assert.Contains(t, joined, "Question analysis failed")
	assert.Contains(t, contents, "answer")
	assert.Equal(t, doneFrame, frames[len(frames)-1])
}

func TestService_RunPipeline_NoKeepaliveAfterFirstDelta(t *testing.T) {
	chat := pipelineChat("Passage 1")
	chat.streamFunc = func(ctx context.Context, prompt, systemPrompt string) (<-chan llm.StreamDelta, error) {
		out := make(chan llm.StreamDelta)
		go func() {
			defer close(out)
			time.Sleep(60 * time.Millisecond)
			out <- llm.StreamDelta{Content: "first"}
			time.Sleep(60 * time.Millisecond)
			out <- llm.StreamDelta{Content: "second"}
		}()
		return out, nil
	}

	cfg := testConfig()
	cfg.HeartbeatInterval = 10 * time.Millisecond

	svc := newTestService(t, chat, &fakeEmbedder{}, cfg)
	frames := collectFrames(t, svc.RunPipeline(context.Background(), "What?", testPaperText))
	contents := decodeContents(t, frames)

	firstDelta := -1
	for i, c := range contents {
		if c == "first" {
			firstDelta = i
			break
		}
	}
	require.GreaterOrEqual(t, firstDelta, 0)

	// 答案开始前必须有保活；第一个真实增量之后不允许再出现
	assert.Contains(t, contents[:firstDelta], heartbeatContent)
	for _, c := range contents[firstDelta:] {
		assert.NotEqual(t, heartbeatContent, c)
	}
}

func TestService_RunPipeline_ClientDisconnect(t *testing.T) {
	chat := pipelineChat("Passage 1",
		llm.StreamDelta{Content: "a"},
		llm.StreamDelta{Content: "b"},
	)
	svc := newTestService(t, chat, &fakeEmbedder{}, testConfig())

	ctx, cancel := context.WithCancel(context.Background())
	out := svc.RunPipeline(ctx, "What?", testPaperText)

	// 读取一帧后断开，通道必须在有限时间内关闭
	<-out
	cancel()

	deadline := time.After(5 * time.Second)
	for {
		select {
		case _, ok := <-out:
			if !ok {
				return
			}
		case <-deadline:
			t.Fatal("pipeline channel did not close after client disconnect")
		}
	}
}

func TestNewService_RejectsInvalidConfig(t *testing.T) {
	cfg := testConfig()
	cfg.ChunkOverlap = cfg.ChunkSize

	_, err := NewService(
		NewTextSource(&fakeChat{}),
		NewAnalyzer(&fakeChat{}),
		NewRetriever(&fakeEmbedder{}, nil, &RetrieverConfig{TopK: 3}),
		NewEvidenceFilter(&fakeChat{}, &FilterConfig{MaxPassages: 3, FallbackMaxChars: 80}),
		NewAnswerStreamer(&fakeChat{}),
		cfg,
	)
	assert.ErrorIs(t, err, apierrors.ErrConfiguration)
}

func TestConfig_Validate(t *testing.T) {
	t.Run("合法配置", func(t *testing.T) {
		assert.NoError(t, testConfig().Validate())
	})

	t.Run("缺失超时", func(t *testing.T) {
		cfg := testConfig()
		cfg.AnswerTimeout = 0
		assert.Error(t, cfg.Validate())
	})

	t.Run("TopK 非正", func(t *testing.T) {
		cfg := testConfig()
		cfg.TopK = 0
		assert.Error(t, cfg.Validate())
	})
}
