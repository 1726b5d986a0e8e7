package biz

import (
	"context"
	"fmt"

	"github.com/kart-io/paperqa/pkg/llm"
	"github.com/kart-io/paperqa/pkg/utils/json"
)

// doneFrame 流结束哨兵，与任何内容块都不同。
const doneFrame = "data: [DONE]\n\n"

// wireChunk 是 OpenAI chat.completion.chunk 兼容的流式信封。
type wireChunk struct {
	Object  string       `json:"object"`
	Choices []wireChoice `json:"choices"`
}

type wireChoice struct {
	Delta wireDelta `json:"delta"`
}

type wireDelta struct {
	Content string `json:"content"`
}

// encodeFrame 将一段内容包装为 SSE 帧。
func encodeFrame(content string) string {
	payload, err := json.Marshal(wireChunk{
		Object: "chat.completion.chunk",
		Choices: []wireChoice{
			{Delta: wireDelta{Content: content}},
		},
	})
	if err != nil {
		// 信封结构固定，序列化不应失败；退化为转义后的手写信封
		return "data: {\"object\":\"chat.completion.chunk\",\"choices\":[{\"delta\":{\"content\":\"\"}}]}\n\n"
	}
	return fmt.Sprintf("data: %s\n\n", payload)
}

// AnswerStreamer 驱动最终的答案生成调用并转发增量输出。
type AnswerStreamer struct {
	chat llm.ChatProvider
}

// NewAnswerStreamer 创建答案流式生成器。
func NewAnswerStreamer(chat llm.ChatProvider) *AnswerStreamer {
	return &AnswerStreamer{chat: chat}
}

// Stream 发起流式答案生成。返回的通道承载文本增量，
// 生成结束或出错后关闭；出错时最后一个元素携带 Err。
// 增量一到即转发，不做任何缓冲。
func (s *AnswerStreamer) Stream(ctx context.Context, qc *QueryContext, doc *Document, evidence Evidence) (<-chan llm.StreamDelta, error) {
	prompt := answerPrompt(qc.RawQuery, doc, evidence, qc.Language)
	return s.chat.Stream(ctx, prompt, "")
}
