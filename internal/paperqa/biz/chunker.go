package biz

import (
	"fmt"
)

// Chunk 表示文档文本中一个连续的、可能与相邻块重叠的切片。
// CharStart/CharEnd 是按 rune 计的半开区间 [CharStart, CharEnd)。
type Chunk struct {
	Index     int
	Text      string
	CharStart int
	CharEnd   int
}

// ChunkText 将文本切分为固定大小的重叠窗口。
//
// 要求 0 <= overlap < chunkSize，否则返回配置错误。
// 产出的分块完整覆盖 [0, len(text))，每块长度不超过 chunkSize，
// 相邻块精确重叠 overlap 个字符（最后一块可以更短）。
// 纯函数：相同输入和配置必然产生相同的分块序列。
func ChunkText(text string, chunkSize, overlap int) ([]Chunk, error) {
	if chunkSize <= 0 {
		return nil, fmt.Errorf("chunk size must be positive, got %d", chunkSize)
	}
	if overlap < 0 || overlap >= chunkSize {
		return nil, fmt.Errorf("overlap must be in [0, chunk size), got overlap=%d chunk size=%d", overlap, chunkSize)
	}

	runes := []rune(text)
	if len(runes) == 0 {
		return nil, nil
	}

	step := chunkSize - overlap
	chunks := make([]Chunk, 0, len(runes)/step+1)

	for start := 0; start < len(runes); start += step {
		end := start + chunkSize
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, Chunk{
			Index:     len(chunks),
			Text:      string(runes[start:end]),
			CharStart: start,
			CharEnd:   end,
		})
		if end == len(runes) {
			break
		}
	}

	return chunks, nil
}
