// Package textutil 提供问答流水线相关的文本处理工具函数。
package textutil

import (
	"math"
	"strings"
	"unicode"
	"unicode/utf8"
)

// CosineSimilarity 计算两个向量的余弦相似度。
// 返回值范围为 [-1, 1]，1 表示完全相同，-1 表示完全相反。
// 维度不匹配或向量为空时返回 0。
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dotProduct, normA, normB float64
	for i := range a {
		dotProduct += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	return dotProduct / (math.Sqrt(normA) * math.Sqrt(normB))
}

// TruncateRunes 截断字符串到指定的最大 Unicode 字符数。
func TruncateRunes(s string, maxLen int) string {
	if maxLen <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= maxLen {
		return s
	}
	runes := []rune(s)
	return string(runes[:maxLen])
}

// CJKRatio 计算文本中 CJK 字符占全部字母类字符的比例。
// 空白、数字和标点不计入分母；文本没有字母类字符时返回 0。
func CJKRatio(s string) float64 {
	var total, cjk int
	for _, r := range s {
		if !unicode.IsLetter(r) {
			continue
		}
		total++
		if isCJK(r) {
			cjk++
		}
	}
	if total == 0 {
		return 0
	}
	return float64(cjk) / float64(total)
}

// isCJK 判断 rune 是否属于 CJK 统一表意文字及其扩展区。
func isCJK(r rune) bool {
	return unicode.Is(unicode.Han, r) ||
		(r >= 0x3040 && r <= 0x30FF) || // 日文假名
		(r >= 0xAC00 && r <= 0xD7AF) // 韩文音节
}

// FirstLines 返回文本的前 n 个非空行（去除首尾空白）。
func FirstLines(s string, n int) []string {
	if n <= 0 {
		return nil
	}
	var result []string
	for _, line := range strings.Split(s, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		result = append(result, line)
		if len(result) == n {
			break
		}
	}
	return result
}
