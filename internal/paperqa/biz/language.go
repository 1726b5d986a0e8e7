package biz

import (
	"github.com/kart-io/paperqa/internal/pkg/qa/textutil"
)

// Language 表示问答所使用的语言。
type Language string

const (
	// LanguageZH 中文。
	LanguageZH Language = "zh"
	// LanguageEN 英文。
	LanguageEN Language = "en"
)

// cjkThreshold CJK 字符占比超过该阈值时判定为中文。
const cjkThreshold = 0.3

// DetectLanguage 检测文本语言。
// 纯启发式实现，无 I/O，空文本返回英文。
func DetectLanguage(text string) Language {
	if textutil.CJKRatio(text) > cjkThreshold {
		return LanguageZH
	}
	return LanguageEN
}
