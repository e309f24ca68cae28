package telegramify

import "github.com/riverfjs/telegramify-stream/internal/util"

// UTF16Len returns the length of text measured in UTF-16 code units.
//
// Telegram measures message length in UTF-16 code units, not Go string bytes
// or runes. Characters outside the BMP (codepoint > 0xFFFF) take 2 units.
func UTF16Len(text string) int {
	return util.UTF16Len(text)
}

// CountText 计算文本在 Telegram 中的有效长度（UTF-16 code units）
//
// 片段的 Body 受 SegmentCap 约束；实际发送的 Segment.Text() 还包含
// 前缀和后缀，调用方可以用它确认没有超过频道的硬性上限。
func CountText(text string) int {
	return util.UTF16Len(text)
}
