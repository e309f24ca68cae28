package buffer

import (
	"strings"
	"unicode"

	"github.com/riverfjs/telegramify-stream/internal/util"
)

// TextBuffer accumulates streamed text not yet emitted as a segment and
// tracks its UTF-16 length.
type TextBuffer struct {
	parts     []string
	utf16Len  int
	byteCount int
}

// New creates a new TextBuffer.
func New() *TextBuffer {
	return &TextBuffer{
		parts: make([]string, 0),
	}
}

// Write appends text to the buffer.
func (tb *TextBuffer) Write(text string) {
	if text == "" {
		return
	}
	tb.parts = append(tb.parts, text)
	tb.utf16Len += util.UTF16Len(text)
	tb.byteCount += len(text)
}

// UTF16Len returns the buffered length in UTF-16 code units.
func (tb *TextBuffer) UTF16Len() int {
	return tb.utf16Len
}

// Len returns the buffered length in bytes.
func (tb *TextBuffer) Len() int {
	return tb.byteCount
}

// String returns the accumulated text.
func (tb *TextBuffer) String() string {
	switch len(tb.parts) {
	case 0:
		return ""
	case 1:
		return tb.parts[0]
	}
	result := make([]byte, 0, tb.byteCount)
	for _, p := range tb.parts {
		result = append(result, p...)
	}
	joined := string(result)
	tb.parts = append(tb.parts[:0], joined)
	return joined
}

// Reset clears the buffer.
func (tb *TextBuffer) Reset() {
	tb.parts = tb.parts[:0]
	tb.utf16Len = 0
	tb.byteCount = 0
}

// Drain returns everything buffered and clears the buffer.
func (tb *TextBuffer) Drain() string {
	s := tb.String()
	tb.Reset()
	return s
}

// Cut 从缓冲区头部切出一段不超过 limit 个 UTF-16 code units 的文本
//
// 切分点优先选择最后一个换行符，其次是最后一个空格（分隔符保留在切出的
// 文本末尾），都没有时在 limit 处硬切。isMarker 非 nil 时硬切退到由它
// 判定的标记字符序列之前。剩余文本去掉开头的空白后留在缓冲区。
func (tb *TextBuffer) Cut(limit int, isMarker func(byte) bool) string {
	return tb.Take(tb.Boundary(limit, isMarker))
}

// Boundary returns the byte length Cut would take, without consuming it.
func (tb *TextBuffer) Boundary(limit int, isMarker func(byte) bool) int {
	s := tb.String()
	if s == "" {
		return 0
	}

	end := util.ByteIndexAtUTF16(s, limit)
	if end == 0 {
		// A single rune wider than the limit still has to make progress.
		end = util.FirstRuneLen(s)
	}
	return boundary(s, end, isMarker)
}

// Take removes and returns the first n bytes. Leading whitespace of what
// remains is dropped.
func (tb *TextBuffer) Take(n int) string {
	s := tb.String()
	if n > len(s) {
		n = len(s)
	}
	body := s[:n]
	rest := strings.TrimLeftFunc(s[n:], unicode.IsSpace)

	tb.Reset()
	tb.Write(rest)
	return body
}

// boundary picks the cut position inside s[:end].
func boundary(s string, end int, isMarker func(byte) bool) int {
	window := s[:end]
	if i := strings.LastIndexByte(window, '\n'); i >= 0 && hasContent(window[:i+1]) {
		return i + 1
	}
	if i := strings.LastIndexByte(window, ' '); i >= 0 && hasContent(window[:i+1]) {
		return i + 1
	}
	if isMarker == nil || end >= len(s) {
		return end
	}
	// Do not split a delimiter run such as "**" or "```".
	j := end
	if isMarker(s[end-1]) && isMarker(s[end]) {
		for j > 0 && isMarker(s[j-1]) {
			j--
		}
	}
	if j > 0 {
		return j
	}
	return end
}

func hasContent(s string) bool {
	return strings.TrimSpace(s) != ""
}
