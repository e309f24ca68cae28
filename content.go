package telegramify

import (
	"strings"
	"unicode"
)

// ParseMode is the markup interpretation requested from the delivery channel.
type ParseMode int

const (
	// ParseModeNone delivers text with markup interpretation disabled.
	ParseModeNone ParseMode = iota
	// ParseModeMarkdown is Telegram's legacy Markdown mode.
	ParseModeMarkdown
	// ParseModeMarkdownV2 is Telegram's MarkdownV2 mode.
	ParseModeMarkdownV2
)

// String returns the Telegram Bot API parse_mode value.
func (m ParseMode) String() string {
	switch m {
	case ParseModeMarkdown:
		return "Markdown"
	case ParseModeMarkdownV2:
		return "MarkdownV2"
	default:
		return ""
	}
}

// ParseParseMode maps a parse_mode name to a ParseMode. Matching ignores case.
func ParseParseMode(name string) (ParseMode, bool) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "none", "plain":
		return ParseModeNone, true
	case "markdown":
		return ParseModeMarkdown, true
	case "markdownv2":
		return ParseModeMarkdownV2, true
	default:
		return ParseModeNone, false
	}
}

// Segment 是一条可独立渲染的消息片段
//
// Body 为从缓冲区切出的原始文本；Prefix 重新打开在片段开始时仍未关闭的
// span，Postfix 关闭片段结束时仍打开的 span。
type Segment struct {
	Index   int
	Prefix  string
	Body    string
	Postfix string
}

// Text renders the segment for delivery. Trailing whitespace of the body is
// dropped so closing markers attach to the last word.
func (s Segment) Text() string {
	return s.Prefix + strings.TrimRightFunc(s.Body, unicode.IsSpace) + s.Postfix
}

// Empty reports whether the rendered segment has nothing worth sending.
func (s Segment) Empty() bool {
	return strings.TrimSpace(s.Body) == ""
}
