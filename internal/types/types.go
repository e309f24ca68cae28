package types

import "github.com/riverfjs/telegramify-stream/internal/markup"

// DefaultSegmentCap 默认分段上限（UTF-16 code units），低于 Telegram 的 4096 以便容纳前缀/后缀
const DefaultSegmentCap = 4000

// DefaultFenceDelimiter 代码块围栏
const DefaultFenceDelimiter = "```"

// TablePolicy 控制 ASCII 表格围栏的应用时机
type TablePolicy int

const (
	// TablesStreaming 每个增量都经过流式 Fencer（默认）
	TablesStreaming TablePolicy = iota
	// TablesWholeMessage 在流结束时对整条消息做一次表格处理
	TablesWholeMessage
	// TablesOff 不处理表格
	TablesOff
)

// String returns the configuration name of the policy.
func (p TablePolicy) String() string {
	switch p {
	case TablesStreaming:
		return "streaming"
	case TablesWholeMessage:
		return "whole"
	case TablesOff:
		return "off"
	default:
		return "unknown"
	}
}

// ParseTablePolicy maps a configuration name to a TablePolicy.
func ParseTablePolicy(name string) (TablePolicy, bool) {
	switch name {
	case "", "streaming":
		return TablesStreaming, true
	case "whole", "message":
		return TablesWholeMessage, true
	case "off", "none":
		return TablesOff, true
	default:
		return TablesStreaming, false
	}
}

// StreamConfig 分段器配置
type StreamConfig struct {
	SegmentCap          int
	FenceDelimiter      string
	SymmetricDelimiters []markup.Delimiter
	TablePolicy         TablePolicy

	// 以下规则默认关闭
	OpaqueInlineCode bool // inline code 内只识别其结束标记
	BackslashEscapes bool // 反斜杠转义下一个字符
	MarkerRunBackoff bool // 硬切退到标记序列之前
}

// Grammar builds the token grammar described by the configuration.
func (c *StreamConfig) Grammar() *markup.Grammar {
	return markup.NewGrammar(c.FenceDelimiter, c.SymmetricDelimiters, markup.GrammarOptions{
		OpaqueInlineCode: c.OpaqueInlineCode,
		BackslashEscapes: c.BackslashEscapes,
	})
}

// DefaultStreamConfig 返回默认配置
func DefaultStreamConfig() *StreamConfig {
	return &StreamConfig{
		SegmentCap:          DefaultSegmentCap,
		FenceDelimiter:      DefaultFenceDelimiter,
		SymmetricDelimiters: markup.DefaultDelimiters(),
		TablePolicy:         TablesStreaming,
	}
}
