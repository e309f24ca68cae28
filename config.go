package telegramify

import (
	"sync"

	"github.com/riverfjs/telegramify-stream/internal/markup"
	"github.com/riverfjs/telegramify-stream/internal/types"
)

// 导出类型别名
type (
	StreamConfig = types.StreamConfig
	TablePolicy  = types.TablePolicy
	Delimiter    = markup.Delimiter
	Span         = markup.Token
	SpanKind     = markup.Kind
)

const (
	TablesStreaming    = types.TablesStreaming
	TablesWholeMessage = types.TablesWholeMessage
	TablesOff          = types.TablesOff
)

// DefaultSegmentCap is the default maximum segment body length in UTF-16
// code units, kept below Telegram's 4096 to leave room for prefixes and
// postfixes.
const DefaultSegmentCap = types.DefaultSegmentCap

var (
	defaultConfig     *StreamConfig
	defaultConfigOnce sync.Once
)

// DefaultConfig returns the default stream configuration (singleton).
// Callers must not modify it; options work on a copy.
func DefaultConfig() *StreamConfig {
	defaultConfigOnce.Do(func() {
		defaultConfig = types.DefaultStreamConfig()
	})
	return defaultConfig
}

// DefaultDelimiters returns the default symmetric delimiters, longest first.
func DefaultDelimiters() []Delimiter {
	return markup.DefaultDelimiters()
}

// ParseTablePolicy maps "streaming", "whole" or "off" to a TablePolicy.
func ParseTablePolicy(name string) (TablePolicy, bool) {
	return types.ParseTablePolicy(name)
}
