package main

import (
	"fmt"
	"strings"

	telegramify "github.com/riverfjs/telegramify-stream"
	"github.com/riverfjs/telegramify-stream/internal/config"
)

// relayOptions maps the loaded configuration onto library options.
func relayOptions(cfg *config.Config) ([]telegramify.Option, error) {
	policy, ok := telegramify.ParseTablePolicy(strings.ToLower(cfg.Stream.Tables))
	if !ok {
		return nil, fmt.Errorf("unknown stream.tables %q (want streaming, whole or off)", cfg.Stream.Tables)
	}
	mode, ok := telegramify.ParseParseMode(cfg.Telegram.ParseMode)
	if !ok {
		return nil, fmt.Errorf("unknown telegram.parse_mode %q (want Markdown, MarkdownV2 or none)", cfg.Telegram.ParseMode)
	}
	return []telegramify.Option{
		telegramify.WithSegmentCap(cfg.Stream.SegmentCap),
		telegramify.WithTablePolicy(policy),
		telegramify.WithOpaqueInlineCode(cfg.Stream.OpaqueInlineCode),
		telegramify.WithBackslashEscapes(cfg.Stream.BackslashEscapes),
		telegramify.WithMarkerRunBackoff(cfg.Stream.MarkerRunBackoff),
		telegramify.WithParseMode(mode),
	}, nil
}

// applyLogLevel silences the library logger for "off", "quiet" or "error".
func applyLogLevel(level string) {
	switch strings.ToLower(level) {
	case "off", "quiet", "error":
		telegramify.SetLogger(nil)
	}
}
