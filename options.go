package telegramify

import "fmt"

// Options holds options for segmentation and delivery.
type Options struct {
	Stream         StreamConfig
	ParseMode      ParseMode
	ErrorFormatter func(error) string
}

// Option is a function that configures Options.
type Option func(*Options)

// WithConfig replaces the whole stream configuration.
func WithConfig(config *StreamConfig) Option {
	return func(opts *Options) {
		if config != nil {
			opts.Stream = *config
		}
	}
}

// WithSegmentCap sets the maximum segment body length in UTF-16 code units.
// Non-positive values are ignored.
func WithSegmentCap(n int) Option {
	return func(opts *Options) {
		if n > 0 {
			opts.Stream.SegmentCap = n
		}
	}
}

// WithFenceDelimiter sets the code fence marker.
func WithFenceDelimiter(fence string) Option {
	return func(opts *Options) {
		if fence != "" {
			opts.Stream.FenceDelimiter = fence
		}
	}
}

// WithSymmetricDelimiters sets the recognized paired markers.
func WithSymmetricDelimiters(delims []Delimiter) Option {
	return func(opts *Options) {
		opts.Stream.SymmetricDelimiters = append([]Delimiter(nil), delims...)
	}
}

// WithOpaqueInlineCode sets whether markers inside inline code are ignored.
// Off by default.
func WithOpaqueInlineCode(enable bool) Option {
	return func(opts *Options) {
		opts.Stream.OpaqueInlineCode = enable
	}
}

// WithBackslashEscapes sets whether a backslash outside code makes the next
// character literal. Off by default.
func WithBackslashEscapes(enable bool) Option {
	return func(opts *Options) {
		opts.Stream.BackslashEscapes = enable
	}
}

// WithMarkerRunBackoff sets whether a hard cut moves back to the start of a
// delimiter run such as "**" instead of landing inside it. Off by default,
// so a hard cut lands exactly at the cap.
func WithMarkerRunBackoff(enable bool) Option {
	return func(opts *Options) {
		opts.Stream.MarkerRunBackoff = enable
	}
}

// WithTablePolicy sets when ASCII tables are fenced.
func WithTablePolicy(policy TablePolicy) Option {
	return func(opts *Options) {
		opts.Stream.TablePolicy = policy
	}
}

// WithParseMode sets the parse mode segments are first delivered with.
func WithParseMode(mode ParseMode) Option {
	return func(opts *Options) {
		opts.ParseMode = mode
	}
}

// WithErrorFormatter sets how a generator failure is turned into the text
// delivered in place of the reply.
func WithErrorFormatter(fn func(error) string) Option {
	return func(opts *Options) {
		if fn != nil {
			opts.ErrorFormatter = fn
		}
	}
}

func defaultErrorFormatter(err error) string {
	return fmt.Sprintf("Error: %v", err)
}

// defaultOptions returns the default options.
func defaultOptions() *Options {
	return &Options{
		Stream:         *DefaultConfig(),
		ParseMode:      ParseModeMarkdownV2,
		ErrorFormatter: defaultErrorFormatter,
	}
}

// applyOptions applies the given options to the default options.
func applyOptions(opts ...Option) *Options {
	options := defaultOptions()
	for _, opt := range opts {
		opt(options)
	}
	return options
}
