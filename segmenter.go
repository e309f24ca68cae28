package telegramify

import (
	"github.com/riverfjs/telegramify-stream/internal/buffer"
	"github.com/riverfjs/telegramify-stream/internal/markup"
)

// Segmenter 将逐步到达的文本切分为长度受限、标记平衡的片段
//
// 每条逻辑消息使用一个 Segmenter：每个增量调用一次 Feed，结束时调用一次
// Flush。跨片段边界的 span 会在前一片段末尾关闭，并在下一片段开头重新打开。
// Segmenter 不是并发安全的；同一消息的增量必须按到达顺序串行调用。
type Segmenter struct {
	cap      int
	grammar  *markup.Grammar
	isMarker func(byte) bool
	escapes  bool
	buf      *buffer.TextBuffer
	stack    markup.Stack
	emitted  int
}

// NewSegmenter creates a Segmenter for one logical message.
func NewSegmenter(opts ...Option) *Segmenter {
	options := applyOptions(opts...)
	return newSegmenter(&options.Stream)
}

func newSegmenter(cfg *StreamConfig) *Segmenter {
	limit := cfg.SegmentCap
	if limit <= 0 {
		limit = DefaultSegmentCap
	}
	s := &Segmenter{
		cap:     limit,
		grammar: cfg.Grammar(),
		buf:     buffer.New(),
		escapes: cfg.BackslashEscapes,
	}
	if cfg.MarkerRunBackoff {
		s.isMarker = s.grammar.IsMarkerByte
	}
	return s
}

// Feed appends an increment and returns every segment that became ready,
// in order. Whatever does not exceed the cap stays buffered.
func (s *Segmenter) Feed(increment string) []Segment {
	s.buf.Write(increment)

	var ready []Segment
	for s.buf.UTF16Len() > s.cap {
		n := s.buf.Boundary(s.cap, s.isMarker)
		// Keep an escaping backslash next to the byte it escapes, otherwise
		// it would escape the postfix instead.
		if s.escapes && n > 1 && s.endsInEscape(s.buf.String()[:n]) {
			n--
		}
		ready = append(ready, s.carve(s.buf.Take(n)))
	}
	return ready
}

// endsInEscape reports whether body ends in a backslash that escapes
// whatever follows it.
func (s *Segmenter) endsInEscape(body string) bool {
	if body[len(body)-1] != '\\' {
		return false
	}
	next := s.stack.Clone()
	next.Apply(s.grammar, body)
	return next.Escaped()
}

// Flush returns the buffered remainder as the final segment. The open-span
// stack may still be non-empty afterwards; see Balanced.
func (s *Segmenter) Flush() (Segment, bool) {
	if s.buf.Len() == 0 {
		return Segment{}, false
	}
	return s.carve(s.buf.Drain()), true
}

// carve turns a body into a segment and advances the open-span stack.
func (s *Segmenter) carve(body string) Segment {
	seg := Segment{
		Index:  s.emitted,
		Prefix: s.stack.Prefix(),
		Body:   body,
	}
	s.stack.Apply(s.grammar, body)
	seg.Postfix = s.stack.Postfix()
	s.emitted++
	return seg
}

// OpenSpans returns the spans currently open, outermost first.
func (s *Segmenter) OpenSpans() []Span {
	return s.stack.Items()
}

// Balanced reports whether every span seen so far has been closed.
func (s *Segmenter) Balanced() bool {
	return s.stack.Len() == 0
}

// Buffered returns the length of the pending text in UTF-16 code units.
func (s *Segmenter) Buffered() int {
	return s.buf.UTF16Len()
}

// Reset prepares the Segmenter for a new message.
func (s *Segmenter) Reset() {
	s.buf.Reset()
	s.stack.Reset()
	s.emitted = 0
}
