package telegramify

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/riverfjs/telegramify-stream/internal/tables"
)

// ErrMarkupRejected is wrapped by a Sender when the delivery channel refuses
// a segment because it could not parse its markup.
var ErrMarkupRejected = errors.New("telegramify: markup rejected by delivery channel")

// Source supplies the increments of one generated message. Next returns
// io.EOF once the stream is complete; any other error is terminal.
type Source interface {
	Next(ctx context.Context) (string, error)
}

// Sender delivers one rendered segment of a logical message.
type Sender interface {
	SendSegment(ctx context.Context, text string, mode ParseMode) error
}

// Stream 组合表格围栏与 Segmenter，对应一条逻辑消息
type Stream struct {
	policy TablePolicy
	fencer *tables.Fencer
	whole  strings.Builder
	seg    *Segmenter
}

// NewStream creates the per-message pipeline of table fencing and
// segmentation.
func NewStream(opts ...Option) *Stream {
	options := applyOptions(opts...)
	return newStream(&options.Stream)
}

func newStream(cfg *StreamConfig) *Stream {
	st := &Stream{
		policy: cfg.TablePolicy,
		seg:    newSegmenter(cfg),
	}
	if st.policy != TablesOff {
		st.fencer = tables.NewFencer(cfg.FenceDelimiter)
	}
	return st
}

// Write feeds one increment and returns the segments that became ready.
func (st *Stream) Write(increment string) []Segment {
	switch st.policy {
	case TablesWholeMessage:
		st.whole.WriteString(increment)
		return nil
	case TablesOff:
		return st.seg.Feed(increment)
	default:
		return st.seg.Feed(st.fencer.Write(increment))
	}
}

// Close drains everything still held and returns the final segments.
func (st *Stream) Close() []Segment {
	var out []Segment
	switch st.policy {
	case TablesWholeMessage:
		text := st.fencer.Write(st.whole.String()) + st.fencer.Close()
		st.whole.Reset()
		out = st.seg.Feed(text)
	case TablesStreaming:
		out = st.seg.Feed(st.fencer.Close())
	}
	if last, ok := st.seg.Flush(); ok {
		out = append(out, last)
	}
	return out
}

// Balanced reports whether every span opened in the message was closed.
func (st *Stream) Balanced() bool {
	return st.seg.Balanced()
}

// OpenSpans returns the spans left open so far.
func (st *Stream) OpenSpans() []Span {
	return st.seg.OpenSpans()
}

// RelayResult summarizes one relayed message.
type RelayResult struct {
	// Text is the raw generated text received before the stream ended.
	Text      string
	Segments  int
	Fallbacks int
}

// Relay 完整管道：Source 的增量 → 表格围栏 → 分段 → Sender
//
// 步骤：
//  1. 逐个读取增量并送入 Stream，立即投递已就绪的片段
//  2. Source 返回 io.EOF 后 Close，投递剩余片段
//  3. 投递因标记解析失败被拒绝时，以 ParseModeNone 重发同一文本
//  4. Source 出错时放弃当前消息，投递 ErrorFormatter 生成的纯文本
func Relay(ctx context.Context, src Source, dst Sender, opts ...Option) (*RelayResult, error) {
	options := applyOptions(opts...)
	st := newStream(&options.Stream)
	res := &RelayResult{}

	var text strings.Builder
	for {
		increment, err := src.Next(ctx)
		if errors.Is(err, io.EOF) {
			text.WriteString(increment)
			if err := deliverAll(ctx, dst, options, res, st.Write(increment)); err != nil {
				res.Text = text.String()
				return res, err
			}
			break
		}
		if err != nil {
			res.Text = text.String()
			Logf("generation failed after %d segments: %v", res.Segments, err)
			notice := options.ErrorFormatter(err)
			if sendErr := dst.SendSegment(ctx, notice, ParseModeNone); sendErr != nil {
				return res, fmt.Errorf("send error notice: %w", errors.Join(err, sendErr))
			}
			return res, fmt.Errorf("source: %w", err)
		}
		text.WriteString(increment)
		if err := deliverAll(ctx, dst, options, res, st.Write(increment)); err != nil {
			res.Text = text.String()
			return res, err
		}
	}

	res.Text = text.String()
	if err := deliverAll(ctx, dst, options, res, st.Close()); err != nil {
		return res, err
	}
	if !st.Balanced() {
		Logf("message ended with %d unclosed spans", len(st.OpenSpans()))
	}
	return res, nil
}

func deliverAll(ctx context.Context, dst Sender, options *Options, res *RelayResult, segs []Segment) error {
	for _, seg := range segs {
		if err := deliver(ctx, dst, options.ParseMode, res, seg); err != nil {
			return err
		}
	}
	return nil
}

// deliver sends one segment, retrying without markup if it was rejected.
func deliver(ctx context.Context, dst Sender, mode ParseMode, res *RelayResult, seg Segment) error {
	if seg.Empty() {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	text := seg.Text()
	err := dst.SendSegment(ctx, text, mode)
	if err != nil && mode != ParseModeNone && errors.Is(err, ErrMarkupRejected) {
		Logf("segment %d rejected as %s, resending as plain text: %v", seg.Index, mode, err)
		res.Fallbacks++
		err = dst.SendSegment(ctx, text, ParseModeNone)
	}
	if err != nil {
		return fmt.Errorf("send segment %d: %w", seg.Index, err)
	}
	res.Segments++
	return nil
}
