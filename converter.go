package telegramify

// Split 将一段完整文本切分为片段
//
// 等价于创建一个 Stream，一次性 Write 全部文本后 Close。
//
// 参数:
//   - text: 原始文本
//   - opts: 分段配置
//
// 返回:
//   - []Segment: 按顺序排列的片段
func Split(text string, opts ...Option) []Segment {
	st := NewStream(opts...)
	segs := st.Write(text)
	return append(segs, st.Close()...)
}

// SplitText is like Split but returns the rendered text of every non-empty
// segment.
func SplitText(text string, opts ...Option) []string {
	segs := Split(text, opts...)
	out := make([]string, 0, len(segs))
	for _, seg := range segs {
		if !seg.Empty() {
			out = append(out, seg.Text())
		}
	}
	return out
}
