// Package telegramify 将 LLM 逐步生成的文本安全地转发到 Telegram
//
// Telegram 对单条消息有长度上限，并且会解析行内标记（粗体、斜体、下划线、
// 删除线、剧透、行内代码、代码块）。在长度上限处直接截断会把未闭合的
// span 或代码块切开，导致后续每条消息渲染错误。
//
// 核心功能：
//   - Segmenter：流式分段，每个片段独立平衡，跨边界的 span 自动关闭/重开
//   - FenceTables：将代码块之外的 ASCII 表格包裹为代码块
//   - Relay：Source → 表格处理 → 分段 → Sender，解析失败时以纯文本重发
//
// 示例：
//
//	seg := telegramify.NewSegmenter(telegramify.WithSegmentCap(4000))
//	for increment := range increments {
//	    for _, s := range seg.Feed(increment) {
//	        send(s.Text())
//	    }
//	}
//	if last, ok := seg.Flush(); ok {
//	    send(last.Text())
//	}
package telegramify

import (
	"context"
)

// Telegramify relays one generated message from src to dst.
//
// It is the main streaming API; see Relay for the delivery rules and
// Segmenter for lower-level control.
//
// 参数：
//   - ctx: 上下文
//   - src: 增量文本来源
//   - dst: 片段投递目标
//   - opts: 分段与投递配置
func Telegramify(ctx context.Context, src Source, dst Sender, opts ...Option) (*RelayResult, error) {
	return Relay(ctx, src, dst, opts...)
}
