package telegramify

import "github.com/riverfjs/telegramify-stream/internal/tables"

// TableFencer is the streaming ASCII-table transform.
type TableFencer = tables.Fencer

// NewTableFencer 创建流式表格围栏处理器，fence 为空时使用 ```
func NewTableFencer(fence string) *TableFencer {
	return tables.NewFencer(fence)
}

// FenceTables wraps every pipe-delimited ASCII table outside an existing
// code fence in a fence pair. Applying it twice gives the same result as
// applying it once.
func FenceTables(text string) string {
	return tables.Wrap(text, DefaultConfig().FenceDelimiter)
}
