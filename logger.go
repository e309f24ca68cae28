package telegramify

import (
	"log"
	"os"
)

// Logger 全局日志记录器，为 nil 时不输出日志
var Logger = log.New(os.Stderr, "[telegramify] ", log.LstdFlags)

// SetLogger 设置自定义日志记录器，传入 nil 关闭日志
func SetLogger(logger *log.Logger) {
	Logger = logger
}

// Logf 通过 Logger 输出一行日志
func Logf(format string, args ...any) {
	if Logger != nil {
		Logger.Printf(format, args...)
	}
}
