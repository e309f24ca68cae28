package telegram

import (
	"context"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// DefaultTypingInterval Telegram 的 typing 状态约 5 秒后失效
const DefaultTypingInterval = 4 * time.Second

// startTyping sends the typing action now and then every interval until
// the returned stop func is called or ctx is done.
func startTyping(ctx context.Context, bot botSender, chatID int64, interval time.Duration) func() {
	if interval <= 0 {
		interval = DefaultTypingInterval
	}
	action := tgbotapi.NewChatAction(chatID, tgbotapi.ChatTyping)
	_, _ = bot.Send(action)

	ticker := time.NewTicker(interval)
	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-ticker.C:
				_, _ = bot.Send(action)
			case <-done:
				return
			case <-ctx.Done():
				return
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			ticker.Stop()
			close(done)
			wg.Wait()
		})
	}
}
