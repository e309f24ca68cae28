// Package telegram 将分段后的回复投递到 Telegram 聊天
package telegram

import (
	"context"
	"errors"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	telegramify "github.com/riverfjs/telegramify-stream"
)

// botSender is the subset of tgbotapi.BotAPI used here, so tests can
// supply a fake without a live connection.
type botSender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// ChatSender delivers the segments of one reply to a chat. The first
// segment is sent as a reply to the triggering message.
type ChatSender struct {
	bot     botSender
	chatID  int64
	replyTo int
	sent    int
}

var _ telegramify.Sender = (*ChatSender)(nil)

func NewChatSender(bot botSender, chatID int64, replyTo int) *ChatSender {
	return &ChatSender{bot: bot, chatID: chatID, replyTo: replyTo}
}

func (s *ChatSender) SendSegment(ctx context.Context, text string, mode telegramify.ParseMode) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	msg := tgbotapi.NewMessage(s.chatID, text)
	msg.ParseMode = mode.String()
	msg.DisableWebPagePreview = true
	if s.sent == 0 && s.replyTo != 0 {
		msg.ReplyToMessageID = s.replyTo
	}
	if _, err := s.bot.Send(msg); err != nil {
		if isParseError(err) {
			return fmt.Errorf("%w: %v", telegramify.ErrMarkupRejected, err)
		}
		return err
	}
	s.sent++
	return nil
}

// Sent returns the number of messages delivered so far.
func (s *ChatSender) Sent() int {
	return s.sent
}

// isParseError reports whether Telegram refused the text because of its
// entities, e.g. "Bad Request: can't parse entities: ...".
func isParseError(err error) bool {
	var apiErr *tgbotapi.Error
	msg := err.Error()
	if errors.As(err, &apiErr) {
		msg = apiErr.Message
	}
	return strings.Contains(strings.ToLower(msg), "can't parse entities")
}
