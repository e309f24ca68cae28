package telegram

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	telegramify "github.com/riverfjs/telegramify-stream"
	"github.com/riverfjs/telegramify-stream/internal/llm"
	"github.com/riverfjs/telegramify-stream/internal/store"
)

// chatStreamer starts one streamed completion.
type chatStreamer interface {
	Stream(ctx context.Context, model string, msgs []llm.Message) telegramify.Source
}

type Options struct {
	Model          string // used when the user has not picked one
	SystemPrompt   string
	HistoryLimit   int
	AllowedUsers   []string // usernames or numeric IDs; empty allows everyone
	TypingInterval time.Duration
	Relay          []telegramify.Option
}

// Bot 处理 Telegram 更新：鉴权、命令和流式回复
type Bot struct {
	api     botSender
	llm     chatStreamer
	store   *store.Store
	opts    Options
	allowed map[string]struct{}

	mu       sync.Mutex
	chats    map[int64]*sync.Mutex
	fellBack map[int64]bool // chats whose plain-text fallback was logged
}

func New(api botSender, streamer chatStreamer, st *store.Store, opts Options) *Bot {
	allowed := make(map[string]struct{}, len(opts.AllowedUsers))
	for _, u := range opts.AllowedUsers {
		allowed[strings.ToLower(strings.TrimPrefix(strings.TrimSpace(u), "@"))] = struct{}{}
	}
	return &Bot{
		api:      api,
		llm:      streamer,
		store:    st,
		opts:     opts,
		allowed:  allowed,
		chats:    make(map[int64]*sync.Mutex),
		fellBack: make(map[int64]bool),
	}
}

// ErrorText is the plain-text notice sent when generation fails.
func ErrorText(err error) string {
	return fmt.Sprintf("Error: %v\nStart a new conversation, click /new", err)
}

// Listen polls api for updates and serves them until ctx is cancelled.
func Listen(ctx context.Context, api *tgbotapi.BotAPI, b *Bot) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := api.GetUpdatesChan(u)
	defer api.StopReceivingUpdates()
	telegramify.Logf("[telegram] authorised as @%s", api.Self.UserName)
	return b.Run(ctx, updates)
}

// Run handles updates until ctx is done or the channel is closed, then
// waits for in-flight replies.
func (b *Bot) Run(ctx context.Context, updates <-chan tgbotapi.Update) error {
	var wg sync.WaitGroup
	defer wg.Wait()
	for {
		select {
		case <-ctx.Done():
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			if update.Message == nil {
				continue
			}
			wg.Add(1)
			go func(msg *tgbotapi.Message) {
				defer wg.Done()
				b.handleMessage(ctx, msg)
			}(update.Message)
		}
	}
}

func (b *Bot) isAllowed(user *tgbotapi.User) bool {
	if len(b.allowed) == 0 {
		return true
	}
	if _, ok := b.allowed[strconv.FormatInt(user.ID, 10)]; ok {
		return true
	}
	if user.UserName != "" {
		_, ok := b.allowed[strings.ToLower(user.UserName)]
		return ok
	}
	return false
}

// chatLock serializes replies within one chat.
func (b *Bot) chatLock(chatID int64) *sync.Mutex {
	b.mu.Lock()
	defer b.mu.Unlock()
	l, ok := b.chats[chatID]
	if !ok {
		l = &sync.Mutex{}
		b.chats[chatID] = l
	}
	return l
}

func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	if msg.From == nil || msg.Chat == nil {
		return
	}
	if !b.isAllowed(msg.From) {
		telegramify.Logf("[telegram] ignoring message from unauthorised user %d (@%s)", msg.From.ID, msg.From.UserName)
		return
	}

	lock := b.chatLock(msg.Chat.ID)
	lock.Lock()
	defer lock.Unlock()

	user, err := b.store.EnsureUser(ctx, msg.From.ID)
	if err != nil {
		telegramify.Logf("[telegram] load user %d: %v", msg.From.ID, err)
		b.notify(msg.Chat.ID, "Error: "+err.Error())
		return
	}

	if msg.IsCommand() {
		b.handleCommand(ctx, msg, user)
		return
	}

	text := strings.TrimSpace(msg.Text)
	if text == "" {
		return
	}
	if err := b.reply(ctx, msg, user, text); err != nil {
		telegramify.Logf("[telegram] reply in chat %d: %v", msg.Chat.ID, err)
	}
}

func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message, user *store.User) {
	chatID := msg.Chat.ID
	args := strings.TrimSpace(msg.CommandArguments())

	switch msg.Command() {
	case "start":
		b.notify(chatID, fmt.Sprintf("Hi %s!\n\nStart sending messages with me to generate a response.\n\n"+
			"Send /new to start a new chat session.", msg.From.FirstName))

	case "help":
		b.notify(chatID, "Commands:\n"+
			"/new - Start a new chat session\n"+
			"/model <id> - Change the model used to generate responses\n"+
			"/system <prompt|clear> - Change the system prompt\n"+
			"/info - Show the current settings\n"+
			"/users - List users (admins only)")

	case "new":
		if err := b.store.ClearHistory(ctx, chatID); err != nil {
			b.notify(chatID, "Error: "+err.Error())
			return
		}
		b.notify(chatID, "New chat session started.\n\nSwitch models with /model.")

	case "model":
		if args == "" {
			b.notify(chatID, fmt.Sprintf("Current model: %s\nUsage: /model <id>", b.modelFor(user)))
			return
		}
		if err := b.store.SetModel(ctx, user.ID, args); err != nil {
			b.notify(chatID, "Error: "+err.Error())
			return
		}
		b.notify(chatID, "Model set to "+args)

	case "system":
		switch {
		case args == "":
			b.notify(chatID, fmt.Sprintf("Current system prompt: %q\nUsage: /system <prompt|clear>", b.promptFor(user)))
			return
		case strings.EqualFold(args, "clear"):
			args = ""
		}
		if err := b.store.SetSystemPrompt(ctx, user.ID, args); err != nil {
			b.notify(chatID, "Error: "+err.Error())
			return
		}
		if args == "" {
			b.notify(chatID, "System prompt cleared.")
		} else {
			b.notify(chatID, "System prompt updated.")
		}

	case "info":
		n, err := b.store.CountMessages(ctx, chatID)
		if err != nil {
			b.notify(chatID, "Error: "+err.Error())
			return
		}
		b.notify(chatID, fmt.Sprintf("Conversation info:\nModel: %s\nMessages in history: %d\nSystem prompt: %q",
			b.modelFor(user), n, b.promptFor(user)))

	case "users":
		if !user.Admin {
			b.notify(chatID, "This command is for admins only.")
			return
		}
		users, err := b.store.ListUsers(ctx)
		if err != nil {
			b.notify(chatID, "Error: "+err.Error())
			return
		}
		var sb strings.Builder
		fmt.Fprintf(&sb, "Users: %d", len(users))
		for _, u := range users {
			fmt.Fprintf(&sb, "\n%d model=%s", u.ID, b.modelFor(&u))
			if u.Admin {
				sb.WriteString(" (admin)")
			}
		}
		b.notify(chatID, sb.String())

	default:
		b.notify(chatID, "Unknown command. Send /help for the list.")
	}
}

// reply streams the model's answer to text back to the chat and records
// both turns in the history.
func (b *Bot) reply(ctx context.Context, msg *tgbotapi.Message, user *store.User, text string) error {
	chatID := msg.Chat.ID

	history, err := b.store.History(ctx, chatID, b.opts.HistoryLimit)
	if err != nil {
		return err
	}
	msgs := make([]llm.Message, 0, len(history)+2)
	if prompt := b.promptFor(user); prompt != "" {
		msgs = append(msgs, llm.Message{Role: llm.RoleSystem, Content: prompt})
	}
	msgs = append(msgs, history...)
	question := llm.Message{Role: llm.RoleUser, Content: text}
	msgs = append(msgs, question)

	if err := b.store.AppendMessage(ctx, chatID, question); err != nil {
		return err
	}

	stop := startTyping(ctx, b.api, chatID, b.opts.TypingInterval)
	defer stop()

	streamCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	src := b.llm.Stream(streamCtx, b.modelFor(user), msgs)
	if c, ok := src.(io.Closer); ok {
		defer c.Close()
	}
	dst := NewChatSender(b.api, chatID, msg.MessageID)
	opts := append(append([]telegramify.Option(nil), b.opts.Relay...), telegramify.WithErrorFormatter(ErrorText))

	res, err := telegramify.Relay(streamCtx, src, dst, opts...)
	if err != nil {
		return err
	}
	if res.Fallbacks > 0 && b.firstFallback(chatID) {
		telegramify.Logf("[telegram] chat %d: %d of %d segments sent as plain text; check telegram.parse_mode", chatID, res.Fallbacks, res.Segments)
	}
	if strings.TrimSpace(res.Text) == "" {
		return errors.New("empty response from model")
	}
	return b.store.AppendMessage(ctx, chatID, llm.Message{Role: llm.RoleAssistant, Content: res.Text})
}

// firstFallback reports whether chatID falls back to plain text for the
// first time, so the warning is logged once per chat.
func (b *Bot) firstFallback(chatID int64) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.fellBack[chatID] {
		return false
	}
	b.fellBack[chatID] = true
	return true
}

func (b *Bot) modelFor(user *store.User) string {
	if user.Model != "" {
		return user.Model
	}
	return b.opts.Model
}

func (b *Bot) promptFor(user *store.User) string {
	if user.SystemPrompt != "" {
		return user.SystemPrompt
	}
	return b.opts.SystemPrompt
}

// notify sends a plain-text service message.
func (b *Bot) notify(chatID int64, text string) {
	if _, err := b.api.Send(tgbotapi.NewMessage(chatID, text)); err != nil {
		telegramify.Logf("[telegram] send to chat %d: %v", chatID, err)
	}
}
