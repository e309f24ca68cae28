package telegram

import (
	"context"
	"errors"
	"io"
	"log"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	telegramify "github.com/riverfjs/telegramify-stream"
	"github.com/riverfjs/telegramify-stream/internal/llm"
	"github.com/riverfjs/telegramify-stream/internal/store"
)

type sentMessage struct {
	text      string
	parseMode string
	replyTo   int
}

// fakeBotSender records every Send call. Markup containing rejectMarkup is
// refused the way Telegram refuses unparsable entities.
type fakeBotSender struct {
	mu           sync.Mutex
	messages     []sentMessage
	actions      int
	rejectMarkup string
	sendErr      error
}

func (f *fakeBotSender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	switch v := c.(type) {
	case tgbotapi.ChatActionConfig:
		f.actions++
	case tgbotapi.MessageConfig:
		if f.sendErr != nil {
			return tgbotapi.Message{}, f.sendErr
		}
		if v.ParseMode != "" && f.rejectMarkup != "" && strings.Contains(v.Text, f.rejectMarkup) {
			return tgbotapi.Message{}, &tgbotapi.Error{Code: 400, Message: "Bad Request: can't parse entities: Can't find end of the entity"}
		}
		f.messages = append(f.messages, sentMessage{text: v.Text, parseMode: v.ParseMode, replyTo: v.ReplyToMessageID})
	}
	return tgbotapi.Message{MessageID: len(f.messages)}, nil
}

func (f *fakeBotSender) texts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.messages))
	for i, m := range f.messages {
		out[i] = m.text
	}
	return out
}

type scriptedSource struct {
	increments []string
	err        error
	closed     bool
}

func (s *scriptedSource) Close() error {
	s.closed = true
	return nil
}

func (s *scriptedSource) Next(ctx context.Context) (string, error) {
	if len(s.increments) > 0 {
		inc := s.increments[0]
		s.increments = s.increments[1:]
		return inc, nil
	}
	if s.err != nil {
		return "", s.err
	}
	return "", io.EOF
}

// fakeStreamer replays a fixed reply and records each request.
type fakeStreamer struct {
	mu       sync.Mutex
	reply    []string
	err      error
	models   []string
	requests [][]llm.Message
	sources  []*scriptedSource
}

func (f *fakeStreamer) Stream(ctx context.Context, model string, msgs []llm.Message) telegramify.Source {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.models = append(f.models, model)
	f.requests = append(f.requests, append([]llm.Message(nil), msgs...))
	src := &scriptedSource{increments: append([]string(nil), f.reply...), err: f.err}
	f.sources = append(f.sources, src)
	return src
}

func newTestBot(t *testing.T, api *fakeBotSender, streamer *fakeStreamer, opts Options) (*Bot, *store.Store) {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "bot.db"))
	if err != nil {
		t.Fatalf("store.Open() error = %v", err)
	}
	t.Cleanup(func() { st.Close() })
	if opts.Model == "" {
		opts.Model = "default-model"
	}
	if opts.TypingInterval == 0 {
		opts.TypingInterval = time.Hour
	}
	return New(api, streamer, st, opts), st
}

func textMessage(id int, userID int64, username, text string) *tgbotapi.Message {
	msg := &tgbotapi.Message{
		MessageID: id,
		From:      &tgbotapi.User{ID: userID, UserName: username, FirstName: "Ann"},
		Chat:      &tgbotapi.Chat{ID: 500},
		Text:      text,
	}
	if strings.HasPrefix(text, "/") {
		n := strings.IndexByte(text, ' ')
		if n < 0 {
			n = len(text)
		}
		msg.Entities = []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: n}}
	}
	return msg
}

// TestBot_StreamsReplyInSegments 测试回复被分段发送并写入历史
func TestBot_StreamsReplyInSegments(t *testing.T) {
	api := &fakeBotSender{}
	streamer := &fakeStreamer{reply: []string{"Header\n", "**bold start ", "still bold** done"}}
	bot, st := newTestBot(t, api, streamer, Options{
		SystemPrompt: "be brief",
		Relay:        []telegramify.Option{telegramify.WithSegmentCap(15)},
	})

	bot.handleMessage(context.Background(), textMessage(9, 1, "ann", "hello"))

	want := []string{"Header", "**bold start**", "**still bold**", "done"}
	if got := api.texts(); strings.Join(got, "|") != strings.Join(want, "|") {
		t.Fatalf("sent %q, want %q", got, want)
	}
	if api.messages[0].replyTo != 9 || api.messages[1].replyTo != 0 {
		t.Errorf("only the first segment should reply to the question: %+v", api.messages)
	}
	if api.messages[0].parseMode != "MarkdownV2" {
		t.Errorf("parse mode = %q", api.messages[0].parseMode)
	}
	if api.actions == 0 {
		t.Error("typing action was not sent")
	}

	req := streamer.requests[0]
	if len(req) != 2 || req[0].Role != llm.RoleSystem || req[0].Content != "be brief" || req[1].Content != "hello" {
		t.Errorf("request = %+v", req)
	}
	if streamer.models[0] != "default-model" {
		t.Errorf("model = %q", streamer.models[0])
	}

	history, err := st.History(context.Background(), 500, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(history) != 2 || history[1].Role != llm.RoleAssistant ||
		history[1].Content != "Header\n**bold start still bold** done" {
		t.Errorf("history = %+v", history)
	}
}

func TestBot_ReplaysHistory(t *testing.T) {
	api := &fakeBotSender{}
	streamer := &fakeStreamer{reply: []string{"ok"}}
	bot, _ := newTestBot(t, api, streamer, Options{})
	ctx := context.Background()

	bot.handleMessage(ctx, textMessage(1, 1, "ann", "first"))
	bot.handleMessage(ctx, textMessage(2, 1, "ann", "second"))

	req := streamer.requests[1]
	if len(req) != 3 || req[0].Content != "first" || req[1].Content != "ok" || req[2].Content != "second" {
		t.Errorf("second request = %+v", req)
	}

	bot.handleMessage(ctx, textMessage(3, 1, "ann", "/new"))
	bot.handleMessage(ctx, textMessage(4, 1, "ann", "third"))
	if req := streamer.requests[2]; len(req) != 1 || req[0].Content != "third" {
		t.Errorf("request after /new = %+v", req)
	}
}

// TestBot_GenerationError 生成失败时发送纯文本错误提示且不记录回复
func TestBot_GenerationError(t *testing.T) {
	api := &fakeBotSender{}
	streamer := &fakeStreamer{reply: []string{"partial"}, err: errors.New("rate limit reached")}
	bot, st := newTestBot(t, api, streamer, Options{})

	bot.handleMessage(context.Background(), textMessage(1, 1, "ann", "hi"))

	if len(api.messages) != 1 {
		t.Fatalf("sent %+v, want only the error notice", api.messages)
	}
	got := api.messages[0]
	if got.text != "Error: rate limit reached\nStart a new conversation, click /new" || got.parseMode != "" {
		t.Errorf("notice = %+v", got)
	}
	history, _ := st.History(context.Background(), 500, 0)
	if len(history) != 1 || history[0].Role != llm.RoleUser {
		t.Errorf("history = %+v, want only the question", history)
	}
}

func TestBot_PlainTextFallback(t *testing.T) {
	api := &fakeBotSender{rejectMarkup: "["}
	streamer := &fakeStreamer{reply: []string{"see [docs"}}
	bot, _ := newTestBot(t, api, streamer, Options{})

	bot.handleMessage(context.Background(), textMessage(1, 1, "ann", "hi"))

	if len(api.messages) != 1 || api.messages[0].parseMode != "" || api.messages[0].text != "see [docs" {
		t.Errorf("sent %+v, want one plain-text resend", api.messages)
	}
}

// TestBot_FallbackLoggedOncePerChat 同一聊天的纯文本回退只记录一次
func TestBot_FallbackLoggedOncePerChat(t *testing.T) {
	var buf strings.Builder
	old := telegramify.Logger
	telegramify.SetLogger(log.New(&buf, "", 0))
	t.Cleanup(func() { telegramify.SetLogger(old) })

	api := &fakeBotSender{rejectMarkup: "["}
	streamer := &fakeStreamer{reply: []string{"see [docs"}}
	bot, _ := newTestBot(t, api, streamer, Options{})

	bot.handleMessage(context.Background(), textMessage(1, 1, "ann", "hi"))
	bot.handleMessage(context.Background(), textMessage(2, 1, "ann", "again"))

	if n := strings.Count(buf.String(), "sent as plain text"); n != 1 {
		t.Errorf("fallback logged %d times, want once:\n%s", n, buf.String())
	}
	if len(api.messages) != 2 {
		t.Errorf("sent %d messages, want both replies delivered", len(api.messages))
	}
}

// TestBot_ClosesSource 投递失败提前返回时也要关闭生成流
func TestBot_ClosesSource(t *testing.T) {
	tests := []struct {
		name    string
		sendErr error
	}{
		{name: "delivered"},
		{name: "send fails", sendErr: errors.New("connection reset")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := &fakeBotSender{sendErr: tt.sendErr}
			streamer := &fakeStreamer{reply: []string{"one ", "two ", "three"}}
			bot, _ := newTestBot(t, api, streamer, Options{})

			bot.handleMessage(context.Background(), textMessage(1, 1, "ann", "hi"))

			if len(streamer.sources) != 1 || !streamer.sources[0].closed {
				t.Error("source was not closed")
			}
		})
	}
}

// TestBot_UsersCommand 只有管理员可以列出用户
func TestBot_UsersCommand(t *testing.T) {
	api := &fakeBotSender{}
	streamer := &fakeStreamer{reply: []string{"ok"}}
	bot, st := newTestBot(t, api, streamer, Options{})
	ctx := context.Background()
	if err := st.SeedUsers(ctx, []string{"100"}); err != nil {
		t.Fatalf("SeedUsers() error = %v", err)
	}

	bot.handleMessage(ctx, textMessage(1, 7, "guest", "/users"))
	bot.handleMessage(ctx, textMessage(2, 100, "boss", "/users"))

	texts := api.texts()
	if len(texts) != 2 {
		t.Fatalf("sent %q", texts)
	}
	if texts[0] != "This command is for admins only." {
		t.Errorf("non-admin reply = %q", texts[0])
	}
	want := "Users: 2\n7 model=default-model\n100 model=default-model (admin)"
	if texts[1] != want {
		t.Errorf("admin reply = %q, want %q", texts[1], want)
	}
}

func TestBot_Authorization(t *testing.T) {
	tests := []struct {
		name    string
		allowed []string
		userID  int64
		user    string
		want    bool
	}{
		{name: "empty list allows everyone", userID: 1, user: "x", want: true},
		{name: "numeric id", allowed: []string{"42"}, userID: 42, want: true},
		{name: "username any case", allowed: []string{"@Alice"}, userID: 1, user: "alice", want: true},
		{name: "stranger", allowed: []string{"42", "alice"}, userID: 7, user: "mallory", want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := &fakeBotSender{}
			streamer := &fakeStreamer{reply: []string{"ok"}}
			bot, _ := newTestBot(t, api, streamer, Options{AllowedUsers: tt.allowed})

			bot.handleMessage(context.Background(), textMessage(1, tt.userID, tt.user, "hi"))

			if got := len(streamer.requests) == 1; got != tt.want {
				t.Errorf("served = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestBot_Commands(t *testing.T) {
	api := &fakeBotSender{}
	streamer := &fakeStreamer{reply: []string{"ok"}}
	bot, st := newTestBot(t, api, streamer, Options{})
	ctx := context.Background()

	bot.handleMessage(ctx, textMessage(1, 1, "ann", "/model mixtral-8x7b"))
	bot.handleMessage(ctx, textMessage(2, 1, "ann", "/system talk like a pirate"))
	bot.handleMessage(ctx, textMessage(3, 1, "ann", "hi"))

	if streamer.models[0] != "mixtral-8x7b" {
		t.Errorf("model = %q, want the per-user choice", streamer.models[0])
	}
	if req := streamer.requests[0]; req[0].Role != llm.RoleSystem || req[0].Content != "talk like a pirate" {
		t.Errorf("request = %+v", req)
	}

	bot.handleMessage(ctx, textMessage(4, 1, "ann", "/info"))
	texts := api.texts()
	info := texts[len(texts)-1]
	if !strings.Contains(info, "Model: mixtral-8x7b") || !strings.Contains(info, "Messages in history: 2") {
		t.Errorf("info = %q", info)
	}

	bot.handleMessage(ctx, textMessage(5, 1, "ann", "/system clear"))
	u, err := st.GetUser(ctx, 1)
	if err != nil || u.SystemPrompt != "" {
		t.Errorf("user after clear = %+v, %v", u, err)
	}

	bot.handleMessage(ctx, textMessage(6, 1, "ann", "/start"))
	texts = api.texts()
	if !strings.HasPrefix(texts[len(texts)-1], "Hi Ann!") {
		t.Errorf("greeting = %q", texts[len(texts)-1])
	}
}

func TestBot_RunWaitsForReplies(t *testing.T) {
	api := &fakeBotSender{}
	streamer := &fakeStreamer{reply: []string{"pong"}}
	bot, _ := newTestBot(t, api, streamer, Options{})

	updates := make(chan tgbotapi.Update, 3)
	updates <- tgbotapi.Update{Message: textMessage(1, 1, "ann", "ping")}
	updates <- tgbotapi.Update{}
	updates <- tgbotapi.Update{Message: textMessage(2, 1, "ann", "ping")}
	close(updates)

	if err := bot.Run(context.Background(), updates); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if got := api.texts(); len(got) != 2 || got[0] != "pong" || got[1] != "pong" {
		t.Errorf("sent %q", got)
	}
}

func TestChatSender_WrapsParseErrors(t *testing.T) {
	api := &fakeBotSender{rejectMarkup: "*"}
	s := NewChatSender(api, 1, 0)

	err := s.SendSegment(context.Background(), "*x", telegramify.ParseModeMarkdownV2)
	if !errors.Is(err, telegramify.ErrMarkupRejected) {
		t.Fatalf("error = %v, want ErrMarkupRejected", err)
	}

	down := errors.New("connection reset")
	api = &fakeBotSender{sendErr: down}
	s = NewChatSender(api, 1, 0)
	err = s.SendSegment(context.Background(), "x", telegramify.ParseModeNone)
	if !errors.Is(err, down) || errors.Is(err, telegramify.ErrMarkupRejected) {
		t.Errorf("error = %v, want the transport error unchanged", err)
	}
	if s.Sent() != 0 {
		t.Errorf("Sent() = %d", s.Sent())
	}
}

func TestStartTyping_RepeatsUntilStopped(t *testing.T) {
	api := &fakeBotSender{}
	stop := startTyping(context.Background(), api, 1, 5*time.Millisecond)
	time.Sleep(30 * time.Millisecond)
	stop()
	stop()

	api.mu.Lock()
	n := api.actions
	api.mu.Unlock()
	if n < 2 {
		t.Errorf("typing sent %d times, want repeats", n)
	}

	time.Sleep(15 * time.Millisecond)
	api.mu.Lock()
	defer api.mu.Unlock()
	if api.actions != n {
		t.Error("typing continued after stop")
	}
}
