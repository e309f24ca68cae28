// Package llm 从 OpenAI 兼容的 chat completions 接口流式读取回复
package llm

import (
	"context"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/ssestream"

	telegramify "github.com/riverfjs/telegramify-stream"
)

// DefaultMinIncrement is the number of characters coalesced before an
// increment is handed to the pipeline.
const DefaultMinIncrement = 100

// Role of a chat message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

type Message struct {
	Role    Role
	Content string
}

type Config struct {
	APIKey       string
	BaseURL      string
	MinIncrement int
}

// Client 封装 openai-go 客户端
type Client struct {
	client       openai.Client
	minIncrement int
}

func NewClient(cfg Config) *Client {
	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	minInc := cfg.MinIncrement
	if minInc <= 0 {
		minInc = DefaultMinIncrement
	}
	return &Client{
		client:       openai.NewClient(opts...),
		minIncrement: minInc,
	}
}

// Stream starts a streaming completion. The request is bound to ctx;
// cancelling it aborts the stream.
func (c *Client) Stream(ctx context.Context, model string, msgs []Message) telegramify.Source {
	params := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(model),
		Messages: toParams(msgs),
	}
	stream := c.client.Chat.Completions.NewStreaming(ctx, params)
	return newSource(chunkStream{stream}, c.minIncrement)
}

func toParams(msgs []Message) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(msgs))
	for _, m := range msgs {
		switch m.Role {
		case RoleSystem:
			out = append(out, openai.SystemMessage(m.Content))
		case RoleAssistant:
			out = append(out, openai.AssistantMessage(m.Content))
		default:
			out = append(out, openai.UserMessage(m.Content))
		}
	}
	return out
}

// deltaStream is the part of an SSE completion stream the Source reads.
type deltaStream interface {
	Next() bool
	Delta() string
	Err() error
	Close() error
}

type chunkStream struct {
	*ssestream.Stream[openai.ChatCompletionChunk]
}

func (s chunkStream) Delta() string {
	chunk := s.Current()
	if len(chunk.Choices) == 0 {
		return ""
	}
	return chunk.Choices[0].Delta.Content
}

// Source 将模型的细粒度 delta 合并为至少 minIncrement 个字符的增量
type Source struct {
	stream  deltaStream
	minLen  int
	pending strings.Builder
	done    bool
}

func newSource(stream deltaStream, minLen int) *Source {
	return &Source{stream: stream, minLen: minLen}
}

// Next returns the next coalesced increment. The final increment is
// returned together with io.EOF.
func (s *Source) Next(ctx context.Context) (string, error) {
	if s.done {
		return "", io.EOF
	}
	for {
		if err := ctx.Err(); err != nil {
			s.finish()
			return "", err
		}
		if !s.stream.Next() {
			s.finish()
			if err := s.stream.Err(); err != nil {
				return "", err
			}
			return s.take(), io.EOF
		}
		s.pending.WriteString(s.stream.Delta())
		if utf8.RuneCountInString(s.pending.String()) >= s.minLen {
			return s.take(), nil
		}
	}
}

// Close releases the underlying stream. It is safe to call more than once.
func (s *Source) Close() error {
	if s.done {
		return nil
	}
	s.done = true
	return s.stream.Close()
}

func (s *Source) finish() {
	if !s.done {
		s.done = true
		_ = s.stream.Close()
	}
}

func (s *Source) take() string {
	out := s.pending.String()
	s.pending.Reset()
	return out
}
