package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// ErrMissingToken is returned by Validate when no bot token is configured.
var ErrMissingToken = errors.New("telegram bot token is not configured")

type Config struct {
	LogLevel string         `mapstructure:"log_level"`
	Telegram TelegramConfig `mapstructure:"telegram"`
	LLM      LLMConfig      `mapstructure:"llm"`
	Stream   StreamConfig   `mapstructure:"stream"`
	Store    StoreConfig    `mapstructure:"store"`
}

type TelegramConfig struct {
	Token        string   `mapstructure:"token"`
	ParseMode    string   `mapstructure:"parse_mode"`    // Markdown, MarkdownV2 or none
	AllowedUsers []string `mapstructure:"allowed_users"` // usernames or numeric IDs; empty allows everyone
}

// LLMConfig points at an OpenAI-compatible chat completions endpoint.
type LLMConfig struct {
	APIKey       string `mapstructure:"api_key"`
	BaseURL      string `mapstructure:"base_url"`
	Model        string `mapstructure:"model"`
	SystemPrompt string `mapstructure:"system_prompt"`
	MinIncrement int    `mapstructure:"min_increment"` // characters coalesced before an increment is handed on
	HistoryLimit int    `mapstructure:"history_limit"`
}

type StreamConfig struct {
	SegmentCap       int    `mapstructure:"segment_cap"`
	Tables           string `mapstructure:"tables"` // streaming, whole or off
	OpaqueInlineCode bool   `mapstructure:"opaque_inline_code"`
	BackslashEscapes bool   `mapstructure:"backslash_escapes"`
	MarkerRunBackoff bool   `mapstructure:"marker_run_backoff"`
}

type StoreConfig struct {
	Path string `mapstructure:"path"`
}

// GetConfigDir returns the directory searched for config.yaml.
func GetConfigDir() (string, error) {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "telegramify-stream"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "telegramify-stream"), nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log_level", "info")
	v.SetDefault("telegram.parse_mode", "Markdown")
	v.SetDefault("llm.base_url", "https://api.groq.com/openai/v1/")
	v.SetDefault("llm.model", "llama3-8b-8192")
	v.SetDefault("llm.min_increment", 100)
	v.SetDefault("llm.history_limit", 50)
	v.SetDefault("stream.segment_cap", 4000)
	v.SetDefault("stream.tables", "streaming")
	// Off in the library, on for the bot.
	v.SetDefault("stream.opaque_inline_code", true)
	v.SetDefault("stream.backslash_escapes", true)
	v.SetDefault("stream.marker_run_backoff", true)
	v.SetDefault("store.path", "./data/tg-bot.db")
}

// Load reads the configuration. An explicit file must exist; otherwise
// config.yaml is looked up in the config directory and the working
// directory, and a missing file is not an error. BOT_TOKEN, GROQ_API_KEY,
// AUTHORIZED_USERS and LOG_LEVEL override the file.
func Load(file string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if file != "" {
		v.SetConfigFile(file)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		if dir, err := GetConfigDir(); err == nil {
			v.AddConfigPath(dir)
		}
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if file != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	_ = v.BindEnv("telegram.token", "BOT_TOKEN")
	_ = v.BindEnv("llm.api_key", "GROQ_API_KEY")
	_ = v.BindEnv("log_level", "LOG_LEVEL")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error parsing config: %w", err)
	}
	if users := os.Getenv("AUTHORIZED_USERS"); users != "" {
		cfg.Telegram.AllowedUsers = splitList(users)
	}
	return &cfg, nil
}

// Validate checks the settings needed to run the bot.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Telegram.Token) == "" {
		return ErrMissingToken
	}
	if c.Stream.SegmentCap <= 0 || c.Stream.SegmentCap >= 4096 {
		return fmt.Errorf("stream.segment_cap must be between 1 and 4095, got %d", c.Stream.SegmentCap)
	}
	return nil
}

// splitList splits a comma separated list, dropping empty entries.
func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
