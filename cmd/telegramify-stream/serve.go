package main

import (
	"fmt"
	"os/signal"
	"syscall"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/spf13/cobra"

	telegramify "github.com/riverfjs/telegramify-stream"
	"github.com/riverfjs/telegramify-stream/internal/config"
	"github.com/riverfjs/telegramify-stream/internal/llm"
	"github.com/riverfjs/telegramify-stream/internal/store"
	"github.com/riverfjs/telegramify-stream/internal/telegram"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the Telegram bot",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configFile)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	applyLogLevel(cfg.LogLevel)

	opts, err := relayOptions(cfg)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, err := store.Open(cfg.Store.Path)
	if err != nil {
		return err
	}
	defer st.Close()
	if err := st.SeedUsers(ctx, cfg.Telegram.AllowedUsers); err != nil {
		return err
	}

	api, err := tgbotapi.NewBotAPI(cfg.Telegram.Token)
	if err != nil {
		return fmt.Errorf("telegram connect: %w", err)
	}
	if len(cfg.Telegram.AllowedUsers) == 0 {
		telegramify.Logf("[telegram] warning: no allowed users configured; everyone can talk to the bot")
	}

	client := llm.NewClient(llm.Config{
		APIKey:       cfg.LLM.APIKey,
		BaseURL:      cfg.LLM.BaseURL,
		MinIncrement: cfg.LLM.MinIncrement,
	})
	bot := telegram.New(api, client, st, telegram.Options{
		Model:        cfg.LLM.Model,
		SystemPrompt: cfg.LLM.SystemPrompt,
		HistoryLimit: cfg.LLM.HistoryLimit,
		AllowedUsers: cfg.Telegram.AllowedUsers,
		Relay:        opts,
	})
	return telegram.Listen(ctx, api, bot)
}
