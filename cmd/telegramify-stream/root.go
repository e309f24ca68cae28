package main

import (
	"github.com/spf13/cobra"
)

var configFile string

var rootCmd = &cobra.Command{
	Use:   "telegramify-stream",
	Short: "Relay streamed LLM output to Telegram without breaking markup",
	Long: `telegramify-stream splits generated text into Telegram-sized messages,
closing and reopening bold, italic, spoiler and code spans at every cut
and fencing ASCII tables so they keep their alignment.

Examples:
  telegramify-stream serve --config ./config.yaml
  cat answer.md | telegramify-stream split --cap 200`,
	SilenceUsage:      true,
	CompletionOptions: cobra.CompletionOptions{DisableDefaultCmd: true},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file (default $XDG_CONFIG_HOME/telegramify-stream/config.yaml)")
	rootCmd.AddCommand(serveCmd, splitCmd)
}
