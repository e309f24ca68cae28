package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	telegramify "github.com/riverfjs/telegramify-stream"
	"github.com/riverfjs/telegramify-stream/internal/parser"
)

var (
	splitCap     int
	splitTables  string
	splitBodies  bool
	splitChunk   int
	splitOpaque  bool
	splitEscapes bool
	splitBackoff bool
	splitCheck   bool
)

var splitCmd = &cobra.Command{
	Use:   "split [file]",
	Short: "Split a markdown file (or stdin) into Telegram-sized segments",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runSplit,
}

func init() {
	splitCmd.Flags().IntVar(&splitCap, "cap", telegramify.DefaultSegmentCap, "maximum segment body length in UTF-16 code units")
	splitCmd.Flags().StringVar(&splitTables, "tables", "streaming", "table policy: streaming, whole or off")
	splitCmd.Flags().BoolVar(&splitBodies, "bodies", false, "print raw bodies instead of rendered segments")
	splitCmd.Flags().IntVar(&splitChunk, "chunk", 0, "feed the input in increments of this many bytes (0 feeds it at once)")
	splitCmd.Flags().BoolVar(&splitOpaque, "opaque-inline-code", false, "ignore markers inside inline code")
	splitCmd.Flags().BoolVar(&splitEscapes, "escapes", false, "treat a backslash as escaping the next character")
	splitCmd.Flags().BoolVar(&splitBackoff, "backoff", false, "move hard cuts back to the start of a marker run")
	splitCmd.Flags().BoolVar(&splitCheck, "check", false, "parse every segment on its own and report unpaired markers")
}

func runSplit(cmd *cobra.Command, args []string) error {
	in := cmd.InOrStdin()
	if len(args) == 1 {
		f, err := os.Open(args[0])
		if err != nil {
			return err
		}
		defer f.Close()
		in = f
	}
	data, err := io.ReadAll(in)
	if err != nil {
		return fmt.Errorf("read input: %w", err)
	}

	policy, ok := telegramify.ParseTablePolicy(splitTables)
	if !ok {
		return fmt.Errorf("unknown table policy %q", splitTables)
	}
	st := telegramify.NewStream(
		telegramify.WithSegmentCap(splitCap),
		telegramify.WithTablePolicy(policy),
		telegramify.WithOpaqueInlineCode(splitOpaque),
		telegramify.WithBackslashEscapes(splitEscapes),
		telegramify.WithMarkerRunBackoff(splitBackoff),
	)

	var segs []telegramify.Segment
	for _, inc := range chunks(string(data), splitChunk) {
		segs = append(segs, st.Write(inc)...)
	}
	segs = append(segs, st.Close()...)

	out := cmd.OutOrStdout()
	for _, seg := range segs {
		text := seg.Text()
		if splitBodies {
			text = seg.Body
		}
		fmt.Fprintf(out, "----- segment %d (%d units) -----\n%s\n", seg.Index, telegramify.CountText(text), text)
		if splitCheck {
			for _, leak := range parser.Check(seg.Text()) {
				fmt.Fprintf(cmd.ErrOrStderr(), "segment %d: unpaired %q at byte %d\n", seg.Index, leak.Marker, leak.Offset)
			}
		}
	}
	if !st.Balanced() {
		fmt.Fprintf(cmd.ErrOrStderr(), "warning: %d spans left open at end of input\n", len(st.OpenSpans()))
	}
	return nil
}

// chunks cuts s into pieces of n bytes without splitting a UTF-8 sequence.
func chunks(s string, n int) []string {
	if n <= 0 || len(s) <= n {
		return []string{s}
	}
	var out []string
	for len(s) > n {
		end := n
		for end < len(s) && s[end]&0xC0 == 0x80 {
			end++
		}
		out = append(out, s[:end])
		s = s[end:]
	}
	if s != "" {
		out = append(out, s)
	}
	return out
}
