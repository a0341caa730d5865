package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"fin-rag-api/internal/application/query"
)

// Answerer 端到端问答，失败时返回以 "Error" 开头的文本
type Answerer interface {
	Answer(ctx context.Context, q string) string
}

func newAskCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "ask <question>",
		Short: "Answer a single question.",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, cleanup, err := loadApp(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer cleanup()

			fmt.Fprintln(cmd.OutOrStdout(), app.Pipeline.Answer(cmd.Context(), strings.Join(args, " ")))
			return nil
		},
	}
}

func newChatCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "chat",
		Short: "Interactive question answering. Type quit, exit or q to leave.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, cleanup, err := loadApp(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer cleanup()

			return runChat(cmd.Context(), cmd.InOrStdin(), cmd.OutOrStdout(), app.Pipeline)
		},
	}
}

// runChat 逐行读取问题；错误答案照常打印，循环继续
func runChat(ctx context.Context, in io.Reader, out io.Writer, a Answerer) error {
	fmt.Fprintln(out, "Ask a question about the filings (quit, exit or q to leave).")
	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, "> ")
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		switch strings.ToLower(line) {
		case "":
			continue
		case "quit", "exit", "q":
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		fmt.Fprintln(out, a.Answer(ctx, line))
		fmt.Fprintln(out)
	}
}

func newExamplesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "examples",
		Short: "List example questions by category.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			printExamples(cmd.OutOrStdout(), query.Examples())
			return nil
		},
	}
}

func printExamples(out io.Writer, cats []query.ExampleCategory) {
	for i, c := range cats {
		if i > 0 {
			fmt.Fprintln(out)
		}
		fmt.Fprintf(out, "%s:\n", c.Name)
		for _, q := range c.Questions {
			fmt.Fprintf(out, "  - %s\n", q)
		}
	}
}
