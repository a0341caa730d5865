package cli

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"fin-rag-api/internal/application/retrieval"
)

func newIndexCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "index <dir>",
		Short: "Chunk, embed and store every .txt filing under a directory.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			// 目录由参数指定，不走 preload
			saved := opts.indexDir
			opts.indexDir = ""
			defer func() { opts.indexDir = saved }()

			app, cleanup, err := loadApp(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer cleanup()

			if !app.Indexer.Enabled() {
				return retrieval.ErrVectorDisabled
			}

			report, err := app.Indexer.IndexDir(cmd.Context(), args[0])
			if report == nil {
				return err
			}
			printReport(cmd.OutOrStdout(), report)
			if report.Files > 0 {
				app.InvalidateAnswers(cmd.Context())
			}
			if len(report.Failed) > 0 {
				return fmt.Errorf("%d filings failed to index: %w", len(report.Failed), err)
			}
			return err
		},
	}
}

func newResetCmd(opts *options) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Delete every indexed chunk and clear cached answers.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				return errResetNotConfirmed
			}
			// 清空前不预加载
			opts.indexDir = ""

			app, cleanup, err := loadApp(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer cleanup()

			if err := app.Reset(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "vector store reset")
			return nil
		},
	}
	cmd.Flags().BoolVar(&yes, "yes", false, "confirm deleting all indexed chunks")
	return cmd
}

var errResetNotConfirmed = errors.New("reset deletes all indexed chunks; rerun with --yes")

func printReport(out io.Writer, r *retrieval.IndexReport) {
	fmt.Fprintf(out, "indexed %d files, %d chunks\n", r.Files, r.Chunks)
	for _, f := range r.Failed {
		fmt.Fprintf(out, "failed: %s\n", f)
	}
}
