// Package cli 提供 finrag 命令行
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"fin-rag-api/internal/config"
	einoobs "fin-rag-api/internal/observability/eino"
	"fin-rag-api/internal/wire"
	"fin-rag-api/pkg/logger"
)

type ExitCode int

const (
	exitCodeSuccess = 0
	exitCodeError   = 1
)

// options 全局参数
type options struct {
	configDir string
	indexDir  string
	verbose   bool
}

func Run() ExitCode {
	opts := &options{}

	rootCmd := &cobra.Command{
		Use:           "finrag",
		Short:         "Answer questions about SEC 10-K filings.",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cmd.Help(); err != nil {
				return fmt.Errorf("failed to show help: %w", err)
			}
			return nil
		},
	}

	rootCmd.PersistentFlags().StringVar(&opts.configDir, "config-dir", envWithDefault("CONFIG_DIR", "configs"), "config directory (env: CONFIG_DIR)")
	rootCmd.PersistentFlags().StringVar(&opts.indexDir, "index-dir", "", "index .txt filings from this directory before answering")
	rootCmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "set debug logging level")

	rootCmd.AddCommand(
		newAskCmd(opts),
		newChatCmd(opts),
		newExamplesCmd(),
		newIndexCmd(opts),
		newResetCmd(opts),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return exitCodeError
	}
	return exitCodeSuccess
}

// loadApp 加载配置并初始化问答应用；日志写 stderr，避免干扰答案输出
func loadApp(ctx context.Context, opts *options) (*wire.App, func(), error) {
	cfg, err := config.LoadFrom(opts.configDir, false)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}

	level := cfg.Observability.Logging.Level
	if opts.verbose {
		level = "debug"
	}
	logger.InitWithWriter(os.Stderr, level, "text")
	einoobs.Init()

	if opts.indexDir != "" {
		cfg.Ingestion.PreloadDir = opts.indexDir
	}

	app, cleanup, err := wire.InitializeApp(ctx, cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize app: %w", err)
	}
	if err := app.Preload(ctx); err != nil {
		logger.Warn(ctx, "some filings failed to index", "error", err.Error())
	}
	return app, cleanup, nil
}

func envWithDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
