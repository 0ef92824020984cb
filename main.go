package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"autoapply/config"
	"autoapply/utils"
)

var (
	appConfig config.AppConfig
	logger    *utils.Logger
)

var rootCmd = &cobra.Command{
	Use:           "autoapply",
	Short:         "Fill and submit job application forms",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		appConfig = cfg
		logger = utils.NewLogger(cfg.Logger)
		utils.SetGlobalLogger(logger)
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	rootCmd.AddCommand(serveCmd, batchCmd, inspectCmd, tokenCmd, migrateCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		if errors.Is(err, context.Canceled) {
			os.Exit(0)
		}
		if logger != nil {
			logger.Error("command failed", err, zap.String("command", commandName()))
		} else {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(1)
	}
}

func commandName() string {
	if len(os.Args) > 1 {
		return os.Args[1]
	}
	return rootCmd.Use
}
