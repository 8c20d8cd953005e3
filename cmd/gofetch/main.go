package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/datallboy/gofetch/internal/app"
	"github.com/datallboy/gofetch/internal/infra/config"
)

func main() {
	_ = godotenv.Load()

	// Setup Signal Handling for Graceful Shutdown
	// We create a context that is cancelled when the user hits Ctrl+C
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "gofetch",
		Short:         "Resumable HTTP downloader",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to config.yaml")

	load := func(cmd *cobra.Command) (*app.Context, error) {
		cfg, err := config.Load(configPath)
		if err != nil {
			return nil, fmt.Errorf("config error: %w", err)
		}
		return app.Bootstrap(cmd.Context(), cfg)
	}

	root.AddCommand(
		newGetCmd(load),
		newServeCmd(load),
		newConfigCmd(),
	)
	return root
}
