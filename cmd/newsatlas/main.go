// Package main provides the NewsAtlas command line entry point.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"NewsAtlas/internal/app"
	"NewsAtlas/internal/config"
	"NewsAtlas/internal/logging"
)

var rootCmd = &cobra.Command{
	Use:   "newsatlas",
	Short: "Bangladesh news aggregation pipeline",
	Long:  "NewsAtlas scrapes Bangladeshi news sources, consolidates duplicate coverage into canonical articles and resolves the places each story mentions to map coordinates.",
}

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// newApp builds the application with a signal-aware context shared by every
// subcommand.
func newApp() (*app.Application, context.Context, context.CancelFunc, error) {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		cancel()
		return nil, nil, nil, fmt.Errorf("invalid configuration: %w", err)
	}

	logger := logging.New(cfg.Logging.Level)
	application, err := app.New(ctx, cfg, logger)
	if err != nil {
		cancel()
		return nil, nil, nil, err
	}
	return application, ctx, cancel, nil
}
