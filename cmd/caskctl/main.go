// Command caskctl is the operator CLI for the caskhouse site backend. It
// issues admin tokens, drives a scripted visitor session through the client
// SDK, and load tests the tracking endpoints.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"caskhouse/internal/platform/logger"
)

var (
	baseURL  string
	logLevel string
	log      *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:           "caskctl",
	Short:         "Operate and exercise the caskhouse site backend",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, _ []string) {
		log = logger.NewWithWriter(cmd.ErrOrStderr(), logLevel)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&baseURL, "base-url", envOr("CASKHOUSE_URL", "http://localhost:8080"), "Backend base URL")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")

	rootCmd.AddCommand(tokenCmd)
	rootCmd.AddCommand(simulateCmd)
	rootCmd.AddCommand(loadtestCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
