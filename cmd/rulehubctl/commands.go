package main

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/pscheid92/rulehub/internal/platform/logging"
	"github.com/pscheid92/rulehub/pkg/voteclient"
	"github.com/spf13/cobra"
)

const defaultServerURL = "http://localhost:8080"

type rootOptions struct {
	serverURL string
	logLevel  string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:          "rulehubctl",
		Short:        "Vote on rules and administer a rulehub deployment",
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			// Logs go to stderr so command output stays pipeable.
			slog.SetDefault(logging.New(cmd.ErrOrStderr(), opts.logLevel, "text"))
		},
	}

	root.PersistentFlags().StringVar(&opts.serverURL, "server", envOr("RULEHUB_URL", defaultServerURL), "rulehub base URL (or set RULEHUB_URL)")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "warn", "log level: debug, info, warn, error")

	root.AddCommand(
		newVoteCmd(opts),
		newStatsCmd(opts),
		newItemsCmd(opts),
		newMigrateCmd(),
		newSweepCmd(),
	)
	return root
}

func (o *rootOptions) client() *voteclient.Client {
	return voteclient.New(o.serverURL)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func contextWithTimeout(cmd *cobra.Command, d time.Duration) (context.Context, context.CancelFunc) {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithTimeout(ctx, d)
}
