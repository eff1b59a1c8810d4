package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var rootAdmCmd = &cobra.Command{
	Use:   "hmpadm",
	Short: "Administrative CLI for the hmp server database",
	Long: `hmpadm is the administrative companion to hmpd. It handles database
lifecycle (init, migrate), users and access tokens, and one-shot imports
and exports of legacy documents.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// ExecuteAdmin runs the admin root command
func ExecuteAdmin() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return rootAdmCmd.ExecuteContext(ctx)
}

func init() {
	rootAdmCmd.PersistentFlags().String("db", "", "Path to database file (overrides HMP_DB_PATH)")
	rootAdmCmd.PersistentFlags().StringP("output", "o", "", "Output format: table, json or yaml")
	rootAdmCmd.PersistentFlags().String("log-level", "", "Log level (overrides HMP_LOG_LEVEL)")
}
