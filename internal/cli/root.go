package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "hmp",
	Short: "Local-first client for the hotel maintenance dataset",
	Long: `hmp keeps the hotel maintenance dataset in a local store and
synchronizes it with the hmpd server according to the client mode
(LOCAL_ONLY, DOUBLE_WRITE or API_ONLY). Local edits are never discarded
before they reach the server.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command. Interrupts cancel the command context.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	rootCmd.PersistentFlags().String("local", "", "Path to the local store (overrides HMP_LOCAL_PATH)")
	rootCmd.PersistentFlags().String("api", "", "Server base URL; remembered in the local store")
	rootCmd.PersistentFlags().String("mode", "", "Mode override (LOCAL_ONLY, DOUBLE_WRITE, API_ONLY); remembered")
	rootCmd.PersistentFlags().StringP("output", "o", "", "Output format: table, json or yaml")
	rootCmd.PersistentFlags().String("log-level", "", "Log level (overrides HMP_LOG_LEVEL)")
}
