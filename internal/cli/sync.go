package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lherron/hmp/internal/cli/appctx"
)

var pullCmd = &cobra.Command{
	Use:   "pull",
	Short: "Fetch the server document into the local store",
	Long: `Pull fetches the server document. Unsynced local edits are pushed
first; if that is impossible, or the local document is newer, the local
document is kept. In API_ONLY mode the server document always wins.`,
	RunE: appctx.WithApp(appctx.ClientOptions(), runPull),
}

var pushCmd = &cobra.Command{
	Use:   "push",
	Short: "Send the local document to the server",
	RunE:  appctx.WithApp(appctx.ClientOptions(), runPush),
}

func init() {
	rootCmd.AddCommand(pullCmd)
	rootCmd.AddCommand(pushCmd)
}

func runPull(app *appctx.App, cmd *cobra.Command, args []string) error {
	o, err := newOrchestrator(app)
	if err != nil {
		return err
	}
	defer o.Close()

	res, err := o.Pull(cmd.Context())
	if err != nil {
		return exitError(1, fmt.Errorf("pull failed: %w", err))
	}
	out := cmd.OutOrStdout()
	switch {
	case res.Skipped:
		fmt.Fprintf(out, "Mode %s does not pull.\n", app.Mode.Mode)
	case res.KeptLocal:
		fmt.Fprintf(out, "Kept local document (%s).\n", res.Reason)
	default:
		fmt.Fprintln(out, "Pulled server document.")
	}
	return nil
}

func runPush(app *appctx.App, cmd *cobra.Command, args []string) error {
	o, err := newOrchestrator(app)
	if err != nil {
		return err
	}
	defer o.Close()

	res, err := o.Push(cmd.Context())
	if err != nil {
		return exitError(1, fmt.Errorf("push failed: %w", err))
	}
	if res.Skipped {
		fmt.Fprintf(cmd.OutOrStdout(), "Mode %s does not push.\n", app.Mode.Mode)
		return nil
	}
	if res.Summary != nil {
		for _, w := range res.Summary.Warnings() {
			app.Log.WithField("bucket", w.Name).Warnf("server skipped %d entries", w.Count)
		}
	}
	return renderSummary(newRenderer(app, cmd), res.Summary)
}
