package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lherron/hmp/internal/cli/appctx"
	"github.com/lherron/hmp/internal/mode"
)

var modeCmd = &cobra.Command{
	Use:   "mode [MODE]",
	Short: "Show or set the client mode",
	Long: `Without an argument, mode prints the resolved mode and where it came
from. With an argument, the mode is stored as the new preference.

Modes:
  LOCAL_ONLY     never contact the server
  DOUBLE_WRITE   local store is primary, push after every change
  API_ONLY       server is primary, pulls replace local state
`,
	Args: cobra.MaximumNArgs(1),
	RunE: appctx.WithApp(appctx.ClientOptions(), runMode),
}

func init() {
	rootCmd.AddCommand(modeCmd)
}

func runMode(app *appctx.App, cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	if len(args) == 0 {
		fmt.Fprintf(out, "%s (%s)\n", app.Mode.Mode, app.Mode.Source)
		return nil
	}

	m, ok := mode.Parse(args[0])
	if !ok {
		return exitError(2, fmt.Errorf("unknown mode %q", args[0]))
	}
	if m == mode.APIReadFallback {
		return exitError(2, fmt.Errorf("%s is deprecated; pass it with --mode to use it for one run", m))
	}
	if err := app.Local.SetStoredMode(cmd.Context(), m); err != nil {
		return err
	}
	fmt.Fprintf(out, "Mode set to %s.\n", m)
	return nil
}
