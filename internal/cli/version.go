package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"
)

var (
	// Version information (set by build flags)
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long:  `Displays version, commit, and build date information.`,
	RunE:  runVersion,
}

var versionJSON bool

func init() {
	rootCmd.AddCommand(versionCmd)
	versionCmd.Flags().BoolVar(&versionJSON, "json", false, "Output as JSON")
}

func runVersion(cmd *cobra.Command, args []string) error {
	return printVersion(cmd.OutOrStdout(), "hmp", versionJSON, []string{
		"login", "logout", "status", "mode",
		"pull", "push", "diff", "show", "load", "watch",
		"version", "completion",
	})
}

func printVersion(out io.Writer, binary string, asJSON bool, commands []string) error {
	if asJSON {
		encoder := json.NewEncoder(out)
		encoder.SetIndent("", "  ")
		return encoder.Encode(map[string]any{
			"binary":             binary,
			"version":            Version,
			"commit":             GitCommit,
			"build_date":         BuildDate,
			"supported_commands": commands,
			"supported_formats":  []string{"json", "yaml", "table"},
		})
	}

	fmt.Fprintf(out, "%s version %s\n", binary, Version)
	fmt.Fprintf(out, "  commit: %s\n", GitCommit)
	fmt.Fprintf(out, "  built:  %s\n", BuildDate)
	return nil
}
