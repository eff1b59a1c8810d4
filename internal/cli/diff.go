package cli

import (
	"errors"
	"fmt"

	"github.com/pmezard/go-difflib/difflib"
	"github.com/spf13/cobra"

	"github.com/lherron/hmp/internal/cli/appctx"
	"github.com/lherron/hmp/internal/legacy"
	"github.com/lherron/hmp/internal/syncer"
)

var diffCmd = &cobra.Command{
	Use:   "diff",
	Short: "Compare the local document with the server document",
	Long: `Compare the local document with the server document and print a
unified diff. The server side is "server", the local side is "local".

Examples:
  hmp diff
  hmp diff --unified 10
`,
	Args: cobra.NoArgs,
	RunE: appctx.WithApp(appctx.ClientOptions(), runDiff),
}

var diffUnified int

func init() {
	rootCmd.AddCommand(diffCmd)

	diffCmd.Flags().IntVar(&diffUnified, "unified", 3, "Lines of unified context")
}

func runDiff(app *appctx.App, cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	client, err := newClient(app)
	if err != nil {
		return err
	}
	token, err := app.Local.AccessToken(ctx)
	if err != nil {
		return err
	}
	if token == "" {
		return exitError(1, syncer.ErrMissingToken)
	}

	remote, err := client.Export(ctx, token)
	if err != nil {
		if errors.Is(err, syncer.ErrUnauthorized) {
			return exitError(1, fmt.Errorf("%w (run hmp login)", err))
		}
		return exitError(1, err)
	}
	local, err := app.Local.Load(ctx)
	if err != nil {
		return err
	}

	text, err := documentDiff(remote, local, diffUnified)
	if err != nil {
		return err
	}
	if text == "" {
		fmt.Fprintln(cmd.OutOrStdout(), "No differences.")
		return nil
	}
	fmt.Fprint(cmd.OutOrStdout(), text)
	return nil
}

// documentDiff returns the unified diff between the indented encodings of
// two documents, or "" when they are equal.
func documentDiff(server, local *legacy.Document, context int) (string, error) {
	server.Normalize()
	local.Normalize()
	a, err := legacy.Pretty(server)
	if err != nil {
		return "", err
	}
	b, err := legacy.Pretty(local)
	if err != nil {
		return "", err
	}
	return difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        difflib.SplitLines(string(a)),
		B:        difflib.SplitLines(string(b)),
		FromFile: "server",
		ToFile:   "local",
		Context:  context,
	})
}
