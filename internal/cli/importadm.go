package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/lherron/hmp/internal/cli/appctx"
	"github.com/lherron/hmp/internal/legacy"
	"github.com/lherron/hmp/internal/migration"
	"github.com/lherron/hmp/internal/parse"
)

var importAdmCmd = &cobra.Command{
	Use:   "import FILE",
	Short: "Import a legacy document into the server database",
	Long: `Import runs the same import as POST /api/v1/migration/import on behalf
of the user given by --as, without going through hmpd.

Examples:
  hmpadm import backup.json --as owner@example.com
`,
	Args: cobra.ExactArgs(1),
	RunE: appctx.WithApp(appctx.ServerOptions(), runImportAdm),
}

var exportAdmCmd = &cobra.Command{
	Use:   "export [FILE]",
	Short: "Export the server data of a user as a legacy document",
	Long: `Export writes the document GET /api/v1/migration/export would return for
the user given by --as. Without FILE the document is printed.`,
	Args: cobra.MaximumNArgs(1),
	RunE: appctx.WithApp(appctx.ServerOptions(), runExportAdm),
}

var (
	importAdmAs string
	exportAdmAs string
)

func init() {
	rootAdmCmd.AddCommand(importAdmCmd)
	rootAdmCmd.AddCommand(exportAdmCmd)

	importAdmCmd.Flags().StringVar(&importAdmAs, "as", "", "Email of the user the import runs as (required)")
	exportAdmCmd.Flags().StringVar(&exportAdmAs, "as", "", "Email of the user the export runs as (required)")
	_ = importAdmCmd.MarkFlagRequired("as")
	_ = exportAdmCmd.MarkFlagRequired("as")
}

func runImportAdm(app *appctx.App, cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	user, err := lookupUser(ctx, app.Store, importAdmAs)
	if err != nil {
		return err
	}
	if !user.Role.CanImport() {
		return exitError(1, fmt.Errorf("role %s may not import", user.Role))
	}

	data, err := os.ReadFile(args[0])
	if err != nil {
		return exitError(1, fmt.Errorf("failed to read %s: %w", args[0], err))
	}
	data, err = parse.File(args[0], data)
	if err != nil {
		return exitError(1, fmt.Errorf("failed to read %s: %w", args[0], err))
	}
	doc, err := legacy.Decode(data)
	if err != nil {
		return exitError(1, fmt.Errorf("failed to decode %s: %w", args[0], err))
	}

	summary, err := migration.Import(ctx, app.Store, user.OrganizationID, user.ID, doc,
		migrationOptions(app.Config, time.Now, app.Log))
	if err != nil {
		return exitError(1, err)
	}
	for _, w := range summary.Warnings() {
		app.Log.WithField("bucket", w.Name).Warnf("skipped %d entries", w.Count)
	}
	return renderSummary(newRenderer(app, cmd), summary)
}

func runExportAdm(app *appctx.App, cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	user, err := lookupUser(ctx, app.Store, exportAdmAs)
	if err != nil {
		return err
	}

	doc, err := migration.Export(ctx, app.Store, user.OrganizationID, user.ID,
		migrationOptions(app.Config, time.Now, app.Log))
	if err != nil {
		return exitError(1, err)
	}
	data, err := legacy.Pretty(doc)
	if err != nil {
		return err
	}

	if len(args) == 0 {
		_, err = cmd.OutOrStdout().Write(data)
		return err
	}
	if err := os.WriteFile(args[0], data, 0o644); err != nil {
		return exitError(1, fmt.Errorf("failed to write %s: %w", args[0], err))
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "✓ Exported to %s\n", args[0])
	return nil
}
