package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/lherron/hmp/internal/cli/appctx"
	"github.com/lherron/hmp/internal/legacy"
	"github.com/lherron/hmp/internal/localstore"
	"github.com/lherron/hmp/internal/parse"
)

var loadCmd = &cobra.Command{
	Use:   "load FILE",
	Short: "Replace the local document with a JSON or YAML file",
	Long: `Load replaces the local document with the content of FILE and stamps
it as a local edit. In DOUBLE_WRITE and API_ONLY mode the new document is
pushed right away.`,
	Args: cobra.ExactArgs(1),
	RunE: appctx.WithApp(appctx.ClientOptions(), runLoad),
}

func init() {
	rootCmd.AddCommand(loadCmd)
}

func runLoad(app *appctx.App, cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	changed, err := loadFile(ctx, app.Local, args[0], app.Log)
	if err != nil {
		return exitError(1, err)
	}
	out := cmd.OutOrStdout()
	if !changed {
		fmt.Fprintln(out, "Local document already matches the file.")
		return nil
	}
	fmt.Fprintln(out, "Local document replaced.")

	if !app.Mode.Mode.Pushes() {
		return nil
	}
	o, err := newOrchestrator(app)
	if err != nil {
		return err
	}
	defer o.Close()
	if _, err := o.Push(ctx); err != nil {
		app.Log.WithError(err).Warn("push failed; the change stays local until the next sync")
	}
	return nil
}

// loadFile replaces the local document with the one in path. It reports
// false when the content is unchanged, in which case nothing is written.
func loadFile(ctx context.Context, local *localstore.Store, path string, log logrus.FieldLogger) (bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return false, fmt.Errorf("failed to read %s: %w", path, err)
	}
	data, err = parse.File(path, data)
	if err != nil {
		return false, fmt.Errorf("failed to read %s: %w", path, err)
	}
	incoming, err := legacy.Decode(data)
	if err != nil {
		return false, fmt.Errorf("failed to decode %s: %w", path, err)
	}
	for c, n := range incoming.Invalid {
		log.WithField("collection", c).Warnf("dropped %d invalid entries", n)
	}
	incoming.Normalize()

	current, err := local.Load(ctx)
	if err != nil {
		return false, err
	}
	before, err := legacy.Revision(current)
	if err != nil {
		return false, err
	}
	after, err := legacy.Revision(incoming)
	if err != nil {
		return false, err
	}
	if before == after {
		return false, nil
	}

	_, err = local.Mutate(ctx, func(d *legacy.Document) error {
		*d = *incoming
		return nil
	})
	return err == nil, err
}
