package cli

import (
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/spf13/cobra"

	"github.com/lherron/hmp/internal/cli/appctx"
	"github.com/lherron/hmp/internal/config"
	"github.com/lherron/hmp/internal/legacy"
	"github.com/lherron/hmp/internal/migration"
	"github.com/lherron/hmp/internal/render"
	"github.com/lherron/hmp/internal/syncer"
)

// exitError returns an error that will cause the CLI to exit with the given code
func exitError(code int, err error) error {
	return &ExitError{Code: code, Err: err}
}

// ExitError carries the process exit code of a failed command.
type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string { return e.Err.Error() }

func (e *ExitError) Unwrap() error { return e.Err }

func newRenderer(app *appctx.App, cmd *cobra.Command) *render.Renderer {
	out := cmd.OutOrStdout()
	return render.NewRenderer(out, render.Options{Format: render.Detect(app.Config.Output, out)})
}

// newClient returns the server client, or an error when no API base is
// known.
func newClient(app *appctx.App) (*syncer.Client, error) {
	if app.Config.APIBase == "" {
		return nil, exitError(2, fmt.Errorf("no server configured (use --api or set HMP_API_BASE)"))
	}
	return syncer.NewClient(app.Config.APIBase, nil, app.Log), nil
}

func newOrchestrator(app *appctx.App) (*syncer.Orchestrator, error) {
	client, err := newClient(app)
	if err != nil {
		return nil, err
	}
	return syncer.New(app.Local, client, syncer.Options{
		Mode:     app.Mode.Mode,
		Debounce: app.Config.PushDebounce(),
		Logger:   app.Log,
	}), nil
}

// renderSummary prints an import summary as bucket rows.
func renderSummary(r *render.Renderer, summary *migration.Summary) error {
	if summary == nil {
		summary = &migration.Summary{}
	}
	var rows [][]string
	for _, b := range summary.CreatedBuckets() {
		rows = append(rows, []string{"created", b.Name, strconv.Itoa(b.Count)})
	}
	for _, b := range summary.SkippedBuckets() {
		rows = append(rows, []string{"skipped", b.Name, strconv.Itoa(b.Count)})
	}
	return r.Render(summary, []string{"RESULT", "BUCKET", "COUNT"}, rows)
}

func sortedCounts[K ~string](counts map[K]int) [][]string {
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, string(k))
	}
	sort.Strings(keys)
	rows := make([][]string, 0, len(keys))
	for _, k := range keys {
		rows = append(rows, []string{k, strconv.Itoa(counts[K(k)])})
	}
	return rows
}

// migrationOptions builds the export and import options from the server
// configuration. Configured timezone and work hours replace the defaults.
func migrationOptions(cfg *config.Config, now func() time.Time, log logrus.FieldLogger) migration.Options {
	settings := legacy.DefaultSettings()
	if cfg.Timezone != "" {
		settings.Timezone = cfg.Timezone
	}
	if cfg.WorkHoursStart != "" {
		settings.WorkHours.Start = cfg.WorkHoursStart
	}
	if cfg.WorkHoursEnd != "" {
		settings.WorkHours.End = cfg.WorkHoursEnd
	}
	return migration.Options{Settings: settings, Now: now, Logger: log}
}
