package cli

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/lherron/hmp/internal/cli/appctx"
	"github.com/lherron/hmp/internal/localstore"
	"github.com/lherron/hmp/internal/syncer"
)

var watchCmd = &cobra.Command{
	Use:   "watch FILE",
	Short: "Load FILE into the local store whenever it changes",
	Long: `Watch loads FILE into the local store every time it is written, and
lets the debounced push send the result to the server. Sync status is
printed as it happens.

Examples:
  hmp watch ./hotel.json
  hmp --mode DOUBLE_WRITE watch ./hotel.json
`,
	Args: cobra.ExactArgs(1),
	RunE: appctx.WithApp(appctx.ClientOptions(), runWatch),
}

func init() {
	rootCmd.AddCommand(watchCmd)
}

func runWatch(app *appctx.App, cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	notify := func() {}
	if app.Mode.Mode.Pushes() {
		o, err := newOrchestrator(app)
		if err != nil {
			return err
		}
		defer func() {
			flushCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			if _, err := o.Flush(flushCtx); err != nil {
				app.Log.WithError(err).Warn("final push failed")
			}
			o.Close()
		}()
		go printEvents(ctx, cmd, o.Events())
		notify = o.NotifyMutation
	}

	fmt.Fprintf(cmd.ErrOrStderr(), "Watching %s... (Press Ctrl+C to exit)\n", args[0])
	return watchFile(ctx, args[0], app.Local, notify, app.Log)
}

func printEvents(ctx context.Context, cmd *cobra.Command, events <-chan syncer.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-events:
			if ev.State == syncer.StateStart {
				continue
			}
			line := fmt.Sprintf("%s %s %s", ev.At.Format(time.TimeOnly), ev.Kind, ev.State)
			if ev.Reason != "" {
				line += " (" + string(ev.Reason) + ")"
			}
			if ev.Err != nil {
				line += ": " + ev.Err.Error()
			}
			fmt.Fprintln(cmd.OutOrStdout(), line)
		}
	}
}

// watchFile loads path into the store on every write until ctx is done.
// The parent directory is watched so that editors replacing the file are
// seen too.
func watchFile(ctx context.Context, path string, local *localstore.Store, notify func(), log logrus.FieldLogger) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer func() { _ = watcher.Close() }()
	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		return fmt.Errorf("failed to watch %s: %w", filepath.Dir(abs), err)
	}

	reload := func() {
		changed, err := loadFile(ctx, local, abs, log)
		if err != nil {
			log.WithError(err).Warn("skipping unreadable file")
			return
		}
		if changed {
			log.WithField("file", abs).Info("local document updated")
			notify()
		}
	}
	reload()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != abs {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) {
				reload()
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.WithError(err).Warn("watcher error")
		}
	}
}
