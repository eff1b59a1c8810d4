// Package appctx provides a shared bootstrap helper for CLI commands.
// It centralizes config loading, logger setup and opening the server
// database or the client's local store.
package appctx

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/lherron/hmp/internal/config"
	"github.com/lherron/hmp/internal/db"
	"github.com/lherron/hmp/internal/localstore"
	"github.com/lherron/hmp/internal/logging"
	"github.com/lherron/hmp/internal/mode"
	"github.com/lherron/hmp/internal/store"
)

// App holds the shared application context for commands.
type App struct {
	// Config is the loaded configuration
	Config *config.Config

	Log *logrus.Logger

	// DB and Store are the server database (nil if NeedsDB is false)
	DB    *db.DB
	Store *store.Store

	// Local is the client document store (nil if NeedsLocal is false)
	Local *localstore.Store

	// Mode is the resolved client mode (set with NeedsLocal)
	Mode mode.Resolution
}

// Close releases resources held by the App.
// Safe to call multiple times.
func (a *App) Close() {
	if a.DB != nil {
		a.DB.Close()
		a.DB = nil
		a.Store = nil
	}
	if a.Local != nil {
		a.Local.Close()
		a.Local = nil
	}
}

// Options configures the bootstrap behavior.
type Options struct {
	// NeedsDB opens the server database and refuses to run with pending
	// migrations.
	NeedsDB bool

	// NeedsLocal opens the client's local store and resolves the mode.
	NeedsLocal bool
}

// ServerOptions returns options for commands that work on the server
// database.
func ServerOptions() Options {
	return Options{NeedsDB: true}
}

// ClientOptions returns options for commands that work on the local store.
func ClientOptions() Options {
	return Options{NeedsLocal: true}
}

// RunFunc is the signature for command run functions.
type RunFunc func(app *App, cmd *cobra.Command, args []string) error

// WithApp wraps a command's run function with shared bootstrap logic.
// Resources are closed automatically when the wrapped function returns.
func WithApp(opts Options, fn RunFunc) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		app, err := Bootstrap(cmd, opts)
		if err != nil {
			return err
		}
		defer app.Close()

		return fn(app, cmd, args)
	}
}

func flagValue(cmd *cobra.Command, name string) string {
	if f := cmd.Flag(name); f != nil {
		return f.Value.String()
	}
	return ""
}

// Bootstrap initializes the App according to the given options.
// Callers are responsible for calling App.Close() when done.
func Bootstrap(cmd *cobra.Command, opts Options) (*App, error) {
	app := &App{}

	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	app.Config = cfg

	if v := flagValue(cmd, "db"); v != "" {
		cfg.DBPath = v
	}
	if v := flagValue(cmd, "local"); v != "" {
		cfg.LocalPath = v
	}
	if v := flagValue(cmd, "log-level"); v != "" {
		cfg.LogLevel = v
	}
	if v := flagValue(cmd, "output"); v != "" {
		cfg.Output = v
	}

	app.Log = logging.New(cmd.Root().Name(), cfg.LogLevel)

	if opts.NeedsDB {
		database, err := db.Open(cfg.DBPath)
		if err != nil {
			return nil, fmt.Errorf("failed to open database: %w", err)
		}
		if err := database.RequiresMigrationError(); err != nil {
			database.Close()
			return nil, err
		}
		app.DB = database
		app.Store = store.New(database)
	}

	if opts.NeedsLocal {
		local, err := localstore.Open(cfg.LocalPath)
		if err != nil {
			app.Close()
			return nil, fmt.Errorf("failed to open local store: %w", err)
		}
		app.Local = local

		if err := resolveClient(cmd.Context(), app, flagValue(cmd, "api"), flagValue(cmd, "mode")); err != nil {
			app.Close()
			return nil, err
		}
	}

	return app, nil
}

// resolveClient settles the API base (flag, then stored, then config) and
// the mode (flag override, then stored, then the default for the base).
func resolveClient(ctx context.Context, app *App, apiFlag, modeFlag string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if apiFlag != "" {
		if err := app.Local.SetAPIBase(ctx, apiFlag); err != nil {
			return err
		}
	}
	base, err := app.Local.APIBase(ctx)
	if err != nil {
		return err
	}
	if base == "" {
		base = app.Config.APIBase
	}
	app.Config.APIBase = base

	override := modeFlag
	envDefault := mode.DefaultFor(base)
	if m, ok := mode.Parse(app.Config.Mode); ok && m != mode.APIReadFallback {
		envDefault = m
	}
	res, err := mode.ResolveStored(ctx, app.Local, override, envDefault)
	if err != nil {
		return err
	}
	if res.Upgraded {
		app.Log.Warn("deprecated mode API_READ_FALLBACK was upgraded to DOUBLE_WRITE")
	}
	app.Mode = res
	return nil
}
