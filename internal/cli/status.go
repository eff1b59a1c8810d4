package cli

import (
	"strconv"

	"github.com/spf13/cobra"

	"github.com/lherron/hmp/internal/cli/appctx"
	"github.com/lherron/hmp/internal/domain"
	"github.com/lherron/hmp/internal/legacy"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the local store, mode and sync state",
	RunE:  appctx.WithApp(appctx.ClientOptions(), runStatus),
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

type clientStatus struct {
	Mode       string                    `json:"mode" yaml:"mode"`
	ModeSource string                    `json:"mode_source" yaml:"mode_source"`
	APIBase    string                    `json:"api_base" yaml:"api_base"`
	LoggedIn   bool                      `json:"logged_in" yaml:"logged_in"`
	UpdatedAt  string                    `json:"updated_at" yaml:"updated_at"`
	LastSyncAt string                    `json:"last_sync_at,omitempty" yaml:"last_sync_at,omitempty"`
	Unsynced   bool                      `json:"unsynced" yaml:"unsynced"`
	Revision   string                    `json:"revision" yaml:"revision"`
	Counts     map[legacy.Collection]int `json:"counts" yaml:"counts"`
}

func runStatus(app *appctx.App, cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	doc, err := app.Local.Load(ctx)
	if err != nil {
		return err
	}
	token, err := app.Local.AccessToken(ctx)
	if err != nil {
		return err
	}
	lastSync, synced, err := app.Local.LastSyncAt(ctx)
	if err != nil {
		return err
	}
	revision, err := legacy.Revision(doc)
	if err != nil {
		return err
	}

	st := clientStatus{
		Mode:       string(app.Mode.Mode),
		ModeSource: string(app.Mode.Source),
		APIBase:    app.Config.APIBase,
		LoggedIn:   token != "",
		UpdatedAt:  doc.UpdatedAt,
		Unsynced:   true,
		Revision:   revision,
		Counts:     doc.Counts(),
	}
	if synced {
		st.LastSyncAt = domain.FormatTime(lastSync)
		if updated, ok := doc.UpdatedTime(); ok {
			st.Unsynced = updated.After(lastSync)
		}
	}

	rows := [][]string{
		{"mode", st.Mode + " (" + st.ModeSource + ")"},
		{"api", st.APIBase},
		{"logged in", strconv.FormatBool(st.LoggedIn)},
		{"updated at", st.UpdatedAt},
		{"last sync", st.LastSyncAt},
		{"unsynced", strconv.FormatBool(st.Unsynced)},
		{"revision", st.Revision},
	}
	rows = append(rows, sortedCounts(st.Counts)...)
	return newRenderer(app, cmd).Render(st, []string{"FIELD", "VALUE"}, rows)
}
