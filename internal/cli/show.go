package cli

import (
	"encoding/json"

	"github.com/spf13/cobra"

	"github.com/lherron/hmp/internal/cli/appctx"
	"github.com/lherron/hmp/internal/legacy"
	"github.com/lherron/hmp/internal/render"
)

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the local document",
	Long:  `Print the local document as indented JSON. Use -o yaml for YAML.`,
	Args:  cobra.NoArgs,
	RunE:  appctx.WithApp(appctx.ClientOptions(), runShow),
}

func init() {
	rootCmd.AddCommand(showCmd)
}

func runShow(app *appctx.App, cmd *cobra.Command, args []string) error {
	doc, err := app.Local.Load(cmd.Context())
	if err != nil {
		return err
	}
	data, err := legacy.Pretty(doc)
	if err != nil {
		return err
	}
	if r := newRenderer(app, cmd); r.Format() == render.FormatYAML {
		// Go through a generic value so YAML keys match the JSON names.
		var generic map[string]any
		if err := json.Unmarshal(data, &generic); err != nil {
			return err
		}
		return r.RenderYAML(generic)
	}
	_, err = cmd.OutOrStdout().Write(data)
	return err
}
