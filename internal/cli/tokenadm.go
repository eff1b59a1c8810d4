package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/lherron/hmp/internal/auth"
	"github.com/lherron/hmp/internal/cli/appctx"
)

var tokenAdmCmd = &cobra.Command{
	Use:   "token EMAIL",
	Short: "Issue an access token for a user",
	Long: `Token signs an access token for the user with the configured
HMP_JWT_ACCESS_SECRET. Hand it to "hmp login --token".

Examples:
  hmpadm token owner@example.com
  hmpadm token owner@example.com --ttl 24h | hmp login
`,
	Args: cobra.ExactArgs(1),
	RunE: appctx.WithApp(appctx.ServerOptions(), runTokenAdm),
}

var tokenAdmTTL time.Duration

func init() {
	rootAdmCmd.AddCommand(tokenAdmCmd)

	tokenAdmCmd.Flags().DurationVar(&tokenAdmTTL, "ttl", 0, "Token lifetime, e.g. 15m or 24h (default from config)")
}

func runTokenAdm(app *appctx.App, cmd *cobra.Command, args []string) error {
	if app.Config.JWTAccessSecret == "" {
		return exitError(2, fmt.Errorf("HMP_JWT_ACCESS_SECRET is not set"))
	}
	ttl := app.Config.JWTAccessTTL
	if tokenAdmTTL > 0 {
		ttl = tokenAdmTTL
	}

	user, err := lookupUser(cmd.Context(), app.Store, args[0])
	if err != nil {
		return err
	}
	token, err := auth.NewSigner(app.Config.JWTAccessSecret, ttl).Issue(user)
	if err != nil {
		return exitError(1, err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), token)
	return nil
}
