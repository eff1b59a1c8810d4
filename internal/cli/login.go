package cli

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/lherron/hmp/internal/cli/appctx"
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Store an access token for the server",
	Long: `Login stores the access token used for pushes and pulls. The token is
read from --token, or from the first line of stdin.

Examples:
  hmp login --token eyJhbGciOi...
  hmpadm token admin@example.com | hmp login
`,
	RunE: appctx.WithApp(appctx.ClientOptions(), runLogin),
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Forget the stored access token",
	RunE:  appctx.WithApp(appctx.ClientOptions(), runLogout),
}

var loginToken string

func init() {
	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(logoutCmd)

	loginCmd.Flags().StringVar(&loginToken, "token", "", "Access token")
}

func runLogin(app *appctx.App, cmd *cobra.Command, args []string) error {
	token := strings.TrimSpace(loginToken)
	if token == "" {
		line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
		if err != nil && line == "" {
			return exitError(2, fmt.Errorf("no token given (use --token or pipe it on stdin)"))
		}
		token = strings.TrimSpace(line)
	}
	if token == "" {
		return exitError(2, fmt.Errorf("empty token"))
	}
	if err := app.Local.SetAccessToken(cmd.Context(), token); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), "Access token stored.")
	return nil
}

func runLogout(app *appctx.App, cmd *cobra.Command, args []string) error {
	if err := app.Local.SetAccessToken(cmd.Context(), ""); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), "Access token removed.")
	return nil
}
