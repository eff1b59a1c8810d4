package cli

import (
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/lherron/hmp/internal/cli/appctx"
	"github.com/lherron/hmp/internal/db"
	"github.com/lherron/hmp/internal/domain"
	"github.com/lherron/hmp/internal/store"
)

var initAdmCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize the server database",
	Long: `Initialize creates the SQLite database and runs migrations. With --org
and --email it also creates an organization and its first SUPER_ADMIN user,
unless a user with that email already exists.

Examples:
  hmpadm init
  hmpadm init --org "Seaside Group" --email owner@example.com
`,
	RunE: runInitAdm,
}

var (
	initAdmOrg   string
	initAdmEmail string
)

func init() {
	rootAdmCmd.AddCommand(initAdmCmd)

	initAdmCmd.Flags().StringVar(&initAdmOrg, "org", "", "Name of the organization to create")
	initAdmCmd.Flags().StringVar(&initAdmEmail, "email", "", "Email of the first SUPER_ADMIN user")
}

func runInitAdm(cmd *cobra.Command, args []string) error {
	if (initAdmOrg == "") != (initAdmEmail == "") {
		return exitError(2, fmt.Errorf("--org and --email must be given together"))
	}

	app, err := appctx.Bootstrap(cmd, appctx.Options{})
	if err != nil {
		return exitError(1, err)
	}

	database, err := db.Open(app.Config.DBPath)
	if err != nil {
		return exitError(1, fmt.Errorf("failed to open database: %w", err))
	}
	defer database.Close()

	if err := database.Migrate(); err != nil {
		return exitError(1, fmt.Errorf("failed to run migrations: %w", err))
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "✓ Database ready at %s\n", database.Path())

	if initAdmOrg == "" {
		return nil
	}

	ctx := cmd.Context()
	s := store.New(database)
	if existing, err := s.Users.GetByEmail(ctx, initAdmEmail); err == nil {
		fmt.Fprintf(out, "✓ User %s already exists in organization %s\n", existing.Email, existing.OrganizationID)
		return nil
	} else if !errors.Is(err, store.ErrNotFound) {
		return exitError(1, err)
	}

	org, err := s.Orgs.Create(ctx, initAdmOrg)
	if err != nil {
		return exitError(1, err)
	}
	user := &domain.User{OrganizationID: org.ID, Email: initAdmEmail, Role: domain.RoleSuperAdmin}
	if err := s.Users.Create(ctx, user); err != nil {
		return exitError(1, err)
	}
	app.Log.WithFields(logrus.Fields{"org": org.ID, "user": user.ID}).Info("seeded organization")

	fmt.Fprintf(out, "✓ Created organization %s (%s)\n", org.Name, org.ID)
	fmt.Fprintf(out, "✓ Created %s user %s\n", user.Role, user.Email)
	return nil
}
