package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lherron/hmp/internal/cli/appctx"
	"github.com/lherron/hmp/internal/domain"
	"github.com/lherron/hmp/internal/id"
	"github.com/lherron/hmp/internal/store"
)

var userAdmCmd = &cobra.Command{
	Use:   "user",
	Short: "Manage server users",
}

var userAddAdmCmd = &cobra.Command{
	Use:   "add EMAIL",
	Short: "Add a user to the organization of an existing user",
	Long: `Add creates a user in the same organization as --like. A --hotel scope
restricts the user to one hotel; it accepts a server id or the hotel's
legacy id.

Examples:
  hmpadm user add manager@example.com --like owner@example.com --role MANAGER --hotel h1
`,
	Args: cobra.ExactArgs(1),
	RunE: appctx.WithApp(appctx.ServerOptions(), runUserAdd),
}

var (
	userAddLike  string
	userAddRole  string
	userAddHotel string
)

func init() {
	rootAdmCmd.AddCommand(userAdmCmd)
	userAdmCmd.AddCommand(userAddAdmCmd)

	userAddAdmCmd.Flags().StringVar(&userAddLike, "like", "", "Email of an existing user whose organization is joined (required)")
	userAddAdmCmd.Flags().StringVar(&userAddRole, "role", string(domain.RoleManager), "Role: SUPER_ADMIN, HOTEL_ADMIN, MANAGER or HOTEL_STAFF")
	userAddAdmCmd.Flags().StringVar(&userAddHotel, "hotel", "", "Hotel the user is restricted to")
	_ = userAddAdmCmd.MarkFlagRequired("like")
}

func runUserAdd(app *appctx.App, cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	role, ok := domain.ParseRole(userAddRole)
	if !ok {
		return exitError(2, fmt.Errorf("unknown role %q", userAddRole))
	}
	owner, err := lookupUser(ctx, app.Store, userAddLike)
	if err != nil {
		return err
	}

	user := &domain.User{OrganizationID: owner.OrganizationID, Email: args[0], Role: role}
	if userAddHotel != "" {
		hotelID, err := resolveHotel(ctx, app.Store, owner.OrganizationID, userAddHotel)
		if err != nil {
			return err
		}
		user.HotelScopeID = &hotelID
	}
	if err := app.Store.Users.Create(ctx, user); err != nil {
		return exitError(1, err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "✓ Created %s user %s (%s)\n", user.Role, user.Email, user.ID)
	return nil
}

func lookupUser(ctx context.Context, s *store.Store, email string) (*domain.User, error) {
	u, err := s.Users.GetByEmail(ctx, email)
	if errors.Is(err, store.ErrNotFound) {
		return nil, exitError(1, fmt.Errorf("no user with email %s", email))
	}
	return u, err
}

// resolveHotel accepts a server hotel id or a legacy hotel id.
func resolveHotel(ctx context.Context, s *store.Store, organizationID, ref string) (string, error) {
	if _, err := s.Hotels.GetHotel(ctx, organizationID, ref); err == nil {
		return ref, nil
	} else if !errors.Is(err, store.ErrNotFound) {
		return "", err
	}
	serverID, err := s.FindByLegacy(ctx, id.KindHotel, organizationID, ref)
	if errors.Is(err, store.ErrNotFound) {
		return "", exitError(1, fmt.Errorf("no hotel %s in organization %s", ref, organizationID))
	}
	return serverID, err
}
