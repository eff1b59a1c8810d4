package cli

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lherron/hmp/internal/auth"
	"github.com/lherron/hmp/internal/db"
	"github.com/lherron/hmp/internal/domain"
	"github.com/lherron/hmp/internal/legacy"
	"github.com/lherron/hmp/internal/store"
	"github.com/lherron/hmp/internal/testutil"
)

func TestAdminCommands_Lifecycle(t *testing.T) {
	dir := isolateCLI(t)
	t.Setenv("HMP_JWT_ACCESS_SECRET", "admin-secret")
	dbPath := filepath.Join(dir, "hmp.db")
	adm := func(args ...string) (string, error) {
		return runCommand(t, rootAdmCmd, "", append([]string{"--db", dbPath}, args...)...)
	}

	out, err := adm("init", "--org", "Acme", "--email", "Owner@Example.com")
	require.NoError(t, err, out)
	assert.Contains(t, out, "Created organization Acme")
	assert.Contains(t, out, "Created SUPER_ADMIN user owner@example.com")

	out, err = adm("init", "--org", "Acme", "--email", "owner@example.com")
	require.NoError(t, err)
	assert.Contains(t, out, "already exists")

	out, err = adm("migrate", "--status")
	require.NoError(t, err)
	assert.Contains(t, out, "Applied migrations:")
	assert.NotContains(t, out, "Pending")

	docPath := testutil.WriteFile(t, dir, "hotel.json", daemonDoc)
	out, err = adm("import", docPath, "--as", "owner@example.com")
	require.NoError(t, err, out)

	out, err = adm("user", "add", "manager@example.com", "--like", "owner@example.com", "--role", "manager", "--hotel", "h1")
	require.NoError(t, err, out)
	assert.Contains(t, out, "Created MANAGER user manager@example.com")

	token, err := adm("token", "manager@example.com")
	require.NoError(t, err)
	claims, err := auth.NewSigner("admin-secret", 0).Parse(strings.TrimSpace(token))
	require.NoError(t, err)
	assert.Equal(t, domain.RoleManager, claims.Role)
	require.NotNil(t, claims.HotelScopeID)

	database, err := db.Open(dbPath)
	require.NoError(t, err)
	defer database.Close()
	s := store.New(database)
	owner, err := s.Users.GetByEmail(context.Background(), "owner@example.com")
	require.NoError(t, err)
	hotelID, err := s.FindByLegacy(context.Background(), "hotel", owner.OrganizationID, "h1")
	require.NoError(t, err)
	assert.Equal(t, hotelID, *claims.HotelScopeID)

	exportPath := filepath.Join(dir, "export.json")
	out, err = adm("export", exportPath, "--as", "manager@example.com")
	require.NoError(t, err, out)
	doc, err := legacy.Decode([]byte(testutil.ReadFile(t, exportPath)))
	require.NoError(t, err)
	require.Contains(t, doc.Hotels, "h1")
	assert.Equal(t, "Seaside", doc.Hotels["h1"].Name)
	assert.Contains(t, doc.Tasks, "k1")
}

func TestAdminCommands_Errors(t *testing.T) {
	dir := isolateCLI(t)
	dbPath := filepath.Join(dir, "hmp.db")
	adm := func(args ...string) (string, error) {
		return runCommand(t, rootAdmCmd, "", append([]string{"--db", dbPath}, args...)...)
	}

	_, err := adm("init", "--org", "Acme")
	require.Error(t, err)
	assert.Equal(t, 2, exitCodeOf(err))

	_, err = adm("init", "--org", "Acme", "--email", "owner@example.com")
	require.NoError(t, err)

	_, err = adm("user", "add", "staff@example.com", "--like", "owner@example.com", "--role", "JANITOR")
	require.Error(t, err)
	assert.Equal(t, 2, exitCodeOf(err))

	_, err = adm("user", "add", "staff@example.com", "--like", "owner@example.com", "--role", "HOTEL_STAFF")
	require.NoError(t, err)

	docPath := testutil.WriteFile(t, dir, "hotel.json", daemonDoc)
	_, err = adm("import", docPath, "--as", "staff@example.com")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "may not import")

	_, err = adm("import", docPath, "--as", "nobody@example.com")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no user with email")

	_, err = adm("user", "add", "scoped@example.com", "--like", "owner@example.com", "--hotel", "nope")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no hotel nope")

	_, err = adm("token", "owner@example.com")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "HMP_JWT_ACCESS_SECRET")
}

func TestAdminCommands_RequireMigratedDatabase(t *testing.T) {
	dir := isolateCLI(t)
	dbPath := filepath.Join(dir, "fresh.db")

	_, err := runCommand(t, rootAdmCmd, "", "--db", dbPath, "token", "owner@example.com")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "requires migration")

	out, err := runCommand(t, rootAdmCmd, "", "--db", dbPath, "migrate", "--dry-run")
	require.NoError(t, err)
	assert.Contains(t, out, "would be applied")

	out, err = runCommand(t, rootAdmCmd, "", "--db", dbPath, "migrate")
	require.NoError(t, err)
	assert.Contains(t, out, "Applied")
}
