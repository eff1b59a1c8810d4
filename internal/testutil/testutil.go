package testutil

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/lherron/hmp/internal/db"
	"github.com/lherron/hmp/internal/domain"
	"github.com/lherron/hmp/internal/store"
)

// TempDB creates a temporary SQLite database for testing
func TempDB(t *testing.T) (*db.DB, string) {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "test.db")

	database, err := db.Open(dbPath)
	require.NoError(t, err, "failed to create test database")

	if err := database.Migrate(); err != nil {
		database.Close()
		t.Fatalf("Failed to run migrations: %v", err)
	}

	t.Cleanup(func() {
		database.Close()
	})

	return database, dbPath
}

// TempStore returns a store over a fresh migrated database.
func TempStore(t *testing.T) *store.Store {
	t.Helper()
	database, _ := TempDB(t)
	return store.New(database)
}

// Tenant is a seeded organization with one user.
type Tenant struct {
	Org  *domain.Organization
	User *domain.User
}

// SeedTenant creates an organization and a user with the given role. A
// non-empty hotelScope is stored as the user's hotel scope.
func SeedTenant(t *testing.T, s *store.Store, name string, role domain.Role, hotelScope string) Tenant {
	t.Helper()
	ctx := context.Background()

	org, err := s.Orgs.Create(ctx, name)
	require.NoError(t, err)

	user := &domain.User{
		OrganizationID: org.ID,
		Email:          name + "-" + string(role) + "@example.com",
		Role:           role,
	}
	if hotelScope != "" {
		user.HotelScopeID = &hotelScope
	}
	require.NoError(t, s.Users.Create(ctx, user))

	return Tenant{Org: org, User: user}
}

// AddUser creates another user in an existing organization.
func AddUser(t *testing.T, s *store.Store, orgID, email string, role domain.Role, hotelScope string) *domain.User {
	t.Helper()
	user := &domain.User{OrganizationID: orgID, Email: email, Role: role}
	if hotelScope != "" {
		user.HotelScopeID = &hotelScope
	}
	require.NoError(t, s.Users.Create(context.Background(), user))
	return user
}

// WriteFile writes content to a file in a temporary directory
func WriteFile(t *testing.T, dir, filename, content string) string {
	t.Helper()
	path := filepath.Join(dir, filename)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write file %s: %v", path, err)
	}
	return path
}

// ReadFile reads content from a file
func ReadFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read file %s: %v", path, err)
	}
	return string(data)
}
