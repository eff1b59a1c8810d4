package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/lherron/hmp/internal/domain"
	"github.com/lherron/hmp/internal/id"
)

// OrgStore handles organization persistence.
type OrgStore struct {
	store *Store
}

// Create inserts a new organization and returns it.
func (s *OrgStore) Create(ctx context.Context, name string) (*domain.Organization, error) {
	org := &domain.Organization{ID: id.New(), Name: strings.TrimSpace(name), CreatedAt: s.store.now()}
	if org.Name == "" {
		return nil, fmt.Errorf("organization name is required")
	}
	_, err := s.store.db.ExecContext(ctx,
		"INSERT INTO organizations (id, name, created_at) VALUES (?, ?, ?)",
		org.ID, org.Name, domain.FormatTime(org.CreatedAt),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert organization: %w", err)
	}
	return org, nil
}

// Get retrieves an organization by id.
func (s *OrgStore) Get(ctx context.Context, organizationID string) (*domain.Organization, error) {
	var org domain.Organization
	var settings sql.NullString
	var createdAt string
	err := s.store.db.QueryRowContext(ctx,
		"SELECT id, name, settings, created_at FROM organizations WHERE id = ?",
		organizationID,
	).Scan(&org.ID, &org.Name, &settings, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get organization: %w", err)
	}
	org.Settings = rawPtr(settings)
	org.CreatedAt = parseTime(createdAt)
	return &org, nil
}

// Settings returns the stored settings object of the organization, or nil
// when none has been stored.
func (s *OrgStore) Settings(ctx context.Context, organizationID string) (json.RawMessage, error) {
	org, err := s.Get(ctx, organizationID)
	if err != nil {
		return nil, err
	}
	return org.Settings, nil
}

// SetSettings replaces the settings object of the organization.
func (s *OrgStore) SetSettings(ctx context.Context, organizationID string, settings json.RawMessage) error {
	res, err := s.store.db.ExecContext(ctx,
		"UPDATE organizations SET settings = ? WHERE id = ?",
		rawOrNil(settings), organizationID,
	)
	if err != nil {
		return fmt.Errorf("failed to update organization settings: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// UserStore handles user persistence.
type UserStore struct {
	store *Store
}

const userColumns = "id, organization_id, email, role, hotel_scope_id, active_hotel_id, created_at"

// Create inserts a new user. ID and CreatedAt are assigned when empty.
func (s *UserStore) Create(ctx context.Context, u *domain.User) error {
	if u.ID == "" {
		u.ID = id.New()
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = s.store.now()
	}
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	_, err := s.store.db.ExecContext(ctx, `
		INSERT INTO users (`+userColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, u.ID, u.OrganizationID, u.Email, string(u.Role),
		nullString(u.HotelScopeID), nullString(u.ActiveHotelID), domain.FormatTime(u.CreatedAt))
	if err != nil {
		return fmt.Errorf("failed to insert user: %w", err)
	}
	return nil
}

// Get retrieves a user by id.
func (s *UserStore) Get(ctx context.Context, userID string) (*domain.User, error) {
	return s.scanOne(s.store.db.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE id = ?", userID))
}

// GetByEmail retrieves a user by email address.
func (s *UserStore) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	return s.scanOne(s.store.db.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE email = ?", strings.ToLower(strings.TrimSpace(email))))
}

func (s *UserStore) scanOne(row *sql.Row) (*domain.User, error) {
	var u domain.User
	var role, createdAt string
	var scope, active sql.NullString
	err := row.Scan(&u.ID, &u.OrganizationID, &u.Email, &role, &scope, &active, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	u.Role = domain.Role(role)
	u.HotelScopeID = stringPtr(scope)
	u.ActiveHotelID = stringPtr(active)
	u.CreatedAt = parseTime(createdAt)
	return &u, nil
}

// SetActiveHotel updates the user's active hotel pointer.
func (s *UserStore) SetActiveHotel(ctx context.Context, userID string, hotelID *string) error {
	_, err := s.store.db.ExecContext(ctx,
		"UPDATE users SET active_hotel_id = ? WHERE id = ?",
		nullString(hotelID), userID,
	)
	if err != nil {
		return fmt.Errorf("failed to set active hotel: %w", err)
	}
	return nil
}
