package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lherron/hmp/internal/domain"
	"github.com/lherron/hmp/internal/id"
)

// StaffStore handles hotel staff members.
type StaffStore struct {
	store *Store
}

// TokenExists reports whether any staff member, in any organization, holds
// the token.
func (s *StaffStore) TokenExists(ctx context.Context, token string) (bool, error) {
	var n int
	err := s.store.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM staff_members WHERE token = ?", token).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("failed to check staff token: %w", err)
	}
	return n > 0, nil
}

// Create inserts a staff member. A missing token is generated.
func (s *StaffStore) Create(ctx context.Context, m *domain.StaffMember) error {
	if m.ID == "" {
		m.ID = id.New()
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = s.store.now()
	}
	if m.Token == "" {
		m.Token = id.NewStaffToken()
	}
	legacy := legacyOrSelf(m.LegacyID, m.ID)
	m.LegacyID = &legacy

	_, err := s.store.db.ExecContext(ctx, `
		INSERT INTO staff_members (id, organization_id, hotel_id, legacy_id, token, first_name, last_name,
		                           phone, notes, active, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, m.ID, m.OrganizationID, m.HotelID, legacy, m.Token, m.FirstName, m.LastName,
		m.Phone, m.Notes, boolInt(m.Active), domain.FormatTime(m.CreatedAt))
	if err != nil {
		return fmt.Errorf("failed to insert staff member: %w", err)
	}
	return nil
}

// List returns the staff of the organization, optionally restricted to a
// hotel.
func (s *StaffStore) List(ctx context.Context, organizationID, scope string) ([]domain.StaffMember, error) {
	clause, args := scopeClause("hotel_id", scope)
	rows, err := s.store.db.QueryContext(ctx, `
		SELECT id, organization_id, hotel_id, legacy_id, token, first_name, last_name,
		       phone, notes, active, created_at
		FROM staff_members WHERE organization_id = ?`+clause+`
		ORDER BY created_at, id
	`, append([]any{organizationID}, args...)...)
	if err != nil {
		return nil, fmt.Errorf("failed to list staff: %w", err)
	}
	defer rows.Close()

	var out []domain.StaffMember
	for rows.Next() {
		var m domain.StaffMember
		var legacy sql.NullString
		var active int
		var createdAt string
		if err := rows.Scan(&m.ID, &m.OrganizationID, &m.HotelID, &legacy, &m.Token, &m.FirstName, &m.LastName,
			&m.Phone, &m.Notes, &active, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan staff member: %w", err)
		}
		m.LegacyID = stringPtr(legacy)
		m.Active = active != 0
		m.CreatedAt = parseTime(createdAt)
		out = append(out, m)
	}
	return out, rows.Err()
}

// TechnicianStore handles organization-wide technicians.
type TechnicianStore struct {
	store *Store
}

// Create inserts a technician.
func (s *TechnicianStore) Create(ctx context.Context, t *domain.Technician) error {
	if t.ID == "" {
		t.ID = id.New()
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = s.store.now()
	}
	legacy := legacyOrSelf(t.LegacyID, t.ID)
	t.LegacyID = &legacy

	_, err := s.store.db.ExecContext(ctx, `
		INSERT INTO technicians (id, organization_id, legacy_id, name, phone, notes, active, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, t.ID, t.OrganizationID, legacy, t.Name, t.Phone, t.Notes, boolInt(t.Active), domain.FormatTime(t.CreatedAt))
	if err != nil {
		return fmt.Errorf("failed to insert technician: %w", err)
	}
	return nil
}

// List returns every technician of the organization.
func (s *TechnicianStore) List(ctx context.Context, organizationID string) ([]domain.Technician, error) {
	rows, err := s.store.db.QueryContext(ctx, `
		SELECT id, organization_id, legacy_id, name, phone, notes, active, created_at
		FROM technicians WHERE organization_id = ?
		ORDER BY created_at, id
	`, organizationID)
	if err != nil {
		return nil, fmt.Errorf("failed to list technicians: %w", err)
	}
	defer rows.Close()

	var out []domain.Technician
	for rows.Next() {
		var t domain.Technician
		var legacy sql.NullString
		var active int
		var createdAt string
		if err := rows.Scan(&t.ID, &t.OrganizationID, &legacy, &t.Name, &t.Phone, &t.Notes, &active, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan technician: %w", err)
		}
		t.LegacyID = stringPtr(legacy)
		t.Active = active != 0
		t.CreatedAt = parseTime(createdAt)
		out = append(out, t)
	}
	return out, rows.Err()
}

// BlockedSlotStore handles organization-wide unavailability windows.
type BlockedSlotStore struct {
	store *Store
}

// Create inserts a blocked slot.
func (s *BlockedSlotStore) Create(ctx context.Context, b *domain.BlockedSlot) error {
	if b.ID == "" {
		b.ID = id.New()
	}
	if b.CreatedAt.IsZero() {
		b.CreatedAt = s.store.now()
	}
	legacy := legacyOrSelf(b.LegacyID, b.ID)
	b.LegacyID = &legacy

	_, err := s.store.db.ExecContext(ctx, `
		INSERT INTO blocked_slots (id, organization_id, legacy_id, date, start, "end", note, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, b.ID, b.OrganizationID, legacy, b.Date, b.Start, b.End, b.Note, domain.FormatTime(b.CreatedAt))
	if err != nil {
		return fmt.Errorf("failed to insert blocked slot: %w", err)
	}
	return nil
}

// List returns the blocked slots of the organization by date.
func (s *BlockedSlotStore) List(ctx context.Context, organizationID string) ([]domain.BlockedSlot, error) {
	rows, err := s.store.db.QueryContext(ctx, `
		SELECT id, organization_id, legacy_id, date, start, "end", note, created_at
		FROM blocked_slots WHERE organization_id = ?
		ORDER BY date, start, id
	`, organizationID)
	if err != nil {
		return nil, fmt.Errorf("failed to list blocked slots: %w", err)
	}
	defer rows.Close()

	var out []domain.BlockedSlot
	for rows.Next() {
		var b domain.BlockedSlot
		var legacy sql.NullString
		var createdAt string
		if err := rows.Scan(&b.ID, &b.OrganizationID, &legacy, &b.Date, &b.Start, &b.End, &b.Note, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan blocked slot: %w", err)
		}
		b.LegacyID = stringPtr(legacy)
		b.CreatedAt = parseTime(createdAt)
		out = append(out, b)
	}
	return out, rows.Err()
}
