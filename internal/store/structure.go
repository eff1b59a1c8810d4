package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lherron/hmp/internal/domain"
	"github.com/lherron/hmp/internal/id"
)

// HotelStore handles the physical structure of hotels: the hotels
// themselves and their buildings, floors, rooms and spaces.
type HotelStore struct {
	store *Store
}

// CreateHotel inserts a hotel. Without a legacy id the hotel's own id is
// used, so the row round-trips through an export.
func (s *HotelStore) CreateHotel(ctx context.Context, h *domain.Hotel) error {
	if h.ID == "" {
		h.ID = id.New()
	}
	now := s.store.now()
	if h.CreatedAt.IsZero() {
		h.CreatedAt = now
	}
	h.UpdatedAt = now
	legacy := legacyOrSelf(h.LegacyID, h.ID)
	h.LegacyID = &legacy

	_, err := s.store.db.ExecContext(ctx, `
		INSERT INTO hotels (id, organization_id, legacy_id, name, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, h.ID, h.OrganizationID, legacy, h.Name, domain.FormatTime(h.CreatedAt), domain.FormatTime(h.UpdatedAt))
	if err != nil {
		return fmt.Errorf("failed to insert hotel: %w", err)
	}
	return nil
}

// UpdateHotel rewrites the mutable fields of a hotel.
func (s *HotelStore) UpdateHotel(ctx context.Context, h *domain.Hotel) error {
	h.UpdatedAt = s.store.now()
	_, err := s.store.db.ExecContext(ctx,
		"UPDATE hotels SET name = ?, updated_at = ? WHERE id = ? AND organization_id = ?",
		h.Name, domain.FormatTime(h.UpdatedAt), h.ID, h.OrganizationID,
	)
	if err != nil {
		return fmt.Errorf("failed to update hotel: %w", err)
	}
	return nil
}

// GetHotel retrieves a hotel of the organization by server id.
func (s *HotelStore) GetHotel(ctx context.Context, organizationID, hotelID string) (*domain.Hotel, error) {
	var h domain.Hotel
	var legacy sql.NullString
	var createdAt, updatedAt string
	err := s.store.db.QueryRowContext(ctx, `
		SELECT id, organization_id, legacy_id, name, created_at, updated_at
		FROM hotels WHERE organization_id = ? AND id = ?
	`, organizationID, hotelID).Scan(&h.ID, &h.OrganizationID, &legacy, &h.Name, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get hotel: %w", err)
	}
	h.LegacyID = stringPtr(legacy)
	h.CreatedAt = parseTime(createdAt)
	h.UpdatedAt = parseTime(updatedAt)
	return &h, nil
}

// ListHotels returns the hotels of the organization ordered by creation.
// A non-empty scope restricts the result to that hotel.
func (s *HotelStore) ListHotels(ctx context.Context, organizationID, scope string) ([]domain.Hotel, error) {
	clause, args := scopeClause("id", scope)
	rows, err := s.store.db.QueryContext(ctx, `
		SELECT id, organization_id, legacy_id, name, created_at, updated_at
		FROM hotels WHERE organization_id = ?`+clause+`
		ORDER BY created_at, id
	`, append([]any{organizationID}, args...)...)
	if err != nil {
		return nil, fmt.Errorf("failed to list hotels: %w", err)
	}
	defer rows.Close()

	var out []domain.Hotel
	for rows.Next() {
		var h domain.Hotel
		var legacy sql.NullString
		var createdAt, updatedAt string
		if err := rows.Scan(&h.ID, &h.OrganizationID, &legacy, &h.Name, &createdAt, &updatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan hotel: %w", err)
		}
		h.LegacyID = stringPtr(legacy)
		h.CreatedAt = parseTime(createdAt)
		h.UpdatedAt = parseTime(updatedAt)
		out = append(out, h)
	}
	return out, rows.Err()
}

// CreateBuilding inserts a building.
func (s *HotelStore) CreateBuilding(ctx context.Context, b *domain.Building) error {
	if b.ID == "" {
		b.ID = id.New()
	}
	if b.CreatedAt.IsZero() {
		b.CreatedAt = s.store.now()
	}
	legacy := legacyOrSelf(b.LegacyID, b.ID)
	b.LegacyID = &legacy

	_, err := s.store.db.ExecContext(ctx, `
		INSERT INTO buildings (id, organization_id, hotel_id, legacy_id, name, notes, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, b.ID, b.OrganizationID, b.HotelID, legacy, b.Name, b.Notes, domain.FormatTime(b.CreatedAt))
	if err != nil {
		return fmt.Errorf("failed to insert building: %w", err)
	}
	return nil
}

// UpdateBuilding rewrites the mutable fields of a building, including its
// parent hotel.
func (s *HotelStore) UpdateBuilding(ctx context.Context, b *domain.Building) error {
	_, err := s.store.db.ExecContext(ctx,
		"UPDATE buildings SET hotel_id = ?, name = ?, notes = ? WHERE id = ? AND organization_id = ?",
		b.HotelID, b.Name, b.Notes, b.ID, b.OrganizationID,
	)
	if err != nil {
		return fmt.Errorf("failed to update building: %w", err)
	}
	return nil
}

// ListBuildings returns the buildings of a hotel.
func (s *HotelStore) ListBuildings(ctx context.Context, organizationID, hotelID string) ([]domain.Building, error) {
	rows, err := s.store.db.QueryContext(ctx, `
		SELECT id, organization_id, hotel_id, legacy_id, name, notes, created_at
		FROM buildings WHERE organization_id = ? AND hotel_id = ?
		ORDER BY created_at, id
	`, organizationID, hotelID)
	if err != nil {
		return nil, fmt.Errorf("failed to list buildings: %w", err)
	}
	defer rows.Close()

	var out []domain.Building
	for rows.Next() {
		var b domain.Building
		var legacy sql.NullString
		var createdAt string
		if err := rows.Scan(&b.ID, &b.OrganizationID, &b.HotelID, &legacy, &b.Name, &b.Notes, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan building: %w", err)
		}
		b.LegacyID = stringPtr(legacy)
		b.CreatedAt = parseTime(createdAt)
		out = append(out, b)
	}
	return out, rows.Err()
}

// CreateFloor inserts a floor.
func (s *HotelStore) CreateFloor(ctx context.Context, f *domain.Floor) error {
	if f.ID == "" {
		f.ID = id.New()
	}
	if f.CreatedAt.IsZero() {
		f.CreatedAt = s.store.now()
	}
	legacy := legacyOrSelf(f.LegacyID, f.ID)
	f.LegacyID = &legacy

	_, err := s.store.db.ExecContext(ctx, `
		INSERT INTO floors (id, organization_id, building_id, legacy_id, name_or_number, sort_order, notes, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, f.ID, f.OrganizationID, f.BuildingID, legacy, f.NameOrNumber, nullInt(f.SortOrder), f.Notes,
		domain.FormatTime(f.CreatedAt))
	if err != nil {
		return fmt.Errorf("failed to insert floor: %w", err)
	}
	return nil
}

// UpdateFloor rewrites the mutable fields of a floor.
func (s *HotelStore) UpdateFloor(ctx context.Context, f *domain.Floor) error {
	_, err := s.store.db.ExecContext(ctx, `
		UPDATE floors SET building_id = ?, name_or_number = ?, sort_order = ?, notes = ?
		WHERE id = ? AND organization_id = ?
	`, f.BuildingID, f.NameOrNumber, nullInt(f.SortOrder), f.Notes, f.ID, f.OrganizationID)
	if err != nil {
		return fmt.Errorf("failed to update floor: %w", err)
	}
	return nil
}

// ListFloors returns the floors of a building by sort order.
func (s *HotelStore) ListFloors(ctx context.Context, organizationID, buildingID string) ([]domain.Floor, error) {
	rows, err := s.store.db.QueryContext(ctx, `
		SELECT id, organization_id, building_id, legacy_id, name_or_number, sort_order, notes, created_at
		FROM floors WHERE organization_id = ? AND building_id = ?
		ORDER BY sort_order IS NULL, sort_order, created_at, id
	`, organizationID, buildingID)
	if err != nil {
		return nil, fmt.Errorf("failed to list floors: %w", err)
	}
	defer rows.Close()

	var out []domain.Floor
	for rows.Next() {
		var f domain.Floor
		var legacy sql.NullString
		var sortOrder sql.NullInt64
		var createdAt string
		if err := rows.Scan(&f.ID, &f.OrganizationID, &f.BuildingID, &legacy, &f.NameOrNumber, &sortOrder, &f.Notes, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan floor: %w", err)
		}
		f.LegacyID = stringPtr(legacy)
		f.SortOrder = int64Ptr(sortOrder)
		f.CreatedAt = parseTime(createdAt)
		out = append(out, f)
	}
	return out, rows.Err()
}

// CreateRoom inserts a room.
func (s *HotelStore) CreateRoom(ctx context.Context, r *domain.Room) error {
	if r.ID == "" {
		r.ID = id.New()
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = s.store.now()
	}
	legacy := legacyOrSelf(r.LegacyID, r.ID)
	r.LegacyID = &legacy

	_, err := s.store.db.ExecContext(ctx, `
		INSERT INTO rooms (id, organization_id, floor_id, legacy_id, room_number, active, surface,
		                   sqft, cleaning_frequency_days, last_cleaned_at, notes, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, r.ID, r.OrganizationID, r.FloorID, legacy, r.RoomNumber, boolInt(r.Active), string(r.Surface),
		nullFloat(r.Sqft), nullInt(r.CleaningFrequencyDays), nullTime(r.LastCleanedAt), r.Notes,
		domain.FormatTime(r.CreatedAt))
	if err != nil {
		return fmt.Errorf("failed to insert room: %w", err)
	}
	return nil
}

// UpdateRoom rewrites the mutable fields of a room.
func (s *HotelStore) UpdateRoom(ctx context.Context, r *domain.Room) error {
	_, err := s.store.db.ExecContext(ctx, `
		UPDATE rooms SET floor_id = ?, room_number = ?, active = ?, surface = ?, sqft = ?,
		       cleaning_frequency_days = ?, last_cleaned_at = ?, notes = ?
		WHERE id = ? AND organization_id = ?
	`, r.FloorID, r.RoomNumber, boolInt(r.Active), string(r.Surface), nullFloat(r.Sqft),
		nullInt(r.CleaningFrequencyDays), nullTime(r.LastCleanedAt), r.Notes, r.ID, r.OrganizationID)
	if err != nil {
		return fmt.Errorf("failed to update room: %w", err)
	}
	return nil
}

// ListRooms returns the rooms of a floor.
func (s *HotelStore) ListRooms(ctx context.Context, organizationID, floorID string) ([]domain.Room, error) {
	rows, err := s.store.db.QueryContext(ctx, `
		SELECT id, organization_id, floor_id, legacy_id, room_number, active, surface,
		       sqft, cleaning_frequency_days, last_cleaned_at, notes, created_at
		FROM rooms WHERE organization_id = ? AND floor_id = ?
		ORDER BY room_number, id
	`, organizationID, floorID)
	if err != nil {
		return nil, fmt.Errorf("failed to list rooms: %w", err)
	}
	defer rows.Close()

	var out []domain.Room
	for rows.Next() {
		var r domain.Room
		var legacy, surface, lastCleaned sql.NullString
		var sqft sql.NullFloat64
		var freq sql.NullInt64
		var active int
		var createdAt string
		if err := rows.Scan(&r.ID, &r.OrganizationID, &r.FloorID, &legacy, &r.RoomNumber, &active, &surface,
			&sqft, &freq, &lastCleaned, &r.Notes, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan room: %w", err)
		}
		r.LegacyID = stringPtr(legacy)
		r.Active = active != 0
		r.Surface = domain.NormalizeSurface(surface.String)
		r.Sqft = float64Ptr(sqft)
		r.CleaningFrequencyDays = int64Ptr(freq)
		r.LastCleanedAt = timePtr(lastCleaned)
		r.CreatedAt = parseTime(createdAt)
		out = append(out, r)
	}
	return out, rows.Err()
}

// CreateSpace inserts a space.
func (s *HotelStore) CreateSpace(ctx context.Context, sp *domain.Space) error {
	if sp.ID == "" {
		sp.ID = id.New()
	}
	if sp.CreatedAt.IsZero() {
		sp.CreatedAt = s.store.now()
	}
	legacy := legacyOrSelf(sp.LegacyID, sp.ID)
	sp.LegacyID = &legacy

	_, err := s.store.db.ExecContext(ctx, `
		INSERT INTO spaces (id, organization_id, floor_id, legacy_id, name, type, active,
		                    sqft, cleaning_frequency_days, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, sp.ID, sp.OrganizationID, sp.FloorID, legacy, sp.Name, sp.Type, boolInt(sp.Active),
		nullFloat(sp.Sqft), nullInt(sp.CleaningFrequencyDays), domain.FormatTime(sp.CreatedAt))
	if err != nil {
		return fmt.Errorf("failed to insert space: %w", err)
	}
	return nil
}

// UpdateSpace rewrites the mutable fields of a space.
func (s *HotelStore) UpdateSpace(ctx context.Context, sp *domain.Space) error {
	_, err := s.store.db.ExecContext(ctx, `
		UPDATE spaces SET floor_id = ?, name = ?, type = ?, active = ?, sqft = ?, cleaning_frequency_days = ?
		WHERE id = ? AND organization_id = ?
	`, sp.FloorID, sp.Name, sp.Type, boolInt(sp.Active), nullFloat(sp.Sqft),
		nullInt(sp.CleaningFrequencyDays), sp.ID, sp.OrganizationID)
	if err != nil {
		return fmt.Errorf("failed to update space: %w", err)
	}
	return nil
}

// ListSpaces returns the spaces of a floor.
func (s *HotelStore) ListSpaces(ctx context.Context, organizationID, floorID string) ([]domain.Space, error) {
	rows, err := s.store.db.QueryContext(ctx, `
		SELECT id, organization_id, floor_id, legacy_id, name, type, active,
		       sqft, cleaning_frequency_days, created_at
		FROM spaces WHERE organization_id = ? AND floor_id = ?
		ORDER BY name, id
	`, organizationID, floorID)
	if err != nil {
		return nil, fmt.Errorf("failed to list spaces: %w", err)
	}
	defer rows.Close()

	var out []domain.Space
	for rows.Next() {
		var sp domain.Space
		var legacy sql.NullString
		var sqft sql.NullFloat64
		var freq sql.NullInt64
		var active int
		var createdAt string
		if err := rows.Scan(&sp.ID, &sp.OrganizationID, &sp.FloorID, &legacy, &sp.Name, &sp.Type, &active,
			&sqft, &freq, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan space: %w", err)
		}
		sp.LegacyID = stringPtr(legacy)
		sp.Active = active != 0
		sp.Sqft = float64Ptr(sqft)
		sp.CleaningFrequencyDays = int64Ptr(freq)
		sp.CreatedAt = parseTime(createdAt)
		out = append(out, sp)
	}
	return out, rows.Err()
}
