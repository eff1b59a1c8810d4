package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lherron/hmp/internal/domain"
	"github.com/lherron/hmp/internal/id"
)

// ReservationStore handles reservations. Reservations carry no legacy id;
// their token is their natural key across organizations.
type ReservationStore struct {
	store *Store
}

// TokenOwner identifies the row holding a globally unique token.
type TokenOwner struct {
	ID             string
	OrganizationID string
}

// FindByToken returns the owner of a reservation token, or ErrNotFound.
func (s *ReservationStore) FindByToken(ctx context.Context, token string) (*TokenOwner, error) {
	return findTokenOwner(ctx, s.store, "reservations", token)
}

func findTokenOwner(ctx context.Context, s *Store, table, token string) (*TokenOwner, error) {
	var owner TokenOwner
	err := s.db.QueryRowContext(ctx,
		"SELECT id, organization_id FROM "+table+" WHERE token = ?", token,
	).Scan(&owner.ID, &owner.OrganizationID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up %s token: %w", table, err)
	}
	return &owner, nil
}

type reservationJSON struct {
	roomIDs, spaceIDs, roomNotes, spaceNotes, overrides string
}

func encodeReservation(r *domain.Reservation) (reservationJSON, error) {
	var out reservationJSON
	var err error
	if r.RoomIDs == nil {
		r.RoomIDs = []string{}
	}
	if r.SpaceIDs == nil {
		r.SpaceIDs = []string{}
	}
	if out.roomIDs, err = encodeJSON(r.RoomIDs); err != nil {
		return out, err
	}
	if out.spaceIDs, err = encodeJSON(r.SpaceIDs); err != nil {
		return out, err
	}
	if out.roomNotes, err = encodeJSON(orEmptyMap(r.RoomNotes)); err != nil {
		return out, err
	}
	if out.spaceNotes, err = encodeJSON(orEmptyMap(r.SpaceNotes)); err != nil {
		return out, err
	}
	if out.overrides, err = encodeJSON(orEmptyMap(r.RoomSurfaceOverrides)); err != nil {
		return out, err
	}
	return out, nil
}

func orEmptyMap[V any](m map[string]V) map[string]V {
	if m == nil {
		return map[string]V{}
	}
	return m
}

// Create inserts a reservation.
func (s *ReservationStore) Create(ctx context.Context, r *domain.Reservation) error {
	if r.ID == "" {
		r.ID = id.New()
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = s.store.now()
	}
	enc, err := encodeReservation(r)
	if err != nil {
		return fmt.Errorf("failed to encode reservation: %w", err)
	}

	_, err = s.store.db.ExecContext(ctx, `
		INSERT INTO reservations (id, organization_id, hotel_id, token, status_admin, status_hotel,
		                          room_ids, space_ids, room_notes, space_notes, surface_default,
		                          room_surface_overrides, notes_global, notes_org, duration_minutes,
		                          proposed_date, proposed_start, requires_admin_approval,
		                          confirmed_at, cancelled_at, cancelled_by, cancel_reason, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, r.ID, r.OrganizationID, r.HotelID, r.Token, string(r.StatusAdmin), string(r.StatusHotel),
		enc.roomIDs, enc.spaceIDs, enc.roomNotes, enc.spaceNotes, string(r.SurfaceDefault),
		enc.overrides, r.NotesGlobal, r.NotesOrg, r.DurationMinutes,
		r.ProposedDate, r.ProposedStart, boolInt(r.RequiresAdminApproval),
		nullTime(r.ConfirmedAt), nullTime(r.CancelledAt), r.CancelledBy, r.CancelReason,
		domain.FormatTime(r.CreatedAt))
	if err != nil {
		return fmt.Errorf("failed to insert reservation: %w", err)
	}
	return nil
}

// Update rewrites every mutable field of a reservation of the same
// organization. The token and creation time are kept.
func (s *ReservationStore) Update(ctx context.Context, r *domain.Reservation) error {
	enc, err := encodeReservation(r)
	if err != nil {
		return fmt.Errorf("failed to encode reservation: %w", err)
	}

	res, err := s.store.db.ExecContext(ctx, `
		UPDATE reservations SET hotel_id = ?, status_admin = ?, status_hotel = ?,
		       room_ids = ?, space_ids = ?, room_notes = ?, space_notes = ?, surface_default = ?,
		       room_surface_overrides = ?, notes_global = ?, notes_org = ?, duration_minutes = ?,
		       proposed_date = ?, proposed_start = ?, requires_admin_approval = ?,
		       confirmed_at = ?, cancelled_at = ?, cancelled_by = ?, cancel_reason = ?
		WHERE id = ? AND organization_id = ?
	`, r.HotelID, string(r.StatusAdmin), string(r.StatusHotel),
		enc.roomIDs, enc.spaceIDs, enc.roomNotes, enc.spaceNotes, string(r.SurfaceDefault),
		enc.overrides, r.NotesGlobal, r.NotesOrg, r.DurationMinutes,
		r.ProposedDate, r.ProposedStart, boolInt(r.RequiresAdminApproval),
		nullTime(r.ConfirmedAt), nullTime(r.CancelledAt), r.CancelledBy, r.CancelReason,
		r.ID, r.OrganizationID)
	if err != nil {
		return fmt.Errorf("failed to update reservation: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// List returns the reservations of the organization, optionally restricted
// to a hotel.
func (s *ReservationStore) List(ctx context.Context, organizationID, scope string) ([]domain.Reservation, error) {
	clause, args := scopeClause("hotel_id", scope)
	rows, err := s.store.db.QueryContext(ctx, `
		SELECT id, organization_id, hotel_id, token, status_admin, status_hotel,
		       room_ids, space_ids, room_notes, space_notes, surface_default,
		       room_surface_overrides, notes_global, notes_org, duration_minutes,
		       proposed_date, proposed_start, requires_admin_approval,
		       confirmed_at, cancelled_at, cancelled_by, cancel_reason, created_at
		FROM reservations WHERE organization_id = ?`+clause+`
		ORDER BY created_at, id
	`, append([]any{organizationID}, args...)...)
	if err != nil {
		return nil, fmt.Errorf("failed to list reservations: %w", err)
	}
	defer rows.Close()

	var out []domain.Reservation
	for rows.Next() {
		var r domain.Reservation
		var statusAdmin, statusHotel, surface string
		var roomIDs, spaceIDs, roomNotes, spaceNotes, overrides string
		var requires int
		var confirmed, cancelled sql.NullString
		var createdAt string
		if err := rows.Scan(&r.ID, &r.OrganizationID, &r.HotelID, &r.Token, &statusAdmin, &statusHotel,
			&roomIDs, &spaceIDs, &roomNotes, &spaceNotes, &surface,
			&overrides, &r.NotesGlobal, &r.NotesOrg, &r.DurationMinutes,
			&r.ProposedDate, &r.ProposedStart, &requires,
			&confirmed, &cancelled, &r.CancelledBy, &r.CancelReason, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan reservation: %w", err)
		}
		r.StatusAdmin = domain.ReservationStatus(statusAdmin)
		r.StatusHotel = domain.ReservationStatus(statusHotel)
		r.SurfaceDefault = domain.Surface(surface)
		r.RoomIDs = decodeStrings(roomIDs)
		r.SpaceIDs = decodeStrings(spaceIDs)
		r.RoomNotes = decodeRawMap(roomNotes)
		r.SpaceNotes = decodeRawMap(spaceNotes)
		r.RoomSurfaceOverrides = decodeRawMap(overrides)
		r.RequiresAdminApproval = requires != 0
		r.ConfirmedAt = timePtr(confirmed)
		r.CancelledAt = timePtr(cancelled)
		r.CreatedAt = parseTime(createdAt)
		out = append(out, r)
	}
	return out, rows.Err()
}
