package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lherron/hmp/internal/domain"
	"github.com/lherron/hmp/internal/id"
)

// SessionStore handles scheduled cleaning sessions.
type SessionStore struct {
	store *Store
}

// Create inserts a session.
func (s *SessionStore) Create(ctx context.Context, sess *domain.Session) error {
	if sess.ID == "" {
		sess.ID = id.New()
	}
	if sess.CreatedAt.IsZero() {
		sess.CreatedAt = s.store.now()
	}
	if sess.Status == "" {
		sess.Status = "PLANNED"
	}
	if sess.RoomIDs == nil {
		sess.RoomIDs = []string{}
	}
	legacy := legacyOrSelf(sess.LegacyID, sess.ID)
	sess.LegacyID = &legacy

	roomIDs, err := encodeJSON(sess.RoomIDs)
	if err != nil {
		return fmt.Errorf("failed to encode session rooms: %w", err)
	}

	_, err = s.store.db.ExecContext(ctx, `
		INSERT INTO sessions (id, organization_id, hotel_id, legacy_id, status, room_ids, date, start, "end",
		                      technician_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, sess.ID, sess.OrganizationID, sess.HotelID, legacy, sess.Status, roomIDs, sess.Date, sess.Start, sess.End,
		nullString(sess.TechnicianID), domain.FormatTime(sess.CreatedAt))
	if err != nil {
		return fmt.Errorf("failed to insert session: %w", err)
	}
	return nil
}

// List returns the sessions of the organization, optionally restricted to
// a hotel.
func (s *SessionStore) List(ctx context.Context, organizationID, scope string) ([]domain.Session, error) {
	clause, args := scopeClause("hotel_id", scope)
	rows, err := s.store.db.QueryContext(ctx, `
		SELECT id, organization_id, hotel_id, legacy_id, status, room_ids, date, start, "end",
		       technician_id, created_at
		FROM sessions WHERE organization_id = ?`+clause+`
		ORDER BY date, start, id
	`, append([]any{organizationID}, args...)...)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer rows.Close()

	var out []domain.Session
	for rows.Next() {
		var sess domain.Session
		var legacy, technician sql.NullString
		var roomIDs, createdAt string
		if err := rows.Scan(&sess.ID, &sess.OrganizationID, &sess.HotelID, &legacy, &sess.Status, &roomIDs,
			&sess.Date, &sess.Start, &sess.End, &technician, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		sess.LegacyID = stringPtr(legacy)
		sess.RoomIDs = decodeStrings(roomIDs)
		sess.TechnicianID = stringPtr(technician)
		sess.CreatedAt = parseTime(createdAt)
		out = append(out, sess)
	}
	return out, rows.Err()
}
