// Package store provides the relational persistence layer of the server:
// one sub-store per entity group, legacy identifier bookkeeping and the
// audit log of migration runs.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/lherron/hmp/internal/db"
	"github.com/lherron/hmp/internal/domain"
	"github.com/lherron/hmp/internal/events"
	"github.com/lherron/hmp/internal/id"
)

// ErrNotFound is returned when a looked-up row does not exist.
var ErrNotFound = errors.New("not found")

// Store is the root store that provides access to domain-specific stores.
type Store struct {
	db  *db.DB
	now func() time.Time

	Orgs         *OrgStore
	Users        *UserStore
	Hotels       *HotelStore
	Staff        *StaffStore
	Technicians  *TechnicianStore
	BlockedSlots *BlockedSlotStore
	Sessions     *SessionStore
	Tasks        *TaskStore
	Reservations *ReservationStore
	Contracts    *ContractStore
	Pricing      *PricingStore
	Events       *events.Writer
}

// New creates a new Store wrapping the given database connection.
func New(database *db.DB) *Store {
	s := &Store{db: database, now: time.Now}
	s.Orgs = &OrgStore{store: s}
	s.Users = &UserStore{store: s}
	s.Hotels = &HotelStore{store: s}
	s.Staff = &StaffStore{store: s}
	s.Technicians = &TechnicianStore{store: s}
	s.BlockedSlots = &BlockedSlotStore{store: s}
	s.Sessions = &SessionStore{store: s}
	s.Tasks = &TaskStore{store: s}
	s.Reservations = &ReservationStore{store: s}
	s.Contracts = &ContractStore{store: s}
	s.Pricing = &PricingStore{store: s}
	s.Events = events.NewWriter(database.DB)
	return s
}

// DB returns the underlying database connection (for read-only queries).
func (s *Store) DB() *db.DB {
	return s.db
}

// SetClock replaces the time source. Intended for tests.
func (s *Store) SetClock(now func() time.Time) {
	s.now = now
}

func (s *Store) stamp() string {
	return domain.FormatTime(s.now())
}

// withTx executes fn within a transaction. If fn returns nil, the transaction
// is committed; otherwise it is rolled back.
func (s *Store) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}

	return tx.Commit()
}

// legacyTables lists the tables that carry (organization_id, legacy_id).
var legacyTables = map[id.Kind]string{
	id.KindHotel:       "hotels",
	id.KindBuilding:    "buildings",
	id.KindFloor:       "floors",
	id.KindRoom:        "rooms",
	id.KindSpace:       "spaces",
	id.KindStaff:       "staff_members",
	id.KindTechnician:  "technicians",
	id.KindBlockedSlot: "blocked_slots",
	id.KindSession:     "sessions",
	id.KindTask:        "tasks",
	id.KindContract:    "contracts",
}

// FindByLegacy returns the server id of the row of the given kind whose
// legacy id matches, or ErrNotFound.
func (s *Store) FindByLegacy(ctx context.Context, kind id.Kind, organizationID, legacyID string) (string, error) {
	table, ok := legacyTables[kind]
	if !ok {
		return "", fmt.Errorf("kind %s has no legacy id", kind)
	}
	var serverID string
	err := s.db.QueryRowContext(ctx,
		"SELECT id FROM "+table+" WHERE organization_id = ? AND legacy_id = ?",
		organizationID, legacyID,
	).Scan(&serverID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to look up %s %q: %w", kind, legacyID, err)
	}
	return serverID, nil
}

// BackfillLegacyIDs assigns legacy_id := id to every row of the
// organization that has none. Rows whose id is already used as another
// row's legacy id are left alone. Returns the number of rows updated.
func (s *Store) BackfillLegacyIDs(ctx context.Context, organizationID string) (int64, error) {
	var total int64
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		for _, kind := range []id.Kind{
			id.KindHotel, id.KindBuilding, id.KindFloor, id.KindRoom, id.KindSpace,
			id.KindStaff, id.KindTechnician, id.KindBlockedSlot, id.KindSession,
			id.KindTask, id.KindContract,
		} {
			table := legacyTables[kind]
			res, err := tx.ExecContext(ctx, `
				UPDATE `+table+` SET legacy_id = id
				WHERE organization_id = ? AND legacy_id IS NULL
				  AND NOT EXISTS (
				    SELECT 1 FROM `+table+` other
				    WHERE other.organization_id = `+table+`.organization_id
				      AND other.legacy_id = `+table+`.id
				  )
			`, organizationID)
			if err != nil {
				return fmt.Errorf("failed to backfill %s: %w", table, err)
			}
			n, _ := res.RowsAffected()
			total += n
		}
		return nil
	})
	return total, err
}

// legacyOrSelf returns the legacy id to store for a new row.
func legacyOrSelf(legacyID *string, serverID string) string {
	if legacyID != nil && *legacyID != "" {
		return *legacyID
	}
	return serverID
}

func nullString(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}

func stringPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	v := ns.String
	return &v
}

func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return domain.FormatTime(*t)
}

func timePtr(ns sql.NullString) *time.Time {
	if !ns.Valid {
		return nil
	}
	t, ok := domain.ParseTime(ns.String)
	if !ok {
		return nil
	}
	return &t
}

func parseTime(s string) time.Time {
	t, _ := domain.ParseTime(s)
	return t
}

func timeOrNow(t time.Time, now func() time.Time) string {
	if t.IsZero() {
		return domain.FormatTime(now())
	}
	return domain.FormatTime(t)
}

func nullInt(v *int64) any {
	if v == nil {
		return nil
	}
	return *v
}

func int64Ptr(n sql.NullInt64) *int64 {
	if !n.Valid {
		return nil
	}
	v := n.Int64
	return &v
}

func nullFloat(v *float64) any {
	if v == nil {
		return nil
	}
	return *v
}

func float64Ptr(n sql.NullFloat64) *float64 {
	if !n.Valid {
		return nil
	}
	v := n.Float64
	return &v
}

// rawOrNil stores a JSON value, treating empty and null as SQL NULL.
func rawOrNil(r json.RawMessage) any {
	if len(r) == 0 || string(r) == "null" {
		return nil
	}
	return string(r)
}

// rawOrEmpty stores a JSON value for NOT NULL columns.
func rawOrEmpty(r json.RawMessage) string {
	if len(r) == 0 || string(r) == "null" {
		return "{}"
	}
	return string(r)
}

func rawPtr(ns sql.NullString) json.RawMessage {
	if !ns.Valid {
		return nil
	}
	return json.RawMessage(ns.String)
}

func encodeJSON(v any) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func decodeStrings(s string) []string {
	var out []string
	if err := json.Unmarshal([]byte(s), &out); err != nil || out == nil {
		return []string{}
	}
	return out
}

func decodeRawMap(s string) map[string]json.RawMessage {
	out := map[string]json.RawMessage{}
	_ = json.Unmarshal([]byte(s), &out)
	if out == nil {
		out = map[string]json.RawMessage{}
	}
	return out
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// scopeClause returns an extra WHERE fragment restricting column to hotelID
// when hotelID is not empty.
func scopeClause(column, hotelID string) (string, []any) {
	if hotelID == "" {
		return "", nil
	}
	return " AND " + column + " = ?", []any{hotelID}
}

// hotelOfQueries resolves the owning hotel of a row.
var hotelOfQueries = map[id.Kind]string{
	id.KindHotel:       "SELECT id FROM hotels WHERE id = ?",
	id.KindBuilding:    "SELECT hotel_id FROM buildings WHERE id = ?",
	id.KindFloor:       "SELECT b.hotel_id FROM floors f JOIN buildings b ON b.id = f.building_id WHERE f.id = ?",
	id.KindRoom:        "SELECT b.hotel_id FROM rooms r JOIN floors f ON f.id = r.floor_id JOIN buildings b ON b.id = f.building_id WHERE r.id = ?",
	id.KindSpace:       "SELECT b.hotel_id FROM spaces s JOIN floors f ON f.id = s.floor_id JOIN buildings b ON b.id = f.building_id WHERE s.id = ?",
	id.KindStaff:       "SELECT hotel_id FROM staff_members WHERE id = ?",
	id.KindSession:     "SELECT hotel_id FROM sessions WHERE id = ?",
	id.KindTask:        "SELECT hotel_id FROM tasks WHERE id = ?",
	id.KindReservation: "SELECT hotel_id FROM reservations WHERE id = ?",
	id.KindContract:    "SELECT hotel_id FROM contracts WHERE id = ?",
}

// HotelOf returns the id of the hotel a row belongs to.
func (s *Store) HotelOf(ctx context.Context, kind id.Kind, serverID string) (string, error) {
	query, ok := hotelOfQueries[kind]
	if !ok {
		return "", fmt.Errorf("kind %s is not hotel-scoped", kind)
	}
	var hotelID string
	err := s.db.QueryRowContext(ctx, query, serverID).Scan(&hotelID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to resolve hotel of %s: %w", kind, err)
	}
	return hotelID, nil
}
