// Package id translates between client-generated legacy identifiers and
// server-assigned identifiers, and issues new server identifiers.
package id

import (
	"regexp"
	"strings"

	"github.com/google/uuid"
)

var uuidPattern = regexp.MustCompile(`^[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}$`)

// Kind is the entity type an identifier belongs to. Identifiers of different
// kinds never collide inside a Map.
type Kind string

const (
	KindHotel       Kind = "hotel"
	KindBuilding    Kind = "building"
	KindFloor       Kind = "floor"
	KindRoom        Kind = "room"
	KindSpace       Kind = "space"
	KindStaff       Kind = "staff"
	KindTechnician  Kind = "technician"
	KindBlockedSlot Kind = "blocked_slot"
	KindSession     Kind = "session"
	KindTask        Kind = "task"
	KindReservation Kind = "reservation"
	KindContract    Kind = "contract"
)

// Direction records which way a Map translates.
type Direction int

const (
	// LegacyToServer is built during an import.
	LegacyToServer Direction = iota
	// ServerToLegacy is built during an export.
	ServerToLegacy
)

func (d Direction) String() string {
	if d == ServerToLegacy {
		return "server->legacy"
	}
	return "legacy->server"
}

// Map is a run-scoped identifier map with one forward table per Kind.
// It is built during a single import or export pass and never persisted.
// A Map is not safe for concurrent use.
type Map struct {
	direction Direction
	tables    map[Kind]map[string]string
}

// NewMap returns an empty Map translating in the given direction.
func NewMap(direction Direction) *Map {
	return &Map{direction: direction, tables: make(map[Kind]map[string]string)}
}

// Direction returns the translation direction of the map.
func (m *Map) Direction() Direction {
	return m.direction
}

// Set records from -> to for kind. Empty identifiers are ignored.
func (m *Map) Set(kind Kind, from, to string) {
	from, to = strings.TrimSpace(from), strings.TrimSpace(to)
	if from == "" || to == "" {
		return
	}
	t, ok := m.tables[kind]
	if !ok {
		t = make(map[string]string)
		m.tables[kind] = t
	}
	t[from] = to
}

// Lookup returns the translation of from. Blank or unknown identifiers
// report false; an empty string is never returned as a valid translation.
func (m *Map) Lookup(kind Kind, from string) (string, bool) {
	from = strings.TrimSpace(from)
	if from == "" {
		return "", false
	}
	to, ok := m.tables[kind][from]
	return to, ok
}

// Ref is Lookup returning nil when the identifier cannot be resolved, so
// callers can emit an explicit null.
func (m *Map) Ref(kind Kind, from string) *string {
	if to, ok := m.Lookup(kind, from); ok {
		return &to
	}
	return nil
}

// RefPtr is Ref for an optional source identifier.
func (m *Map) RefPtr(kind Kind, from *string) *string {
	if from == nil {
		return nil
	}
	return m.Ref(kind, *from)
}

// RefList translates every element, keeping positions. Unresolved elements
// become nil.
func (m *Map) RefList(kind Kind, from []string) []*string {
	out := make([]*string, 0, len(from))
	for _, f := range from {
		out = append(out, m.Ref(kind, f))
	}
	return out
}

// ResolveList translates every element, dropping the ones that cannot be
// resolved.
func (m *Map) ResolveList(kind Kind, from []string) []string {
	out := make([]string, 0, len(from))
	for _, f := range from {
		if to, ok := m.Lookup(kind, f); ok {
			out = append(out, to)
		}
	}
	return out
}

// Len returns the number of entries recorded for kind.
func (m *Map) Len(kind Kind) int {
	return len(m.tables[kind])
}

// RemapKeys returns a copy of in whose keys are translated through m.
// Entries whose key cannot be resolved are dropped.
func RemapKeys[V any](m *Map, kind Kind, in map[string]V) map[string]V {
	out := make(map[string]V, len(in))
	for k, v := range in {
		if nk, ok := m.Lookup(kind, k); ok {
			out[nk] = v
		}
	}
	return out
}

// New returns a fresh server identifier.
func New() string {
	return uuid.NewString()
}

// NewStaffToken returns a fresh staff link token.
func NewStaffToken() string {
	return "stafftok_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:24]
}

// IsUUID checks if a string is a valid UUID
func IsUUID(s string) bool {
	return uuidPattern.MatchString(strings.ToLower(s))
}
