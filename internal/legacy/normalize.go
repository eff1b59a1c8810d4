package legacy

import (
	"encoding/json"
	"sort"
	"time"

	"github.com/lherron/hmp/internal/domain"
)

// Default settings and prices of a fresh dataset.
const (
	DefaultTimezone       = "America/New_York"
	DefaultWorkHoursStart = "08:00"
	DefaultWorkHoursEnd   = "17:00"
	DefaultRoomsMin       = 10
	DefaultRoomsMax       = 20
)

var defaultPriceSheets = map[string]json.RawMessage{
	"basePrices":      json.RawMessage(`{"BOTH":65,"CARPET":45,"TILE":40}`),
	"penaltyPrices":   json.RawMessage(`{"BOTH":75,"CARPET":55,"TILE":50}`),
	"contractPrices":  json.RawMessage(`{"BOTH":65,"CARPET":45,"TILE":40}`),
	"advantagePrices": json.RawMessage(`{"BOTH":60,"CARPET":42,"TILE":38}`),
	"sqftPrices":      json.RawMessage(`{"CARPET":0,"TILE":0}`),
}

// DefaultSettings returns the settings of a fresh dataset.
func DefaultSettings() Settings {
	return Settings{
		Timezone:  DefaultTimezone,
		WorkHours: WorkHours{Start: DefaultWorkHoursStart, End: DefaultWorkHoursEnd},
	}
}

// DefaultPricing returns the price sheet of a fresh dataset.
func DefaultPricing() *PricingDefaults {
	return &PricingDefaults{
		RoomsMinPerSession: NumOf(DefaultRoomsMin),
		RoomsMaxPerSession: NumOf(DefaultRoomsMax),
		BasePrices:         cloneRaw(defaultPriceSheets["basePrices"]),
		PenaltyPrices:      cloneRaw(defaultPriceSheets["penaltyPrices"]),
		ContractPrices:     cloneRaw(defaultPriceSheets["contractPrices"]),
		AdvantagePrices:    cloneRaw(defaultPriceSheets["advantagePrices"]),
		SqftPrices:         cloneRaw(defaultPriceSheets["sqftPrices"]),
	}
}

// New returns an empty, normalized dataset stamped with now.
func New(now time.Time) *Document {
	d := &Document{Version: Version, UpdatedAt: domain.FormatTime(now)}
	d.Normalize()
	return d
}

// Normalize fills every missing collection and default in place.
// Existing values are never overwritten.
func (d *Document) Normalize() {
	if d.Version == 0 {
		d.Version = Version
	}
	if d.Hotels == nil {
		d.Hotels = map[string]Hotel{}
	}
	if d.Contracts == nil {
		d.Contracts = map[string]Contract{}
	}
	if d.Sessions == nil {
		d.Sessions = map[string]Session{}
	}
	if d.Reservations == nil {
		d.Reservations = map[string]Reservation{}
	}
	if d.Incidents == nil {
		d.Incidents = map[string]Task{}
	}
	if d.Tasks == nil {
		d.Tasks = map[string]Task{}
	}
	if d.Staff == nil {
		d.Staff = map[string]StaffMember{}
	}
	if d.Technicians == nil {
		d.Technicians = map[string]Technician{}
	}
	if d.Availability.Blocked == nil {
		d.Availability.Blocked = []BlockedSlot{}
	}
	if d.Settings == (Settings{}) {
		d.Settings = DefaultSettings()
	}

	if d.Pricing.Defaults == nil {
		d.Pricing.Defaults = DefaultPricing()
	}
	p := d.Pricing.Defaults
	if !p.RoomsMinPerSession.Valid {
		p.RoomsMinPerSession = NumOf(DefaultRoomsMin)
	}
	if !p.RoomsMaxPerSession.Valid {
		p.RoomsMaxPerSession = NumOf(DefaultRoomsMax)
	}
	fillRaw(&p.BasePrices, "basePrices")
	fillRaw(&p.PenaltyPrices, "penaltyPrices")
	fillRaw(&p.ContractPrices, "contractPrices")
	fillRaw(&p.AdvantagePrices, "advantagePrices")
	fillRaw(&p.SqftPrices, "sqftPrices")
}

func fillRaw(dst *json.RawMessage, sheet string) {
	if isNull(*dst) {
		*dst = cloneRaw(defaultPriceSheets[sheet])
	}
}

func cloneRaw(r json.RawMessage) json.RawMessage {
	if r == nil {
		return nil
	}
	out := make(json.RawMessage, len(r))
	copy(out, r)
	return out
}

// MigrateLegacy builds a current dataset from a pre-versioning one, which
// only knew about hotels and the active hotel.
func MigrateLegacy(old *Document, now time.Time) *Document {
	migrated := New(now)
	if old == nil || len(old.Hotels) == 0 {
		return migrated
	}

	migrated.Hotels = old.Hotels
	migrated.ActiveHotelID = old.ActiveHotelID
	if migrated.ActiveHotelID == nil {
		keys := make([]string, 0, len(old.Hotels))
		for k := range old.Hotels {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		migrated.ActiveHotelID = &keys[0]
	}
	return migrated
}

// FoldIncidents moves legacy incidents into tasks when the dataset has
// incidents but no tasks yet. It reports whether anything moved.
func (d *Document) FoldIncidents() bool {
	if len(d.Incidents) == 0 || len(d.Tasks) > 0 {
		return false
	}
	d.Tasks = d.Incidents
	d.Incidents = map[string]Task{}
	return true
}

// Touch stamps the document as modified at now.
func (d *Document) Touch(now time.Time) {
	d.UpdatedAt = domain.FormatTime(now)
}

// UpdatedTime parses UpdatedAt.
func (d *Document) UpdatedTime() (time.Time, bool) {
	if d == nil {
		return time.Time{}, false
	}
	return domain.ParseTime(d.UpdatedAt)
}

// Counts returns the number of entries per collection, for status output.
func (d *Document) Counts() map[Collection]int {
	return map[Collection]int{
		CollectionHotels:       len(d.Hotels),
		CollectionContracts:    len(d.Contracts),
		CollectionSessions:     len(d.Sessions),
		CollectionReservations: len(d.Reservations),
		CollectionTasks:        len(d.Tasks),
		CollectionStaff:        len(d.Staff),
		CollectionTechnicians:  len(d.Technicians),
		CollectionBlocked:      len(d.Availability.Blocked),
	}
}
