package legacy

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Collection names a top-level collection of the document.
type Collection string

const (
	CollectionHotels          Collection = "hotels"
	CollectionContracts       Collection = "contracts"
	CollectionSessions        Collection = "sessions"
	CollectionReservations    Collection = "reservations"
	CollectionIncidents       Collection = "incidents"
	CollectionTasks           Collection = "tasks"
	CollectionStaff           Collection = "staff"
	CollectionTechnicians     Collection = "technicians"
	CollectionBlocked         Collection = "blocked_slots"
	CollectionPricingDefaults Collection = "pricing_defaults"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("notblank", func(fl validator.FieldLevel) bool {
		return strings.TrimSpace(fl.Field().String()) != ""
	})
	return v
}

// Validate checks the struct tags of a document entry.
func Validate(entry any) error {
	return validate.Struct(entry)
}

// Decode parses a document. The top level must be a JSON object; anything
// below it is decoded leniently (see Document.UnmarshalJSON).
func Decode(data []byte) (*Document, error) {
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	return &doc, nil
}

// UnmarshalJSON decodes a document without failing on malformed
// collections. A collection of the wrong JSON type decodes as empty and an
// entry that cannot be decoded is dropped and counted in Invalid.
func (d *Document) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("legacy document must be a JSON object: %w", err)
	}
	if raw == nil {
		return fmt.Errorf("legacy document must be a JSON object, got null")
	}

	*d = Document{Invalid: make(map[Collection]int)}

	var version Num
	if json.Unmarshal(raw["version"], &version) == nil {
		if v, ok := version.Int(); ok {
			d.Version = int(v)
		}
	}
	d.ActiveHotelID = decodeRef(raw["activeHotelId"])

	d.Hotels = decodeCollection[Hotel](raw["hotels"], CollectionHotels, d.Invalid)
	d.Contracts = decodeCollection[Contract](raw["contracts"], CollectionContracts, d.Invalid)
	d.Sessions = decodeCollection[Session](raw["sessions"], CollectionSessions, d.Invalid)
	d.Reservations = decodeCollection[Reservation](raw["reservations"], CollectionReservations, d.Invalid)
	d.Incidents = decodeCollection[Task](raw["incidents"], CollectionIncidents, d.Invalid)
	d.Tasks = decodeCollection[Task](raw["tasks"], CollectionTasks, d.Invalid)
	d.Staff = decodeCollection[StaffMember](raw["staff"], CollectionStaff, d.Invalid)
	d.Technicians = decodeCollection[Technician](raw["technicians"], CollectionTechnicians, d.Invalid)

	var availability map[string]json.RawMessage
	if json.Unmarshal(raw["availability"], &availability) == nil {
		d.Availability.Blocked = decodeList[BlockedSlot](availability["blocked"], CollectionBlocked, d.Invalid)
	}

	var settings Settings
	if json.Unmarshal(raw["settings"], &settings) == nil {
		d.Settings = settings
	}

	var pricing map[string]json.RawMessage
	if json.Unmarshal(raw["pricing"], &pricing) == nil {
		if rawDefaults, ok := pricing["defaults"]; ok && !isNull(rawDefaults) {
			var defaults PricingDefaults
			if err := json.Unmarshal(rawDefaults, &defaults); err != nil {
				d.Invalid[CollectionPricingDefaults]++
			} else {
				d.Pricing.Defaults = &defaults
			}
		}
	}

	var updatedAt string
	if json.Unmarshal(raw["updatedAt"], &updatedAt) == nil {
		d.UpdatedAt = updatedAt
	}

	return nil
}

func isNull(raw json.RawMessage) bool {
	return len(raw) == 0 || string(raw) == "null"
}

func decodeRef(raw json.RawMessage) *string {
	if isNull(raw) {
		return nil
	}
	var t Text
	if json.Unmarshal(raw, &t) != nil || t.String() == "" {
		return nil
	}
	s := t.String()
	return &s
}

func decodeCollection[T any](raw json.RawMessage, c Collection, invalid map[Collection]int) map[string]T {
	out := make(map[string]T)
	var entries map[string]json.RawMessage
	if isNull(raw) || json.Unmarshal(raw, &entries) != nil {
		return out
	}
	for key, entry := range entries {
		var v T
		if err := json.Unmarshal(entry, &v); err != nil {
			invalid[c]++
			continue
		}
		out[key] = v
	}
	return out
}

func decodeList[T any](raw json.RawMessage, c Collection, invalid map[Collection]int) []T {
	out := []T{}
	var entries []json.RawMessage
	if isNull(raw) || json.Unmarshal(raw, &entries) != nil {
		return out
	}
	for _, entry := range entries {
		var v T
		if err := json.Unmarshal(entry, &v); err != nil {
			invalid[c]++
			continue
		}
		out = append(out, v)
	}
	return out
}
