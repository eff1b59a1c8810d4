package migration

import (
	"encoding/json"
	"reflect"
	"sort"
	"strings"
)

// Created counts rows inserted by an import, per entity type.
type Created struct {
	Hotels          int `json:"hotels,omitempty"`
	Buildings       int `json:"buildings,omitempty"`
	Floors          int `json:"floors,omitempty"`
	Rooms           int `json:"rooms,omitempty"`
	Spaces          int `json:"spaces,omitempty"`
	Staff           int `json:"staff,omitempty"`
	Technicians     int `json:"technicians,omitempty"`
	BlockedSlots    int `json:"blocked_slots,omitempty"`
	Sessions        int `json:"sessions,omitempty"`
	Tasks           int `json:"tasks,omitempty"`
	Reservations    int `json:"reservations,omitempty"`
	Contracts       int `json:"contracts,omitempty"`
	PricingDefaults int `json:"pricing_defaults,omitempty"`
	Settings        int `json:"settings,omitempty"`
}

// Skipped counts entries that were not created, per reason. The plain
// entity buckets hold rows that already existed; matched structural rows
// and reservations are still updated in place.
type Skipped struct {
	Hotels       int `json:"hotels,omitempty"`
	Buildings    int `json:"buildings,omitempty"`
	Floors       int `json:"floors,omitempty"`
	Rooms        int `json:"rooms,omitempty"`
	Spaces       int `json:"spaces,omitempty"`
	Staff        int `json:"staff,omitempty"`
	Technicians  int `json:"technicians,omitempty"`
	BlockedSlots int `json:"blocked_slots,omitempty"`
	Sessions     int `json:"sessions,omitempty"`
	Tasks        int `json:"tasks,omitempty"`
	Reservations int `json:"reservations,omitempty"`
	Contracts    int `json:"contracts,omitempty"`

	PricingDefaults int `json:"pricing_defaults,omitempty"`
	Settings        int `json:"settings,omitempty"`

	HotelsInvalid          int `json:"hotels_invalid,omitempty"`
	BuildingsInvalid       int `json:"buildings_invalid,omitempty"`
	FloorsInvalid          int `json:"floors_invalid,omitempty"`
	RoomsInvalid           int `json:"rooms_invalid,omitempty"`
	SpacesInvalid          int `json:"spaces_invalid,omitempty"`
	StaffInvalid           int `json:"staff_invalid,omitempty"`
	TechniciansInvalid     int `json:"technicians_invalid,omitempty"`
	BlockedSlotsInvalid    int `json:"blocked_slots_invalid,omitempty"`
	SessionsInvalid        int `json:"sessions_invalid,omitempty"`
	TasksInvalid           int `json:"tasks_invalid,omitempty"`
	ReservationsInvalid    int `json:"reservations_invalid,omitempty"`
	ContractsInvalid       int `json:"contracts_invalid,omitempty"`
	PricingDefaultsInvalid int `json:"pricing_defaults_invalid,omitempty"`

	StaffMissingHotel        int `json:"staff_missing_hotel,omitempty"`
	SessionsMissingHotel     int `json:"sessions_missing_hotel,omitempty"`
	TasksMissingHotel        int `json:"tasks_missing_hotel,omitempty"`
	ReservationsMissingHotel int `json:"reservations_missing_hotel,omitempty"`
	ContractsMissingHotel    int `json:"contracts_missing_hotel,omitempty"`

	HotelsOutOfScope          int `json:"hotels_out_of_scope,omitempty"`
	BuildingsOutOfScope       int `json:"buildings_out_of_scope,omitempty"`
	FloorsOutOfScope          int `json:"floors_out_of_scope,omitempty"`
	RoomsOutOfScope           int `json:"rooms_out_of_scope,omitempty"`
	SpacesOutOfScope          int `json:"spaces_out_of_scope,omitempty"`
	TechniciansOutOfScope     int `json:"technicians_out_of_scope,omitempty"`
	BlockedSlotsOutOfScope    int `json:"blocked_slots_out_of_scope,omitempty"`
	ReservationsOutOfScope    int `json:"reservations_out_of_scope,omitempty"`
	PricingDefaultsOutOfScope int `json:"pricing_defaults_out_of_scope,omitempty"`
	SettingsOutOfScope        int `json:"settings_out_of_scope,omitempty"`

	ReservationsTokenConflict int `json:"reservations_token_conflict,omitempty"`
	ContractsTokenConflict    int `json:"contracts_token_conflict,omitempty"`
}

// Summary is the result of an import run.
type Summary struct {
	Created Created `json:"created"`
	Skipped Skipped `json:"skipped"`
}

// warningSuffixes mark skip buckets that signal lost data rather than
// already-imported rows.
var warningSuffixes = []string{"_invalid", "_out_of_scope", "_token_conflict", "_missing_hotel"}

// Warnings returns the nonzero skip buckets that callers should surface,
// as bucket name to count, in name order.
func (s Summary) Warnings() []Bucket {
	var out []Bucket
	for _, b := range buckets(s.Skipped) {
		for _, suffix := range warningSuffixes {
			if strings.HasSuffix(b.Name, suffix) {
				out = append(out, b)
				break
			}
		}
	}
	return out
}

// TotalCreated sums every created bucket.
func (s Summary) TotalCreated() int {
	total := 0
	for _, b := range buckets(s.Created) {
		total += b.Count
	}
	return total
}

// Bucket is one named counter.
type Bucket struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// CreatedBuckets lists the nonzero created counters in name order.
func (s Summary) CreatedBuckets() []Bucket { return buckets(s.Created) }

// SkippedBuckets lists the nonzero skipped counters in name order.
func (s Summary) SkippedBuckets() []Bucket { return buckets(s.Skipped) }

// buckets flattens a counter struct through its JSON tags.
func buckets(v any) []Bucket {
	rv := reflect.ValueOf(v)
	rt := rv.Type()
	var out []Bucket
	for i := 0; i < rt.NumField(); i++ {
		n := int(rv.Field(i).Int())
		if n == 0 {
			continue
		}
		name, _, _ := strings.Cut(rt.Field(i).Tag.Get("json"), ",")
		out = append(out, Bucket{Name: name, Count: n})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// String renders the summary as compact JSON, for logs.
func (s Summary) String() string {
	data, _ := json.Marshal(s)
	return string(data)
}
