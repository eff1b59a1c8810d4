package legacy

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecode_MalformedCollectionsBecomeEmpty(t *testing.T) {
	doc, err := Decode([]byte(`{
		"version": "1",
		"hotels": [],
		"tasks": "nope",
		"staff": null,
		"availability": {"blocked": {"not": "a list"}},
		"pricing": {"defaults": 7},
		"settings": 3
	}`))
	require.NoError(t, err)

	assert.Equal(t, 1, doc.Version)
	assert.Empty(t, doc.Hotels)
	assert.Empty(t, doc.Tasks)
	assert.Empty(t, doc.Staff)
	assert.Empty(t, doc.Availability.Blocked)
	assert.Nil(t, doc.Pricing.Defaults)
	assert.Equal(t, 1, doc.Invalid[CollectionPricingDefaults])
}

func TestDecode_BadEntriesAreCounted(t *testing.T) {
	doc, err := Decode([]byte(`{
		"hotels": {
			"h1": {"id": "h1", "name": "Seaside", "buildings": []},
			"h2": {"id": "h2", "name": {"oops": true}}
		},
		"availability": {"blocked": [{"id": "b1"}, 12]}
	}`))
	require.NoError(t, err)

	assert.Len(t, doc.Hotels, 1)
	assert.Equal(t, 1, doc.Invalid[CollectionHotels])
	assert.Len(t, doc.Availability.Blocked, 1)
	assert.Equal(t, 1, doc.Invalid[CollectionBlocked])
}

func TestDecode_TopLevelMustBeObject(t *testing.T) {
	for _, in := range []string{`[]`, `"x"`, `null`, `{`} {
		_, err := Decode([]byte(in))
		assert.Error(t, err, "input %s", in)
	}
}

func TestFlexibleScalars(t *testing.T) {
	var room Room
	require.NoError(t, json.Unmarshal([]byte(`{
		"id": "r1", "roomNumber": 101, "sqft": "350.5",
		"cleaningFrequency": "", "lastCleaned": 1700000000000
	}`), &room))

	assert.Equal(t, "101", room.RoomNumber.String())
	assert.Equal(t, 350.5, *room.Sqft.FloatPtr())
	assert.False(t, room.CleaningFrequency.Valid)
	require.True(t, room.LastCleaned.Valid)
	assert.Equal(t, int64(1700000000000), room.LastCleaned.Time.UnixMilli())

	var iso Room
	require.NoError(t, json.Unmarshal([]byte(`{"lastCleaned": "2024-02-03T04:05:06.000Z"}`), &iso))
	assert.Equal(t, 2024, iso.LastCleaned.Time.Year())

	out, err := json.Marshal(Room{ID: "r", Sqft: NumOf(12), CleaningFrequency: Num{}})
	require.NoError(t, err)
	assert.Contains(t, string(out), `"sqft":12`)
	assert.Contains(t, string(out), `"cleaningFrequency":null`)
	assert.Contains(t, string(out), `"lastCleaned":null`)
}

func TestValidate_NotBlank(t *testing.T) {
	assert.NoError(t, Validate(Building{ID: "b1", Name: "Main"}))
	assert.Error(t, Validate(Building{ID: "  ", Name: "Main"}))
	assert.Error(t, Validate(Floor{ID: "f1", NameOrNumber: " "}))
	assert.Error(t, Validate(Reservation{}))
}

func TestNormalize_FillsDefaultsWithoutOverwriting(t *testing.T) {
	doc := &Document{
		Pricing: Pricing{Defaults: &PricingDefaults{
			RoomsMinPerSession: NumOf(4),
			BasePrices:         json.RawMessage(`{"BOTH":99}`),
		}},
	}
	doc.Normalize()

	assert.Equal(t, Version, doc.Version)
	assert.NotNil(t, doc.Hotels)
	assert.NotNil(t, doc.Availability.Blocked)
	assert.Equal(t, DefaultSettings(), doc.Settings)

	p := doc.Pricing.Defaults
	assert.Equal(t, 4.0, p.RoomsMinPerSession.Value)
	assert.Equal(t, float64(DefaultRoomsMax), p.RoomsMaxPerSession.Value)
	assert.JSONEq(t, `{"BOTH":99}`, string(p.BasePrices))
	assert.JSONEq(t, `{"BOTH":75,"CARPET":55,"TILE":50}`, string(p.PenaltyPrices))
}

func TestMigrateLegacy(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	old := &Document{Hotels: map[string]Hotel{
		"zeta":  {ID: "zeta", Name: "Z"},
		"alpha": {ID: "alpha", Name: "A"},
	}}

	migrated := MigrateLegacy(old, now)
	assert.Equal(t, Version, migrated.Version)
	assert.Len(t, migrated.Hotels, 2)
	require.NotNil(t, migrated.ActiveHotelID)
	assert.Equal(t, "alpha", *migrated.ActiveHotelID)
	assert.Equal(t, "2024-05-01T12:00:00.000Z", migrated.UpdatedAt)

	empty := MigrateLegacy(&Document{}, now)
	assert.Nil(t, empty.ActiveHotelID)
	assert.Empty(t, empty.Hotels)
}

func TestFoldIncidents(t *testing.T) {
	doc := New(time.Now())
	doc.Incidents["i1"] = Task{ID: "i1", Category: "INCIDENT"}

	assert.True(t, doc.FoldIncidents())
	assert.Contains(t, doc.Tasks, "i1")
	assert.Empty(t, doc.Incidents)

	doc.Incidents["i2"] = Task{ID: "i2"}
	assert.False(t, doc.FoldIncidents(), "existing tasks are never replaced")
}

func TestRevision_IgnoresUpdatedAt(t *testing.T) {
	a := New(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	b := New(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC))

	revA, err := Revision(a)
	require.NoError(t, err)
	revB, err := Revision(b)
	require.NoError(t, err)
	assert.Equal(t, revA, revB)

	b.Hotels["h1"] = Hotel{ID: "h1", Name: "New"}
	revB, err = Revision(b)
	require.NoError(t, err)
	assert.NotEqual(t, revA, revB)

	clone, err := Clone(b)
	require.NoError(t, err)
	assert.Equal(t, b.Hotels, clone.Hotels)
}
