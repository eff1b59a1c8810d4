// Package legacy defines the client-resident dataset document exchanged by
// the migration endpoints and held by the client local store.
//
// Collections are keyed by legacy identifier. Every cross reference inside
// a document is a legacy identifier; unresolved references are null.
package legacy

import "encoding/json"

// Version is the current document version.
const Version = 1

// Document is the whole client dataset.
type Document struct {
	Version       int                    `json:"version"`
	ActiveHotelID *string                `json:"activeHotelId"`
	Hotels        map[string]Hotel       `json:"hotels"`
	Contracts     map[string]Contract    `json:"contracts"`
	Sessions      map[string]Session     `json:"sessions"`
	Reservations  map[string]Reservation `json:"reservations"`
	Incidents     map[string]Task        `json:"incidents"`
	Tasks         map[string]Task        `json:"tasks"`
	Staff         map[string]StaffMember `json:"staff"`
	Technicians   map[string]Technician  `json:"technicians"`
	Availability  Availability           `json:"availability"`
	Settings      Settings               `json:"settings"`
	Pricing       Pricing                `json:"pricing"`
	UpdatedAt     string                 `json:"updatedAt"`

	// Invalid counts entries dropped while decoding, per collection.
	Invalid map[Collection]int `json:"-"`
}

type Hotel struct {
	ID        string     `json:"id"`
	Name      string     `json:"name" validate:"notblank"`
	Buildings []Building `json:"buildings"`
}

type Building struct {
	ID     string  `json:"id" validate:"notblank"`
	Name   string  `json:"name" validate:"notblank"`
	Notes  string  `json:"notes"`
	Floors []Floor `json:"floors"`
}

type Floor struct {
	ID           string  `json:"id" validate:"notblank"`
	NameOrNumber Text    `json:"nameOrNumber" validate:"notblank"`
	SortOrder    Num     `json:"sortOrder"`
	Notes        string  `json:"notes"`
	Rooms        []Room  `json:"rooms"`
	Spaces       []Space `json:"spaces"`
}

type Room struct {
	ID                string  `json:"id" validate:"notblank"`
	RoomNumber        Text    `json:"roomNumber" validate:"notblank"`
	Active            *bool   `json:"active"`
	Surface           string  `json:"surface"`
	Sqft              Num     `json:"sqft"`
	LastCleaned       Instant `json:"lastCleaned"`
	CleaningFrequency Num     `json:"cleaningFrequency"`
	Notes             string  `json:"notes"`
}

type Space struct {
	ID                string `json:"id" validate:"notblank"`
	Name              string `json:"name" validate:"notblank"`
	Type              string `json:"type"`
	Active            *bool  `json:"active"`
	Sqft              Num    `json:"sqft"`
	CleaningFrequency Num    `json:"cleaningFrequency"`
}

type StaffMember struct {
	ID        string  `json:"id"`
	Token     string  `json:"token"`
	HotelID   *string `json:"hotelId"`
	FirstName string  `json:"firstName"`
	LastName  string  `json:"lastName"`
	Phone     Text    `json:"phone"`
	Notes     string  `json:"notes"`
	Active    *bool   `json:"active"`
	CreatedAt string  `json:"createdAt"`
}

type Technician struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Phone     Text   `json:"phone"`
	Notes     string `json:"notes"`
	Active    *bool  `json:"active"`
	CreatedAt string `json:"createdAt"`
}

type BlockedSlot struct {
	ID        string `json:"id" validate:"notblank"`
	Date      string `json:"date"`
	Start     string `json:"start"`
	End       string `json:"end"`
	Note      string `json:"note"`
	CreatedAt string `json:"createdAt"`
}

type Session struct {
	ID           string    `json:"id"`
	Status       string    `json:"status"`
	CreatedAt    string    `json:"createdAt"`
	HotelID      *string   `json:"hotelId"`
	RoomIDs      []*string `json:"roomIds"`
	Date         string    `json:"date"`
	Start        string    `json:"start"`
	End          string    `json:"end"`
	TechnicianID *string   `json:"technicianId"`
}

type Task struct {
	ID              string          `json:"id"`
	HotelID         *string         `json:"hotelId"`
	Category        string          `json:"category"`
	Status          string          `json:"status"`
	Type            string          `json:"type"`
	Priority        string          `json:"priority"`
	Locations       []Location      `json:"locations"`
	Location        *Location       `json:"location"`
	Room            string          `json:"room"`
	Description     string          `json:"description"`
	AssignedStaffID *string         `json:"assignedStaffId"`
	Schedule        json.RawMessage `json:"schedule"`
	CreatedAt       string          `json:"createdAt"`
	UpdatedAt       string          `json:"updatedAt"`
	Events          []TaskEvent     `json:"events"`
	Attachments     []Attachment    `json:"attachments"`
}

type Location struct {
	Label   string  `json:"label"`
	RoomID  *string `json:"roomId,omitempty"`
	SpaceID *string `json:"spaceId,omitempty"`
}

type TaskEvent struct {
	ID           string          `json:"id"`
	At           string          `json:"at"`
	Action       string          `json:"action"`
	ActorRole    string          `json:"actorRole"`
	ActorStaffID *string         `json:"actorStaffId"`
	Note         string          `json:"note"`
	Patch        json.RawMessage `json:"patch"`
}

type Attachment struct {
	ID           string  `json:"id"`
	At           string  `json:"at"`
	Name         string  `json:"name"`
	Mime         string  `json:"mime"`
	DataURL      *string `json:"dataUrl"`
	URL          *string `json:"url"`
	ActorRole    string  `json:"actorRole"`
	ActorStaffID *string `json:"actorStaffId"`
}

type Reservation struct {
	ID                    string                     `json:"id"`
	Token                 string                     `json:"token" validate:"notblank"`
	StatusAdmin           string                     `json:"statusAdmin"`
	StatusHotel           string                     `json:"statusHotel"`
	CreatedAt             string                     `json:"createdAt"`
	ConfirmedAt           *string                    `json:"confirmedAt"`
	CancelledAt           *string                    `json:"cancelledAt"`
	CancelledBy           string                     `json:"cancelledBy"`
	CancelReason          string                     `json:"cancelReason"`
	RequiresAdminApproval bool                       `json:"requiresAdminApproval"`
	HotelID               *string                    `json:"hotelId"`
	RoomIDs               []*string                  `json:"roomIds"`
	SpaceIDs              []*string                  `json:"spaceIds"`
	RoomNotes             map[string]json.RawMessage `json:"roomNotes"`
	SpaceNotes            map[string]json.RawMessage `json:"spaceNotes"`
	SurfaceDefault        string                     `json:"surfaceDefault"`
	RoomSurfaceOverrides  map[string]json.RawMessage `json:"roomSurfaceOverrides"`
	NotesGlobal           string                     `json:"notesGlobal"`
	NotesOrg              string                     `json:"notesOrg"`
	DurationMinutes       Num                        `json:"durationMinutes"`
	ProposedDate          string                     `json:"proposedDate"`
	ProposedStart         string                     `json:"proposedStart"`
}

type Contract struct {
	ID                  string          `json:"id"`
	Token               string          `json:"token" validate:"notblank"`
	Number              Num             `json:"number"`
	Status              string          `json:"status"`
	CreatedAt           string          `json:"createdAt"`
	HotelID             *string         `json:"hotelId"`
	HotelName           string          `json:"hotelName"`
	Contact             json.RawMessage `json:"contact"`
	Pricing             json.RawMessage `json:"pricing"`
	RoomsMinPerSession  Num             `json:"roomsMinPerSession"`
	RoomsMaxPerSession  Num             `json:"roomsMaxPerSession"`
	RoomsPerSession     Num             `json:"roomsPerSession"`
	Frequency           string          `json:"frequency"`
	SurfaceType         string          `json:"surfaceType"`
	AppliedTier         string          `json:"appliedTier"`
	AppliedPricePerRoom Num             `json:"appliedPricePerRoom"`
	OtherSurfaces       json.RawMessage `json:"otherSurfaces"`
	TotalPerSession     Num             `json:"totalPerSession"`
	Notes               string          `json:"notes"`
	SentAt              string          `json:"sentAt"`
	SignedBy            string          `json:"signedBy"`
	AcceptedAt          *string         `json:"acceptedAt"`
}

type Availability struct {
	Blocked []BlockedSlot `json:"blocked"`
}

type Settings struct {
	Timezone  string    `json:"timezone"`
	WorkHours WorkHours `json:"workHours"`
}

type WorkHours struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

type Pricing struct {
	Defaults *PricingDefaults `json:"defaults,omitempty"`
}

type PricingDefaults struct {
	RoomsMinPerSession Num             `json:"roomsMinPerSession"`
	RoomsMaxPerSession Num             `json:"roomsMaxPerSession"`
	BasePrices         json.RawMessage `json:"basePrices"`
	PenaltyPrices      json.RawMessage `json:"penaltyPrices"`
	ContractPrices     json.RawMessage `json:"contractPrices"`
	AdvantagePrices    json.RawMessage `json:"advantagePrices"`
	SqftPrices         json.RawMessage `json:"sqftPrices"`
}
