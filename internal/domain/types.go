package domain

import (
	"encoding/json"
	"time"
)

// Role is a user's role within an organization.
type Role string

const (
	RoleSuperAdmin Role = "SUPER_ADMIN"
	RoleHotelAdmin Role = "HOTEL_ADMIN"
	RoleManager    Role = "MANAGER"
	RoleHotelStaff Role = "HOTEL_STAFF"
)

// TaskCategory distinguishes incidents from planned tasks.
type TaskCategory string

const (
	TaskCategoryTask     TaskCategory = "TASK"
	TaskCategoryIncident TaskCategory = "INCIDENT"
)

// TaskStatus is the workflow state of a task.
type TaskStatus string

const (
	TaskStatusOpen       TaskStatus = "OPEN"
	TaskStatusInProgress TaskStatus = "IN_PROGRESS"
	TaskStatusBlocked    TaskStatus = "BLOCKED"
	TaskStatusDone       TaskStatus = "DONE"
	TaskStatusCancelled  TaskStatus = "CANCELLED"
)

// TaskPriority orders tasks for the maintenance team.
type TaskPriority string

const (
	TaskPriorityNormal TaskPriority = "NORMAL"
	TaskPriorityHigh   TaskPriority = "HIGH"
	TaskPriorityUrgent TaskPriority = "URGENT"
)

// ReservationStatus is used for both the admin and the hotel side of a reservation.
type ReservationStatus string

const (
	ReservationStatusProposed  ReservationStatus = "PROPOSED"
	ReservationStatusPending   ReservationStatus = "PENDING"
	ReservationStatusApproved  ReservationStatus = "APPROVED"
	ReservationStatusCancelled ReservationStatus = "CANCELLED"
)

// Surface is the floor covering cleaned in a room.
type Surface string

const (
	SurfaceBoth   Surface = "BOTH"
	SurfaceCarpet Surface = "CARPET"
	SurfaceTile   Surface = "TILE"
)

// Organization is a tenant.
type Organization struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Settings  json.RawMessage `json:"settings,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

// User is an authenticated operator of an organization.
type User struct {
	ID             string    `json:"id"`
	OrganizationID string    `json:"organization_id"`
	Email          string    `json:"email"`
	Role           Role      `json:"role"`
	HotelScopeID   *string   `json:"hotel_scope_id,omitempty"`
	ActiveHotelID  *string   `json:"active_hotel_id,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

type Hotel struct {
	ID             string    `json:"id"`
	OrganizationID string    `json:"organization_id"`
	LegacyID       *string   `json:"legacy_id,omitempty"`
	Name           string    `json:"name"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

type Building struct {
	ID             string    `json:"id"`
	OrganizationID string    `json:"organization_id"`
	HotelID        string    `json:"hotel_id"`
	LegacyID       *string   `json:"legacy_id,omitempty"`
	Name           string    `json:"name"`
	Notes          string    `json:"notes"`
	CreatedAt      time.Time `json:"created_at"`
}

type Floor struct {
	ID             string    `json:"id"`
	OrganizationID string    `json:"organization_id"`
	BuildingID     string    `json:"building_id"`
	LegacyID       *string   `json:"legacy_id,omitempty"`
	NameOrNumber   string    `json:"name_or_number"`
	SortOrder      *int64    `json:"sort_order,omitempty"`
	Notes          string    `json:"notes"`
	CreatedAt      time.Time `json:"created_at"`
}

type Room struct {
	ID                    string     `json:"id"`
	OrganizationID        string     `json:"organization_id"`
	FloorID               string     `json:"floor_id"`
	LegacyID              *string    `json:"legacy_id,omitempty"`
	RoomNumber            string     `json:"room_number"`
	Active                bool       `json:"active"`
	Surface               Surface    `json:"surface"`
	Sqft                  *float64   `json:"sqft,omitempty"`
	CleaningFrequencyDays *int64     `json:"cleaning_frequency_days,omitempty"`
	LastCleanedAt         *time.Time `json:"last_cleaned_at,omitempty"`
	Notes                 string     `json:"notes"`
	CreatedAt             time.Time  `json:"created_at"`
}

type Space struct {
	ID                    string    `json:"id"`
	OrganizationID        string    `json:"organization_id"`
	FloorID               string    `json:"floor_id"`
	LegacyID              *string   `json:"legacy_id,omitempty"`
	Name                  string    `json:"name"`
	Type                  string    `json:"type"`
	Active                bool      `json:"active"`
	Sqft                  *float64  `json:"sqft,omitempty"`
	CleaningFrequencyDays *int64    `json:"cleaning_frequency_days,omitempty"`
	CreatedAt             time.Time `json:"created_at"`
}

// StaffMember is hotel staff reachable through a personal link token.
type StaffMember struct {
	ID             string    `json:"id"`
	OrganizationID string    `json:"organization_id"`
	HotelID        string    `json:"hotel_id"`
	LegacyID       *string   `json:"legacy_id,omitempty"`
	Token          string    `json:"token"`
	FirstName      string    `json:"first_name"`
	LastName       string    `json:"last_name"`
	Phone          string    `json:"phone"`
	Notes          string    `json:"notes"`
	Active         bool      `json:"active"`
	CreatedAt      time.Time `json:"created_at"`
}

// Technician works across all hotels of the organization.
type Technician struct {
	ID             string    `json:"id"`
	OrganizationID string    `json:"organization_id"`
	LegacyID       *string   `json:"legacy_id,omitempty"`
	Name           string    `json:"name"`
	Phone          string    `json:"phone"`
	Notes          string    `json:"notes"`
	Active         bool      `json:"active"`
	CreatedAt      time.Time `json:"created_at"`
}

// BlockedSlot is an organization-wide unavailability window.
type BlockedSlot struct {
	ID             string    `json:"id"`
	OrganizationID string    `json:"organization_id"`
	LegacyID       *string   `json:"legacy_id,omitempty"`
	Date           string    `json:"date"`
	Start          string    `json:"start"`
	End            string    `json:"end"`
	Note           string    `json:"note"`
	CreatedAt      time.Time `json:"created_at"`
}

// Session is a scheduled cleaning visit.
type Session struct {
	ID             string    `json:"id"`
	OrganizationID string    `json:"organization_id"`
	HotelID        string    `json:"hotel_id"`
	LegacyID       *string   `json:"legacy_id,omitempty"`
	Status         string    `json:"status"`
	RoomIDs        []string  `json:"room_ids"`
	Date           string    `json:"date"`
	Start          string    `json:"start"`
	End            string    `json:"end"`
	TechnicianID   *string   `json:"technician_id,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

type Task struct {
	ID              string           `json:"id"`
	OrganizationID  string           `json:"organization_id"`
	HotelID         string           `json:"hotel_id"`
	LegacyID        *string          `json:"legacy_id,omitempty"`
	Category        TaskCategory     `json:"category"`
	Status          TaskStatus       `json:"status"`
	Priority        TaskPriority     `json:"priority"`
	Type            string           `json:"type"`
	Description     string           `json:"description"`
	AssignedStaffID *string          `json:"assigned_staff_id,omitempty"`
	Schedule        json.RawMessage  `json:"schedule,omitempty"`
	CreatedAt       time.Time        `json:"created_at"`
	UpdatedAt       time.Time        `json:"updated_at"`
	Locations       []TaskLocation   `json:"locations,omitempty"`
	Events          []TaskEvent      `json:"events,omitempty"`
	Attachments     []TaskAttachment `json:"attachments,omitempty"`
}

type TaskLocation struct {
	ID       string  `json:"id"`
	TaskID   string  `json:"task_id"`
	Position int     `json:"position"`
	Label    string  `json:"label"`
	RoomID   *string `json:"room_id,omitempty"`
	SpaceID  *string `json:"space_id,omitempty"`
}

// TaskEvent is one entry in a task's history.
type TaskEvent struct {
	ID           string          `json:"id"`
	TaskID       string          `json:"task_id"`
	At           time.Time       `json:"at"`
	Action       string          `json:"action"`
	ActorRole    string          `json:"actor_role"`
	ActorStaffID *string         `json:"actor_staff_id,omitempty"`
	Note         string          `json:"note"`
	Patch        json.RawMessage `json:"patch,omitempty"`
}

// TaskAttachment is either inline (DataURL) or stored on disk (StoragePath).
type TaskAttachment struct {
	ID           string    `json:"id"`
	TaskID       string    `json:"task_id"`
	At           time.Time `json:"at"`
	Name         string    `json:"name"`
	Mime         string    `json:"mime"`
	DataURL      *string   `json:"data_url,omitempty"`
	StoragePath  *string   `json:"storage_path,omitempty"`
	ActorRole    string    `json:"actor_role"`
	ActorStaffID *string   `json:"actor_staff_id,omitempty"`
}

// Reservation is identified by its globally unique token.
type Reservation struct {
	ID                    string                     `json:"id"`
	OrganizationID        string                     `json:"organization_id"`
	HotelID               string                     `json:"hotel_id"`
	Token                 string                     `json:"token"`
	StatusAdmin           ReservationStatus          `json:"status_admin"`
	StatusHotel           ReservationStatus          `json:"status_hotel"`
	RoomIDs               []string                   `json:"room_ids"`
	SpaceIDs              []string                   `json:"space_ids"`
	RoomNotes             map[string]json.RawMessage `json:"room_notes"`
	SpaceNotes            map[string]json.RawMessage `json:"space_notes"`
	SurfaceDefault        Surface                    `json:"surface_default"`
	RoomSurfaceOverrides  map[string]json.RawMessage `json:"room_surface_overrides"`
	NotesGlobal           string                     `json:"notes_global"`
	NotesOrg              string                     `json:"notes_org"`
	DurationMinutes       int64                      `json:"duration_minutes"`
	ProposedDate          string                     `json:"proposed_date"`
	ProposedStart         string                     `json:"proposed_start"`
	RequiresAdminApproval bool                       `json:"requires_admin_approval"`
	ConfirmedAt           *time.Time                 `json:"confirmed_at,omitempty"`
	CancelledAt           *time.Time                 `json:"cancelled_at,omitempty"`
	CancelledBy           string                     `json:"cancelled_by"`
	CancelReason          string                     `json:"cancel_reason"`
	CreatedAt             time.Time                  `json:"created_at"`
}

// Contract is a signed or pending service agreement for a hotel.
type Contract struct {
	ID                  string          `json:"id"`
	OrganizationID      string          `json:"organization_id"`
	HotelID             string          `json:"hotel_id"`
	LegacyID            *string         `json:"legacy_id,omitempty"`
	Token               string          `json:"token"`
	Number              int64           `json:"number"`
	Status              string          `json:"status"`
	HotelName           string          `json:"hotel_name"`
	Contact             json.RawMessage `json:"contact"`
	Pricing             json.RawMessage `json:"pricing"`
	RoomsMinPerSession  int64           `json:"rooms_min_per_session"`
	RoomsMaxPerSession  int64           `json:"rooms_max_per_session"`
	RoomsPerSession     int64           `json:"rooms_per_session"`
	Frequency           string          `json:"frequency"`
	SurfaceType         Surface         `json:"surface_type"`
	AppliedTier         string          `json:"applied_tier"`
	AppliedPricePerRoom float64         `json:"applied_price_per_room"`
	OtherSurfaces       json.RawMessage `json:"other_surfaces"`
	TotalPerSession     float64         `json:"total_per_session"`
	Notes               string          `json:"notes"`
	SentAt              time.Time       `json:"sent_at"`
	SignedBy            string          `json:"signed_by"`
	AcceptedAt          *time.Time      `json:"accepted_at,omitempty"`
	CreatedAt           time.Time       `json:"created_at"`
}

// PricingDefaults is the single per-organization price sheet.
type PricingDefaults struct {
	OrganizationID     string          `json:"organization_id"`
	RoomsMinPerSession int64           `json:"rooms_min_per_session"`
	RoomsMaxPerSession int64           `json:"rooms_max_per_session"`
	BasePrices         json.RawMessage `json:"base_prices"`
	PenaltyPrices      json.RawMessage `json:"penalty_prices"`
	ContractPrices     json.RawMessage `json:"contract_prices"`
	AdvantagePrices    json.RawMessage `json:"advantage_prices"`
	SqftPrices         json.RawMessage `json:"sqft_prices"`
	UpdatedAt          time.Time       `json:"updated_at"`
}

// Event represents an audit entry in the event log.
type Event struct {
	ID             int64     `json:"id"`
	Timestamp      time.Time `json:"timestamp"`
	OrganizationID string    `json:"organization_id"`
	ActorUserID    *string   `json:"actor_user_id,omitempty"`
	ResourceType   string    `json:"resource_type"`
	EventType      string    `json:"event_type"`
	Payload        *string   `json:"payload,omitempty"`
}
