package domain

import (
	"strings"
	"time"
)

// TimeLayout is the millisecond ISO-8601 layout used on the wire and in SQLite.
const TimeLayout = "2006-01-02T15:04:05.000Z07:00"

// FormatTime renders t in UTC using TimeLayout.
func FormatTime(t time.Time) string {
	return t.UTC().Format(TimeLayout)
}

// ParseTime accepts RFC 3339 timestamps with or without fractional seconds
// and bare dates. ok is false for empty or unparseable input.
func ParseTime(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

func upper(v string) string {
	return strings.ToUpper(strings.TrimSpace(v))
}

// NormalizeTaskCategory maps anything but INCIDENT to TASK.
func NormalizeTaskCategory(v string) TaskCategory {
	if upper(v) == string(TaskCategoryIncident) {
		return TaskCategoryIncident
	}
	return TaskCategoryTask
}

// NormalizeTaskStatus returns OPEN for unknown values.
func NormalizeTaskStatus(v string) TaskStatus {
	switch s := TaskStatus(upper(v)); s {
	case TaskStatusOpen, TaskStatusInProgress, TaskStatusBlocked, TaskStatusDone, TaskStatusCancelled:
		return s
	}
	return TaskStatusOpen
}

// NormalizeTaskPriority returns NORMAL for unknown values.
func NormalizeTaskPriority(v string) TaskPriority {
	switch p := TaskPriority(upper(v)); p {
	case TaskPriorityHigh, TaskPriorityUrgent:
		return p
	}
	return TaskPriorityNormal
}

// NormalizeReservationStatus returns def when v is empty and PENDING when v
// is not a known status.
func NormalizeReservationStatus(v string, def ReservationStatus) ReservationStatus {
	if strings.TrimSpace(v) == "" {
		return def
	}
	switch s := ReservationStatus(upper(v)); s {
	case ReservationStatusProposed, ReservationStatusPending, ReservationStatusApproved, ReservationStatusCancelled:
		return s
	}
	return ReservationStatusPending
}

// NormalizeSurface returns BOTH for unknown values.
func NormalizeSurface(v string) Surface {
	switch s := Surface(upper(v)); s {
	case SurfaceCarpet, SurfaceTile:
		return s
	}
	return SurfaceBoth
}

// UpperOr upper-cases v, or returns def when v is blank.
func UpperOr(v, def string) string {
	if u := upper(v); u != "" {
		return u
	}
	return def
}

// ParseRole validates a role string.
func ParseRole(v string) (Role, bool) {
	switch r := Role(upper(v)); r {
	case RoleSuperAdmin, RoleHotelAdmin, RoleManager, RoleHotelStaff:
		return r, true
	}
	return "", false
}

// CanImport reports whether the role may push a legacy dataset.
func (r Role) CanImport() bool {
	switch r {
	case RoleSuperAdmin, RoleHotelAdmin, RoleManager:
		return true
	}
	return false
}

// HotelScope returns the hotel a user is restricted to, or "" when the user
// sees the whole organization.
func (u *User) HotelScope() string {
	if u.Role == RoleSuperAdmin || u.HotelScopeID == nil {
		return ""
	}
	return *u.HotelScopeID
}

// IsScoped reports whether the user is limited to a single hotel.
func (u *User) IsScoped() bool {
	return u.Role != RoleSuperAdmin
}
