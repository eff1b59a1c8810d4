// Package migration converts between the relational store and the legacy
// client document: Export serializes an organization (or one hotel of it)
// into a document, Import upserts a document idempotently.
package migration

import (
	"context"
	"errors"
	"fmt"

	"github.com/lherron/hmp/internal/domain"
	"github.com/lherron/hmp/internal/store"
)

var (
	// ErrUserNotFound is returned when the acting user does not belong to the
	// organization.
	ErrUserNotFound = errors.New("user not found in organization")

	// ErrNoHotelScope is returned for a non-administrator without a hotel
	// scope. Such a caller may see no hotel at all.
	ErrNoHotelScope = errors.New("user has no hotel scope")
)

// caller is the resolved identity of the acting user.
type caller struct {
	user *domain.User

	// hotel is the scoped hotel, nil for organization-wide callers.
	hotel *domain.Hotel
}

func (c *caller) scoped() bool { return c.hotel != nil }

// scopeID returns the scoped hotel id, or "" for organization-wide callers.
func (c *caller) scopeID() string {
	if c.hotel == nil {
		return ""
	}
	return c.hotel.ID
}

// allows reports whether a hotel key of the document is inside the caller's
// scope. The scoped hotel is addressed by its legacy id or its server id.
func (c *caller) allows(legacyHotelID string) bool {
	if c.hotel == nil {
		return true
	}
	if legacyHotelID == c.hotel.ID {
		return true
	}
	return c.hotel.LegacyID != nil && *c.hotel.LegacyID == legacyHotelID
}

func resolveCaller(ctx context.Context, s *store.Store, organizationID, userID string) (*caller, error) {
	user, err := s.Users.Get(ctx, userID)
	if errors.Is(err, store.ErrNotFound) || (err == nil && user.OrganizationID != organizationID) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}

	c := &caller{user: user}
	if !user.IsScoped() {
		return c, nil
	}

	scope := user.HotelScope()
	if scope == "" {
		return nil, ErrNoHotelScope
	}
	hotel, err := s.Hotels.GetHotel(ctx, organizationID, scope)
	if errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("%w: scoped hotel %s does not exist", ErrNoHotelScope, scope)
	}
	if err != nil {
		return nil, err
	}
	c.hotel = hotel
	return c, nil
}
