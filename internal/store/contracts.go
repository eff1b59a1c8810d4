package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/lherron/hmp/internal/db"
	"github.com/lherron/hmp/internal/domain"
	"github.com/lherron/hmp/internal/id"
)

// contractNumberAttempts bounds how often a contract insert is retried when
// another writer took the same number.
const contractNumberAttempts = 3

// ContractStore handles service contracts.
type ContractStore struct {
	store *Store
}

// FindByToken returns the owner of a contract token, or ErrNotFound.
func (s *ContractStore) FindByToken(ctx context.Context, token string) (*TokenOwner, error) {
	return findTokenOwner(ctx, s.store, "contracts", token)
}

// Create inserts a contract with the next free per-organization number.
// Number collisions are retried; any other failure is returned as is.
func (s *ContractStore) Create(ctx context.Context, c *domain.Contract) error {
	if c.ID == "" {
		c.ID = id.New()
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = s.store.now()
	}
	if c.SentAt.IsZero() {
		c.SentAt = c.CreatedAt
	}
	legacy := legacyOrSelf(c.LegacyID, c.ID)
	c.LegacyID = &legacy

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 10 * time.Millisecond
	policy.MaxInterval = 100 * time.Millisecond
	retry := backoff.WithContext(backoff.WithMaxRetries(policy, contractNumberAttempts-1), ctx)

	return backoff.Retry(func() error {
		err := s.insert(ctx, c, legacy)
		if err == nil {
			return nil
		}
		if db.IsUniqueViolation(err) && strings.Contains(err.Error(), ".number") {
			return err
		}
		return backoff.Permanent(err)
	}, retry)
}

func (s *ContractStore) insert(ctx context.Context, c *domain.Contract, legacy string) error {
	return s.store.withTx(ctx, func(tx *sql.Tx) error {
		number, err := db.NextNumber(ctx, tx, db.ContractNumbers, c.OrganizationID)
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO contracts (id, organization_id, hotel_id, legacy_id, token, number, status, hotel_name,
			                       contact, pricing, rooms_min_per_session, rooms_max_per_session,
			                       rooms_per_session, frequency, surface_type, applied_tier,
			                       applied_price_per_room, other_surfaces, total_per_session, notes,
			                       sent_at, signed_by, accepted_at, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, c.ID, c.OrganizationID, c.HotelID, legacy, c.Token, number, c.Status, c.HotelName,
			rawOrEmpty(c.Contact), rawOrEmpty(c.Pricing), c.RoomsMinPerSession, c.RoomsMaxPerSession,
			c.RoomsPerSession, c.Frequency, string(c.SurfaceType), c.AppliedTier,
			c.AppliedPricePerRoom, rawOrEmpty(c.OtherSurfaces), c.TotalPerSession, c.Notes,
			domain.FormatTime(c.SentAt), c.SignedBy, nullTime(c.AcceptedAt), domain.FormatTime(c.CreatedAt))
		if err != nil {
			return fmt.Errorf("failed to insert contract: %w", err)
		}
		c.Number = number
		return nil
	})
}

// List returns the contracts of the organization by number, optionally
// restricted to a hotel.
func (s *ContractStore) List(ctx context.Context, organizationID, scope string) ([]domain.Contract, error) {
	clause, args := scopeClause("hotel_id", scope)
	rows, err := s.store.db.QueryContext(ctx, `
		SELECT id, organization_id, hotel_id, legacy_id, token, number, status, hotel_name,
		       contact, pricing, rooms_min_per_session, rooms_max_per_session,
		       rooms_per_session, frequency, surface_type, applied_tier,
		       applied_price_per_room, other_surfaces, total_per_session, notes,
		       sent_at, signed_by, accepted_at, created_at
		FROM contracts WHERE organization_id = ?`+clause+`
		ORDER BY number
	`, append([]any{organizationID}, args...)...)
	if err != nil {
		return nil, fmt.Errorf("failed to list contracts: %w", err)
	}
	defer rows.Close()

	var out []domain.Contract
	for rows.Next() {
		var c domain.Contract
		var legacy, accepted sql.NullString
		var contact, pricing, otherSurfaces, surface, sentAt, createdAt string
		if err := rows.Scan(&c.ID, &c.OrganizationID, &c.HotelID, &legacy, &c.Token, &c.Number, &c.Status, &c.HotelName,
			&contact, &pricing, &c.RoomsMinPerSession, &c.RoomsMaxPerSession,
			&c.RoomsPerSession, &c.Frequency, &surface, &c.AppliedTier,
			&c.AppliedPricePerRoom, &otherSurfaces, &c.TotalPerSession, &c.Notes,
			&sentAt, &c.SignedBy, &accepted, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan contract: %w", err)
		}
		c.LegacyID = stringPtr(legacy)
		c.Contact = []byte(contact)
		c.Pricing = []byte(pricing)
		c.OtherSurfaces = []byte(otherSurfaces)
		c.SurfaceType = domain.Surface(surface)
		c.SentAt = parseTime(sentAt)
		c.AcceptedAt = timePtr(accepted)
		c.CreatedAt = parseTime(createdAt)
		out = append(out, c)
	}
	return out, rows.Err()
}
