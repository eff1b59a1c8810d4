package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lherron/hmp/internal/domain"
)

// PricingStore handles the single price sheet of each organization.
type PricingStore struct {
	store *Store
}

// Get returns the organization's price sheet, or ErrNotFound.
func (s *PricingStore) Get(ctx context.Context, organizationID string) (*domain.PricingDefaults, error) {
	var p domain.PricingDefaults
	var base, penalty, contract, advantage, sqft, updatedAt string
	err := s.store.db.QueryRowContext(ctx, `
		SELECT organization_id, rooms_min_per_session, rooms_max_per_session,
		       base_prices, penalty_prices, contract_prices, advantage_prices, sqft_prices, updated_at
		FROM pricing_defaults WHERE organization_id = ?
	`, organizationID).Scan(&p.OrganizationID, &p.RoomsMinPerSession, &p.RoomsMaxPerSession,
		&base, &penalty, &contract, &advantage, &sqft, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get pricing defaults: %w", err)
	}
	p.BasePrices = []byte(base)
	p.PenaltyPrices = []byte(penalty)
	p.ContractPrices = []byte(contract)
	p.AdvantagePrices = []byte(advantage)
	p.SqftPrices = []byte(sqft)
	p.UpdatedAt = parseTime(updatedAt)
	return &p, nil
}

// Upsert creates or replaces the organization's price sheet. It reports
// whether a new row was created.
func (s *PricingStore) Upsert(ctx context.Context, p *domain.PricingDefaults) (bool, error) {
	p.UpdatedAt = s.store.now()
	created := false
	err := s.store.withTx(ctx, func(tx *sql.Tx) error {
		var n int
		if err := tx.QueryRowContext(ctx,
			"SELECT COUNT(*) FROM pricing_defaults WHERE organization_id = ?", p.OrganizationID,
		).Scan(&n); err != nil {
			return fmt.Errorf("failed to check pricing defaults: %w", err)
		}
		created = n == 0

		_, err := tx.ExecContext(ctx, `
			INSERT INTO pricing_defaults (organization_id, rooms_min_per_session, rooms_max_per_session,
			                              base_prices, penalty_prices, contract_prices, advantage_prices,
			                              sqft_prices, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(organization_id) DO UPDATE SET
				rooms_min_per_session = excluded.rooms_min_per_session,
				rooms_max_per_session = excluded.rooms_max_per_session,
				base_prices = excluded.base_prices,
				penalty_prices = excluded.penalty_prices,
				contract_prices = excluded.contract_prices,
				advantage_prices = excluded.advantage_prices,
				sqft_prices = excluded.sqft_prices,
				updated_at = excluded.updated_at
		`, p.OrganizationID, p.RoomsMinPerSession, p.RoomsMaxPerSession,
			rawOrEmpty(p.BasePrices), rawOrEmpty(p.PenaltyPrices), rawOrEmpty(p.ContractPrices),
			rawOrEmpty(p.AdvantagePrices), rawOrEmpty(p.SqftPrices), domain.FormatTime(p.UpdatedAt))
		if err != nil {
			return fmt.Errorf("failed to upsert pricing defaults: %w", err)
		}
		return nil
	})
	return created, err
}
