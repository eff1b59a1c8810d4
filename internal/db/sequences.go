package db

import (
	"context"
	"fmt"
)

// SequenceSpec describes a per-tenant sequential document number column.
type SequenceSpec struct {
	Table  string
	Column string
}

// ContractNumbers is the sequence used for contract document numbers.
var ContractNumbers = SequenceSpec{Table: "contracts", Column: "number"}

// NextNumber returns MAX(column)+1 for the tenant. Callers insert with the
// returned value and retry on a unique violation, since two writers can read
// the same maximum.
func NextNumber(ctx context.Context, q Querier, seq SequenceSpec, organizationID string) (int64, error) {
	query := fmt.Sprintf(
		"SELECT COALESCE(MAX(%s), 0) FROM %s WHERE organization_id = ?",
		seq.Column, seq.Table,
	)
	var max int64
	if err := q.QueryRowContext(ctx, query, organizationID).Scan(&max); err != nil {
		return 0, fmt.Errorf("failed to read max %s.%s: %w", seq.Table, seq.Column, err)
	}
	return max + 1, nil
}
