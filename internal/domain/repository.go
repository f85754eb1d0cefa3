package domain

import (
	"context"

	"github.com/google/uuid"
)

// PositionRepository defines the interface for deal ledger persistence operations
type PositionRepository interface {
	// ActiveDealsByKeyword retrieves all active deal versions tagged with the keyword
	ActiveDealsByKeyword(ctx context.Context, keyword string) ([]*Deal, error)

	// LastValuation retrieves the most recent valuation for a deal by date
	// Returns (nil, nil) when the deal has never been valued (first-run path)
	LastValuation(ctx context.Context, dealUID uuid.UUID) (*Valuation, error)

	// ActiveSellSummary sums volume and amount over the deal's active Sell
	// transactions; zero values when none exist
	ActiveSellSummary(ctx context.Context, dealUID uuid.UUID) (SellSummary, error)

	// LastActiveSell retrieves the most recent active Sell transaction for a
	// deal, (nil, nil) when none exists
	// Only consulted under the last-sell buy-back policy
	LastActiveSell(ctx context.Context, dealUID uuid.UUID) (*Transaction, error)

	// ApplyDecision applies one deal's effect set atomically: deactivate
	// consumed transactions, deactivate the superseded deal version, insert the
	// new version, insert the transaction, insert the valuation — all or
	// nothing. The deactivation is conditional on the superseded version still
	// being active; if a concurrent writer got there first, ApplyDecision
	// returns ErrVersionConflict and writes nothing.
	ApplyDecision(ctx context.Context, decision *Decision) error
}
