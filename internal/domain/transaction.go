package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TransactionType represents the direction of a synthetic rebalancing trade
type TransactionType string

const (
	TransactionTypeSell TransactionType = "Sell"
	TransactionTypeBuy  TransactionType = "Buy"
)

// Transaction is an immutable ledger entry of a synthetic sell or buy produced
// by rebalancing. It references the stable DealUID, never a deal version.
// After creation the only permitted change is flipping Inactive to Y when a
// buy-back consumes the entry.
type Transaction struct {
	ID       uuid.UUID
	DealUID  uuid.UUID
	Type     TransactionType
	Date     time.Time
	Volume   decimal.Decimal
	Price    decimal.Decimal
	Amount   decimal.Decimal
	Inactive InactiveFlag
}

// Validate ensures the transaction adheres to domain rules
// Returns an error if validation fails
func (t *Transaction) Validate() error {
	if t.DealUID == uuid.Nil {
		return errors.New("transaction deal UID cannot be empty")
	}

	if t.Type != TransactionTypeSell && t.Type != TransactionTypeBuy {
		return errors.New("transaction type must be Sell or Buy")
	}

	if t.Volume.LessThanOrEqual(decimal.Zero) {
		return errors.New("transaction volume must be positive")
	}

	if t.Price.LessThanOrEqual(decimal.Zero) {
		return errors.New("transaction price must be positive")
	}

	if t.Amount.LessThanOrEqual(decimal.Zero) {
		return errors.New("transaction amount must be positive")
	}

	if t.Inactive != FlagActive && t.Inactive != FlagInactive {
		return errors.New("transaction inactive flag must be N or Y")
	}

	return nil
}

// SellSummary is the accumulated, not-yet-consumed sell state of a deal:
// the sum of Volume/Amount over its active Sell transactions.
type SellSummary struct {
	Volume decimal.Decimal
	Amount decimal.Decimal
}

// IsZero reports whether no unconsumed sell proceeds are banked
func (s SellSummary) IsZero() bool {
	return s.Amount.LessThanOrEqual(decimal.Zero)
}
