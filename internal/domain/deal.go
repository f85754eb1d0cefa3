package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// InactiveFlag marks whether a record is the live one or has been superseded
type InactiveFlag string

const (
	FlagActive   InactiveFlag = "N"
	FlagInactive InactiveFlag = "Y"
)

// Deal represents one version of a tracked position
// The position itself is identified by DealUID; every rebalancing produces a
// new record with VersionSEQ+1 and flips the prior record to FlagInactive.
// Economic fields are never mutated in place.
type Deal struct {
	ID         uuid.UUID
	DealUID    uuid.UUID
	Keyword    string
	Date       time.Time
	Volume     decimal.Decimal
	Price      decimal.Decimal
	Amount     decimal.Decimal  // Cost basis value, fixed at version creation (NOT Volume×Price at current market)
	Factor     *decimal.Decimal // Drift tolerance above 1.0 before a sell triggers. NULL in deployments that dropped the field.
	VersionSEQ int
	Inactive   InactiveFlag
}

// IsActive reports whether this record is the live version of its DealUID
func (d *Deal) IsActive() bool {
	return d.Inactive == FlagActive
}

// Validate ensures the deal adheres to domain rules
// Returns an error if validation fails
func (d *Deal) Validate() error {
	if d.DealUID == uuid.Nil {
		return errors.New("deal UID cannot be empty")
	}

	if d.Keyword == "" {
		return errors.New("deal keyword cannot be empty")
	}

	if d.Volume.LessThanOrEqual(decimal.Zero) {
		return errors.New("deal volume must be positive")
	}

	if d.Price.LessThanOrEqual(decimal.Zero) {
		return errors.New("deal price must be positive")
	}

	if d.Amount.LessThanOrEqual(decimal.Zero) {
		return errors.New("deal amount must be positive")
	}

	// Factor is the tolerance ABOVE 1.0, so zero or more
	if d.Factor != nil && d.Factor.IsNegative() {
		return errors.New("deal factor cannot be negative")
	}

	if d.VersionSEQ < 1 {
		return errors.New("deal version sequence must be at least 1")
	}

	if d.Inactive != FlagActive && d.Inactive != FlagInactive {
		return errors.New("deal inactive flag must be N or Y")
	}

	return nil
}
