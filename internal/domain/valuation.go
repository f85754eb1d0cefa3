package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Valuation is an append-only audit snapshot of a deal at one observation date.
// Volume/Price/Amount carry the mark-to-market state after any rebalancing at
// that date; InitVolume/InitPrice are fixed at the deal's inception and carried
// forward unchanged; SoldVolume/SoldAmount mirror the accumulated unconsumed
// sell state.
type Valuation struct {
	ID         uuid.UUID
	DealUID    uuid.UUID
	Keyword    string
	Date       time.Time
	Volume     decimal.Decimal
	Price      decimal.Decimal
	Amount     decimal.Decimal
	InitVolume decimal.Decimal
	InitPrice  decimal.Decimal
	SoldVolume decimal.Decimal
	SoldAmount decimal.Decimal
}

// Validate ensures the valuation adheres to domain rules
// Returns an error if validation fails
func (v *Valuation) Validate() error {
	if v.DealUID == uuid.Nil {
		return errors.New("valuation deal UID cannot be empty")
	}

	if v.Keyword == "" {
		return errors.New("valuation keyword cannot be empty")
	}

	if v.Volume.LessThanOrEqual(decimal.Zero) {
		return errors.New("valuation volume must be positive")
	}

	if v.Price.LessThanOrEqual(decimal.Zero) {
		return errors.New("valuation price must be positive")
	}

	if v.InitPrice.LessThanOrEqual(decimal.Zero) {
		return errors.New("valuation init price must be positive")
	}

	if v.SoldVolume.IsNegative() || v.SoldAmount.IsNegative() {
		return errors.New("valuation sold position cannot be negative")
	}

	return nil
}
