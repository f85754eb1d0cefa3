package rebalancer

import (
	"errors"

	"github.com/shopspring/decimal"
)

// BuyBackReference selects the price a buy-back compares the observed price against
type BuyBackReference string

const (
	// ReferenceInitPrice compares against the deal's inception price
	ReferenceInitPrice BuyBackReference = "init_price"
	// ReferenceFixed compares against a configured fixed price
	ReferenceFixed BuyBackReference = "fixed"
)

// BuyBackMode selects how much of the banked sell proceeds a buy-back consumes
type BuyBackMode string

const (
	// BuyBackFull buys back the full accumulated sold amount and consumes all
	// active sell transactions
	BuyBackFull BuyBackMode = "full"
	// BuyBackLastSell buys back only the most recent sell, gated on the
	// position having fallen below cost basis by more than that sell's amount
	BuyBackLastSell BuyBackMode = "last_sell"
)

// Policy is the configuration surface of the rebalancing rules. Historical
// deployments drifted between variants of the same endpoint (with/without a
// per-deal Factor, init-price vs fixed reference, full vs last-sell buy-back);
// the policy enumerates those variants explicitly instead.
type Policy struct {
	// SellTolerance is the drift above cost basis (as a fraction, e.g. 0.05)
	// tolerated before a sell triggers, used when the deal carries no Factor
	SellTolerance decimal.Decimal

	// BuyBackReference selects the buy-back trigger price
	BuyBackReference BuyBackReference

	// FixedReferencePrice is the trigger price under ReferenceFixed
	FixedReferencePrice decimal.Decimal

	// BuyBackMode selects full or last-sell buy-backs
	BuyBackMode BuyBackMode
}

// DefaultPolicy returns the canonical policy: 5% sell tolerance, buy-backs
// triggered at the deal's inception price, full buy-back of banked proceeds
func DefaultPolicy() Policy {
	return Policy{
		SellTolerance:    decimal.NewFromFloat(0.05),
		BuyBackReference: ReferenceInitPrice,
		BuyBackMode:      BuyBackFull,
	}
}

// Validate checks the policy for contradictory or out-of-range settings
func (p Policy) Validate() error {
	if p.SellTolerance.IsNegative() {
		return errors.New("sell tolerance cannot be negative")
	}

	switch p.BuyBackReference {
	case ReferenceInitPrice:
	case ReferenceFixed:
		if p.FixedReferencePrice.LessThanOrEqual(decimal.Zero) {
			return errors.New("fixed reference price must be positive")
		}
	default:
		return errors.New("buy-back reference must be init_price or fixed")
	}

	if p.BuyBackMode != BuyBackFull && p.BuyBackMode != BuyBackLastSell {
		return errors.New("buy-back mode must be full or last_sell")
	}

	return nil
}
