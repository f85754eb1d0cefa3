package domain

import "errors"

var (
	// ErrInvalidPrice is returned when an observed price is zero or negative
	ErrInvalidPrice = errors.New("observed price must be positive")

	// ErrInvalidPosition is returned when a deal holds no positive volume
	ErrInvalidPosition = errors.New("deal volume must be positive")

	// ErrDegenerateRebalance is returned when rebalancing arithmetic would
	// divide by zero (e.g. a sell that empties the position), instead of
	// silently producing a non-finite price
	ErrDegenerateRebalance = errors.New("rebalance would produce a degenerate position")

	// ErrVersionConflict is returned when a concurrent writer already advanced
	// the deal's version chain; the caller skips the deal for this run
	ErrVersionConflict = errors.New("deal version was superseded by a concurrent valuation")
)
