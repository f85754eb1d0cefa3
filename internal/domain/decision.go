package domain

import "github.com/google/uuid"

// DecisionAction classifies what a valuation run did to one deal
type DecisionAction string

const (
	ActionSell     DecisionAction = "SELL"
	ActionBuyBack  DecisionAction = "BUY_BACK"
	ActionSnapshot DecisionAction = "SNAPSHOT"
)

// DealVersion identifies one record in a deal's version chain
type DealVersion struct {
	DealUID    uuid.UUID
	VersionSEQ int
}

// Decision is the effect set computed by the rebalancing engine for one deal.
// It is pure data: the repository applies it atomically, the engine never
// touches the store.
//
// Valuation is always set. NewDeal, Supersede and Transaction are set together
// on SELL and BUY_BACK, nil on SNAPSHOT. ConsumeAllSells (or ConsumeSellIDs)
// is only set on BUY_BACK, marking the sell transactions the buy-back reverses.
type Decision struct {
	DealUID         uuid.UUID
	Action          DecisionAction
	NewDeal         *Deal
	Supersede       *DealVersion
	Transaction     *Transaction
	ConsumeAllSells bool
	ConsumeSellIDs  []uuid.UUID
	Valuation       *Valuation
}
