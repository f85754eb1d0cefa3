package rebalancer

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/simaogato/dealflow-backend/internal/domain"
)

// Input carries everything the engine needs to revalue one deal. It is
// assembled by the orchestrator; the engine itself performs no I/O.
//
// The caller guards date staleness: Decide must only be invoked when Date is
// later than the deal's last valuation date.
type Input struct {
	Deal       *domain.Deal
	Sold       domain.SellSummary  // accumulated active sell state
	LastSell   *domain.Transaction // most recent active sell; only consulted under BuyBackLastSell
	InitVolume decimal.Decimal     // reference values fixed at deal inception
	InitPrice  decimal.Decimal
	Date       time.Time       // observation date
	Price      decimal.Decimal // observed market price
}

// Decide computes the effect set for one deal at one price observation.
// Logic:
//  1. Mark the position to market at the observed price.
//  2. If the mark exceeds cost basis by more than the tolerance band, sell the
//     excess: the surviving position keeps its cost basis, re-expressed per
//     remaining unit, and the proceeds are banked in the sold accumulators.
//  3. Otherwise, if the price has fallen to-or-below the reference price and
//     proceeds are banked, buy back: volume is repurchased at the observed
//     price and the cost basis absorbs the difference between volume bought
//     back and volume originally sold, valued at the reference price.
//  4. Otherwise no trade happens.
//
// In all three cases exactly one valuation snapshot is appended, so the audit
// log advances even when the position is untouched.
func Decide(in Input, policy Policy) (*domain.Decision, error) {
	if in.Price.LessThanOrEqual(decimal.Zero) {
		return nil, domain.ErrInvalidPrice
	}

	deal := in.Deal
	if deal.Volume.LessThanOrEqual(decimal.Zero) {
		return nil, domain.ErrInvalidPosition
	}

	markVolume := deal.Volume
	markAmount := markVolume.Mul(in.Price)

	tolerance := policy.SellTolerance
	if deal.Factor != nil {
		tolerance = *deal.Factor
	}
	threshold := deal.Amount.Mul(decimal.NewFromInt(1).Add(tolerance))

	// The second condition guards the zero-tolerance edge where the mark sits
	// exactly on cost basis and the sell would be empty.
	if markAmount.GreaterThanOrEqual(threshold) && markAmount.GreaterThan(deal.Amount) {
		return decideSell(in, markVolume, markAmount)
	}

	reference := in.InitPrice
	if policy.BuyBackReference == ReferenceFixed {
		reference = policy.FixedReferencePrice
	}

	if in.Price.LessThanOrEqual(reference) {
		switch policy.BuyBackMode {
		case BuyBackLastSell:
			if in.LastSell != nil && deal.Amount.Sub(markAmount).GreaterThan(in.LastSell.Amount) {
				return decideBuyBackLastSell(in, markVolume, reference)
			}
		default:
			if !in.Sold.IsZero() {
				return decideBuyBackFull(in, markVolume, reference)
			}
		}
	}

	return snapshotDecision(in, markVolume, markAmount, in.Sold), nil
}

// decideSell sells the appreciation above cost basis at the observed price
func decideSell(in Input, markVolume, markAmount decimal.Decimal) (*domain.Decision, error) {
	deal := in.Deal

	sellAmount := markAmount.Sub(deal.Amount)
	sellVolume := sellAmount.Div(in.Price)

	newVolume := markVolume.Sub(sellVolume)
	if newVolume.LessThanOrEqual(decimal.Zero) {
		return nil, domain.ErrDegenerateRebalance
	}

	newMarkAmount := newVolume.Mul(in.Price)
	newDealPrice := deal.Amount.Div(newVolume)

	sold := domain.SellSummary{
		Volume: in.Sold.Volume.Add(sellVolume),
		Amount: in.Sold.Amount.Add(sellAmount),
	}

	transaction := &domain.Transaction{
		ID:       uuid.New(),
		DealUID:  deal.DealUID,
		Type:     domain.TransactionTypeSell,
		Date:     in.Date,
		Volume:   sellVolume,
		Price:    in.Price,
		Amount:   sellAmount,
		Inactive: domain.FlagActive,
	}

	// Cost basis (Amount) and Factor carry over unchanged
	newDeal := versionForward(deal, in.Date, newVolume, newDealPrice, deal.Amount)

	decision := snapshotDecision(in, newVolume, newMarkAmount, sold)
	decision.Action = domain.ActionSell
	decision.NewDeal = newDeal
	decision.Supersede = &domain.DealVersion{DealUID: deal.DealUID, VersionSEQ: deal.VersionSEQ}
	decision.Transaction = transaction

	return decision, nil
}

// decideBuyBackFull repurchases the full banked sell proceeds at the observed
// price and consumes every active sell transaction
func decideBuyBackFull(in Input, markVolume, reference decimal.Decimal) (*domain.Decision, error) {
	deal := in.Deal

	buyAmount := in.Sold.Amount
	buyVolume := buyAmount.Div(in.Price)

	newVolume := markVolume.Add(buyVolume)
	newMarkAmount := newVolume.Mul(in.Price)

	// Buying back a different volume than was sold shifts the cost basis by
	// the asymmetry, valued at the reference price
	newDealAmount := deal.Amount.Add(buyVolume.Sub(in.Sold.Volume).Mul(reference))
	if newDealAmount.LessThanOrEqual(decimal.Zero) {
		return nil, domain.ErrDegenerateRebalance
	}
	newDealPrice := newDealAmount.Div(newVolume)

	transaction := &domain.Transaction{
		ID:       uuid.New(),
		DealUID:  deal.DealUID,
		Type:     domain.TransactionTypeBuy,
		Date:     in.Date,
		Volume:   buyVolume,
		Price:    in.Price,
		Amount:   buyAmount,
		Inactive: domain.FlagActive,
	}

	newDeal := versionForward(deal, in.Date, newVolume, newDealPrice, newDealAmount)

	decision := snapshotDecision(in, newVolume, newMarkAmount, domain.SellSummary{
		Volume: decimal.Zero,
		Amount: decimal.Zero,
	})
	decision.Action = domain.ActionBuyBack
	decision.NewDeal = newDeal
	decision.Supersede = &domain.DealVersion{DealUID: deal.DealUID, VersionSEQ: deal.VersionSEQ}
	decision.Transaction = transaction
	decision.ConsumeAllSells = true

	return decision, nil
}

// decideBuyBackLastSell repurchases only the most recent sell, leaving earlier
// banked proceeds open
func decideBuyBackLastSell(in Input, markVolume, reference decimal.Decimal) (*domain.Decision, error) {
	deal := in.Deal
	lastSell := in.LastSell

	buyAmount := lastSell.Amount
	buyVolume := buyAmount.Div(in.Price)

	newVolume := markVolume.Add(buyVolume)
	newMarkAmount := newVolume.Mul(in.Price)

	newDealAmount := deal.Amount.Add(buyVolume.Sub(lastSell.Volume).Mul(reference))
	if newDealAmount.LessThanOrEqual(decimal.Zero) {
		return nil, domain.ErrDegenerateRebalance
	}
	newDealPrice := newDealAmount.Div(newVolume)

	sold := domain.SellSummary{
		Volume: in.Sold.Volume.Sub(lastSell.Volume),
		Amount: in.Sold.Amount.Sub(lastSell.Amount),
	}

	transaction := &domain.Transaction{
		ID:       uuid.New(),
		DealUID:  deal.DealUID,
		Type:     domain.TransactionTypeBuy,
		Date:     in.Date,
		Volume:   buyVolume,
		Price:    in.Price,
		Amount:   buyAmount,
		Inactive: domain.FlagActive,
	}

	newDeal := versionForward(deal, in.Date, newVolume, newDealPrice, newDealAmount)

	decision := snapshotDecision(in, newVolume, newMarkAmount, sold)
	decision.Action = domain.ActionBuyBack
	decision.NewDeal = newDeal
	decision.Supersede = &domain.DealVersion{DealUID: deal.DealUID, VersionSEQ: deal.VersionSEQ}
	decision.Transaction = transaction
	decision.ConsumeSellIDs = []uuid.UUID{lastSell.ID}

	return decision, nil
}

// versionForward builds the next record in the deal's version chain
func versionForward(deal *domain.Deal, date time.Time, volume, price, amount decimal.Decimal) *domain.Deal {
	return &domain.Deal{
		ID:         uuid.New(),
		DealUID:    deal.DealUID,
		Keyword:    deal.Keyword,
		Date:       date,
		Volume:     volume,
		Price:      price,
		Amount:     amount,
		Factor:     deal.Factor,
		VersionSEQ: deal.VersionSEQ + 1,
		Inactive:   domain.FlagActive,
	}
}

// snapshotDecision builds the base decision carrying only the valuation record
func snapshotDecision(in Input, volume, amount decimal.Decimal, sold domain.SellSummary) *domain.Decision {
	return &domain.Decision{
		DealUID: in.Deal.DealUID,
		Action:  domain.ActionSnapshot,
		Valuation: &domain.Valuation{
			ID:         uuid.New(),
			DealUID:    in.Deal.DealUID,
			Keyword:    in.Deal.Keyword,
			Date:       in.Date,
			Volume:     volume,
			Price:      in.Price,
			Amount:     amount,
			InitVolume: in.InitVolume,
			InitPrice:  in.InitPrice,
			SoldVolume: sold.Volume,
			SoldAmount: sold.Amount,
		},
	}
}
