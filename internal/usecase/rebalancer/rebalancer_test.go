package rebalancer

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/simaogato/dealflow-backend/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var observationDate = time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

// dealWithFactor builds the reference position: 1 unit bought at 20000 with a
// 5% drift tolerance
func dealWithFactor(factor float64) *domain.Deal {
	f := decimal.NewFromFloat(factor)
	return &domain.Deal{
		ID:         uuid.New(),
		DealUID:    uuid.New(),
		Keyword:    "GOLD",
		Date:       time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC),
		Volume:     decimal.NewFromInt(1),
		Price:      decimal.NewFromInt(20000),
		Amount:     decimal.NewFromInt(20000),
		Factor:     &f,
		VersionSEQ: 1,
		Inactive:   domain.FlagActive,
	}
}

func baseInput(deal *domain.Deal, price int64) Input {
	return Input{
		Deal:       deal,
		Sold:       domain.SellSummary{Volume: decimal.Zero, Amount: decimal.Zero},
		InitVolume: decimal.NewFromInt(1),
		InitPrice:  decimal.NewFromInt(20000),
		Date:       observationDate,
		Price:      decimal.NewFromInt(price),
	}
}

// assertDecimalNear compares decimals up to rounding noise from division
func assertDecimalNear(t *testing.T, expected, actual decimal.Decimal) {
	t.Helper()
	diff := expected.Sub(actual).Abs()
	assert.True(t, diff.LessThan(decimal.NewFromFloat(0.0001)),
		"expected %s, got %s", expected, actual)
}

func TestDecide_SellTrigger(t *testing.T) {
	deal := dealWithFactor(0.05)

	// markAmount = 21050 >= 20000 * 1.05 = 21000
	decision, err := Decide(baseInput(deal, 21050), DefaultPolicy())
	require.NoError(t, err)

	assert.Equal(t, domain.ActionSell, decision.Action)

	// Sell transaction: excess over cost basis at the observed price
	require.NotNil(t, decision.Transaction)
	assert.Equal(t, domain.TransactionTypeSell, decision.Transaction.Type)
	assert.True(t, decision.Transaction.Amount.Equal(decimal.NewFromInt(1050)))
	assert.True(t, decision.Transaction.Price.Equal(decimal.NewFromInt(21050)))

	expectedSellVolume := decimal.NewFromInt(1050).Div(decimal.NewFromInt(21050))
	assert.True(t, decision.Transaction.Volume.Equal(expectedSellVolume))

	// New deal version: reduced volume, cost basis unchanged, price re-expressed
	require.NotNil(t, decision.NewDeal)
	assert.Equal(t, 2, decision.NewDeal.VersionSEQ)
	assert.Equal(t, deal.DealUID, decision.NewDeal.DealUID)
	assert.True(t, decision.NewDeal.Amount.Equal(decimal.NewFromInt(20000)))
	assertDecimalNear(t, decimal.NewFromFloat(0.950119), decision.NewDeal.Volume)
	assertDecimalNear(t, decimal.NewFromInt(21050), decision.NewDeal.Price)
	assert.NoError(t, decision.NewDeal.Validate())

	// Prior version is superseded
	require.NotNil(t, decision.Supersede)
	assert.Equal(t, deal.DealUID, decision.Supersede.DealUID)
	assert.Equal(t, 1, decision.Supersede.VersionSEQ)

	// Valuation reflects the post-sell mark and the banked proceeds
	require.NotNil(t, decision.Valuation)
	assert.True(t, decision.Valuation.SoldAmount.Equal(decimal.NewFromInt(1050)))
	assert.True(t, decision.Valuation.SoldVolume.Equal(expectedSellVolume))
	assert.True(t, decision.Valuation.Volume.Equal(decision.NewDeal.Volume))
	assertDecimalNear(t, decimal.NewFromInt(20000), decision.Valuation.Amount)
	assert.False(t, decision.ConsumeAllSells)
}

func TestDecide_SellAccumulatesPriorProceeds(t *testing.T) {
	deal := dealWithFactor(0.05)
	in := baseInput(deal, 21050)
	in.Sold = domain.SellSummary{
		Volume: decimal.NewFromFloat(0.1),
		Amount: decimal.NewFromInt(500),
	}

	decision, err := Decide(in, DefaultPolicy())
	require.NoError(t, err)

	assert.Equal(t, domain.ActionSell, decision.Action)
	assert.True(t, decision.Valuation.SoldAmount.Equal(decimal.NewFromInt(1550)))
}

func TestDecide_BuyBackTrigger(t *testing.T) {
	// A position that previously sold down: 0.95 units, banked proceeds 1000
	deal := dealWithFactor(0.05)
	deal.Volume = decimal.NewFromFloat(0.95)
	deal.Price = decimal.RequireFromString("21052.63")
	deal.VersionSEQ = 2

	in := baseInput(deal, 19000) // below Init_Price 20000
	in.Sold = domain.SellSummary{
		Volume: decimal.NewFromFloat(0.05),
		Amount: decimal.NewFromInt(1000),
	}

	decision, err := Decide(in, DefaultPolicy())
	require.NoError(t, err)

	assert.Equal(t, domain.ActionBuyBack, decision.Action)

	// Buy transaction consumes the full banked proceeds
	require.NotNil(t, decision.Transaction)
	assert.Equal(t, domain.TransactionTypeBuy, decision.Transaction.Type)
	assert.True(t, decision.Transaction.Amount.Equal(decimal.NewFromInt(1000)))
	expectedBuyVolume := decimal.NewFromInt(1000).Div(decimal.NewFromInt(19000))
	assert.True(t, decision.Transaction.Volume.Equal(expectedBuyVolume))

	// All active sells are consumed and the sold accumulators reset
	assert.True(t, decision.ConsumeAllSells)
	assert.True(t, decision.Valuation.SoldVolume.IsZero())
	assert.True(t, decision.Valuation.SoldAmount.IsZero())

	// Cost basis absorbs the volume asymmetry at the reference price:
	// 20000 + (1000/19000 - 0.05) * 20000
	require.NotNil(t, decision.NewDeal)
	expectedAmount := decimal.NewFromInt(20000).
		Add(expectedBuyVolume.Sub(decimal.NewFromFloat(0.05)).Mul(decimal.NewFromInt(20000)))
	assert.True(t, decision.NewDeal.Amount.Equal(expectedAmount))
	assert.Equal(t, 3, decision.NewDeal.VersionSEQ)
	assert.NoError(t, decision.NewDeal.Validate())

	expectedVolume := decimal.NewFromFloat(0.95).Add(expectedBuyVolume)
	assert.True(t, decision.NewDeal.Volume.Equal(expectedVolume))
}

func TestDecide_NoOpSnapshot(t *testing.T) {
	deal := dealWithFactor(0.05)

	// 20500: above Init_Price, below the 21000 sell threshold
	decision, err := Decide(baseInput(deal, 20500), DefaultPolicy())
	require.NoError(t, err)

	assert.Equal(t, domain.ActionSnapshot, decision.Action)
	assert.Nil(t, decision.NewDeal)
	assert.Nil(t, decision.Supersede)
	assert.Nil(t, decision.Transaction)
	assert.False(t, decision.ConsumeAllSells)

	// The valuation log still advances
	require.NotNil(t, decision.Valuation)
	assert.True(t, decision.Valuation.Volume.Equal(decimal.NewFromInt(1)))
	assert.True(t, decision.Valuation.Amount.Equal(decimal.NewFromInt(20500)))
	assert.True(t, decision.Valuation.InitPrice.Equal(decimal.NewFromInt(20000)))
}

func TestDecide_BelowReferenceWithoutProceedsSnapshots(t *testing.T) {
	deal := dealWithFactor(0.05)

	// Price below Init_Price but nothing banked: nothing to buy back
	decision, err := Decide(baseInput(deal, 19000), DefaultPolicy())
	require.NoError(t, err)

	assert.Equal(t, domain.ActionSnapshot, decision.Action)
	assert.Nil(t, decision.Transaction)
}

func TestDecide_FactorFallbackToPolicy(t *testing.T) {
	deal := dealWithFactor(0.05)
	deal.Factor = nil // deployment variant without the Factor field

	// Policy default tolerance (0.05) applies: 21050 still triggers the sell
	decision, err := Decide(baseInput(deal, 21050), DefaultPolicy())
	require.NoError(t, err)
	assert.Equal(t, domain.ActionSell, decision.Action)

	// A wider deal-level factor suppresses the same observation
	wide := dealWithFactor(0.10)
	decision, err = Decide(baseInput(wide, 21050), DefaultPolicy())
	require.NoError(t, err)
	assert.Equal(t, domain.ActionSnapshot, decision.Action)
}

func TestDecide_FixedReferencePolicy(t *testing.T) {
	policy := DefaultPolicy()
	policy.BuyBackReference = ReferenceFixed
	policy.FixedReferencePrice = decimal.NewFromInt(18000)
	require.NoError(t, policy.Validate())

	deal := dealWithFactor(0.05)
	deal.Volume = decimal.NewFromFloat(0.95)

	in := baseInput(deal, 19000) // below Init_Price but above the fixed reference
	in.Sold = domain.SellSummary{
		Volume: decimal.NewFromFloat(0.05),
		Amount: decimal.NewFromInt(1000),
	}

	decision, err := Decide(in, policy)
	require.NoError(t, err)
	assert.Equal(t, domain.ActionSnapshot, decision.Action)

	// At or below the fixed reference the buy-back fires
	in.Price = decimal.NewFromInt(17900)
	decision, err = Decide(in, policy)
	require.NoError(t, err)
	assert.Equal(t, domain.ActionBuyBack, decision.Action)
}

func TestDecide_LastSellPolicy(t *testing.T) {
	policy := DefaultPolicy()
	policy.BuyBackMode = BuyBackLastSell

	deal := dealWithFactor(0.05)
	deal.Volume = decimal.NewFromFloat(0.9)

	lastSell := &domain.Transaction{
		ID:       uuid.New(),
		DealUID:  deal.DealUID,
		Type:     domain.TransactionTypeSell,
		Date:     time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC),
		Volume:   decimal.NewFromFloat(0.05),
		Price:    decimal.NewFromInt(21000),
		Amount:   decimal.NewFromInt(1050),
		Inactive: domain.FlagActive,
	}

	// markAmount = 0.9 * 19000 = 17100; 20000 - 17100 = 2900 > 1050
	in := baseInput(deal, 19000)
	in.Sold = domain.SellSummary{
		Volume: decimal.NewFromFloat(0.1),
		Amount: decimal.NewFromInt(2100),
	}
	in.LastSell = lastSell

	decision, err := Decide(in, policy)
	require.NoError(t, err)

	assert.Equal(t, domain.ActionBuyBack, decision.Action)
	assert.True(t, decision.Transaction.Amount.Equal(decimal.NewFromInt(1050)))

	// Only the last sell is consumed; the rest stays banked
	assert.False(t, decision.ConsumeAllSells)
	assert.Equal(t, []uuid.UUID{lastSell.ID}, decision.ConsumeSellIDs)
	assert.True(t, decision.Valuation.SoldAmount.Equal(decimal.NewFromInt(1050)))
	assertDecimalNear(t, decimal.NewFromFloat(0.05), decision.Valuation.SoldVolume)
}

func TestDecide_LastSellPolicy_GateHolds(t *testing.T) {
	policy := DefaultPolicy()
	policy.BuyBackMode = BuyBackLastSell

	deal := dealWithFactor(0.05)
	deal.Volume = decimal.NewFromFloat(0.99)

	// markAmount = 0.99 * 19500 = 19305; 20000 - 19305 = 695, not > 1050
	in := baseInput(deal, 19500)
	in.Sold = domain.SellSummary{
		Volume: decimal.NewFromFloat(0.05),
		Amount: decimal.NewFromInt(1050),
	}
	in.LastSell = &domain.Transaction{
		ID:     uuid.New(),
		Volume: decimal.NewFromFloat(0.05),
		Amount: decimal.NewFromInt(1050),
	}

	decision, err := Decide(in, policy)
	require.NoError(t, err)
	assert.Equal(t, domain.ActionSnapshot, decision.Action)
}

func TestDecide_InvalidPrice(t *testing.T) {
	deal := dealWithFactor(0.05)
	in := baseInput(deal, 0)

	_, err := Decide(in, DefaultPolicy())
	assert.ErrorIs(t, err, domain.ErrInvalidPrice)
}

func TestDecide_InvalidPosition(t *testing.T) {
	deal := dealWithFactor(0.05)
	deal.Volume = decimal.Zero

	_, err := Decide(baseInput(deal, 21050), DefaultPolicy())
	assert.ErrorIs(t, err, domain.ErrInvalidPosition)
}

func TestDecide_DegenerateBuyBack(t *testing.T) {
	// Banked volume far exceeds what the proceeds repurchase, driving the
	// adjusted cost basis negative
	deal := dealWithFactor(0.05)
	deal.Volume = decimal.NewFromFloat(0.5)
	deal.Amount = decimal.NewFromInt(100)
	deal.Price = decimal.NewFromInt(200)

	// mark = 50, below the sell threshold; price 100 is below the reference
	in := baseInput(deal, 100)
	in.Sold = domain.SellSummary{
		Volume: decimal.NewFromInt(1),
		Amount: decimal.NewFromInt(1),
	}

	_, err := Decide(in, DefaultPolicy())
	assert.ErrorIs(t, err, domain.ErrDegenerateRebalance)
}

func TestPolicy_Validate(t *testing.T) {
	assert.NoError(t, DefaultPolicy().Validate())

	negative := DefaultPolicy()
	negative.SellTolerance = decimal.NewFromFloat(-0.01)
	assert.Error(t, negative.Validate())

	fixedWithoutPrice := DefaultPolicy()
	fixedWithoutPrice.BuyBackReference = ReferenceFixed
	assert.Error(t, fixedWithoutPrice.Validate())

	badMode := DefaultPolicy()
	badMode.BuyBackMode = "half"
	assert.Error(t, badMode.Validate())
}
