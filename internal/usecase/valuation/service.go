package valuation

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/simaogato/dealflow-backend/internal/domain"
	"github.com/simaogato/dealflow-backend/internal/usecase/rebalancer"
)

// Request is one incoming valuation run: revalue every active deal tagged with
// Keyword against the price observed at Date
type Request struct {
	Keyword string
	Date    time.Time
	Price   decimal.Decimal
}

// Validate ensures the request adheres to input rules
// Returns an error naming the malformed field
func (r *Request) Validate() error {
	if r.Keyword == "" {
		return errors.New("keyword is required")
	}

	if r.Date.IsZero() {
		return errors.New("date is required")
	}

	if r.Price.LessThanOrEqual(decimal.Zero) {
		return errors.New("price must be positive")
	}

	return nil
}

// OutcomeKind classifies what happened to one deal during a run
type OutcomeKind string

const (
	OutcomeSold        OutcomeKind = "SOLD"
	OutcomeBoughtBack  OutcomeKind = "BOUGHT_BACK"
	OutcomeSnapshotted OutcomeKind = "SNAPSHOTTED"
	OutcomeInitialized OutcomeKind = "INITIALIZED"
	OutcomeStale       OutcomeKind = "STALE"
	OutcomeConflict    OutcomeKind = "CONFLICT"
	OutcomeFailed      OutcomeKind = "FAILED"
)

// DealOutcome reports the result for a single deal
type DealOutcome struct {
	DealUID uuid.UUID   `json:"deal_uid"`
	Kind    OutcomeKind `json:"kind"`
	Error   string      `json:"error,omitempty"`
}

// Summary aggregates the per-deal outcomes of one valuation run
type Summary struct {
	Keyword     string        `json:"keyword"`
	Date        time.Time     `json:"date"`
	Deals       int           `json:"deals"`
	Sold        int           `json:"sold"`
	BoughtBack  int           `json:"bought_back"`
	Snapshotted int           `json:"snapshotted"`
	Initialized int           `json:"initialized"`
	Stale       int           `json:"stale"`
	Conflicts   int           `json:"conflicts"`
	Failed      int           `json:"failed"`
	Outcomes    []DealOutcome `json:"outcomes"`
}

// Service orchestrates valuation runs: it loads active deals, gathers engine
// inputs, invokes the rebalancing engine per deal and applies the resulting
// decisions. One deal's failure never blocks its siblings; each deal's effects
// are applied atomically by the repository, so an abandoned run leaves no
// half-written state.
type Service struct {
	Repo   domain.PositionRepository
	Policy rebalancer.Policy
	log    zerolog.Logger
}

// NewService creates a new valuation Service instance
func NewService(repo domain.PositionRepository, policy rebalancer.Policy, log zerolog.Logger) *Service {
	return &Service{
		Repo:   repo,
		Policy: policy,
		log:    log.With().Str("service", "valuation").Logger(),
	}
}

// Valuate runs one valuation request against every active deal for the keyword
func (s *Service) Valuate(ctx context.Context, req Request) (*Summary, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	deals, err := s.Repo.ActiveDealsByKeyword(ctx, req.Keyword)
	if err != nil {
		return nil, err
	}

	summary := &Summary{
		Keyword:  req.Keyword,
		Date:     req.Date,
		Deals:    len(deals),
		Outcomes: make([]DealOutcome, 0, len(deals)),
	}

	for _, deal := range deals {
		outcome := s.valuateDeal(ctx, deal, req)
		summary.Outcomes = append(summary.Outcomes, outcome)

		switch outcome.Kind {
		case OutcomeSold:
			summary.Sold++
		case OutcomeBoughtBack:
			summary.BoughtBack++
		case OutcomeSnapshotted:
			summary.Snapshotted++
		case OutcomeInitialized:
			summary.Initialized++
		case OutcomeStale:
			summary.Stale++
		case OutcomeConflict:
			summary.Conflicts++
		case OutcomeFailed:
			summary.Failed++
		}
	}

	s.log.Info().
		Str("keyword", req.Keyword).
		Time("date", req.Date).
		Int("deals", summary.Deals).
		Int("sold", summary.Sold).
		Int("bought_back", summary.BoughtBack).
		Int("conflicts", summary.Conflicts).
		Int("failed", summary.Failed).
		Msg("Valuation run completed")

	return summary, nil
}

// valuateDeal processes one deal in isolation
func (s *Service) valuateDeal(ctx context.Context, deal *domain.Deal, req Request) DealOutcome {
	lastValuation, err := s.Repo.LastValuation(ctx, deal.DealUID)
	if err != nil {
		return s.failed(deal, "load last valuation", err)
	}

	// First-run path: the deal has never been valued. Rebalancing is skipped
	// and the inception references are seeded from the deal's own fields.
	if lastValuation == nil {
		decision := initialSnapshot(deal, req)
		if err := s.Repo.ApplyDecision(ctx, decision); err != nil {
			return s.failed(deal, "apply initial valuation", err)
		}
		return DealOutcome{DealUID: deal.DealUID, Kind: OutcomeInitialized}
	}

	// Idempotence guard: the valuation log only ever advances by date
	if !req.Date.After(lastValuation.Date) {
		return DealOutcome{DealUID: deal.DealUID, Kind: OutcomeStale}
	}

	sold, err := s.Repo.ActiveSellSummary(ctx, deal.DealUID)
	if err != nil {
		return s.failed(deal, "load sell summary", err)
	}

	var lastSell *domain.Transaction
	if s.Policy.BuyBackMode == rebalancer.BuyBackLastSell {
		lastSell, err = s.Repo.LastActiveSell(ctx, deal.DealUID)
		if err != nil {
			return s.failed(deal, "load last sell", err)
		}
	}

	decision, err := rebalancer.Decide(rebalancer.Input{
		Deal:       deal,
		Sold:       sold,
		LastSell:   lastSell,
		InitVolume: lastValuation.InitVolume,
		InitPrice:  lastValuation.InitPrice,
		Date:       req.Date,
		Price:      req.Price,
	}, s.Policy)
	if err != nil {
		// Arithmetic impossibility: log and leave the deal untouched
		return s.failed(deal, "decide", err)
	}

	if err := s.Repo.ApplyDecision(ctx, decision); err != nil {
		if errors.Is(err, domain.ErrVersionConflict) {
			s.log.Warn().
				Str("deal_uid", deal.DealUID.String()).
				Int("version_seq", deal.VersionSEQ).
				Msg("Deal version superseded concurrently, skipping")
			return DealOutcome{DealUID: deal.DealUID, Kind: OutcomeConflict}
		}
		return s.failed(deal, "apply decision", err)
	}

	switch decision.Action {
	case domain.ActionSell:
		return DealOutcome{DealUID: deal.DealUID, Kind: OutcomeSold}
	case domain.ActionBuyBack:
		return DealOutcome{DealUID: deal.DealUID, Kind: OutcomeBoughtBack}
	default:
		return DealOutcome{DealUID: deal.DealUID, Kind: OutcomeSnapshotted}
	}
}

func (s *Service) failed(deal *domain.Deal, step string, err error) DealOutcome {
	s.log.Error().
		Err(err).
		Str("deal_uid", deal.DealUID.String()).
		Str("step", step).
		Msg("Deal valuation failed")

	return DealOutcome{DealUID: deal.DealUID, Kind: OutcomeFailed, Error: err.Error()}
}

// initialSnapshot builds the first valuation of a deal: mark-to-market at the
// observed price, inception references taken from the deal record itself
func initialSnapshot(deal *domain.Deal, req Request) *domain.Decision {
	return &domain.Decision{
		DealUID: deal.DealUID,
		Action:  domain.ActionSnapshot,
		Valuation: &domain.Valuation{
			ID:         uuid.New(),
			DealUID:    deal.DealUID,
			Keyword:    deal.Keyword,
			Date:       req.Date,
			Volume:     deal.Volume,
			Price:      req.Price,
			Amount:     deal.Volume.Mul(req.Price),
			InitVolume: deal.Volume,
			InitPrice:  deal.Price,
			SoldVolume: decimal.Zero,
			SoldAmount: decimal.Zero,
		},
	}
}
