package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/simaogato/dealflow-backend/internal/domain"
)

// positionRepository implements domain.PositionRepository
type positionRepository struct {
	db *DB
}

// NewPositionRepository creates a new position repository
func NewPositionRepository(db *DB) domain.PositionRepository {
	return &positionRepository{db: db}
}

// ActiveDealsByKeyword retrieves all active deal versions tagged with the keyword
func (r *positionRepository) ActiveDealsByKeyword(ctx context.Context, keyword string) ([]*domain.Deal, error) {
	query := `
		SELECT id, deal_uid, keyword, date, volume, price, amount, factor, version_seq, inactive_flag
		FROM deals
		WHERE keyword = $1 AND inactive_flag = 'N'
		ORDER BY deal_uid
	`

	rows, err := r.db.QueryContext(ctx, query, keyword)
	if err != nil {
		return nil, fmt.Errorf("failed to query active deals: %w", err)
	}
	defer rows.Close()

	var deals []*domain.Deal
	for rows.Next() {
		deal, err := scanDeal(rows)
		if err != nil {
			return nil, err
		}
		deals = append(deals, deal)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate active deals: %w", err)
	}

	return deals, nil
}

// LastValuation retrieves the most recent valuation for a deal by date
// Returns (nil, nil) when the deal has never been valued
func (r *positionRepository) LastValuation(ctx context.Context, dealUID uuid.UUID) (*domain.Valuation, error) {
	query := `
		SELECT id, deal_uid, keyword, date, volume, price, amount, init_volume, init_price, sold_volume, sold_amount
		FROM valuations
		WHERE deal_uid = $1
		ORDER BY date DESC
		LIMIT 1
	`

	var v domain.Valuation
	var volumeStr, priceStr, amountStr, initVolumeStr, initPriceStr, soldVolumeStr, soldAmountStr string

	err := r.db.QueryRowContext(ctx, query, dealUID).Scan(
		&v.ID,
		&v.DealUID,
		&v.Keyword,
		&v.Date,
		&volumeStr,
		&priceStr,
		&amountStr,
		&initVolumeStr,
		&initPriceStr,
		&soldVolumeStr,
		&soldAmountStr,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get last valuation: %w", err)
	}

	fields := map[string]struct {
		raw string
		dst *decimal.Decimal
	}{
		"volume":      {volumeStr, &v.Volume},
		"price":       {priceStr, &v.Price},
		"amount":      {amountStr, &v.Amount},
		"init_volume": {initVolumeStr, &v.InitVolume},
		"init_price":  {initPriceStr, &v.InitPrice},
		"sold_volume": {soldVolumeStr, &v.SoldVolume},
		"sold_amount": {soldAmountStr, &v.SoldAmount},
	}
	for name, f := range fields {
		parsed, err := decimal.NewFromString(f.raw)
		if err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", name, err)
		}
		*f.dst = parsed
	}

	return &v, nil
}

// ActiveSellSummary sums volume and amount over the deal's active Sell transactions
func (r *positionRepository) ActiveSellSummary(ctx context.Context, dealUID uuid.UUID) (domain.SellSummary, error) {
	query := `
		SELECT COALESCE(SUM(volume), 0), COALESCE(SUM(amount), 0)
		FROM transactions
		WHERE deal_uid = $1 AND type = 'Sell' AND inactive_flag = 'N'
	`

	var volumeStr, amountStr string
	err := r.db.QueryRowContext(ctx, query, dealUID).Scan(&volumeStr, &amountStr)
	if err != nil {
		return domain.SellSummary{}, fmt.Errorf("failed to get sell summary: %w", err)
	}

	volume, err := decimal.NewFromString(volumeStr)
	if err != nil {
		return domain.SellSummary{}, fmt.Errorf("failed to parse sold volume: %w", err)
	}
	amount, err := decimal.NewFromString(amountStr)
	if err != nil {
		return domain.SellSummary{}, fmt.Errorf("failed to parse sold amount: %w", err)
	}

	return domain.SellSummary{Volume: volume, Amount: amount}, nil
}

// LastActiveSell retrieves the most recent active Sell transaction for a deal
// Returns (nil, nil) when none exists
func (r *positionRepository) LastActiveSell(ctx context.Context, dealUID uuid.UUID) (*domain.Transaction, error) {
	query := `
		SELECT id, deal_uid, type, date, volume, price, amount, inactive_flag
		FROM transactions
		WHERE deal_uid = $1 AND type = 'Sell' AND inactive_flag = 'N'
		ORDER BY date DESC
		LIMIT 1
	`

	var t domain.Transaction
	var volumeStr, priceStr, amountStr string

	err := r.db.QueryRowContext(ctx, query, dealUID).Scan(
		&t.ID,
		&t.DealUID,
		&t.Type,
		&t.Date,
		&volumeStr,
		&priceStr,
		&amountStr,
		&t.Inactive,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get last active sell: %w", err)
	}

	if t.Volume, err = decimal.NewFromString(volumeStr); err != nil {
		return nil, fmt.Errorf("failed to parse volume: %w", err)
	}
	if t.Price, err = decimal.NewFromString(priceStr); err != nil {
		return nil, fmt.Errorf("failed to parse price: %w", err)
	}
	if t.Amount, err = decimal.NewFromString(amountStr); err != nil {
		return nil, fmt.Errorf("failed to parse amount: %w", err)
	}

	return &t, nil
}

// ApplyDecision applies one deal's effect set in a single database transaction.
// The deactivation of the superseded version is conditional on it still being
// active; zero rows affected means a concurrent valuation advanced the version
// chain first and the whole decision is discarded with ErrVersionConflict.
func (r *positionRepository) ApplyDecision(ctx context.Context, decision *domain.Decision) error {
	dbTx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer dbTx.Rollback()

	if decision.Supersede != nil {
		supersedeQuery := `
			UPDATE deals
			SET inactive_flag = 'Y'
			WHERE deal_uid = $1 AND version_seq = $2 AND inactive_flag = 'N'
		`

		res, err := dbTx.ExecContext(ctx, supersedeQuery,
			decision.Supersede.DealUID,
			decision.Supersede.VersionSEQ,
		)
		if err != nil {
			return fmt.Errorf("failed to deactivate deal version: %w", err)
		}

		affected, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to read affected rows: %w", err)
		}
		if affected == 0 {
			return domain.ErrVersionConflict
		}
	}

	if decision.ConsumeAllSells {
		consumeQuery := `
			UPDATE transactions
			SET inactive_flag = 'Y'
			WHERE deal_uid = $1 AND type = 'Sell' AND inactive_flag = 'N'
		`
		if _, err := dbTx.ExecContext(ctx, consumeQuery, decision.DealUID); err != nil {
			return fmt.Errorf("failed to consume sell transactions: %w", err)
		}
	}

	for _, id := range decision.ConsumeSellIDs {
		consumeQuery := `
			UPDATE transactions
			SET inactive_flag = 'Y'
			WHERE id = $1 AND inactive_flag = 'N'
		`
		if _, err := dbTx.ExecContext(ctx, consumeQuery, id); err != nil {
			return fmt.Errorf("failed to consume sell transaction %s: %w", id, err)
		}
	}

	if decision.NewDeal != nil {
		if err := insertDeal(ctx, dbTx, decision.NewDeal); err != nil {
			return err
		}
	}

	if decision.Transaction != nil {
		insertTxQuery := `
			INSERT INTO transactions (id, deal_uid, type, date, volume, price, amount, inactive_flag)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		`

		t := decision.Transaction
		_, err := dbTx.ExecContext(ctx, insertTxQuery,
			t.ID,
			t.DealUID,
			string(t.Type),
			t.Date,
			t.Volume.String(),
			t.Price.String(),
			t.Amount.String(),
			string(t.Inactive),
		)
		if err != nil {
			return fmt.Errorf("failed to insert transaction: %w", err)
		}
	}

	if decision.Valuation != nil {
		insertValQuery := `
			INSERT INTO valuations (id, deal_uid, keyword, date, volume, price, amount, init_volume, init_price, sold_volume, sold_amount)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		`

		v := decision.Valuation
		_, err := dbTx.ExecContext(ctx, insertValQuery,
			v.ID,
			v.DealUID,
			v.Keyword,
			v.Date,
			v.Volume.String(),
			v.Price.String(),
			v.Amount.String(),
			v.InitVolume.String(),
			v.InitPrice.String(),
			v.SoldVolume.String(),
			v.SoldAmount.String(),
		)
		if err != nil {
			return fmt.Errorf("failed to insert valuation: %w", err)
		}
	}

	if err := dbTx.Commit(); err != nil {
		return fmt.Errorf("failed to commit decision: %w", err)
	}

	return nil
}

func insertDeal(ctx context.Context, dbTx *sql.Tx, deal *domain.Deal) error {
	query := `
		INSERT INTO deals (id, deal_uid, keyword, date, volume, price, amount, factor, version_seq, inactive_flag)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	var factor interface{}
	if deal.Factor != nil {
		factor = deal.Factor.String()
	}

	_, err := dbTx.ExecContext(ctx, query,
		deal.ID,
		deal.DealUID,
		deal.Keyword,
		deal.Date,
		deal.Volume.String(),
		deal.Price.String(),
		deal.Amount.String(),
		factor,
		deal.VersionSEQ,
		string(deal.Inactive),
	)
	if err != nil {
		return fmt.Errorf("failed to insert deal: %w", err)
	}

	return nil
}

// scanner abstracts sql.Row and sql.Rows for deal scanning
type scanner interface {
	Scan(dest ...interface{}) error
}

func scanDeal(row scanner) (*domain.Deal, error) {
	var deal domain.Deal
	var volumeStr, priceStr, amountStr string
	var factorStr sql.NullString

	err := row.Scan(
		&deal.ID,
		&deal.DealUID,
		&deal.Keyword,
		&deal.Date,
		&volumeStr,
		&priceStr,
		&amountStr,
		&factorStr,
		&deal.VersionSEQ,
		&deal.Inactive,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to scan deal: %w", err)
	}

	if deal.Volume, err = decimal.NewFromString(volumeStr); err != nil {
		return nil, fmt.Errorf("failed to parse volume: %w", err)
	}
	if deal.Price, err = decimal.NewFromString(priceStr); err != nil {
		return nil, fmt.Errorf("failed to parse price: %w", err)
	}
	if deal.Amount, err = decimal.NewFromString(amountStr); err != nil {
		return nil, fmt.Errorf("failed to parse amount: %w", err)
	}
	if factorStr.Valid {
		factor, err := decimal.NewFromString(factorStr.String)
		if err != nil {
			return nil, fmt.Errorf("failed to parse factor: %w", err)
		}
		deal.Factor = &factor
	}

	return &deal, nil
}
