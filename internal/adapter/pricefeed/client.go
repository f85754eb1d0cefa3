package pricefeed

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// ErrPriceUnavailable is returned when the feed has no price for the
// requested keyword and date, or cannot be reached
var ErrPriceUnavailable = fmt.Errorf("price unavailable")

// Client is an HTTP client for the market-data price feed
type Client struct {
	baseURL string
	client  *http.Client
	log     zerolog.Logger
}

// NewClient creates a new price feed client
func NewClient(baseURL string, log zerolog.Logger) *Client {
	return &Client{
		baseURL: baseURL,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
		log: log.With().Str("client", "pricefeed").Logger(),
	}
}

// priceResponse mirrors the feed's response format
type priceResponse struct {
	Keyword string `json:"keyword"`
	Date    string `json:"date"`
	Price   string `json:"price"`
}

// PriceAt resolves the market price observed for a keyword at a date.
// Returns ErrPriceUnavailable when the feed has no observation or is down.
func (c *Client) PriceAt(ctx context.Context, keyword string, date time.Time) (decimal.Decimal, error) {
	endpoint := fmt.Sprintf("%s/prices?keyword=%s&date=%s",
		c.baseURL,
		url.QueryEscape(keyword),
		date.Format("2006-01-02"),
	)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to build price request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		c.log.Warn().Err(err).Str("keyword", keyword).Msg("Price feed request failed")
		return decimal.Zero, ErrPriceUnavailable
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.log.Warn().Int("status", resp.StatusCode).Str("keyword", keyword).Msg("Price feed returned non-OK status")
		return decimal.Zero, ErrPriceUnavailable
	}

	var body priceResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return decimal.Zero, fmt.Errorf("failed to decode price response: %w", err)
	}

	price, err := decimal.NewFromString(body.Price)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to parse price %q: %w", body.Price, err)
	}

	if price.LessThanOrEqual(decimal.Zero) {
		return decimal.Zero, ErrPriceUnavailable
	}

	return price, nil
}
