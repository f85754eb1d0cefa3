package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
	"github.com/simaogato/dealflow-backend/internal/usecase/valuation"
)

// requestDateLayout is the wire format of the valuation date
const requestDateLayout = "02-01-2006"

// Valuator runs one valuation request, the httpapi side of the orchestrator
type Valuator interface {
	Valuate(ctx context.Context, req valuation.Request) (*valuation.Summary, error)
}

// PriceSource resolves a market price by keyword and date when the request
// does not carry one. External collaborator; unavailability surfaces as a
// 502-class rejection.
type PriceSource interface {
	PriceAt(ctx context.Context, keyword string, date time.Time) (decimal.Decimal, error)
}

// valuateRequest is the inbound JSON body
// price is optional when a price feed is configured; it accepts a JSON number
// or a decimal string
type valuateRequest struct {
	Keyword string      `json:"keyword"`
	Date    string      `json:"date"`
	Price   json.Number `json:"price"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// handleHealth responds to liveness probes
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleValuate processes POST /api/v1/valuations
func (s *Server) handleValuate(w http.ResponseWriter, r *http.Request) {
	var body valuateRequest

	decoder := json.NewDecoder(r.Body)
	decoder.UseNumber()
	if err := decoder.Decode(&body); err != nil {
		respondError(w, http.StatusBadRequest, "request body must be valid JSON")
		return
	}

	if body.Keyword == "" {
		respondError(w, http.StatusBadRequest, "keyword is required")
		return
	}

	if body.Date == "" {
		respondError(w, http.StatusBadRequest, "date is required")
		return
	}
	date, err := time.Parse(requestDateLayout, body.Date)
	if err != nil {
		respondError(w, http.StatusBadRequest, "date must use the DD-MM-YYYY format")
		return
	}

	price, ok := s.resolvePrice(w, r, body, date)
	if !ok {
		return
	}

	summary, err := s.valuator.Valuate(r.Context(), valuation.Request{
		Keyword: body.Keyword,
		Date:    date,
		Price:   price,
	})
	if err != nil {
		s.log.Error().Err(err).Str("keyword", body.Keyword).Msg("Valuation run failed")
		respondError(w, http.StatusInternalServerError, "valuation run failed")
		return
	}

	respondJSON(w, http.StatusOK, summary)
}

// resolvePrice takes the request's price, or falls back to the configured
// price feed. A false return means the response has already been written.
func (s *Server) resolvePrice(w http.ResponseWriter, r *http.Request, body valuateRequest, date time.Time) (decimal.Decimal, bool) {
	if body.Price != "" {
		price, err := decimal.NewFromString(body.Price.String())
		if err != nil || price.LessThanOrEqual(decimal.Zero) {
			respondError(w, http.StatusBadRequest, "price must be a positive decimal")
			return decimal.Zero, false
		}
		return price, true
	}

	if s.priceFeed == nil {
		respondError(w, http.StatusBadRequest, "price is required")
		return decimal.Zero, false
	}

	price, err := s.priceFeed.PriceAt(r.Context(), body.Keyword, date)
	if err != nil {
		s.log.Warn().Err(err).Str("keyword", body.Keyword).Msg("Price feed lookup failed")
		respondError(w, http.StatusBadGateway, "price feed unavailable")
		return decimal.Zero, false
	}

	return price, true
}

func respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, errorResponse{Error: message})
}
