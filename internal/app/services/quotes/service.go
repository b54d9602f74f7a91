// Package quotes prices tour and transfer requests against the rate
// card. Nothing is persisted; bookings and proposals run the same
// computation when they capture a price.
package quotes

import (
	"context"

	apperrors "github.com/walla-walla-travel/tourops/internal/errors"
	"github.com/walla-walla-travel/tourops/internal/pricing"
	"github.com/walla-walla-travel/tourops/pkg/logger"
)

// Service computes quotes.
type Service struct {
	card pricing.RateCard
	log  *logger.Logger
}

// New constructs a quote service over the effective rate card.
func New(card pricing.RateCard, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("quotes")
	}
	return &Service{card: card, log: log}
}

// Compute prices a request and returns the full line-item breakdown.
func (s *Service) Compute(ctx context.Context, req pricing.QuoteRequest) (pricing.Quote, error) {
	_ = ctx
	quote, err := pricing.ComputeQuote(s.card, req)
	if err != nil {
		return pricing.Quote{}, apperrors.Validation(err.Error())
	}
	s.log.WithField("kind", string(req.Kind)).
		WithField("total_cents", quote.TotalCents).
		Debug("quote computed")
	return quote, nil
}

// RateCard returns the effective pricing configuration.
func (s *Service) RateCard() pricing.RateCard {
	return s.card
}
