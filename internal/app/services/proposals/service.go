// Package proposals manages priced offers sent to customers for a
// decision. Accepted proposals convert into draft invoices; unanswered
// ones expire after their offer window.
package proposals

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/walla-walla-travel/tourops/internal/app/domain/invoice"
	"github.com/walla-walla-travel/tourops/internal/app/domain/proposal"
	"github.com/walla-walla-travel/tourops/internal/app/events"
	"github.com/walla-walla-travel/tourops/internal/app/storage"
	apperrors "github.com/walla-walla-travel/tourops/internal/errors"
	"github.com/walla-walla-travel/tourops/internal/pricing"
	"github.com/walla-walla-travel/tourops/pkg/logger"
)

// defaultValidity is the offer window when none is configured.
const defaultValidity = 14 * 24 * time.Hour

// Service manages the proposal lifecycle.
type Service struct {
	customers storage.CustomerStore
	store     storage.ProposalStore
	invoices  storage.InvoiceStore
	card      pricing.RateCard
	validity  time.Duration
	events    events.Publisher
	log       *logger.Logger
}

// New constructs a proposal service. A non-positive validity falls back
// to the 14-day default; the events publisher may be nil.
func New(customers storage.CustomerStore, store storage.ProposalStore, invoices storage.InvoiceStore, card pricing.RateCard, validity time.Duration, publisher events.Publisher, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("proposals")
	}
	if validity <= 0 {
		validity = defaultValidity
	}
	return &Service{
		customers: customers,
		store:     store,
		invoices:  invoices,
		card:      card,
		validity:  validity,
		events:    publisher,
		log:       log,
	}
}

// CreateDraft prices the request and stores it as a draft proposal.
func (s *Service) CreateDraft(ctx context.Context, customerID string, req pricing.QuoteRequest, message string) (proposal.Proposal, error) {
	if strings.TrimSpace(customerID) == "" {
		return proposal.Proposal{}, apperrors.Validation("customer_id is required")
	}
	if err := s.validateCustomer(ctx, customerID); err != nil {
		return proposal.Proposal{}, err
	}

	quote, err := pricing.ComputeQuote(s.card, req)
	if err != nil {
		return proposal.Proposal{}, apperrors.Validation(err.Error())
	}

	created, err := s.store.CreateProposal(ctx, proposal.Proposal{
		CustomerID: customerID,
		Status:     proposal.StatusDraft,
		Request:    req,
		Quote:      quote,
		Message:    message,
	})
	if err != nil {
		return proposal.Proposal{}, err
	}

	s.log.WithField("proposal_id", created.ID).
		WithField("customer_id", customerID).
		WithField("total_cents", quote.TotalCents).
		Info("proposal drafted")
	return created, nil
}

// UpdateDraft replaces the quote request and/or message of a draft
// proposal. A new request is repriced immediately.
func (s *Service) UpdateDraft(ctx context.Context, id string, req *pricing.QuoteRequest, message *string) (proposal.Proposal, error) {
	p, err := s.Get(ctx, id)
	if err != nil {
		return proposal.Proposal{}, err
	}
	if p.Status != proposal.StatusDraft {
		return proposal.Proposal{}, apperrors.Validationf("only draft proposals can be edited, proposal is %s", p.Status)
	}

	if req != nil {
		quote, err := pricing.ComputeQuote(s.card, *req)
		if err != nil {
			return proposal.Proposal{}, apperrors.Validation(err.Error())
		}
		p.Request = *req
		p.Quote = quote
	}
	if message != nil {
		p.Message = *message
	}
	p.UpdatedAt = time.Now().UTC()

	updated, err := s.store.UpdateProposal(ctx, p)
	if err != nil {
		return proposal.Proposal{}, mapStoreErr(err, id)
	}
	s.log.WithField("proposal_id", id).Info("proposal draft updated")
	return updated, nil
}

// Send issues the proposal to the customer: a draft moves to sent and
// gets an access token; re-sending a live proposal keeps its token and
// status. Either way the offer window restarts from now.
func (s *Service) Send(ctx context.Context, id string) (proposal.Proposal, error) {
	p, err := s.Get(ctx, id)
	if err != nil {
		return proposal.Proposal{}, err
	}

	now := time.Now().UTC()
	switch p.Status {
	case proposal.StatusDraft:
		if err := proposal.ApplyTransition(&p, proposal.StatusSent, now); err != nil {
			return proposal.Proposal{}, apperrors.Validation(err.Error())
		}
	case proposal.StatusSent, proposal.StatusViewed:
		// Re-send: refresh the window only.
	default:
		return proposal.Proposal{}, apperrors.Validationf("proposal is %s", p.Status)
	}

	if p.AccessToken == "" {
		token, err := newAccessToken()
		if err != nil {
			return proposal.Proposal{}, err
		}
		p.AccessToken = token
	}
	p.ExpiresAt = now.Add(s.validity)
	p.UpdatedAt = now

	updated, err := s.store.UpdateProposal(ctx, p)
	if err != nil {
		return proposal.Proposal{}, mapStoreErr(err, id)
	}

	s.publish("proposal.sent", id, map[string]interface{}{
		"customer_id": updated.CustomerID,
		"expires_at":  updated.ExpiresAt,
		"total_cents": updated.Quote.TotalCents,
	})
	s.log.WithField("proposal_id", id).
		WithField("expires_at", updated.ExpiresAt).
		Info("proposal sent")
	return updated, nil
}

// ViewByToken resolves the customer-facing link. The first view of a
// live proposal moves it to viewed; expired or decided proposals still
// render but no longer transition.
func (s *Service) ViewByToken(ctx context.Context, token string) (proposal.Proposal, error) {
	p, err := s.store.GetProposalByToken(ctx, token)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return proposal.Proposal{}, apperrors.NotFound("proposal", token)
		}
		return proposal.Proposal{}, err
	}

	now := time.Now().UTC()
	if p.Status == proposal.StatusSent && !p.Expired(now) {
		if err := proposal.ApplyTransition(&p, proposal.StatusViewed, now); err != nil {
			return proposal.Proposal{}, apperrors.Validation(err.Error())
		}
		p.UpdatedAt = now
		updated, err := s.store.UpdateProposal(ctx, p)
		if err != nil {
			return proposal.Proposal{}, mapStoreErr(err, p.ID)
		}
		s.publish("proposal.viewed", p.ID, map[string]interface{}{
			"customer_id": updated.CustomerID,
		})
		s.log.WithField("proposal_id", p.ID).Info("proposal viewed")
		return updated, nil
	}
	return p, nil
}

// Accept records the customer's acceptance and converts the proposal
// into a draft invoice carrying its line items.
func (s *Service) Accept(ctx context.Context, id string) (proposal.Proposal, error) {
	p, err := s.Get(ctx, id)
	if err != nil {
		return proposal.Proposal{}, err
	}

	now := time.Now().UTC()
	if p.Expired(now) && !p.Status.Terminal() {
		return proposal.Proposal{}, apperrors.Validation("proposal has expired")
	}
	if err := proposal.ApplyTransition(&p, proposal.StatusAccepted, now); err != nil {
		return proposal.Proposal{}, apperrors.Validation(err.Error())
	}

	// Invoice first, proposal second. A failed proposal write leaves an
	// unreferenced draft invoice; a retry creates a fresh one.
	inv, err := s.invoices.CreateInvoice(ctx, invoice.DraftFromQuote(p.CustomerID, "", p.ID, p.Quote))
	if err != nil {
		return proposal.Proposal{}, fmt.Errorf("convert proposal %s to invoice: %w", id, err)
	}

	p.ConvertedInvoiceID = inv.ID
	p.UpdatedAt = now
	updated, err := s.store.UpdateProposal(ctx, p)
	if err != nil {
		return proposal.Proposal{}, mapStoreErr(err, id)
	}

	s.publish("proposal.accepted", id, map[string]interface{}{
		"customer_id": updated.CustomerID,
		"invoice_id":  inv.ID,
		"total_cents": updated.Quote.TotalCents,
	})
	s.log.WithField("proposal_id", id).
		WithField("invoice_id", inv.ID).
		Info("proposal accepted")
	return updated, nil
}

// Decline records the customer's refusal.
func (s *Service) Decline(ctx context.Context, id string) (proposal.Proposal, error) {
	p, err := s.Get(ctx, id)
	if err != nil {
		return proposal.Proposal{}, err
	}

	if err := proposal.ApplyTransition(&p, proposal.StatusDeclined, time.Now().UTC()); err != nil {
		return proposal.Proposal{}, apperrors.Validation(err.Error())
	}
	p.UpdatedAt = time.Now().UTC()

	updated, err := s.store.UpdateProposal(ctx, p)
	if err != nil {
		return proposal.Proposal{}, mapStoreErr(err, id)
	}

	s.publish("proposal.declined", id, map[string]interface{}{
		"customer_id": updated.CustomerID,
	})
	s.log.WithField("proposal_id", id).Info("proposal declined")
	return updated, nil
}

// ExpireDue marks every live proposal whose offer window closed before
// now as expired and returns how many were moved. Failures on single
// proposals are logged and skipped so one bad record cannot wedge the
// sweep.
func (s *Service) ExpireDue(ctx context.Context, now time.Time) (int, error) {
	due, err := s.store.ListExpirableProposals(ctx, now)
	if err != nil {
		return 0, err
	}

	expired := 0
	for _, p := range due {
		if err := proposal.ApplyTransition(&p, proposal.StatusExpired, now); err != nil {
			s.log.WithError(err).WithField("proposal_id", p.ID).Warnf("skipping proposal during sweep")
			continue
		}
		p.UpdatedAt = now
		if _, err := s.store.UpdateProposal(ctx, p); err != nil {
			s.log.WithError(err).WithField("proposal_id", p.ID).Warnf("expire proposal failed")
			continue
		}
		s.publish("proposal.expired", p.ID, map[string]interface{}{
			"customer_id": p.CustomerID,
		})
		expired++
	}
	return expired, nil
}

// Get fetches one proposal by ID.
func (s *Service) Get(ctx context.Context, id string) (proposal.Proposal, error) {
	p, err := s.store.GetProposal(ctx, id)
	if err != nil {
		return proposal.Proposal{}, mapStoreErr(err, id)
	}
	return p, nil
}

// List returns proposals filtered by customer and status. Empty filters
// are ignored.
func (s *Service) List(ctx context.Context, customerID string, status proposal.Status) ([]proposal.Proposal, error) {
	if status != "" && !status.Valid() {
		return nil, apperrors.Validationf("unknown proposal status %q", status)
	}
	return s.store.ListProposals(ctx, customerID, status)
}

func (s *Service) validateCustomer(ctx context.Context, customerID string) error {
	if s.customers == nil {
		return nil
	}
	c, err := s.customers.GetCustomer(ctx, customerID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return apperrors.Validationf("customer %s not found", customerID)
		}
		return err
	}
	if !c.Active {
		return apperrors.Validation("customer is not active")
	}
	return nil
}

func (s *Service) publish(eventType, entityID string, data map[string]interface{}) {
	if s.events == nil {
		return
	}
	s.events.Publish(events.Event{Type: eventType, EntityID: entityID, Data: data})
}

// newAccessToken returns 32 random bytes hex-encoded, unguessable enough
// for account-free customer links.
func newAccessToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate access token: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

func mapStoreErr(err error, id string) error {
	if errors.Is(err, storage.ErrNotFound) {
		return apperrors.NotFound("proposal", id)
	}
	return err
}
