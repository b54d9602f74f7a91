// Package invoices manages customer invoices: drafting from bookings,
// accepted proposals, or explicit line items, the forward-only status
// chain, and the append-only transition event log.
package invoices

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/walla-walla-travel/tourops/internal/app/domain/invoice"
	"github.com/walla-walla-travel/tourops/internal/app/events"
	"github.com/walla-walla-travel/tourops/internal/app/storage"
	apperrors "github.com/walla-walla-travel/tourops/internal/errors"
	"github.com/walla-walla-travel/tourops/internal/pricing"
	"github.com/walla-walla-travel/tourops/pkg/logger"
)

// defaultNetDays is the payment term when none is configured.
const defaultNetDays = 14

// Service manages the invoice lifecycle.
type Service struct {
	customers storage.CustomerStore
	bookings  storage.BookingStore
	store     storage.InvoiceStore
	card      pricing.RateCard
	netDays   int
	events    events.Publisher
	log       *logger.Logger
}

// New constructs an invoice service. A non-positive netDays falls back
// to the 14-day default; the events publisher may be nil.
func New(customers storage.CustomerStore, bookings storage.BookingStore, store storage.InvoiceStore, card pricing.RateCard, netDays int, publisher events.Publisher, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("invoices")
	}
	if netDays <= 0 {
		netDays = defaultNetDays
	}
	return &Service{
		customers: customers,
		bookings:  bookings,
		store:     store,
		card:      card,
		netDays:   netDays,
		events:    publisher,
		log:       log,
	}
}

// CreateFromBooking drafts an invoice by pricing the booking's current
// fields against the rate card.
func (s *Service) CreateFromBooking(ctx context.Context, bookingID, memo string) (invoice.Invoice, error) {
	if s.bookings == nil {
		return invoice.Invoice{}, apperrors.Validation("booking lookups are not configured")
	}
	b, err := s.bookings.GetBooking(ctx, bookingID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return invoice.Invoice{}, apperrors.Validationf("booking %s not found", bookingID)
		}
		return invoice.Invoice{}, err
	}

	quote, err := pricing.ComputeQuote(s.card, pricing.QuoteRequest{
		Kind:         b.Kind,
		TourDate:     b.TourDate,
		PartySize:    b.PartySize,
		Hours:        b.DurationHours,
		PackageCode:  b.PackageCode,
		TransferZone: b.TransferZone,
		WaitBlocks:   b.WaitBlocks,
	})
	if err != nil {
		return invoice.Invoice{}, apperrors.Validation(err.Error())
	}

	draft := invoice.DraftFromQuote(b.CustomerID, b.ID, "", quote)
	draft.Memo = memo
	return s.createDraft(ctx, draft)
}

// CreateFromItems drafts an invoice from explicit service and wait
// lines. Gratuity and tax lines are regenerated from the rate card.
func (s *Service) CreateFromItems(ctx context.Context, customerID string, items []pricing.LineItem, memo string) (invoice.Invoice, error) {
	if strings.TrimSpace(customerID) == "" {
		return invoice.Invoice{}, apperrors.Validation("customer_id is required")
	}
	if err := s.validateCustomer(ctx, customerID); err != nil {
		return invoice.Invoice{}, err
	}

	quote, err := pricing.QuoteFromItems(s.card, items)
	if err != nil {
		return invoice.Invoice{}, apperrors.Validation(err.Error())
	}

	draft := invoice.DraftFromQuote(customerID, "", "", quote)
	draft.Memo = memo
	return s.createDraft(ctx, draft)
}

func (s *Service) createDraft(ctx context.Context, draft invoice.Invoice) (invoice.Invoice, error) {
	created, err := s.store.CreateInvoice(ctx, draft)
	if err != nil {
		return invoice.Invoice{}, err
	}
	s.log.WithField("invoice_id", created.ID).
		WithField("number", created.Number).
		WithField("total_cents", created.TotalCents).
		Info("invoice drafted")
	return created, nil
}

// UpdateDraft replaces the memo and/or service line items of a draft
// invoice. New items are re-aggregated so the totals invariant holds.
func (s *Service) UpdateDraft(ctx context.Context, id string, memo *string, items *[]pricing.LineItem) (invoice.Invoice, error) {
	inv, err := s.Get(ctx, id)
	if err != nil {
		return invoice.Invoice{}, err
	}
	if inv.Status != invoice.StatusDraft {
		return invoice.Invoice{}, apperrors.Validationf("only draft invoices can be edited, invoice is %s", inv.Status)
	}

	if items != nil {
		quote, err := pricing.QuoteFromItems(s.card, *items)
		if err != nil {
			return invoice.Invoice{}, apperrors.Validation(err.Error())
		}
		inv.Items = quote.Items
		inv.ServiceCents = quote.ServiceCents
		inv.WaitCents = quote.WaitCents
		inv.SubtotalCents = quote.SubtotalCents
		inv.GratuityCents = quote.GratuityCents
		inv.TaxCents = quote.TaxCents
		inv.TotalCents = quote.TotalCents
		inv.DepositCents = quote.DepositCents
	}
	if memo != nil {
		inv.Memo = *memo
	}
	inv.UpdatedAt = time.Now().UTC()

	updated, err := s.store.UpdateInvoice(ctx, inv)
	if err != nil {
		return invoice.Invoice{}, mapStoreErr(err, id)
	}
	s.log.WithField("invoice_id", id).Info("invoice draft updated")
	return updated, nil
}

// Send issues the invoice: draft moves to sent, an access token is
// generated, and the due date is set from the configured payment terms.
func (s *Service) Send(ctx context.Context, id, actor string) (invoice.Invoice, error) {
	inv, err := s.Get(ctx, id)
	if err != nil {
		return invoice.Invoice{}, err
	}

	now := time.Now().UTC()
	if inv.AccessToken == "" {
		token, err := newAccessToken()
		if err != nil {
			return invoice.Invoice{}, err
		}
		inv.AccessToken = token
	}
	inv.DueDate = now.AddDate(0, 0, s.netDays)

	updated, err := s.transition(ctx, inv, invoice.StatusSent, actor, now)
	if err != nil {
		return invoice.Invoice{}, err
	}

	s.publish("invoice.sent", id, map[string]interface{}{
		"customer_id": updated.CustomerID,
		"number":      updated.Number,
		"total_cents": updated.TotalCents,
		"due_date":    updated.DueDate,
	})
	s.log.WithField("invoice_id", id).
		WithField("number", updated.Number).
		WithField("due_date", updated.DueDate).
		Info("invoice sent")
	return updated, nil
}

// ViewByToken resolves the customer-facing link. The first view of a
// sent invoice moves it to viewed; later views just return it.
func (s *Service) ViewByToken(ctx context.Context, token string) (invoice.Invoice, error) {
	inv, err := s.store.GetInvoiceByToken(ctx, token)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return invoice.Invoice{}, apperrors.NotFound("invoice", token)
		}
		return invoice.Invoice{}, err
	}

	if inv.Status != invoice.StatusSent {
		return inv, nil
	}

	updated, err := s.transition(ctx, inv, invoice.StatusViewed, "customer", time.Now().UTC())
	if err != nil {
		return invoice.Invoice{}, err
	}
	s.publish("invoice.viewed", inv.ID, map[string]interface{}{
		"customer_id": updated.CustomerID,
		"number":      updated.Number,
	})
	s.log.WithField("invoice_id", inv.ID).Info("invoice viewed")
	return updated, nil
}

// Accept marks the invoice accepted. Sent invoices may be accepted
// without the tracked view.
func (s *Service) Accept(ctx context.Context, id, actor string) (invoice.Invoice, error) {
	inv, err := s.Get(ctx, id)
	if err != nil {
		return invoice.Invoice{}, err
	}

	updated, err := s.transition(ctx, inv, invoice.StatusAccepted, actor, time.Now().UTC())
	if err != nil {
		return invoice.Invoice{}, err
	}

	s.publish("invoice.accepted", id, map[string]interface{}{
		"customer_id": updated.CustomerID,
		"number":      updated.Number,
		"total_cents": updated.TotalCents,
	})
	s.log.WithField("invoice_id", id).
		WithField("number", updated.Number).
		Info("invoice accepted")
	return updated, nil
}

// Get fetches one invoice by ID.
func (s *Service) Get(ctx context.Context, id string) (invoice.Invoice, error) {
	inv, err := s.store.GetInvoice(ctx, id)
	if err != nil {
		return invoice.Invoice{}, mapStoreErr(err, id)
	}
	return inv, nil
}

// GetByNumber fetches one invoice by its assigned number.
func (s *Service) GetByNumber(ctx context.Context, number string) (invoice.Invoice, error) {
	inv, err := s.store.GetInvoiceByNumber(ctx, number)
	if err != nil {
		return invoice.Invoice{}, mapStoreErr(err, number)
	}
	return inv, nil
}

// List returns invoices filtered by customer and status. Empty filters
// are ignored.
func (s *Service) List(ctx context.Context, customerID string, status invoice.Status) ([]invoice.Invoice, error) {
	if status != "" && !status.Valid() {
		return nil, apperrors.Validationf("unknown invoice status %q", status)
	}
	return s.store.ListInvoices(ctx, customerID, status)
}

// History returns the invoice's transition events oldest-first.
func (s *Service) History(ctx context.Context, id string) ([]invoice.Event, error) {
	if _, err := s.Get(ctx, id); err != nil {
		return nil, err
	}
	return s.store.ListInvoiceEvents(ctx, id)
}

// EventSummary is a rendering-friendly view of one transition event,
// with the headline fields lifted out of the snapshot.
type EventSummary struct {
	At         time.Time      `json:"at"`
	FromStatus invoice.Status `json:"from_status"`
	ToStatus   invoice.Status `json:"to_status"`
	Actor      string         `json:"actor"`
	Number     string         `json:"number"`
	TotalCents int64          `json:"total_cents"`
}

// HistorySummaries returns the transition log with number and total
// extracted from each snapshot, so callers can render history without
// unmarshalling whole invoices.
func (s *Service) HistorySummaries(ctx context.Context, id string) ([]EventSummary, error) {
	evts, err := s.History(ctx, id)
	if err != nil {
		return nil, err
	}

	summaries := make([]EventSummary, 0, len(evts))
	for _, evt := range evts {
		summaries = append(summaries, EventSummary{
			At:         evt.CreatedAt,
			FromStatus: evt.FromStatus,
			ToStatus:   evt.ToStatus,
			Actor:      evt.Actor,
			Number:     gjson.GetBytes(evt.Snapshot, "Number").String(),
			TotalCents: gjson.GetBytes(evt.Snapshot, "TotalCents").Int(),
		})
	}
	return summaries, nil
}

// Overdue returns sent invoices whose due date passed before now.
func (s *Service) Overdue(ctx context.Context, now time.Time) ([]invoice.Invoice, error) {
	sent, err := s.store.ListInvoices(ctx, "", invoice.StatusSent)
	if err != nil {
		return nil, err
	}

	var overdue []invoice.Invoice
	for _, inv := range sent {
		if !inv.DueDate.IsZero() && inv.DueDate.Before(now) {
			overdue = append(overdue, inv)
		}
	}
	return overdue, nil
}

// transition applies the status change and persists it together with
// its event, snapshotting the invoice at the moment of the change.
func (s *Service) transition(ctx context.Context, inv invoice.Invoice, to invoice.Status, actor string, now time.Time) (invoice.Invoice, error) {
	if actor == "" {
		actor = "staff"
	}

	from := inv.Status
	if err := invoice.ApplyTransition(&inv, to, now); err != nil {
		return invoice.Invoice{}, apperrors.Validation(err.Error())
	}
	inv.UpdatedAt = now

	snapshot, err := json.Marshal(inv)
	if err != nil {
		return invoice.Invoice{}, fmt.Errorf("snapshot invoice %s: %w", inv.ID, err)
	}

	updated, err := s.store.UpdateInvoiceWithEvent(ctx, inv, invoice.Event{
		InvoiceID:  inv.ID,
		FromStatus: from,
		ToStatus:   to,
		Actor:      actor,
		Snapshot:   snapshot,
	})
	if err != nil {
		return invoice.Invoice{}, mapStoreErr(err, inv.ID)
	}
	return updated, nil
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
		return apperrors.NotFound("invoice", id)
	}
	return err
}
