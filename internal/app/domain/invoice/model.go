// Package invoice defines customer invoices, their line items, and the
// append-only status event log.
package invoice

import (
	"encoding/json"
	"time"

	"github.com/walla-walla-travel/tourops/internal/pricing"
)

// Status is the invoice lifecycle state. The chain is forward-only:
// draft -> sent -> viewed -> accepted, where the tracked view may be
// skipped when a customer accepts directly.
type Status string

const (
	StatusDraft    Status = "draft"
	StatusSent     Status = "sent"
	StatusViewed   Status = "viewed"
	StatusAccepted Status = "accepted"
)

// Valid reports whether s is a known invoice status.
func (s Status) Valid() bool {
	switch s {
	case StatusDraft, StatusSent, StatusViewed, StatusAccepted:
		return true
	}
	return false
}

// Invoice is a bill for a customer. Totals always equal the sum of the
// line items; only drafts may be edited.
type Invoice struct {
	ID            string
	Number        string
	CustomerID    string
	BookingID     string
	ProposalID    string
	Status        Status
	Items         []pricing.LineItem
	ServiceCents  int64
	WaitCents     int64
	SubtotalCents int64
	GratuityCents int64
	TaxCents      int64
	TotalCents    int64
	DepositCents  int64
	AccessToken   string
	Memo          string
	DueDate       time.Time
	SentAt        time.Time
	ViewedAt      time.Time
	AcceptedAt    time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Event records one status transition. Snapshot holds the full invoice
// as JSON at the moment of the change, so history survives later edits
// to related records.
type Event struct {
	ID         string
	InvoiceID  string
	FromStatus Status
	ToStatus   Status
	Actor      string
	Snapshot   json.RawMessage
	CreatedAt  time.Time
}

// DraftFromQuote builds a draft invoice carrying a quote's line items
// and aggregates. Both the proposal conversion and booking billing paths
// go through here so the totals invariant holds by construction.
func DraftFromQuote(customerID, bookingID, proposalID string, q pricing.Quote) Invoice {
	return Invoice{
		CustomerID:    customerID,
		BookingID:     bookingID,
		ProposalID:    proposalID,
		Status:        StatusDraft,
		Items:         append([]pricing.LineItem(nil), q.Items...),
		ServiceCents:  q.ServiceCents,
		WaitCents:     q.WaitCents,
		SubtotalCents: q.SubtotalCents,
		GratuityCents: q.GratuityCents,
		TaxCents:      q.TaxCents,
		TotalCents:    q.TotalCents,
		DepositCents:  q.DepositCents,
	}
}
