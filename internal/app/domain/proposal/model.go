// Package proposal defines quotes sent to customers for acceptance
// before a booking or invoice exists.
package proposal

import (
	"time"

	"github.com/walla-walla-travel/tourops/internal/pricing"
)

// Status is the proposal lifecycle state.
type Status string

const (
	StatusDraft    Status = "draft"
	StatusSent     Status = "sent"
	StatusViewed   Status = "viewed"
	StatusAccepted Status = "accepted"
	StatusDeclined Status = "declined"
	StatusExpired  Status = "expired"
)

// Valid reports whether s is a known proposal status.
func (s Status) Valid() bool {
	switch s {
	case StatusDraft, StatusSent, StatusViewed, StatusAccepted, StatusDeclined, StatusExpired:
		return true
	}
	return false
}

// Terminal reports whether no further transitions may leave s.
func (s Status) Terminal() bool {
	return s == StatusAccepted || s == StatusDeclined || s == StatusExpired
}

// Proposal is a priced offer awaiting a customer decision. The access
// token lets the customer view it without an account; acceptance
// converts it into a draft invoice.
type Proposal struct {
	ID                 string
	CustomerID         string
	Status             Status
	Request            pricing.QuoteRequest
	Quote              pricing.Quote
	Message            string
	AccessToken        string
	ExpiresAt          time.Time
	SentAt             time.Time
	ViewedAt           time.Time
	DecidedAt          time.Time
	ConvertedInvoiceID string
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// Expired reports whether the offer window has closed as of now.
func (p Proposal) Expired(now time.Time) bool {
	return !p.ExpiresAt.IsZero() && now.After(p.ExpiresAt)
}
