package invoice

import (
	"fmt"
	"time"
)

// AllowTransition is the directed graph of permitted status changes.
// Sent -> accepted is allowed: a customer can accept without the
// tracked view. Accepted is terminal.
var AllowTransition = map[Status][]Status{
	StatusDraft:    {StatusSent},
	StatusSent:     {StatusViewed, StatusAccepted},
	StatusViewed:   {StatusAccepted},
	StatusAccepted: {},
}

// CanTransition reports whether from -> to is a permitted status change.
func (s Status) CanTransition(to Status) bool {
	for _, allowed := range AllowTransition[s] {
		if allowed == to {
			return true
		}
	}
	return false
}

// ApplyTransition moves the invoice to the target status and stamps the
// matching timestamp. Timestamps are written once and never overwritten.
func ApplyTransition(inv *Invoice, to Status, now time.Time) error {
	if inv == nil {
		return fmt.Errorf("invoice is nil")
	}
	if !inv.Status.CanTransition(to) {
		return fmt.Errorf("invalid invoice status transition: %s -> %s", inv.Status, to)
	}

	inv.Status = to
	switch to {
	case StatusSent:
		if inv.SentAt.IsZero() {
			inv.SentAt = now
		}
	case StatusViewed:
		if inv.ViewedAt.IsZero() {
			inv.ViewedAt = now
		}
	case StatusAccepted:
		if inv.AcceptedAt.IsZero() {
			inv.AcceptedAt = now
		}
	}
	return nil
}
