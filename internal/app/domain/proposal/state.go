package proposal

import (
	"fmt"
	"time"
)

// AllowTransition is the directed graph of permitted status changes.
// Accepted, declined, and expired are terminal.
var AllowTransition = map[Status][]Status{
	StatusDraft:    {StatusSent},
	StatusSent:     {StatusViewed, StatusAccepted, StatusDeclined, StatusExpired},
	StatusViewed:   {StatusAccepted, StatusDeclined, StatusExpired},
	StatusAccepted: {},
	StatusDeclined: {},
	StatusExpired:  {},
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

// ApplyTransition moves the proposal to the target status and stamps the
// matching timestamp. Timestamps are written once and never overwritten.
func ApplyTransition(p *Proposal, to Status, now time.Time) error {
	if p == nil {
		return fmt.Errorf("proposal is nil")
	}
	if !p.Status.CanTransition(to) {
		return fmt.Errorf("invalid proposal status transition: %s -> %s", p.Status, to)
	}

	p.Status = to
	switch to {
	case StatusSent:
		if p.SentAt.IsZero() {
			p.SentAt = now
		}
	case StatusViewed:
		if p.ViewedAt.IsZero() {
			p.ViewedAt = now
		}
	case StatusAccepted, StatusDeclined, StatusExpired:
		if p.DecidedAt.IsZero() {
			p.DecidedAt = now
		}
	}
	return nil
}
