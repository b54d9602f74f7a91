package booking

import (
	"fmt"
	"time"
)

// AllowTransition is the directed graph of permitted status changes.
// Completed and canceled are terminal.
var AllowTransition = map[Status][]Status{
	StatusPending:   {StatusConfirmed, StatusCanceled},
	StatusConfirmed: {StatusCompleted, StatusCanceled},
	StatusCompleted: {},
	StatusCanceled:  {},
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

// ApplyTransition moves the booking to the target status and stamps the
// matching timestamp. Timestamps are written once and never overwritten.
func ApplyTransition(b *Booking, to Status, now time.Time) error {
	if b == nil {
		return fmt.Errorf("booking is nil")
	}
	if !b.Status.CanTransition(to) {
		return fmt.Errorf("invalid booking status transition: %s -> %s", b.Status, to)
	}

	b.Status = to
	switch to {
	case StatusConfirmed:
		if b.ConfirmedAt.IsZero() {
			b.ConfirmedAt = now
		}
	case StatusCompleted:
		if b.CompletedAt.IsZero() {
			b.CompletedAt = now
		}
	case StatusCanceled:
		if b.CanceledAt.IsZero() {
			b.CanceledAt = now
		}
	}
	return nil
}
