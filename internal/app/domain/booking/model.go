// Package booking defines scheduled tours and transfers and their
// status lifecycle.
package booking

import (
	"time"

	"github.com/walla-walla-travel/tourops/internal/pricing"
)

// Status is the booking lifecycle state.
type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusCompleted Status = "completed"
	StatusCanceled  Status = "canceled"
)

// Valid reports whether s is a known booking status.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusCompleted, StatusCanceled:
		return true
	}
	return false
}

// Terminal reports whether no further transitions may leave s.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusCanceled
}

// Booking is a scheduled tour or transfer for one customer party.
type Booking struct {
	ID              string
	CustomerID      string
	Kind            pricing.TourKind
	Status          Status
	TourDate        time.Time
	DurationHours   int
	PartySize       int
	PackageCode     string
	TransferZone    string
	PickupAddress   string
	DropoffAddress  string
	WineryStops     []string // winery IDs in visit order
	VehicleID       string
	DriverID        string
	WaitBlocks      int
	QuoteTotalCents int64
	DepositCents    int64
	Notes           string
	ConfirmedAt     time.Time
	CompletedAt     time.Time
	CanceledAt      time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Window returns the occupied time span for conflict checks. Transfers
// block a single hour.
func (b Booking) Window() (time.Time, time.Time) {
	hours := b.DurationHours
	if hours < 1 {
		hours = 1
	}
	return b.TourDate, b.TourDate.Add(time.Duration(hours) * time.Hour)
}

// Overlaps reports whether the occupied spans of two bookings intersect.
func (b Booking) Overlaps(other Booking) bool {
	aStart, aEnd := b.Window()
	bStart, bEnd := other.Window()
	return aStart.Before(bEnd) && bStart.Before(aEnd)
}
