package booking

import (
	"testing"
	"time"
)

func TestCanTransition(t *testing.T) {
	cases := []struct {
		from, to Status
		want     bool
	}{
		{StatusPending, StatusConfirmed, true},
		{StatusPending, StatusCanceled, true},
		{StatusConfirmed, StatusCompleted, true},
		{StatusConfirmed, StatusCanceled, true},
		{StatusPending, StatusCompleted, false},
		{StatusCompleted, StatusCanceled, false},
		{StatusCanceled, StatusPending, false},
	}
	for _, tc := range cases {
		if got := tc.from.CanTransition(tc.to); got != tc.want {
			t.Fatalf("%s -> %s = %v, want %v", tc.from, tc.to, got, tc.want)
		}
	}
}

func TestOverlaps(t *testing.T) {
	start := time.Date(2026, time.June, 5, 10, 0, 0, 0, time.UTC)

	a := Booking{TourDate: start, DurationHours: 5}
	b := Booking{TourDate: start.Add(4 * time.Hour), DurationHours: 3}
	if !a.Overlaps(b) {
		t.Fatalf("bookings sharing an hour must overlap")
	}

	c := Booking{TourDate: start.Add(5 * time.Hour), DurationHours: 2}
	if a.Overlaps(c) {
		t.Fatalf("back-to-back bookings must not overlap")
	}

	// Transfers occupy one hour even with no duration set.
	transfer := Booking{TourDate: start}
	if !a.Overlaps(transfer) {
		t.Fatalf("transfer inside a tour window must overlap")
	}
}
