package invoice

import (
	"testing"
	"time"
)

func TestCanTransition(t *testing.T) {
	cases := []struct {
		from, to Status
		want     bool
	}{
		{StatusDraft, StatusSent, true},
		{StatusSent, StatusViewed, true},
		{StatusViewed, StatusAccepted, true},
		{StatusSent, StatusAccepted, true}, // accept without tracked view
		{StatusDraft, StatusViewed, false},
		{StatusDraft, StatusAccepted, false},
		{StatusViewed, StatusSent, false},
		{StatusAccepted, StatusSent, false},
		{StatusAccepted, StatusViewed, false},
		{StatusSent, StatusSent, false},
	}
	for _, tc := range cases {
		if got := tc.from.CanTransition(tc.to); got != tc.want {
			t.Fatalf("%s -> %s = %v, want %v", tc.from, tc.to, got, tc.want)
		}
	}
}

func TestApplyTransition_StampsOnce(t *testing.T) {
	now := time.Date(2026, time.March, 10, 12, 0, 0, 0, time.UTC)
	inv := &Invoice{Status: StatusDraft}

	if err := ApplyTransition(inv, StatusSent, now); err != nil {
		t.Fatalf("draft -> sent: %v", err)
	}
	if inv.Status != StatusSent || !inv.SentAt.Equal(now) {
		t.Fatalf("sent stamp missing: %#v", inv)
	}

	later := now.Add(time.Hour)
	if err := ApplyTransition(inv, StatusViewed, later); err != nil {
		t.Fatalf("sent -> viewed: %v", err)
	}
	if !inv.ViewedAt.Equal(later) {
		t.Fatalf("viewed stamp = %v, want %v", inv.ViewedAt, later)
	}

	if err := ApplyTransition(inv, StatusAccepted, later.Add(time.Hour)); err != nil {
		t.Fatalf("viewed -> accepted: %v", err)
	}
	if inv.AcceptedAt.IsZero() {
		t.Fatalf("accepted stamp missing")
	}

	if err := ApplyTransition(inv, StatusSent, later); err == nil {
		t.Fatalf("expected error leaving terminal status")
	}
}
