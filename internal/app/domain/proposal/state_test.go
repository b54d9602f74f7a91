package proposal

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
		{StatusSent, StatusAccepted, true},
		{StatusSent, StatusDeclined, true},
		{StatusSent, StatusExpired, true},
		{StatusViewed, StatusAccepted, true},
		{StatusViewed, StatusDeclined, true},
		{StatusViewed, StatusExpired, true},
		{StatusDraft, StatusAccepted, false},
		{StatusDraft, StatusExpired, false},
		{StatusAccepted, StatusDeclined, false},
		{StatusExpired, StatusSent, false},
		{StatusDeclined, StatusViewed, false},
	}
	for _, tc := range cases {
		if got := tc.from.CanTransition(tc.to); got != tc.want {
			t.Fatalf("%s -> %s = %v, want %v", tc.from, tc.to, got, tc.want)
		}
	}
}

func TestApplyTransition_DecisionStamp(t *testing.T) {
	now := time.Date(2026, time.March, 10, 9, 0, 0, 0, time.UTC)
	p := &Proposal{Status: StatusDraft}

	if err := ApplyTransition(p, StatusSent, now); err != nil {
		t.Fatalf("draft -> sent: %v", err)
	}
	if err := ApplyTransition(p, StatusViewed, now.Add(time.Hour)); err != nil {
		t.Fatalf("sent -> viewed: %v", err)
	}
	if err := ApplyTransition(p, StatusDeclined, now.Add(2*time.Hour)); err != nil {
		t.Fatalf("viewed -> declined: %v", err)
	}
	if p.DecidedAt.IsZero() {
		t.Fatalf("decline must stamp the decision time")
	}
	if !p.Status.Terminal() {
		t.Fatalf("declined should be terminal")
	}
}

func TestExpired(t *testing.T) {
	now := time.Date(2026, time.March, 10, 9, 0, 0, 0, time.UTC)

	p := Proposal{ExpiresAt: now.Add(time.Hour)}
	if p.Expired(now) {
		t.Fatalf("proposal expiring in an hour must not be expired yet")
	}
	if !p.Expired(now.Add(2 * time.Hour)) {
		t.Fatalf("proposal past its window must be expired")
	}
	if (Proposal{}).Expired(now) {
		t.Fatalf("proposal without a window never expires")
	}
}
