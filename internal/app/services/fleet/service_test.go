package fleet

import (
	"context"
	"testing"
	"time"

	"github.com/walla-walla-travel/tourops/internal/app/storage/memory"
	apperrors "github.com/walla-walla-travel/tourops/internal/errors"
)

func TestVehicleLifecycle(t *testing.T) {
	svc := New(memory.New(), nil)
	ctx := context.Background()

	v, err := svc.CreateVehicle(ctx, "Sprinter 1", "Mercedes", "Sprinter", 10)
	if err != nil {
		t.Fatalf("create vehicle: %v", err)
	}
	if !v.Active || v.Capacity != 10 {
		t.Fatalf("unexpected vehicle: %#v", v)
	}

	capacity := 12
	updated, err := svc.UpdateVehicle(ctx, v.ID, nil, nil, nil, &capacity)
	if err != nil {
		t.Fatalf("update vehicle: %v", err)
	}
	if updated.Capacity != 12 {
		t.Fatalf("capacity not applied: %d", updated.Capacity)
	}

	if _, err := svc.DeactivateVehicle(ctx, v.ID); err != nil {
		t.Fatalf("deactivate: %v", err)
	}
	active, err := svc.ListVehicles(ctx, false)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(active) != 0 {
		t.Fatalf("deactivated vehicle still listed")
	}
}

func TestVehicleCapacityBounds(t *testing.T) {
	svc := New(memory.New(), nil)
	ctx := context.Background()

	if _, err := svc.CreateVehicle(ctx, "Tiny", "", "", 0); !apperrors.IsValidation(err) {
		t.Fatalf("expected validation error for capacity 0, got %v", err)
	}
	if _, err := svc.CreateVehicle(ctx, "Bus", "", "", 15); !apperrors.IsValidation(err) {
		t.Fatalf("expected validation error for capacity 15, got %v", err)
	}
	if _, err := svc.CreateVehicle(ctx, "Van", "", "", 14); err != nil {
		t.Fatalf("capacity 14 should be allowed: %v", err)
	}
}

func TestClockInAndOut(t *testing.T) {
	svc := New(memory.New(), nil)
	ctx := context.Background()

	d, err := svc.CreateDriver(ctx, "Marcus Lee", "509-555-0110", "marcus@example.com")
	if err != nil {
		t.Fatalf("create driver: %v", err)
	}

	start := time.Date(2025, 6, 2, 8, 0, 0, 0, time.UTC)
	card, err := svc.ClockIn(ctx, d.ID, start)
	if err != nil {
		t.Fatalf("clock in: %v", err)
	}
	if card.WorkDate != "2025-06-02" {
		t.Fatalf("work date not derived: %q", card.WorkDate)
	}
	if !card.Open() {
		t.Fatalf("fresh card should be open")
	}

	// A second clock-in while the first shift runs is rejected.
	if _, err := svc.ClockIn(ctx, d.ID, start.Add(time.Hour)); !apperrors.IsConflict(err) {
		t.Fatalf("expected conflict for second open card, got %v", err)
	}

	closed, err := svc.ClockOut(ctx, card.ID, start.Add(8*time.Hour), 30, "lunch at the shop")
	if err != nil {
		t.Fatalf("clock out: %v", err)
	}
	if closed.WorkedMinutes() != 8*60-30 {
		t.Fatalf("worked minutes: want %d, got %d", 8*60-30, closed.WorkedMinutes())
	}

	// Closed cards stay closed.
	if _, err := svc.ClockOut(ctx, card.ID, start.Add(9*time.Hour), 0, ""); !apperrors.IsConflict(err) {
		t.Fatalf("expected conflict closing a closed card, got %v", err)
	}

	// And the driver can start a new shift.
	if _, err := svc.ClockIn(ctx, d.ID, start.Add(24*time.Hour)); err != nil {
		t.Fatalf("clock in next day: %v", err)
	}
}

func TestClockOutValidation(t *testing.T) {
	svc := New(memory.New(), nil)
	ctx := context.Background()

	d, err := svc.CreateDriver(ctx, "Marcus Lee", "", "")
	if err != nil {
		t.Fatalf("create driver: %v", err)
	}
	start := time.Date(2025, 6, 2, 8, 0, 0, 0, time.UTC)
	card, err := svc.ClockIn(ctx, d.ID, start)
	if err != nil {
		t.Fatalf("clock in: %v", err)
	}

	if _, err := svc.ClockOut(ctx, card.ID, start.Add(-time.Hour), 0, ""); !apperrors.IsValidation(err) {
		t.Fatalf("expected validation error for clock-out before clock-in, got %v", err)
	}
	if _, err := svc.ClockOut(ctx, card.ID, start.Add(time.Hour), -5, ""); !apperrors.IsValidation(err) {
		t.Fatalf("expected validation error for negative break, got %v", err)
	}
}

func TestClockInRequiresActiveDriver(t *testing.T) {
	svc := New(memory.New(), nil)
	ctx := context.Background()

	d, err := svc.CreateDriver(ctx, "Marcus Lee", "", "")
	if err != nil {
		t.Fatalf("create driver: %v", err)
	}
	if _, err := svc.DeactivateDriver(ctx, d.ID); err != nil {
		t.Fatalf("deactivate: %v", err)
	}

	if _, err := svc.ClockIn(ctx, d.ID, time.Time{}); !apperrors.IsValidation(err) {
		t.Fatalf("expected validation error for inactive driver, got %v", err)
	}
}

func TestListTimeCardsRange(t *testing.T) {
	svc := New(memory.New(), nil)
	ctx := context.Background()

	d, err := svc.CreateDriver(ctx, "Marcus Lee", "", "")
	if err != nil {
		t.Fatalf("create driver: %v", err)
	}

	day1 := time.Date(2025, 6, 2, 8, 0, 0, 0, time.UTC)
	day2 := day1.Add(24 * time.Hour)
	for _, start := range []time.Time{day1, day2} {
		card, err := svc.ClockIn(ctx, d.ID, start)
		if err != nil {
			t.Fatalf("clock in: %v", err)
		}
		if _, err := svc.ClockOut(ctx, card.ID, start.Add(6*time.Hour), 0, ""); err != nil {
			t.Fatalf("clock out: %v", err)
		}
	}

	cards, err := svc.ListTimeCards(ctx, d.ID, day1, day1.Add(12*time.Hour))
	if err != nil {
		t.Fatalf("list time cards: %v", err)
	}
	if len(cards) != 1 {
		t.Fatalf("expected 1 card in range, got %d", len(cards))
	}

	if _, err := svc.ListTimeCards(ctx, d.ID, day2, day1); !apperrors.IsValidation(err) {
		t.Fatalf("expected validation error for inverted range, got %v", err)
	}
}
