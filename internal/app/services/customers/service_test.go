package customers

import (
	"context"
	"testing"

	"github.com/walla-walla-travel/tourops/internal/app/storage/memory"
	apperrors "github.com/walla-walla-travel/tourops/internal/errors"
)

func TestCustomerLifecycle(t *testing.T) {
	svc := New(memory.New(), nil)
	ctx := context.Background()

	created, err := svc.Create(ctx, "  Dana Meyer ", "dana@example.com", "509-555-0101", "prefers morning pickups")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if created.Name != "Dana Meyer" {
		t.Fatalf("name not trimmed: %q", created.Name)
	}
	if !created.Active {
		t.Fatalf("new customer should start active")
	}

	newPhone := "509-555-0202"
	updated, err := svc.Update(ctx, created.ID, nil, nil, &newPhone, nil)
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Phone != newPhone || updated.Name != "Dana Meyer" {
		t.Fatalf("partial update wrong: %#v", updated)
	}

	deactivated, err := svc.Deactivate(ctx, created.ID)
	if err != nil {
		t.Fatalf("deactivate: %v", err)
	}
	if deactivated.Active {
		t.Fatalf("customer still active after deactivate")
	}

	active, err := svc.List(ctx, false)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(active) != 0 {
		t.Fatalf("deactivated customer still listed: %d", len(active))
	}

	all, err := svc.List(ctx, true)
	if err != nil {
		t.Fatalf("list all: %v", err)
	}
	if len(all) != 1 {
		t.Fatalf("expected 1 customer in full listing, got %d", len(all))
	}

	if _, err := svc.Reactivate(ctx, created.ID); err != nil {
		t.Fatalf("reactivate: %v", err)
	}
}

func TestCreateRejectsBadInput(t *testing.T) {
	svc := New(memory.New(), nil)
	ctx := context.Background()

	if _, err := svc.Create(ctx, "", "dana@example.com", "", ""); !apperrors.IsValidation(err) {
		t.Fatalf("expected validation error for empty name, got %v", err)
	}
	if _, err := svc.Create(ctx, "Dana", "", "", ""); !apperrors.IsValidation(err) {
		t.Fatalf("expected validation error for empty email, got %v", err)
	}
	if _, err := svc.Create(ctx, "Dana", "not-an-email", "", ""); !apperrors.IsValidation(err) {
		t.Fatalf("expected validation error for malformed email, got %v", err)
	}
}

func TestEmailUniqueAmongActiveCustomers(t *testing.T) {
	svc := New(memory.New(), nil)
	ctx := context.Background()

	first, err := svc.Create(ctx, "Dana", "dana@example.com", "", "")
	if err != nil {
		t.Fatalf("create first: %v", err)
	}

	if _, err := svc.Create(ctx, "Other Dana", "DANA@example.com", "", ""); !apperrors.IsConflict(err) {
		t.Fatalf("expected conflict for duplicate email, got %v", err)
	}

	// Deactivating the holder frees the address.
	if _, err := svc.Deactivate(ctx, first.ID); err != nil {
		t.Fatalf("deactivate: %v", err)
	}
	second, err := svc.Create(ctx, "Other Dana", "dana@example.com", "", "")
	if err != nil {
		t.Fatalf("create after deactivate: %v", err)
	}

	// And the original cannot come back while the address is taken.
	if _, err := svc.Reactivate(ctx, first.ID); !apperrors.IsConflict(err) {
		t.Fatalf("expected conflict reactivating with taken email, got %v", err)
	}

	if _, err := svc.Deactivate(ctx, second.ID); err != nil {
		t.Fatalf("deactivate second: %v", err)
	}
	if _, err := svc.Reactivate(ctx, first.ID); err != nil {
		t.Fatalf("reactivate after email freed: %v", err)
	}
}

func TestGetMissingCustomer(t *testing.T) {
	svc := New(memory.New(), nil)
	if _, err := svc.Get(context.Background(), "missing"); !apperrors.IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestUpdateRejectsEmptyName(t *testing.T) {
	svc := New(memory.New(), nil)
	ctx := context.Background()

	created, err := svc.Create(ctx, "Dana", "dana@example.com", "", "")
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	empty := "   "
	if _, err := svc.Update(ctx, created.ID, &empty, nil, nil, nil); !apperrors.IsValidation(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
}
