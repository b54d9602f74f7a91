package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	_ "github.com/lib/pq"

	"github.com/walla-walla-travel/tourops/internal/app/domain/customer"
	"github.com/walla-walla-travel/tourops/internal/app/domain/invoice"
	"github.com/walla-walla-travel/tourops/internal/app/storage"
	"github.com/walla-walla-travel/tourops/internal/pricing"
)

func TestGetCustomerNotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock new: %v", err)
	}
	defer db.Close()

	mock.ExpectQuery("SELECT id, name, email").WillReturnError(sql.ErrNoRows)

	store := New(db)
	if _, err := store.GetCustomer(context.Background(), "missing"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestCreateInvoiceAssignsNumber(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock new: %v", err)
	}
	defer db.Close()

	year := time.Now().UTC().Year()
	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO invoice_counters").
		WithArgs(year).
		WillReturnRows(sqlmock.NewRows([]string{"last_value"}).AddRow(7))
	mock.ExpectExec("INSERT INTO invoices").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	store := New(db)
	created, err := store.CreateInvoice(context.Background(), invoice.Invoice{
		CustomerID: "cust-1",
		Status:     invoice.StatusDraft,
		Items:      []pricing.LineItem{{Kind: pricing.ItemService, Description: "Private tour", Quantity: 4, UnitCents: 9500, AmountCents: 38000}},
	})
	if err != nil {
		t.Fatalf("create invoice: %v", err)
	}

	want := fmt.Sprintf("INV-%d-000007", year)
	if created.Number != want {
		t.Fatalf("expected number %s, got %s", want, created.Number)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestCreateInvoiceKeepsExplicitNumber(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock new: %v", err)
	}
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO invoices").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	store := New(db)
	created, err := store.CreateInvoice(context.Background(), invoice.Invoice{
		Number:     "INV-2024-000042",
		CustomerID: "cust-1",
		Status:     invoice.StatusDraft,
	})
	if err != nil {
		t.Fatalf("create invoice: %v", err)
	}
	if created.Number != "INV-2024-000042" {
		t.Fatalf("explicit number replaced: %s", created.Number)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func invoiceRows() *sqlmock.Rows {
	now := time.Now().UTC()
	return sqlmock.NewRows([]string{
		"id", "number", "customer_id", "booking_id", "proposal_id", "status", "items",
		"service_cents", "wait_cents", "subtotal_cents", "gratuity_cents", "tax_cents",
		"total_cents", "deposit_cents", "access_token", "memo", "due_date",
		"sent_at", "viewed_at", "accepted_at", "created_at", "updated_at",
	}).AddRow(
		"inv-1", "INV-2025-000003", "cust-1", "", "", "draft", []byte(`[]`),
		int64(38000), int64(0), int64(38000), int64(6840), int64(3306),
		int64(48146), int64(12037), "", "", nil,
		nil, nil, nil, now, now,
	)
}

func TestUpdateInvoiceWithEventWritesAtomically(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock new: %v", err)
	}
	defer db.Close()

	mock.ExpectQuery("SELECT id, number, customer_id").WillReturnRows(invoiceRows())
	mock.ExpectBegin()
	mock.ExpectExec("UPDATE invoices").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO invoice_events").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	store := New(db)
	updated, err := store.UpdateInvoiceWithEvent(context.Background(),
		invoice.Invoice{ID: "inv-1", Number: "tampered", CustomerID: "cust-1", Status: invoice.StatusSent},
		invoice.Event{FromStatus: invoice.StatusDraft, ToStatus: invoice.StatusSent, Actor: "ops", Snapshot: []byte(`{}`)})
	if err != nil {
		t.Fatalf("update invoice with event: %v", err)
	}

	if updated.Number != "INV-2025-000003" {
		t.Fatalf("stored number not preserved: %s", updated.Number)
	}
	if updated.Status != invoice.StatusSent {
		t.Fatalf("status not applied: %s", updated.Status)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestUpdateInvoiceWithEventMissingInvoice(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock new: %v", err)
	}
	defer db.Close()

	mock.ExpectQuery("SELECT id, number, customer_id").WillReturnError(sql.ErrNoRows)

	store := New(db)
	_, err = store.UpdateInvoiceWithEvent(context.Background(),
		invoice.Invoice{ID: "nope", Status: invoice.StatusSent},
		invoice.Event{FromStatus: invoice.StatusDraft, ToStatus: invoice.StatusSent})
	if !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestStoreIntegration(t *testing.T) {
	dsn := os.Getenv("TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("TEST_POSTGRES_DSN not set; skipping postgres integration test")
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	defer db.Close()

	store := New(db)

	ctx := context.Background()
	cust, err := store.CreateCustomer(ctx, customer.Customer{Name: "Dana Meyer", Email: "dana@example.com", Active: true})
	if err != nil {
		t.Fatalf("create customer: %v", err)
	}

	inv, err := store.CreateInvoice(ctx, invoice.Invoice{
		CustomerID: cust.ID,
		Status:     invoice.StatusDraft,
		Items:      []pricing.LineItem{{Kind: pricing.ItemService, Description: "Transfer (local zone)", Quantity: 1, UnitCents: 4500, AmountCents: 4500}},
		TotalCents: 4500,
	})
	if err != nil {
		t.Fatalf("create invoice: %v", err)
	}
	if inv.Number == "" {
		t.Fatalf("invoice number not assigned")
	}

	inv.Status = invoice.StatusSent
	if _, err := store.UpdateInvoiceWithEvent(ctx, inv, invoice.Event{
		FromStatus: invoice.StatusDraft,
		ToStatus:   invoice.StatusSent,
		Actor:      "integration",
		Snapshot:   []byte(`{}`),
	}); err != nil {
		t.Fatalf("update invoice with event: %v", err)
	}

	events, err := store.ListInvoiceEvents(ctx, inv.ID)
	if err != nil {
		t.Fatalf("list invoice events: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
}
