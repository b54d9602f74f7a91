//go:build integration && postgres

package httpapi

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/joho/godotenv"

	app "github.com/walla-walla-travel/tourops/internal/app"
	"github.com/walla-walla-travel/tourops/internal/app/auth"
	"github.com/walla-walla-travel/tourops/internal/app/domain/booking"
	"github.com/walla-walla-travel/tourops/internal/app/domain/invoice"
	"github.com/walla-walla-travel/tourops/internal/app/storage/postgres"
	"github.com/walla-walla-travel/tourops/internal/app/services/bookings"
	"github.com/walla-walla-travel/tourops/internal/config"
	"github.com/walla-walla-travel/tourops/internal/platform/database"
	"github.com/walla-walla-travel/tourops/internal/platform/migrations"
	"github.com/walla-walla-travel/tourops/internal/pricing"
	"github.com/walla-walla-travel/tourops/pkg/logger"
)

// TestPostgresAPIFlow drives the API against a real database:
//
//	DATABASE_URL=postgres://... go test -tags "integration postgres" ./internal/app/httpapi
func TestPostgresAPIFlow(t *testing.T) {
	_ = godotenv.Load("../../../.env")

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.Database.DSN == "" {
		t.Skip("DATABASE_URL not set")
	}

	ctx := context.Background()
	db, err := database.Open(ctx, cfg.Database)
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	defer db.Close()

	if err := migrations.Apply(ctx, db); err != nil {
		t.Fatalf("apply migrations: %v", err)
	}
	if _, err := db.ExecContext(ctx, `TRUNCATE customers, wineries, vehicles, drivers, time_cards,
		bookings, proposals, invoices, invoice_events, invoice_counters, audit_log
		RESTART IDENTITY CASCADE`); err != nil {
		t.Fatalf("reset tables: %v", err)
	}

	store := postgres.New(db)
	application, err := app.New(cfg, app.Stores{
		Customers: store,
		Wineries:  store,
		Fleet:     store,
		Bookings:  store,
		Proposals: store,
		Invoices:  store,
	}, logger.NewDefault("httpapi-integration"))
	if err != nil {
		t.Fatalf("build application: %v", err)
	}

	mgr, err := auth.NewManager(config.AuthConfig{
		JWTSecret: "integration-secret",
		Users:     "ops:winery-pass:admin",
	})
	if err != nil {
		t.Fatalf("build auth manager: %v", err)
	}

	h, err := NewHandler(application, Config{Auth: mgr, DB: db, Version: "integration"})
	if err != nil {
		t.Fatalf("build handler: %v", err)
	}

	rec := doRequest(t, h, http.MethodGet, "/readyz", "", nil)
	wantStatus(t, rec, http.StatusOK)

	token := loginAs(t, h, "ops", "winery-pass")
	c := createCustomerVia(t, h, token, "Avery Collins", "avery@example.com")

	rec = doRequest(t, h, http.MethodPost, "/bookings", token, bookings.CreateRequest{
		CustomerID:    c.ID,
		Kind:          pricing.TourPrivateHourly,
		TourDate:      time.Date(2026, time.March, 4, 10, 0, 0, 0, time.UTC),
		DurationHours: 4,
		PartySize:     4,
	})
	wantStatus(t, rec, http.StatusCreated)
	var b booking.Booking
	decodeBody(t, rec, &b)
	if b.QuoteTotalCents != 48146 {
		t.Fatalf("booking total = %d, want 48146", b.QuoteTotalCents)
	}

	rec = doRequest(t, h, http.MethodPost, "/bookings/"+b.ID+"/confirm", token, nil)
	wantStatus(t, rec, http.StatusOK)

	rec = doRequest(t, h, http.MethodPost, "/invoices", token, map[string]string{
		"BookingID": b.ID,
		"Memo":      "Integration run.",
	})
	wantStatus(t, rec, http.StatusCreated)
	var inv invoice.Invoice
	decodeBody(t, rec, &inv)

	rec = doRequest(t, h, http.MethodPost, "/invoices/"+inv.ID+"/send", token, nil)
	wantStatus(t, rec, http.StatusOK)
	decodeBody(t, rec, &inv)

	rec = doRequest(t, h, http.MethodGet, "/i/"+inv.AccessToken, "", nil)
	wantStatus(t, rec, http.StatusOK)

	rec = doRequest(t, h, http.MethodGet, "/invoices/"+inv.ID+"/events", token, nil)
	wantStatus(t, rec, http.StatusOK)
	var summaries []struct {
		ToStatus invoice.Status `json:"to_status"`
	}
	decodeBody(t, rec, &summaries)
	if len(summaries) != 2 {
		t.Fatalf("event summaries = %d, want 2", len(summaries))
	}

	// The audit sink writes rows for every staff request.
	var audited int
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM audit_log WHERE username = 'ops'`).Scan(&audited); err != nil {
		t.Fatalf("count audit rows: %v", err)
	}
	if audited == 0 {
		t.Fatal("no audit rows were written")
	}
}
