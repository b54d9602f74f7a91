package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	app "github.com/walla-walla-travel/tourops/internal/app"
	"github.com/walla-walla-travel/tourops/internal/app/auth"
	"github.com/walla-walla-travel/tourops/internal/app/domain/booking"
	"github.com/walla-walla-travel/tourops/internal/app/domain/customer"
	"github.com/walla-walla-travel/tourops/internal/app/domain/fleet"
	"github.com/walla-walla-travel/tourops/internal/app/domain/invoice"
	"github.com/walla-walla-travel/tourops/internal/app/domain/proposal"
	"github.com/walla-walla-travel/tourops/internal/app/domain/winery"
	"github.com/walla-walla-travel/tourops/internal/app/events"
	appmetrics "github.com/walla-walla-travel/tourops/internal/app/metrics"
	"github.com/walla-walla-travel/tourops/internal/app/services/bookings"
	"github.com/walla-walla-travel/tourops/internal/config"
	"github.com/walla-walla-travel/tourops/internal/pricing"
	"github.com/walla-walla-travel/tourops/pkg/logger"
)

// weekdayTour is a Wednesday so the weekday rate tier applies.
var weekdayTour = time.Date(2026, time.March, 4, 10, 0, 0, 0, time.UTC)

func newTestAPI(t *testing.T) (http.Handler, *app.Application) {
	t.Helper()

	application, err := app.New(nil, app.Stores{}, logger.NewDefault("httpapi-test"))
	if err != nil {
		t.Fatalf("build application: %v", err)
	}

	mgr, err := auth.NewManager(config.AuthConfig{
		JWTSecret: "httpapi-test-secret",
		Users:     "ops:winery-pass:admin;desk:front-pass:staff",
		APITokens: "tok-integration",
	})
	if err != nil {
		t.Fatalf("build auth manager: %v", err)
	}

	h, err := NewHandler(application, Config{
		Auth:    mgr,
		Metrics: appmetrics.New(),
		Version: "test",
	})
	if err != nil {
		t.Fatalf("build handler: %v", err)
	}
	return h, application
}

func doRequest(t *testing.T, h http.Handler, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode request body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, dst interface{}) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), dst); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
}

func wantStatus(t *testing.T, rec *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rec.Code != want {
		t.Fatalf("status = %d, want %d (body %s)", rec.Code, want, rec.Body.String())
	}
}

func loginAs(t *testing.T, h http.Handler, username, password string) string {
	t.Helper()
	rec := doRequest(t, h, http.MethodPost, "/auth/login", "", map[string]string{
		"Username": username,
		"Password": password,
	})
	wantStatus(t, rec, http.StatusOK)

	var resp struct {
		Token string `json:"token"`
	}
	decodeBody(t, rec, &resp)
	if resp.Token == "" {
		t.Fatal("login returned an empty token")
	}
	return resp.Token
}

func createCustomerVia(t *testing.T, h http.Handler, token, name, email string) customer.Customer {
	t.Helper()
	rec := doRequest(t, h, http.MethodPost, "/customers", token, map[string]string{
		"Name":  name,
		"Email": email,
	})
	wantStatus(t, rec, http.StatusCreated)
	var c customer.Customer
	decodeBody(t, rec, &c)
	return c
}

func TestHealthEndpoints(t *testing.T) {
	h, _ := newTestAPI(t)

	rec := doRequest(t, h, http.MethodGet, "/healthz", "", nil)
	wantStatus(t, rec, http.StatusOK)
	var health struct {
		Status  string `json:"status"`
		Service string `json:"service"`
		Version string `json:"version"`
	}
	decodeBody(t, rec, &health)
	if health.Status != "ok" || health.Service != "tourops" || health.Version != "test" {
		t.Fatalf("unexpected health payload: %+v", health)
	}

	rec = doRequest(t, h, http.MethodGet, "/readyz", "", nil)
	wantStatus(t, rec, http.StatusOK)

	rec = doRequest(t, h, http.MethodGet, "/metrics", "", nil)
	wantStatus(t, rec, http.StatusOK)
}

func TestLoginAndMe(t *testing.T) {
	h, _ := newTestAPI(t)

	rec := doRequest(t, h, http.MethodPost, "/auth/login", "", map[string]string{
		"Username": "ops",
		"Password": "wrong",
	})
	wantStatus(t, rec, http.StatusUnauthorized)

	rec = doRequest(t, h, http.MethodGet, "/auth/me", "", nil)
	wantStatus(t, rec, http.StatusUnauthorized)

	token := loginAs(t, h, "ops", "winery-pass")
	rec = doRequest(t, h, http.MethodGet, "/auth/me", token, nil)
	wantStatus(t, rec, http.StatusOK)
	var me struct {
		Username string `json:"username"`
		Role     string `json:"role"`
	}
	decodeBody(t, rec, &me)
	if me.Username != "ops" || me.Role != auth.RoleAdmin {
		t.Fatalf("me = %+v, want ops/admin", me)
	}

	// Static API tokens resolve to the shared staff identity.
	rec = doRequest(t, h, http.MethodGet, "/auth/me", "tok-integration", nil)
	wantStatus(t, rec, http.StatusOK)
	decodeBody(t, rec, &me)
	if me.Role != auth.RoleStaff {
		t.Fatalf("static token role = %q, want %q", me.Role, auth.RoleStaff)
	}
}

func TestCustomerEndpoints(t *testing.T) {
	h, _ := newTestAPI(t)
	token := loginAs(t, h, "ops", "winery-pass")

	c := createCustomerVia(t, h, token, "Avery Collins", "avery@example.com")
	if c.ID == "" || !c.Active {
		t.Fatalf("created customer = %+v", c)
	}

	// Same email again conflicts.
	rec := doRequest(t, h, http.MethodPost, "/customers", token, map[string]string{
		"Name":  "Avery C.",
		"Email": "AVERY@example.com",
	})
	wantStatus(t, rec, http.StatusConflict)

	rec = doRequest(t, h, http.MethodPatch, "/customers/"+c.ID, token, map[string]string{
		"Phone": "509-555-0147",
	})
	wantStatus(t, rec, http.StatusOK)
	var updated customer.Customer
	decodeBody(t, rec, &updated)
	if updated.Phone != "509-555-0147" || updated.Name != "Avery Collins" {
		t.Fatalf("patched customer = %+v", updated)
	}

	rec = doRequest(t, h, http.MethodPost, "/customers/"+c.ID+"/deactivate", token, nil)
	wantStatus(t, rec, http.StatusOK)

	var list []customer.Customer
	rec = doRequest(t, h, http.MethodGet, "/customers", token, nil)
	wantStatus(t, rec, http.StatusOK)
	decodeBody(t, rec, &list)
	if len(list) != 0 {
		t.Fatalf("active list has %d entries, want 0", len(list))
	}

	rec = doRequest(t, h, http.MethodGet, "/customers?include_inactive=true", token, nil)
	wantStatus(t, rec, http.StatusOK)
	decodeBody(t, rec, &list)
	if len(list) != 1 {
		t.Fatalf("full list has %d entries, want 1", len(list))
	}

	rec = doRequest(t, h, http.MethodGet, "/customers/missing", token, nil)
	wantStatus(t, rec, http.StatusNotFound)
	var errResp struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	decodeBody(t, rec, &errResp)
	if errResp.Error.Code != "NOT_FOUND" {
		t.Fatalf("error code = %q, want NOT_FOUND", errResp.Error.Code)
	}
}

func TestQuoteAndRates(t *testing.T) {
	h, _ := newTestAPI(t)
	token := loginAs(t, h, "desk", "front-pass")

	rec := doRequest(t, h, http.MethodPost, "/quotes", token, map[string]interface{}{
		"Kind":      pricing.TourPrivateHourly,
		"TourDate":  weekdayTour,
		"PartySize": 4,
		"Hours":     4,
	})
	wantStatus(t, rec, http.StatusOK)
	var quote pricing.Quote
	decodeBody(t, rec, &quote)
	if quote.TotalCents != 48146 || quote.DepositCents != 12037 {
		t.Fatalf("quote totals = %d/%d, want 48146/12037", quote.TotalCents, quote.DepositCents)
	}

	rec = doRequest(t, h, http.MethodPost, "/quotes", token, map[string]interface{}{
		"Kind":     "hot-air-balloon",
		"TourDate": weekdayTour,
	})
	wantStatus(t, rec, http.StatusBadRequest)

	rec = doRequest(t, h, http.MethodGet, "/rates", token, nil)
	wantStatus(t, rec, http.StatusOK)
	var card pricing.RateCard
	decodeBody(t, rec, &card)
	if card.MinimumHours != 4 {
		t.Fatalf("rate card minimum hours = %d, want 4", card.MinimumHours)
	}
}

func TestBookingLifecycle(t *testing.T) {
	h, _ := newTestAPI(t)
	token := loginAs(t, h, "ops", "winery-pass")
	c := createCustomerVia(t, h, token, "Jordan Lee", "jordan@example.com")

	rec := doRequest(t, h, http.MethodPost, "/wineries", token, map[string]interface{}{
		"Name":         "Basalt Cellars",
		"Region":       "SeVein",
		"MaxGroupSize": 10,
	})
	wantStatus(t, rec, http.StatusCreated)
	var stop winery.Winery
	decodeBody(t, rec, &stop)

	rec = doRequest(t, h, http.MethodPost, "/vehicles", token, map[string]interface{}{
		"Name":     "Sprinter 1",
		"Make":     "Mercedes-Benz",
		"Model":    "Sprinter",
		"Capacity": 8,
	})
	wantStatus(t, rec, http.StatusCreated)
	var van fleet.Vehicle
	decodeBody(t, rec, &van)

	rec = doRequest(t, h, http.MethodPost, "/drivers", token, map[string]string{
		"Name": "Morgan Reyes",
	})
	wantStatus(t, rec, http.StatusCreated)
	var driver fleet.Driver
	decodeBody(t, rec, &driver)

	rec = doRequest(t, h, http.MethodPost, "/bookings", token, bookings.CreateRequest{
		CustomerID:    c.ID,
		Kind:          pricing.TourPrivateHourly,
		TourDate:      weekdayTour,
		DurationHours: 4,
		PartySize:     4,
		WineryStops:   []string{stop.ID},
	})
	wantStatus(t, rec, http.StatusCreated)
	var b booking.Booking
	decodeBody(t, rec, &b)
	if b.Status != booking.StatusPending || b.QuoteTotalCents != 48146 {
		t.Fatalf("created booking = status %q total %d", b.Status, b.QuoteTotalCents)
	}

	rec = doRequest(t, h, http.MethodPost, "/bookings/"+b.ID+"/assign-vehicle", token, map[string]string{
		"VehicleID": van.ID,
	})
	wantStatus(t, rec, http.StatusOK)

	rec = doRequest(t, h, http.MethodPost, "/bookings/"+b.ID+"/assign-driver", token, map[string]string{
		"DriverID": driver.ID,
	})
	wantStatus(t, rec, http.StatusOK)

	rec = doRequest(t, h, http.MethodPost, "/bookings/"+b.ID+"/confirm", token, nil)
	wantStatus(t, rec, http.StatusOK)
	decodeBody(t, rec, &b)
	if b.Status != booking.StatusConfirmed || b.ConfirmedAt.IsZero() {
		t.Fatalf("confirmed booking = %+v", b)
	}

	rec = doRequest(t, h, http.MethodPost, "/bookings/"+b.ID+"/complete", token, nil)
	wantStatus(t, rec, http.StatusOK)
	decodeBody(t, rec, &b)
	if b.Status != booking.StatusCompleted {
		t.Fatalf("booking status = %q, want completed", b.Status)
	}

	var list []booking.Booking
	rec = doRequest(t, h, http.MethodGet, "/bookings?customer_id="+c.ID, token, nil)
	wantStatus(t, rec, http.StatusOK)
	decodeBody(t, rec, &list)
	if len(list) != 1 {
		t.Fatalf("bookings for customer = %d, want 1", len(list))
	}

	rec = doRequest(t, h, http.MethodGet, "/bookings?status=confirmed", token, nil)
	wantStatus(t, rec, http.StatusOK)
	decodeBody(t, rec, &list)
	if len(list) != 0 {
		t.Fatalf("confirmed bookings = %d, want 0", len(list))
	}

	// A party the stop cannot host is rejected up front.
	rec = doRequest(t, h, http.MethodPost, "/bookings", token, bookings.CreateRequest{
		CustomerID:    c.ID,
		Kind:          pricing.TourPrivateHourly,
		TourDate:      weekdayTour.Add(48 * time.Hour),
		DurationHours: 4,
		PartySize:     12,
		WineryStops:   []string{stop.ID},
	})
	wantStatus(t, rec, http.StatusBadRequest)

	rec = doRequest(t, h, http.MethodPost, "/bookings", token, bookings.CreateRequest{
		CustomerID:   c.ID,
		Kind:         pricing.TourTransfer,
		TourDate:     weekdayTour.Add(72 * time.Hour),
		TransferZone: "local",
		PartySize:    2,
	})
	wantStatus(t, rec, http.StatusCreated)
	var transfer booking.Booking
	decodeBody(t, rec, &transfer)

	rec = doRequest(t, h, http.MethodPost, "/bookings/"+transfer.ID+"/cancel", token, map[string]string{
		"Reason": "client canceled",
	})
	wantStatus(t, rec, http.StatusOK)
	decodeBody(t, rec, &transfer)
	if transfer.Status != booking.StatusCanceled || transfer.CanceledAt.IsZero() {
		t.Fatalf("canceled booking = %+v", transfer)
	}
}

func TestTimeCardEndpoints(t *testing.T) {
	h, _ := newTestAPI(t)
	token := loginAs(t, h, "ops", "winery-pass")

	rec := doRequest(t, h, http.MethodPost, "/drivers", token, map[string]string{
		"Name": "Sam Okafor",
	})
	wantStatus(t, rec, http.StatusCreated)
	var driver fleet.Driver
	decodeBody(t, rec, &driver)

	rec = doRequest(t, h, http.MethodPost, "/drivers/"+driver.ID+"/clock-in", token, nil)
	wantStatus(t, rec, http.StatusCreated)
	var card fleet.TimeCard
	decodeBody(t, rec, &card)
	if card.ClockIn.IsZero() || !card.ClockOut.IsZero() {
		t.Fatalf("open card = %+v", card)
	}

	// A second clock-in while a card is open conflicts.
	rec = doRequest(t, h, http.MethodPost, "/drivers/"+driver.ID+"/clock-in", token, nil)
	wantStatus(t, rec, http.StatusConflict)

	rec = doRequest(t, h, http.MethodPost, "/timecards/"+card.ID+"/clock-out", token, map[string]interface{}{
		"BreakMinutes": 30,
		"Notes":        "two tastings, one transfer",
	})
	wantStatus(t, rec, http.StatusOK)
	decodeBody(t, rec, &card)
	if card.ClockOut.IsZero() || card.BreakMinutes != 30 {
		t.Fatalf("closed card = %+v", card)
	}

	var cards []fleet.TimeCard
	rec = doRequest(t, h, http.MethodGet, "/drivers/"+driver.ID+"/timecards", token, nil)
	wantStatus(t, rec, http.StatusOK)
	decodeBody(t, rec, &cards)
	if len(cards) != 1 {
		t.Fatalf("timecards = %d, want 1", len(cards))
	}

	rec = doRequest(t, h, http.MethodGet, "/drivers/"+driver.ID+"/timecards?from=not-a-date", token, nil)
	wantStatus(t, rec, http.StatusBadRequest)
}

func TestProposalFlow(t *testing.T) {
	h, _ := newTestAPI(t)
	token := loginAs(t, h, "ops", "winery-pass")
	c := createCustomerVia(t, h, token, "Riley Nguyen", "riley@example.com")

	rec := doRequest(t, h, http.MethodPost, "/proposals", token, map[string]interface{}{
		"CustomerID": c.ID,
		"Quote": pricing.QuoteRequest{
			Kind:      pricing.TourPrivateHourly,
			TourDate:  weekdayTour,
			PartySize: 4,
			Hours:     4,
		},
		"Message": "A day in the Rocks District.",
	})
	wantStatus(t, rec, http.StatusCreated)
	var p proposal.Proposal
	decodeBody(t, rec, &p)
	if p.Status != proposal.StatusDraft || p.Quote.TotalCents != 48146 {
		t.Fatalf("draft proposal = status %q total %d", p.Status, p.Quote.TotalCents)
	}

	rec = doRequest(t, h, http.MethodPost, "/proposals/"+p.ID+"/send", token, nil)
	wantStatus(t, rec, http.StatusOK)
	decodeBody(t, rec, &p)
	if p.Status != proposal.StatusSent || len(p.AccessToken) != 64 {
		t.Fatalf("sent proposal = status %q token %q", p.Status, p.AccessToken)
	}

	// The customer link needs no credentials and marks the first view.
	rec = doRequest(t, h, http.MethodGet, "/p/"+p.AccessToken, "", nil)
	wantStatus(t, rec, http.StatusOK)
	decodeBody(t, rec, &p)
	if p.Status != proposal.StatusViewed {
		t.Fatalf("viewed proposal status = %q", p.Status)
	}

	rec = doRequest(t, h, http.MethodPost, "/proposals/"+p.ID+"/accept", token, nil)
	wantStatus(t, rec, http.StatusOK)
	decodeBody(t, rec, &p)
	if p.Status != proposal.StatusAccepted || p.ConvertedInvoiceID == "" {
		t.Fatalf("accepted proposal = %+v", p)
	}

	rec = doRequest(t, h, http.MethodGet, "/invoices/"+p.ConvertedInvoiceID, token, nil)
	wantStatus(t, rec, http.StatusOK)
	var inv invoice.Invoice
	decodeBody(t, rec, &inv)
	if inv.Status != invoice.StatusDraft || inv.TotalCents != p.Quote.TotalCents {
		t.Fatalf("converted invoice = status %q total %d", inv.Status, inv.TotalCents)
	}

	// Accepted proposals cannot be declined.
	rec = doRequest(t, h, http.MethodPost, "/proposals/"+p.ID+"/decline", token, nil)
	wantStatus(t, rec, http.StatusBadRequest)
}

func TestInvoiceFlow(t *testing.T) {
	h, _ := newTestAPI(t)
	token := loginAs(t, h, "ops", "winery-pass")
	c := createCustomerVia(t, h, token, "Dana Whitfield", "dana@example.com")

	rec := doRequest(t, h, http.MethodPost, "/invoices", token, map[string]interface{}{
		"BookingID":  "bk_1",
		"CustomerID": c.ID,
	})
	wantStatus(t, rec, http.StatusBadRequest)

	rec = doRequest(t, h, http.MethodPost, "/invoices", token, map[string]interface{}{
		"CustomerID": c.ID,
		"Items": []pricing.LineItem{{
			Kind:        pricing.ItemService,
			Description: "Private barrel tasting",
			Quantity:    1,
			UnitCents:   50000,
		}},
		"Memo": "Net 14.",
	})
	wantStatus(t, rec, http.StatusCreated)
	var inv invoice.Invoice
	decodeBody(t, rec, &inv)
	if inv.Status != invoice.StatusDraft || !strings.HasPrefix(inv.Number, "INV-") {
		t.Fatalf("draft invoice = status %q number %q", inv.Status, inv.Number)
	}

	rec = doRequest(t, h, http.MethodPost, "/invoices/"+inv.ID+"/send", token, nil)
	wantStatus(t, rec, http.StatusOK)
	decodeBody(t, rec, &inv)
	if inv.Status != invoice.StatusSent || inv.DueDate.IsZero() || len(inv.AccessToken) != 64 {
		t.Fatalf("sent invoice = %+v", inv)
	}

	rec = doRequest(t, h, http.MethodGet, "/i/"+inv.AccessToken, "", nil)
	wantStatus(t, rec, http.StatusOK)
	decodeBody(t, rec, &inv)
	if inv.Status != invoice.StatusViewed {
		t.Fatalf("viewed invoice status = %q", inv.Status)
	}

	rec = doRequest(t, h, http.MethodPost, "/invoices/"+inv.ID+"/accept", token, nil)
	wantStatus(t, rec, http.StatusOK)

	rec = doRequest(t, h, http.MethodGet, "/invoices/"+inv.ID+"/events", token, nil)
	wantStatus(t, rec, http.StatusOK)
	var summaries []struct {
		ToStatus invoice.Status `json:"to_status"`
		Actor    string         `json:"actor"`
		Number   string         `json:"number"`
		Total    int64          `json:"total_cents"`
	}
	decodeBody(t, rec, &summaries)
	if len(summaries) != 3 {
		t.Fatalf("event summaries = %d, want 3", len(summaries))
	}
	if summaries[0].Actor != "ops" || summaries[0].ToStatus != invoice.StatusSent {
		t.Fatalf("first event = %+v", summaries[0])
	}
	if summaries[2].ToStatus != invoice.StatusAccepted || summaries[2].Number != inv.Number {
		t.Fatalf("last event = %+v", summaries[2])
	}
	if summaries[2].Total != inv.TotalCents {
		t.Fatalf("snapshot total = %d, want %d", summaries[2].Total, inv.TotalCents)
	}

	rec = doRequest(t, h, http.MethodGet, "/invoices/"+inv.ID+"/events?full=true", token, nil)
	wantStatus(t, rec, http.StatusOK)
	var evts []invoice.Event
	decodeBody(t, rec, &evts)
	if len(evts) != 3 || len(evts[0].Snapshot) == 0 {
		t.Fatalf("full events = %d entries", len(evts))
	}

	var list []invoice.Invoice
	rec = doRequest(t, h, http.MethodGet, "/invoices?number="+inv.Number, token, nil)
	wantStatus(t, rec, http.StatusOK)
	decodeBody(t, rec, &list)
	if len(list) != 1 || list[0].ID != inv.ID {
		t.Fatalf("lookup by number = %+v", list)
	}
}

func TestAdminEndpoints(t *testing.T) {
	h, _ := newTestAPI(t)
	staff := loginAs(t, h, "desk", "front-pass")
	admin := loginAs(t, h, "ops", "winery-pass")

	rec := doRequest(t, h, http.MethodGet, "/system/status", staff, nil)
	wantStatus(t, rec, http.StatusForbidden)

	rec = doRequest(t, h, http.MethodGet, "/system/status", admin, nil)
	wantStatus(t, rec, http.StatusOK)
	var status map[string]interface{}
	decodeBody(t, rec, &status)
	if status["service"] != "tourops" || status["database"] != "not configured" {
		t.Fatalf("system status = %+v", status)
	}
	if _, ok := status["host"]; !ok {
		t.Fatal("system status is missing host stats")
	}
	if _, ok := status["process"]; !ok {
		t.Fatal("system status is missing process stats")
	}

	// The earlier staff and admin calls are on the audit trail.
	rec = doRequest(t, h, http.MethodGet, "/system/audit", admin, nil)
	wantStatus(t, rec, http.StatusOK)
	var entries []auditEntry
	decodeBody(t, rec, &entries)
	if len(entries) < 2 {
		t.Fatalf("audit entries = %d, want at least 2", len(entries))
	}
	sawDenied := false
	for _, e := range entries {
		if e.User == "desk" && e.Path == "/system/status" && e.Status == http.StatusForbidden {
			sawDenied = true
		}
	}
	if !sawDenied {
		t.Fatal("audit trail is missing the denied staff request")
	}

	rec = doRequest(t, h, http.MethodGet, "/system/audit?limit=1", admin, nil)
	wantStatus(t, rec, http.StatusOK)
	decodeBody(t, rec, &entries)
	if len(entries) != 1 {
		t.Fatalf("limited audit entries = %d, want 1", len(entries))
	}

	rec = doRequest(t, h, http.MethodGet, "/system/audit?limit=bogus", admin, nil)
	wantStatus(t, rec, http.StatusBadRequest)
}

func TestOpsWebsocket(t *testing.T) {
	h, application := newTestAPI(t)
	srv := httptest.NewServer(h)
	defer srv.Close()

	staff := loginAs(t, h, "desk", "front-pass")
	admin := loginAs(t, h, "ops", "winery-pass")
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/ops"

	_, resp, err := websocket.DefaultDialer.Dial(wsURL, http.Header{
		"Authorization": []string{"Bearer " + staff},
	})
	if err == nil {
		t.Fatal("staff dial succeeded, want forbidden handshake")
	}
	if resp == nil || resp.StatusCode != http.StatusForbidden {
		t.Fatalf("staff handshake response = %+v", resp)
	}

	conn, _, err := websocket.DefaultDialer.Dial(wsURL, http.Header{
		"Authorization": []string{"Bearer " + admin},
	})
	if err != nil {
		t.Fatalf("admin dial: %v", err)
	}
	defer conn.Close()

	// The stream subscribes after the handshake, so wait for the hub to
	// see it before publishing.
	deadline := time.Now().Add(2 * time.Second)
	for application.Hub.Subscribers() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("ops stream never subscribed to the hub")
		}
		time.Sleep(10 * time.Millisecond)
	}

	application.Hub.Publish(events.Event{
		Type:     "booking.confirmed",
		EntityID: "bk_42",
		At:       time.Now().UTC(),
	})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var evt events.Event
	if err := conn.ReadJSON(&evt); err != nil {
		t.Fatalf("read event: %v", err)
	}
	if evt.Type != "booking.confirmed" || evt.EntityID != "bk_42" {
		t.Fatalf("streamed event = %+v", evt)
	}
}
