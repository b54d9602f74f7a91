package proposals

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/walla-walla-travel/tourops/internal/app/domain/customer"
	"github.com/walla-walla-travel/tourops/internal/app/domain/invoice"
	"github.com/walla-walla-travel/tourops/internal/app/domain/proposal"
	"github.com/walla-walla-travel/tourops/internal/app/storage/memory"
	apperrors "github.com/walla-walla-travel/tourops/internal/errors"
	"github.com/walla-walla-travel/tourops/internal/pricing"
	"github.com/walla-walla-travel/tourops/pkg/logger"
)

var weekdayTour = time.Date(2026, time.March, 4, 10, 0, 0, 0, time.UTC)

func newService(t *testing.T, validity time.Duration) (*Service, *memory.Store) {
	t.Helper()
	store := memory.New()
	svc := New(store, store, store, pricing.DefaultRateCard(), validity, nil, logger.NewDefault("proposals-test"))
	return svc, store
}

func seedCustomer(t *testing.T, store *memory.Store) customer.Customer {
	t.Helper()
	c, err := store.CreateCustomer(context.Background(), customer.Customer{
		Name:   "Avery Collins",
		Email:  "avery@example.com",
		Active: true,
	})
	if err != nil {
		t.Fatalf("seed customer: %v", err)
	}
	return c
}

func hourlyRequest() pricing.QuoteRequest {
	return pricing.QuoteRequest{
		Kind:      pricing.TourPrivateHourly,
		TourDate:  weekdayTour,
		PartySize: 4,
		Hours:     5,
	}
}

func TestProposalLifecycle(t *testing.T) {
	svc, store := newService(t, 0)
	ctx := context.Background()
	c := seedCustomer(t, store)

	p, err := svc.CreateDraft(ctx, c.ID, hourlyRequest(), "We'd love to host your group.")
	if err != nil {
		t.Fatalf("CreateDraft: %v", err)
	}
	if p.Status != proposal.StatusDraft {
		t.Fatalf("status = %s, want draft", p.Status)
	}
	if p.Quote.TotalCents == 0 {
		t.Fatal("draft has no priced quote")
	}

	sent, err := svc.Send(ctx, p.ID)
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if sent.Status != proposal.StatusSent {
		t.Fatalf("status = %s, want sent", sent.Status)
	}
	if len(sent.AccessToken) != 64 {
		t.Fatalf("token length = %d, want 64 hex chars", len(sent.AccessToken))
	}
	if sent.SentAt.IsZero() {
		t.Fatal("SentAt not stamped")
	}
	wantExpiry := time.Now().Add(defaultValidity)
	if sent.ExpiresAt.Before(wantExpiry.Add(-time.Minute)) || sent.ExpiresAt.After(wantExpiry.Add(time.Minute)) {
		t.Fatalf("ExpiresAt = %v, want about %v", sent.ExpiresAt, wantExpiry)
	}

	viewed, err := svc.ViewByToken(ctx, sent.AccessToken)
	if err != nil {
		t.Fatalf("ViewByToken: %v", err)
	}
	if viewed.Status != proposal.StatusViewed {
		t.Fatalf("status = %s, want viewed", viewed.Status)
	}
	if viewed.ViewedAt.IsZero() {
		t.Fatal("ViewedAt not stamped")
	}

	accepted, err := svc.Accept(ctx, p.ID)
	if err != nil {
		t.Fatalf("Accept: %v", err)
	}
	if accepted.Status != proposal.StatusAccepted {
		t.Fatalf("status = %s, want accepted", accepted.Status)
	}
	if accepted.DecidedAt.IsZero() {
		t.Fatal("DecidedAt not stamped")
	}
	if accepted.ConvertedInvoiceID == "" {
		t.Fatal("acceptance did not record the converted invoice")
	}

	inv, err := store.GetInvoice(ctx, accepted.ConvertedInvoiceID)
	if err != nil {
		t.Fatalf("GetInvoice: %v", err)
	}
	if inv.Status != invoice.StatusDraft {
		t.Fatalf("invoice status = %s, want draft", inv.Status)
	}
	if inv.ProposalID != p.ID {
		t.Fatalf("invoice proposal = %s, want %s", inv.ProposalID, p.ID)
	}
	if inv.TotalCents != accepted.Quote.TotalCents {
		t.Fatalf("invoice total = %d, want the proposal's %d", inv.TotalCents, accepted.Quote.TotalCents)
	}
	if !strings.HasPrefix(inv.Number, "INV-") {
		t.Fatalf("invoice number = %q, want an assigned INV number", inv.Number)
	}

	if _, err := svc.Accept(ctx, p.ID); !apperrors.IsValidation(err) {
		t.Fatalf("second accept error = %v, want validation", err)
	}
}

func TestResendRefreshesWindowKeepsToken(t *testing.T) {
	svc, store := newService(t, 0)
	ctx := context.Background()
	c := seedCustomer(t, store)

	p, err := svc.CreateDraft(ctx, c.ID, hourlyRequest(), "")
	if err != nil {
		t.Fatalf("CreateDraft: %v", err)
	}
	first, err := svc.Send(ctx, p.ID)
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	second, err := svc.Send(ctx, p.ID)
	if err != nil {
		t.Fatalf("re-Send: %v", err)
	}
	if second.AccessToken != first.AccessToken {
		t.Fatal("re-send must keep the access token")
	}
	if second.Status != proposal.StatusSent {
		t.Fatalf("status = %s, want sent", second.Status)
	}
	if second.ExpiresAt.Before(first.ExpiresAt) {
		t.Fatal("re-send must not shorten the offer window")
	}
}

func TestViewByTokenUnknown(t *testing.T) {
	svc, _ := newService(t, 0)
	if _, err := svc.ViewByToken(context.Background(), "nope"); !apperrors.IsNotFound(err) {
		t.Fatalf("unknown token error = %v, want not found", err)
	}
}

func TestExpiredProposalRendersButCannotBeAccepted(t *testing.T) {
	svc, store := newService(t, time.Millisecond)
	ctx := context.Background()
	c := seedCustomer(t, store)

	p, err := svc.CreateDraft(ctx, c.ID, hourlyRequest(), "")
	if err != nil {
		t.Fatalf("CreateDraft: %v", err)
	}
	sent, err := svc.Send(ctx, p.ID)
	if err != nil {
		t.Fatalf("Send: %v", err)
	}

	time.Sleep(10 * time.Millisecond)

	viewed, err := svc.ViewByToken(ctx, sent.AccessToken)
	if err != nil {
		t.Fatalf("ViewByToken: %v", err)
	}
	if viewed.Status != proposal.StatusSent {
		t.Fatalf("status = %s, expired proposal must not transition on view", viewed.Status)
	}

	if _, err := svc.Accept(ctx, p.ID); !apperrors.IsValidation(err) {
		t.Fatalf("accept expired error = %v, want validation", err)
	}

	count, err := svc.ExpireDue(ctx, time.Now().UTC())
	if err != nil {
		t.Fatalf("ExpireDue: %v", err)
	}
	if count != 1 {
		t.Fatalf("expired %d proposals, want 1", count)
	}

	after, err := svc.ViewByToken(ctx, sent.AccessToken)
	if err != nil {
		t.Fatalf("ViewByToken after expiry: %v", err)
	}
	if after.Status != proposal.StatusExpired {
		t.Fatalf("status = %s, want expired", after.Status)
	}
	if after.DecidedAt.IsZero() {
		t.Fatal("expiry must stamp the decision time")
	}

	if count, err = svc.ExpireDue(ctx, time.Now().UTC()); err != nil || count != 0 {
		t.Fatalf("second sweep = (%d, %v), want (0, nil)", count, err)
	}
}

func TestDecline(t *testing.T) {
	svc, store := newService(t, 0)
	ctx := context.Background()
	c := seedCustomer(t, store)

	p, err := svc.CreateDraft(ctx, c.ID, hourlyRequest(), "")
	if err != nil {
		t.Fatalf("CreateDraft: %v", err)
	}

	// A draft was never sent, so there is nothing to decline.
	if _, err := svc.Decline(ctx, p.ID); !apperrors.IsValidation(err) {
		t.Fatalf("decline draft error = %v, want validation", err)
	}

	if _, err := svc.Send(ctx, p.ID); err != nil {
		t.Fatalf("Send: %v", err)
	}
	declined, err := svc.Decline(ctx, p.ID)
	if err != nil {
		t.Fatalf("Decline: %v", err)
	}
	if declined.Status != proposal.StatusDeclined {
		t.Fatalf("status = %s, want declined", declined.Status)
	}
	if _, err := svc.Accept(ctx, p.ID); !apperrors.IsValidation(err) {
		t.Fatalf("accept declined error = %v, want validation", err)
	}
}

func TestUpdateDraftReprices(t *testing.T) {
	svc, store := newService(t, 0)
	ctx := context.Background()
	c := seedCustomer(t, store)

	p, err := svc.CreateDraft(ctx, c.ID, hourlyRequest(), "")
	if err != nil {
		t.Fatalf("CreateDraft: %v", err)
	}

	bigger := hourlyRequest()
	bigger.PartySize = 10
	updated, err := svc.UpdateDraft(ctx, p.ID, &bigger, nil)
	if err != nil {
		t.Fatalf("UpdateDraft: %v", err)
	}
	if updated.Quote.TotalCents <= p.Quote.TotalCents {
		t.Fatalf("updated total = %d, want more than %d", updated.Quote.TotalCents, p.Quote.TotalCents)
	}

	if _, err := svc.Send(ctx, p.ID); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if _, err := svc.UpdateDraft(ctx, p.ID, &bigger, nil); !apperrors.IsValidation(err) {
		t.Fatalf("update sent proposal error = %v, want validation", err)
	}
}

func TestCreateDraftValidation(t *testing.T) {
	svc, store := newService(t, 0)
	ctx := context.Background()

	if _, err := svc.CreateDraft(ctx, "missing", hourlyRequest(), ""); !apperrors.IsValidation(err) {
		t.Fatalf("unknown customer error = %v, want validation", err)
	}

	c := seedCustomer(t, store)
	bad := hourlyRequest()
	bad.PartySize = 99
	if _, err := svc.CreateDraft(ctx, c.ID, bad, ""); !apperrors.IsValidation(err) {
		t.Fatalf("oversized party error = %v, want validation", err)
	}
}

func TestSweeperLifecycle(t *testing.T) {
	svc, _ := newService(t, 0)

	if _, err := NewSweeper(svc, "not a schedule", nil); err == nil {
		t.Fatal("expected error for a bad cron spec")
	}

	sw, err := NewSweeper(svc, "", logger.NewDefault("sweeper-test"))
	if err != nil {
		t.Fatalf("NewSweeper: %v", err)
	}
	if sw.Name() != "proposal-sweeper" {
		t.Fatalf("name = %q", sw.Name())
	}

	ctx := context.Background()
	if err := sw.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := sw.Start(ctx); err != nil {
		t.Fatalf("second Start: %v", err)
	}

	stopCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	if err := sw.Stop(stopCtx); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if err := sw.Stop(stopCtx); err != nil {
		t.Fatalf("second Stop: %v", err)
	}
}

func TestSweepExpiresOverdueProposals(t *testing.T) {
	svc, store := newService(t, time.Millisecond)
	ctx := context.Background()
	c := seedCustomer(t, store)

	p, err := svc.CreateDraft(ctx, c.ID, hourlyRequest(), "")
	if err != nil {
		t.Fatalf("CreateDraft: %v", err)
	}
	if _, err := svc.Send(ctx, p.ID); err != nil {
		t.Fatalf("Send: %v", err)
	}
	time.Sleep(10 * time.Millisecond)

	sw, err := NewSweeper(svc, "@hourly", logger.NewDefault("sweeper-test"))
	if err != nil {
		t.Fatalf("NewSweeper: %v", err)
	}
	sw.sweep(ctx)

	expired, err := svc.Get(ctx, p.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if expired.Status != proposal.StatusExpired {
		t.Fatalf("status = %s, want expired after sweep", expired.Status)
	}
}
