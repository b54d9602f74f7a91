package invoices

import (
	"context"
	"sync"
	"time"

	"github.com/walla-walla-travel/tourops/internal/app/events"
	"github.com/walla-walla-travel/tourops/internal/app/system"
	"github.com/walla-walla-travel/tourops/pkg/logger"
)

var _ system.Service = (*ReminderScanner)(nil)

// scanTimeout bounds one overdue scan.
const scanTimeout = 30 * time.Second

// ReminderScanner periodically flags sent invoices past their due date.
// Each overdue invoice is logged and emitted as an invoice.overdue event
// once; an invoice that leaves and re-enters the overdue set is flagged
// again.
type ReminderScanner struct {
	service  *Service
	events   events.Publisher
	interval time.Duration
	log      *logger.Logger

	mu      sync.Mutex
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running bool

	// seen is only touched by the scan loop.
	seen map[string]struct{}
}

// NewReminderScanner creates a scanner checking every hour.
func NewReminderScanner(service *Service, publisher events.Publisher, log *logger.Logger) *ReminderScanner {
	if log == nil {
		log = logger.NewDefault("invoice-reminders")
	}
	return &ReminderScanner{
		service:  service,
		events:   publisher,
		interval: time.Hour,
		log:      log,
		seen:     make(map[string]struct{}),
	}
}

func (r *ReminderScanner) Name() string { return "invoice-reminders" }

// Start launches the scan loop. Calling Start on a running scanner is a
// no-op.
func (r *ReminderScanner) Start(_ context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.running {
		return nil
	}

	runCtx, cancel := context.WithCancel(context.Background())
	r.cancel = cancel
	r.running = true

	r.wg.Add(1)
	go r.run(runCtx)

	r.log.WithField("interval", r.interval).Info("invoice reminder scanner started")
	return nil
}

func (r *ReminderScanner) run(ctx context.Context) {
	defer r.wg.Done()
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.scan(ctx)
		}
	}
}

func (r *ReminderScanner) scan(ctx context.Context) {
	scanCtx, cancel := context.WithTimeout(ctx, scanTimeout)
	defer cancel()

	now := time.Now().UTC()
	overdue, err := r.service.Overdue(scanCtx, now)
	if err != nil {
		r.log.WithError(err).Warnf("overdue scan failed")
		return
	}

	// Rebuilding seen each pass drops invoices that were paid or are
	// otherwise no longer overdue.
	current := make(map[string]struct{}, len(overdue))
	for _, inv := range overdue {
		current[inv.ID] = struct{}{}
		if _, flagged := r.seen[inv.ID]; flagged {
			continue
		}

		r.log.WithField("invoice_id", inv.ID).
			WithField("number", inv.Number).
			WithField("due_date", inv.DueDate).
			WithField("total_cents", inv.TotalCents).
			Warnf("invoice past due")
		if r.events != nil {
			r.events.Publish(events.Event{
				Type:     "invoice.overdue",
				EntityID: inv.ID,
				Data: map[string]interface{}{
					"customer_id": inv.CustomerID,
					"number":      inv.Number,
					"due_date":    inv.DueDate,
					"total_cents": inv.TotalCents,
				},
			})
		}
	}
	r.seen = current
}

// Stop halts the loop and waits for an in-flight scan, bounded by ctx.
func (r *ReminderScanner) Stop(ctx context.Context) error {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return nil
	}
	cancel := r.cancel
	r.cancel = nil
	r.running = false
	r.mu.Unlock()

	if cancel != nil {
		cancel()
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		r.wg.Wait()
	}()

	select {
	case <-done:
		r.log.Info("invoice reminder scanner stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
