package app

import (
	"context"
	"fmt"
	"time"

	"github.com/walla-walla-travel/tourops/internal/app/events"
	appmetrics "github.com/walla-walla-travel/tourops/internal/app/metrics"
	"github.com/walla-walla-travel/tourops/internal/app/services/bookings"
	"github.com/walla-walla-travel/tourops/internal/app/services/customers"
	"github.com/walla-walla-travel/tourops/internal/app/services/fleet"
	invoicesvc "github.com/walla-walla-travel/tourops/internal/app/services/invoices"
	proposalsvc "github.com/walla-walla-travel/tourops/internal/app/services/proposals"
	"github.com/walla-walla-travel/tourops/internal/app/services/quotes"
	"github.com/walla-walla-travel/tourops/internal/app/services/wineries"
	"github.com/walla-walla-travel/tourops/internal/app/storage"
	"github.com/walla-walla-travel/tourops/internal/app/storage/memory"
	"github.com/walla-walla-travel/tourops/internal/app/system"
	"github.com/walla-walla-travel/tourops/internal/config"
	"github.com/walla-walla-travel/tourops/internal/pricing"
	"github.com/walla-walla-travel/tourops/pkg/logger"
)

// Stores encapsulates persistence dependencies. Nil stores default to the
// shared in-memory implementation.
type Stores struct {
	Customers storage.CustomerStore
	Wineries  storage.WineryStore
	Fleet     storage.FleetStore
	Bookings  storage.BookingStore
	Proposals storage.ProposalStore
	Invoices  storage.InvoiceStore
}

// Application ties the domain services together and manages the lifecycle
// of the background workers.
type Application struct {
	manager *system.Manager
	log     *logger.Logger

	// Hub carries operational events to the websocket stream and, when a
	// Redis bridge is configured, to the other instances.
	Hub *events.Hub

	// Card is the rate card every quote in this process prices against.
	Card pricing.RateCard

	Quotes    *quotes.Service
	Customers *customers.Service
	Wineries  *wineries.Service
	Fleet     *fleet.Service
	Bookings  *bookings.Service
	Proposals *proposalsvc.Service
	Invoices  *invoicesvc.Service
}

// New builds a fully initialised application with the provided stores. A
// nil cfg runs with built-in defaults, which suits tests.
func New(cfg *config.Config, stores Stores, log *logger.Logger) (*Application, error) {
	if cfg == nil {
		cfg = &config.Config{}
	}
	if log == nil {
		log = logger.NewDefault("app")
	}

	mem := memory.New()
	if stores.Customers == nil {
		stores.Customers = mem
	}
	if stores.Wineries == nil {
		stores.Wineries = mem
	}
	if stores.Fleet == nil {
		stores.Fleet = mem
	}
	if stores.Bookings == nil {
		stores.Bookings = mem
	}
	if stores.Proposals == nil {
		stores.Proposals = mem
	}
	if stores.Invoices == nil {
		stores.Invoices = mem
	}

	card := pricing.DefaultRateCard()
	if cfg.Rates.Path != "" {
		loaded, err := pricing.LoadRateCard(cfg.Rates.Path)
		if err != nil {
			return nil, fmt.Errorf("load rate card: %w", err)
		}
		card = loaded
		log.WithField("path", cfg.Rates.Path).Info("rate card loaded from file")
	}

	hub := events.NewHub(log)
	manager := system.NewManager()

	quoteService := quotes.New(card, log)
	customerService := customers.New(stores.Customers, log)
	wineryService := wineries.New(stores.Wineries, log)
	fleetService := fleet.New(stores.Fleet, log)
	bookingService := bookings.New(stores.Customers, stores.Wineries, stores.Fleet, stores.Bookings, card, hub, log)

	validity := time.Duration(cfg.Proposals.ValidityDays) * 24 * time.Hour
	proposalService := proposalsvc.New(stores.Customers, stores.Proposals, stores.Invoices, card, validity, hub, log)
	invoiceService := invoicesvc.New(stores.Customers, stores.Bookings, stores.Invoices, card, cfg.Invoices.NetDays, hub, log)

	if cfg.Redis.Addr != "" {
		bridge := events.NewBridge(hub, cfg.Redis.Addr, cfg.Redis.Channel, log)
		if err := manager.Register(bridge); err != nil {
			return nil, fmt.Errorf("register %s: %w", bridge.Name(), err)
		}
	}

	sweeper, err := proposalsvc.NewSweeper(proposalService, cfg.Proposals.SweepSchedule, log)
	if err != nil {
		return nil, fmt.Errorf("configure proposal sweeper: %w", err)
	}
	scanner := invoicesvc.NewReminderScanner(invoiceService, hub, log)

	for _, svc := range []system.Service{sweeper, scanner} {
		if err := manager.Register(svc); err != nil {
			return nil, fmt.Errorf("register %s: %w", svc.Name(), err)
		}
	}

	return &Application{
		manager:   manager,
		log:       log,
		Hub:       hub,
		Card:      card,
		Quotes:    quoteService,
		Customers: customerService,
		Wineries:  wineryService,
		Fleet:     fleetService,
		Bookings:  bookingService,
		Proposals: proposalService,
		Invoices:  invoiceService,
	}, nil
}

// Attach registers an additional lifecycle-managed service. Call before Start.
func (a *Application) Attach(service system.Service) error {
	return a.manager.Register(service)
}

// CountEvents registers a lifecycle service that feeds every hub event into
// the metrics collector. Call before Start.
func (a *Application) CountEvents(m *appmetrics.Metrics) error {
	return a.manager.Register(&metricsRelay{hub: a.Hub, metrics: m})
}

// Workers reports the names of the registered lifecycle services.
func (a *Application) Workers() []string {
	return a.manager.Services()
}

// Start begins all registered services.
func (a *Application) Start(ctx context.Context) error {
	return a.manager.Start(ctx)
}

// Stop stops all services.
func (a *Application) Stop(ctx context.Context) error {
	return a.manager.Stop(ctx)
}

// metricsRelay counts hub events in the metrics collector for as long as
// the application runs.
type metricsRelay struct {
	hub     *events.Hub
	metrics *appmetrics.Metrics
	cancel  func()
	done    chan struct{}
}

func (r *metricsRelay) Name() string { return "event-metrics" }

func (r *metricsRelay) Start(ctx context.Context) error {
	ch, cancel := r.hub.Subscribe()
	r.cancel = cancel
	r.done = make(chan struct{})
	go func() {
		defer close(r.done)
		for evt := range ch {
			r.metrics.RecordEvent(evt.Type)
		}
	}()
	return nil
}

func (r *metricsRelay) Stop(ctx context.Context) error {
	if r.cancel == nil {
		return nil
	}
	r.cancel()
	select {
	case <-r.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
