// Package bookings schedules tours and transfers: pricing at creation,
// vehicle and driver assignment with conflict checks, and the status
// lifecycle through completion or cancellation.
package bookings

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/walla-walla-travel/tourops/internal/app/domain/booking"
	"github.com/walla-walla-travel/tourops/internal/app/events"
	"github.com/walla-walla-travel/tourops/internal/app/storage"
	apperrors "github.com/walla-walla-travel/tourops/internal/errors"
	"github.com/walla-walla-travel/tourops/internal/pricing"
	"github.com/walla-walla-travel/tourops/pkg/logger"
)

// Service manages the booking lifecycle.
type Service struct {
	customers storage.CustomerStore
	wineries  storage.WineryStore
	fleet     storage.FleetStore
	store     storage.BookingStore
	card      pricing.RateCard
	events    events.Publisher
	log       *logger.Logger
}

// New constructs a booking service. The events publisher may be nil.
func New(customers storage.CustomerStore, wineries storage.WineryStore, fleet storage.FleetStore, store storage.BookingStore, card pricing.RateCard, publisher events.Publisher, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("bookings")
	}
	return &Service{
		customers: customers,
		wineries:  wineries,
		fleet:     fleet,
		store:     store,
		card:      card,
		events:    publisher,
		log:       log,
	}
}

// CreateRequest describes a booking to schedule and price.
type CreateRequest struct {
	CustomerID      string
	Kind            pricing.TourKind
	TourDate        time.Time
	DurationHours   int
	PartySize       int
	PackageCode     string
	TransferZone    string
	PickupAddress   string
	DropoffAddress  string
	WineryStops     []string
	WaitBlocks      int
	GratuityPercent *float64
	Notes           string
}

// UpdateRequest carries a partial edit of a pending booking. Nil fields
// are left unchanged.
type UpdateRequest struct {
	TourDate       *time.Time
	DurationHours  *int
	PartySize      *int
	PickupAddress  *string
	DropoffAddress *string
	WineryStops    *[]string
	WaitBlocks     *int
	Notes          *string
}

// Create prices and schedules a new pending booking.
func (s *Service) Create(ctx context.Context, req CreateRequest) (booking.Booking, error) {
	if strings.TrimSpace(req.CustomerID) == "" {
		return booking.Booking{}, apperrors.Validation("customer_id is required")
	}
	if err := s.validateCustomer(ctx, req.CustomerID); err != nil {
		return booking.Booking{}, err
	}
	if err := s.validateStops(ctx, req.WineryStops, req.PartySize); err != nil {
		return booking.Booking{}, err
	}

	quote, err := pricing.ComputeQuote(s.card, pricing.QuoteRequest{
		Kind:            req.Kind,
		TourDate:        req.TourDate,
		PartySize:       req.PartySize,
		Hours:           req.DurationHours,
		PackageCode:     req.PackageCode,
		TransferZone:    req.TransferZone,
		WaitBlocks:      req.WaitBlocks,
		GratuityPercent: req.GratuityPercent,
	})
	if err != nil {
		return booking.Booking{}, apperrors.Validation(err.Error())
	}

	created, err := s.store.CreateBooking(ctx, booking.Booking{
		CustomerID:      req.CustomerID,
		Kind:            req.Kind,
		Status:          booking.StatusPending,
		TourDate:        req.TourDate.UTC(),
		DurationHours:   s.resolveDuration(req.Kind, req.DurationHours, req.PackageCode),
		PartySize:       req.PartySize,
		PackageCode:     req.PackageCode,
		TransferZone:    req.TransferZone,
		PickupAddress:   strings.TrimSpace(req.PickupAddress),
		DropoffAddress:  strings.TrimSpace(req.DropoffAddress),
		WineryStops:     append([]string(nil), req.WineryStops...),
		WaitBlocks:      req.WaitBlocks,
		QuoteTotalCents: quote.TotalCents,
		DepositCents:    quote.DepositCents,
		Notes:           req.Notes,
	})
	if err != nil {
		return booking.Booking{}, err
	}

	s.publish("booking.created", created.ID, map[string]interface{}{
		"customer_id": created.CustomerID,
		"kind":        string(created.Kind),
		"tour_date":   created.TourDate,
		"party_size":  created.PartySize,
		"total_cents": created.QuoteTotalCents,
	})
	s.log.WithField("booking_id", created.ID).
		WithField("customer_id", created.CustomerID).
		WithField("total_cents", created.QuoteTotalCents).
		Info("booking created")
	return created, nil
}

// Update edits a pending booking. Price-affecting changes do not touch
// the stored totals; call Reprice to refresh them.
func (s *Service) Update(ctx context.Context, id string, req UpdateRequest) (booking.Booking, error) {
	b, err := s.Get(ctx, id)
	if err != nil {
		return booking.Booking{}, err
	}
	if b.Status != booking.StatusPending {
		return booking.Booking{}, apperrors.Validationf("only pending bookings can be edited, booking is %s", b.Status)
	}

	if req.TourDate != nil {
		if req.TourDate.IsZero() {
			return booking.Booking{}, apperrors.Validation("tour date must not be zero")
		}
		b.TourDate = req.TourDate.UTC()
	}
	if req.DurationHours != nil {
		if *req.DurationHours < 1 {
			return booking.Booking{}, apperrors.Validation("duration must be at least 1 hour")
		}
		b.DurationHours = *req.DurationHours
	}
	if req.PartySize != nil {
		if *req.PartySize < 1 {
			return booking.Booking{}, apperrors.Validation("party size must be at least 1")
		}
		b.PartySize = *req.PartySize
	}
	if req.PickupAddress != nil {
		b.PickupAddress = strings.TrimSpace(*req.PickupAddress)
	}
	if req.DropoffAddress != nil {
		b.DropoffAddress = strings.TrimSpace(*req.DropoffAddress)
	}
	if req.WineryStops != nil {
		if err := s.validateStops(ctx, *req.WineryStops, b.PartySize); err != nil {
			return booking.Booking{}, err
		}
		b.WineryStops = append([]string(nil), (*req.WineryStops)...)
	}
	if req.WaitBlocks != nil {
		if *req.WaitBlocks < 0 {
			return booking.Booking{}, apperrors.Validation("wait blocks must not be negative")
		}
		b.WaitBlocks = *req.WaitBlocks
	}
	if req.Notes != nil {
		b.Notes = *req.Notes
	}
	if req.WineryStops == nil && req.PartySize != nil {
		if err := s.validateStops(ctx, b.WineryStops, b.PartySize); err != nil {
			return booking.Booking{}, err
		}
	}
	b.UpdatedAt = time.Now().UTC()

	updated, err := s.store.UpdateBooking(ctx, b)
	if err != nil {
		return booking.Booking{}, mapStoreErr(err, id)
	}
	s.log.WithField("booking_id", id).Info("booking updated")
	return updated, nil
}

// Reprice recomputes the quote for a pending booking from its current
// fields and stores the refreshed totals.
func (s *Service) Reprice(ctx context.Context, id string) (booking.Booking, error) {
	b, err := s.Get(ctx, id)
	if err != nil {
		return booking.Booking{}, err
	}
	if b.Status != booking.StatusPending {
		return booking.Booking{}, apperrors.Validationf("only pending bookings can be repriced, booking is %s", b.Status)
	}

	quote, err := pricing.ComputeQuote(s.card, pricing.QuoteRequest{
		Kind:         b.Kind,
		TourDate:     b.TourDate,
		PartySize:    b.PartySize,
		Hours:        b.DurationHours,
		PackageCode:  b.PackageCode,
		TransferZone: b.TransferZone,
		WaitBlocks:   b.WaitBlocks,
	})
	if err != nil {
		return booking.Booking{}, apperrors.Validation(err.Error())
	}

	b.QuoteTotalCents = quote.TotalCents
	b.DepositCents = quote.DepositCents
	b.UpdatedAt = time.Now().UTC()

	updated, err := s.store.UpdateBooking(ctx, b)
	if err != nil {
		return booking.Booking{}, mapStoreErr(err, id)
	}
	s.log.WithField("booking_id", id).
		WithField("total_cents", updated.QuoteTotalCents).
		Info("booking repriced")
	return updated, nil
}

// AssignVehicle puts a vehicle on the booking after capacity and
// schedule-conflict checks.
func (s *Service) AssignVehicle(ctx context.Context, id, vehicleID string) (booking.Booking, error) {
	b, err := s.Get(ctx, id)
	if err != nil {
		return booking.Booking{}, err
	}
	if b.Status.Terminal() {
		return booking.Booking{}, apperrors.Validationf("booking is %s", b.Status)
	}

	v, err := s.fleet.GetVehicle(ctx, vehicleID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return booking.Booking{}, apperrors.Validationf("vehicle %s not found", vehicleID)
		}
		return booking.Booking{}, err
	}
	if !v.Active {
		return booking.Booking{}, apperrors.Validation("vehicle is not active")
	}
	if v.Capacity < b.PartySize {
		return booking.Booking{}, apperrors.Validationf("vehicle seats %d, party is %d", v.Capacity, b.PartySize)
	}

	if err := s.checkConflict(ctx, b, func(other booking.Booking) bool {
		return other.VehicleID == vehicleID
	}, "vehicle already booked in this window"); err != nil {
		return booking.Booking{}, err
	}

	b.VehicleID = vehicleID
	b.UpdatedAt = time.Now().UTC()
	updated, err := s.store.UpdateBooking(ctx, b)
	if err != nil {
		return booking.Booking{}, mapStoreErr(err, id)
	}
	s.log.WithField("booking_id", id).WithField("vehicle_id", vehicleID).Info("vehicle assigned")
	return updated, nil
}

// AssignDriver puts a driver on the booking after schedule-conflict
// checks.
func (s *Service) AssignDriver(ctx context.Context, id, driverID string) (booking.Booking, error) {
	b, err := s.Get(ctx, id)
	if err != nil {
		return booking.Booking{}, err
	}
	if b.Status.Terminal() {
		return booking.Booking{}, apperrors.Validationf("booking is %s", b.Status)
	}

	d, err := s.fleet.GetDriver(ctx, driverID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return booking.Booking{}, apperrors.Validationf("driver %s not found", driverID)
		}
		return booking.Booking{}, err
	}
	if !d.Active {
		return booking.Booking{}, apperrors.Validation("driver is not active")
	}

	if err := s.checkConflict(ctx, b, func(other booking.Booking) bool {
		return other.DriverID == driverID
	}, "driver already booked in this window"); err != nil {
		return booking.Booking{}, err
	}

	b.DriverID = driverID
	b.UpdatedAt = time.Now().UTC()
	updated, err := s.store.UpdateBooking(ctx, b)
	if err != nil {
		return booking.Booking{}, mapStoreErr(err, id)
	}
	s.log.WithField("booking_id", id).WithField("driver_id", driverID).Info("driver assigned")
	return updated, nil
}

// Confirm moves a pending booking to confirmed. Both a vehicle and a
// driver must be assigned first.
func (s *Service) Confirm(ctx context.Context, id string) (booking.Booking, error) {
	b, err := s.Get(ctx, id)
	if err != nil {
		return booking.Booking{}, err
	}
	if b.VehicleID == "" || b.DriverID == "" {
		return booking.Booking{}, apperrors.Validation("booking needs an assigned vehicle and driver before confirmation")
	}

	updated, err := s.applyTransition(ctx, b, booking.StatusConfirmed)
	if err != nil {
		return booking.Booking{}, err
	}
	s.publish("booking.confirmed", id, map[string]interface{}{
		"customer_id": updated.CustomerID,
		"tour_date":   updated.TourDate,
	})
	s.log.WithField("booking_id", id).Info("booking confirmed")
	return updated, nil
}

// Complete marks a confirmed booking as carried out.
func (s *Service) Complete(ctx context.Context, id string) (booking.Booking, error) {
	b, err := s.Get(ctx, id)
	if err != nil {
		return booking.Booking{}, err
	}

	updated, err := s.applyTransition(ctx, b, booking.StatusCompleted)
	if err != nil {
		return booking.Booking{}, err
	}
	s.publish("booking.completed", id, map[string]interface{}{
		"customer_id": updated.CustomerID,
	})
	s.log.WithField("booking_id", id).Info("booking completed")
	return updated, nil
}

// Cancel cancels a pending or confirmed booking. A non-empty reason is
// recorded in the notes.
func (s *Service) Cancel(ctx context.Context, id, reason string) (booking.Booking, error) {
	b, err := s.Get(ctx, id)
	if err != nil {
		return booking.Booking{}, err
	}

	if reason = strings.TrimSpace(reason); reason != "" {
		if b.Notes != "" {
			b.Notes += "\n"
		}
		b.Notes += "Canceled: " + reason
	}

	updated, err := s.applyTransition(ctx, b, booking.StatusCanceled)
	if err != nil {
		return booking.Booking{}, err
	}
	s.publish("booking.canceled", id, map[string]interface{}{
		"customer_id": updated.CustomerID,
		"reason":      reason,
	})
	s.log.WithField("booking_id", id).Info("booking canceled")
	return updated, nil
}

// Get fetches one booking by ID.
func (s *Service) Get(ctx context.Context, id string) (booking.Booking, error) {
	b, err := s.store.GetBooking(ctx, id)
	if err != nil {
		return booking.Booking{}, mapStoreErr(err, id)
	}
	return b, nil
}

// List returns bookings filtered by customer, status, and tour date
// range. Empty or zero filters are ignored.
func (s *Service) List(ctx context.Context, customerID string, status booking.Status, from, to time.Time) ([]booking.Booking, error) {
	if status != "" && !status.Valid() {
		return nil, apperrors.Validationf("unknown booking status %q", status)
	}

	all, err := s.store.ListBookings(ctx, customerID, status)
	if err != nil {
		return nil, err
	}
	if from.IsZero() && to.IsZero() {
		return all, nil
	}

	var filtered []booking.Booking
	for _, b := range all {
		if !from.IsZero() && b.TourDate.Before(from) {
			continue
		}
		if !to.IsZero() && !b.TourDate.Before(to) {
			continue
		}
		filtered = append(filtered, b)
	}
	return filtered, nil
}

func (s *Service) applyTransition(ctx context.Context, b booking.Booking, to booking.Status) (booking.Booking, error) {
	if err := booking.ApplyTransition(&b, to, time.Now().UTC()); err != nil {
		return booking.Booking{}, apperrors.Validation(err.Error())
	}
	b.UpdatedAt = time.Now().UTC()

	updated, err := s.store.UpdateBooking(ctx, b)
	if err != nil {
		return booking.Booking{}, mapStoreErr(err, b.ID)
	}
	return updated, nil
}

// checkConflict rejects the assignment when another live booking holds
// the same resource in an overlapping window.
func (s *Service) checkConflict(ctx context.Context, b booking.Booking, holds func(booking.Booking) bool, msg string) error {
	from, to := b.Window()
	others, err := s.store.ListBookingsInWindow(ctx, from, to)
	if err != nil {
		return err
	}
	for _, other := range others {
		if other.ID == b.ID {
			continue
		}
		if holds(other) {
			return apperrors.Conflict(msg).WithDetails("booking_id", other.ID)
		}
	}
	return nil
}

func (s *Service) validateCustomer(ctx context.Context, customerID string) error {
	if s.customers == nil {
		return nil
	}
	c, err := s.customers.GetCustomer(ctx, customerID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return apperrors.Validationf("customer %s not found", customerID)
		}
		return err
	}
	if !c.Active {
		return apperrors.Validation("customer is not active")
	}
	return nil
}

// validateStops checks that every winery stop exists, is bookable, and
// can seat the party.
func (s *Service) validateStops(ctx context.Context, stops []string, partySize int) error {
	if len(stops) == 0 || s.wineries == nil {
		return nil
	}
	for _, id := range stops {
		w, err := s.wineries.GetWinery(ctx, id)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				return apperrors.Validationf("winery %s not found", id)
			}
			return err
		}
		if !w.Active {
			return apperrors.Validationf("winery %s is not active", id)
		}
		if w.MaxGroupSize > 0 && partySize > w.MaxGroupSize {
			return apperrors.Validationf("winery %s hosts up to %d guests, party is %d", id, w.MaxGroupSize, partySize)
		}
	}
	return nil
}

// resolveDuration derives the hours a booking occupies: packages carry
// their own duration, transfers block one hour, and hourly tours are
// floored at the billable minimum.
func (s *Service) resolveDuration(kind pricing.TourKind, hours int, packageCode string) int {
	switch kind {
	case pricing.TourPackage:
		if pkg, ok := s.card.Packages[packageCode]; ok {
			return pkg.Hours
		}
	case pricing.TourTransfer:
		return 1
	}
	if hours < s.card.MinimumHours {
		return s.card.MinimumHours
	}
	return hours
}

func (s *Service) publish(eventType, entityID string, data map[string]interface{}) {
	if s.events == nil {
		return
	}
	s.events.Publish(events.Event{Type: eventType, EntityID: entityID, Data: data})
}

func mapStoreErr(err error, id string) error {
	if errors.Is(err, storage.ErrNotFound) {
		return apperrors.NotFound("booking", id)
	}
	return err
}
