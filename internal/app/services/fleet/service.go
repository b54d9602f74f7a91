// Package fleet manages vehicles, drivers, and driver time cards.
package fleet

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/walla-walla-travel/tourops/internal/app/domain/fleet"
	"github.com/walla-walla-travel/tourops/internal/app/storage"
	apperrors "github.com/walla-walla-travel/tourops/internal/errors"
	"github.com/walla-walla-travel/tourops/pkg/logger"
)

// maxVehicleCapacity matches the largest party the rate card can price.
const maxVehicleCapacity = 14

// Service manages the fleet roster and time cards.
type Service struct {
	store storage.FleetStore
	log   *logger.Logger
}

// New constructs a fleet service.
func New(store storage.FleetStore, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("fleet")
	}
	return &Service{store: store, log: log}
}

// CreateVehicle registers a new active vehicle.
func (s *Service) CreateVehicle(ctx context.Context, name, vehicleMake, model string, capacity int) (fleet.Vehicle, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return fleet.Vehicle{}, apperrors.Validation("name is required")
	}
	if capacity < 1 || capacity > maxVehicleCapacity {
		return fleet.Vehicle{}, apperrors.Validationf("capacity %d outside 1..%d", capacity, maxVehicleCapacity)
	}

	created, err := s.store.CreateVehicle(ctx, fleet.Vehicle{
		Name:     name,
		Make:     strings.TrimSpace(vehicleMake),
		Model:    strings.TrimSpace(model),
		Capacity: capacity,
		Active:   true,
	})
	if err != nil {
		return fleet.Vehicle{}, err
	}
	s.log.WithField("vehicle_id", created.ID).
		WithField("capacity", created.Capacity).
		Info("vehicle created")
	return created, nil
}

// UpdateVehicle applies a partial update. Nil fields are left unchanged.
func (s *Service) UpdateVehicle(ctx context.Context, id string, name, vehicleMake, model *string, capacity *int) (fleet.Vehicle, error) {
	v, err := s.GetVehicle(ctx, id)
	if err != nil {
		return fleet.Vehicle{}, err
	}

	if name != nil {
		trimmed := strings.TrimSpace(*name)
		if trimmed == "" {
			return fleet.Vehicle{}, apperrors.Validation("name must not be empty")
		}
		v.Name = trimmed
	}
	if vehicleMake != nil {
		v.Make = strings.TrimSpace(*vehicleMake)
	}
	if model != nil {
		v.Model = strings.TrimSpace(*model)
	}
	if capacity != nil {
		if *capacity < 1 || *capacity > maxVehicleCapacity {
			return fleet.Vehicle{}, apperrors.Validationf("capacity %d outside 1..%d", *capacity, maxVehicleCapacity)
		}
		v.Capacity = *capacity
	}
	v.UpdatedAt = time.Now().UTC()

	updated, err := s.store.UpdateVehicle(ctx, v)
	if err != nil {
		return fleet.Vehicle{}, mapVehicleErr(err, id)
	}
	s.log.WithField("vehicle_id", id).Info("vehicle updated")
	return updated, nil
}

// GetVehicle fetches one vehicle by ID.
func (s *Service) GetVehicle(ctx context.Context, id string) (fleet.Vehicle, error) {
	v, err := s.store.GetVehicle(ctx, id)
	if err != nil {
		return fleet.Vehicle{}, mapVehicleErr(err, id)
	}
	return v, nil
}

// ListVehicles returns vehicles, active only unless asked.
func (s *Service) ListVehicles(ctx context.Context, includeInactive bool) ([]fleet.Vehicle, error) {
	return s.store.ListVehicles(ctx, includeInactive)
}

// DeactivateVehicle takes the vehicle out of service.
func (s *Service) DeactivateVehicle(ctx context.Context, id string) (fleet.Vehicle, error) {
	return s.setVehicleActive(ctx, id, false)
}

// ReactivateVehicle returns the vehicle to service.
func (s *Service) ReactivateVehicle(ctx context.Context, id string) (fleet.Vehicle, error) {
	return s.setVehicleActive(ctx, id, true)
}

func (s *Service) setVehicleActive(ctx context.Context, id string, active bool) (fleet.Vehicle, error) {
	v, err := s.GetVehicle(ctx, id)
	if err != nil {
		return fleet.Vehicle{}, err
	}
	if v.Active == active {
		return v, nil
	}

	v.Active = active
	v.UpdatedAt = time.Now().UTC()
	updated, err := s.store.UpdateVehicle(ctx, v)
	if err != nil {
		return fleet.Vehicle{}, mapVehicleErr(err, id)
	}
	s.log.WithField("vehicle_id", id).WithField("active", active).Info("vehicle state changed")
	return updated, nil
}

// CreateDriver registers a new active driver.
func (s *Service) CreateDriver(ctx context.Context, name, phone, email string) (fleet.Driver, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return fleet.Driver{}, apperrors.Validation("name is required")
	}

	created, err := s.store.CreateDriver(ctx, fleet.Driver{
		Name:   name,
		Phone:  strings.TrimSpace(phone),
		Email:  strings.TrimSpace(email),
		Active: true,
	})
	if err != nil {
		return fleet.Driver{}, err
	}
	s.log.WithField("driver_id", created.ID).Info("driver created")
	return created, nil
}

// UpdateDriver applies a partial update. Nil fields are left unchanged.
func (s *Service) UpdateDriver(ctx context.Context, id string, name, phone, email *string) (fleet.Driver, error) {
	d, err := s.GetDriver(ctx, id)
	if err != nil {
		return fleet.Driver{}, err
	}

	if name != nil {
		trimmed := strings.TrimSpace(*name)
		if trimmed == "" {
			return fleet.Driver{}, apperrors.Validation("name must not be empty")
		}
		d.Name = trimmed
	}
	if phone != nil {
		d.Phone = strings.TrimSpace(*phone)
	}
	if email != nil {
		d.Email = strings.TrimSpace(*email)
	}
	d.UpdatedAt = time.Now().UTC()

	updated, err := s.store.UpdateDriver(ctx, d)
	if err != nil {
		return fleet.Driver{}, mapDriverErr(err, id)
	}
	s.log.WithField("driver_id", id).Info("driver updated")
	return updated, nil
}

// GetDriver fetches one driver by ID.
func (s *Service) GetDriver(ctx context.Context, id string) (fleet.Driver, error) {
	d, err := s.store.GetDriver(ctx, id)
	if err != nil {
		return fleet.Driver{}, mapDriverErr(err, id)
	}
	return d, nil
}

// ListDrivers returns drivers, active only unless asked.
func (s *Service) ListDrivers(ctx context.Context, includeInactive bool) ([]fleet.Driver, error) {
	return s.store.ListDrivers(ctx, includeInactive)
}

// DeactivateDriver takes the driver off the roster.
func (s *Service) DeactivateDriver(ctx context.Context, id string) (fleet.Driver, error) {
	return s.setDriverActive(ctx, id, false)
}

// ReactivateDriver returns the driver to the roster.
func (s *Service) ReactivateDriver(ctx context.Context, id string) (fleet.Driver, error) {
	return s.setDriverActive(ctx, id, true)
}

func (s *Service) setDriverActive(ctx context.Context, id string, active bool) (fleet.Driver, error) {
	d, err := s.GetDriver(ctx, id)
	if err != nil {
		return fleet.Driver{}, err
	}
	if d.Active == active {
		return d, nil
	}

	d.Active = active
	d.UpdatedAt = time.Now().UTC()
	updated, err := s.store.UpdateDriver(ctx, d)
	if err != nil {
		return fleet.Driver{}, mapDriverErr(err, id)
	}
	s.log.WithField("driver_id", id).WithField("active", active).Info("driver state changed")
	return updated, nil
}

// ClockIn opens a time card for the driver. A driver can only have one
// running shift; a zero time means now.
func (s *Service) ClockIn(ctx context.Context, driverID string, at time.Time) (fleet.TimeCard, error) {
	d, err := s.GetDriver(ctx, driverID)
	if err != nil {
		return fleet.TimeCard{}, err
	}
	if !d.Active {
		return fleet.TimeCard{}, apperrors.Validation("driver is not active")
	}

	if open, err := s.store.GetOpenTimeCard(ctx, driverID); err == nil {
		return fleet.TimeCard{}, apperrors.Conflict("driver already clocked in").WithDetails("time_card_id", open.ID)
	} else if !errors.Is(err, storage.ErrNotFound) {
		return fleet.TimeCard{}, err
	}

	if at.IsZero() {
		at = time.Now()
	}
	at = at.UTC()

	created, err := s.store.CreateTimeCard(ctx, fleet.TimeCard{
		DriverID: driverID,
		WorkDate: at.Format("2006-01-02"),
		ClockIn:  at,
	})
	if err != nil {
		return fleet.TimeCard{}, err
	}
	s.log.WithField("driver_id", driverID).
		WithField("time_card_id", created.ID).
		Info("driver clocked in")
	return created, nil
}

// ClockOut closes an open time card. The close time must fall after the
// clock-in; a zero time means now.
func (s *Service) ClockOut(ctx context.Context, cardID string, at time.Time, breakMinutes int, notes string) (fleet.TimeCard, error) {
	tc, err := s.GetTimeCard(ctx, cardID)
	if err != nil {
		return fleet.TimeCard{}, err
	}
	if !tc.Open() {
		return fleet.TimeCard{}, apperrors.Conflict("time card already closed")
	}
	if breakMinutes < 0 {
		return fleet.TimeCard{}, apperrors.Validation("break minutes must not be negative")
	}

	if at.IsZero() {
		at = time.Now()
	}
	at = at.UTC()
	if !at.After(tc.ClockIn) {
		return fleet.TimeCard{}, apperrors.Validation("clock-out must be after clock-in")
	}

	tc.ClockOut = at
	tc.BreakMinutes = breakMinutes
	if notes != "" {
		tc.Notes = notes
	}
	tc.UpdatedAt = time.Now().UTC()

	updated, err := s.store.UpdateTimeCard(ctx, tc)
	if err != nil {
		return fleet.TimeCard{}, mapTimeCardErr(err, cardID)
	}
	s.log.WithField("driver_id", tc.DriverID).
		WithField("time_card_id", cardID).
		WithField("worked_minutes", updated.WorkedMinutes()).
		Info("driver clocked out")
	return updated, nil
}

// GetTimeCard fetches one time card by ID.
func (s *Service) GetTimeCard(ctx context.Context, id string) (fleet.TimeCard, error) {
	tc, err := s.store.GetTimeCard(ctx, id)
	if err != nil {
		return fleet.TimeCard{}, mapTimeCardErr(err, id)
	}
	return tc, nil
}

// GetOpenTimeCard returns the driver's running shift, if any.
func (s *Service) GetOpenTimeCard(ctx context.Context, driverID string) (fleet.TimeCard, error) {
	tc, err := s.store.GetOpenTimeCard(ctx, driverID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return fleet.TimeCard{}, apperrors.NotFound("open time card", driverID)
		}
		return fleet.TimeCard{}, err
	}
	return tc, nil
}

// ListTimeCards returns a driver's cards clocked in within [from, to).
// Zero bounds are open-ended.
func (s *Service) ListTimeCards(ctx context.Context, driverID string, from, to time.Time) ([]fleet.TimeCard, error) {
	if strings.TrimSpace(driverID) == "" {
		return nil, apperrors.Validation("driver_id is required")
	}
	if !from.IsZero() && !to.IsZero() && to.Before(from) {
		return nil, apperrors.Validation("time card range end precedes start")
	}
	return s.store.ListTimeCards(ctx, driverID, from, to)
}

func mapVehicleErr(err error, id string) error {
	if errors.Is(err, storage.ErrNotFound) {
		return apperrors.NotFound("vehicle", id)
	}
	return err
}

func mapDriverErr(err error, id string) error {
	if errors.Is(err, storage.ErrNotFound) {
		return apperrors.NotFound("driver", id)
	}
	return err
}

func mapTimeCardErr(err error, id string) error {
	if errors.Is(err, storage.ErrNotFound) {
		return apperrors.NotFound("time card", id)
	}
	return err
}
