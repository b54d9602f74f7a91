// Package wineries manages the tasting-room partner directory that
// bookings draw their stops from.
package wineries

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/walla-walla-travel/tourops/internal/app/domain/winery"
	"github.com/walla-walla-travel/tourops/internal/app/storage"
	apperrors "github.com/walla-walla-travel/tourops/internal/errors"
	"github.com/walla-walla-travel/tourops/pkg/logger"
)

// Service manages winery partner records.
type Service struct {
	store storage.WineryStore
	log   *logger.Logger
}

// New constructs a winery service.
func New(store storage.WineryStore, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("wineries")
	}
	return &Service{store: store, log: log}
}

// Create registers a new active winery partner.
func (s *Service) Create(ctx context.Context, w winery.Winery) (winery.Winery, error) {
	w.Name = strings.TrimSpace(w.Name)
	w.Region = strings.TrimSpace(w.Region)
	if w.Name == "" {
		return winery.Winery{}, apperrors.Validation("name is required")
	}
	if w.Region == "" {
		return winery.Winery{}, apperrors.Validation("region is required")
	}
	if w.TastingFeeCents < 0 {
		return winery.Winery{}, apperrors.Validation("tasting fee must not be negative")
	}
	if w.MaxGroupSize < 0 {
		return winery.Winery{}, apperrors.Validation("max group size must not be negative")
	}

	w.ID = ""
	w.Active = true
	created, err := s.store.CreateWinery(ctx, w)
	if err != nil {
		return winery.Winery{}, err
	}
	s.log.WithField("winery_id", created.ID).
		WithField("region", created.Region).
		Info("winery created")
	return created, nil
}

// Update applies a partial update. Nil fields are left unchanged; a zero
// MaxGroupSize means no per-winery limit.
func (s *Service) Update(ctx context.Context, id string, name, region, address, phone *string, tastingFeeCents *int64, maxGroupSize *int) (winery.Winery, error) {
	w, err := s.Get(ctx, id)
	if err != nil {
		return winery.Winery{}, err
	}

	if name != nil {
		trimmed := strings.TrimSpace(*name)
		if trimmed == "" {
			return winery.Winery{}, apperrors.Validation("name must not be empty")
		}
		w.Name = trimmed
	}
	if region != nil {
		trimmed := strings.TrimSpace(*region)
		if trimmed == "" {
			return winery.Winery{}, apperrors.Validation("region must not be empty")
		}
		w.Region = trimmed
	}
	if address != nil {
		w.Address = strings.TrimSpace(*address)
	}
	if phone != nil {
		w.Phone = strings.TrimSpace(*phone)
	}
	if tastingFeeCents != nil {
		if *tastingFeeCents < 0 {
			return winery.Winery{}, apperrors.Validation("tasting fee must not be negative")
		}
		w.TastingFeeCents = *tastingFeeCents
	}
	if maxGroupSize != nil {
		if *maxGroupSize < 0 {
			return winery.Winery{}, apperrors.Validation("max group size must not be negative")
		}
		w.MaxGroupSize = *maxGroupSize
	}
	w.UpdatedAt = time.Now().UTC()

	updated, err := s.store.UpdateWinery(ctx, w)
	if err != nil {
		return winery.Winery{}, mapStoreErr(err, id)
	}
	s.log.WithField("winery_id", id).Info("winery updated")
	return updated, nil
}

// Get fetches one winery by ID.
func (s *Service) Get(ctx context.Context, id string) (winery.Winery, error) {
	w, err := s.store.GetWinery(ctx, id)
	if err != nil {
		return winery.Winery{}, mapStoreErr(err, id)
	}
	return w, nil
}

// List returns wineries, optionally filtered by region (case
// insensitive), active only unless asked.
func (s *Service) List(ctx context.Context, region string, includeInactive bool) ([]winery.Winery, error) {
	return s.store.ListWineries(ctx, strings.TrimSpace(region), includeInactive)
}

// Deactivate removes the winery from the bookable directory.
func (s *Service) Deactivate(ctx context.Context, id string) (winery.Winery, error) {
	return s.setActive(ctx, id, false)
}

// Reactivate restores a deactivated winery.
func (s *Service) Reactivate(ctx context.Context, id string) (winery.Winery, error) {
	return s.setActive(ctx, id, true)
}

func (s *Service) setActive(ctx context.Context, id string, active bool) (winery.Winery, error) {
	w, err := s.Get(ctx, id)
	if err != nil {
		return winery.Winery{}, err
	}
	if w.Active == active {
		return w, nil
	}

	w.Active = active
	w.UpdatedAt = time.Now().UTC()
	updated, err := s.store.UpdateWinery(ctx, w)
	if err != nil {
		return winery.Winery{}, mapStoreErr(err, id)
	}

	state := "deactivated"
	if active {
		state = "reactivated"
	}
	s.log.WithField("winery_id", id).Info("winery " + state)
	return updated, nil
}

func mapStoreErr(err error, id string) error {
	if errors.Is(err, storage.ErrNotFound) {
		return apperrors.NotFound("winery", id)
	}
	return err
}
