// Package customers manages client records. Customers are never hard
// deleted; deactivation keeps invoice history intact while freeing the
// email address for reuse.
package customers

import (
	"context"
	"errors"
	"net/mail"
	"strings"
	"time"

	"github.com/walla-walla-travel/tourops/internal/app/domain/customer"
	"github.com/walla-walla-travel/tourops/internal/app/storage"
	apperrors "github.com/walla-walla-travel/tourops/internal/errors"
	"github.com/walla-walla-travel/tourops/pkg/logger"
)

// Service manages customer records and validation.
type Service struct {
	store storage.CustomerStore
	log   *logger.Logger
}

// New constructs a customer service.
func New(store storage.CustomerStore, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("customers")
	}
	return &Service{store: store, log: log}
}

// Create registers a new active customer. The email must be valid and
// not in use by another active customer.
func (s *Service) Create(ctx context.Context, name, email, phone, notes string) (customer.Customer, error) {
	name = strings.TrimSpace(name)
	email = strings.TrimSpace(email)
	if name == "" {
		return customer.Customer{}, apperrors.Validation("name is required")
	}
	if err := validateEmail(email); err != nil {
		return customer.Customer{}, err
	}
	if err := s.checkEmailFree(ctx, email); err != nil {
		return customer.Customer{}, err
	}

	created, err := s.store.CreateCustomer(ctx, customer.Customer{
		Name:   name,
		Email:  email,
		Phone:  strings.TrimSpace(phone),
		Notes:  notes,
		Active: true,
	})
	if err != nil {
		return customer.Customer{}, err
	}
	s.log.WithField("customer_id", created.ID).
		WithField("email", created.Email).
		Info("customer created")
	return created, nil
}

// Update applies a partial update. Nil fields are left unchanged.
func (s *Service) Update(ctx context.Context, id string, name, email, phone, notes *string) (customer.Customer, error) {
	c, err := s.Get(ctx, id)
	if err != nil {
		return customer.Customer{}, err
	}

	if name != nil {
		trimmed := strings.TrimSpace(*name)
		if trimmed == "" {
			return customer.Customer{}, apperrors.Validation("name must not be empty")
		}
		c.Name = trimmed
	}
	if email != nil {
		trimmed := strings.TrimSpace(*email)
		if err := validateEmail(trimmed); err != nil {
			return customer.Customer{}, err
		}
		if !strings.EqualFold(trimmed, c.Email) {
			if err := s.checkEmailFree(ctx, trimmed); err != nil {
				return customer.Customer{}, err
			}
		}
		c.Email = trimmed
	}
	if phone != nil {
		c.Phone = strings.TrimSpace(*phone)
	}
	if notes != nil {
		c.Notes = *notes
	}
	c.UpdatedAt = time.Now().UTC()

	updated, err := s.store.UpdateCustomer(ctx, c)
	if err != nil {
		return customer.Customer{}, mapStoreErr(err, id)
	}
	s.log.WithField("customer_id", id).Info("customer updated")
	return updated, nil
}

// Get fetches one customer by ID.
func (s *Service) Get(ctx context.Context, id string) (customer.Customer, error) {
	c, err := s.store.GetCustomer(ctx, id)
	if err != nil {
		return customer.Customer{}, mapStoreErr(err, id)
	}
	return c, nil
}

// List returns customers sorted by name, active only unless asked.
func (s *Service) List(ctx context.Context, includeInactive bool) ([]customer.Customer, error) {
	return s.store.ListCustomers(ctx, includeInactive)
}

// Deactivate soft-deletes the customer. Their records and invoices
// remain; the email becomes reusable.
func (s *Service) Deactivate(ctx context.Context, id string) (customer.Customer, error) {
	return s.setActive(ctx, id, false)
}

// Reactivate restores a deactivated customer, provided their email has
// not been claimed by another active customer in the meantime.
func (s *Service) Reactivate(ctx context.Context, id string) (customer.Customer, error) {
	return s.setActive(ctx, id, true)
}

func (s *Service) setActive(ctx context.Context, id string, active bool) (customer.Customer, error) {
	c, err := s.Get(ctx, id)
	if err != nil {
		return customer.Customer{}, err
	}
	if c.Active == active {
		return c, nil
	}
	if active {
		if err := s.checkEmailFree(ctx, c.Email); err != nil {
			return customer.Customer{}, err
		}
	}

	c.Active = active
	c.UpdatedAt = time.Now().UTC()
	updated, err := s.store.UpdateCustomer(ctx, c)
	if err != nil {
		return customer.Customer{}, mapStoreErr(err, id)
	}

	state := "deactivated"
	if active {
		state = "reactivated"
	}
	s.log.WithField("customer_id", id).Info("customer " + state)
	return updated, nil
}

// checkEmailFree rejects an email already held by an active customer.
func (s *Service) checkEmailFree(ctx context.Context, email string) error {
	existing, err := s.store.GetCustomerByEmail(ctx, email)
	if err == nil {
		return apperrors.Conflict("email already in use").WithDetails("customer_id", existing.ID)
	}
	if errors.Is(err, storage.ErrNotFound) {
		return nil
	}
	return err
}

func validateEmail(email string) error {
	if email == "" {
		return apperrors.Validation("email is required")
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return apperrors.Validation("invalid email address")
	}
	return nil
}

func mapStoreErr(err error, id string) error {
	if errors.Is(err, storage.ErrNotFound) {
		return apperrors.NotFound("customer", id)
	}
	return err
}
