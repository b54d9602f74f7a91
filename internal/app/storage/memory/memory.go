package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/walla-walla-travel/tourops/internal/app/domain/booking"
	"github.com/walla-walla-travel/tourops/internal/app/domain/customer"
	"github.com/walla-walla-travel/tourops/internal/app/domain/fleet"
	"github.com/walla-walla-travel/tourops/internal/app/domain/invoice"
	"github.com/walla-walla-travel/tourops/internal/app/domain/proposal"
	"github.com/walla-walla-travel/tourops/internal/app/domain/winery"
	"github.com/walla-walla-travel/tourops/internal/app/storage"
	"github.com/walla-walla-travel/tourops/internal/pricing"
)

// Store is an in-memory implementation of the storage interfaces. It is safe
// for concurrent use and is primarily intended for tests and local development.
type Store struct {
	mu            sync.RWMutex
	nextID        int64
	customers     map[string]customer.Customer
	wineries      map[string]winery.Winery
	vehicles      map[string]fleet.Vehicle
	drivers       map[string]fleet.Driver
	timeCards     map[string]fleet.TimeCard
	bookings      map[string]booking.Booking
	proposals     map[string]proposal.Proposal
	invoices      map[string]invoice.Invoice
	invoiceEvents map[string][]invoice.Event
	invoiceSeq    map[int]int64
}

var _ storage.CustomerStore = (*Store)(nil)
var _ storage.WineryStore = (*Store)(nil)
var _ storage.FleetStore = (*Store)(nil)
var _ storage.BookingStore = (*Store)(nil)
var _ storage.ProposalStore = (*Store)(nil)
var _ storage.InvoiceStore = (*Store)(nil)

// New creates an empty store.
func New() *Store {
	return &Store{
		nextID:        1,
		customers:     make(map[string]customer.Customer),
		wineries:      make(map[string]winery.Winery),
		vehicles:      make(map[string]fleet.Vehicle),
		drivers:       make(map[string]fleet.Driver),
		timeCards:     make(map[string]fleet.TimeCard),
		bookings:      make(map[string]booking.Booking),
		proposals:     make(map[string]proposal.Proposal),
		invoices:      make(map[string]invoice.Invoice),
		invoiceEvents: make(map[string][]invoice.Event),
		invoiceSeq:    make(map[int]int64),
	}
}

func (s *Store) nextIDLocked() string {
	id := s.nextID
	s.nextID++
	return fmt.Sprintf("%d", id)
}

// CustomerStore implementation ------------------------------------------------

func (s *Store) CreateCustomer(_ context.Context, c customer.Customer) (customer.Customer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if c.ID == "" {
		c.ID = s.nextIDLocked()
	} else if _, exists := s.customers[c.ID]; exists {
		return customer.Customer{}, fmt.Errorf("customer %s already exists", c.ID)
	}

	now := time.Now().UTC()
	c.CreatedAt = now
	c.UpdatedAt = now

	s.customers[c.ID] = c
	return c, nil
}

func (s *Store) UpdateCustomer(_ context.Context, c customer.Customer) (customer.Customer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	original, ok := s.customers[c.ID]
	if !ok {
		return customer.Customer{}, fmt.Errorf("customer %s: %w", c.ID, storage.ErrNotFound)
	}

	c.CreatedAt = original.CreatedAt
	c.UpdatedAt = time.Now().UTC()

	s.customers[c.ID] = c
	return c, nil
}

func (s *Store) GetCustomer(_ context.Context, id string) (customer.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.customers[id]
	if !ok {
		return customer.Customer{}, fmt.Errorf("customer %s: %w", id, storage.ErrNotFound)
	}
	return c, nil
}

func (s *Store) GetCustomerByEmail(_ context.Context, email string) (customer.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	key := strings.ToLower(strings.TrimSpace(email))
	for _, c := range s.customers {
		if c.Active && strings.ToLower(c.Email) == key {
			return c, nil
		}
	}
	return customer.Customer{}, fmt.Errorf("customer with email %s: %w", email, storage.ErrNotFound)
}

func (s *Store) ListCustomers(_ context.Context, includeInactive bool) ([]customer.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]customer.Customer, 0, len(s.customers))
	for _, c := range s.customers {
		if includeInactive || c.Active {
			result = append(result, c)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result, nil
}

// WineryStore implementation --------------------------------------------------

func (s *Store) CreateWinery(_ context.Context, w winery.Winery) (winery.Winery, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if w.ID == "" {
		w.ID = s.nextIDLocked()
	} else if _, exists := s.wineries[w.ID]; exists {
		return winery.Winery{}, fmt.Errorf("winery %s already exists", w.ID)
	}

	now := time.Now().UTC()
	w.CreatedAt = now
	w.UpdatedAt = now

	s.wineries[w.ID] = w
	return w, nil
}

func (s *Store) UpdateWinery(_ context.Context, w winery.Winery) (winery.Winery, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	original, ok := s.wineries[w.ID]
	if !ok {
		return winery.Winery{}, fmt.Errorf("winery %s: %w", w.ID, storage.ErrNotFound)
	}

	w.CreatedAt = original.CreatedAt
	w.UpdatedAt = time.Now().UTC()

	s.wineries[w.ID] = w
	return w, nil
}

func (s *Store) GetWinery(_ context.Context, id string) (winery.Winery, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	w, ok := s.wineries[id]
	if !ok {
		return winery.Winery{}, fmt.Errorf("winery %s: %w", id, storage.ErrNotFound)
	}
	return w, nil
}

func (s *Store) ListWineries(_ context.Context, region string, includeInactive bool) ([]winery.Winery, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]winery.Winery, 0)
	for _, w := range s.wineries {
		if !includeInactive && !w.Active {
			continue
		}
		if region != "" && !strings.EqualFold(w.Region, region) {
			continue
		}
		result = append(result, w)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result, nil
}

// FleetStore implementation ---------------------------------------------------

func (s *Store) CreateVehicle(_ context.Context, v fleet.Vehicle) (fleet.Vehicle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if v.ID == "" {
		v.ID = s.nextIDLocked()
	} else if _, exists := s.vehicles[v.ID]; exists {
		return fleet.Vehicle{}, fmt.Errorf("vehicle %s already exists", v.ID)
	}

	now := time.Now().UTC()
	v.CreatedAt = now
	v.UpdatedAt = now

	s.vehicles[v.ID] = v
	return v, nil
}

func (s *Store) UpdateVehicle(_ context.Context, v fleet.Vehicle) (fleet.Vehicle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	original, ok := s.vehicles[v.ID]
	if !ok {
		return fleet.Vehicle{}, fmt.Errorf("vehicle %s: %w", v.ID, storage.ErrNotFound)
	}

	v.CreatedAt = original.CreatedAt
	v.UpdatedAt = time.Now().UTC()

	s.vehicles[v.ID] = v
	return v, nil
}

func (s *Store) GetVehicle(_ context.Context, id string) (fleet.Vehicle, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v, ok := s.vehicles[id]
	if !ok {
		return fleet.Vehicle{}, fmt.Errorf("vehicle %s: %w", id, storage.ErrNotFound)
	}
	return v, nil
}

func (s *Store) ListVehicles(_ context.Context, includeInactive bool) ([]fleet.Vehicle, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]fleet.Vehicle, 0, len(s.vehicles))
	for _, v := range s.vehicles {
		if includeInactive || v.Active {
			result = append(result, v)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result, nil
}

func (s *Store) CreateDriver(_ context.Context, d fleet.Driver) (fleet.Driver, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if d.ID == "" {
		d.ID = s.nextIDLocked()
	} else if _, exists := s.drivers[d.ID]; exists {
		return fleet.Driver{}, fmt.Errorf("driver %s already exists", d.ID)
	}

	now := time.Now().UTC()
	d.CreatedAt = now
	d.UpdatedAt = now

	s.drivers[d.ID] = d
	return d, nil
}

func (s *Store) UpdateDriver(_ context.Context, d fleet.Driver) (fleet.Driver, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	original, ok := s.drivers[d.ID]
	if !ok {
		return fleet.Driver{}, fmt.Errorf("driver %s: %w", d.ID, storage.ErrNotFound)
	}

	d.CreatedAt = original.CreatedAt
	d.UpdatedAt = time.Now().UTC()

	s.drivers[d.ID] = d
	return d, nil
}

func (s *Store) GetDriver(_ context.Context, id string) (fleet.Driver, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	d, ok := s.drivers[id]
	if !ok {
		return fleet.Driver{}, fmt.Errorf("driver %s: %w", id, storage.ErrNotFound)
	}
	return d, nil
}

func (s *Store) ListDrivers(_ context.Context, includeInactive bool) ([]fleet.Driver, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]fleet.Driver, 0, len(s.drivers))
	for _, d := range s.drivers {
		if includeInactive || d.Active {
			result = append(result, d)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result, nil
}

func (s *Store) CreateTimeCard(_ context.Context, tc fleet.TimeCard) (fleet.TimeCard, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if tc.ID == "" {
		tc.ID = s.nextIDLocked()
	} else if _, exists := s.timeCards[tc.ID]; exists {
		return fleet.TimeCard{}, fmt.Errorf("time card %s already exists", tc.ID)
	}

	now := time.Now().UTC()
	tc.CreatedAt = now
	tc.UpdatedAt = now

	s.timeCards[tc.ID] = tc
	return tc, nil
}

func (s *Store) UpdateTimeCard(_ context.Context, tc fleet.TimeCard) (fleet.TimeCard, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	original, ok := s.timeCards[tc.ID]
	if !ok {
		return fleet.TimeCard{}, fmt.Errorf("time card %s: %w", tc.ID, storage.ErrNotFound)
	}

	tc.CreatedAt = original.CreatedAt
	tc.UpdatedAt = time.Now().UTC()

	s.timeCards[tc.ID] = tc
	return tc, nil
}

func (s *Store) GetTimeCard(_ context.Context, id string) (fleet.TimeCard, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tc, ok := s.timeCards[id]
	if !ok {
		return fleet.TimeCard{}, fmt.Errorf("time card %s: %w", id, storage.ErrNotFound)
	}
	return tc, nil
}

func (s *Store) GetOpenTimeCard(_ context.Context, driverID string) (fleet.TimeCard, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, tc := range s.timeCards {
		if tc.DriverID == driverID && tc.Open() {
			return tc, nil
		}
	}
	return fleet.TimeCard{}, fmt.Errorf("open time card for driver %s: %w", driverID, storage.ErrNotFound)
}

func (s *Store) ListTimeCards(_ context.Context, driverID string, from, to time.Time) ([]fleet.TimeCard, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]fleet.TimeCard, 0)
	for _, tc := range s.timeCards {
		if driverID != "" && tc.DriverID != driverID {
			continue
		}
		if !from.IsZero() && tc.ClockIn.Before(from) {
			continue
		}
		if !to.IsZero() && !tc.ClockIn.Before(to) {
			continue
		}
		result = append(result, tc)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ClockIn.Before(result[j].ClockIn) })
	return result, nil
}

// BookingStore implementation -------------------------------------------------

func (s *Store) CreateBooking(_ context.Context, b booking.Booking) (booking.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if b.ID == "" {
		b.ID = s.nextIDLocked()
	} else if _, exists := s.bookings[b.ID]; exists {
		return booking.Booking{}, fmt.Errorf("booking %s already exists", b.ID)
	}

	now := time.Now().UTC()
	b.CreatedAt = now
	b.UpdatedAt = now
	b.WineryStops = append([]string(nil), b.WineryStops...)

	s.bookings[b.ID] = b
	return cloneBooking(b), nil
}

func (s *Store) UpdateBooking(_ context.Context, b booking.Booking) (booking.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	original, ok := s.bookings[b.ID]
	if !ok {
		return booking.Booking{}, fmt.Errorf("booking %s: %w", b.ID, storage.ErrNotFound)
	}

	b.CreatedAt = original.CreatedAt
	b.UpdatedAt = time.Now().UTC()
	b.WineryStops = append([]string(nil), b.WineryStops...)

	s.bookings[b.ID] = b
	return cloneBooking(b), nil
}

func (s *Store) GetBooking(_ context.Context, id string) (booking.Booking, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	b, ok := s.bookings[id]
	if !ok {
		return booking.Booking{}, fmt.Errorf("booking %s: %w", id, storage.ErrNotFound)
	}
	return cloneBooking(b), nil
}

func (s *Store) ListBookings(_ context.Context, customerID string, status booking.Status) ([]booking.Booking, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]booking.Booking, 0)
	for _, b := range s.bookings {
		if customerID != "" && b.CustomerID != customerID {
			continue
		}
		if status != "" && b.Status != status {
			continue
		}
		result = append(result, cloneBooking(b))
	}
	sort.Slice(result, func(i, j int) bool { return result[i].TourDate.Before(result[j].TourDate) })
	return result, nil
}

func (s *Store) ListBookingsInWindow(_ context.Context, from, to time.Time) ([]booking.Booking, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]booking.Booking, 0)
	for _, b := range s.bookings {
		if b.Status == booking.StatusCanceled {
			continue
		}
		start, end := b.Window()
		if start.Before(to) && from.Before(end) {
			result = append(result, cloneBooking(b))
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].TourDate.Before(result[j].TourDate) })
	return result, nil
}

// ProposalStore implementation ------------------------------------------------

func (s *Store) CreateProposal(_ context.Context, p proposal.Proposal) (proposal.Proposal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if p.ID == "" {
		p.ID = s.nextIDLocked()
	} else if _, exists := s.proposals[p.ID]; exists {
		return proposal.Proposal{}, fmt.Errorf("proposal %s already exists", p.ID)
	}

	now := time.Now().UTC()
	p.CreatedAt = now
	p.UpdatedAt = now

	s.proposals[p.ID] = cloneProposal(p)
	return cloneProposal(p), nil
}

func (s *Store) UpdateProposal(_ context.Context, p proposal.Proposal) (proposal.Proposal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	original, ok := s.proposals[p.ID]
	if !ok {
		return proposal.Proposal{}, fmt.Errorf("proposal %s: %w", p.ID, storage.ErrNotFound)
	}

	p.CreatedAt = original.CreatedAt
	p.UpdatedAt = time.Now().UTC()

	s.proposals[p.ID] = cloneProposal(p)
	return cloneProposal(p), nil
}

func (s *Store) GetProposal(_ context.Context, id string) (proposal.Proposal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.proposals[id]
	if !ok {
		return proposal.Proposal{}, fmt.Errorf("proposal %s: %w", id, storage.ErrNotFound)
	}
	return cloneProposal(p), nil
}

func (s *Store) GetProposalByToken(_ context.Context, token string) (proposal.Proposal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if token != "" {
		for _, p := range s.proposals {
			if p.AccessToken == token {
				return cloneProposal(p), nil
			}
		}
	}
	return proposal.Proposal{}, fmt.Errorf("proposal token: %w", storage.ErrNotFound)
}

func (s *Store) ListProposals(_ context.Context, customerID string, status proposal.Status) ([]proposal.Proposal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]proposal.Proposal, 0)
	for _, p := range s.proposals {
		if customerID != "" && p.CustomerID != customerID {
			continue
		}
		if status != "" && p.Status != status {
			continue
		}
		result = append(result, cloneProposal(p))
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.Before(result[j].CreatedAt) })
	return result, nil
}

func (s *Store) ListExpirableProposals(_ context.Context, cutoff time.Time) ([]proposal.Proposal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]proposal.Proposal, 0)
	for _, p := range s.proposals {
		if p.Status != proposal.StatusSent && p.Status != proposal.StatusViewed {
			continue
		}
		if !p.ExpiresAt.IsZero() && p.ExpiresAt.Before(cutoff) {
			result = append(result, cloneProposal(p))
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ExpiresAt.Before(result[j].ExpiresAt) })
	return result, nil
}

// InvoiceStore implementation -------------------------------------------------

func (s *Store) CreateInvoice(_ context.Context, inv invoice.Invoice) (invoice.Invoice, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if inv.ID == "" {
		inv.ID = s.nextIDLocked()
	} else if _, exists := s.invoices[inv.ID]; exists {
		return invoice.Invoice{}, fmt.Errorf("invoice %s already exists", inv.ID)
	}

	now := time.Now().UTC()
	if inv.Number == "" {
		year := now.Year()
		s.invoiceSeq[year]++
		inv.Number = fmt.Sprintf("INV-%d-%06d", year, s.invoiceSeq[year])
	} else {
		for _, existing := range s.invoices {
			if existing.Number == inv.Number {
				return invoice.Invoice{}, fmt.Errorf("invoice number %s already exists", inv.Number)
			}
		}
	}

	inv.CreatedAt = now
	inv.UpdatedAt = now

	s.invoices[inv.ID] = cloneInvoice(inv)
	return cloneInvoice(inv), nil
}

func (s *Store) UpdateInvoice(_ context.Context, inv invoice.Invoice) (invoice.Invoice, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.updateInvoiceLocked(inv)
}

func (s *Store) UpdateInvoiceWithEvent(_ context.Context, inv invoice.Invoice, evt invoice.Event) (invoice.Invoice, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	updated, err := s.updateInvoiceLocked(inv)
	if err != nil {
		return invoice.Invoice{}, err
	}

	if evt.ID == "" {
		evt.ID = s.nextIDLocked()
	}
	evt.InvoiceID = updated.ID
	evt.CreatedAt = time.Now().UTC()
	evt.Snapshot = append([]byte(nil), evt.Snapshot...)

	s.invoiceEvents[updated.ID] = append(s.invoiceEvents[updated.ID], evt)
	return updated, nil
}

func (s *Store) updateInvoiceLocked(inv invoice.Invoice) (invoice.Invoice, error) {
	original, ok := s.invoices[inv.ID]
	if !ok {
		return invoice.Invoice{}, fmt.Errorf("invoice %s: %w", inv.ID, storage.ErrNotFound)
	}

	inv.Number = original.Number
	inv.CreatedAt = original.CreatedAt
	inv.UpdatedAt = time.Now().UTC()

	s.invoices[inv.ID] = cloneInvoice(inv)
	return cloneInvoice(inv), nil
}

func (s *Store) GetInvoice(_ context.Context, id string) (invoice.Invoice, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	inv, ok := s.invoices[id]
	if !ok {
		return invoice.Invoice{}, fmt.Errorf("invoice %s: %w", id, storage.ErrNotFound)
	}
	return cloneInvoice(inv), nil
}

func (s *Store) GetInvoiceByNumber(_ context.Context, number string) (invoice.Invoice, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, inv := range s.invoices {
		if inv.Number == number {
			return cloneInvoice(inv), nil
		}
	}
	return invoice.Invoice{}, fmt.Errorf("invoice %s: %w", number, storage.ErrNotFound)
}

func (s *Store) GetInvoiceByToken(_ context.Context, token string) (invoice.Invoice, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if token != "" {
		for _, inv := range s.invoices {
			if inv.AccessToken == token {
				return cloneInvoice(inv), nil
			}
		}
	}
	return invoice.Invoice{}, fmt.Errorf("invoice token: %w", storage.ErrNotFound)
}

func (s *Store) ListInvoices(_ context.Context, customerID string, status invoice.Status) ([]invoice.Invoice, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]invoice.Invoice, 0)
	for _, inv := range s.invoices {
		if customerID != "" && inv.CustomerID != customerID {
			continue
		}
		if status != "" && inv.Status != status {
			continue
		}
		result = append(result, cloneInvoice(inv))
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Number < result[j].Number })
	return result, nil
}

func (s *Store) ListInvoiceEvents(_ context.Context, invoiceID string) ([]invoice.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	events := s.invoiceEvents[invoiceID]
	result := make([]invoice.Event, 0, len(events))
	for _, evt := range events {
		evt.Snapshot = append([]byte(nil), evt.Snapshot...)
		result = append(result, evt)
	}
	return result, nil
}

// Helpers --------------------------------------------------------------------

func cloneBooking(b booking.Booking) booking.Booking {
	b.WineryStops = append([]string(nil), b.WineryStops...)
	return b
}

func cloneProposal(p proposal.Proposal) proposal.Proposal {
	p.Quote.Items = append([]pricing.LineItem(nil), p.Quote.Items...)
	return p
}

func cloneInvoice(inv invoice.Invoice) invoice.Invoice {
	inv.Items = append([]pricing.LineItem(nil), inv.Items...)
	return inv
}
