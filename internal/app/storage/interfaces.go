package storage

import (
	"context"
	"errors"
	"time"

	"github.com/walla-walla-travel/tourops/internal/app/domain/booking"
	"github.com/walla-walla-travel/tourops/internal/app/domain/customer"
	"github.com/walla-walla-travel/tourops/internal/app/domain/fleet"
	"github.com/walla-walla-travel/tourops/internal/app/domain/invoice"
	"github.com/walla-walla-travel/tourops/internal/app/domain/proposal"
	"github.com/walla-walla-travel/tourops/internal/app/domain/winery"
)

// ErrNotFound is wrapped by every store when a record does not exist,
// regardless of backend. Callers match it with errors.Is.
var ErrNotFound = errors.New("record not found")

// CustomerStore persists customer records.
type CustomerStore interface {
	CreateCustomer(ctx context.Context, c customer.Customer) (customer.Customer, error)
	UpdateCustomer(ctx context.Context, c customer.Customer) (customer.Customer, error)
	GetCustomer(ctx context.Context, id string) (customer.Customer, error)
	GetCustomerByEmail(ctx context.Context, email string) (customer.Customer, error)
	ListCustomers(ctx context.Context, includeInactive bool) ([]customer.Customer, error)
}

// WineryStore persists winery partner records.
type WineryStore interface {
	CreateWinery(ctx context.Context, w winery.Winery) (winery.Winery, error)
	UpdateWinery(ctx context.Context, w winery.Winery) (winery.Winery, error)
	GetWinery(ctx context.Context, id string) (winery.Winery, error)
	ListWineries(ctx context.Context, region string, includeInactive bool) ([]winery.Winery, error)
}

// FleetStore persists vehicles, drivers, and driver time cards.
type FleetStore interface {
	CreateVehicle(ctx context.Context, v fleet.Vehicle) (fleet.Vehicle, error)
	UpdateVehicle(ctx context.Context, v fleet.Vehicle) (fleet.Vehicle, error)
	GetVehicle(ctx context.Context, id string) (fleet.Vehicle, error)
	ListVehicles(ctx context.Context, includeInactive bool) ([]fleet.Vehicle, error)

	CreateDriver(ctx context.Context, d fleet.Driver) (fleet.Driver, error)
	UpdateDriver(ctx context.Context, d fleet.Driver) (fleet.Driver, error)
	GetDriver(ctx context.Context, id string) (fleet.Driver, error)
	ListDrivers(ctx context.Context, includeInactive bool) ([]fleet.Driver, error)

	CreateTimeCard(ctx context.Context, tc fleet.TimeCard) (fleet.TimeCard, error)
	UpdateTimeCard(ctx context.Context, tc fleet.TimeCard) (fleet.TimeCard, error)
	GetTimeCard(ctx context.Context, id string) (fleet.TimeCard, error)
	GetOpenTimeCard(ctx context.Context, driverID string) (fleet.TimeCard, error)
	ListTimeCards(ctx context.Context, driverID string, from, to time.Time) ([]fleet.TimeCard, error)
}

// BookingStore persists tour and transfer bookings.
type BookingStore interface {
	CreateBooking(ctx context.Context, b booking.Booking) (booking.Booking, error)
	UpdateBooking(ctx context.Context, b booking.Booking) (booking.Booking, error)
	GetBooking(ctx context.Context, id string) (booking.Booking, error)
	ListBookings(ctx context.Context, customerID string, status booking.Status) ([]booking.Booking, error)
	// ListBookingsInWindow returns non-canceled bookings whose occupied
	// span intersects [from, to). Used for assignment conflict checks.
	ListBookingsInWindow(ctx context.Context, from, to time.Time) ([]booking.Booking, error)
}

// ProposalStore persists customer proposals.
type ProposalStore interface {
	CreateProposal(ctx context.Context, p proposal.Proposal) (proposal.Proposal, error)
	UpdateProposal(ctx context.Context, p proposal.Proposal) (proposal.Proposal, error)
	GetProposal(ctx context.Context, id string) (proposal.Proposal, error)
	GetProposalByToken(ctx context.Context, token string) (proposal.Proposal, error)
	ListProposals(ctx context.Context, customerID string, status proposal.Status) ([]proposal.Proposal, error)
	// ListExpirableProposals returns sent or viewed proposals whose
	// offer window closed before the cutoff.
	ListExpirableProposals(ctx context.Context, cutoff time.Time) ([]proposal.Proposal, error)
}

// InvoiceStore persists invoices, their line items, and the append-only
// status event log. CreateInvoice assigns the invoice number.
type InvoiceStore interface {
	CreateInvoice(ctx context.Context, inv invoice.Invoice) (invoice.Invoice, error)
	UpdateInvoice(ctx context.Context, inv invoice.Invoice) (invoice.Invoice, error)
	// UpdateInvoiceWithEvent writes the invoice and appends the event
	// atomically, so the event log never diverges from the status.
	UpdateInvoiceWithEvent(ctx context.Context, inv invoice.Invoice, evt invoice.Event) (invoice.Invoice, error)
	GetInvoice(ctx context.Context, id string) (invoice.Invoice, error)
	GetInvoiceByNumber(ctx context.Context, number string) (invoice.Invoice, error)
	GetInvoiceByToken(ctx context.Context, token string) (invoice.Invoice, error)
	ListInvoices(ctx context.Context, customerID string, status invoice.Status) ([]invoice.Invoice, error)
	ListInvoiceEvents(ctx context.Context, invoiceID string) ([]invoice.Event, error)
}
