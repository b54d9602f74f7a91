package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/walla-walla-travel/tourops/internal/app/domain/booking"
	"github.com/walla-walla-travel/tourops/internal/app/domain/customer"
	"github.com/walla-walla-travel/tourops/internal/app/domain/fleet"
	"github.com/walla-walla-travel/tourops/internal/app/domain/invoice"
	"github.com/walla-walla-travel/tourops/internal/app/domain/proposal"
	"github.com/walla-walla-travel/tourops/internal/app/domain/winery"
	"github.com/walla-walla-travel/tourops/internal/app/storage"
	"github.com/walla-walla-travel/tourops/internal/pricing"
)

// Store implements the storage interfaces backed by PostgreSQL.
type Store struct {
	db *sql.DB
}

var _ storage.CustomerStore = (*Store)(nil)
var _ storage.WineryStore = (*Store)(nil)
var _ storage.FleetStore = (*Store)(nil)
var _ storage.BookingStore = (*Store)(nil)
var _ storage.ProposalStore = (*Store)(nil)
var _ storage.InvoiceStore = (*Store)(nil)

// New creates a Store using the provided database handle.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// --- CustomerStore ----------------------------------------------------------

func (s *Store) CreateCustomer(ctx context.Context, c customer.Customer) (customer.Customer, error) {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	c.CreatedAt = now
	c.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO customers (id, name, email, phone, notes, active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, c.ID, c.Name, c.Email, c.Phone, c.Notes, c.Active, c.CreatedAt, c.UpdatedAt)
	if err != nil {
		return customer.Customer{}, err
	}
	return c, nil
}

func (s *Store) UpdateCustomer(ctx context.Context, c customer.Customer) (customer.Customer, error) {
	existing, err := s.GetCustomer(ctx, c.ID)
	if err != nil {
		return customer.Customer{}, err
	}

	c.CreatedAt = existing.CreatedAt
	c.UpdatedAt = time.Now().UTC()

	result, err := s.db.ExecContext(ctx, `
		UPDATE customers
		SET name = $2, email = $3, phone = $4, notes = $5, active = $6, updated_at = $7
		WHERE id = $1
	`, c.ID, c.Name, c.Email, c.Phone, c.Notes, c.Active, c.UpdatedAt)
	if err != nil {
		return customer.Customer{}, err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return customer.Customer{}, fmt.Errorf("customer %s: %w", c.ID, storage.ErrNotFound)
	}
	return c, nil
}

func (s *Store) GetCustomer(ctx context.Context, id string) (customer.Customer, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, email, phone, notes, active, created_at, updated_at
		FROM customers
		WHERE id = $1
	`, id)

	var c customer.Customer
	if err := row.Scan(&c.ID, &c.Name, &c.Email, &c.Phone, &c.Notes, &c.Active, &c.CreatedAt, &c.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return customer.Customer{}, fmt.Errorf("customer %s: %w", id, storage.ErrNotFound)
		}
		return customer.Customer{}, err
	}
	return c, nil
}

func (s *Store) GetCustomerByEmail(ctx context.Context, email string) (customer.Customer, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, email, phone, notes, active, created_at, updated_at
		FROM customers
		WHERE active AND lower(email) = lower($1)
	`, email)

	var c customer.Customer
	if err := row.Scan(&c.ID, &c.Name, &c.Email, &c.Phone, &c.Notes, &c.Active, &c.CreatedAt, &c.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return customer.Customer{}, fmt.Errorf("customer with email %s: %w", email, storage.ErrNotFound)
		}
		return customer.Customer{}, err
	}
	return c, nil
}

func (s *Store) ListCustomers(ctx context.Context, includeInactive bool) ([]customer.Customer, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, email, phone, notes, active, created_at, updated_at
		FROM customers
		WHERE active OR $1
		ORDER BY name
	`, includeInactive)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []customer.Customer
	for rows.Next() {
		var c customer.Customer
		if err := rows.Scan(&c.ID, &c.Name, &c.Email, &c.Phone, &c.Notes, &c.Active, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, err
		}
		result = append(result, c)
	}
	return result, rows.Err()
}

// --- WineryStore ------------------------------------------------------------

func (s *Store) CreateWinery(ctx context.Context, w winery.Winery) (winery.Winery, error) {
	if w.ID == "" {
		w.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	w.CreatedAt = now
	w.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO wineries (id, name, region, address, phone, tasting_fee_cents, max_group_size, active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, w.ID, w.Name, w.Region, w.Address, w.Phone, w.TastingFeeCents, w.MaxGroupSize, w.Active, w.CreatedAt, w.UpdatedAt)
	if err != nil {
		return winery.Winery{}, err
	}
	return w, nil
}

func (s *Store) UpdateWinery(ctx context.Context, w winery.Winery) (winery.Winery, error) {
	existing, err := s.GetWinery(ctx, w.ID)
	if err != nil {
		return winery.Winery{}, err
	}

	w.CreatedAt = existing.CreatedAt
	w.UpdatedAt = time.Now().UTC()

	result, err := s.db.ExecContext(ctx, `
		UPDATE wineries
		SET name = $2, region = $3, address = $4, phone = $5, tasting_fee_cents = $6, max_group_size = $7, active = $8, updated_at = $9
		WHERE id = $1
	`, w.ID, w.Name, w.Region, w.Address, w.Phone, w.TastingFeeCents, w.MaxGroupSize, w.Active, w.UpdatedAt)
	if err != nil {
		return winery.Winery{}, err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return winery.Winery{}, fmt.Errorf("winery %s: %w", w.ID, storage.ErrNotFound)
	}
	return w, nil
}

func (s *Store) GetWinery(ctx context.Context, id string) (winery.Winery, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, region, address, phone, tasting_fee_cents, max_group_size, active, created_at, updated_at
		FROM wineries
		WHERE id = $1
	`, id)

	var w winery.Winery
	if err := row.Scan(&w.ID, &w.Name, &w.Region, &w.Address, &w.Phone, &w.TastingFeeCents, &w.MaxGroupSize, &w.Active, &w.CreatedAt, &w.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return winery.Winery{}, fmt.Errorf("winery %s: %w", id, storage.ErrNotFound)
		}
		return winery.Winery{}, err
	}
	return w, nil
}

func (s *Store) ListWineries(ctx context.Context, region string, includeInactive bool) ([]winery.Winery, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, region, address, phone, tasting_fee_cents, max_group_size, active, created_at, updated_at
		FROM wineries
		WHERE ($1 = '' OR lower(region) = lower($1)) AND (active OR $2)
		ORDER BY name
	`, region, includeInactive)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []winery.Winery
	for rows.Next() {
		var w winery.Winery
		if err := rows.Scan(&w.ID, &w.Name, &w.Region, &w.Address, &w.Phone, &w.TastingFeeCents, &w.MaxGroupSize, &w.Active, &w.CreatedAt, &w.UpdatedAt); err != nil {
			return nil, err
		}
		result = append(result, w)
	}
	return result, rows.Err()
}

// --- FleetStore -------------------------------------------------------------

func (s *Store) CreateVehicle(ctx context.Context, v fleet.Vehicle) (fleet.Vehicle, error) {
	if v.ID == "" {
		v.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	v.CreatedAt = now
	v.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO vehicles (id, name, make, model, capacity, active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, v.ID, v.Name, v.Make, v.Model, v.Capacity, v.Active, v.CreatedAt, v.UpdatedAt)
	if err != nil {
		return fleet.Vehicle{}, err
	}
	return v, nil
}

func (s *Store) UpdateVehicle(ctx context.Context, v fleet.Vehicle) (fleet.Vehicle, error) {
	existing, err := s.GetVehicle(ctx, v.ID)
	if err != nil {
		return fleet.Vehicle{}, err
	}

	v.CreatedAt = existing.CreatedAt
	v.UpdatedAt = time.Now().UTC()

	result, err := s.db.ExecContext(ctx, `
		UPDATE vehicles
		SET name = $2, make = $3, model = $4, capacity = $5, active = $6, updated_at = $7
		WHERE id = $1
	`, v.ID, v.Name, v.Make, v.Model, v.Capacity, v.Active, v.UpdatedAt)
	if err != nil {
		return fleet.Vehicle{}, err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return fleet.Vehicle{}, fmt.Errorf("vehicle %s: %w", v.ID, storage.ErrNotFound)
	}
	return v, nil
}

func (s *Store) GetVehicle(ctx context.Context, id string) (fleet.Vehicle, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, make, model, capacity, active, created_at, updated_at
		FROM vehicles
		WHERE id = $1
	`, id)

	var v fleet.Vehicle
	if err := row.Scan(&v.ID, &v.Name, &v.Make, &v.Model, &v.Capacity, &v.Active, &v.CreatedAt, &v.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fleet.Vehicle{}, fmt.Errorf("vehicle %s: %w", id, storage.ErrNotFound)
		}
		return fleet.Vehicle{}, err
	}
	return v, nil
}

func (s *Store) ListVehicles(ctx context.Context, includeInactive bool) ([]fleet.Vehicle, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, make, model, capacity, active, created_at, updated_at
		FROM vehicles
		WHERE active OR $1
		ORDER BY name
	`, includeInactive)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []fleet.Vehicle
	for rows.Next() {
		var v fleet.Vehicle
		if err := rows.Scan(&v.ID, &v.Name, &v.Make, &v.Model, &v.Capacity, &v.Active, &v.CreatedAt, &v.UpdatedAt); err != nil {
			return nil, err
		}
		result = append(result, v)
	}
	return result, rows.Err()
}

func (s *Store) CreateDriver(ctx context.Context, d fleet.Driver) (fleet.Driver, error) {
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	d.CreatedAt = now
	d.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO drivers (id, name, phone, email, active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, d.ID, d.Name, d.Phone, d.Email, d.Active, d.CreatedAt, d.UpdatedAt)
	if err != nil {
		return fleet.Driver{}, err
	}
	return d, nil
}

func (s *Store) UpdateDriver(ctx context.Context, d fleet.Driver) (fleet.Driver, error) {
	existing, err := s.GetDriver(ctx, d.ID)
	if err != nil {
		return fleet.Driver{}, err
	}

	d.CreatedAt = existing.CreatedAt
	d.UpdatedAt = time.Now().UTC()

	result, err := s.db.ExecContext(ctx, `
		UPDATE drivers
		SET name = $2, phone = $3, email = $4, active = $5, updated_at = $6
		WHERE id = $1
	`, d.ID, d.Name, d.Phone, d.Email, d.Active, d.UpdatedAt)
	if err != nil {
		return fleet.Driver{}, err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return fleet.Driver{}, fmt.Errorf("driver %s: %w", d.ID, storage.ErrNotFound)
	}
	return d, nil
}

func (s *Store) GetDriver(ctx context.Context, id string) (fleet.Driver, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, phone, email, active, created_at, updated_at
		FROM drivers
		WHERE id = $1
	`, id)

	var d fleet.Driver
	if err := row.Scan(&d.ID, &d.Name, &d.Phone, &d.Email, &d.Active, &d.CreatedAt, &d.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fleet.Driver{}, fmt.Errorf("driver %s: %w", id, storage.ErrNotFound)
		}
		return fleet.Driver{}, err
	}
	return d, nil
}

func (s *Store) ListDrivers(ctx context.Context, includeInactive bool) ([]fleet.Driver, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, phone, email, active, created_at, updated_at
		FROM drivers
		WHERE active OR $1
		ORDER BY name
	`, includeInactive)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []fleet.Driver
	for rows.Next() {
		var d fleet.Driver
		if err := rows.Scan(&d.ID, &d.Name, &d.Phone, &d.Email, &d.Active, &d.CreatedAt, &d.UpdatedAt); err != nil {
			return nil, err
		}
		result = append(result, d)
	}
	return result, rows.Err()
}

func (s *Store) CreateTimeCard(ctx context.Context, tc fleet.TimeCard) (fleet.TimeCard, error) {
	if tc.ID == "" {
		tc.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	tc.CreatedAt = now
	tc.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO time_cards (id, driver_id, work_date, clock_in, clock_out, break_minutes, notes, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, tc.ID, tc.DriverID, tc.WorkDate, tc.ClockIn, toNullTime(tc.ClockOut), tc.BreakMinutes, tc.Notes, tc.CreatedAt, tc.UpdatedAt)
	if err != nil {
		return fleet.TimeCard{}, err
	}
	return tc, nil
}

func (s *Store) UpdateTimeCard(ctx context.Context, tc fleet.TimeCard) (fleet.TimeCard, error) {
	existing, err := s.GetTimeCard(ctx, tc.ID)
	if err != nil {
		return fleet.TimeCard{}, err
	}

	tc.DriverID = existing.DriverID
	tc.CreatedAt = existing.CreatedAt
	tc.UpdatedAt = time.Now().UTC()

	result, err := s.db.ExecContext(ctx, `
		UPDATE time_cards
		SET work_date = $2, clock_in = $3, clock_out = $4, break_minutes = $5, notes = $6, updated_at = $7
		WHERE id = $1
	`, tc.ID, tc.WorkDate, tc.ClockIn, toNullTime(tc.ClockOut), tc.BreakMinutes, tc.Notes, tc.UpdatedAt)
	if err != nil {
		return fleet.TimeCard{}, err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return fleet.TimeCard{}, fmt.Errorf("time card %s: %w", tc.ID, storage.ErrNotFound)
	}
	return tc, nil
}

func (s *Store) GetTimeCard(ctx context.Context, id string) (fleet.TimeCard, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, driver_id, work_date, clock_in, clock_out, break_minutes, notes, created_at, updated_at
		FROM time_cards
		WHERE id = $1
	`, id)

	var (
		tc       fleet.TimeCard
		clockOut sql.NullTime
	)
	if err := row.Scan(&tc.ID, &tc.DriverID, &tc.WorkDate, &tc.ClockIn, &clockOut, &tc.BreakMinutes, &tc.Notes, &tc.CreatedAt, &tc.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fleet.TimeCard{}, fmt.Errorf("time card %s: %w", id, storage.ErrNotFound)
		}
		return fleet.TimeCard{}, err
	}
	if clockOut.Valid {
		tc.ClockOut = clockOut.Time.UTC()
	}
	return tc, nil
}

func (s *Store) GetOpenTimeCard(ctx context.Context, driverID string) (fleet.TimeCard, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, driver_id, work_date, clock_in, clock_out, break_minutes, notes, created_at, updated_at
		FROM time_cards
		WHERE driver_id = $1 AND clock_out IS NULL
		ORDER BY clock_in DESC
		LIMIT 1
	`, driverID)

	var (
		tc       fleet.TimeCard
		clockOut sql.NullTime
	)
	if err := row.Scan(&tc.ID, &tc.DriverID, &tc.WorkDate, &tc.ClockIn, &clockOut, &tc.BreakMinutes, &tc.Notes, &tc.CreatedAt, &tc.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fleet.TimeCard{}, fmt.Errorf("open time card for driver %s: %w", driverID, storage.ErrNotFound)
		}
		return fleet.TimeCard{}, err
	}
	if clockOut.Valid {
		tc.ClockOut = clockOut.Time.UTC()
	}
	return tc, nil
}

func (s *Store) ListTimeCards(ctx context.Context, driverID string, from, to time.Time) ([]fleet.TimeCard, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, driver_id, work_date, clock_in, clock_out, break_minutes, notes, created_at, updated_at
		FROM time_cards
		WHERE ($1 = '' OR driver_id = $1)
		  AND ($2::timestamptz IS NULL OR clock_in >= $2)
		  AND ($3::timestamptz IS NULL OR clock_in < $3)
		ORDER BY clock_in
	`, driverID, toNullTime(from), toNullTime(to))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []fleet.TimeCard
	for rows.Next() {
		var (
			tc       fleet.TimeCard
			clockOut sql.NullTime
		)
		if err := rows.Scan(&tc.ID, &tc.DriverID, &tc.WorkDate, &tc.ClockIn, &clockOut, &tc.BreakMinutes, &tc.Notes, &tc.CreatedAt, &tc.UpdatedAt); err != nil {
			return nil, err
		}
		if clockOut.Valid {
			tc.ClockOut = clockOut.Time.UTC()
		}
		result = append(result, tc)
	}
	return result, rows.Err()
}

// --- BookingStore -----------------------------------------------------------

func (s *Store) CreateBooking(ctx context.Context, b booking.Booking) (booking.Booking, error) {
	if b.ID == "" {
		b.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	b.CreatedAt = now
	b.UpdatedAt = now

	stopsJSON, err := json.Marshal(b.WineryStops)
	if err != nil {
		return booking.Booking{}, err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO bookings (id, customer_id, kind, status, tour_date, duration_hours, party_size, package_code, transfer_zone,
			pickup_address, dropoff_address, winery_stops, vehicle_id, driver_id, wait_blocks, quote_total_cents, deposit_cents,
			notes, confirmed_at, completed_at, canceled_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22, $23)
	`, b.ID, b.CustomerID, string(b.Kind), string(b.Status), b.TourDate, b.DurationHours, b.PartySize, b.PackageCode, b.TransferZone,
		b.PickupAddress, b.DropoffAddress, stopsJSON, b.VehicleID, b.DriverID, b.WaitBlocks, b.QuoteTotalCents, b.DepositCents,
		b.Notes, toNullTime(b.ConfirmedAt), toNullTime(b.CompletedAt), toNullTime(b.CanceledAt), b.CreatedAt, b.UpdatedAt)
	if err != nil {
		return booking.Booking{}, err
	}
	return b, nil
}

func (s *Store) UpdateBooking(ctx context.Context, b booking.Booking) (booking.Booking, error) {
	existing, err := s.GetBooking(ctx, b.ID)
	if err != nil {
		return booking.Booking{}, err
	}

	b.CreatedAt = existing.CreatedAt
	b.UpdatedAt = time.Now().UTC()

	stopsJSON, err := json.Marshal(b.WineryStops)
	if err != nil {
		return booking.Booking{}, err
	}

	result, err := s.db.ExecContext(ctx, `
		UPDATE bookings
		SET customer_id = $2, kind = $3, status = $4, tour_date = $5, duration_hours = $6, party_size = $7, package_code = $8,
			transfer_zone = $9, pickup_address = $10, dropoff_address = $11, winery_stops = $12, vehicle_id = $13, driver_id = $14,
			wait_blocks = $15, quote_total_cents = $16, deposit_cents = $17, notes = $18, confirmed_at = $19, completed_at = $20,
			canceled_at = $21, updated_at = $22
		WHERE id = $1
	`, b.ID, b.CustomerID, string(b.Kind), string(b.Status), b.TourDate, b.DurationHours, b.PartySize, b.PackageCode,
		b.TransferZone, b.PickupAddress, b.DropoffAddress, stopsJSON, b.VehicleID, b.DriverID,
		b.WaitBlocks, b.QuoteTotalCents, b.DepositCents, b.Notes, toNullTime(b.ConfirmedAt), toNullTime(b.CompletedAt),
		toNullTime(b.CanceledAt), b.UpdatedAt)
	if err != nil {
		return booking.Booking{}, err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return booking.Booking{}, fmt.Errorf("booking %s: %w", b.ID, storage.ErrNotFound)
	}
	return b, nil
}

func (s *Store) GetBooking(ctx context.Context, id string) (booking.Booking, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, customer_id, kind, status, tour_date, duration_hours, party_size, package_code, transfer_zone,
			pickup_address, dropoff_address, winery_stops, vehicle_id, driver_id, wait_blocks, quote_total_cents, deposit_cents,
			notes, confirmed_at, completed_at, canceled_at, created_at, updated_at
		FROM bookings
		WHERE id = $1
	`, id)

	b, err := scanBookingRow(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return booking.Booking{}, fmt.Errorf("booking %s: %w", id, storage.ErrNotFound)
		}
		return booking.Booking{}, err
	}
	return b, nil
}

func (s *Store) ListBookings(ctx context.Context, customerID string, status booking.Status) ([]booking.Booking, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, customer_id, kind, status, tour_date, duration_hours, party_size, package_code, transfer_zone,
			pickup_address, dropoff_address, winery_stops, vehicle_id, driver_id, wait_blocks, quote_total_cents, deposit_cents,
			notes, confirmed_at, completed_at, canceled_at, created_at, updated_at
		FROM bookings
		WHERE ($1 = '' OR customer_id = $1) AND ($2 = '' OR status = $2)
		ORDER BY tour_date
	`, customerID, string(status))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []booking.Booking
	for rows.Next() {
		b, err := scanBookingRow(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, b)
	}
	return result, rows.Err()
}

func (s *Store) ListBookingsInWindow(ctx context.Context, from, to time.Time) ([]booking.Booking, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, customer_id, kind, status, tour_date, duration_hours, party_size, package_code, transfer_zone,
			pickup_address, dropoff_address, winery_stops, vehicle_id, driver_id, wait_blocks, quote_total_cents, deposit_cents,
			notes, confirmed_at, completed_at, canceled_at, created_at, updated_at
		FROM bookings
		WHERE status <> 'canceled'
		  AND tour_date < $2
		  AND $1 < tour_date + make_interval(hours => GREATEST(duration_hours, 1))
		ORDER BY tour_date
	`, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []booking.Booking
	for rows.Next() {
		b, err := scanBookingRow(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, b)
	}
	return result, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBookingRow(row rowScanner) (booking.Booking, error) {
	var (
		b           booking.Booking
		kind        string
		status      string
		stopsRaw    []byte
		confirmedAt sql.NullTime
		completedAt sql.NullTime
		canceledAt  sql.NullTime
	)
	if err := row.Scan(&b.ID, &b.CustomerID, &kind, &status, &b.TourDate, &b.DurationHours, &b.PartySize, &b.PackageCode,
		&b.TransferZone, &b.PickupAddress, &b.DropoffAddress, &stopsRaw, &b.VehicleID, &b.DriverID, &b.WaitBlocks,
		&b.QuoteTotalCents, &b.DepositCents, &b.Notes, &confirmedAt, &completedAt, &canceledAt, &b.CreatedAt, &b.UpdatedAt); err != nil {
		return booking.Booking{}, err
	}
	b.Kind = pricing.TourKind(kind)
	b.Status = booking.Status(status)
	if len(stopsRaw) > 0 {
		_ = json.Unmarshal(stopsRaw, &b.WineryStops)
	}
	if confirmedAt.Valid {
		b.ConfirmedAt = confirmedAt.Time.UTC()
	}
	if completedAt.Valid {
		b.CompletedAt = completedAt.Time.UTC()
	}
	if canceledAt.Valid {
		b.CanceledAt = canceledAt.Time.UTC()
	}
	return b, nil
}

// --- ProposalStore ----------------------------------------------------------

func (s *Store) CreateProposal(ctx context.Context, p proposal.Proposal) (proposal.Proposal, error) {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	p.CreatedAt = now
	p.UpdatedAt = now

	requestJSON, err := json.Marshal(p.Request)
	if err != nil {
		return proposal.Proposal{}, err
	}
	quoteJSON, err := json.Marshal(p.Quote)
	if err != nil {
		return proposal.Proposal{}, err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO proposals (id, customer_id, status, request, quote, message, access_token, expires_at,
			sent_at, viewed_at, decided_at, converted_invoice_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`, p.ID, p.CustomerID, string(p.Status), requestJSON, quoteJSON, p.Message, p.AccessToken, toNullTime(p.ExpiresAt),
		toNullTime(p.SentAt), toNullTime(p.ViewedAt), toNullTime(p.DecidedAt), p.ConvertedInvoiceID, p.CreatedAt, p.UpdatedAt)
	if err != nil {
		return proposal.Proposal{}, err
	}
	return p, nil
}

func (s *Store) UpdateProposal(ctx context.Context, p proposal.Proposal) (proposal.Proposal, error) {
	existing, err := s.GetProposal(ctx, p.ID)
	if err != nil {
		return proposal.Proposal{}, err
	}

	p.CreatedAt = existing.CreatedAt
	p.UpdatedAt = time.Now().UTC()

	requestJSON, err := json.Marshal(p.Request)
	if err != nil {
		return proposal.Proposal{}, err
	}
	quoteJSON, err := json.Marshal(p.Quote)
	if err != nil {
		return proposal.Proposal{}, err
	}

	result, err := s.db.ExecContext(ctx, `
		UPDATE proposals
		SET customer_id = $2, status = $3, request = $4, quote = $5, message = $6, access_token = $7, expires_at = $8,
			sent_at = $9, viewed_at = $10, decided_at = $11, converted_invoice_id = $12, updated_at = $13
		WHERE id = $1
	`, p.ID, p.CustomerID, string(p.Status), requestJSON, quoteJSON, p.Message, p.AccessToken, toNullTime(p.ExpiresAt),
		toNullTime(p.SentAt), toNullTime(p.ViewedAt), toNullTime(p.DecidedAt), p.ConvertedInvoiceID, p.UpdatedAt)
	if err != nil {
		return proposal.Proposal{}, err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return proposal.Proposal{}, fmt.Errorf("proposal %s: %w", p.ID, storage.ErrNotFound)
	}
	return p, nil
}

func (s *Store) GetProposal(ctx context.Context, id string) (proposal.Proposal, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, customer_id, status, request, quote, message, access_token, expires_at,
			sent_at, viewed_at, decided_at, converted_invoice_id, created_at, updated_at
		FROM proposals
		WHERE id = $1
	`, id)

	p, err := scanProposalRow(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return proposal.Proposal{}, fmt.Errorf("proposal %s: %w", id, storage.ErrNotFound)
		}
		return proposal.Proposal{}, err
	}
	return p, nil
}

func (s *Store) GetProposalByToken(ctx context.Context, token string) (proposal.Proposal, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, customer_id, status, request, quote, message, access_token, expires_at,
			sent_at, viewed_at, decided_at, converted_invoice_id, created_at, updated_at
		FROM proposals
		WHERE access_token = $1 AND $1 <> ''
	`, token)

	p, err := scanProposalRow(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return proposal.Proposal{}, fmt.Errorf("proposal token: %w", storage.ErrNotFound)
		}
		return proposal.Proposal{}, err
	}
	return p, nil
}

func (s *Store) ListProposals(ctx context.Context, customerID string, status proposal.Status) ([]proposal.Proposal, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, customer_id, status, request, quote, message, access_token, expires_at,
			sent_at, viewed_at, decided_at, converted_invoice_id, created_at, updated_at
		FROM proposals
		WHERE ($1 = '' OR customer_id = $1) AND ($2 = '' OR status = $2)
		ORDER BY created_at
	`, customerID, string(status))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []proposal.Proposal
	for rows.Next() {
		p, err := scanProposalRow(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, p)
	}
	return result, rows.Err()
}

func (s *Store) ListExpirableProposals(ctx context.Context, cutoff time.Time) ([]proposal.Proposal, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, customer_id, status, request, quote, message, access_token, expires_at,
			sent_at, viewed_at, decided_at, converted_invoice_id, created_at, updated_at
		FROM proposals
		WHERE status IN ('sent', 'viewed') AND expires_at IS NOT NULL AND expires_at < $1
		ORDER BY expires_at
	`, cutoff)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []proposal.Proposal
	for rows.Next() {
		p, err := scanProposalRow(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, p)
	}
	return result, rows.Err()
}

func scanProposalRow(row rowScanner) (proposal.Proposal, error) {
	var (
		p          proposal.Proposal
		status     string
		requestRaw []byte
		quoteRaw   []byte
		expiresAt  sql.NullTime
		sentAt     sql.NullTime
		viewedAt   sql.NullTime
		decidedAt  sql.NullTime
	)
	if err := row.Scan(&p.ID, &p.CustomerID, &status, &requestRaw, &quoteRaw, &p.Message, &p.AccessToken, &expiresAt,
		&sentAt, &viewedAt, &decidedAt, &p.ConvertedInvoiceID, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return proposal.Proposal{}, err
	}
	p.Status = proposal.Status(status)
	if len(requestRaw) > 0 {
		_ = json.Unmarshal(requestRaw, &p.Request)
	}
	if len(quoteRaw) > 0 {
		_ = json.Unmarshal(quoteRaw, &p.Quote)
	}
	if expiresAt.Valid {
		p.ExpiresAt = expiresAt.Time.UTC()
	}
	if sentAt.Valid {
		p.SentAt = sentAt.Time.UTC()
	}
	if viewedAt.Valid {
		p.ViewedAt = viewedAt.Time.UTC()
	}
	if decidedAt.Valid {
		p.DecidedAt = decidedAt.Time.UTC()
	}
	return p, nil
}

// --- InvoiceStore -----------------------------------------------------------

func (s *Store) CreateInvoice(ctx context.Context, inv invoice.Invoice) (invoice.Invoice, error) {
	if inv.ID == "" {
		inv.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	inv.CreatedAt = now
	inv.UpdatedAt = now

	itemsJSON, err := json.Marshal(inv.Items)
	if err != nil {
		return invoice.Invoice{}, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return invoice.Invoice{}, err
	}
	defer tx.Rollback()

	if inv.Number == "" {
		var seq int64
		err = tx.QueryRowContext(ctx, `
			INSERT INTO invoice_counters (year, last_value)
			VALUES ($1, 1)
			ON CONFLICT (year) DO UPDATE SET last_value = invoice_counters.last_value + 1
			RETURNING last_value
		`, now.Year()).Scan(&seq)
		if err != nil {
			return invoice.Invoice{}, err
		}
		inv.Number = fmt.Sprintf("INV-%d-%06d", now.Year(), seq)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO invoices (id, number, customer_id, booking_id, proposal_id, status, items, service_cents, wait_cents,
			subtotal_cents, gratuity_cents, tax_cents, total_cents, deposit_cents, access_token, memo, due_date,
			sent_at, viewed_at, accepted_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22)
	`, inv.ID, inv.Number, inv.CustomerID, inv.BookingID, inv.ProposalID, string(inv.Status), itemsJSON, inv.ServiceCents,
		inv.WaitCents, inv.SubtotalCents, inv.GratuityCents, inv.TaxCents, inv.TotalCents, inv.DepositCents, inv.AccessToken,
		inv.Memo, toNullTime(inv.DueDate), toNullTime(inv.SentAt), toNullTime(inv.ViewedAt), toNullTime(inv.AcceptedAt),
		inv.CreatedAt, inv.UpdatedAt)
	if err != nil {
		return invoice.Invoice{}, err
	}

	if err := tx.Commit(); err != nil {
		return invoice.Invoice{}, err
	}
	return inv, nil
}

func (s *Store) UpdateInvoice(ctx context.Context, inv invoice.Invoice) (invoice.Invoice, error) {
	existing, err := s.GetInvoice(ctx, inv.ID)
	if err != nil {
		return invoice.Invoice{}, err
	}

	inv.Number = existing.Number
	inv.CreatedAt = existing.CreatedAt
	inv.UpdatedAt = time.Now().UTC()

	itemsJSON, err := json.Marshal(inv.Items)
	if err != nil {
		return invoice.Invoice{}, err
	}

	result, err := s.db.ExecContext(ctx, updateInvoiceQuery, invoiceUpdateArgs(inv, itemsJSON)...)
	if err != nil {
		return invoice.Invoice{}, err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return invoice.Invoice{}, fmt.Errorf("invoice %s: %w", inv.ID, storage.ErrNotFound)
	}
	return inv, nil
}

// UpdateInvoiceWithEvent writes the invoice and appends its lifecycle event in
// a single transaction so the status change and the log entry cannot diverge.
func (s *Store) UpdateInvoiceWithEvent(ctx context.Context, inv invoice.Invoice, evt invoice.Event) (invoice.Invoice, error) {
	existing, err := s.GetInvoice(ctx, inv.ID)
	if err != nil {
		return invoice.Invoice{}, err
	}

	inv.Number = existing.Number
	inv.CreatedAt = existing.CreatedAt
	inv.UpdatedAt = time.Now().UTC()

	itemsJSON, err := json.Marshal(inv.Items)
	if err != nil {
		return invoice.Invoice{}, err
	}

	if evt.ID == "" {
		evt.ID = uuid.NewString()
	}
	evt.InvoiceID = inv.ID
	evt.CreatedAt = time.Now().UTC()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return invoice.Invoice{}, err
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx, updateInvoiceQuery, invoiceUpdateArgs(inv, itemsJSON)...)
	if err != nil {
		return invoice.Invoice{}, err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return invoice.Invoice{}, fmt.Errorf("invoice %s: %w", inv.ID, storage.ErrNotFound)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO invoice_events (id, invoice_id, from_status, to_status, actor, snapshot, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, evt.ID, evt.InvoiceID, string(evt.FromStatus), string(evt.ToStatus), evt.Actor, []byte(evt.Snapshot), evt.CreatedAt)
	if err != nil {
		return invoice.Invoice{}, err
	}

	if err := tx.Commit(); err != nil {
		return invoice.Invoice{}, err
	}
	return inv, nil
}

const updateInvoiceQuery = `
	UPDATE invoices
	SET customer_id = $2, booking_id = $3, proposal_id = $4, status = $5, items = $6, service_cents = $7, wait_cents = $8,
		subtotal_cents = $9, gratuity_cents = $10, tax_cents = $11, total_cents = $12, deposit_cents = $13, access_token = $14,
		memo = $15, due_date = $16, sent_at = $17, viewed_at = $18, accepted_at = $19, updated_at = $20
	WHERE id = $1
`

func invoiceUpdateArgs(inv invoice.Invoice, itemsJSON []byte) []any {
	return []any{inv.ID, inv.CustomerID, inv.BookingID, inv.ProposalID, string(inv.Status), itemsJSON, inv.ServiceCents,
		inv.WaitCents, inv.SubtotalCents, inv.GratuityCents, inv.TaxCents, inv.TotalCents, inv.DepositCents, inv.AccessToken,
		inv.Memo, toNullTime(inv.DueDate), toNullTime(inv.SentAt), toNullTime(inv.ViewedAt), toNullTime(inv.AcceptedAt),
		inv.UpdatedAt}
}

func (s *Store) GetInvoice(ctx context.Context, id string) (invoice.Invoice, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, number, customer_id, booking_id, proposal_id, status, items, service_cents, wait_cents,
			subtotal_cents, gratuity_cents, tax_cents, total_cents, deposit_cents, access_token, memo, due_date,
			sent_at, viewed_at, accepted_at, created_at, updated_at
		FROM invoices
		WHERE id = $1
	`, id)

	inv, err := scanInvoiceRow(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return invoice.Invoice{}, fmt.Errorf("invoice %s: %w", id, storage.ErrNotFound)
		}
		return invoice.Invoice{}, err
	}
	return inv, nil
}

func (s *Store) GetInvoiceByNumber(ctx context.Context, number string) (invoice.Invoice, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, number, customer_id, booking_id, proposal_id, status, items, service_cents, wait_cents,
			subtotal_cents, gratuity_cents, tax_cents, total_cents, deposit_cents, access_token, memo, due_date,
			sent_at, viewed_at, accepted_at, created_at, updated_at
		FROM invoices
		WHERE number = $1
	`, number)

	inv, err := scanInvoiceRow(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return invoice.Invoice{}, fmt.Errorf("invoice %s: %w", number, storage.ErrNotFound)
		}
		return invoice.Invoice{}, err
	}
	return inv, nil
}

func (s *Store) GetInvoiceByToken(ctx context.Context, token string) (invoice.Invoice, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, number, customer_id, booking_id, proposal_id, status, items, service_cents, wait_cents,
			subtotal_cents, gratuity_cents, tax_cents, total_cents, deposit_cents, access_token, memo, due_date,
			sent_at, viewed_at, accepted_at, created_at, updated_at
		FROM invoices
		WHERE access_token = $1 AND $1 <> ''
	`, token)

	inv, err := scanInvoiceRow(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return invoice.Invoice{}, fmt.Errorf("invoice token: %w", storage.ErrNotFound)
		}
		return invoice.Invoice{}, err
	}
	return inv, nil
}

func (s *Store) ListInvoices(ctx context.Context, customerID string, status invoice.Status) ([]invoice.Invoice, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, number, customer_id, booking_id, proposal_id, status, items, service_cents, wait_cents,
			subtotal_cents, gratuity_cents, tax_cents, total_cents, deposit_cents, access_token, memo, due_date,
			sent_at, viewed_at, accepted_at, created_at, updated_at
		FROM invoices
		WHERE ($1 = '' OR customer_id = $1) AND ($2 = '' OR status = $2)
		ORDER BY number
	`, customerID, string(status))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []invoice.Invoice
	for rows.Next() {
		inv, err := scanInvoiceRow(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, inv)
	}
	return result, rows.Err()
}

func (s *Store) ListInvoiceEvents(ctx context.Context, invoiceID string) ([]invoice.Event, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, invoice_id, from_status, to_status, actor, snapshot, created_at
		FROM invoice_events
		WHERE invoice_id = $1
		ORDER BY created_at
	`, invoiceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []invoice.Event
	for rows.Next() {
		var (
			evt         invoice.Event
			fromStatus  string
			toStatus    string
			snapshotRaw []byte
		)
		if err := rows.Scan(&evt.ID, &evt.InvoiceID, &fromStatus, &toStatus, &evt.Actor, &snapshotRaw, &evt.CreatedAt); err != nil {
			return nil, err
		}
		evt.FromStatus = invoice.Status(fromStatus)
		evt.ToStatus = invoice.Status(toStatus)
		evt.Snapshot = snapshotRaw
		result = append(result, evt)
	}
	return result, rows.Err()
}

func scanInvoiceRow(row rowScanner) (invoice.Invoice, error) {
	var (
		inv        invoice.Invoice
		status     string
		itemsRaw   []byte
		dueDate    sql.NullTime
		sentAt     sql.NullTime
		viewedAt   sql.NullTime
		acceptedAt sql.NullTime
	)
	if err := row.Scan(&inv.ID, &inv.Number, &inv.CustomerID, &inv.BookingID, &inv.ProposalID, &status, &itemsRaw,
		&inv.ServiceCents, &inv.WaitCents, &inv.SubtotalCents, &inv.GratuityCents, &inv.TaxCents, &inv.TotalCents,
		&inv.DepositCents, &inv.AccessToken, &inv.Memo, &dueDate, &sentAt, &viewedAt, &acceptedAt, &inv.CreatedAt, &inv.UpdatedAt); err != nil {
		return invoice.Invoice{}, err
	}
	inv.Status = invoice.Status(status)
	if len(itemsRaw) > 0 {
		_ = json.Unmarshal(itemsRaw, &inv.Items)
	}
	if dueDate.Valid {
		inv.DueDate = dueDate.Time.UTC()
	}
	if sentAt.Valid {
		inv.SentAt = sentAt.Time.UTC()
	}
	if viewedAt.Valid {
		inv.ViewedAt = viewedAt.Time.UTC()
	}
	if acceptedAt.Valid {
		inv.AcceptedAt = acceptedAt.Time.UTC()
	}
	return inv, nil
}

func toNullTime(t time.Time) sql.NullTime {
	if t.IsZero() {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}
