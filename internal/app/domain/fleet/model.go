// Package fleet holds the vehicles, drivers, and driver time cards that
// carry tours and transfers.
package fleet

import "time"

// Vehicle is a tour vehicle. Capacity bounds the party size it may be
// assigned to.
type Vehicle struct {
	ID        string
	Name      string
	Make      string
	Model     string
	Capacity  int
	Active    bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Driver is a licensed tour driver.
type Driver struct {
	ID        string
	Name      string
	Phone     string
	Email     string
	Active    bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// TimeCard is one work shift for a driver. A card with a zero ClockOut
// is still open.
type TimeCard struct {
	ID           string
	DriverID     string
	WorkDate     string // YYYY-MM-DD, derived from ClockIn
	ClockIn      time.Time
	ClockOut     time.Time
	BreakMinutes int
	Notes        string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Open reports whether the shift is still running.
func (tc TimeCard) Open() bool {
	return tc.ClockOut.IsZero()
}

// WorkedMinutes returns the paid minutes of a closed shift: clocked span
// minus break, floored at zero. Open cards report zero.
func (tc TimeCard) WorkedMinutes() int {
	if tc.Open() {
		return 0
	}
	worked := int(tc.ClockOut.Sub(tc.ClockIn).Minutes()) - tc.BreakMinutes
	if worked < 0 {
		return 0
	}
	return worked
}
