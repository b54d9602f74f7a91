package customer

import "time"

// Customer is a client of the tour company. Deactivated customers are
// retained for invoice history but excluded from default listings.
type Customer struct {
	ID        string
	Name      string
	Email     string
	Phone     string
	Notes     string
	Active    bool
	CreatedAt time.Time
	UpdatedAt time.Time
}
