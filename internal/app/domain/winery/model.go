package winery

import "time"

// Winery is a tasting-room partner bookable as a tour stop.
type Winery struct {
	ID              string
	Name            string
	Region          string
	Address         string
	Phone           string
	TastingFeeCents int64
	MaxGroupSize    int
	Active          bool
	CreatedAt       time.Time
	UpdatedAt       time.Time
}
