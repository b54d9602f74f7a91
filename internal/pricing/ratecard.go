// Package pricing implements the rate card and quote computation used
// for tours, transfers, proposals, and invoices. All monetary values are
// integer cents.
package pricing

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// DayRate is a weekday/weekend pair of amounts in cents.
type DayRate struct {
	Weekday int64 `yaml:"weekday"`
	Weekend int64 `yaml:"weekend"`
}

// HourlyTier is the hourly rate for a contiguous guest-count bucket.
type HourlyTier struct {
	MinGuests int   `yaml:"min_guests"`
	MaxGuests int   `yaml:"max_guests"`
	Weekday   int64 `yaml:"weekday"`
	Weekend   int64 `yaml:"weekend"`
}

// Package is a fixed-rate private tour offering.
type Package struct {
	Code      string `yaml:"code"`
	Name      string `yaml:"name"`
	Hours     int    `yaml:"hours"`
	MaxGuests int    `yaml:"max_guests"`
	Flat      int64  `yaml:"flat"`
}

// RateCard is the effective pricing configuration.
type RateCard struct {
	HourlyTiers      []HourlyTier       `yaml:"hourly_tiers"`
	SharedTicket     DayRate            `yaml:"shared_ticket"`
	Packages         map[string]Package `yaml:"packages"`
	TransferZones    map[string]int64   `yaml:"transfer_zones"`
	WaitTimePerBlock int64              `yaml:"wait_time_per_block"`
	GratuityPercent  float64            `yaml:"gratuity_percent"`
	TaxPercent       float64            `yaml:"tax_percent"`
	DepositPercent   float64            `yaml:"deposit_percent"`
	MinimumHours     int                `yaml:"minimum_hours"`
	MaxPartySize     int                `yaml:"max_party_size"`
}

// DefaultRateCard returns the compiled-in rate table.
func DefaultRateCard() RateCard {
	return RateCard{
		HourlyTiers: []HourlyTier{
			{MinGuests: 1, MaxGuests: 4, Weekday: 9500, Weekend: 11500},
			{MinGuests: 5, MaxGuests: 7, Weekday: 11500, Weekend: 13500},
			{MinGuests: 8, MaxGuests: 10, Weekday: 14000, Weekend: 16000},
			{MinGuests: 11, MaxGuests: 14, Weekday: 16500, Weekend: 18500},
		},
		SharedTicket: DayRate{Weekday: 14900, Weekend: 16900},
		Packages: map[string]Package{
			"halfday": {Code: "halfday", Name: "Half-Day Tasting Tour", Hours: 5, MaxGuests: 7, Flat: 59500},
			"fullday": {Code: "fullday", Name: "Full-Day Estate Tour", Hours: 7, MaxGuests: 10, Flat: 98000},
		},
		TransferZones: map[string]int64{
			"local":    4500,
			"regional": 9500,
			"airport":  16500,
		},
		WaitTimePerBlock: 1600,
		GratuityPercent:  18,
		TaxPercent:       8.7,
		DepositPercent:   25,
		MinimumHours:     4,
		MaxPartySize:     14,
	}
}

// LoadRateCard reads a YAML override file and overlays it on the default
// card. A missing file yields the defaults. Scalar fields and the tier
// list replace the defaults wholesale; package and zone maps merge.
func LoadRateCard(path string) (RateCard, error) {
	card := DefaultRateCard()
	if path == "" {
		return card, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return card, nil
		}
		return RateCard{}, fmt.Errorf("read rate card %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &card); err != nil {
		return RateCard{}, fmt.Errorf("parse rate card %s: %w", path, err)
	}
	if err := card.Validate(); err != nil {
		return RateCard{}, fmt.Errorf("invalid rate card %s: %w", path, err)
	}
	return card, nil
}

// Validate rejects rate cards that cannot price every bookable party.
func (c RateCard) Validate() error {
	if c.MaxPartySize < 1 {
		return fmt.Errorf("max party size must be at least 1, got %d", c.MaxPartySize)
	}
	if c.MinimumHours < 1 {
		return fmt.Errorf("minimum hours must be at least 1, got %d", c.MinimumHours)
	}
	if len(c.HourlyTiers) == 0 {
		return fmt.Errorf("no hourly tiers configured")
	}
	next := 1
	for i, tier := range c.HourlyTiers {
		if tier.MinGuests != next {
			return fmt.Errorf("hourly tier %d starts at %d guests, want %d (tiers must be contiguous)", i, tier.MinGuests, next)
		}
		if tier.MaxGuests < tier.MinGuests {
			return fmt.Errorf("hourly tier %d has max %d below min %d", i, tier.MaxGuests, tier.MinGuests)
		}
		if tier.Weekday <= 0 || tier.Weekend <= 0 {
			return fmt.Errorf("hourly tier %d has non-positive rates", i)
		}
		next = tier.MaxGuests + 1
	}
	if next != c.MaxPartySize+1 {
		return fmt.Errorf("hourly tiers cover up to %d guests, want %d", next-1, c.MaxPartySize)
	}
	if c.SharedTicket.Weekday <= 0 || c.SharedTicket.Weekend <= 0 {
		return fmt.Errorf("shared ticket rates must be positive")
	}
	for code, pkg := range c.Packages {
		if pkg.Flat <= 0 {
			return fmt.Errorf("package %q has non-positive rate", code)
		}
		if pkg.MaxGuests < 1 || pkg.MaxGuests > c.MaxPartySize {
			return fmt.Errorf("package %q allows %d guests, want 1..%d", code, pkg.MaxGuests, c.MaxPartySize)
		}
		if pkg.Hours < 1 {
			return fmt.Errorf("package %q has non-positive duration", code)
		}
	}
	for zone, rate := range c.TransferZones {
		if rate <= 0 {
			return fmt.Errorf("transfer zone %q has non-positive rate", zone)
		}
	}
	if c.WaitTimePerBlock < 0 {
		return fmt.Errorf("wait time rate must not be negative")
	}
	for name, pct := range map[string]float64{
		"gratuity": c.GratuityPercent,
		"tax":      c.TaxPercent,
		"deposit":  c.DepositPercent,
	} {
		if pct < 0 || pct > 100 {
			return fmt.Errorf("%s percent %v outside 0..100", name, pct)
		}
	}
	return nil
}

// HourlyRate returns the per-hour rate in cents for the party size on
// the given date.
func (c RateCard) HourlyRate(partySize int, day time.Time) (int64, error) {
	if partySize < 1 || partySize > c.MaxPartySize {
		return 0, fmt.Errorf("party size %d outside 1..%d", partySize, c.MaxPartySize)
	}
	for _, tier := range c.HourlyTiers {
		if partySize >= tier.MinGuests && partySize <= tier.MaxGuests {
			if IsWeekend(day) {
				return tier.Weekend, nil
			}
			return tier.Weekday, nil
		}
	}
	return 0, fmt.Errorf("no hourly tier covers party size %d", partySize)
}

// SharedTicketRate returns the per-person shared tour rate for the date.
func (c RateCard) SharedTicketRate(day time.Time) int64 {
	if IsWeekend(day) {
		return c.SharedTicket.Weekend
	}
	return c.SharedTicket.Weekday
}

// IsWeekend reports whether the date falls on Saturday or Sunday.
func IsWeekend(day time.Time) bool {
	wd := day.Weekday()
	return wd == time.Saturday || wd == time.Sunday
}
