package pricing

import (
	"fmt"
	"math"
	"time"
)

// TourKind distinguishes the bookable service types.
type TourKind string

const (
	TourPrivateHourly TourKind = "private_hourly"
	TourShared        TourKind = "shared"
	TourPackage       TourKind = "package"
	TourTransfer      TourKind = "transfer"
)

// Valid reports whether the kind is one of the bookable service types.
func (k TourKind) Valid() bool {
	switch k {
	case TourPrivateHourly, TourShared, TourPackage, TourTransfer:
		return true
	}
	return false
}

// LineItemKind classifies a quote or invoice line.
type LineItemKind string

const (
	ItemService  LineItemKind = "service"
	ItemWait     LineItemKind = "wait"
	ItemGratuity LineItemKind = "gratuity"
	ItemTax      LineItemKind = "tax"
)

// LineItem is one priced line of a quote or invoice.
type LineItem struct {
	Kind        LineItemKind
	Description string
	Quantity    int
	UnitCents   int64
	AmountCents int64
}

// QuoteRequest describes the service to price.
type QuoteRequest struct {
	Kind            TourKind
	TourDate        time.Time
	PartySize       int
	Hours           int
	PackageCode     string
	TransferZone    string
	WaitBlocks      int
	GratuityPercent *float64
}

// Quote is a fully priced service with its line items and aggregates.
type Quote struct {
	Items         []LineItem
	ServiceCents  int64
	WaitCents     int64
	SubtotalCents int64
	GratuityCents int64
	TaxCents      int64
	TotalCents    int64
	DepositCents  int64
}

// ComputeQuote prices a request against the rate card and generates its
// line items in order: service, wait, gratuity, tax. Gratuity and tax
// are both computed on the pre-gratuity subtotal; gratuity itself is not
// taxed. The quote total always equals the sum of its line items.
func ComputeQuote(card RateCard, req QuoteRequest) (Quote, error) {
	if err := validateRequest(card, req); err != nil {
		return Quote{}, err
	}

	var (
		items   []LineItem
		service int64
	)

	switch req.Kind {
	case TourPrivateHourly:
		hours := req.Hours
		if hours < card.MinimumHours {
			hours = card.MinimumHours
		}
		rate, err := card.HourlyRate(req.PartySize, req.TourDate)
		if err != nil {
			return Quote{}, err
		}
		service = rate * int64(hours)
		items = append(items, LineItem{
			Kind:        ItemService,
			Description: fmt.Sprintf("Private tour, %d guests, %d hours (%s)", req.PartySize, hours, dayLabel(req.TourDate)),
			Quantity:    hours,
			UnitCents:   rate,
			AmountCents: service,
		})
	case TourShared:
		rate := card.SharedTicketRate(req.TourDate)
		service = rate * int64(req.PartySize)
		items = append(items, LineItem{
			Kind:        ItemService,
			Description: fmt.Sprintf("Shared tour, %d seats (%s)", req.PartySize, dayLabel(req.TourDate)),
			Quantity:    req.PartySize,
			UnitCents:   rate,
			AmountCents: service,
		})
	case TourPackage:
		pkg, ok := card.Packages[req.PackageCode]
		if !ok {
			return Quote{}, fmt.Errorf("unknown package %q", req.PackageCode)
		}
		if req.PartySize > pkg.MaxGuests {
			return Quote{}, fmt.Errorf("package %q seats up to %d guests, got %d", pkg.Code, pkg.MaxGuests, req.PartySize)
		}
		service = pkg.Flat
		items = append(items, LineItem{
			Kind:        ItemService,
			Description: fmt.Sprintf("%s, %d guests", pkg.Name, req.PartySize),
			Quantity:    1,
			UnitCents:   pkg.Flat,
			AmountCents: pkg.Flat,
		})
	case TourTransfer:
		rate, ok := card.TransferZones[req.TransferZone]
		if !ok {
			return Quote{}, fmt.Errorf("unknown transfer zone %q", req.TransferZone)
		}
		service = rate
		items = append(items, LineItem{
			Kind:        ItemService,
			Description: fmt.Sprintf("Transfer (%s zone)", req.TransferZone),
			Quantity:    1,
			UnitCents:   rate,
			AmountCents: rate,
		})
	}

	var wait int64
	if req.WaitBlocks > 0 {
		wait = card.WaitTimePerBlock * int64(req.WaitBlocks)
		items = append(items, LineItem{
			Kind:        ItemWait,
			Description: fmt.Sprintf("Wait time, %d x 15 min", req.WaitBlocks),
			Quantity:    req.WaitBlocks,
			UnitCents:   card.WaitTimePerBlock,
			AmountCents: wait,
		})
	}

	subtotal := service + wait

	gratuityPct := card.GratuityPercent
	if req.GratuityPercent != nil {
		gratuityPct = *req.GratuityPercent
	}
	gratuity := PercentOf(subtotal, gratuityPct)
	if gratuity > 0 {
		items = append(items, LineItem{
			Kind:        ItemGratuity,
			Description: fmt.Sprintf("Gratuity (%s%%)", trimPercent(gratuityPct)),
			Quantity:    1,
			UnitCents:   gratuity,
			AmountCents: gratuity,
		})
	}

	tax := PercentOf(subtotal, card.TaxPercent)
	if tax > 0 {
		items = append(items, LineItem{
			Kind:        ItemTax,
			Description: fmt.Sprintf("Sales tax (%s%%)", trimPercent(card.TaxPercent)),
			Quantity:    1,
			UnitCents:   tax,
			AmountCents: tax,
		})
	}

	total := subtotal + gratuity + tax

	return Quote{
		Items:         items,
		ServiceCents:  service,
		WaitCents:     wait,
		SubtotalCents: subtotal,
		GratuityCents: gratuity,
		TaxCents:      tax,
		TotalCents:    total,
		DepositCents:  PercentOf(total, card.DepositPercent),
	}, nil
}

func validateRequest(card RateCard, req QuoteRequest) error {
	if !req.Kind.Valid() {
		return fmt.Errorf("unknown tour kind %q", req.Kind)
	}
	if req.TourDate.IsZero() {
		return fmt.Errorf("tour date is required")
	}
	if req.PartySize < 1 || req.PartySize > card.MaxPartySize {
		return fmt.Errorf("party size %d outside 1..%d", req.PartySize, card.MaxPartySize)
	}
	if req.Kind == TourPrivateHourly && req.Hours < 1 {
		return fmt.Errorf("hours must be at least 1 for hourly tours")
	}
	if req.Kind == TourPackage && req.PackageCode == "" {
		return fmt.Errorf("package code is required")
	}
	if req.Kind == TourTransfer && req.TransferZone == "" {
		return fmt.Errorf("transfer zone is required")
	}
	if req.WaitBlocks < 0 {
		return fmt.Errorf("wait blocks must not be negative")
	}
	if req.GratuityPercent != nil && (*req.GratuityPercent < 0 || *req.GratuityPercent > 100) {
		return fmt.Errorf("gratuity percent %v outside 0..100", *req.GratuityPercent)
	}
	return nil
}

// PercentOf computes pct% of the amount, rounded half-up to a cent.
func PercentOf(amount int64, pct float64) int64 {
	if amount <= 0 || pct <= 0 {
		return 0
	}
	return int64(math.Floor(float64(amount)*pct/100 + 0.5))
}

// Total sums line item amounts. Quote totals and invoice totals are
// required to match this.
func Total(items []LineItem) int64 {
	var total int64
	for _, item := range items {
		total += item.AmountCents
	}
	return total
}

func dayLabel(day time.Time) string {
	if IsWeekend(day) {
		return "weekend"
	}
	return "weekday"
}

func trimPercent(pct float64) string {
	s := fmt.Sprintf("%.2f", pct)
	for len(s) > 0 && s[len(s)-1] == '0' {
		s = s[:len(s)-1]
	}
	if len(s) > 0 && s[len(s)-1] == '.' {
		s = s[:len(s)-1]
	}
	return s
}
