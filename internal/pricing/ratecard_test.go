package pricing

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultRateCard_Valid(t *testing.T) {
	if err := DefaultRateCard().Validate(); err != nil {
		t.Fatalf("default rate card must validate: %v", err)
	}
}

func TestRateCard_ValidateRejectsGaps(t *testing.T) {
	card := DefaultRateCard()
	card.HourlyTiers = []HourlyTier{
		{MinGuests: 1, MaxGuests: 4, Weekday: 9500, Weekend: 11500},
		{MinGuests: 6, MaxGuests: 14, Weekday: 14000, Weekend: 16000}, // gap at 5
	}
	if err := card.Validate(); err == nil {
		t.Fatalf("expected error for tier gap")
	}

	card = DefaultRateCard()
	card.HourlyTiers = card.HourlyTiers[:2] // stops at 7, max party 14
	if err := card.Validate(); err == nil {
		t.Fatalf("expected error for tiers not reaching max party size")
	}

	card = DefaultRateCard()
	card.GratuityPercent = 150
	if err := card.Validate(); err == nil {
		t.Fatalf("expected error for percent above 100")
	}

	card = DefaultRateCard()
	card.TransferZones["free"] = 0
	if err := card.Validate(); err == nil {
		t.Fatalf("expected error for zero transfer rate")
	}
}

func TestLoadRateCard_MissingFileUsesDefaults(t *testing.T) {
	card, err := LoadRateCard(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("load missing file: %v", err)
	}
	if card.MinimumHours != 4 || card.GratuityPercent != 18 {
		t.Fatalf("missing file should yield defaults, got %#v", card)
	}
}

func TestLoadRateCard_OverlaysDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rates.yaml")
	override := `
gratuity_percent: 20
transfer_zones:
  airport: 18000
packages:
  sunset:
    code: sunset
    name: Sunset Vineyard Run
    hours: 3
    max_guests: 6
    flat: 42000
`
	if err := os.WriteFile(path, []byte(override), 0o644); err != nil {
		t.Fatalf("write override: %v", err)
	}

	card, err := LoadRateCard(path)
	if err != nil {
		t.Fatalf("load rate card: %v", err)
	}
	if card.GratuityPercent != 20 {
		t.Fatalf("gratuity = %v, want 20", card.GratuityPercent)
	}
	if card.TransferZones["airport"] != 18000 {
		t.Fatalf("airport rate = %d, want override 18000", card.TransferZones["airport"])
	}
	if card.TransferZones["local"] != 4500 {
		t.Fatalf("local rate = %d, default should survive the overlay", card.TransferZones["local"])
	}
	if _, ok := card.Packages["sunset"]; !ok {
		t.Fatalf("sunset package missing after overlay")
	}
	if _, ok := card.Packages["halfday"]; !ok {
		t.Fatalf("default packages should survive the overlay")
	}
	// Untouched sections keep defaults.
	if card.TaxPercent != 8.7 || card.MinimumHours != 4 {
		t.Fatalf("untouched defaults changed: %#v", card)
	}
}

func TestLoadRateCard_RejectsInvalidOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rates.yaml")
	if err := os.WriteFile(path, []byte("minimum_hours: 0\n"), 0o644); err != nil {
		t.Fatalf("write override: %v", err)
	}
	if _, err := LoadRateCard(path); err == nil {
		t.Fatalf("expected validation error for zero minimum hours")
	}
}
