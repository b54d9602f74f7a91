// Package main inspects the effective rate card and prices ad-hoc
// quotes from the command line, using the same engine as the API.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/walla-walla-travel/tourops/internal/pricing"
)

func main() {
	rates := flag.String("rates", "", "rate card YAML overlay, defaults apply when empty")
	kind := flag.String("kind", "", "tour kind to quote: private_hourly, shared, package, transfer")
	date := flag.String("date", "", "tour date, YYYY-MM-DD (default today)")
	party := flag.Int("party", 2, "party size")
	hours := flag.Int("hours", 0, "requested hours for hourly tours")
	pkg := flag.String("package", "", "package code for package tours")
	zone := flag.String("zone", "", "transfer zone for transfers")
	wait := flag.Int("wait", 0, "driver wait blocks")
	gratuity := flag.Float64("gratuity", -1, "gratuity percent override, negative keeps the card default")
	asJSON := flag.Bool("json", false, "emit JSON instead of text")
	flag.Parse()

	card := pricing.DefaultRateCard()
	if *rates != "" {
		loaded, err := pricing.LoadRateCard(*rates)
		if err != nil {
			log.Fatalf("load rate card: %v", err)
		}
		card = loaded
	}

	// Without a kind there is nothing to price; show the card itself.
	if *kind == "" {
		out, err := yaml.Marshal(card)
		if err != nil {
			log.Fatalf("render rate card: %v", err)
		}
		os.Stdout.Write(out)
		return
	}

	tourDate := time.Now().UTC()
	if *date != "" {
		parsed, err := time.Parse("2006-01-02", *date)
		if err != nil {
			log.Fatalf("parse date %q: %v", *date, err)
		}
		tourDate = parsed
	}

	req := pricing.QuoteRequest{
		Kind:         pricing.TourKind(*kind),
		TourDate:     tourDate,
		PartySize:    *party,
		Hours:        *hours,
		PackageCode:  *pkg,
		TransferZone: *zone,
		WaitBlocks:   *wait,
	}
	if *gratuity >= 0 {
		req.GratuityPercent = gratuity
	}

	quote, err := pricing.ComputeQuote(card, req)
	if err != nil {
		log.Fatalf("compute quote: %v", err)
	}

	if *asJSON {
		out, err := json.MarshalIndent(quote, "", "  ")
		if err != nil {
			log.Fatalf("render quote: %v", err)
		}
		fmt.Println(string(out))
		return
	}

	for _, item := range quote.Items {
		fmt.Printf("%-10s %-34s %2d x %8s = %9s\n",
			item.Kind, item.Description, item.Quantity, dollars(item.UnitCents), dollars(item.AmountCents))
	}
	fmt.Printf("%47s subtotal %9s\n", "", dollars(quote.SubtotalCents))
	fmt.Printf("%47s total    %9s\n", "", dollars(quote.TotalCents))
	fmt.Printf("%47s deposit  %9s\n", "", dollars(quote.DepositCents))
}

func dollars(cents int64) string {
	return fmt.Sprintf("$%d.%02d", cents/100, cents%100)
}
