package pricing

import (
	"fmt"
	"strings"
)

// QuoteFromItems builds a quote from explicit service and wait lines,
// regenerating the gratuity and tax lines from the rate card. Gratuity
// and tax items in the input are rejected so they can never be stated
// twice. A zero line amount is derived from unit price and quantity.
func QuoteFromItems(card RateCard, items []LineItem) (Quote, error) {
	if len(items) == 0 {
		return Quote{}, fmt.Errorf("at least one line item is required")
	}

	var (
		out     []LineItem
		service int64
		wait    int64
	)
	for i, item := range items {
		if strings.TrimSpace(item.Description) == "" {
			return Quote{}, fmt.Errorf("line %d: description is required", i+1)
		}
		if item.Quantity < 1 {
			return Quote{}, fmt.Errorf("line %d: quantity must be at least 1", i+1)
		}
		if item.UnitCents < 0 || item.AmountCents < 0 {
			return Quote{}, fmt.Errorf("line %d: amounts must not be negative", i+1)
		}
		if item.AmountCents == 0 {
			item.AmountCents = item.UnitCents * int64(item.Quantity)
		}

		switch item.Kind {
		case ItemService:
			service += item.AmountCents
		case ItemWait:
			wait += item.AmountCents
		default:
			return Quote{}, fmt.Errorf("line %d: %s lines are generated, provide service or wait items", i+1, item.Kind)
		}
		out = append(out, item)
	}

	subtotal := service + wait

	gratuity := PercentOf(subtotal, card.GratuityPercent)
	if gratuity > 0 {
		out = append(out, LineItem{
			Kind:        ItemGratuity,
			Description: fmt.Sprintf("Gratuity (%s%%)", trimPercent(card.GratuityPercent)),
			Quantity:    1,
			UnitCents:   gratuity,
			AmountCents: gratuity,
		})
	}

	tax := PercentOf(subtotal, card.TaxPercent)
	if tax > 0 {
		out = append(out, LineItem{
			Kind:        ItemTax,
			Description: fmt.Sprintf("Sales tax (%s%%)", trimPercent(card.TaxPercent)),
			Quantity:    1,
			UnitCents:   tax,
			AmountCents: tax,
		})
	}

	total := subtotal + gratuity + tax

	return Quote{
		Items:         out,
		ServiceCents:  service,
		WaitCents:     wait,
		SubtotalCents: subtotal,
		GratuityCents: gratuity,
		TaxCents:      tax,
		TotalCents:    total,
		DepositCents:  PercentOf(total, card.DepositPercent),
	}, nil
}
