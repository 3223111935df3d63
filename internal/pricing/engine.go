package pricing

import "fmt"

// Money represents a monetary value stored in minor units (cents).
type Money = int64

// Summary aggregates computed order totals. Tip is collected after the
// summary is shown and is never taxed or surcharged, so it is not part of
// GrandTotal; callers add it on top when charging the terminal.
type Summary struct {
	Subtotal   Money
	Tax        Money
	CardFee    Money
	GrandTotal Money
}

// TipChoice pairs a percentage option with its pre-computed amount.
type TipChoice struct {
	Percent int
	Amount  Money
}

// Compute calculates order totals from per-line totals. Tax applies to the
// subtotal; the card surcharge applies to the taxed amount. Components are
// rounded half-up to the cent independently and the grand total is their sum,
// so permuting the lines never changes any figure.
func Compute(lineTotals []Money, taxBps, cardFeeBps int) Summary {
	var subtotal Money
	for _, lt := range lineTotals {
		if lt <= 0 {
			continue
		}
		subtotal += lt
	}
	tax := roundDiv(subtotal*Money(taxBps), 10_000)
	// Fee base is the exact (unrounded) taxed amount: subtotal*(10000+taxBps)/10000.
	fee := roundDiv(subtotal*Money(10_000+taxBps)*Money(cardFeeBps), 100_000_000)
	return Summary{
		Subtotal:   subtotal,
		Tax:        tax,
		CardFee:    fee,
		GrandTotal: subtotal + tax + fee,
	}
}

// TipChoices computes the selectable tip amounts for a subtotal, each rounded
// half-up to the cent. A zero-tip option is always available to callers and is
// not included here.
func TipChoices(subtotal Money, percents []int) []TipChoice {
	choices := make([]TipChoice, 0, len(percents))
	for _, pct := range percents {
		if pct <= 0 {
			continue
		}
		choices = append(choices, TipChoice{
			Percent: pct,
			Amount:  roundDiv(subtotal*Money(pct), 100),
		})
	}
	return choices
}

// FormatUSD renders cents as a dollar string for receipts and display payloads.
func FormatUSD(amount Money) string {
	sign := ""
	if amount < 0 {
		sign = "-"
		amount = -amount
	}
	return fmt.Sprintf("%s$%d.%02d", sign, amount/100, amount%100)
}

func roundDiv(numerator, denominator Money) Money {
	if denominator <= 0 {
		return 0
	}
	if numerator < 0 {
		return -roundDiv(-numerator, denominator)
	}
	return (numerator + denominator/2) / denominator
}
