package pricing

import (
	"math/rand"
	"testing"
)

func TestComputeBurgerScenario(t *testing.T) {
	// Burger 10.00 + Large +2.00 => line total 12.00.
	sum := Compute([]Money{1200}, 700, 300)
	if sum.Subtotal != 1200 {
		t.Fatalf("expected subtotal 1200, got %d", sum.Subtotal)
	}
	if sum.Tax != 84 {
		t.Fatalf("expected tax 84, got %d", sum.Tax)
	}
	// Exact fee is 38.52 cents; half-up rounding lands on 39.
	if sum.CardFee != 39 {
		t.Fatalf("expected card fee 39, got %d", sum.CardFee)
	}
	if sum.GrandTotal != 1323 {
		t.Fatalf("expected grand total 1323, got %d", sum.GrandTotal)
	}
}

func TestComputeOrderIndependent(t *testing.T) {
	lines := []Money{199, 1250, 899, 75, 4100}
	want := Compute(lines, 700, 300)
	for i := 0; i < 20; i++ {
		shuffled := append([]Money(nil), lines...)
		rand.Shuffle(len(shuffled), func(a, b int) { shuffled[a], shuffled[b] = shuffled[b], shuffled[a] })
		got := Compute(shuffled, 700, 300)
		if got != want {
			t.Fatalf("permutation changed totals: %+v vs %+v", got, want)
		}
	}
}

func TestComputeEmptyCart(t *testing.T) {
	sum := Compute(nil, 700, 300)
	if sum.Subtotal != 0 || sum.Tax != 0 || sum.CardFee != 0 || sum.GrandTotal != 0 {
		t.Fatalf("expected zero summary, got %+v", sum)
	}
}

func TestTipChoices(t *testing.T) {
	choices := TipChoices(1200, []int{10, 15, 20})
	if len(choices) != 3 {
		t.Fatalf("expected 3 choices, got %d", len(choices))
	}
	if choices[0].Amount != 120 {
		t.Fatalf("expected 10%% tip of 120, got %d", choices[0].Amount)
	}
	if choices[1].Amount != 180 {
		t.Fatalf("expected 15%% tip of 180, got %d", choices[1].Amount)
	}
	if choices[2].Amount != 240 {
		t.Fatalf("expected 20%% tip of 240, got %d", choices[2].Amount)
	}
}

func TestTipChoicesRoundsHalfUp(t *testing.T) {
	// 15% of 10.03 is 1.5045 -> 1.50; 15% of 10.30 is 1.545 -> 1.55.
	choices := TipChoices(1003, []int{15})
	if choices[0].Amount != 150 {
		t.Fatalf("expected 150, got %d", choices[0].Amount)
	}
	choices = TipChoices(1030, []int{15})
	if choices[0].Amount != 155 {
		t.Fatalf("expected 155, got %d", choices[0].Amount)
	}
}

func TestFormatUSD(t *testing.T) {
	if got := FormatUSD(1323); got != "$13.23" {
		t.Fatalf("expected $13.23, got %s", got)
	}
	if got := FormatUSD(5); got != "$0.05" {
		t.Fatalf("expected $0.05, got %s", got)
	}
}
