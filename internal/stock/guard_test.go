package stock

import "testing"

func TestCheckOutOfStock(t *testing.T) {
	if got := Check(0, 0, 1); got != OutcomeOutOfStock {
		t.Fatalf("expected out_of_stock, got %s", got)
	}
	if got := Check(-3, 0, 1); got != OutcomeOutOfStock {
		t.Fatalf("negative availability should be out_of_stock, got %s", got)
	}
}

func TestCheckMaxed(t *testing.T) {
	// line already holds everything available
	if got := Check(5, 5, 1); got != OutcomeMaxed {
		t.Fatalf("expected maxed, got %s", got)
	}
	if got := Check(5, 4, 2); got != OutcomeMaxed {
		t.Fatalf("expected maxed for overshooting delta, got %s", got)
	}
}

func TestCheckAllow(t *testing.T) {
	if got := Check(5, 4, 1); got != OutcomeAllow {
		t.Fatalf("expected allow, got %s", got)
	}
	if !Check(1, 0, 1).Allowed() {
		t.Fatal("expected allow for last unit")
	}
}

func TestCheckAbsoluteRejectsInsteadOfClamping(t *testing.T) {
	if got := CheckAbsolute(5, 6); got != OutcomeMaxed {
		t.Fatalf("expected maxed, got %s", got)
	}
	if got := CheckAbsolute(5, 5); got != OutcomeAllow {
		t.Fatalf("expected allow at ceiling, got %s", got)
	}
	if got := CheckAbsolute(0, 1); got != OutcomeOutOfStock {
		t.Fatalf("expected out_of_stock, got %s", got)
	}
}

// Quantities reached through any allowed sequence of single adds never exceed
// the availability observed at call time.
func TestQuantityNeverExceedsAvailability(t *testing.T) {
	for _, available := range []int{1, 3, 5, 8} {
		qty := 0
		for i := 0; i < available*2; i++ {
			if Check(available, qty, 1).Allowed() {
				qty++
			}
		}
		if qty != available {
			t.Fatalf("availability %d: quantity settled at %d", available, qty)
		}
	}
}
