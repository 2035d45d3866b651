package stock

// Outcome is the tri-state result of a stock check.
type Outcome string

const (
	OutcomeAllow      Outcome = "allow"
	OutcomeMaxed      Outcome = "maxed"
	OutcomeOutOfStock Outcome = "out_of_stock"
)

// Allowed reports whether the mutation may proceed.
func (o Outcome) Allowed() bool {
	return o == OutcomeAllow
}

// Check evaluates whether a line holding currentQty may grow by delta given
// the product's live available stock. Pure and synchronous; callers re-check
// on every mutation because availability is a live external fact.
func Check(available, currentQty, delta int) Outcome {
	if available <= 0 {
		return OutcomeOutOfStock
	}
	if currentQty+delta > available {
		return OutcomeMaxed
	}
	return OutcomeAllow
}

// CheckAbsolute evaluates a set-quantity request against live stock. A
// requested quantity above availability is rejected, never clamped.
func CheckAbsolute(available, requestedQty int) Outcome {
	if available <= 0 {
		return OutcomeOutOfStock
	}
	if requestedQty > available {
		return OutcomeMaxed
	}
	return OutcomeAllow
}
