package enums

import "fmt"

// CheckoutStage names the ordered steps of the checkout flow. Each stage
// persists a handoff payload the next stage requires.
type CheckoutStage string

const (
	CheckoutStageInformation CheckoutStage = "information"
	CheckoutStageShipping    CheckoutStage = "shipping"
	CheckoutStagePayment     CheckoutStage = "payment"
)

var validCheckoutStages = []CheckoutStage{
	CheckoutStageInformation,
	CheckoutStageShipping,
	CheckoutStagePayment,
}

// String implements fmt.Stringer.
func (c CheckoutStage) String() string {
	return string(c)
}

// IsValid reports whether the value is a known CheckoutStage.
func (c CheckoutStage) IsValid() bool {
	for _, candidate := range validCheckoutStages {
		if candidate == c {
			return true
		}
	}
	return false
}

// Prerequisite returns the stage whose handoff must exist before this stage
// may run, or empty for the first stage.
func (c CheckoutStage) Prerequisite() CheckoutStage {
	switch c {
	case CheckoutStageShipping:
		return CheckoutStageInformation
	case CheckoutStagePayment:
		return CheckoutStageShipping
	}
	return ""
}

// ParseCheckoutStage converts raw input into a CheckoutStage.
func ParseCheckoutStage(value string) (CheckoutStage, error) {
	for _, candidate := range validCheckoutStages {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid checkout stage %q", value)
}
