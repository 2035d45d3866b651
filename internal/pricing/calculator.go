package pricing

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/frostlinehq/frostline-backend/pkg/enums"
)

var (
	oneHundred = decimal.NewFromInt(100)
)

// Line is the priced view of one cart line.
type Line struct {
	ProductID      uuid.UUID
	UnitPriceCents int
	Quantity       int
}

// Discount is a validated coupon ready to apply. Percent carries a whole
// percentage (15 means 15%); Fixed carries cents.
type Discount struct {
	Code           string
	Kind           enums.CouponKind
	PercentOff     int
	AmountOffCents int
}

// Totals is the computed money breakdown, all in cents.
type Totals struct {
	SubtotalCents    int `json:"subtotal_cents"`
	DiscountCents    int `json:"discount_cents"`
	TaxCents         int `json:"tax_cents"`
	DeliveryFeeCents int `json:"delivery_fee_cents"`
	TotalCents       int `json:"total_cents"`
}

// Calculator turns cart lines plus an optional discount and delivery fee into
// totals. Tax applies to the pre-discount subtotal: coupons reduce the amount
// charged but never the taxable base.
type Calculator struct {
	taxRate decimal.Decimal
}

// NewCalculator parses the configured tax rate (a fraction, e.g. "0.12").
func NewCalculator(taxRate string) (*Calculator, error) {
	trimmed := strings.TrimSpace(taxRate)
	if trimmed == "" {
		trimmed = "0"
	}
	rate, err := decimal.NewFromString(trimmed)
	if err != nil {
		return nil, fmt.Errorf("parsing tax rate %q: %w", taxRate, err)
	}
	if rate.IsNegative() || rate.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return nil, fmt.Errorf("tax rate %q must be in [0, 1)", taxRate)
	}
	return &Calculator{taxRate: rate}, nil
}

// Compute derives totals from the inputs. It is pure: identical inputs always
// produce identical output. Intermediate math stays in exact decimals and is
// rounded to whole cents once, at output.
func (c *Calculator) Compute(lines []Line, discount *Discount, deliveryFeeCents int) Totals {
	subtotal := decimal.Zero
	for _, line := range lines {
		lineTotal := decimal.NewFromInt(int64(line.UnitPriceCents)).
			Mul(decimal.NewFromInt(int64(line.Quantity)))
		subtotal = subtotal.Add(lineTotal)
	}

	discounted := decimal.Zero
	if discount != nil {
		switch discount.Kind {
		case enums.CouponKindPercent:
			discounted = subtotal.
				Mul(decimal.NewFromInt(int64(discount.PercentOff))).
				Div(oneHundred)
		case enums.CouponKindFixed:
			discounted = decimal.NewFromInt(int64(discount.AmountOffCents))
		}
		// a coupon never pushes the pre-tax amount negative
		if discounted.GreaterThan(subtotal) {
			discounted = subtotal
		}
	}

	tax := subtotal.Mul(c.taxRate)

	// round each component once, then derive the total from the rounded
	// components so the breakdown always sums to the charge
	subtotalCents := int(subtotal.Round(0).IntPart())
	discountCents := int(discounted.Round(0).IntPart())
	taxCents := int(tax.Round(0).IntPart())

	total := subtotalCents + taxCents - discountCents + deliveryFeeCents
	if total < 0 {
		total = 0
	}

	return Totals{
		SubtotalCents:    subtotalCents,
		DiscountCents:    discountCents,
		TaxCents:         taxCents,
		DeliveryFeeCents: deliveryFeeCents,
		TotalCents:       total,
	}
}
