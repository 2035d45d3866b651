package square

import (
	"strconv"
	"strings"

	sq "github.com/square/square-go-sdk"
	sqcheckout "github.com/square/square-go-sdk/checkout"
)

// PaymentLinkLineItem is one order line rendered on the hosted checkout page.
type PaymentLinkLineItem struct {
	Name           string
	Quantity       int
	UnitPriceCents int64
}

// PaymentLinkCreateParams contains the fields required to open a hosted
// checkout session. Discounts and taxes arrive pre-computed as totals so the
// pricing calculator stays the single source of truth.
type PaymentLinkCreateParams struct {
	ReferenceID      string
	Description      string
	BuyerEmail       string
	RedirectURL      string
	Currency         string
	LineItems        []PaymentLinkLineItem
	DiscountCents    int64
	TaxCents         int64
	DeliveryFeeCents int64
	IdempotencyKey   string
}

// TotalCents sums the charge presented to the buyer.
func (p PaymentLinkCreateParams) TotalCents() int64 {
	var total int64
	for _, line := range p.LineItems {
		total += int64(line.Quantity) * line.UnitPriceCents
	}
	total -= p.DiscountCents
	if total < 0 {
		total = 0
	}
	return total + p.TaxCents + p.DeliveryFeeCents
}

func (p PaymentLinkCreateParams) toSquareRequest(idempotencyKey, locationID string) *sqcheckout.CreatePaymentLinkRequest {
	lineItems := make([]*sq.OrderLineItem, 0, len(p.LineItems)+2)
	for _, line := range p.LineItems {
		lineItems = append(lineItems, &sq.OrderLineItem{
			Name:           ptrString(line.Name),
			Quantity:       strconv.Itoa(line.Quantity),
			BasePriceMoney: moneyPtr(line.UnitPriceCents, p.Currency),
		})
	}
	if p.TaxCents > 0 {
		lineItems = append(lineItems, &sq.OrderLineItem{
			Name:           ptrString("Sales tax"),
			Quantity:       "1",
			BasePriceMoney: moneyPtr(p.TaxCents, p.Currency),
		})
	}
	if p.DeliveryFeeCents > 0 {
		lineItems = append(lineItems, &sq.OrderLineItem{
			Name:           ptrString("Cold-chain delivery"),
			Quantity:       "1",
			BasePriceMoney: moneyPtr(p.DeliveryFeeCents, p.Currency),
		})
	}

	order := &sq.Order{
		LocationID: locationID,
		LineItems:  lineItems,
	}
	if trimmed := strings.TrimSpace(p.ReferenceID); trimmed != "" {
		order.ReferenceID = ptrString(trimmed)
	}
	if p.DiscountCents > 0 {
		order.Discounts = []*sq.OrderLineItemDiscount{{
			Name:        ptrString("Coupon"),
			AmountMoney: moneyPtr(p.DiscountCents, p.Currency),
		}}
	}

	req := &sqcheckout.CreatePaymentLinkRequest{
		IdempotencyKey: ptrString(idempotencyKey),
		Order:          order,
	}
	if trimmed := strings.TrimSpace(p.Description); trimmed != "" {
		req.Description = ptrString(trimmed)
	}
	if trimmed := strings.TrimSpace(p.RedirectURL); trimmed != "" {
		req.CheckoutOptions = &sq.CheckoutOptions{RedirectURL: ptrString(trimmed)}
	}
	if trimmed := strings.TrimSpace(p.BuyerEmail); trimmed != "" {
		req.PrePopulatedData = &sq.PrePopulatedData{BuyerEmail: ptrString(trimmed)}
	}
	return req
}

func ptrString(value string) *string {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	return &value
}

func int64Ptr(value int64) *int64 {
	return &value
}

func currencyPtr(code string) *sq.Currency {
	trimmed := strings.ToUpper(strings.TrimSpace(code))
	if trimmed == "" {
		trimmed = "USD"
	}
	c := sq.Currency(trimmed)
	return &c
}

func moneyPtr(amount int64, currency string) *sq.Money {
	if amount == 0 {
		return nil
	}
	return &sq.Money{
		Amount:   int64Ptr(amount),
		Currency: currencyPtr(currency),
	}
}
