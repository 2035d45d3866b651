package orders

import (
	"time"

	"github.com/google/uuid"

	"github.com/frostlinehq/frostline-backend/pkg/db/models"
	"github.com/frostlinehq/frostline-backend/pkg/enums"
	"github.com/frostlinehq/frostline-backend/pkg/types"
)

// LineView is one frozen order line for API responses.
type LineView struct {
	ProductID      uuid.UUID `json:"product_id"`
	Name           string    `json:"name"`
	UnitPriceCents int       `json:"unit_price_cents"`
	Quantity       int       `json:"quantity"`
	LineTotalCents int       `json:"line_total_cents"`
}

// View is the API shape of an order.
type View struct {
	ID               uuid.UUID         `json:"id"`
	Status           enums.OrderStatus `json:"status"`
	Email            string            `json:"email"`
	ShippingAddress  *types.Address    `json:"shipping_address,omitempty"`
	ServiceTier      string            `json:"service_tier,omitempty"`
	EtaMinutes       int               `json:"eta_minutes,omitempty"`
	Currency         enums.Currency    `json:"currency"`
	CouponCode       *string           `json:"coupon_code,omitempty"`
	SubtotalCents    int               `json:"subtotal_cents"`
	DiscountCents    int               `json:"discount_cents"`
	TaxCents         int               `json:"tax_cents"`
	DeliveryFeeCents int               `json:"delivery_fee_cents"`
	TotalCents       int               `json:"total_cents"`
	PaidAt           *time.Time        `json:"paid_at,omitempty"`
	CreatedAt        time.Time         `json:"created_at"`
	Lines            []LineView        `json:"lines"`
}

func viewFromModel(order *models.Order) View {
	view := View{
		ID:               order.ID,
		Status:           order.Status,
		Email:            order.Email,
		ShippingAddress:  order.ShippingAddress,
		ServiceTier:      order.ServiceTier,
		EtaMinutes:       order.EtaMinutes,
		Currency:         order.Currency,
		CouponCode:       order.CouponCode,
		SubtotalCents:    order.SubtotalCents,
		DiscountCents:    order.DiscountCents,
		TaxCents:         order.TaxCents,
		DeliveryFeeCents: order.DeliveryFeeCents,
		TotalCents:       order.TotalCents,
		PaidAt:           order.PaidAt,
		CreatedAt:        order.CreatedAt,
		Lines:            make([]LineView, 0, len(order.Lines)),
	}
	for _, line := range order.Lines {
		view.Lines = append(view.Lines, LineView{
			ProductID:      line.ProductID,
			Name:           line.NameSnapshot,
			UnitPriceCents: line.UnitPriceCents,
			Quantity:       line.Quantity,
			LineTotalCents: line.LineTotalCents,
		})
	}
	return view
}
