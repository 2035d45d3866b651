package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/frostlinehq/frostline-backend/pkg/enums"
	"github.com/frostlinehq/frostline-backend/pkg/types"
)

// Order is the persisted outcome of a completed checkout. PaymentSessionID is
// unique so the completion reconciler can land the same session only once.
type Order struct {
	ID               uuid.UUID         `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	CustomerID       uuid.UUID         `gorm:"column:customer_id;type:uuid;not null;index"`
	PaymentSessionID string            `gorm:"column:payment_session_id;not null;uniqueIndex"`
	PaymentID        *string           `gorm:"column:payment_id"`
	Status           enums.OrderStatus `gorm:"column:status;not null;default:'pending'"`
	Email            string            `gorm:"column:email;not null"`
	ShippingAddress  *types.Address    `gorm:"column:shipping_address;type:jsonb;serializer:json"`
	ServiceTier      string            `gorm:"column:service_tier"`
	EtaMinutes       int               `gorm:"column:eta_minutes;not null;default:0"`
	Currency         enums.Currency    `gorm:"column:currency;not null;default:'USD'"`
	CouponCode       *string           `gorm:"column:coupon_code"`
	SubtotalCents    int               `gorm:"column:subtotal_cents;not null;default:0"`
	DiscountCents    int               `gorm:"column:discount_cents;not null;default:0"`
	TaxCents         int               `gorm:"column:tax_cents;not null;default:0"`
	DeliveryFeeCents int               `gorm:"column:delivery_fee_cents;not null;default:0"`
	TotalCents       int               `gorm:"column:total_cents;not null;default:0"`
	PaidAt           *time.Time        `gorm:"column:paid_at"`
	CanceledAt       *time.Time        `gorm:"column:canceled_at"`
	Lines            []OrderLine       `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	CreatedAt        time.Time         `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time         `gorm:"column:updated_at;autoUpdateTime"`
}
