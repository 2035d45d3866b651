package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/frostlinehq/frostline-backend/pkg/enums"
)

// CartRecord is the bound (account-backed) cart for one customer. A customer
// holds at most one active record; conversion at checkout flips the status.
type CartRecord struct {
	ID             uuid.UUID        `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	CustomerID     uuid.UUID        `gorm:"column:customer_id;type:uuid;not null;index"`
	Status         enums.CartStatus `gorm:"column:status;not null;default:'active'"`
	Currency       enums.Currency   `gorm:"column:currency;not null;default:'USD'"`
	CouponCode     *string          `gorm:"column:coupon_code"`
	SubtotalCents  int              `gorm:"column:subtotal_cents;not null;default:0"`
	DiscountCents  int              `gorm:"column:discount_cents;not null;default:0"`
	TaxCents       int              `gorm:"column:tax_cents;not null;default:0"`
	TotalCents     int              `gorm:"column:total_cents;not null;default:0"`
	MergedAt       *time.Time       `gorm:"column:merged_at"`
	ConvertedAt    *time.Time       `gorm:"column:converted_at"`
	Lines          []CartLine       `gorm:"foreignKey:CartID;constraint:OnDelete:CASCADE"`
	CreatedAt      time.Time        `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time        `gorm:"column:updated_at;autoUpdateTime"`
}
