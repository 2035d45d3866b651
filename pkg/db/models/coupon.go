package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/frostlinehq/frostline-backend/pkg/enums"
)

// Coupon is a redeemable discount code. Percent coupons carry PercentOff in
// basis points of 100 (e.g. 15 means 15%); fixed coupons carry AmountOffCents.
type Coupon struct {
	ID               uuid.UUID        `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Code             string           `gorm:"column:code;not null;uniqueIndex"`
	Kind             enums.CouponKind `gorm:"column:kind;not null"`
	PercentOff       *int             `gorm:"column:percent_off"`
	AmountOffCents   *int             `gorm:"column:amount_off_cents"`
	MinSubtotalCents int              `gorm:"column:min_subtotal_cents;not null;default:0"`
	StartsAt         *time.Time       `gorm:"column:starts_at"`
	ExpiresAt        *time.Time       `gorm:"column:expires_at"`
	IsActive         bool             `gorm:"column:is_active;not null;default:true"`
	CreatedAt        time.Time        `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time        `gorm:"column:updated_at;autoUpdateTime"`
}
