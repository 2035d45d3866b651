package models

import (
	"time"

	"github.com/google/uuid"
)

// CartLine is one product entry in a bound cart. Name and unit price are
// snapshotted at add time so later catalog edits don't silently reprice a
// cart; reconciliation refreshes them explicitly.
type CartLine struct {
	ID             uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	CartID         uuid.UUID `gorm:"column:cart_id;type:uuid;not null;index:idx_cart_lines_cart_product,unique"`
	ProductID      uuid.UUID `gorm:"column:product_id;type:uuid;not null;index:idx_cart_lines_cart_product,unique"`
	NameSnapshot   string    `gorm:"column:name_snapshot;not null"`
	UnitPriceCents int       `gorm:"column:unit_price_cents;not null"`
	Quantity       int       `gorm:"column:quantity;not null"`
	CreatedAt      time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
