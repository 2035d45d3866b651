package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/frostlinehq/frostline-backend/pkg/enums"
)

// Product is a catalog listing. AvailableQty is the live sellable count the
// stock guard reads; LowStockThreshold drives the low-stock signal.
type Product struct {
	ID                uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	SKU               string    `gorm:"column:sku;not null;uniqueIndex"`
	Name              string    `gorm:"column:name;not null"`
	Description       *string   `gorm:"column:description"`
	Category          string    `gorm:"column:category;not null"`
	Cut               *string   `gorm:"column:cut"`
	WeightGrams       int       `gorm:"column:weight_grams;not null;default:0"`
	PriceCents        int       `gorm:"column:price_cents;not null"`
	AvailableQty      int       `gorm:"column:available_qty;not null;default:0"`
	LowStockThreshold int       `gorm:"column:low_stock_threshold;not null;default:5"`
	MaxPerOrder       int       `gorm:"column:max_per_order;not null;default:0"`
	IsActive          bool      `gorm:"column:is_active;not null;default:true"`
	ImageURL          *string   `gorm:"column:image_url"`
	CreatedAt         time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// StockStatus derives the tri-state availability signal.
func (p Product) StockStatus() enums.StockStatus {
	switch {
	case p.AvailableQty <= 0:
		return enums.StockStatusOut
	case p.AvailableQty <= p.LowStockThreshold:
		return enums.StockStatusLowStock
	}
	return enums.StockStatusInStock
}
