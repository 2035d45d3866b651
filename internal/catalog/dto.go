package catalog

import (
	"github.com/google/uuid"

	"github.com/frostlinehq/frostline-backend/pkg/db/models"
	"github.com/frostlinehq/frostline-backend/pkg/enums"
)

// ProductView is the storefront-facing product shape.
type ProductView struct {
	ID           uuid.UUID         `json:"id"`
	SKU          string            `json:"sku"`
	Name         string            `json:"name"`
	Description  *string           `json:"description,omitempty"`
	Category     string            `json:"category"`
	Cut          *string           `json:"cut,omitempty"`
	WeightGrams  int               `json:"weight_grams"`
	PriceCents   int               `json:"price_cents"`
	StockStatus  enums.StockStatus `json:"stock_status"`
	AvailableQty int               `json:"available_qty"`
	MaxPerOrder  int               `json:"max_per_order"`
	ImageURL     *string           `json:"image_url,omitempty"`
}

func toView(p models.Product) ProductView {
	return ProductView{
		ID:           p.ID,
		SKU:          p.SKU,
		Name:         p.Name,
		Description:  p.Description,
		Category:     p.Category,
		Cut:          p.Cut,
		WeightGrams:  p.WeightGrams,
		PriceCents:   p.PriceCents,
		StockStatus:  p.StockStatus(),
		AvailableQty: p.AvailableQty,
		MaxPerOrder:  p.MaxPerOrder,
		ImageURL:     p.ImageURL,
	}
}
