package catalog

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/frostlinehq/frostline-backend/pkg/db/models"
	pkgerrors "github.com/frostlinehq/frostline-backend/pkg/errors"
)

// Repository encapsulates catalog persistence.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs a catalog repository bound to the provided gorm DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// GetProduct loads one product by id. Availability on the returned record is
// a live read, valid only for the operation in flight.
func (r *Repository) GetProduct(ctx context.Context, productID uuid.UUID) (*models.Product, error) {
	if productID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product id is required")
	}

	var product models.Product
	err := r.db.WithContext(ctx).
		Where("id = ?", productID).
		First(&product).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading product")
	}
	return &product, nil
}

// ListActive returns active products, optionally filtered by category.
func (r *Repository) ListActive(ctx context.Context, category string, limit, offset int) ([]models.Product, error) {
	query := r.db.WithContext(ctx).
		Model(&models.Product{}).
		Where("is_active = ?", true)

	if trimmed := strings.TrimSpace(category); trimmed != "" {
		query = query.Where("category = ?", trimmed)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}

	var products []models.Product
	if err := query.Order("name ASC").Find(&products).Error; err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "listing products")
	}
	return products, nil
}

// DecrementStock atomically reduces availability for a completed order line.
// The conditional WHERE keeps availability from going negative under
// concurrent completions.
func (r *Repository) DecrementStock(ctx context.Context, tx *gorm.DB, productID uuid.UUID, qty int) error {
	if qty <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "decrement quantity must be positive")
	}
	conn := tx
	if conn == nil {
		conn = r.db
	}

	result := conn.WithContext(ctx).
		Model(&models.Product{}).
		Where("id = ? AND available_qty >= ?", productID, qty).
		UpdateColumn("available_qty", gorm.Expr("available_qty - ?", qty))
	if result.Error != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, result.Error, "decrementing stock")
	}
	if result.RowsAffected == 0 {
		return pkgerrors.New(pkgerrors.CodeConflict, "insufficient stock to decrement")
	}
	return nil
}
