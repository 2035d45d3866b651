package coupon

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"

	"github.com/frostlinehq/frostline-backend/pkg/db/models"
	pkgerrors "github.com/frostlinehq/frostline-backend/pkg/errors"
)

// Repository encapsulates coupon persistence.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs a coupon repository bound to the provided gorm DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// FindByCode loads a coupon by its case-insensitive code.
func (r *Repository) FindByCode(ctx context.Context, code string) (*models.Coupon, error) {
	trimmed := strings.TrimSpace(code)
	if trimmed == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "coupon code is required")
	}

	var coupon models.Coupon
	err := r.db.WithContext(ctx).
		Where("UPPER(code) = UPPER(?)", trimmed).
		First(&coupon).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "coupon not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading coupon")
	}
	return &coupon, nil
}
