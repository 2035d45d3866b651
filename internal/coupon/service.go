package coupon

import (
	"context"
	"fmt"
	"time"

	"github.com/frostlinehq/frostline-backend/internal/pricing"
	"github.com/frostlinehq/frostline-backend/pkg/db/models"
	"github.com/frostlinehq/frostline-backend/pkg/enums"
	pkgerrors "github.com/frostlinehq/frostline-backend/pkg/errors"
	"github.com/frostlinehq/frostline-backend/pkg/logger"
)

type couponLoader interface {
	FindByCode(ctx context.Context, code string) (*models.Coupon, error)
}

// Service validates coupon codes against a cart subtotal. A rejected code
// never mutates anything; the caller surfaces the reason inline.
type Service struct {
	loader couponLoader
	logger *logger.Logger
	now    func() time.Time
}

// NewService wires the coupon validation service.
func NewService(loader couponLoader, logg *logger.Logger) (*Service, error) {
	if loader == nil {
		return nil, fmt.Errorf("coupon loader is required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger is required")
	}
	return &Service{loader: loader, logger: logg, now: time.Now}, nil
}

// Validate checks a code against the subtotal and returns the discount ready
// for the pricing calculator.
func (s *Service) Validate(ctx context.Context, code string, subtotalCents int) (*pricing.Discount, error) {
	record, err := s.loader.FindByCode(ctx, code)
	if err != nil {
		if typed := pkgerrors.As(err); typed != nil && typed.Code() == pkgerrors.CodeNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "coupon code is not recognized")
		}
		return nil, err
	}

	now := s.now()
	switch {
	case !record.IsActive:
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "coupon is no longer active")
	case record.StartsAt != nil && now.Before(*record.StartsAt):
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "coupon is not active yet")
	case record.ExpiresAt != nil && now.After(*record.ExpiresAt):
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "coupon has expired")
	case record.MinSubtotalCents > 0 && subtotalCents < record.MinSubtotalCents:
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cart subtotal below coupon minimum")
	}

	discount := pricing.Discount{Code: record.Code, Kind: record.Kind}
	switch record.Kind {
	case enums.CouponKindPercent:
		if record.PercentOff == nil || *record.PercentOff <= 0 || *record.PercentOff > 100 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "coupon percentage is invalid")
		}
		discount.PercentOff = *record.PercentOff
	case enums.CouponKindFixed:
		if record.AmountOffCents == nil || *record.AmountOffCents <= 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "coupon amount is invalid")
		}
		discount.AmountOffCents = *record.AmountOffCents
	default:
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "coupon kind is unsupported")
	}

	return &discount, nil
}
