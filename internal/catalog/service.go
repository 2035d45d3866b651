package catalog

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/frostlinehq/frostline-backend/pkg/db/models"
	"github.com/frostlinehq/frostline-backend/pkg/logger"
)

const defaultListLimit = 50

type productStore interface {
	GetProduct(ctx context.Context, productID uuid.UUID) (*models.Product, error)
	ListActive(ctx context.Context, category string, limit, offset int) ([]models.Product, error)
}

// Service serves storefront catalog reads.
type Service struct {
	store  productStore
	logger *logger.Logger
}

// NewService wires the catalog service.
func NewService(store productStore, logg *logger.Logger) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("product store is required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger is required")
	}
	return &Service{store: store, logger: logg}, nil
}

// Get returns one product view.
func (s *Service) Get(ctx context.Context, productID uuid.UUID) (*ProductView, error) {
	product, err := s.store.GetProduct(ctx, productID)
	if err != nil {
		return nil, err
	}
	view := toView(*product)
	return &view, nil
}

// List returns active products for browsing.
func (s *Service) List(ctx context.Context, category string, limit, offset int) ([]ProductView, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	products, err := s.store.ListActive(ctx, category, limit, offset)
	if err != nil {
		return nil, err
	}

	views := make([]ProductView, 0, len(products))
	for _, p := range products {
		views = append(views, toView(p))
	}
	return views, nil
}
