package orders

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/frostlinehq/frostline-backend/pkg/db/models"
	"github.com/frostlinehq/frostline-backend/pkg/enums"
	pkgerrors "github.com/frostlinehq/frostline-backend/pkg/errors"
	"github.com/frostlinehq/frostline-backend/pkg/logger"
)

const defaultListLimit = 20

type orderStore interface {
	GetByID(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
	ListByCustomer(ctx context.Context, customerID uuid.UUID, limit, offset int) ([]models.Order, error)
}

// Service exposes read access to landed orders. Customers see their own
// orders; operator roles may look up any order.
type Service struct {
	store  orderStore
	logger *logger.Logger
}

// NewService wires the order read service.
func NewService(store orderStore, logg *logger.Logger) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("order store is required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger is required")
	}
	return &Service{store: store, logger: logg}, nil
}

// Get returns one order, enforcing ownership for customer callers.
func (s *Service) Get(ctx context.Context, actorID uuid.UUID, role enums.ActorRole, orderID uuid.UUID) (*View, error) {
	order, err := s.store.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !role.IsOperator() && order.CustomerID != actorID {
		// hide the order's existence from other customers
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	view := viewFromModel(order)
	return &view, nil
}

// List returns the caller's orders, newest first.
func (s *Service) List(ctx context.Context, customerID uuid.UUID, limit, offset int) ([]View, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	list, err := s.store.ListByCustomer(ctx, customerID, limit, offset)
	if err != nil {
		return nil, err
	}
	views := make([]View, 0, len(list))
	for idx := range list {
		views = append(views, viewFromModel(&list[idx]))
	}
	return views, nil
}
