package orders

import (
	"context"
	"testing"

	"github.com/google/uuid"

	"github.com/frostlinehq/frostline-backend/pkg/db/models"
	"github.com/frostlinehq/frostline-backend/pkg/enums"
	pkgerrors "github.com/frostlinehq/frostline-backend/pkg/errors"
	"github.com/frostlinehq/frostline-backend/pkg/logger"
)

type stubStore struct {
	order *models.Order
	list  []models.Order
	err   error
}

func (s *stubStore) GetByID(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.order, nil
}

func (s *stubStore) ListByCustomer(ctx context.Context, customerID uuid.UUID, limit, offset int) ([]models.Order, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.list, nil
}

func newTestService(t *testing.T, store *stubStore) *Service {
	t.Helper()
	svc, err := NewService(store, logger.New(logger.Options{ServiceName: "test"}))
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc
}

func TestGetOwnOrder(t *testing.T) {
	customerID := uuid.New()
	svc := newTestService(t, &stubStore{order: &models.Order{
		ID:         uuid.New(),
		CustomerID: customerID,
		Status:     enums.OrderStatusPaid,
		TotalCents: 11200,
	}})

	view, err := svc.Get(context.Background(), customerID, enums.ActorRoleCustomer, uuid.New())
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if view.TotalCents != 11200 {
		t.Fatalf("unexpected view %+v", view)
	}
}

func TestGetForeignOrderIsHidden(t *testing.T) {
	svc := newTestService(t, &stubStore{order: &models.Order{
		ID:         uuid.New(),
		CustomerID: uuid.New(),
	}})

	_, err := svc.Get(context.Background(), uuid.New(), enums.ActorRoleCustomer, uuid.New())
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestOperatorSeesAnyOrder(t *testing.T) {
	svc := newTestService(t, &stubStore{order: &models.Order{
		ID:         uuid.New(),
		CustomerID: uuid.New(),
	}})

	if _, err := svc.Get(context.Background(), uuid.New(), enums.ActorRoleAdmin, uuid.New()); err != nil {
		t.Fatalf("operator get failed: %v", err)
	}
}

func TestListMapsViews(t *testing.T) {
	customerID := uuid.New()
	svc := newTestService(t, &stubStore{list: []models.Order{
		{ID: uuid.New(), CustomerID: customerID, TotalCents: 100},
		{ID: uuid.New(), CustomerID: customerID, TotalCents: 200},
	}})

	views, err := svc.List(context.Background(), customerID, 0, 0)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(views) != 2 {
		t.Fatalf("expected 2 views, got %d", len(views))
	}
}
