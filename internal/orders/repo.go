package orders

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/frostlinehq/frostline-backend/pkg/db/models"
	"github.com/frostlinehq/frostline-backend/pkg/enums"
	pkgerrors "github.com/frostlinehq/frostline-backend/pkg/errors"
)

// Repository encapsulates order persistence.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs an order repository bound to the provided gorm DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Create inserts the order and its lines inside the caller's transaction.
// A duplicate payment session surfaces as a conflict, which the completion
// reconciler treats as "already landed".
func (r *Repository) Create(ctx context.Context, tx *gorm.DB, order *models.Order) error {
	if order == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "order is required")
	}
	if strings.TrimSpace(order.PaymentSessionID) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "payment session id is required")
	}
	if order.ID == uuid.Nil {
		order.ID = uuid.New()
	}
	for idx := range order.Lines {
		if order.Lines[idx].ID == uuid.Nil {
			order.Lines[idx].ID = uuid.New()
		}
		order.Lines[idx].OrderID = order.ID
	}

	if err := r.conn(tx).WithContext(ctx).Create(order).Error; err != nil {
		if isDuplicateKey(err) {
			return pkgerrors.New(pkgerrors.CodeConflict, "order already exists for this payment session")
		}
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "creating order")
	}
	return nil
}

// GetByID loads one order with its lines.
func (r *Repository) GetByID(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id is required")
	}

	var order models.Order
	err := r.db.WithContext(ctx).
		Where("id = ?", orderID).
		Preload("Lines").
		First(&order).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading order")
	}
	return &order, nil
}

// GetByPaymentSession loads the order landed for a payment session, if any.
func (r *Repository) GetByPaymentSession(ctx context.Context, sessionID string) (*models.Order, error) {
	trimmed := strings.TrimSpace(sessionID)
	if trimmed == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment session id is required")
	}

	var order models.Order
	err := r.db.WithContext(ctx).
		Where("payment_session_id = ?", trimmed).
		Preload("Lines").
		First(&order).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading order by payment session")
	}
	return &order, nil
}

// ListByCustomer returns a customer's orders, newest first.
func (r *Repository) ListByCustomer(ctx context.Context, customerID uuid.UUID, limit, offset int) ([]models.Order, error) {
	if customerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "customer id is required")
	}

	query := r.db.WithContext(ctx).
		Where("customer_id = ?", customerID).
		Preload("Lines").
		Order("created_at DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}

	var list []models.Order
	if err := query.Find(&list).Error; err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "listing orders")
	}
	return list, nil
}

// MarkPaid records the payment id and stamps the order paid.
func (r *Repository) MarkPaid(ctx context.Context, tx *gorm.DB, orderID uuid.UUID, paymentID string) error {
	now := time.Now()
	result := r.conn(tx).WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ? AND status = ?", orderID, enums.OrderStatusPending).
		Updates(map[string]any{
			"status":     enums.OrderStatusPaid,
			"payment_id": paymentID,
			"paid_at":    &now,
		})
	if result.Error != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, result.Error, "marking order paid")
	}
	if result.RowsAffected == 0 {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "order is not pending")
	}
	return nil
}

// MarkCanceled stamps a pending order canceled.
func (r *Repository) MarkCanceled(ctx context.Context, orderID uuid.UUID) error {
	now := time.Now()
	result := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ? AND status = ?", orderID, enums.OrderStatusPending).
		Updates(map[string]any{
			"status":      enums.OrderStatusCanceled,
			"canceled_at": &now,
		})
	if result.Error != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, result.Error, "canceling order")
	}
	if result.RowsAffected == 0 {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "order is not pending")
	}
	return nil
}

func (r *Repository) conn(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return r.db
}

func isDuplicateKey(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "duplicate key") || strings.Contains(msg, "unique constraint")
}
