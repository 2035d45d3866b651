package cart

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/frostlinehq/frostline-backend/internal/pricing"
	"github.com/frostlinehq/frostline-backend/pkg/db/models"
	"github.com/frostlinehq/frostline-backend/pkg/enums"
	pkgerrors "github.com/frostlinehq/frostline-backend/pkg/errors"
)

// Repository persists bound carts. A customer owns at most one active cart
// record; reads create it lazily so callers never see not-found for their own
// cart.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs a cart repository bound to the provided gorm DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Load returns the active cart state for a customer.
func (r *Repository) Load(ctx context.Context, owner string) (State, error) {
	record, err := r.activeRecord(ctx, owner)
	if err != nil {
		return State{}, err
	}
	return stateFromRecord(record), nil
}

// UpsertLine sets the absolute quantity for a product on the active cart,
// inserting the line when missing.
func (r *Repository) UpsertLine(ctx context.Context, owner string, line Line) error {
	record, err := r.activeRecord(ctx, owner)
	if err != nil {
		return err
	}
	row := models.CartLine{
		ID:             uuid.New(),
		CartID:         record.ID,
		ProductID:      line.ProductID,
		NameSnapshot:   line.Name,
		UnitPriceCents: line.UnitPriceCents,
		Quantity:       line.Quantity,
	}
	err = r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "cart_id"}, {Name: "product_id"}},
			DoUpdates: clause.Assignments(map[string]any{
				"quantity":         line.Quantity,
				"name_snapshot":    line.Name,
				"unit_price_cents": line.UnitPriceCents,
				"updated_at":       time.Now(),
			}),
		}).
		Create(&row).
		Error
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "upserting cart line")
	}
	return nil
}

// RemoveLine drops a product from the active cart. Absent lines are a no-op.
func (r *Repository) RemoveLine(ctx context.Context, owner string, productID uuid.UUID) error {
	record, err := r.activeRecord(ctx, owner)
	if err != nil {
		return err
	}
	err = r.db.WithContext(ctx).
		Where("cart_id = ? AND product_id = ?", record.ID, productID).
		Delete(&models.CartLine{}).
		Error
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "removing cart line")
	}
	return nil
}

// SetCoupon attaches or clears the coupon code on the active cart.
func (r *Repository) SetCoupon(ctx context.Context, owner string, code *string) error {
	record, err := r.activeRecord(ctx, owner)
	if err != nil {
		return err
	}
	err = r.db.WithContext(ctx).
		Model(&models.CartRecord{}).
		Where("id = ?", record.ID).
		Update("coupon_code", code).
		Error
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "setting cart coupon")
	}
	return nil
}

// SaveTotals caches the latest computed money breakdown on the cart record.
func (r *Repository) SaveTotals(ctx context.Context, owner string, totals pricing.Totals) error {
	record, err := r.activeRecord(ctx, owner)
	if err != nil {
		return err
	}
	err = r.db.WithContext(ctx).
		Model(&models.CartRecord{}).
		Where("id = ?", record.ID).
		Updates(map[string]any{
			"subtotal_cents": totals.SubtotalCents,
			"discount_cents": totals.DiscountCents,
			"tax_cents":      totals.TaxCents,
			"total_cents":    totals.TotalCents,
		}).
		Error
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "saving cart totals")
	}
	return nil
}

// Clear empties the active cart: all lines go, the coupon detaches, cached
// totals reset. The record itself stays active.
func (r *Repository) Clear(ctx context.Context, owner string) error {
	record, err := r.activeRecord(ctx, owner)
	if err != nil {
		return err
	}
	return r.clearRecord(ctx, r.db, record.ID)
}

// MarkMerged stamps the active cart after a guest merge replay.
func (r *Repository) MarkMerged(ctx context.Context, customerID uuid.UUID) error {
	now := time.Now()
	err := r.db.WithContext(ctx).
		Model(&models.CartRecord{}).
		Where("customer_id = ? AND status = ?", customerID, enums.CartStatusActive).
		Update("merged_at", &now).
		Error
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "marking cart merged")
	}
	return nil
}

// ConvertActive flips the active cart to converted inside the caller's
// transaction. The next cart read creates a fresh active record.
func (r *Repository) ConvertActive(ctx context.Context, tx *gorm.DB, customerID uuid.UUID) error {
	now := time.Now()
	err := r.conn(tx).WithContext(ctx).
		Model(&models.CartRecord{}).
		Where("customer_id = ? AND status = ?", customerID, enums.CartStatusActive).
		Updates(map[string]any{
			"status":       enums.CartStatusConverted,
			"converted_at": &now,
		}).
		Error
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "converting cart")
	}
	return nil
}

func (r *Repository) activeRecord(ctx context.Context, owner string) (*models.CartRecord, error) {
	customerID, err := uuid.Parse(owner)
	if err != nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "cart owner is not a customer id")
	}

	var record models.CartRecord
	err = r.db.WithContext(ctx).
		Where("customer_id = ? AND status = ?", customerID, enums.CartStatusActive).
		Preload("Lines").
		First(&record).
		Error
	if err == nil {
		return &record, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading cart")
	}

	record = models.CartRecord{
		ID:         uuid.New(),
		CustomerID: customerID,
		Status:     enums.CartStatusActive,
		Currency:   enums.CurrencyUSD,
	}
	if err := r.db.WithContext(ctx).Create(&record).Error; err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "creating cart")
	}
	return &record, nil
}

func (r *Repository) clearRecord(ctx context.Context, conn *gorm.DB, cartID uuid.UUID) error {
	err := conn.WithContext(ctx).
		Where("cart_id = ?", cartID).
		Delete(&models.CartLine{}).
		Error
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "clearing cart lines")
	}
	err = conn.WithContext(ctx).
		Model(&models.CartRecord{}).
		Where("id = ?", cartID).
		Updates(map[string]any{
			"coupon_code":    nil,
			"subtotal_cents": 0,
			"discount_cents": 0,
			"tax_cents":      0,
			"total_cents":    0,
		}).
		Error
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "resetting cart record")
	}
	return nil
}

func (r *Repository) conn(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return r.db
}

func stateFromRecord(record *models.CartRecord) State {
	state := State{CouponCode: record.CouponCode}
	for _, row := range record.Lines {
		state.Lines = append(state.Lines, Line{
			ProductID:      row.ProductID,
			Name:           row.NameSnapshot,
			UnitPriceCents: row.UnitPriceCents,
			Quantity:       row.Quantity,
		})
	}
	return state
}
