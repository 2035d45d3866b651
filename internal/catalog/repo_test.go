package catalog

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/frostlinehq/frostline-backend/pkg/db/models"
	"github.com/frostlinehq/frostline-backend/pkg/enums"
	pkgerrors "github.com/frostlinehq/frostline-backend/pkg/errors"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{
		SkipDefaultTransaction: true,
	})
	require.NoError(t, err)

	ddl := `
CREATE TABLE IF NOT EXISTS products (
  id TEXT PRIMARY KEY,
  sku TEXT NOT NULL UNIQUE,
  name TEXT NOT NULL,
  description TEXT,
  category TEXT NOT NULL,
  cut TEXT,
  weight_grams INTEGER NOT NULL DEFAULT 0,
  price_cents INTEGER NOT NULL,
  available_qty INTEGER NOT NULL DEFAULT 0,
  low_stock_threshold INTEGER NOT NULL DEFAULT 5,
  max_per_order INTEGER NOT NULL DEFAULT 0,
  is_active INTEGER NOT NULL DEFAULT 1,
  image_url TEXT,
  created_at DATETIME,
  updated_at DATETIME
);`
	require.NoError(t, db.Exec(ddl).Error)
	return db
}

func seedProduct(t *testing.T, db *gorm.DB, name string, qty int) models.Product {
	t.Helper()
	product := models.Product{
		ID:                uuid.New(),
		SKU:               "sku-" + uuid.NewString()[:8],
		Name:              name,
		Category:          "beef",
		PriceCents:        2899,
		AvailableQty:      qty,
		LowStockThreshold: 2,
		IsActive:          true,
	}
	require.NoError(t, db.Create(&product).Error)
	return product
}

func TestGetProduct(t *testing.T) {
	db := newTestDB(t)
	repo := NewRepository(db)
	seeded := seedProduct(t, db, "Ribeye 16oz", 10)

	got, err := repo.GetProduct(context.Background(), seeded.ID)
	require.NoError(t, err)
	require.Equal(t, "Ribeye 16oz", got.Name)
	require.Equal(t, enums.StockStatusInStock, got.StockStatus())
}

func TestGetProductNotFound(t *testing.T) {
	repo := NewRepository(newTestDB(t))

	_, err := repo.GetProduct(context.Background(), uuid.New())
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	require.Equal(t, pkgerrors.CodeNotFound, typed.Code())
}

func TestListActiveFiltersInactive(t *testing.T) {
	db := newTestDB(t)
	repo := NewRepository(db)
	seedProduct(t, db, "Ribeye 16oz", 10)
	inactive := seedProduct(t, db, "Discontinued brisket", 3)
	require.NoError(t, db.Model(&models.Product{}).Where("id = ?", inactive.ID).Update("is_active", false).Error)

	products, err := repo.ListActive(context.Background(), "", 0, 0)
	require.NoError(t, err)
	require.Len(t, products, 1)
	require.Equal(t, "Ribeye 16oz", products[0].Name)
}

func TestDecrementStock(t *testing.T) {
	db := newTestDB(t)
	repo := NewRepository(db)
	seeded := seedProduct(t, db, "Ground chuck 1lb", 5)

	require.NoError(t, repo.DecrementStock(context.Background(), nil, seeded.ID, 3))

	got, err := repo.GetProduct(context.Background(), seeded.ID)
	require.NoError(t, err)
	require.Equal(t, 2, got.AvailableQty)

	// more than remains must conflict, not go negative
	err = repo.DecrementStock(context.Background(), nil, seeded.ID, 3)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	require.Equal(t, pkgerrors.CodeConflict, typed.Code())
}

func TestProductStockStatusThresholds(t *testing.T) {
	p := models.Product{AvailableQty: 0, LowStockThreshold: 5}
	require.Equal(t, enums.StockStatusOut, p.StockStatus())
	p.AvailableQty = 4
	require.Equal(t, enums.StockStatusLowStock, p.StockStatus())
	p.AvailableQty = 6
	require.Equal(t, enums.StockStatusInStock, p.StockStatus())
}
