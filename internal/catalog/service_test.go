package catalog

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/hermagulator/shopbot/pkg/db/models"
	pkgerrors "github.com/hermagulator/shopbot/pkg/errors"
	"github.com/hermagulator/shopbot/pkg/pagination"
)

func setupCatalogTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := "file:" + t.Name() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)

	categories := `
CREATE TABLE IF NOT EXISTS categories (
  id TEXT PRIMARY KEY,
  name TEXT NOT NULL UNIQUE,
  is_active INTEGER NOT NULL DEFAULT 1,
  created_at DATETIME,
  updated_at DATETIME
);`
	products := `
CREATE TABLE IF NOT EXISTS products (
  id TEXT PRIMARY KEY,
  category_id TEXT,
  name TEXT NOT NULL,
  description TEXT NOT NULL DEFAULT '',
  price NUMERIC NOT NULL,
  available_qty INTEGER NOT NULL DEFAULT 0,
  reserved_qty INTEGER NOT NULL DEFAULT 0,
  delivery_payload TEXT,
  is_active INTEGER NOT NULL DEFAULT 1,
  created_at DATETIME,
  updated_at DATETIME
);`
	require.NoError(t, db.Exec(categories).Error)
	require.NoError(t, db.Exec(products).Error)
	return db
}

func newProduct(t *testing.T, db *gorm.DB, name string, available int) *models.Product {
	t.Helper()

	product := &models.Product{
		ID:           uuid.New(),
		Name:         name,
		Price:        decimal.RequireFromString("9.99"),
		AvailableQty: available,
		IsActive:     true,
	}
	require.NoError(t, db.Create(product).Error)
	return product
}

func TestReserveMovesStockToReservedPool(t *testing.T) {
	db := setupCatalogTestDB(t)
	svc, err := NewService(NewRepository(db))
	require.NoError(t, err)

	product := newProduct(t, db, "VPN Key", 5)

	require.NoError(t, db.Transaction(func(tx *gorm.DB) error {
		return svc.Reserve(context.Background(), tx, product.ID, 3)
	}))

	reloaded, err := svc.GetProduct(context.Background(), product.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, reloaded.AvailableQty)
	assert.Equal(t, 3, reloaded.ReservedQty)
}

func TestReserveFailsWhenNotEnoughStock(t *testing.T) {
	db := setupCatalogTestDB(t)
	svc, err := NewService(NewRepository(db))
	require.NoError(t, err)

	product := newProduct(t, db, "Game Code", 1)

	err = db.Transaction(func(tx *gorm.DB) error {
		return svc.Reserve(context.Background(), tx, product.ID, 2)
	})
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeOutOfStock))

	reloaded, err := svc.GetProduct(context.Background(), product.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, reloaded.AvailableQty)
	assert.Equal(t, 0, reloaded.ReservedQty)
}

func TestReserveFailsForInactiveProduct(t *testing.T) {
	db := setupCatalogTestDB(t)
	svc, err := NewService(NewRepository(db))
	require.NoError(t, err)

	product := newProduct(t, db, "Retired SKU", 10)
	require.NoError(t, svc.SetProductActive(context.Background(), product.ID, false))

	err = db.Transaction(func(tx *gorm.DB) error {
		return svc.Reserve(context.Background(), tx, product.ID, 1)
	})
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeOutOfStock))
}

func TestCommitReservationConsumesReservedStock(t *testing.T) {
	db := setupCatalogTestDB(t)
	svc, err := NewService(NewRepository(db))
	require.NoError(t, err)

	product := newProduct(t, db, "License", 4)

	require.NoError(t, db.Transaction(func(tx *gorm.DB) error {
		return svc.Reserve(context.Background(), tx, product.ID, 2)
	}))
	require.NoError(t, db.Transaction(func(tx *gorm.DB) error {
		return svc.CommitReservation(context.Background(), tx, product.ID, 2)
	}))

	reloaded, err := svc.GetProduct(context.Background(), product.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, reloaded.AvailableQty)
	assert.Equal(t, 0, reloaded.ReservedQty)
}

func TestCommitReservationWithoutReservationConflicts(t *testing.T) {
	db := setupCatalogTestDB(t)
	svc, err := NewService(NewRepository(db))
	require.NoError(t, err)

	product := newProduct(t, db, "License", 4)

	err = db.Transaction(func(tx *gorm.DB) error {
		return svc.CommitReservation(context.Background(), tx, product.ID, 2)
	})
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStockConflict))
}

func TestReleaseReturnsStockToAvailablePool(t *testing.T) {
	db := setupCatalogTestDB(t)
	svc, err := NewService(NewRepository(db))
	require.NoError(t, err)

	product := newProduct(t, db, "Account", 3)

	require.NoError(t, db.Transaction(func(tx *gorm.DB) error {
		return svc.Reserve(context.Background(), tx, product.ID, 3)
	}))
	require.NoError(t, db.Transaction(func(tx *gorm.DB) error {
		return svc.Release(context.Background(), tx, product.ID, 3)
	}))

	reloaded, err := svc.GetProduct(context.Background(), product.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, reloaded.AvailableQty)
	assert.Equal(t, 0, reloaded.ReservedQty)
}

func TestListProductsFiltersInactiveAndByCategory(t *testing.T) {
	db := setupCatalogTestDB(t)
	repo := NewRepository(db)
	svc, err := NewService(repo)
	require.NoError(t, err)

	category := &models.Category{ID: uuid.New(), Name: "Streaming", IsActive: true}
	require.NoError(t, db.Create(category).Error)

	inCategory := newProduct(t, db, "Streaming Pass", 1)
	require.NoError(t, repo.UpdateProduct(context.Background(), inCategory.ID, map[string]any{"category_id": category.ID}))
	newProduct(t, db, "Other", 1)
	hidden := newProduct(t, db, "Hidden", 1)
	require.NoError(t, svc.SetProductActive(context.Background(), hidden.ID, false))

	all, err := svc.ListProducts(context.Background(), nil, pagination.Params{Limit: 10})
	require.NoError(t, err)
	require.Len(t, all, 2)

	scoped, err := svc.ListProducts(context.Background(), &category.ID, pagination.Params{Limit: 10})
	require.NoError(t, err)
	require.Len(t, scoped, 1)
	assert.Equal(t, "Streaming Pass", scoped[0].Name)
}

func TestCreateProductValidatesInput(t *testing.T) {
	db := setupCatalogTestDB(t)
	svc, err := NewService(NewRepository(db))
	require.NoError(t, err)

	_, err = svc.CreateProduct(context.Background(), CreateProductInput{Name: "", Price: "1.00"})
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	_, err = svc.CreateProduct(context.Background(), CreateProductInput{Name: "Thing", Price: "-1"})
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	created, err := svc.CreateProduct(context.Background(), CreateProductInput{Name: "Thing", Price: "12.50", AvailableQty: 7})
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, created.ID)
	assert.Equal(t, 7, created.AvailableQty)
	assert.True(t, created.Price.Equal(decimal.RequireFromString("12.50")))
}
