package repository

import (
	"testing"

	"go-inventory-offline/internal/database"
	"go-inventory-offline/internal/model"
	pkgdb "go-inventory-offline/pkg/database"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := pkgdb.ConnectDB(pkgdb.Options{Path: "file:" + uuid.NewString() + "?mode=memory&cache=shared"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = pkgdb.Close(db) })
	require.NoError(t, database.NewMigrator(db).RunMigrations())
	require.NoError(t, database.Seed(db, database.SeedOptions{}))
	return db
}

func seedProduct(t *testing.T, db *gorm.DB, name string) *model.Product {
	t.Helper()
	category, err := NewCategoryRepo(db).FindByName("uniform")
	require.NoError(t, err)
	products := NewProductRepo(db)
	require.NoError(t, products.Create(&model.Product{CategoryID: category.ID, Name: name}))
	p, err := products.FindByName(category.ID, name)
	require.NoError(t, err)
	return p
}

func TestFindVariantMatchesSizeIgnoringCase(t *testing.T) {
	db := setupTestDB(t)
	p := seedProduct(t, db, "Shirt")
	stocks := NewStockRepo(db)

	size := "Age 7-8"
	require.NoError(t, stocks.Create(&model.Stock{ProductID: p.ID, Size: &size, Quantity: 4}))
	require.NoError(t, stocks.Create(&model.Stock{ProductID: p.ID, Quantity: 9}))

	lower := "age 7-8"
	got, err := stocks.FindVariant(p.ID, &lower)
	require.NoError(t, err)
	assert.Equal(t, 4, got.Quantity)
	assert.Equal(t, "Age 7-8", *got.Size)

	got, err = stocks.FindVariant(p.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, 9, got.Quantity)

	other := "XL"
	_, err = stocks.FindVariant(p.ID, &other)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestDecrementIsGuarded(t *testing.T) {
	db := setupTestDB(t)
	p := seedProduct(t, db, "Tie")
	stocks := NewStockRepo(db)

	row := &model.Stock{ProductID: p.ID, Quantity: 5}
	require.NoError(t, stocks.Create(row))

	ok, err := stocks.Decrement(row.ID, 6)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = stocks.Decrement(row.ID, 5)
	require.NoError(t, err)
	assert.True(t, ok)

	got, err := stocks.FindByID(row.ID)
	require.NoError(t, err)
	assert.Zero(t, got.Quantity)
}

func TestVariantUniqueIndex(t *testing.T) {
	db := setupTestDB(t)
	p := seedProduct(t, db, "Belt")
	stocks := NewStockRepo(db)

	require.NoError(t, stocks.Create(&model.Stock{ProductID: p.ID, Quantity: 1}))
	assert.Error(t, stocks.Create(&model.Stock{ProductID: p.ID, Quantity: 2}))
}
