package repository_test

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/qerbie/qerbie-backend/internal/catalog/domain"
	"github.com/qerbie/qerbie-backend/internal/catalog/repository"
	"github.com/qerbie/qerbie-backend/pkg/errors"
	"github.com/qerbie/qerbie-backend/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const merchantID = "6b0c1b8e-3f1f-4c58-9d4f-0a3c2f7d9e11"

var productCols = []string{"id", "merchant_id", "name", "description", "category", "price_cents", "image_url", "is_available", "sort_order", "created_at", "updated_at"}

func TestProductRepository_Create(t *testing.T) {
	db := testutil.NewMockDB(t)
	defer db.Close()
	repo := repository.NewProductRepository(db.Wrapped)

	now := time.Now()
	p := &domain.Product{ID: "p-1", MerchantID: merchantID, Name: "Espresso", Category: "Coffee", PriceCents: 600, IsAvailable: true, CreatedAt: now, UpdatedAt: now}

	db.ExpectExec("INSERT INTO products").
		WithArgs("p-1", merchantID, "Espresso", "", "Coffee", 600, nil, true, 0, now, now).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Create(context.Background(), p))
	db.ExpectationsWereMet(t)
}

func TestProductRepository_GetByID_NotFound(t *testing.T) {
	db := testutil.NewMockDB(t)
	defer db.Close()
	repo := repository.NewProductRepository(db.Wrapped)

	db.ExpectQuery("FROM products WHERE merchant_id = $1 AND id = $2").
		WithArgs(merchantID, "missing").
		WillReturnRows(testutil.MockRows(productCols...))

	_, err := repo.GetByID(context.Background(), merchantID, "missing")
	assert.True(t, errors.Is(err, errors.ErrNotFound))
}

func TestProductRepository_List_AvailableOnly(t *testing.T) {
	db := testutil.NewMockDB(t)
	defer db.Close()
	repo := repository.NewProductRepository(db.Wrapped)

	now := time.Now()
	db.ExpectQuery("ORDER BY category, sort_order, name").
		WithArgs(merchantID, "", true).
		WillReturnRows(testutil.MockRows(productCols...).
			AddRow("p-1", merchantID, "Croissant", "", "Bakery", 1200, nil, true, 0, now, now).
			AddRow("p-2", merchantID, "Espresso", "", "Coffee", 600, "https://cdn.example.com/e.png", true, 1, now, now))

	products, err := repo.List(context.Background(), merchantID, repository.ListFilter{AvailableOnly: true})
	require.NoError(t, err)

	require.Len(t, products, 2)
	assert.Nil(t, products[0].ImageURL)
	require.NotNil(t, products[1].ImageURL)
	assert.Equal(t, "https://cdn.example.com/e.png", *products[1].ImageURL)
}

func TestProductRepository_GetByIDs_Empty(t *testing.T) {
	db := testutil.NewMockDB(t)
	defer db.Close()
	repo := repository.NewProductRepository(db.Wrapped)

	products, err := repo.GetByIDs(context.Background(), merchantID, nil)
	require.NoError(t, err)
	assert.Empty(t, products)
	db.ExpectationsWereMet(t)
}

func TestProductRepository_Update_NotFound(t *testing.T) {
	db := testutil.NewMockDB(t)
	defer db.Close()
	repo := repository.NewProductRepository(db.Wrapped)

	db.ExpectExec("UPDATE products").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Update(context.Background(), &domain.Product{ID: "p-1", MerchantID: merchantID, Name: "Espresso"})
	assert.True(t, errors.Is(err, errors.ErrNotFound))
}
