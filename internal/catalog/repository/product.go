package repository

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/qerbie/qerbie-backend/internal/catalog/domain"
	"github.com/qerbie/qerbie-backend/pkg/database"
	"github.com/qerbie/qerbie-backend/pkg/errors"
)

const productColumns = `id, merchant_id, name, description, category, price_cents, image_url, is_available, sort_order, created_at, updated_at`

// ProductRepository handles product persistence
type ProductRepository struct {
	db *database.DB
}

// NewProductRepository creates a new product repository
func NewProductRepository(db *database.DB) *ProductRepository {
	return &ProductRepository{db: db}
}

// ListFilter narrows a product listing
type ListFilter struct {
	Category      string
	AvailableOnly bool
}

// Create inserts a product
func (r *ProductRepository) Create(ctx context.Context, p *domain.Product) error {
	query := `
		INSERT INTO products (` + productColumns + `)
		VALUES (:id, :merchant_id, :name, :description, :category, :price_cents, :image_url, :is_available, :sort_order, :created_at, :updated_at)
	`
	_, err := sqlx.NamedExecContext(ctx, r.db.Conn(ctx), query, p)
	return database.MapError(err)
}

// GetByID gets a product of a merchant
func (r *ProductRepository) GetByID(ctx context.Context, merchantID, id string) (*domain.Product, error) {
	var p domain.Product
	query := `SELECT ` + productColumns + ` FROM products WHERE merchant_id = $1 AND id = $2`
	if err := sqlx.GetContext(ctx, r.db.Conn(ctx), &p, query, merchantID, id); err != nil {
		if database.IsNoRows(err) {
			return nil, errors.NotFoundWithKey("product")
		}
		return nil, err
	}
	return &p, nil
}

// GetByIDs loads the given products of a merchant; unknown IDs are simply absent from the result
func (r *ProductRepository) GetByIDs(ctx context.Context, merchantID string, ids []string) ([]domain.Product, error) {
	out := []domain.Product{}
	if len(ids) == 0 {
		return out, nil
	}
	query := `SELECT ` + productColumns + ` FROM products WHERE merchant_id = $1 AND id = ANY($2)`
	if err := sqlx.SelectContext(ctx, r.db.Conn(ctx), &out, query, merchantID, pq.Array(ids)); err != nil {
		return nil, err
	}
	return out, nil
}

// List lists the products of a merchant in menu order
func (r *ProductRepository) List(ctx context.Context, merchantID string, f ListFilter) ([]domain.Product, error) {
	query := `
		SELECT ` + productColumns + `
		FROM products
		WHERE merchant_id = $1
		  AND ($2 = '' OR category = $2)
		  AND (NOT $3 OR is_available)
		ORDER BY category, sort_order, name
	`
	out := []domain.Product{}
	if err := sqlx.SelectContext(ctx, r.db.Conn(ctx), &out, query, merchantID, f.Category, f.AvailableOnly); err != nil {
		return nil, err
	}
	return out, nil
}

// Update writes every mutable product field
func (r *ProductRepository) Update(ctx context.Context, p *domain.Product) error {
	p.UpdatedAt = time.Now().UTC()
	query := `
		UPDATE products
		SET name = :name, description = :description, category = :category, price_cents = :price_cents,
		    image_url = :image_url, is_available = :is_available, sort_order = :sort_order, updated_at = :updated_at
		WHERE merchant_id = :merchant_id AND id = :id
	`
	res, err := sqlx.NamedExecContext(ctx, r.db.Conn(ctx), query, p)
	if err != nil {
		return database.MapError(err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errors.NotFoundWithKey("product")
	}
	return nil
}

// Delete removes a product. Past order items keep their snapshot.
func (r *ProductRepository) Delete(ctx context.Context, merchantID, id string) error {
	res, err := r.db.Conn(ctx).ExecContext(ctx, `DELETE FROM products WHERE merchant_id = $1 AND id = $2`, merchantID, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errors.NotFoundWithKey("product")
	}
	return nil
}
