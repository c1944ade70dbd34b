package repository

import (
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/qerbie/qerbie-backend/internal/order/domain"
	"github.com/qerbie/qerbie-backend/pkg/database"
	"github.com/qerbie/qerbie-backend/pkg/errors"
)

const tableColumns = `id, merchant_id, label, qr_token, is_active, created_at, updated_at`

// TableRepository handles restaurant table persistence
type TableRepository struct {
	db *database.DB
}

// NewTableRepository creates a new table repository
func NewTableRepository(db *database.DB) *TableRepository {
	return &TableRepository{db: db}
}

// Create inserts a table
func (r *TableRepository) Create(ctx context.Context, t *domain.Table) error {
	query := `
		INSERT INTO merchant_tables (` + tableColumns + `)
		VALUES (:id, :merchant_id, :label, :qr_token, :is_active, :created_at, :updated_at)
	`
	_, err := sqlx.NamedExecContext(ctx, r.db.Conn(ctx), query, t)
	return database.MapError(err)
}

// GetByID gets a table of a merchant
func (r *TableRepository) GetByID(ctx context.Context, merchantID, id string) (*domain.Table, error) {
	var t domain.Table
	query := `SELECT ` + tableColumns + ` FROM merchant_tables WHERE merchant_id = $1 AND id = $2`
	if err := sqlx.GetContext(ctx, r.db.Conn(ctx), &t, query, merchantID, id); err != nil {
		if database.IsNoRows(err) {
			return nil, errors.NotFoundWithKey("table")
		}
		return nil, err
	}
	return &t, nil
}

// List lists the tables of a merchant by label
func (r *TableRepository) List(ctx context.Context, merchantID string) ([]domain.Table, error) {
	out := []domain.Table{}
	query := `SELECT ` + tableColumns + ` FROM merchant_tables WHERE merchant_id = $1 ORDER BY label`
	if err := sqlx.SelectContext(ctx, r.db.Conn(ctx), &out, query, merchantID); err != nil {
		return nil, err
	}
	return out, nil
}

// Update saves the label and active flag of a table
func (r *TableRepository) Update(ctx context.Context, t *domain.Table) error {
	query := `
		UPDATE merchant_tables
		SET label = :label, is_active = :is_active, updated_at = :updated_at
		WHERE merchant_id = :merchant_id AND id = :id
	`
	res, err := sqlx.NamedExecContext(ctx, r.db.Conn(ctx), query, t)
	if err != nil {
		return database.MapError(err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errors.NotFoundWithKey("table")
	}
	return nil
}

// Delete removes a table; its orders keep existing without a table
func (r *TableRepository) Delete(ctx context.Context, merchantID, id string) error {
	res, err := r.db.Conn(ctx).ExecContext(ctx, `DELETE FROM merchant_tables WHERE merchant_id = $1 AND id = $2`, merchantID, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errors.NotFoundWithKey("table")
	}
	return nil
}
