package repository

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/qerbie/qerbie-backend/internal/merchant/domain"
	"github.com/qerbie/qerbie-backend/pkg/database"
	"github.com/qerbie/qerbie-backend/pkg/errors"
)

const merchantColumns = `m.id, m.name, m.slug, m.business_type, m.phone, m.timezone, m.is_active, m.created_at, m.updated_at`

// MerchantRepository handles merchant persistence
type MerchantRepository struct {
	db *database.DB
}

// NewMerchantRepository creates a new merchant repository
func NewMerchantRepository(db *database.DB) *MerchantRepository {
	return &MerchantRepository{db: db}
}

// Create inserts a merchant
func (r *MerchantRepository) Create(ctx context.Context, m *domain.Merchant) error {
	query := `
		INSERT INTO merchants (id, name, slug, business_type, phone, timezone, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err := r.db.Conn(ctx).ExecContext(ctx, query,
		m.ID, m.Name, m.Slug, m.BusinessType, m.Phone, m.Timezone, m.IsActive, m.CreatedAt, m.UpdatedAt)
	return database.MapError(err)
}

// GetByID gets a merchant by ID
func (r *MerchantRepository) GetByID(ctx context.Context, id string) (*domain.Merchant, error) {
	var m domain.Merchant
	query := `SELECT ` + merchantColumns + ` FROM merchants m WHERE m.id = $1`
	if err := sqlx.GetContext(ctx, r.db.Conn(ctx), &m, query, id); err != nil {
		if database.IsNoRows(err) {
			return nil, errors.NotFoundWithKey("merchant")
		}
		return nil, err
	}
	return &m, nil
}

// GetBySlug gets a merchant by its public slug
func (r *MerchantRepository) GetBySlug(ctx context.Context, slug string) (*domain.Merchant, error) {
	var m domain.Merchant
	query := `SELECT ` + merchantColumns + ` FROM merchants m WHERE m.slug = $1`
	if err := sqlx.GetContext(ctx, r.db.Conn(ctx), &m, query, slug); err != nil {
		if database.IsNoRows(err) {
			return nil, errors.NotFoundWithKey("merchant")
		}
		return nil, err
	}
	return &m, nil
}

// ListForUser lists the merchants a user belongs to together with the user's role
func (r *MerchantRepository) ListForUser(ctx context.Context, userID string) ([]domain.MerchantWithRole, error) {
	query := `
		SELECT ` + merchantColumns + `, mm.role
		FROM merchants m
		JOIN merchant_members mm ON mm.merchant_id = m.id
		WHERE mm.user_id = $1
		ORDER BY m.name
	`
	out := []domain.MerchantWithRole{}
	if err := sqlx.SelectContext(ctx, r.db.Conn(ctx), &out, query, userID); err != nil {
		return nil, err
	}
	return out, nil
}

// ListActiveIDs returns the IDs of all active merchants
func (r *MerchantRepository) ListActiveIDs(ctx context.Context) ([]string, error) {
	var ids []string
	if err := sqlx.SelectContext(ctx, r.db.Conn(ctx), &ids, `SELECT id FROM merchants WHERE is_active ORDER BY created_at`); err != nil {
		return nil, err
	}
	return ids, nil
}

// Update writes the mutable merchant fields
func (r *MerchantRepository) Update(ctx context.Context, m *domain.Merchant) error {
	m.UpdatedAt = time.Now().UTC()
	query := `
		UPDATE merchants
		SET name = $1, phone = $2, timezone = $3, is_active = $4, updated_at = $5
		WHERE id = $6
	`
	res, err := r.db.Conn(ctx).ExecContext(ctx, query, m.Name, m.Phone, m.Timezone, m.IsActive, m.UpdatedAt, m.ID)
	if err != nil {
		return database.MapError(err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errors.NotFoundWithKey("merchant")
	}
	return nil
}
