package repository

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/qerbie/qerbie-backend/internal/merchant/domain"
	"github.com/qerbie/qerbie-backend/pkg/database"
	"github.com/qerbie/qerbie-backend/pkg/errors"
)

const memberColumns = `mm.id, mm.merchant_id, mm.user_id, mm.role, mm.permissions, u.email, u.full_name, mm.created_at, mm.updated_at`

// MemberRepository handles merchant membership persistence
type MemberRepository struct {
	db *database.DB
}

// NewMemberRepository creates a new member repository
func NewMemberRepository(db *database.DB) *MemberRepository {
	return &MemberRepository{db: db}
}

// Add inserts a membership
func (r *MemberRepository) Add(ctx context.Context, m *domain.Member) error {
	if m.Permissions == nil {
		m.Permissions = pq.StringArray{}
	}
	query := `
		INSERT INTO merchant_members (id, merchant_id, user_id, role, permissions, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := r.db.Conn(ctx).ExecContext(ctx, query,
		m.ID, m.MerchantID, m.UserID, m.Role, m.Permissions, m.CreatedAt, m.UpdatedAt)
	return database.MapError(err)
}

// Get gets a membership by ID
func (r *MemberRepository) Get(ctx context.Context, merchantID, memberID string) (*domain.Member, error) {
	var m domain.Member
	query := `
		SELECT ` + memberColumns + `
		FROM merchant_members mm
		JOIN users u ON u.id = mm.user_id
		WHERE mm.merchant_id = $1 AND mm.id = $2
	`
	if err := sqlx.GetContext(ctx, r.db.Conn(ctx), &m, query, merchantID, memberID); err != nil {
		if database.IsNoRows(err) {
			return nil, errors.NotFoundWithKey("member")
		}
		return nil, err
	}
	return &m, nil
}

// GetMembership loads the membership of a user together with its merchant.
// Runs without merchant scope: it is what establishes the scope.
func (r *MemberRepository) GetMembership(ctx context.Context, merchantID, userID string) (*domain.Membership, error) {
	var row struct {
		domain.Merchant
		Role        string         `db:"role"`
		Permissions pq.StringArray `db:"permissions"`
	}
	query := `
		SELECT ` + merchantColumns + `, mm.role, mm.permissions
		FROM merchant_members mm
		JOIN merchants m ON m.id = mm.merchant_id
		WHERE mm.merchant_id = $1 AND mm.user_id = $2
	`
	if err := sqlx.GetContext(ctx, r.db.Conn(ctx), &row, query, merchantID, userID); err != nil {
		if database.IsNoRows(err) {
			return nil, errors.NotFoundWithKey("member")
		}
		return nil, err
	}
	return &domain.Membership{
		Merchant:    row.Merchant,
		Role:        row.Role,
		Permissions: []string(row.Permissions),
	}, nil
}

// List lists the members of a merchant
func (r *MemberRepository) List(ctx context.Context, merchantID string) ([]domain.Member, error) {
	query := `
		SELECT ` + memberColumns + `
		FROM merchant_members mm
		JOIN users u ON u.id = mm.user_id
		WHERE mm.merchant_id = $1
		ORDER BY mm.created_at
	`
	out := []domain.Member{}
	if err := sqlx.SelectContext(ctx, r.db.Conn(ctx), &out, query, merchantID); err != nil {
		return nil, err
	}
	return out, nil
}

// Update writes role and extra permissions
func (r *MemberRepository) Update(ctx context.Context, m *domain.Member) error {
	if m.Permissions == nil {
		m.Permissions = pq.StringArray{}
	}
	m.UpdatedAt = time.Now().UTC()
	query := `UPDATE merchant_members SET role = $1, permissions = $2, updated_at = $3 WHERE merchant_id = $4 AND id = $5`
	res, err := r.db.Conn(ctx).ExecContext(ctx, query, m.Role, m.Permissions, m.UpdatedAt, m.MerchantID, m.ID)
	if err != nil {
		return database.MapError(err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errors.NotFoundWithKey("member")
	}
	return nil
}

// Remove deletes a membership
func (r *MemberRepository) Remove(ctx context.Context, merchantID, memberID string) error {
	res, err := r.db.Conn(ctx).ExecContext(ctx,
		`DELETE FROM merchant_members WHERE merchant_id = $1 AND id = $2`, merchantID, memberID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errors.NotFoundWithKey("member")
	}
	return nil
}

// LockOwners locks the owner rows of a merchant and returns how many there are.
// Callers hold the lock for the rest of their transaction so two demotions cannot race.
func (r *MemberRepository) LockOwners(ctx context.Context, merchantID string) (int, error) {
	var ids []string
	query := `SELECT id FROM merchant_members WHERE merchant_id = $1 AND role = 'owner' FOR UPDATE`
	if err := sqlx.SelectContext(ctx, r.db.Conn(ctx), &ids, query, merchantID); err != nil {
		return 0, err
	}
	return len(ids), nil
}

// FindUserIDByEmail resolves a staff account by email
func (r *MemberRepository) FindUserIDByEmail(ctx context.Context, email string) (string, error) {
	var id string
	err := sqlx.GetContext(ctx, r.db.Conn(ctx), &id, `SELECT id FROM users WHERE lower(email) = lower($1) AND is_active`, email)
	if err != nil {
		if database.IsNoRows(err) {
			return "", errors.NotFoundWithKey("user")
		}
		return "", err
	}
	return id, nil
}
