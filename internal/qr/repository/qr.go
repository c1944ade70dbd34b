package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/qerbie/qerbie-backend/internal/qr/domain"
	"github.com/qerbie/qerbie-backend/pkg/database"
	"github.com/qerbie/qerbie-backend/pkg/errors"
)

const merchantRefColumns = `m.id AS merchant_id, m.name AS merchant_name, m.slug AS merchant_slug, m.business_type AS merchant_business_type, m.timezone AS merchant_timezone`

// QRRepository looks tokens up and maintains the token columns and tables
type QRRepository struct {
	db *database.DB
}

// NewQRRepository creates a new QR repository
func NewQRRepository(db *database.DB) *QRRepository {
	return &QRRepository{db: db}
}

type resolutionRow struct {
	domain.MerchantRef
	domain.Target
}

func (r *QRRepository) resolve(ctx context.Context, kind, query string, args ...interface{}) (*domain.Resolution, error) {
	var row resolutionRow
	if err := sqlx.GetContext(ctx, r.db.Conn(ctx), &row, query, args...); err != nil {
		if database.IsNoRows(err) {
			return nil, nil
		}
		return nil, err
	}
	return &domain.Resolution{Merchant: row.MerchantRef, Kind: kind, Target: row.Target}, nil
}

// FindTable resolves a table token; nil when no active table of an active merchant has it
func (r *QRRepository) FindTable(ctx context.Context, token string) (*domain.Resolution, error) {
	query := `
		SELECT ` + merchantRefColumns + `, t.id AS target_id, t.label AS target_label
		FROM merchant_tables t
		JOIN merchants m ON m.id = t.merchant_id
		WHERE t.qr_token = $1 AND t.is_active AND m.is_active
	`
	return r.resolve(ctx, domain.KindTable, query, token)
}

// FindQueue resolves a queue token. Closed queues still resolve so customers can see they are closed.
func (r *QRRepository) FindQueue(ctx context.Context, token string) (*domain.Resolution, error) {
	query := `
		SELECT ` + merchantRefColumns + `, q.id AS target_id, q.name AS target_label
		FROM merchant_queues q
		JOIN merchants m ON m.id = q.merchant_id
		WHERE q.qr_token = $1 AND m.is_active
	`
	return r.resolve(ctx, domain.KindQueue, query, token)
}

// FindBooking resolves a booking token in the token table of businessType
func (r *QRRepository) FindBooking(ctx context.Context, businessType, token string) (*domain.Resolution, error) {
	table, ok := domain.VerticalTable(businessType)
	if !ok {
		return nil, nil
	}
	query := fmt.Sprintf(`
		SELECT `+merchantRefColumns+`, b.id AS target_id, b.label AS target_label
		FROM %s b
		JOIN merchants m ON m.id = b.merchant_id
		WHERE b.token = $1 AND b.is_active AND m.is_active AND m.business_type = $2
	`, table)
	return r.resolve(ctx, domain.KindBooking, query, token, businessType)
}

// CreateBookingToken inserts a booking token into the table of businessType
func (r *QRRepository) CreateBookingToken(ctx context.Context, businessType string, t *domain.BookingToken) error {
	table, ok := domain.VerticalTable(businessType)
	if !ok {
		return errors.BadRequest("this business type has no booking QR codes")
	}
	query := fmt.Sprintf(`
		INSERT INTO %s (id, merchant_id, token, label, is_active, created_at)
		VALUES (:id, :merchant_id, :token, :label, :is_active, :created_at)
	`, table)
	_, err := sqlx.NamedExecContext(ctx, r.db.Conn(ctx), query, t)
	return database.MapError(err)
}

// ListBookingTokens lists the booking tokens of a merchant, newest first
func (r *QRRepository) ListBookingTokens(ctx context.Context, businessType, merchantID string) ([]domain.BookingToken, error) {
	out := []domain.BookingToken{}
	table, ok := domain.VerticalTable(businessType)
	if !ok {
		return out, nil
	}
	query := fmt.Sprintf(`
		SELECT id, merchant_id, token, label, is_active, created_at, revoked_at
		FROM %s
		WHERE merchant_id = $1
		ORDER BY created_at DESC
	`, table)
	if err := sqlx.SelectContext(ctx, r.db.Conn(ctx), &out, query, merchantID); err != nil {
		return nil, err
	}
	return out, nil
}

// RevokeBookingToken deactivates a booking token
func (r *QRRepository) RevokeBookingToken(ctx context.Context, businessType, merchantID, id string) error {
	table, ok := domain.VerticalTable(businessType)
	if !ok {
		return errors.NotFoundWithKey("qr_token")
	}
	query := fmt.Sprintf(`
		UPDATE %s SET is_active = FALSE, revoked_at = $1
		WHERE merchant_id = $2 AND id = $3 AND is_active
	`, table)
	res, err := r.db.Conn(ctx).ExecContext(ctx, query, time.Now().UTC(), merchantID, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errors.NotFoundWithKey("qr_token")
	}
	return nil
}

// SetTableToken replaces the token of a table; the old token stops resolving immediately
func (r *QRRepository) SetTableToken(ctx context.Context, merchantID, tableID, token string) error {
	return r.setToken(ctx, "merchant_tables", "table", merchantID, tableID, token)
}

// SetQueueToken replaces the token of a queue
func (r *QRRepository) SetQueueToken(ctx context.Context, merchantID, queueID, token string) error {
	return r.setToken(ctx, "merchant_queues", "queue", merchantID, queueID, token)
}

func (r *QRRepository) setToken(ctx context.Context, table, resource, merchantID, id, token string) error {
	query := fmt.Sprintf(`UPDATE %s SET qr_token = $1, updated_at = $2 WHERE merchant_id = $3 AND id = $4`, table)
	res, err := r.db.Conn(ctx).ExecContext(ctx, query, token, time.Now().UTC(), merchantID, id)
	if err != nil {
		return database.MapError(err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errors.NotFoundWithKey(resource)
	}
	return nil
}
