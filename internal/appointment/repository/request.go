package repository

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/qerbie/qerbie-backend/internal/appointment/domain"
	"github.com/qerbie/qerbie-backend/pkg/database"
	"github.com/qerbie/qerbie-backend/pkg/errors"
)

const requestColumns = `id, merchant_id, customer_name, customer_phone, customer_session, preferred_at, service, pet_name, notes, status, decided_by, decided_at, decision_note, created_at, updated_at`

// RequestRepository handles appointment request persistence
type RequestRepository struct {
	db *database.DB
}

// NewRequestRepository creates a new appointment request repository
func NewRequestRepository(db *database.DB) *RequestRepository {
	return &RequestRepository{db: db}
}

// Create inserts a request
func (r *RequestRepository) Create(ctx context.Context, req *domain.Request) error {
	query := `
		INSERT INTO merchant_appointment_requests (` + requestColumns + `)
		VALUES (:id, :merchant_id, :customer_name, :customer_phone, :customer_session, :preferred_at, :service, :pet_name, :notes, :status, :decided_by, :decided_at, :decision_note, :created_at, :updated_at)
	`
	_, err := sqlx.NamedExecContext(ctx, r.db.Conn(ctx), query, req)
	return database.MapError(err)
}

// GetByID gets a request of a merchant
func (r *RequestRepository) GetByID(ctx context.Context, merchantID, id string) (*domain.Request, error) {
	var req domain.Request
	query := `SELECT ` + requestColumns + ` FROM merchant_appointment_requests WHERE merchant_id = $1 AND id = $2`
	if err := sqlx.GetContext(ctx, r.db.Conn(ctx), &req, query, merchantID, id); err != nil {
		if database.IsNoRows(err) {
			return nil, errors.NotFoundWithKey("appointment_request")
		}
		return nil, err
	}
	return &req, nil
}

// GetForSession gets a request only if the customer session made it
func (r *RequestRepository) GetForSession(ctx context.Context, merchantID, id, session string) (*domain.Request, error) {
	var req domain.Request
	query := `SELECT ` + requestColumns + ` FROM merchant_appointment_requests WHERE merchant_id = $1 AND id = $2 AND customer_session = $3`
	if err := sqlx.GetContext(ctx, r.db.Conn(ctx), &req, query, merchantID, id, session); err != nil {
		if database.IsNoRows(err) {
			return nil, errors.NotFoundWithKey("appointment_request")
		}
		return nil, err
	}
	return &req, nil
}

// List lists a page of requests ordered by preferred time, optionally filtered by status
func (r *RequestRepository) List(ctx context.Context, merchantID, status string, page, perPage int) ([]domain.Request, int64, error) {
	var total int64
	countQuery := `SELECT count(*) FROM merchant_appointment_requests WHERE merchant_id = $1 AND ($2 = '' OR status = $2)`
	if err := sqlx.GetContext(ctx, r.db.Conn(ctx), &total, countQuery, merchantID, status); err != nil {
		return nil, 0, err
	}

	out := []domain.Request{}
	query := `
		SELECT ` + requestColumns + `
		FROM merchant_appointment_requests
		WHERE merchant_id = $1 AND ($2 = '' OR status = $2)
		ORDER BY preferred_at, created_at
		LIMIT $3 OFFSET $4
	`
	if err := sqlx.SelectContext(ctx, r.db.Conn(ctx), &out, query, merchantID, status, perPage, (page-1)*perPage); err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

// UpdateStatus writes the status and decision fields of req if its stored status is still `from`
func (r *RequestRepository) UpdateStatus(ctx context.Context, req *domain.Request, from string) (bool, error) {
	query := `
		UPDATE merchant_appointment_requests
		SET status = $1, decided_by = $2, decided_at = $3, decision_note = $4, updated_at = $5
		WHERE merchant_id = $6 AND id = $7 AND status = $8
	`
	res, err := r.db.Conn(ctx).ExecContext(ctx, query,
		req.Status, req.DecidedBy, req.DecidedAt, req.DecisionNote, req.UpdatedAt, req.MerchantID, req.ID, from)
	if err != nil {
		return false, database.MapError(err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// ExpirePast marks pending requests whose preferred time is before `before` as expired
func (r *RequestRepository) ExpirePast(ctx context.Context, merchantID string, before time.Time) ([]domain.Request, error) {
	query := `
		UPDATE merchant_appointment_requests
		SET status = 'expired', updated_at = now()
		WHERE merchant_id = $1 AND status = 'pending' AND preferred_at < $2
		RETURNING ` + requestColumns
	out := []domain.Request{}
	if err := sqlx.SelectContext(ctx, r.db.Conn(ctx), &out, query, merchantID, before); err != nil {
		return nil, err
	}
	return out, nil
}
