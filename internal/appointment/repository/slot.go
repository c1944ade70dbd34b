package repository

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/qerbie/qerbie-backend/internal/appointment/domain"
	"github.com/qerbie/qerbie-backend/pkg/database"
	"github.com/qerbie/qerbie-backend/pkg/errors"
)

const slotColumns = `id, merchant_id, starts_at, ends_at, status, service_label, customer_name, customer_phone, customer_session, booked_at, created_at, updated_at`

// SlotRepository handles appointment slot persistence
type SlotRepository struct {
	db *database.DB
}

// NewSlotRepository creates a new slot repository
func NewSlotRepository(db *database.DB) *SlotRepository {
	return &SlotRepository{db: db}
}

// Create inserts a slot
func (r *SlotRepository) Create(ctx context.Context, s *domain.Slot) error {
	query := `
		INSERT INTO merchant_appointment_slots (` + slotColumns + `)
		VALUES (:id, :merchant_id, :starts_at, :ends_at, :status, :service_label, :customer_name, :customer_phone, :customer_session, :booked_at, :created_at, :updated_at)
	`
	_, err := sqlx.NamedExecContext(ctx, r.db.Conn(ctx), query, s)
	return database.MapError(err)
}

// LockSchedule serializes slot creation of a merchant until the transaction ends
func (r *SlotRepository) LockSchedule(ctx context.Context, merchantID string) error {
	_, err := r.db.Conn(ctx).ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, merchantID)
	return err
}

// CountOverlapping counts slots of the merchant that intersect [from, to)
func (r *SlotRepository) CountOverlapping(ctx context.Context, merchantID string, from, to time.Time) (int, error) {
	var n int
	query := `
		SELECT count(*) FROM merchant_appointment_slots
		WHERE merchant_id = $1 AND starts_at < $3 AND ends_at > $2
	`
	if err := sqlx.GetContext(ctx, r.db.Conn(ctx), &n, query, merchantID, from, to); err != nil {
		return 0, err
	}
	return n, nil
}

// GetByID gets a slot of a merchant
func (r *SlotRepository) GetByID(ctx context.Context, merchantID, id string) (*domain.Slot, error) {
	var s domain.Slot
	query := `SELECT ` + slotColumns + ` FROM merchant_appointment_slots WHERE merchant_id = $1 AND id = $2`
	if err := sqlx.GetContext(ctx, r.db.Conn(ctx), &s, query, merchantID, id); err != nil {
		if database.IsNoRows(err) {
			return nil, errors.NotFoundWithKey("slot")
		}
		return nil, err
	}
	return &s, nil
}

// ListRange lists every slot starting within [from, to)
func (r *SlotRepository) ListRange(ctx context.Context, merchantID string, from, to time.Time) ([]domain.Slot, error) {
	out := []domain.Slot{}
	query := `
		SELECT ` + slotColumns + `
		FROM merchant_appointment_slots
		WHERE merchant_id = $1 AND starts_at >= $2 AND starts_at < $3
		ORDER BY starts_at
	`
	if err := sqlx.SelectContext(ctx, r.db.Conn(ctx), &out, query, merchantID, from, to); err != nil {
		return nil, err
	}
	return out, nil
}

// ListAvailable lists available slots starting within [from, to)
func (r *SlotRepository) ListAvailable(ctx context.Context, merchantID string, from, to time.Time) ([]domain.PublicSlot, error) {
	out := []domain.PublicSlot{}
	query := `
		SELECT id, starts_at, ends_at, service_label
		FROM merchant_appointment_slots
		WHERE merchant_id = $1 AND status = 'available' AND starts_at >= $2 AND starts_at < $3
		ORDER BY starts_at
	`
	if err := sqlx.SelectContext(ctx, r.db.Conn(ctx), &out, query, merchantID, from, to); err != nil {
		return nil, err
	}
	return out, nil
}

// SetStatus moves a slot between available and blocked. It reports false when the slot
// was not in status `from`.
func (r *SlotRepository) SetStatus(ctx context.Context, merchantID, id, from, to string) (bool, error) {
	query := `
		UPDATE merchant_appointment_slots
		SET status = $4, updated_at = now()
		WHERE merchant_id = $1 AND id = $2 AND status = $3
	`
	res, err := r.db.Conn(ctx).ExecContext(ctx, query, merchantID, id, from, to)
	if err != nil {
		return false, database.MapError(err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// Delete removes a slot unless it is booked. It reports false when nothing was deleted.
func (r *SlotRepository) Delete(ctx context.Context, merchantID, id string) (bool, error) {
	query := `DELETE FROM merchant_appointment_slots WHERE merchant_id = $1 AND id = $2 AND status <> 'booked'`
	res, err := r.db.Conn(ctx).ExecContext(ctx, query, merchantID, id)
	if err != nil {
		return false, err
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// Book assigns an available future slot to a customer. It returns nil when the slot
// was taken, blocked or already started.
func (r *SlotRepository) Book(ctx context.Context, s *domain.Slot, now time.Time) (*domain.Slot, error) {
	var out domain.Slot
	query := `
		UPDATE merchant_appointment_slots
		SET status = 'booked', customer_name = $3, customer_phone = $4, customer_session = $5,
		    booked_at = $6, updated_at = $6
		WHERE merchant_id = $1 AND id = $2 AND status = 'available' AND starts_at > $6
		RETURNING ` + slotColumns
	err := sqlx.GetContext(ctx, r.db.Conn(ctx), &out, query,
		s.MerchantID, s.ID, s.CustomerName, s.CustomerPhone, s.CustomerSession, now)
	if err != nil {
		if database.IsNoRows(err) {
			return nil, nil
		}
		return nil, err
	}
	return &out, nil
}

// Release returns a slot booked by session to available if it has not started.
// It reports false otherwise.
func (r *SlotRepository) Release(ctx context.Context, merchantID, id, session string, now time.Time) (bool, error) {
	query := `
		UPDATE merchant_appointment_slots
		SET status = 'available', customer_name = NULL, customer_phone = NULL, customer_session = NULL,
		    booked_at = NULL, updated_at = $4
		WHERE merchant_id = $1 AND id = $2 AND customer_session = $3 AND status = 'booked' AND starts_at > $4
	`
	res, err := r.db.Conn(ctx).ExecContext(ctx, query, merchantID, id, session, now)
	if err != nil {
		return false, err
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}
