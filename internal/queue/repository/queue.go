package repository

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/qerbie/qerbie-backend/internal/queue/domain"
	"github.com/qerbie/qerbie-backend/pkg/database"
	"github.com/qerbie/qerbie-backend/pkg/errors"
)

const queueColumns = `id, merchant_id, name, avg_service_minutes, is_open, qr_token, last_ticket_number, created_at, updated_at`

// QueueRepository handles queue persistence
type QueueRepository struct {
	db *database.DB
}

// NewQueueRepository creates a new queue repository
func NewQueueRepository(db *database.DB) *QueueRepository {
	return &QueueRepository{db: db}
}

// Create inserts a queue
func (r *QueueRepository) Create(ctx context.Context, q *domain.Queue) error {
	query := `
		INSERT INTO merchant_queues (` + queueColumns + `)
		VALUES (:id, :merchant_id, :name, :avg_service_minutes, :is_open, :qr_token, :last_ticket_number, :created_at, :updated_at)
	`
	_, err := sqlx.NamedExecContext(ctx, r.db.Conn(ctx), query, q)
	return database.MapError(err)
}

// GetByID gets a queue of a merchant
func (r *QueueRepository) GetByID(ctx context.Context, merchantID, id string) (*domain.Queue, error) {
	var q domain.Queue
	query := `SELECT ` + queueColumns + ` FROM merchant_queues WHERE merchant_id = $1 AND id = $2`
	if err := sqlx.GetContext(ctx, r.db.Conn(ctx), &q, query, merchantID, id); err != nil {
		if database.IsNoRows(err) {
			return nil, errors.NotFoundWithKey("queue")
		}
		return nil, err
	}
	return &q, nil
}

// LockForJoin gets a queue and locks its row until the transaction ends
func (r *QueueRepository) LockForJoin(ctx context.Context, merchantID, id string) (*domain.Queue, error) {
	var q domain.Queue
	query := `SELECT ` + queueColumns + ` FROM merchant_queues WHERE merchant_id = $1 AND id = $2 FOR UPDATE`
	if err := sqlx.GetContext(ctx, r.db.Conn(ctx), &q, query, merchantID, id); err != nil {
		if database.IsNoRows(err) {
			return nil, errors.NotFoundWithKey("queue")
		}
		return nil, err
	}
	return &q, nil
}

// List lists the queues of a merchant
func (r *QueueRepository) List(ctx context.Context, merchantID string) ([]domain.Queue, error) {
	out := []domain.Queue{}
	query := `SELECT ` + queueColumns + ` FROM merchant_queues WHERE merchant_id = $1 ORDER BY name`
	if err := sqlx.SelectContext(ctx, r.db.Conn(ctx), &out, query, merchantID); err != nil {
		return nil, err
	}
	return out, nil
}

// Update writes name, average service time and open state
func (r *QueueRepository) Update(ctx context.Context, q *domain.Queue) error {
	q.UpdatedAt = time.Now().UTC()
	query := `
		UPDATE merchant_queues
		SET name = $1, avg_service_minutes = $2, is_open = $3, updated_at = $4
		WHERE merchant_id = $5 AND id = $6
	`
	res, err := r.db.Conn(ctx).ExecContext(ctx, query, q.Name, q.AvgServiceMinutes, q.IsOpen, q.UpdatedAt, q.MerchantID, q.ID)
	if err != nil {
		return database.MapError(err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errors.NotFoundWithKey("queue")
	}
	return nil
}

// Delete removes a queue that holds no active tickets. It reports false when active tickets remain.
func (r *QueueRepository) Delete(ctx context.Context, merchantID, id string) (bool, error) {
	query := `
		DELETE FROM merchant_queues q
		WHERE q.merchant_id = $1 AND q.id = $2
		  AND NOT EXISTS (
		      SELECT 1 FROM queue_tickets t
		      WHERE t.queue_id = q.id AND t.status IN ('waiting', 'called', 'serving')
		  )
	`
	res, err := r.db.Conn(ctx).ExecContext(ctx, query, merchantID, id)
	if err != nil {
		return false, err
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// NextTicketNumber atomically allocates the next ticket number of an open queue.
// It reports false when the queue is closed.
func (r *QueueRepository) NextTicketNumber(ctx context.Context, merchantID, id string) (int, bool, error) {
	var n int
	query := `
		UPDATE merchant_queues
		SET last_ticket_number = last_ticket_number + 1, updated_at = now()
		WHERE merchant_id = $1 AND id = $2 AND is_open
		RETURNING last_ticket_number
	`
	if err := sqlx.GetContext(ctx, r.db.Conn(ctx), &n, query, merchantID, id); err != nil {
		if database.IsNoRows(err) {
			return 0, false, nil
		}
		return 0, false, err
	}
	return n, true, nil
}

// ResetNumbering restarts numbering at 1 when no ticket is active. It reports false otherwise.
func (r *QueueRepository) ResetNumbering(ctx context.Context, merchantID, id string) (bool, error) {
	query := `
		UPDATE merchant_queues q
		SET last_ticket_number = 0, updated_at = now()
		WHERE q.merchant_id = $1 AND q.id = $2
		  AND NOT EXISTS (
		      SELECT 1 FROM queue_tickets t
		      WHERE t.queue_id = q.id AND t.status IN ('waiting', 'called', 'serving')
		  )
	`
	res, err := r.db.Conn(ctx).ExecContext(ctx, query, merchantID, id)
	if err != nil {
		return false, err
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}
