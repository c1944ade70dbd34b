package repository

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/qerbie/qerbie-backend/internal/queue/domain"
	"github.com/qerbie/qerbie-backend/pkg/database"
	"github.com/qerbie/qerbie-backend/pkg/errors"
)

const ticketColumns = `id, merchant_id, queue_id, ticket_number, customer_name, customer_phone, customer_session, status, called_at, serving_at, finished_at, created_at, updated_at`

// TicketRepository handles ticket persistence
type TicketRepository struct {
	db *database.DB
}

// NewTicketRepository creates a new ticket repository
func NewTicketRepository(db *database.DB) *TicketRepository {
	return &TicketRepository{db: db}
}

// Create inserts a ticket
func (r *TicketRepository) Create(ctx context.Context, t *domain.Ticket) error {
	query := `
		INSERT INTO queue_tickets (` + ticketColumns + `)
		VALUES (:id, :merchant_id, :queue_id, :ticket_number, :customer_name, :customer_phone, :customer_session, :status, :called_at, :serving_at, :finished_at, :created_at, :updated_at)
	`
	_, err := sqlx.NamedExecContext(ctx, r.db.Conn(ctx), query, t)
	return database.MapError(err)
}

// GetByID gets a ticket of a merchant
func (r *TicketRepository) GetByID(ctx context.Context, merchantID, id string) (*domain.Ticket, error) {
	var t domain.Ticket
	query := `SELECT ` + ticketColumns + ` FROM queue_tickets WHERE merchant_id = $1 AND id = $2`
	if err := sqlx.GetContext(ctx, r.db.Conn(ctx), &t, query, merchantID, id); err != nil {
		if database.IsNoRows(err) {
			return nil, errors.NotFoundWithKey("ticket")
		}
		return nil, err
	}
	return &t, nil
}

// GetForSession gets a ticket only if it belongs to the customer session
func (r *TicketRepository) GetForSession(ctx context.Context, merchantID, id, session string) (*domain.Ticket, error) {
	var t domain.Ticket
	query := `SELECT ` + ticketColumns + ` FROM queue_tickets WHERE merchant_id = $1 AND id = $2 AND customer_session = $3`
	if err := sqlx.GetContext(ctx, r.db.Conn(ctx), &t, query, merchantID, id, session); err != nil {
		if database.IsNoRows(err) {
			return nil, errors.NotFoundWithKey("ticket")
		}
		return nil, err
	}
	return &t, nil
}

// FindOpenForSession returns the waiting or called ticket the session already holds in a queue, or nil
func (r *TicketRepository) FindOpenForSession(ctx context.Context, queueID, session string) (*domain.Ticket, error) {
	var t domain.Ticket
	query := `
		SELECT ` + ticketColumns + `
		FROM queue_tickets
		WHERE queue_id = $1 AND customer_session = $2 AND status IN ('waiting', 'called')
		ORDER BY created_at DESC
		LIMIT 1
	`
	if err := sqlx.GetContext(ctx, r.db.Conn(ctx), &t, query, queueID, session); err != nil {
		if database.IsNoRows(err) {
			return nil, nil
		}
		return nil, err
	}
	return &t, nil
}

// CountWaitingAhead counts waiting tickets of a queue with a lower number
func (r *TicketRepository) CountWaitingAhead(ctx context.Context, queueID string, ticketNumber int) (int, error) {
	var n int
	query := `SELECT count(*) FROM queue_tickets WHERE queue_id = $1 AND status = 'waiting' AND ticket_number < $2`
	if err := sqlx.GetContext(ctx, r.db.Conn(ctx), &n, query, queueID, ticketNumber); err != nil {
		return 0, err
	}
	return n, nil
}

// List lists the tickets of a queue in number order, optionally restricted to statuses
func (r *TicketRepository) List(ctx context.Context, merchantID, queueID string, statuses []string) ([]domain.Ticket, error) {
	if statuses == nil {
		statuses = []string{}
	}
	out := []domain.Ticket{}
	query := `
		SELECT ` + ticketColumns + `
		FROM queue_tickets
		WHERE merchant_id = $1 AND queue_id = $2
		  AND (cardinality($3::text[]) = 0 OR status = ANY($3))
		ORDER BY ticket_number
	`
	if err := sqlx.SelectContext(ctx, r.db.Conn(ctx), &out, query, merchantID, queueID, pq.Array(statuses)); err != nil {
		return nil, err
	}
	return out, nil
}

// LockNextWaiting locks the waiting ticket with the lowest number, skipping rows another
// caller holds. Returns nil when nobody is waiting.
func (r *TicketRepository) LockNextWaiting(ctx context.Context, merchantID, queueID string) (*domain.Ticket, error) {
	var t domain.Ticket
	query := `
		SELECT ` + ticketColumns + `
		FROM queue_tickets
		WHERE merchant_id = $1 AND queue_id = $2 AND status = 'waiting'
		ORDER BY ticket_number
		LIMIT 1
		FOR UPDATE SKIP LOCKED
	`
	if err := sqlx.GetContext(ctx, r.db.Conn(ctx), &t, query, merchantID, queueID); err != nil {
		if database.IsNoRows(err) {
			return nil, nil
		}
		return nil, err
	}
	return &t, nil
}

// UpdateStatus writes the status and timestamps of t if its stored status is still `from`.
// It reports false when another writer changed the ticket first.
func (r *TicketRepository) UpdateStatus(ctx context.Context, t *domain.Ticket, from string) (bool, error) {
	query := `
		UPDATE queue_tickets
		SET status = $1, called_at = $2, serving_at = $3, finished_at = $4, updated_at = $5
		WHERE merchant_id = $6 AND id = $7 AND status = $8
	`
	res, err := r.db.Conn(ctx).ExecContext(ctx, query,
		t.Status, t.CalledAt, t.ServingAt, t.FinishedAt, t.UpdatedAt, t.MerchantID, t.ID, from)
	if err != nil {
		return false, database.MapError(err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// MarkNoShows moves called tickets whose call is older than before to no_show
func (r *TicketRepository) MarkNoShows(ctx context.Context, merchantID string, before time.Time) ([]domain.Ticket, error) {
	query := `
		UPDATE queue_tickets
		SET status = 'no_show', finished_at = now(), updated_at = now()
		WHERE merchant_id = $1 AND status = 'called' AND called_at < $2
		RETURNING ` + ticketColumns
	out := []domain.Ticket{}
	if err := sqlx.SelectContext(ctx, r.db.Conn(ctx), &out, query, merchantID, before); err != nil {
		return nil, err
	}
	return out, nil
}

// CancelStale cancels waiting tickets created before `before`
func (r *TicketRepository) CancelStale(ctx context.Context, merchantID string, before time.Time) ([]domain.Ticket, error) {
	query := `
		UPDATE queue_tickets
		SET status = 'cancelled', finished_at = now(), updated_at = now()
		WHERE merchant_id = $1 AND status = 'waiting' AND created_at < $2
		RETURNING ` + ticketColumns
	out := []domain.Ticket{}
	if err := sqlx.SelectContext(ctx, r.db.Conn(ctx), &out, query, merchantID, before); err != nil {
		return nil, err
	}
	return out, nil
}
