package repository

import (
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/qerbie/qerbie-backend/internal/notification/domain"
	"github.com/qerbie/qerbie-backend/pkg/database"
)

const notificationColumns = `id, merchant_id, event_id, event_type, channel, recipient, body, status, error, provider_id, sent_at, created_at`

// NotificationRepository handles the notification log
type NotificationRepository struct {
	db *database.DB
}

// NewNotificationRepository creates a new notification repository
func NewNotificationRepository(db *database.DB) *NotificationRepository {
	return &NotificationRepository{db: db}
}

// Create inserts n unless a notification for the same event already exists.
// It reports whether a row was written.
func (r *NotificationRepository) Create(ctx context.Context, n *domain.Notification) (bool, error) {
	query := `
		INSERT INTO notifications (` + notificationColumns + `)
		VALUES (:id, :merchant_id, :event_id, :event_type, :channel, :recipient, :body, :status, :error, :provider_id, :sent_at, :created_at)
		ON CONFLICT (event_id) DO NOTHING
	`
	res, err := sqlx.NamedExecContext(ctx, r.db.Conn(ctx), query, n)
	if err != nil {
		return false, database.MapError(err)
	}
	rows, _ := res.RowsAffected()
	return rows > 0, nil
}

// SaveResult records the outcome of a delivery attempt
func (r *NotificationRepository) SaveResult(ctx context.Context, n *domain.Notification) error {
	query := `
		UPDATE notifications
		SET status = :status, error = :error, provider_id = :provider_id, sent_at = :sent_at
		WHERE merchant_id = :merchant_id AND id = :id
	`
	_, err := sqlx.NamedExecContext(ctx, r.db.Conn(ctx), query, n)
	return database.MapError(err)
}

// ListRecent lists a merchant's latest notifications
func (r *NotificationRepository) ListRecent(ctx context.Context, merchantID string, limit int) ([]domain.Notification, error) {
	out := []domain.Notification{}
	query := `SELECT ` + notificationColumns + ` FROM notifications WHERE merchant_id = $1 ORDER BY created_at DESC LIMIT $2`
	if err := sqlx.SelectContext(ctx, r.db.Conn(ctx), &out, query, merchantID, limit); err != nil {
		return nil, err
	}
	return out, nil
}
