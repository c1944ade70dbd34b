package repository

import (
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/qerbie/qerbie-backend/internal/order/domain"
	"github.com/qerbie/qerbie-backend/pkg/database"
	"github.com/qerbie/qerbie-backend/pkg/errors"
)

const (
	orderColumns   = `id, merchant_id, table_id, customer_session, customer_name, customer_phone, status, total_cents, notes, created_at, updated_at`
	itemColumns    = `id, order_id, merchant_id, product_id, product_name, unit_price_cents, quantity, created_at`
	historyColumns = `id, order_id, merchant_id, from_status, to_status, changed_by, actor_kind, created_at`

	// maxSessionOrders bounds what a customer session can list
	maxSessionOrders = 50
)

// ListFilter narrows a merchant's order list
type ListFilter struct {
	Status  string
	TableID string
}

// OrderRepository handles order, item and status history persistence
type OrderRepository struct {
	db *database.DB
}

// NewOrderRepository creates a new order repository
func NewOrderRepository(db *database.DB) *OrderRepository {
	return &OrderRepository{db: db}
}

// Create inserts an order with its items
func (r *OrderRepository) Create(ctx context.Context, o *domain.Order) error {
	query := `
		INSERT INTO orders (` + orderColumns + `)
		VALUES (:id, :merchant_id, :table_id, :customer_session, :customer_name, :customer_phone, :status, :total_cents, :notes, :created_at, :updated_at)
	`
	if _, err := sqlx.NamedExecContext(ctx, r.db.Conn(ctx), query, o); err != nil {
		return database.MapError(err)
	}

	itemQuery := `
		INSERT INTO order_items (` + itemColumns + `)
		VALUES (:id, :order_id, :merchant_id, :product_id, :product_name, :unit_price_cents, :quantity, :created_at)
	`
	for i := range o.Items {
		if _, err := sqlx.NamedExecContext(ctx, r.db.Conn(ctx), itemQuery, &o.Items[i]); err != nil {
			return database.MapError(err)
		}
	}
	return nil
}

// AddHistory appends a status change
func (r *OrderRepository) AddHistory(ctx context.Context, c *domain.StatusChange) error {
	query := `
		INSERT INTO order_status_history (` + historyColumns + `)
		VALUES (:id, :order_id, :merchant_id, :from_status, :to_status, :changed_by, :actor_kind, :created_at)
	`
	_, err := sqlx.NamedExecContext(ctx, r.db.Conn(ctx), query, c)
	return database.MapError(err)
}

// GetByID gets an order of a merchant without items
func (r *OrderRepository) GetByID(ctx context.Context, merchantID, id string) (*domain.Order, error) {
	var o domain.Order
	query := `SELECT ` + orderColumns + ` FROM orders WHERE merchant_id = $1 AND id = $2`
	if err := sqlx.GetContext(ctx, r.db.Conn(ctx), &o, query, merchantID, id); err != nil {
		if database.IsNoRows(err) {
			return nil, errors.NotFoundWithKey("order")
		}
		return nil, err
	}
	return &o, nil
}

// LockByID gets an order and locks it for a status change
func (r *OrderRepository) LockByID(ctx context.Context, merchantID, id string) (*domain.Order, error) {
	var o domain.Order
	query := `SELECT ` + orderColumns + ` FROM orders WHERE merchant_id = $1 AND id = $2 FOR UPDATE`
	if err := sqlx.GetContext(ctx, r.db.Conn(ctx), &o, query, merchantID, id); err != nil {
		if database.IsNoRows(err) {
			return nil, errors.NotFoundWithKey("order")
		}
		return nil, err
	}
	return &o, nil
}

// GetForSession gets an order only if the customer session placed it
func (r *OrderRepository) GetForSession(ctx context.Context, merchantID, id, session string) (*domain.Order, error) {
	var o domain.Order
	query := `SELECT ` + orderColumns + ` FROM orders WHERE merchant_id = $1 AND id = $2 AND customer_session = $3`
	if err := sqlx.GetContext(ctx, r.db.Conn(ctx), &o, query, merchantID, id, session); err != nil {
		if database.IsNoRows(err) {
			return nil, errors.NotFoundWithKey("order")
		}
		return nil, err
	}
	return &o, nil
}

// ListForSession lists the session's most recent orders at a merchant
func (r *OrderRepository) ListForSession(ctx context.Context, merchantID, session string) ([]domain.Order, error) {
	out := []domain.Order{}
	query := `
		SELECT ` + orderColumns + `
		FROM orders
		WHERE merchant_id = $1 AND customer_session = $2
		ORDER BY created_at DESC
		LIMIT $3
	`
	if err := sqlx.SelectContext(ctx, r.db.Conn(ctx), &out, query, merchantID, session, maxSessionOrders); err != nil {
		return nil, err
	}
	return out, nil
}

// List lists a page of a merchant's orders, newest first
func (r *OrderRepository) List(ctx context.Context, merchantID string, f ListFilter, page, perPage int) ([]domain.Order, int64, error) {
	where := `WHERE merchant_id = $1 AND ($2 = '' OR status = $2) AND ($3 = '' OR table_id::text = $3)`

	var total int64
	if err := sqlx.GetContext(ctx, r.db.Conn(ctx), &total, `SELECT count(*) FROM orders `+where, merchantID, f.Status, f.TableID); err != nil {
		return nil, 0, err
	}

	out := []domain.Order{}
	query := `SELECT ` + orderColumns + ` FROM orders ` + where + ` ORDER BY created_at DESC LIMIT $4 OFFSET $5`
	if err := sqlx.SelectContext(ctx, r.db.Conn(ctx), &out, query, merchantID, f.Status, f.TableID, perPage, (page-1)*perPage); err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

// Items loads the items of the given orders keyed by order ID
func (r *OrderRepository) Items(ctx context.Context, merchantID string, orderIDs []string) (map[string][]domain.Item, error) {
	out := map[string][]domain.Item{}
	if len(orderIDs) == 0 {
		return out, nil
	}

	var items []domain.Item
	query := `
		SELECT ` + itemColumns + `
		FROM order_items
		WHERE merchant_id = $1 AND order_id = ANY($2)
		ORDER BY created_at, id
	`
	if err := sqlx.SelectContext(ctx, r.db.Conn(ctx), &items, query, merchantID, pq.Array(orderIDs)); err != nil {
		return nil, err
	}
	for _, i := range items {
		out[i.OrderID] = append(out[i.OrderID], i)
	}
	return out, nil
}

// History lists the status changes of an order, oldest first
func (r *OrderRepository) History(ctx context.Context, merchantID, orderID string) ([]domain.StatusChange, error) {
	out := []domain.StatusChange{}
	query := `
		SELECT ` + historyColumns + `
		FROM order_status_history
		WHERE merchant_id = $1 AND order_id = $2
		ORDER BY created_at, id
	`
	if err := sqlx.SelectContext(ctx, r.db.Conn(ctx), &out, query, merchantID, orderID); err != nil {
		return nil, err
	}
	return out, nil
}

// UpdateStatus writes the order's status if its stored status is still `from`
func (r *OrderRepository) UpdateStatus(ctx context.Context, o *domain.Order, from string) (bool, error) {
	query := `UPDATE orders SET status = $1, updated_at = $2 WHERE merchant_id = $3 AND id = $4 AND status = $5`
	res, err := r.db.Conn(ctx).ExecContext(ctx, query, o.Status, o.UpdatedAt, o.MerchantID, o.ID, from)
	if err != nil {
		return false, database.MapError(err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}
