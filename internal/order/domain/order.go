package domain

import (
	"fmt"
	"time"
)

// Order statuses
const (
	StatusPending   = "pending"
	StatusConfirmed = "confirmed"
	StatusPreparing = "preparing"
	StatusReady     = "ready"
	StatusDelivered = "delivered"
	StatusCancelled = "cancelled"
)

// Who changed an order's status
const (
	ActorMerchant = "merchant"
	ActorCustomer = "customer"
	ActorSystem   = "system"
)

// Line limits
const (
	MinQuantity      = 1
	MaxQuantity      = 99
	MaxLinesPerOrder = 50
)

var transitions = map[string][]string{
	StatusPending:   {StatusConfirmed, StatusCancelled},
	StatusConfirmed: {StatusPreparing, StatusCancelled},
	StatusPreparing: {StatusReady},
	StatusReady:     {StatusDelivered},
}

// Table is a physical table of a restaurant with its own QR code
type Table struct {
	ID         string    `db:"id" json:"id"`
	MerchantID string    `db:"merchant_id" json:"merchant_id"`
	Label      string    `db:"label" json:"label"`
	QRToken    string    `db:"qr_token" json:"qr_token"`
	IsActive   bool      `db:"is_active" json:"is_active"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time `db:"updated_at" json:"updated_at"`
}

// Order is a customer's order placed from a table
type Order struct {
	ID              string         `db:"id" json:"id"`
	MerchantID      string         `db:"merchant_id" json:"merchant_id"`
	TableID         *string        `db:"table_id" json:"table_id,omitempty"`
	CustomerSession string         `db:"customer_session" json:"-"`
	CustomerName    string         `db:"customer_name" json:"customer_name"`
	CustomerPhone   *string        `db:"customer_phone" json:"customer_phone,omitempty"`
	Status          string         `db:"status" json:"status"`
	TotalCents      int            `db:"total_cents" json:"total_cents"`
	Notes           string         `db:"notes" json:"notes"`
	CreatedAt       time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time      `db:"updated_at" json:"updated_at"`
	Items           []Item         `db:"-" json:"items"`
	History         []StatusChange `db:"-" json:"history,omitempty"`
}

// Item is an order line. Name and price are copied from the product when the order is placed.
type Item struct {
	ID             string    `db:"id" json:"id"`
	OrderID        string    `db:"order_id" json:"-"`
	MerchantID     string    `db:"merchant_id" json:"-"`
	ProductID      *string   `db:"product_id" json:"product_id,omitempty"`
	ProductName    string    `db:"product_name" json:"product_name"`
	UnitPriceCents int       `db:"unit_price_cents" json:"unit_price_cents"`
	Quantity       int       `db:"quantity" json:"quantity"`
	CreatedAt      time.Time `db:"created_at" json:"-"`
}

// Subtotal is the line total
func (i Item) Subtotal() int {
	return i.UnitPriceCents * i.Quantity
}

// StatusChange is one row of an order's status history
type StatusChange struct {
	ID         string    `db:"id" json:"id"`
	OrderID    string    `db:"order_id" json:"-"`
	MerchantID string    `db:"merchant_id" json:"-"`
	FromStatus *string   `db:"from_status" json:"from_status,omitempty"`
	ToStatus   string    `db:"to_status" json:"to_status"`
	ChangedBy  *string   `db:"changed_by" json:"changed_by,omitempty"`
	ActorKind  string    `db:"actor_kind" json:"actor_kind"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}

// Line is a requested product and quantity
type Line struct {
	ProductID string
	Quantity  int
}

// MergeLines sums quantities of repeated products, keeping first-appearance order
func MergeLines(lines []Line) ([]Line, error) {
	out := make([]Line, 0, len(lines))
	index := map[string]int{}
	for _, l := range lines {
		if l.Quantity < MinQuantity || l.Quantity > MaxQuantity {
			return nil, fmt.Errorf("quantity must be between %d and %d", MinQuantity, MaxQuantity)
		}
		if i, ok := index[l.ProductID]; ok {
			out[i].Quantity += l.Quantity
			if out[i].Quantity > MaxQuantity {
				return nil, fmt.Errorf("quantity must be between %d and %d", MinQuantity, MaxQuantity)
			}
			continue
		}
		index[l.ProductID] = len(out)
		out = append(out, l)
	}
	return out, nil
}

// Total sums the line totals
func Total(items []Item) int {
	total := 0
	for _, i := range items {
		total += i.Subtotal()
	}
	return total
}

// CanTransition reports whether an order may move from one status to another
func CanTransition(from, to string) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// IsValidStatus reports whether status is an order status
func IsValidStatus(status string) bool {
	switch status {
	case StatusPending, StatusConfirmed, StatusPreparing, StatusReady, StatusDelivered, StatusCancelled:
		return true
	}
	return false
}

// IsTerminal reports whether no transition leaves status
func IsTerminal(status string) bool {
	return status == StatusDelivered || status == StatusCancelled
}
