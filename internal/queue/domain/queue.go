package domain

import (
	"fmt"
	"time"
)

// Ticket statuses
const (
	StatusWaiting   = "waiting"
	StatusCalled    = "called"
	StatusServing   = "serving"
	StatusDone      = "done"
	StatusCancelled = "cancelled"
	StatusNoShow    = "no_show"
)

// AvgServiceMinutes bounds
const (
	MinAvgServiceMinutes = 1
	MaxAvgServiceMinutes = 240
)

var transitions = map[string][]string{
	StatusWaiting: {StatusCalled, StatusCancelled, StatusNoShow},
	StatusCalled:  {StatusServing, StatusWaiting, StatusNoShow, StatusCancelled},
	StatusServing: {StatusDone},
}

// ActiveStatuses are the statuses of tickets still in the queue
var ActiveStatuses = []string{StatusWaiting, StatusCalled, StatusServing}

// Queue is a walk-in line of a merchant
type Queue struct {
	ID                string    `db:"id" json:"id"`
	MerchantID        string    `db:"merchant_id" json:"merchant_id"`
	Name              string    `db:"name" json:"name"`
	AvgServiceMinutes int       `db:"avg_service_minutes" json:"avg_service_minutes"`
	IsOpen            bool      `db:"is_open" json:"is_open"`
	QRToken           string    `db:"qr_token" json:"qr_token"`
	LastTicketNumber  int       `db:"last_ticket_number" json:"last_ticket_number"`
	CreatedAt         time.Time `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time `db:"updated_at" json:"updated_at"`
}

// Ticket is a customer's place in a queue
type Ticket struct {
	ID              string     `db:"id" json:"id"`
	MerchantID      string     `db:"merchant_id" json:"merchant_id"`
	QueueID         string     `db:"queue_id" json:"queue_id"`
	TicketNumber    int        `db:"ticket_number" json:"ticket_number"`
	CustomerName    string     `db:"customer_name" json:"customer_name"`
	CustomerPhone   *string    `db:"customer_phone" json:"customer_phone,omitempty"`
	CustomerSession string     `db:"customer_session" json:"-"`
	Status          string     `db:"status" json:"status"`
	CalledAt        *time.Time `db:"called_at" json:"called_at,omitempty"`
	ServingAt       *time.Time `db:"serving_at" json:"serving_at,omitempty"`
	FinishedAt      *time.Time `db:"finished_at" json:"finished_at,omitempty"`
	CreatedAt       time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time  `db:"updated_at" json:"updated_at"`
}

// TicketStatus is what a customer sees about their ticket
type TicketStatus struct {
	Ticket               *Ticket `json:"ticket"`
	QueueName            string  `json:"queue_name"`
	QueueOpen            bool    `json:"queue_open"`
	Position             *int    `json:"position,omitempty"`
	EstimatedWaitMinutes *int    `json:"estimated_wait_minutes,omitempty"`
}

// CanTransition reports whether a ticket may move from one status to another
func CanTransition(from, to string) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no transition leaves status
func IsTerminal(status string) bool {
	return status == StatusDone || status == StatusCancelled || status == StatusNoShow
}

// IsValidStatus reports whether status is a ticket status
func IsValidStatus(status string) bool {
	switch status {
	case StatusWaiting, StatusCalled, StatusServing, StatusDone, StatusCancelled, StatusNoShow:
		return true
	}
	return false
}

// IsCancellableByCustomer reports whether the customer may still leave the queue
func IsCancellableByCustomer(status string) bool {
	return status == StatusWaiting || status == StatusCalled
}

// Apply moves t to status `to` at `now`, stamping the lifecycle timestamps
func (t *Ticket) Apply(to string, now time.Time) {
	switch to {
	case StatusWaiting:
		t.CalledAt = nil
	case StatusCalled:
		t.CalledAt = &now
	case StatusServing:
		t.ServingAt = &now
	case StatusDone, StatusCancelled, StatusNoShow:
		t.FinishedAt = &now
	}
	t.Status = to
	t.UpdatedAt = now
}

// Position is the place of a waiting ticket given how many waiting tickets hold a lower number
func Position(waitingAhead int) int {
	return waitingAhead + 1
}

// EstimatedWait is the expected wait before a ticket at position is called
func EstimatedWait(position, avgServiceMinutes int) (time.Duration, error) {
	if position < 1 {
		return 0, fmt.Errorf("invalid position %d", position)
	}
	if avgServiceMinutes < MinAvgServiceMinutes || avgServiceMinutes > MaxAvgServiceMinutes {
		return 0, fmt.Errorf("invalid average service time %d", avgServiceMinutes)
	}
	return time.Duration(position-1) * time.Duration(avgServiceMinutes) * time.Minute, nil
}
