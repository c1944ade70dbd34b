package domain

import (
	"fmt"
	"time"
)

// Slot statuses
const (
	SlotAvailable = "available"
	SlotBooked    = "booked"
	SlotBlocked   = "blocked"
)

// Request statuses
const (
	RequestPending   = "pending"
	RequestAccepted  = "accepted"
	RequestDeclined  = "declined"
	RequestCancelled = "cancelled"
	RequestExpired   = "expired"
)

// Decisions a merchant can take on a pending request
const (
	DecisionAccept  = "accept"
	DecisionDecline = "decline"
)

// Series limits
const (
	MinSlotMinutes   = 5
	MaxSlotMinutes   = 480
	MaxSlotsPerBatch = 200
)

// Slot is a bookable time window of a merchant
type Slot struct {
	ID              string     `db:"id" json:"id"`
	MerchantID      string     `db:"merchant_id" json:"merchant_id"`
	StartsAt        time.Time  `db:"starts_at" json:"starts_at"`
	EndsAt          time.Time  `db:"ends_at" json:"ends_at"`
	Status          string     `db:"status" json:"status"`
	ServiceLabel    string     `db:"service_label" json:"service_label"`
	CustomerName    *string    `db:"customer_name" json:"customer_name,omitempty"`
	CustomerPhone   *string    `db:"customer_phone" json:"customer_phone,omitempty"`
	CustomerSession *string    `db:"customer_session" json:"-"`
	BookedAt        *time.Time `db:"booked_at" json:"booked_at,omitempty"`
	CreatedAt       time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time  `db:"updated_at" json:"updated_at"`
}

// PublicSlot is what customers see of an available slot
type PublicSlot struct {
	ID           string    `db:"id" json:"id"`
	StartsAt     time.Time `db:"starts_at" json:"starts_at"`
	EndsAt       time.Time `db:"ends_at" json:"ends_at"`
	ServiceLabel string    `db:"service_label" json:"service_label"`
}

// Public strips customer data from s
func (s *Slot) Public() PublicSlot {
	return PublicSlot{ID: s.ID, StartsAt: s.StartsAt, EndsAt: s.EndsAt, ServiceLabel: s.ServiceLabel}
}

// Request is a customer's ask for an appointment at a preferred time
type Request struct {
	ID              string     `db:"id" json:"id"`
	MerchantID      string     `db:"merchant_id" json:"merchant_id"`
	CustomerName    string     `db:"customer_name" json:"customer_name"`
	CustomerPhone   *string    `db:"customer_phone" json:"customer_phone,omitempty"`
	CustomerSession string     `db:"customer_session" json:"-"`
	PreferredAt     time.Time  `db:"preferred_at" json:"preferred_at"`
	Service         string     `db:"service" json:"service"`
	PetName         *string    `db:"pet_name" json:"pet_name,omitempty"`
	Notes           string     `db:"notes" json:"notes"`
	Status          string     `db:"status" json:"status"`
	DecidedBy       *string    `db:"decided_by" json:"decided_by,omitempty"`
	DecidedAt       *time.Time `db:"decided_at" json:"decided_at,omitempty"`
	DecisionNote    *string    `db:"decision_note" json:"decision_note,omitempty"`
	CreatedAt       time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time  `db:"updated_at" json:"updated_at"`
}

// Window is a half-open time range [Start, End)
type Window struct {
	Start time.Time
	End   time.Time
}

// Overlaps reports whether two windows share any instant
func (w Window) Overlaps(o Window) bool {
	return w.Start.Before(o.End) && o.Start.Before(w.End)
}

// Series splits [start, end) into back-to-back windows of the given length.
// A trailing remainder shorter than length is dropped.
func Series(start, end time.Time, length time.Duration) ([]Window, error) {
	if !end.After(start) {
		return nil, fmt.Errorf("end must be after start")
	}
	if length < MinSlotMinutes*time.Minute || length > MaxSlotMinutes*time.Minute {
		return nil, fmt.Errorf("slot length must be between %d and %d minutes", MinSlotMinutes, MaxSlotMinutes)
	}

	var out []Window
	for s := start; !s.Add(length).After(end); s = s.Add(length) {
		if len(out) == MaxSlotsPerBatch {
			return nil, fmt.Errorf("a series may hold at most %d slots", MaxSlotsPerBatch)
		}
		out = append(out, Window{Start: s, End: s.Add(length)})
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("range is shorter than one slot")
	}
	return out, nil
}

// Decide returns the request status a decision leads to
func Decide(decision string) (string, bool) {
	switch decision {
	case DecisionAccept:
		return RequestAccepted, true
	case DecisionDecline:
		return RequestDeclined, true
	}
	return "", false
}

// IsValidRequestStatus reports whether status is a request status
func IsValidRequestStatus(status string) bool {
	switch status {
	case RequestPending, RequestAccepted, RequestDeclined, RequestCancelled, RequestExpired:
		return true
	}
	return false
}

// IsCancellableByCustomer reports whether the customer may still withdraw a request
func IsCancellableByCustomer(status string) bool {
	return status == RequestPending || status == RequestAccepted
}
