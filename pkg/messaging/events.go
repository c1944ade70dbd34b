package messaging

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Event types
const (
	// Queue events
	EventTicketCreated       = "queue.ticket.created"
	EventTicketCalled        = "queue.ticket.called"
	EventTicketStatusChanged = "queue.ticket.status_changed"

	// Appointment events
	EventSlotBooked     = "appointment.slot.booked"
	EventSlotReleased   = "appointment.slot.released"
	EventRequestCreated = "appointment.request.created"
	EventRequestDecided = "appointment.request.decided"

	// Order events
	EventOrderCreated       = "order.created"
	EventOrderStatusChanged = "order.status_changed"

	// Merchant events
	EventMerchantCreated = "merchant.created"
	EventMemberAdded     = "merchant.member.added"
	EventMemberRemoved   = "merchant.member.removed"
)

// Exchange names
const (
	ExchangeEvents     = "qerbie.events"
	ExchangeDeadLetter = "dlx.events"
)

// Event is the base event structure
type Event struct {
	ID            string          `json:"id"`
	Type          string          `json:"type"`
	Source        string          `json:"source"`
	Timestamp     time.Time       `json:"timestamp"`
	CorrelationID string          `json:"correlation_id"`
	MerchantID    string          `json:"merchant_id"`
	Data          json.RawMessage `json:"data"`
}

// NewEvent creates a new event with the given type and data
func NewEvent(eventType, source, correlationID, merchantID string, data interface{}) (*Event, error) {
	dataBytes, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}

	return &Event{
		ID:            uuid.NewString(),
		Type:          eventType,
		Source:        source,
		Timestamp:     time.Now().UTC(),
		CorrelationID: correlationID,
		MerchantID:    merchantID,
		Data:          dataBytes,
	}, nil
}

// UnmarshalData unmarshals the event data into the provided struct
func (e *Event) UnmarshalData(v interface{}) error {
	return json.Unmarshal(e.Data, v)
}

// Queue Events

// TicketEvent is published for every ticket lifecycle change
type TicketEvent struct {
	TicketID      string  `json:"ticket_id"`
	QueueID       string  `json:"queue_id"`
	QueueName     string  `json:"queue_name"`
	TicketNumber  int     `json:"ticket_number"`
	Status        string  `json:"status"`
	PreviousState string  `json:"previous_status,omitempty"`
	CustomerName  string  `json:"customer_name"`
	CustomerPhone *string `json:"customer_phone,omitempty"`
}

// Appointment Events

// SlotEvent is published when a slot is booked or released
type SlotEvent struct {
	SlotID        string    `json:"slot_id"`
	StartsAt      time.Time `json:"starts_at"`
	EndsAt        time.Time `json:"ends_at"`
	ServiceLabel  string    `json:"service_label"`
	CustomerName  string    `json:"customer_name"`
	CustomerPhone *string   `json:"customer_phone,omitempty"`
	Reason        string    `json:"reason,omitempty"`
}

// AppointmentRequestEvent is published when a request is created or decided
type AppointmentRequestEvent struct {
	RequestID     string    `json:"request_id"`
	PreferredAt   time.Time `json:"preferred_at"`
	Service       string    `json:"service"`
	PetName       *string   `json:"pet_name,omitempty"`
	Status        string    `json:"status"`
	DecisionNote  *string   `json:"decision_note,omitempty"`
	DecidedBy     *string   `json:"decided_by,omitempty"`
	CustomerName  string    `json:"customer_name"`
	CustomerPhone *string   `json:"customer_phone,omitempty"`
}

// Order Events

// OrderEvent is published when an order is created or changes status
type OrderEvent struct {
	OrderID        string  `json:"order_id"`
	TableID        *string `json:"table_id,omitempty"`
	Status         string  `json:"status"`
	PreviousStatus string  `json:"previous_status,omitempty"`
	TotalCents     int     `json:"total_cents"`
	ItemCount      int     `json:"item_count"`
	CustomerName   string  `json:"customer_name"`
	CustomerPhone  *string `json:"customer_phone,omitempty"`
	ChangedBy      *string `json:"changed_by,omitempty"`
}

// Merchant Events

// MerchantCreatedEvent is published when a merchant is created
type MerchantCreatedEvent struct {
	MerchantID   string `json:"merchant_id"`
	Name         string `json:"name"`
	Slug         string `json:"slug"`
	BusinessType string `json:"business_type"`
	OwnerID      string `json:"owner_id"`
}

// MemberEvent is published when a member joins or leaves a merchant
type MemberEvent struct {
	UserID string `json:"user_id"`
	Role   string `json:"role"`
	By     string `json:"by"`
}
