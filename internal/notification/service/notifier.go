package service

import (
	"context"
	"strconv"
	"time"

	"github.com/google/uuid"
	merchantdomain "github.com/qerbie/qerbie-backend/internal/merchant/domain"
	"github.com/qerbie/qerbie-backend/internal/notification/domain"
	"github.com/qerbie/qerbie-backend/pkg/database"
	"github.com/qerbie/qerbie-backend/pkg/logger"
	"github.com/qerbie/qerbie-backend/pkg/messaging"
)

// Store persists notifications
type Store interface {
	Create(ctx context.Context, n *domain.Notification) (bool, error)
	SaveResult(ctx context.Context, n *domain.Notification) error
	ListRecent(ctx context.Context, merchantID string, limit int) ([]domain.Notification, error)
}

// MerchantSource looks up the merchant a message is sent on behalf of
type MerchantSource interface {
	GetByID(ctx context.Context, id string) (*merchantdomain.Merchant, error)
}

// Sender delivers a text message and returns the provider's message ID
type Sender interface {
	Send(ctx context.Context, to, body string) (string, error)
}

// recentLimit bounds the merchant notification log listing
const recentLimit = 100

// Notifier turns domain events into customer messages
type Notifier struct {
	tx        database.Transactor
	store     Store
	merchants MerchantSource
	sender    Sender
	logger    *logger.Logger
	now       func() time.Time
}

// NewNotifier creates a notifier. A nil sender records every message as skipped.
func NewNotifier(tx database.Transactor, store Store, merchants MerchantSource, sender Sender, log *logger.Logger) *Notifier {
	return &Notifier{
		tx:        tx,
		store:     store,
		merchants: merchants,
		sender:    sender,
		logger:    log.WithComponent("notifier"),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// message describes what to tell a customer about one event
type message struct {
	key   string
	phone *string
	// when is rendered in the merchant's timezone if set
	when   *time.Time
	params map[string]string
}

// TicketCalled tells a customer their ticket is being called
func (n *Notifier) TicketCalled(ctx context.Context, event *messaging.Event) error {
	var data messaging.TicketEvent
	if err := event.UnmarshalData(&data); err != nil {
		return err
	}
	return n.deliver(ctx, event, message{
		key:    domain.MessageTicketCalled,
		phone:  data.CustomerPhone,
		params: map[string]string{"number": strconv.Itoa(data.TicketNumber)},
	})
}

// OrderStatusChanged tells a customer their order is ready; other statuses are ignored
func (n *Notifier) OrderStatusChanged(ctx context.Context, event *messaging.Event) error {
	var data messaging.OrderEvent
	if err := event.UnmarshalData(&data); err != nil {
		return err
	}
	if data.Status != "ready" {
		return nil
	}
	return n.deliver(ctx, event, message{
		key:   domain.MessageOrderReady,
		phone: data.CustomerPhone,
	})
}

// RequestDecided tells a customer whether their appointment request was accepted
func (n *Notifier) RequestDecided(ctx context.Context, event *messaging.Event) error {
	var data messaging.AppointmentRequestEvent
	if err := event.UnmarshalData(&data); err != nil {
		return err
	}

	key := domain.MessageRequestDeclined
	switch data.Status {
	case "accepted":
		key = domain.MessageRequestAccepted
	case "declined":
	default:
		return nil
	}
	return n.deliver(ctx, event, message{
		key:   key,
		phone: data.CustomerPhone,
		when:  &data.PreferredAt,
	})
}

// SlotBooked confirms a booking to the customer
func (n *Notifier) SlotBooked(ctx context.Context, event *messaging.Event) error {
	var data messaging.SlotEvent
	if err := event.UnmarshalData(&data); err != nil {
		return err
	}
	return n.deliver(ctx, event, message{
		key:   domain.MessageSlotBooked,
		phone: data.CustomerPhone,
		when:  &data.StartsAt,
	})
}

// deliver records the notification once per event and sends it when possible.
// Storage errors are returned so the event is retried; provider errors are recorded on the row.
func (n *Notifier) deliver(ctx context.Context, event *messaging.Event, msg message) error {
	locale := domain.LocaleFor(msg.phone)
	rec := &domain.Notification{
		ID:         uuid.NewString(),
		MerchantID: event.MerchantID,
		EventID:    event.ID,
		EventType:  event.Type,
		Channel:    domain.ChannelSMS,
		Recipient:  msg.phone,
		Status:     domain.StatusPending,
		CreatedAt:  n.now(),
	}
	if msg.phone == nil || *msg.phone == "" || n.sender == nil {
		rec.Status = domain.StatusSkipped
	}

	var created bool
	err := n.tx.WithMerchantRLS(ctx, event.MerchantID, func(ctx context.Context) error {
		m, err := n.merchants.GetByID(ctx, event.MerchantID)
		if err != nil {
			return err
		}

		params := map[string]string{"merchant": m.Name}
		for k, v := range msg.params {
			params[k] = v
		}
		if msg.when != nil {
			params["when"] = domain.FormatWhen(*msg.when, m.Timezone, locale)
		}
		rec.Body = domain.Render(locale, msg.key, params)

		created, err = n.store.Create(ctx, rec)
		return err
	})
	if err != nil {
		return err
	}
	if !created {
		n.logger.Debug().Str("event_id", event.ID).Msg("notification already recorded")
		return nil
	}
	if rec.Status == domain.StatusSkipped {
		return nil
	}

	providerID, sendErr := n.sender.Send(ctx, *msg.phone, rec.Body)
	if sendErr != nil {
		rec.Fail(sendErr)
		n.logger.Warn().Err(sendErr).Str("event_id", event.ID).Str("merchant_id", event.MerchantID).Msg("failed to send notification")
	} else {
		sentAt := n.now()
		rec.Status = domain.StatusSent
		rec.SentAt = &sentAt
		if providerID != "" {
			rec.ProviderID = &providerID
		}
	}

	return n.tx.WithMerchantRLS(ctx, event.MerchantID, func(ctx context.Context) error {
		return n.store.SaveResult(ctx, rec)
	})
}

// ListRecent lists the merchant's latest notifications
func (n *Notifier) ListRecent(ctx context.Context, merchantID string) ([]domain.Notification, error) {
	var out []domain.Notification
	err := n.tx.WithMerchantRLS(ctx, merchantID, func(ctx context.Context) error {
		var err error
		out, err = n.store.ListRecent(ctx, merchantID, recentLimit)
		return err
	})
	return out, err
}
