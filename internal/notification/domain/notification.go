package domain

import (
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/qerbie/qerbie-backend/pkg/i18n"
)

// Delivery statuses
const (
	StatusPending = "pending"
	StatusSent    = "sent"
	StatusFailed  = "failed"
	StatusSkipped = "skipped"
)

// ChannelSMS is the only delivery channel
const ChannelSMS = "sms"

// Message keys under "notifications." in the locale files
const (
	MessageTicketCalled    = "notifications.ticket_called"
	MessageOrderReady      = "notifications.order_ready"
	MessageRequestAccepted = "notifications.request_accepted"
	MessageRequestDeclined = "notifications.request_declined"
	MessageSlotBooked      = "notifications.slot_booked"
)

// maxErrorLength bounds provider errors stored on a notification
const maxErrorLength = 500

// Notification is one customer-facing message derived from a domain event.
// EventID is unique so a redelivered event never produces a second message.
type Notification struct {
	ID         string     `db:"id" json:"id"`
	MerchantID string     `db:"merchant_id" json:"merchant_id"`
	EventID    string     `db:"event_id" json:"event_id"`
	EventType  string     `db:"event_type" json:"event_type"`
	Channel    string     `db:"channel" json:"channel"`
	Recipient  *string    `db:"recipient" json:"recipient,omitempty"`
	Body       string     `db:"body" json:"body"`
	Status     string     `db:"status" json:"status"`
	Error      *string    `db:"error" json:"error,omitempty"`
	ProviderID *string    `db:"provider_id" json:"provider_id,omitempty"`
	SentAt     *time.Time `db:"sent_at" json:"sent_at,omitempty"`
	CreatedAt  time.Time  `db:"created_at" json:"created_at"`
}

// Fail records a delivery error, truncated to what the table keeps
func (n *Notification) Fail(err error) {
	msg := err.Error()
	if len(msg) > maxErrorLength {
		msg = msg[:maxErrorLength]
	}
	n.Status = StatusFailed
	n.Error = &msg
}

// LocaleFor picks the message language from the recipient's country code
func LocaleFor(phone *string) string {
	if phone == nil {
		return i18n.DefaultLocale
	}
	for _, prefix := range []string{"+55", "+351", "+244", "+258"} {
		if strings.HasPrefix(*phone, prefix) {
			return i18n.LocalePortuguese
		}
	}
	return i18n.DefaultLocale
}

// FormatWhen renders an appointment time in the merchant's timezone.
// An unknown timezone falls back to UTC.
func FormatWhen(t time.Time, timezone, locale string) string {
	loc, err := time.LoadLocation(timezone)
	if err != nil || timezone == "" {
		loc = time.UTC
	}
	t = t.In(loc)
	if locale == i18n.LocalePortuguese {
		return t.Format("02/01 15:04")
	}
	return t.Format("Jan 2, 15:04")
}

// Render builds the message body for key in locale
func Render(locale, key string, params map[string]string) string {
	return i18n.NewLocalizer(locale).T(key, params)
}
