package service

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/qerbie/qerbie-backend/internal/appointment/domain"
	"github.com/qerbie/qerbie-backend/pkg/errors"
	"github.com/qerbie/qerbie-backend/pkg/messaging"
)

const (
	defaultAvailableRange = 14 * 24 * time.Hour
	maxListRange          = 62 * 24 * time.Hour
)

// CreateSlotsRequest creates one slot, or a series when DurationMinutes is set
type CreateSlotsRequest struct {
	StartsAt        time.Time `json:"starts_at" validate:"required"`
	EndsAt          time.Time `json:"ends_at" validate:"required,gtfield=StartsAt"`
	DurationMinutes *int      `json:"duration_minutes" validate:"omitempty,min=5,max=480"`
	ServiceLabel    string    `json:"service_label" validate:"max=120"`
}

// BookRequest represents a customer booking a slot
type BookRequest struct {
	CustomerName  string  `json:"customer_name" validate:"required,min=1,max=80"`
	CustomerPhone *string `json:"customer_phone" validate:"omitempty,e164"`
}

// CreateSlots creates a single slot or a generated series. Nothing is created when any
// window overlaps an existing slot.
func (s *AppointmentService) CreateSlots(ctx context.Context, merchantID string, req *CreateSlotsRequest) ([]domain.Slot, error) {
	start, end := req.StartsAt.UTC(), req.EndsAt.UTC()
	if !end.After(start) {
		return nil, errors.Validation(map[string]string{"ends_at": "must be after starts_at"})
	}
	if !start.After(s.now()) {
		return nil, errors.Validation(map[string]string{"starts_at": "must be in the future"})
	}

	windows := []domain.Window{{Start: start, End: end}}
	if req.DurationMinutes != nil {
		var err error
		windows, err = domain.Series(start, end, time.Duration(*req.DurationMinutes)*time.Minute)
		if err != nil {
			return nil, errors.Validation(map[string]string{"duration_minutes": err.Error()})
		}
	}

	now := s.now()
	label := strings.TrimSpace(req.ServiceLabel)
	out := make([]domain.Slot, 0, len(windows))
	err := s.tx.WithMerchantRLS(ctx, merchantID, func(ctx context.Context) error {
		if err := s.slots.LockSchedule(ctx, merchantID); err != nil {
			return err
		}
		n, err := s.slots.CountOverlapping(ctx, merchantID, start, end)
		if err != nil {
			return err
		}
		if n > 0 {
			return errors.Conflict("the range overlaps existing slots")
		}

		for _, w := range windows {
			slot := domain.Slot{
				ID:           uuid.New().String(),
				MerchantID:   merchantID,
				StartsAt:     w.Start,
				EndsAt:       w.End,
				Status:       domain.SlotAvailable,
				ServiceLabel: label,
				CreatedAt:    now,
				UpdatedAt:    now,
			}
			if err := s.slots.Create(ctx, &slot); err != nil {
				return err
			}
			out = append(out, slot)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info().Str("merchant_id", merchantID).Int("count", len(out)).Msg("slots created")
	return out, nil
}

// ListSlots lists every slot starting within [from, to)
func (s *AppointmentService) ListSlots(ctx context.Context, merchantID string, from, to time.Time) ([]domain.Slot, error) {
	if err := checkRange(from, to); err != nil {
		return nil, err
	}

	var out []domain.Slot
	err := s.tx.WithMerchantRLS(ctx, merchantID, func(ctx context.Context) error {
		var err error
		out, err = s.slots.ListRange(ctx, merchantID, from, to)
		return err
	})
	return out, err
}

// Block takes an available slot off the public list
func (s *AppointmentService) Block(ctx context.Context, merchantID, slotID string) (*domain.Slot, error) {
	return s.setStatus(ctx, merchantID, slotID, domain.SlotAvailable, domain.SlotBlocked)
}

// Unblock makes a blocked slot bookable again
func (s *AppointmentService) Unblock(ctx context.Context, merchantID, slotID string) (*domain.Slot, error) {
	return s.setStatus(ctx, merchantID, slotID, domain.SlotBlocked, domain.SlotAvailable)
}

func (s *AppointmentService) setStatus(ctx context.Context, merchantID, slotID, from, to string) (*domain.Slot, error) {
	var slot *domain.Slot
	err := s.tx.WithMerchantRLS(ctx, merchantID, func(ctx context.Context) error {
		var err error
		slot, err = s.slots.GetByID(ctx, merchantID, slotID)
		if err != nil {
			return err
		}
		if slot.Status != from {
			return errors.InvalidTransition(slot.Status, to)
		}
		ok, err := s.slots.SetStatus(ctx, merchantID, slotID, from, to)
		if err != nil {
			return err
		}
		if !ok {
			return errors.Conflict("the slot was changed by someone else")
		}
		slot.Status = to
		return nil
	})
	if err != nil {
		return nil, err
	}
	return slot, nil
}

// DeleteSlot deletes a slot that is not booked
func (s *AppointmentService) DeleteSlot(ctx context.Context, merchantID, slotID string) error {
	return s.tx.WithMerchantRLS(ctx, merchantID, func(ctx context.Context) error {
		if _, err := s.slots.GetByID(ctx, merchantID, slotID); err != nil {
			return err
		}
		deleted, err := s.slots.Delete(ctx, merchantID, slotID)
		if err != nil {
			return err
		}
		if !deleted {
			return errors.Conflict("a booked slot cannot be deleted")
		}
		return nil
	})
}

// ListAvailable lists bookable future slots. A zero from means now; a zero to means two weeks after from.
func (s *AppointmentService) ListAvailable(ctx context.Context, merchantID string, from, to time.Time) ([]domain.PublicSlot, error) {
	now := s.now()
	if from.Before(now) {
		from = now
	}
	if to.IsZero() {
		to = from.Add(defaultAvailableRange)
	}
	if err := checkRange(from, to); err != nil {
		return nil, err
	}

	var out []domain.PublicSlot
	err := s.tx.WithMerchantRLS(ctx, merchantID, func(ctx context.Context) error {
		var err error
		out, err = s.slots.ListAvailable(ctx, merchantID, from, to)
		return err
	})
	return out, err
}

// Book reserves an available slot for the customer session
func (s *AppointmentService) Book(ctx context.Context, merchantID, slotID, session string, req *BookRequest) (*domain.Slot, error) {
	name := strings.TrimSpace(req.CustomerName)
	var booked *domain.Slot
	err := s.tx.WithMerchantRLS(ctx, merchantID, func(ctx context.Context) error {
		if _, err := s.slots.GetByID(ctx, merchantID, slotID); err != nil {
			return err
		}

		var err error
		booked, err = s.slots.Book(ctx, &domain.Slot{
			ID:              slotID,
			MerchantID:      merchantID,
			CustomerName:    &name,
			CustomerPhone:   req.CustomerPhone,
			CustomerSession: &session,
		}, s.now())
		if err != nil {
			return err
		}
		if booked == nil {
			return errors.SlotUnavailable()
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.publish(ctx, messaging.EventSlotBooked, merchantID, slotEvent(booked, ""))
	return booked, nil
}

// CancelBooking frees a slot the session booked, as long as it has not started
func (s *AppointmentService) CancelBooking(ctx context.Context, merchantID, slotID, session string) error {
	var slot *domain.Slot
	err := s.tx.WithMerchantRLS(ctx, merchantID, func(ctx context.Context) error {
		var err error
		slot, err = s.slots.GetByID(ctx, merchantID, slotID)
		if err != nil {
			return err
		}
		if slot.Status != domain.SlotBooked || slot.CustomerSession == nil || *slot.CustomerSession != session {
			return errors.NotFoundWithKey("slot")
		}
		now := s.now()
		if !slot.StartsAt.After(now) {
			return errors.BadRequest("the appointment has already started")
		}

		ok, err := s.slots.Release(ctx, merchantID, slotID, session, now)
		if err != nil {
			return err
		}
		if !ok {
			return errors.Conflict("the slot was changed by someone else")
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.publish(ctx, messaging.EventSlotReleased, merchantID, slotEvent(slot, "cancelled_by_customer"))
	return nil
}

func checkRange(from, to time.Time) error {
	if !to.After(from) {
		return errors.Validation(map[string]string{"to": "must be after from"})
	}
	if to.Sub(from) > maxListRange {
		return errors.Validation(map[string]string{"to": "range is limited to 62 days"})
	}
	return nil
}

func slotEvent(s *domain.Slot, reason string) messaging.SlotEvent {
	ev := messaging.SlotEvent{
		SlotID:        s.ID,
		StartsAt:      s.StartsAt,
		EndsAt:        s.EndsAt,
		ServiceLabel:  s.ServiceLabel,
		CustomerPhone: s.CustomerPhone,
		Reason:        reason,
	}
	if s.CustomerName != nil {
		ev.CustomerName = *s.CustomerName
	}
	return ev
}
