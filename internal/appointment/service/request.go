package service

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/qerbie/qerbie-backend/internal/appointment/domain"
	merchantdomain "github.com/qerbie/qerbie-backend/internal/merchant/domain"
	"github.com/qerbie/qerbie-backend/pkg/errors"
	"github.com/qerbie/qerbie-backend/pkg/messaging"
)

// SubmitRequest represents a customer asking for an appointment
type SubmitRequest struct {
	CustomerName  string    `json:"customer_name" validate:"required,min=1,max=80"`
	CustomerPhone *string   `json:"customer_phone" validate:"omitempty,e164"`
	PreferredAt   time.Time `json:"preferred_at" validate:"required"`
	Service       string    `json:"service" validate:"max=120"`
	PetName       *string   `json:"pet_name" validate:"omitempty,max=80"`
	Notes         string    `json:"notes" validate:"max=1000"`
}

// DecideRequest represents a merchant answering a pending request
type DecideRequest struct {
	Decision string  `json:"decision" validate:"required,oneof=accept decline"`
	Note     *string `json:"note" validate:"omitempty,max=500"`
}

// Submit records an appointment request. Pet shops need the pet's name.
func (s *AppointmentService) Submit(ctx context.Context, merchantID, businessType, session string, req *SubmitRequest) (*domain.Request, error) {
	now := s.now()
	if !req.PreferredAt.After(now) {
		return nil, errors.Validation(map[string]string{"preferred_at": "must be in the future"})
	}

	var petName *string
	if businessType == merchantdomain.BusinessPetShop {
		if req.PetName == nil || strings.TrimSpace(*req.PetName) == "" {
			return nil, errors.Validation(map[string]string{"pet_name": "is required"})
		}
		name := strings.TrimSpace(*req.PetName)
		petName = &name
	}

	r := &domain.Request{
		ID:              uuid.New().String(),
		MerchantID:      merchantID,
		CustomerName:    strings.TrimSpace(req.CustomerName),
		CustomerPhone:   req.CustomerPhone,
		CustomerSession: session,
		PreferredAt:     req.PreferredAt.UTC(),
		Service:         strings.TrimSpace(req.Service),
		PetName:         petName,
		Notes:           strings.TrimSpace(req.Notes),
		Status:          domain.RequestPending,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	err := s.tx.WithMerchantRLS(ctx, merchantID, func(ctx context.Context) error {
		return s.requests.Create(ctx, r)
	})
	if err != nil {
		return nil, err
	}

	s.publish(ctx, messaging.EventRequestCreated, merchantID, requestEvent(r))
	return r, nil
}

// CancelOwnRequest withdraws a pending or accepted request of the session
func (s *AppointmentService) CancelOwnRequest(ctx context.Context, merchantID, requestID, session string) (*domain.Request, error) {
	var r *domain.Request
	err := s.tx.WithMerchantRLS(ctx, merchantID, func(ctx context.Context) error {
		var err error
		r, err = s.requests.GetForSession(ctx, merchantID, requestID, session)
		if err != nil {
			return err
		}
		if !domain.IsCancellableByCustomer(r.Status) {
			return errors.InvalidTransition(r.Status, domain.RequestCancelled)
		}
		from := r.Status
		r.Status = domain.RequestCancelled
		r.UpdatedAt = s.now()
		return s.updateRequest(ctx, r, from)
	})
	if err != nil {
		return nil, err
	}
	return r, nil
}

// ListRequests lists a page of requests, optionally filtered by status
func (s *AppointmentService) ListRequests(ctx context.Context, merchantID, status string, page, perPage int) ([]domain.Request, int64, error) {
	if status != "" && !domain.IsValidRequestStatus(status) {
		return nil, 0, errors.Validation(map[string]string{"status": "unknown status " + status})
	}

	var out []domain.Request
	var total int64
	err := s.tx.WithMerchantRLS(ctx, merchantID, func(ctx context.Context) error {
		var err error
		out, total, err = s.requests.List(ctx, merchantID, status, page, perPage)
		return err
	})
	return out, total, err
}

// GetRequest returns a request
func (s *AppointmentService) GetRequest(ctx context.Context, merchantID, requestID string) (*domain.Request, error) {
	var r *domain.Request
	err := s.tx.WithMerchantRLS(ctx, merchantID, func(ctx context.Context) error {
		var err error
		r, err = s.requests.GetByID(ctx, merchantID, requestID)
		return err
	})
	return r, err
}

// Decide accepts or declines a pending request
func (s *AppointmentService) Decide(ctx context.Context, merchantID, requestID, actorID string, req *DecideRequest) (*domain.Request, error) {
	to, ok := domain.Decide(req.Decision)
	if !ok {
		return nil, errors.Validation(map[string]string{"decision": "must be accept or decline"})
	}

	var r *domain.Request
	err := s.tx.WithMerchantRLS(ctx, merchantID, func(ctx context.Context) error {
		var err error
		r, err = s.requests.GetByID(ctx, merchantID, requestID)
		if err != nil {
			return err
		}
		if r.Status != domain.RequestPending {
			return errors.InvalidTransition(r.Status, to)
		}

		now := s.now()
		r.Status = to
		r.DecidedBy = &actorID
		r.DecidedAt = &now
		r.DecisionNote = nil
		if req.Note != nil && strings.TrimSpace(*req.Note) != "" {
			note := strings.TrimSpace(*req.Note)
			r.DecisionNote = &note
		}
		r.UpdatedAt = now
		return s.updateRequest(ctx, r, domain.RequestPending)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info().Str("merchant_id", merchantID).Str("request_id", r.ID).Str("status", r.Status).Str("by", actorID).Msg("appointment request decided")
	s.publish(ctx, messaging.EventRequestDecided, merchantID, requestEvent(r))
	return r, nil
}

// ExpirePast expires pending requests whose preferred time has passed
func (s *AppointmentService) ExpirePast(ctx context.Context, merchantID string) (int, error) {
	var expired []domain.Request
	err := s.tx.WithMerchantRLS(ctx, merchantID, func(ctx context.Context) error {
		var err error
		expired, err = s.requests.ExpirePast(ctx, merchantID, s.now())
		return err
	})
	if err != nil {
		return 0, err
	}
	return len(expired), nil
}

func (s *AppointmentService) updateRequest(ctx context.Context, r *domain.Request, from string) error {
	ok, err := s.requests.UpdateStatus(ctx, r, from)
	if err != nil {
		return err
	}
	if !ok {
		return errors.Conflict("the request was changed by someone else")
	}
	return nil
}

func requestEvent(r *domain.Request) messaging.AppointmentRequestEvent {
	return messaging.AppointmentRequestEvent{
		RequestID:     r.ID,
		PreferredAt:   r.PreferredAt,
		Service:       r.Service,
		PetName:       r.PetName,
		Status:        r.Status,
		DecisionNote:  r.DecisionNote,
		DecidedBy:     r.DecidedBy,
		CustomerName:  r.CustomerName,
		CustomerPhone: r.CustomerPhone,
	}
}
