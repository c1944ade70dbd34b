package service

import (
	"context"
	"time"

	"github.com/qerbie/qerbie-backend/internal/appointment/domain"
	"github.com/qerbie/qerbie-backend/pkg/database"
	"github.com/qerbie/qerbie-backend/pkg/logger"
	"github.com/qerbie/qerbie-backend/pkg/messaging"
)

// SlotStore is the slot persistence the service needs
type SlotStore interface {
	Create(ctx context.Context, s *domain.Slot) error
	LockSchedule(ctx context.Context, merchantID string) error
	CountOverlapping(ctx context.Context, merchantID string, from, to time.Time) (int, error)
	GetByID(ctx context.Context, merchantID, id string) (*domain.Slot, error)
	ListRange(ctx context.Context, merchantID string, from, to time.Time) ([]domain.Slot, error)
	ListAvailable(ctx context.Context, merchantID string, from, to time.Time) ([]domain.PublicSlot, error)
	SetStatus(ctx context.Context, merchantID, id, from, to string) (bool, error)
	Delete(ctx context.Context, merchantID, id string) (bool, error)
	Book(ctx context.Context, s *domain.Slot, now time.Time) (*domain.Slot, error)
	Release(ctx context.Context, merchantID, id, session string, now time.Time) (bool, error)
}

// RequestStore is the appointment request persistence the service needs
type RequestStore interface {
	Create(ctx context.Context, req *domain.Request) error
	GetByID(ctx context.Context, merchantID, id string) (*domain.Request, error)
	GetForSession(ctx context.Context, merchantID, id, session string) (*domain.Request, error)
	List(ctx context.Context, merchantID, status string, page, perPage int) ([]domain.Request, int64, error)
	UpdateStatus(ctx context.Context, req *domain.Request, from string) (bool, error)
	ExpirePast(ctx context.Context, merchantID string, before time.Time) ([]domain.Request, error)
}

// AppointmentService manages bookable slots and free-form appointment requests
type AppointmentService struct {
	tx        database.Transactor
	slots     SlotStore
	requests  RequestStore
	publisher messaging.EventPublisher
	logger    *logger.Logger
	now       func() time.Time
}

// NewAppointmentService creates a new appointment service
func NewAppointmentService(tx database.Transactor, slots SlotStore, requests RequestStore, pub messaging.EventPublisher, log *logger.Logger) *AppointmentService {
	return &AppointmentService{
		tx:        tx,
		slots:     slots,
		requests:  requests,
		publisher: pub,
		logger:    log,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

func (s *AppointmentService) publish(ctx context.Context, eventType, merchantID string, data interface{}) {
	if err := s.publisher.Publish(ctx, eventType, merchantID, data); err != nil {
		s.logger.Warn().Err(err).Str("event", eventType).Str("merchant_id", merchantID).Msg("failed to publish event")
	}
}
