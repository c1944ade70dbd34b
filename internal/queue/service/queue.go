package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/qerbie/qerbie-backend/internal/queue/domain"
	qrdomain "github.com/qerbie/qerbie-backend/internal/qr/domain"
	"github.com/qerbie/qerbie-backend/pkg/database"
	"github.com/qerbie/qerbie-backend/pkg/errors"
	"github.com/qerbie/qerbie-backend/pkg/logger"
	"github.com/qerbie/qerbie-backend/pkg/messaging"
)

// QueueStore is the queue persistence the service needs
type QueueStore interface {
	Create(ctx context.Context, q *domain.Queue) error
	GetByID(ctx context.Context, merchantID, id string) (*domain.Queue, error)
	LockForJoin(ctx context.Context, merchantID, id string) (*domain.Queue, error)
	List(ctx context.Context, merchantID string) ([]domain.Queue, error)
	Update(ctx context.Context, q *domain.Queue) error
	Delete(ctx context.Context, merchantID, id string) (bool, error)
	NextTicketNumber(ctx context.Context, merchantID, id string) (int, bool, error)
	ResetNumbering(ctx context.Context, merchantID, id string) (bool, error)
}

// TicketStore is the ticket persistence the service needs
type TicketStore interface {
	Create(ctx context.Context, t *domain.Ticket) error
	GetByID(ctx context.Context, merchantID, id string) (*domain.Ticket, error)
	GetForSession(ctx context.Context, merchantID, id, session string) (*domain.Ticket, error)
	FindOpenForSession(ctx context.Context, queueID, session string) (*domain.Ticket, error)
	CountWaitingAhead(ctx context.Context, queueID string, ticketNumber int) (int, error)
	List(ctx context.Context, merchantID, queueID string, statuses []string) ([]domain.Ticket, error)
	LockNextWaiting(ctx context.Context, merchantID, queueID string) (*domain.Ticket, error)
	UpdateStatus(ctx context.Context, t *domain.Ticket, from string) (bool, error)
	MarkNoShows(ctx context.Context, merchantID string, before time.Time) ([]domain.Ticket, error)
	CancelStale(ctx context.Context, merchantID string, before time.Time) ([]domain.Ticket, error)
}

// QueueService runs walk-in queues: customers join by QR code, staff call them in order
type QueueService struct {
	tx        database.Transactor
	queues    QueueStore
	tickets   TicketStore
	publisher messaging.EventPublisher
	logger    *logger.Logger
	now       func() time.Time
}

// NewQueueService creates a new queue service
func NewQueueService(tx database.Transactor, queues QueueStore, tickets TicketStore, pub messaging.EventPublisher, log *logger.Logger) *QueueService {
	return &QueueService{
		tx:        tx,
		queues:    queues,
		tickets:   tickets,
		publisher: pub,
		logger:    log,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// CreateQueueRequest represents a queue creation request
type CreateQueueRequest struct {
	Name              string `json:"name" validate:"required,min=1,max=80"`
	AvgServiceMinutes int    `json:"avg_service_minutes" validate:"required,min=1,max=240"`
	IsOpen            bool   `json:"is_open"`
}

// UpdateQueueRequest represents a partial queue update
type UpdateQueueRequest struct {
	Name              *string `json:"name" validate:"omitempty,min=1,max=80"`
	AvgServiceMinutes *int    `json:"avg_service_minutes" validate:"omitempty,min=1,max=240"`
}

// JoinRequest represents a customer joining a queue
type JoinRequest struct {
	CustomerName  string  `json:"customer_name" validate:"required,min=1,max=80"`
	CustomerPhone *string `json:"customer_phone" validate:"omitempty,e164"`
}

// TransitionRequest represents a staff status change
type TransitionRequest struct {
	Status string `json:"status" validate:"required,oneof=waiting called serving done cancelled no_show"`
}

// CreateQueue creates a queue with a fresh QR token
func (s *QueueService) CreateQueue(ctx context.Context, merchantID string, req *CreateQueueRequest) (*domain.Queue, error) {
	token, err := qrdomain.NewToken()
	if err != nil {
		return nil, errors.Internal("failed to generate token")
	}

	now := s.now()
	q := &domain.Queue{
		ID:                uuid.New().String(),
		MerchantID:        merchantID,
		Name:              strings.TrimSpace(req.Name),
		AvgServiceMinutes: req.AvgServiceMinutes,
		IsOpen:            req.IsOpen,
		QRToken:           token,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	err = s.tx.WithMerchantRLS(ctx, merchantID, func(ctx context.Context) error {
		return s.queues.Create(ctx, q)
	})
	if err != nil {
		return nil, err
	}
	return q, nil
}

// ListQueues lists the merchant's queues
func (s *QueueService) ListQueues(ctx context.Context, merchantID string) ([]domain.Queue, error) {
	var out []domain.Queue
	err := s.tx.WithMerchantRLS(ctx, merchantID, func(ctx context.Context) error {
		var err error
		out, err = s.queues.List(ctx, merchantID)
		return err
	})
	return out, err
}

// GetQueue returns a queue
func (s *QueueService) GetQueue(ctx context.Context, merchantID, queueID string) (*domain.Queue, error) {
	var q *domain.Queue
	err := s.tx.WithMerchantRLS(ctx, merchantID, func(ctx context.Context) error {
		var err error
		q, err = s.queues.GetByID(ctx, merchantID, queueID)
		return err
	})
	return q, err
}

// UpdateQueue applies a partial update to a queue
func (s *QueueService) UpdateQueue(ctx context.Context, merchantID, queueID string, req *UpdateQueueRequest) (*domain.Queue, error) {
	return s.modifyQueue(ctx, merchantID, queueID, func(q *domain.Queue) {
		if req.Name != nil {
			q.Name = strings.TrimSpace(*req.Name)
		}
		if req.AvgServiceMinutes != nil {
			q.AvgServiceMinutes = *req.AvgServiceMinutes
		}
	})
}

// SetOpen opens or closes a queue for new customers. Tickets already issued are kept.
func (s *QueueService) SetOpen(ctx context.Context, merchantID, queueID string, open bool) (*domain.Queue, error) {
	q, err := s.modifyQueue(ctx, merchantID, queueID, func(q *domain.Queue) { q.IsOpen = open })
	if err == nil {
		s.logger.Info().Str("merchant_id", merchantID).Str("queue_id", queueID).Bool("open", open).Msg("queue availability changed")
	}
	return q, err
}

func (s *QueueService) modifyQueue(ctx context.Context, merchantID, queueID string, apply func(q *domain.Queue)) (*domain.Queue, error) {
	var q *domain.Queue
	err := s.tx.WithMerchantRLS(ctx, merchantID, func(ctx context.Context) error {
		var err error
		q, err = s.queues.GetByID(ctx, merchantID, queueID)
		if err != nil {
			return err
		}
		apply(q)
		return s.queues.Update(ctx, q)
	})
	if err != nil {
		return nil, err
	}
	return q, nil
}

// DeleteQueue deletes a queue with no active tickets
func (s *QueueService) DeleteQueue(ctx context.Context, merchantID, queueID string) error {
	return s.tx.WithMerchantRLS(ctx, merchantID, func(ctx context.Context) error {
		if _, err := s.queues.GetByID(ctx, merchantID, queueID); err != nil {
			return err
		}
		deleted, err := s.queues.Delete(ctx, merchantID, queueID)
		if err != nil {
			return err
		}
		if !deleted {
			return errors.Conflict("the queue still has active tickets")
		}
		return nil
	})
}

// ResetNumbering restarts ticket numbers at 1. Only allowed once every ticket is finished.
func (s *QueueService) ResetNumbering(ctx context.Context, merchantID, queueID string) error {
	return s.tx.WithMerchantRLS(ctx, merchantID, func(ctx context.Context) error {
		if _, err := s.queues.GetByID(ctx, merchantID, queueID); err != nil {
			return err
		}
		reset, err := s.queues.ResetNumbering(ctx, merchantID, queueID)
		if err != nil {
			return err
		}
		if !reset {
			return errors.Conflict("the queue still has active tickets")
		}
		return nil
	})
}

// Join gives the customer session a ticket in an open queue. A session that already waits in
// the queue gets its existing ticket back; created reports whether a new ticket was issued.
// Joins to one queue are serialized on the queue row, so a repeated tap from the same
// session waits for the first join and then finds its ticket.
func (s *QueueService) Join(ctx context.Context, merchantID, queueID, session string, req *JoinRequest) (status *domain.TicketStatus, created bool, err error) {
	var ticket *domain.Ticket
	var queueName string

	err = s.tx.WithMerchantRLS(ctx, merchantID, func(ctx context.Context) error {
		q, err := s.queues.LockForJoin(ctx, merchantID, queueID)
		if err != nil {
			return err
		}
		queueName = q.Name
		if !q.IsOpen {
			return errors.QueueClosed()
		}

		existing, err := s.tickets.FindOpenForSession(ctx, queueID, session)
		if err != nil {
			return err
		}
		if existing != nil {
			ticket = existing
			status, err = s.statusOf(ctx, q, existing)
			return err
		}

		number, open, err := s.queues.NextTicketNumber(ctx, merchantID, queueID)
		if err != nil {
			return err
		}
		if !open {
			return errors.QueueClosed()
		}

		now := s.now()
		ticket = &domain.Ticket{
			ID:              uuid.New().String(),
			MerchantID:      merchantID,
			QueueID:         queueID,
			TicketNumber:    number,
			CustomerName:    strings.TrimSpace(req.CustomerName),
			CustomerPhone:   req.CustomerPhone,
			CustomerSession: session,
			Status:          domain.StatusWaiting,
			CreatedAt:       now,
			UpdatedAt:       now,
		}
		if err := s.tickets.Create(ctx, ticket); err != nil {
			return err
		}
		created = true
		status, err = s.statusOf(ctx, q, ticket)
		return err
	})
	if err != nil {
		return nil, false, err
	}

	if created {
		s.publish(ctx, messaging.EventTicketCreated, merchantID, ticketEvent(ticket, queueName, ""))
	}
	return status, created, nil
}

// Status returns the customer's ticket with its position and estimated wait
func (s *QueueService) Status(ctx context.Context, merchantID, ticketID, session string) (*domain.TicketStatus, error) {
	var status *domain.TicketStatus
	err := s.tx.WithMerchantRLS(ctx, merchantID, func(ctx context.Context) error {
		t, err := s.tickets.GetForSession(ctx, merchantID, ticketID, session)
		if err != nil {
			return err
		}
		q, err := s.queues.GetByID(ctx, merchantID, t.QueueID)
		if err != nil {
			return err
		}
		status, err = s.statusOf(ctx, q, t)
		return err
	})
	return status, err
}

func (s *QueueService) statusOf(ctx context.Context, q *domain.Queue, t *domain.Ticket) (*domain.TicketStatus, error) {
	status := &domain.TicketStatus{Ticket: t, QueueName: q.Name, QueueOpen: q.IsOpen}
	if t.Status != domain.StatusWaiting {
		return status, nil
	}

	ahead, err := s.tickets.CountWaitingAhead(ctx, q.ID, t.TicketNumber)
	if err != nil {
		return nil, err
	}
	position := domain.Position(ahead)
	status.Position = &position

	eta, err := domain.EstimatedWait(position, q.AvgServiceMinutes)
	if err != nil {
		return nil, fmt.Errorf("estimate wait for queue %s: %w", q.ID, err)
	}
	minutes := int(eta / time.Minute)
	status.EstimatedWaitMinutes = &minutes
	return status, nil
}

// CancelOwn lets a customer leave the queue while waiting or called
func (s *QueueService) CancelOwn(ctx context.Context, merchantID, ticketID, session string) (*domain.Ticket, error) {
	var t *domain.Ticket
	var prev string
	err := s.tx.WithMerchantRLS(ctx, merchantID, func(ctx context.Context) error {
		var err error
		t, err = s.tickets.GetForSession(ctx, merchantID, ticketID, session)
		if err != nil {
			return err
		}
		if !domain.IsCancellableByCustomer(t.Status) {
			return errors.InvalidTransition(t.Status, domain.StatusCancelled)
		}
		prev = t.Status
		return s.move(ctx, t, domain.StatusCancelled)
	})
	if err != nil {
		return nil, err
	}

	s.publishStatus(ctx, t, "", prev)
	return t, nil
}

// ListTickets lists the tickets of a queue, optionally filtered by status
func (s *QueueService) ListTickets(ctx context.Context, merchantID, queueID string, statuses []string) ([]domain.Ticket, error) {
	for _, st := range statuses {
		if !domain.IsValidStatus(st) {
			return nil, errors.Validation(map[string]string{"status": "unknown status " + st})
		}
	}

	var out []domain.Ticket
	err := s.tx.WithMerchantRLS(ctx, merchantID, func(ctx context.Context) error {
		var err error
		out, err = s.tickets.List(ctx, merchantID, queueID, statuses)
		return err
	})
	return out, err
}

// CallNext calls the waiting ticket with the lowest number.
// Concurrent callers get different tickets.
func (s *QueueService) CallNext(ctx context.Context, merchantID, queueID, actorID string) (*domain.Ticket, error) {
	var t *domain.Ticket
	var queueName string
	err := s.tx.WithMerchantRLS(ctx, merchantID, func(ctx context.Context) error {
		q, err := s.queues.GetByID(ctx, merchantID, queueID)
		if err != nil {
			return err
		}
		queueName = q.Name

		t, err = s.tickets.LockNextWaiting(ctx, merchantID, queueID)
		if err != nil {
			return err
		}
		if t == nil {
			return errors.NotFoundWithKey("ticket")
		}
		return s.move(ctx, t, domain.StatusCalled)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info().Str("merchant_id", merchantID).Str("queue_id", queueID).Int("ticket_number", t.TicketNumber).Str("by", actorID).Msg("ticket called")
	s.publishStatus(ctx, t, queueName, domain.StatusWaiting)
	return t, nil
}

// Transition applies a staff status change to a ticket
func (s *QueueService) Transition(ctx context.Context, merchantID, ticketID, actorID string, req *TransitionRequest) (*domain.Ticket, error) {
	var t *domain.Ticket
	var prev, queueName string
	err := s.tx.WithMerchantRLS(ctx, merchantID, func(ctx context.Context) error {
		var err error
		t, err = s.tickets.GetByID(ctx, merchantID, ticketID)
		if err != nil {
			return err
		}
		if !domain.CanTransition(t.Status, req.Status) {
			return errors.InvalidTransition(t.Status, req.Status)
		}
		q, err := s.queues.GetByID(ctx, merchantID, t.QueueID)
		if err != nil {
			return err
		}
		queueName = q.Name
		prev = t.Status
		return s.move(ctx, t, req.Status)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Debug().Str("ticket_id", t.ID).Str("from", prev).Str("to", t.Status).Str("by", actorID).Msg("ticket transition")
	s.publishStatus(ctx, t, queueName, prev)
	return t, nil
}

// move applies `to` and writes it only if nobody changed the ticket in between
func (s *QueueService) move(ctx context.Context, t *domain.Ticket, to string) error {
	from := t.Status
	t.Apply(to, s.now())
	ok, err := s.tickets.UpdateStatus(ctx, t, from)
	if err != nil {
		return err
	}
	if !ok {
		return errors.Conflict("the ticket was changed by someone else")
	}
	return nil
}

// MarkNoShows turns tickets called more than grace ago into no-shows
func (s *QueueService) MarkNoShows(ctx context.Context, merchantID string, grace time.Duration) (int, error) {
	var tickets []domain.Ticket
	err := s.tx.WithMerchantRLS(ctx, merchantID, func(ctx context.Context) error {
		var err error
		tickets, err = s.tickets.MarkNoShows(ctx, merchantID, s.now().Add(-grace))
		return err
	})
	if err != nil {
		return 0, err
	}
	for i := range tickets {
		s.publishStatus(ctx, &tickets[i], "", domain.StatusCalled)
	}
	return len(tickets), nil
}

// ExpireStale cancels tickets left waiting for longer than age, e.g. from a previous day
func (s *QueueService) ExpireStale(ctx context.Context, merchantID string, age time.Duration) (int, error) {
	var tickets []domain.Ticket
	err := s.tx.WithMerchantRLS(ctx, merchantID, func(ctx context.Context) error {
		var err error
		tickets, err = s.tickets.CancelStale(ctx, merchantID, s.now().Add(-age))
		return err
	})
	if err != nil {
		return 0, err
	}
	for i := range tickets {
		s.publishStatus(ctx, &tickets[i], "", domain.StatusWaiting)
	}
	return len(tickets), nil
}

func ticketEvent(t *domain.Ticket, queueName, prev string) messaging.TicketEvent {
	return messaging.TicketEvent{
		TicketID:      t.ID,
		QueueID:       t.QueueID,
		QueueName:     queueName,
		TicketNumber:  t.TicketNumber,
		Status:        t.Status,
		PreviousState: prev,
		CustomerName:  t.CustomerName,
		CustomerPhone: t.CustomerPhone,
	}
}

func (s *QueueService) publishStatus(ctx context.Context, t *domain.Ticket, queueName, prev string) {
	eventType := messaging.EventTicketStatusChanged
	if t.Status == domain.StatusCalled {
		eventType = messaging.EventTicketCalled
	}
	s.publish(ctx, eventType, t.MerchantID, ticketEvent(t, queueName, prev))
}

// publish emits an event after commit; delivery failures are logged, not returned
func (s *QueueService) publish(ctx context.Context, eventType, merchantID string, data interface{}) {
	if err := s.publisher.Publish(ctx, eventType, merchantID, data); err != nil {
		s.logger.Warn().Err(err).Str("event", eventType).Str("merchant_id", merchantID).Msg("failed to publish event")
	}
}
