package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/qerbie/qerbie-backend/internal/queue/domain"
	"github.com/qerbie/qerbie-backend/internal/queue/service"
	"github.com/qerbie/qerbie-backend/pkg/errors"
	"github.com/qerbie/qerbie-backend/pkg/logger"
	"github.com/qerbie/qerbie-backend/pkg/messaging"
	"github.com/qerbie/qerbie-backend/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const (
	merchantID = "6b0c1b8e-3f1f-4c58-9d4f-0a3c2f7d9e11"
	queueID    = "5d7f3a2e-9c1b-4e8d-a6f0-1b2c3d4e5f60"
	session    = "b94d27b9934d3e08a52e52d7da7dabfac484efe37a5380ee9088f7ace2efcde9"
	staffID    = "0f8e2d52-8a57-4b1e-a1d4-58d4c1b0e6a2"
)

type mockQueues struct {
	mock.Mock
}

func (m *mockQueues) Create(ctx context.Context, q *domain.Queue) error {
	return m.Called(ctx, q).Error(0)
}

func (m *mockQueues) GetByID(ctx context.Context, merchantID, id string) (*domain.Queue, error) {
	args := m.Called(ctx, merchantID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Queue), args.Error(1)
}

func (m *mockQueues) LockForJoin(ctx context.Context, merchantID, id string) (*domain.Queue, error) {
	args := m.Called(ctx, merchantID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Queue), args.Error(1)
}

func (m *mockQueues) List(ctx context.Context, merchantID string) ([]domain.Queue, error) {
	args := m.Called(ctx, merchantID)
	return args.Get(0).([]domain.Queue), args.Error(1)
}

func (m *mockQueues) Update(ctx context.Context, q *domain.Queue) error {
	return m.Called(ctx, q).Error(0)
}

func (m *mockQueues) Delete(ctx context.Context, merchantID, id string) (bool, error) {
	args := m.Called(ctx, merchantID, id)
	return args.Bool(0), args.Error(1)
}

func (m *mockQueues) NextTicketNumber(ctx context.Context, merchantID, id string) (int, bool, error) {
	args := m.Called(ctx, merchantID, id)
	return args.Int(0), args.Bool(1), args.Error(2)
}

func (m *mockQueues) ResetNumbering(ctx context.Context, merchantID, id string) (bool, error) {
	args := m.Called(ctx, merchantID, id)
	return args.Bool(0), args.Error(1)
}

type mockTickets struct {
	mock.Mock
}

func (m *mockTickets) Create(ctx context.Context, t *domain.Ticket) error {
	return m.Called(ctx, t).Error(0)
}

func (m *mockTickets) GetByID(ctx context.Context, merchantID, id string) (*domain.Ticket, error) {
	args := m.Called(ctx, merchantID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Ticket), args.Error(1)
}

func (m *mockTickets) GetForSession(ctx context.Context, merchantID, id, session string) (*domain.Ticket, error) {
	args := m.Called(ctx, merchantID, id, session)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Ticket), args.Error(1)
}

func (m *mockTickets) FindOpenForSession(ctx context.Context, queueID, session string) (*domain.Ticket, error) {
	args := m.Called(ctx, queueID, session)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Ticket), args.Error(1)
}

func (m *mockTickets) CountWaitingAhead(ctx context.Context, queueID string, ticketNumber int) (int, error) {
	args := m.Called(ctx, queueID, ticketNumber)
	return args.Int(0), args.Error(1)
}

func (m *mockTickets) List(ctx context.Context, merchantID, queueID string, statuses []string) ([]domain.Ticket, error) {
	args := m.Called(ctx, merchantID, queueID, statuses)
	return args.Get(0).([]domain.Ticket), args.Error(1)
}

func (m *mockTickets) LockNextWaiting(ctx context.Context, merchantID, queueID string) (*domain.Ticket, error) {
	args := m.Called(ctx, merchantID, queueID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Ticket), args.Error(1)
}

func (m *mockTickets) UpdateStatus(ctx context.Context, t *domain.Ticket, from string) (bool, error) {
	args := m.Called(ctx, t, from)
	return args.Bool(0), args.Error(1)
}

func (m *mockTickets) MarkNoShows(ctx context.Context, merchantID string, before time.Time) ([]domain.Ticket, error) {
	args := m.Called(ctx, merchantID, before)
	return args.Get(0).([]domain.Ticket), args.Error(1)
}

func (m *mockTickets) CancelStale(ctx context.Context, merchantID string, before time.Time) ([]domain.Ticket, error) {
	args := m.Called(ctx, merchantID, before)
	return args.Get(0).([]domain.Ticket), args.Error(1)
}

type fixture struct {
	queues  *mockQueues
	tickets *mockTickets
	pub     *testutil.MockPublisher
	tx      *testutil.FakeTransactor
	svc     *service.QueueService
}

func newFixture() *fixture {
	f := &fixture{
		queues:  new(mockQueues),
		tickets: new(mockTickets),
		pub:     testutil.NewMockPublisher(),
		tx:      &testutil.FakeTransactor{},
	}
	f.svc = service.NewQueueService(f.tx, f.queues, f.tickets, f.pub, logger.Nop())
	return f
}

func openQueue() *domain.Queue {
	return &domain.Queue{ID: queueID, MerchantID: merchantID, Name: "Walk-ins", AvgServiceMinutes: 15, IsOpen: true}
}

func ticket(number int, status string) *domain.Ticket {
	return &domain.Ticket{
		ID:              "t-" + status,
		MerchantID:      merchantID,
		QueueID:         queueID,
		TicketNumber:    number,
		CustomerName:    "Ana",
		CustomerSession: session,
		Status:          status,
	}
}

func TestJoin_IssuesNextNumber(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	f.queues.On("LockForJoin", mock.Anything, merchantID, queueID).Return(openQueue(), nil)
	f.tickets.On("FindOpenForSession", mock.Anything, queueID, session).Return(nil, nil)
	f.queues.On("NextTicketNumber", mock.Anything, merchantID, queueID).Return(7, true, nil)
	f.tickets.On("Create", mock.Anything, mock.MatchedBy(func(tk *domain.Ticket) bool {
		return tk.TicketNumber == 7 && tk.Status == domain.StatusWaiting && tk.CustomerSession == session && tk.CustomerName == "Ana"
	})).Return(nil)
	f.tickets.On("CountWaitingAhead", mock.Anything, queueID, 7).Return(3, nil)

	status, created, err := f.svc.Join(ctx, merchantID, queueID, session, &service.JoinRequest{CustomerName: " Ana "})
	require.NoError(t, err)

	assert.True(t, created)
	assert.Equal(t, 7, status.Ticket.TicketNumber)
	require.NotNil(t, status.Position)
	assert.Equal(t, 4, *status.Position)
	require.NotNil(t, status.EstimatedWaitMinutes)
	assert.Equal(t, 45, *status.EstimatedWaitMinutes)

	f.pub.AssertEventPublished(t, messaging.EventTicketCreated)
	assert.Equal(t, []string{merchantID}, f.tx.Merchants)
}

func TestJoin_ReturnsExistingTicket(t *testing.T) {
	f := newFixture()

	existing := ticket(3, domain.StatusCalled)
	f.queues.On("LockForJoin", mock.Anything, merchantID, queueID).Return(openQueue(), nil)
	f.tickets.On("FindOpenForSession", mock.Anything, queueID, session).Return(existing, nil)

	status, created, err := f.svc.Join(context.Background(), merchantID, queueID, session, &service.JoinRequest{CustomerName: "Ana"})
	require.NoError(t, err)

	assert.False(t, created)
	assert.Same(t, existing, status.Ticket)
	assert.Nil(t, status.Position)
	f.queues.AssertNotCalled(t, "NextTicketNumber", mock.Anything, mock.Anything, mock.Anything)
	f.pub.AssertNoEventsPublished(t)
}

func TestJoin_ClosedQueue(t *testing.T) {
	f := newFixture()

	closed := openQueue()
	closed.IsOpen = false
	f.queues.On("LockForJoin", mock.Anything, merchantID, queueID).Return(closed, nil)

	_, _, err := f.svc.Join(context.Background(), merchantID, queueID, session, &service.JoinRequest{CustomerName: "Ana"})
	assert.Equal(t, "QUEUE_CLOSED", errors.CodeOf(err))
	f.pub.AssertNoEventsPublished(t)
}

func TestJoin_ClosedWhileJoining(t *testing.T) {
	f := newFixture()

	f.queues.On("LockForJoin", mock.Anything, merchantID, queueID).Return(openQueue(), nil)
	f.tickets.On("FindOpenForSession", mock.Anything, queueID, session).Return(nil, nil)
	f.queues.On("NextTicketNumber", mock.Anything, merchantID, queueID).Return(0, false, nil)

	_, _, err := f.svc.Join(context.Background(), merchantID, queueID, session, &service.JoinRequest{CustomerName: "Ana"})
	assert.True(t, errors.Is(err, errors.ErrQueueClosed))
	f.tickets.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestJoin_ReturnsExistingTicketWithoutBurningANumber(t *testing.T) {
	f := newFixture()

	existing := ticket(4, domain.StatusWaiting)
	f.queues.On("LockForJoin", mock.Anything, merchantID, queueID).Return(openQueue(), nil)
	f.tickets.On("FindOpenForSession", mock.Anything, queueID, session).Return(existing, nil)
	f.tickets.On("CountWaitingAhead", mock.Anything, queueID, 4).Return(1, nil)

	status, created, err := f.svc.Join(context.Background(), merchantID, queueID, session, &service.JoinRequest{CustomerName: "Ana"})
	require.NoError(t, err)

	assert.False(t, created)
	assert.Equal(t, 4, status.Ticket.TicketNumber)
	assert.Equal(t, 2, *status.Position)
	f.queues.AssertNotCalled(t, "GetByID", mock.Anything, mock.Anything, mock.Anything)
	f.queues.AssertNotCalled(t, "NextTicketNumber", mock.Anything, mock.Anything, mock.Anything)
	f.tickets.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestStatus_InvalidServiceTimeIsAnError(t *testing.T) {
	f := newFixture()

	broken := openQueue()
	broken.AvgServiceMinutes = 0
	f.tickets.On("GetForSession", mock.Anything, merchantID, "t-waiting", session).Return(ticket(2, domain.StatusWaiting), nil)
	f.queues.On("GetByID", mock.Anything, merchantID, queueID).Return(broken, nil)
	f.tickets.On("CountWaitingAhead", mock.Anything, queueID, 2).Return(0, nil)

	status, err := f.svc.Status(context.Background(), merchantID, "t-waiting", session)
	assert.Error(t, err)
	assert.Nil(t, status)
}

func TestStatus_FirstInLineHasNoWait(t *testing.T) {
	f := newFixture()

	f.tickets.On("GetForSession", mock.Anything, merchantID, "t-waiting", session).Return(ticket(2, domain.StatusWaiting), nil)
	f.queues.On("GetByID", mock.Anything, merchantID, queueID).Return(openQueue(), nil)
	f.tickets.On("CountWaitingAhead", mock.Anything, queueID, 2).Return(0, nil)

	status, err := f.svc.Status(context.Background(), merchantID, "t-waiting", session)
	require.NoError(t, err)

	assert.Equal(t, 1, *status.Position)
	assert.Equal(t, 0, *status.EstimatedWaitMinutes)
	assert.Equal(t, "Walk-ins", status.QueueName)
}

func TestStatus_OtherSessionCannotSeeTicket(t *testing.T) {
	f := newFixture()

	f.tickets.On("GetForSession", mock.Anything, merchantID, "t-waiting", "someone-else").Return(nil, errors.NotFoundWithKey("ticket"))

	_, err := f.svc.Status(context.Background(), merchantID, "t-waiting", "someone-else")
	assert.True(t, errors.Is(err, errors.ErrNotFound))
}

func TestCancelOwn(t *testing.T) {
	t.Run("waiting ticket", func(t *testing.T) {
		f := newFixture()
		f.tickets.On("GetForSession", mock.Anything, merchantID, "t-waiting", session).Return(ticket(2, domain.StatusWaiting), nil)
		f.tickets.On("UpdateStatus", mock.Anything, mock.MatchedBy(func(tk *domain.Ticket) bool {
			return tk.Status == domain.StatusCancelled && tk.FinishedAt != nil
		}), domain.StatusWaiting).Return(true, nil)

		tk, err := f.svc.CancelOwn(context.Background(), merchantID, "t-waiting", session)
		require.NoError(t, err)

		assert.Equal(t, domain.StatusCancelled, tk.Status)
		events := f.pub.Events(messaging.EventTicketStatusChanged)
		require.Len(t, events, 1)
		assert.Equal(t, domain.StatusWaiting, events[0].Payload.(messaging.TicketEvent).PreviousState)
	})

	t.Run("serving ticket", func(t *testing.T) {
		f := newFixture()
		f.tickets.On("GetForSession", mock.Anything, merchantID, "t-serving", session).Return(ticket(2, domain.StatusServing), nil)

		_, err := f.svc.CancelOwn(context.Background(), merchantID, "t-serving", session)
		assert.Equal(t, "INVALID_TRANSITION", errors.CodeOf(err))
		f.pub.AssertNoEventsPublished(t)
	})
}

func TestCallNext(t *testing.T) {
	t.Run("calls lowest waiting", func(t *testing.T) {
		f := newFixture()
		f.queues.On("GetByID", mock.Anything, merchantID, queueID).Return(openQueue(), nil)
		f.tickets.On("LockNextWaiting", mock.Anything, merchantID, queueID).Return(ticket(4, domain.StatusWaiting), nil)
		f.tickets.On("UpdateStatus", mock.Anything, mock.Anything, domain.StatusWaiting).Return(true, nil)

		tk, err := f.svc.CallNext(context.Background(), merchantID, queueID, staffID)
		require.NoError(t, err)

		assert.Equal(t, domain.StatusCalled, tk.Status)
		assert.NotNil(t, tk.CalledAt)
		f.pub.AssertEventPublished(t, messaging.EventTicketCalled)
		assert.Empty(t, f.pub.Events(messaging.EventTicketStatusChanged))
	})

	t.Run("nobody waiting", func(t *testing.T) {
		f := newFixture()
		f.queues.On("GetByID", mock.Anything, merchantID, queueID).Return(openQueue(), nil)
		f.tickets.On("LockNextWaiting", mock.Anything, merchantID, queueID).Return(nil, nil)

		_, err := f.svc.CallNext(context.Background(), merchantID, queueID, staffID)
		assert.True(t, errors.Is(err, errors.ErrNotFound))
	})
}

func TestTransition(t *testing.T) {
	t.Run("invalid", func(t *testing.T) {
		f := newFixture()
		f.tickets.On("GetByID", mock.Anything, merchantID, "t-waiting").Return(ticket(1, domain.StatusWaiting), nil)

		_, err := f.svc.Transition(context.Background(), merchantID, "t-waiting", staffID, &service.TransitionRequest{Status: domain.StatusDone})
		assert.Equal(t, "INVALID_TRANSITION", errors.CodeOf(err))
	})

	t.Run("lost race", func(t *testing.T) {
		f := newFixture()
		f.tickets.On("GetByID", mock.Anything, merchantID, "t-called").Return(ticket(1, domain.StatusCalled), nil)
		f.queues.On("GetByID", mock.Anything, merchantID, queueID).Return(openQueue(), nil)
		f.tickets.On("UpdateStatus", mock.Anything, mock.Anything, domain.StatusCalled).Return(false, nil)

		_, err := f.svc.Transition(context.Background(), merchantID, "t-called", staffID, &service.TransitionRequest{Status: domain.StatusServing})
		assert.True(t, errors.Is(err, errors.ErrConflict))
		f.pub.AssertNoEventsPublished(t)
	})

	t.Run("serving", func(t *testing.T) {
		f := newFixture()
		f.tickets.On("GetByID", mock.Anything, merchantID, "t-called").Return(ticket(1, domain.StatusCalled), nil)
		f.queues.On("GetByID", mock.Anything, merchantID, queueID).Return(openQueue(), nil)
		f.tickets.On("UpdateStatus", mock.Anything, mock.Anything, domain.StatusCalled).Return(true, nil)

		tk, err := f.svc.Transition(context.Background(), merchantID, "t-called", staffID, &service.TransitionRequest{Status: domain.StatusServing})
		require.NoError(t, err)

		assert.Equal(t, domain.StatusServing, tk.Status)
		ev := f.pub.Events(messaging.EventTicketStatusChanged)
		require.Len(t, ev, 1)
		assert.Equal(t, "Walk-ins", ev[0].Payload.(messaging.TicketEvent).QueueName)
	})
}

func TestResetNumbering_ActiveTickets(t *testing.T) {
	f := newFixture()
	f.queues.On("GetByID", mock.Anything, merchantID, queueID).Return(openQueue(), nil)
	f.queues.On("ResetNumbering", mock.Anything, merchantID, queueID).Return(false, nil)

	err := f.svc.ResetNumbering(context.Background(), merchantID, queueID)
	assert.True(t, errors.Is(err, errors.ErrConflict))
}

func TestListTickets_UnknownStatus(t *testing.T) {
	f := newFixture()

	_, err := f.svc.ListTickets(context.Background(), merchantID, queueID, []string{"waiting", "lost"})
	assert.Equal(t, "VALIDATION_ERROR", errors.CodeOf(err))
}

func TestMarkNoShows(t *testing.T) {
	f := newFixture()
	before := time.Now()

	f.tickets.On("MarkNoShows", mock.Anything, merchantID, mock.MatchedBy(func(ts time.Time) bool {
		return ts.Before(before.Add(-9 * time.Minute))
	})).Return([]domain.Ticket{*ticket(1, domain.StatusNoShow), *ticket(2, domain.StatusNoShow)}, nil)

	n, err := f.svc.MarkNoShows(context.Background(), merchantID, 10*time.Minute)
	require.NoError(t, err)

	assert.Equal(t, 2, n)
	assert.Len(t, f.pub.Events(messaging.EventTicketStatusChanged), 2)
}
