package repository_test

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/qerbie/qerbie-backend/internal/notification/domain"
	"github.com/qerbie/qerbie-backend/internal/notification/repository"
	"github.com/qerbie/qerbie-backend/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const merchantID = "6b0c1b8e-3f1f-4c58-9d4f-0a3c2f7d9e11"

func notification() *domain.Notification {
	return &domain.Notification{
		ID:         "1d2c3b4a-5f6e-4d7c-8b9a-0f1e2d3c4b5a",
		MerchantID: merchantID,
		EventID:    "7e6d5c4b-3a2f-4e1d-9c8b-7a6f5e4d3c2b",
		EventType:  "queue.ticket.called",
		Channel:    domain.ChannelSMS,
		Body:       "Barber: ticket #12 is being called.",
		Status:     domain.StatusPending,
		CreatedAt:  time.Now(),
	}
}

func TestNotificationRepository_Create(t *testing.T) {
	t.Run("first delivery", func(t *testing.T) {
		db := testutil.NewMockDB(t)
		defer db.Close()
		repo := repository.NewNotificationRepository(db.Wrapped)

		db.ExpectExec("ON CONFLICT (event_id) DO NOTHING").
			WillReturnResult(sqlmock.NewResult(0, 1))

		created, err := repo.Create(context.Background(), notification())
		require.NoError(t, err)
		assert.True(t, created)
		db.ExpectationsWereMet(t)
	})

	t.Run("redelivered event", func(t *testing.T) {
		db := testutil.NewMockDB(t)
		defer db.Close()
		repo := repository.NewNotificationRepository(db.Wrapped)

		db.ExpectExec("ON CONFLICT (event_id) DO NOTHING").
			WillReturnResult(sqlmock.NewResult(0, 0))

		created, err := repo.Create(context.Background(), notification())
		require.NoError(t, err)
		assert.False(t, created)
	})
}

func TestNotificationRepository_SaveResult(t *testing.T) {
	db := testutil.NewMockDB(t)
	defer db.Close()
	repo := repository.NewNotificationRepository(db.Wrapped)

	n := notification()
	sid := "SM1"
	sentAt := time.Now()
	n.Status, n.ProviderID, n.SentAt = domain.StatusSent, &sid, &sentAt

	db.ExpectExec("UPDATE notifications").
		WithArgs(domain.StatusSent, nil, sid, testutil.AnyTime{}, merchantID, n.ID).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.SaveResult(context.Background(), n))
	db.ExpectationsWereMet(t)
}
