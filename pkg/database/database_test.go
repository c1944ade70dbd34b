package database

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	apperrors "github.com/qerbie/qerbie-backend/pkg/errors"
	"github.com/qerbie/qerbie-backend/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockDB(t *testing.T) (*DB, sqlmock.Sqlmock) {
	t.Helper()
	raw, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { raw.Close() })
	return Wrap(sqlx.NewDb(raw, "postgres"), logger.Nop()), mock
}

func TestWithMerchantRLS_SetsConfigInsideTransaction(t *testing.T) {
	db, mock := newMockDB(t)
	merchantID := "5d1c4a52-3f0e-4c1e-9b7e-1f1f9a0c0a11"

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("SELECT set_config('app.current_merchant', $1, true)")).
		WithArgs(merchantID).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE products SET is_available = false")).
		WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectCommit()

	err := db.WithMerchantRLS(context.Background(), merchantID, func(ctx context.Context) error {
		require.NotNil(t, TxFromContext(ctx))
		_, err := db.Conn(ctx).ExecContext(ctx, "UPDATE products SET is_available = false")
		return err
	})

	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWithMerchantRLS_RollsBackOnError(t *testing.T) {
	db, mock := newMockDB(t)
	boom := errors.New("boom")

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("SELECT set_config")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := db.WithMerchantRLS(context.Background(), "m-1", func(ctx context.Context) error {
		return boom
	})

	assert.ErrorIs(t, err, boom)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWithTx_JoinsExistingTransaction(t *testing.T) {
	db, mock := newMockDB(t)

	mock.ExpectBegin()
	mock.ExpectCommit()

	err := db.WithTx(context.Background(), func(outer context.Context) error {
		return db.WithTx(outer, func(inner context.Context) error {
			assert.Same(t, TxFromContext(outer), TxFromContext(inner))
			return nil
		})
	})

	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestConn_UsesPoolWithoutTransaction(t *testing.T) {
	db, _ := newMockDB(t)
	assert.Same(t, db.DB, db.Conn(context.Background()))
}

func TestMigrate_SkipsAppliedVersions(t *testing.T) {
	db, mock := newMockDB(t)
	migrations, err := Migrations()
	require.NoError(t, err)
	require.NotEmpty(t, migrations)

	mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE IF NOT EXISTS schema_migrations")).
		WillReturnResult(sqlmock.NewResult(0, 0))

	for i, m := range migrations {
		mock.ExpectBegin()
		mock.ExpectExec(regexp.QuoteMeta("SELECT pg_advisory_xact_lock($1)")).
			WithArgs(migrationLockKey).
			WillReturnResult(sqlmock.NewResult(0, 0))
		applied := i == 0
		mock.ExpectQuery(regexp.QuoteMeta("SELECT EXISTS (SELECT 1 FROM schema_migrations WHERE version = $1)")).
			WithArgs(m.Version).
			WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(applied))
		if !applied {
			mock.ExpectExec(regexp.QuoteMeta(m.SQL)).WillReturnResult(sqlmock.NewResult(0, 0))
			mock.ExpectExec(regexp.QuoteMeta("INSERT INTO schema_migrations (version) VALUES ($1)")).
				WithArgs(m.Version).
				WillReturnResult(sqlmock.NewResult(0, 1))
		}
		mock.ExpectCommit()
	}

	versions, err := db.Migrate(context.Background())

	require.NoError(t, err)
	assert.Len(t, versions, len(migrations)-1)
	assert.NotContains(t, versions, migrations[0].Version)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMigrations_AreOrdered(t *testing.T) {
	migrations, err := Migrations()
	require.NoError(t, err)

	for i := 1; i < len(migrations); i++ {
		assert.Less(t, migrations[i-1].Version, migrations[i].Version)
	}
	assert.Equal(t, "0001_identity", migrations[0].Version)
}

func TestMapPQError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode string
		wantKey  string
	}{
		{
			name:     "unique slug",
			err:      &pq.Error{Code: "23505", Constraint: "merchants_slug_key"},
			wantCode: "CONFLICT",
		},
		{
			name:     "check on price",
			err:      &pq.Error{Code: "23514", Constraint: "products_price_nonnegative"},
			wantCode: "VALIDATION_ERROR",
			wantKey:  "price_cents",
		},
		{
			name:     "foreign key",
			err:      &pq.Error{Code: "23503"},
			wantCode: "BAD_REQUEST",
		},
		{
			name:     "not null column",
			err:      &pq.Error{Code: "23502", Column: "name"},
			wantCode: "VALIDATION_ERROR",
			wantKey:  "name",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			appErr := MapPQError(tt.err)
			require.NotNil(t, appErr)
			assert.Equal(t, tt.wantCode, appErr.Code)
			if tt.wantKey != "" {
				assert.Contains(t, appErr.Details, tt.wantKey)
			}
		})
	}
}

func TestMapError_PassesThroughOtherErrors(t *testing.T) {
	plain := errors.New("connection reset")
	assert.Same(t, plain, MapError(plain))
	assert.Nil(t, MapError(nil))

	var appErr *apperrors.AppError
	wrapped := MapError(&pq.Error{Code: "23505", Constraint: "users_email_key"})
	require.True(t, errors.As(wrapped, &appErr))
	assert.Equal(t, "an account with this email already exists", appErr.Message)
}

func TestHealth_ReportsPingFailure(t *testing.T) {
	raw, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	t.Cleanup(func() { raw.Close() })
	db := Wrap(sqlx.NewDb(raw, "postgres"), logger.Nop())

	mock.ExpectPing().WillReturnError(errors.New("connection refused"))

	status := db.Health(context.Background())

	assert.Equal(t, "down", status.Status)
	assert.Equal(t, "connection refused", status.Error)
	assert.Zero(t, status.InUse)
}

func TestHealth_Up(t *testing.T) {
	raw, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	t.Cleanup(func() { raw.Close() })
	db := Wrap(sqlx.NewDb(raw, "postgres"), logger.Nop())

	mock.ExpectPing()

	status := db.Health(context.Background())

	assert.Equal(t, "up", status.Status)
	assert.Empty(t, status.Error)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTransaction_RollsBackOnPanic(t *testing.T) {
	db, mock := newMockDB(t)

	mock.ExpectBegin()
	mock.ExpectRollback()

	assert.PanicsWithValue(t, "boom", func() {
		_ = db.Transaction(context.Background(), func(*sqlx.Tx) error {
			panic("boom")
		})
	})
	assert.NoError(t, mock.ExpectationsWereMet())
}
