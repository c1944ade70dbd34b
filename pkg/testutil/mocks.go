package testutil

import (
	"context"
	"database/sql/driver"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/qerbie/qerbie-backend/pkg/database"
	"github.com/qerbie/qerbie-backend/pkg/logger"
)

// MockDB wraps sqlmock for easier testing
type MockDB struct {
	DB      *sqlx.DB
	Wrapped *database.DB
	Mock    sqlmock.Sqlmock
}

// NewMockDB creates a new mock database for unit testing.
// Use this when you want to test repository logic without a real database.
//
// Usage:
//
//	mockDB := testutil.NewMockDB(t)
//	defer mockDB.Close()
//
//	// Set up expectations
//	mockDB.ExpectQuery("SELECT").WillReturnRows(...)
//
//	// Use mockDB.Wrapped with your repository
//	repo := repository.NewQueueRepository(mockDB.Wrapped)
func NewMockDB(t *testing.T) *MockDB {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}

	sqlxDB := sqlx.NewDb(db, "postgres")

	return &MockDB{
		DB:      sqlxDB,
		Wrapped: database.Wrap(sqlxDB, logger.Nop()),
		Mock:    mock,
	}
}

// Close closes the mock database connection
func (m *MockDB) Close() error {
	return m.DB.Close()
}

// ExpectQuery sets up an expected query
func (m *MockDB) ExpectQuery(query string) *sqlmock.ExpectedQuery {
	return m.Mock.ExpectQuery(regexp.QuoteMeta(query))
}

// ExpectExec sets up an expected exec
func (m *MockDB) ExpectExec(query string) *sqlmock.ExpectedExec {
	return m.Mock.ExpectExec(regexp.QuoteMeta(query))
}

// ExpectBegin sets up an expected transaction begin
func (m *MockDB) ExpectBegin() *sqlmock.ExpectedBegin {
	return m.Mock.ExpectBegin()
}

// ExpectCommit sets up an expected commit
func (m *MockDB) ExpectCommit() *sqlmock.ExpectedCommit {
	return m.Mock.ExpectCommit()
}

// ExpectRollback sets up an expected rollback
func (m *MockDB) ExpectRollback() *sqlmock.ExpectedRollback {
	return m.Mock.ExpectRollback()
}

// ExpectationsWereMet verifies all expectations were met
func (m *MockDB) ExpectationsWereMet(t *testing.T) {
	if err := m.Mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled mock expectations: %v", err)
	}
}

// MockRows creates a new mock rows object
func MockRows(columns ...string) *sqlmock.Rows {
	return sqlmock.NewRows(columns)
}

// ExpectMerchantContext expects the prelude of WithMerchantRLS: BEGIN + set_config.
// Follow it with the statements of the callback and ExpectCommit/ExpectRollback.
func (m *MockDB) ExpectMerchantContext(merchantID string) {
	m.Mock.ExpectBegin()
	m.Mock.ExpectExec(regexp.QuoteMeta("SELECT set_config('app.current_merchant', $1, true)")).
		WithArgs(merchantID).
		WillReturnResult(sqlmock.NewResult(0, 0))
}

// ExpectMerchantQuery sets up expectations for a merchant-scoped query using RLS.
//
// Usage:
//
//	mockDB.ExpectMerchantQuery(merchantID,
//	    "SELECT * FROM products WHERE id = $1",
//	    testutil.MockRows("id", "name").AddRow(productID, "Espresso"),
//	)
func (m *MockDB) ExpectMerchantQuery(merchantID, query string, rows *sqlmock.Rows) {
	m.ExpectMerchantContext(merchantID)
	m.Mock.ExpectQuery(regexp.QuoteMeta(query)).WillReturnRows(rows)
	m.Mock.ExpectCommit()
}

// ExpectMerchantExec sets up expectations for a merchant-scoped exec using RLS.
func (m *MockDB) ExpectMerchantExec(merchantID, query string, result driver.Result) {
	m.ExpectMerchantContext(merchantID)
	m.Mock.ExpectExec(regexp.QuoteMeta(query)).WillReturnResult(result)
	m.Mock.ExpectCommit()
}

// AnyTime is a matcher for any time.Time value
type AnyTime struct{}

// Match satisfies the sqlmock.Argument interface
func (a AnyTime) Match(v driver.Value) bool {
	_, ok := v.(time.Time)
	return ok
}

// AnyUUID is a matcher for any UUID string
type AnyUUID struct{}

// Match satisfies the sqlmock.Argument interface
func (a AnyUUID) Match(v driver.Value) bool {
	s, ok := v.(string)
	if !ok {
		return false
	}
	matched, _ := regexp.MatchString(`^[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}$`, s)
	return matched
}

// AnyString matches any non-empty string, e.g. generated tokens and hashes
type AnyString struct{}

// Match satisfies the sqlmock.Argument interface
func (a AnyString) Match(v driver.Value) bool {
	s, ok := v.(string)
	return ok && s != ""
}

// FakeTransactor runs callbacks directly, recording the merchant each one was scoped to
type FakeTransactor struct {
	mu        sync.Mutex
	Merchants []string
	Err       error
}

// WithTx satisfies database.Transactor
func (f *FakeTransactor) WithTx(ctx context.Context, fn func(context.Context) error) error {
	if f.Err != nil {
		return f.Err
	}
	return fn(ctx)
}

// WithMerchantRLS satisfies database.Transactor
func (f *FakeTransactor) WithMerchantRLS(ctx context.Context, merchantID string, fn func(context.Context) error) error {
	f.mu.Lock()
	f.Merchants = append(f.Merchants, merchantID)
	f.mu.Unlock()
	if f.Err != nil {
		return f.Err
	}
	return fn(ctx)
}

// MockPublisher is a mock event publisher for testing
type MockPublisher struct {
	mu              sync.Mutex
	PublishedEvents []PublishedEvent
	Err             error
}

// PublishedEvent represents an event that was published
type PublishedEvent struct {
	Type       string
	MerchantID string
	Payload    interface{}
}

// NewMockPublisher creates a new mock publisher
func NewMockPublisher() *MockPublisher {
	return &MockPublisher{
		PublishedEvents: make([]PublishedEvent, 0),
	}
}

// Publish records an event for later verification
func (m *MockPublisher) Publish(ctx context.Context, eventType, merchantID string, payload interface{}) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.PublishedEvents = append(m.PublishedEvents, PublishedEvent{
		Type:       eventType,
		MerchantID: merchantID,
		Payload:    payload,
	})
	return nil
}

// Events returns the events of the given type
func (m *MockPublisher) Events(eventType string) []PublishedEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []PublishedEvent
	for _, e := range m.PublishedEvents {
		if e.Type == eventType {
			out = append(out, e)
		}
	}
	return out
}

// AssertEventPublished checks if an event of the given type was published
func (m *MockPublisher) AssertEventPublished(t *testing.T, eventType string) {
	t.Helper()
	if len(m.Events(eventType)) == 0 {
		t.Errorf("expected event %q to be published, but it wasn't", eventType)
	}
}

// AssertNoEventsPublished checks that no events were published
func (m *MockPublisher) AssertNoEventsPublished(t *testing.T) {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.PublishedEvents) > 0 {
		t.Errorf("expected no events, but got %d: %+v", len(m.PublishedEvents), m.PublishedEvents)
	}
}

// Reset clears all published events
func (m *MockPublisher) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.PublishedEvents = make([]PublishedEvent, 0)
}
