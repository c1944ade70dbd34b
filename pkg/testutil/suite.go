package testutil

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/qerbie/qerbie-backend/pkg/database"
	"github.com/qerbie/qerbie-backend/pkg/logger"
	"github.com/qerbie/qerbie-backend/pkg/tenant"
)

var (
	// Global test container (shared across all integration tests)
	globalContainer *PostgresContainer
	globalDB        *sqlx.DB
	globalAppDB     *sqlx.DB
	containerOnce   sync.Once
	containerErr    error
)

// IntegrationSuite provides a base for integration tests with real PostgreSQL.
// RawDB is the superuser connection used for fixtures; DB connects as AppRole,
// so repositories and services under test are subject to row level security.
type IntegrationSuite struct {
	Container *PostgresContainer
	RawDB     *sqlx.DB
	DB        *database.DB
	Fixtures  *FixtureFactory
	Logger    *logger.Logger
}

// NewIntegrationSuite creates a new integration test suite with all migrations applied.
// Call this in TestMain to set up shared test infrastructure.
//
// Usage:
//
//	var suite *testutil.IntegrationSuite
//
//	func TestMain(m *testing.M) {
//	    ctx := context.Background()
//	    var err error
//	    suite, err = testutil.NewIntegrationSuite(ctx)
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//	    code := m.Run()
//	    testutil.TerminateContainer(ctx)
//	    os.Exit(code)
//	}
//
//	func TestSomething(t *testing.T) {
//	    ctx := context.Background()
//	    m := suite.SetupMerchant(t, ctx, "restaurant")
//	    // ... run tests scoped to m.ID
//	}
func NewIntegrationSuite(ctx context.Context) (*IntegrationSuite, error) {
	container, err := getOrCreateContainer(ctx)
	if err != nil {
		return nil, err
	}

	log := logger.Nop()
	if _, err := database.Wrap(globalDB, log).Migrate(ctx); err != nil {
		return nil, fmt.Errorf("failed to migrate test database: %w", err)
	}

	return &IntegrationSuite{
		Container: container,
		RawDB:     globalDB,
		DB:        database.Wrap(globalAppDB, log),
		Fixtures:  NewFixtureFactory(),
		Logger:    log,
	}, nil
}

// getOrCreateContainer starts the shared test container and opens both connections
func getOrCreateContainer(ctx context.Context) (*PostgresContainer, error) {
	containerOnce.Do(func() {
		globalContainer, containerErr = NewPostgresContainer(ctx, DefaultPostgresConfig())
		if containerErr != nil {
			return
		}
		if globalDB, containerErr = globalContainer.Connect(ctx); containerErr != nil {
			return
		}
		globalAppDB, containerErr = globalContainer.ConnectApp(ctx)
	})

	return globalContainer, containerErr
}

// SetupMerchant inserts an owner and a merchant of the given business type.
// The merchant and everything that references it is removed when the test ends.
func (s *IntegrationSuite) SetupMerchant(t *testing.T, ctx context.Context, businessType string) *MerchantFixture {
	t.Helper()

	owner := s.Fixtures.User()
	if err := owner.Insert(ctx, s.RawDB); err != nil {
		t.Fatalf("failed to insert owner: %v", err)
	}

	m := s.Fixtures.Merchant(WithBusinessType(businessType))
	m.OwnerID = owner.ID
	if err := m.Insert(ctx, s.RawDB); err != nil {
		t.Fatalf("failed to insert merchant: %v", err)
	}

	t.Cleanup(func() {
		if _, err := s.RawDB.ExecContext(context.Background(), "DELETE FROM merchants WHERE id = $1", m.ID); err != nil {
			t.Logf("warning: failed to delete merchant %s: %v", m.ID, err)
		}
		if _, err := s.RawDB.ExecContext(context.Background(), "DELETE FROM users WHERE id = $1", owner.ID); err != nil {
			t.Logf("warning: failed to delete owner %s: %v", owner.ID, err)
		}
	})

	return m
}

// MerchantContext returns a context scoped to the merchant
func (s *IntegrationSuite) MerchantContext(m *MerchantFixture) context.Context {
	return tenant.WithMerchant(context.Background(), tenant.Merchant{
		ID:           m.ID,
		Slug:         m.Slug,
		Name:         m.Name,
		BusinessType: m.BusinessType,
	})
}

// Truncate empties the given tables
func (s *IntegrationSuite) Truncate(ctx context.Context, tables ...string) error {
	if len(tables) == 0 {
		return nil
	}
	_, err := s.RawDB.ExecContext(ctx, "TRUNCATE "+strings.Join(tables, ", ")+" CASCADE")
	return err
}

// TerminateContainer terminates the shared container.
// Only call this in TestMain after all tests have completed.
func TerminateContainer(ctx context.Context) {
	if globalContainer != nil {
		globalContainer.Terminate(ctx)
	}
}

// UnitTestSuite provides a base for unit tests with mocked dependencies
type UnitTestSuite struct {
	MockDB    *MockDB
	Publisher *MockPublisher
	Tx        *FakeTransactor
	Fixtures  *FixtureFactory
	t         *testing.T
}

// NewUnitTestSuite creates a new unit test suite
func NewUnitTestSuite(t *testing.T) *UnitTestSuite {
	return &UnitTestSuite{
		MockDB:    NewMockDB(t),
		Publisher: NewMockPublisher(),
		Tx:        &FakeTransactor{},
		Fixtures:  NewFixtureFactory(),
		t:         t,
	}
}

// Cleanup verifies expectations and cleans up
func (s *UnitTestSuite) Cleanup() {
	s.MockDB.ExpectationsWereMet(s.t)
	s.MockDB.Close()
}
