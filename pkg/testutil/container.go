// Package testutil provides testing utilities for the Qerbie backend.
// It includes testcontainers for PostgreSQL, merchant context helpers,
// mock factories, and common test fixtures.
package testutil

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// AppRole is the unprivileged login the services use. Superusers bypass row level
// security, so tests that check merchant isolation must connect as this role.
const (
	AppRole     = "qerbie_app"
	appPassword = "qerbie_app"
)

// PostgresContainer wraps a testcontainers PostgreSQL instance
type PostgresContainer struct {
	*postgres.PostgresContainer
	// DSN connects as the container superuser; use it for migrations and fixtures
	DSN string
	// AppDSN connects as AppRole, subject to row level security
	AppDSN string
}

// PostgresContainerConfig configures the test PostgreSQL container
type PostgresContainerConfig struct {
	Database string
	Username string
	Password string
	Image    string
}

// DefaultPostgresConfig returns the defaults used by the integration suite
func DefaultPostgresConfig() PostgresContainerConfig {
	return PostgresContainerConfig{
		Database: "qerbie_test",
		Username: "test",
		Password: "test",
		Image:    "postgres:16-alpine",
	}
}

// NewPostgresContainer starts PostgreSQL and provisions AppRole with default
// privileges on everything the superuser creates later, so migrations applied
// afterwards are readable and writable by the app connection.
func NewPostgresContainer(ctx context.Context, cfg PostgresContainerConfig) (*PostgresContainer, error) {
	def := DefaultPostgresConfig()
	if cfg.Image == "" {
		cfg.Image = def.Image
	}
	if cfg.Database == "" {
		cfg.Database = def.Database
	}
	if cfg.Username == "" {
		cfg.Username = def.Username
	}
	if cfg.Password == "" {
		cfg.Password = def.Password
	}

	container, err := postgres.RunContainer(ctx,
		testcontainers.WithImage(cfg.Image),
		postgres.WithDatabase(cfg.Database),
		postgres.WithUsername(cfg.Username),
		postgres.WithPassword(cfg.Password),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to start postgres container: %w", err)
	}

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		_ = container.Terminate(ctx)
		return nil, fmt.Errorf("failed to get connection string: %w", err)
	}

	if err := provisionAppRole(ctx, dsn, cfg.Database); err != nil {
		_ = container.Terminate(ctx)
		return nil, err
	}

	appURL, err := url.Parse(dsn)
	if err != nil {
		_ = container.Terminate(ctx)
		return nil, fmt.Errorf("failed to parse connection string: %w", err)
	}
	appURL.User = url.UserPassword(AppRole, appPassword)

	return &PostgresContainer{
		PostgresContainer: container,
		DSN:               dsn,
		AppDSN:            appURL.String(),
	}, nil
}

func provisionAppRole(ctx context.Context, dsn, database string) error {
	db, err := sqlx.ConnectContext(ctx, "postgres", dsn)
	if err != nil {
		return fmt.Errorf("failed to connect as superuser: %w", err)
	}
	defer db.Close()

	stmts := []string{
		fmt.Sprintf(`CREATE ROLE %s LOGIN NOSUPERUSER NOBYPASSRLS PASSWORD '%s'`, AppRole, appPassword),
		fmt.Sprintf(`GRANT CONNECT ON DATABASE %q TO %s`, database, AppRole),
		fmt.Sprintf(`GRANT USAGE ON SCHEMA public TO %s`, AppRole),
		fmt.Sprintf(`ALTER DEFAULT PRIVILEGES IN SCHEMA public GRANT SELECT, INSERT, UPDATE, DELETE ON TABLES TO %s`, AppRole),
		fmt.Sprintf(`ALTER DEFAULT PRIVILEGES IN SCHEMA public GRANT USAGE, SELECT ON SEQUENCES TO %s`, AppRole),
	}
	for _, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to provision %s: %w", AppRole, err)
		}
	}
	return nil
}

// Connect opens a superuser connection
func (c *PostgresContainer) Connect(ctx context.Context) (*sqlx.DB, error) {
	return connect(ctx, c.DSN)
}

// ConnectApp opens a connection as AppRole
func (c *PostgresContainer) ConnectApp(ctx context.Context) (*sqlx.DB, error) {
	return connect(ctx, c.AppDSN)
}

func connect(ctx context.Context, dsn string) (*sqlx.DB, error) {
	db, err := sqlx.ConnectContext(ctx, "postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to test database: %w", err)
	}
	return db, nil
}

// Terminate stops and removes the container
func (c *PostgresContainer) Terminate(ctx context.Context) error {
	return c.PostgresContainer.Terminate(ctx)
}
