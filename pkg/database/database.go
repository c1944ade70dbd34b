package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/qerbie/qerbie-backend/pkg/config"
	"github.com/qerbie/qerbie-backend/pkg/logger"
)

// DB is the Postgres pool shared by every repository
type DB struct {
	*sqlx.DB
	logger *logger.Logger
}

// HealthStatus is the database part of the /health payload
type HealthStatus struct {
	Status          string `json:"status"`
	Error           string `json:"error,omitempty"`
	OpenConnections int    `json:"open_connections"`
	InUse           int    `json:"in_use"`
	WaitCount       int64  `json:"wait_count"`
}

// New opens the pool described by cfg and verifies it with a ping
func New(cfg *config.DatabaseConfig, log *logger.Logger) (*DB, error) {
	conn, err := sqlx.Connect("postgres", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", cfg.Redacted(), err)
	}
	conn.SetMaxOpenConns(cfg.MaxOpenConns)
	conn.SetMaxIdleConns(cfg.MaxIdleConns)
	conn.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	log.Info().
		Str("database", cfg.Redacted()).
		Str("application_name", cfg.ApplicationName).
		Int("max_open_conns", cfg.MaxOpenConns).
		Dur("statement_timeout", cfg.StatementTimeout).
		Msg("connected to database")

	return Wrap(conn, log), nil
}

// Wrap adapts an existing sqlx handle, e.g. one backed by sqlmock
func Wrap(conn *sqlx.DB, log *logger.Logger) *DB {
	return &DB{DB: conn, logger: log}
}

// Close closes the pool
func (db *DB) Close() error {
	return db.DB.Close()
}

// Health pings with a one second budget and reports pool usage
func (db *DB) Health(ctx context.Context) HealthStatus {
	stats := db.Stats()
	status := HealthStatus{
		Status:          "up",
		OpenConnections: stats.OpenConnections,
		InUse:           stats.InUse,
		WaitCount:       stats.WaitCount,
	}

	ctx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		status.Status = "down"
		status.Error = err.Error()
	}
	return status
}

// Transaction runs fn in a transaction, committing when it returns nil.
// The transaction is rolled back when fn fails or panics.
func (db *DB) Transaction(ctx context.Context, fn func(*sqlx.Tx) error) error {
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			db.rollback(tx)
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		db.rollback(tx)
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (db *DB) rollback(tx *sqlx.Tx) {
	if err := tx.Rollback(); err != nil {
		db.logger.Error().Err(err).Msg("failed to rollback transaction")
	}
}
