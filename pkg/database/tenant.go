package database

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

type txKey struct{}

// Transactor runs a function inside a transaction carried by the context.
// Services depend on this instead of *DB so they can be tested without a database.
type Transactor interface {
	WithTx(ctx context.Context, fn func(context.Context) error) error
	WithMerchantRLS(ctx context.Context, merchantID string, fn func(context.Context) error) error
}

// WithTx runs fn in a transaction stored in the context.
// If ctx already carries a transaction, fn joins it.
func (db *DB) WithTx(ctx context.Context, fn func(context.Context) error) error {
	if TxFromContext(ctx) != nil {
		return fn(ctx)
	}

	return db.Transaction(ctx, func(tx *sqlx.Tx) error {
		return fn(context.WithValue(ctx, txKey{}, tx))
	})
}

// WithMerchantRLS executes a function with RLS-based merchant isolation.
//
// Usage in services:
//
//	err := s.tx.WithMerchantRLS(ctx, merchantID, func(ctx context.Context) error {
//	    return s.repo.Create(ctx, queue)
//	})
//
// How it works:
//  1. Starts a transaction (or joins the one already in ctx)
//  2. Runs set_config('app.current_merchant', <uuid>, true), which is scoped to the transaction
//  3. RLS policies compare merchant_id against current_setting('app.current_merchant')
//  4. Repositories pick the transaction up through Conn(ctx)
func (db *DB) WithMerchantRLS(ctx context.Context, merchantID string, fn func(context.Context) error) error {
	return db.WithTx(ctx, func(ctx context.Context) error {
		tx := TxFromContext(ctx)
		if _, err := tx.ExecContext(ctx, "SELECT set_config('app.current_merchant', $1, true)", merchantID); err != nil {
			return fmt.Errorf("failed to set app.current_merchant to %s: %w", merchantID, err)
		}
		return fn(ctx)
	})
}

// Conn returns the transaction carried by ctx, or the pool when there is none
func (db *DB) Conn(ctx context.Context) sqlx.ExtContext {
	if tx := TxFromContext(ctx); tx != nil {
		return tx
	}
	return db.DB
}

// TxFromContext extracts the transaction from context if present
func TxFromContext(ctx context.Context) *sqlx.Tx {
	if tx, ok := ctx.Value(txKey{}).(*sqlx.Tx); ok {
		return tx
	}
	return nil
}
