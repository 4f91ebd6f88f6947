package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// TxOption adjusts the options a transaction is started with.
type TxOption func(*pgx.TxOptions)

// Serializable runs the transaction at the serializable isolation level.
func Serializable() TxOption {
	return func(o *pgx.TxOptions) {
		o.IsoLevel = pgx.Serializable
	}
}

// WithTransaction runs fn in a transaction. The transaction commits when fn
// returns nil and rolls back when it fails or panics.
func WithTransaction(ctx context.Context, db DB, fn func(tx pgx.Tx) error, opts ...TxOption) error {
	_, err := WithTransactionResult(ctx, db, func(tx pgx.Tx) (struct{}, error) {
		return struct{}{}, fn(tx)
	}, opts...)
	return err
}

// WithTransactionResult is WithTransaction for functions returning a value.
// A failed rollback is joined to the error of fn.
func WithTransactionResult[T any](ctx context.Context, db DB, fn func(tx pgx.Tx) (T, error), opts ...TxOption) (result T, err error) {
	var txOpts pgx.TxOptions
	for _, o := range opts {
		o(&txOpts)
	}

	tx, err := db.BeginTx(ctx, txOpts)
	if err != nil {
		return result, fmt.Errorf("begin transaction: %w", err)
	}

	done := false
	defer func() {
		if done {
			return
		}
		// fn failed or is panicking
		if rbErr := tx.Rollback(ctx); rbErr != nil && err != nil {
			err = errors.Join(err, fmt.Errorf("rollback: %w", rbErr))
		}
	}()

	if result, err = fn(tx); err != nil {
		return result, err
	}

	done = true
	if err := tx.Commit(ctx); err != nil {
		return result, fmt.Errorf("commit transaction: %w", err)
	}
	return result, nil
}
