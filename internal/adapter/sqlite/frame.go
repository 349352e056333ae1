package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

type frameKey struct{}

// frame is the transaction shared by one top-level call and every nested
// call made with its context.
type frame struct {
	tx    *sql.Tx
	depth int
}

// querier is the subset of *sql.DB and *sql.Tx used by the adapters.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// TxFromContext returns the transaction of the frame open on ctx, if any.
// Other adapters (River) use it to write inside the caller's frame.
func TxFromContext(ctx context.Context) (*sql.Tx, bool) {
	f, ok := ctx.Value(frameKey{}).(*frame)
	if !ok {
		return nil, false
	}
	return f.tx, true
}

// conn returns the open frame's transaction, or db outside of a frame.
func conn(ctx context.Context, db *sql.DB) querier {
	if tx, ok := TxFromContext(ctx); ok {
		return tx
	}
	return db
}

// withinFrame runs fn in a transaction. When ctx already carries a frame, fn
// runs under a savepoint of that transaction instead, so a failing nested
// call discards only its own writes.
func withinFrame(ctx context.Context, db *sql.DB, fn func(ctx context.Context) error) error {
	if f, ok := ctx.Value(frameKey{}).(*frame); ok {
		return f.nested(ctx, fn)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}

	if err := fn(context.WithValue(ctx, frameKey{}, &frame{tx: tx})); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			return errors.Join(err, fmt.Errorf("rolling back: %w", rbErr))
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

func (f *frame) nested(ctx context.Context, fn func(ctx context.Context) error) error {
	f.depth++
	defer func() { f.depth-- }()

	name := fmt.Sprintf("frame_%d", f.depth)
	if _, err := f.tx.ExecContext(ctx, "SAVEPOINT "+name); err != nil {
		return fmt.Errorf("opening savepoint: %w", err)
	}

	if err := fn(ctx); err != nil {
		// ROLLBACK TO keeps the savepoint on the stack; RELEASE pops it.
		if _, rbErr := f.tx.ExecContext(ctx, "ROLLBACK TO SAVEPOINT "+name); rbErr != nil {
			return errors.Join(err, fmt.Errorf("rolling back savepoint: %w", rbErr))
		}
		if _, relErr := f.tx.ExecContext(ctx, "RELEASE SAVEPOINT "+name); relErr != nil {
			return errors.Join(err, fmt.Errorf("releasing savepoint: %w", relErr))
		}
		return err
	}

	if _, err := f.tx.ExecContext(ctx, "RELEASE SAVEPOINT "+name); err != nil {
		return fmt.Errorf("releasing savepoint: %w", err)
	}
	return nil
}
