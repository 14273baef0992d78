package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"sqlcap/internal/core/apperror"
	"sqlcap/internal/core/tx"
	"sqlcap/pkg/logger"
)

var tracer = otel.Tracer("sqlcap/tx")

// Compile-time check that DB implements the query capability.
var _ tx.Manager = (*DB)(nil)

// DB is the live query capability. It borrows one connection from the
// pool per top-level call, runs the transaction body against it, and on
// a retryable failure re-runs the whole body with exponential backoff up
// to a hard limit. Configuration is immutable after New, so a single DB
// is safe for concurrent use.
type DB struct {
	pool        *Pool
	shouldRetry RetryPredicate
	retryLimit  int
	backoffBase time.Duration
	txOpts      TxOptions

	// sleep is swapped out in tests to observe backoff intervals.
	sleep func(context.Context, time.Duration) error
}

// New creates a DB over the given pool. By default no error is retried;
// pass WithRetryPredicate(Transient) or a custom classifier to opt in.
func New(pool *Pool, opts ...Option) *DB {
	db := &DB{
		pool:        pool,
		shouldRetry: func(error) bool { return false },
		retryLimit:  DefaultRetryLimit,
		backoffBase: DefaultBackoffBase,
		txOpts:      DefaultTxOptions(),
		sleep:       sleepContext,
	}
	for _, o := range opts {
		o(db)
	}
	return db
}

// txBeginner abstracts the borrowed connection for tests; *pgxpool.Conn
// satisfies it.
type txBeginner interface {
	BeginTx(ctx context.Context, opts pgx.TxOptions) (pgx.Tx, error)
}

// RunInTransaction implements tx.Manager.
//
// A call made while a transaction is already active in ctx reuses it:
// the body joins the enclosing transaction on the same connection, and
// only the outermost call begins, commits and retries.
func (db *DB) RunInTransaction(ctx context.Context, fn func(ctx context.Context, t *tx.Tx) error) error {
	if cur := tx.FromContext(ctx); cur != nil {
		return fn(ctx, cur)
	}

	ctx, span := tracer.Start(ctx, "transaction",
		trace.WithAttributes(
			attribute.String("tx.isolation", string(db.txOpts.IsolationLevel)),
		))
	defer span.End()

	conn, err := db.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	// The connection is held for the whole attempt sequence and returned
	// on every exit path.
	defer conn.Release()

	return db.runWithRetry(ctx, func(ctx context.Context) error {
		return db.runAttempt(ctx, conn, fn)
	})
}

// runWithRetry drives the attempt state machine: attempt i sleeps
// backoffBase*2^i before attempt i+1; attempt retryLimit is the last.
// Non-retryable errors surface unchanged; exhaustion surfaces as the
// dedicated retry-limit error, never the underlying cause.
func (db *DB) runWithRetry(ctx context.Context, attempt func(context.Context) error) error {
	for i := 0; ; i++ {
		err := attempt(ctx)
		if err == nil {
			return nil
		}
		if !db.shouldRetry(err) {
			return err
		}
		if i == db.retryLimit {
			return apperror.NewRetryExhausted(i + 1)
		}

		delay := db.backoffBase << i
		logger.Warn(ctx, "transaction failed, retrying",
			"attempt", i,
			"backoff", delay,
			"error", err,
		)
		if sleepErr := db.sleep(ctx, delay); sleepErr != nil {
			return sleepErr
		}
	}
}

// runAttempt runs the body once inside a fresh backend transaction on
// the borrowed connection.
func (db *DB) runAttempt(ctx context.Context, conn txBeginner, fn func(ctx context.Context, t *tx.Tx) error) error {
	pgxTx, err := conn.BeginTx(ctx, pgx.TxOptions{
		IsoLevel:   db.txOpts.IsolationLevel,
		AccessMode: db.txOpts.AccessMode,
	})
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	if db.txOpts.StatementTimeout > 0 {
		_, err = pgxTx.Exec(ctx, fmt.Sprintf("SET LOCAL statement_timeout = '%dms'", db.txOpts.StatementTimeout.Milliseconds()))
		if err != nil {
			_ = pgxTx.Rollback(ctx)
			return fmt.Errorf("set statement_timeout: %w", err)
		}
	}

	t := tx.NewTx(NewExecutor(pgxTx))
	txCtx := tx.NewContext(ctx, t)

	if err := fn(txCtx, t); err != nil {
		// Rollback on a background context so it completes even when the
		// original context was cancelled.
		if rbErr := pgxTx.Rollback(context.Background()); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
			logger.Error(ctx, "rollback failed", "error", rbErr, "original_error", err)
		}
		return err
	}

	// Serialization conflicts can surface at COMMIT; the commit error
	// goes through the same retry classification as body errors.
	if err := pgxTx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// sleepContext waits for d, suspending only the calling goroutine.
func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
