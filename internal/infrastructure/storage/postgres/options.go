package postgres

import (
	"time"

	"github.com/jackc/pgx/v5"
)

// DefaultRetryLimit bounds retries after the first attempt, so a call
// makes at most DefaultRetryLimit+1 attempts in total.
const DefaultRetryLimit = 10

// DefaultBackoffBase is the delay before the first retry; each further
// retry doubles it.
const DefaultBackoffBase = time.Millisecond

// TxOptions configures transaction behavior.
type TxOptions struct {
	// IsolationLevel: pgx.Serializable, pgx.RepeatableRead, pgx.ReadCommitted
	IsolationLevel pgx.TxIsoLevel

	// AccessMode: pgx.ReadWrite, pgx.ReadOnly
	AccessMode pgx.TxAccessMode

	// StatementTimeout protects against long-running queries
	StatementTimeout time.Duration
}

// DefaultTxOptions returns production-safe defaults.
func DefaultTxOptions() TxOptions {
	return TxOptions{
		IsolationLevel:   pgx.ReadCommitted,
		AccessMode:       pgx.ReadWrite,
		StatementTimeout: 30 * time.Second,
	}
}

// SerializableTxOptions for transactions that rely on the retry loop to
// resolve serialization conflicts.
func SerializableTxOptions() TxOptions {
	opts := DefaultTxOptions()
	opts.IsolationLevel = pgx.Serializable
	return opts
}

// RetryPredicate classifies an attempt error as retryable or terminal.
type RetryPredicate func(error) bool

// Option configures a DB.
type Option func(*DB)

// WithRetryPredicate sets the retry classifier. The default retries
// nothing; transient-failure classification is backend-specific and
// deliberately opt-in (see Transient).
func WithRetryPredicate(p RetryPredicate) Option {
	return func(db *DB) {
		if p != nil {
			db.shouldRetry = p
		}
	}
}

// WithRetryLimit sets the number of retries after the first attempt.
// Negative values are clamped to zero.
func WithRetryLimit(n int) Option {
	return func(db *DB) {
		if n < 0 {
			n = 0
		}
		db.retryLimit = n
	}
}

// WithBackoffBase sets the delay before the first retry.
func WithBackoffBase(d time.Duration) Option {
	return func(db *DB) {
		if d > 0 {
			db.backoffBase = d
		}
	}
}

// WithTxOptions sets isolation and access mode for all transactions run
// through this DB.
func WithTxOptions(opts TxOptions) Option {
	return func(db *DB) {
		db.txOpts = opts
	}
}
