package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sqlcap/internal/core/apperror"
	"sqlcap/internal/core/tx"
)

// newTestDB builds a DB with no pool (the retry machine itself never
// touches it) and records backoff sleeps instead of waiting.
func newTestDB(opts ...Option) (*DB, *[]time.Duration) {
	db := New(nil, opts...)
	sleeps := &[]time.Duration{}
	db.sleep = func(_ context.Context, d time.Duration) error {
		*sleeps = append(*sleeps, d)
		return nil
	}
	return db, sleeps
}

func TestRetryDefaultPredicateFailsImmediately(t *testing.T) {
	db, sleeps := newTestDB()
	boom := errors.New("unique violation")

	attempts := 0
	err := db.runWithRetry(context.Background(), func(context.Context) error {
		attempts++
		return boom
	})

	// The original error surfaces, never the exhaustion error.
	assert.ErrorIs(t, err, boom)
	assert.False(t, apperror.IsRetryExhausted(err))
	assert.Equal(t, 1, attempts)
	assert.Empty(t, *sleeps)
}

func TestRetryExhaustionAfterLimitPlusOneAttempts(t *testing.T) {
	const limit = 3
	db, sleeps := newTestDB(
		WithRetryPredicate(func(error) bool { return true }),
		WithRetryLimit(limit),
	)

	attempts := 0
	err := db.runWithRetry(context.Background(), func(context.Context) error {
		attempts++
		return errors.New("serialization failure")
	})

	require.True(t, apperror.IsRetryExhausted(err))
	assert.Equal(t, limit+1, attempts)

	// Backoff doubles per retry from the 1ms base.
	require.Len(t, *sleeps, limit)
	assert.Equal(t, []time.Duration{
		time.Millisecond,
		2 * time.Millisecond,
		4 * time.Millisecond,
	}, *sleeps)
}

func TestRetryLimitZeroMakesOneAttempt(t *testing.T) {
	db, sleeps := newTestDB(
		WithRetryPredicate(func(error) bool { return true }),
		WithRetryLimit(0),
	)

	attempts := 0
	err := db.runWithRetry(context.Background(), func(context.Context) error {
		attempts++
		return errors.New("transient")
	})

	assert.True(t, apperror.IsRetryExhausted(err))
	assert.Equal(t, 1, attempts)
	assert.Empty(t, *sleeps)
}

func TestRetrySucceedsAfterFailures(t *testing.T) {
	db, sleeps := newTestDB(
		WithRetryPredicate(func(error) bool { return true }),
		WithRetryLimit(5),
	)

	attempts := 0
	err := db.runWithRetry(context.Background(), func(context.Context) error {
		attempts++
		if attempts <= 2 {
			return errors.New("transient")
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
	assert.Len(t, *sleeps, 2)
}

var errConflict = errors.New("conflict")

func TestRetryPredicateClassSelective(t *testing.T) {
	db, _ := newTestDB(
		WithRetryPredicate(func(err error) bool { return errors.Is(err, errConflict) }),
		WithRetryLimit(3),
	)

	// The accepted class is retried to exhaustion; the raised error is
	// the dedicated one, not the cause.
	attempts := 0
	err := db.runWithRetry(context.Background(), func(context.Context) error {
		attempts++
		return errConflict
	})
	assert.True(t, apperror.IsRetryExhausted(err))
	assert.NotErrorIs(t, err, errConflict)
	assert.Equal(t, 4, attempts)

	// Any other class fails on attempt 0.
	other := errors.New("syntax error")
	attempts = 0
	err = db.runWithRetry(context.Background(), func(context.Context) error {
		attempts++
		return other
	})
	assert.ErrorIs(t, err, other)
	assert.Equal(t, 1, attempts)
}

func TestRetrySleepErrorStopsLoop(t *testing.T) {
	db, _ := newTestDB(
		WithRetryPredicate(func(error) bool { return true }),
		WithRetryLimit(5),
	)
	db.sleep = func(context.Context, time.Duration) error {
		return context.Canceled
	}

	attempts := 0
	err := db.runWithRetry(context.Background(), func(context.Context) error {
		attempts++
		return errors.New("transient")
	})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, attempts)
}

func TestNestedTransactionReusesContext(t *testing.T) {
	// A nil pool proves the nested path neither borrows a second
	// connection nor begins a second transaction.
	db, _ := newTestDB()

	outer := tx.NewTx(NewExecutor(nil))
	ctx := tx.NewContext(context.Background(), outer)

	var inner *tx.Tx
	err := db.RunInTransaction(ctx, func(ctx context.Context, t *tx.Tx) error {
		inner = t
		return nil
	})

	require.NoError(t, err)
	assert.Same(t, outer, inner)
}

func TestSleepContextHonorsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := sleepContext(ctx, time.Hour)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestWithRetryLimitClampsNegative(t *testing.T) {
	db, _ := newTestDB(WithRetryLimit(-5))
	assert.Equal(t, 0, db.retryLimit)
}
