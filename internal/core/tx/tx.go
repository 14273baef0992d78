// Package tx provides the transaction context applications program
// against. The context is deliberately narrow: inside a transaction body
// the only available operations are the typed query functions in this
// package and Rerunnable. A body may run more than once when the runner
// retries, so arbitrary side effects have no API surface here; anything
// repeat-safe must be routed through Rerunnable explicitly.
package tx

import (
	"context"

	"sqlcap/internal/core/query"
)

// Dispatcher executes one query descriptor and returns its type-erased
// result. The live executor and the mock harness implement it.
type Dispatcher interface {
	Dispatch(ctx context.Context, d query.Descriptor) (any, error)
}

// Tx is the restricted execution context of one transaction. All queries
// issued through it run in program order on the single connection borrowed
// for the call. A Tx never escapes the body it was handed to.
type Tx struct {
	d Dispatcher
}

// NewTx binds a transaction context to a dispatcher. Called by capability
// implementations, not by application code.
func NewTx(d Dispatcher) *Tx {
	return &Tx{d: d}
}

func (t *Tx) dispatch(ctx context.Context, d query.Descriptor) (any, error) {
	return t.d.Dispatch(ctx, d)
}

// Manager is the query capability. Domain code depends on this interface;
// the live implementation (backed by a connection pool, with retry) lives
// in infrastructure/storage/postgres, the mock one in mockdb.
type Manager interface {
	// RunInTransaction executes fn as one atomic unit. On a retryable
	// failure the whole body is re-executed, so fn must confine side
	// effects to queries and Rerunnable.
	//
	// Nested calls reuse the transaction already in ctx: no second
	// backend transaction is opened and no inner retry loop runs.
	RunInTransaction(ctx context.Context, fn func(ctx context.Context, tx *Tx) error) error
}

// txKey is the context key for the active transaction context.
type txKey struct{}

// NewContext returns ctx carrying t. Capability implementations store the
// active transaction here so nested RunInTransaction calls can find it.
func NewContext(ctx context.Context, t *Tx) context.Context {
	return context.WithValue(ctx, txKey{}, t)
}

// FromContext returns the active transaction context, or nil if none.
func FromContext(ctx context.Context) *Tx {
	if t, ok := ctx.Value(txKey{}).(*Tx); ok {
		return t
	}
	return nil
}

// Rerunnable runs an explicitly repeat-safe side effect inside a
// transaction body. It is the single escape hatch from the restricted
// context; the caller guarantees the effect is idempotent under
// re-execution. Requiring the Tx ties the call site to a body.
func Rerunnable[T any](ctx context.Context, _ *Tx, effect func(ctx context.Context) (T, error)) (T, error) {
	return effect(ctx)
}

// RunQuery runs a single operation as its own one-off transaction.
// Every bare operation goes through the same retry policy as an explicit
// transaction block; there is no way to bypass it.
func RunQuery[T any](ctx context.Context, m Manager, op func(ctx context.Context, tx *Tx) (T, error)) (T, error) {
	var out T
	err := m.RunInTransaction(ctx, func(ctx context.Context, t *Tx) error {
		var opErr error
		out, opErr = op(ctx, t)
		return opErr
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return out, nil
}
