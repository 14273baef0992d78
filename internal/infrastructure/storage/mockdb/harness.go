// Package mockdb provides a mock query capability for tests that run
// without a live backend. Descriptors are resolved against an ordered
// handler list instead of being executed: the first handler whose record
// type tag equals the descriptor's record type and whose partial match
// function succeeds supplies the stub result.
package mockdb

import (
	"context"
	"reflect"

	"sqlcap/internal/core/apperror"
	"sqlcap/internal/core/query"
	"sqlcap/internal/core/tx"
)

// Handler is one (record-type tag, partial match) pair. Build with On.
type Handler struct {
	recordType reflect.Type
	match      func(d query.Descriptor) (any, bool)
}

// On builds a handler for record type R. match receives every descriptor
// whose record type is R and returns the stub result plus whether it
// matched; unmatched descriptors fall through to later handlers. A
// matched nil result is valid and stands for "row absent".
func On[R query.Record](match func(q *query.Query[R]) (any, bool)) Handler {
	return Handler{
		recordType: reflect.TypeOf((*R)(nil)).Elem(),
		match: func(d query.Descriptor) (any, bool) {
			qd, ok := d.(*query.Query[R])
			if !ok {
				return nil, false
			}
			return match(qd)
		},
	}
}

// DB is the mock query capability, backed by an ordered handler list.
// The list is consumed read-only; a DB is built per test case.
type DB struct {
	handlers []Handler
}

var (
	_ tx.Dispatcher = (*DB)(nil)
	_ tx.Manager    = (*DB)(nil)
)

// New creates a mock capability from handlers, matched in the given order.
func New(handlers ...Handler) *DB {
	return &DB{handlers: handlers}
}

// Dispatch resolves d against the handler list, first match wins.
// Handlers declared for a different record type are never invoked. When
// no handler matches, the failure names the descriptor's variant and
// record type; that is a test-authoring error and is not retried.
func (m *DB) Dispatch(_ context.Context, d query.Descriptor) (any, error) {
	for _, h := range m.handlers {
		if h.recordType != d.RecordType() {
			continue
		}
		if res, ok := h.match(d); ok {
			return res, nil
		}
	}
	return nil, apperror.NewUnmatchedQuery(d.Op().String(), d.RecordType().Name())
}

// RunInTransaction implements tx.Manager as a pass-through: mock
// transactions are not retried and open no backend transaction. Nested
// calls reuse the transaction context already in ctx, like the live
// capability.
func (m *DB) RunInTransaction(ctx context.Context, fn func(ctx context.Context, t *tx.Tx) error) error {
	if cur := tx.FromContext(ctx); cur != nil {
		return fn(ctx, cur)
	}
	t := tx.NewTx(m)
	return fn(tx.NewContext(ctx, t), t)
}
