package tx

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sqlcap/internal/core/apperror"
	"sqlcap/internal/core/id"
	"sqlcap/internal/core/query"
)

type person struct {
	ID   query.Key `db:"id"`
	Name string    `db:"name"`
}

func (person) TableName() string { return "person" }

// fakeDispatcher replays canned results in call order and records every
// descriptor it sees.
type fakeDispatcher struct {
	results []any
	err     error
	seen    []query.Descriptor
}

func (f *fakeDispatcher) Dispatch(_ context.Context, d query.Descriptor) (any, error) {
	f.seen = append(f.seen, d)
	if f.err != nil {
		return nil, f.err
	}
	if len(f.results) == 0 {
		return nil, nil
	}
	res := f.results[0]
	f.results = f.results[1:]
	return res, nil
}

// fakeManager runs bodies directly against a dispatcher, without retry.
type fakeManager struct {
	disp Dispatcher
}

func (m fakeManager) RunInTransaction(ctx context.Context, fn func(ctx context.Context, t *Tx) error) error {
	t := NewTx(m.disp)
	return fn(NewContext(ctx, t), t)
}

func TestGetReturnsTypedResult(t *testing.T) {
	key := id.New()
	disp := &fakeDispatcher{results: []any{&person{ID: key, Name: "Alice"}}}
	txc := NewTx(disp)

	got, err := Get[person](context.Background(), txc, key)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Alice", got.Name)

	require.Len(t, disp.seen, 1)
	assert.Equal(t, query.OpGet, disp.seen[0].Op())
	assert.Equal(t, key, disp.seen[0].Key())
}

func TestGetMissingRowIsNil(t *testing.T) {
	disp := &fakeDispatcher{results: []any{nil}}

	got, err := Get[person](context.Background(), NewTx(disp), id.New())
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestGetOrErrConvertsMissToNotFound(t *testing.T) {
	disp := &fakeDispatcher{results: []any{nil}}

	_, err := GetOrErr[person](context.Background(), NewTx(disp), id.New())
	require.Error(t, err)
	assert.True(t, apperror.IsNotFound(err))
}

func TestCastMismatchIsInternalError(t *testing.T) {
	// A dispatcher returning the wrong type is a bug, not a panic.
	disp := &fakeDispatcher{results: []any{42}}

	_, err := Get[person](context.Background(), NewTx(disp), id.New())
	require.Error(t, err)
	assert.True(t, apperror.HasCode(err, apperror.CodeInternal))
}

func TestGetManyNilResultIsEmptyMap(t *testing.T) {
	disp := &fakeDispatcher{results: []any{nil}}

	got, err := GetMany[person](context.Background(), NewTx(disp), id.New())
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestDispatchErrorPropagatesUnchanged(t *testing.T) {
	boom := errors.New("connection reset")
	disp := &fakeDispatcher{err: boom}

	_, err := Insert(context.Background(), NewTx(disp), person{ID: id.New()})
	assert.ErrorIs(t, err, boom)
}

func TestOpsBuildExpectedDescriptors(t *testing.T) {
	ctx := context.Background()
	key := id.New()

	tests := []struct {
		name   string
		issue  func(t *Tx) error
		wantOp query.Op
	}{
		{"Delete", func(txc *Tx) error { return Delete[person](ctx, txc, key) }, query.OpDelete},
		{"InsertVoid", func(txc *Tx) error { return InsertVoid(ctx, txc, person{}) }, query.OpInsertVoid},
		{"Repsert", func(txc *Tx) error { return Repsert(ctx, txc, key, person{}) }, query.OpRepsert},
		{"Replace", func(txc *Tx) error { return Replace(ctx, txc, key, person{}) }, query.OpReplace},
		{"InsertWithKey", func(txc *Tx) error { return InsertWithKey(ctx, txc, key, person{}) }, query.OpInsertWithKey},
		{"InsertManyVoid", func(txc *Tx) error { return InsertManyVoid(ctx, txc, []person{{}}) }, query.OpInsertManyVoid},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			disp := &fakeDispatcher{}
			require.NoError(t, tt.issue(NewTx(disp)))
			require.Len(t, disp.seen, 1)
			assert.Equal(t, tt.wantOp, disp.seen[0].Op())
		})
	}
}

func TestRunQueryWrapsSingleOperation(t *testing.T) {
	key := id.New()
	disp := &fakeDispatcher{results: []any{&person{ID: key, Name: "Alice"}}}
	m := fakeManager{disp: disp}

	got, err := RunQuery(context.Background(), m, func(ctx context.Context, txc *Tx) (*person, error) {
		return Get[person](ctx, txc, key)
	})
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Alice", got.Name)
}

func TestRunQueryErrorReturnsZero(t *testing.T) {
	boom := errors.New("boom")
	m := fakeManager{disp: &fakeDispatcher{err: boom}}

	got, err := RunQuery(context.Background(), m, func(ctx context.Context, txc *Tx) (*person, error) {
		return Get[person](ctx, txc, id.New())
	})
	assert.ErrorIs(t, err, boom)
	assert.Nil(t, got)
}

func TestRerunnable(t *testing.T) {
	txc := NewTx(&fakeDispatcher{})

	calls := 0
	got, err := Rerunnable(context.Background(), txc, func(ctx context.Context) (int, error) {
		calls++
		return 7, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 7, got)
	assert.Equal(t, 1, calls)
}

func TestContextRoundTrip(t *testing.T) {
	assert.Nil(t, FromContext(context.Background()))

	txc := NewTx(&fakeDispatcher{})
	ctx := NewContext(context.Background(), txc)
	assert.Same(t, txc, FromContext(ctx))
}
