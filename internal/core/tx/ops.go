package tx

import (
	"context"
	"fmt"

	"sqlcap/internal/core/apperror"
	"sqlcap/internal/core/query"
)

// cast converts the type-erased dispatch result into the type the
// descriptor variant promises. A mismatch is a dispatcher bug (or a mock
// handler stubbing the wrong type) and surfaces as an internal error
// rather than a panic.
func cast[T any](op query.Op, res any) (T, error) {
	var zero T
	if res == nil {
		return zero, nil
	}
	v, ok := res.(T)
	if !ok {
		return zero, apperror.NewInternal(fmt.Errorf("%s: dispatcher returned %T, want %T", op, res, zero))
	}
	return v, nil
}

func tableOf[R query.Record]() string {
	var r R
	return r.TableName()
}

// Get fetches one record by key. Returns nil when the row is absent.
func Get[R query.Record](ctx context.Context, t *Tx, key query.Key) (*R, error) {
	res, err := t.dispatch(ctx, query.KeyQuery[R](query.OpGet, key))
	if err != nil {
		return nil, err
	}
	return cast[*R](query.OpGet, res)
}

// GetMany fetches several records by key. Absent keys are simply missing
// from the result map.
func GetMany[R query.Record](ctx context.Context, t *Tx, keys ...query.Key) (map[query.Key]R, error) {
	res, err := t.dispatch(ctx, query.KeysQuery[R](query.OpGetMany, keys))
	if err != nil {
		return nil, err
	}
	out, err := cast[map[query.Key]R](query.OpGetMany, res)
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = map[query.Key]R{}
	}
	return out, nil
}

// GetOrErr fetches one record by key, failing with NOT_FOUND when absent.
func GetOrErr[R query.Record](ctx context.Context, t *Tx, key query.Key) (R, error) {
	var zero R
	res, err := t.dispatch(ctx, query.KeyQuery[R](query.OpGetOrErr, key))
	if err != nil {
		return zero, err
	}
	ptr, err := cast[*R](query.OpGetOrErr, res)
	if err != nil {
		return zero, err
	}
	if ptr == nil {
		return zero, apperror.NewNotFound(tableOf[R](), key)
	}
	return *ptr, nil
}

// GetEntity fetches one keyed record. Returns nil when the row is absent.
func GetEntity[R query.Record](ctx context.Context, t *Tx, key query.Key) (*query.Entity[R], error) {
	res, err := t.dispatch(ctx, query.KeyQuery[R](query.OpGetEntity, key))
	if err != nil {
		return nil, err
	}
	return cast[*query.Entity[R]](query.OpGetEntity, res)
}

// GetEntityOrErr fetches one keyed record, failing with NOT_FOUND when absent.
func GetEntityOrErr[R query.Record](ctx context.Context, t *Tx, key query.Key) (query.Entity[R], error) {
	var zero query.Entity[R]
	res, err := t.dispatch(ctx, query.KeyQuery[R](query.OpGetEntityOrErr, key))
	if err != nil {
		return zero, err
	}
	ptr, err := cast[*query.Entity[R]](query.OpGetEntityOrErr, res)
	if err != nil {
		return zero, err
	}
	if ptr == nil {
		return zero, apperror.NewNotFound(tableOf[R](), key)
	}
	return *ptr, nil
}

// GetBy fetches the first record matching the filters, in table order.
// Covers belongs-to navigation: filter on the referencing column. Returns
// nil when nothing matches.
func GetBy[R query.Record](ctx context.Context, t *Tx, filters ...query.Filter) (*R, error) {
	res, err := t.dispatch(ctx, query.FilterQuery[R](query.OpGetBy, filters))
	if err != nil {
		return nil, err
	}
	return cast[*R](query.OpGetBy, res)
}

// GetByOrErr fetches the first record matching the filters, failing with
// NOT_FOUND when nothing matches.
func GetByOrErr[R query.Record](ctx context.Context, t *Tx, filters ...query.Filter) (R, error) {
	var zero R
	res, err := t.dispatch(ctx, query.FilterQuery[R](query.OpGetByOrErr, filters))
	if err != nil {
		return zero, err
	}
	ptr, err := cast[*R](query.OpGetByOrErr, res)
	if err != nil {
		return zero, err
	}
	if ptr == nil {
		return zero, apperror.NewNotFound(tableOf[R](), filters)
	}
	return *ptr, nil
}

// SelectList fetches keyed records matching the filters, with ordering
// and pagination options.
func SelectList[R query.Record](ctx context.Context, t *Tx, filters []query.Filter, opts ...query.SelectOption) ([]query.Entity[R], error) {
	res, err := t.dispatch(ctx, query.FilterQuery[R](query.OpSelectList, filters, opts...))
	if err != nil {
		return nil, err
	}
	return cast[[]query.Entity[R]](query.OpSelectList, res)
}

// Insert stores a new record and returns its key. When the record's id
// column is zero a fresh UUIDv7 key is assigned.
func Insert[R query.Record](ctx context.Context, t *Tx, record R) (query.Key, error) {
	res, err := t.dispatch(ctx, query.RecordQuery(query.OpInsert, record))
	if err != nil {
		return query.Key{}, err
	}
	return cast[query.Key](query.OpInsert, res)
}

// InsertVoid stores a new record, discarding the generated key.
func InsertVoid[R query.Record](ctx context.Context, t *Tx, record R) error {
	_, err := t.dispatch(ctx, query.RecordQuery(query.OpInsertVoid, record))
	return err
}

// InsertMany stores records and returns their keys in input order.
func InsertMany[R query.Record](ctx context.Context, t *Tx, records []R) ([]query.Key, error) {
	res, err := t.dispatch(ctx, query.RecordsQuery(query.OpInsertMany, records))
	if err != nil {
		return nil, err
	}
	return cast[[]query.Key](query.OpInsertMany, res)
}

// InsertManyVoid stores records, discarding the generated keys.
func InsertManyVoid[R query.Record](ctx context.Context, t *Tx, records []R) error {
	_, err := t.dispatch(ctx, query.RecordsQuery(query.OpInsertManyVoid, records))
	return err
}

// InsertEntityMany stores keyed records with their given keys.
func InsertEntityMany[R query.Record](ctx context.Context, t *Tx, entities []query.Entity[R]) error {
	_, err := t.dispatch(ctx, query.EntitiesQuery(query.OpInsertEntityMany, entities))
	return err
}

// InsertWithKey stores a new record under an explicit key.
func InsertWithKey[R query.Record](ctx context.Context, t *Tx, key query.Key, record R) error {
	_, err := t.dispatch(ctx, query.KeyedRecordQuery(query.OpInsertWithKey, key, record))
	return err
}

// Repsert stores the record under key, replacing any existing row.
func Repsert[R query.Record](ctx context.Context, t *Tx, key query.Key, record R) error {
	_, err := t.dispatch(ctx, query.KeyedRecordQuery(query.OpRepsert, key, record))
	return err
}

// RepsertMany stores keyed records, replacing any existing rows.
func RepsertMany[R query.Record](ctx context.Context, t *Tx, entities []query.Entity[R]) error {
	_, err := t.dispatch(ctx, query.EntitiesQuery(query.OpRepsertMany, entities))
	return err
}

// Replace overwrites the full row stored under key, failing with
// NOT_FOUND when the row does not exist.
func Replace[R query.Record](ctx context.Context, t *Tx, key query.Key, record R) error {
	_, err := t.dispatch(ctx, query.KeyedRecordQuery(query.OpReplace, key, record))
	return err
}

// Delete removes the row stored under key. Absent rows are not an error.
func Delete[R query.Record](ctx context.Context, t *Tx, key query.Key) error {
	_, err := t.dispatch(ctx, query.KeyQuery[R](query.OpDelete, key))
	return err
}

// RunMigration executes the given DDL statements in order and returns
// the statements that were executed.
func RunMigration(ctx context.Context, t *Tx, statements []string) ([]string, error) {
	res, err := t.dispatch(ctx, query.MigrationQuery(statements))
	if err != nil {
		return nil, err
	}
	return cast[[]string](query.OpRunMigration, res)
}
