package postgres

import (
	"context"
	"fmt"

	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"sqlcap/internal/core/apperror"
	"sqlcap/internal/core/id"
	"sqlcap/internal/core/query"
	"sqlcap/internal/core/tx"
)

// Querier is the synchronous request/response primitive the executor
// runs against. Satisfied by pgx.Tx, *pgxpool.Pool and *pgxpool.Conn.
type Querier interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Executor runs query descriptors against exactly one open connection or
// transaction. It holds no retry logic; backend errors propagate to the
// transaction runner unchanged (wrapped for context, never replaced).
type Executor struct {
	q Querier
}

// Compile-time check that Executor can back a transaction context.
var _ tx.Dispatcher = (*Executor)(nil)

// NewExecutor binds an executor to a querier.
func NewExecutor(q Querier) *Executor {
	return &Executor{q: q}
}

// Dispatch routes one descriptor to its handler. The result is the exact
// type the descriptor's variant promises, produced through the
// descriptor's own type witnesses.
func (e *Executor) Dispatch(ctx context.Context, d query.Descriptor) (any, error) {
	switch d.Op() {
	case query.OpGet, query.OpGetOrErr, query.OpGetBy, query.OpGetByOrErr:
		return e.getOne(ctx, d)
	case query.OpGetEntity, query.OpGetEntityOrErr:
		return e.getEntity(ctx, d)
	case query.OpGetMany:
		return e.getMany(ctx, d)
	case query.OpSelectList:
		return e.selectList(ctx, d)
	case query.OpInsert:
		return e.insertOne(ctx, d)
	case query.OpInsertVoid:
		_, err := e.insertOne(ctx, d)
		return nil, err
	case query.OpInsertMany:
		return e.insertMany(ctx, d)
	case query.OpInsertManyVoid:
		_, err := e.insertMany(ctx, d)
		return nil, err
	case query.OpInsertEntityMany:
		return nil, e.insertEntityMany(ctx, d)
	case query.OpInsertWithKey:
		return nil, e.insertWithKey(ctx, d)
	case query.OpRepsert:
		return nil, e.repsert(ctx, d, d.Key(), d.RecordValue())
	case query.OpRepsertMany:
		return nil, e.repsertMany(ctx, d)
	case query.OpReplace:
		return nil, e.replace(ctx, d)
	case query.OpDelete:
		return nil, e.delete(ctx, d)
	case query.OpRunMigration:
		return e.runMigration(ctx, d)
	default:
		return nil, apperror.NewInternal(fmt.Errorf("unsupported query op: %s", d.Op()))
	}
}

// --- Reads ---

func (e *Executor) getOne(ctx context.Context, d query.Descriptor) (any, error) {
	sql, args, err := buildSelect(d)
	if err != nil {
		return nil, err
	}

	dest := d.NewRecord()
	if err := pgxscan.Get(ctx, e.q, dest, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get %s: %w", d.Table(), err)
	}
	return dest, nil
}

func (e *Executor) getEntity(ctx context.Context, d query.Descriptor) (any, error) {
	rec, err := e.getOne(ctx, d)
	if err != nil || rec == nil {
		return nil, err
	}
	return d.MakeEntity(d.Key(), rec)
}

func (e *Executor) getMany(ctx context.Context, d query.Descriptor) (any, error) {
	dest := d.NewRecordSlice()
	if len(d.Keys()) > 0 {
		sql, args, err := buildSelect(d)
		if err != nil {
			return nil, err
		}
		if err := pgxscan.Select(ctx, e.q, dest, sql, args...); err != nil {
			return nil, fmt.Errorf("get many %s: %w", d.Table(), err)
		}
	}
	return d.CollectMany(dest, recordKey)
}

func (e *Executor) selectList(ctx context.Context, d query.Descriptor) (any, error) {
	sql, args, err := buildSelect(d)
	if err != nil {
		return nil, err
	}

	dest := d.NewRecordSlice()
	if err := pgxscan.Select(ctx, e.q, dest, sql, args...); err != nil {
		return nil, fmt.Errorf("select %s: %w", d.Table(), err)
	}
	return d.WrapEntities(dest, recordKey)
}

// --- Writes ---

func (e *Executor) insertOne(ctx context.Context, d query.Descriptor) (query.Key, error) {
	cols := columnsOfType(d.RecordType())
	data := StructToMap(d.RecordValue())
	key := ensureKey(data)

	sql, args, err := buildInsert(d.Table(), cols, [][]any{rowFor(cols, data)})
	if err != nil {
		return query.Key{}, fmt.Errorf("build insert: %w", err)
	}
	if _, err := e.q.Exec(ctx, sql, args...); err != nil {
		return query.Key{}, fmt.Errorf("insert %s: %w", d.Table(), err)
	}
	return key, nil
}

func (e *Executor) insertMany(ctx context.Context, d query.Descriptor) ([]query.Key, error) {
	records := d.RecordValues()
	keys := make([]query.Key, 0, len(records))
	if len(records) == 0 {
		return keys, nil
	}

	cols := columnsOfType(d.RecordType())
	rows := make([][]any, 0, len(records))
	for _, rec := range records {
		data := StructToMap(rec)
		keys = append(keys, ensureKey(data))
		rows = append(rows, rowFor(cols, data))
	}

	sql, args, err := buildInsert(d.Table(), cols, rows)
	if err != nil {
		return nil, fmt.Errorf("build insert: %w", err)
	}
	if _, err := e.q.Exec(ctx, sql, args...); err != nil {
		return nil, fmt.Errorf("insert many %s: %w", d.Table(), err)
	}
	return keys, nil
}

func (e *Executor) insertEntityMany(ctx context.Context, d query.Descriptor) error {
	pairs := d.EntityPairs()
	if len(pairs) == 0 {
		return nil
	}

	cols := columnsOfType(d.RecordType())
	rows := make([][]any, 0, len(pairs))
	for _, p := range pairs {
		data := StructToMap(p.Record)
		data["id"] = p.Key
		rows = append(rows, rowFor(cols, data))
	}

	sql, args, err := buildInsert(d.Table(), cols, rows)
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}
	if _, err := e.q.Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("insert entities %s: %w", d.Table(), err)
	}
	return nil
}

func (e *Executor) insertWithKey(ctx context.Context, d query.Descriptor) error {
	cols := columnsOfType(d.RecordType())
	data := StructToMap(d.RecordValue())
	data["id"] = d.Key()

	sql, args, err := buildInsert(d.Table(), cols, [][]any{rowFor(cols, data)})
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}
	if _, err := e.q.Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("insert %s: %w", d.Table(), err)
	}
	return nil
}

func (e *Executor) repsert(ctx context.Context, d query.Descriptor, key query.Key, rec any) error {
	cols := columnsOfType(d.RecordType())
	data := StructToMap(rec)
	data["id"] = key

	sql, args, err := buildRepsert(d.Table(), cols, rowFor(cols, data))
	if err != nil {
		return fmt.Errorf("build repsert: %w", err)
	}
	if _, err := e.q.Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("repsert %s: %w", d.Table(), err)
	}
	return nil
}

func (e *Executor) repsertMany(ctx context.Context, d query.Descriptor) error {
	// One statement per pair, in program order.
	for _, p := range d.EntityPairs() {
		if err := e.repsert(ctx, d, p.Key, p.Record); err != nil {
			return err
		}
	}
	return nil
}

func (e *Executor) replace(ctx context.Context, d query.Descriptor) error {
	cols := columnsOfType(d.RecordType())
	data := StructToMap(d.RecordValue())

	sql, args, err := buildReplace(d.Table(), cols, data, d.Key())
	if err != nil {
		return fmt.Errorf("build replace: %w", err)
	}
	tag, err := e.q.Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("replace %s: %w", d.Table(), err)
	}
	if tag.RowsAffected() == 0 {
		return apperror.NewNotFound(d.Table(), d.Key())
	}
	return nil
}

func (e *Executor) delete(ctx context.Context, d query.Descriptor) error {
	sql, args, err := buildDelete(d.Table(), d.Key())
	if err != nil {
		return fmt.Errorf("build delete: %w", err)
	}
	if _, err := e.q.Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("delete %s: %w", d.Table(), err)
	}
	return nil
}

func (e *Executor) runMigration(ctx context.Context, d query.Descriptor) (any, error) {
	statements := d.Statements()
	executed := make([]string, 0, len(statements))
	for _, stmt := range statements {
		if _, err := e.q.Exec(ctx, stmt); err != nil {
			return nil, fmt.Errorf("migration statement %q: %w", stmt, err)
		}
		executed = append(executed, stmt)
	}
	return executed, nil
}

// --- Row assembly ---

// ensureKey returns the record's key, assigning a fresh UUIDv7 into data
// when the id column is zero.
func ensureKey(data map[string]any) query.Key {
	if k, ok := data["id"].(query.Key); ok && !id.IsNil(k) {
		return k
	}
	k := id.New()
	data["id"] = k
	return k
}

// rowFor lays out column values in the given column order.
func rowFor(cols []string, data map[string]any) []any {
	row := make([]any, len(cols))
	for i, c := range cols {
		row[i] = data[c]
	}
	return row
}

// recordKey extracts the key from a scanned record.
func recordKey(rec any) query.Key {
	if m := StructToMap(rec); m != nil {
		if k, ok := m["id"].(query.Key); ok {
			return k
		}
	}
	return id.Nil()
}
