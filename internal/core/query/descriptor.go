package query

import (
	"fmt"
	"reflect"
)

// Op is the explicit discriminator of the descriptor union. The result
// type of a query is fully determined by its Op and record type, never
// by runtime data.
type Op int

const (
	OpGet            Op = iota // key -> *R, nil when absent
	OpGetMany                  // keys -> map[Key]R
	OpGetOrErr                 // key -> R, NOT_FOUND when absent
	OpGetEntity                // key -> *Entity[R], nil when absent
	OpGetEntityOrErr           // key -> Entity[R], NOT_FOUND when absent
	OpGetBy                    // filters -> *R, first match, nil when absent
	OpGetByOrErr               // filters -> R, NOT_FOUND when absent
	OpSelectList               // filters + options -> []Entity[R]
	OpInsert                   // record -> Key
	OpInsertVoid               // record -> none
	OpInsertMany               // records -> []Key, input order
	OpInsertManyVoid           // records -> none
	OpInsertEntityMany         // entities -> none, keys supplied by caller
	OpInsertWithKey            // key + record -> none
	OpRepsert                  // key + record -> none, insert-or-replace
	OpRepsertMany              // entities -> none
	OpReplace                  // key + record -> none, full-row update
	OpDelete                   // key -> none, no error when absent
	OpRunMigration             // statements -> []string, executed statements
)

var opNames = map[Op]string{
	OpGet:              "Get",
	OpGetMany:          "GetMany",
	OpGetOrErr:         "GetOrErr",
	OpGetEntity:        "GetEntity",
	OpGetEntityOrErr:   "GetEntityOrErr",
	OpGetBy:            "GetBy",
	OpGetByOrErr:       "GetByOrErr",
	OpSelectList:       "SelectList",
	OpInsert:           "Insert",
	OpInsertVoid:       "InsertVoid",
	OpInsertMany:       "InsertMany",
	OpInsertManyVoid:   "InsertManyVoid",
	OpInsertEntityMany: "InsertEntityMany",
	OpInsertWithKey:    "InsertWithKey",
	OpRepsert:          "Repsert",
	OpRepsertMany:      "RepsertMany",
	OpReplace:          "Replace",
	OpDelete:           "Delete",
	OpRunMigration:     "RunMigration",
}

// String returns the variant name, used in diagnostics.
func (op Op) String() string {
	if name, ok := opNames[op]; ok {
		return name
	}
	return fmt.Sprintf("Op(%d)", int(op))
}

// EntityPair is the type-erased view of one Entity[R].
type EntityPair struct {
	Key    Key
	Record any
}

// Descriptor is the type-erased view of a Query[R]. Dispatchers that
// cannot be generic (they are selected at runtime) operate on this
// interface; the witness methods let them allocate scan destinations and
// assemble results of the exact type the descriptor promises, without
// unchecked casts.
type Descriptor interface {
	// Op returns the variant discriminator.
	Op() Op

	// RecordType returns the record struct type. Mock handlers are matched
	// against it by type-tag equality.
	RecordType() reflect.Type

	// Table returns the record's table name.
	Table() string

	// Payload accessors. Each returns the zero value for variants that do
	// not carry that payload.
	Key() Key
	Keys() []Key
	Filters() []Filter
	Options() SelectOptions
	Statements() []string
	RecordValue() any
	RecordValues() []any
	EntityPairs() []EntityPair

	// Type witnesses.
	NewRecord() any                                       // *R scan destination
	NewRecordSlice() any                                  // *[]R scan destination
	WrapEntities(recs any, keyOf func(any) Key) (any, error) // *[]R -> []Entity[R]
	CollectMany(recs any, keyOf func(any) Key) (any, error)  // *[]R -> map[Key]R
	MakeEntity(key Key, rec any) (any, error)                // *R -> *Entity[R]
}

// Query is one immutable query descriptor, generic over its record type.
// Values are constructed fresh per call and never mutated afterwards.
type Query[R Record] struct {
	op         Op
	key        Key
	keys       []Key
	record     *R
	records    []R
	entities   []Entity[R]
	filters    []Filter
	opts       SelectOptions
	statements []string
}

var _ Descriptor = (*Query[Migration])(nil)

// --- Constructors. One per payload shape; the Op selects the variant. ---

// KeyQuery builds a descriptor addressing a single row by key.
func KeyQuery[R Record](op Op, key Key) *Query[R] {
	return &Query[R]{op: op, key: key}
}

// KeysQuery builds a descriptor addressing several rows by key.
func KeysQuery[R Record](op Op, keys []Key) *Query[R] {
	return &Query[R]{op: op, keys: keys}
}

// FilterQuery builds a descriptor selecting rows by filters and options.
func FilterQuery[R Record](op Op, filters []Filter, opts ...SelectOption) *Query[R] {
	q := &Query[R]{op: op, filters: filters}
	for _, o := range opts {
		o(&q.opts)
	}
	return q
}

// RecordQuery builds a descriptor carrying one record.
func RecordQuery[R Record](op Op, record R) *Query[R] {
	return &Query[R]{op: op, record: &record}
}

// RecordsQuery builds a descriptor carrying several records.
func RecordsQuery[R Record](op Op, records []R) *Query[R] {
	return &Query[R]{op: op, records: records}
}

// EntitiesQuery builds a descriptor carrying keyed records.
func EntitiesQuery[R Record](op Op, entities []Entity[R]) *Query[R] {
	return &Query[R]{op: op, entities: entities}
}

// KeyedRecordQuery builds a descriptor carrying one record addressed by
// an explicit key.
func KeyedRecordQuery[R Record](op Op, key Key, record R) *Query[R] {
	return &Query[R]{op: op, key: key, record: &record}
}

// MigrationQuery builds a descriptor running migration statements.
func MigrationQuery(statements []string) *Query[Migration] {
	return &Query[Migration]{op: OpRunMigration, statements: statements}
}

// --- Descriptor implementation ---

func (q *Query[R]) Op() Op { return q.op }

func (q *Query[R]) RecordType() reflect.Type {
	return reflect.TypeOf((*R)(nil)).Elem()
}

func (q *Query[R]) Table() string {
	var r R
	return r.TableName()
}

func (q *Query[R]) Key() Key               { return q.key }
func (q *Query[R]) Keys() []Key            { return q.keys }
func (q *Query[R]) Filters() []Filter      { return q.filters }
func (q *Query[R]) Options() SelectOptions { return q.opts }
func (q *Query[R]) Statements() []string   { return q.statements }

func (q *Query[R]) RecordValue() any {
	if q.record == nil {
		return nil
	}
	return *q.record
}

func (q *Query[R]) RecordValues() []any {
	out := make([]any, len(q.records))
	for i, r := range q.records {
		out[i] = r
	}
	return out
}

func (q *Query[R]) EntityPairs() []EntityPair {
	out := make([]EntityPair, len(q.entities))
	for i, e := range q.entities {
		out[i] = EntityPair{Key: e.Key, Record: e.Record}
	}
	return out
}

// --- Typed accessors for mock pattern matching ---

// Record returns the carried record, if any.
func (q *Query[R]) Record() (R, bool) {
	if q.record == nil {
		var zero R
		return zero, false
	}
	return *q.record, true
}

// Records returns the carried record list.
func (q *Query[R]) Records() []R { return q.records }

// Entities returns the carried keyed records.
func (q *Query[R]) Entities() []Entity[R] { return q.entities }

// --- Type witnesses ---

// NewRecord allocates a scan destination of type *R.
func (q *Query[R]) NewRecord() any { return new(R) }

// NewRecordSlice allocates a scan destination of type *[]R.
func (q *Query[R]) NewRecordSlice() any { return new([]R) }

// WrapEntities converts a scanned *[]R into the []Entity[R] result shape,
// extracting each record's key with keyOf.
func (q *Query[R]) WrapEntities(recs any, keyOf func(any) Key) (any, error) {
	list, ok := recs.(*[]R)
	if !ok {
		return nil, fmt.Errorf("%s: expected *[]%s, got %T", q.op, q.RecordType().Name(), recs)
	}
	out := make([]Entity[R], 0, len(*list))
	for _, r := range *list {
		out = append(out, Entity[R]{Key: keyOf(r), Record: r})
	}
	return out, nil
}

// CollectMany converts a scanned *[]R into the map[Key]R result shape.
func (q *Query[R]) CollectMany(recs any, keyOf func(any) Key) (any, error) {
	list, ok := recs.(*[]R)
	if !ok {
		return nil, fmt.Errorf("%s: expected *[]%s, got %T", q.op, q.RecordType().Name(), recs)
	}
	out := make(map[Key]R, len(*list))
	for _, r := range *list {
		out[keyOf(r)] = r
	}
	return out, nil
}

// MakeEntity wraps a scanned *R into the *Entity[R] result shape.
func (q *Query[R]) MakeEntity(key Key, rec any) (any, error) {
	ptr, ok := rec.(*R)
	if !ok {
		return nil, fmt.Errorf("%s: expected *%s, got %T", q.op, q.RecordType().Name(), rec)
	}
	return &Entity[R]{Key: key, Record: *ptr}, nil
}
