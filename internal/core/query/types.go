// Package query defines the closed set of query descriptors the platform
// executes against a relational backend. A descriptor is an immutable value
// describing exactly one operation and the result shape it produces; it
// performs no I/O itself. Dispatchers (the live executor and the mock
// harness) consume descriptors through the type-erased Descriptor view and
// rebuild exactly-typed results through the witness methods it carries.
package query

import (
	"sqlcap/internal/core/id"
)

// Key is the primary-key type shared by all records.
type Key = id.ID

// Record is implemented by any struct that maps to a table.
// Fields are mapped to columns via "db" tags; every record carries its
// primary key in an `db:"id"` column.
type Record interface {
	TableName() string
}

// Entity pairs a record with its primary key.
type Entity[R Record] struct {
	Key    Key
	Record R
}

// Migration is the marker record type carried by migration descriptors.
// It lets the mock harness match them by type tag like any other query.
type Migration struct{}

// TableName implements Record. Migrations are not bound to a table.
func (Migration) TableName() string { return "" }
