// Package entity provides base types for application records stored
// through the query layer.
package entity

import (
	"sqlcap/internal/core/id"
)

// BaseRecord contains the columns every record table carries. Embed it
// in concrete record structs; the "db" tags drive column mapping.
type BaseRecord struct {
	// ID is the primary key (UUIDv7)
	ID id.ID `db:"id" json:"id"`

	// Version for optimistic locking (incremented on each update)
	Version int `db:"version" json:"version"`

	// Attributes stores custom fields (JSONB in PostgreSQL)
	Attributes Attributes `db:"attributes" json:"attributes,omitempty"`
}

// NewBaseRecord creates a BaseRecord with a generated key.
func NewBaseRecord() BaseRecord {
	return BaseRecord{
		ID:      id.New(),
		Version: 1,
	}
}

// Touch increments the version.
func (b *BaseRecord) Touch() {
	b.Version++
}

// SetAttribute sets a custom field.
func (b *BaseRecord) SetAttribute(key string, value any) {
	if b.Attributes == nil {
		b.Attributes = make(Attributes)
	}
	b.Attributes[key] = value
}
