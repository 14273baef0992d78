package query

// Comparison identifies a filter operator.
type Comparison string

const (
	Equal          Comparison = "eq"
	NotEqual       Comparison = "neq"
	Less           Comparison = "lt"
	LessOrEqual    Comparison = "lte"
	Greater        Comparison = "gt"
	GreaterOrEqual Comparison = "gte"
	InList         Comparison = "in"  // value is a slice
	NotInList      Comparison = "nin" // value is a slice
	Contains       Comparison = "contains"
	IsNull         Comparison = "null"
	IsNotNull      Comparison = "not_null"
)

// Filter is one row-selection condition. Field names are column names
// (snake_case), matching the record's "db" tags.
type Filter struct {
	Field    string     `json:"field"`
	Operator Comparison `json:"operator"`
	Value    any        `json:"value,omitempty"`
}

// Eq builds an equality filter, the overwhelmingly common case.
func Eq(field string, value any) Filter {
	return Filter{Field: field, Operator: Equal, Value: value}
}

// Order is one ordering term of a list query.
type Order struct {
	Field      string `json:"field"`
	Descending bool   `json:"descending,omitempty"`
}

// SelectOptions collects ordering and pagination for list queries.
type SelectOptions struct {
	Orders []Order
	Limit  uint64
	Offset uint64
}

// SelectOption mutates SelectOptions during descriptor construction.
type SelectOption func(*SelectOptions)

// OrderBy adds an ascending ordering term.
func OrderBy(field string) SelectOption {
	return func(o *SelectOptions) {
		o.Orders = append(o.Orders, Order{Field: field})
	}
}

// OrderByDesc adds a descending ordering term.
func OrderByDesc(field string) SelectOption {
	return func(o *SelectOptions) {
		o.Orders = append(o.Orders, Order{Field: field, Descending: true})
	}
}

// Limit caps the number of returned rows.
func Limit(n uint64) SelectOption {
	return func(o *SelectOptions) { o.Limit = n }
}

// Offset skips the first n rows.
func Offset(n uint64) SelectOption {
	return func(o *SelectOptions) { o.Offset = n }
}
